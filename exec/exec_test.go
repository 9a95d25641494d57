package exec

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/dave/jennifer/jen"
	"github.com/dianpeng/colgen/compile"
	"github.com/dianpeng/colgen/expr"
	"github.com/dianpeng/colgen/fn"
	"github.com/dianpeng/colgen/options"
	"github.com/dianpeng/colgen/plan"
	"github.com/dianpeng/colgen/types"
	"github.com/dianpeng/colgen/vector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rows = 100

var modes = []bool{false, true}

func testEnv(t *testing.T, plain bool) *Env {
	opts := options.Default().MustWith(options.PreferPlainGo, plain)
	env, err := NewEnv(opts, nil)
	require.NoError(t, err)
	return env
}

func appendValue(v vector.Vector, i int) {
	switch c := v.(type) {
	case *vector.Column[int64]:
		c.Append(int64(i))
	case *vector.Column[int32]:
		c.Append(int32(i))
	case *vector.Column[float32]:
		c.Append(float32(i))
	case *vector.Column[float64]:
		c.Append(float64(i))
	case *vector.Column[string]:
		c.Append(fmt.Sprintf("row%d", i))
	case *vector.Column[bool]:
		c.Append(i%2 == 0)
	}
}

func appendNull(v vector.Vector) {
	switch c := v.(type) {
	case *vector.Column[int64]:
		c.AppendNull()
	case *vector.Column[int32]:
		c.AppendNull()
	case *vector.Column[float32]:
		c.AppendNull()
	case *vector.Column[float64]:
		c.AppendNull()
	case *vector.Column[string]:
		c.AppendNull()
	case *vector.Column[bool]:
		c.AppendNull()
	}
}

// testBatch holds columns a and b both equal to the row index. When
// nullable every odd row of a is null.
func testBatch(minor types.MinorType, nullable bool) *vector.Batch {
	at := types.RequiredOf(minor)
	if nullable {
		at = at.AsOptional()
	}
	b := vector.NewBatch(vector.NewSchema(
		vector.Field{Name: "a", Type: at},
		vector.Field{Name: "b", Type: types.RequiredOf(minor)},
	), rows)
	for i := 0; i < rows; i++ {
		if nullable && i%2 == 1 {
			appendNull(b.Columns[0])
		} else {
			appendValue(b.Columns[0], i)
		}
		appendValue(b.Columns[1], i)
	}
	return b
}

func field(b *vector.Batch, name string) *expr.FieldRef {
	idx, _ := b.Schema.Index(name)
	return &expr.FieldRef{Name: name, Index: idx, T: b.Schema.Fields[idx].Type}
}

func call(name string, t types.MinorType, args ...expr.Expr) *expr.FunctionCall {
	c := &expr.FunctionCall{Name: name, Args: args, T: types.RequiredOf(t)}
	if expr.AnyOptional(args...) {
		c.T = c.T.AsOptional()
	}
	return c
}

func runFilter(t *testing.T, env *Env, b *vector.Batch, predicate expr.Expr) int {
	f, err := NewFilterer(context.Background(), predicate, env)
	require.NoError(t, err)
	defer f.Release()

	require.NoError(t, f.Setup(b))
	sel := vector.NewSelectionVector2(b.RecordCount())
	n, err := f.Filter(b.RecordCount(), sel)
	require.NoError(t, err)
	require.Equal(t, n, sel.Count())
	return n
}

func TestFilterSelfEqual(t *testing.T) {
	assert := assert.New(t)
	for _, plain := range modes {
		env := testEnv(t, plain)

		b := testBatch(types.BigInt, false)
		a := field(b, "a")
		assert.Equal(rows, runFilter(t, env, b, call("equal", types.Bit, a, a)), "plain=%v", plain)

		b = testBatch(types.BigInt, true)
		a = field(b, "a")
		assert.Equal(rows/2, runFilter(t, env, b, call("equal", types.Bit, a, a)), "plain=%v", plain)
	}
}

func TestFilterSelection(t *testing.T) {
	assert := assert.New(t)
	env := testEnv(t, false)
	b := testBatch(types.Int, true)

	f, err := NewFilterer(context.Background(), call("isnull", types.Bit, field(b, "a")), env)
	require.NoError(t, err)
	defer f.Release()

	assert.NoError(f.Setup(b))
	sel := vector.NewSelectionVector2(rows)
	n, err := f.Filter(rows, sel)
	assert.NoError(err)
	assert.Equal(rows/2, n)
	for i := 0; i < n; i++ {
		assert.Equal(2*i+1, sel.Index(i))
	}
}

func TestComparisonMatrix(t *testing.T) {
	assert := assert.New(t)

	expected := map[string]int{
		"equal":                 rows,
		"not_equal":             0,
		"less_than":             0,
		"greater_than":          0,
		"less_than_or_equal":    rows,
		"greater_than_or_equal": rows,
	}

	for _, plain := range modes {
		env := testEnv(t, plain)
		for _, minor := range []types.MinorType{types.Int, types.BigInt, types.Float4, types.Float8} {
			for _, nullable := range []bool{false, true} {
				b := testBatch(minor, nullable)
				for name, want := range expected {
					if nullable {
						want = want / 2
					}
					got := runFilter(t, env, b, call(name, types.Bit, field(b, "a"), field(b, "b")))
					assert.Equal(want, got, "%s over %s nullable=%v plain=%v", name, minor, nullable, plain)
				}
			}
		}
	}
}

func TestShortCircuit(t *testing.T) {
	assert := assert.New(t)
	for _, plain := range modes {
		env := testEnv(t, plain)
		env.Registry.MustRegister(&fn.Descriptor{
			Name:    "boom",
			Args:    []types.MinorType{types.BigInt},
			Outputs: []fn.Output{{Name: "value", Type: types.Bit}},
			Body: func(in []fn.Input, out []string) []jen.Code {
				return []jen.Code{jen.Panic(jen.Lit("boom"))}
			},
		})

		b := vector.NewBatch(vector.NewSchema(
			vector.Field{Name: "a", Type: types.OptionalOf(types.BigInt)},
		), rows)
		for i := 0; i < rows; i++ {
			appendNull(b.Columns[0])
		}
		assert.Equal(0, runFilter(t, env, b, call("boom", types.Bit, field(b, "a"))))

		// a set value reaches the body, the panic is reported as an error
		b.Reset()
		b.Columns[0].(*vector.Column[int64]).Append(1)
		f, err := NewFilterer(context.Background(), call("boom", types.Bit, field(b, "a")), env)
		require.NoError(t, err)
		assert.NoError(f.Setup(b))
		_, err = f.Filter(1, vector.NewSelectionVector2(1))
		assert.Error(err)
		assert.Contains(err.Error(), "boom")
		f.Release()
	}
}

func TestFilterLogic(t *testing.T) {
	assert := assert.New(t)
	for _, plain := range modes {
		env := testEnv(t, plain)
		b := testBatch(types.BigInt, true)
		a := field(b, "a")
		bb := field(b, "b")

		lt50 := call("less_than", types.Bit, bb, &expr.Literal{Value: int64(50), T: types.RequiredOf(types.BigInt)})
		aIsNull := call("isnull", types.Bit, a)

		// b < 50 or a is null: rows 0..49 plus the odd rows above
		or := &expr.BooleanOp{Op: expr.BooleanOr, Args: []expr.Expr{lt50, aIsNull}, T: types.RequiredOf(types.Bit)}
		assert.Equal(75, runFilter(t, env, b, or))

		// a == b and b < 50: the even rows below 50
		eq := call("equal", types.Bit, a, bb)
		and := &expr.BooleanOp{Op: expr.BooleanAnd, Args: []expr.Expr{eq, lt50}, T: types.OptionalOf(types.Bit)}
		assert.Equal(25, runFilter(t, env, b, and))

		// null or true is true
		assert.Equal(rows, runFilter(t, env, b, &expr.BooleanOp{
			Op:   expr.BooleanOr,
			Args: []expr.Expr{eq, aIsNull},
			T:    types.OptionalOf(types.Bit),
		}))

		// if(a is null, b >= 0, false)
		cond := &expr.IfExpr{
			Cond: aIsNull,
			Then: call("greater_than_or_equal", types.Bit, bb, &expr.Literal{Value: int64(0), T: types.RequiredOf(types.BigInt)}),
			Else: &expr.Literal{Value: false, T: types.RequiredOf(types.Bit)},
			T:    types.RequiredOf(types.Bit),
		}
		assert.Equal(rows/2, runFilter(t, env, b, cond))
	}
}

func compareAll(t *testing.T, c Comparator, left, right *vector.Batch) map[Outcome]int {
	require.NoError(t, c.Setup(left, right))
	out := map[Outcome]int{}
	for i := 0; i < left.RecordCount(); i++ {
		o, err := c.Compare(i, i)
		require.NoError(t, err)
		out[o]++
	}
	return out
}

func TestComparator(t *testing.T) {
	assert := assert.New(t)
	for _, plain := range modes {
		env := testEnv(t, plain)

		b := testBatch(types.BigInt, false)
		c, err := NewComparator(context.Background(), []Key{{Expr: field(b, "a")}}, env)
		require.NoError(t, err)
		got := compareAll(t, c, b, b)
		assert.Equal(map[Outcome]int{Equal: rows}, got)
		c.Release()

		nb := testBatch(types.BigInt, true)
		c, err = NewComparator(context.Background(), []Key{{Expr: field(nb, "a")}}, env)
		require.NoError(t, err)
		got = compareAll(t, c, nb, nb)
		assert.Equal(map[Outcome]int{Equal: rows / 2, Unknown: rows / 2}, got)

		o, err := c.Compare(0, 2)
		assert.NoError(err)
		assert.Equal(Less, o)
		o, err = c.Compare(4, 2)
		assert.NoError(err)
		assert.Equal(Greater, o)
		c.Release()
	}
}

func TestComparatorKeys(t *testing.T) {
	assert := assert.New(t)
	env := testEnv(t, true)

	b := testBatch(types.VarChar, false)
	keys := []Key{
		{Expr: field(b, "a")},
		{Expr: field(b, "b"), Descending: true},
	}

	g, err := GenerateComparator(keys, env)
	require.NoError(t, err)
	// descending keys reach into the template
	assert.False(g.IsPlainGo())
	src, err := g.GeneratedCode()
	assert.NoError(err)
	assert.Contains(src, "g.flip(")
	assert.Contains(src, "right[0].([]string)")
	assert.Contains(src, "left[0].([]string)")

	c, err := NewComparator(context.Background(), keys, env)
	require.NoError(t, err)
	defer c.Release()
	assert.NoError(c.Setup(b, b))

	// "row1" < "row2" on a
	o, err := c.Compare(1, 2)
	assert.NoError(err)
	assert.Equal(Less, o)

	_, err = GenerateComparator(nil, env)
	assert.Error(err)
}

func TestCacheSharing(t *testing.T) {
	assert := assert.New(t)
	env := testEnv(t, false)
	b := testBatch(types.Float8, false)
	a := field(b, "a")

	for i := 0; i < 3; i++ {
		f, err := NewFilterer(context.Background(), call("equal", types.Bit, a, a), env)
		require.NoError(t, err)
		f.Release()
	}
	assert.Equal(1, env.Cache.Len())

	g, err := GenerateFilterer(call("equal", types.Bit, a, a), env)
	require.NoError(t, err)
	src, err := env.Compiler.Merge().Merged(g)
	assert.NoError(err)
	assert.Contains(src, "func (self *"+g.ClassName()+") FilterBatch(")
	assert.True(strings.HasPrefix(src, "// Code generated by colgen. DO NOT EDIT."))
}

func TestPersist(t *testing.T) {
	assert := assert.New(t)
	dir := t.TempDir()
	opts := options.Default().MustWith(options.PersistDir, dir)
	env, err := NewEnv(opts, nil)
	require.NoError(t, err)

	b := testBatch(types.BigInt, false)
	a := field(b, "a")
	g, err := GenerateFilterer(call("equal", types.Bit, a, a), env)
	require.NoError(t, err)
	_, err = env.Cache.Get(context.Background(), g)
	require.NoError(t, err)

	disk, err := compile.OpenDiskCache(dir)
	require.NoError(t, err)
	p, ok, err := disk.Get(g.Hash())
	assert.NoError(err)
	assert.True(ok)
	assert.Equal(g.ClassName(), p.Class)
	assert.Equal("Filterer", p.Interface)
	assert.Contains(p.Loaded, "FilterBatch")
}

func TestBadPredicate(t *testing.T) {
	assert := assert.New(t)
	env := testEnv(t, false)
	b := testBatch(types.BigInt, false)

	_, err := NewFilterer(context.Background(), field(b, "a"), env)
	assert.Error(err)
	_, err = NewFilterer(context.Background(), nil, env)
	assert.Error(err)
}

func TestBoundPredicate(t *testing.T) {
	assert := assert.New(t)
	for _, plain := range modes {
		env := testEnv(t, plain)
		b := testBatch(types.BigInt, true)

		for src, want := range map[string]int{
			"a == b and b < 50":        25,
			"a is null or b >= 90":     55,
			"a is not null":            rows / 2,
			"!(a < 10) and b % 3 == 0": 15,
			"b between 10 and 19":      10,
		} {
			pred, err := plan.Compile(src, b.Schema, env.Registry)
			require.NoError(t, err, src)
			assert.Equal(want, runFilter(t, env, b, pred), "%s plain=%v", src, plain)
		}
	}
}
