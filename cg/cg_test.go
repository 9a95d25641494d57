package cg

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/dave/jennifer/jen"
	"github.com/dianpeng/colgen/expr"
	"github.com/dianpeng/colgen/fn"
	"github.com/dianpeng/colgen/options"
	"github.com/dianpeng/colgen/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func testDescriptor() *TemplateDescriptor {
	return &TemplateDescriptor{
		Interface: "Filterer",
		Template: TypeRef{
			Path: "github.com/dianpeng/colgen/exec/templates/filterer",
			Name: "Template",
		},
		HooksField: "Hooks",
		Signature: &Signature{
			Hooks: []Method{
				{
					Name:   "DoSetup",
					Params: []Param{{Name: "incoming", Type: jen.Index().Interface()}},
				},
				{
					Name:    "DoEval",
					Params:  []Param{{Name: "inIndex", Type: jen.Int()}},
					Results: []jen.Code{jen.Bool()},
				},
			},
			Entries: []Method{
				{
					Name:   "Setup",
					Params: []Param{{Name: "incoming", Type: jen.Index().Interface()}},
				},
				{
					Name: "FilterBatch",
					Params: []Param{
						{Name: "recordCount", Type: jen.Int()},
						{Name: "sel", Type: jen.Index().Int()},
					},
					Results: []jen.Code{jen.Int()},
				},
			},
		},
	}
}

func col(name string, index int, t types.MajorType) *expr.FieldRef {
	return &expr.FieldRef{Name: name, Index: index, T: t}
}

func lit(v interface{}) *expr.Literal {
	l, err := expr.NewLiteral(v)
	if err != nil {
		panic(err.Error())
	}
	return l
}

func call(name string, t types.MinorType, args ...expr.Expr) *expr.FunctionCall {
	c := &expr.FunctionCall{Name: name, Args: args}
	c.T = types.RequiredOf(t)
	if expr.AnyOptional(args...) {
		c.T = c.T.AsOptional()
	}
	return c
}

func newGen(t *testing.T, def *TemplateDescriptor, reg *fn.Registry) *CodeGenerator {
	g, err := NewCodeGenerator(def, reg, options.Default())
	require.NoError(t, err)
	return g
}

// predicate translates e into DoEval and returns its value
func predicate(t *testing.T, g *CodeGenerator, e expr.Expr) {
	h, err := g.Root().AddExpr(e)
	require.NoError(t, err)
	ret := h.Value()
	if h.IsOptional() {
		ret = jen.Add(h.IsSet()).Op("&&").Add(ret)
	}
	require.NoError(t, g.Root().Emit(jen.Return(ret)))
}

func render(t *testing.T, g *CodeGenerator) string {
	require.NoError(t, g.Generate())
	src, err := g.GeneratedCode()
	require.NoError(t, err)
	return src
}

func TestSequence(t *testing.T) {
	assert := assert.New(t)
	def := testDescriptor()
	reg := fn.Builtin()

	const n = 64
	var mu sync.Mutex
	seen := []int{}

	eg := &errgroup.Group{}
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			g, err := NewCodeGenerator(def, reg, options.Default())
			if err != nil {
				return err
			}
			s, err := strconv.Atoi(strings.TrimPrefix(g.ClassName(), "FiltererGen"))
			if err != nil {
				return err
			}
			mu.Lock()
			seen = append(seen, s)
			mu.Unlock()
			return nil
		})
	}
	assert.NoError(eg.Wait())

	sort.Ints(seen)
	assert.Len(seen, n)
	for i, s := range seen {
		assert.Equal(i, s)
	}
	assert.Equal(int64(n), def.NextSequence())
}

func TestNewCodeGenerator(t *testing.T) {
	assert := assert.New(t)
	def := testDescriptor()
	reg := fn.Builtin()

	g0 := newGen(t, def, reg)
	g1 := newGen(t, def, reg)
	assert.Equal("FiltererGen0", g0.ClassName())
	assert.Equal("FiltererGen1", g1.ClassName())
	assert.Equal(GeneratedPackage+".FiltererGen1", g1.MaterializedClassName())
	assert.Equal("FiltererGen1FilterBatch", g1.EntryFunc("FilterBatch"))

	{
		bad := testDescriptor()
		bad.Interface = ""
		_, err := NewCodeGenerator(bad, reg, options.Default())
		assert.True(errors.Is(err, ErrConfiguration))
		assert.Equal(int64(0), bad.NextSequence())
	}
	{
		bad := testDescriptor()
		bad.Signature = nil
		_, err := NewCodeGenerator(bad, reg, options.Default())
		assert.True(errors.Is(err, ErrConfiguration))
	}
	{
		_, err := NewCodeGenerator(def, nil, options.Default())
		assert.True(errors.Is(err, ErrConfiguration))
	}
	{
		// the eval hook does not take the read index
		m := NewMappingSet("row", "", "incoming", "", &GeneratorMapping{Setup: "DoSetup", Eval: "DoEval"})
		_, err := NewCodeGeneratorWithMapping(m, def, reg, options.Default())
		assert.True(errors.Is(err, ErrConfiguration))
	}

	// failed constructions do not consume sequence numbers
	assert.Equal(int64(2), def.NextSequence())
}

func TestPlainGoDecision(t *testing.T) {
	assert := assert.New(t)
	def := testDescriptor()
	reg := fn.Builtin()

	for _, c := range []struct {
		capable bool
		prefer  bool
		plain   bool
	}{
		{false, false, false},
		{false, true, false},
		{true, false, false},
		{true, true, true},
	} {
		opts := options.Default().MustWith(options.PreferPlainGo, c.prefer)
		g, err := NewCodeGenerator(def, reg, opts)
		assert.NoError(err)
		g.PlainGoCapable(c.capable)
		assert.Equal(c.plain, g.IsPlainGo())

		src := render(t, g)
		assert.Equal(c.plain, strings.Contains(src, "filterer.Template"), src)

		// frozen once generated
		g.PlainGoCapable(!c.capable)
		g.PreferPlainGo(!c.prefer)
		assert.Equal(c.plain, g.IsPlainGo())
	}

	{
		g := newGen(t, def, reg)
		g.PlainGoCapable(true)
		assert.False(g.IsPlainGo())
		g.PreferPlainGo(true)
		assert.True(g.IsPlainGo())
	}
}

func TestCanonical(t *testing.T) {
	assert := assert.New(t)
	def := testDescriptor()
	reg := fn.Builtin()
	a := col("a", 0, types.RequiredOf(types.BigInt))

	g0 := newGen(t, def, reg)
	g1 := newGen(t, def, reg)
	g2 := newGen(t, def, reg)

	assert.False(g0.Equal(g1))

	predicate(t, g0, call("equal", types.Bit, a, lit(int64(5))))
	predicate(t, g1, call("equal", types.Bit, a, lit(int64(5))))
	predicate(t, g2, call("less_than", types.Bit, a, lit(int64(5))))

	s0 := render(t, g0)
	s1 := render(t, g1)
	render(t, g2)

	assert.NotEqual(s0, s1)
	assert.True(g0.Equal(g1))
	assert.True(g1.Equal(g0))
	assert.Equal(g0.Hash(), g1.Hash())
	assert.False(g0.Equal(g2))

	generic, err := g0.GenerifiedCode()
	assert.NoError(err)
	assert.NotContains(generic, g0.ClassName())
	assert.Contains(generic, "type GenericGenerated struct")

	other := testDescriptor()
	g3 := newGen(t, other, reg)
	predicate(t, g3, call("equal", types.Bit, a, lit(int64(5))))
	render(t, g3)
	assert.False(g0.Equal(g3))

	// the hash only depends on the template identity and the logic, a
	// descriptor rebuilt by a later process finds the same disk entry
	assert.Equal(g0.Hash(), g3.Hash())
	assert.NotEqual(g0.Hash(), g2.Hash())

	moved := testDescriptor()
	moved.Template.Path = "example.com/elsewhere"
	g4 := newGen(t, moved, reg)
	predicate(t, g4, call("equal", types.Bit, a, lit(int64(5))))
	render(t, g4)
	assert.NotEqual(g0.Hash(), g4.Hash())
}

func TestStateError(t *testing.T) {
	assert := assert.New(t)
	g := newGen(t, testDescriptor(), fn.Builtin())

	_, err := g.GeneratedCode()
	assert.True(errors.Is(err, ErrState))
	_, err = g.GenerifiedCode()
	assert.True(errors.Is(err, ErrState))

	predicate(t, g, lit(true))
	assert.NoError(g.Generate())
	assert.True(errors.Is(g.Generate(), ErrState))

	root := g.Root()
	assert.True(errors.Is(root.Emit(jen.Return(jen.True())), ErrState))
	_, err = root.AddExpr(lit(true))
	assert.True(errors.Is(err, ErrState))
	_, err = root.DeclareField("x", jen.Int())
	assert.True(errors.Is(err, ErrState))
	_, err = root.DeclareLocal("x")
	assert.True(errors.Is(err, ErrState))
	_, err = root.InnerClass("Inner", nil, nil)
	assert.True(errors.Is(err, ErrState))
	assert.True(errors.Is(root.NestEvalBlock(), ErrState))
	assert.True(errors.Is(g.SetMappingSet(DefaultMapping()), ErrState))

	// a second flush does nothing
	assert.NoError(root.flush())
}

func TestUnknownFunction(t *testing.T) {
	assert := assert.New(t)
	g := newGen(t, testDescriptor(), fn.Builtin())

	a := col("a", 0, types.RequiredOf(types.BigInt))
	_, err := g.Root().AddExpr(call("frobnicate", types.Bit, a))
	assert.True(errors.Is(err, ErrCompilation))
	assert.Contains(err.Error(), "frobnicate")

	var ce *CompilationError
	assert.True(errors.As(err, &ce))
	assert.Equal("frobnicate(`a`)", ce.Expr)

	// known name, unknown overload
	_, err = g.Root().AddExpr(call("equal", types.Bit, a, lit("x")))
	assert.True(errors.Is(err, ErrCompilation))

	// unknown output
	c := call("divmod", types.BigInt, a, lit(int64(2)))
	c.Output = "nope"
	_, err = g.Root().AddExpr(c)
	assert.True(errors.Is(err, ErrCompilation))

	_, err = g.Root().AddExpr(expr.NullOf(types.Late))
	assert.True(errors.Is(err, ErrCompilation))
}

func TestShortCircuit(t *testing.T) {
	assert := assert.New(t)
	reg := fn.Builtin()
	reg.MustRegister(&fn.Descriptor{
		Name:    "boom",
		Args:    []types.MinorType{types.BigInt},
		Outputs: []fn.Output{{Name: "value", Type: types.Bit}},
		Body: func(in []fn.Input, out []string) []jen.Code {
			return []jen.Code{jen.Panic(jen.Lit("boom"))}
		},
	})

	g := newGen(t, testDescriptor(), reg)
	a := col("a", 0, types.OptionalOf(types.BigInt))
	predicate(t, g, call("boom", types.Bit, a))
	src := render(t, g)

	guard := strings.Index(src, "if g.vv0Valid[inIndex] {")
	body := strings.Index(src, `panic("boom")`)
	assert.True(guard >= 0, src)
	assert.True(body > guard, src)
	assert.Contains(src, "g.vv0Valid = incoming[1].([]bool)")
	assert.Contains(src, "g.vv0 = incoming[0].([]int64)")
}

func TestNullIfNullNesting(t *testing.T) {
	assert := assert.New(t)
	g := newGen(t, testDescriptor(), fn.Builtin())

	a := col("a", 0, types.OptionalOf(types.BigInt))
	b := col("b", 1, types.OptionalOf(types.BigInt))
	predicate(t, g, call("less_than", types.Bit, a, b))
	src := render(t, g)

	ga := strings.Index(src, "if g.vv0Valid[inIndex] {")
	gb := strings.Index(src, "if g.vv1Valid[inIndex] {")
	op := strings.Index(src, "out0 = g.vv0[inIndex] < g.vv1[inIndex]")
	set := strings.Index(src, "out0Set = true")
	assert.True(ga >= 0 && gb > ga && op > gb && set > op, src)
	assert.Contains(src, "return out0Set && out0")

	// the same column read twice is bound once
	g = newGen(t, testDescriptor(), fn.Builtin())
	predicate(t, g, call("equal", types.Bit, a, a))
	src = render(t, g)
	assert.Equal(1, strings.Count(src, "g.vv0 = incoming[0]"))
	assert.NotContains(src, "vv1")
}

func TestMultiOutput(t *testing.T) {
	assert := assert.New(t)
	g := newGen(t, testDescriptor(), fn.Builtin())

	a := col("a", 0, types.RequiredOf(types.BigInt))
	rem := call("divmod", types.BigInt, a, lit(int64(3)))
	rem.Output = "rem"
	predicate(t, g, call("equal", types.Bit, rem, lit(int64(1))))
	src := render(t, g)

	// outputs of equal are declared before the ones of divmod
	assert.Contains(src, "out2 = g.vv0[inIndex] % int64(3)")
	// the quotient is never read
	assert.Contains(src, "_ = out1")
	assert.NotContains(src, "_ = out2")
	assert.Contains(src, "out0 = out2 == int64(1)")
}

func TestBooleanLogic(t *testing.T) {
	assert := assert.New(t)

	{
		g := newGen(t, testDescriptor(), fn.Builtin())
		a := col("a", 0, types.RequiredOf(types.Bit))
		b := col("b", 1, types.RequiredOf(types.Bit))
		predicate(t, g, &expr.BooleanOp{
			Op:   expr.BooleanAnd,
			Args: []expr.Expr{a, b},
			T:    types.RequiredOf(types.Bit),
		})
		src := render(t, g)

		// the right side is only read when the left one is true
		guard := strings.Index(src, "if !g.vv0[inIndex] {")
		bind := strings.Index(src, "out0 = g.vv1[inIndex]")
		assert.True(guard >= 0 && bind > guard, src)
		assert.NotContains(src, "out0Set")
	}

	{
		g := newGen(t, testDescriptor(), fn.Builtin())
		a := col("a", 0, types.OptionalOf(types.Bit))
		b := col("b", 1, types.RequiredOf(types.Bit))
		predicate(t, g, &expr.BooleanOp{
			Op:   expr.BooleanOr,
			Args: []expr.Expr{a, b},
			T:    types.OptionalOf(types.Bit),
		})
		src := render(t, g)

		assert.Contains(src, "if g.vv0Valid[inIndex] && g.vv0[inIndex] {")
		assert.Contains(src, "} else if g.vv0Valid[inIndex] {")
		assert.Contains(src, "return out0Set && out0")
	}

	{
		g := newGen(t, testDescriptor(), fn.Builtin())
		a := col("a", 0, types.RequiredOf(types.BigInt))
		_, err := g.Root().AddExpr(&expr.BooleanOp{
			Op:   expr.BooleanAnd,
			Args: []expr.Expr{a, lit(true)},
			T:    types.RequiredOf(types.Bit),
		})
		assert.True(errors.Is(err, ErrCompilation))
	}
}

func TestIfExpr(t *testing.T) {
	assert := assert.New(t)
	g := newGen(t, testDescriptor(), fn.Builtin())

	c := col("c", 0, types.OptionalOf(types.Bit))
	v := col("v", 1, types.RequiredOf(types.BigInt))
	predicate(t, g, call("greater_than", types.Bit,
		&expr.IfExpr{Cond: c, Then: v, Else: expr.NullOf(types.BigInt), T: types.OptionalOf(types.BigInt)},
		lit(int64(0)),
	))
	src := render(t, g)

	assert.Contains(src, "if g.vv0Valid[inIndex] && g.vv0[inIndex] {")
	assert.Contains(src, "out1 = g.vv1[inIndex]")
	assert.Contains(src, "out1Set = true")
	assert.Contains(src, "out1Set = false")

	g = newGen(t, testDescriptor(), fn.Builtin())
	_, err := g.Root().AddExpr(&expr.IfExpr{Cond: c, Then: v, Else: lit("x"), T: types.RequiredOf(types.BigInt)})
	assert.True(errors.Is(err, ErrCompilation))
}

func TestLiteral(t *testing.T) {
	assert := assert.New(t)
	g := newGen(t, testDescriptor(), fn.Builtin())
	root := g.Root()

	for _, c := range []struct {
		v    interface{}
		code string
	}{
		{int64(5), "int64(5)"},
		{int32(5), "int32(5)"},
		{float64(1.5), "1.5"},
		{"s", `"s"`},
		{true, "true"},
	} {
		h, err := root.AddExpr(lit(c.v))
		assert.NoError(err)
		assert.False(h.IsOptional())
		assert.Equal(c.code, h.Value().GoString())
		assert.Equal("true", h.IsSet().GoString())
	}

	h, err := root.AddExpr(expr.NullOf(types.VarChar))
	assert.NoError(err)
	assert.True(h.IsOptional())
	assert.Equal("false", h.IsSet().GoString())
	assert.Equal(types.OptionalOf(types.VarChar), h.MajorType())
}

func TestInsertionOrder(t *testing.T) {
	assert := assert.New(t)
	g := newGen(t, testDescriptor(), fn.Builtin())
	root := g.Root()

	assert.NoError(root.Emit(jen.Id("_").Op("=").Lit(1)))
	assert.NoError(root.EmitTo(BlockSetup, jen.Id("_").Op("=").Lit(10)))
	assert.NoError(root.Emit(jen.Id("_").Op("=").Lit(2)))
	assert.NoError(root.Emit(jen.Return(jen.True())))

	name, err := root.DeclareField("count", jen.Int64())
	assert.NoError(err)
	assert.Equal("count0", name)
	name, err = root.DeclareField("count", jen.Int64())
	assert.NoError(err)
	assert.Equal("count1", name)

	src := render(t, g)
	setup := strings.Index(src, "DoSetup(")
	ten := strings.Index(src, "_ = 10")
	eval := strings.Index(src, "DoEval(")
	one := strings.Index(src, "_ = 1\n")
	two := strings.Index(src, "_ = 2")
	assert.True(setup < ten && ten < eval && eval < one && one < two, src)
	assert.True(strings.Index(src, "count0 int64") < strings.Index(src, "count1 int64"), src)
}

func TestGeneratedUnit(t *testing.T) {
	assert := assert.New(t)
	g := newGen(t, testDescriptor(), fn.Builtin())
	src := render(t, g)

	assert.True(strings.HasPrefix(src, "// Code generated by colgen. DO NOT EDIT."))
	assert.Contains(src, "package generated")
	assert.Contains(src, "type FiltererGen0 struct")
	assert.Contains(src, "func (g *FiltererGen0) DoSetup(incoming []interface{}) {")
	assert.Contains(src, "func (g *FiltererGen0) DoEval(inIndex int) bool {")
	assert.Contains(src, `panic("FiltererGen0.DoEval has no generated body")`)

	assert.Contains(src, "func FiltererGen0New() int {")
	assert.Contains(src, "g.Hooks = g")
	assert.Contains(src, "func FiltererGen0Release(h int) {")
	assert.Contains(src, "func FiltererGen0Setup(h int, incoming []interface{}) {")
	assert.Contains(src, "func FiltererGen0FilterBatch(h int, recordCount int, sel []int) int {")
	assert.Contains(src, "return FiltererGen0Get(h).FilterBatch(recordCount, sel)")

	// released handles go back to the free list and are handed out again
	assert.Contains(src, "FiltererGen0Free = append(FiltererGen0Free, h)")
	assert.Contains(src, "if n := len(FiltererGen0Free); n > 0 {")

	// binders resolve the instance once
	assert.Contains(src, "func FiltererGen0BindFilterBatch(h int) func(recordCount int, sel []int) int {")
	assert.Contains(src, "inst := FiltererGen0Get(h)")
	assert.Contains(src, "return inst.FilterBatch(recordCount, sel)")
	assert.Equal("FiltererGen0BindSetup", g.BindFunc("Setup"))
}

func TestInnerClass(t *testing.T) {
	assert := assert.New(t)
	g := newGen(t, testDescriptor(), fn.Builtin())
	root := g.Root()

	inner, err := root.InnerClass("Inner", nil, nil)
	assert.NoError(err)
	assert.Equal("FiltererGen0Inner", inner.Name())
	assert.Equal(root, inner.Parent())

	_, err = root.InnerClass("Inner", nil, nil)
	assert.True(errors.Is(err, ErrDuplicateDefinition))

	_, err = root.InnerClass("", nil, nil)
	assert.True(errors.Is(err, ErrConfiguration))

	deeper, err := inner.InnerClass("Leaf", nil, nil)
	assert.NoError(err)
	assert.Equal("FiltererGen0InnerLeaf", deeper.Name())

	assert.NoError(inner.Emit(jen.Return(jen.False())))

	src := render(t, g)
	r := strings.Index(src, "type FiltererGen0 struct")
	i := strings.Index(src, "type FiltererGen0Inner struct")
	l := strings.Index(src, "type FiltererGen0InnerLeaf struct")
	assert.True(r >= 0 && i > r && l > i, src)
	assert.Contains(src, "func (g *FiltererGen0Inner) DoEval(inIndex int) bool {\n\treturn false\n}")
	assert.True(inner.IsFlushed())
	assert.True(deeper.IsFlushed())

	// only the root unit gets a function table
	assert.NotContains(src, "FiltererGen0InnerNew")
}

func TestInnerClassExtends(t *testing.T) {
	assert := assert.New(t)
	g := newGen(t, testDescriptor(), fn.Builtin())
	root := g.Root()

	_, err := root.InnerClass("Bad", nil, &TypeRef{Path: "sync"})
	assert.True(errors.Is(err, ErrConfiguration))

	base := &TypeRef{Path: "sync", Name: "Mutex"}
	lock, err := root.InnerClass("Lock", nil, base)
	assert.NoError(err)
	base.Name = "RWMutex"
	assert.Equal(TypeRef{Path: "sync", Name: "Mutex"}, *lock.Extends())

	plain, err := root.InnerClass("Plain", nil, nil)
	assert.NoError(err)
	assert.Nil(plain.Extends())
	assert.Nil(root.Extends())

	assert.NoError(root.Emit(jen.Id("l").Op(":=").Op("&").Id(lock.Name()).Values()))
	assert.NoError(root.Emit(jen.Id("l").Dot("Lock").Call()))
	assert.NoError(root.Emit(jen.Return(jen.True())))

	src := render(t, g)
	assert.Contains(src, "type FiltererGen0Lock struct {\n\tsync.Mutex\n}")
	assert.Contains(src, "type FiltererGen0Plain struct{}")
	assert.Contains(src, "l := &FiltererGen0Lock{}")
}

func TestChildMapping(t *testing.T) {
	assert := assert.New(t)
	ms := NewMappingSet("inIndex", "", "incoming", "",
		&GeneratorMapping{Setup: "DoSetup", Eval: "DoEval"},
		&GeneratorMapping{Setup: "StepSetup", Eval: "Step"},
	)
	g, err := NewCodeGeneratorWithMapping(ms, testDescriptor(), fn.Builtin(), options.Default())
	require.NoError(t, err)
	root := g.Root()

	step, err := root.InnerClass("Step", &Signature{Hooks: []Method{
		{Name: "StepSetup", Params: []Param{{Name: "incoming", Type: jen.Index().Interface()}}},
		{Name: "Step", Params: []Param{{Name: "inIndex", Type: jen.Int()}}, Results: []jen.Code{jen.Bool()}},
	}}, nil)
	require.NoError(t, err)

	// the outer hooks are not reachable from the nested unit and back
	assert.True(errors.Is(step.Emit(jen.Return(jen.False())), ErrConfiguration))

	a := col("a", 0, types.RequiredOf(types.BigInt))
	assert.NoError(g.InChildMapping(func() error {
		assert.Equal("Step", ms.CurrentMethod())
		h, err := step.AddExpr(call("less_than", types.Bit, a, lit(int64(5))))
		if err != nil {
			return err
		}
		return step.Emit(jen.Return(h.Value()))
	}))
	assert.Equal("DoEval", ms.CurrentMethod())

	err = g.InChildMapping(func() error {
		return g.InChildMapping(func() error { return nil })
	})
	assert.True(errors.Is(err, ErrConfiguration))
	assert.Equal("DoEval", ms.CurrentMethod())
	assert.Error(ms.ExitChild())

	assert.NoError(root.Emit(jen.Return(jen.True())))
	src := render(t, g)
	assert.Contains(src, "func (g *FiltererGen0Step) StepSetup(incoming []interface{}) {\n\tg.vv0 = incoming[0].([]int64)\n}")
	assert.Contains(src, "func (g *FiltererGen0Step) Step(inIndex int) bool {")
	assert.Contains(src, "g.vv0[inIndex] < int64(5)")
	assert.Contains(src, "func (g *FiltererGen0) DoEval(inIndex int) bool {\n\treturn true\n}")
}

func TestNesting(t *testing.T) {
	assert := assert.New(t)
	g := newGen(t, testDescriptor(), fn.Builtin())
	root := g.Root()

	_, err := root.UnnestEvalBlock()
	assert.True(errors.Is(err, ErrState))

	assert.NoError(root.NestEvalBlock())
	assert.True(errors.Is(g.Generate(), ErrState))
}

func TestLogger(t *testing.T) {
	assert := assert.New(t)
	l := zap.NewExample()
	g, err := NewCodeGenerator(testDescriptor(), fn.Builtin(), nil, WithLogger(l))
	assert.NoError(err)
	assert.Equal(l, g.Logger())
	assert.False(g.IsPlainGo())
}
