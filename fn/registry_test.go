package fn

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dave/jennifer/jen"
	"github.com/dianpeng/colgen/types"
	"github.com/stretchr/testify/assert"
)

type fakeInput struct {
	name string
	t    types.MajorType
}

func (self *fakeInput) Value() *jen.Statement { return jen.Id(self.name) }
func (self *fakeInput) IsSet() *jen.Statement {
	if !self.t.IsNullable() {
		return jen.True()
	}
	return jen.Id(self.name + "Set")
}
func (self *fakeInput) MajorType() types.MajorType { return self.t }

func render(code []jen.Code) string {
	return fmt.Sprintf("%#v", jen.Block(code...))
}

func inputs(t types.MajorType, names ...string) []Input {
	out := []Input{}
	for _, n := range names {
		out = append(out, &fakeInput{name: n, t: t})
	}
	return out
}

func TestLookup(t *testing.T) {
	assert := assert.New(t)
	r := Builtin()

	bi := types.RequiredOf(types.BigInt)
	nbi := types.OptionalOf(types.BigInt)
	f4 := types.RequiredOf(types.Float4)

	d, ok := r.Lookup("equal", []types.MajorType{bi, nbi})
	assert.True(ok)
	assert.Equal(types.Bit, d.Outputs[0].Type)
	assert.Equal(NullIfNull, d.NullHandling)

	_, ok = r.Lookup("equal", []types.MajorType{bi, f4})
	assert.False(ok)

	_, ok = r.Lookup("less_than", []types.MajorType{types.RequiredOf(types.Bit), types.RequiredOf(types.Bit)})
	assert.False(ok)

	_, ok = r.Lookup("nope", []types.MajorType{bi})
	assert.False(ok)
	assert.False(r.Has("nope"))
	assert.True(r.Has("compare_to"))

	d, ok = r.Lookup("isnull", []types.MajorType{types.OptionalOf(types.VarChar)})
	assert.True(ok)
	assert.Equal(Internal, d.NullHandling)

	_, ok = r.Lookup(CastName(types.Float8), []types.MajorType{bi})
	assert.True(ok)
	_, ok = r.Lookup(CastName(types.Float8), []types.MajorType{types.RequiredOf(types.Float8)})
	assert.False(ok)
}

func TestRegister(t *testing.T) {
	assert := assert.New(t)
	r := NewRegistry()

	d := &Descriptor{
		Name:    "boom",
		Outputs: single(types.Bit),
		Body: func(in []Input, out []string) []jen.Code {
			return []jen.Code{jen.Panic(jen.Lit("boom"))}
		},
	}
	assert.Nil(r.Register(d))
	assert.Error(r.Register(d))
	assert.Error(r.Register(&Descriptor{Name: "x"}))
	assert.Equal([]string{"boom"}, r.Names())
	assert.Equal([][]types.MinorType{nil}, r.Overloads("boom"))
}

func TestOutputIndex(t *testing.T) {
	assert := assert.New(t)
	r := Builtin()

	d, ok := r.Lookup("divmod", []types.MajorType{types.RequiredOf(types.Int), types.RequiredOf(types.Int)})
	assert.True(ok)

	idx, ok := d.OutputIndex("rem")
	assert.True(ok)
	assert.Equal(1, idx)

	idx, ok = d.OutputIndex("")
	assert.True(ok)
	assert.Equal(0, idx)

	_, ok = d.OutputIndex("nope")
	assert.False(ok)
}

func TestBody(t *testing.T) {
	assert := assert.New(t)
	r := Builtin()
	bi := types.RequiredOf(types.BigInt)

	{
		d, _ := r.Lookup("less_than", []types.MajorType{bi, bi})
		src := render(d.Body(inputs(bi, "a", "b"), []string{"out0"}))
		assert.Contains(src, "out0 = a < b")
	}
	{
		d, _ := r.Lookup("divmod", []types.MajorType{bi, bi})
		src := render(d.Body(inputs(bi, "a", "b"), []string{"q", "m"}))
		assert.Contains(src, "q = a / b")
		assert.Contains(src, "m = a % b")
	}
	{
		d, _ := r.Lookup("compare_to", []types.MajorType{bi, bi})
		src := render(d.Body(inputs(bi, "a", "b"), []string{"c"}))
		assert.Contains(src, "if a < b")
		assert.Contains(src, "c = int32(-1)")
	}
	{
		nv := types.OptionalOf(types.VarChar)
		d, _ := r.Lookup("isnotnull", []types.MajorType{nv})
		src := render(d.Body(inputs(nv, "s"), []string{"o"}))
		assert.Contains(src, "o = sSet")
	}
	{
		vc := types.RequiredOf(types.VarChar)
		d, _ := r.Lookup("length", []types.MajorType{vc})
		src := render(d.Body(inputs(vc, "s"), []string{"o"}))
		assert.True(strings.Contains(src, "utf8.RuneCountInString(s)"), src)
	}
	{
		d, _ := r.Lookup(CastName(types.BigInt), []types.MajorType{types.RequiredOf(types.Float8)})
		src := render(d.Body(inputs(types.RequiredOf(types.Float8), "f"), []string{"o"}))
		assert.Contains(src, "o = int64(f)")
	}
}
