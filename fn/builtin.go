package fn

import (
	"github.com/dave/jennifer/jen"
	"github.com/dianpeng/colgen/types"
)

var numeric = []types.MinorType{
	types.BigInt,
	types.Int,
	types.Float4,
	types.Float8,
}

var allMinor = []types.MinorType{
	types.BigInt,
	types.Int,
	types.Float4,
	types.Float8,
	types.Bit,
	types.VarChar,
}

func single(t types.MinorType) []Output {
	return []Output{{Name: "value", Type: t}}
}

func assign(out string, v jen.Code) jen.Code {
	return jen.Id(out).Op("=").Add(v)
}

func binaryOp(op string) Body {
	return func(in []Input, out []string) []jen.Code {
		return []jen.Code{
			assign(out[0], jen.Add(in[0].Value()).Op(op).Add(in[1].Value())),
		}
	}
}

// compareTo orders two values as -1, 0 or 1
func compareTo(t types.MinorType) Body {
	return func(in []Input, out []string) []jen.Code {
		if t == types.Bit {
			return []jen.Code{
				jen.If(jen.Add(in[0].Value()).Op("==").Add(in[1].Value())).Block(
					assign(out[0], jen.Lit(int32(0))),
				).Else().If(jen.Op("!").Add(in[0].Value())).Block(
					assign(out[0], jen.Lit(int32(-1))),
				).Else().Block(
					assign(out[0], jen.Lit(int32(1))),
				),
			}
		}
		return []jen.Code{
			jen.If(jen.Add(in[0].Value()).Op("<").Add(in[1].Value())).Block(
				assign(out[0], jen.Lit(int32(-1))),
			).Else().If(jen.Add(in[0].Value()).Op(">").Add(in[1].Value())).Block(
				assign(out[0], jen.Lit(int32(1))),
			).Else().Block(
				assign(out[0], jen.Lit(int32(0))),
			),
		}
	}
}

// GoType is the Go element type holding values of t
func GoType(t types.MinorType) *jen.Statement {
	switch t {
	case types.BigInt:
		return jen.Int64()
	case types.Int:
		return jen.Int32()
	case types.Float4:
		return jen.Float32()
	case types.Float8:
		return jen.Float64()
	case types.Bit:
		return jen.Bool()
	default:
		return jen.String()
	}
}

func cast(to types.MinorType) Body {
	return func(in []Input, out []string) []jen.Code {
		return []jen.Code{
			assign(out[0], GoType(to).Call(in[0].Value())),
		}
	}
}

func registerComparisons(r *Registry) {
	ops := []struct {
		name string
		op   string
	}{
		{"equal", "=="},
		{"not_equal", "!="},
		{"less_than", "<"},
		{"less_than_or_equal", "<="},
		{"greater_than", ">"},
		{"greater_than_or_equal", ">="},
	}

	ordered := append(append([]types.MinorType{}, numeric...), types.VarChar)

	for _, o := range ops {
		for _, t := range ordered {
			r.MustRegister(&Descriptor{
				Name:    o.name,
				Args:    []types.MinorType{t, t},
				Outputs: single(types.Bit),
				Body:    binaryOp(o.op),
			})
		}
	}

	for _, o := range ops[:2] {
		r.MustRegister(&Descriptor{
			Name:    o.name,
			Args:    []types.MinorType{types.Bit, types.Bit},
			Outputs: single(types.Bit),
			Body:    binaryOp(o.op),
		})
	}

	for _, t := range allMinor {
		r.MustRegister(&Descriptor{
			Name:    "compare_to",
			Args:    []types.MinorType{t, t},
			Outputs: single(types.Int),
			Body:    compareTo(t),
		})
	}
}

func registerArithmetic(r *Registry) {
	ops := []struct {
		name string
		op   string
	}{
		{"add", "+"},
		{"subtract", "-"},
		{"multiply", "*"},
		{"divide", "/"},
	}
	for _, o := range ops {
		for _, t := range numeric {
			r.MustRegister(&Descriptor{
				Name:    o.name,
				Args:    []types.MinorType{t, t},
				Outputs: single(t),
				Body:    binaryOp(o.op),
			})
		}
	}

	for _, t := range []types.MinorType{types.BigInt, types.Int} {
		r.MustRegister(&Descriptor{
			Name:    "modulo",
			Args:    []types.MinorType{t, t},
			Outputs: single(t),
			Body:    binaryOp("%"),
		})

		r.MustRegister(&Descriptor{
			Name: "divmod",
			Args: []types.MinorType{t, t},
			Outputs: []Output{
				{Name: "quot", Type: t},
				{Name: "rem", Type: t},
			},
			Body: func(in []Input, out []string) []jen.Code {
				return []jen.Code{
					assign(out[0], jen.Add(in[0].Value()).Op("/").Add(in[1].Value())),
					assign(out[1], jen.Add(in[0].Value()).Op("%").Add(in[1].Value())),
				}
			},
		})
	}

	for _, t := range numeric {
		r.MustRegister(&Descriptor{
			Name:    "negative",
			Args:    []types.MinorType{t},
			Outputs: single(t),
			Body: func(in []Input, out []string) []jen.Code {
				return []jen.Code{assign(out[0], jen.Op("-").Add(in[0].Value()))}
			},
		})
	}
}

func registerLogic(r *Registry) {
	r.MustRegister(&Descriptor{
		Name:    "not",
		Args:    []types.MinorType{types.Bit},
		Outputs: single(types.Bit),
		Body: func(in []Input, out []string) []jen.Code {
			return []jen.Code{assign(out[0], jen.Op("!").Add(in[0].Value()))}
		},
	})

	for _, t := range allMinor {
		r.MustRegister(&Descriptor{
			Name:         "isnull",
			Args:         []types.MinorType{t},
			Outputs:      single(types.Bit),
			NullHandling: Internal,
			Body: func(in []Input, out []string) []jen.Code {
				return []jen.Code{assign(out[0], jen.Op("!").Parens(in[0].IsSet()))}
			},
		})
		r.MustRegister(&Descriptor{
			Name:         "isnotnull",
			Args:         []types.MinorType{t},
			Outputs:      single(types.Bit),
			NullHandling: Internal,
			Body: func(in []Input, out []string) []jen.Code {
				return []jen.Code{assign(out[0], in[0].IsSet())}
			},
		})
	}
}

func registerCasts(r *Registry) {
	casts := []struct {
		name string
		to   types.MinorType
	}{
		{"cast_bigint", types.BigInt},
		{"cast_int", types.Int},
		{"cast_float4", types.Float4},
		{"cast_float8", types.Float8},
	}
	for _, c := range casts {
		for _, from := range numeric {
			if from == c.to {
				continue
			}
			r.MustRegister(&Descriptor{
				Name:    c.name,
				Args:    []types.MinorType{from},
				Outputs: single(c.to),
				Body:    cast(c.to),
			})
		}
	}
}

func registerStrings(r *Registry) {
	r.MustRegister(&Descriptor{
		Name:    "concat",
		Args:    []types.MinorType{types.VarChar, types.VarChar},
		Outputs: single(types.VarChar),
		Body:    binaryOp("+"),
	})

	r.MustRegister(&Descriptor{
		Name:    "length",
		Args:    []types.MinorType{types.VarChar},
		Outputs: single(types.Int),
		Body: func(in []Input, out []string) []jen.Code {
			return []jen.Code{
				assign(out[0], jen.Int32().Call(jen.Qual("unicode/utf8", "RuneCountInString").Call(in[0].Value()))),
			}
		},
	})
}

// Builtin returns a fresh registry holding the builtin catalog. Callers may
// register more functions into it before handing it to a code generator.
func Builtin() *Registry {
	r := NewRegistry()
	registerComparisons(r)
	registerArithmetic(r)
	registerLogic(r)
	registerCasts(r)
	registerStrings(r)
	return r
}

// CastName returns the cast function converting into t
func CastName(t types.MinorType) string {
	return "cast_" + t.String()
}
