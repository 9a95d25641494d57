package exec

import (
	"context"
	"fmt"

	"github.com/dave/jennifer/jen"
	"github.com/dianpeng/colgen/cg"
	"github.com/dianpeng/colgen/compile"
	"github.com/dianpeng/colgen/expr"
	"github.com/dianpeng/colgen/vector"
	"go.uber.org/zap"
)

// Outcome of comparing two rows. Unknown means a key is null on at least
// one side.
type Outcome int

const (
	Unknown Outcome = iota
	Less
	Equal
	Greater
)

func (self Outcome) String() string {
	switch self {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return "unknown"
	}
}

// Key is one sort key, evaluated once against each side
type Key struct {
	Expr       expr.Expr
	Descending bool
}

type Comparator interface {
	Setup(left, right *vector.Batch) error
	Compare(leftIndex, rightIndex int) (Outcome, error)
	Release()
}

// GenerateComparator renders the unit comparing rows on keys. Descending
// keys call a helper private to the template, such units can only be
// merged.
func GenerateComparator(keys []Key, env *Env) (*cg.CodeGenerator, error) {
	if len(keys) == 0 {
		return nil, &cg.ConfigurationError{Msg: "comparator without key"}
	}

	left := comparatorMapping("left")
	right := comparatorMapping("right")

	g, err := cg.NewCodeGeneratorWithMapping(left, ComparatorDefinition, env.Registry, env.Options, cg.WithLogger(env.Log))
	if err != nil {
		return nil, err
	}

	capable := true
	root := g.Root()
	for _, k := range keys {
		if err := g.SetMappingSet(left); err != nil {
			return nil, err
		}
		lh, err := root.AddExpr(k.Expr)
		if err != nil {
			return nil, err
		}
		if err := g.SetMappingSet(right); err != nil {
			return nil, err
		}
		rh, err := root.AddExpr(k.Expr)
		if err != nil {
			return nil, err
		}

		c, err := root.AddCall("compare_to", lh, rh)
		if err != nil {
			return nil, &cg.CompilationError{Expr: expr.String(k.Expr), Msg: err.Error()}
		}

		if c.IsOptional() {
			if err := root.Emit(jen.If(jen.Op("!").Add(c.IsSet())).Block(
				jen.Return(jen.Lit(0), jen.False()),
			)); err != nil {
				return nil, err
			}
		}

		order := jen.Int().Call(c.Value())
		if k.Descending {
			capable = false
			order = root.Self().Dot("flip").Call(order)
		}
		if err := root.Emit(jen.If(jen.Id("v").Op(":=").Add(order), jen.Id("v").Op("!=").Lit(0)).Block(
			jen.Return(jen.Id("v"), jen.True()),
		)); err != nil {
			return nil, err
		}
	}
	if err := root.Emit(jen.Return(jen.Lit(0), jen.True())); err != nil {
		return nil, err
	}

	g.PlainGoCapable(capable)
	if err := g.Generate(); err != nil {
		return nil, err
	}
	return g, nil
}

func NewComparator(ctx context.Context, keys []Key, env *Env) (Comparator, error) {
	g, err := GenerateComparator(keys, env)
	if err != nil {
		return nil, err
	}
	class, err := env.Cache.Get(ctx, g)
	if err != nil {
		return nil, err
	}

	inst := class.NewInstance()
	c := &comparator{name: class.Name, inst: inst}

	var ok bool
	x, found := inst.Func("Setup")
	c.setup, ok = x.(func([]interface{}, []interface{}))
	if !found || !ok {
		inst.Release()
		return nil, fmt.Errorf("comparator %s: bad Setup entry %T", class.Name, x)
	}
	x, found = inst.Func("Compare")
	c.compare, ok = x.(func(int, int) (int, bool))
	if !found || !ok {
		inst.Release()
		return nil, fmt.Errorf("comparator %s: bad Compare entry %T", class.Name, x)
	}

	env.Log.Debug("comparator ready",
		zap.Int("keys", len(keys)),
		zap.String("class", class.Name),
		zap.Bool("plain_go", class.Plain),
	)
	return c, nil
}

type comparator struct {
	name    string
	inst    *compile.Instance
	setup   func([]interface{}, []interface{})
	compare func(int, int) (int, bool)
}

func (self *comparator) Setup(left, right *vector.Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("comparator %s setup: %v", self.name, r)
		}
	}()
	self.setup(left.Export(), right.Export())
	return nil
}

func (self *comparator) Compare(leftIndex, rightIndex int) (o Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("comparator %s: %v", self.name, r)
		}
	}()
	c, known := self.compare(leftIndex, rightIndex)
	switch {
	case !known:
		return Unknown, nil
	case c < 0:
		return Less, nil
	case c > 0:
		return Greater, nil
	default:
		return Equal, nil
	}
}

func (self *comparator) Release() { self.inst.Release() }
