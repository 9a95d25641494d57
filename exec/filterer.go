package exec

import (
	"context"
	"fmt"

	"github.com/dave/jennifer/jen"
	"github.com/dianpeng/colgen/cg"
	"github.com/dianpeng/colgen/compile"
	"github.com/dianpeng/colgen/expr"
	"github.com/dianpeng/colgen/types"
	"github.com/dianpeng/colgen/vector"
	"go.uber.org/zap"
)

// Filterer selects the rows of a batch matching a predicate. A null
// predicate value drops the row.
type Filterer interface {
	Setup(b *vector.Batch) error
	Filter(recordCount int, sel *vector.SelectionVector2) (int, error)
	Release()
}

// GenerateFilterer renders the unit evaluating predicate, it is not
// compiled yet.
func GenerateFilterer(predicate expr.Expr, env *Env) (*cg.CodeGenerator, error) {
	if predicate == nil || predicate.Type().Minor != types.Bit {
		return nil, &cg.CompilationError{
			Expr: expr.String(predicate),
			Msg:  "filter predicate must be bit",
		}
	}

	g, err := cg.NewCodeGenerator(FiltererDefinition, env.Registry, env.Options, cg.WithLogger(env.Log))
	if err != nil {
		return nil, err
	}
	g.PlainGoCapable(true)

	root := g.Root()
	h, err := root.AddExpr(predicate)
	if err != nil {
		return nil, err
	}
	ret := h.Value()
	if h.IsOptional() {
		ret = jen.Add(h.IsSet()).Op("&&").Add(ret)
	}
	if err := root.Emit(jen.Return(ret)); err != nil {
		return nil, err
	}

	if err := g.Generate(); err != nil {
		return nil, err
	}
	return g, nil
}

func NewFilterer(ctx context.Context, predicate expr.Expr, env *Env) (Filterer, error) {
	g, err := GenerateFilterer(predicate, env)
	if err != nil {
		return nil, err
	}
	class, err := env.Cache.Get(ctx, g)
	if err != nil {
		return nil, err
	}

	inst := class.NewInstance()
	f := &filterer{name: class.Name, inst: inst}

	var ok bool
	x, found := inst.Func("Setup")
	f.setup, ok = x.(func([]interface{}))
	if !found || !ok {
		inst.Release()
		return nil, fmt.Errorf("filterer %s: bad Setup entry %T", class.Name, x)
	}
	x, found = inst.Func("FilterBatch")
	f.filter, ok = x.(func(int, []int) int)
	if !found || !ok {
		inst.Release()
		return nil, fmt.Errorf("filterer %s: bad FilterBatch entry %T", class.Name, x)
	}

	env.Log.Debug("filterer ready",
		zap.String("predicate", expr.String(predicate)),
		zap.String("class", class.Name),
		zap.Bool("plain_go", class.Plain),
	)
	return f, nil
}

type filterer struct {
	name   string
	inst   *compile.Instance
	setup  func([]interface{})
	filter func(int, []int) int
}

func (self *filterer) Setup(b *vector.Batch) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("filterer %s setup: %v", self.name, r)
		}
	}()
	self.setup(b.Export())
	return nil
}

func (self *filterer) Filter(recordCount int, sel *vector.SelectionVector2) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("filterer %s: %v", self.name, r)
		}
	}()
	n = self.filter(recordCount, sel.Scratch(recordCount))
	if err := sel.Commit(n); err != nil {
		return 0, err
	}
	return n, nil
}

func (self *filterer) Release() { self.inst.Release() }
