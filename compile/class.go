package compile

import (
	"context"
	"fmt"
	"reflect"

	"github.com/dianpeng/colgen/cg"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/zap"
)

// Backend turns a generated CodeGenerator into a loaded class
type Backend interface {
	Compile(ctx context.Context, g *cg.CodeGenerator) (*Class, error)
}

type Option func(*config)

type config struct {
	log *zap.Logger
}

func WithLogger(l *zap.Logger) Option {
	return func(o *config) {
		if l != nil {
			o.log = l
		}
	}
}

func newConfig(o []Option) *config {
	x := &config{log: zap.NewNop()}
	for _, f := range o {
		f(x)
	}
	return x
}

// LoadError wraps a failure of the interpreter while loading a unit
type LoadError struct {
	Class string
	Err   error
}

func (self *LoadError) Error() string {
	return fmt.Sprintf("load %s: %s", self.Class, self.Err)
}

func (self *LoadError) Unwrap() error { return self.Err }

// Class is a loaded generated unit. Its function table maps every entry
// method of the signature to a plain Go func taking the instance handle as
// first argument, and to a binder returning that entry closed over one
// instance.
type Class struct {
	Name   string
	Plain  bool
	Source string

	ctor    func() int
	release func(int)
	entries map[string]interface{}
	binders map[string]reflect.Value
}

// NewInstance constructs an instance and binds its entries once, calls
// through Instance.Func skip the handle lookup.
func (self *Class) NewInstance() *Instance {
	h := self.ctor()
	inst := &Instance{
		class:  self,
		handle: h,
		funcs:  make(map[string]interface{}, len(self.binders)),
	}
	arg := []reflect.Value{reflect.ValueOf(h)}
	for m, b := range self.binders {
		inst.funcs[m] = b.Call(arg)[0].Interface()
	}
	return inst
}

// Methods lists the entry methods of the function table
func (self *Class) Methods() []string {
	out := make([]string, 0, len(self.entries))
	for n := range self.entries {
		out = append(out, n)
	}
	return out
}

// Entry returns the handle taking function of method
func (self *Class) Entry(method string) (interface{}, bool) {
	f, ok := self.entries[method]
	return f, ok
}

type Instance struct {
	class  *Class
	handle int
	funcs  map[string]interface{}
}

func (self *Instance) Class() *Class { return self.class }
func (self *Instance) Handle() int   { return self.handle }

// Func returns the entry function of method bound to this instance, its
// parameters follow the entry signature. Nothing is bound after Release.
func (self *Instance) Func(method string) (interface{}, bool) {
	f, ok := self.funcs[method]
	return f, ok
}

// Release drops the instance from the table of the unit, its handle may be
// handed to a later instance.
func (self *Instance) Release() {
	if self.handle < 0 {
		return
	}
	self.class.release(self.handle)
	self.handle = -1
	self.funcs = nil
}

// load evaluates src in a fresh interpreter and resolves the function
// table of g.
func load(
	ctx context.Context,
	g *cg.CodeGenerator,
	opt interp.Options,
	src string,
	log *zap.Logger,
) (*Class, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := g.ClassName()
	i := interp.New(opt)
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, &LoadError{Class: name, Err: err}
	}
	if _, err := i.EvalWithContext(ctx, src); err != nil {
		log.Debug("unit rejected by the interpreter",
			zap.String("class", name),
			zap.Error(err),
		)
		return nil, &LoadError{Class: name, Err: err}
	}

	eval := func(fn string) (reflect.Value, error) {
		v, err := i.Eval(cg.GeneratedPackageName + "." + fn)
		if err != nil {
			return reflect.Value{}, &LoadError{Class: name, Err: err}
		}
		return v, nil
	}
	lookup := func(fn string) (interface{}, error) {
		v, err := eval(fn)
		if err != nil {
			return nil, err
		}
		return v.Interface(), nil
	}

	class := &Class{
		Name:    g.MaterializedClassName(),
		Plain:   g.IsPlainGo(),
		Source:  src,
		entries: make(map[string]interface{}),
		binders: make(map[string]reflect.Value),
	}

	x, err := lookup(g.ConstructorFunc())
	if err != nil {
		return nil, err
	}
	ctor, ok := x.(func() int)
	if !ok {
		return nil, &LoadError{Class: name, Err: fmt.Errorf("constructor has type %T", x)}
	}
	class.ctor = ctor

	x, err = lookup(g.ReleaseFunc())
	if err != nil {
		return nil, err
	}
	release, ok := x.(func(int))
	if !ok {
		return nil, &LoadError{Class: name, Err: fmt.Errorf("release has type %T", x)}
	}
	class.release = release

	for _, m := range g.Definition().Signature.Entries {
		f, err := lookup(g.EntryFunc(m.Name))
		if err != nil {
			return nil, err
		}
		class.entries[m.Name] = f

		b, err := eval(g.BindFunc(m.Name))
		if err != nil {
			return nil, err
		}
		if b.Kind() != reflect.Func || b.Type().NumIn() != 1 || b.Type().NumOut() != 1 {
			return nil, &LoadError{Class: name, Err: fmt.Errorf("binder of %s is a %s", m.Name, b.Kind())}
		}
		class.binders[m.Name] = b
	}

	log.Debug("unit loaded",
		zap.String("class", name),
		zap.Bool("plain_go", class.Plain),
		zap.Int("entries", len(class.entries)),
	)
	return class, nil
}
