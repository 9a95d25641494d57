package cg

import (
	"fmt"

	"github.com/dave/jennifer/jen"
	"github.com/dianpeng/colgen/expr"
	"github.com/dianpeng/colgen/fn"
	"github.com/dianpeng/colgen/types"
)

// Receiver is the receiver name of every generated method
const Receiver = "g"

// Block is an ordered statement list. Statements are materialized lazily
// when the owning unit is flushed, which lets a block hold statements whose
// shape depends on emissions made after them.
type Block struct {
	stmts []func() jen.Code
}

func (self *Block) add(c jen.Code) {
	self.stmts = append(self.stmts, func() jen.Code { return c })
}

func (self *Block) addLazy(f func() jen.Code) {
	self.stmts = append(self.stmts, f)
}

func (self *Block) Len() int { return len(self.stmts) }

func (self *Block) code() []jen.Code {
	out := make([]jen.Code, 0, len(self.stmts))
	for _, s := range self.stmts {
		out = append(out, s())
	}
	return out
}

// methodBody is the root block of one hook method plus the stack of blocks
// opened by NestEvalBlock.
type methodBody struct {
	root *Block
	nest []*Block
}

func (self *methodBody) top() *Block {
	if len(self.nest) > 0 {
		return self.nest[len(self.nest)-1]
	}
	return self.root
}

type field struct {
	name string
	typ  jen.Code
}

type vectorKey struct {
	incoming string
	column   int
}

type vectorField struct {
	values string
	valid  string
}

// ClassGenerator builds one generated unit. The root unit is created by the
// CodeGenerator, nested units through InnerClass.
type ClassGenerator struct {
	cg     *CodeGenerator
	parent *ClassGenerator
	name   string
	sig    *Signature
	embed  *TypeRef

	fields   []field
	methods  map[string]*methodBody
	children []*ClassGenerator
	vectors  map[vectorKey]*vectorField

	flushed  bool
	rendered map[string][]jen.Code
}

func newClassGenerator(
	cg *CodeGenerator,
	parent *ClassGenerator,
	name string,
	sig *Signature,
) *ClassGenerator {
	return &ClassGenerator{
		cg:      cg,
		parent:  parent,
		name:    name,
		sig:     sig,
		methods: make(map[string]*methodBody),
		vectors: make(map[vectorKey]*vectorField),
	}
}

func (self *ClassGenerator) Name() string            { return self.name }
func (self *ClassGenerator) Signature() *Signature   { return self.sig }
func (self *ClassGenerator) Parent() *ClassGenerator { return self.parent }
func (self *ClassGenerator) Extends() *TypeRef       { return self.embed }
func (self *ClassGenerator) IsFlushed() bool         { return self.flushed }

func (self *ClassGenerator) Children() []*ClassGenerator {
	return self.children
}

// Self is the receiver expression usable inside any hook method body
func (self *ClassGenerator) Self() *jen.Statement { return jen.Id(Receiver) }

func (self *ClassGenerator) mapping() *MappingSet { return self.cg.mapping }

// InnerClass declares a nested unit named after the outer one. A nil
// signature reuses the hooks of the outer unit, a non nil extends is
// embedded into it. Nested units never export entry functions.
func (self *ClassGenerator) InnerClass(name string, sig *Signature, extends *TypeRef) (*ClassGenerator, error) {
	if self.flushed {
		return nil, errFlushed("declare inner class " + name)
	}
	if name == "" {
		return nil, &ConfigurationError{Msg: "inner class needs a name"}
	}

	full := self.name + name
	if self.cg.root.lookupUnit(full) != nil {
		return nil, &DuplicateDefinitionError{Name: full}
	}

	if sig == nil {
		sig = &Signature{Hooks: self.sig.Hooks}
	}

	child := newClassGenerator(self.cg, self, full, sig)
	if extends != nil {
		if extends.Name == "" {
			return nil, &ConfigurationError{Msg: "inner class " + full + " extends a type without a name"}
		}
		t := *extends
		child.embed = &t
	}
	self.children = append(self.children, child)
	return child, nil
}

func (self *ClassGenerator) lookupUnit(name string) *ClassGenerator {
	if self.name == name {
		return self
	}
	for _, c := range self.children {
		if x := c.lookupUnit(name); x != nil {
			return x
		}
	}
	return nil
}

func (self *ClassGenerator) method(t BlockType) (*methodBody, error) {
	name := self.mapping().MethodName(t)
	if name == "" {
		return nil, &ConfigurationError{
			Msg: fmt.Sprintf("slot %s has no method in the active mapping", t),
		}
	}
	if _, ok := self.sig.Hook(name); !ok {
		return nil, &ConfigurationError{
			Msg: fmt.Sprintf("method %s of slot %s is not a hook of %s", name, t, self.name),
		}
	}

	m, ok := self.methods[name]
	if !ok {
		m = &methodBody{root: &Block{}}
		self.methods[name] = m
	}
	return m, nil
}

// CurrentBlock is the innermost open block of the active slot
func (self *ClassGenerator) CurrentBlock() (*Block, error) {
	return self.Block(self.mapping().Block())
}

func (self *ClassGenerator) Block(t BlockType) (*Block, error) {
	if self.flushed {
		return nil, errFlushed("access block " + t.String())
	}
	m, err := self.method(t)
	if err != nil {
		return nil, err
	}
	return m.top(), nil
}

func (self *ClassGenerator) Emit(code jen.Code) error {
	return self.EmitTo(self.mapping().Block(), code)
}

func (self *ClassGenerator) EmitTo(t BlockType, code jen.Code) error {
	b, err := self.Block(t)
	if err != nil {
		return err
	}
	b.add(code)
	return nil
}

func (self *ClassGenerator) emitLazy(f func() jen.Code) error {
	b, err := self.CurrentBlock()
	if err != nil {
		return err
	}
	b.addLazy(f)
	return nil
}

// EmitIf appends "if cond { then } else { els }" to the current block, els
// may be nil. The blocks usually come from UnnestEvalBlock.
func (self *ClassGenerator) EmitIf(cond jen.Code, then *Block, els *Block) error {
	return self.emitLazy(func() jen.Code {
		s := jen.If(cond).Block(then.code()...)
		if els != nil {
			s.Else().Block(els.code()...)
		}
		return s
	})
}

// NestEvalBlock opens a block inside the active slot, later emissions go
// into it until UnnestEvalBlock closes it.
func (self *ClassGenerator) NestEvalBlock() error {
	if self.flushed {
		return errFlushed("nest block")
	}
	m, err := self.method(self.mapping().Block())
	if err != nil {
		return err
	}
	m.nest = append(m.nest, &Block{})
	return nil
}

func (self *ClassGenerator) UnnestEvalBlock() (*Block, error) {
	if self.flushed {
		return nil, errFlushed("unnest block")
	}
	m, err := self.method(self.mapping().Block())
	if err != nil {
		return nil, err
	}
	if len(m.nest) == 0 {
		return nil, &StateError{Msg: "unnest without a matching nest"}
	}
	b := m.nest[len(m.nest)-1]
	m.nest = m.nest[:len(m.nest)-1]
	return b, nil
}

// DeclareField adds a member with a unique name derived from prefix
func (self *ClassGenerator) DeclareField(prefix string, typ jen.Code) (string, error) {
	if self.flushed {
		return "", errFlushed("declare field " + prefix)
	}
	name := self.cg.nextName(prefix)
	self.fields = append(self.fields, field{name: name, typ: typ})
	return name, nil
}

// DeclareLocal reserves a unique local variable name. The declaration
// itself is emitted by the caller.
func (self *ClassGenerator) DeclareLocal(prefix string) (string, error) {
	if self.flushed {
		return "", errFlushed("declare local " + prefix)
	}
	return self.cg.nextName(prefix), nil
}

// declareVar emits "var name T" into the current block, followed by a
// marker that keeps the variable used when nothing reads the holder.
func (self *ClassGenerator) declareVar(name string, typ jen.Code, read func() bool) error {
	if err := self.Emit(jen.Var().Id(name).Add(typ)); err != nil {
		return err
	}
	return self.emitLazy(func() jen.Code {
		if read() {
			return jen.Null()
		}
		return jen.Id("_").Op("=").Id(name)
	})
}

// bindVector declares the member vectors of one incoming column and binds
// them in the setup slot. A column is bound once per incoming batch.
func (self *ClassGenerator) bindVector(ref *expr.FieldRef) (*vectorField, error) {
	ms := self.mapping()
	key := vectorKey{incoming: ms.Incoming, column: ref.Index}
	if v, ok := self.vectors[key]; ok {
		return v, nil
	}

	et := fn.GoType(ref.T.Minor)
	values, err := self.DeclareField("vv", jen.Index().Add(et))
	if err != nil {
		return nil, err
	}
	v := &vectorField{values: values}

	if err := self.EmitTo(BlockSetup,
		self.Self().Dot(values).Op("=").Id(ms.Incoming).Index(jen.Lit(2*ref.Index)).Assert(jen.Index().Add(fn.GoType(ref.T.Minor))),
	); err != nil {
		return nil, err
	}

	if ref.T.Mode == types.Optional {
		v.valid = values + "Valid"
		self.fields = append(self.fields, field{name: v.valid, typ: jen.Index().Bool()})
		if err := self.EmitTo(BlockSetup,
			self.Self().Dot(v.valid).Op("=").Id(ms.Incoming).Index(jen.Lit(2*ref.Index+1)).Assert(jen.Index().Bool()),
		); err != nil {
			return nil, err
		}
	}

	self.vectors[key] = v
	return v, nil
}

// hookOrder lists the hooks in flush order: the slots of the root mapping
// in setup, eval, reset, cleanup order first, then any remaining hook in
// signature order.
func (self *ClassGenerator) hookOrder() []*Method {
	out := []*Method{}
	seen := map[string]bool{}

	root := self.mapping().mappings[0]
	for _, b := range blockOrder {
		n := root.MethodName(b)
		if m, ok := self.sig.Hook(n); ok && !seen[n] {
			seen[n] = true
			out = append(out, m)
		}
	}
	for idx := range self.sig.Hooks {
		m := &self.sig.Hooks[idx]
		if !seen[m.Name] {
			seen[m.Name] = true
			out = append(out, m)
		}
	}
	return out
}

// flush materializes every hook method of this unit and then of its
// children, in declaration order. A second flush does nothing.
func (self *ClassGenerator) flush() error {
	if self.flushed {
		return nil
	}

	self.rendered = make(map[string][]jen.Code)
	for _, m := range self.hookOrder() {
		body, ok := self.methods[m.Name]
		if ok && len(body.nest) != 0 {
			return &StateError{
				Msg: fmt.Sprintf("method %s of %s has %d unclosed block(s)", m.Name, self.name, len(body.nest)),
			}
		}

		var code []jen.Code
		if ok {
			code = body.root.code()
		}
		if len(code) == 0 && len(m.Results) > 0 {
			code = []jen.Code{
				jen.Panic(jen.Lit(fmt.Sprintf("%s.%s has no generated body", self.name, m.Name))),
			}
		}
		self.rendered[m.Name] = code
	}
	self.flushed = true

	for _, c := range self.children {
		if err := c.flush(); err != nil {
			return err
		}
	}
	return nil
}

func params(list []Param) []jen.Code {
	out := make([]jen.Code, 0, len(list))
	for _, p := range list {
		out = append(out, jen.Id(p.Name).Add(p.Type))
	}
	return out
}

func results(s *jen.Statement, list []jen.Code) *jen.Statement {
	switch len(list) {
	case 0:
		return s
	case 1:
		return s.Add(list[0])
	default:
		return s.Params(list...)
	}
}

func (self *ClassGenerator) render(f *jen.File) {
	fields := []jen.Code{}
	if self.embed != nil {
		fields = append(fields, jen.Qual(self.embed.Path, self.embed.Name))
	}
	for _, x := range self.fields {
		fields = append(fields, jen.Id(x.name).Add(x.typ))
	}
	f.Type().Id(self.name).Struct(fields...)

	for _, m := range self.hookOrder() {
		s := jen.Func().Params(jen.Id(Receiver).Op("*").Id(self.name)).Id(m.Name).Params(params(m.Params)...)
		results(s, m.Results).Block(self.rendered[m.Name]...)
		f.Add(s)
	}

	for _, c := range self.children {
		c.render(f)
	}
}
