package cg

import (
	"fmt"
	"strings"

	"github.com/dave/jennifer/jen"
	"github.com/dianpeng/colgen/expr"
	"github.com/dianpeng/colgen/fn"
	"github.com/dianpeng/colgen/types"
)

// evaluationVisitor translates a typed expression tree into statements of
// one unit. Every visit emits into the current block of the active slot and
// returns the holder reading the result.
type evaluationVisitor struct {
	cls *ClassGenerator
	reg *fn.Registry
}

// argument is one function argument, either an expression still to be
// translated or a holder produced earlier.
type argument struct {
	optional bool
	eval     func() (*HoldingContainer, error)
}

// AddExpr translates e into the active slot of the unit and returns the
// holder of its value.
func (self *ClassGenerator) AddExpr(e expr.Expr) (*HoldingContainer, error) {
	if self.flushed {
		return nil, errFlushed("add expression")
	}
	v := &evaluationVisitor{cls: self, reg: self.cg.registry}
	return v.visit(e)
}

// AddCall invokes the registry function name over holders that are
// already evaluated, ie values read under different mapping sets.
func (self *ClassGenerator) AddCall(name string, args ...*HoldingContainer) (*HoldingContainer, error) {
	if self.flushed {
		return nil, errFlushed("add call " + name)
	}
	v := &evaluationVisitor{cls: self, reg: self.cg.registry}

	argTypes := make([]types.MajorType, 0, len(args))
	list := make([]argument, 0, len(args))
	for _, h := range args {
		argTypes = append(argTypes, h.MajorType())
		list = append(list, argument{
			optional: h.IsOptional(),
			eval:     func() (*HoldingContainer, error) { return h, nil },
		})
	}

	text := fmt.Sprintf("%s(%d args)", name, len(args))
	desc, sel, err := v.resolve(text, name, "", argTypes)
	if err != nil {
		return nil, err
	}
	return v.call(desc, sel, list)
}

func (self *evaluationVisitor) visit(e expr.Expr) (*HoldingContainer, error) {
	if e == nil {
		return nil, &CompilationError{Expr: "<nil>", Msg: "missing expression"}
	}
	switch e.Kind() {
	case expr.KindLiteral:
		return self.visitLiteral(e.(*expr.Literal))
	case expr.KindField:
		return self.visitField(e.(*expr.FieldRef))
	case expr.KindCall:
		return self.visitCall(e.(*expr.FunctionCall))
	case expr.KindIf:
		return self.visitIf(e.(*expr.IfExpr))
	case expr.KindBoolean:
		return self.visitBoolean(e.(*expr.BooleanOp))
	default:
		return nil, &CompilationError{
			Expr: expr.String(e),
			Msg:  fmt.Sprintf("expression kind %d is not supported", e.Kind()),
		}
	}
}

// optionalOf tells whether the translated value of e carries a validity
// flag. It follows the translation rules rather than the declared type so
// that holders and the locals declared ahead of them always agree.
func (self *evaluationVisitor) optionalOf(e expr.Expr) bool {
	switch e.Kind() {
	case expr.KindLiteral:
		return e.(*expr.Literal).IsNull()
	case expr.KindField:
		return e.Type().IsNullable()
	case expr.KindCall:
		c := e.(*expr.FunctionCall)
		if d, ok := self.reg.Lookup(c.Name, c.ArgTypes()); ok && d.NullHandling == fn.Internal {
			return false
		}
		for _, a := range c.Args {
			if self.optionalOf(a) {
				return true
			}
		}
		return false
	case expr.KindIf:
		i := e.(*expr.IfExpr)
		return self.optionalOf(i.Then) || self.optionalOf(i.Else)
	case expr.KindBoolean:
		for _, a := range e.(*expr.BooleanOp).Args {
			if self.optionalOf(a) {
				return true
			}
		}
		return false
	default:
		return e.Type().IsNullable()
	}
}

func zeroOf(t types.MinorType) interface{} {
	switch t {
	case types.BigInt:
		return int64(0)
	case types.Int:
		return int32(0)
	case types.Float4:
		return float32(0)
	case types.Float8:
		return float64(0)
	case types.Bit:
		return false
	default:
		return ""
	}
}

func (self *evaluationVisitor) visitLiteral(l *expr.Literal) (*HoldingContainer, error) {
	if l.IsNull() {
		if l.T.Minor == types.Late {
			return nil, &CompilationError{Expr: "null", Msg: "null literal has no type"}
		}
		zero := zeroOf(l.T.Minor)
		return newHolder(
			l.T.AsOptional(),
			func() *jen.Statement { return jen.Lit(zero) },
			func() *jen.Statement { return jen.False() },
		), nil
	}

	v := l.Value
	return newHolder(
		l.T,
		func() *jen.Statement { return jen.Lit(v) },
		nil,
	), nil
}

func (self *evaluationVisitor) visitField(f *expr.FieldRef) (*HoldingContainer, error) {
	if f.T.Minor == types.Late {
		return nil, &CompilationError{Expr: expr.String(f), Msg: "column has no type"}
	}
	if f.Index < 0 {
		return nil, &CompilationError{Expr: expr.String(f), Msg: "column is not bound"}
	}

	vf, err := self.cls.bindVector(f)
	if err != nil {
		return nil, err
	}

	// the read index is the one of the mapping active right now
	idx := self.cls.mapping().ReadIndex
	values := vf.values

	var isSet func() *jen.Statement
	if vf.valid != "" {
		valid := vf.valid
		isSet = func() *jen.Statement {
			return jen.Id(Receiver).Dot(valid).Index(jen.Id(idx))
		}
	}
	return newHolder(
		f.T,
		func() *jen.Statement { return jen.Id(Receiver).Dot(values).Index(jen.Id(idx)) },
		isSet,
	), nil
}

func (self *evaluationVisitor) resolve(
	text string,
	name string,
	output string,
	args []types.MajorType,
) (*fn.Descriptor, int, error) {
	desc, ok := self.reg.Lookup(name, args)
	if !ok {
		parts := make([]string, 0, len(args))
		for _, a := range args {
			parts = append(parts, a.Minor.String())
		}
		return nil, 0, &CompilationError{
			Expr: text,
			Msg:  fmt.Sprintf("function %s(%s) is not defined", name, strings.Join(parts, ", ")),
		}
	}
	sel, ok := desc.OutputIndex(output)
	if !ok {
		return nil, 0, &CompilationError{
			Expr: text,
			Msg:  fmt.Sprintf("function %s has no output %q", name, output),
		}
	}
	return desc, sel, nil
}

func (self *evaluationVisitor) visitCall(c *expr.FunctionCall) (*HoldingContainer, error) {
	desc, sel, err := self.resolve(expr.String(c), c.Name, c.Output, c.ArgTypes())
	if err != nil {
		return nil, err
	}

	list := make([]argument, 0, len(c.Args))
	for _, a := range c.Args {
		list = append(list, argument{
			optional: self.optionalOf(a),
			eval:     func() (*HoldingContainer, error) { return self.visit(a) },
		})
	}
	return self.call(desc, sel, list)
}

// declareOutputs emits one local per function output, plus a validity
// local when the result may be null.
func (self *evaluationVisitor) declareOutputs(
	desc *fn.Descriptor,
	optional bool,
) ([]string, []*HoldingContainer, error) {
	names := make([]string, 0, len(desc.Outputs))
	holders := make([]*HoldingContainer, 0, len(desc.Outputs))

	for _, o := range desc.Outputs {
		name, _, h, err := self.declareResult(o.Type, optional)
		if err != nil {
			return nil, nil, err
		}
		names = append(names, name)
		holders = append(holders, h)
	}
	return names, holders, nil
}

func (self *evaluationVisitor) emitBody(desc *fn.Descriptor, in []*HoldingContainer, out []string) error {
	inputs := make([]fn.Input, 0, len(in))
	for _, h := range in {
		inputs = append(inputs, h)
	}
	for _, s := range desc.Body(inputs, out) {
		if err := self.cls.Emit(s); err != nil {
			return err
		}
	}
	return nil
}

func (self *evaluationVisitor) call(desc *fn.Descriptor, sel int, args []argument) (*HoldingContainer, error) {
	if desc.NullHandling == fn.Internal {
		return self.callInternal(desc, sel, args)
	}

	optional := false
	for _, a := range args {
		optional = optional || a.optional
	}

	out, holders, err := self.declareOutputs(desc, optional)
	if err != nil {
		return nil, err
	}

	// every optional argument guards the evaluation of everything after it
	in := make([]*HoldingContainer, 0, len(args))
	guards := []*jen.Statement{}
	for _, a := range args {
		h, err := a.eval()
		if err != nil {
			return nil, err
		}
		in = append(in, h)
		if h.IsOptional() {
			guards = append(guards, h.IsSet())
			if err := self.cls.NestEvalBlock(); err != nil {
				return nil, err
			}
		}
	}

	if err := self.emitBody(desc, in, out); err != nil {
		return nil, err
	}
	if optional {
		for _, n := range out {
			if err := self.cls.Emit(jen.Id(n + "Set").Op("=").True()); err != nil {
				return nil, err
			}
		}
	}

	for idx := len(guards) - 1; idx >= 0; idx-- {
		b, err := self.cls.UnnestEvalBlock()
		if err != nil {
			return nil, err
		}
		if err := self.cls.EmitIf(guards[idx], b, nil); err != nil {
			return nil, err
		}
	}
	return holders[sel], nil
}

func (self *evaluationVisitor) callInternal(desc *fn.Descriptor, sel int, args []argument) (*HoldingContainer, error) {
	out, holders, err := self.declareOutputs(desc, false)
	if err != nil {
		return nil, err
	}
	in := make([]*HoldingContainer, 0, len(args))
	for _, a := range args {
		h, err := a.eval()
		if err != nil {
			return nil, err
		}
		in = append(in, h)
	}
	if err := self.emitBody(desc, in, out); err != nil {
		return nil, err
	}
	return holders[sel], nil
}

// assignHolder copies h into the result locals
func (self *evaluationVisitor) assignHolder(name, setName string, h *HoldingContainer) error {
	if err := self.cls.Emit(jen.Id(name).Op("=").Add(h.Value())); err != nil {
		return err
	}
	if setName == "" {
		return nil
	}
	return self.cls.Emit(jen.Id(setName).Op("=").Add(h.IsSet()))
}

// branch translates e inside a fresh nested block
func (self *evaluationVisitor) branch(e expr.Expr, name, setName string) (*Block, error) {
	if err := self.cls.NestEvalBlock(); err != nil {
		return nil, err
	}
	h, err := self.visit(e)
	if err != nil {
		return nil, err
	}
	if err := self.assignHolder(name, setName, h); err != nil {
		return nil, err
	}
	return self.cls.UnnestEvalBlock()
}

func (self *evaluationVisitor) visitIf(i *expr.IfExpr) (*HoldingContainer, error) {
	minor := i.Then.Type().Minor
	if minor == types.Late {
		minor = i.Else.Type().Minor
	}
	if e := i.Else.Type().Minor; e != types.Late && e != minor {
		return nil, &CompilationError{
			Expr: expr.String(i),
			Msg:  fmt.Sprintf("branches have different types %s and %s", minor, e),
		}
	}
	if minor == types.Late {
		return nil, &CompilationError{Expr: expr.String(i), Msg: "branches have no type"}
	}
	if c := i.Cond.Type().Minor; c != types.Bit {
		return nil, &CompilationError{
			Expr: expr.String(i),
			Msg:  fmt.Sprintf("condition must be bit, got %s", c),
		}
	}

	cond, err := self.visit(i.Cond)
	if err != nil {
		return nil, err
	}
	test := cond.Value()
	if cond.IsOptional() {
		test = jen.Add(cond.IsSet()).Op("&&").Add(test)
	}

	optional := self.optionalOf(i.Then) || self.optionalOf(i.Else)
	name, setName, h, err := self.declareResult(minor, optional)
	if err != nil {
		return nil, err
	}

	then, err := self.branch(i.Then, name, setName)
	if err != nil {
		return nil, err
	}
	els, err := self.branch(i.Else, name, setName)
	if err != nil {
		return nil, err
	}
	if err := self.cls.EmitIf(test, then, els); err != nil {
		return nil, err
	}
	return h, nil
}

func (self *evaluationVisitor) declareResult(
	minor types.MinorType,
	optional bool,
) (string, string, *HoldingContainer, error) {
	name, err := self.cls.DeclareLocal("out")
	if err != nil {
		return "", "", nil, err
	}
	setName := ""
	t := types.RequiredOf(minor)
	if optional {
		setName = name + "Set"
		t = t.AsOptional()
	}

	h := localHolder(t, name, setName)
	if err := self.cls.declareVar(name, fn.GoType(minor), func() bool { return h.valueRead }); err != nil {
		return "", "", nil, err
	}
	if optional {
		if err := self.cls.declareVar(setName, jen.Bool(), func() bool { return h.setRead }); err != nil {
			return "", "", nil, err
		}
	}
	return name, setName, h, nil
}

// decisive is the test telling that h alone decides the result of the
// boolean operator: a known false for and, a known true for or.
func decisive(h *HoldingContainer, and bool) *jen.Statement {
	v := h.Value()
	if and {
		v = jen.Op("!").Add(v)
	}
	if !h.IsOptional() {
		return v
	}
	return jen.Add(h.IsSet()).Op("&&").Add(v)
}

func (self *evaluationVisitor) visitBoolean(b *expr.BooleanOp) (*HoldingContainer, error) {
	if len(b.Args) == 0 {
		return nil, &CompilationError{Expr: expr.String(b), Msg: "boolean operator without operand"}
	}
	for _, a := range b.Args {
		if a.Type().Minor != types.Bit {
			return nil, &CompilationError{
				Expr: expr.String(b),
				Msg:  fmt.Sprintf("operand %s must be bit, got %s", expr.String(a), a.Type().Minor),
			}
		}
	}

	and := b.Op == expr.BooleanAnd
	acc, err := self.visit(b.Args[0])
	if err != nil {
		return nil, err
	}
	for _, rhs := range b.Args[1:] {
		acc, err = self.combine(acc, rhs, and)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// combine folds one more operand into lhs following three valued logic.
// The right operand is only evaluated when lhs does not decide the result.
func (self *evaluationVisitor) combine(lhs *HoldingContainer, rhs expr.Expr, and bool) (*HoldingContainer, error) {
	optional := lhs.IsOptional() || self.optionalOf(rhs)
	name, setName, h, err := self.declareResult(types.Bit, optional)
	if err != nil {
		return nil, err
	}

	known := func(v bool) []jen.Code {
		code := []jen.Code{jen.Id(name).Op("=").Lit(v)}
		if optional {
			code = append(code, jen.Id(setName).Op("=").True())
		}
		return code
	}

	test := decisive(lhs, and)

	if err := self.cls.NestEvalBlock(); err != nil {
		return nil, err
	}
	for _, c := range known(!and) {
		if err := self.cls.Emit(c); err != nil {
			return nil, err
		}
	}
	then, err := self.cls.UnnestEvalBlock()
	if err != nil {
		return nil, err
	}

	if err := self.cls.NestEvalBlock(); err != nil {
		return nil, err
	}
	r, err := self.visit(rhs)
	if err != nil {
		return nil, err
	}

	if !optional {
		if err := self.cls.Emit(jen.Id(name).Op("=").Add(r.Value())); err != nil {
			return nil, err
		}
	} else {
		stmt := jen.If(decisive(r, and)).Block(known(!and)...)

		var both *jen.Statement
		for _, x := range []*HoldingContainer{lhs, r} {
			if !x.IsOptional() {
				continue
			}
			if both == nil {
				both = x.IsSet()
			} else {
				both = both.Op("&&").Add(x.IsSet())
			}
		}
		if both == nil {
			stmt.Else().Block(known(and)...)
		} else {
			stmt.Else().If(both).Block(known(and)...)
		}
		if err := self.cls.Emit(stmt); err != nil {
			return nil, err
		}
	}

	els, err := self.cls.UnnestEvalBlock()
	if err != nil {
		return nil, err
	}
	if err := self.cls.EmitIf(test, then, els); err != nil {
		return nil, err
	}
	return h, nil
}
