package expr

import (
	"bytes"
	"fmt"

	"github.com/dianpeng/colgen/types"
)

// Expr is a typed, bound expression tree. It is what the code generator
// translates; the sql package only produces the untyped syntax tree.
type Expr interface {
	Kind() int
	Type() types.MajorType
}

const (
	KindLiteral = iota
	KindField
	KindCall
	KindIf
	KindBoolean
)

const (
	BooleanAnd = iota
	BooleanOr
)

// Literal holds a constant. A nil Value is the typed null literal.
type Literal struct {
	Value interface{}
	T     types.MajorType
}

// FieldRef reads column Index of the incoming batch of the active mapping.
type FieldRef struct {
	Name  string
	Index int
	T     types.MajorType
}

// FunctionCall invokes a registry function. Output selects one output of a
// multi output function, the first output is used when it is empty.
type FunctionCall struct {
	Name   string
	Args   []Expr
	Output string
	T      types.MajorType
}

type IfExpr struct {
	Cond Expr
	Then Expr
	Else Expr
	T    types.MajorType
}

type BooleanOp struct {
	Op   int
	Args []Expr
	T    types.MajorType
}

func (self *Literal) Kind() int             { return KindLiteral }
func (self *Literal) Type() types.MajorType { return self.T }

func (self *FieldRef) Kind() int             { return KindField }
func (self *FieldRef) Type() types.MajorType { return self.T }

func (self *FunctionCall) Kind() int             { return KindCall }
func (self *FunctionCall) Type() types.MajorType { return self.T }

func (self *IfExpr) Kind() int             { return KindIf }
func (self *IfExpr) Type() types.MajorType { return self.T }

func (self *BooleanOp) Kind() int             { return KindBoolean }
func (self *BooleanOp) Type() types.MajorType { return self.T }

func NewLiteral(v interface{}) (*Literal, error) {
	switch v.(type) {
	case int64:
		return &Literal{Value: v, T: types.RequiredOf(types.BigInt)}, nil
	case int32:
		return &Literal{Value: v, T: types.RequiredOf(types.Int)}, nil
	case float32:
		return &Literal{Value: v, T: types.RequiredOf(types.Float4)}, nil
	case float64:
		return &Literal{Value: v, T: types.RequiredOf(types.Float8)}, nil
	case bool:
		return &Literal{Value: v, T: types.RequiredOf(types.Bit)}, nil
	case string:
		return &Literal{Value: v, T: types.RequiredOf(types.VarChar)}, nil
	default:
		return nil, fmt.Errorf("literal of Go type %T is not supported", v)
	}
}

func NullOf(m types.MinorType) *Literal {
	return &Literal{T: types.OptionalOf(m)}
}

func (self *Literal) IsNull() bool { return self.Value == nil }

func (self *FunctionCall) ArgTypes() []types.MajorType {
	out := make([]types.MajorType, 0, len(self.Args))
	for _, a := range self.Args {
		out = append(out, a.Type())
	}
	return out
}

// AnyOptional tells whether one of the expressions may evaluate to null
func AnyOptional(list ...Expr) bool {
	for _, e := range list {
		if e.Type().IsNullable() {
			return true
		}
	}
	return false
}

func doPrint(e Expr, buf *bytes.Buffer) {
	switch e.Kind() {
	case KindLiteral:
		l := e.(*Literal)
		if l.IsNull() {
			buf.WriteString("null")
		} else if s, ok := l.Value.(string); ok {
			buf.WriteString(fmt.Sprintf("%q", s))
		} else {
			buf.WriteString(fmt.Sprintf("%v", l.Value))
		}
		break

	case KindField:
		buf.WriteString(fmt.Sprintf("`%s`", e.(*FieldRef).Name))
		break

	case KindCall:
		c := e.(*FunctionCall)
		buf.WriteString(c.Name)
		buf.WriteString("(")
		for idx, a := range c.Args {
			if idx > 0 {
				buf.WriteString(", ")
			}
			doPrint(a, buf)
		}
		buf.WriteString(")")
		if c.Output != "" {
			buf.WriteString(".")
			buf.WriteString(c.Output)
		}
		break

	case KindIf:
		i := e.(*IfExpr)
		buf.WriteString("if(")
		doPrint(i.Cond, buf)
		buf.WriteString(", ")
		doPrint(i.Then, buf)
		buf.WriteString(", ")
		doPrint(i.Else, buf)
		buf.WriteString(")")
		break

	case KindBoolean:
		b := e.(*BooleanOp)
		op := " and "
		if b.Op == BooleanOr {
			op = " or "
		}
		buf.WriteString("(")
		for idx, a := range b.Args {
			if idx > 0 {
				buf.WriteString(op)
			}
			doPrint(a, buf)
		}
		buf.WriteString(")")
		break

	default:
		buf.WriteString("<?>")
		break
	}
}

// String prints the tree in a function call style, used in error messages
// and debug logs.
func String(e Expr) string {
	if e == nil {
		return "<nil>"
	}
	buf := &bytes.Buffer{}
	doPrint(e, buf)
	return buf.String()
}
