package sql

import (
	"strconv"
	"strings"
)

type Kind int

const (
	KindConst Kind = iota
	KindRef
	KindCall
	KindUnary
	KindBinary
	KindTernary
	KindIsNull
)

type ConstKind int

const (
	ConstNull ConstKind = iota
	ConstBool
	ConstStr
	ConstInt
	ConstReal
)

// Span is the source range of a node, Snippet is its text
type Span struct {
	Start   Pos
	End     Pos
	Snippet string
}

type Expr interface {
	Kind() Kind
	Where() Span
}

type Const struct {
	Ty     ConstKind
	Bool   bool
	String string
	Int    int64
	Real   float64
	Span   Span
}

type Ref struct {
	Id   string
	Span Span
}

// Call is a function call, Output optionally selects one of the results of
// a function with several: divmod(a, b).rem
type Call struct {
	Name   string
	Args   []Expr
	Output string
	Span   Span
}

type Unary struct {
	Op      Token
	Operand Expr
	Span    Span
}

type Binary struct {
	Op   Token
	L    Expr
	R    Expr
	Span Span
}

type Ternary struct {
	Cond Expr
	Then Expr
	Else Expr
	Span Span
}

type IsNull struct {
	Operand Expr
	Not     bool
	Span    Span
}

func (self *Const) Kind() Kind   { return KindConst }
func (self *Ref) Kind() Kind     { return KindRef }
func (self *Call) Kind() Kind    { return KindCall }
func (self *Unary) Kind() Kind   { return KindUnary }
func (self *Binary) Kind() Kind  { return KindBinary }
func (self *Ternary) Kind() Kind { return KindTernary }
func (self *IsNull) Kind() Kind  { return KindIsNull }

func (self *Const) Where() Span   { return self.Span }
func (self *Ref) Where() Span     { return self.Span }
func (self *Call) Where() Span    { return self.Span }
func (self *Unary) Where() Span   { return self.Span }
func (self *Binary) Where() Span  { return self.Span }
func (self *Ternary) Where() Span { return self.Span }
func (self *IsNull) Where() Span  { return self.Span }

// String prints e fully parenthesized. The output parses back to the same
// tree.
func String(e Expr) string {
	buf := &strings.Builder{}
	printExpr(e, buf)
	return buf.String()
}

func printConst(c *Const, buf *strings.Builder) {
	switch c.Ty {
	case ConstBool:
		buf.WriteString(strconv.FormatBool(c.Bool))
		break
	case ConstStr:
		buf.WriteString(strconv.Quote(c.String))
		break
	case ConstInt:
		buf.WriteString(strconv.FormatInt(c.Int, 10))
		break
	case ConstReal:
		s := strconv.FormatFloat(c.Real, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEnI") {
			s += ".0"
		}
		buf.WriteString(s)
		break
	default:
		buf.WriteString("null")
		break
	}
}

func printExpr(e Expr, buf *strings.Builder) {
	switch x := e.(type) {
	case *Const:
		printConst(x, buf)
		break

	case *Ref:
		buf.WriteString(x.Id)
		break

	case *Call:
		buf.WriteString(x.Name)
		buf.WriteString("(")
		for idx, a := range x.Args {
			if idx > 0 {
				buf.WriteString(", ")
			}
			printExpr(a, buf)
		}
		buf.WriteString(")")
		if x.Output != "" {
			buf.WriteString(".")
			buf.WriteString(x.Output)
		}
		break

	case *Unary:
		if x.Op == TkNot {
			buf.WriteString("!")
		} else {
			buf.WriteString(x.Op.String())
		}
		printExpr(x.Operand, buf)
		break

	case *Binary:
		buf.WriteString("(")
		printExpr(x.L, buf)
		buf.WriteString(" ")
		buf.WriteString(x.Op.String())
		buf.WriteString(" ")
		printExpr(x.R, buf)
		buf.WriteString(")")
		break

	case *Ternary:
		buf.WriteString("(")
		printExpr(x.Cond, buf)
		buf.WriteString(" ? ")
		printExpr(x.Then, buf)
		buf.WriteString(" : ")
		printExpr(x.Else, buf)
		buf.WriteString(")")
		break

	case *IsNull:
		buf.WriteString("(")
		printExpr(x.Operand, buf)
		if x.Not {
			buf.WriteString(" is not null)")
		} else {
			buf.WriteString(" is null)")
		}
		break

	default:
		buf.WriteString("<nil>")
		break
	}
}
