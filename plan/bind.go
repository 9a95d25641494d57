package plan

import (
	"fmt"
	"math"
	"strings"

	"fortio.org/safecast"
	"github.com/dianpeng/colgen/expr"
	"github.com/dianpeng/colgen/fn"
	"github.com/dianpeng/colgen/sql"
	"github.com/dianpeng/colgen/types"
	"github.com/dianpeng/colgen/vector"
)

// Binder resolves a parsed expression against a schema and a function
// catalog. Operators become function calls, numeric operands are widened
// through the cast functions and null literals take the type of the
// operand they are compared with.
type Binder struct {
	schema   *vector.Schema
	registry *fn.Registry
}

func NewBinder(schema *vector.Schema, registry *fn.Registry) *Binder {
	return &Binder{
		schema:   schema,
		registry: registry,
	}
}

// Materialize binds e, see Binder
func Materialize(
	e sql.Expr,
	schema *vector.Schema,
	registry *fn.Registry,
) (expr.Expr, error) {
	return NewBinder(schema, registry).Bind(e)
}

// Compile parses and binds src
func Compile(
	src string,
	schema *vector.Schema,
	registry *fn.Registry,
) (expr.Expr, error) {
	e, err := sql.ParseExpr(src)
	if err != nil {
		return nil, err
	}
	return Materialize(e, schema, registry)
}

func (self *Binder) err(where sql.Expr, f string, args ...interface{}) error {
	msg := fmt.Sprintf(f, args...)
	if where != nil && where.Where().Snippet != "" {
		return fmt.Errorf("stage(bind): %s, around %q", msg, where.Where().Snippet)
	}
	return fmt.Errorf("stage(bind): %s", msg)
}

// Bind returns the typed form of e. A null literal whose type cannot be
// inferred is an error.
func (self *Binder) Bind(e sql.Expr) (expr.Expr, error) {
	out, err := self.bind(e)
	if err != nil {
		return nil, err
	}
	if untyped(out) {
		return nil, self.err(e, "cannot infer the type of null")
	}
	return out, nil
}

func untyped(e expr.Expr) bool {
	return e.Type().Minor == types.Late
}

func (self *Binder) bind(e sql.Expr) (expr.Expr, error) {
	switch x := e.(type) {
	case *sql.Const:
		return self.bindConst(x)
	case *sql.Ref:
		return self.bindRef(x)
	case *sql.Call:
		return self.bindCall(x)
	case *sql.Unary:
		return self.bindUnary(x)
	case *sql.Binary:
		return self.bindBinary(x)
	case *sql.Ternary:
		return self.bindTernary(x)
	case *sql.IsNull:
		return self.bindIsNull(x)
	default:
		return nil, self.err(e, "unsupported expression")
	}
}

func (self *Binder) bindConst(c *sql.Const) (expr.Expr, error) {
	switch c.Ty {
	case sql.ConstNull:
		return expr.NullOf(types.Late), nil
	case sql.ConstBool:
		return expr.NewLiteral(c.Bool)
	case sql.ConstStr:
		return expr.NewLiteral(c.String)
	case sql.ConstInt:
		return expr.NewLiteral(c.Int)
	case sql.ConstReal:
		return expr.NewLiteral(c.Real)
	default:
		return nil, self.err(c, "unknown constant")
	}
}

func (self *Binder) bindRef(r *sql.Ref) (expr.Expr, error) {
	if self.schema == nil {
		return nil, self.err(r, "column %s referenced without a schema", r.Id)
	}
	idx, ok := self.schema.Index(r.Id)
	if !ok {
		return nil, self.err(r, "unknown column %s", r.Id)
	}
	return &expr.FieldRef{
		Name:  r.Id,
		Index: idx,
		T:     self.schema.Fields[idx].Type,
	}, nil
}

// bindCall binds a function call, c.Output selects one result of a
// function with several: divmod(a, b).rem
func (self *Binder) bindCall(c *sql.Call) (expr.Expr, error) {
	args := make([]expr.Expr, 0, len(c.Args))
	for _, x := range c.Args {
		a, err := self.bind(x)
		if err != nil {
			return nil, err
		}
		args = append(args, a)
	}
	return self.call(c, strings.ToLower(c.Name), c.Output, args...)
}

func (self *Binder) bindUnary(u *sql.Unary) (expr.Expr, error) {
	out, err := self.bind(u.Operand)
	if err != nil {
		return nil, err
	}

	switch u.Op {
	case sql.TkAdd:
		if !untyped(out) && !out.Type().Minor.IsNumeric() {
			return nil, self.err(u, "unary + on %s", out.Type())
		}
		return out, nil
	case sql.TkSub:
		if l, ok := out.(*expr.Literal); ok && !l.IsNull() {
			return negate(l), nil
		}
		return self.call(u, "negative", "", out)
	case sql.TkNot:
		return self.call(u, "not", "", out)
	default:
		return nil, self.err(u, "unknown unary operator %s", u.Op)
	}
}

func negate(l *expr.Literal) *expr.Literal {
	switch v := l.Value.(type) {
	case int64:
		return &expr.Literal{Value: -v, T: l.T}
	case int32:
		return &expr.Literal{Value: -v, T: l.T}
	case float32:
		return &expr.Literal{Value: -v, T: l.T}
	case float64:
		return &expr.Literal{Value: -v, T: l.T}
	default:
		return l
	}
}

var binaryFunc = map[sql.Token]string{
	sql.TkAdd: "add",
	sql.TkSub: "subtract",
	sql.TkMul: "multiply",
	sql.TkDiv: "divide",
	sql.TkMod: "modulo",
	sql.TkEq:  "equal",
	sql.TkNe:  "not_equal",
	sql.TkLt:  "less_than",
	sql.TkLe:  "less_than_or_equal",
	sql.TkGt:  "greater_than",
	sql.TkGe:  "greater_than_or_equal",
}

func (self *Binder) bindBinary(b *sql.Binary) (expr.Expr, error) {
	l, err := self.bind(b.L)
	if err != nil {
		return nil, err
	}
	r, err := self.bind(b.R)
	if err != nil {
		return nil, err
	}

	if b.Op == sql.TkAnd || b.Op == sql.TkOr {
		return self.logic(b, l, r)
	}

	name, ok := binaryFunc[b.Op]
	if !ok {
		return nil, self.err(b, "unknown binary operator %s", b.Op)
	}
	if l, r, err = self.unify(b, l, r); err != nil {
		return nil, err
	}
	if name == "add" && l.Type().Minor == types.VarChar {
		name = "concat"
	}
	return self.call(b, name, "", l, r)
}

// logic flattens chains of the same operator into one BooleanOp
func (self *Binder) logic(b *sql.Binary, l, r expr.Expr) (expr.Expr, error) {
	op := expr.BooleanAnd
	if b.Op == sql.TkOr {
		op = expr.BooleanOr
	}

	args := []expr.Expr{}
	for _, x := range []expr.Expr{l, r} {
		if untyped(x) {
			x = expr.NullOf(types.Bit)
		}
		if x.Type().Minor != types.Bit {
			return nil, self.err(b, "operand of %s must be bit, got %s", b.Op, x.Type())
		}
		if nested, ok := x.(*expr.BooleanOp); ok && nested.Op == op {
			args = append(args, nested.Args...)
		} else {
			args = append(args, x)
		}
	}

	t := types.RequiredOf(types.Bit)
	if expr.AnyOptional(args...) {
		t = t.AsOptional()
	}
	return &expr.BooleanOp{Op: op, Args: args, T: t}, nil
}

func (self *Binder) bindTernary(t *sql.Ternary) (expr.Expr, error) {
	cond, err := self.bind(t.Cond)
	if err != nil {
		return nil, err
	}
	if untyped(cond) {
		cond = expr.NullOf(types.Bit)
	}
	if cond.Type().Minor != types.Bit {
		return nil, self.err(t, "condition must be bit, got %s", cond.Type())
	}

	then, err := self.bind(t.Then)
	if err != nil {
		return nil, err
	}
	els, err := self.bind(t.Else)
	if err != nil {
		return nil, err
	}
	if then, els, err = self.unify(t, then, els); err != nil {
		return nil, err
	}

	mt := then.Type().AsRequired()
	if expr.AnyOptional(then, els) {
		mt = mt.AsOptional()
	}
	return &expr.IfExpr{Cond: cond, Then: then, Else: els, T: mt}, nil
}

func (self *Binder) bindIsNull(n *sql.IsNull) (expr.Expr, error) {
	x, err := self.bind(n.Operand)
	if err != nil {
		return nil, err
	}
	if untyped(x) {
		// the answer is known, keep the operand typed
		x = expr.NullOf(types.Bit)
	}
	name := "isnull"
	if n.Not {
		name = "isnotnull"
	}
	return self.call(n, name, "", x)
}

// unify brings both operands to one minor type: untyped nulls take the
// other side's type, literals are converted in place when lossless and the
// remaining numeric mismatches are widened with a cast.
func (self *Binder) unify(where sql.Expr, l, r expr.Expr) (expr.Expr, expr.Expr, error) {
	switch {
	case untyped(l) && untyped(r):
		return nil, nil, self.err(where, "cannot infer the type of null")
	case untyped(l):
		return expr.NullOf(r.Type().Minor), r, nil
	case untyped(r):
		return l, expr.NullOf(l.Type().Minor), nil
	}

	lt, rt := l.Type().Minor, r.Type().Minor
	if lt == rt {
		return l, r, nil
	}

	if x, ok := l.(*expr.Literal); ok {
		if c, ok := convertLiteral(x, rt); ok {
			return c, r, nil
		}
	}
	if x, ok := r.(*expr.Literal); ok {
		if c, ok := convertLiteral(x, lt); ok {
			return l, c, nil
		}
	}

	to, ok := types.Widen(lt, rt)
	if !ok {
		return nil, nil, self.err(where, "type mismatch between %s and %s", lt, rt)
	}
	l, err := self.cast(where, l, to)
	if err != nil {
		return nil, nil, err
	}
	r, err = self.cast(where, r, to)
	if err != nil {
		return nil, nil, err
	}
	return l, r, nil
}

func (self *Binder) cast(where sql.Expr, e expr.Expr, to types.MinorType) (expr.Expr, error) {
	if e.Type().Minor == to {
		return e, nil
	}
	return self.call(where, fn.CastName(to), "", e)
}

// convertLiteral converts a numeric literal to t when no precision is lost
func convertLiteral(l *expr.Literal, t types.MinorType) (*expr.Literal, bool) {
	if !t.IsNumeric() {
		return nil, false
	}
	mt := types.MajorType{Minor: t, Mode: l.T.Mode}

	switch v := l.Value.(type) {
	case int64:
		switch t {
		case types.Int:
			x, err := safecast.Conv[int32](v)
			if err != nil {
				return nil, false
			}
			return &expr.Literal{Value: x, T: mt}, true
		case types.Float4:
			if int64(float32(v)) != v {
				return nil, false
			}
			return &expr.Literal{Value: float32(v), T: mt}, true
		case types.Float8:
			if int64(float64(v)) != v {
				return nil, false
			}
			return &expr.Literal{Value: float64(v), T: mt}, true
		}
	case float64:
		if t == types.Float4 && !math.IsInf(v, 0) && float64(float32(v)) == v {
			return &expr.Literal{Value: float32(v), T: mt}, true
		}
	}
	return nil, false
}

// call resolves name against the catalog. When no overload takes the
// argument types as they are, the first overload every argument widens to
// is used and the casts are inserted.
func (self *Binder) call(
	where sql.Expr,
	name string,
	output string,
	args ...expr.Expr,
) (expr.Expr, error) {
	for idx, a := range args {
		if untyped(a) {
			return nil, self.err(where, "cannot infer the type of null argument %d of %s", idx, name)
		}
	}
	if !self.registry.Has(name) {
		return nil, self.err(where, "unknown function %s", name)
	}

	argTypes := func() []types.MajorType {
		out := make([]types.MajorType, 0, len(args))
		for _, a := range args {
			out = append(out, a.Type())
		}
		return out
	}

	desc, ok := self.registry.Lookup(name, argTypes())
	if !ok {
		for _, overload := range self.registry.Overloads(name) {
			if !widens(args, overload) {
				continue
			}
			cast := make([]expr.Expr, len(args))
			for idx, a := range args {
				x, err := self.cast(where, a, overload[idx])
				if err != nil {
					return nil, err
				}
				cast[idx] = x
			}
			args = cast
			desc, ok = self.registry.Lookup(name, argTypes())
			break
		}
	}
	if !ok {
		parts := []string{}
		for _, a := range args {
			parts = append(parts, a.Type().Minor.String())
		}
		return nil, self.err(where, "function %s(%s) is not defined", name, strings.Join(parts, ", "))
	}

	sel, ok := desc.OutputIndex(output)
	if !ok {
		return nil, self.err(where, "function %s has no output %s", name, output)
	}

	t := types.RequiredOf(desc.Outputs[sel].Type)
	if desc.NullHandling == fn.NullIfNull && expr.AnyOptional(args...) {
		t = t.AsOptional()
	}
	return &expr.FunctionCall{
		Name:   name,
		Args:   args,
		Output: output,
		T:      t,
	}, nil
}

func widens(args []expr.Expr, to []types.MinorType) bool {
	if len(args) != len(to) {
		return false
	}
	for idx, a := range args {
		from := a.Type().Minor
		if from == to[idx] {
			continue
		}
		if w, ok := types.Widen(from, to[idx]); !ok || w != to[idx] {
			return false
		}
	}
	return true
}
