package sql

// Parser of the predicate and sort key expressions handed to the code
// generator.
//
// expr    := binary ['?' binary ':' expr]
// binary  := unary (infix unary)*
// infix   := OR | AND | '==' | '!=' | '<>' | '<' | '<=' | '>' | '>=' |
//            '+' | '-' | '*' | '/' | '%'
//          | [NOT] BETWEEN binary AND binary
//          | [NOT] IN '(' expr (',' expr)* ')'
//          | IS [NOT] NULL
// unary   := ('+' | '-' | NOT | '!') unary | primary
// primary := const | ID | call | '(' expr ')'
// call    := ID '(' [expr (',' expr)*] ')' ['.' (ID | STR)]
// const   := INT | REAL | STR | TRUE | FALSE | NULL
//
// BETWEEN and IN are rewritten into comparisons joined by AND and OR.

import (
	"fmt"
)

// binding power of the infix operators, higher binds tighter
var precedence = map[Token]int{
	TkOr:      1,
	TkAnd:     2,
	TkNot:     3,
	TkIn:      3,
	TkBetween: 3,
	TkEq:      4,
	TkNe:      4,
	TkIs:      4,
	TkLt:      5,
	TkLe:      5,
	TkGt:      5,
	TkGe:      5,
	TkAdd:     6,
	TkSub:     6,
	TkMul:     7,
	TkDiv:     7,
	TkMod:     7,
}

type Parser struct {
	L *Lexer

	// end of the last consumed token
	last Pos
}

func NewParser(src string) *Parser {
	return &Parser{
		L: NewLexer(src),
	}
}

// ParseExpr is a shortcut of NewParser(src).ParseExpr()
func ParseExpr(src string) (Expr, error) {
	return NewParser(src).ParseExpr()
}

// ParseExpr parses the whole input as one expression
func (self *Parser) ParseExpr() (Expr, error) {
	self.L.Next()
	if self.L.Token == TkEof {
		return nil, self.err("empty expression")
	}

	e, err := self.parseExpr()
	if err != nil {
		return nil, err
	}
	if self.L.Token != TkEof {
		return nil, self.err("dangling %s after the expression", self.L.Token)
	}
	return e, nil
}

func (self *Parser) advance() Token {
	self.last = self.L.End
	return self.L.Next()
}

func (self *Parser) err(f string, args ...interface{}) error {
	if self.L.Err != nil {
		return self.L.Err
	}
	return fmt.Errorf("around %s: %s", self.L.Start, fmt.Sprintf(f, args...))
}

func (self *Parser) expect(tk Token, what string) error {
	if self.L.Token != tk {
		return self.err("expect %s %s, got %s", tk, what, self.L.Token)
	}
	self.advance()
	return nil
}

func (self *Parser) span(start Pos) Span {
	end := self.last
	if end.Offset < start.Offset {
		end = start
	}
	return Span{
		Start:   start,
		End:     end,
		Snippet: self.L.Source()[start.Offset:end.Offset],
	}
}

func (self *Parser) parseExpr() (Expr, error) {
	start := self.L.Start

	cond, err := self.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if self.L.Token != TkQuestion {
		return cond, nil
	}
	self.advance()

	then, err := self.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if err := self.expect(TkColon, "in conditional expression"); err != nil {
		return nil, err
	}
	els, err := self.parseExpr()
	if err != nil {
		return nil, err
	}

	return &Ternary{
		Cond: cond,
		Then: then,
		Else: els,
		Span: self.span(start),
	}, nil
}

// parseBinary is a precedence climbing loop over the operators binding at
// least as tight as min
func (self *Parser) parseBinary(min int) (Expr, error) {
	start := self.L.Start

	lhs, err := self.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		tk := self.L.Token
		prec, ok := precedence[tk]
		if !ok || prec < min {
			return lhs, nil
		}
		self.advance()

		switch tk {
		case TkIs:
			lhs, err = self.parseIsNull(lhs, start)
			break

		case TkNot:
			lhs, err = self.parseNegated(lhs, start, prec)
			break

		case TkBetween:
			lhs, err = self.parseBetween(lhs, start, prec)
			break

		case TkIn:
			lhs, err = self.parseIn(lhs, start)
			break

		default:
			var rhs Expr
			if rhs, err = self.parseBinary(prec + 1); err == nil {
				lhs = &Binary{
					Op:   tk,
					L:    lhs,
					R:    rhs,
					Span: self.span(start),
				}
			}
			break
		}

		if err != nil {
			return nil, err
		}
	}
}

// IS [NOT] NULL, IS is consumed
func (self *Parser) parseIsNull(lhs Expr, start Pos) (Expr, error) {
	not := false
	if self.L.Token == TkNot {
		not = true
		self.advance()
	}
	if err := self.expect(TkNull, "after IS"); err != nil {
		return nil, err
	}
	return &IsNull{
		Operand: lhs,
		Not:     not,
		Span:    self.span(start),
	}, nil
}

// NOT IN and NOT BETWEEN, NOT is consumed
func (self *Parser) parseNegated(lhs Expr, start Pos, prec int) (Expr, error) {
	var out Expr
	var err error

	switch self.L.Token {
	case TkIn:
		self.advance()
		out, err = self.parseIn(lhs, start)
		break

	case TkBetween:
		self.advance()
		out, err = self.parseBetween(lhs, start, prec)
		break

	default:
		return nil, self.err("NOT after an operand must be followed by IN or BETWEEN")
	}
	if err != nil {
		return nil, err
	}

	return &Unary{
		Op:      TkNot,
		Operand: out,
		Span:    self.span(start),
	}, nil
}

// x BETWEEN lo AND hi is x >= lo AND x <= hi
func (self *Parser) parseBetween(lhs Expr, start Pos, prec int) (Expr, error) {
	lo, err := self.parseBinary(prec + 1)
	if err != nil {
		return nil, err
	}
	if err := self.expect(TkAnd, "in BETWEEN"); err != nil {
		return nil, err
	}
	hi, err := self.parseBinary(prec + 1)
	if err != nil {
		return nil, err
	}

	span := self.span(start)
	return &Binary{
		Op:   TkAnd,
		L:    &Binary{Op: TkGe, L: lhs, R: lo, Span: span},
		R:    &Binary{Op: TkLe, L: lhs, R: hi, Span: span},
		Span: span,
	}, nil
}

// x IN (a, b) is x == a OR x == b
func (self *Parser) parseIn(lhs Expr, start Pos) (Expr, error) {
	if err := self.expect(TkLPar, "after IN"); err != nil {
		return nil, err
	}

	list := []Expr{}
	for self.L.Token != TkRPar {
		e, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		list = append(list, e)

		if self.L.Token == TkComma {
			self.advance()
		} else if self.L.Token != TkRPar {
			return nil, self.err("expect ',' or ')' after an element of IN")
		}
	}
	self.advance()

	if len(list) == 0 {
		return nil, self.err("IN requires at least one element")
	}

	span := self.span(start)
	var out Expr
	for _, e := range list {
		eq := &Binary{Op: TkEq, L: lhs, R: e, Span: span}
		if out == nil {
			out = eq
		} else {
			out = &Binary{Op: TkOr, L: out, R: eq, Span: span}
		}
	}
	return out, nil
}

func (self *Parser) parseUnary() (Expr, error) {
	start := self.L.Start

	switch tk := self.L.Token; tk {
	case TkAdd, TkSub, TkNot:
		self.advance()
		operand, err := self.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{
			Op:      tk,
			Operand: operand,
			Span:    self.span(start),
		}, nil

	default:
		return self.parsePrimary()
	}
}

func (self *Parser) parsePrimary() (Expr, error) {
	start := self.L.Start

	switch self.L.Token {
	case TkTrue, TkFalse, TkNull, TkStr, TkInt, TkReal:
		return self.parseConst(), nil

	case TkLPar:
		self.advance()
		e, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := self.expect(TkRPar, "to close '('"); err != nil {
			return nil, err
		}
		return e, nil

	case TkId:
		name := self.L.Lexeme.Text
		self.advance()
		switch self.L.Token {
		case TkLPar:
			return self.parseCall(name, start)
		case TkDot:
			return nil, self.err("'.' only selects an output of a function call")
		default:
			return &Ref{Id: name, Span: self.span(start)}, nil
		}

	default:
		return nil, self.err("unexpected %s in expression", self.L.Token)
	}
}

// parseCall starts at '(' following the function name
func (self *Parser) parseCall(name string, start Pos) (Expr, error) {
	self.advance()

	args := []Expr{}
	for self.L.Token != TkRPar {
		e, err := self.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)

		if self.L.Token == TkComma {
			self.advance()
		} else if self.L.Token != TkRPar {
			return nil, self.err("expect ',' or ')' after call argument")
		}
	}
	self.advance()

	c := &Call{
		Name: name,
		Args: args,
	}
	if self.L.Token == TkDot {
		switch self.advance() {
		case TkId, TkStr:
			c.Output = self.L.Lexeme.Text
			self.advance()
			break
		default:
			return nil, self.err("expect an output name after '.'")
		}
	}
	c.Span = self.span(start)
	return c, nil
}

func (self *Parser) parseConst() *Const {
	start := self.L.Start
	c := &Const{}

	switch self.L.Token {
	case TkTrue, TkFalse:
		c.Ty = ConstBool
		c.Bool = self.L.Token == TkTrue
		break
	case TkStr:
		c.Ty = ConstStr
		c.String = self.L.Lexeme.Text
		break
	case TkInt:
		c.Ty = ConstInt
		c.Int = self.L.Lexeme.Int
		break
	case TkReal:
		c.Ty = ConstReal
		c.Real = self.L.Lexeme.Real
		break
	default:
		c.Ty = ConstNull
		break
	}

	self.advance()
	c.Span = self.span(start)
	return c
}
