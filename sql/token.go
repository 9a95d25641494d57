package sql

import (
	"fmt"
)

type Token int

const (
	TkError Token = iota
	TkEof

	// Literal
	TkTrue
	TkFalse
	TkNull
	TkInt
	TkReal
	TkStr
	TkId

	// Keywords
	TkAnd
	TkOr
	TkNot
	TkIn
	TkIs
	TkBetween

	// Punctuation
	TkComma
	TkColon
	TkQuestion
	TkDot
	TkLPar
	TkRPar

	// Arithmetic and comparison
	TkAdd
	TkSub
	TkMul
	TkDiv
	TkMod
	TkEq
	TkNe
	TkLt
	TkLe
	TkGt
	TkGe
)

var tokenText = [...]string{
	TkError:    "<error>",
	TkEof:      "<eof>",
	TkTrue:     "true",
	TkFalse:    "false",
	TkNull:     "null",
	TkInt:      "<int>",
	TkReal:     "<real>",
	TkStr:      "<string>",
	TkId:       "<identifier>",
	TkAnd:      "and",
	TkOr:       "or",
	TkNot:      "not",
	TkIn:       "in",
	TkIs:       "is",
	TkBetween:  "between",
	TkComma:    ",",
	TkColon:    ":",
	TkQuestion: "?",
	TkDot:      ".",
	TkLPar:     "(",
	TkRPar:     ")",
	TkAdd:      "+",
	TkSub:      "-",
	TkMul:      "*",
	TkDiv:      "/",
	TkMod:      "%",
	TkEq:       "==",
	TkNe:       "!=",
	TkLt:       "<",
	TkLe:       "<=",
	TkGt:       ">",
	TkGe:       ">=",
}

func (self Token) String() string {
	if self < 0 || int(self) >= len(tokenText) {
		return fmt.Sprintf("token(%d)", int(self))
	}
	return tokenText[self]
}

// keywords are matched case insensitively, nil is an alias of null
var keywords = map[string]Token{
	"and":     TkAnd,
	"or":      TkOr,
	"not":     TkNot,
	"in":      TkIn,
	"is":      TkIs,
	"between": TkBetween,
	"null":    TkNull,
	"nil":     TkNull,
	"true":    TkTrue,
	"false":   TkFalse,
}

// operators holds every punctuation lexeme, the two byte forms are tried
// first
var operators = map[string]Token{
	",":  TkComma,
	":":  TkColon,
	"?":  TkQuestion,
	".":  TkDot,
	"(":  TkLPar,
	")":  TkRPar,
	"+":  TkAdd,
	"-":  TkSub,
	"*":  TkMul,
	"/":  TkDiv,
	"%":  TkMod,
	"=":  TkEq,
	"==": TkEq,
	"!=": TkNe,
	"<>": TkNe,
	"!":  TkNot,
	"<":  TkLt,
	"<=": TkLe,
	">":  TkGt,
	">=": TkGe,
	"&&": TkAnd,
	"||": TkOr,
}

// Pos locates a byte of the source, Line and Col start at 1
type Pos struct {
	Offset int
	Line   int
	Col    int
}

func (self Pos) String() string {
	return fmt.Sprintf("position(%d: %d)", self.Line, self.Col)
}
