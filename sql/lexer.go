package sql

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Lexeme struct {
	Text string
	Int  int64
	Real float64
}

// Lexer splits an expression into tokens. Identifiers are lowered, so
// column and function names are case insensitive. An error is sticky: once
// Token is TkError every Next returns it and Err tells why.
type Lexer struct {
	src string
	pos Pos

	Token  Token
	Lexeme Lexeme
	Start  Pos
	End    Pos
	Err    error
}

func NewLexer(src string) *Lexer {
	return &Lexer{
		src:   src,
		pos:   Pos{Line: 1, Col: 1},
		Token: TkError,
	}
}

func (self *Lexer) Source() string { return self.src }

func (self *Lexer) at(i int) byte {
	if self.pos.Offset+i >= len(self.src) {
		return 0
	}
	return self.src[self.pos.Offset+i]
}

func (self *Lexer) advance(n int) {
	for _, r := range self.src[self.pos.Offset : self.pos.Offset+n] {
		if r == '\n' {
			self.pos.Line++
			self.pos.Col = 1
		} else {
			self.pos.Col++
		}
	}
	self.pos.Offset += n
}

func (self *Lexer) fail(f string, args ...interface{}) Token {
	self.Err = fmt.Errorf("around %s: %s", self.pos, fmt.Sprintf(f, args...))
	self.Token = TkError
	return TkError
}

func (self *Lexer) Next() Token {
	if self.Token == TkEof || self.Err != nil {
		return self.Token
	}
	if !self.skip() {
		return TkError
	}

	self.Start = self.pos
	self.Lexeme = Lexeme{}
	tk := self.scan()
	if tk == TkError {
		return tk
	}
	self.End = self.pos
	self.Token = tk
	return tk
}

// skip moves past blanks and comments: # and // to the end of the line,
// /* */ blocks
func (self *Lexer) skip() bool {
	for self.pos.Offset < len(self.src) {
		c := self.src[self.pos.Offset]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\b' || c == '\f':
			self.advance(1)
			break

		case c == '#' || (c == '/' && self.at(1) == '/'):
			end := strings.IndexByte(self.src[self.pos.Offset:], '\n')
			if end < 0 {
				end = len(self.src) - self.pos.Offset
			} else {
				end++
			}
			self.advance(end)
			break

		case c == '/' && self.at(1) == '*':
			end := strings.Index(self.src[self.pos.Offset+2:], "*/")
			if end < 0 {
				self.fail("block comment is not closed properly")
				return false
			}
			self.advance(end + 4)
			break

		default:
			return true
		}
	}
	return true
}

func (self *Lexer) scan() Token {
	if self.pos.Offset == len(self.src) {
		return TkEof
	}

	r, sz := utf8.DecodeRuneInString(self.src[self.pos.Offset:])
	switch {
	case r == utf8.RuneError && sz == 1:
		return self.fail("invalid utf8 character")
	case r == '\'' || r == '"':
		return self.lexStr(byte(r))
	case r >= '0' && r <= '9':
		return self.lexNum()
	case r == '_' || r == '$' || unicode.IsLetter(r):
		return self.lexWord()
	}

	if self.pos.Offset+2 <= len(self.src) {
		if tk, ok := operators[self.src[self.pos.Offset:self.pos.Offset+2]]; ok {
			self.advance(2)
			return tk
		}
	}
	if tk, ok := operators[string(r)]; ok {
		self.advance(sz)
		return tk
	}

	switch r {
	case '&':
		return self.fail("are you missing '&' for and operator?")
	case '|':
		return self.fail("are you missing '|' for or operator?")
	default:
		return self.fail("unexpected character %q", r)
	}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func digits(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return i
}

// lexNum reads 0x prefixed hex integers, decimal integers and reals with a
// fraction or an exponent. Integers are 64 bits.
func (self *Lexer) lexNum() Token {
	s := self.src[self.pos.Offset:]
	n := 0
	isReal := false
	base := 10

	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base = 16
		n = 2
		for n < len(s) && isHex(s[n]) {
			n++
		}
	} else {
		n = digits(s, 0)
		if n < len(s) && s[n] == '.' {
			isReal = true
			n = digits(s, n+1)
		}
		if n < len(s) && (s[n] == 'e' || s[n] == 'E') {
			m := n + 1
			if m < len(s) && (s[m] == '+' || s[m] == '-') {
				m++
			}
			if e := digits(s, m); e > m {
				isReal = true
				n = e
			}
		}
	}

	text := s[:n]
	if isReal {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return self.fail("%s", err)
		}
		self.Lexeme = Lexeme{Text: text, Real: v}
		self.advance(n)
		return TkReal
	}

	digitsOnly := text
	if base == 16 {
		digitsOnly = text[2:]
	}
	v, err := strconv.ParseInt(digitsOnly, base, 64)
	if err != nil {
		return self.fail("%s", err)
	}
	self.Lexeme = Lexeme{Text: text, Int: v}
	self.advance(n)
	return TkInt
}

var escapes = map[byte]byte{
	't':  '\t',
	'n':  '\n',
	'b':  '\b',
	'v':  '\v',
	'r':  '\r',
	'\'': '\'',
	'"':  '"',
	'\\': '\\',
}

func (self *Lexer) lexStr(quote byte) Token {
	buf := strings.Builder{}

	for i := self.pos.Offset + 1; i < len(self.src); {
		c := self.src[i]
		switch {
		case c == quote:
			text := buf.String()
			if !utf8.ValidString(text) {
				return self.fail("invalid utf8 character")
			}
			self.Lexeme = Lexeme{Text: text}
			self.advance(i + 1 - self.pos.Offset)
			return TkStr

		case c == '\\' && i+1 < len(self.src):
			e, ok := escapes[self.src[i+1]]
			if !ok {
				self.advance(i - self.pos.Offset)
				return self.fail("unknown escape sequence \\%c inside of string literal", self.src[i+1])
			}
			buf.WriteByte(e)
			i += 2
			break

		default:
			buf.WriteByte(c)
			i++
			break
		}
	}
	return self.fail("string literal is not closed by quote properly")
}

// lexWord reads a keyword or an identifier. '$' may only lead.
func (self *Lexer) lexWord() Token {
	s := self.src[self.pos.Offset:]
	n := 0
	for n < len(s) {
		r, sz := utf8.DecodeRuneInString(s[n:])
		if !(r == '_' || (r == '$' && n == 0) || unicode.IsLetter(r) || unicode.IsDigit(r)) {
			break
		}
		n += sz
	}

	word := strings.ToLower(s[:n])
	self.advance(n)
	if tk, ok := keywords[word]; ok {
		return tk
	}
	self.Lexeme = Lexeme{Text: word}
	return TkId
}
