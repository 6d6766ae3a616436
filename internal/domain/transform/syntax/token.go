package syntax

import (
	"fmt"
	"unicode/utf8"
)

// Kind classifies a token
type Kind int

const (
	EOF Kind = iota
	Ident
	Number
	String
	Template
	Regex
	JSX
	Punct
)

var kindNames = [...]string{
	EOF:      "EOF",
	Ident:    "identifier",
	Number:   "number",
	String:   "string",
	Template: "template",
	Regex:    "regex",
	JSX:      "JSX element",
	Punct:    "punctuator",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Span is a half-open byte range in the source
type Span struct {
	Start int
	End   int
}

// Token is one lexical token. A JSX element or a template literal is a
// single token covering its whole text.
type Token struct {
	Kind          Kind
	Text          string
	Start         int
	End           int
	NewlineBefore bool
}

// Span returns the byte range of the token
func (t Token) Span() Span { return Span{Start: t.Start, End: t.End} }

// Is reports whether t is the punctuator or word s
func (t Token) Is(s string) bool {
	return (t.Kind == Punct || t.Kind == Ident) && t.Text == s
}

// Comment is a line or block comment found while tokenizing
type Comment struct {
	Value string
	Range Span
	Block bool
}

// Error is a syntax error with a 1-based position
type Error struct {
	Msg    string
	Offset int
	Line   int
	Column int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

// Position converts a byte offset to a 1-based line and column
func Position(src string, offset int) (line, column int) {
	if offset > len(src) {
		offset = len(src)
	}
	line, column = 1, 1
	for i := 0; i < offset; {
		r, size := utf8.DecodeRuneInString(src[i:])
		i += size
		if r == '\n' {
			line++
			column = 1
			continue
		}
		column++
	}
	return line, column
}
