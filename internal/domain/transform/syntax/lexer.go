package syntax

import (
	"strings"
)

// exprKeywords are words after which an expression may start, so a
// following '/' is a regex and a following '<' may open JSX.
var exprKeywords = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true, "extends": true,
	"default": true, "export": true,
}

var puncts = []string{
	">>>=", "...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<", ">>", "**",
}

// Lexer splits JavaScript (with JSX) into tokens and collects comments
type Lexer struct {
	src      string
	pos      int
	comments []Comment

	prev    Token
	hasPrev bool
}

// NewLexer creates a lexer over src
func NewLexer(src string) *Lexer {
	lx := &Lexer{src: src}
	if strings.HasPrefix(src, "\uFEFF") {
		lx.pos = len("\uFEFF")
	}
	return lx
}

// Tokenize returns every token of src and the comments between them
func Tokenize(src string) ([]Token, []Comment, error) {
	lx := NewLexer(src)
	var toks []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, nil, err
		}
		if tok.Kind == EOF {
			return toks, lx.comments, nil
		}
		toks = append(toks, tok)
	}
}

// Comments returns the comments seen so far
func (lx *Lexer) Comments() []Comment {
	return lx.comments
}

// Next returns the next token
func (lx *Lexer) Next() (Token, error) {
	newline, err := lx.skipTrivia()
	if err != nil {
		return Token{}, err
	}

	start := lx.pos
	if lx.eof() {
		return Token{Kind: EOF, Start: start, End: start, NewlineBefore: newline}, nil
	}

	var kind Kind
	c := lx.src[lx.pos]
	switch {
	case isIdentStart(c):
		lx.scanIdent()
		kind = Ident
	case isDigit(c) || (c == '.' && isDigit(lx.peek(1))):
		lx.scanNumber()
		kind = Number
	case c == '"' || c == '\'':
		err = lx.scanString(c)
		kind = String
	case c == '`':
		err = lx.scanTemplate()
		kind = Template
	case c == '/' && lx.exprAllowed():
		err = lx.scanRegex()
		kind = Regex
	case c == '<' && lx.exprAllowed() && lx.jsxStart():
		err = lx.scanJSXElement()
		kind = JSX
	default:
		lx.scanPunct()
		kind = Punct
	}
	if err != nil {
		return Token{}, err
	}

	tok := Token{Kind: kind, Text: lx.src[start:lx.pos], Start: start, End: lx.pos, NewlineBefore: newline}
	lx.prev = tok
	lx.hasPrev = true
	return tok, nil
}

func (lx *Lexer) eof() bool { return lx.pos >= len(lx.src) }

func (lx *Lexer) peek(n int) byte {
	if lx.pos+n >= len(lx.src) {
		return 0
	}
	return lx.src[lx.pos+n]
}

func (lx *Lexer) errorf(offset int, msg string) error {
	line, col := Position(lx.src, offset)
	return &Error{Msg: msg, Offset: offset, Line: line, Column: col}
}

// skipTrivia skips whitespace and records comments
func (lx *Lexer) skipTrivia() (newline bool, err error) {
	for !lx.eof() {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			newline = true
			lx.pos++
		case c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			lx.pos++
		case c == 0xC2 && lx.peek(1) == 0xA0:
			lx.pos += 2
		case strings.HasPrefix(lx.src[lx.pos:], "\u2028"), strings.HasPrefix(lx.src[lx.pos:], "\u2029"):
			newline = true
			lx.pos += 3
		case c == '/' && lx.peek(1) == '/':
			start := lx.pos
			end := strings.IndexByte(lx.src[lx.pos:], '\n')
			if end < 0 {
				lx.pos = len(lx.src)
			} else {
				lx.pos += end
			}
			lx.comments = append(lx.comments, Comment{
				Value: lx.src[start+2 : lx.pos],
				Range: Span{Start: start, End: lx.pos},
			})
		case c == '/' && lx.peek(1) == '*':
			start := lx.pos
			end := strings.Index(lx.src[lx.pos+2:], "*/")
			if end < 0 {
				return newline, lx.errorf(start, "unterminated comment")
			}
			body := lx.src[lx.pos+2 : lx.pos+2+end]
			if strings.ContainsAny(body, "\n\u2028\u2029") {
				newline = true
			}
			lx.pos += end + 4
			lx.comments = append(lx.comments, Comment{
				Value: body,
				Range: Span{Start: start, End: lx.pos},
				Block: true,
			})
		default:
			return newline, nil
		}
	}
	return newline, nil
}

// exprAllowed reports whether an expression may begin at the current token
func (lx *Lexer) exprAllowed() bool {
	if !lx.hasPrev {
		return true
	}
	p := lx.prev
	switch p.Kind {
	case Number, String, Template, Regex, JSX:
		return false
	case Ident:
		return exprKeywords[p.Text]
	case Punct:
		switch p.Text {
		case ")", "]", "}", "++", "--":
			return false
		}
	}
	return true
}

func (lx *Lexer) scanIdent() {
	lx.pos++
	for !lx.eof() && isIdentPart(lx.src[lx.pos]) {
		lx.pos++
	}
}

func (lx *Lexer) scanNumber() {
	hex := lx.peek(0) == '0' && (lx.peek(1) == 'x' || lx.peek(1) == 'X')
	for !lx.eof() {
		c := lx.src[lx.pos]
		switch {
		case isIdentPart(c) || c == '.':
			lx.pos++
		case (c == '+' || c == '-') && !hex && (lx.src[lx.pos-1] == 'e' || lx.src[lx.pos-1] == 'E'):
			lx.pos++
		default:
			return
		}
	}
}

func (lx *Lexer) scanString(quote byte) error {
	start := lx.pos
	lx.pos++
	for !lx.eof() {
		switch c := lx.src[lx.pos]; c {
		case '\\':
			lx.pos += 2
			if lx.pos <= len(lx.src) && lx.src[lx.pos-1] == '\r' && lx.peek(0) == '\n' {
				lx.pos++
			}
		case quote:
			lx.pos++
			return nil
		case '\n':
			return lx.errorf(start, "unterminated string literal")
		default:
			lx.pos++
		}
	}
	return lx.errorf(start, "unterminated string literal")
}

func (lx *Lexer) scanTemplate() error {
	start := lx.pos
	lx.pos++
	for !lx.eof() {
		switch c := lx.src[lx.pos]; {
		case c == '\\':
			lx.pos += 2
		case c == '`':
			lx.pos++
			return nil
		case c == '$' && lx.peek(1) == '{':
			lx.pos += 2
			if err := lx.skipExpression(); err != nil {
				return err
			}
		default:
			lx.pos++
		}
	}
	return lx.errorf(start, "unterminated template literal")
}

func (lx *Lexer) scanRegex() error {
	start := lx.pos
	lx.pos++
	inClass := false
	for !lx.eof() {
		c := lx.src[lx.pos]
		switch {
		case c == '\n':
			return lx.errorf(start, "unterminated regular expression")
		case c == '\\':
			lx.pos += 2
			continue
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			lx.pos++
			for !lx.eof() && isIdentPart(lx.src[lx.pos]) {
				lx.pos++
			}
			return nil
		}
		lx.pos++
	}
	return lx.errorf(start, "unterminated regular expression")
}

func (lx *Lexer) scanPunct() {
	rest := lx.src[lx.pos:]
	for _, p := range puncts {
		if strings.HasPrefix(rest, p) {
			lx.pos += len(p)
			return
		}
	}
	lx.pos++
}

// skipExpression consumes tokens through the '}' that closes an
// embedded expression. The opening '{' has already been consumed.
func (lx *Lexer) skipExpression() error {
	start := lx.pos
	saved, savedHas := lx.prev, lx.hasPrev
	lx.hasPrev = false

	depth := 0
	for {
		tok, err := lx.Next()
		if err != nil {
			return err
		}
		switch {
		case tok.Kind == EOF:
			return lx.errorf(start, "unterminated expression")
		case tok.Kind == Punct && tok.Text == "{":
			depth++
		case tok.Kind == Punct && tok.Text == "}":
			if depth == 0 {
				lx.prev, lx.hasPrev = saved, savedHas
				return nil
			}
			depth--
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || c == '\\' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
