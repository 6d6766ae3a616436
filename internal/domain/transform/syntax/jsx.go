package syntax

import "strings"

// jsxStart reports whether the '<' at the current position opens a JSX
// element or fragment rather than a comparison.
func (lx *Lexer) jsxStart() bool {
	c := lx.peek(1)
	return c == '>' || c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// scanJSXElement consumes one element, including its children and
// closing tag, starting at '<'.
func (lx *Lexer) scanJSXElement() error {
	start := lx.pos
	lx.pos++

	if lx.peek(0) == '>' {
		lx.pos++
		return lx.scanJSXChildren(start)
	}

	lx.skipJSXSpace()
	if !lx.scanJSXName() {
		return lx.errorf(lx.pos, "expected JSX tag name")
	}

	for {
		if err := lx.skipJSXTrivia(); err != nil {
			return err
		}
		if lx.eof() {
			return lx.errorf(start, "unterminated JSX element")
		}

		c := lx.src[lx.pos]
		switch {
		case c == '/' && lx.peek(1) == '>':
			lx.pos += 2
			return nil
		case c == '>':
			lx.pos++
			return lx.scanJSXChildren(start)
		case c == '{':
			lx.pos++
			if err := lx.skipExpression(); err != nil {
				return err
			}
		case isJSXNameChar(c):
			lx.scanJSXName()
			if err := lx.skipJSXTrivia(); err != nil {
				return err
			}
			if lx.peek(0) == '=' {
				lx.pos++
				if err := lx.skipJSXTrivia(); err != nil {
					return err
				}
				if err := lx.scanJSXAttrValue(); err != nil {
					return err
				}
			}
		default:
			return lx.errorf(lx.pos, "unexpected character in JSX tag")
		}
	}
}

func (lx *Lexer) scanJSXAttrValue() error {
	switch c := lx.peek(0); c {
	case '"', '\'':
		end := strings.IndexByte(lx.src[lx.pos+1:], c)
		if end < 0 {
			return lx.errorf(lx.pos, "unterminated JSX attribute")
		}
		lx.pos += end + 2
		return nil
	case '{':
		lx.pos++
		return lx.skipExpression()
	case '<':
		return lx.scanJSXElement()
	default:
		return lx.errorf(lx.pos, "expected JSX attribute value")
	}
}

// scanJSXChildren consumes text, expressions and nested elements up to
// and including the closing tag.
func (lx *Lexer) scanJSXChildren(start int) error {
	for !lx.eof() {
		switch lx.src[lx.pos] {
		case '<':
			if lx.peek(1) == '/' {
				end := strings.IndexByte(lx.src[lx.pos:], '>')
				if end < 0 {
					return lx.errorf(lx.pos, "unterminated JSX closing tag")
				}
				lx.pos += end + 1
				return nil
			}
			if err := lx.scanJSXElement(); err != nil {
				return err
			}
		case '{':
			lx.pos++
			if err := lx.skipExpression(); err != nil {
				return err
			}
		default:
			lx.pos++
		}
	}
	return lx.errorf(start, "unterminated JSX element")
}

func (lx *Lexer) scanJSXName() bool {
	start := lx.pos
	for !lx.eof() && isJSXNameChar(lx.src[lx.pos]) {
		lx.pos++
	}
	return lx.pos > start
}

func (lx *Lexer) skipJSXSpace() {
	for !lx.eof() && strings.IndexByte(" \t\r\n", lx.src[lx.pos]) >= 0 {
		lx.pos++
	}
}

// skipJSXTrivia skips whitespace and comments between attributes
func (lx *Lexer) skipJSXTrivia() error {
	for {
		lx.skipJSXSpace()
		if lx.peek(0) != '/' || (lx.peek(1) != '/' && lx.peek(1) != '*') {
			return nil
		}
		if _, err := lx.skipTrivia(); err != nil {
			return err
		}
	}
}

func isJSXNameChar(c byte) bool {
	return isIdentPart(c) || c == '-' || c == '.' || c == ':'
}
