package syntax

import (
	"fmt"
	"strconv"
)

// operatorWords cannot end an expression
var operatorWords = map[string]bool{
	"typeof": true, "instanceof": true, "in": true, "of": true, "new": true,
	"delete": true, "void": true, "await": true, "yield": true, "return": true,
	"throw": true, "case": true, "extends": true, "as": true, "else": true,
}

// literalWords are expressions, not bindings
var literalWords = map[string]bool{
	"null": true, "true": true, "false": true, "undefined": true, "this": true,
}

// continuationWords continue the previous line's statement
var continuationWords = map[string]bool{
	"else": true, "catch": true, "finally": true, "instanceof": true,
	"in": true, "of": true, "as": true, "extends": true,
}

// Parser builds the top-level statement tree of a source file
type Parser struct {
	src  string
	toks []Token
	i    int
}

// Parse tokenizes and parses src
func Parse(src string) (*Program, error) {
	toks, comments, err := Tokenize(src)
	if err != nil {
		return nil, err
	}

	p := &Parser{src: src, toks: toks}
	prog := &Program{Comments: comments}
	prog.span = Span{Start: 0, End: len(src)}

	for !p.done() {
		stmt, err := p.statement()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			prog.Body = append(prog.Body, stmt)
		}
	}
	return prog, nil
}

func (p *Parser) done() bool { return p.i >= len(p.toks) }

func (p *Parser) peek(n int) Token {
	if p.i+n >= len(p.toks) {
		end := len(p.src)
		return Token{Kind: EOF, Start: end, End: end}
	}
	return p.toks[p.i+n]
}

func (p *Parser) next() Token {
	tok := p.peek(0)
	if !p.done() {
		p.i++
	}
	return tok
}

// lastEnd is the end offset of the last consumed token
func (p *Parser) lastEnd() int {
	if p.i == 0 {
		return 0
	}
	return p.toks[p.i-1].End
}

func (p *Parser) isPunct(n int, text string) bool {
	tok := p.peek(n)
	return tok.Kind == Punct && tok.Text == text
}

func (p *Parser) isWord(n int, text string) bool {
	tok := p.peek(n)
	return tok.Kind == Ident && tok.Text == text
}

func (p *Parser) errorf(tok Token, format string, args ...interface{}) error {
	line, col := Position(p.src, tok.Start)
	msg := fmt.Sprintf(format, args...)
	if tok.Kind == EOF {
		msg += " (unexpected end of input)"
	}
	return &Error{Msg: msg, Offset: tok.Start, Line: line, Column: col}
}

func (p *Parser) statement() (Node, error) {
	tok := p.peek(0)
	switch {
	case tok.Kind == Punct && tok.Text == ";":
		p.next()
		return nil, nil
	case p.isWord(0, "export"):
		return p.exportDecl()
	case p.isWord(0, "import") && !p.isPunct(1, "(") && !p.isPunct(1, "."):
		return p.importDecl()
	case p.isWord(0, "var"), p.isWord(0, "let"), p.isWord(0, "const"):
		return p.varDecl()
	case p.isWord(0, "function"), p.isAsyncFunction():
		return p.functionDecl()
	case p.isWord(0, "class"):
		return p.classDecl()
	case tok.Kind == Punct && tok.Text == "{":
		if err := p.skipBalanced(); err != nil {
			return nil, err
		}
		s := &Statement{}
		s.span = Span{Start: tok.Start, End: p.lastEnd()}
		return s, nil
	default:
		return p.otherStatement()
	}
}

func (p *Parser) isAsyncFunction() bool {
	return p.isWord(0, "async") && p.isWord(1, "function") && !p.peek(1).NewlineBefore
}

func (p *Parser) otherStatement() (Node, error) {
	start := p.peek(0)
	if err := p.skipUntil(false); err != nil {
		return nil, err
	}
	if p.isPunct(0, ";") {
		p.next()
	}
	if p.i < len(p.toks) && p.peek(0).Start == start.Start {
		// Stray closer at statement level
		return nil, p.errorf(start, "unexpected %q", start.Text)
	}
	s := &Statement{}
	s.span = Span{Start: start.Start, End: p.lastEnd()}
	return s, nil
}

func (p *Parser) exportDecl() (Node, error) {
	exp := p.next()

	switch {
	case p.isWord(0, "default"):
		def := p.next()
		node := &ExportDefault{Clause: Span{Start: exp.Start, End: def.End}}

		var err error
		switch {
		case p.isWord(0, "function"), p.isAsyncFunction():
			node.Decl, err = p.functionDecl()
		case p.isWord(0, "class"):
			node.Decl, err = p.classDecl()
		default:
			node.Decl, err = p.defaultExpression()
		}
		if err != nil {
			return nil, err
		}
		node.span = Span{Start: exp.Start, End: p.lastEnd()}
		return node, nil

	case p.isPunct(0, "{"):
		return p.exportList(exp)

	case p.isPunct(0, "*"):
		p.next()
		node := &ExportList{All: true}
		if p.isWord(0, "as") {
			p.next()
			p.next()
		}
		if p.isWord(0, "from") {
			p.next()
			node.From = p.stringValue(p.next())
		}
		if p.isPunct(0, ";") {
			p.next()
		}
		node.span = Span{Start: exp.Start, End: p.lastEnd()}
		return node, nil

	case p.isWord(0, "var"), p.isWord(0, "let"), p.isWord(0, "const"),
		p.isWord(0, "function"), p.isAsyncFunction(), p.isWord(0, "class"):
		decl, err := p.statement()
		if err != nil {
			return nil, err
		}
		node := &ExportNamed{Decl: decl, Keyword: exp.Span()}
		node.span = Span{Start: exp.Start, End: p.lastEnd()}
		return node, nil
	}

	return nil, p.errorf(p.peek(0), "unexpected token after export")
}

func (p *Parser) defaultExpression() (Node, error) {
	start := p.i
	first := p.peek(0)
	if err := p.skipUntil(false); err != nil {
		return nil, err
	}
	if p.i == start {
		return nil, p.errorf(first, "expected expression after export default")
	}

	span := Span{Start: first.Start, End: p.lastEnd()}
	if p.isPunct(0, ";") {
		p.next()
	}

	bare := p.i-start == 1 || (p.i-start == 2 && p.toks[start+1].Is(";"))
	if bare && first.Kind == Ident && !literalWords[first.Text] {
		id := &Identifier{Name: first.Text}
		id.span = first.Span()
		return id, nil
	}
	expr := &Expression{}
	expr.span = span
	return expr, nil
}

func (p *Parser) exportList(exp Token) (Node, error) {
	p.next()
	node := &ExportList{}

	for !p.isPunct(0, "}") {
		tok := p.next()
		if tok.Kind != Ident {
			return nil, p.errorf(tok, "expected identifier in export list")
		}
		spec := &ExportSpecifier{Local: identifier(tok)}
		spec.Exported = spec.Local
		if p.isWord(0, "as") {
			p.next()
			alias := p.next()
			if alias.Kind != Ident && alias.Kind != String {
				return nil, p.errorf(alias, "expected name after as")
			}
			spec.Exported = identifier(alias)
		}
		spec.span = Span{Start: tok.Start, End: p.lastEnd()}
		node.Specifiers = append(node.Specifiers, spec)

		if p.isPunct(0, ",") {
			p.next()
			continue
		}
		if !p.isPunct(0, "}") {
			return nil, p.errorf(p.peek(0), "expected , or } in export list")
		}
	}
	p.next()

	if p.isWord(0, "from") {
		p.next()
		node.From = p.stringValue(p.next())
	}
	if p.isPunct(0, ";") {
		p.next()
	}
	node.span = Span{Start: exp.Start, End: p.lastEnd()}
	return node, nil
}

func (p *Parser) importDecl() (Node, error) {
	imp := p.next()
	node := &ImportDecl{}

	for !p.done() && !p.isPunct(0, ";") {
		tok := p.next()
		if tok.Kind == String {
			node.Source = p.stringValue(tok)
			break
		}
	}
	if p.isPunct(0, ";") {
		p.next()
	}
	node.span = Span{Start: imp.Start, End: p.lastEnd()}
	return node, nil
}

func (p *Parser) varDecl() (Node, error) {
	kw := p.next()
	node := &VarDecl{Kind: kw.Text}

	for {
		d, err := p.declarator()
		if err != nil {
			return nil, err
		}
		node.Declarators = append(node.Declarators, d)
		if !p.isPunct(0, ",") {
			break
		}
		p.next()
	}
	if p.isPunct(0, ";") {
		p.next()
	}
	node.span = Span{Start: kw.Start, End: p.lastEnd()}
	return node, nil
}

func (p *Parser) declarator() (*Declarator, error) {
	start := p.peek(0)
	id, err := p.bindingTarget()
	if err != nil {
		return nil, err
	}

	d := &Declarator{ID: id}
	if p.isPunct(0, "=") {
		p.next()
		initStart := p.peek(0)
		if err := p.skipUntil(true); err != nil {
			return nil, err
		}
		d.Init = &Expression{}
		d.Init.span = Span{Start: initStart.Start, End: p.lastEnd()}
	}
	d.span = Span{Start: start.Start, End: p.lastEnd()}
	return d, nil
}

// bindingTarget parses an identifier or destructuring pattern
func (p *Parser) bindingTarget() (Node, error) {
	tok := p.peek(0)
	switch {
	case tok.Kind == Ident:
		p.next()
		return identifier(tok), nil
	case tok.Is("{"):
		return p.objectPattern()
	case tok.Is("["):
		return p.arrayPattern()
	}
	return nil, p.errorf(tok, "unexpected %s in binding", tok.Kind)
}

// withDefault wraps target in an AssignmentPattern when `= value` follows
func (p *Parser) withDefault(target Node) (Node, error) {
	if !p.isPunct(0, "=") {
		return target, nil
	}
	p.next()
	if err := p.skipUntil(true); err != nil {
		return nil, err
	}
	ap := &AssignmentPattern{Left: target}
	ap.span = Span{Start: target.Span().Start, End: p.lastEnd()}
	return ap, nil
}

func (p *Parser) objectPattern() (Node, error) {
	open := p.next()
	node := &ObjectPattern{}

	for !p.isPunct(0, "}") {
		if p.done() {
			return nil, p.errorf(open, "unterminated object pattern")
		}

		var prop Node
		switch key := p.peek(0); {
		case key.Is("..."):
			p.next()
			arg, err := p.bindingTarget()
			if err != nil {
				return nil, err
			}
			rest := &RestElement{Arg: arg}
			rest.span = Span{Start: key.Start, End: p.lastEnd()}
			prop = rest
		default:
			if key.Is("[") {
				if err := p.skipBalanced(); err != nil {
					return nil, err
				}
			} else {
				if key.Kind != Ident && key.Kind != String && key.Kind != Number {
					return nil, p.errorf(key, "unexpected %s in object pattern", key.Kind)
				}
				p.next()
			}

			if p.isPunct(0, ":") {
				p.next()
				target, err := p.bindingTarget()
				if err != nil {
					return nil, err
				}
				prop = target
			} else if key.Kind == Ident {
				prop = identifier(key)
			} else {
				return nil, p.errorf(key, "expected : after computed key")
			}

			var err error
			if prop, err = p.withDefault(prop); err != nil {
				return nil, err
			}
		}

		node.Properties = append(node.Properties, prop)
		if p.isPunct(0, ",") {
			p.next()
		} else if !p.isPunct(0, "}") {
			return nil, p.errorf(p.peek(0), "expected , or } in object pattern")
		}
	}
	p.next()
	node.span = Span{Start: open.Start, End: p.lastEnd()}
	return node, nil
}

func (p *Parser) arrayPattern() (Node, error) {
	open := p.next()
	node := &ArrayPattern{}

	for !p.isPunct(0, "]") {
		if p.done() {
			return nil, p.errorf(open, "unterminated array pattern")
		}
		if p.isPunct(0, ",") {
			p.next()
			node.Elements = append(node.Elements, nil)
			continue
		}

		var elem Node
		if tok := p.peek(0); tok.Is("...") {
			p.next()
			arg, err := p.bindingTarget()
			if err != nil {
				return nil, err
			}
			rest := &RestElement{Arg: arg}
			rest.span = Span{Start: tok.Start, End: p.lastEnd()}
			elem = rest
		} else {
			target, err := p.bindingTarget()
			if err != nil {
				return nil, err
			}
			if elem, err = p.withDefault(target); err != nil {
				return nil, err
			}
		}

		node.Elements = append(node.Elements, elem)
		if p.isPunct(0, ",") {
			p.next()
		} else if !p.isPunct(0, "]") {
			return nil, p.errorf(p.peek(0), "expected , or ] in array pattern")
		}
	}
	p.next()
	node.span = Span{Start: open.Start, End: p.lastEnd()}
	return node, nil
}

func (p *Parser) functionDecl() (Node, error) {
	start := p.peek(0)
	node := &FunctionDecl{}
	if p.isWord(0, "async") {
		p.next()
		node.Async = true
	}
	p.next()
	if p.isPunct(0, "*") {
		p.next()
		node.Generator = true
	}
	if tok := p.peek(0); tok.Kind == Ident {
		p.next()
		node.Name = identifier(tok)
	}

	if !p.isPunct(0, "(") {
		return nil, p.errorf(p.peek(0), "expected ( after function")
	}
	if err := p.skipBalanced(); err != nil {
		return nil, err
	}
	if !p.isPunct(0, "{") {
		return nil, p.errorf(p.peek(0), "expected function body")
	}
	if err := p.skipBalanced(); err != nil {
		return nil, err
	}
	node.span = Span{Start: start.Start, End: p.lastEnd()}
	return node, nil
}

func (p *Parser) classDecl() (Node, error) {
	start := p.next()
	node := &ClassDecl{}
	if tok := p.peek(0); tok.Kind == Ident && tok.Text != "extends" {
		p.next()
		node.Name = identifier(tok)
	}

	if p.isWord(0, "extends") {
		p.next()
		for !p.done() && !p.isPunct(0, "{") {
			if p.isPunct(0, "(") || p.isPunct(0, "[") {
				if err := p.skipBalanced(); err != nil {
					return nil, err
				}
				continue
			}
			p.next()
		}
	}

	if !p.isPunct(0, "{") {
		return nil, p.errorf(p.peek(0), "expected class body")
	}
	if err := p.skipBalanced(); err != nil {
		return nil, err
	}
	node.span = Span{Start: start.Start, End: p.lastEnd()}
	return node, nil
}

// skipBalanced consumes an opening bracket and everything through its match
func (p *Parser) skipBalanced() error {
	open := p.next()
	depth := 1
	for !p.done() {
		tok := p.next()
		if tok.Kind != Punct {
			continue
		}
		switch tok.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
			if depth == 0 {
				return nil
			}
		}
	}
	return p.errorf(open, "unbalanced %q", open.Text)
}

// skipUntil consumes an expression or statement body. It stops before a
// ';' or an unmatched closer at depth zero, before ',' when stopAtComma is
// set, and at a line break where automatic semicolon insertion applies.
func (p *Parser) skipUntil(stopAtComma bool) error {
	depth := 0
	consumed := 0
	for !p.done() {
		tok := p.peek(0)
		if depth == 0 {
			if tok.Is(";") || (stopAtComma && tok.Is(",")) {
				return nil
			}
			if tok.Kind == Punct && (tok.Text == ")" || tok.Text == "]" || tok.Text == "}") {
				return nil
			}
			if consumed > 0 && tok.NewlineBefore && !p.continues(p.toks[p.i-1], tok) {
				return nil
			}
		}

		p.next()
		consumed++
		if tok.Kind != Punct {
			continue
		}
		switch tok.Text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			depth--
		}
	}
	if depth > 0 {
		return p.errorf(p.peek(0), "unbalanced brackets")
	}
	return nil
}

// continues reports whether next, starting a new line, continues the
// expression that prev ended.
func (p *Parser) continues(prev, next Token) bool {
	if !completes(prev) {
		return true
	}

	switch next.Kind {
	case Punct:
		switch next.Text {
		case "{":
			return prev.Is(")")
		case "}", "!", "~", "++", "--", ";":
			return false
		}
		return true
	case Template:
		return true
	case Ident:
		return continuationWords[next.Text]
	}
	return false
}

// completes reports whether a statement may end after tok
func completes(tok Token) bool {
	switch tok.Kind {
	case Ident:
		return !operatorWords[tok.Text]
	case Number, String, Template, Regex, JSX:
		return true
	case Punct:
		switch tok.Text {
		case ")", "]", "}", "++", "--":
			return true
		}
	}
	return false
}

func (p *Parser) stringValue(tok Token) string {
	if tok.Kind != String {
		return tok.Text
	}
	if s, err := strconv.Unquote(tok.Text); err == nil {
		return s
	}
	if len(tok.Text) >= 2 {
		return tok.Text[1 : len(tok.Text)-1]
	}
	return tok.Text
}

func identifier(tok Token) *Identifier {
	id := &Identifier{Name: tok.Text}
	id.span = tok.Span()
	if tok.Kind == String {
		if s, err := strconv.Unquote(tok.Text); err == nil {
			id.Name = s
		}
	}
	return id
}
