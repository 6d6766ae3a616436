package syntax

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatements(t *testing.T) {
	src := `import x from "lib";
const a = 1, {b, c: [d = 2, ...e]} = obj
let f = () => {
  return <div>{a}</div>
}
function g() {}
class H extends React.Component { render() {} }
if (a) {
} else {
}
doSomething()
`
	prog, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, prog.Body, 7)

	imp, ok := prog.Body[0].(*ImportDecl)
	require.True(t, ok)
	assert.Equal(t, "lib", imp.Source)

	decl, ok := prog.Body[1].(*VarDecl)
	require.True(t, ok)
	assert.Equal(t, "const", decl.Kind)
	require.Len(t, decl.Declarators, 2)
	assert.Equal(t, "a", decl.Declarators[0].ID.(*Identifier).Name)

	var bound []string
	Walk(decl.Declarators[1].ID, func(n Node) bool {
		if id, ok := n.(*Identifier); ok {
			bound = append(bound, id.Name)
		}
		return true
	})
	assert.Equal(t, []string{"b", "d", "e"}, bound)

	arrow, ok := prog.Body[2].(*VarDecl)
	require.True(t, ok)
	assert.Equal(t, "f", FindIdentifier(arrow).Name)
	assert.Equal(t, "}", src[arrow.Span().End-1:arrow.Span().End])

	assert.Equal(t, "g", prog.Body[3].(*FunctionDecl).Name.Name)
	assert.Equal(t, "H", prog.Body[4].(*ClassDecl).Name.Name)
	assert.IsType(t, &Statement{}, prog.Body[5])
	assert.IsType(t, &Statement{}, prog.Body[6])
}

func TestParseExports(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		named     int
		defaults  int
		imports   int
		identName string
	}{
		{name: "named const", src: "export const A = () => null", named: 1, identName: "A"},
		{name: "named function", src: "export function Panel() { return <div/> }", named: 1, identName: "Panel"},
		{name: "named async function", src: "export async function load() {}", named: 1, identName: "load"},
		{name: "named class", src: "export class Widget {}", named: 1, identName: "Widget"},
		{name: "named destructuring", src: "export const { Foo, Bar } = lib", named: 1, identName: "Foo"},
		{name: "export list", src: "const X = 1\nexport { X as Y }", named: 1, identName: "X"},
		{name: "default function", src: "export default function Foo(){ return null }", defaults: 1, identName: "Foo"},
		{name: "default class", src: "export default class Foo {}", defaults: 1, identName: "Foo"},
		{name: "default identifier", src: "const Foo = 1;\nexport default Foo;", defaults: 1, identName: "Foo"},
		{name: "default anonymous", src: "export default () => <p/>", defaults: 1},
		{name: "default null is an expression", src: "export default null", defaults: 1},
		{name: "two named", src: "export const A = 1\nexport const B = 2", named: 2, identName: "A"},
		{name: "mixed", src: "export const A = 1\nexport default A", named: 1, defaults: 1, identName: "A"},
		{name: "none", src: "const A = 1"},
		{name: "import", src: "import React from 'react'\nexport const A = 1", named: 1, imports: 1, identName: "A"},
		{name: "dynamic import is not a declaration", src: "import('x').then(f)\nexport const A = 1", named: 1, identName: "A"},
		{name: "export inside string", src: "const s = 'export const B = 1'\nexport const A = s", named: 1, identName: "A"},
		{name: "export inside jsx text", src: "export const A = () => <p>export default it's</p>", named: 1, identName: "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := Parse(tt.src)
			require.NoError(t, err)

			named, defaults, imports := Exports(prog)
			assert.Len(t, named, tt.named)
			assert.Len(t, defaults, tt.defaults)
			assert.Len(t, imports, tt.imports)

			var first Node
			switch {
			case len(named) > 0:
				first = named[0]
			case len(defaults) > 0:
				first = defaults[0]
			default:
				return
			}
			id := FindIdentifier(first)
			if tt.identName == "" {
				assert.Nil(t, id)
				return
			}
			require.NotNil(t, id)
			assert.Equal(t, tt.identName, id.Name)
		})
	}
}

func TestParseExportSpans(t *testing.T) {
	src := "/* c */ export default function Foo(){ return null }"
	prog, err := Parse(src)
	require.NoError(t, err)

	_, defaults, _ := Exports(prog)
	require.Len(t, defaults, 1)
	clause := defaults[0].Clause
	assert.Equal(t, "export default", src[clause.Start:clause.End])

	src = "export const A = 1"
	prog, err = Parse(src)
	require.NoError(t, err)
	named := prog.Body[0].(*ExportNamed)
	assert.Equal(t, "export", src[named.Keyword.Start:named.Keyword.End])
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"stray closer", "const a = 1\n}"},
		{"unbalanced", "function f() {"},
		{"bad export", "export 42"},
		{"bad binding", "const 1 = 2"},
		{"lexer error", "const a = 'x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			require.Error(t, err)
			var serr *Error
			assert.ErrorAs(t, err, &serr)
		})
	}
}
