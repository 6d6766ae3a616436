package transform

import (
	"strings"
	"testing"

	"github.com/GriffinCanCode/divpanel/internal/domain/transform/syntax"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assertNoExports checks the output has no top-level export statement left
func assertNoExports(t *testing.T, code string) {
	t.Helper()
	prog, err := syntax.Parse(code)
	require.NoError(t, err)
	named, defaults, imports := syntax.Exports(prog)
	assert.Empty(t, named)
	assert.Empty(t, defaults)
	assert.Empty(t, imports)
}

func TestTransformNamedExport(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		symbol   string
		contains string
	}{
		{
			name:     "arrow component",
			source:   "export const Hello = () => <b>hi</b>",
			symbol:   "Hello",
			contains: `React.createElement("b", null, "hi")`,
		},
		{
			name:     "function component",
			source:   "export function Panel(props) {\n  return <div className=\"x\">{props.width}</div>\n}",
			symbol:   "Panel",
			contains: "function Panel(props)",
		},
		{
			name:     "class",
			source:   "export class Widget {}",
			symbol:   "Widget",
			contains: "class Widget",
		},
		{
			name:     "destructured binding",
			source:   "export const { Foo, Bar } = { Foo: 1, Bar: 2 }",
			symbol:   "Foo",
			contains: "Foo",
		},
		{
			name:     "export list",
			source:   "const Local = () => null\nexport { Local as Public }",
			symbol:   "Local",
			contains: "const Local",
		},
		{
			name:     "fragment",
			source:   "export const F = () => <><i/></>",
			symbol:   "F",
			contains: "React.Fragment",
		},
		{
			name:     "tagged template survives",
			source:   "export const Styled = () => css`color: red;`",
			symbol:   "Styled",
			contains: "css`color: red;`",
		},
		{
			name:     "export inside comments is ignored",
			source:   "// export const Other = 1\n/* export default Other */\nexport const Real = 1",
			symbol:   "Real",
			contains: "const Real = 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Transform(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.symbol, res.ExportedSymbolName)
			assert.Contains(t, res.TransformedCode, tt.contains)
			assertNoExports(t, res.TransformedCode)
		})
	}
}

func TestTransformStripsComments(t *testing.T) {
	res, err := Transform("// export const Other = 1\nexport const Real = /* inline */ 1")
	require.NoError(t, err)
	assert.NotContains(t, res.TransformedCode, "Other")
	assert.NotContains(t, res.TransformedCode, "inline")
}

func TestTransformDefaultExport(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		symbol   string
		contains string
	}{
		{
			name:     "named function",
			source:   "export default function Foo(){ return null }",
			symbol:   "Foo",
			contains: "function Foo()",
		},
		{
			name:     "named class",
			source:   "export default class Foo {}",
			symbol:   "Foo",
			contains: "class Foo",
		},
		{
			name:     "identifier",
			source:   "const Foo = () => <p/>\nexport default Foo",
			symbol:   "Foo",
			contains: "const Foo",
		},
		{
			name:     "anonymous arrow",
			source:   "export default () => <p/>",
			symbol:   DefaultSymbol,
			contains: "const " + DefaultSymbol + " =",
		},
		{
			name:     "anonymous function",
			source:   "export default function () { return null }\nconsole.log(1)",
			symbol:   DefaultSymbol,
			contains: "const " + DefaultSymbol + " = function()",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Transform(tt.source)
			require.NoError(t, err)
			assert.Equal(t, tt.symbol, res.ExportedSymbolName)
			assert.Contains(t, res.TransformedCode, tt.contains)
			assert.NotContains(t, res.TransformedCode, "export default")
			assertNoExports(t, res.TransformedCode)
		})
	}
}

func TestTransformErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
		line   int
	}{
		{name: "no export", source: "const A = 1"},
		{name: "empty", source: ""},
		{name: "two named", source: "export const A = 1\nexport const B = 2", line: 2},
		{name: "two defaults", source: "export default 1\nexport default 2", line: 2},
		{name: "named and default", source: "export const A = 1\nexport default A", line: 2},
		{name: "import", source: "import React from 'react'\nexport const A = 1", line: 1},
		{name: "re-export", source: "export { A } from './a'", line: 1},
		{name: "export all", source: "export * from './a'", line: 1},
		{name: "syntax error", source: "export const A = (", line: 1},
		{name: "transpile error", source: "export const A = 1 +;", line: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Transform(tt.source)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, IsParseError(err))

			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.NotEmpty(t, pe.Message)
			if tt.line > 0 {
				assert.Equal(t, tt.line, pe.Line)
			}
		})
	}
}

func TestTransformExactlyOneExport(t *testing.T) {
	// Any number of exports other than one fails
	for n := 0; n <= 4; n++ {
		var b strings.Builder
		for i := 0; i < n; i++ {
			b.WriteString("export const X")
			b.WriteByte(byte('a' + i))
			b.WriteString(" = 1\n")
		}
		_, err := Transform(b.String())
		if n == 1 {
			assert.NoError(t, err, "n=%d", n)
		} else {
			assert.True(t, IsParseError(err), "n=%d", n)
		}
	}
}

func TestPipelineMemo(t *testing.T) {
	p := NewPipeline(WithMemoSize(2))

	first, err := p.Transform("export const A = () => <a/>")
	require.NoError(t, err)
	second, err := p.Transform("export const A = () => <a/>")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, p.Cached())

	_, err = p.Transform("export const B = 1")
	require.NoError(t, err)
	_, err = p.Transform("export const C = 1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Cached())

	_, err = p.Transform("not an export")
	assert.True(t, IsParseError(err))
	assert.Equal(t, 2, p.Cached())
}

func TestParseErrorMessage(t *testing.T) {
	assert.Equal(t, "parse error at 2:3: boom", (&ParseError{Message: "boom", Line: 2, Column: 3}).Error())
	assert.Equal(t, "parse error: boom", (&ParseError{Message: "boom"}).Error())
	assert.False(t, IsParseError(nil))
}
