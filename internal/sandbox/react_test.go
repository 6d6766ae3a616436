package sandbox

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/divpanel/internal/dom"
)

// renderSource instantiates compiled component code and renders it
func renderSource(t *testing.T, rt *Runtime, source, export string, props Props) (string, error) {
	t.Helper()
	ctx := context.Background()

	fn, err := rt.Instantiate(ctx, source, export, rt.DefaultBindings(props))
	require.NoError(t, err)
	return rt.RenderComponent(ctx, fn, props)
}

func TestRenderComponent(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.AttachDocument(dom.New()))

	tests := []struct {
		name   string
		source string
		props  Props
		want   string
	}{
		{
			name:   "intrinsic elements",
			source: `function Panel(){ return React.createElement("div", {className: "a"}, "hi ", React.createElement("b", null, "there")); }`,
			want:   `<div class="a">hi <b>there</b></div>`,
		},
		{
			name:   "props reach the component",
			source: `function Panel(p){ return React.createElement("span", null, p.width + "x" + p.height); }`,
			props:  Props{Width: 300, Height: 200},
			want:   `<span>300x200</span>`,
		},
		{
			name: "nested function components",
			source: `function Item(p){ return React.createElement("li", null, p.label); }
function Panel(){ return React.createElement("ul", null, ["a","b"].map(function(l){ return React.createElement(Item, {key: l, label: l}); })); }`,
			want: `<ul><li>a</li><li>b</li></ul>`,
		},
		{
			name:   "fragment",
			source: `function Panel(){ return React.createElement(React.Fragment, null, React.createElement("i", null, 1), "x"); }`,
			want:   `<i>1</i>x`,
		},
		{
			name:   "children passthrough",
			source: `function Box(p){ return React.createElement("section", null, p.children); } function Panel(){ return React.createElement(Box, null, React.createElement("p", null, "in")); }`,
			want:   `<section><p>in</p></section>`,
		},
		{
			name:   "hooks",
			source: `function Panel(){ var s = React.useState(function(){ return 5 }); var r = React.useRef("ref"); var m = React.useMemo(function(){ return s[0] * 2 }, [s[0]]); return React.createElement("p", null, s[0] + r.current + m); }`,
			want:   `<p>5ref10</p>`,
		},
		{
			name:   "ui kit",
			source: `function Panel(){ return React.createElement(UI.Card, {heading: "Title"}, React.createElement(UI.Badge, {text: "ok", color: "green"})); }`,
			want:   `<div class="div-panel-card"><div class="div-panel-card__heading">Title</div><div class="div-panel-card__body"><span class="div-panel-badge div-panel-badge--green">ok</span></div></div>`,
		},
		{
			name:   "null renders nothing",
			source: `function Panel(){ return null }`,
			want:   ``,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := renderSource(t, rt, tt.source, "Panel", tt.props)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderComponentErrors(t *testing.T) {
	rt := newRuntime(t)
	ctx := context.Background()

	val, err := rt.Instantiate(ctx, "var notFn = 3;", "notFn", nil)
	require.NoError(t, err)
	_, err = rt.RenderComponent(ctx, val, Props{})
	assert.ErrorIs(t, err, ErrNotCallable)

	_, err = renderSource(t, rt, `function Panel(){ return React.createElement(undefined) }`, "Panel", Props{})
	assert.Error(t, err)

	_, err = renderSource(t, rt, `function Panel(){ return React.createElement("p", null, {bad: true}) }`, "Panel", Props{})
	assert.Error(t, err)
}

func TestCSSHelper(t *testing.T) {
	rt := newRuntime(t)
	doc := dom.New()
	require.NoError(t, rt.AttachDocument(doc))

	source := "function Panel(){ var c = 'red'; var cls = css(['color: ', ';'], c); var again = css(['color: ', ';'], c); return React.createElement('div', {className: cls + (cls === again ? ' same' : '')}); }"
	got, err := renderSource(t, rt, source, "Panel", Props{})
	require.NoError(t, err)

	assert.Regexp(t, `^<div class="css-[0-9a-f]{8} same"></div>$`, got)
	head := doc.InnerHTML(doc.Head())
	assert.Equal(t, 1, strings.Count(head, "<style"), "style emitted once")
	assert.Contains(t, head, "{color: red;}")
}

func TestEffects(t *testing.T) {
	rt := newRuntime(t)
	ctx := context.Background()

	source := `function Panel(){ React.useEffect(function(){ window.mounted = (window.mounted || 0) + 1; return function(){ window.cleaned = true } }); return React.createElement("p", null, "x"); }`
	_, err := renderSource(t, rt, source, "Panel", Props{})
	require.NoError(t, err)

	res, err := rt.Execute(ctx, "typeof mounted")
	require.NoError(t, err)
	assert.Equal(t, "undefined", res.Value, "effects wait for flush")

	require.NoError(t, rt.FlushEffects(ctx))
	res, err = rt.Execute(ctx, "mounted")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Value)

	require.NoError(t, rt.FlushEffects(ctx), "second flush is a no-op")
	res, err = rt.Execute(ctx, "mounted")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Value)

	require.NoError(t, rt.Cleanup(ctx))
	res, err = rt.Execute(ctx, "cleaned")
	require.NoError(t, err)
	assert.Equal(t, true, res.Value)
}
