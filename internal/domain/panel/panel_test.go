package panel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/divpanel/internal/dom"
	"github.com/GriffinCanCode/divpanel/internal/domain/transform"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/persistence"
	"github.com/GriffinCanCode/divpanel/internal/providers/http/client"
	"github.com/GriffinCanCode/divpanel/internal/sandbox"
	"github.com/GriffinCanCode/divpanel/internal/shared/types"
)

type fixture struct {
	manager *Manager
	store   persistence.Store
	pool    *sandbox.Pool
	srv     *httptest.Server
	hits    map[string]*atomic.Int32
}

var scripts = map[string]string{
	"/lib.js":  "window.libLoads = (window.libLoads || 0) + 1;",
	"/body.js": "window.bodyLoaded = true;",
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{hits: make(map[string]*atomic.Int32)}
	for path := range scripts {
		f.hits[path] = &atomic.Int32{}
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := scripts[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		f.hits[r.URL.Path].Add(1)
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.srv.Close)

	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })
	f.pool = pool

	f.store = persistence.NewMemory()
	f.manager = NewManager(DefaultConfig(), pool, client.NewClient(client.DefaultConfig()), f.store, nil)
	return f
}

func (f *fixture) url(path string) string { return f.srv.URL + path }

func (f *fixture) panel(t *testing.T, content string, mode types.Mode) *Panel {
	t.Helper()
	p, err := f.manager.Create(context.Background(), types.CreatePanelRequest{Title: t.Name(), Mode: mode})
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.manager.Close(context.Background(), p.ID()) })
	if content != "" {
		_, err = p.Save(context.Background(), content, mode)
		require.NoError(t, err)
	}
	return p
}

func (f *fixture) eval(t *testing.T, p *Panel, script string) interface{} {
	t.Helper()
	res, err := p.runtime.Execute(context.Background(), script)
	require.NoError(t, err)
	return res.Value
}

func TestClearRendersPlaceholder(t *testing.T) {
	content := `<div id="x">content</div>
<script run="onInit">window.initRuns = (window.initRuns || 0) + 1</script>
<script>function onDivPanelEnterEditMode(elem) {} function onDivPanelExitEditMode(elem) {}</script>`

	tests := []struct {
		name     string
		content  string
		mode     types.Mode
		editMode bool
	}{
		{name: "html", content: content, mode: types.ModeHTML},
		{name: "html in edit mode", content: content, mode: types.ModeHTML, editMode: true},
		{name: "component", content: `export const A = () => <b>a</b>`, mode: types.ModeComponent},
		{name: "component in edit mode", content: `export const A = () => <b>a</b>`, mode: types.ModeComponent, editMode: true},
		{name: "empty", content: "", mode: types.ModeHTML},
		{name: "broken component", content: "const nothing = 1", mode: types.ModeComponent, editMode: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			p := f.panel(t, "", tt.mode)
			p.state.EditMode = tt.editMode

			res, err := p.Clear(context.Background(), tt.content, tt.mode)
			if transform.IsParseError(err) {
				res = p.Last()
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, Placeholder, res.HTML)
			assert.Equal(t, types.MountPlaceholder, res.Mount)
			assert.Equal(t, types.CommandClear, p.State().Command)
			assert.Equal(t, "undefined", f.eval(t, p, "typeof initRuns"), "nothing executes while cleared")
			assert.Equal(t, tt.content, p.Options().Content, "content is still committed")
		})
	}
}

func TestClearKeepsSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := `<html><head><style>.a{color:red}</style></head><body><div>x</div></body></html>`

	p := f.panel(t, "", types.ModeHTML)
	_, err := p.Run(ctx, content, "")
	require.NoError(t, err)

	_, err = p.Clear(ctx, content, "")
	require.NoError(t, err)
	assert.Contains(t, p.Document(), ".a{color:red}")

	res, err := p.Run(ctx, content, "")
	require.NoError(t, err)
	assert.Equal(t, types.MountWrapped, res.Mount)
	assert.Contains(t, res.HTML, "<div>x</div>")
}

func TestRunWrappedMount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := `<div id="out">x</div>
<script run="onInit">elem.setAttribute("data-init", "yes"); divGlobals.inits = (divGlobals.inits || 0) + 1</script>`

	p := f.panel(t, "", types.ModeHTML)
	res, err := p.Run(ctx, content, "")
	require.NoError(t, err)

	assert.Equal(t, types.MountWrapped, res.Mount)
	assert.Equal(t, p.ID(), res.PanelID)

	wrapper := p.doc.QuerySelector(p.root, "."+WrapperClass)
	require.NotNil(t, wrapper)
	v, _ := dom.Attr(wrapper, "data-init")
	assert.Equal(t, "yes", v)
	assert.Contains(t, res.HTML, `<div id="out">x</div>`)
	assert.Contains(t, res.HTML, `data-init="yes"`)

	_, err = p.Render(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.runtime.Globals().Get("inits").ToInteger(), "divGlobals persist across renders")
}

func TestInitScenarioWithoutHook(t *testing.T) {
	f := newFixture(t)
	p := f.panel(t, "", types.ModeHTML)

	_, err := p.Run(context.Background(), `<body><script run="onInit">window.x=1</script></body>`, "")
	require.NoError(t, err)
	assert.EqualValues(t, 1, f.eval(t, p, "x"))
}

func TestEditModeMount(t *testing.T) {
	withHooks := `<div class="chart">c</div>
<script>
function onDivPanelEnterEditMode(elem) { elem.setAttribute("data-edit", "on") }
function onDivPanelExitEditMode(elem) { elem.setAttribute("data-edit", "off") }
</script>`
	enterOnly := `<div class="chart">c</div>
<script>function onDivPanelEnterEditMode(elem) { elem.setAttribute("data-edit", "on") }</script>`

	tests := []struct {
		name      string
		content   string
		wantMount types.MountKind
	}{
		{name: "both edit hooks mount directly", content: withHooks, wantMount: types.MountDirect},
		{name: "one edit hook keeps the wrapper", content: enterOnly, wantMount: types.MountWrapped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			p := f.panel(t, tt.content, types.ModeHTML)

			res, err := p.EnterEditMode(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMount, res.Mount)
			assert.True(t, p.State().EditMode)

			target := p.root
			if tt.wantMount == types.MountWrapped {
				target = p.doc.QuerySelector(p.root, "."+WrapperClass)
				require.NotNil(t, target)
			} else {
				assert.Nil(t, p.doc.QuerySelector(p.root, "."+WrapperClass))
			}
			v, _ := dom.Attr(target, "data-edit")
			assert.Equal(t, "on", v)
			assert.Contains(t, res.HTML, `<div class="chart">c</div>`)

			res, err = p.ExitEditMode(ctx)
			require.NoError(t, err)
			assert.Equal(t, types.MountWrapped, res.Mount)
			assert.False(t, p.State().EditMode)
		})
	}
}

func TestExitEditModeRunsAgainstMountedElement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := `<script>
function onDivPanelEnterEditMode(elem) {}
function onDivPanelExitEditMode(elem) { elem.setAttribute("data-exited", "1") }
</script>`
	p := f.panel(t, content, types.ModeHTML)

	_, err := p.EnterEditMode(ctx)
	require.NoError(t, err)
	_, err = p.ExitEditMode(ctx)
	require.NoError(t, err)

	v, _ := dom.Attr(p.root, "data-exited")
	assert.Equal(t, "1", v, "exit hook saw the direct mount")
}

func TestUpdateData(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := `<div id="v">empty</div>
<script run="onData">elem.querySelector("#v").textContent = data.series[0].fields[0].values.join(",")</script>`

	p := f.panel(t, "", types.ModeHTML)
	res, err := p.Run(ctx, content, "")
	require.NoError(t, err)
	assert.Contains(t, res.HTML, `<div id="v">empty</div>`, "data hook waits for data")

	data := &types.PanelData{Series: []types.DataFrame{{
		Name:   "A",
		Fields: []types.Field{{Name: "value", Type: "number", Values: []interface{}{1, 2, 3}}},
	}}}
	res, err = p.UpdateData(ctx, data)
	require.NoError(t, err)
	assert.Contains(t, res.HTML, `<div id="v">1,2,3</div>`)
	assert.Equal(t, types.MountWrapped, res.Mount)

	res, err = p.Render(ctx)
	require.NoError(t, err)
	assert.Contains(t, res.HTML, `<div id="v">1,2,3</div>`, "data hook runs on mount once data exists")
}

func TestComponentMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.panel(t, "", types.ModeComponent)

	res, err := p.Run(ctx, `export const Hello = (props) => <div className="hello">{props.width}</div>`, types.ModeComponent)
	require.NoError(t, err)

	opts := p.Options()
	assert.Equal(t, "Hello", opts.ExportedFn)
	assert.NotContains(t, opts.Transformed, "export")
	assert.Equal(t, types.MountWrapped, res.Mount)
	assert.Contains(t, res.HTML, `<div class="hello">800</div>`)

	_, err = p.Save(ctx, `export default function Foo(){ return null }`, "")
	require.NoError(t, err)
	assert.Equal(t, "Foo", p.Options().ExportedFn)
	assert.Equal(t, types.ModeComponent, p.Options().Mode, "mode is kept when omitted")
}

func TestComponentDataReRenders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	source := `export const Count = ({data}) => <span>{data ? data.series.length : "none"}</span>`
	p := f.panel(t, source, types.ModeComponent)

	res := p.Last()
	require.NotNil(t, res)
	assert.Contains(t, res.HTML, "<span>none</span>")

	res, err := p.UpdateData(ctx, &types.PanelData{Series: []types.DataFrame{{Name: "a"}, {Name: "b"}}})
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "<span>2</span>")
}

func TestComponentEffects(t *testing.T) {
	f := newFixture(t)
	source := `export const Fx = () => {
  React.useEffect(() => { window.mounted = (window.mounted || 0) + 1; return () => { window.unmounted = true } });
  return <p>fx</p>;
}`
	p := f.panel(t, source, types.ModeComponent)
	assert.EqualValues(t, 1, f.eval(t, p, "mounted"))

	_, err := p.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, true, f.eval(t, p, "unmounted"), "previous mount cleaned up")
	assert.EqualValues(t, 2, f.eval(t, p, "mounted"))
}

func TestParseErrorClearsDerivedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.panel(t, `export const Ok = () => <i>ok</i>`, types.ModeComponent)
	require.Equal(t, "Ok", p.Options().ExportedFn)

	_, err := p.Save(ctx, "const a = 1\nconst b = 2", types.ModeComponent)
	require.Error(t, err)
	var perr *transform.ParseError
	require.ErrorAs(t, err, &perr)

	opts := p.Options()
	assert.Empty(t, opts.Transformed)
	assert.Empty(t, opts.ExportedFn)
	assert.Contains(t, opts.Error, "div-panel-error")
	assert.Contains(t, p.Last().HTML, "div-panel-error")
	assert.True(t, p.Info().HasError)

	_, err = p.Save(ctx, `export const Ok = () => <i>ok</i>`, types.ModeComponent)
	require.NoError(t, err)
	assert.Empty(t, p.Options().Error)
}

func TestHTMLErrorOverride(t *testing.T) {
	f := newFixture(t)
	p := f.panel(t, `<div>body</div>`, types.ModeHTML)

	p.options.Error = "<b>shown instead</b>"
	res, err := p.Render(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.HTML, "<b>shown instead</b>")
	assert.NotContains(t, res.HTML, "<div>body</div>")
}

func TestDependenciesLoadOncePerPanel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	content := `<html><head><script src="` + f.url("/lib.js") + `"></script></head><body><div>x</div></body></html>`

	first := f.panel(t, "", types.ModeHTML)
	for i := 0; i < 3; i++ {
		_, err := first.Run(ctx, content, "")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.hits["/lib.js"].Load())
	assert.Equal(t, 1, first.Loader().Scripts().Len())
	assert.EqualValues(t, 1, f.eval(t, first, "libLoads"))

	container := first.doc.Ancestor(first.root, 3)
	assert.Len(t, first.doc.QuerySelectorAll(container, "script[src]"), 1, "injected into the panel container once")

	second := f.panel(t, "", types.ModeHTML)
	_, err := second.Run(ctx, content, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.hits["/lib.js"].Load(), "registries are per panel")
}

func TestDependencyFailurePropagates(t *testing.T) {
	f := newFixture(t)
	p := f.panel(t, "", types.ModeHTML)

	content := `<html><head><script src="` + f.url("/missing.js") + `"></script></head><body></body></html>`
	_, err := p.Run(context.Background(), content, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load dependencies")
	var status *client.StatusError
	assert.ErrorAs(t, err, &status)
}

func TestHookErrorPropagates(t *testing.T) {
	f := newFixture(t)
	p := f.panel(t, "", types.ModeHTML)

	_, err := p.Run(context.Background(), `<script run="oninit">throw new Error("boom")</script>`, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), string(sandbox.HookInit))
}

func TestModules(t *testing.T) {
	f := newFixture(t)
	p := f.panel(t, "", types.ModeHTML)

	_, err := p.Run(context.Background(), `<script type="module">divPanelContainer.setAttribute("data-module", divPanelElementUUID)</script>`, "")
	require.NoError(t, err)

	wrapper := p.doc.QuerySelector(p.root, "."+WrapperClass)
	require.NotNil(t, wrapper)
	id, _ := dom.Attr(wrapper, "id")
	mark, _ := dom.Attr(wrapper, "data-module")
	assert.Len(t, id, 36)
	assert.Equal(t, id, mark)
}

func TestBodyScriptInjection(t *testing.T) {
	f := newFixture(t)
	p := f.panel(t, "", types.ModeHTML)

	_, err := p.Run(context.Background(), `<div>x</div><script src="`+f.url("/body.js")+`"></script>`, "")
	require.NoError(t, err)
	p.Wait()

	assert.Equal(t, int32(1), f.hits["/body.js"].Load())
	assert.Equal(t, true, f.eval(t, p, "bodyLoaded"))
	assert.Len(t, p.doc.QuerySelectorAll(p.doc.Body(), "script[src]"), 1)
}

func TestConsoleCapture(t *testing.T) {
	f := newFixture(t)
	p := f.panel(t, "", types.ModeHTML)

	res, err := p.Run(context.Background(), `<script run="onInit">console.log("hello", 1)</script>`, "")
	require.NoError(t, err)
	require.Len(t, res.Console, 1)
	assert.Equal(t, "log", res.Console[0].Level)
	assert.Equal(t, "hello 1", res.Console[0].Message)

	res, err = p.Render(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Console, 1, "each render reports its own output")
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	p := f.panel(t, "", types.ModeHTML)

	ch, cancel := p.Subscribe()
	defer cancel()

	_, err := p.Run(context.Background(), `<p>pushed</p>`, "")
	require.NoError(t, err)

	select {
	case res := <-ch:
		assert.Contains(t, res.HTML, "<p>pushed</p>")
	case <-time.After(time.Second):
		t.Fatal("no render published")
	}

	cancel()
	_, ok := <-ch
	assert.False(t, ok)
	assert.NotPanics(t, cancel)
}

func TestClosedPanel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.panel(t, "<p>x</p>", types.ModeHTML)

	require.NoError(t, f.manager.Close(ctx, p.ID()))

	_, err := p.Render(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = p.Run(ctx, "<p>y</p>", "")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestInvalidMode(t *testing.T) {
	f := newFixture(t)
	p := f.panel(t, "", types.ModeHTML)

	_, err := p.Save(context.Background(), "<p>x</p>", types.Mode("svg"))
	assert.ErrorIs(t, err, ErrMode)
}

func TestMetricsRecorded(t *testing.T) {
	f := newFixture(t)
	metrics := monitoring.NewMetricsWith(prometheus.NewRegistry())
	defer metrics.Stop()
	f.manager.WithMetrics(metrics)

	content := `<html><head><script src="` + f.url("/lib.js") + `"></script></head><body><script run="onInit">1</script></body></html>`
	p := f.panel(t, "", types.ModeHTML)
	_, err := p.Run(context.Background(), content, "")
	require.NoError(t, err)
	_, err = p.Render(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.Renders.WithLabelValues("html", "wrapped")), "create, run and render")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResourceLoads.WithLabelValues("script", "loaded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ResourceLoads.WithLabelValues("script", "cached")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.HookInvocations.WithLabelValues("onDivPanelInit", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues("run", "success")))
	assert.True(t, strings.HasPrefix(p.ID(), "panel_"))
}
