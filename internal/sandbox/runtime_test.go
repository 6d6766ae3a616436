package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/divpanel/internal/dom"
)

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := New(DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestRuntimeExecution(t *testing.T) {
	rt := newRuntime(t)

	tests := []struct {
		name    string
		script  string
		want    interface{}
		wantErr bool
	}{
		{name: "simple return", script: "42", want: int64(42)},
		{name: "string operations", script: "'hello'.toUpperCase()", want: "HELLO"},
		{name: "globals persist", script: "var counter = 1; counter + 1", want: int64(2)},
		{name: "syntax error", script: "function (", wantErr: true},
		{name: "throw", script: "throw new Error('boom')", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := rt.Execute(context.Background(), tt.script)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Value)
		})
	}
}

func TestRuntimeBlockedGlobals(t *testing.T) {
	rt := newRuntime(t)

	for _, script := range []string{"require('fs')", "process.exit(1)", "module.exports = 1"} {
		_, err := rt.Execute(context.Background(), script)
		assert.Error(t, err, script)
	}

	result, err := rt.Execute(context.Background(), "window.flag = 7; flag")
	require.NoError(t, err)
	assert.Equal(t, int64(7), result.Value)
}

func TestRuntimeConsole(t *testing.T) {
	rt := newRuntime(t)

	result, err := rt.Execute(context.Background(), "console.log('a', 1); console.warn('b'); 0")
	require.NoError(t, err)
	require.Len(t, result.Console, 2)
	assert.Equal(t, "log", result.Console[0].Level)
	assert.Equal(t, "a 1", result.Console[0].Message)

	drained := rt.Console()
	assert.Len(t, drained, 2)
	assert.Empty(t, rt.Console())
}

func TestRuntimeTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	rt, err := New(cfg)
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Execute(context.Background(), "for(;;){}")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)

	result, err := rt.Execute(context.Background(), "1 + 1")
	require.NoError(t, err, "interrupt must be cleared after a timeout")
	assert.Equal(t, int64(2), result.Value)
}

func TestRuntimeContextCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 0
	rt, err := New(cfg)
	require.NoError(t, err)
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err = rt.EvaluateWithBindings(ctx, "while(true){}", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestEvaluateWithBindings(t *testing.T) {
	rt := newRuntime(t)
	ctx := context.Background()

	val, err := rt.EvaluateWithBindings(ctx, "return a + '-' + b;", Bindings{
		{Name: "a", Value: "first"},
		{Name: "b", Value: "second"},
	})
	require.NoError(t, err)
	assert.Equal(t, "first-second", val.String())

	val, err = rt.EvaluateWithBindings(ctx, "return typeof missing;", Bindings{{Name: "missing", Value: nil}})
	require.NoError(t, err)
	assert.Equal(t, "undefined", val.String())

	_, err = rt.EvaluateWithBindings(ctx, "return 1;", Bindings{{Name: "not valid", Value: 1}})
	assert.Error(t, err)

	_, err = rt.EvaluateWithBindings(ctx, "return (", nil)
	assert.Error(t, err)
}

func TestEvaluateWithBindingsStructValues(t *testing.T) {
	rt := newRuntime(t)

	type frame struct {
		Name   string        `json:"name"`
		Values []interface{} `json:"values"`
	}
	val, err := rt.EvaluateWithBindings(context.Background(),
		"return data.series.map(function(f){ return f.name + ':' + f.values.length; }).join(',');",
		Bindings{{Name: "data", Value: map[string]interface{}{"series": []frame{{Name: "cpu", Values: []interface{}{1, 2}}}}}},
	)
	require.NoError(t, err)
	assert.Equal(t, "cpu:2", val.String())
}

func TestBindingsWith(t *testing.T) {
	b := Bindings{{Name: "a", Value: 1}, {Name: "b", Value: 2}}

	replaced := b.With("a", 3)
	assert.Equal(t, []string{"a", "b"}, replaced.Names())
	assert.Equal(t, 3, replaced[0].Value)
	assert.Equal(t, 1, b[0].Value, "original untouched")

	added := b.With("c", 4)
	assert.Equal(t, []string{"a", "b", "c"}, added.Names())
}

func TestInstantiate(t *testing.T) {
	rt := newRuntime(t)
	ctx := context.Background()

	val, err := rt.Instantiate(ctx, "function A(){ return 7 }", "A", nil)
	require.NoError(t, err)
	fn, ok := goja.AssertFunction(val)
	require.True(t, ok)
	out, err := fn(goja.Undefined())
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.Export())

	val, err = rt.Instantiate(ctx, "var value = 3;", "value", nil)
	require.NoError(t, err, "non-callable exports are not validated")
	assert.Equal(t, int64(3), val.Export())

	_, err = rt.Instantiate(ctx, "", "Nope", nil)
	assert.Error(t, err)
}

func TestRunHook(t *testing.T) {
	rt := newRuntime(t)
	doc := dom.New()
	require.NoError(t, rt.AttachDocument(doc))
	root := doc.MountPanel("p")
	ctx := context.Background()

	t.Run("raw script without hook", func(t *testing.T) {
		_, err := rt.RunHook(ctx, HookInit, "window.x = 1", root, nil)
		require.NoError(t, err)

		res, err := rt.Execute(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, int64(1), res.Value)
	})

	t.Run("init hook receives elem", func(t *testing.T) {
		script := "function onDivPanelInit(elem) { elem.innerHTML = '<b>ready</b>'; return elem.tagName; }"
		val, err := rt.RunHook(ctx, HookInit, script, root, nil)
		require.NoError(t, err)
		assert.Equal(t, "DIV", val.String())
		assert.Equal(t, "<b>ready</b>", doc.InnerHTML(root))
	})

	t.Run("data hook needs data", func(t *testing.T) {
		script := "function onDivPanelDataUpdate(data, elem) { elem.textContent = data.series.length; return 'ran'; }"

		val, err := rt.RunHook(ctx, HookDataUpdate, script, root, nil)
		require.NoError(t, err)
		assert.True(t, goja.IsUndefined(val))

		val, err = rt.RunHook(ctx, HookDataUpdate, script, root, map[string]interface{}{"series": []int{1, 2}})
		require.NoError(t, err)
		assert.Equal(t, "ran", val.String())
		assert.Equal(t, "2", doc.TextContent(root))
	})

	t.Run("globals bag is shared across hooks", func(t *testing.T) {
		_, err := rt.RunHook(ctx, HookEnterEditMode, "function onDivPanelEnterEditMode(){ divGlobals.editing = true }", root, nil)
		require.NoError(t, err)
		val, err := rt.RunHook(ctx, HookExitEditMode, "function onDivPanelExitEditMode(){ return divGlobals.editing }", root, nil)
		require.NoError(t, err)
		assert.Equal(t, true, val.Export())
	})

	t.Run("errors propagate", func(t *testing.T) {
		_, err := rt.RunHook(ctx, HookInit, "function onDivPanelInit(){ throw new Error('bad') }", root, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bad")
		assert.Contains(t, err.Error(), string(HookInit))
	})
}

func TestResetAndClose(t *testing.T) {
	rt, err := New(DefaultConfig())
	require.NoError(t, err)

	_, err = rt.Execute(context.Background(), "var leaked = 1")
	require.NoError(t, err)
	require.NoError(t, rt.Reset())

	res, err := rt.Execute(context.Background(), "typeof leaked")
	require.NoError(t, err)
	assert.Equal(t, "undefined", res.Value)
	assert.Nil(t, rt.Document())

	require.NoError(t, rt.Close())
	_, err = rt.Execute(context.Background(), "1")
	assert.ErrorIs(t, err, ErrClosed)
}
