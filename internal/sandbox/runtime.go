package sandbox

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/divpanel/internal/dom"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Runtime wraps a goja VM bound to one panel session
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex

	console   []LogEntry
	consoleMu sync.Mutex

	functionCtor goja.Callable
	jsonParse    goja.Callable

	doc     *dom.Document
	proxies map[*html.Node]*goja.Object
	nodes   map[*goja.Object]*html.Node

	globals  *goja.Object
	effects  []goja.Callable
	cleanups []goja.Callable
	styles   map[string]bool
}

// New creates a new runtime
func New(config Config) (*Runtime, error) {
	r := &Runtime{
		config: config,
	}
	if err := r.setup(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) setup() error {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	if r.config.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(r.config.MaxCallStack)
	}

	r.vm = vm
	r.console = []LogEntry{}
	r.proxies = make(map[*html.Node]*goja.Object)
	r.nodes = make(map[*goja.Object]*html.Node)
	r.styles = make(map[string]bool)
	r.effects = nil
	r.cleanups = nil
	r.globals = vm.NewObject()

	ctor, ok := goja.AssertFunction(vm.Get("Function"))
	if !ok {
		return errors.New("Function constructor unavailable")
	}
	r.functionCtor = ctor

	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return errors.New("JSON.parse unavailable")
	}
	r.jsonParse = parse

	return r.setupGlobals()
}

// setupGlobals configures global objects
func (r *Runtime) setupGlobals() error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	console := r.vm.NewObject()
	for _, level := range []string{"log", "warn", "error", "info", "debug"} {
		if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
			return err
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}

	// No event loop: timers never fire
	noop := func(goja.FunctionCall) goja.Value { return r.vm.ToValue(0) }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval", "requestAnimationFrame"} {
		if err := r.vm.Set(name, noop); err != nil {
			return err
		}
	}

	if err := r.vm.Set("window", r.vm.GlobalObject()); err != nil {
		return err
	}
	return r.vm.Set("self", r.vm.GlobalObject())
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !r.config.EnableConsole {
			return goja.Undefined()
		}

		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}

// Console returns and clears captured console output
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()

	out := r.console
	r.console = []LogEntry{}
	return out
}

// Globals returns the session-scoped divGlobals bag
func (r *Runtime) Globals() *goja.Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.globals
}

// Execute runs a script in the global scope and returns its completion value
func (r *Runtime) Execute(ctx context.Context, script string) (*Result, error) {
	return r.ExecuteNamed(ctx, "script", script)
}

// ExecuteNamed is Execute with a script name used in stack traces
func (r *Runtime) ExecuteNamed(ctx context.Context, name, script string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, ErrClosed
	}

	start := time.Now()
	stop := r.guard(ctx)
	val, err := r.vm.RunScript(name, script)
	stop()

	result := &Result{Duration: time.Since(start)}
	if err != nil {
		return result, r.wrapError(err)
	}

	result.Value = exportValue(val)
	r.consoleMu.Lock()
	result.Console = append([]LogEntry{}, r.console...)
	r.consoleMu.Unlock()

	return result, nil
}

// EvaluateWithBindings builds a function whose parameters are the binding
// names and whose body is source, then calls it with the binding values.
func (r *Runtime) EvaluateWithBindings(ctx context.Context, source string, bindings Bindings) (goja.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return nil, ErrClosed
	}

	stop := r.guard(ctx)
	defer stop()

	val, err := r.evaluate(source, bindings)
	if err != nil {
		return nil, r.wrapError(err)
	}
	return val, nil
}

// Instantiate evaluates transformed component code and returns the value
// bound to exportedFn. The result is not validated.
func (r *Runtime) Instantiate(ctx context.Context, transformed, exportedFn string, bindings Bindings) (goja.Value, error) {
	source := transformed + "\nreturn " + exportedFn + ";"
	val, err := r.EvaluateWithBindings(ctx, source, bindings)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", exportedFn, err)
	}
	return val, nil
}

// RunHook evaluates script and then calls hook if the script defined it.
// The data hook is only called when data is truthy.
func (r *Runtime) RunHook(ctx context.Context, hook Hook, script string, elem *html.Node, data interface{}) (goja.Value, error) {
	r.mu.Lock()
	globals := r.globals
	r.mu.Unlock()

	bindings := Bindings{{Name: "divGlobals", Value: globals}}
	if hook == HookDataUpdate {
		bindings = append(bindings, Binding{Name: "data", Value: data})
	}
	bindings = append(bindings, Binding{Name: "elem", Value: elem})

	val, err := r.EvaluateWithBindings(ctx, script+"\n"+hook.invoker(), bindings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", hook, err)
	}
	return val, nil
}

// evaluate runs the function-constructor primitive. Caller holds r.mu.
func (r *Runtime) evaluate(source string, bindings Bindings) (goja.Value, error) {
	args := make([]goja.Value, 0, len(bindings)+1)
	for _, b := range bindings {
		if !identPattern.MatchString(b.Name) {
			return nil, fmt.Errorf("invalid binding name %q", b.Name)
		}
		args = append(args, r.vm.ToValue(b.Name))
	}
	args = append(args, r.vm.ToValue(source))

	fnVal, err := r.functionCtor(goja.Undefined(), args...)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, ErrNotCallable
	}

	values := make([]goja.Value, len(bindings))
	for i, b := range bindings {
		v, err := r.toValue(b.Value)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", b.Name, err)
		}
		values[i] = v
	}
	return fn(goja.Undefined(), values...)
}

// guard interrupts the VM on timeout or context cancellation.
// The returned stop func must be called before the lock is released.
func (r *Runtime) guard(ctx context.Context) func() {
	done := make(chan struct{})
	exited := make(chan struct{})

	var timeout <-chan time.Time
	var timer *time.Timer
	if r.config.Timeout > 0 {
		timer = time.NewTimer(r.config.Timeout)
		timeout = timer.C
	}

	vm := r.vm
	go func() {
		defer close(exited)
		select {
		case <-timeout:
			vm.Interrupt(ErrTimeout)
		case <-ctx.Done():
			vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	return func() {
		close(done)
		<-exited
		if timer != nil {
			timer.Stop()
		}
		vm.ClearInterrupt()
	}
}

// wrapError converts goja interrupts into errors that match with errors.Is
func (r *Runtime) wrapError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return fmt.Errorf("script interrupted: %w", cause)
		}
		return fmt.Errorf("script interrupted: %v", interrupted.Value())
	}
	return err
}

// toValue converts Go values to JS values. Nodes become element proxies,
// structs and pointers are copied in as plain JSON objects.
func (r *Runtime) toValue(v interface{}) (goja.Value, error) {
	switch val := v.(type) {
	case nil:
		return goja.Undefined(), nil
	case goja.Value:
		return val, nil
	case *html.Node:
		return r.proxy(val), nil
	case string, bool, int, int64, float64:
		return r.vm.ToValue(val), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func:
		return r.vm.ToValue(v), nil
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return goja.Null(), nil
		}
	}
	return r.jsonValue(v)
}

// jsonValue round-trips v through JSON into native JS objects
func (r *Runtime) jsonValue(v interface{}) (goja.Value, error) {
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return r.jsonParse(goja.Undefined(), r.vm.ToValue(string(data)))
}

// exportValue converts goja value to Go value
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Reset drops all session state and starts a fresh VM
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.doc = nil
	return r.setup()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	r.doc = nil
	r.proxies = nil
	r.nodes = nil
	r.effects = nil
	r.cleanups = nil

	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()
	return nil
}
