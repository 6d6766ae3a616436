package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/divpanel/internal/vdom"
)

// DefaultBindings returns the component binding set in order:
// React, UI, css, props.
func (r *Runtime) DefaultBindings(props Props) Bindings {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Bindings{
		{Name: "React", Value: r.reactObject()},
		{Name: "UI", Value: r.uiObject()},
		{Name: "css", Value: r.css},
		{Name: "props", Value: props},
	}
}

func (r *Runtime) reactObject() *goja.Object {
	react := r.vm.NewObject()
	_ = react.Set("createElement", r.createElement)
	_ = react.Set("Fragment", vdom.Fragment)
	_ = react.Set("useState", r.useState)
	_ = react.Set("useRef", func(call goja.FunctionCall) goja.Value {
		ref := r.vm.NewObject()
		_ = ref.Set("current", call.Argument(0))
		return ref
	})
	_ = react.Set("useMemo", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(r.vm.NewTypeError("useMemo expects a function"))
		}
		v, err := fn(goja.Undefined())
		if err != nil {
			r.throw(err)
		}
		return v
	})
	_ = react.Set("useCallback", func(call goja.FunctionCall) goja.Value {
		return call.Argument(0)
	})
	_ = react.Set("useEffect", r.useEffect)
	_ = react.Set("useLayoutEffect", r.useEffect)
	return react
}

// createElement implements React.createElement(type, props, ...children)
func (r *Runtime) createElement(call goja.FunctionCall) goja.Value {
	typ := call.Argument(0)
	el := &vdom.Element{Props: map[string]interface{}{}}

	if goja.IsUndefined(typ) || goja.IsNull(typ) {
		panic(r.vm.NewTypeError(fmt.Sprintf("element type is invalid: expected a string or a function but got: %s", typ)))
	}
	if _, ok := goja.AssertFunction(typ); ok {
		el.Component = typ
	} else {
		el.Type = typ.String()
	}

	if p := call.Argument(1); !goja.IsUndefined(p) && !goja.IsNull(p) {
		if m, ok := p.Export().(map[string]interface{}); ok {
			for k, v := range m {
				el.Props[k] = v
			}
		}
	}
	if key, ok := el.Props["key"]; ok && key != nil {
		el.Key = fmt.Sprint(key)
	}

	if n := len(call.Arguments) - 2; n == 1 {
		el.Props["children"] = exportValue(call.Arguments[2])
	} else if n > 1 {
		children := make([]interface{}, n)
		for i, c := range call.Arguments[2:] {
			children[i] = exportValue(c)
		}
		el.Props["children"] = children
	}

	return r.vm.ToValue(el)
}

// useState returns [value, setState]. Renders are static, so the setter
// has no effect on output already produced.
func (r *Runtime) useState(call goja.FunctionCall) goja.Value {
	initial := call.Argument(0)
	if fn, ok := goja.AssertFunction(initial); ok {
		v, err := fn(goja.Undefined())
		if err != nil {
			r.throw(err)
		}
		initial = v
	}
	setter := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	return r.vm.NewArray(initial, setter)
}

// useEffect queues fn to run after the render is mounted
func (r *Runtime) useEffect(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(r.vm.NewTypeError("useEffect expects a function"))
	}
	r.effects = append(r.effects, fn)
	return goja.Undefined()
}

// RenderComponent calls component with props and renders the returned tree.
// A non-callable component is a caller error.
func (r *Runtime) RenderComponent(ctx context.Context, component goja.Value, props Props) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return "", ErrClosed
	}

	fn, ok := goja.AssertFunction(component)
	if !ok {
		return "", fmt.Errorf("render component: %w", ErrNotCallable)
	}

	stop := r.guard(ctx)
	defer stop()

	r.effects = nil
	arg, err := r.toValue(props)
	if err != nil {
		return "", err
	}
	out, err := fn(goja.Undefined(), arg)
	if err != nil {
		return "", r.wrapError(err)
	}

	markup, err := vdom.Render(exportValue(out), r.resolve)
	if err != nil {
		return "", r.wrapError(err)
	}
	return markup, nil
}

// resolve expands a function component. Caller holds r.mu.
func (r *Runtime) resolve(component interface{}, props map[string]interface{}) (interface{}, error) {
	val, ok := component.(goja.Value)
	if !ok {
		return nil, fmt.Errorf("resolve %T: %w", component, ErrNotCallable)
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, fmt.Errorf("resolve component: %w", ErrNotCallable)
	}

	out, err := fn(goja.Undefined(), r.vm.ToValue(props))
	if err != nil {
		return nil, err
	}
	return exportValue(out), nil
}

// throw rethrows err into the running script
func (r *Runtime) throw(err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex.Value())
	}
	panic(r.vm.NewGoError(err))
}

// FlushEffects runs the effects queued by the last render. Cleanup
// functions they return are kept for Cleanup.
func (r *Runtime) FlushEffects(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return ErrClosed
	}

	effects := r.effects
	r.effects = nil
	if len(effects) == 0 {
		return nil
	}

	stop := r.guard(ctx)
	defer stop()

	for _, effect := range effects {
		ret, err := effect(goja.Undefined())
		if err != nil {
			return fmt.Errorf("effect: %w", r.wrapError(err))
		}
		if cleanup, ok := goja.AssertFunction(ret); ok {
			r.cleanups = append(r.cleanups, cleanup)
		}
	}
	return nil
}

// Cleanup runs effect cleanups in reverse order before an unmount
func (r *Runtime) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return ErrClosed
	}

	cleanups := r.cleanups
	r.cleanups = nil
	r.effects = nil
	if len(cleanups) == 0 {
		return nil
	}

	stop := r.guard(ctx)
	defer stop()

	for i := len(cleanups) - 1; i >= 0; i-- {
		if _, err := cleanups[i](goja.Undefined()); err != nil {
			return fmt.Errorf("effect cleanup: %w", r.wrapError(err))
		}
	}
	return nil
}
