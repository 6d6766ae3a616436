package sandbox

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/divpanel/internal/shared/utils"
	"github.com/GriffinCanCode/divpanel/internal/vdom"
)

func (r *Runtime) uiObject() *goja.Object {
	ui := r.vm.NewObject()
	_ = ui.Set("Button", r.component(button))
	_ = ui.Set("Card", r.component(card))
	_ = ui.Set("Badge", r.component(badge))
	_ = ui.Set("Stack", r.component(stack))
	return ui
}

// component adapts a Go render func to a callable component
func (r *Runtime) component(render func(props map[string]interface{}) *vdom.Element) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		props, _ := exportValue(call.Argument(0)).(map[string]interface{})
		if props == nil {
			props = map[string]interface{}{}
		}
		return r.vm.ToValue(render(props))
	}
}

func button(props map[string]interface{}) *vdom.Element {
	variant := stringProp(props, "variant", "primary")
	attrs := map[string]interface{}{
		"class":    classes("div-panel-btn", "div-panel-btn--"+variant, stringProp(props, "className", "")),
		"type":     "button",
		"children": props["children"],
	}
	if disabled, _ := props["disabled"].(bool); disabled {
		attrs["disabled"] = true
	}
	return &vdom.Element{Type: "button", Props: attrs}
}

func card(props map[string]interface{}) *vdom.Element {
	var children []interface{}
	if heading := stringProp(props, "heading", ""); heading != "" {
		children = append(children, &vdom.Element{Type: "div", Props: map[string]interface{}{
			"class":    "div-panel-card__heading",
			"children": heading,
		}})
	}
	children = append(children, &vdom.Element{Type: "div", Props: map[string]interface{}{
		"class":    "div-panel-card__body",
		"children": props["children"],
	}})

	return &vdom.Element{Type: "div", Props: map[string]interface{}{
		"class":    classes("div-panel-card", stringProp(props, "className", "")),
		"children": children,
	}}
}

func badge(props map[string]interface{}) *vdom.Element {
	text := props["text"]
	if text == nil {
		text = props["children"]
	}
	return &vdom.Element{Type: "span", Props: map[string]interface{}{
		"class":    classes("div-panel-badge", "div-panel-badge--"+stringProp(props, "color", "blue")),
		"children": text,
	}}
}

func stack(props map[string]interface{}) *vdom.Element {
	direction := "column"
	if stringProp(props, "direction", "") == "row" {
		direction = "row"
	}
	style := map[string]interface{}{
		"display":       "flex",
		"flexDirection": direction,
	}
	if gap, ok := props["gap"]; ok {
		style["gap"] = gap
	}
	return &vdom.Element{Type: "div", Props: map[string]interface{}{
		"class":    classes("div-panel-stack", stringProp(props, "className", "")),
		"style":    style,
		"children": props["children"],
	}}
}

// css implements the tagged-template styling helper. The rule is written
// into the document head once per generated class.
func (r *Runtime) css(call goja.FunctionCall) goja.Value {
	var sb strings.Builder
	if parts, ok := exportValue(call.Argument(0)).([]interface{}); ok {
		for i, part := range parts {
			sb.WriteString(fmt.Sprint(part))
			if i < len(parts)-1 && i+1 < len(call.Arguments) {
				sb.WriteString(call.Arguments[i+1].String())
			}
		}
	} else {
		sb.WriteString(call.Argument(0).String())
	}

	body := strings.TrimSpace(sb.String())
	class := utils.ScopedClass("css", body)

	if r.doc != nil && !r.styles[class] {
		markup := fmt.Sprintf(`<style data-css="%s">.%s{%s}</style>`, class, class, body)
		if _, err := r.doc.Write(r.doc.Head(), markup); err != nil {
			panic(r.vm.NewGoError(err))
		}
		r.styles[class] = true
	}
	return r.vm.ToValue(class)
}

func stringProp(props map[string]interface{}, key, fallback string) string {
	if v, ok := props[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func classes(names ...string) string {
	out := names[:0]
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	return strings.Join(out, " ")
}
