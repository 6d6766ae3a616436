package sandbox

import (
	"sort"
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/divpanel/internal/dom"
	"github.com/GriffinCanCode/divpanel/internal/vdom"
)

// AttachDocument binds the runtime to a panel document and installs the
// document global.
func (r *Runtime) AttachDocument(doc *dom.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.vm == nil {
		return ErrClosed
	}

	r.doc = doc
	if !r.config.EnableDOM {
		return nil
	}
	return r.vm.Set("document", r.documentObject())
}

// Document returns the attached document
func (r *Runtime) Document() *dom.Document {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.doc
}

func (r *Runtime) documentObject() *goja.Object {
	doc := r.doc
	obj := r.vm.NewObject()

	r.getter(obj, "head", func() goja.Value { return r.proxy(doc.Head()) })
	r.getter(obj, "body", func() goja.Value { return r.proxy(doc.Body()) })
	r.getter(obj, "documentElement", func() goja.Value { return r.proxy(doc.Ancestor(doc.Head(), 1)) })

	_ = obj.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		return r.proxy(doc.ElementByID(call.Argument(0).String()))
	})
	_ = obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return r.proxy(doc.QuerySelector(nil, call.Argument(0).String()))
	})
	_ = obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return r.proxyList(doc.QuerySelectorAll(nil, call.Argument(0).String()))
	})
	_ = obj.Set("getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		return r.proxyList(doc.QuerySelectorAll(nil, "."+call.Argument(0).String()))
	})
	_ = obj.Set("getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return r.proxyList(doc.QuerySelectorAll(nil, call.Argument(0).String()))
	})
	_ = obj.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return r.proxy(dom.NewElement(call.Argument(0).String()))
	})
	_ = obj.Set("addEventListener", func(goja.FunctionCall) goja.Value { return goja.Undefined() })

	return obj
}

// proxy returns the cached JS object standing for node
func (r *Runtime) proxy(node *html.Node) goja.Value {
	if node == nil || r.doc == nil {
		return goja.Null()
	}
	if obj, ok := r.proxies[node]; ok {
		return obj
	}

	doc := r.doc
	obj := r.vm.NewObject()
	r.proxies[node] = obj
	r.nodes[obj] = node

	attr := func(key string) goja.Value {
		if v, ok := doc.Attr(node, key); ok {
			return r.vm.ToValue(v)
		}
		return goja.Null()
	}
	attrString := func(key string) goja.Value {
		v, _ := doc.Attr(node, key)
		return r.vm.ToValue(v)
	}

	r.getter(obj, "tagName", func() goja.Value { return r.vm.ToValue(dom.TagName(node)) })
	r.getter(obj, "nodeName", func() goja.Value { return r.vm.ToValue(dom.TagName(node)) })
	r.accessor(obj, "id", func() goja.Value { return attrString("id") }, func(v goja.Value) {
		doc.SetAttr(node, "id", v.String())
	})
	r.accessor(obj, "className", func() goja.Value { return attrString("class") }, func(v goja.Value) {
		doc.SetAttr(node, "class", v.String())
	})
	r.accessor(obj, "innerHTML", func() goja.Value { return r.vm.ToValue(doc.InnerHTML(node)) }, func(v goja.Value) {
		if err := doc.SetInnerHTML(node, v.String()); err != nil {
			panic(r.vm.NewTypeError(err.Error()))
		}
	})
	r.getter(obj, "outerHTML", func() goja.Value { return r.vm.ToValue(doc.OuterHTML(node)) })
	setText := func(v goja.Value) { doc.SetTextContent(node, v.String()) }
	r.accessor(obj, "textContent", func() goja.Value { return r.vm.ToValue(doc.TextContent(node)) }, setText)
	r.accessor(obj, "innerText", func() goja.Value { return r.vm.ToValue(doc.TextContent(node)) }, setText)
	r.getter(obj, "parentElement", func() goja.Value { return r.proxy(doc.Parent(node)) })
	r.getter(obj, "parentNode", func() goja.Value { return r.proxy(doc.Parent(node)) })
	r.getter(obj, "children", func() goja.Value { return r.proxyList(doc.Children(node)) })
	r.getter(obj, "firstElementChild", func() goja.Value {
		children := doc.Children(node)
		if len(children) == 0 {
			return goja.Null()
		}
		return r.proxy(children[0])
	})
	r.getter(obj, "style", func() goja.Value {
		return r.vm.NewDynamicObject(&styleObject{r: r, node: node})
	})

	_ = obj.Set("getAttribute", func(call goja.FunctionCall) goja.Value {
		return attr(call.Argument(0).String())
	})
	_ = obj.Set("hasAttribute", func(call goja.FunctionCall) goja.Value {
		_, ok := doc.Attr(node, call.Argument(0).String())
		return r.vm.ToValue(ok)
	})
	_ = obj.Set("setAttribute", func(call goja.FunctionCall) goja.Value {
		doc.SetAttr(node, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	_ = obj.Set("removeAttribute", func(call goja.FunctionCall) goja.Value {
		doc.RemoveAttr(node, call.Argument(0).String())
		return goja.Undefined()
	})
	_ = obj.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		child := r.nodeOf(call.Argument(0))
		if child == nil {
			panic(r.vm.NewTypeError("appendChild: argument is not an element"))
		}
		if err := doc.Append(node, child); err != nil {
			panic(r.vm.NewTypeError(err.Error()))
		}
		return call.Argument(0)
	})
	_ = obj.Set("remove", func(goja.FunctionCall) goja.Value {
		doc.Remove(node)
		return goja.Undefined()
	})
	_ = obj.Set("insertAdjacentHTML", func(call goja.FunctionCall) goja.Value {
		if !strings.EqualFold(call.Argument(0).String(), "beforeend") {
			panic(r.vm.NewTypeError("insertAdjacentHTML: only beforeend is supported"))
		}
		if _, err := doc.Write(node, call.Argument(1).String()); err != nil {
			panic(r.vm.NewTypeError(err.Error()))
		}
		return goja.Undefined()
	})
	_ = obj.Set("querySelector", func(call goja.FunctionCall) goja.Value {
		return r.proxy(doc.QuerySelector(node, call.Argument(0).String()))
	})
	_ = obj.Set("querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return r.proxyList(doc.QuerySelectorAll(node, call.Argument(0).String()))
	})
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = obj.Set("addEventListener", noop)
	_ = obj.Set("removeEventListener", noop)

	return obj
}

func (r *Runtime) proxyList(nodes []*html.Node) goja.Value {
	items := make([]interface{}, len(nodes))
	for i, n := range nodes {
		items[i] = r.proxy(n)
	}
	return r.vm.NewArray(items...)
}

// nodeOf maps a proxy back to its node
func (r *Runtime) nodeOf(v goja.Value) *html.Node {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return r.nodes[obj]
}

func (r *Runtime) getter(obj *goja.Object, name string, get func() goja.Value) {
	r.accessor(obj, name, get, nil)
}

func (r *Runtime) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	g := r.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
	var s goja.Value
	if set != nil {
		s = r.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	_ = obj.DefineAccessorProperty(name, g, s, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// styleObject exposes the style attribute as element.style
type styleObject struct {
	r    *Runtime
	node *html.Node
}

func (s *styleObject) declarations() map[string]string {
	raw, _ := s.r.doc.Attr(s.node, "style")
	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

func (s *styleObject) write(decls map[string]string) {
	keys := make([]string, 0, len(decls))
	for k := range decls {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+":"+decls[k])
	}
	if len(parts) == 0 {
		s.r.doc.RemoveAttr(s.node, "style")
		return
	}
	s.r.doc.SetAttr(s.node, "style", strings.Join(parts, ";"))
}

func (s *styleObject) Get(key string) goja.Value {
	if key == "cssText" {
		raw, _ := s.r.doc.Attr(s.node, "style")
		return s.r.vm.ToValue(raw)
	}
	return s.r.vm.ToValue(s.declarations()[vdom.CSSProperty(key)])
}

func (s *styleObject) Set(key string, val goja.Value) bool {
	if key == "cssText" {
		s.r.doc.SetAttr(s.node, "style", val.String())
		return true
	}

	decls := s.declarations()
	prop := vdom.CSSProperty(key)
	if v := val.String(); v == "" || goja.IsNull(val) || goja.IsUndefined(val) {
		delete(decls, prop)
	} else {
		decls[prop] = v
	}
	s.write(decls)
	return true
}

func (s *styleObject) Has(key string) bool {
	_, ok := s.declarations()[vdom.CSSProperty(key)]
	return ok
}

func (s *styleObject) Delete(key string) bool {
	decls := s.declarations()
	delete(decls, vdom.CSSProperty(key))
	s.write(decls)
	return true
}

func (s *styleObject) Keys() []string {
	decls := s.declarations()
	keys := make([]string, 0, len(decls))
	for k := range decls {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
