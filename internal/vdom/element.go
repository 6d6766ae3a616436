// Package vdom renders component element trees to HTML.
//
// Trees are produced by createElement calls in panel components. Intrinsic
// elements become x/net/html nodes; function components are expanded through
// a Resolver supplied by the runtime that owns them.
package vdom

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Fragment is the element type of a keyless fragment
const Fragment = "#fragment"

// MaxDepth bounds component expansion
const MaxDepth = 256

var (
	ErrInvalidChild = errors.New("objects are not valid as a child")
	ErrTooDeep      = errors.New("component tree exceeds maximum depth")
)

// Element is one node of a component tree
type Element struct {
	Type      string                 `json:"type"`
	Component interface{}            `json:"-"`
	Props     map[string]interface{} `json:"props"`
	Key       string                 `json:"key,omitempty"`
}

// IsComponent reports whether the element needs resolving
func (e *Element) IsComponent() bool {
	return e.Component != nil
}

// Children returns props.children as a slice
func (e *Element) Children() []interface{} {
	switch c := e.Props["children"].(type) {
	case nil:
		return nil
	case []interface{}:
		return c
	default:
		return []interface{}{c}
	}
}

// Resolver expands a function component into its rendered output
type Resolver func(component interface{}, props map[string]interface{}) (interface{}, error)

// Render renders a tree to an HTML string
func Render(node interface{}, resolve Resolver) (string, error) {
	nodes, err := Build(node, resolve)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		if err := html.Render(&buf, n); err != nil {
			return "", fmt.Errorf("render html: %w", err)
		}
	}
	return buf.String(), nil
}

// Build converts a tree into detached html nodes
func Build(node interface{}, resolve Resolver) ([]*html.Node, error) {
	b := &builder{resolve: resolve}
	return b.build(node, 0)
}

type builder struct {
	resolve Resolver
}

func (b *builder) build(node interface{}, depth int) ([]*html.Node, error) {
	if depth > MaxDepth {
		return nil, ErrTooDeep
	}

	switch v := node.(type) {
	case nil, bool:
		return nil, nil
	case string:
		return []*html.Node{text(v)}, nil
	case int:
		return []*html.Node{text(strconv.Itoa(v))}, nil
	case int64:
		return []*html.Node{text(strconv.FormatInt(v, 10))}, nil
	case float64:
		return []*html.Node{text(formatNumber(v))}, nil
	case []interface{}:
		var out []*html.Node
		for _, child := range v {
			nodes, err := b.build(child, depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, nodes...)
		}
		return out, nil
	case *Element:
		return b.element(v, depth)
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidChild, node)
	}
}

func (b *builder) element(el *Element, depth int) ([]*html.Node, error) {
	if el.IsComponent() {
		if b.resolve == nil {
			return nil, fmt.Errorf("no resolver for component element")
		}
		out, err := b.resolve(el.Component, el.Props)
		if err != nil {
			return nil, err
		}
		return b.build(out, depth+1)
	}

	if el.Type == Fragment || el.Type == "" {
		return b.build(el.Children(), depth+1)
	}

	tag := strings.ToLower(el.Type)
	node := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     Attributes(el.Props),
	}

	if voidElements[tag] {
		return []*html.Node{node}, nil
	}

	if inner, ok := innerHTML(el.Props); ok {
		children, err := html.ParseFragment(strings.NewReader(inner), node)
		if err != nil {
			return nil, fmt.Errorf("dangerouslySetInnerHTML: %w", err)
		}
		for _, c := range children {
			node.AppendChild(c)
		}
		return []*html.Node{node}, nil
	}

	children, err := b.build(el.Children(), depth+1)
	if err != nil {
		return nil, err
	}
	for _, c := range children {
		node.AppendChild(c)
	}
	return []*html.Node{node}, nil
}

// Attributes converts element props into sorted html attributes
func Attributes(props map[string]interface{}) []html.Attribute {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var attrs []html.Attribute
	for _, key := range keys {
		if skipProp(key) {
			continue
		}

		name := attrName(key)
		switch v := props[key].(type) {
		case nil:
			continue
		case bool:
			if v {
				attrs = append(attrs, html.Attribute{Key: name})
			}
		case string:
			attrs = append(attrs, html.Attribute{Key: name, Val: v})
		case int64:
			attrs = append(attrs, html.Attribute{Key: name, Val: strconv.FormatInt(v, 10)})
		case int:
			attrs = append(attrs, html.Attribute{Key: name, Val: strconv.Itoa(v)})
		case float64:
			attrs = append(attrs, html.Attribute{Key: name, Val: formatNumber(v)})
		case map[string]interface{}:
			if key == "style" {
				if css := StyleString(v); css != "" {
					attrs = append(attrs, html.Attribute{Key: "style", Val: css})
				}
			}
		default:
			if s, ok := v.(fmt.Stringer); ok {
				attrs = append(attrs, html.Attribute{Key: name, Val: s.String()})
			}
		}
	}
	return attrs
}

// StyleString converts a style object to an inline declaration list
func StyleString(style map[string]interface{}) string {
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		prop := CSSProperty(k)
		switch v := style[k].(type) {
		case nil, bool:
			continue
		case string:
			if v == "" {
				continue
			}
			parts = append(parts, prop+":"+v)
		case int64:
			parts = append(parts, prop+":"+cssNumber(k, float64(v)))
		case int:
			parts = append(parts, prop+":"+cssNumber(k, float64(v)))
		case float64:
			parts = append(parts, prop+":"+cssNumber(k, v))
		default:
			parts = append(parts, fmt.Sprintf("%s:%v", prop, v))
		}
	}
	return strings.Join(parts, ";")
}

func skipProp(key string) bool {
	switch key {
	case "children", "key", "ref", "dangerouslySetInnerHTML":
		return true
	}
	return len(key) > 2 && strings.HasPrefix(key, "on") && key[2] >= 'A' && key[2] <= 'Z'
}

func attrName(key string) string {
	switch key {
	case "className":
		return "class"
	case "htmlFor":
		return "for"
	case "tabIndex":
		return "tabindex"
	}
	return key
}

func innerHTML(props map[string]interface{}) (string, bool) {
	m, ok := props["dangerouslySetInnerHTML"].(map[string]interface{})
	if !ok {
		return "", false
	}
	s, ok := m["__html"].(string)
	return s, ok
}

// CSSProperty converts fontSize to font-size
func CSSProperty(key string) string {
	if strings.HasPrefix(key, "--") {
		return key
	}

	var sb strings.Builder
	for i, r := range key {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func cssNumber(key string, v float64) string {
	if v == 0 || unitless[key] {
		return formatNumber(v)
	}
	return formatNumber(v) + "px"
}

func formatNumber(v float64) string {
	if math.Trunc(v) == v && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

var unitless = map[string]bool{
	"opacity":     true,
	"zIndex":      true,
	"fontWeight":  true,
	"lineHeight":  true,
	"flex":        true,
	"flexGrow":    true,
	"flexShrink":  true,
	"order":       true,
	"zoom":        true,
	"gridRow":     true,
	"gridColumn":  true,
	"columnCount": true,
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}
