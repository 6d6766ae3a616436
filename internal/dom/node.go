package dom

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// Helpers in this file operate on detached nodes or are called with the
// document lock held.

// Attr returns the value of key on node
func Attr(node *html.Node, key string) (string, bool) {
	if node == nil {
		return "", false
	}
	for _, a := range node.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets key on node, replacing an existing value
func SetAttr(node *html.Node, key, value string) {
	for i, a := range node.Attr {
		if a.Namespace == "" && a.Key == key {
			node.Attr[i].Val = value
			return
		}
	}
	node.Attr = append(node.Attr, html.Attribute{Key: key, Val: value})
}

// RemoveAttr deletes key from node
func RemoveAttr(node *html.Node, key string) {
	attrs := node.Attr[:0]
	for _, a := range node.Attr {
		if a.Namespace == "" && a.Key == key {
			continue
		}
		attrs = append(attrs, a)
	}
	node.Attr = attrs
}

// Clone deep-copies node without its parent or siblings
func Clone(node *html.Node) *html.Node {
	if node == nil {
		return nil
	}

	dup := &html.Node{
		Type:      node.Type,
		DataAtom:  node.DataAtom,
		Data:      node.Data,
		Namespace: node.Namespace,
		Attr:      append([]html.Attribute(nil), node.Attr...),
	}
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		dup.AppendChild(Clone(c))
	}
	return dup
}

// Text returns the concatenated text nodes below node
func Text(node *html.Node) string {
	if node == nil {
		return ""
	}
	if node.Type == html.TextNode {
		return node.Data
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.TextNode {
				sb.WriteString(c.Data)
				continue
			}
			walk(c)
		}
	}
	walk(node)
	return sb.String()
}

// SetText replaces the children of node with a single text node
func SetText(node *html.Node, text string) {
	removeChildren(node)
	if text != "" {
		node.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}
}

// InnerHTML renders the children of node
func InnerHTML(node *html.Node) string {
	if node == nil {
		return ""
	}

	var buf bytes.Buffer
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return buf.String()
		}
	}
	return buf.String()
}

// OuterHTML renders node including its own tag
func OuterHTML(node *html.Node) string {
	if node == nil {
		return ""
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, node); err != nil {
		return buf.String()
	}
	return buf.String()
}

// ElementChildren returns the element children of node
func ElementChildren(node *html.Node) []*html.Node {
	if node == nil {
		return nil
	}

	var out []*html.Node
	for c := node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// TagName returns the upper-case tag name the browser DOM reports
func TagName(node *html.Node) string {
	if node == nil || node.Type != html.ElementNode {
		return ""
	}
	return strings.ToUpper(node.Data)
}

// ParseElement parses markup and returns its first element
func ParseElement(markup string) (*html.Node, error) {
	ctx := NewElement("div")
	nodes, err := html.ParseFragment(strings.NewReader(markup), ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n, nil
		}
	}
	return nil, ErrNotElement
}
