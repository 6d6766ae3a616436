package dom

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	ErrNilNode    = errors.New("dom: nil node")
	ErrNotElement = errors.New("dom: node is not an element")
)

// Panel chrome class names
const (
	ContainerClass = "panel-container"
	ContentClass   = "panel-content"
	PanelClass     = "panel"
	RootClass      = "div-panel"
)

// Document is a mutable HTML document guarded by a lock
type Document struct {
	mu   sync.RWMutex
	root *html.Node
	html *html.Node
	head *html.Node
	body *html.Node
}

// New creates an empty document
func New() *Document {
	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	htmlEl := NewElement("html")
	head := NewElement("head")
	body := NewElement("body")
	htmlEl.AppendChild(head)
	htmlEl.AppendChild(body)
	root.AppendChild(htmlEl)

	return &Document{root: root, html: htmlEl, head: head, body: body}
}

// Head returns the head element
func (d *Document) Head() *html.Node { return d.head }

// Body returns the body element
func (d *Document) Body() *html.Node { return d.body }

// Append detaches node from any parent and appends it to parent
func (d *Document) Append(parent, node *html.Node) error {
	if parent == nil || node == nil {
		return ErrNilNode
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if node.Parent != nil {
		node.Parent.RemoveChild(node)
	}
	parent.AppendChild(node)
	return nil
}

// Remove detaches node from the tree
func (d *Document) Remove(node *html.Node) {
	if node == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if node.Parent != nil {
		node.Parent.RemoveChild(node)
	}
}

// Write parses markup in the context of container and appends the
// resulting nodes in order. The whole insertion happens under one lock.
func (d *Document) Write(container *html.Node, markup string) ([]*html.Node, error) {
	if container == nil {
		return nil, ErrNilNode
	}
	if container.Type != html.ElementNode {
		return nil, ErrNotElement
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), contextFor(container))
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, n := range nodes {
		container.AppendChild(n)
	}
	return nodes, nil
}

// SetInnerHTML replaces the children of node with parsed markup
func (d *Document) SetInnerHTML(node *html.Node, markup string) error {
	if node == nil {
		return ErrNilNode
	}
	if node.Type != html.ElementNode {
		return ErrNotElement
	}

	nodes, err := html.ParseFragment(strings.NewReader(markup), contextFor(node))
	if err != nil {
		return fmt.Errorf("parse fragment: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	removeChildren(node)
	for _, n := range nodes {
		node.AppendChild(n)
	}
	return nil
}

// InnerHTML renders the children of node
func (d *Document) InnerHTML(node *html.Node) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return InnerHTML(node)
}

// OuterHTML renders node itself
func (d *Document) OuterHTML(node *html.Node) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return OuterHTML(node)
}

// TextContent returns the concatenated text below node
func (d *Document) TextContent(node *html.Node) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Text(node)
}

// SetTextContent replaces the children of node with one text node
func (d *Document) SetTextContent(node *html.Node, text string) {
	if node == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	SetText(node, text)
}

// Attr reads an attribute of a live node
func (d *Document) Attr(node *html.Node, key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Attr(node, key)
}

// SetAttr writes an attribute of a live node
func (d *Document) SetAttr(node *html.Node, key, value string) {
	if node == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	SetAttr(node, key, value)
}

// RemoveAttr deletes an attribute of a live node
func (d *Document) RemoveAttr(node *html.Node, key string) {
	if node == nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	RemoveAttr(node, key)
}

// ElementByID finds the first element with the given id
func (d *Document) ElementByID(id string) *html.Node {
	if id == "" {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	node, err := htmlquery.Query(d.root, "//*[@id="+xpathLiteral(id)+"]")
	if err != nil {
		return nil
	}
	return node
}

// QuerySelector returns the first descendant of scope matching selector.
// A nil scope searches the whole document.
func (d *Document) QuerySelector(scope *html.Node, selector string) *html.Node {
	all := d.QuerySelectorAll(scope, selector)
	if len(all) == 0 {
		return nil
	}
	return all[0]
}

// QuerySelectorAll returns every descendant of scope matching selector
func (d *Document) QuerySelectorAll(scope *html.Node, selector string) []*html.Node {
	if scope == nil {
		scope = d.root
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	return goquery.NewDocumentFromNode(scope).Find(selector).Nodes
}

// Parent returns the parent element of node
func (d *Document) Parent(node *html.Node) *html.Node {
	if node == nil {
		return nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	return node.Parent
}

// Ancestor walks levels parents up from node. It returns nil when the
// walk leaves the tree.
func (d *Document) Ancestor(node *html.Node, levels int) *html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for i := 0; i < levels && node != nil; i++ {
		node = node.Parent
	}
	if node == nil || node.Type != html.ElementNode {
		return nil
	}
	return node
}

// Children returns the element children of node
func (d *Document) Children(node *html.Node) []*html.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return ElementChildren(node)
}

// MountPanel builds the panel chrome in the body and returns the panel
// root: body > container > content > panel > root. A node mounted inside
// the root finds the container four levels up.
func (d *Document) MountPanel(panelID string) *html.Node {
	container := NewElement("div", html.Attribute{Key: "class", Val: ContainerClass})
	content := NewElement("div", html.Attribute{Key: "class", Val: ContentClass})
	panel := NewElement("div",
		html.Attribute{Key: "class", Val: PanelClass},
		html.Attribute{Key: "data-panel-id", Val: panelID},
	)
	root := NewElement("div", html.Attribute{Key: "class", Val: RootClass})
	panel.AppendChild(root)
	content.AppendChild(panel)
	container.AppendChild(content)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.body.AppendChild(container)
	return root
}

// Render serializes the whole document
func (d *Document) Render() string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return ""
	}
	return buf.String()
}

// NewElement creates a detached element
func NewElement(tag string, attrs ...html.Attribute) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
}

// contextFor returns a context element accepted by ParseFragment
func contextFor(node *html.Node) *html.Node {
	if node.DataAtom == 0 {
		return &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	}
	return node
}

func removeChildren(node *html.Node) {
	for c := node.FirstChild; c != nil; {
		next := c.NextSibling
		node.RemoveChild(c)
		c = next
	}
}

// xpathLiteral quotes s for use in an XPath expression
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}
