package fragment

import (
	"fmt"
	"strings"

	"github.com/GriffinCanCode/divpanel/internal/dom"
	"github.com/GriffinCanCode/divpanel/internal/sandbox"
	"github.com/GriffinCanCode/divpanel/internal/shared/utils"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Bundle is classified author markup. Meta and Links stay empty: head
// meta and link tags are applied to the live head during classification.
type Bundle struct {
	HTML    string
	Meta    []*html.Node
	Scripts []*html.Node
	Modules []*html.Node
	Imports []*html.Node
	Links   []*html.Node
}

// BodyScriptInjector receives each body script that has a src. It must
// not block.
type BodyScriptInjector func(script *html.Node)

// Classifier splits author markup against a live document
type Classifier struct {
	doc       *dom.Document
	inject    BodyScriptInjector
	sanitizer *bluemonday.Policy
	logger    *zap.Logger
}

// Option configures a Classifier
type Option func(*Classifier)

// WithBodyScriptInjector routes body scripts with src to fn instead of
// appending them to the live body
func WithBodyScriptInjector(fn BodyScriptInjector) Option {
	return func(c *Classifier) { c.inject = fn }
}

// WithSanitizer filters the display markup through policy
func WithSanitizer(policy *bluemonday.Policy) Option {
	return func(c *Classifier) { c.sanitizer = policy }
}

// WithLogger sets the classifier logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Classifier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// DefaultSanitizer allows user-generated markup plus inline styling and
// data attributes
func DefaultSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowStyling()
	p.AllowDataAttributes()
	return p
}

// New creates a classifier that applies head side effects to doc
func New(doc *dom.Document, opts ...Option) *Classifier {
	c := &Classifier{doc: doc, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// hookByRun maps a lowercased run attribute to the hook it defines
var hookByRun = map[string]sandbox.Hook{
	"oninit":          sandbox.HookInit,
	"onentereditmode": sandbox.HookEnterEditMode,
	"onexiteditmode":  sandbox.HookExitEditMode,
	"ondata":          sandbox.HookDataUpdate,
}

// Classify parses source and applies its head side effects. A non-empty
// errorOverride replaces the display markup; side effects still happen.
func (c *Classifier) Classify(source, errorOverride string) (*Bundle, error) {
	if err := utils.ValidateContent(source); err != nil {
		return nil, err
	}

	head, body, err := parseDocument(source)
	if err != nil {
		return nil, err
	}

	bundle := &Bundle{}
	liveHead := c.doc.Head()

	var headErr error
	head.Children().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n := s.Get(0)
		switch n.Data {
		case "meta", "link", "style":
			headErr = c.doc.Append(liveHead, dom.Clone(n))
		case "script":
			bundle.Imports = append(bundle.Imports, dom.Clone(n))
			headErr = c.doc.Append(liveHead, dom.Clone(n))
		}
		return headErr == nil
	})
	if headErr != nil {
		return nil, fmt.Errorf("apply head: %w", headErr)
	}

	display := dom.NewElement("div")
	var bodyErr error
	body.Children().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		n := s.Get(0)
		if n.Data != "script" {
			display.AppendChild(dom.Clone(n))
			return true
		}

		switch {
		case hasAttr(s, "src"):
			bodyErr = c.injectBodyScript(dom.Clone(n))
		case strings.EqualFold(s.AttrOr("type", ""), "module"):
			bundle.Modules = append(bundle.Modules, dom.Clone(n))
		default:
			bundle.Scripts = append(bundle.Scripts, wrapHook(n, s.AttrOr("run", "")))
		}
		return bodyErr == nil
	})
	if bodyErr != nil {
		return nil, fmt.Errorf("inject body script: %w", bodyErr)
	}

	bundle.HTML = dom.InnerHTML(display)
	if c.sanitizer != nil {
		bundle.HTML = c.sanitizer.Sanitize(bundle.HTML)
	}
	if errorOverride != "" {
		bundle.HTML = errorOverride
	}

	c.logger.Debug("classified content",
		zap.Int("imports", len(bundle.Imports)),
		zap.Int("scripts", len(bundle.Scripts)),
		zap.Int("modules", len(bundle.Modules)),
		zap.Bool("error_override", errorOverride != ""))
	return bundle, nil
}

func (c *Classifier) injectBodyScript(script *html.Node) error {
	if c.inject != nil {
		c.inject(script)
		return nil
	}
	return c.doc.Append(c.doc.Body(), script)
}

// wrapHook clones script, wrapping its text in the hook named by run.
// Unknown or missing run values keep the text as is.
func wrapHook(script *html.Node, run string) *html.Node {
	clone := dom.Clone(script)
	hook, ok := hookByRun[strings.ToLower(strings.TrimSpace(run))]
	if !ok {
		return clone
	}

	params := "elem"
	if hook == sandbox.HookDataUpdate {
		params = "data, elem"
	}
	dom.SetText(clone, fmt.Sprintf("function %s(%s) {\n%s\n}\n", hook, params, dom.Text(script)))
	return clone
}

// HasLifecycleEditHooks reports whether source names both edit-mode hooks
func HasLifecycleEditHooks(source string) bool {
	return strings.Contains(source, string(sandbox.HookEnterEditMode)) &&
		strings.Contains(source, string(sandbox.HookExitEditMode))
}

// ParseScripts returns a clone of every body script in source
func ParseScripts(source string) ([]*html.Node, error) {
	_, body, err := parseDocument(source)
	if err != nil {
		return nil, err
	}

	var scripts []*html.Node
	body.ChildrenFiltered("script").Each(func(_ int, s *goquery.Selection) {
		scripts = append(scripts, dom.Clone(s.Get(0)))
	})
	return scripts, nil
}

// parseDocument parses source as a full document and selects its head and
// body
func parseDocument(source string) (head, body *goquery.Selection, err error) {
	root, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return nil, nil, fmt.Errorf("parse content: %w", err)
	}

	doc := goquery.NewDocumentFromNode(root)
	return doc.Find("head").First(), doc.Find("body").First(), nil
}

func hasAttr(s *goquery.Selection, key string) bool {
	v, ok := s.Attr(key)
	return ok && v != ""
}
