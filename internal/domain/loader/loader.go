package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/divpanel/internal/dom"
	"github.com/GriffinCanCode/divpanel/internal/providers/http/client"
	"github.com/GriffinCanCode/divpanel/internal/sandbox"
	"github.com/GriffinCanCode/divpanel/internal/shared/types"
	"github.com/dop251/goja"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// AlreadyLoaded is returned in place of a value when a script was loaded
// before or has no src
const AlreadyLoaded = "scripts already loaded"

// ContainerDepth is how far above a mounted element its container sits
const ContainerDepth = 4

var (
	ErrNoContainer = errors.New("no container: unable to locate a mount point to load dependencies into")
	ErrNotScript   = client.ErrNotScript
)

// Fetcher downloads resource text
type Fetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Executor runs script text in a panel runtime
type Executor interface {
	ExecuteNamed(ctx context.Context, name, script string) (*sandbox.Result, error)
	EvaluateWithBindings(ctx context.Context, source string, bindings sandbox.Bindings) (goja.Value, error)
}

// Recorder observes resource loads
type Recorder interface {
	RecordResourceLoad(kind, status string, duration time.Duration)
}

// Loader loads resources for one panel
type Loader struct {
	doc      *dom.Document
	exec     Executor
	fetcher  Fetcher
	scripts  *Registry
	links    *Registry
	flights  singleflight.Group
	logger   *zap.Logger
	recorder Recorder

	evaluateForResult bool
}

// Option configures a Loader
type Option func(*Loader)

// WithLogger sets the loader logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithRecorder sets the load observer
func WithRecorder(r Recorder) Option {
	return func(l *Loader) { l.recorder = r }
}

// WithEvaluateForResult also evaluates fetched scripts as a function body
// and returns that value, running the script a second time
func WithEvaluateForResult(enabled bool) Option {
	return func(l *Loader) { l.evaluateForResult = enabled }
}

// New creates a loader writing into doc and running scripts with exec
func New(doc *dom.Document, exec Executor, fetcher Fetcher, opts ...Option) *Loader {
	l := &Loader{
		doc:     doc,
		exec:    exec,
		fetcher: fetcher,
		scripts: NewRegistry(),
		links:   NewRegistry(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Scripts returns the registry of loaded script urls
func (l *Loader) Scripts() *Registry { return l.scripts }

// Links returns the registry of loaded link hrefs
func (l *Loader) Links() *Registry { return l.links }

// LoadScript injects script into container (the head when nil), fetches
// its src and runs it. It returns the script's completion value, or
// AlreadyLoaded when the src was loaded before or is missing.
func (l *Loader) LoadScript(ctx context.Context, script *html.Node, container *html.Node) (interface{}, error) {
	src := attr(script, "src")
	if src == "" || l.scripts.Has(src) {
		l.record("script", "cached", time.Now())
		return AlreadyLoaded, nil
	}

	v, err, _ := l.flights.Do("script:"+src, func() (interface{}, error) {
		if l.scripts.Has(src) {
			return AlreadyLoaded, nil
		}
		return l.loadScript(ctx, script, src, container)
	})
	return v, err
}

func (l *Loader) loadScript(ctx context.Context, script *html.Node, src string, container *html.Node) (value interface{}, err error) {
	start := time.Now()
	defer func() {
		if err != nil {
			l.record("script", "error", start)
			l.logger.Warn("script load failed", zap.String("src", src), zap.Error(err))
			return
		}
		l.record("script", "loaded", start)
	}()

	if container == nil {
		container = l.doc.Head()
	}
	if _, err := l.doc.Write(container, dom.OuterHTML(script)); err != nil {
		return nil, fmt.Errorf("inject script %s: %w", src, err)
	}

	code, err := l.fetcher.FetchText(ctx, src)
	if err != nil {
		return nil, err
	}

	res, err := l.exec.ExecuteNamed(ctx, src, code)
	if err != nil {
		return nil, fmt.Errorf("evaluate %s: %w", src, err)
	}
	value = res.Value

	if l.evaluateForResult {
		v, err := l.exec.EvaluateWithBindings(ctx, code, nil)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s for result: %w", src, err)
		}
		value = export(v)
	}

	l.scripts.Mark(src)
	l.logger.Debug("script loaded", zap.String("src", src), zap.Duration("duration", time.Since(start)))
	return value, nil
}

// LoadLink injects link into the head once per href
func (l *Loader) LoadLink(ctx context.Context, link *html.Node) (*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	href := attr(link, "href")
	if href == "" || l.links.Has(href) {
		l.record("link", "cached", time.Now())
		return link, nil
	}

	_, err, _ := l.flights.Do("link:"+href, func() (interface{}, error) {
		if l.links.Has(href) {
			return nil, nil
		}
		start := time.Now()
		if _, err := l.doc.Write(l.doc.Head(), dom.OuterHTML(link)); err != nil {
			l.record("link", "error", start)
			return nil, fmt.Errorf("inject link %s: %w", href, err)
		}
		l.links.Mark(href)
		l.record("link", "loaded", start)
		return nil, nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// LoadMeta injects meta into the head. Meta tags are not deduplicated.
func (l *Loader) LoadMeta(ctx context.Context, meta *html.Node) (*html.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	if _, err := l.doc.Write(l.doc.Head(), dom.OuterHTML(meta)); err != nil {
		l.record("meta", "error", start)
		return nil, fmt.Errorf("inject meta: %w", err)
	}
	l.record("meta", "loaded", start)
	return meta, nil
}

// LoadModule assigns container a fresh id, exposes it to the module source
// as divPanelElementUUID and divPanelContainer, appends the module to the
// container and runs it. Data is not exposed to module source.
func (l *Loader) LoadModule(ctx context.Context, script *html.Node, data *types.PanelData, container *html.Node) (interface{}, error) {
	if container == nil {
		return nil, ErrNoContainer
	}

	start := time.Now()
	id := uuid.NewString()
	l.doc.SetAttr(container, "id", id)

	source := fmt.Sprintf("var divPanelElementUUID = %q;\nvar divPanelContainer = document.getElementById(%q);\n%s;",
		id, id, dom.Text(script))
	module := dom.Clone(script)
	dom.SetText(module, source)
	if err := l.doc.Append(container, module); err != nil {
		l.record("module", "error", start)
		return nil, fmt.Errorf("inject module: %w", err)
	}

	res, err := l.exec.ExecuteNamed(ctx, "module-"+id, source)
	if err != nil {
		l.record("module", "error", start)
		return nil, fmt.Errorf("module %s: %w", id, err)
	}
	l.record("module", "loaded", start)
	return res.Value, nil
}

// LoadDependencies loads imports into the container above elem and meta
// into the head, concurrently. Results follow input order: imports first,
// then meta.
func (l *Loader) LoadDependencies(ctx context.Context, elem *html.Node, imports, meta []*html.Node) ([]interface{}, error) {
	var container *html.Node
	if elem != nil {
		container = l.doc.Ancestor(elem, ContainerDepth)
	}
	if container == nil {
		return nil, ErrNoContainer
	}

	results := make([]interface{}, len(imports)+len(meta))
	g, gctx := errgroup.WithContext(ctx)
	for i, script := range imports {
		i, script := i, script
		g.Go(func() error {
			v, err := l.LoadScript(gctx, script, container)
			results[i] = v
			return err
		})
	}
	for j, m := range meta {
		j, m := j, m
		g.Go(func() error {
			v, err := l.LoadMeta(gctx, m)
			results[len(imports)+j] = v
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// LoadScriptFromString parses one script tag and loads it into the head
func (l *Loader) LoadScriptFromString(ctx context.Context, markup string) (interface{}, error) {
	script, err := dom.ParseElement(strings.TrimSpace(markup))
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return l.LoadScript(ctx, script, nil)
}

// LoadLinkFromString parses one link tag and loads it
func (l *Loader) LoadLinkFromString(ctx context.Context, markup string) (*html.Node, error) {
	link, err := dom.ParseElement(strings.TrimSpace(markup))
	if err != nil {
		return nil, fmt.Errorf("parse link: %w", err)
	}
	return l.LoadLink(ctx, link)
}

func (l *Loader) record(kind, status string, start time.Time) {
	if l.recorder != nil {
		l.recorder.RecordResourceLoad(kind, status, time.Since(start))
	}
}

func attr(node *html.Node, key string) string {
	v, _ := dom.Attr(node, key)
	return strings.TrimSpace(v)
}

func export(v goja.Value) interface{} {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}
