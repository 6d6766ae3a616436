package panel

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/divpanel/internal/dom"
	"github.com/GriffinCanCode/divpanel/internal/domain/fragment"
	"github.com/GriffinCanCode/divpanel/internal/domain/loader"
	"github.com/GriffinCanCode/divpanel/internal/domain/transform"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/persistence"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/divpanel/internal/sandbox"
	"github.com/GriffinCanCode/divpanel/internal/shared/types"
)

// Config holds per-session settings
type Config struct {
	Width             int
	Height            int
	EvaluateForResult bool
	Sanitize          bool
}

// DefaultConfig returns the default session settings
func DefaultConfig() Config {
	return Config{Width: 800, Height: 600}
}

// Panel is one div panel session
type Panel struct {
	id        string
	title     string
	createdAt time.Time
	updatedAt time.Time

	mu      sync.Mutex
	options types.PanelOptions
	state   types.PanelState
	data    *types.PanelData
	bundle  *fragment.Bundle
	mount   *html.Node
	last    *types.RenderResult
	closed  bool

	config     Config
	doc        *dom.Document
	root       *html.Node
	runtime    *sandbox.Runtime
	loader     *loader.Loader
	classifier *fragment.Classifier
	pipeline   *transform.Pipeline
	store      persistence.Store
	metrics    *monitoring.Metrics
	logger     *zap.Logger

	// Background body script loads
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup

	subMu       sync.Mutex
	subscribers map[int]chan types.RenderResult
	nextSub     int
}

// session bundles what a Panel borrows from its Manager
type session struct {
	config   Config
	runtime  *sandbox.Runtime
	fetcher  loader.Fetcher
	pipeline *transform.Pipeline
	store    persistence.Store
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

func newPanel(rec persistence.Record, s session) (*Panel, error) {
	logger := s.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("panel_id", rec.ID))

	doc := dom.New()
	if err := s.runtime.AttachDocument(doc); err != nil {
		return nil, err
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	p := &Panel{
		id:          rec.ID,
		title:       rec.Title,
		createdAt:   rec.CreatedAt,
		updatedAt:   rec.UpdatedAt,
		options:     rec.Options,
		state:       types.PanelState{Command: types.CommandRender},
		config:      s.config,
		doc:         doc,
		root:        doc.MountPanel(rec.ID),
		runtime:     s.runtime,
		pipeline:    s.pipeline,
		store:       s.store,
		metrics:     s.metrics,
		logger:      logger,
		bgCtx:       bgCtx,
		bgCancel:    cancel,
		subscribers: make(map[int]chan types.RenderResult),
	}
	p.options.Mode = p.options.Mode.OrDefault()

	loaderOpts := []loader.Option{
		loader.WithLogger(logger),
		loader.WithEvaluateForResult(s.config.EvaluateForResult),
	}
	if s.metrics != nil {
		loaderOpts = append(loaderOpts, loader.WithRecorder(s.metrics))
	}
	p.loader = loader.New(doc, s.runtime, s.fetcher, loaderOpts...)

	classifierOpts := []fragment.Option{
		fragment.WithLogger(logger),
		fragment.WithBodyScriptInjector(p.injectBodyScript),
	}
	if s.config.Sanitize {
		classifierOpts = append(classifierOpts, fragment.WithSanitizer(fragment.DefaultSanitizer()))
	}
	p.classifier = fragment.New(doc, classifierOpts...)

	return p, nil
}

// ID returns the panel id
func (p *Panel) ID() string { return p.id }

// Options returns a copy of the committed options
func (p *Panel) Options() types.PanelOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.options
}

// State returns the lifecycle state
func (p *Panel) State() types.PanelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Info returns the listing view
func (p *Panel) Info() types.PanelInfo {
	p.mu.Lock()
	defer p.mu.Unlock()
	return types.PanelInfo{
		ID:        p.id,
		Title:     p.title,
		Mode:      p.options.Mode,
		State:     p.state,
		HasError:  p.options.Error != "",
		CreatedAt: p.createdAt,
		UpdatedAt: p.updatedAt,
	}
}

// Document renders the whole live document
func (p *Panel) Document() string {
	return p.doc.Render()
}

// Last returns the most recent render, or nil before the first one
func (p *Panel) Last() *types.RenderResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return nil
	}
	last := *p.last
	return &last
}

// Loader exposes the session's resource loader
func (p *Panel) Loader() *loader.Loader { return p.loader }

// Save commits content and re-renders with the current state. A failed
// component transform clears the derived fields, stores error markup and
// returns the *transform.ParseError.
func (p *Panel) Save(ctx context.Context, content string, mode types.Mode) (*types.RenderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commit(ctx, "save", content, mode)
}

// Run sets the command to render, then commits content
func (p *Panel) Run(ctx context.Context, content string, mode types.Mode) (*types.RenderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Command = types.CommandRender
	return p.commit(ctx, "run", content, mode)
}

// Clear sets the command to clear, then commits content. Nothing executes
// until the next Run.
func (p *Panel) Clear(ctx context.Context, content string, mode types.Mode) (*types.RenderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Command = types.CommandClear
	return p.commit(ctx, "clear", content, mode)
}

// Render re-renders the committed options
func (p *Panel) Render(ctx context.Context) (*types.RenderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}
	timer := monitoring.NewTimer(p.metrics, "render")
	res, err := p.render(ctx)
	timer.StopErr(err)
	return res, err
}

// EnterEditMode turns edit mode on, re-mounts and runs the enter hooks
// against the mounted element
func (p *Panel) EnterEditMode(ctx context.Context) (*types.RenderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	timer := monitoring.NewTimer(p.metrics, "enter_edit")
	p.state.EditMode = true
	res, err := p.render(ctx)
	if err == nil {
		err = p.runHooks(ctx, sandbox.HookEnterEditMode)
		res = p.snapshot(res)
	}
	timer.StopErr(err)
	return res, err
}

// ExitEditMode runs the exit hooks against the mounted element, turns edit
// mode off and re-mounts
func (p *Panel) ExitEditMode(ctx context.Context) (*types.RenderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	timer := monitoring.NewTimer(p.metrics, "exit_edit")
	if err := p.runHooks(ctx, sandbox.HookExitEditMode); err != nil {
		timer.StopErr(err)
		return nil, err
	}
	p.state.EditMode = false
	res, err := p.render(ctx)
	timer.StopErr(err)
	return res, err
}

// UpdateData stores data and pushes it to the mounted content. HTML content
// gets its data hooks run in place; component content re-renders.
func (p *Panel) UpdateData(ctx context.Context, data *types.PanelData) (*types.RenderResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClosed
	}

	timer := monitoring.NewTimer(p.metrics, "data")
	p.data = data

	var (
		res *types.RenderResult
		err error
	)
	switch {
	case p.state.Command == types.CommandClear:
		res = p.snapshot(&types.RenderResult{Mount: types.MountPlaceholder})
	case p.options.Mode == types.ModeHTML && p.mount != nil && p.bundle != nil:
		start := time.Now()
		err = p.runHooks(ctx, sandbox.HookDataUpdate)
		res = p.snapshot(&types.RenderResult{Mount: p.last.Mount, Duration: time.Since(start)})
	default:
		res, err = p.render(ctx)
	}
	timer.StopErr(err)
	return res, err
}

// Subscribe returns a channel receiving every render. Slow subscribers
// miss renders rather than block the panel.
func (p *Panel) Subscribe() (<-chan types.RenderResult, func()) {
	p.subMu.Lock()
	defer p.subMu.Unlock()

	ch := make(chan types.RenderResult, 8)
	key := p.nextSub
	p.nextSub++
	p.subscribers[key] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subMu.Lock()
			defer p.subMu.Unlock()
			if c, ok := p.subscribers[key]; ok {
				delete(p.subscribers, key)
				close(c)
			}
		})
	}
}

// Wait blocks until background body script loads finish
func (p *Panel) Wait() {
	p.bg.Wait()
}

// close tears the session down. The runtime is returned by the Manager.
func (p *Panel) close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.bgCancel()
	p.mu.Unlock()

	p.bg.Wait()

	p.subMu.Lock()
	for key, ch := range p.subscribers {
		delete(p.subscribers, key)
		close(ch)
	}
	p.subMu.Unlock()

	if err := p.runtime.Cleanup(ctx); err != nil && !errors.Is(err, sandbox.ErrClosed) {
		return err
	}
	return nil
}

// commit stores content and its derived fields, persists, and renders.
// Caller holds p.mu.
func (p *Panel) commit(ctx context.Context, op, content string, mode types.Mode) (*types.RenderResult, error) {
	if p.closed {
		return nil, ErrClosed
	}
	if mode == "" {
		mode = p.options.Mode
	}
	mode = mode.OrDefault()
	if !mode.Valid() {
		return nil, ErrMode
	}

	timer := monitoring.NewTimer(p.metrics, op)
	opts := types.PanelOptions{Content: content, Mode: mode}

	var parseErr error
	if mode == types.ModeComponent && content != "" {
		_, span := tracing.Start(ctx, "panel.transform")
		span.Annotate("panel_id", p.id)
		res, err := p.pipeline.Transform(content)
		span.End(err)
		if err != nil {
			if !transform.IsParseError(err) {
				timer.StopErr(err)
				return nil, err
			}
			parseErr = err
			opts.Error = errorMarkup(err)
			if p.metrics != nil {
				p.metrics.IncParseErrors()
			}
			p.logger.Info("component transform failed", zap.Error(err))
		} else {
			opts.Transformed = res.TransformedCode
			opts.ExportedFn = res.ExportedSymbolName
		}
	}

	p.options = opts
	p.updatedAt = time.Now()
	if p.metrics != nil {
		status := "success"
		if parseErr != nil {
			status = "parse_error"
		}
		p.metrics.RecordCommit(status)
	}

	if err := p.persist(ctx); err != nil {
		timer.StopErr(err)
		return nil, err
	}

	res, err := p.render(ctx)
	if parseErr != nil {
		err = parseErr
	}
	timer.StopErr(err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// persist saves the options. Caller holds p.mu.
func (p *Panel) persist(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	return p.store.Save(ctx, persistence.Record{
		ID:        p.id,
		Title:     p.title,
		Options:   p.options,
		CreatedAt: p.createdAt,
		UpdatedAt: p.updatedAt,
	})
}

// injectBodyScript loads a body script with src on a background goroutine
func (p *Panel) injectBodyScript(script *html.Node) {
	p.bg.Add(1)
	go func() {
		defer p.bg.Done()
		if _, err := p.loader.LoadScript(p.bgCtx, script, p.doc.Body()); err != nil {
			p.logger.Warn("body script load failed",
				zap.String("src", attrOf(script, "src")),
				zap.Error(err))
		}
	}()
}

func (p *Panel) publish(res types.RenderResult) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- res:
		default:
		}
	}
}
