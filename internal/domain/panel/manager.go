package panel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/divpanel/internal/domain/loader"
	"github.com/GriffinCanCode/divpanel/internal/domain/transform"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/divpanel/internal/infrastructure/persistence"
	"github.com/GriffinCanCode/divpanel/internal/sandbox"
	"github.com/GriffinCanCode/divpanel/internal/shared/id"
	"github.com/GriffinCanCode/divpanel/internal/shared/types"
	"github.com/GriffinCanCode/divpanel/internal/shared/utils"
)

// Manager orchestrates panel sessions
type Manager struct {
	mu     sync.RWMutex
	panels map[string]*Panel // Protected by mu

	config   Config
	pool     *sandbox.Pool
	fetcher  loader.Fetcher
	pipeline *transform.Pipeline
	store    persistence.Store
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewManager creates a panel manager. A nil store keeps options in memory.
func NewManager(config Config, pool *sandbox.Pool, fetcher loader.Fetcher, store persistence.Store, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = persistence.NewMemory()
	}
	return &Manager{
		panels:   make(map[string]*Panel),
		config:   config,
		pool:     pool,
		fetcher:  fetcher,
		pipeline: transform.NewPipeline(transform.WithLogger(logger)),
		store:    store,
		logger:   logger,
	}
}

// WithMetrics adds metrics tracking to the manager
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Pipeline returns the shared transform pipeline
func (m *Manager) Pipeline() *transform.Pipeline { return m.pipeline }

// Create opens a new panel session and commits its initial content
func (m *Manager) Create(ctx context.Context, req types.CreatePanelRequest) (*Panel, error) {
	if err := utils.ValidateID(req.ID, "id", false); err != nil {
		return nil, err
	}
	if err := utils.ValidateTitle(req.Title); err != nil {
		return nil, err
	}
	mode := req.Mode.OrDefault()
	if !mode.Valid() {
		return nil, ErrMode
	}

	panelID := req.ID
	if panelID == "" {
		panelID = id.NewPanelID().String()
	}
	title := req.Title
	if title == "" {
		title = "Untitled Panel"
	}

	m.mu.RLock()
	_, exists := m.panels[panelID]
	m.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrExists, panelID)
	}

	now := time.Now()
	p, err := m.open(ctx, persistence.Record{
		ID:        panelID,
		Title:     title,
		Options:   types.PanelOptions{Mode: mode},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	// A parse error still leaves a usable panel showing the error
	if _, err := p.Save(ctx, req.Content, mode); err != nil && !transform.IsParseError(err) {
		_ = m.Delete(ctx, panelID)
		return nil, err
	}

	m.logger.Info("panel created", zap.String("panel_id", panelID), zap.String("mode", string(mode)))
	return p, nil
}

// Get retrieves a panel by ID
func (m *Manager) Get(panelID string) (*Panel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.panels[panelID]
	return p, ok
}

// Lookup is Get returning ErrNotFound
func (m *Manager) Lookup(panelID string) (*Panel, error) {
	p, ok := m.Get(panelID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, panelID)
	}
	return p, nil
}

// List returns all panels ordered by creation time
func (m *Manager) List() []types.PanelInfo {
	m.mu.RLock()
	infos := make([]types.PanelInfo, 0, len(m.panels))
	for _, p := range m.panels {
		infos = append(infos, p.Info())
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].CreatedAt.Before(infos[j].CreatedAt)
	})
	return infos
}

// Count returns the number of open panels
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.panels)
}

// Close tears down the session but keeps its persisted options
func (m *Manager) Close(ctx context.Context, panelID string) error {
	m.mu.Lock()
	p, ok := m.panels[panelID]
	if ok {
		delete(m.panels, panelID)
	}
	count := len(m.panels)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, panelID)
	}
	if m.metrics != nil {
		m.metrics.SetPanelsActive(count)
	}
	return m.release(ctx, p)
}

// Delete tears down the session and removes its persisted options
func (m *Manager) Delete(ctx context.Context, panelID string) error {
	closeErr := m.Close(ctx, panelID)
	storeErr := m.store.Delete(ctx, panelID)
	if errors.Is(closeErr, ErrNotFound) && errors.Is(storeErr, persistence.ErrNotFound) {
		return closeErr
	}
	if closeErr != nil && !errors.Is(closeErr, ErrNotFound) {
		return closeErr
	}
	if storeErr != nil && !errors.Is(storeErr, persistence.ErrNotFound) {
		return fmt.Errorf("delete options: %w", storeErr)
	}
	return nil
}

// Restore opens a session for every persisted panel not already open.
// Component options without transform output are transformed again.
// Sessions render lazily on their first operation.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	records, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list panels: %w", err)
	}

	restored := 0
	for _, rec := range records {
		if _, ok := m.Get(rec.ID); ok {
			continue
		}
		rec.Options = m.derive(rec.Options)
		if _, err := m.open(ctx, rec); err != nil {
			m.logger.Warn("panel restore failed", zap.String("panel_id", rec.ID), zap.Error(err))
			continue
		}
		restored++
	}

	m.logger.Info("panels restored", zap.Int("count", restored))
	return restored, nil
}

// Shutdown closes every session and the store
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	panels := m.panels
	m.panels = make(map[string]*Panel)
	m.mu.Unlock()

	var errs []error
	for _, p := range panels {
		if err := m.release(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	if m.metrics != nil {
		m.metrics.SetPanelsActive(0)
	}
	if err := m.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// open acquires a runtime and registers a session for rec
func (m *Manager) open(ctx context.Context, rec persistence.Record) (*Panel, error) {
	rt, err := m.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire runtime: %w", err)
	}

	p, err := newPanel(rec, session{
		config:   m.config,
		runtime:  rt,
		fetcher:  m.fetcher,
		pipeline: m.pipeline,
		store:    m.store,
		metrics:  m.metrics,
		logger:   m.logger,
	})
	if err != nil {
		_ = m.pool.Release(rt)
		return nil, err
	}

	m.mu.Lock()
	if _, exists := m.panels[rec.ID]; exists {
		m.mu.Unlock()
		_ = m.release(ctx, p)
		return nil, fmt.Errorf("%w: %s", ErrExists, rec.ID)
	}
	m.panels[rec.ID] = p
	count := len(m.panels)
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IncPanelsTotal()
		m.metrics.SetPanelsActive(count)
	}
	return p, nil
}

func (m *Manager) release(ctx context.Context, p *Panel) error {
	err := p.close(ctx)
	if relErr := m.pool.Release(p.runtime); relErr != nil && err == nil {
		err = relErr
	}
	return err
}

// derive fills missing transform output for component options
func (m *Manager) derive(opts types.PanelOptions) types.PanelOptions {
	opts.Mode = opts.Mode.OrDefault()
	if opts.Mode != types.ModeComponent || opts.Content == "" || opts.Transformed != "" {
		return opts
	}

	res, err := m.pipeline.Transform(opts.Content)
	if err != nil {
		opts.ExportedFn = ""
		opts.Error = errorMarkup(err)
		return opts
	}
	opts.Transformed = res.TransformedCode
	opts.ExportedFn = res.ExportedSymbolName
	opts.Error = ""
	return opts
}
