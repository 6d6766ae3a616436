package provisioning

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/divpanel/internal/domain/panel"
	"github.com/GriffinCanCode/divpanel/internal/domain/transform"
)

// Result summarizes a seeding pass
type Result struct {
	Loaded  int `json:"loaded"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Seeder creates panels from definition files
type Seeder struct {
	manager *panel.Manager
	dir     string
	logger  *zap.Logger
}

// NewSeeder creates a seeder for dir
func NewSeeder(manager *panel.Manager, dir string, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{
		manager: manager,
		dir:     dir,
		logger:  logger,
	}
}

// Seed creates a panel for every definition whose id is not already open.
// A broken definition is logged and counted, never fatal.
func (s *Seeder) Seed(ctx context.Context) (Result, error) {
	var res Result
	if s.dir == "" {
		return res, nil
	}

	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		s.logger.Warn("provisioning directory not found", zap.String("dir", s.dir))
		return res, nil
	}

	paths, err := s.Discover(ctx)
	if err != nil {
		return res, err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		def, err := ReadDefinition(path)
		if err != nil {
			s.logger.Warn("invalid panel definition", zap.String("file", path), zap.Error(err))
			res.Failed++
			continue
		}

		if _, ok := s.manager.Get(def.ID); ok {
			res.Skipped++
			continue
		}

		// A parse error leaves a created panel that shows it
		if _, err := s.manager.Create(ctx, def.Request()); err != nil && !transform.IsParseError(err) {
			s.logger.Warn("panel provisioning failed", zap.String("file", path), zap.String("panel_id", def.ID), zap.Error(err))
			res.Failed++
			continue
		}
		s.logger.Debug("panel provisioned", zap.String("file", path), zap.String("panel_id", def.ID))
		res.Loaded++
	}

	s.logger.Info("provisioning complete",
		zap.Int("loaded", res.Loaded),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}

// Discover returns the sorted paths of every definition file under the
// provisioning directory
func (s *Seeder) Discover(ctx context.Context) ([]string, error) {
	var (
		mu    sync.Mutex
		paths []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, s.dir, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			return nil
		}
		if ok, _ := doublestar.Match(Pattern, filepath.ToSlash(rel)); !ok {
			return nil
		}

		mu.Lock()
		paths = append(paths, p)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", s.dir, err)
	}

	sort.Strings(paths)
	return paths, nil
}
