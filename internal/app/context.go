package app

import (
	"context"
	"sync"

	"github.com/engelphi/metalink-downloader/internal/domain"
	"github.com/engelphi/metalink-downloader/internal/infra/config"
	"github.com/engelphi/metalink-downloader/internal/infra/logger"
	"github.com/engelphi/metalink-downloader/internal/progress"
)

type RunStore interface {
	// This allows the API to read history without importing the store package
	SaveRun(ctx context.Context, run *domain.RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]*domain.RunSummary, error)
	GetRun(ctx context.Context, id string) (*domain.RunSummary, error)
}

// Context holds the core environment and shared resources.
// It acts as the "Single Source of Truth" for the application state.
type Context struct {
	Config *config.Config
	Logger *logger.Logger
	Store  RunStore

	mu      sync.RWMutex
	tracker *progress.Tracker
}

// NewContext initializes the base environment.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	return &Context{
		Config: cfg,
		Logger: log,
	}
}

// SetTracker publishes the tracker of the currently active run.
func (a *Context) SetTracker(t *progress.Tracker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tracker = t
}

// Tracker returns the active run's tracker, or nil when no run is live.
func (a *Context) Tracker() *progress.Tracker {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tracker
}
