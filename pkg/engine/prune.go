package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rmax-ai/bookgraph/pkg/cache"
)

// DefaultPruneInterval is how often the prune worker runs when no interval
// is configured.
const DefaultPruneInterval = time.Hour

// RetentionConfig controls pruning of the persistent cache backend.
type RetentionConfig struct {
	// Retention is the maximum age of a cache entry. Zero disables pruning.
	Retention time.Duration
	// CheckInterval is the delay between prune passes.
	CheckInterval time.Duration
}

// PruneWorker periodically deletes persistent cache entries that have not
// been written for longer than the retention period.
type PruneWorker struct {
	pruner cache.Pruner
	logger *zap.Logger
	now    func() time.Time

	mu     sync.RWMutex
	config RetentionConfig
}

// NewPruneWorker creates a worker for the given backend.
func NewPruneWorker(p cache.Pruner, cfg RetentionConfig, logger *zap.Logger) *PruneWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PruneWorker{
		pruner: p,
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
}

// UpdateConfig replaces the retention settings. It takes effect on the next
// pass.
func (w *PruneWorker) UpdateConfig(cfg RetentionConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config = cfg
}

// Run prunes once immediately and then on every interval until ctx is done.
// It returns at once when pruning is disabled.
func (w *PruneWorker) Run(ctx context.Context) {
	w.mu.RLock()
	cfg := w.config
	w.mu.RUnlock()

	if w.pruner == nil || cfg.Retention <= 0 {
		w.logger.Info("cache_pruning_disabled")
		return
	}
	interval := cfg.CheckInterval
	if interval <= 0 {
		interval = DefaultPruneInterval
	}

	w.logger.Info("prune_worker_started", zap.Duration("interval", interval), zap.Duration("retention", cfg.Retention))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("prune_worker_stopped")
			return
		case <-ticker.C:
			w.Prune(ctx)
		}
	}
}

// Prune runs a single pass and returns the number of entries removed.
func (w *PruneWorker) Prune(ctx context.Context) int64 {
	w.mu.RLock()
	cfg := w.config
	w.mu.RUnlock()

	if w.pruner == nil || cfg.Retention <= 0 {
		return 0
	}
	cutoff := w.now().Add(-cfg.Retention)
	deleted, err := w.pruner.Prune(ctx, cutoff)
	if err != nil {
		cache.Operations.WithLabelValues("prune", "error").Inc()
		w.logger.Warn("cache_prune_failed", zap.Error(err))
		return 0
	}
	cache.Operations.WithLabelValues("prune", "ok").Inc()
	if deleted > 0 {
		w.logger.Info("cache_pruned", zap.Int64("deleted", deleted), zap.Time("cutoff", cutoff))
	}
	return deleted
}
