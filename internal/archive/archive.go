// Package archive retires items that have outlived the matching window.
package archive

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/otoshimono/internal/metrics"
)

// ItemArchiver marks stale items as archived and returns their ids.
type ItemArchiver interface {
	ArchiveStaleItems(ctx context.Context, cutoff time.Time) ([]string, error)
}

// IndexDeleter removes items from the search index.
type IndexDeleter interface {
	Delete(ctx context.Context, id string) error
}

// Archiver archives items created more than window ago and drops them from the search index.
type Archiver struct {
	items  ItemArchiver
	index  IndexDeleter
	window time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewArchiver returns an Archiver. index may be nil.
func NewArchiver(items ItemArchiver, index IndexDeleter, window time.Duration, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{
		items:  items,
		index:  index,
		window: window,
		now:    time.Now,
		logger: logger,
	}
}

// Run archives one batch. Index removal failures are logged, not returned.
func (a *Archiver) Run(ctx context.Context) (int, error) {
	cutoff := a.now().Add(-a.window)
	ids, err := a.items.ArchiveStaleItems(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("archive stale items: %w", err)
	}
	if a.index != nil {
		for _, id := range ids {
			if err := a.index.Delete(ctx, id); err != nil {
				a.logger.Warn("failed to remove archived item from index", zap.String("item_id", id), zap.Error(err))
			}
		}
	}
	if len(ids) > 0 {
		metrics.ItemsArchivedTotal.Add(float64(len(ids)))
		a.logger.Info("archived stale items", zap.Int("count", len(ids)), zap.Time("cutoff", cutoff))
	}
	return len(ids), nil
}
