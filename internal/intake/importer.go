package intake

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/otoshimono/internal/fileid"
	"github.com/hyperjump/otoshimono/internal/keyword"
	"github.com/hyperjump/otoshimono/internal/metrics"
	"github.com/hyperjump/otoshimono/internal/models"
	"github.com/hyperjump/otoshimono/internal/storage"
)

// ItemStore is the storage the importer writes through.
type ItemStore interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
}

// Matcher starts a background matching run for a newly stored item.
type Matcher interface {
	Spawn(ctx context.Context, item *models.Item, itemType models.ItemType)
}

// Result counts the outcome of one import.
type Result struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Invalid  int `json:"invalid"`
}

// Importer stores, indexes, and matches the items of intake files.
type Importer struct {
	store    ItemStore
	index    keyword.ItemIndex
	matcher  Matcher
	defaults Defaults
	logger   *zap.Logger
}

// NewImporter creates an Importer. index and matcher may be nil.
func NewImporter(store ItemStore, index keyword.ItemIndex, matcher Matcher, defaults Defaults, logger *zap.Logger) *Importer {
	if defaults.Type == "" {
		defaults.Type = models.ItemTypeFound
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{
		store:    store,
		index:    index,
		matcher:  matcher,
		defaults: defaults,
		logger:   logger,
	}
}

// ImportFile imports every row of the file at path. Rows whose id is already
// stored are skipped, so importing the same file twice adds nothing.
// Invalid rows are logged and counted; only an unreadable file or a storage
// failure returns an error.
func (im *Importer) ImportFile(ctx context.Context, path string) (Result, error) {
	var res Result
	rows, err := ParseFile(path, im.defaults)
	if err != nil {
		return res, err
	}

	for _, row := range rows {
		in := row.Input
		if in.ID == "" {
			in.ID = fileid.RowItemID(path, row.Line)
		}
		if row.Err == nil {
			row.Err = in.Validate()
		}
		if row.Err != nil {
			res.Invalid++
			im.logger.Warn("invalid intake row",
				zap.String("path", path),
				zap.Int("row", row.Line),
				zap.Error(row.Err))
			continue
		}

		if _, err := im.store.GetItem(ctx, in.ID); err == nil {
			res.Skipped++
			continue
		} else if !errors.Is(err, storage.ErrNotFound) {
			return res, fmt.Errorf("check intake row %d: %w", row.Line, err)
		}

		item := in.ToItem()
		if err := im.store.CreateItem(ctx, item); err != nil {
			return res, fmt.Errorf("store intake row %d: %w", row.Line, err)
		}
		res.Imported++
		metrics.ItemsCreatedTotal.WithLabelValues(string(item.Type), "intake").Inc()

		if im.index != nil {
			if err := im.index.Index(ctx, item); err != nil {
				im.logger.Warn("failed to index intake item", zap.String("item_id", item.ID), zap.Error(err))
			}
		}
		if im.matcher != nil {
			im.matcher.Spawn(ctx, item, item.Type)
		}
	}

	metrics.RecordIntake(res.Imported, res.Skipped, res.Invalid)
	im.logger.Info("intake file imported",
		zap.String("path", path),
		zap.Int("imported", res.Imported),
		zap.Int("skipped", res.Skipped),
		zap.Int("invalid", res.Invalid))
	return res, nil
}
