package matching

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/otoshimono/internal/models"
	"github.com/hyperjump/otoshimono/internal/storage"
)

// Retriever fetches active opposite-type items on the same campus.
type Retriever struct {
	finder storage.ItemFinder
	limit  int
	logger *zap.Logger
}

// NewRetriever creates a Retriever that fetches at most limit candidates.
func NewRetriever(finder storage.ItemFinder, limit int, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{finder: finder, limit: limit, logger: logger}
}

// Candidates returns up to limit candidates for item, most recent first.
// itemType is the type of item itself; candidates have the opposite type.
// A failing finder yields an empty slice.
func (r *Retriever) Candidates(ctx context.Context, item *models.Item, itemType models.ItemType) []*models.Item {
	if item == nil || item.CampusID == "" || !itemType.Valid() {
		return nil
	}
	want := itemType.Opposite()
	rows, err := r.finder.FindItems(ctx, storage.ItemFilter{
		Type:            want,
		CampusID:        item.CampusID,
		Status:          models.StatusActive,
		ExcludePostedBy: item.PostedBy,
		Limit:           r.limit,
	})
	if err != nil {
		r.logger.Warn("candidate retrieval failed",
			zap.String("item_id", item.ID),
			zap.String("campus_id", item.CampusID),
			zap.Error(err))
		return nil
	}

	out := make([]*models.Item, 0, len(rows))
	for _, c := range rows {
		if c == nil || c.ID == item.ID {
			continue
		}
		if c.CampusID != item.CampusID || c.Type != want || !c.IsActive() {
			continue
		}
		if item.PostedBy != "" && c.PostedBy == item.PostedBy {
			continue
		}
		out = append(out, c)
		if r.limit > 0 && len(out) == r.limit {
			break
		}
	}
	return out
}
