package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/otoshimono/internal/models"
)

// ItemIndex is the full-text index used to browse items on a campus.
type ItemIndex interface {
	Index(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, campusID, query string, opts *SearchOptions) ([]*SearchHit, error)
	DocCount() (uint64, error)
	Close() error
}

// SearchOptions optional parameters for item search. Nil means use defaults.
type SearchOptions struct {
	// Limit caps the number of hits (default 20).
	Limit int
	// Type restricts hits to lost or found items when set.
	Type models.ItemType
	// Fuzzy tolerates one-edit typos in query terms.
	Fuzzy bool
}

// SearchHit is a single item search hit.
type SearchHit struct {
	ID    string
	Score float64
}

// BleveIndex implements ItemIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If the path already exists, the existing index is opened and reused.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, newItemMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// NewMemoryBleveIndex creates an in-memory index (tests, one-shot CLI runs).
func NewMemoryBleveIndex() (*BleveIndex, error) {
	index, err := bleve.NewMemOnly(newItemMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func newItemMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	for _, field := range []string{"title", "description", "location", "category", "tags"} {
		docMapping.AddFieldMappingsAt(field, text)
	}
	exact := bleve.NewKeywordFieldMapping()
	exact.IncludeInAll = false
	docMapping.AddFieldMappingsAt("campus_id", exact)
	docMapping.AddFieldMappingsAt("type", exact)

	im.AddDocumentMapping("item", docMapping)
	im.DefaultType = "item"
	im.DefaultMapping = docMapping
	return im
}

// Index indexes the searchable fields of an item under its id.
func (b *BleveIndex) Index(ctx context.Context, item *models.Item) error {
	doc := map[string]interface{}{
		"title":       item.Title,
		"description": item.Description,
		"location":    item.Location,
		"category":    item.Category,
		"tags":        item.Tags,
		"campus_id":   item.CampusID,
		"type":        string(item.Type),
	}
	return b.index.Index(item.ID, doc)
}

// Delete removes an item from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Search runs a match query over the text fields restricted to one campus.
func (b *BleveIndex) Search(ctx context.Context, campusID, query string, opts *SearchOptions) ([]*SearchHit, error) {
	limit := 20
	var itemType models.ItemType
	fuzzy := false
	if opts != nil {
		if opts.Limit > 0 {
			limit = opts.Limit
		}
		itemType = opts.Type
		fuzzy = opts.Fuzzy
	}

	text := bleve.NewMatchQuery(query)
	if fuzzy {
		text.SetFuzziness(1)
	}
	campus := bleve.NewTermQuery(campusID)
	campus.SetField("campus_id")
	clauses := []blevequery.Query{text, campus}
	if itemType != "" {
		tq := bleve.NewTermQuery(string(itemType))
		tq.SetField("type")
		clauses = append(clauses, tq)
	}

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(clauses...))
	req.Size = limit
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*SearchHit, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = &SearchHit{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the number of indexed items.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
