// Package keyword provides full-text search over the content catalog using
// Bleve. It indexes titles and descriptions so teachers can locate exercises
// by word rather than by ID.
package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/ganitha/ganitha/internal/models"
)

// Hit is a single catalog search result.
type Hit struct {
	ContentID string  `json:"content_id"`
	Score     float64 `json:"score"`
}

// Index wraps a Bleve index over content metadata.
type Index struct {
	index bleve.Index
}

// catalogDoc is the shape handed to Bleve. Embeddings never enter the index.
type catalogDoc struct {
	TopicID     string `json:"topic_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so "fraction"
	// matches exactly; the English analyzer stems "fractions" -> "fraction"
	// but also mangles math vocabulary like "axes" -> "ax".
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("description", textFieldMapping)

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("topic_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("type", keywordFieldMapping)

	im.AddDocumentMapping("content", docMapping)
	im.DefaultType = "content"
	im.DefaultMapping = docMapping
	return im
}

// NewIndex creates or opens a Bleve index at path. An existing index is
// reused; remove the directory to force a rebuild after a mapping change.
func NewIndex(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		idx, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open catalog index: %w", openErr)
		}
		return &Index{index: idx}, nil
	}
	idx, err := bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}
	return &Index{index: idx}, nil
}

// NewMemIndex creates an in-memory index that is lost on close.
func NewMemIndex() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog index: %w", err)
	}
	return &Index{index: idx}, nil
}

// Index adds or replaces a content item in the catalog.
func (i *Index) Index(ctx context.Context, item *models.ContentItem) error {
	return i.index.Index(item.ID, catalogDoc{
		TopicID:     item.TopicID,
		Title:       item.Title,
		Description: item.Description,
		Type:        string(item.Type),
	})
}

// Delete removes a content item from the catalog.
func (i *Index) Delete(ctx context.Context, contentID string) error {
	return i.index.Delete(contentID)
}

// Search runs a match query over title and description and returns up to
// limit hits, best first.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := i.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	out := make([]Hit, len(results.Hits))
	for n, hit := range results.Hits {
		out[n] = Hit{ContentID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the number of indexed content items.
func (i *Index) DocCount() (uint64, error) {
	return i.index.DocCount()
}

// Close releases the index.
func (i *Index) Close() error {
	return i.index.Close()
}
