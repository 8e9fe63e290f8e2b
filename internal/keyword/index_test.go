package keyword

import (
	"context"
	"testing"

	"github.com/ganitha/ganitha/internal/models"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewMemIndex()
	if err != nil {
		t.Fatalf("NewMemIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestSearchMatchesTitleAndDescription(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	items := []*models.ContentItem{
		{ID: "c1", TopicID: "fractions", Title: "Comparing fractions", Description: "Order fractions on a number line", Type: models.ContentTypeVisual},
		{ID: "c2", TopicID: "fractions", Title: "Equivalent values", Description: "Find equivalent fractions with tiles", Type: models.ContentTypeInteractive},
		{ID: "c3", TopicID: "geometry", Title: "Area of rectangles", Description: "Count unit squares", Type: models.ContentTypeVisual},
	}
	for _, item := range items {
		if err := idx.Index(ctx, item); err != nil {
			t.Fatalf("Index(%s): %v", item.ID, err)
		}
	}

	hits, err := idx.Search(ctx, "fractions", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	for _, h := range hits {
		if h.ContentID == "c3" {
			t.Errorf("geometry item matched a fractions query")
		}
		if h.Score <= 0 {
			t.Errorf("hit %s has non-positive score %f", h.ContentID, h.Score)
		}
	}

	hits, err = idx.Search(ctx, "squares", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ContentID != "c3" {
		t.Fatalf("description search: expected [c3], got %v", hits)
	}
}

func TestSearchRespectsLimit(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		item := &models.ContentItem{ID: id, TopicID: "t", Title: "counting practice", Type: models.ContentTypeTextual}
		if err := idx.Index(ctx, item); err != nil {
			t.Fatalf("Index(%s): %v", id, err)
		}
	}

	hits, err := idx.Search(ctx, "counting", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits with limit 2, got %d", len(hits))
	}
}

func TestDeleteRemovesFromResults(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	item := &models.ContentItem{ID: "gone", TopicID: "t", Title: "subtraction drills", Type: models.ContentTypeTextual}
	if err := idx.Index(ctx, item); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	hits, err := idx.Search(ctx, "subtraction", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits after delete, got %v", hits)
	}

	n, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty index, got %d docs", n)
	}
}
