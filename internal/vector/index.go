// Package vector provides the content similarity index.
//
// The index is a flat cosine-distance scan over immutable snapshots. Writers
// build a new snapshot and publish it atomically, so concurrent readers never
// observe a partial update and a delete takes effect before the next query
// returns. A flat scan is adequate at classroom scale; the snapshot contract
// is the part that matters.
package vector

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/ganitha/ganitha/internal/models"
	"github.com/ganitha/ganitha/pkg/utils"
)

// Item is one indexed content embedding with the metadata the filter needs.
type Item struct {
	ID         string
	TopicID    string
	Difficulty int
	Type       models.ContentType
	Vector     []float32
}

// Result is a single similarity hit. Distance is cosine distance
// (1 - cosine similarity), so lower is more similar.
type Result struct {
	ID       string
	Distance float64
}

// Filter restricts a query to one topic and an inclusive difficulty band.
// A nil *Filter matches everything.
type Filter struct {
	TopicID       string
	MinDifficulty int
	MaxDifficulty int
}

func (f *Filter) matches(it *Item) bool {
	if f == nil {
		return true
	}
	if f.TopicID != "" && it.TopicID != f.TopicID {
		return false
	}
	return it.Difficulty >= f.MinDifficulty && it.Difficulty <= f.MaxDifficulty
}

type snapshot struct {
	items []Item
}

// Index answers k-nearest-neighbor queries over content embeddings.
type Index struct {
	dimensions int
	snap       atomic.Pointer[snapshot]
	writeMu    sync.Mutex // serializes Build/Upsert/Delete; readers never block
}

// New creates an empty index for vectors of the given dimensionality.
func New(dimensions int) (*Index, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %d", dimensions)
	}
	idx := &Index{dimensions: dimensions}
	idx.snap.Store(&snapshot{})
	return idx, nil
}

// Dimensions returns the fixed vector length of the index.
func (idx *Index) Dimensions() int {
	return idx.dimensions
}

// Build replaces the entire index with the given items in one atomic swap.
// Queries running during the rebuild keep serving the prior snapshot.
func (idx *Index) Build(items []Item) error {
	next := make([]Item, 0, len(items))
	for _, it := range items {
		copied, err := idx.copyItem(it)
		if err != nil {
			return err
		}
		next = append(next, copied)
	}
	sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })

	idx.writeMu.Lock()
	idx.snap.Store(&snapshot{items: next})
	idx.writeMu.Unlock()
	return nil
}

// Upsert inserts or replaces a single item.
func (idx *Index) Upsert(it Item) error {
	copied, err := idx.copyItem(it)
	if err != nil {
		return err
	}

	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	cur := idx.snap.Load().items
	next := make([]Item, 0, len(cur)+1)
	for i := range cur {
		if cur[i].ID != copied.ID {
			next = append(next, cur[i])
		}
	}
	next = append(next, copied)
	sort.Slice(next, func(i, j int) bool { return next[i].ID < next[j].ID })
	idx.snap.Store(&snapshot{items: next})
	return nil
}

// Delete removes an item. Deleting an absent ID is a no-op. The new snapshot
// is published before Delete returns, so no later query sees the item.
func (idx *Index) Delete(contentID string) {
	idx.writeMu.Lock()
	defer idx.writeMu.Unlock()
	cur := idx.snap.Load().items
	next := make([]Item, 0, len(cur))
	for i := range cur {
		if cur[i].ID != contentID {
			next = append(next, cur[i])
		}
	}
	idx.snap.Store(&snapshot{items: next})
}

// Query returns up to k items nearest to the query vector, sorted ascending
// by cosine distance with ties broken by lower content ID. Returns
// models.ErrEmptyIndex when no indexed item matches the filter.
func (idx *Index) Query(query []float32, k int, filter *Filter) ([]Result, error) {
	if len(query) != idx.dimensions {
		return nil, fmt.Errorf("%w: query has %d, index expects %d",
			models.ErrDimensionMismatch, len(query), idx.dimensions)
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	q := make([]float32, idx.dimensions)
	copy(q, query)
	utils.NormalizeL2(q)

	snap := idx.snap.Load()
	results := make([]Result, 0, k)
	for i := range snap.items {
		it := &snap.items[i]
		if !filter.matches(it) {
			continue
		}
		var dot float64
		for j := 0; j < idx.dimensions; j++ {
			dot += float64(q[j] * it.Vector[j])
		}
		results = append(results, Result{ID: it.ID, Distance: 1 - dot})
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("query matched nothing: %w", models.ErrEmptyIndex)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ID < results[j].ID
	})
	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Size returns the number of indexed items.
func (idx *Index) Size() int {
	return len(idx.snap.Load().items)
}

// IDs returns the indexed content IDs, sorted.
func (idx *Index) IDs() []string {
	snap := idx.snap.Load()
	ids := make([]string, 0, len(snap.items))
	for i := range snap.items {
		ids = append(ids, snap.items[i].ID)
	}
	sort.Strings(ids)
	return ids
}

func (idx *Index) copyItem(it Item) (Item, error) {
	if len(it.Vector) != idx.dimensions {
		return Item{}, fmt.Errorf("%w: item %q has %d, index expects %d",
			models.ErrDimensionMismatch, it.ID, len(it.Vector), idx.dimensions)
	}
	vec := make([]float32, idx.dimensions)
	copy(vec, it.Vector)
	utils.NormalizeL2(vec)
	out := it
	out.Vector = vec
	return out, nil
}
