package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ganitha/ganitha/internal/models"
)

type fakeIngestor struct {
	mu       sync.Mutex
	topics   []string
	contents map[string]bool
}

func newFakeIngestor() *fakeIngestor {
	return &fakeIngestor{contents: make(map[string]bool)}
}

func (f *fakeIngestor) RegisterTopic(_ context.Context, topic models.Topic) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic.ID)
	return nil
}

func (f *fakeIngestor) IngestContent(_ context.Context, item *models.ContentItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contents[item.ID] = true
	return nil
}

func (f *fakeIngestor) RemoveContent(_ context.Context, contentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.contents, contentID)
	return nil
}

func (f *fakeIngestor) contentIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.contents))
	for id := range f.contents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

const curriculumJSON = `{
  "topics": [
    {"id": "frac", "name": "Fractions", "min_difficulty": 1, "max_difficulty": 5, "start_difficulty": 2}
  ],
  "contents": [
    {"id": "c1", "topic_id": "frac", "title": "Pie slices", "difficulty_level": 2, "content_type": "visual", "embedding": [1, 0]},
    {"id": "c2", "topic_id": "frac", "title": "Word problems", "difficulty_level": 3, "content_type": "textual", "embedding": [0, 1]}
  ]
}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadFileIngestsTopicsAndContents(t *testing.T) {
	ing := newFakeIngestor()
	loader := NewLoader(ing, nil)
	path := filepath.Join(t.TempDir(), "frac.json")
	writeFile(t, path, curriculumJSON)

	if err := loader.LoadFile(context.Background(), path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(ing.topics) != 1 || ing.topics[0] != "frac" {
		t.Errorf("expected topic frac, got %v", ing.topics)
	}
	if got := ing.contentIDs(); len(got) != 2 || got[0] != "c1" || got[1] != "c2" {
		t.Errorf("expected [c1 c2], got %v", got)
	}
}

func TestLoadFileRetractsStaleItems(t *testing.T) {
	ing := newFakeIngestor()
	loader := NewLoader(ing, nil)
	path := filepath.Join(t.TempDir(), "frac.json")
	writeFile(t, path, curriculumJSON)

	ctx := context.Background()
	if err := loader.LoadFile(ctx, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	// Rewrite the file without c2; the reload must retract it.
	writeFile(t, path, `{"contents": [{"id": "c1", "topic_id": "frac", "title": "Pie slices", "difficulty_level": 2, "content_type": "visual", "embedding": [1, 0]}]}`)
	if err := loader.LoadFile(ctx, path); err != nil {
		t.Fatalf("LoadFile reload: %v", err)
	}
	if got := ing.contentIDs(); len(got) != 1 || got[0] != "c1" {
		t.Errorf("expected [c1] after reload, got %v", got)
	}
}

func TestRemoveFileRetractsEverything(t *testing.T) {
	ing := newFakeIngestor()
	loader := NewLoader(ing, nil)
	path := filepath.Join(t.TempDir(), "frac.json")
	writeFile(t, path, curriculumJSON)

	ctx := context.Background()
	if err := loader.LoadFile(ctx, path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	loader.RemoveFile(ctx, path)
	if got := ing.contentIDs(); len(got) != 0 {
		t.Errorf("expected no contents after removal, got %v", got)
	}
}

func TestLoadFileBadJSON(t *testing.T) {
	loader := NewLoader(newFakeIngestor(), nil)
	path := filepath.Join(t.TempDir(), "bad.json")
	writeFile(t, path, "{not json")

	if err := loader.LoadFile(context.Background(), path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWatcherLoadsDroppedFile(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	loaded := make(map[string]int)
	w := New([]string{dir}, func(path string) {
		mu.Lock()
		loaded[path]++
		mu.Unlock()
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "drop.json")
	writeFile(t, path, curriculumJSON)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := loaded[path]
		mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("dropped file was never loaded")
}

func TestWatcherRestartsAfterStop(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	loaded := make(map[string]int)
	w := New([]string{dir}, func(path string) {
		mu.Lock()
		loaded[path]++
		mu.Unlock()
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "after-restart.json")
	writeFile(t, path, curriculumJSON)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := loaded[path]
		mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("restarted watcher never loaded the dropped file")
}

func TestWatcherIgnoresNonCurriculumFiles(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var calls []string
	w := New([]string{dir}, func(path string) {
		mu.Lock()
		calls = append(calls, path)
		mu.Unlock()
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	writeFile(t, filepath.Join(dir, "notes.txt"), "ignore me")
	time.Sleep(time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 0 {
		t.Errorf("non-JSON file triggered loads: %v", calls)
	}
}

func TestSyncExisting(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "pre.json"), curriculumJSON)

	var mu sync.Mutex
	var calls []string
	w := New([]string{dir}, func(path string) {
		mu.Lock()
		calls = append(calls, path)
		mu.Unlock()
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	w.SyncExisting()
	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || filepath.Base(calls[0]) != "pre.json" {
		t.Errorf("expected pre-existing file to sync, got %v", calls)
	}
}
