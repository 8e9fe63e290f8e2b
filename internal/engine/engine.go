// Package engine composes the embedding store, similarity index, mastery
// tracker, and style classifier into the adaptive learning engine.
//
// An answer submission updates the mastery tracker and feeds the style
// classifier; a recommendation request is a pure read over the current state
// of all components. Recommendation calls never block on other students'
// in-flight updates.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ganitha/ganitha/internal/config"
	"github.com/ganitha/ganitha/internal/embedstore"
	"github.com/ganitha/ganitha/internal/keyword"
	"github.com/ganitha/ganitha/internal/mastery"
	"github.com/ganitha/ganitha/internal/models"
	"github.com/ganitha/ganitha/internal/storage"
	"github.com/ganitha/ganitha/internal/style"
	"github.com/ganitha/ganitha/internal/vector"
)

// Engine is the adaptive learning engine core. All operations are safe for
// concurrent use.
type Engine struct {
	cfg        *config.Config
	store      *embedstore.Store
	index      *vector.Index
	tracker    *mastery.Tracker
	classifier *style.Classifier
	storage    storage.Storage // optional; nil runs the engine purely in memory
	catalog    *keyword.Index  // optional; nil disables catalog search
	logger     *zap.Logger

	mu       sync.RWMutex
	contents map[string]*models.ContentItem // metadata only; vectors live in the store
	topics   map[string]models.Topic

	historyMu sync.Mutex
	recent    map[string][]string      // (student, topic) -> recent correct content IDs, newest last
	windows   map[string][]style.Event // per-student rolling classifier window
}

// New creates an engine. store and catalog may be nil; the engine then runs
// without persistence or catalog search.
func New(cfg *config.Config, st storage.Storage, catalog *keyword.Index, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	vecStore, err := embedstore.New(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, err
	}
	idx, err := vector.New(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:        cfg,
		store:      vecStore,
		index:      idx,
		tracker:    mastery.NewTracker(cfg.Mastery),
		classifier: style.NewClassifier(cfg.Style),
		storage:    st,
		catalog:    catalog,
		logger:     logger,
		contents:   make(map[string]*models.ContentItem),
		topics:     make(map[string]models.Topic),
		recent:     make(map[string][]string),
		windows:    make(map[string][]style.Event),
	}, nil
}

// RegisterTopic stores a topic's difficulty range. Existing topics are replaced.
func (e *Engine) RegisterTopic(ctx context.Context, topic models.Topic) error {
	if topic.ID == "" {
		return fmt.Errorf("topic id is required: %w", models.ErrInvalidInput)
	}
	if topic.MinDifficulty > topic.MaxDifficulty ||
		topic.StartDifficulty < topic.MinDifficulty || topic.StartDifficulty > topic.MaxDifficulty {
		return fmt.Errorf("topic %q has inconsistent difficulty range [%d,%d] start %d: %w",
			topic.ID, topic.MinDifficulty, topic.MaxDifficulty, topic.StartDifficulty, models.ErrInvalidInput)
	}
	if e.storage != nil {
		if err := e.storage.SaveTopic(ctx, &topic); err != nil {
			return fmt.Errorf("persist topic: %w", err)
		}
	}
	e.mu.Lock()
	e.topics[topic.ID] = topic
	e.mu.Unlock()
	return nil
}

// Topics returns all registered topics.
func (e *Engine) Topics() []models.Topic {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Topic, 0, len(e.topics))
	for _, t := range e.topics {
		out = append(out, t)
	}
	return out
}

// topicRange returns the mastery range for a topic, falling back to the
// configured defaults for unregistered topics.
func (e *Engine) topicRange(topicID string) mastery.Range {
	e.mu.RLock()
	t, ok := e.topics[topicID]
	e.mu.RUnlock()
	if !ok {
		return mastery.Range{
			Min:   e.cfg.Topic.DefaultMin,
			Max:   e.cfg.Topic.DefaultMax,
			Start: e.cfg.Topic.DefaultStart,
		}
	}
	return mastery.Range{Min: t.MinDifficulty, Max: t.MaxDifficulty, Start: t.StartDifficulty}
}

// IngestContent publishes a content item into the embedding store, the
// similarity index, persistence, and the catalog. A dimension mismatch
// rejects the item and leaves every component unchanged.
func (e *Engine) IngestContent(ctx context.Context, item *models.ContentItem) error {
	if item.ID == "" || item.TopicID == "" {
		return fmt.Errorf("content id and topic_id are required: %w", models.ErrInvalidInput)
	}
	if !item.Type.Valid() {
		return fmt.Errorf("unknown content type %q: %w", item.Type, models.ErrInvalidInput)
	}

	// The store's dimension check runs first so a bad embedding touches nothing.
	if err := e.store.Put(item.ID, item.Embedding); err != nil {
		return err
	}
	if err := e.index.Upsert(vector.Item{
		ID:         item.ID,
		TopicID:    item.TopicID,
		Difficulty: item.Difficulty,
		Type:       item.Type,
		Vector:     item.Embedding,
	}); err != nil {
		e.store.Remove(item.ID)
		return err
	}

	meta := *item
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	e.mu.Lock()
	e.contents[item.ID] = &meta
	e.mu.Unlock()

	if e.storage != nil {
		if err := e.storage.SaveContent(ctx, &meta); err != nil {
			return fmt.Errorf("persist content: %w", err)
		}
	}
	if e.catalog != nil {
		if err := e.catalog.Index(ctx, &meta); err != nil {
			return fmt.Errorf("catalog index: %w", err)
		}
	}
	e.logger.Debug("content ingested",
		zap.String("content_id", item.ID),
		zap.String("topic_id", item.TopicID),
		zap.Int("difficulty", item.Difficulty))
	return nil
}

// RemoveContent retracts a content item. The index delete happens first so no
// query can return the item once RemoveContent has begun tearing it down.
func (e *Engine) RemoveContent(ctx context.Context, contentID string) error {
	e.index.Delete(contentID)
	e.store.Remove(contentID)
	e.mu.Lock()
	delete(e.contents, contentID)
	e.mu.Unlock()

	if e.storage != nil {
		if err := e.storage.DeleteContent(ctx, contentID); err != nil {
			return fmt.Errorf("delete content: %w", err)
		}
	}
	if e.catalog != nil {
		if err := e.catalog.Delete(ctx, contentID); err != nil {
			return fmt.Errorf("catalog delete: %w", err)
		}
	}
	return nil
}

// Content returns content metadata by ID.
func (e *Engine) Content(contentID string) (*models.ContentItem, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	item, ok := e.contents[contentID]
	if !ok {
		return nil, fmt.Errorf("content %q: %w", contentID, models.ErrNotFound)
	}
	out := *item
	return &out, nil
}

// RecordAnswer applies one answer event: mastery update, event log append,
// seed history, and style classification. Returns the updated mastery state.
func (e *Engine) RecordAnswer(ctx context.Context, ev models.InteractionEvent) (models.MasteryState, error) {
	content, err := e.Content(ev.ContentID)
	if err != nil {
		return models.MasteryState{}, err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	// The event is appended before any in-memory state moves, so a storage
	// failure here leaves the tracker exactly where it was.
	if e.storage != nil {
		if err := e.storage.AppendEvent(ctx, &ev); err != nil {
			return models.MasteryState{}, fmt.Errorf("append event: %w", err)
		}
	}

	rng := e.topicRange(content.TopicID)
	st, err := e.tracker.Record(ev.StudentID, content.TopicID, ev.Correct, rng)
	if err != nil {
		return models.MasteryState{}, err
	}
	if e.storage != nil {
		if err := e.storage.SaveMastery(ctx, &st); err != nil {
			return models.MasteryState{}, fmt.Errorf("persist mastery: %w", err)
		}
	}

	if ev.Correct {
		e.pushRecentCorrect(ev.StudentID, content.TopicID, ev.ContentID)
	}

	profile, updated := e.classify(ev.StudentID, style.Event{
		Type:           content.Type,
		Correct:        ev.Correct,
		ResponseTimeMs: ev.ResponseTimeMs,
	})
	if updated && e.storage != nil {
		if err := e.storage.SaveProfile(ctx, &profile); err != nil {
			return models.MasteryState{}, fmt.Errorf("persist profile: %w", err)
		}
	}

	e.logger.Debug("answer recorded",
		zap.String("student_id", ev.StudentID),
		zap.String("topic_id", content.TopicID),
		zap.Bool("correct", ev.Correct),
		zap.Float64("estimate", st.Estimate),
		zap.Int("difficulty", st.Difficulty))
	return st, nil
}

// classify appends the observation to the student's rolling window and runs
// the classifier. A skipped update (window too small) is a no-op.
func (e *Engine) classify(studentID string, obs style.Event) (models.StyleProfile, bool) {
	e.historyMu.Lock()
	window := append(e.windows[studentID], obs)
	if len(window) > e.cfg.Style.WindowSize {
		window = window[len(window)-e.cfg.Style.WindowSize:]
	}
	e.windows[studentID] = window
	snapshot := make([]style.Event, len(window))
	copy(snapshot, window)
	e.historyMu.Unlock()

	profile, err := e.classifier.Update(studentID, snapshot)
	if err != nil {
		if !errors.Is(err, models.ErrInsufficientData) {
			e.logger.Warn("style update failed", zap.String("student_id", studentID), zap.Error(err))
		}
		return profile, false
	}
	return profile, true
}

func (e *Engine) pushRecentCorrect(studentID, topicID, contentID string) {
	key := studentID + "\x00" + topicID
	e.historyMu.Lock()
	defer e.historyMu.Unlock()
	ring := append(e.recent[key], contentID)
	if len(ring) > e.cfg.Recommend.SeedHistory {
		ring = ring[len(ring)-e.cfg.Recommend.SeedHistory:]
	}
	e.recent[key] = ring
}

// Mastery returns the current mastery snapshot, or the topic's initial
// defaults when the student has never answered in the topic.
func (e *Engine) Mastery(studentID, topicID string) models.MasteryState {
	return e.tracker.State(studentID, topicID, e.topicRange(topicID))
}

// StyleProfile returns the student's current style profile, or the uniform
// distribution when the student has never been classified.
func (e *Engine) StyleProfile(studentID string) models.StyleProfile {
	return e.classifier.Profile(studentID)
}

// Status summarizes engine state for the status endpoint.
type Status struct {
	Contents      int `json:"contents"`
	IndexSize     int `json:"index_size"`
	Topics        int `json:"topics"`
	MasteryStates int `json:"mastery_states"`
	StyleProfiles int `json:"style_profiles"`
	EmbeddingDims int `json:"embedding_dimensions"`
}

// Status returns current component sizes.
func (e *Engine) Status() Status {
	e.mu.RLock()
	topics := len(e.topics)
	contents := len(e.contents)
	e.mu.RUnlock()
	return Status{
		Contents:      contents,
		IndexSize:     e.index.Size(),
		Topics:        topics,
		MasteryStates: e.tracker.Count(),
		StyleProfiles: e.classifier.Count(),
		EmbeddingDims: e.store.Dimensions(),
	}
}

// SaveIndex persists the similarity index snapshot to path.
func (e *Engine) SaveIndex(path string) error {
	return e.index.Save(path)
}

// LoadFromStorage restores topics, contents, mastery states, and style
// profiles from the persistence layer. Seed history and classifier windows
// restart empty; recommendations fall back to topic centroids until fresh
// answers arrive.
func (e *Engine) LoadFromStorage(ctx context.Context) error {
	if e.storage == nil {
		return nil
	}

	topics, err := e.storage.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("load topics: %w", err)
	}
	e.mu.Lock()
	for _, t := range topics {
		e.topics[t.ID] = *t
	}
	e.mu.Unlock()

	contents, err := e.storage.ListContents(ctx)
	if err != nil {
		return fmt.Errorf("load contents: %w", err)
	}
	items := make([]vector.Item, 0, len(contents))
	for _, c := range contents {
		if err := e.store.Put(c.ID, c.Embedding); err != nil {
			return fmt.Errorf("restore embedding %q: %w", c.ID, err)
		}
		items = append(items, vector.Item{
			ID:         c.ID,
			TopicID:    c.TopicID,
			Difficulty: c.Difficulty,
			Type:       c.Type,
			Vector:     c.Embedding,
		})
		meta := *c
		e.mu.Lock()
		e.contents[c.ID] = &meta
		e.mu.Unlock()
		if e.catalog != nil {
			if err := e.catalog.Index(ctx, &meta); err != nil {
				return fmt.Errorf("restore catalog %q: %w", c.ID, err)
			}
		}
	}
	// Warm start from the saved snapshot when it holds exactly the stored
	// catalog's IDs; otherwise rebuild from the embeddings in storage. A count
	// comparison is not enough: a retract plus an ingest after the last save
	// leaves the count unchanged with the wrong contents.
	warm := false
	if path := e.cfg.Storage.VectorIndexPath; path != "" {
		if err := e.index.Load(path); err != nil {
			e.logger.Warn("index snapshot load failed, rebuilding", zap.Error(err))
		} else if snapshotMatches(e.index.IDs(), items) {
			warm = true
		}
	}
	if !warm {
		if err := e.index.Build(items); err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
	}

	states, err := e.storage.ListMastery(ctx)
	if err != nil {
		return fmt.Errorf("load mastery: %w", err)
	}
	for _, st := range states {
		if err := e.tracker.Restore(*st, e.topicRange(st.TopicID)); err != nil {
			return fmt.Errorf("restore mastery: %w", err)
		}
	}

	profiles, err := e.storage.ListProfiles(ctx)
	if err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}
	for _, p := range profiles {
		if err := e.classifier.Restore(*p); err != nil {
			return fmt.Errorf("restore profile: %w", err)
		}
	}

	e.logger.Info("state restored",
		zap.Int("topics", len(topics)),
		zap.Int("contents", len(contents)),
		zap.Int("mastery_states", len(states)),
		zap.Int("profiles", len(profiles)))
	return nil
}

// snapshotMatches reports whether the loaded snapshot's ID set equals the
// restored catalog's ID set.
func snapshotMatches(ids []string, items []vector.Item) bool {
	if len(ids) != len(items) {
		return false
	}
	want := make(map[string]struct{}, len(items))
	for _, it := range items {
		want[it.ID] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := want[id]; !ok {
			return false
		}
	}
	return true
}
