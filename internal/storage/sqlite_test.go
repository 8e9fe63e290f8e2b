package storage

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/ganitha/ganitha/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestContentRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	item := &models.ContentItem{
		ID:          "c1",
		TopicID:     "fractions",
		Title:       "Comparing halves and quarters",
		Description: "pie chart exercise",
		Difficulty:  3,
		Type:        models.ContentTypeVisual,
		Embedding:   []float32{0.25, -0.5, 0.8125},
	}
	if err := s.SaveContent(ctx, item); err != nil {
		t.Fatalf("SaveContent error: %v", err)
	}

	got, err := s.GetContent(ctx, "c1")
	if err != nil {
		t.Fatalf("GetContent error: %v", err)
	}
	if got.TopicID != item.TopicID || got.Difficulty != 3 || got.Type != models.ContentTypeVisual {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	for i := range item.Embedding {
		if got.Embedding[i] != item.Embedding[i] {
			t.Errorf("embedding[%d] = %v, want %v (must be exact)", i, got.Embedding[i], item.Embedding[i])
		}
	}

	if _, err := s.GetContent(ctx, "absent"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := s.DeleteContent(ctx, "c1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetContent(ctx, "c1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestTopicRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	topic := &models.Topic{ID: "fractions", Name: "Fractions", MinDifficulty: 1, MaxDifficulty: 5, StartDifficulty: 2}
	if err := s.SaveTopic(ctx, topic); err != nil {
		t.Fatal(err)
	}
	// upsert updates in place
	topic.MaxDifficulty = 6
	if err := s.SaveTopic(ctx, topic); err != nil {
		t.Fatal(err)
	}

	topics, err := s.ListTopics(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(topics) != 1 || topics[0].MaxDifficulty != 6 {
		t.Errorf("topics = %+v", topics)
	}
}

func TestEventsAppendAndRecent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		ev := &models.InteractionEvent{
			ID:             string(rune('a' + i)),
			StudentID:      "s1",
			ContentID:      "c1",
			Correct:        i%2 == 0,
			ResponseTimeMs: int64(1000 * (i + 1)),
			HintUsed:       i == 4,
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.AppendEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
	}

	events, err := s.RecentEvents(ctx, "s1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].ID != "e" || !events[0].HintUsed {
		t.Errorf("newest first expected, got %+v", events[0])
	}
	if n, _ := s.CountEvents(ctx); n != 5 {
		t.Errorf("CountEvents = %d, want 5", n)
	}

	other, err := s.RecentEvents(ctx, "s2", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(other) != 0 {
		t.Errorf("expected no events for other student, got %d", len(other))
	}
}

func TestMasteryRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	st := &models.MasteryState{
		StudentID:  "s1",
		TopicID:    "fractions",
		Estimate:   0.828500000000001,
		Confidence: 17,
		Difficulty: 3,
		Streak:     -1,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.SaveMastery(ctx, st); err != nil {
		t.Fatal(err)
	}
	st.Estimate = 0.9
	if err := s.SaveMastery(ctx, st); err != nil {
		t.Fatal(err)
	}

	states, err := s.ListMastery(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 1 {
		t.Fatalf("got %d states, want 1", len(states))
	}
	if states[0].Estimate != 0.9 || states[0].Confidence != 17 || states[0].Streak != -1 {
		t.Errorf("round-trip mismatch: %+v", states[0])
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	p := &models.StyleProfile{
		StudentID: "s1",
		Distribution: map[models.ContentType]float64{
			models.ContentTypeVisual:      0.4123,
			models.ContentTypeTextual:     0.1877,
			models.ContentTypeInteractive: 0.25,
			models.ContentTypeAudio:       0.15,
		},
		SampleCount: 42,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.SaveProfile(ctx, p); err != nil {
		t.Fatal(err)
	}

	profiles, err := s.ListProfiles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(profiles) != 1 {
		t.Fatalf("got %d profiles, want 1", len(profiles))
	}
	got := profiles[0]
	if got.SampleCount != 42 {
		t.Errorf("SampleCount = %d, want 42", got.SampleCount)
	}
	for ct, w := range p.Distribution {
		if math.Abs(got.Distribution[ct]-w) > 1e-4 {
			t.Errorf("weight %s = %v, want %v within 1e-4", ct, got.Distribution[ct], w)
		}
	}
}
