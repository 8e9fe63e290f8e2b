package engine

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ganitha/ganitha/internal/models"
	"github.com/ganitha/ganitha/internal/style"
	"github.com/ganitha/ganitha/internal/vector"
	"github.com/ganitha/ganitha/pkg/utils"
)

// Recommend returns up to count content items for the student in the topic,
// ordered best first. Candidates come from the difficulty band around the
// student's current level; ranking blends embedding similarity to a seed
// vector with the student's style affinity for each content type.
func (e *Engine) Recommend(ctx context.Context, studentID, topicID string, count int) ([]models.Recommendation, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d: %w", count, models.ErrInvalidInput)
	}
	if topicID == "" {
		return nil, fmt.Errorf("topic is required: %w", models.ErrInvalidInput)
	}

	rng := e.topicRange(topicID)
	state := e.tracker.State(studentID, topicID, rng)

	lo := state.Difficulty - e.cfg.Recommend.BandWidth
	hi := state.Difficulty + e.cfg.Recommend.BandWidth
	if lo < rng.Min {
		lo = rng.Min
	}
	if hi > rng.Max {
		hi = rng.Max
	}

	seed, err := e.seedVector(studentID, topicID)
	if err != nil {
		return nil, err
	}

	k := count * e.cfg.Recommend.CandidateMultiplier
	if k < count {
		k = count
	}
	hits, err := e.index.Query(seed, k, &vector.Filter{
		TopicID:       topicID,
		MinDifficulty: lo,
		MaxDifficulty: hi,
	})
	if err != nil {
		return nil, fmt.Errorf("no content in topic %q within difficulty [%d,%d]: %w",
			topicID, lo, hi, models.ErrNoCandidates)
	}

	profile := e.classifier.Profile(studentID)
	recs := make([]models.Recommendation, 0, len(hits))
	e.mu.RLock()
	for _, hit := range hits {
		meta, ok := e.contents[hit.ID]
		if !ok {
			// Retracted between the index query and the metadata read.
			continue
		}
		similarity := 1 - hit.Distance/2 // cosine distance [0,2] mapped to [0,1]
		score := e.cfg.Recommend.SimilarityWeight*similarity +
			e.cfg.Recommend.StyleWeight*profile.Affinity(meta.Type)
		recs = append(recs, models.Recommendation{
			ContentID:  hit.ID,
			Score:      score,
			Distance:   hit.Distance,
			Type:       meta.Type,
			Difficulty: meta.Difficulty,
		})
	}
	e.mu.RUnlock()

	if len(recs) == 0 {
		return nil, fmt.Errorf("no content in topic %q within difficulty [%d,%d]: %w",
			topicID, lo, hi, models.ErrNoCandidates)
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Score != recs[j].Score {
			return recs[i].Score > recs[j].Score
		}
		return recs[i].ContentID < recs[j].ContentID
	})
	if len(recs) > count {
		recs = recs[:count]
	}
	return recs, nil
}

// seedVector derives the query vector for a recommendation: the centroid of
// the student's recent correctly answered items in the topic, or the topic's
// content centroid when the student has no history yet.
func (e *Engine) seedVector(studentID, topicID string) ([]float32, error) {
	e.historyMu.Lock()
	ids := append([]string(nil), e.recent[studentID+"\x00"+topicID]...)
	e.historyMu.Unlock()

	vectors := make([][]float32, 0, len(ids))
	for _, id := range ids {
		vec, err := e.store.Get(id)
		if err != nil {
			// The item was retracted since the answer; skip it.
			continue
		}
		vectors = append(vectors, vec)
	}
	if len(vectors) > 0 {
		return utils.Centroid(vectors), nil
	}
	return e.topicCentroid(topicID)
}

// topicCentroid averages all embeddings in a topic. This is the cold start
// seed, so two students with no history get identical candidates.
func (e *Engine) topicCentroid(topicID string) ([]float32, error) {
	e.mu.RLock()
	ids := make([]string, 0)
	for id, meta := range e.contents {
		if meta.TopicID == topicID {
			ids = append(ids, id)
		}
	}
	e.mu.RUnlock()

	vectors := make([][]float32, 0, len(ids))
	for _, id := range ids {
		vec, err := e.store.Get(id)
		if err != nil {
			continue
		}
		vectors = append(vectors, vec)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("topic %q has no content: %w", topicID, models.ErrNoCandidates)
	}
	return utils.Centroid(vectors), nil
}

// TypePerformance summarizes a student's recent outcomes for one content type.
type TypePerformance struct {
	Type        models.ContentType `json:"type"`
	Attempts    int                `json:"attempts"`
	SuccessRate float64            `json:"success_rate"`
}

// StudentSummary is the progress report surface: per-topic mastery, the style
// profile, and the content types the student is strong or weak in.
type StudentSummary struct {
	StudentID  string                `json:"student_id"`
	Mastery    []models.MasteryState `json:"mastery"`
	Profile    models.StyleProfile   `json:"profile"`
	Strengths  []TypePerformance     `json:"strengths"`
	Weaknesses []TypePerformance     `json:"weaknesses"`
}

const (
	strengthCutoff = 0.75
	weaknessCutoff = 0.5
)

// Summary builds a progress report from the student's mastery states and the
// rolling observation window. After a restart the window is empty, so the
// persisted event log backfills it.
func (e *Engine) Summary(ctx context.Context, studentID string) StudentSummary {
	summary := StudentSummary{
		StudentID: studentID,
		Mastery:   e.tracker.ByStudent(studentID),
		Profile:   e.classifier.Profile(studentID),
	}

	e.historyMu.Lock()
	events := append([]style.Event(nil), e.windows[studentID]...)
	e.historyMu.Unlock()

	if len(events) == 0 && e.storage != nil {
		logged, err := e.storage.RecentEvents(ctx, studentID, e.cfg.Style.WindowSize)
		if err != nil {
			e.logger.Warn("event log read failed", zap.String("student_id", studentID), zap.Error(err))
		}
		for _, ev := range logged {
			content, err := e.Content(ev.ContentID)
			if err != nil {
				continue
			}
			events = append(events, style.Event{
				Type:           content.Type,
				Correct:        ev.Correct,
				ResponseTimeMs: ev.ResponseTimeMs,
			})
		}
	}

	attempts := make(map[models.ContentType]int)
	correct := make(map[models.ContentType]int)
	for _, ev := range events {
		attempts[ev.Type]++
		if ev.Correct {
			correct[ev.Type]++
		}
	}

	for _, ct := range models.ContentTypes {
		n := attempts[ct]
		if n == 0 {
			continue
		}
		perf := TypePerformance{
			Type:        ct,
			Attempts:    n,
			SuccessRate: float64(correct[ct]) / float64(n),
		}
		switch {
		case perf.SuccessRate >= strengthCutoff:
			summary.Strengths = append(summary.Strengths, perf)
		case perf.SuccessRate < weaknessCutoff:
			summary.Weaknesses = append(summary.Weaknesses, perf)
		}
	}
	return summary
}

// CatalogResult pairs a catalog hit with its content metadata.
type CatalogResult struct {
	Content models.ContentItem `json:"content"`
	Score   float64            `json:"score"`
}

// SearchCatalog runs a full-text query over content titles and descriptions.
func (e *Engine) SearchCatalog(ctx context.Context, query string, limit int) ([]CatalogResult, error) {
	if e.catalog == nil {
		return nil, fmt.Errorf("catalog search is not enabled")
	}
	if limit <= 0 {
		limit = 10
	}
	hits, err := e.catalog.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]CatalogResult, 0, len(hits))
	e.mu.RLock()
	for _, hit := range hits {
		meta, ok := e.contents[hit.ContentID]
		if !ok {
			continue
		}
		item := *meta
		item.Embedding = nil
		out = append(out, CatalogResult{Content: item, Score: hit.Score})
	}
	e.mu.RUnlock()
	return out, nil
}
