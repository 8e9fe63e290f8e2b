package watcher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/ganitha/ganitha/internal/models"
)

// CurriculumFile is the on-disk shape of a curriculum drop: topics first,
// then the content items that reference them.
type CurriculumFile struct {
	Topics   []models.Topic       `json:"topics"`
	Contents []models.ContentItem `json:"contents"`
}

// Ingestor is the engine surface the loader needs.
type Ingestor interface {
	RegisterTopic(ctx context.Context, topic models.Topic) error
	IngestContent(ctx context.Context, item *models.ContentItem) error
	RemoveContent(ctx context.Context, contentID string) error
}

// Loader parses curriculum files and applies them to the engine. It remembers
// which content IDs each file contributed so a rewritten or deleted file
// retracts its stale items.
type Loader struct {
	engine Ingestor
	logger *zap.Logger

	mu     sync.Mutex
	byPath map[string][]string
}

// NewLoader creates a curriculum loader.
func NewLoader(engine Ingestor, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{engine: engine, logger: logger, byPath: make(map[string][]string)}
}

// LoadFile reads one curriculum file and ingests its topics and contents.
// Items the file previously contributed but no longer lists are retracted.
// A single bad item skips that item, not the whole file.
func (l *Loader) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read curriculum file: %w", err)
	}
	var file CurriculumFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse curriculum file %s: %w", path, err)
	}

	for _, topic := range file.Topics {
		if err := l.engine.RegisterTopic(ctx, topic); err != nil {
			l.logger.Warn("topic rejected",
				zap.String("path", path), zap.String("topic_id", topic.ID), zap.Error(err))
		}
	}

	loaded := make([]string, 0, len(file.Contents))
	for i := range file.Contents {
		item := file.Contents[i]
		if err := l.engine.IngestContent(ctx, &item); err != nil {
			l.logger.Warn("content rejected",
				zap.String("path", path), zap.String("content_id", item.ID), zap.Error(err))
			continue
		}
		loaded = append(loaded, item.ID)
	}

	l.mu.Lock()
	previous := l.byPath[path]
	l.byPath[path] = loaded
	l.mu.Unlock()

	current := make(map[string]struct{}, len(loaded))
	for _, id := range loaded {
		current[id] = struct{}{}
	}
	for _, id := range previous {
		if _, ok := current[id]; ok {
			continue
		}
		if err := l.engine.RemoveContent(ctx, id); err != nil {
			l.logger.Warn("stale content retraction failed",
				zap.String("path", path), zap.String("content_id", id), zap.Error(err))
		}
	}

	l.logger.Info("curriculum file loaded",
		zap.String("path", path),
		zap.Int("topics", len(file.Topics)),
		zap.Int("contents", len(loaded)))
	return nil
}

// RemoveFile retracts everything a deleted curriculum file contributed.
func (l *Loader) RemoveFile(ctx context.Context, path string) {
	l.mu.Lock()
	ids := l.byPath[path]
	delete(l.byPath, path)
	l.mu.Unlock()

	for _, id := range ids {
		if err := l.engine.RemoveContent(ctx, id); err != nil {
			l.logger.Warn("content retraction failed",
				zap.String("path", path), zap.String("content_id", id), zap.Error(err))
		}
	}
	if len(ids) > 0 {
		l.logger.Info("curriculum file removed",
			zap.String("path", path), zap.Int("contents", len(ids)))
	}
}
