// Package storage defines the persistence interface for the learning engine.
//
// The engine core runs from memory; this layer is the persistence
// collaborator that round-trips curriculum, events, mastery states, and style
// profiles across restarts. Numeric fields are stored at full precision.
package storage

import (
	"context"

	"github.com/ganitha/ganitha/internal/models"
)

// Storage persists curriculum data, the interaction event log, and learner state.
type Storage interface {
	// Content operations. Contents are immutable once published; Save is an
	// upsert to make ingestion idempotent.
	SaveContent(ctx context.Context, item *models.ContentItem) error
	GetContent(ctx context.Context, id string) (*models.ContentItem, error)
	DeleteContent(ctx context.Context, id string) error
	ListContents(ctx context.Context) ([]*models.ContentItem, error)

	// Topic operations.
	SaveTopic(ctx context.Context, topic *models.Topic) error
	ListTopics(ctx context.Context) ([]*models.Topic, error)

	// Event log: append-only.
	AppendEvent(ctx context.Context, ev *models.InteractionEvent) error
	RecentEvents(ctx context.Context, studentID string, limit int) ([]*models.InteractionEvent, error)

	// Learner state snapshots.
	SaveMastery(ctx context.Context, st *models.MasteryState) error
	ListMastery(ctx context.Context) ([]*models.MasteryState, error)
	SaveProfile(ctx context.Context, p *models.StyleProfile) error
	ListProfiles(ctx context.Context) ([]*models.StyleProfile, error)

	// Stats for the status endpoint.
	CountContents(ctx context.Context) (int64, error)
	CountEvents(ctx context.Context) (int64, error)

	Close() error
}
