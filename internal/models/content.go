// Package models defines the data model shared by the adaptive learning engine.
package models

import "time"

// ContentType is the learning modality of a content item.
type ContentType string

const (
	ContentTypeVisual      ContentType = "visual"
	ContentTypeTextual     ContentType = "textual"
	ContentTypeInteractive ContentType = "interactive"
	ContentTypeAudio       ContentType = "audio"
)

// ContentTypes lists all valid modalities in a fixed order.
var ContentTypes = []ContentType{
	ContentTypeVisual,
	ContentTypeTextual,
	ContentTypeInteractive,
	ContentTypeAudio,
}

// Valid reports whether t is one of the known modalities.
func (t ContentType) Valid() bool {
	switch t {
	case ContentTypeVisual, ContentTypeTextual, ContentTypeInteractive, ContentTypeAudio:
		return true
	}
	return false
}

// ContentItem is a published exercise or question. Items are immutable once
// ingested; the embedding dimensionality is fixed at store-build time.
type ContentItem struct {
	ID          string      `json:"id" yaml:"id"`
	TopicID     string      `json:"topic_id" yaml:"topic_id"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Difficulty  int         `json:"difficulty_level" yaml:"difficulty_level"`
	Type        ContentType `json:"content_type" yaml:"content_type"`
	Embedding   []float32   `json:"embedding,omitempty" yaml:"embedding,omitempty"`
	CreatedAt   time.Time   `json:"created_at,omitempty" yaml:"-"`
}

// Topic holds curriculum metadata: the valid difficulty range and the
// difficulty a student starts at on first contact.
type Topic struct {
	ID              string `json:"id" yaml:"id"`
	Name            string `json:"name" yaml:"name"`
	MinDifficulty   int    `json:"min_difficulty" yaml:"min_difficulty"`
	MaxDifficulty   int    `json:"max_difficulty" yaml:"max_difficulty"`
	StartDifficulty int    `json:"start_difficulty" yaml:"start_difficulty"`
}

// Recommendation is one ranked entry of a recommendation response.
// It is ephemeral and never persisted.
type Recommendation struct {
	ContentID  string      `json:"content_id"`
	Score      float64     `json:"score"`
	Distance   float64     `json:"distance"`
	Type       ContentType `json:"content_type"`
	Difficulty int         `json:"difficulty_level"`
}
