package models

import "time"

// InteractionEvent is one answer submission. Events are immutable and
// append-only; they drive both mastery updates and style classification.
type InteractionEvent struct {
	ID             string    `json:"id,omitempty"`
	StudentID      string    `json:"student_id"`
	ContentID      string    `json:"content_id"`
	Correct        bool      `json:"correct"`
	ResponseTimeMs int64     `json:"response_time_ms"`
	HintUsed       bool      `json:"hint_used"`
	Timestamp      time.Time `json:"timestamp"`
}

// MasteryState is the per (student, topic) adaptive state tuple.
// Estimate stays in [0,1]; Difficulty stays within the topic's range.
type MasteryState struct {
	StudentID  string    `json:"student_id"`
	TopicID    string    `json:"topic_id"`
	Estimate   float64   `json:"estimate"`
	Confidence int       `json:"confidence"`
	Difficulty int       `json:"current_difficulty"`
	Streak     int       `json:"streak"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// StyleProfile is a student's weighted distribution over learning modalities.
// Weights are non-negative and sum to 1 within floating tolerance.
type StyleProfile struct {
	StudentID    string                  `json:"student_id"`
	Distribution map[ContentType]float64 `json:"distribution"`
	SampleCount  int                     `json:"sample_count"`
	UpdatedAt    time.Time               `json:"updated_at,omitempty"`
}

// UniformProfile returns the neutral profile used before any classification.
func UniformProfile(studentID string) StyleProfile {
	dist := make(map[ContentType]float64, len(ContentTypes))
	for _, t := range ContentTypes {
		dist[t] = 1.0 / float64(len(ContentTypes))
	}
	return StyleProfile{StudentID: studentID, Distribution: dist}
}

// Affinity returns the profile weight for a modality, or the uniform weight
// when the modality is missing from the distribution.
func (p StyleProfile) Affinity(t ContentType) float64 {
	if w, ok := p.Distribution[t]; ok {
		return w
	}
	return 1.0 / float64(len(ContentTypes))
}

// Clone returns a deep copy so callers can hold a snapshot safely.
func (p StyleProfile) Clone() StyleProfile {
	out := p
	out.Distribution = make(map[ContentType]float64, len(p.Distribution))
	for k, v := range p.Distribution {
		out.Distribution[k] = v
	}
	return out
}
