// Package style classifies learning-modality preference from interaction patterns.
//
// The classifier is a deliberately explainable linear scheme: per modality it
// computes success rate and median response time over the student's recent
// events, scores success minus a response-time penalty, softmaxes the scores
// into a distribution, and blends that with the prior profile using an
// exponential moving average. Profiles stay simple weighted distributions so
// they can be read back in parent-facing reports.
package style

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ganitha/ganitha/internal/config"
	"github.com/ganitha/ganitha/internal/models"
)

// Event is one interaction observation, reduced to the features the
// classifier consumes.
type Event struct {
	Type           models.ContentType
	Correct        bool
	ResponseTimeMs int64
}

// Classifier maintains per-student style profiles. Updates for the same
// student are serialized; distinct students update in parallel.
type Classifier struct {
	cfg config.StyleConfig

	lockMu   sync.Mutex
	keyLocks map[string]*sync.Mutex

	profileMu sync.RWMutex
	profiles  map[string]models.StyleProfile
}

// NewClassifier creates a classifier with the given configuration.
func NewClassifier(cfg config.StyleConfig) *Classifier {
	return &Classifier{
		cfg:      cfg,
		keyLocks: make(map[string]*sync.Mutex),
		profiles: make(map[string]models.StyleProfile),
	}
}

func (c *Classifier) lockFor(studentID string) *sync.Mutex {
	c.lockMu.Lock()
	defer c.lockMu.Unlock()
	mu, ok := c.keyLocks[studentID]
	if !ok {
		mu = &sync.Mutex{}
		c.keyLocks[studentID] = mu
	}
	return mu
}

// Update recomputes the student's distribution from the event window and
// blends it with the prior profile. With fewer than the configured minimum of
// events the update is skipped and the prior profile is returned along with
// an error wrapping models.ErrInsufficientData; callers treat that as a
// no-op success, not a failure.
func (c *Classifier) Update(studentID string, events []Event) (models.StyleProfile, error) {
	mu := c.lockFor(studentID)
	mu.Lock()
	defer mu.Unlock()

	prior := c.profileLocked(studentID)
	usable := 0
	for _, ev := range events {
		if ev.Type.Valid() {
			usable++
		}
	}
	if usable < c.cfg.MinEvents {
		return prior, fmt.Errorf("%w: %d events, need %d", models.ErrInsufficientData, usable, c.cfg.MinEvents)
	}

	fresh := c.score(events)

	// EMA blend: both distributions sum to 1, so the convex combination does too.
	beta := c.cfg.Blend
	next := prior.Clone()
	for _, t := range models.ContentTypes {
		next.Distribution[t] = beta*fresh[t] + (1-beta)*prior.Affinity(t)
	}
	next.SampleCount = prior.SampleCount + usable
	next.UpdatedAt = time.Now().UTC()

	c.profileMu.Lock()
	c.profiles[studentID] = next
	c.profileMu.Unlock()
	return next.Clone(), nil
}

// Profile returns the student's current distribution, or the uniform
// distribution when the student has never been classified.
func (c *Classifier) Profile(studentID string) models.StyleProfile {
	c.profileMu.RLock()
	defer c.profileMu.RUnlock()
	if p, ok := c.profiles[studentID]; ok {
		return p.Clone()
	}
	return models.UniformProfile(studentID)
}

func (c *Classifier) profileLocked(studentID string) models.StyleProfile {
	c.profileMu.RLock()
	defer c.profileMu.RUnlock()
	if p, ok := c.profiles[studentID]; ok {
		return p.Clone()
	}
	return models.UniformProfile(studentID)
}

// Restore installs a persisted profile after validating the weights.
func (c *Classifier) Restore(p models.StyleProfile) error {
	var sum float64
	for _, w := range p.Distribution {
		if w < 0 {
			return fmt.Errorf("%w: negative style weight %v for %s", models.ErrInvariantViolation, w, p.StudentID)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-4 {
		return fmt.Errorf("%w: style weights for %s sum to %v", models.ErrInvariantViolation, p.StudentID, sum)
	}
	// A missing modality must be an explicit zero, not an absent key: Affinity
	// falls back to the uniform weight for absent keys, which would push the
	// next blended distribution above 1.
	cp := p.Clone()
	for _, t := range models.ContentTypes {
		if _, ok := cp.Distribution[t]; !ok {
			cp.Distribution[t] = 0
		}
	}
	c.profileMu.Lock()
	c.profiles[p.StudentID] = cp
	c.profileMu.Unlock()
	return nil
}

// Count returns the number of stored profiles.
func (c *Classifier) Count() int {
	c.profileMu.RLock()
	defer c.profileMu.RUnlock()
	return len(c.profiles)
}

// score converts the event window into a fresh distribution over modalities.
// Modalities absent from the window score at the neutral midpoint so the
// softmax neither rewards nor punishes them.
func (c *Classifier) score(events []Event) map[models.ContentType]float64 {
	type agg struct {
		total   int
		correct int
		times   []float64
	}
	byType := make(map[models.ContentType]*agg)
	for _, ev := range events {
		if !ev.Type.Valid() {
			continue
		}
		a, ok := byType[ev.Type]
		if !ok {
			a = &agg{}
			byType[ev.Type] = a
		}
		a.total++
		if ev.Correct {
			a.correct++
		}
		a.times = append(a.times, float64(ev.ResponseTimeMs))
	}

	var maxMedian float64
	medians := make(map[models.ContentType]float64, len(byType))
	for t, a := range byType {
		m := median(a.times)
		medians[t] = m
		if m > maxMedian {
			maxMedian = m
		}
	}

	neutral := 0.5 - c.cfg.TimePenalty*0.5
	scores := make(map[models.ContentType]float64, len(models.ContentTypes))
	for _, t := range models.ContentTypes {
		a, ok := byType[t]
		if !ok {
			scores[t] = neutral
			continue
		}
		success := float64(a.correct) / float64(a.total)
		normTime := 0.0
		if maxMedian > 0 {
			normTime = medians[t] / maxMedian
		}
		scores[t] = success - c.cfg.TimePenalty*normTime
	}
	return softmax(scores)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func softmax(scores map[models.ContentType]float64) map[models.ContentType]float64 {
	maxScore := math.Inf(-1)
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	var sum float64
	exp := make(map[models.ContentType]float64, len(scores))
	for t, s := range scores {
		e := math.Exp(s - maxScore)
		exp[t] = e
		sum += e
	}
	for t := range exp {
		exp[t] /= sum
	}
	return exp
}
