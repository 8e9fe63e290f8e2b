// Package mastery tracks per (student, topic) competence and adapts difficulty.
//
// The state is a continuous tuple (estimate, confidence, difficulty, streak).
// The estimate follows an exponentially-weighted update whose learning rate
// decays as confidence grows, so early answers move it quickly and it
// stabilizes with experience. Difficulty transitions are hysteresis-gated:
// promotion and demotion each require both a sustained streak and an estimate
// past a cutoff, which prevents oscillation from a single lucky answer.
package mastery

import (
	"fmt"
	"sync"
	"time"

	"github.com/ganitha/ganitha/internal/config"
	"github.com/ganitha/ganitha/internal/models"
)

const initialEstimate = 0.5

// Range is a topic's valid difficulty range and starting difficulty.
type Range struct {
	Min   int
	Max   int
	Start int
}

func (r Range) valid() bool {
	return r.Min <= r.Max && r.Start >= r.Min && r.Start <= r.Max
}

// Tracker holds mastery state for all (student, topic) pairs. Updates for the
// same pair are serialized by a per-key lock; distinct pairs never contend on
// each other's critical section.
type Tracker struct {
	cfg config.MasteryConfig

	lockMu   sync.Mutex
	keyLocks map[string]*sync.Mutex

	stateMu sync.RWMutex
	states  map[string]models.MasteryState
}

// NewTracker creates a tracker with the given update-rule configuration.
func NewTracker(cfg config.MasteryConfig) *Tracker {
	return &Tracker{
		cfg:      cfg,
		keyLocks: make(map[string]*sync.Mutex),
		states:   make(map[string]models.MasteryState),
	}
}

func stateKey(studentID, topicID string) string {
	return studentID + "\x00" + topicID
}

// lockFor returns the mutex serializing updates for one (student, topic) key.
// Locks are never removed; the student population is bounded.
func (t *Tracker) lockFor(key string) *sync.Mutex {
	t.lockMu.Lock()
	defer t.lockMu.Unlock()
	mu, ok := t.keyLocks[key]
	if !ok {
		mu = &sync.Mutex{}
		t.keyLocks[key] = mu
	}
	return mu
}

// Record applies one answer outcome and returns the updated state snapshot.
// The first answer for a pair creates the state from the topic range.
func (t *Tracker) Record(studentID, topicID string, correct bool, rng Range) (models.MasteryState, error) {
	if !rng.valid() {
		return models.MasteryState{}, fmt.Errorf("%w: topic %q range min=%d max=%d start=%d",
			models.ErrInvariantViolation, topicID, rng.Min, rng.Max, rng.Start)
	}

	key := stateKey(studentID, topicID)
	mu := t.lockFor(key)
	mu.Lock()
	defer mu.Unlock()

	t.stateMu.RLock()
	st, ok := t.states[key]
	t.stateMu.RUnlock()
	if !ok {
		st = initialState(studentID, topicID, rng)
	}

	outcome := 0.0
	if correct {
		outcome = 1.0
	}
	alpha := t.cfg.Alpha0 / (1 + float64(st.Confidence))
	if alpha < t.cfg.AlphaMin {
		alpha = t.cfg.AlphaMin
	}
	st.Estimate += alpha * (outcome - st.Estimate)

	if st.Confidence < t.cfg.ConfidenceCap {
		st.Confidence++
	}

	if correct {
		if st.Streak < 0 {
			st.Streak = 1
		} else {
			st.Streak++
		}
	} else {
		if st.Streak > 0 {
			st.Streak = -1
		} else {
			st.Streak--
		}
	}

	// Promotion and demotion are evaluated independently in the same call.
	if st.Streak >= t.cfg.PromoteStreak && st.Estimate >= t.cfg.PromoteCutoff {
		if st.Difficulty < rng.Max {
			st.Difficulty++
		}
		st.Streak = 0
	}
	if st.Streak <= -t.cfg.DemoteStreak && st.Estimate <= t.cfg.DemoteCutoff {
		if st.Difficulty > rng.Min {
			st.Difficulty--
		}
		st.Streak = 0
	}

	st.UpdatedAt = time.Now().UTC()

	if err := validate(st, rng); err != nil {
		return models.MasteryState{}, err
	}

	t.stateMu.Lock()
	t.states[key] = st
	t.stateMu.Unlock()
	return st, nil
}

// State returns the current tuple, or the initial defaults for the topic
// range when the pair has never been observed. It never creates a record.
func (t *Tracker) State(studentID, topicID string, rng Range) models.MasteryState {
	t.stateMu.RLock()
	st, ok := t.states[stateKey(studentID, topicID)]
	t.stateMu.RUnlock()
	if ok {
		return st
	}
	return initialState(studentID, topicID, rng)
}

// Restore installs a persisted state, validating it against the topic range.
// Out-of-bounds persisted values surface as ErrInvariantViolation rather than
// being clamped.
func (t *Tracker) Restore(st models.MasteryState, rng Range) error {
	if err := validate(st, rng); err != nil {
		return err
	}
	t.stateMu.Lock()
	t.states[stateKey(st.StudentID, st.TopicID)] = st
	t.stateMu.Unlock()
	return nil
}

// ByStudent returns all tracked states for one student.
func (t *Tracker) ByStudent(studentID string) []models.MasteryState {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	var out []models.MasteryState
	for _, st := range t.states {
		if st.StudentID == studentID {
			out = append(out, st)
		}
	}
	return out
}

// Count returns the number of tracked (student, topic) pairs.
func (t *Tracker) Count() int {
	t.stateMu.RLock()
	defer t.stateMu.RUnlock()
	return len(t.states)
}

func initialState(studentID, topicID string, rng Range) models.MasteryState {
	return models.MasteryState{
		StudentID:  studentID,
		TopicID:    topicID,
		Estimate:   initialEstimate,
		Difficulty: rng.Start,
	}
}

func validate(st models.MasteryState, rng Range) error {
	if st.Estimate < 0 || st.Estimate > 1 {
		return fmt.Errorf("%w: estimate %v outside [0,1] for (%s, %s)",
			models.ErrInvariantViolation, st.Estimate, st.StudentID, st.TopicID)
	}
	if st.Difficulty < rng.Min || st.Difficulty > rng.Max {
		return fmt.Errorf("%w: difficulty %d outside [%d,%d] for (%s, %s)",
			models.ErrInvariantViolation, st.Difficulty, rng.Min, rng.Max, st.StudentID, st.TopicID)
	}
	return nil
}
