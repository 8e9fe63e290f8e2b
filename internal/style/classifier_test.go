package style

import (
	"errors"
	"math"
	"testing"

	"github.com/ganitha/ganitha/internal/config"
	"github.com/ganitha/ganitha/internal/models"
)

func testCfg() config.StyleConfig {
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	return cfg.Style
}

func checkDistribution(t *testing.T, p models.StyleProfile) {
	t.Helper()
	var sum float64
	for ct, w := range p.Distribution {
		if w < 0 {
			t.Errorf("negative weight %v for %s", w, ct)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-6 {
		t.Errorf("weights sum to %v, want 1", sum)
	}
}

func TestUpdate_InsufficientData(t *testing.T) {
	c := NewClassifier(testCfg())

	events := []Event{
		{Type: models.ContentTypeVisual, Correct: true, ResponseTimeMs: 4000},
		{Type: models.ContentTypeTextual, Correct: false, ResponseTimeMs: 9000},
	}
	p, err := c.Update("s1", events)
	if !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
	// prior (uniform) profile returned unchanged, nothing stored
	for _, ct := range models.ContentTypes {
		if p.Distribution[ct] != 0.25 {
			t.Errorf("weight for %s = %v, want uniform 0.25", ct, p.Distribution[ct])
		}
	}
	if c.Count() != 0 {
		t.Error("skipped update must not store a profile")
	}
}

func TestUpdate_FavorsStrongModality(t *testing.T) {
	c := NewClassifier(testCfg())

	// Visual: fast and always correct. Textual: slow and always wrong.
	var events []Event
	for i := 0; i < 6; i++ {
		events = append(events, Event{Type: models.ContentTypeVisual, Correct: true, ResponseTimeMs: 3000})
		events = append(events, Event{Type: models.ContentTypeTextual, Correct: false, ResponseTimeMs: 20000})
	}
	p, err := c.Update("s1", events)
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	checkDistribution(t, p)
	if p.Distribution[models.ContentTypeVisual] <= p.Distribution[models.ContentTypeTextual] {
		t.Errorf("visual %v should outweigh textual %v",
			p.Distribution[models.ContentTypeVisual], p.Distribution[models.ContentTypeTextual])
	}
	if p.SampleCount != 12 {
		t.Errorf("SampleCount = %d, want 12", p.SampleCount)
	}
}

func TestUpdate_SumsToOneAcrossBlends(t *testing.T) {
	c := NewClassifier(testCfg())

	batches := [][]Event{
		{
			{Type: models.ContentTypeVisual, Correct: true, ResponseTimeMs: 3000},
			{Type: models.ContentTypeVisual, Correct: true, ResponseTimeMs: 2500},
			{Type: models.ContentTypeAudio, Correct: false, ResponseTimeMs: 12000},
			{Type: models.ContentTypeAudio, Correct: true, ResponseTimeMs: 8000},
			{Type: models.ContentTypeInteractive, Correct: true, ResponseTimeMs: 5000},
		},
		{
			{Type: models.ContentTypeTextual, Correct: true, ResponseTimeMs: 4000},
			{Type: models.ContentTypeTextual, Correct: true, ResponseTimeMs: 4100},
			{Type: models.ContentTypeTextual, Correct: true, ResponseTimeMs: 3900},
			{Type: models.ContentTypeVisual, Correct: false, ResponseTimeMs: 15000},
			{Type: models.ContentTypeAudio, Correct: false, ResponseTimeMs: 11000},
		},
	}
	for i, batch := range batches {
		p, err := c.Update("s1", batch)
		if err != nil {
			t.Fatalf("Update %d error: %v", i, err)
		}
		checkDistribution(t, p)
	}
}

func TestUpdate_BlendDampens(t *testing.T) {
	cfg := testCfg()
	cfg.Blend = 0.3
	c := NewClassifier(cfg)

	var events []Event
	for i := 0; i < 5; i++ {
		events = append(events, Event{Type: models.ContentTypeInteractive, Correct: true, ResponseTimeMs: 2000})
	}
	p, err := c.Update("s1", events)
	if err != nil {
		t.Fatal(err)
	}
	// one extreme batch moves the profile, but the prior keeps it well below
	// the fresh softmax weight
	w := p.Distribution[models.ContentTypeInteractive]
	if w <= 0.25 {
		t.Errorf("interactive weight %v should exceed uniform", w)
	}
	if w > 0.25+cfg.Blend {
		t.Errorf("interactive weight %v moved more than the blend permits", w)
	}
}

func TestProfile_UniformDefault(t *testing.T) {
	c := NewClassifier(testCfg())
	p := c.Profile("never-seen")
	checkDistribution(t, p)
	for _, ct := range models.ContentTypes {
		if p.Distribution[ct] != 0.25 {
			t.Errorf("weight for %s = %v, want 0.25", ct, p.Distribution[ct])
		}
	}
}

func TestRestore_Validation(t *testing.T) {
	c := NewClassifier(testCfg())

	bad := models.StyleProfile{
		StudentID: "s1",
		Distribution: map[models.ContentType]float64{
			models.ContentTypeVisual: 0.9,
			models.ContentTypeAudio:  0.9,
		},
	}
	if err := c.Restore(bad); !errors.Is(err, models.ErrInvariantViolation) {
		t.Errorf("expected ErrInvariantViolation, got %v", err)
	}

	good := models.StyleProfile{
		StudentID: "s1",
		Distribution: map[models.ContentType]float64{
			models.ContentTypeVisual:      0.4,
			models.ContentTypeTextual:     0.2,
			models.ContentTypeInteractive: 0.25,
			models.ContentTypeAudio:       0.15,
		},
		SampleCount: 40,
	}
	if err := c.Restore(good); err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	if got := c.Profile("s1"); got.Distribution[models.ContentTypeVisual] != 0.4 || got.SampleCount != 40 {
		t.Errorf("restored profile = %+v", got)
	}
}

func TestRestore_FillsMissingModalities(t *testing.T) {
	c := NewClassifier(testCfg())

	partial := models.StyleProfile{
		StudentID: "s1",
		Distribution: map[models.ContentType]float64{
			models.ContentTypeVisual: 0.6,
			models.ContentTypeAudio:  0.4,
		},
		SampleCount: 20,
	}
	if err := c.Restore(partial); err != nil {
		t.Fatalf("Restore error: %v", err)
	}
	got := c.Profile("s1")
	for _, ct := range []models.ContentType{models.ContentTypeTextual, models.ContentTypeInteractive} {
		if w, ok := got.Distribution[ct]; !ok || w != 0 {
			t.Errorf("missing modality %s should restore as explicit 0, got %v (present %v)", ct, w, ok)
		}
	}

	// An update over a restored partial profile must still blend to sum 1.
	var events []Event
	for i := 0; i < 6; i++ {
		events = append(events, Event{Type: models.ContentTypeVisual, Correct: true, ResponseTimeMs: 3000})
	}
	p, err := c.Update("s1", events)
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	checkDistribution(t, p)
}

func TestMedian(t *testing.T) {
	tests := []struct {
		in   []float64
		want float64
	}{
		{nil, 0},
		{[]float64{5}, 5},
		{[]float64{1, 9}, 5},
		{[]float64{3, 1, 2}, 2},
		{[]float64{4, 1, 3, 2}, 2.5},
	}
	for _, tt := range tests {
		if got := median(tt.in); got != tt.want {
			t.Errorf("median(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
