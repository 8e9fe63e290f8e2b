package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	NormalizeL2(v)
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("got %v, want [0.6 0.8]", v)
	}

	zero := []float32{0, 0}
	NormalizeL2(zero)
	if zero[0] != 0 || zero[1] != 0 {
		t.Error("zero vector should be unchanged")
	}
}

func TestCentroid(t *testing.T) {
	if Centroid(nil) != nil {
		t.Error("empty input should return nil")
	}
	c := Centroid([][]float32{{1, 0}, {0, 1}})
	if math.Abs(float64(c[0])-float64(c[1])) > 1e-6 {
		t.Errorf("centroid of symmetric input should be symmetric, got %v", c)
	}
	var norm float64
	for _, x := range c {
		norm += float64(x) * float64(x)
	}
	if math.Abs(norm-1) > 1e-6 {
		t.Errorf("centroid should be unit length, norm^2=%v", norm)
	}
}

func TestFloat32sRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3e7, 0}
	out := BytesToFloat32s(Float32sToBytes(in))
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: %v != %v", i, in[i], out[i])
		}
	}
}
