package logging

import (
	"testing"
	"time"
)

func TestNewProgressSampler(t *testing.T) {
	tests := []struct {
		name       string
		bucketSize float64
		wantSize   float64
	}{
		{"default bucket size for zero", 0, 5},
		{"default bucket size for negative", -1, 5},
		{"custom bucket size", 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewProgressSampler(tt.bucketSize, 0)
			if s.bucketSize != tt.wantSize {
				t.Errorf("bucketSize = %v, want %v", s.bucketSize, tt.wantSize)
			}
			if s.lastBucket != -1 {
				t.Errorf("lastBucket = %d, want -1", s.lastBucket)
			}
		})
	}
}

func TestProgressSamplerNil(t *testing.T) {
	var s *ProgressSampler
	if !s.ShouldLog(50) {
		t.Error("ShouldLog on nil sampler should always return true")
	}
	s.Reset() // should not panic
}

func TestProgressSamplerBuckets(t *testing.T) {
	s := NewProgressSampler(5, 0)
	if !s.ShouldLog(0) {
		t.Error("first sample should emit")
	}
	if s.ShouldLog(3) {
		t.Error("same bucket should not emit")
	}
	if !s.ShouldLog(7) {
		t.Error("crossing a bucket should emit")
	}
	if !s.ShouldLog(100) {
		t.Error("completion should emit")
	}
	if s.ShouldLog(100) {
		t.Error("repeated completion should not emit")
	}
}

func TestProgressSamplerMinInterval(t *testing.T) {
	current := time.Unix(1000, 0)
	s := NewProgressSampler(5, 30*time.Second)
	s.now = func() time.Time { return current }

	if !s.ShouldLog(0) {
		t.Error("first sample should emit")
	}
	current = current.Add(10 * time.Second)
	if s.ShouldLog(50) {
		t.Error("bucket crossed but interval not elapsed; should not emit")
	}
	current = current.Add(25 * time.Second)
	if !s.ShouldLog(55) {
		t.Error("interval elapsed and bucket crossed; should emit")
	}
}

func TestProgressSamplerUnknownLength(t *testing.T) {
	current := time.Unix(1000, 0)
	s := NewProgressSampler(5, 30*time.Second)
	s.now = func() time.Time { return current }

	if !s.ShouldLog(-1) {
		t.Error("unknown length should emit on first sample")
	}
	current = current.Add(5 * time.Second)
	if s.ShouldLog(-1) {
		t.Error("unknown length inside interval should not emit")
	}
	current = current.Add(31 * time.Second)
	if !s.ShouldLog(-1) {
		t.Error("unknown length after interval should emit")
	}
}

func TestProgressSamplerReset(t *testing.T) {
	s := NewProgressSampler(5, 0)
	if !s.ShouldLog(50) {
		t.Error("expected emit")
	}
	s.Reset()
	if !s.ShouldLog(1) {
		t.Error("expected emit after reset even in a lower bucket")
	}
}
