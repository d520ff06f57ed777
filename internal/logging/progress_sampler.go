package logging

import "time"

// ProgressSampler suppresses repetitive transfer-progress logs while
// preserving signal when percentage buckets are crossed. A minimum interval
// keeps long stalls quiet and fast transfers from flooding the log.
type ProgressSampler struct {
	bucketSize  float64
	minInterval time.Duration
	lastBucket  int
	lastEmit    time.Time
	now         func() time.Time
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%) and at least minInterval has elapsed since
// the previous emission.
func NewProgressSampler(bucketSize float64, minInterval time.Duration) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{
		bucketSize:  bucketSize,
		minInterval: minInterval,
		lastBucket:  -1,
		now:         time.Now,
	}
}

// ShouldLog reports whether a progress event should be logged. Percent can be
// negative to indicate "unknown length"; unknown-length progress is emitted on
// the interval alone.
func (s *ProgressSampler) ShouldLog(percent float64) bool {
	if s == nil {
		return true
	}
	now := s.now()
	if !s.lastEmit.IsZero() && now.Sub(s.lastEmit) < s.minInterval {
		return false
	}
	if percent < 0 {
		s.lastEmit = now
		return true
	}
	bucket := int(percent / s.bucketSize)
	if percent >= 100 {
		bucket = int(100 / s.bucketSize)
	}
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		s.lastEmit = now
		return true
	}
	return false
}

// Reset clears the sampler state when a new transfer attempt starts.
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
	s.lastEmit = time.Time{}
}
