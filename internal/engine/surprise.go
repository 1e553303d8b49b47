package engine

import (
	"sync"
	"time"
)

// Default idle window after the last log before a surprise check-in may fire.
const (
	DefaultMinIdle = time.Hour
	DefaultMaxIdle = 2 * time.Hour
)

// SurpriseScheduler decides whether an unscheduled check-in should open.
// The idle threshold is redrawn on every evaluation, so the chance of firing
// grows the longer the user stays idle.
type SurpriseScheduler struct {
	mu      sync.Mutex
	stream  *Stream
	minIdle time.Duration
	maxIdle time.Duration
}

// NewSurpriseScheduler builds a scheduler drawing thresholds from [minIdle, maxIdle).
// Non-positive or inverted bounds fall back to the one-to-two hour default.
func NewSurpriseScheduler(stream *Stream, minIdle, maxIdle time.Duration) *SurpriseScheduler {
	if minIdle <= 0 || maxIdle <= minIdle {
		minIdle, maxIdle = DefaultMinIdle, DefaultMaxIdle
	}
	return &SurpriseScheduler{stream: stream, minIdle: minIdle, maxIdle: maxIdle}
}

// Threshold draws the next idle threshold.
func (s *SurpriseScheduler) Threshold() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	span := int64(s.maxIdle - s.minIdle)
	return s.minIdle + time.Duration(s.stream.Int63n(span))
}

// Due reports whether a check-in should open now. It only applies at the Control
// level, never while a prompt is already open, and never before the first log.
func (s *SurpriseScheduler) Due(st ProgressState, now time.Time, promptOpen bool) bool {
	if st.Level != LevelControl || promptOpen {
		return false
	}
	last, ok := st.LastLog()
	if !ok {
		return false
	}
	elapsed := now.Sub(time.UnixMilli(last.Timestamp))
	return elapsed > s.Threshold()
}
