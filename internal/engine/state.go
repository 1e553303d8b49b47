package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SurpriseReward is the control-point bonus for answering a surprise check-in.
const SurpriseReward = 2

// LogEntry is one recorded urge. Entries are appended and never edited.
type LogEntry struct {
	Day       int    `json:"day"`
	Feeling   string `json:"feeling"`
	Trigger   string `json:"trigger"`
	Succeeded bool   `json:"succeeded"`
	Timestamp int64  `json:"timestamp"` // epoch milliseconds
}

// Time returns the entry timestamp in loc.
func (e LogEntry) Time(loc *time.Location) time.Time {
	return time.UnixMilli(e.Timestamp).In(loc)
}

// Outcome renders the success flag for humans.
func (e LogEntry) Outcome() string {
	if e.Succeeded {
		return OutcomeResisted
	}
	return OutcomeGaveIn
}

// ProgressState is the whole save state. Field names match the persisted blob.
type ProgressState struct {
	CurrentDay           int        `json:"currentDay"`
	Level                Level      `json:"level"`
	AwarenessPoints      int        `json:"awarenessPoints"`
	ControlPoints        int        `json:"controlPoints"`
	Energy               int        `json:"energy"`
	Logs                 []LogEntry `json:"logs"`
	LastSuccessTimestamp *int64     `json:"lastSuccessTimestamp"`
	AIInsight            *string    `json:"aiInsight"`
	InsightRequested     bool       `json:"insightRequested"`
}

// Submission is a candidate log before it is stamped with day and time.
type Submission struct {
	Feeling   string
	Trigger   string
	Succeeded bool
}

// ValidationError reports an empty required field on a submission.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s must not be empty", e.Field)
}

// ErrInvalidState is returned by Validate for states no transition could produce.
var ErrInvalidState = errors.New("invalid progress state")

// InitialState is the state of a fresh install.
func InitialState() ProgressState {
	return ProgressState{
		CurrentDay: 1,
		Level:      LevelAwareness,
		Logs:       []LogEntry{},
	}
}

// Validate checks the invariants a loaded blob must satisfy.
func (s ProgressState) Validate() error {
	switch {
	case s.CurrentDay < 1:
		return fmt.Errorf("%w: currentDay %d", ErrInvalidState, s.CurrentDay)
	case !s.Level.Valid():
		return fmt.Errorf("%w: level %d", ErrInvalidState, s.Level)
	case s.Level != LevelFor(s.CurrentDay):
		return fmt.Errorf("%w: level %d does not match day %d", ErrInvalidState, s.Level, s.CurrentDay)
	case s.AwarenessPoints < 0 || s.ControlPoints < 0 || s.Energy < 0:
		return fmt.Errorf("%w: negative points", ErrInvalidState)
	}
	for i, l := range s.Logs {
		if l.Day < 1 {
			return fmt.Errorf("%w: log %d has day %d", ErrInvalidState, i, l.Day)
		}
	}
	return nil
}

// LastLog returns the most recent entry, if any.
func (s ProgressState) LastLog() (LogEntry, bool) {
	if len(s.Logs) == 0 {
		return LogEntry{}, false
	}
	return s.Logs[len(s.Logs)-1], true
}

// Clone returns a copy that shares no mutable memory with s.
func (s ProgressState) Clone() ProgressState {
	out := s
	out.Logs = make([]LogEntry, len(s.Logs))
	copy(out.Logs, s.Logs)
	if s.LastSuccessTimestamp != nil {
		ts := *s.LastSuccessTimestamp
		out.LastSuccessTimestamp = &ts
	}
	if s.AIInsight != nil {
		v := *s.AIInsight
		out.AIInsight = &v
	}
	return out
}

// SubmitLog computes the next state for a submission made at now. The input state
// is not modified. Calendar days are compared in now's location.
func SubmitLog(s ProgressState, sub Submission, now time.Time) (ProgressState, LogEntry, error) {
	if strings.TrimSpace(sub.Feeling) == "" {
		return s, LogEntry{}, &ValidationError{Field: "feeling"}
	}
	if strings.TrimSpace(sub.Trigger) == "" {
		return s, LogEntry{}, &ValidationError{Field: "trigger"}
	}

	entry := LogEntry{
		Day:       s.CurrentDay,
		Feeling:   sub.Feeling,
		Trigger:   sub.Trigger,
		Succeeded: sub.Succeeded,
		Timestamp: now.UnixMilli(),
	}

	next := s.Clone()
	if sub.Succeeded {
		if next.LastSuccessTimestamp == nil || !sameDate(time.UnixMilli(*next.LastSuccessTimestamp).In(now.Location()), now) {
			next.CurrentDay++
			ts := now.UnixMilli()
			next.LastSuccessTimestamp = &ts
		}
		// Points go to the level held before this submission.
		switch s.Level {
		case LevelAwareness:
			next.AwarenessPoints++
		case LevelControl:
			next.ControlPoints++
		case LevelSwitching:
			next.Energy++
		}
	} else {
		next.CurrentDay = max(LevelFloor(s.Level), next.CurrentDay-1)
	}
	next.Level = LevelFor(next.CurrentDay)
	next.Logs = append(next.Logs, entry)
	return next, entry, nil
}

// ApplySurpriseAnswer awards the check-in bonus. Day, level and logs are untouched.
func ApplySurpriseAnswer(s ProgressState) ProgressState {
	next := s.Clone()
	next.ControlPoints += SurpriseReward
	return next
}

// ApplyInsight stores the first journal analysis and marks it requested.
func ApplyInsight(s ProgressState, insight string) ProgressState {
	next := s.Clone()
	next.AIInsight = &insight
	next.InsightRequested = true
	return next
}

// NeedsInsight reports whether the one-time journal analysis is due.
func (s ProgressState) NeedsInsight() bool {
	return s.CurrentDay >= controlStartDay && !s.InsightRequested
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
