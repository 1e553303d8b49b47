// Package session owns the live ProgressState. Every mutation goes through the
// engine, is saved immediately, and may make one of the advisory calls due.
package session

import (
	"context"
	errs "errors"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/DaanHessen/rewire/internal/engine"
	"github.com/DaanHessen/rewire/internal/store"
	"github.com/DaanHessen/rewire/internal/text"
)

// Capability names one advisory call.
type Capability string

const (
	CapInsight      Capability = "insight"
	CapSuggestion   Capability = "suggestion"
	CapAlternatives Capability = "alternatives"
)

var (
	// ErrNotSaved wraps a failed save. The in-memory state is kept and the next
	// mutation writes it again.
	ErrNotSaved = errs.New("progress not saved")
	// ErrNoPrompt is returned when answering a check-in that is not open.
	ErrNoPrompt = errs.New("no check-in is open")
)

// Repo is the persistence collaborator.
type Repo interface {
	Load(ctx context.Context) (engine.ProgressState, bool, error)
	Save(ctx context.Context, s engine.ProgressState) error
}

type Option func(*Session)

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option { return func(s *Session) { s.clock = clock } }

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option { return func(s *Session) { s.log = log } }

// WithScheduler sets the surprise check-in scheduler.
func WithScheduler(sch *engine.SurpriseScheduler) Option {
	return func(s *Session) { s.scheduler = sch }
}

// Session serialises access to the save state.
type Session struct {
	mu        sync.Mutex
	repo      Repo
	advisor   text.Advisor
	scheduler *engine.SurpriseScheduler
	log       *zap.Logger
	clock     func() time.Time
	flight    singleflight.Group

	state        engine.ProgressState
	suggestion   string // session only, never persisted
	surpriseOpen bool
	generation   uint64
	resets       uint64 // advisory results from before a Reset are dropped
}

// New loads the saved state. A missing or unreadable save starts from the
// initial state; neither is an error.
func New(ctx context.Context, repo Repo, advisor text.Advisor, opts ...Option) *Session {
	s := &Session{
		repo:  repo,
		clock: time.Now,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(zap.String("component", "session"))
	s.advisor = text.WithFallback(advisor, s.log)
	if s.scheduler == nil {
		s.scheduler = engine.NewSurpriseScheduler(engine.RandomSeed().Stream("surprise"), engine.DefaultMinIdle, engine.DefaultMaxIdle)
	}

	st, ok, err := repo.Load(ctx)
	switch {
	case err != nil:
		s.log.Warn("saved state unreadable, starting fresh", zap.Error(err))
		st = engine.InitialState()
	case !ok:
		s.log.Info("no saved state, starting fresh")
		st = engine.InitialState()
	default:
		s.log.Info("loaded state", zap.Int("day", st.CurrentDay), zap.Int("logs", len(st.Logs)))
	}
	s.state = st
	return s
}

// State returns a copy of the current state.
func (s *Session) State() engine.ProgressState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Now is the session clock.
func (s *Session) Now() time.Time { return s.clock() }

// Generation changes whenever level, logs or the check-in prompt change.
// Timers armed under an older generation must not fire.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Suggestion returns the personalised suggestion fetched this session, if any.
func (s *Session) Suggestion() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestion, s.suggestion != ""
}

// Submit records a wave. Validation errors leave the state untouched.
func (s *Session) Submit(ctx context.Context, sub engine.Submission) (engine.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, entry, err := engine.SubmitLog(s.state, sub, s.clock())
	if err != nil {
		return engine.LogEntry{}, err
	}
	prevDay := s.state.CurrentDay
	s.state = next
	s.generation++
	s.log.Info("wave logged",
		zap.Bool("succeeded", entry.Succeeded),
		zap.Int("day_before", prevDay),
		zap.Int("day", next.CurrentDay),
		zap.Int("level", int(next.Level)))
	return entry, s.persistLocked(ctx)
}

// PendingAdvice lists the advisory calls the current state makes due. Callers
// run each one off the UI thread right after a transition.
func (s *Session) PendingAdvice() []Capability {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Capability
	if s.state.NeedsInsight() {
		out = append(out, CapInsight)
	}
	if s.state.Level == engine.LevelSwitching && s.suggestion == "" {
		out = append(out, CapSuggestion)
	}
	return out
}

// RequestInsight runs the one-time journal analysis. Concurrent callers share a
// single call; once the insight is recorded later calls return it unchanged.
func (s *Session) RequestInsight(ctx context.Context) (string, error) {
	v, err, _ := s.flight.Do(string(CapInsight), func() (any, error) {
		s.mu.Lock()
		if !s.state.NeedsInsight() {
			defer s.mu.Unlock()
			if s.state.AIInsight != nil {
				return *s.state.AIInsight, nil
			}
			return "", nil
		}
		logs := s.state.Clone().Logs
		epoch := s.resets
		s.mu.Unlock()

		insight, _ := s.advisor.AnalyzeJournal(ctx, logs)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.resets != epoch {
			s.log.Info("progress reset during insight call, dropping result")
			return "", nil
		}
		s.state = engine.ApplyInsight(s.state, insight)
		return insight, s.persistLocked(ctx)
	})
	out, _ := v.(string)
	return out, err
}

// RequestSuggestion fetches the Switching-level suggestion once per session.
func (s *Session) RequestSuggestion(ctx context.Context) string {
	v, _, _ := s.flight.Do(string(CapSuggestion), func() (any, error) {
		s.mu.Lock()
		if s.suggestion != "" {
			defer s.mu.Unlock()
			return s.suggestion, nil
		}
		logs := s.state.Clone().Logs
		epoch := s.resets
		s.mu.Unlock()

		suggestion, _ := s.advisor.PersonalizedSuggestion(ctx, logs)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.resets != epoch {
			return "", nil
		}
		s.suggestion = suggestion
		return suggestion, nil
	})
	out, _ := v.(string)
	return out
}

// RequestAlternatives fetches the activities offered by an open check-in.
func (s *Session) RequestAlternatives(ctx context.Context) []string {
	v, _, _ := s.flight.Do(string(CapAlternatives), func() (any, error) {
		logs := s.State().Logs
		alts, _ := s.advisor.SurpriseAlternatives(ctx, logs)
		return alts, nil
	})
	alts, _ := v.([]string)
	if len(alts) == 0 {
		return text.FallbackAlternatives()
	}
	return append([]string(nil), alts...)
}

// SurpriseOpen reports whether a check-in prompt is showing.
func (s *Session) SurpriseOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surpriseOpen
}

// SurpriseDue evaluates the scheduler against the current state. Each call
// draws a fresh threshold.
func (s *Session) SurpriseDue() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.Due(s.state, s.clock(), s.surpriseOpen)
}

// OpenSurprise marks the check-in as showing. It refuses outside the Control
// level or when one is already open.
func (s *Session) OpenSurprise() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surpriseOpen || s.state.Level != engine.LevelControl {
		return false
	}
	s.surpriseOpen = true
	s.generation++
	s.log.Info("surprise check-in opened", zap.Int("day", s.state.CurrentDay))
	return true
}

// AnswerSurprise awards the check-in bonus and closes the prompt.
func (s *Session) AnswerSurprise(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.surpriseOpen {
		return ErrNoPrompt
	}
	s.state = engine.ApplySurpriseAnswer(s.state)
	s.surpriseOpen = false
	s.generation++
	s.log.Info("surprise check-in answered", zap.Int("control_points", s.state.ControlPoints))
	return s.persistLocked(ctx)
}

// DismissSurprise closes the prompt without points.
func (s *Session) DismissSurprise() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surpriseOpen {
		s.surpriseOpen = false
		s.generation++
	}
}

// Reset replaces the save state with the initial state.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = engine.InitialState()
	s.suggestion = ""
	s.surpriseOpen = false
	s.generation++
	s.resets++
	s.log.Warn("progress reset")
	return s.persistLocked(ctx)
}

func (s *Session) persistLocked(ctx context.Context) error {
	if err := s.repo.Save(ctx, s.state); err != nil {
		s.log.Error("save failed", zap.Error(err))
		return errors.WithMessage(ErrNotSaved, err.Error())
	}
	return nil
}

var _ Repo = (*store.StateRepo)(nil)
