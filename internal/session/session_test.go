package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/DaanHessen/rewire/internal/engine"
	"github.com/DaanHessen/rewire/internal/store"
	"github.com/DaanHessen/rewire/internal/text"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// started by opencensus init, pulled in through the genai client
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.May, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// scriptedAdvisor counts calls and can block until released.
type scriptedAdvisor struct {
	insightCalls    atomic.Int32
	suggestionCalls atomic.Int32
	altCalls        atomic.Int32
	release         chan struct{}
	fail            bool
}

func (a *scriptedAdvisor) wait() {
	if a.release != nil {
		<-a.release
	}
}

func (a *scriptedAdvisor) AnalyzeJournal(ctx context.Context, logs []engine.LogEntry) (string, error) {
	a.insightCalls.Add(1)
	a.wait()
	if a.fail {
		return "", errors.New("service unavailable")
	}
	return "You log most waves in the evening.", nil
}

func (a *scriptedAdvisor) PersonalizedSuggestion(ctx context.Context, logs []engine.LogEntry) (string, error) {
	a.suggestionCalls.Add(1)
	if a.fail {
		return "", errors.New("service unavailable")
	}
	return "Go for a walk.", nil
}

func (a *scriptedAdvisor) SurpriseAlternatives(ctx context.Context, logs []engine.LogEntry) ([]string, error) {
	a.altCalls.Add(1)
	if a.fail {
		return nil, errors.New("service unavailable")
	}
	return []string{"Walk", "Stretch"}, nil
}

type failingRepo struct{}

func (failingRepo) Load(context.Context) (engine.ProgressState, bool, error) {
	return engine.ProgressState{}, false, nil
}
func (failingRepo) Save(context.Context, engine.ProgressState) error { return errors.New("disk full") }

func newSession(t *testing.T, adv text.Advisor) (*Session, *store.MemoryStore, *fakeClock) {
	t.Helper()
	mem := store.NewMemoryStore()
	clock := newClock()
	seed, _ := engine.NewSeed("session-test")
	s := New(context.Background(), store.NewStateRepo(mem, store.DefaultKey), adv,
		WithClock(clock.Now),
		WithScheduler(engine.NewSurpriseScheduler(seed.Stream("surprise"), time.Hour, 2*time.Hour)))
	return s, mem, clock
}

func submit(t *testing.T, s *Session, ok bool) {
	t.Helper()
	_, err := s.Submit(context.Background(), engine.Submission{Feeling: "restless", Trigger: "evening", Succeeded: ok})
	require.NoError(t, err)
}

// advanceTo logs one success per day until currentDay reaches day.
func advanceTo(t *testing.T, s *Session, clock *fakeClock, day int) {
	t.Helper()
	for s.State().CurrentDay < day {
		submit(t, s, true)
		clock.Advance(24 * time.Hour)
	}
}

func TestStartsFromInitialState(t *testing.T) {
	s, _, _ := newSession(t, &scriptedAdvisor{})
	assert.Empty(t, cmp.Diff(engine.InitialState(), s.State()))
}

func TestCorruptSaveFallsBackToInitial(t *testing.T) {
	mem := store.NewMemoryStore()
	require.NoError(t, mem.Save(context.Background(), store.DefaultKey, []byte("{broken")))
	s := New(context.Background(), store.NewStateRepo(mem, store.DefaultKey), &scriptedAdvisor{})
	assert.Empty(t, cmp.Diff(engine.InitialState(), s.State()))
}

func TestSubmitPersistsEveryTransition(t *testing.T) {
	s, mem, _ := newSession(t, &scriptedAdvisor{})
	submit(t, s, true)
	submit(t, s, false)
	assert.Equal(t, 2, mem.Saves())

	reloaded := New(context.Background(), store.NewStateRepo(mem, store.DefaultKey), &scriptedAdvisor{})
	assert.Empty(t, cmp.Diff(s.State(), reloaded.State()))
}

func TestValidationErrorLeavesStateAndStoreUntouched(t *testing.T) {
	s, mem, _ := newSession(t, &scriptedAdvisor{})
	gen := s.Generation()
	_, err := s.Submit(context.Background(), engine.Submission{Feeling: " ", Trigger: "x", Succeeded: true})
	var verr *engine.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "feeling", verr.Field)
	assert.Empty(t, s.State().Logs)
	assert.Equal(t, 0, mem.Saves())
	assert.Equal(t, gen, s.Generation())
}

func TestSaveFailureKeepsProgressInMemory(t *testing.T) {
	s := New(context.Background(), failingRepo{}, &scriptedAdvisor{})
	_, err := s.Submit(context.Background(), engine.Submission{Feeling: "a", Trigger: "b", Succeeded: true})
	assert.ErrorIs(t, err, ErrNotSaved)
	assert.Equal(t, 2, s.State().CurrentDay)
}

func TestInsightDueFromDayFour(t *testing.T) {
	adv := &scriptedAdvisor{}
	s, _, clock := newSession(t, adv)
	advanceTo(t, s, clock, 3)
	assert.NotContains(t, s.PendingAdvice(), CapInsight)
	advanceTo(t, s, clock, 4)
	assert.Contains(t, s.PendingAdvice(), CapInsight)

	insight, err := s.RequestInsight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "You log most waves in the evening.", insight)
	st := s.State()
	assert.True(t, st.InsightRequested)
	assert.NotContains(t, s.PendingAdvice(), CapInsight)

	again, err := s.RequestInsight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, insight, again)
	assert.Equal(t, int32(1), adv.insightCalls.Load())
}

func TestInsightFailureStillMarksRequested(t *testing.T) {
	adv := &scriptedAdvisor{fail: true}
	s, mem, clock := newSession(t, adv)
	advanceTo(t, s, clock, 4)
	insight, err := s.RequestInsight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, text.FallbackInsight, insight)

	reloaded := New(context.Background(), store.NewStateRepo(mem, store.DefaultKey), adv)
	st := reloaded.State()
	assert.True(t, st.InsightRequested)
	require.NotNil(t, st.AIInsight)
	assert.Equal(t, text.FallbackInsight, *st.AIInsight)
}

func TestConcurrentInsightRequestsCallOnce(t *testing.T) {
	adv := &scriptedAdvisor{release: make(chan struct{})}
	s, _, clock := newSession(t, adv)
	advanceTo(t, s, clock, 4)

	var wg sync.WaitGroup
	results := make([]string, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.RequestInsight(context.Background())
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(adv.release)
	wg.Wait()

	assert.Equal(t, int32(1), adv.insightCalls.Load())
	for _, r := range results {
		assert.Equal(t, "You log most waves in the evening.", r)
	}
}

func TestSuggestionOncePerSessionAndNotPersisted(t *testing.T) {
	adv := &scriptedAdvisor{}
	s, mem, clock := newSession(t, adv)
	advanceTo(t, s, clock, 8)
	assert.Contains(t, s.PendingAdvice(), CapSuggestion)

	assert.Equal(t, "Go for a walk.", s.RequestSuggestion(context.Background()))
	assert.Equal(t, "Go for a walk.", s.RequestSuggestion(context.Background()))
	assert.Equal(t, int32(1), adv.suggestionCalls.Load())
	assert.NotContains(t, s.PendingAdvice(), CapSuggestion)

	reloaded := New(context.Background(), store.NewStateRepo(mem, store.DefaultKey), adv)
	_, ok := reloaded.Suggestion()
	assert.False(t, ok)
	assert.Contains(t, reloaded.PendingAdvice(), CapSuggestion)
}

func TestSuggestionFallback(t *testing.T) {
	s, _, _ := newSession(t, &scriptedAdvisor{fail: true})
	assert.Equal(t, text.FallbackSuggestion, s.RequestSuggestion(context.Background()))
}

func TestAlternativesFallback(t *testing.T) {
	s, _, _ := newSession(t, &scriptedAdvisor{fail: true})
	assert.Equal(t, text.FallbackAlternatives(), s.RequestAlternatives(context.Background()))

	ok, _, _ := newSession(t, &scriptedAdvisor{})
	assert.Equal(t, []string{"Walk", "Stretch"}, ok.RequestAlternatives(context.Background()))
}

func TestSurpriseLifecycle(t *testing.T) {
	s, mem, clock := newSession(t, &scriptedAdvisor{})
	assert.False(t, s.OpenSurprise(), "opened at level 1")

	advanceTo(t, s, clock, 5)
	submit(t, s, false)
	require.Equal(t, engine.LevelControl, s.State().Level)
	assert.False(t, s.SurpriseDue(), "due right after a log")

	clock.Advance(2*time.Hour + time.Minute)
	assert.True(t, s.SurpriseDue())

	gen := s.Generation()
	require.True(t, s.OpenSurprise())
	assert.NotEqual(t, gen, s.Generation())
	assert.False(t, s.OpenSurprise(), "opened twice")
	assert.False(t, s.SurpriseDue(), "due while open")

	before := s.State()
	saves := mem.Saves()
	require.NoError(t, s.AnswerSurprise(context.Background()))
	after := s.State()
	assert.Equal(t, before.ControlPoints+engine.SurpriseReward, after.ControlPoints)
	assert.Equal(t, before.CurrentDay, after.CurrentDay)
	assert.Len(t, after.Logs, len(before.Logs))
	assert.Equal(t, saves+1, mem.Saves())
	assert.False(t, s.SurpriseOpen())

	assert.ErrorIs(t, s.AnswerSurprise(context.Background()), ErrNoPrompt)
}

func TestDismissSurpriseAwardsNothing(t *testing.T) {
	s, _, clock := newSession(t, &scriptedAdvisor{})
	advanceTo(t, s, clock, 5)
	require.True(t, s.OpenSurprise())
	points := s.State().ControlPoints
	s.DismissSurprise()
	assert.False(t, s.SurpriseOpen())
	assert.Equal(t, points, s.State().ControlPoints)
}

func TestReset(t *testing.T) {
	s, mem, clock := newSession(t, &scriptedAdvisor{})
	advanceTo(t, s, clock, 9)
	s.RequestSuggestion(context.Background())
	require.NoError(t, s.Reset(context.Background()))
	assert.Empty(t, cmp.Diff(engine.InitialState(), s.State()))
	_, ok := s.Suggestion()
	assert.False(t, ok)

	got, found, err := store.NewStateRepo(mem, store.DefaultKey).Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, got.CurrentDay)
}

func TestResetDuringInsightDropsResult(t *testing.T) {
	adv := &scriptedAdvisor{release: make(chan struct{})}
	s, mem, clock := newSession(t, adv)
	advanceTo(t, s, clock, 4)

	done := make(chan string)
	go func() {
		insight, _ := s.RequestInsight(context.Background())
		done <- insight
	}()
	require.Eventually(t, func() bool { return adv.insightCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Reset(context.Background()))
	close(adv.release)

	assert.Empty(t, <-done)
	assert.Empty(t, cmp.Diff(engine.InitialState(), s.State()))
	got, _, err := store.NewStateRepo(mem, store.DefaultKey).Load(context.Background())
	require.NoError(t, err)
	assert.False(t, got.InsightRequested)
	assert.Nil(t, got.AIInsight)
}
