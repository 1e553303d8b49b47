package engine

import (
	"errors"
	"testing"
	"time"
)

var testZone = time.FixedZone("UTC+3", 3*60*60)

func at(day, hour int) time.Time {
	return time.Date(2026, time.March, day, hour, 0, 0, 0, testZone)
}

func stateAt(day int) ProgressState {
	s := InitialState()
	s.CurrentDay = day
	s.Level = LevelFor(day)
	return s
}

func mustSubmit(t *testing.T, s ProgressState, succeeded bool, now time.Time) ProgressState {
	t.Helper()
	next, _, err := SubmitLog(s, Submission{Feeling: "bored", Trigger: "phone", Succeeded: succeeded}, now)
	if err != nil {
		t.Fatalf("SubmitLog: %v", err)
	}
	return next
}

func TestLevelForFloors(t *testing.T) {
	cases := map[int]Level{1: 1, 3: 1, 4: 2, 7: 2, 8: 3, 40: 3}
	for day, want := range cases {
		if got := LevelFor(day); got != want {
			t.Fatalf("LevelFor(%d) = %d, want %d", day, got, want)
		}
		if LevelFloor(want) > day {
			t.Fatalf("floor of level %d above day %d", want, day)
		}
	}
}

func TestFirstSuccessAdvancesDay(t *testing.T) {
	next := mustSubmit(t, InitialState(), true, at(1, 9))
	if next.CurrentDay != 2 || next.Level != LevelAwareness || next.AwarenessPoints != 1 {
		t.Fatalf("unexpected state after first success: %+v", next)
	}
	if next.LastSuccessTimestamp == nil || *next.LastSuccessTimestamp != at(1, 9).UnixMilli() {
		t.Fatalf("lastSuccessTimestamp not stamped")
	}
	if len(next.Logs) != 1 || next.Logs[0].Day != 1 {
		t.Fatalf("log should be stamped with the pre-advance day: %+v", next.Logs)
	}
}

func TestSameDaySuccessDoesNotAdvanceTwice(t *testing.T) {
	s := mustSubmit(t, InitialState(), true, at(1, 9))
	s = mustSubmit(t, s, true, at(1, 22))
	if s.CurrentDay != 2 {
		t.Fatalf("second success on same date advanced day to %d", s.CurrentDay)
	}
	if s.AwarenessPoints != 2 {
		t.Fatalf("same-day success should still award a point, got %d", s.AwarenessPoints)
	}
	if *s.LastSuccessTimestamp != at(1, 9).UnixMilli() {
		t.Fatalf("lastSuccessTimestamp moved on a non-advancing success")
	}
	s = mustSubmit(t, s, true, at(2, 0))
	if s.CurrentDay != 3 {
		t.Fatalf("success after midnight should advance, got day %d", s.CurrentDay)
	}
}

func TestCalendarDateUsesLocalTime(t *testing.T) {
	// 23:30 local on the 1st and 00:30 local on the 2nd are the same UTC date.
	first := time.Date(2026, time.March, 1, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*60*60))
	second := first.Add(time.Hour)
	s := mustSubmit(t, InitialState(), true, first)
	s = mustSubmit(t, s, true, second)
	if s.CurrentDay != 3 {
		t.Fatalf("expected advance across local midnight, got day %d", s.CurrentDay)
	}
}

func TestFailureAtFloorKeepsDay(t *testing.T) {
	s := stateAt(4)
	next := mustSubmit(t, s, false, at(5, 10))
	if next.CurrentDay != 4 || next.Level != LevelControl || next.ControlPoints != 0 {
		t.Fatalf("failure at floor changed state: %+v", next)
	}
	if len(next.Logs) != 1 {
		t.Fatalf("failure should still append a log")
	}
}

func TestFailureRegressesOneDay(t *testing.T) {
	next := mustSubmit(t, stateAt(6), false, at(5, 10))
	if next.CurrentDay != 5 || next.Level != LevelControl {
		t.Fatalf("expected day 5 level 2, got %+v", next)
	}
	next = mustSubmit(t, stateAt(3), false, at(5, 10))
	if next.CurrentDay != 2 {
		t.Fatalf("expected day 2, got %d", next.CurrentDay)
	}
}

func TestSuccessCrossesLevel(t *testing.T) {
	next := mustSubmit(t, stateAt(7), true, at(9, 8))
	if next.CurrentDay != 8 || next.Level != LevelSwitching {
		t.Fatalf("expected day 8 level 3, got %+v", next)
	}
	// The point belongs to the level held before the advance.
	if next.ControlPoints != 1 || next.Energy != 0 {
		t.Fatalf("point awarded to wrong counter: %+v", next)
	}
}

func TestEmptyFieldsRejected(t *testing.T) {
	s := stateAt(2)
	for _, sub := range []Submission{
		{Feeling: "", Trigger: "work"},
		{Feeling: "   ", Trigger: "work"},
		{Feeling: "tired", Trigger: "\t\n"},
	} {
		next, _, err := SubmitLog(s, sub, at(1, 1))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected ValidationError for %+v, got %v", sub, err)
		}
		if next.CurrentDay != s.CurrentDay || len(next.Logs) != 0 {
			t.Fatalf("rejected submission mutated state")
		}
	}
}

func TestSubmitDoesNotMutateInput(t *testing.T) {
	s := mustSubmit(t, InitialState(), true, at(1, 9))
	before := s.Clone()
	_ = mustSubmit(t, s, true, at(2, 9))
	if s.CurrentDay != before.CurrentDay || len(s.Logs) != len(before.Logs) || *s.LastSuccessTimestamp != *before.LastSuccessTimestamp {
		t.Fatalf("SubmitLog mutated its input")
	}
}

func TestInvariantsHoldOverRandomWalk(t *testing.T) {
	seed, _ := NewSeed("walk")
	r := seed.Stream("outcomes")
	s := InitialState()
	now := at(1, 8)
	for i := 0; i < 500; i++ {
		prev := s
		now = now.Add(time.Duration(r.Int63n(int64(30 * time.Hour))))
		s = mustSubmit(t, s, r.Float64() < 0.6, now)
		if err := s.Validate(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if s.CurrentDay < LevelFloor(prev.Level) {
			t.Fatalf("step %d: day %d fell below floor of level %d", i, s.CurrentDay, prev.Level)
		}
		if s.AwarenessPoints < prev.AwarenessPoints || s.ControlPoints < prev.ControlPoints || s.Energy < prev.Energy {
			t.Fatalf("step %d: points decreased", i)
		}
		if len(s.Logs) != len(prev.Logs)+1 {
			t.Fatalf("step %d: logs grew by %d", i, len(s.Logs)-len(prev.Logs))
		}
	}
}

func TestSurpriseAnswerAwardsControl(t *testing.T) {
	s := mustSubmit(t, stateAt(5), false, at(1, 1))
	next := ApplySurpriseAnswer(s)
	if next.ControlPoints != s.ControlPoints+SurpriseReward {
		t.Fatalf("expected +%d control, got %d", SurpriseReward, next.ControlPoints)
	}
	if next.CurrentDay != s.CurrentDay || next.Level != s.Level || len(next.Logs) != len(s.Logs) {
		t.Fatalf("surprise answer touched day/level/logs")
	}
}

func TestNeedsInsight(t *testing.T) {
	if stateAt(3).NeedsInsight() {
		t.Fatal("insight due before day 4")
	}
	s := stateAt(4)
	if !s.NeedsInsight() {
		t.Fatal("insight not due at day 4")
	}
	s = ApplyInsight(s, "keep going")
	if s.NeedsInsight() || s.AIInsight == nil || *s.AIInsight != "keep going" {
		t.Fatalf("ApplyInsight did not record insight: %+v", s)
	}
}

func TestValidateRejectsMismatchedLevel(t *testing.T) {
	s := stateAt(5)
	s.Level = LevelAwareness
	if err := s.Validate(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}
