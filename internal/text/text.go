package text

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/DaanHessen/rewire/internal/engine"
)

// Advisor produces the encouragement text shown alongside the progression.
type Advisor interface {
	AnalyzeJournal(ctx context.Context, logs []engine.LogEntry) (string, error)
	PersonalizedSuggestion(ctx context.Context, logs []engine.LogEntry) (string, error)
	SurpriseAlternatives(ctx context.Context, logs []engine.LogEntry) ([]string, error)
}

// Fixed content used whenever an advisor call fails.
const (
	FallbackInsight    = "Something went wrong while analysing your notes. Please try again later."
	FallbackSuggestion = "Try taking 3 deep breaths."
	defaultTrigger     = "boredom"
)

// FallbackAlternatives returns the fixed three-item alternatives list.
func FallbackAlternatives() []string {
	return []string{"Breathe deeply", "Move a little", "Drink water"}
}

// FormatLogs renders the log history as the transcript embedded in every prompt.
func FormatLogs(logs []engine.LogEntry) string {
	if len(logs) == 0 {
		return "No logs yet."
	}
	lines := make([]string, 0, len(logs))
	for _, l := range logs {
		lines = append(lines, fmt.Sprintf("- Day %d: felt '%s' due to '%s'. %s", l.Day, l.Feeling, l.Trigger, l.Outcome()))
	}
	return strings.Join(lines, "\n")
}

// LatestTrigger is the trigger of the last log, or a generic default.
func LatestTrigger(logs []engine.LogEntry) string {
	if len(logs) == 0 {
		return defaultTrigger
	}
	return logs[len(logs)-1].Trigger
}

func insightPrompt(logs []engine.LogEntry) string {
	return fmt.Sprintf(`You are a coach who specialises in helping people quit habits.
Analyse these daily notes from someone trying to break a bad habit.
Give them one short, simple and motivating paragraph (two or three sentences).
Focus on patterns in feelings and triggers they might not notice. Be positive and supportive.

User notes:
%s
`, FormatLogs(logs))
}

func suggestionPrompt(logs []engine.LogEntry) string {
	return fmt.Sprintf(`You are a smart and creative coach. Based on this user's log, suggest one specific,
effective alternative they can try the next time they face the trigger '%s'.
The suggestion must be simple and practical.

User log:
%s
`, LatestTrigger(logs), FormatLogs(logs))
}

func alternativesPrompt(logs []engine.LogEntry) string {
	return fmt.Sprintf(`Based on this user's log, suggest 3 very short (one or two words), different
alternatives they can do right now to face the urge.
Log: %s
`, FormatLogs(logs))
}

// templateAdvisor is a deterministic, offline advisor used when no API key is configured.
type templateAdvisor struct{}

func NewTemplateAdvisor() Advisor { return &templateAdvisor{} }

func (t *templateAdvisor) AnalyzeJournal(ctx context.Context, logs []engine.LogEntry) (string, error) {
	if len(logs) == 0 {
		return "Log your next wave and patterns will start to show.", nil
	}
	wins := 0
	for _, l := range logs {
		if l.Succeeded {
			wins++
		}
	}
	feeling, trigger := mostFrequent(logs, func(l engine.LogEntry) string { return l.Feeling }), mostFrequent(logs, func(l engine.LogEntry) string { return l.Trigger })
	var b strings.Builder
	fmt.Fprintf(&b, "You rode out %d of %d waves so far. ", wins, len(logs))
	fmt.Fprintf(&b, "Most urges arrived while feeling **%s**, and **%s** shows up as the usual trigger. ", feeling, trigger)
	b.WriteString("Naming the pattern is half the work; plan something for that moment before it comes.")
	return b.String(), nil
}

func (t *templateAdvisor) PersonalizedSuggestion(ctx context.Context, logs []engine.LogEntry) (string, error) {
	return fmt.Sprintf("Next time **%s** hits, stand up, walk to another room and drink a glass of water before deciding anything.", LatestTrigger(logs)), nil
}

func (t *templateAdvisor) SurpriseAlternatives(ctx context.Context, logs []engine.LogEntry) ([]string, error) {
	return []string{"Short walk", "Cold water", "Call a friend"}, nil
}

// mostFrequent returns the most common non-empty key, ties broken alphabetically.
func mostFrequent(logs []engine.LogEntry, key func(engine.LogEntry) string) string {
	counts := map[string]int{}
	for _, l := range logs {
		k := strings.ToLower(strings.TrimSpace(key(l)))
		if k != "" {
			counts[k]++
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) == 0 {
		return "unknown"
	}
	return keys[0]
}
