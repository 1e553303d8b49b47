package text

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"

	"github.com/DaanHessen/rewire/internal/engine"
)

var sampleLogs = []engine.LogEntry{
	{Day: 1, Feeling: "bored", Trigger: "phone", Succeeded: true, Timestamp: 1},
	{Day: 2, Feeling: "anxious", Trigger: "deadline", Succeeded: false, Timestamp: 2},
	{Day: 2, Feeling: "Bored", Trigger: "phone", Succeeded: true, Timestamp: 3},
}

type fakeModels struct {
	reply   string
	err     error
	prompts []string
	configs []*genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.prompts = append(f.prompts, contents[0].Parts[0].Text)
	f.configs = append(f.configs, cfg)
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(f.reply, genai.RoleModel)}},
	}, nil
}

type failingAdvisor struct{ alts []string }

func (failingAdvisor) AnalyzeJournal(context.Context, []engine.LogEntry) (string, error) {
	return "", errors.New("quota exceeded")
}
func (failingAdvisor) PersonalizedSuggestion(context.Context, []engine.LogEntry) (string, error) {
	return "", errors.New("quota exceeded")
}
func (f failingAdvisor) SurpriseAlternatives(context.Context, []engine.LogEntry) ([]string, error) {
	if f.alts != nil {
		return f.alts, nil
	}
	return nil, errors.New("quota exceeded")
}

func TestFormatLogsTranscript(t *testing.T) {
	assert.Equal(t, "No logs yet.", FormatLogs(nil))
	got := FormatLogs(sampleLogs[:2])
	assert.Equal(t, "- Day 1: felt 'bored' due to 'phone'. Resisted successfully.\n- Day 2: felt 'anxious' due to 'deadline'. Did not resist.", got)
}

func TestLatestTriggerDefault(t *testing.T) {
	assert.Equal(t, "boredom", LatestTrigger(nil))
	assert.Equal(t, "phone", LatestTrigger(sampleLogs))
}

func TestGeminiPromptsEmbedTranscript(t *testing.T) {
	fm := &fakeModels{reply: "  Keep going.  "}
	g := &Gemini{models: fm, model: DefaultModel}
	out, err := g.AnalyzeJournal(context.Background(), sampleLogs)
	require.NoError(t, err)
	assert.Equal(t, "Keep going.", out)
	assert.Contains(t, fm.prompts[0], FormatLogs(sampleLogs))

	_, err = g.PersonalizedSuggestion(context.Background(), sampleLogs)
	require.NoError(t, err)
	assert.Contains(t, fm.prompts[1], "trigger 'phone'")
}

func TestGeminiAlternativesUsesJSONSchema(t *testing.T) {
	fm := &fakeModels{reply: `{"alternatives":[" Walk ","Stretch","Tea","Read"]}`}
	g := &Gemini{models: fm, model: DefaultModel}
	alts, err := g.SurpriseAlternatives(context.Background(), sampleLogs)
	require.NoError(t, err)
	assert.Equal(t, []string{"Walk", "Stretch", "Tea"}, alts)
	require.NotNil(t, fm.configs[0])
	assert.Equal(t, "application/json", fm.configs[0].ResponseMIMEType)
	assert.Equal(t, genai.TypeArray, fm.configs[0].ResponseSchema.Properties["alternatives"].Type)
}

func TestParseAlternativesMalformed(t *testing.T) {
	for _, raw := range []string{"not json", `{"alternatives":[]}`, `{"other":["a","b"]}`, `{"alternatives":["only one"," "]}`} {
		_, err := parseAlternatives(raw)
		assert.Error(t, err, raw)
	}
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), "", "")
	assert.Error(t, err)
}

func TestFallbackOnFailure(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	a := WithFallback(failingAdvisor{}, zap.New(core))
	ctx := context.Background()

	insight, err := a.AnalyzeJournal(ctx, sampleLogs)
	require.NoError(t, err)
	assert.Equal(t, FallbackInsight, insight)

	suggestion, err := a.PersonalizedSuggestion(ctx, sampleLogs)
	require.NoError(t, err)
	assert.Equal(t, FallbackSuggestion, suggestion)

	alts, err := a.SurpriseAlternatives(ctx, sampleLogs)
	require.NoError(t, err)
	assert.Equal(t, FallbackAlternatives(), alts)

	assert.Equal(t, 3, logs.FilterMessage("advisory call failed, using fallback").Len())
}

func TestFallbackOnShortAlternatives(t *testing.T) {
	a := WithFallback(failingAdvisor{alts: []string{"walk"}}, nil)
	alts, err := a.SurpriseAlternatives(context.Background(), sampleLogs)
	require.NoError(t, err)
	assert.Len(t, alts, 3)
}

func TestFallbackAlternativesNotShared(t *testing.T) {
	a := FallbackAlternatives()
	a[0] = "mutated"
	assert.Equal(t, "Breathe deeply", FallbackAlternatives()[0])
}

func TestTemplateAdvisorSummarisesPatterns(t *testing.T) {
	a := NewTemplateAdvisor()
	out, err := a.AnalyzeJournal(context.Background(), sampleLogs)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "You rode out 2 of 3 waves"), out)
	assert.Contains(t, out, "**bored**")
	assert.Contains(t, out, "**phone**")

	alts, err := a.SurpriseAlternatives(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, alts, 3)
}
