package text

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/DaanHessen/rewire/internal/engine"
)

// DefaultModel is used when the config leaves the model empty.
const DefaultModel = "gemini-2.5-flash"

const maxAlternatives = 3

// contentGenerator is the slice of *genai.Models the advisor needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini asks Google's Gemini API for insight, suggestions and alternatives.
type Gemini struct {
	models contentGenerator
	model  string
}

// NewGemini creates a Gemini advisor. An empty key is an error so callers can
// fall back to the template advisor.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &Gemini{models: client.Models, model: model}, nil
}

// Name returns the advisor name.
func (g *Gemini) Name() string { return "genai:" + g.model }

func (g *Gemini) generate(ctx context.Context, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", errors.Wrap(err, "generate content")
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", errors.New("empty response")
	}
	return out, nil
}

func (g *Gemini) AnalyzeJournal(ctx context.Context, logs []engine.LogEntry) (string, error) {
	return g.generate(ctx, insightPrompt(logs), nil)
}

func (g *Gemini) PersonalizedSuggestion(ctx context.Context, logs []engine.LogEntry) (string, error) {
	return g.generate(ctx, suggestionPrompt(logs), nil)
}

func (g *Gemini) SurpriseAlternatives(ctx context.Context, logs []engine.LogEntry) ([]string, error) {
	raw, err := g.generate(ctx, alternativesPrompt(logs), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"alternatives": {
					Type:  genai.TypeArray,
					Items: &genai.Schema{Type: genai.TypeString},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return parseAlternatives(raw)
}

// parseAlternatives decodes {"alternatives": [...]} and normalises the list.
func parseAlternatives(raw string) ([]string, error) {
	var payload struct {
		Alternatives []string `json:"alternatives"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, errors.Wrap(err, "decode alternatives")
	}
	return normalizeAlternatives(payload.Alternatives)
}

// normalizeAlternatives trims labels, drops blanks and keeps at most three.
// Fewer than two usable labels counts as a malformed response.
func normalizeAlternatives(in []string) ([]string, error) {
	out := make([]string, 0, maxAlternatives)
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		out = append(out, a)
		if len(out) == maxAlternatives {
			break
		}
	}
	if len(out) < 2 {
		return nil, errors.Errorf("expected 2-3 alternatives, got %d", len(out))
	}
	return out, nil
}
