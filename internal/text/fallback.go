package text

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DaanHessen/rewire/internal/engine"
)

// WithFallback returns an advisor that never fails: any error from primary is
// logged and replaced by the fixed fallback content. Calls are not retried.
func WithFallback(primary Advisor, log *zap.Logger) Advisor {
	if log == nil {
		log = zap.NewNop()
	}
	return &fallbackAdvisor{p: primary, log: log.With(zap.String("component", "advisor"))}
}

type fallbackAdvisor struct {
	p   Advisor
	log *zap.Logger
}

func (a *fallbackAdvisor) failed(capability string, err error) {
	a.log.Warn("advisory call failed, using fallback",
		zap.String("capability", capability),
		zap.String("request_id", uuid.NewString()),
		zap.Error(err))
}

func (a *fallbackAdvisor) AnalyzeJournal(ctx context.Context, logs []engine.LogEntry) (string, error) {
	if a.p == nil {
		return FallbackInsight, nil
	}
	s, err := a.p.AnalyzeJournal(ctx, logs)
	if err != nil || s == "" {
		a.failed("insight", orEmpty(err))
		return FallbackInsight, nil
	}
	return s, nil
}

func (a *fallbackAdvisor) PersonalizedSuggestion(ctx context.Context, logs []engine.LogEntry) (string, error) {
	if a.p == nil {
		return FallbackSuggestion, nil
	}
	s, err := a.p.PersonalizedSuggestion(ctx, logs)
	if err != nil || s == "" {
		a.failed("suggestion", orEmpty(err))
		return FallbackSuggestion, nil
	}
	return s, nil
}

func (a *fallbackAdvisor) SurpriseAlternatives(ctx context.Context, logs []engine.LogEntry) ([]string, error) {
	if a.p == nil {
		return FallbackAlternatives(), nil
	}
	alts, err := a.p.SurpriseAlternatives(ctx, logs)
	if err == nil {
		alts, err = normalizeAlternatives(alts)
	}
	if err != nil {
		a.failed("alternatives", err)
		return FallbackAlternatives(), nil
	}
	return alts, nil
}

type emptyResponseError struct{}

func (emptyResponseError) Error() string { return "empty response" }

func orEmpty(err error) error {
	if err == nil {
		return emptyResponseError{}
	}
	return err
}
