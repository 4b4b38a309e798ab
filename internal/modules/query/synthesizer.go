package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/ga-insights/core/internal/modules/ai"
	"github.com/ga-insights/core/internal/modules/analytics/report"
)

// Synthesizer narrates a report with one model call.
type Synthesizer struct {
	completer ai.Completer
	model     string
}

func NewSynthesizer(completer ai.Completer, model string) *Synthesizer {
	return &Synthesizer{completer: completer, model: strings.TrimSpace(model)}
}

// Synthesize does not check the arithmetic in the narrative it returns.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, intent Intent, data report.Result) (string, error) {
	prompt, err := buildSynthPrompt(question, intent, data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}

	reply, err := s.completer.Complete(ctx, ai.Request{
		System:      synthSystemPrompt,
		Prompt:      prompt,
		Temperature: synthTemperature,
		MaxTokens:   synthMaxTokens,
		Model:       s.model,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	narrative := strings.TrimSpace(reply)
	if narrative == "" {
		return "", fmt.Errorf("%w: %w", ErrSynthesisFailed, ai.ErrEmptyResponse)
	}
	return narrative, nil
}
