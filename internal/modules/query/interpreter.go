package query

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ga-insights/core/internal/modules/ai"
	"github.com/ga-insights/core/internal/modules/analytics/daterange"
	"github.com/ga-insights/core/internal/modules/analytics/report"
)

// Interpreter classifies a question into an Intent with one model call.
type Interpreter struct {
	completer ai.Completer
	model     string
}

// NewInterpreter returns an Interpreter. An empty model keeps the provider default.
func NewInterpreter(completer ai.Completer, model string) *Interpreter {
	return &Interpreter{completer: completer, model: strings.TrimSpace(model)}
}

type rawIntent struct {
	DataType  string `json:"dataType"`
	DateRange string `json:"dateRange"`
	Limit     any    `json:"limit"`
}

// Interpret returns ErrInterpretationFailed when the model call fails or the reply holds no
// JSON object. Out of vocabulary fields are normalized, never rejected.
func (i *Interpreter) Interpret(ctx context.Context, question string) (Intent, error) {
	reply, err := i.completer.Complete(ctx, ai.Request{
		System:      interpretSystemPrompt,
		Prompt:      question,
		Temperature: interpretTemperature,
		MaxTokens:   interpretMaxTokens,
		JSON:        true,
		Model:       i.model,
	})
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %w", ErrInterpretationFailed, err)
	}

	var raw rawIntent
	if err := ai.UnmarshalJSON(reply, &raw); err != nil {
		return Intent{}, fmt.Errorf("%w: %w", ErrInterpretationFailed, err)
	}
	return normalizeIntent(raw), nil
}

func normalizeIntent(raw rawIntent) Intent {
	intent := DefaultIntent()
	if t, ok := report.ParseDataType(raw.DataType); ok {
		intent.DataType = t
	}
	if k, ok := daterange.ParseKeyword(raw.DateRange); ok && k.IsSymbolic() {
		intent.DateRange = k
	}

	switch intent.DataType {
	case report.Pages, report.Traffic:
		intent.Limit = report.NormalizeLimit(limitValue(raw.Limit))
	}
	return intent
}

// limitValue accepts numbers and numeric strings; anything else reads as 0.
func limitValue(v any) int {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || n < 1 {
			return 0
		}
		if n > math.MaxInt32 {
			return math.MaxInt32
		}
		return int(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return limitValue(parsed)
	}
	return 0
}
