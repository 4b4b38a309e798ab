package query

import (
	"time"

	"github.com/ga-insights/core/internal/modules/analytics/daterange"
	"github.com/ga-insights/core/internal/modules/analytics/report"
)

// Intent is the structured reading of one question.
type Intent struct {
	DataType  report.DataType   `json:"dataType"`
	DateRange daterange.Keyword `json:"dateRange"`
	Limit     int               `json:"limit,omitempty"`
}

// DefaultIntent is used when the question cannot be interpreted.
func DefaultIntent() Intent {
	return Intent{DataType: report.Summary, DateRange: daterange.Default}
}

// State is a step of the per-request pipeline.
type State string

const (
	StateReceived     State = "RECEIVED"
	StateInterpreting State = "INTERPRETING"
	StateFetching     State = "FETCHING"
	StateSynthesizing State = "SYNTHESIZING"
	StateDone         State = "DONE"
	StateFailed       State = "FAILED"
)

const (
	SourceModel    = "model"
	SourceDefault  = "default"
	SourceTemplate = "template"
)

// Response is the answer to one question. It is never mutated after Run returns.
type Response struct {
	Question             string        `json:"question"`
	Interpretation       Intent        `json:"interpretation"`
	InterpretationSource string        `json:"interpretationSource"`
	Data                 report.Result `json:"data"`
	Narrative            string        `json:"narrative"`
	NarrativeSource      string        `json:"narrativeSource"`
	NarrativeHTML        string        `json:"narrativeHtml,omitempty"`
	Timestamp            time.Time     `json:"timestamp"`
}
