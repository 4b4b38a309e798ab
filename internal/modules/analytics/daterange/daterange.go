package daterange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Layout is the wire format of every resolved date.
const Layout = "2006-01-02"

// Keyword is a symbolic date range accepted by the report endpoints.
type Keyword string

const (
	Today        Keyword = "today"
	Yesterday    Keyword = "yesterday"
	Last7Days    Keyword = "7days"
	Last30Days   Keyword = "30days"
	Last90Days   Keyword = "90days"
	Last12Months Keyword = "12months"
	Custom       Keyword = "custom"
)

// Default is used whenever a caller or the interpreter gives no usable keyword.
const Default = Last30Days

var (
	ErrInvalidRange   = errors.New("invalid date range")
	ErrUnknownKeyword = errors.New("unknown date range keyword")
)

var symbolic = []Keyword{Today, Yesterday, Last7Days, Last30Days, Last90Days, Last12Months}

// Symbolic lists the keywords that resolve without explicit dates.
func Symbolic() []Keyword {
	out := make([]Keyword, len(symbolic))
	copy(out, symbolic)
	return out
}

// ParseKeyword normalizes raw input. ok is false for anything outside the vocabulary.
func ParseKeyword(raw string) (Keyword, bool) {
	k := Keyword(strings.ToLower(strings.TrimSpace(raw)))
	if k == Custom {
		return k, true
	}
	for _, s := range symbolic {
		if s == k {
			return k, true
		}
	}
	return "", false
}

// IsSymbolic reports whether k resolves from the clock alone.
func (k Keyword) IsSymbolic() bool {
	for _, s := range symbolic {
		if s == k {
			return true
		}
	}
	return false
}

// Spec is a resolved range. StartDate <= EndDate always holds.
type Spec struct {
	Keyword   Keyword `json:"keyword"`
	StartDate string  `json:"startDate"`
	EndDate   string  `json:"endDate"`
}

// Explicit carries caller supplied bounds for the custom keyword.
type Explicit struct {
	StartDate string
	EndDate   string
}

// Resolver turns keywords into concrete dates relative to an injected clock.
type Resolver struct {
	now func() time.Time
	loc *time.Location
}

// NewResolver builds a resolver. nil now falls back to time.Now, nil loc to time.Local.
func NewResolver(now func() time.Time, loc *time.Location) *Resolver {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{now: now, loc: loc}
}

// Location returns the zone "today" is evaluated in.
func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve converts keyword (and explicit bounds for custom) into a Spec.
// "today" is evaluated at call time, so results must not be cached across days.
func (r *Resolver) Resolve(keyword Keyword, explicit *Explicit) (Spec, error) {
	if keyword == Custom {
		return r.resolveCustom(explicit)
	}

	t := r.now().In(r.loc)
	today := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, r.loc)

	start, end := today, today
	switch keyword {
	case Today:
	case Yesterday:
		start = today.AddDate(0, 0, -1)
		end = start
	case Last7Days:
		start = today.AddDate(0, 0, -7)
	case Last30Days:
		start = today.AddDate(0, 0, -30)
	case Last90Days:
		start = today.AddDate(0, 0, -90)
	case Last12Months:
		start = today.AddDate(0, -12, 0)
	default:
		return Spec{}, fmt.Errorf("%w: %q", ErrUnknownKeyword, string(keyword))
	}

	return Spec{
		Keyword:   keyword,
		StartDate: start.Format(Layout),
		EndDate:   end.Format(Layout),
	}, nil
}

func (r *Resolver) resolveCustom(explicit *Explicit) (Spec, error) {
	if explicit == nil {
		return Spec{}, fmt.Errorf("%w: custom range requires startDate and endDate", ErrInvalidRange)
	}
	rawStart := strings.TrimSpace(explicit.StartDate)
	rawEnd := strings.TrimSpace(explicit.EndDate)
	if rawStart == "" || rawEnd == "" {
		return Spec{}, fmt.Errorf("%w: custom range requires startDate and endDate", ErrInvalidRange)
	}

	start, err := time.ParseInLocation(Layout, rawStart, r.loc)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: startDate %q is not YYYY-MM-DD", ErrInvalidRange, rawStart)
	}
	end, err := time.ParseInLocation(Layout, rawEnd, r.loc)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: endDate %q is not YYYY-MM-DD", ErrInvalidRange, rawEnd)
	}
	if start.After(end) {
		return Spec{}, fmt.Errorf("%w: startDate %s is after endDate %s", ErrInvalidRange, rawStart, rawEnd)
	}

	return Spec{
		Keyword:   Custom,
		StartDate: start.Format(Layout),
		EndDate:   end.Format(Layout),
	}, nil
}
