package query

import (
	"context"
	"sync"

	"github.com/ga-insights/core/internal/modules/ai"
	"github.com/ga-insights/core/internal/modules/analytics/daterange"
	"github.com/ga-insights/core/internal/modules/analytics/report"
)

type completerFunc func(ctx context.Context, req ai.Request) (string, error)

func (f completerFunc) Complete(ctx context.Context, req ai.Request) (string, error) {
	return f(ctx, req)
}

// recorder counts completions per system prompt so tests can tell the two stages apart.
type recorder struct {
	mu        sync.Mutex
	interpret []ai.Request
	synth     []ai.Request
	reply     func(req ai.Request, n int) (string, error)
}

func (r *recorder) Complete(_ context.Context, req ai.Request) (string, error) {
	r.mu.Lock()
	var n int
	if req.System == interpretSystemPrompt {
		r.interpret = append(r.interpret, req)
		n = len(r.interpret)
	} else {
		r.synth = append(r.synth, req)
		n = len(r.synth)
	}
	r.mu.Unlock()
	return r.reply(req, n)
}

func (r *recorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.interpret), len(r.synth)
}

type stubReports struct {
	mu    sync.Mutex
	calls []string
	err   error
	// onCall runs after each fetch is recorded.
	onCall func()

	summary  *report.SummaryResult
	pages    *report.PagesResult
	traffic  *report.TrafficResult
	devices  *report.DevicesResult
	realtime *report.RealtimeResult

	lastRange daterange.Spec
	lastLimit int
}

func (s *stubReports) record(name string, dr daterange.Spec, limit int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
	s.lastRange = dr
	s.lastLimit = limit
	if s.onCall != nil {
		s.onCall()
	}
}

func (s *stubReports) FetchSummary(_ context.Context, dr daterange.Spec) (*report.SummaryResult, error) {
	s.record("summary", dr, 0)
	if s.err != nil {
		return nil, s.err
	}
	if s.summary == nil {
		return &report.SummaryResult{DateRange: dr}, nil
	}
	return s.summary, nil
}

func (s *stubReports) FetchTopPages(_ context.Context, dr daterange.Spec, limit int) (*report.PagesResult, error) {
	s.record("pages", dr, limit)
	if s.err != nil {
		return nil, s.err
	}
	if s.pages == nil {
		return &report.PagesResult{DateRange: dr}, nil
	}
	return s.pages, nil
}

func (s *stubReports) FetchTrafficSources(_ context.Context, dr daterange.Spec, limit int) (*report.TrafficResult, error) {
	s.record("traffic", dr, limit)
	if s.err != nil {
		return nil, s.err
	}
	if s.traffic == nil {
		return &report.TrafficResult{DateRange: dr}, nil
	}
	return s.traffic, nil
}

func (s *stubReports) FetchDeviceBreakdown(_ context.Context, dr daterange.Spec) (*report.DevicesResult, error) {
	s.record("devices", dr, 0)
	if s.err != nil {
		return nil, s.err
	}
	if s.devices == nil {
		return &report.DevicesResult{DateRange: dr}, nil
	}
	return s.devices, nil
}

func (s *stubReports) FetchRealtimeUsers(context.Context) (*report.RealtimeResult, error) {
	s.record("realtime", daterange.Spec{}, 0)
	if s.err != nil {
		return nil, s.err
	}
	if s.realtime == nil {
		return &report.RealtimeResult{}, nil
	}
	return s.realtime, nil
}

func (s *stubReports) callNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}
