package adapter

import (
	"context"

	"github.com/ga-insights/core/internal/modules/analytics/report"
	"golang.org/x/sync/errgroup"
)

// Section is one independently fetched part of an overview.
type Section[T any] struct {
	Data  *T     `json:"data,omitempty"`
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func newSection[T any](data *T, err error) Section[T] {
	if err != nil {
		return Section[T]{Err: err, Error: UserMessage(err)}
	}
	return Section[T]{Data: data}
}

// Overview is the dashboard landing page data.
type Overview struct {
	DateRange string                          `json:"dateRange"`
	Summary   Section[report.SummaryResult]  `json:"summary"`
	Pages     Section[report.PagesResult]    `json:"pages"`
	Traffic   Section[report.TrafficResult]  `json:"traffic"`
	Devices   Section[report.DevicesResult]  `json:"devices"`
	Realtime  Section[report.RealtimeResult] `json:"realtime"`
}

// Failed counts sections that carry an error.
func (o *Overview) Failed() int {
	n := 0
	for _, err := range []error{o.Summary.Err, o.Pages.Err, o.Traffic.Err, o.Devices.Err, o.Realtime.Err} {
		if err != nil {
			n++
		}
	}
	return n
}

// Overview fetches every section concurrently and waits for all of them. A failed section
// carries its own error and never cancels the others.
func (c *Client) Overview(ctx context.Context, dateRange string) *Overview {
	out := &Overview{DateRange: dateRange}

	var g errgroup.Group
	g.Go(func() error {
		data, err := c.Summary(ctx, dateRange)
		out.Summary = newSection(data, err)
		return nil
	})
	g.Go(func() error {
		data, err := c.Pages(ctx, dateRange, report.DefaultLimit)
		out.Pages = newSection(data, err)
		return nil
	})
	g.Go(func() error {
		data, err := c.Traffic(ctx, dateRange, report.DefaultLimit)
		out.Traffic = newSection(data, err)
		return nil
	})
	g.Go(func() error {
		data, err := c.Devices(ctx, dateRange)
		out.Devices = newSection(data, err)
		return nil
	})
	g.Go(func() error {
		data, err := c.Realtime(ctx)
		out.Realtime = newSection(data, err)
		return nil
	})
	_ = g.Wait()

	// Concurrent calls race on the last-call flag, so settle it from the joined result.
	c.mu.Lock()
	c.lastCallOK = out.Failed() == 0
	c.mu.Unlock()
	return out
}
