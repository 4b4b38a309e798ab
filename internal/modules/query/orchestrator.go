package query

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ga-insights/core/internal/modules/analytics/daterange"
	"github.com/ga-insights/core/internal/modules/analytics/report"
	"go.uber.org/zap"
)

// Reports is the slice of the report client the pipeline fetches from.
type Reports interface {
	FetchSummary(ctx context.Context, dr daterange.Spec) (*report.SummaryResult, error)
	FetchTopPages(ctx context.Context, dr daterange.Spec, limit int) (*report.PagesResult, error)
	FetchTrafficSources(ctx context.Context, dr daterange.Spec, limit int) (*report.TrafficResult, error)
	FetchDeviceBreakdown(ctx context.Context, dr daterange.Spec) (*report.DevicesResult, error)
	FetchRealtimeUsers(ctx context.Context) (*report.RealtimeResult, error)
}

type IntentInterpreter interface {
	Interpret(ctx context.Context, question string) (Intent, error)
}

type NarrativeSynthesizer interface {
	Synthesize(ctx context.Context, question string, intent Intent, data report.Result) (string, error)
}

type Options struct {
	Interpreter IntentInterpreter
	Synthesizer NarrativeSynthesizer
	Reports     Reports
	Resolver    *daterange.Resolver
	// Now stamps responses and dates template narratives. Defaults to time.Now.
	Now    func() time.Time
	Logger *zap.Logger
	// RetryDelay is the pause before the single interpretation retry.
	RetryDelay time.Duration
	// OnTransition, when set, observes every state change of every run.
	OnTransition func(State)
}

// Orchestrator runs interpret, fetch and synthesize strictly in sequence for one question.
type Orchestrator struct {
	interpreter  IntentInterpreter
	synthesizer  NarrativeSynthesizer
	reports      Reports
	resolver     *daterange.Resolver
	now          func() time.Time
	logger       *zap.Logger
	retryDelay   time.Duration
	onTransition func(State)
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Interpreter == nil || opts.Synthesizer == nil || opts.Reports == nil {
		return nil, errors.New("query orchestrator requires an interpreter, a synthesizer and a report client")
	}
	o := &Orchestrator{
		interpreter:  opts.Interpreter,
		synthesizer:  opts.Synthesizer,
		reports:      opts.Reports,
		resolver:     opts.Resolver,
		now:          opts.Now,
		logger:       opts.Logger,
		retryDelay:   opts.RetryDelay,
		onTransition: opts.OnTransition,
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.resolver == nil {
		o.resolver = daterange.NewResolver(o.now, nil)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o, nil
}

type run struct {
	o      *Orchestrator
	state  State
	logger *zap.Logger
}

func (r *run) enter(s State) {
	r.logger.Debug("query state", zap.String("from", string(r.state)), zap.String("to", string(s)))
	r.state = s
	if r.o.onTransition != nil {
		r.o.onTransition(s)
	}
}

func (r *run) fail(err error) (*Response, error) {
	r.enter(StateFailed)
	return nil, err
}

// Run answers question. Errors are ErrInvalidInput, ErrBackendUnavailable or a context error;
// interpretation and synthesis failures degrade instead of failing the run.
func (o *Orchestrator) Run(ctx context.Context, question string) (*Response, error) {
	r := &run{o: o, logger: o.logger}
	r.enter(StateReceived)

	question = strings.TrimSpace(question)
	if question == "" {
		return r.fail(fmt.Errorf("%w: question is required", ErrInvalidInput))
	}

	r.enter(StateInterpreting)
	intent, intentSource := o.interpret(ctx, question)
	r.logger = r.logger.With(zap.String("data_type", string(intent.DataType)), zap.String("date_range", string(intent.DateRange)))
	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}

	r.enter(StateFetching)
	data, err := o.fetch(ctx, intent)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return r.fail(ctxErr)
		}
		r.logger.Warn("report fetch failed", zap.Error(err))
		return r.fail(fmt.Errorf("%w: %w", ErrBackendUnavailable, err))
	}

	r.enter(StateSynthesizing)
	narrativeSource := SourceModel
	narrative, err := o.synthesizer.Synthesize(ctx, question, intent, data)
	if err != nil {
		r.logger.Warn("synthesis failed, using template narrative", zap.Error(err))
		narrative = Template(data, o.now().In(o.resolver.Location()))
		narrativeSource = SourceTemplate
	}

	r.enter(StateDone)
	return &Response{
		Question:             question,
		Interpretation:       intent,
		InterpretationSource: intentSource,
		Data:                 data,
		Narrative:            narrative,
		NarrativeSource:      narrativeSource,
		Timestamp:            o.now().UTC(),
	}, nil
}

// interpret tries the model twice, then settles on DefaultIntent.
func (o *Orchestrator) interpret(ctx context.Context, question string) (Intent, string) {
	attempt := 0
	var intent Intent
	op := func() error {
		attempt++
		var err error
		intent, err = o.interpreter.Interpret(ctx, question)
		if err != nil && attempt == 1 {
			o.logger.Warn("interpretation failed, retrying", zap.Error(err))
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(o.retryDelay), 1), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		o.logger.Warn("interpretation failed, using default intent", zap.Int("attempts", attempt), zap.Error(err))
		return DefaultIntent(), SourceDefault
	}
	return intent, SourceModel
}

func (o *Orchestrator) fetch(ctx context.Context, intent Intent) (report.Result, error) {
	if intent.DataType == report.Realtime {
		return o.reports.FetchRealtimeUsers(ctx)
	}

	dr, err := o.resolver.Resolve(intent.DateRange, nil)
	if err != nil {
		return nil, err
	}
	switch intent.DataType {
	case report.Pages:
		return o.reports.FetchTopPages(ctx, dr, report.NormalizeLimit(intent.Limit))
	case report.Traffic:
		return o.reports.FetchTrafficSources(ctx, dr, report.NormalizeLimit(intent.Limit))
	case report.Devices:
		return o.reports.FetchDeviceBreakdown(ctx, dr)
	default:
		return o.reports.FetchSummary(ctx, dr)
	}
}
