// Package result retrieves the computed outcome of a dispatched
// message, accounting for eventual availability: the compute endpoint
// may legitimately answer "not found" until evaluation catches up.
package result

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"

	"github.com/permagate/aogo/client"
	"github.com/permagate/aogo/core"
)

var tracer = otel.Tracer("result")

// PollPolicy bounds the Wait loop. Interval is the initial spacing
// between polls; Window is the total time before the result is
// declared unavailable.
type PollPolicy struct {
	Interval time.Duration
	Window   time.Duration
}

func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Interval: core.DefaultPollInterval,
		Window:   core.DefaultPollWindow,
	}
}

// Options carries per-call overrides.
type Options struct {
	EndpointOverride string
	Window           time.Duration
}

type Service interface {
	// Get performs a single fetch. A result the network has not
	// produced yet surfaces as core.ErrNotYetAvailable.
	Get(ctx context.Context, processID, messageID string, opts Options) (core.Result, error)
	// Wait polls until the result is available or the poll window
	// closes, whichever comes first.
	Wait(ctx context.Context, processID, messageID string, opts Options) (core.Result, error)
}

type service struct {
	client client.Client
	cuURL  string
	poll   PollPolicy
}

func NewService(c client.Client, cuURL string, poll PollPolicy) Service {
	if cuURL == "" {
		cuURL = core.DefaultCUURL
	}
	if poll == (PollPolicy{}) {
		poll = DefaultPollPolicy()
	}
	return &service{
		client: c,
		cuURL:  cuURL,
		poll:   poll,
	}
}

func (s *service) endpoint(opts Options) string {
	if opts.EndpointOverride != "" {
		return opts.EndpointOverride
	}
	return s.cuURL
}

func (s *service) Get(ctx context.Context, processID, messageID string, opts Options) (core.Result, error) {
	ctx, span := tracer.Start(ctx, "Result.Service.Get")
	defer span.End()

	result, err := s.client.GetResult(ctx, s.endpoint(opts), processID, messageID)
	if err != nil && !errors.Is(err, core.ErrNotYetAvailable) {
		span.RecordError(err)
	}
	return result, err
}

func (s *service) Wait(ctx context.Context, processID, messageID string, opts Options) (core.Result, error) {
	ctx, span := tracer.Start(ctx, "Result.Service.Wait")
	defer span.End()

	window := s.poll.Window
	if opts.Window > 0 {
		window = opts.Window
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.poll.Interval
	b.MaxInterval = 4 * s.poll.Interval
	b.MaxElapsedTime = window

	var result core.Result
	attempt := func() error {
		var err error
		result, err = s.client.GetResult(ctx, s.endpoint(opts), processID, messageID)
		if err == nil {
			return nil
		}
		if core.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(attempt, backoff.WithContext(b, ctx))
	if err == nil {
		return result, nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.Result{}, core.NewCancelledError(err)
	}
	if errors.Is(err, core.ErrNotYetAvailable) {
		slog.DebugContext(ctx, "poll window exhausted",
			slog.String("module", "result"),
			slog.String("processID", processID),
			slog.String("messageID", messageID),
		)
		return core.Result{}, core.NewResultUnavailableError(processID, messageID)
	}
	return core.Result{}, err
}
