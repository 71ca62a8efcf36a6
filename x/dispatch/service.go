// Package dispatch composes the envelope signer, the scheduler
// resolver and the network client into the user-facing operations:
// spawn, message, dry-run, assign and cron monitoring. Envelopes are
// built and signed exactly once, so a retried dispatch re-sends the
// identical bytes and the receiving service can deduplicate by
// content id.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/rs/xid"
	"go.opentelemetry.io/otel"

	"github.com/permagate/aogo/client"
	"github.com/permagate/aogo/core"
	"github.com/permagate/aogo/x/dataitem"
	"github.com/permagate/aogo/x/scheduler"
	"github.com/permagate/aogo/x/signer"
	"github.com/permagate/aogo/x/tags"
)

var tracer = otel.Tracer("dispatch")

// Options carries the per-call knobs every operation recognizes.
// MaxRetries of 0 keeps the service default; a negative value disables
// retries for the call.
type Options struct {
	EndpointOverride string
	MaxRetries       int
}

type Service interface {
	Spawn(ctx context.Context, moduleID, schedulerAddr string, data []byte, userTags []core.Tag, s signer.Signer, opts Options) (string, error)
	Message(ctx context.Context, processID string, data []byte, userTags []core.Tag, anchor []byte, s signer.Signer, opts Options) (string, error)
	DryRun(ctx context.Context, processID string, data []byte, userTags []core.Tag, opts Options) (core.Result, error)
	Assign(ctx context.Context, processID, txID string, baseLayer bool, opts Options) (string, error)
	Monitor(ctx context.Context, processID string, s signer.Signer, opts Options) error
	Unmonitor(ctx context.Context, processID string, s signer.Signer, opts Options) error
}

type service struct {
	client  client.Client
	locator scheduler.Service
	cuURL   string
	retry   RetryPolicy
}

func NewService(c client.Client, locator scheduler.Service, cuURL string, retry RetryPolicy) Service {
	if cuURL == "" {
		cuURL = core.DefaultCUURL
	}
	if retry == (RetryPolicy{}) {
		retry = DefaultRetryPolicy()
	}
	return &service{
		client:  c,
		locator: locator,
		cuURL:   cuURL,
		retry:   retry,
	}
}

func (s *service) Spawn(ctx context.Context, moduleID, schedulerAddr string, data []byte, userTags []core.Tag, sg signer.Signer, opts Options) (string, error) {
	ctx, span := tracer.Start(ctx, "Dispatch.Service.Spawn")
	defer span.End()

	item, err := s.buildEnvelope("", nil, data, userTags, sg, []core.Tag{
		{Name: core.TagDataProtocol, Value: core.DataProtocol},
		{Name: core.TagVariant, Value: core.Variant},
		{Name: core.TagType, Value: core.TypeProcess},
		{Name: core.TagModule, Value: moduleID},
		{Name: core.TagScheduler, Value: schedulerAddr},
		{Name: core.TagSDK, Value: core.SDKName},
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	endpoint := opts.EndpointOverride
	if endpoint == "" {
		loc, err := s.locate(ctx, opts, func(ctx context.Context) (core.SchedulerLocation, error) {
			return s.locator.LocateScheduler(ctx, schedulerAddr)
		})
		if err != nil {
			span.RecordError(err)
			return "", err
		}
		endpoint = loc.URL
	}

	resp, err := s.send(ctx, "spawn", endpoint, item, sg, opts)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	slog.InfoContext(ctx, "spawned process",
		slog.String("module", "dispatch"),
		slog.String("processID", resp.ID),
		slog.String("moduleID", moduleID),
	)
	return resp.ID, nil
}

func (s *service) Message(ctx context.Context, processID string, data []byte, userTags []core.Tag, anchor []byte, sg signer.Signer, opts Options) (string, error) {
	ctx, span := tracer.Start(ctx, "Dispatch.Service.Message")
	defer span.End()

	item, err := s.buildEnvelope(processID, anchor, data, userTags, sg, []core.Tag{
		{Name: core.TagDataProtocol, Value: core.DataProtocol},
		{Name: core.TagVariant, Value: core.Variant},
		{Name: core.TagType, Value: core.TypeMessage},
		{Name: core.TagSDK, Value: core.SDKName},
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	endpoint := opts.EndpointOverride
	stale := false
	if endpoint == "" {
		loc, err := s.locate(ctx, opts, func(ctx context.Context) (core.SchedulerLocation, error) {
			return s.locator.Locate(ctx, processID)
		})
		if err != nil {
			span.RecordError(err)
			return "", err
		}
		endpoint = loc.URL
		stale = loc.Stale
	}

	resp, err := s.send(ctx, "message", endpoint, item, sg, opts)
	if err != nil {
		if stale {
			// The fallback endpoint did not work out; drop it so the
			// next call re-resolves.
			s.locator.Invalidate(ctx, processID)
		}
		span.RecordError(err)
		return "", err
	}

	return resp.ID, nil
}

func (s *service) DryRun(ctx context.Context, processID string, data []byte, userTags []core.Tag, opts Options) (core.Result, error) {
	ctx, span := tracer.Start(ctx, "Dispatch.Service.DryRun")
	defer span.End()

	built, err := tags.Build(userTags)
	if err != nil {
		span.RecordError(err)
		return core.Result{}, err
	}

	msg := core.DryRunMessage{
		Target: processID,
		Data:   string(data),
		Tags: append([]core.Tag{
			{Name: core.TagDataProtocol, Value: core.DataProtocol},
			{Name: core.TagVariant, Value: core.Variant},
			{Name: core.TagType, Value: core.TypeMessage},
		}, built...),
	}

	endpoint := opts.EndpointOverride
	if endpoint == "" {
		endpoint = s.cuURL
	}

	var result core.Result
	err = s.retry.retry(ctx, "dryrun", s.retry.retries(opts.MaxRetries), func() error {
		var err error
		result, err = s.client.DryRun(ctx, endpoint, processID, msg)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return core.Result{}, err
	}
	return result, nil
}

func (s *service) Assign(ctx context.Context, processID, txID string, baseLayer bool, opts Options) (string, error) {
	ctx, span := tracer.Start(ctx, "Dispatch.Service.Assign")
	defer span.End()

	endpoint := opts.EndpointOverride
	if endpoint == "" {
		loc, err := s.locate(ctx, opts, func(ctx context.Context) (core.SchedulerLocation, error) {
			return s.locator.Locate(ctx, processID)
		})
		if err != nil {
			span.RecordError(err)
			return "", err
		}
		endpoint = loc.URL
	}

	var resp core.DispatchResponse
	err := s.retry.retry(ctx, "assign", s.retry.retries(opts.MaxRetries), func() error {
		var err error
		resp, err = s.client.SendAssign(ctx, endpoint, processID, txID, baseLayer)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return resp.ID, nil
}

func (s *service) Monitor(ctx context.Context, processID string, sg signer.Signer, opts Options) error {
	return s.monitor(ctx, processID, true, sg, opts)
}

func (s *service) Unmonitor(ctx context.Context, processID string, sg signer.Signer, opts Options) error {
	return s.monitor(ctx, processID, false, sg, opts)
}

func (s *service) monitor(ctx context.Context, processID string, subscribe bool, sg signer.Signer, opts Options) error {
	ctx, span := tracer.Start(ctx, "Dispatch.Service.Monitor")
	defer span.End()

	// The monitor route derives subscribe/unsubscribe intent from the
	// HTTP method, so the envelope carries no Type tag.
	item, err := s.buildEnvelope("", nil, nil, nil, sg, []core.Tag{
		{Name: core.TagDataProtocol, Value: core.DataProtocol},
		{Name: core.TagVariant, Value: core.Variant},
		{Name: core.TagSDK, Value: core.SDKName},
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	endpoint := opts.EndpointOverride
	if endpoint == "" {
		loc, err := s.locate(ctx, opts, func(ctx context.Context) (core.SchedulerLocation, error) {
			return s.locator.Locate(ctx, processID)
		})
		if err != nil {
			span.RecordError(err)
			return err
		}
		endpoint = loc.URL
	}

	op := "monitor"
	if !subscribe {
		op = "unmonitor"
	}
	err = s.retry.retry(ctx, op, s.retry.retries(opts.MaxRetries), func() error {
		return s.client.SendMonitor(ctx, endpoint, processID, subscribe, item, sg)
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// buildEnvelope validates caller tags, stamps the protocol tags and
// signs the result. Everything fails before anything is sent.
func (s *service) buildEnvelope(target string, anchor, data []byte, userTags []core.Tag, sg signer.Signer, protocolTags []core.Tag) (*dataitem.DataItem, error) {
	if sg == nil {
		return nil, core.NewSigningError("operation requires a signer", nil)
	}

	built, err := tags.Build(userTags)
	if err != nil {
		return nil, err
	}
	all, err := tags.BuildAllowReserved(append(protocolTags, built...))
	if err != nil {
		return nil, err
	}

	item, err := dataitem.New(target, anchor, all, data)
	if err != nil {
		return nil, err
	}
	if err := dataitem.Sign(item, sg); err != nil {
		return nil, err
	}
	return item, nil
}

// locate resolves an endpoint under the retry policy. Transient
// directory failures back off and retry; a deterministic not-found
// resolution surfaces immediately.
func (s *service) locate(ctx context.Context, opts Options, lookup func(context.Context) (core.SchedulerLocation, error)) (core.SchedulerLocation, error) {
	var loc core.SchedulerLocation
	err := s.retry.retry(ctx, "resolve", s.retry.retries(opts.MaxRetries), func() error {
		var err error
		loc, err = lookup(ctx)
		return err
	})
	return loc, err
}

// send dispatches a signed envelope with retry. The envelope bytes
// were fixed at signing time, so every attempt is byte-identical.
func (s *service) send(ctx context.Context, op, endpoint string, item *dataitem.DataItem, sg signer.Signer, opts Options) (core.DispatchResponse, error) {
	dispatchID := xid.New().String()
	slog.DebugContext(ctx, "dispatching envelope",
		slog.String("module", "dispatch"),
		slog.String("op", op),
		slog.String("dispatchID", dispatchID),
		slog.String("itemID", item.ID()),
		slog.String("endpoint", endpoint),
	)

	var resp core.DispatchResponse
	err := s.retry.retry(ctx, op, s.retry.retries(opts.MaxRetries), func() error {
		var err error
		resp, err = s.client.SendDataItem(ctx, endpoint, item, sg)
		return err
	})
	return resp, err
}
