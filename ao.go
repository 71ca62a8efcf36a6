// Package aogo is a client engine for the ao compute network. It
// builds and signs binary envelopes, resolves the scheduler
// responsible for a process, dispatches them with retry, and polls
// for computed results.
//
// Typical use:
//
//	sg, _ := signer.NewEthereumSigner(hexkey)
//	ao, _ := aogo.New(aogo.Config{Signer: sg})
//	pid, _ := ao.Spawn(ctx, moduleID, schedulerAddr, nil, aogo.Options{})
//	mid, _ := ao.Message(ctx, pid, []byte("ping"), aogo.Options{})
//	res, _ := ao.WaitResult(ctx, pid, mid, aogo.Options{})
package aogo

import (
	"context"
	"time"

	"github.com/permagate/aogo/client"
	"github.com/permagate/aogo/core"
	"github.com/permagate/aogo/x/dispatch"
	"github.com/permagate/aogo/x/result"
	"github.com/permagate/aogo/x/scheduler"
	"github.com/permagate/aogo/x/signer"
)

// Config wires the engine. Zero values fall back to the public
// network endpoints and the default policies.
type Config struct {
	// GatewayURL is the directory service queried for scheduler
	// locations.
	GatewayURL string
	// MUURL, when set, is used for scheduler-bound operations instead
	// of resolving the process's scheduler through the gateway.
	MUURL string
	// CUURL is the compute endpoint for dry-runs and results.
	CUURL string
	// Signer authenticates envelopes and scheduler-bound requests.
	// Read-only flows (DryRun, Result) work without one.
	Signer signer.Signer
	// Cache overrides the in-memory scheduler-location cache, for
	// example scheduler.NewRedisCache.
	Cache scheduler.Cache

	Timeout      time.Duration
	MaxRetries   int
	LocationTTL  time.Duration
	PollInterval time.Duration
	PollWindow   time.Duration
}

// Options carries per-call overrides. The zero value keeps every
// engine default.
type Options struct {
	// Tags are appended to the envelope after the protocol tags.
	// Reserved protocol names are rejected.
	Tags []core.Tag
	// Anchor is an optional 32-byte uniqueness anchor.
	Anchor []byte
	// Signer overrides the engine signer for this call.
	Signer signer.Signer
	// EndpointOverride skips scheduler resolution and sends to the
	// given endpoint directly.
	EndpointOverride string
	// MaxRetries of 0 keeps the engine default; a negative value
	// disables retries for the call.
	MaxRetries int
	// Timeout bounds the whole operation, retries and polling
	// included. Zero leaves only the caller's context deadline.
	Timeout time.Duration
	// Window bounds WaitResult polling for this call.
	Window time.Duration
}

// AO is the engine facade. Safe for concurrent use.
type AO struct {
	config   Config
	client   client.Client
	locator  scheduler.Service
	dispatch dispatch.Service
	result   result.Service
}

func New(cfg Config) (*AO, error) {
	if cfg.GatewayURL == "" {
		cfg.GatewayURL = core.DefaultGatewayURL
	}
	if cfg.CUURL == "" {
		cfg.CUURL = core.DefaultCUURL
	}

	c := client.NewClient(cfg.Signer, cfg.Timeout)
	locator := scheduler.NewService(c, cfg.Cache, cfg.GatewayURL, cfg.LocationTTL)

	retry := dispatch.DefaultRetryPolicy()
	if cfg.MaxRetries != 0 {
		retry.MaxRetries = cfg.MaxRetries
	}

	poll := result.DefaultPollPolicy()
	if cfg.PollInterval != 0 {
		poll.Interval = cfg.PollInterval
	}
	if cfg.PollWindow != 0 {
		poll.Window = cfg.PollWindow
	}

	return &AO{
		config:   cfg,
		client:   c,
		locator:  locator,
		dispatch: dispatch.NewService(c, locator, cfg.CUURL, retry),
		result:   result.NewService(c, cfg.CUURL, poll),
	}, nil
}

// Spawn creates a process from a module under the given scheduler and
// returns the process id.
func (a *AO) Spawn(ctx context.Context, moduleID, schedulerAddr string, data []byte, opts Options) (string, error) {
	ctx, cancel := a.callContext(ctx, opts)
	defer cancel()
	return a.dispatch.Spawn(ctx, moduleID, schedulerAddr, data, opts.Tags, a.signerFor(opts), a.muOptions(opts))
}

// Message sends a signed message to a process and returns the message
// id.
func (a *AO) Message(ctx context.Context, processID string, data []byte, opts Options) (string, error) {
	ctx, cancel := a.callContext(ctx, opts)
	defer cancel()
	return a.dispatch.Message(ctx, processID, data, opts.Tags, opts.Anchor, a.signerFor(opts), a.muOptions(opts))
}

// DryRun evaluates a message against a process without persisting it.
// No signer is required.
func (a *AO) DryRun(ctx context.Context, processID string, data []byte, opts Options) (core.Result, error) {
	ctx, cancel := a.callContext(ctx, opts)
	defer cancel()
	return a.dispatch.DryRun(ctx, processID, data, opts.Tags, dispatch.Options{
		EndpointOverride: opts.EndpointOverride,
		MaxRetries:       opts.MaxRetries,
	})
}

// Assign schedules an existing transaction onto a process.
func (a *AO) Assign(ctx context.Context, processID, txID string, baseLayer bool, opts Options) (string, error) {
	ctx, cancel := a.callContext(ctx, opts)
	defer cancel()
	return a.dispatch.Assign(ctx, processID, txID, baseLayer, a.muOptions(opts))
}

// Monitor subscribes the process to cron evaluation.
func (a *AO) Monitor(ctx context.Context, processID string, opts Options) error {
	ctx, cancel := a.callContext(ctx, opts)
	defer cancel()
	return a.dispatch.Monitor(ctx, processID, a.signerFor(opts), a.muOptions(opts))
}

// Unmonitor removes the cron subscription.
func (a *AO) Unmonitor(ctx context.Context, processID string, opts Options) error {
	ctx, cancel := a.callContext(ctx, opts)
	defer cancel()
	return a.dispatch.Unmonitor(ctx, processID, a.signerFor(opts), a.muOptions(opts))
}

// Result fetches a computed result once. A result the network has not
// produced yet surfaces as core.ErrNotYetAvailable.
func (a *AO) Result(ctx context.Context, processID, messageID string, opts Options) (core.Result, error) {
	ctx, cancel := a.callContext(ctx, opts)
	defer cancel()
	return a.result.Get(ctx, processID, messageID, a.resultOptions(opts))
}

// WaitResult polls until the result is available or the poll window
// closes.
func (a *AO) WaitResult(ctx context.Context, processID, messageID string, opts Options) (core.Result, error) {
	ctx, cancel := a.callContext(ctx, opts)
	defer cancel()
	return a.result.Wait(ctx, processID, messageID, a.resultOptions(opts))
}

// callContext applies the per-call timeout when one is set. Expiry
// surfaces as core.CancelledError wrapping the deadline.
func (a *AO) callContext(ctx context.Context, opts Options) (context.Context, context.CancelFunc) {
	if opts.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, opts.Timeout)
}

func (a *AO) signerFor(opts Options) signer.Signer {
	if opts.Signer != nil {
		return opts.Signer
	}
	return a.config.Signer
}

// muOptions picks the scheduler-bound endpoint: per-call override
// first, then the configured MU, else empty so the dispatcher
// resolves it.
func (a *AO) muOptions(opts Options) dispatch.Options {
	endpoint := opts.EndpointOverride
	if endpoint == "" {
		endpoint = a.config.MUURL
	}
	return dispatch.Options{
		EndpointOverride: endpoint,
		MaxRetries:       opts.MaxRetries,
	}
}

func (a *AO) resultOptions(opts Options) result.Options {
	return result.Options{
		EndpointOverride: opts.EndpointOverride,
		Window:           opts.Window,
	}
}
