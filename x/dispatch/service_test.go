package dispatch

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"

	mock_client "github.com/permagate/aogo/client/mock"
	"github.com/permagate/aogo/core"
	"github.com/permagate/aogo/internal/testutil"
	"github.com/permagate/aogo/util"
	"github.com/permagate/aogo/x/dataitem"
	"github.com/permagate/aogo/x/signer"
)

const suURL = "https://su.test"

type stubLocator struct {
	loc         core.SchedulerLocation
	err         error
	invalidated int
}

func (s *stubLocator) Locate(ctx context.Context, processID string) (core.SchedulerLocation, error) {
	return s.loc, s.err
}

func (s *stubLocator) LocateScheduler(ctx context.Context, address string) (core.SchedulerLocation, error) {
	return s.loc, s.err
}

func (s *stubLocator) Invalidate(ctx context.Context, processID string) {
	s.invalidated++
}

func testPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
		Multiplier:      2,
		Jitter:          0,
	}
}

func testSigner(t *testing.T) signer.Signer {
	s, err := signer.NewEthereumSigner(testutil.EthereumKeyHex)
	assert.NoError(t, err)
	return s
}

func testTarget() string {
	return util.B64Encode(bytes.Repeat([]byte{0x07}, 32))
}

func TestMessageRetriesTransientAndReusesEnvelope(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{loc: core.SchedulerLocation{URL: suURL}}
	svc := NewService(mockClient, locator, "", testPolicy())

	var envelopes [][]byte
	attempt := 0
	mockClient.EXPECT().
		SendDataItem(gomock.Any(), suURL, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, endpoint string, item *dataitem.DataItem, sg signer.Signer) (core.DispatchResponse, error) {
			raw, err := item.Encode()
			assert.NoError(t, err)
			envelopes = append(envelopes, raw)
			attempt++
			if attempt < 3 {
				return core.DispatchResponse{}, core.NewNetworkError(502, nil)
			}
			return core.DispatchResponse{ID: item.ID()}, nil
		}).
		Times(3)

	id, err := svc.Message(context.Background(), testTarget(), []byte("ping"), nil, nil, testSigner(t), Options{})
	assert.NoError(t, err)
	assert.NotEmpty(t, id)

	// Retries must re-send the identical signed bytes.
	assert.Len(t, envelopes, 3)
	assert.Equal(t, envelopes[0], envelopes[1])
	assert.Equal(t, envelopes[0], envelopes[2])
}

func TestMessageRetryBoundAndBackoff(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{loc: core.SchedulerLocation{URL: suURL}}

	policy := testPolicy()
	policy.MaxRetries = 2
	policy.InitialInterval = 20 * time.Millisecond
	policy.MaxInterval = time.Second
	svc := NewService(mockClient, locator, "", policy)

	var stamps []time.Time
	mockClient.EXPECT().
		SendDataItem(gomock.Any(), suURL, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, endpoint string, item *dataitem.DataItem, sg signer.Signer) (core.DispatchResponse, error) {
			stamps = append(stamps, time.Now())
			return core.DispatchResponse{}, core.NewNetworkError(503, nil)
		}).
		Times(3)

	_, err := svc.Message(context.Background(), testTarget(), []byte("ping"), nil, nil, testSigner(t), Options{})

	var netErr core.NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.Equal(t, 503, netErr.Status)

	// Inter-attempt delay must not decrease.
	assert.Len(t, stamps, 3)
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	assert.GreaterOrEqual(t, second, first)
}

func TestClientErrorIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{loc: core.SchedulerLocation{URL: suURL}}
	svc := NewService(mockClient, locator, "", testPolicy())

	mockClient.EXPECT().
		SendDataItem(gomock.Any(), suURL, gomock.Any(), gomock.Any()).
		Return(core.DispatchResponse{}, core.NewNetworkError(400, nil)).
		Times(1)

	_, err := svc.Message(context.Background(), testTarget(), []byte("ping"), nil, nil, testSigner(t), Options{})

	var netErr core.NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.False(t, netErr.Transient)
}

func TestProtocolViolationIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{loc: core.SchedulerLocation{URL: suURL}}
	svc := NewService(mockClient, locator, "", testPolicy())

	mockClient.EXPECT().
		SendDataItem(gomock.Any(), suURL, gomock.Any(), gomock.Any()).
		Return(core.DispatchResponse{}, core.NewProtocolViolationError("no id", nil)).
		Times(1)

	_, err := svc.Message(context.Background(), testTarget(), []byte("ping"), nil, nil, testSigner(t), Options{})

	var protoErr core.ProtocolViolationError
	assert.True(t, errors.As(err, &protoErr))
}

type countingLocator struct {
	loc      core.SchedulerLocation
	failures int
	err      error
	calls    int
}

func (c *countingLocator) Locate(ctx context.Context, processID string) (core.SchedulerLocation, error) {
	c.calls++
	if c.calls <= c.failures {
		return core.SchedulerLocation{}, c.err
	}
	return c.loc, nil
}

func (c *countingLocator) LocateScheduler(ctx context.Context, address string) (core.SchedulerLocation, error) {
	return c.Locate(ctx, address)
}

func (c *countingLocator) Invalidate(ctx context.Context, processID string) {}

func TestTransientResolutionFailureIsRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &countingLocator{
		loc:      core.SchedulerLocation{URL: suURL},
		failures: 2,
		err:      core.NewResolutionError("proc-1", core.NewNetworkError(503, nil)),
	}
	svc := NewService(mockClient, locator, "", testPolicy())

	mockClient.EXPECT().
		SendDataItem(gomock.Any(), suURL, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, endpoint string, item *dataitem.DataItem, sg signer.Signer) (core.DispatchResponse, error) {
			return core.DispatchResponse{ID: item.ID()}, nil
		}).
		Times(1)

	id, err := svc.Message(context.Background(), testTarget(), []byte("ping"), nil, nil, testSigner(t), Options{})
	assert.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 3, locator.calls, "transient lookup failures must back off and retry")
}

func TestUnresolvableProcessIsNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No SendDataItem expectation: any network call fails the test.
	mockClient := mock_client.NewMockClient(ctrl)
	locator := &countingLocator{
		failures: 100,
		err:      core.NewResolutionError("proc-x", nil),
	}
	svc := NewService(mockClient, locator, "", testPolicy())

	_, err := svc.Message(context.Background(), testTarget(), []byte("ping"), nil, nil, testSigner(t), Options{})

	var resErr core.ResolutionError
	assert.True(t, errors.As(err, &resErr))
	assert.Equal(t, 1, locator.calls, "a deterministic not-found must surface immediately")
}

func TestResolutionFailureSendsNothing(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No SendDataItem expectation: any network call fails the test.
	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{err: core.NewResolutionError("proc-x", nil)}
	svc := NewService(mockClient, locator, "", testPolicy())

	_, err := svc.Message(context.Background(), testTarget(), []byte("ping"), nil, nil, testSigner(t), Options{})

	var resErr core.ResolutionError
	assert.True(t, errors.As(err, &resErr))
}

func TestCancellationStopsRetries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{loc: core.SchedulerLocation{URL: suURL}}

	policy := testPolicy()
	policy.InitialInterval = 200 * time.Millisecond
	svc := NewService(mockClient, locator, "", policy)

	ctx, cancel := context.WithCancel(context.Background())

	mockClient.EXPECT().
		SendDataItem(gomock.Any(), suURL, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, endpoint string, item *dataitem.DataItem, sg signer.Signer) (core.DispatchResponse, error) {
			cancel()
			return core.DispatchResponse{}, core.NewNetworkError(503, nil)
		}).
		Times(1)

	_, err := svc.Message(ctx, testTarget(), []byte("ping"), nil, nil, testSigner(t), Options{})

	var cancelErr core.CancelledError
	assert.True(t, errors.As(err, &cancelErr), "expected CancelledError, got %v", err)
}

func TestSpawnBuildsProcessEnvelope(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{loc: core.SchedulerLocation{URL: suURL, Address: "sched-addr"}}
	svc := NewService(mockClient, locator, "", testPolicy())

	mockClient.EXPECT().
		SendDataItem(gomock.Any(), suURL, gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, endpoint string, item *dataitem.DataItem, sg signer.Signer) (core.DispatchResponse, error) {
			itemType, _ := core.FindTag(item.Tags, core.TagType)
			assert.Equal(t, core.TypeProcess, itemType)
			moduleID, _ := core.FindTag(item.Tags, core.TagModule)
			assert.Equal(t, "module-1", moduleID)
			sched, _ := core.FindTag(item.Tags, core.TagScheduler)
			assert.Equal(t, "sched-addr", sched)
			appName, _ := core.FindTag(item.Tags, "App-Name")
			assert.Equal(t, "Test", appName)
			assert.Empty(t, item.Target)
			return core.DispatchResponse{ID: item.ID()}, nil
		})

	id, err := svc.Spawn(context.Background(), "module-1", "sched-addr",
		nil, []core.Tag{{Name: "App-Name", Value: "Test"}}, testSigner(t), Options{})
	assert.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestMessageRejectsReservedUserTag(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{loc: core.SchedulerLocation{URL: suURL}}
	svc := NewService(mockClient, locator, "", testPolicy())

	_, err := svc.Message(context.Background(), testTarget(), []byte("ping"),
		[]core.Tag{{Name: "Type", Value: "Forged"}}, nil, testSigner(t), Options{})

	var tagErr core.InvalidTagError
	assert.True(t, errors.As(err, &tagErr))
}

func TestMessageRequiresSigner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{loc: core.SchedulerLocation{URL: suURL}}
	svc := NewService(mockClient, locator, "", testPolicy())

	_, err := svc.Message(context.Background(), testTarget(), []byte("ping"), nil, nil, nil, Options{})

	var sigErr core.SigningError
	assert.True(t, errors.As(err, &sigErr))
}

func TestDryRunNeedsNoSigner(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{}
	svc := NewService(mockClient, locator, "https://cu.test", testPolicy())

	want := core.Result{Output: core.ResultOutput{Data: "pong"}}
	mockClient.EXPECT().
		DryRun(gomock.Any(), "https://cu.test", "proc-1", gomock.Any()).
		DoAndReturn(func(ctx context.Context, endpoint, processID string, msg core.DryRunMessage) (core.Result, error) {
			assert.Equal(t, "proc-1", msg.Target)
			assert.Equal(t, "ping", msg.Data)
			return want, nil
		})

	result, err := svc.DryRun(context.Background(), "proc-1", []byte("ping"), nil, Options{})
	assert.NoError(t, err)
	assert.Equal(t, want, result)
}

func TestAssign(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{loc: core.SchedulerLocation{URL: suURL}}
	svc := NewService(mockClient, locator, "", testPolicy())

	mockClient.EXPECT().
		SendAssign(gomock.Any(), suURL, "proc-1", "tx-1", true).
		Return(core.DispatchResponse{ID: "assignment-1"}, nil)

	id, err := svc.Assign(context.Background(), "proc-1", "tx-1", true, Options{})
	assert.NoError(t, err)
	assert.Equal(t, "assignment-1", id)
}

func TestMonitorAndUnmonitor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{loc: core.SchedulerLocation{URL: suURL}}
	svc := NewService(mockClient, locator, "", testPolicy())

	sg := testSigner(t)
	checkEnvelope := func(ctx context.Context, endpoint, processID string, subscribe bool, item *dataitem.DataItem, got signer.Signer) error {
		// Intent travels in the HTTP method, not an envelope Type tag.
		_, hasType := core.FindTag(item.Tags, core.TagType)
		assert.False(t, hasType)
		proto, _ := core.FindTag(item.Tags, core.TagDataProtocol)
		assert.Equal(t, core.DataProtocol, proto)
		assert.Same(t, sg, got)
		return nil
	}
	mockClient.EXPECT().
		SendMonitor(gomock.Any(), suURL, "proc-1", true, gomock.Any(), gomock.Any()).
		DoAndReturn(checkEnvelope)
	mockClient.EXPECT().
		SendMonitor(gomock.Any(), suURL, "proc-1", false, gomock.Any(), gomock.Any()).
		DoAndReturn(checkEnvelope)

	assert.NoError(t, svc.Monitor(context.Background(), "proc-1", sg, Options{}))
	assert.NoError(t, svc.Unmonitor(context.Background(), "proc-1", sg, Options{}))
}

func TestStaleEndpointInvalidatedOnFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{loc: core.SchedulerLocation{URL: suURL, Stale: true}}

	policy := testPolicy()
	policy.MaxRetries = 0
	svc := NewService(mockClient, locator, "", policy)

	mockClient.EXPECT().
		SendDataItem(gomock.Any(), suURL, gomock.Any(), gomock.Any()).
		Return(core.DispatchResponse{}, core.NewNetworkError(503, nil)).
		Times(1)

	_, err := svc.Message(context.Background(), testTarget(), []byte("ping"), nil, nil, testSigner(t), Options{})
	assert.Error(t, err)
	assert.Equal(t, 1, locator.invalidated)
}

func TestPerCallRetryOverride(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockClient := mock_client.NewMockClient(ctrl)
	locator := &stubLocator{loc: core.SchedulerLocation{URL: suURL}}
	svc := NewService(mockClient, locator, "", testPolicy())

	mockClient.EXPECT().
		SendDataItem(gomock.Any(), suURL, gomock.Any(), gomock.Any()).
		Return(core.DispatchResponse{}, core.NewNetworkError(503, nil)).
		Times(1)

	_, err := svc.Message(context.Background(), testTarget(), []byte("ping"), nil, nil, testSigner(t), Options{MaxRetries: -1})
	assert.Error(t, err)
}
