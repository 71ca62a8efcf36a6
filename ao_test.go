package aogo

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permagate/aogo/core"
	"github.com/permagate/aogo/internal/testutil"
	"github.com/permagate/aogo/util"
	"github.com/permagate/aogo/x/signer"
)

func testTarget() string {
	return util.B64Encode(bytes.Repeat([]byte{0x07}, 32))
}

func fakeConfig(net *testutil.FakeNetwork, sg signer.Signer) Config {
	return Config{
		GatewayURL:   net.Gateway.URL,
		CUURL:        net.Compute.URL,
		Signer:       sg,
		PollInterval: 5 * time.Millisecond,
		PollWindow:   200 * time.Millisecond,
	}
}

func TestSpawnMessageResultFlow(t *testing.T) {
	net := testutil.NewFakeNetwork()
	defer net.Close()

	sg, err := signer.NewEthereumSigner(testutil.EthereumKeyHex)
	require.NoError(t, err)

	ao, err := New(fakeConfig(net, sg))
	require.NoError(t, err)

	ctx := context.Background()

	pid, err := ao.Spawn(ctx, "module-1", net.SchedulerAddress, []byte("init"), Options{
		Tags: []core.Tag{{Name: "Name", Value: "flow-test"}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, pid)

	dispatched := net.Dispatched()
	require.Len(t, dispatched, 1)
	typ, ok := core.FindTag(dispatched[0].Tags, core.TagType)
	assert.True(t, ok)
	assert.Equal(t, core.TypeProcess, typ)

	mid, err := ao.Message(ctx, pid, []byte("ping"), Options{})
	require.NoError(t, err)
	require.NotEmpty(t, mid)

	dispatched = net.Dispatched()
	require.Len(t, dispatched, 2)
	assert.Equal(t, pid, dispatched[1].Target)

	// The network has not evaluated the message yet.
	_, err = ao.Result(ctx, pid, mid, Options{})
	assert.ErrorIs(t, err, core.ErrNotYetAvailable)

	net.SetResult(mid, core.Result{
		Messages: []core.OutboundMessage{},
		Spawns:   []core.OutboundMessage{},
		Output:   core.ResultOutput{Data: "pong"},
	})

	res, err := ao.WaitResult(ctx, pid, mid, Options{})
	require.NoError(t, err)
	assert.Equal(t, "pong", res.Output.Data)
}

func TestWaitResultBecomesAvailableMidPoll(t *testing.T) {
	net := testutil.NewFakeNetwork()
	defer net.Close()

	sg, err := signer.NewEthereumSigner(testutil.EthereumKeyHex)
	require.NoError(t, err)

	ao, err := New(fakeConfig(net, sg))
	require.NoError(t, err)

	ctx := context.Background()
	pid, err := ao.Spawn(ctx, "module-1", net.SchedulerAddress, nil, Options{})
	require.NoError(t, err)
	mid, err := ao.Message(ctx, pid, []byte("slow"), Options{})
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		net.SetResult(mid, core.Result{Output: core.ResultOutput{Data: "late"}})
	}()

	res, err := ao.WaitResult(ctx, pid, mid, Options{Window: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "late", res.Output.Data)
}

func TestWaitResultWindowExhaustion(t *testing.T) {
	net := testutil.NewFakeNetwork()
	defer net.Close()

	ao, err := New(fakeConfig(net, nil))
	require.NoError(t, err)

	_, err = ao.WaitResult(context.Background(), "proc-1", "never-there", Options{Window: 30 * time.Millisecond})

	var unavailable core.ResultUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestPerCallTimeout(t *testing.T) {
	net := testutil.NewFakeNetwork()
	defer net.Close()

	ao, err := New(fakeConfig(net, nil))
	require.NoError(t, err)

	// The result never materializes; the per-call timeout must fire
	// long before the generous poll window.
	start := time.Now()
	_, err = ao.WaitResult(context.Background(), "proc-1", "never-there", Options{
		Timeout: 30 * time.Millisecond,
		Window:  time.Minute,
	})

	var cancelled core.CancelledError
	assert.ErrorAs(t, err, &cancelled)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDryRunWithoutSigner(t *testing.T) {
	net := testutil.NewFakeNetwork()
	defer net.Close()

	ao, err := New(fakeConfig(net, nil))
	require.NoError(t, err)

	res, err := ao.DryRun(context.Background(), "proc-1", []byte("ping"), Options{})
	require.NoError(t, err)
	assert.Equal(t, "dry-run: ping", res.Output.Data)
}

func TestMessageFailsWithoutResolution(t *testing.T) {
	net := testutil.NewFakeNetwork()
	defer net.Close()
	net.FailGateway.Store(true)

	sg, err := signer.NewEthereumSigner(testutil.EthereumKeyHex)
	require.NoError(t, err)

	ao, err := New(fakeConfig(net, sg))
	require.NoError(t, err)

	_, err = ao.Message(context.Background(), testTarget(), []byte("ping"), Options{})

	var resolution core.ResolutionError
	assert.ErrorAs(t, err, &resolution)
}

func TestConfiguredMUSkipsResolution(t *testing.T) {
	net := testutil.NewFakeNetwork()
	defer net.Close()

	sg, err := signer.NewEthereumSigner(testutil.EthereumKeyHex)
	require.NoError(t, err)

	cfg := fakeConfig(net, sg)
	cfg.MUURL = net.Scheduler.URL
	ao, err := New(cfg)
	require.NoError(t, err)

	_, err = ao.Message(context.Background(), testTarget(), []byte("ping"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, net.GatewayLookups())
}

func TestMonitorAndAssign(t *testing.T) {
	net := testutil.NewFakeNetwork()
	defer net.Close()

	sg, err := signer.NewEthereumSigner(testutil.EthereumKeyHex)
	require.NoError(t, err)

	ao, err := New(fakeConfig(net, sg))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, ao.Monitor(ctx, "proc-1", Options{}))
	require.NoError(t, ao.Unmonitor(ctx, "proc-1", Options{}))

	id, err := ao.Assign(ctx, "proc-1", "tx-1", false, Options{})
	require.NoError(t, err)
	assert.Equal(t, "assign-tx-1", id)
}
