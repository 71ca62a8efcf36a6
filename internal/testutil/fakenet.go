package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/permagate/aogo/core"
	"github.com/permagate/aogo/x/dataitem"
)

// FakeNetwork stands in for the gateway, a scheduler endpoint and a
// compute endpoint so the full dispatch flow can run against localhost.
type FakeNetwork struct {
	Gateway   *httptest.Server
	Scheduler *httptest.Server
	Compute   *httptest.Server

	// SchedulerAddress is the owner address the gateway reports for
	// every process.
	SchedulerAddress string

	// LocationTTLSeconds is served in the Scheduler-Location record.
	LocationTTLSeconds int

	// FailGateway makes directory lookups return 500.
	FailGateway atomic.Bool

	// GatewayDelay slows lookups down, for coalescing tests.
	GatewayDelay time.Duration

	gatewayLookups atomic.Int32

	mu         sync.Mutex
	dispatched []*dataitem.DataItem
	results    map[string]core.Result
}

func NewFakeNetwork() *FakeNetwork {
	n := &FakeNetwork{
		SchedulerAddress:   "fake-scheduler-owner",
		LocationTTLSeconds: 3600,
		results:            map[string]core.Result{},
	}

	n.Gateway = httptest.NewServer(http.HandlerFunc(n.handleGateway))
	n.Scheduler = httptest.NewServer(http.HandlerFunc(n.handleScheduler))
	n.Compute = httptest.NewServer(http.HandlerFunc(n.handleCompute))
	return n
}

func (n *FakeNetwork) Close() {
	n.Gateway.Close()
	n.Scheduler.Close()
	n.Compute.Close()
}

// GatewayLookups counts directory queries, for cache and coalescing
// assertions.
func (n *FakeNetwork) GatewayLookups() int {
	return int(n.gatewayLookups.Load())
}

// Dispatched returns the envelopes the scheduler endpoint accepted.
func (n *FakeNetwork) Dispatched() []*dataitem.DataItem {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*dataitem.DataItem{}, n.dispatched...)
}

// SetResult makes a result available for polling.
func (n *FakeNetwork) SetResult(messageID string, result core.Result) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results[messageID] = result
}

func (n *FakeNetwork) handleGateway(w http.ResponseWriter, r *http.Request) {
	n.gatewayLookups.Add(1)

	if n.GatewayDelay > 0 {
		time.Sleep(n.GatewayDelay)
	}
	if n.FailGateway.Load() {
		http.Error(w, "gateway down", http.StatusInternalServerError)
		return
	}

	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var tx core.GatewayTransaction
	if owner, ok := req.Variables["owner"]; ok {
		tx = core.GatewayTransaction{
			ID:    "location-tx",
			Owner: core.GatewayOwner{Address: fmt.Sprint(owner)},
			Tags: []core.Tag{
				{Name: "Url", Value: n.Scheduler.URL},
				{Name: "Time-To-Live", Value: fmt.Sprint(n.LocationTTLSeconds * 1000)},
			},
		}
	} else {
		tx = core.GatewayTransaction{
			ID: fmt.Sprint(req.Variables["id"]),
			Tags: []core.Tag{
				{Name: core.TagScheduler, Value: n.SchedulerAddress},
			},
		}
	}

	resp := map[string]any{
		"data": map[string]any{
			"transactions": map[string]any{
				"edges": []map[string]any{{"node": tx}},
			},
		},
	}
	json.NewEncoder(w).Encode(resp)
}

func (n *FakeNetwork) handleScheduler(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/monitor/") {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, `{"id":"monitor-ack"}`)
		return
	}

	if assign := r.URL.Query().Get("assign"); assign != "" {
		json.NewEncoder(w).Encode(core.DispatchResponse{ID: "assign-" + assign})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := dataitem.Decode(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := dataitem.Verify(item); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.dispatched = append(n.dispatched, item)
	n.mu.Unlock()

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(core.DispatchResponse{ID: item.ID()})
}

func (n *FakeNetwork) handleCompute(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/dry-run" {
		var msg core.DryRunMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(core.Result{
			Messages: []core.OutboundMessage{},
			Spawns:   []core.OutboundMessage{},
			Output:   core.ResultOutput{Data: "dry-run: " + msg.Data},
		})
		return
	}

	if strings.HasPrefix(r.URL.Path, "/result/") {
		messageID := strings.TrimPrefix(r.URL.Path, "/result/")
		n.mu.Lock()
		result, ok := n.results[messageID]
		n.mu.Unlock()
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(result)
		return
	}

	http.Error(w, "unknown route", http.StatusNotFound)
}
