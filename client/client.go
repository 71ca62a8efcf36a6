//go:generate go run go.uber.org/mock/mockgen -source=client.go -destination=mock/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/permagate/aogo/core"
	"github.com/permagate/aogo/x/dataitem"
	"github.com/permagate/aogo/x/httpsig"
	"github.com/permagate/aogo/x/signer"
)

var tracer = otel.Tracer("client")

// Client is the raw HTTP contract against the network's scheduler,
// compute and directory services. One call, one request; retry policy
// lives in the dispatcher.
type Client interface {
	SendDataItem(ctx context.Context, endpoint string, item *dataitem.DataItem, sg signer.Signer) (core.DispatchResponse, error)
	SendAssign(ctx context.Context, endpoint, processID, txID string, baseLayer bool) (core.DispatchResponse, error)
	SendMonitor(ctx context.Context, endpoint, processID string, subscribe bool, item *dataitem.DataItem, sg signer.Signer) error
	DryRun(ctx context.Context, endpoint, processID string, msg core.DryRunMessage) (core.Result, error)
	GetResult(ctx context.Context, endpoint, processID, messageID string) (core.Result, error)
	QueryGateway(ctx context.Context, endpoint, query string, variables map[string]any) ([]core.GatewayTransaction, error)
}

type client struct {
	http   *http.Client
	signer signer.Signer
}

// NewClient creates a network client. The signer authenticates
// scheduler-bound requests via HTTP message signatures; it may be nil
// for read-only use.
func NewClient(s signer.Signer, timeout time.Duration) Client {
	if timeout == 0 {
		timeout = core.DefaultTimeout
	}
	return &client{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		signer: s,
	}
}

func (c *client) SendDataItem(ctx context.Context, endpoint string, item *dataitem.DataItem, sg signer.Signer) (core.DispatchResponse, error) {
	ctx, span := tracer.Start(ctx, "Client.SendDataItem")
	defer span.End()

	raw, err := item.Encode()
	if err != nil {
		span.RecordError(err)
		return core.DispatchResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		span.RecordError(err)
		return core.DispatchResponse{}, core.NewNetworkError(0, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(ctx, req, raw, c.signerOr(sg))
	if err != nil {
		span.RecordError(err)
		return core.DispatchResponse{}, err
	}

	var resp core.DispatchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.DispatchResponse{}, core.NewProtocolViolationError("dispatch response is not JSON", err)
	}
	if resp.ID == "" {
		return core.DispatchResponse{}, core.NewProtocolViolationError("dispatch response has no id", nil)
	}

	return resp, nil
}

func (c *client) SendAssign(ctx context.Context, endpoint, processID, txID string, baseLayer bool) (core.DispatchResponse, error) {
	ctx, span := tracer.Start(ctx, "Client.SendAssign")
	defer span.End()

	query := url.Values{}
	query.Set("process-id", processID)
	query.Set("assign", txID)
	if baseLayer {
		query.Set("base-layer", "true")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		span.RecordError(err)
		return core.DispatchResponse{}, core.NewNetworkError(0, err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(ctx, req, nil, c.signer)
	if err != nil {
		span.RecordError(err)
		return core.DispatchResponse{}, err
	}

	var resp core.DispatchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.DispatchResponse{}, core.NewProtocolViolationError("assign response is not JSON", err)
	}
	if resp.ID == "" {
		return core.DispatchResponse{}, core.NewProtocolViolationError("assign response has no id", nil)
	}

	return resp, nil
}

func (c *client) SendMonitor(ctx context.Context, endpoint, processID string, subscribe bool, item *dataitem.DataItem, sg signer.Signer) error {
	ctx, span := tracer.Start(ctx, "Client.SendMonitor")
	defer span.End()

	method := http.MethodPost
	if !subscribe {
		method = http.MethodDelete
	}

	raw, err := item.Encode()
	if err != nil {
		span.RecordError(err)
		return err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint+"/monitor/"+processID, bytes.NewReader(raw))
	if err != nil {
		span.RecordError(err)
		return core.NewNetworkError(0, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	_, err = c.do(ctx, req, raw, c.signerOr(sg))
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (c *client) DryRun(ctx context.Context, endpoint, processID string, msg core.DryRunMessage) (core.Result, error) {
	ctx, span := tracer.Start(ctx, "Client.DryRun")
	defer span.End()

	payload, err := json.Marshal(msg)
	if err != nil {
		return core.Result{}, errors.Wrap(err, "failed to encode dry-run message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/dry-run?process-id="+url.QueryEscape(processID), bytes.NewReader(payload))
	if err != nil {
		span.RecordError(err)
		return core.Result{}, core.NewNetworkError(0, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	body, err := c.do(ctx, req, nil, nil)
	if err != nil {
		span.RecordError(err)
		return core.Result{}, err
	}

	return core.ParseResult(body)
}

func (c *client) GetResult(ctx context.Context, endpoint, processID, messageID string) (core.Result, error) {
	ctx, span := tracer.Start(ctx, "Client.GetResult")
	defer span.End()

	target := fmt.Sprintf("%s/result/%s?process-id=%s", endpoint, url.PathEscape(messageID), url.QueryEscape(processID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		span.RecordError(err)
		return core.Result{}, core.NewNetworkError(0, err)
	}
	req.Header.Set("Accept", "application/json")

	body, err := c.do(ctx, req, nil, nil)
	if err != nil {
		var netErr core.NetworkError
		if errors.As(err, &netErr) && netErr.Status == http.StatusNotFound {
			return core.Result{}, core.ErrNotYetAvailable
		}
		span.RecordError(err)
		return core.Result{}, err
	}

	return core.ParseResult(body)
}

func (c *client) QueryGateway(ctx context.Context, endpoint, query string, variables map[string]any) ([]core.GatewayTransaction, error) {
	ctx, span := tracer.Start(ctx, "Client.QueryGateway")
	defer span.End()

	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode gateway query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint+"/graphql", bytes.NewReader(payload))
	if err != nil {
		span.RecordError(err)
		return nil, core.NewNetworkError(0, err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(ctx, req, nil, nil)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var resp core.GatewayQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, core.NewProtocolViolationError("gateway response is not JSON", err)
	}
	if len(resp.Errors) > 0 {
		return nil, core.NewProtocolViolationError("gateway query failed: "+resp.Errors[0].Message, nil)
	}

	return resp.Transactions(), nil
}

// signerOr prefers a per-call identity over the client default, so
// the request signature always matches the envelope it carries.
func (c *client) signerOr(sg signer.Signer) signer.Signer {
	if sg != nil {
		return sg
	}
	return c.signer
}

// do sends a request, signing it when an identity is given, and maps
// the response status into the error taxonomy.
func (c *client) do(ctx context.Context, req *http.Request, body []byte, sg signer.Signer) ([]byte, error) {
	if sg != nil {
		if err := httpsig.SignRequest(req, body, sg, time.Now().Unix()); err != nil {
			return nil, err
		}
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.NewNetworkError(0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, core.NewNetworkError(0, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, core.NewNetworkError(resp.StatusCode, errors.Errorf("%.200s", respBody))
	}

	return respBody, nil
}
