package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// HTTPClient implements Client over HTTP JSON-RPC with round-robin
// endpoint failover. Identical concurrent Call invocations (same method +
// same JSON-encoded params) are collapsed into a single in-flight request
// via singleflight, since a sync round and a balance refresh routinely
// ask the same node the same question at the same moment.
type HTTPClient struct {
	endpoints []string
	health    HealthTracker
	http      *http.Client
	requestID atomic.Int64

	mu      sync.Mutex
	current int
	limit   *RateLimiter

	group singleflight.Group
}

// SetRateLimiter installs a per-endpoint request limiter. An endpoint
// whose window is exhausted is skipped in the failover rotation as if it
// were unhealthy. Call before the client is shared across goroutines.
func (c *HTTPClient) SetRateLimiter(limit *RateLimiter) {
	c.limit = limit
}

// NewHTTPClient builds an HTTPClient over endpoints, trying each in
// round-robin order and skipping any the HealthTracker currently
// considers tripped. A nil tracker gets a default breaker (3 consecutive
// failures, 30s cooldown).
func NewHTTPClient(endpoints []string, timeout time.Duration, health HealthTracker) (*HTTPClient, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("rpc: at least one endpoint required")
	}
	if health == nil {
		health = NewHealthTracker(3, 30*time.Second)
	}
	return &HTTPClient{
		endpoints: endpoints,
		health:    health,
		http:      &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("rpc: marshal params: %w", err)
	}
	key := method + ":" + string(paramsJSON)

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		return c.callWithFailover(ctx, method, params)
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

func (c *HTTPClient) callWithFailover(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	attempted := make(map[string]bool, len(c.endpoints))
	var lastErr error
	for len(attempted) < len(c.endpoints) {
		endpoint := c.nextHealthy(attempted)
		if endpoint == "" {
			break
		}
		attempted[endpoint] = true
		if c.limit != nil && !c.limit.Allow(endpoint) {
			lastErr = fmt.Errorf("rpc: %s rate limited", endpoint)
			continue
		}

		result, err := c.callEndpoint(ctx, endpoint, Request{Method: method, Params: params})
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("rpc: all endpoints failed: %w", lastErr)
}

func (c *HTTPClient) CallBatch(ctx context.Context, requests []Request) ([]json.RawMessage, error) {
	if len(requests) == 0 {
		return []json.RawMessage{}, nil
	}
	attempted := make(map[string]bool, len(c.endpoints))
	var lastErr error
	for len(attempted) < len(c.endpoints) {
		endpoint := c.nextHealthy(attempted)
		if endpoint == "" {
			break
		}
		attempted[endpoint] = true
		if c.limit != nil && !c.limit.Allow(endpoint) {
			lastErr = fmt.Errorf("rpc: %s rate limited", endpoint)
			continue
		}

		results, err := c.callBatchEndpoint(ctx, endpoint, requests)
		if err == nil {
			return results, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("rpc: all endpoints failed for batch: %w", lastErr)
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) callEndpoint(ctx context.Context, endpoint string, req Request) (json.RawMessage, error) {
	start := time.Now()
	id := c.requestID.Add(1)
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0", "id": id, "method": req.Method, "params": req.Params,
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.health.RecordFailure(endpoint, err)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.health.RecordFailure(endpoint, err)
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("http %d: %s", resp.StatusCode, string(respBody))
		c.health.RecordFailure(endpoint, err)
		return nil, err
	}

	var rpcResp Response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		c.health.RecordFailure(endpoint, err)
		return nil, err
	}
	if rpcResp.Error != nil {
		c.health.RecordFailure(endpoint, rpcResp.Error)
		return nil, rpcResp.Error
	}
	c.health.RecordSuccess(endpoint, time.Since(start).Milliseconds())
	return rpcResp.Result, nil
}

func (c *HTTPClient) callBatchEndpoint(ctx context.Context, endpoint string, requests []Request) ([]json.RawMessage, error) {
	batch := make([]map[string]interface{}, len(requests))
	for i, r := range requests {
		batch[i] = map[string]interface{}{
			"jsonrpc": "2.0", "id": c.requestID.Add(1), "method": r.Method, "params": r.Params,
		}
	}
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.health.RecordFailure(endpoint, err)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.health.RecordFailure(endpoint, err)
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("http %d", resp.StatusCode)
		c.health.RecordFailure(endpoint, err)
		return nil, err
	}

	var batchResp []Response
	if err := json.Unmarshal(respBody, &batchResp); err != nil {
		c.health.RecordFailure(endpoint, err)
		return nil, err
	}
	results := make([]json.RawMessage, len(batchResp))
	for i, r := range batchResp {
		if r.Error == nil {
			results[i] = r.Result
		}
	}
	c.health.RecordSuccess(endpoint, 0)
	return results, nil
}

// nextHealthy picks the next round-robin endpoint not already in
// attempted, preferring one IsHealthy reports as up.
func (c *HTTPClient) nextHealthy(attempted map[string]bool) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < len(c.endpoints); i++ {
		idx := (c.current + i) % len(c.endpoints)
		ep := c.endpoints[idx]
		if attempted[ep] {
			continue
		}
		if c.health.IsHealthy(ep) {
			c.current = (idx + 1) % len(c.endpoints)
			return ep
		}
	}
	for _, ep := range c.endpoints {
		if !attempted[ep] {
			return ep
		}
	}
	return ""
}
