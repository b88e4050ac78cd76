package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockClient is a scriptable Client used by sub-manager tests so sync,
// fee-estimation, and submit paths can be exercised without a live node.
type MockClient struct {
	mu        sync.RWMutex
	responses map[string]interface{}
	errors    map[string]error
	callCount map[string]int
}

// NewMockClient returns an empty MockClient; configure it with
// SetResponse/SetError before use.
func NewMockClient() *MockClient {
	return &MockClient{
		responses: make(map[string]interface{}),
		errors:    make(map[string]error),
		callCount: make(map[string]int),
	}
}

func (m *MockClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount[method]++

	if err, ok := m.errors[method]; ok {
		return nil, err
	}
	resp, ok := m.responses[method]
	if !ok {
		return nil, fmt.Errorf("rpc: no mock response for method %q", method)
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (m *MockClient) CallBatch(ctx context.Context, requests []Request) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(requests))
	for i, r := range requests {
		res, err := m.Call(ctx, r.Method, r.Params)
		if err != nil {
			return nil, err
		}
		out[i] = res
	}
	return out, nil
}

func (m *MockClient) Close() error { return nil }

func (m *MockClient) SetResponse(method string, response interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[method] = response
}

func (m *MockClient) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method] = err
}

func (m *MockClient) CallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount[method]
}

func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = make(map[string]interface{})
	m.errors = make(map[string]error)
	m.callCount = make(map[string]int)
}
