package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient implements Client over a WebSocket, with automatic
// reconnection and exponential backoff, and exposes Subscribe for
// push-based notifications (new-block, new-pending-transaction) that the
// Ethereum BCS dispatcher and UTXO peer pool both use to shortcut their
// polling interval.
type WSClient struct {
	url string

	connMu sync.RWMutex
	conn   *websocket.Conn

	requestID atomic.Int64

	pendingMu sync.RWMutex
	pending   map[int64]chan *Response

	subsMu sync.RWMutex
	subs   map[string]chan json.RawMessage

	reconnecting atomic.Bool
	closed       atomic.Bool
	closeChan    chan struct{}

	maxBackoff     time.Duration
	initialBackoff time.Duration
}

// NewWSClient dials url and starts the background read loop.
func NewWSClient(url string) (*WSClient, error) {
	c := &WSClient{
		url:            url,
		pending:        make(map[int64]chan *Response),
		subs:           make(map[string]chan json.RawMessage),
		closeChan:      make(chan struct{}),
		maxBackoff:     60 * time.Second,
		initialBackoff: time.Second,
	}
	if err := c.connect(); err != nil {
		return nil, fmt.Errorf("rpc: websocket dial: %w", err)
	}
	go c.readLoop()
	return c, nil
}

func (c *WSClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("rpc: websocket client closed")
	}
	id := c.requestID.Add(1)
	respCh := make(chan *Response, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return nil, fmt.Errorf("rpc: websocket not connected")
	}
	req := map[string]interface{}{"jsonrpc": "2.0", "id": id, "method": method, "params": params}
	if err := conn.WriteJSON(req); err != nil {
		go c.reconnect()
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closeChan:
		return nil, fmt.Errorf("rpc: websocket client closed")
	}
}

// CallBatch has no true batch form over a WebSocket JSON-RPC stream; each
// request is issued independently and results are joined in order.
func (c *WSClient) CallBatch(ctx context.Context, requests []Request) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(requests))
	for i, r := range requests {
		res, err := c.Call(ctx, r.Method, r.Params)
		if err != nil {
			return out, err
		}
		out[i] = res
	}
	return out, nil
}

// Subscribe issues a subscription call (e.g. "eth_subscribe") and returns
// a channel of notification payloads keyed by the subscription ID the
// node returns.
func (c *WSClient) Subscribe(ctx context.Context, method string, params interface{}) (<-chan json.RawMessage, error) {
	result, err := c.Call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	var subID string
	if err := json.Unmarshal(result, &subID); err != nil {
		return nil, fmt.Errorf("rpc: parse subscription id: %w", err)
	}
	ch := make(chan json.RawMessage, 100)
	c.subsMu.Lock()
	c.subs[subID] = ch
	c.subsMu.Unlock()
	return ch, nil
}

func (c *WSClient) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	close(c.closeChan)
	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *WSClient) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return err
	}
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return nil
}

func (c *WSClient) reconnect() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer c.reconnecting.Store(false)

	backoff := c.initialBackoff
	for {
		select {
		case <-c.closeChan:
			return
		case <-time.After(backoff):
			if err := c.connect(); err != nil {
				backoff *= 2
				if backoff > c.maxBackoff {
					backoff = c.maxBackoff
				}
				continue
			}
			go c.readLoop()
			return
		}
	}
}

func (c *WSClient) readLoop() {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()
	if conn == nil {
		return
	}
	for {
		select {
		case <-c.closeChan:
			return
		default:
			var msg json.RawMessage
			if err := conn.ReadJSON(&msg); err != nil {
				go c.reconnect()
				return
			}
			c.dispatch(msg)
		}
	}
}

func (c *WSClient) dispatch(msg json.RawMessage) {
	var partial struct {
		ID     *int64          `json:"id"`
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	}
	if err := json.Unmarshal(msg, &partial); err != nil {
		return
	}
	if partial.ID != nil {
		var resp Response
		if err := json.Unmarshal(msg, &resp); err != nil {
			return
		}
		c.pendingMu.RLock()
		ch, ok := c.pending[*partial.ID]
		c.pendingMu.RUnlock()
		if ok {
			ch <- &resp
		}
		return
	}
	if partial.Method == "" {
		return
	}
	var notification struct {
		Params struct {
			Subscription string          `json:"subscription"`
			Result       json.RawMessage `json:"result"`
		} `json:"params"`
	}
	if err := json.Unmarshal(msg, &notification); err != nil {
		return
	}
	c.subsMu.RLock()
	ch, ok := c.subs[notification.Params.Subscription]
	c.subsMu.RUnlock()
	if ok {
		select {
		case ch <- notification.Params.Result:
		default:
		}
	}
}
