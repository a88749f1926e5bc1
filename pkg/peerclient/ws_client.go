package peerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
)

// wsRequest/wsResponse mirror pkg/wsapi's wire frames; kept as a private
// copy here (rather than an import) since peerclient must not depend on
// the server-side package.
type wsRequest struct {
	ID   string          `json:"id"`
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args"`
}

type wsResponse struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// WSClient is a substrate.Backend that proxies every operation over a
// single persistent WebSocket connection to a remote node, reconnecting
// on failure.
//
// Grounded on Chartly's crypto-stream runWS: dial-then-read-loop
// lifecycle, one goroutine owning the read side, and a reconnect delay on
// disconnect rather than failing the whole process.
type WSClient struct {
	url            string
	reconnectDelay time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan wsResponse
	nextID  uint64
	writeMu sync.Mutex
}

// NewWSClient connects to url (ws:// or wss://) and starts its read loop.
func NewWSClient(ctx context.Context, url string) (*WSClient, error) {
	c := &WSClient{url: url, reconnectDelay: 2 * time.Second, pending: make(map[string]chan wsResponse)}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	go c.readLoop(ctx)
	return c, nil
}

func (c *WSClient) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("peerclient: dialing %s: %w", c.url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// readLoop owns the connection's read side for its lifetime, dispatching
// each response to the pending call that is waiting on its ID. On a read
// error it reconnects after reconnectDelay and resumes, matching
// crypto-stream's outer retry loop around runWS.
func (c *WSClient) readLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			time.Sleep(c.reconnectDelay)
			_ = c.connect(ctx)
			continue
		}

		var resp wsResponse
		if err := conn.ReadJSON(&resp); err != nil {
			c.failPending()
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			time.Sleep(c.reconnectDelay)
			if ctx.Err() != nil {
				return
			}
			_ = c.connect(ctx)
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (c *WSClient) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- wsResponse{ID: id, Error: "connection lost"}
		delete(c.pending, id)
	}
}

func (c *WSClient) call(ctx context.Context, op string, args any) (json.RawMessage, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}

	id := fmt.Sprintf("%d", atomic.AddUint64(&c.nextID, 1))
	ch := make(chan wsResponse, 1)

	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("peerclient: not connected")
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err = conn.WriteJSON(wsRequest{ID: id, Op: op, Args: raw})
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return nil, substrate.NewError(substrate.KindTransport, "%s", resp.Error)
		}
		return resp.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close terminates the underlying connection.
func (c *WSClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// Receive implements substrate.Backend.
func (c *WSClient) Receive(ctx context.Context, msg record.Message) substrate.ReceiveResult {
	raw, err := c.call(ctx, "receive", map[string]any{"uri": msg.URI, "data": msg.Data})
	if err != nil {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	var body struct {
		Accepted  bool   `json:"accepted"`
		Duplicate bool   `json:"duplicate"`
		Error     string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	if !body.Accepted && body.Error != "" {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "%s", body.Error)}
	}
	return substrate.ReceiveResult{Accepted: body.Accepted, Duplicate: body.Duplicate}
}

// Read implements substrate.Backend.
func (c *WSClient) Read(ctx context.Context, u string) substrate.ReadResult {
	raw, err := c.call(ctx, "read", map[string]any{"uri": u})
	if err != nil {
		return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	var body struct {
		Success bool           `json:"success"`
		Record  *record.Record `json:"record"`
		Error   string         `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	if !body.Success {
		return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindNotFound, "%s", body.Error)}
	}
	return substrate.ReadResult{Success: true, Record: body.Record}
}

// ReadMulti implements substrate.Backend as sequential Read calls over the
// single connection.
func (c *WSClient) ReadMulti(ctx context.Context, uris []string) substrate.ReadMultiResult {
	if len(uris) > substrate.MaxReadMulti {
		uris = uris[:substrate.MaxReadMulti]
	}
	results := make(map[string]substrate.ReadResult, len(uris))
	succeeded, failed := 0, 0
	for _, u := range uris {
		r := c.Read(ctx, u)
		results[u] = r
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return substrate.ReadMultiResult{Success: succeeded > 0, Results: results, Total: len(uris), Succeeded: succeeded, Failed: failed}
}

// List implements substrate.Backend.
func (c *WSClient) List(ctx context.Context, prefix string, opts substrate.ListOptions) substrate.ListResult {
	raw, err := c.call(ctx, "list", map[string]any{"uri": prefix, "opts": opts})
	if err != nil {
		return substrate.ListResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	var body struct {
		Success    bool                  `json:"success"`
		Data       []substrate.ListEntry `json:"data"`
		Pagination substrate.Pagination  `json:"pagination"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return substrate.ListResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	return substrate.ListResult{Success: body.Success, Data: body.Data, Pagination: body.Pagination}
}

// Delete implements substrate.Backend.
func (c *WSClient) Delete(ctx context.Context, u string) substrate.DeleteResult {
	raw, err := c.call(ctx, "delete", map[string]any{"uri": u})
	if err != nil {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	var body struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	if !body.Success {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindNotFound, "%s", u)}
	}
	return substrate.DeleteResult{Success: true}
}

// Health implements substrate.Backend.
func (c *WSClient) Health(ctx context.Context) substrate.HealthResult {
	raw, err := c.call(ctx, "health", map[string]any{})
	if err != nil {
		return substrate.HealthResult{Status: substrate.HealthUnhealthy, Message: err.Error()}
	}
	var body struct {
		Status  substrate.HealthStatus `json:"status"`
		Message string                 `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return substrate.HealthResult{Status: substrate.HealthUnhealthy, Message: err.Error()}
	}
	return substrate.HealthResult{Status: body.Status, Message: body.Message}
}

// GetSchema implements substrate.Backend.
func (c *WSClient) GetSchema(ctx context.Context) []string {
	raw, err := c.call(ctx, "schema", map[string]any{})
	if err != nil {
		return nil
	}
	var body struct {
		Schema []string `json:"schema"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body.Schema
}

// Cleanup implements substrate.Backend.
func (c *WSClient) Cleanup(ctx context.Context) error {
	_, err := c.call(ctx, "cleanup", map[string]any{})
	return err
}
