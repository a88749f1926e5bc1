// Package wsapi is the WebSocket frontend: a single endpoint that frames
// every substrate.Backend operation as a request/response pair,
// {id, op, args} in, {id, result|error} out, one goroutine per connection.
//
// Grounded on Chartly's services/crypto-stream/main.go runWS (one
// read-loop goroutine per connection, gorilla/websocket throughout) for
// the connection lifecycle shape; the server-side Upgrader itself follows
// gorilla/websocket's own documented pattern since no example repo in the
// pack runs a WS server, only WS clients.
package wsapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
)

// Op is the operation name carried in a request frame.
type Op string

const (
	OpReceive   Op = "receive"
	OpRead      Op = "read"
	OpReadMulti Op = "readMulti"
	OpList      Op = "list"
	OpDelete    Op = "delete"
	OpHealth    Op = "health"
	OpGetSchema Op = "schema"
	OpCleanup   Op = "cleanup"
)

// request is an inbound {id, op, args} frame.
type request struct {
	ID   string          `json:"id"`
	Op   Op              `json:"op"`
	Args json.RawMessage `json:"args"`
}

// response is an outbound {id, result|error} frame.
type response struct {
	ID     string `json:"id"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server upgrades HTTP connections and serves the {id,op,args} protocol
// against a substrate.Backend.
type Server struct {
	backend substrate.Backend
	logger  *slog.Logger
}

// NewServer wraps backend as a WebSocket frontend.
func NewServer(backend substrate.Backend) *Server {
	return &Server{backend: backend, logger: slog.Default().With("component", "wsapi")}
}

// ServeHTTP implements http.Handler, upgrading the connection and running
// its read loop until reading a frame fails (the client disconnects or
// sends a frame that is not valid JSON).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.serveConn(r.Context(), conn)
}

// serveConn runs one connection's read loop. writeMu serializes writes,
// since gorilla/websocket connections are not safe for concurrent writers
// and each inbound request is dispatched to its own goroutine so slow
// operations do not block the read loop.
func (s *Server) serveConn(ctx context.Context, conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	var writeMu sync.Mutex
	writeResponse := func(resp response) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
		}
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			return
		}

		wg.Add(1)
		go func(req request) {
			defer wg.Done()
			resp := s.dispatch(ctx, req)
			writeResponse(resp)
		}(req)
	}
}

func (s *Server) dispatch(ctx context.Context, req request) response {
	result, err := s.handle(ctx, req)
	if err != nil {
		return response{ID: req.ID, Error: err.Error()}
	}
	return response{ID: req.ID, Result: result}
}

func (s *Server) handle(ctx context.Context, req request) (any, error) {
	switch req.Op {
	case OpReceive:
		var args struct {
			URI  string         `json:"uri"`
			Data record.Payload `json:"data"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		res := s.backend.Receive(ctx, record.Message{URI: args.URI, Data: args.Data})
		return receiveResultJSON(res), nil

	case OpRead:
		var args struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		res := s.backend.Read(ctx, args.URI)
		return readResultJSON(res), nil

	case OpReadMulti:
		var args struct {
			URIs []string `json:"uris"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		res := s.backend.ReadMulti(ctx, args.URIs)
		out := map[string]any{
			"success":   res.Success,
			"total":     res.Total,
			"succeeded": res.Succeeded,
			"failed":    res.Failed,
			"results":   map[string]any{},
		}
		results := out["results"].(map[string]any)
		for u, r := range res.Results {
			results[u] = readResultJSON(r)
		}
		return out, nil

	case OpList:
		var args struct {
			URI  string                `json:"uri"`
			Opts substrate.ListOptions `json:"opts"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		res := s.backend.List(ctx, args.URI, args.Opts)
		if !res.Success {
			return nil, res.Err
		}
		return map[string]any{
			"success":    true,
			"data":       res.Data,
			"pagination": res.Pagination,
		}, nil

	case OpDelete:
		var args struct {
			URI string `json:"uri"`
		}
		if err := json.Unmarshal(req.Args, &args); err != nil {
			return nil, err
		}
		res := s.backend.Delete(ctx, args.URI)
		if !res.Success {
			return nil, res.Err
		}
		return map[string]any{"success": true}, nil

	case OpHealth:
		res := s.backend.Health(ctx)
		return map[string]any{"status": res.Status, "message": res.Message, "details": res.Details}, nil

	case OpGetSchema:
		return map[string]any{"schema": s.backend.GetSchema(ctx)}, nil

	case OpCleanup:
		if err := s.backend.Cleanup(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"success": true}, nil

	default:
		return nil, substrate.NewError(substrate.KindValidationFailed, "unknown op %q", req.Op)
	}
}

func receiveResultJSON(res substrate.ReceiveResult) map[string]any {
	out := map[string]any{"accepted": res.Accepted, "duplicate": res.Duplicate}
	if res.Err != nil {
		out["error"] = res.Err.Error()
	}
	return out
}

func readResultJSON(res substrate.ReadResult) map[string]any {
	if !res.Success {
		msg := ""
		if res.Err != nil {
			msg = res.Err.Error()
		}
		return map[string]any{"success": false, "error": msg}
	}
	return map[string]any{"success": true, "record": res.Record}
}
