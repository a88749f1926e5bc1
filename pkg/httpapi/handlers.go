package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
)

// receiveRequest is the POST /receive body: {"tx": [uri, data]}.
type receiveRequest struct {
	Tx [2]json.RawMessage `json:"tx"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	hr := s.backend.Health(r.Context())
	status := http.StatusOK
	if hr.Status != substrate.HealthHealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status":  hr.Status,
		"message": hr.Message,
		"details": hr.Details,
	})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"schema": s.backend.GetSchema(r.Context())})
}

func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	var req receiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	var uri string
	if err := json.Unmarshal(req.Tx[0], &uri); err != nil {
		writeError(w, r, http.StatusBadRequest, "tx[0] must be a uri string")
		return
	}

	var payload record.Payload
	if err := json.Unmarshal(req.Tx[1], &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("invalid tx[1] payload: %v", err))
		return
	}

	res := s.backend.Receive(r.Context(), record.Message{URI: uri, Data: payload})
	if !res.Accepted {
		if res.Err != nil && substrate.KindOf(res.Err) == substrate.KindNotImplemented {
			writeSubstrateError(w, r, res.Err)
			return
		}
		status := http.StatusBadRequest
		msg := ""
		if res.Err != nil {
			status = statusForKind(substrate.KindOf(res.Err))
			msg = res.Err.Error()
		}
		writeJSON(w, status, map[string]any{"accepted": false, "error": msg})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true, "duplicate": res.Duplicate})
}

func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	uri := uriFromVars(r)
	rr := s.backend.Read(r.Context(), uri)
	if !rr.Success {
		writeSubstrateError(w, r, rr.Err)
		return
	}
	if rr.Record.Data.IsBinary() {
		w.Header().Set("Content-Type", inferMIME(uri))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rr.Record.Data.Bytes)
		return
	}
	writeJSON(w, http.StatusOK, rr.Record)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	uri := uriFromVars(r)
	opts := substrate.ListOptions{
		Page:      atoiDefault(r.URL.Query().Get("page"), 0),
		Limit:     atoiDefault(r.URL.Query().Get("limit"), 0),
		Pattern:   r.URL.Query().Get("pattern"),
		SortBy:    substrate.SortBy(r.URL.Query().Get("sortBy")),
		SortOrder: substrate.SortOrder(r.URL.Query().Get("sortOrder")),
	}
	lr := s.backend.List(r.Context(), uri, opts)
	if !lr.Success {
		writeSubstrateError(w, r, lr.Err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"data":       lr.Data,
		"pagination": lr.Pagination,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	uri := uriFromVars(r)
	dr := s.backend.Delete(r.Context(), uri)
	if !dr.Success {
		writeSubstrateError(w, r, dr.Err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
