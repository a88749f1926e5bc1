// Package httpapi is the HTTP frontend: it maps the `/api/v1` route table
// onto a substrate.Backend, translating substrate.Error kinds to RFC 7807
// Problem Details and binary records to raw bytes with MIME inference.
//
// Grounded on the teacher's pkg/api/apierror.go (ProblemDetail, WriteError
// family) and pkg/api/middleware.go (per-IP golang.org/x/time/rate
// limiting), routing adapted from Chartly's control-plane coordinator
// (gorilla/mux + withCORS/withRequestLogging middleware chain).
package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/substratefabric/core/pkg/substrate"
)

// ProblemDetail implements RFC 7807 (Problem Details for HTTP APIs).
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"trace_id,omitempty"`
}

func (p *ProblemDetail) Error() string {
	return fmt.Sprintf("%s: %s", p.Title, p.Detail)
}

// statusForKind implements spec's kind→status table: not-found→404,
// validation-failed/signature-failed/hash-mismatch/exists/immutable→400,
// not-implemented→501, transport/timeout/cancelled→503.
func statusForKind(kind substrate.ErrorKind) int {
	switch kind {
	case substrate.KindNotFound:
		return http.StatusNotFound
	case substrate.KindValidationFailed, substrate.KindSignatureFailed, substrate.KindHashMismatch, substrate.KindExists, substrate.KindImmutable:
		return http.StatusBadRequest
	case substrate.KindNotImplemented:
		return http.StatusNotImplemented
	case substrate.KindTransport, substrate.KindTimeout, substrate.KindCancelled:
		return http.StatusServiceUnavailable
	case substrate.KindUnknownProgram:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func titleForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusNotImplemented:
		return "Not Implemented"
	case http.StatusServiceUnavailable:
		return "Service Unavailable"
	case http.StatusTooManyRequests:
		return "Too Many Requests"
	default:
		return "Internal Server Error"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	problem := &ProblemDetail{
		Type:     fmt.Sprintf("https://substratefabric.dev/errors/%d", status),
		Title:    titleForStatus(status),
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
		TraceID:  w.Header().Get("X-Request-ID"),
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(problem)
}

// writeSubstrateError maps a *substrate.Error (or any error) to its RFC
// 7807 response.
func writeSubstrateError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForKind(substrate.KindOf(err))
	writeError(w, r, status, err.Error())
}

func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("internal server error", "error", err, "path", r.URL.Path)
	writeError(w, r, http.StatusInternalServerError, "An unexpected error occurred.")
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, retryAfterSecs int) {
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfterSecs))
	writeError(w, r, http.StatusTooManyRequests, "Rate limit exceeded. Retry after the specified interval.")
}
