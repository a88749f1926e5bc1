package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/substratefabric/core/pkg/substrate"
)

// Server is the HTTP frontend over a substrate.Backend.
type Server struct {
	backend substrate.Backend
	logger  *slog.Logger
	cors    corsConfig
	limiter *rateLimiter
	auth    func(http.Handler) http.Handler
}

// Options configures a Server.
type Options struct {
	// CORSOrigin is a string, a list of strings, or "*" — mirroring
	// config.Config.CORSOrigin's string/list/wildcard union from spec.md §6.
	// Parsed by corsOrigins into the allowlist withCORS actually checks
	// against.
	CORSOrigin     any
	AllowedMethods string
	RateLimitRPS   float64
	RateLimitBurst int
	// Auth, if non-nil, wraps the router with an operator-auth middleware
	// (e.g. identity.KeySet-backed JWT bearer auth). Nil disables auth.
	Auth func(http.Handler) http.Handler
}

// DefaultOptions returns permissive defaults: open CORS, 20 req/s per IP
// with burst 40, no auth.
func DefaultOptions() Options {
	return Options{
		CORSOrigin:     "*",
		AllowedMethods: "GET,POST,DELETE,OPTIONS",
		RateLimitRPS:   20,
		RateLimitBurst: 40,
	}
}

// NewServer builds the /api/v1 route table over backend.
func NewServer(backend substrate.Backend, opts Options) *Server {
	if opts.RateLimitRPS <= 0 {
		opts.RateLimitRPS = 20
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 40
	}
	return &Server{
		backend: backend,
		logger:  slog.Default().With("component", "httpapi"),
		cors:    corsConfig{allowedOrigins: corsOrigins(opts.CORSOrigin), allowedMethods: opts.AllowedMethods},
		limiter: newRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
		auth:    opts.Auth,
	}
}

// Handler returns the fully wrapped http.Handler: request-ID, logging,
// CORS, rate limiting, optional operator auth, then routing.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/schema", s.handleSchema).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/receive", s.handleReceive).Methods(http.MethodPost, http.MethodOptions)
	v1.HandleFunc("/read/{scheme}/{authority}/{path:.*}", s.handleRead).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/read/{scheme}/{authority}", s.handleRead).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/list/{scheme}/{authority}/{path:.*}", s.handleList).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/list/{scheme}/{authority}", s.handleList).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/delete/{scheme}/{authority}/{path:.*}", s.handleDelete).Methods(http.MethodDelete, http.MethodOptions)
	v1.HandleFunc("/delete/{scheme}/{authority}", s.handleDelete).Methods(http.MethodDelete, http.MethodOptions)

	var handler http.Handler = r
	if s.auth != nil {
		handler = s.auth(handler)
	}
	handler = s.limiter.middleware(handler)
	handler = withCORS(s.cors, handler)
	handler = withRequestLogging(s.logger, handler)
	handler = withRequestID(handler)
	return handler
}

// uriFromVars reconstructs scheme://authority/path from mux path
// variables {scheme}, {authority}, optional {path}.
func uriFromVars(r *http.Request) string {
	vars := mux.Vars(r)
	u := vars["scheme"] + "://" + vars["authority"]
	if p := vars["path"]; p != "" {
		u += "/" + p
	}
	return u
}
