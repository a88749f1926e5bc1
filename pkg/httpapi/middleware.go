package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type requestIDKey struct{}

// RequestID returns the request ID a previous withRequestID middleware
// attached to ctx, or "" if none is present.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// withRequestID assigns a UUID per request (reusing an inbound
// X-Request-ID if present), stamps it on the response header, and stores
// it in the request context for downstream logging.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withRequestLogging logs method, path, status, and duration for every
// request at the component's structured logger.
func withRequestLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestID(r.Context()),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// corsConfig configures the CORS middleware: allowedOrigins is a list of
// exact origins, a single "*" entry for any-origin, or empty to disable;
// allowedMethods lists the methods advertised on preflight.
type corsConfig struct {
	allowedOrigins []string
	allowedMethods string
}

// corsOrigins normalizes config.Config.CORSOrigin's string/list/"*" union
// (spec.md §6) into the allowlist withCORS checks requests against. A bare
// string is a single origin (or the literal "*"); a list carries multiple
// allowed origins, the standard multi-origin CORS allowlist shape.
func corsOrigins(v any) []string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// allowedOrigin returns the Access-Control-Allow-Origin value for reqOrigin
// against cfg's allowlist, or "" if reqOrigin is not allowed. A "*" entry
// matches any request; otherwise reqOrigin must appear verbatim in the
// list — the standard echo-back pattern for a multi-origin allowlist, since
// Access-Control-Allow-Origin itself can only ever carry one value.
func allowedOrigin(cfg corsConfig, reqOrigin string) string {
	for _, o := range cfg.allowedOrigins {
		if o == "*" {
			return "*"
		}
		if o == reqOrigin && reqOrigin != "" {
			return reqOrigin
		}
	}
	return ""
}

func withCORS(cfg corsConfig, next http.Handler) http.Handler {
	methods := cfg.allowedMethods
	if methods == "" {
		methods = "GET,POST,DELETE,OPTIONS"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := allowedOrigin(cfg, r.Header.Get("Origin")); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", methods)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter tracks a token bucket per remote IP.
//
// Grounded on the teacher's pkg/api/middleware.go GlobalRateLimiter:
// per-IP golang.org/x/time/rate limiters in a mutex-guarded map, swept by
// a background goroutine that evicts visitors idle past a threshold.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*rateVisitor
	rps      rate.Limit
	burst    int
}

type rateVisitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newRateLimiter starts the background sweep goroutine and returns a
// limiter allowing rps requests/sec per IP with the given burst.
func newRateLimiter(rps float64, burst int) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*rateVisitor),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
	go rl.sweep()
	return rl
}

func (rl *rateLimiter) sweep() {
	for {
		time.Sleep(time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &rateVisitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	limiter := v.limiter
	rl.mu.Unlock()
	return limiter.Allow()
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = strings.Trim(r.RemoteAddr, "[]")
		}
		if !rl.allow(ip) {
			writeTooManyRequests(w, r, 5)
			return
		}
		next.ServeHTTP(w, r)
	})
}
