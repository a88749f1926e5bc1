// Package cacheback implements a Redis-backed cache tier: a fast,
// mutable://-only substrate.Backend meant to sit in front of a slower
// persistent backend inside a firstMatchSequence, with entries expiring on
// their own TTL rather than being explicitly deleted.
//
// Grounded on the teacher's pkg/kernel/limiter_redis.go RedisLimiterStore
// (github.com/redis/go-redis/v9 client construction, atomic Lua-scripted
// state transition), generalized from a token-bucket counter to a
// JSON-encoded record cache.
package cacheback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/uri"
	"github.com/substratefabric/core/pkg/validator"
)

// casSetScript sets key only if it is absent or its stored timestamp is
// not newer than the incoming one (an equal timestamp overwrites), so
// concurrent writers never regress a cache entry to a stale value.
//
// KEYS[1] = cache key
// ARGV[1] = JSON-encoded record
// ARGV[2] = record timestamp (ms)
// ARGV[3] = ttl seconds
var casSetScript = redis.NewScript(`
local existing = redis.call("GET", KEYS[1])
if existing then
	local ok, decoded = pcall(cjson.decode, existing)
	if ok and decoded.ts and tonumber(decoded.ts) > tonumber(ARGV[2]) then
		return 0
	end
end
redis.call("SET", KEYS[1], ARGV[1], "EX", ARGV[3])
return 1
`)

// Store is a substrate.Backend over a Redis client.
type Store struct {
	client   *redis.Client
	ttl      time.Duration
	prefix   string
	validate validator.Func
	schema   []string
}

// New wraps an already-connected Redis client. keyPrefix namespaces this
// cache's keys (e.g. "substrate:cache:") so it can share a Redis instance
// with other tenants; ttl is how long an entry survives with no write.
func New(client *redis.Client, ttl time.Duration, keyPrefix string, validate validator.Func, schemaKeys []string) *Store {
	return &Store{client: client, ttl: ttl, prefix: keyPrefix, validate: validate, schema: schemaKeys}
}

func (s *Store) key(u string) string { return s.prefix + u }

func (s *Store) readFunc(ctx context.Context, u string) substrate.ReadResult {
	return s.Read(ctx, u)
}

// Receive implements substrate.Backend. Only mutable:// uris are accepted;
// the cache tier never enforces immutability or content-addressing itself,
// it mirrors whatever the durable tier behind it already validated.
func (s *Store) Receive(ctx context.Context, msg record.Message) substrate.ReceiveResult {
	if msg.URI == "" {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "empty uri")}
	}
	parsed, err := uri.Parse(msg.URI)
	if err != nil {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "%v", err)}
	}
	if parsed.Scheme != string(uri.SchemeMutable) {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "cacheback only serves mutable:// uris, got %q", parsed.Scheme)}
	}
	if s.validate != nil {
		if err := s.validate(ctx, parsed, msg.Data, s.readFunc); err != nil {
			return substrate.ReceiveResult{Accepted: false, Err: err}
		}
	}

	rec := record.Record{Ts: time.Now().UnixMilli(), Data: msg.Data}
	raw, err := json.Marshal(rec)
	if err != nil {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "encoding payload: %v", err)}
	}

	ttlSeconds := int64(s.ttl / time.Second)
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}
	res, err := casSetScript.Run(ctx, s.client, []string{s.key(msg.URI)}, string(raw), rec.Ts, ttlSeconds).Result()
	if err != nil {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	applied, _ := res.(int64)
	return substrate.ReceiveResult{Accepted: applied == 1}
}

// Read implements substrate.Backend.
func (s *Store) Read(ctx context.Context, u string) substrate.ReadResult {
	raw, err := s.client.Get(ctx, s.key(u)).Result()
	if err != nil {
		if err == redis.Nil {
			return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindNotFound, "%s", u)}
		}
		return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	var rec record.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "decoding cached payload: %v", err)}
	}
	return substrate.ReadResult{Success: true, Record: &rec}
}

// ReadMulti implements substrate.Backend via a pipelined MGET.
func (s *Store) ReadMulti(ctx context.Context, uris []string) substrate.ReadMultiResult {
	if len(uris) > substrate.MaxReadMulti {
		uris = uris[:substrate.MaxReadMulti]
	}
	keys := make([]string, len(uris))
	for i, u := range uris {
		keys[i] = s.key(u)
	}

	results := make(map[string]substrate.ReadResult, len(uris))
	succeeded, failed := 0, 0

	if len(keys) == 0 {
		return substrate.ReadMultiResult{Success: false, Results: results, Total: 0}
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		for _, u := range uris {
			results[u] = substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
			failed++
		}
		return substrate.ReadMultiResult{Success: false, Results: results, Total: len(uris), Succeeded: 0, Failed: failed}
	}

	for i, u := range uris {
		if vals[i] == nil {
			results[u] = substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindNotFound, "%s", u)}
			failed++
			continue
		}
		raw, ok := vals[i].(string)
		var rec record.Record
		if !ok {
			results[u] = substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "unexpected redis reply type")}
			failed++
			continue
		}
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			results[u] = substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
			failed++
			continue
		}
		results[u] = substrate.ReadResult{Success: true, Record: &rec}
		succeeded++
	}

	return substrate.ReadMultiResult{Success: succeeded > 0, Results: results, Total: len(uris), Succeeded: succeeded, Failed: failed}
}

// List implements substrate.Backend via a SCAN over the key namespace. The
// cache tier does not guarantee a complete listing across active TTL churn;
// it exists for point reads, not enumeration, so callers needing a
// reliable list() should route through the durable tier instead.
func (s *Store) List(ctx context.Context, prefix string, opts substrate.ListOptions) substrate.ListResult {
	opts = opts.Normalize()

	var all []substrate.ListEntry
	iter := s.client.Scan(ctx, 0, s.prefix+prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		full := strings.TrimPrefix(iter.Val(), s.prefix)
		if opts.Pattern != "" && !strings.Contains(full, opts.Pattern) {
			continue
		}
		all = append(all, substrate.ListEntry{URI: full})
	}
	if err := iter.Err(); err != nil {
		return substrate.ListResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}

	total := len(all)
	start := (opts.Page - 1) * opts.Limit
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	return substrate.ListResult{
		Success:    true,
		Data:       all[start:end],
		Pagination: substrate.Pagination{Page: opts.Page, Limit: opts.Limit, Total: total},
	}
}

// Delete implements substrate.Backend.
func (s *Store) Delete(ctx context.Context, u string) substrate.DeleteResult {
	n, err := s.client.Del(ctx, s.key(u)).Result()
	if err != nil {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "%v", err)}
	}
	if n == 0 {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindNotFound, "%s", u)}
	}
	return substrate.DeleteResult{Success: true}
}

// Health implements substrate.Backend via PING.
func (s *Store) Health(ctx context.Context) substrate.HealthResult {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return substrate.HealthResult{Status: substrate.HealthUnhealthy, Message: err.Error()}
	}
	return substrate.HealthResult{Status: substrate.HealthHealthy}
}

// GetSchema implements substrate.Backend.
func (s *Store) GetSchema(ctx context.Context) []string { return s.schema }

// Cleanup removes every key under this cache's namespace.
func (s *Store) Cleanup(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cacheback: scanning for cleanup: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
