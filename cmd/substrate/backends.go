package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/substratefabric/core/pkg/blobstore"
	"github.com/substratefabric/core/pkg/cacheback"
	"github.com/substratefabric/core/pkg/combinator"
	"github.com/substratefabric/core/pkg/config"
	"github.com/substratefabric/core/pkg/memstore"
	"github.com/substratefabric/core/pkg/peerclient"
	"github.com/substratefabric/core/pkg/sqlstore"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/validator"
)

// buildBackend turns the ordered config.BackendSpec list into a single
// substrate.Backend: one spec builds that backend directly, more than one
// fan out through a parallelBroadcast the same way the teacher wires its
// Postgres ledger/receipt-store/metering trio behind one Services struct,
// except here the fan-out is itself a first-class combinator rather than
// ad hoc struct fields.
func buildBackend(ctx context.Context, logger *slog.Logger, cfg *config.Config, validate validator.Func) (substrate.Backend, error) {
	specs := cfg.Backends
	if len(specs) == 0 {
		specs = []config.BackendSpec{{Type: config.BackendMemory}}
	}

	var children []substrate.Backend
	for _, spec := range specs {
		b, err := buildOne(ctx, logger, spec, validate)
		if err != nil {
			return nil, fmt.Errorf("substrate: backend %s: %w", spec.Type, err)
		}
		if b == nil {
			continue
		}
		children = append(children, b)
		logger.Info("substrate: backend ready", "type", spec.Type)
	}

	if len(children) == 0 {
		return nil, fmt.Errorf("substrate: no usable backend configured")
	}
	if len(children) == 1 {
		return children[0], nil
	}

	// spec.md §4.4's typical composition: write side fans out to every
	// child (parallelBroadcast), read side tries children in order until
	// one has the URI (firstMatchSequence). A bare Broadcast has no read
	// path at all — its Read/List/Delete are hard-coded not-implemented.
	write := combinator.NewBroadcast(acceptPolicy(cfg), children...)
	read := combinator.NewSequence(children...)
	return combinator.NewValidatedClient(write, read, validate), nil
}

func acceptPolicy(cfg *config.Config) combinator.AcceptPolicy {
	switch strings.ToLower(os.Getenv("SUBSTRATE_ACCEPT_POLICY")) {
	case "all":
		return combinator.PolicyAll
	case "any":
		return combinator.PolicyAny
	default:
		return combinator.PolicyMajority
	}
}

func buildOne(ctx context.Context, logger *slog.Logger, spec config.BackendSpec, validate validator.Func) (substrate.Backend, error) {
	schemaKeys := schemaKeysFromOptions(spec.Options)

	switch spec.Type {
	case config.BackendMemory:
		return memstore.New(validate, schemaKeys), nil

	case config.BackendSQL:
		return buildSQLBackend(ctx, spec, validate, schemaKeys)

	case config.BackendBlob:
		driver, err := blobstore.NewDriverFromEnv(ctx)
		if err != nil {
			return nil, err
		}
		return blobstore.New(driver, validate, schemaKeys), nil

	case config.BackendCache:
		return buildCacheBackend(spec, validate, schemaKeys)

	case config.BackendHTTP:
		timeout := 30 * time.Second
		if v, ok := spec.Options["timeoutMs"]; ok {
			if ms, err := parseIntOption(v); err == nil {
				timeout = time.Duration(ms) * time.Millisecond
			}
		}
		if strings.HasPrefix(spec.URL, "ws://") || strings.HasPrefix(spec.URL, "wss://") {
			return peerclient.NewWSClient(ctx, spec.URL)
		}
		return peerclient.NewHTTPClient(spec.URL, timeout), nil

	case config.BackendDoc:
		logger.Warn("substrate: doc backend not implemented, skipping", "url", spec.URL)
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported backend type %q", spec.Type)
	}
}

func buildSQLBackend(ctx context.Context, spec config.BackendSpec, validate validator.Func, schemaKeys []string) (substrate.Backend, error) {
	dialect := sqlstore.DialectSQLite
	driverName := "sqlite"
	switch {
	case strings.HasPrefix(spec.URL, "postgres://"), strings.HasPrefix(spec.URL, "postgresql://"):
		dialect = sqlstore.DialectPostgres
		driverName = "postgres"
	}

	db, err := sql.Open(driverName, spec.URL)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", driverName, err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging %s: %w", driverName, err)
	}

	store := sqlstore.New(db, dialect, validate, schemaKeys)
	if err := store.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return store, nil
}

func buildCacheBackend(spec config.BackendSpec, validate validator.Func, schemaKeys []string) (substrate.Backend, error) {
	addr := spec.URL
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ttl := 5 * time.Minute
	if v, ok := spec.Options["ttlMs"]; ok {
		if ms, err := parseIntOption(v); err == nil {
			ttl = time.Duration(ms) * time.Millisecond
		}
	}
	prefix := spec.Options["prefix"]
	if prefix == "" {
		prefix = "substrate"
	}
	return cacheback.New(client, ttl, prefix, validate, schemaKeys), nil
}

func schemaKeysFromOptions(options map[string]string) []string {
	raw, ok := options["schemaKeys"]
	if !ok || raw == "" {
		return nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err == nil {
		return keys
	}
	return strings.Split(raw, ",")
}

func parseIntOption(s string) (int, error) {
	var n int
	_, err := fmt.Sscanf(s, "%d", &n)
	return n, err
}

// loadSchemaRegistry loads each configured program key's JSON Schema
// document from disk and registers it, logging and skipping entries that
// fail to load rather than failing startup — a missing schema file
// degrades that one program to the registry's unknown-key policy instead
// of taking the whole node down.
func loadSchemaRegistry(ctx context.Context, logger *slog.Logger, registry *validator.Registry, schemaRegistry map[string]string) {
	for programKey, schemaPath := range schemaRegistry {
		raw, err := os.ReadFile(schemaPath)
		if err != nil {
			logger.Warn("substrate: schema file unreadable, skipping", "program", programKey, "path", schemaPath, "error", err)
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			logger.Warn("substrate: schema file invalid JSON, skipping", "program", programKey, "path", schemaPath, "error", err)
			continue
		}
		fn, err := validator.JSONSchema(schemaPath, doc)
		if err != nil {
			logger.Warn("substrate: compiling schema failed, skipping", "program", programKey, "path", schemaPath, "error", err)
			continue
		}
		registry.Register(programKey, fn)
	}
}
