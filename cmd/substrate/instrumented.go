package main

import (
	"context"
	"time"

	"github.com/substratefabric/core/pkg/observability"
	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
)

// instrumentedBackend wraps a substrate.Backend, recording a RED sample
// (request, error, duration) through an observability.Provider around
// every call, the way the teacher's SafeExecutor records a metering
// sample around every tool invocation rather than leaving metrics to the
// HTTP layer alone.
type instrumentedBackend struct {
	inner substrate.Backend
	obs   *observability.Provider
}

func newInstrumentedBackend(inner substrate.Backend, obs *observability.Provider) substrate.Backend {
	return &instrumentedBackend{inner: inner, obs: obs}
}

func (b *instrumentedBackend) record(ctx context.Context, op string, start time.Time, err error) {
	b.obs.RecordOperation(ctx, op, float64(time.Since(start).Microseconds())/1000.0, err)
}

func (b *instrumentedBackend) Receive(ctx context.Context, msg record.Message) substrate.ReceiveResult {
	defer b.obs.TrackActive(ctx, "receive")()
	start := time.Now()
	res := b.inner.Receive(ctx, msg)
	b.record(ctx, "receive", start, res.Err)
	return res
}

func (b *instrumentedBackend) Read(ctx context.Context, u string) substrate.ReadResult {
	defer b.obs.TrackActive(ctx, "read")()
	start := time.Now()
	res := b.inner.Read(ctx, u)
	b.record(ctx, "read", start, res.Err)
	return res
}

func (b *instrumentedBackend) ReadMulti(ctx context.Context, uris []string) substrate.ReadMultiResult {
	defer b.obs.TrackActive(ctx, "readMulti")()
	start := time.Now()
	res := b.inner.ReadMulti(ctx, uris)
	var err error
	if !res.Success {
		err = substrate.NewError(substrate.KindNotFound, "readMulti: all %d reads failed", res.Total)
	}
	b.record(ctx, "readMulti", start, err)
	return res
}

func (b *instrumentedBackend) List(ctx context.Context, prefix string, opts substrate.ListOptions) substrate.ListResult {
	defer b.obs.TrackActive(ctx, "list")()
	start := time.Now()
	res := b.inner.List(ctx, prefix, opts)
	b.record(ctx, "list", start, res.Err)
	return res
}

func (b *instrumentedBackend) Delete(ctx context.Context, u string) substrate.DeleteResult {
	defer b.obs.TrackActive(ctx, "delete")()
	start := time.Now()
	res := b.inner.Delete(ctx, u)
	b.record(ctx, "delete", start, res.Err)
	return res
}

func (b *instrumentedBackend) Health(ctx context.Context) substrate.HealthResult {
	start := time.Now()
	res := b.inner.Health(ctx)
	var err error
	if res.Status != substrate.HealthHealthy {
		err = substrate.NewError(substrate.KindTransport, "%s", res.Message)
	}
	b.record(ctx, "health", start, err)
	return res
}

func (b *instrumentedBackend) GetSchema(ctx context.Context) []string {
	return b.inner.GetSchema(ctx)
}

func (b *instrumentedBackend) Cleanup(ctx context.Context) error {
	start := time.Now()
	err := b.inner.Cleanup(ctx)
	b.record(ctx, "cleanup", start, err)
	return err
}
