// Package combinator implements the composition operators that build a
// composite substrate.Backend out of other backends: parallelBroadcast for
// write fan-out, firstMatchSequence for read fall-through, and
// validatedClient to tie a write side, a read side, and a validator
// together.
//
// Grounded on the teacher's pkg/database/multiregion.go MultiRegionRouter
// (health map guarded by RWMutex, per-region fan-out/failover), generalized
// from SQL connections over fixed primary/secondary/tertiary regions to an
// arbitrary slice of substrate.Backend children.
package combinator

import (
	"context"
	"sync"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
)

// AcceptPolicy governs how a parallelBroadcast aggregates child accept
// results into a single accepted/rejected outcome.
type AcceptPolicy string

const (
	// PolicyMajority accepts iff strictly more than half of the children
	// accepted. This is the default.
	PolicyMajority AcceptPolicy = "majority"
	// PolicyAll requires every child to accept.
	PolicyAll AcceptPolicy = "all"
	// PolicyAny accepts if at least one child accepted.
	PolicyAny AcceptPolicy = "any"
)

// Broadcast is a write-mostly composite that fans receive() and delete()
// out to every child concurrently, the former aggregated per the
// configured AcceptPolicy. read, list, and readMulti are not-implemented —
// a Broadcast is paired with a Sequence for reads (see ValidatedClient).
// health is healthy iff any child is healthy; cleanup invokes every child
// and swallows per-child errors.
type Broadcast struct {
	children []substrate.Backend
	policy   AcceptPolicy
}

// NewBroadcast builds a Broadcast over children with the given accept
// policy. An empty policy defaults to PolicyMajority.
func NewBroadcast(policy AcceptPolicy, children ...substrate.Backend) *Broadcast {
	if policy == "" {
		policy = PolicyMajority
	}
	return &Broadcast{children: children, policy: policy}
}

type childReceiveOutcome struct {
	res substrate.ReceiveResult
}

// Receive dispatches to every child concurrently, cancelling in-flight
// children if ctx is cancelled, and aggregates by AcceptPolicy.
func (b *Broadcast) Receive(ctx context.Context, msg record.Message) substrate.ReceiveResult {
	if len(b.children) == 0 {
		return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindTransport, "no children configured")}
	}

	outcomes := make([]childReceiveOutcome, len(b.children))
	var wg sync.WaitGroup
	for i, child := range b.children {
		wg.Add(1)
		go func(i int, child substrate.Backend) {
			defer wg.Done()
			outcomes[i] = childReceiveOutcome{res: child.Receive(ctx, msg)}
		}(i, child)
	}
	wg.Wait()

	accepted := 0
	var firstErr error
	for _, o := range outcomes {
		if o.res.Accepted {
			accepted++
		} else if firstErr == nil && o.res.Err != nil {
			firstErr = o.res.Err
		}
	}

	ok := false
	switch b.policy {
	case PolicyAll:
		ok = accepted == len(b.children)
	case PolicyAny:
		ok = accepted > 0
	default:
		ok = accepted*2 > len(b.children)
	}

	if !ok {
		if ctx.Err() != nil {
			return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindCancelled, "broadcast cancelled with %d/%d accepts", accepted, len(b.children))}
		}
		if firstErr == nil {
			firstErr = substrate.NewError(substrate.KindTransport, "accept policy %s not met: %d/%d accepted", b.policy, accepted, len(b.children))
		}
		return substrate.ReceiveResult{Accepted: false, Err: firstErr}
	}
	return substrate.ReceiveResult{Accepted: true}
}

func (b *Broadcast) Read(ctx context.Context, uri string) substrate.ReadResult {
	return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindNotImplemented, "broadcast is write-only")}
}

func (b *Broadcast) ReadMulti(ctx context.Context, uris []string) substrate.ReadMultiResult {
	return substrate.ReadMultiResult{Success: false}
}

func (b *Broadcast) List(ctx context.Context, uri string, opts substrate.ListOptions) substrate.ListResult {
	return substrate.ListResult{Success: false, Err: substrate.NewError(substrate.KindNotImplemented, "broadcast is write-only")}
}

// Delete fans out to every child concurrently, the same as Receive, and
// succeeds if at least one child reports success — a child that never held
// the URI (e.g. it joined after the original write) reporting not-found
// should not sink an otherwise-successful delete.
func (b *Broadcast) Delete(ctx context.Context, uri string) substrate.DeleteResult {
	if len(b.children) == 0 {
		return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindTransport, "no children configured")}
	}

	results := make([]substrate.DeleteResult, len(b.children))
	var wg sync.WaitGroup
	for i, child := range b.children {
		wg.Add(1)
		go func(i int, child substrate.Backend) {
			defer wg.Done()
			results[i] = child.Delete(ctx, uri)
		}(i, child)
	}
	wg.Wait()

	var firstErr error
	for _, r := range results {
		if r.Success {
			return substrate.DeleteResult{Success: true}
		}
		if firstErr == nil && r.Err != nil {
			firstErr = r.Err
		}
	}
	if firstErr == nil {
		firstErr = substrate.NewError(substrate.KindNotFound, "%s", uri)
	}
	return substrate.DeleteResult{Success: false, Err: firstErr}
}

// Health is healthy iff at least one child is healthy.
func (b *Broadcast) Health(ctx context.Context) substrate.HealthResult {
	for _, child := range b.children {
		if child.Health(ctx).Status == substrate.HealthHealthy {
			return substrate.HealthResult{Status: substrate.HealthHealthy}
		}
	}
	return substrate.HealthResult{Status: substrate.HealthUnhealthy, Message: "no healthy children"}
}

// GetSchema unions every child's schema list.
func (b *Broadcast) GetSchema(ctx context.Context) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, child := range b.children {
		for _, k := range child.GetSchema(ctx) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Cleanup invokes every child and swallows per-child errors.
func (b *Broadcast) Cleanup(ctx context.Context) error {
	for _, child := range b.children {
		_ = child.Cleanup(ctx)
	}
	return nil
}
