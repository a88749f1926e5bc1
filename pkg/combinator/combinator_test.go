package combinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratefabric/core/pkg/memstore"
	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/validator"
)

func acceptAll() validator.Func {
	return validator.Schema(validator.NewRegistry(validator.Accept))
}

func newMem() substrate.Backend { return memstore.New(acceptAll(), nil) }

func TestBroadcast_MajorityAccepts(t *testing.T) {
	b := NewBroadcast(PolicyMajority, newMem(), newMem(), newMem())
	res := b.Receive(context.Background(), record.Message{URI: "mutable://open/x", Data: record.NewStruct(1)})
	assert.True(t, res.Accepted)
}

func TestBroadcast_AllPolicyFailsOnPartial(t *testing.T) {
	good := newMem()
	failing := &rejectingBackend{}
	b := NewBroadcast(PolicyAll, good, failing)
	res := b.Receive(context.Background(), record.Message{URI: "mutable://open/x", Data: record.NewStruct(1)})
	assert.False(t, res.Accepted)
}

func TestBroadcast_AnyPolicySucceedsOnOne(t *testing.T) {
	good := newMem()
	failing := &rejectingBackend{}
	b := NewBroadcast(PolicyAny, good, failing)
	res := b.Receive(context.Background(), record.Message{URI: "mutable://open/x", Data: record.NewStruct(1)})
	assert.True(t, res.Accepted)
}

func TestBroadcast_ReadNotImplemented(t *testing.T) {
	b := NewBroadcast(PolicyMajority, newMem())
	rr := b.Read(context.Background(), "mutable://open/x")
	assert.Equal(t, substrate.KindNotImplemented, substrate.KindOf(rr.Err))
}

func TestBroadcast_DeleteSucceedsIfAnyChildHadIt(t *testing.T) {
	present := newMem()
	present.Receive(context.Background(), record.Message{URI: "mutable://open/x", Data: record.NewStruct(1)})
	absent := newMem()

	b := NewBroadcast(PolicyMajority, present, absent)
	res := b.Delete(context.Background(), "mutable://open/x")
	assert.True(t, res.Success)
}

func TestBroadcast_DeleteNotFoundWhenNoChildHasIt(t *testing.T) {
	b := NewBroadcast(PolicyMajority, newMem(), newMem())
	res := b.Delete(context.Background(), "mutable://open/x")
	assert.False(t, res.Success)
	assert.Equal(t, substrate.KindNotFound, substrate.KindOf(res.Err))
}

// TestValidatedClient_BroadcastWriteSequenceRead matches the composition
// cmd/substrate's buildBackend actually builds for a multi-backend config:
// write fans out to every child, read tries children in order. This is the
// path spec.md §4.4's "typical composition" describes and spec.md §8's
// write-then-read invariant depends on.
func TestValidatedClient_BroadcastWriteSequenceRead(t *testing.T) {
	a, b2 := newMem(), newMem()
	vc := NewValidatedClient(NewBroadcast(PolicyMajority, a, b2), NewSequence(a, b2), acceptAll())

	res := vc.Receive(context.Background(), record.Message{URI: "mutable://open/x", Data: record.NewStruct(1)})
	require.True(t, res.Accepted)

	rr := vc.Read(context.Background(), "mutable://open/x")
	require.True(t, rr.Success)

	lr := vc.List(context.Background(), "mutable://open/", substrate.ListOptions{})
	require.True(t, lr.Success)
	assert.Equal(t, 1, lr.Pagination.Total)

	dr := vc.Delete(context.Background(), "mutable://open/x")
	assert.True(t, dr.Success)
}

func TestSequence_FallsThroughToSecond(t *testing.T) {
	first := newMem()
	second := newMem()
	second.Receive(context.Background(), record.Message{URI: "mutable://open/x", Data: record.NewStruct(1)})

	seq := NewSequence(first, second)
	rr := seq.Read(context.Background(), "mutable://open/x")
	assert.True(t, rr.Success)
}

func TestSequence_AllNotFoundReturnsNotFound(t *testing.T) {
	seq := NewSequence(newMem(), newMem())
	rr := seq.Read(context.Background(), "mutable://open/x")
	require.False(t, rr.Success)
	assert.Equal(t, substrate.KindNotFound, substrate.KindOf(rr.Err))
}

func TestValidatedClient_ReceiveAndRead(t *testing.T) {
	write := newMem()
	read := newMem()
	vc := NewValidatedClient(write, read, acceptAll())

	res := vc.Receive(context.Background(), record.Message{URI: "mutable://open/x", Data: record.NewStruct(1)})
	assert.True(t, res.Accepted)

	rr := vc.Read(context.Background(), "mutable://open/x")
	assert.False(t, rr.Success) // write and read sides are distinct backends here
}

type rejectingBackend struct{}

func (r *rejectingBackend) Receive(ctx context.Context, msg record.Message) substrate.ReceiveResult {
	return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindTransport, "nope")}
}
func (r *rejectingBackend) Read(ctx context.Context, uri string) substrate.ReadResult {
	return substrate.ReadResult{Success: false, Err: substrate.NewError(substrate.KindNotFound, "%s", uri)}
}
func (r *rejectingBackend) ReadMulti(ctx context.Context, uris []string) substrate.ReadMultiResult {
	return substrate.ReadMultiResult{}
}
func (r *rejectingBackend) List(ctx context.Context, uri string, opts substrate.ListOptions) substrate.ListResult {
	return substrate.ListResult{}
}
func (r *rejectingBackend) Delete(ctx context.Context, uri string) substrate.DeleteResult {
	return substrate.DeleteResult{}
}
func (r *rejectingBackend) Health(ctx context.Context) substrate.HealthResult {
	return substrate.HealthResult{Status: substrate.HealthUnhealthy}
}
func (r *rejectingBackend) GetSchema(ctx context.Context) []string { return nil }
func (r *rejectingBackend) Cleanup(ctx context.Context) error      { return nil }
