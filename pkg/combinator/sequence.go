package combinator

import (
	"context"

	"github.com/substratefabric/core/pkg/record"
	"github.com/substratefabric/core/pkg/substrate"
	"github.com/substratefabric/core/pkg/uri"
	"github.com/substratefabric/core/pkg/validator"
)

// Sequence is a read-only composite that tries each child in order and
// returns the first success. Writes and delete are not-implemented.
type Sequence struct {
	children []substrate.Backend
}

// NewSequence builds a Sequence over children, tried in the given order.
func NewSequence(children ...substrate.Backend) *Sequence {
	return &Sequence{children: children}
}

func (s *Sequence) Receive(ctx context.Context, msg record.Message) substrate.ReceiveResult {
	return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindNotImplemented, "sequence is read-only")}
}

// Read tries each child in order, returning the first success=true. On
// all-not-found, returns the last not-found error; a transport error from a
// child also falls through to the next child.
func (s *Sequence) Read(ctx context.Context, uri string) substrate.ReadResult {
	var last substrate.ReadResult
	for _, child := range s.children {
		r := child.Read(ctx, uri)
		if r.Success {
			return r
		}
		last = r
	}
	if last.Err == nil {
		last.Err = substrate.NewError(substrate.KindNotFound, "%s", uri)
	}
	return last
}

func (s *Sequence) ReadMulti(ctx context.Context, uris []string) substrate.ReadMultiResult {
	if len(uris) > substrate.MaxReadMulti {
		uris = uris[:substrate.MaxReadMulti]
	}
	results := make(map[string]substrate.ReadResult, len(uris))
	succeeded, failed := 0, 0
	for _, u := range uris {
		r := s.Read(ctx, u)
		results[u] = r
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}
	return substrate.ReadMultiResult{
		Success:   succeeded > 0,
		Results:   results,
		Total:     len(uris),
		Succeeded: succeeded,
		Failed:    failed,
	}
}

// List tries each child in order, returning the first success.
func (s *Sequence) List(ctx context.Context, uri string, opts substrate.ListOptions) substrate.ListResult {
	var last substrate.ListResult
	for _, child := range s.children {
		r := child.List(ctx, uri, opts)
		if r.Success {
			return r
		}
		last = r
	}
	return last
}

func (s *Sequence) Delete(ctx context.Context, uri string) substrate.DeleteResult {
	return substrate.DeleteResult{Success: false, Err: substrate.NewError(substrate.KindNotImplemented, "sequence is read-only")}
}

// Health is healthy iff any child is healthy.
func (s *Sequence) Health(ctx context.Context) substrate.HealthResult {
	for _, child := range s.children {
		if child.Health(ctx).Status == substrate.HealthHealthy {
			return substrate.HealthResult{Status: substrate.HealthHealthy}
		}
	}
	return substrate.HealthResult{Status: substrate.HealthUnhealthy, Message: "no healthy children"}
}

func (s *Sequence) GetSchema(ctx context.Context) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, child := range s.children {
		for _, k := range child.GetSchema(ctx) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	return keys
}

func (s *Sequence) Cleanup(ctx context.Context) error {
	for _, child := range s.children {
		_ = child.Cleanup(ctx)
	}
	return nil
}

// ValidatedClient wraps a write backend and a read backend with a
// validator: receive() runs the validator (bound to the read backend's
// read), then forwards to the write backend. Reads/list/readMulti delegate
// to the read backend; delete delegates to the write backend.
type ValidatedClient struct {
	Write    substrate.Backend
	Read_    substrate.Backend
	Validate validator.Func
}

// NewValidatedClient builds a ValidatedClient.
func NewValidatedClient(write, read substrate.Backend, validate validator.Func) *ValidatedClient {
	return &ValidatedClient{Write: write, Read_: read, Validate: validate}
}

func (v *ValidatedClient) Receive(ctx context.Context, msg record.Message) substrate.ReceiveResult {
	if v.Validate != nil {
		parsed, err := uri.Parse(msg.URI)
		if err != nil {
			return substrate.ReceiveResult{Accepted: false, Err: substrate.NewError(substrate.KindValidationFailed, "%v", err)}
		}
		if err := v.Validate(ctx, parsed, msg.Data, v.Read_.Read); err != nil {
			return substrate.ReceiveResult{Accepted: false, Err: err}
		}
	}
	return v.Write.Receive(ctx, msg)
}

func (v *ValidatedClient) Read(ctx context.Context, uri string) substrate.ReadResult {
	return v.Read_.Read(ctx, uri)
}

func (v *ValidatedClient) ReadMulti(ctx context.Context, uris []string) substrate.ReadMultiResult {
	return v.Read_.ReadMulti(ctx, uris)
}

func (v *ValidatedClient) List(ctx context.Context, uri string, opts substrate.ListOptions) substrate.ListResult {
	return v.Read_.List(ctx, uri, opts)
}

func (v *ValidatedClient) Delete(ctx context.Context, uri string) substrate.DeleteResult {
	return v.Write.Delete(ctx, uri)
}

func (v *ValidatedClient) Health(ctx context.Context) substrate.HealthResult {
	return v.Read_.Health(ctx)
}

func (v *ValidatedClient) GetSchema(ctx context.Context) []string {
	return v.Read_.GetSchema(ctx)
}

func (v *ValidatedClient) Cleanup(ctx context.Context) error {
	if err := v.Write.Cleanup(ctx); err != nil {
		return err
	}
	return v.Read_.Cleanup(ctx)
}
