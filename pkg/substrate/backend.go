package substrate

import (
	"context"

	"github.com/substratefabric/core/pkg/record"
)

// MaxReadMulti is the hard cap on URIs per readMulti call.
const MaxReadMulti = 50

// DefaultListLimit and MaxListLimit bound list() pagination.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// SortBy selects the list() ordering key.
type SortBy string

const (
	SortByName      SortBy = "name"
	SortByTimestamp SortBy = "timestamp"
)

// SortOrder selects list() direction.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ListOptions configures list().
type ListOptions struct {
	Page      int
	Limit     int
	Pattern   string
	SortBy    SortBy
	SortOrder SortOrder
}

// Normalize fills in defaults and clamps Limit to MaxListLimit, mirroring
// the in-memory reference backend's pagination contract.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.SortBy == "" {
		o.SortBy = SortByName
	}
	if o.SortOrder == "" {
		o.SortOrder = SortAsc
	}
	return o
}

// ReceiveResult is the outcome of a receive() call.
type ReceiveResult struct {
	Accepted  bool
	Duplicate bool
	Err       error
}

// ReadResult is the outcome of a read() call.
type ReadResult struct {
	Success bool
	Record  *record.Record
	Err     error
}

// ReadMultiResult is the outcome of a readMulti() call.
type ReadMultiResult struct {
	Success   bool
	Results   map[string]ReadResult
	Total     int
	Succeeded int
	Failed    int
}

// ListEntry is a single list() result row.
type ListEntry struct {
	URI string
	Ts  int64
}

// Pagination describes the page window returned by list().
type Pagination struct {
	Page  int
	Limit int
	Total int
}

// ListResult is the outcome of a list() call.
type ListResult struct {
	Success    bool
	Data       []ListEntry
	Pagination Pagination
	Err        error
}

// DeleteResult is the outcome of a delete() call.
type DeleteResult struct {
	Success bool
	Err     error
}

// HealthStatus is the health() status vocabulary.
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthResult is the outcome of a health() call.
type HealthResult struct {
	Status  HealthStatus
	Message string
	Details map[string]any
}

// Backend is the uniform protocol every storage implementation and
// combinator satisfies.
type Backend interface {
	Receive(ctx context.Context, msg record.Message) ReceiveResult
	Read(ctx context.Context, uri string) ReadResult
	ReadMulti(ctx context.Context, uris []string) ReadMultiResult
	List(ctx context.Context, uri string, opts ListOptions) ListResult
	Delete(ctx context.Context, uri string) DeleteResult
	Health(ctx context.Context) HealthResult
	GetSchema(ctx context.Context) []string
	Cleanup(ctx context.Context) error
}
