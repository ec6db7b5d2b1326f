package reports

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a report id is unknown.
var ErrNotFound = errors.New("report not found")

// Repository port for persisting and querying reports
type Repository interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, id ReportID) (*Record, error)
	Paginate(ctx context.Context, page, pageSize int, filter Filter) (PaginatedResult, error)
}

// ArchiveStore port (interface untuk penyimpanan artefak laporan)
type ArchiveStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	Company string
	Status  Status
}
