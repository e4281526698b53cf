package domain

import (
	"context"
	"io"
	"time"
)

// BlobInfo describes one archived object.
type BlobInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// BlobWriter uploads archive snapshots to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader serves the archive inventory endpoints.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
}

// Archiver exports trading history snapshots to cold storage.
type Archiver interface {
	ArchiveClosedPositions(ctx context.Context, asOf time.Time) (int64, error)
	ArchiveJournal(ctx context.Context, before time.Time) (int64, error)
}
