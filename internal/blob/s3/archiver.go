package s3blob

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/copybot/internal/domain"
)

// ClosedSnapshotter exposes the closed-queue document for export. The
// in-memory closed queue satisfies this.
type ClosedSnapshotter interface {
	Snapshot() domain.ClosedQueueDocument
}

// journalPageSize bounds each journal query during export.
const journalPageSize = 1000

// ArchiveImpl implements domain.Archiver by serializing trading history to
// gzip-compressed JSON and uploading it to object storage.
//
// Archives are additive snapshots; nothing is deleted from the primary
// stores here.
type ArchiveImpl struct {
	writer  domain.BlobWriter
	closed  ClosedSnapshotter
	journal domain.TradeJournal
	prefix  string
}

// NewArchiver creates an ArchiveImpl. prefix is prepended to every object
// key, e.g. "copybot/prod".
func NewArchiver(writer domain.BlobWriter, closed ClosedSnapshotter, journal domain.TradeJournal, prefix string) *ArchiveImpl {
	if prefix == "" {
		prefix = "copybot"
	}
	return &ArchiveImpl{
		writer:  writer,
		closed:  closed,
		journal: journal,
		prefix:  prefix,
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveClosedPositions uploads the full closed-queue document as one gzip
// JSON object, keyed by the asOf timestamp. It returns the number of
// positions exported.
func (a *ArchiveImpl) ArchiveClosedPositions(ctx context.Context, asOf time.Time) (int64, error) {
	doc := a.closed.Snapshot()

	var count int64
	for _, tokens := range doc {
		for _, positions := range tokens {
			count += int64(len(positions))
		}
	}
	if count == 0 {
		return 0, nil
	}

	body, err := gzipJSON(doc)
	if err != nil {
		return 0, fmt.Errorf("s3blob: encode closed positions: %w", err)
	}

	key := fmt.Sprintf("%s/closed/%s.json.gz", a.prefix, asOf.UTC().Format("2006-01-02T15-04-05"))
	if err := a.writer.Put(ctx, key, bytes.NewReader(body), "application/gzip"); err != nil {
		return 0, err
	}
	return count, nil
}

// ArchiveJournal exports all journal entries recorded before the cutoff as
// gzip JSONL, paging through the journal store. It returns the number of
// entries exported.
func (a *ArchiveImpl) ArchiveJournal(ctx context.Context, before time.Time) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)

	var count int64
	offset := 0
	for {
		entries, err := a.journal.ListAll(ctx, domain.ListOpts{
			Limit:  journalPageSize,
			Offset: offset,
			Until:  &before,
		})
		if err != nil {
			return 0, fmt.Errorf("s3blob: list journal: %w", err)
		}
		if len(entries) == 0 {
			break
		}
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return 0, fmt.Errorf("s3blob: encode journal entry %d: %w", e.ID, err)
			}
			count++
		}
		if len(entries) < journalPageSize {
			break
		}
		offset += len(entries)
	}

	if count == 0 {
		return 0, nil
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("s3blob: compress journal: %w", err)
	}

	key := fmt.Sprintf("%s/journal/%s.jsonl.gz", a.prefix, before.UTC().Format("2006-01-02"))
	if err := a.writer.Put(ctx, key, bytes.NewReader(buf.Bytes()), "application/gzip"); err != nil {
		return 0, err
	}
	return count, nil
}

// gzipJSON marshals v and compresses the result.
func gzipJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if err := json.NewEncoder(gz).Encode(v); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
