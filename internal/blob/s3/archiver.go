package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/algorhythmic/marketfinder/internal/domain"
)

// PassArchiver uploads a JSONL snapshot of each pipeline pass so detection
// runs can be replayed or audited offline. Snapshots are append-only; nothing
// uploaded here is ever read back by the pipeline itself.
type PassArchiver struct {
	writer domain.BlobWriter
}

// NewPassArchiver creates a new PassArchiver.
func NewPassArchiver(writer domain.BlobWriter) *PassArchiver {
	return &PassArchiver{writer: writer}
}

// ArchiveListings uploads the normalized listings ingested during a pass to
// snapshots/listings/YYYY-MM-DD/hhmmss.jsonl and returns the record count.
func (a *PassArchiver) ArchiveListings(ctx context.Context, at time.Time, listings []domain.Listing) (int64, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(listings)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive listings marshal: %w", err)
	}

	key := snapshotKey("listings", at)
	if err := a.writer.Write(ctx, key, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive listings upload: %w", err)
	}
	return int64(len(listings)), nil
}

// ArchiveOpportunities uploads the opportunities produced during a pass to
// snapshots/opportunities/YYYY-MM-DD/hhmmss.jsonl and returns the record
// count.
func (a *PassArchiver) ArchiveOpportunities(ctx context.Context, at time.Time, opps []domain.ArbitrageOpportunity) (int64, error) {
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities marshal: %w", err)
	}

	key := snapshotKey("opportunities", at)
	if err := a.writer.Write(ctx, key, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive opportunities upload: %w", err)
	}
	return int64(len(opps)), nil
}

// snapshotKey builds the S3 key for a pass snapshot, partitioned by day.
//
//	snapshots/listings/2026-08-30/141502.jsonl
//	snapshots/opportunities/2026-08-30/141502.jsonl
func snapshotKey(kind string, at time.Time) string {
	return fmt.Sprintf("snapshots/%s/%s/%s.jsonl", kind, at.UTC().Format("2006-01-02"), at.UTC().Format("150405"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
