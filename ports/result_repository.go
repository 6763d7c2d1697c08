package ports

import (
	"context"
	"time"

	"edgeproof/domain/core"
	"edgeproof/domain/result"
)

// ResultRepository persists finished validation records
type ResultRepository interface {
	Save(ctx context.Context, record result.Record) error
	Get(ctx context.Context, runID core.RunID) (*result.Record, error)
	List(ctx context.Context, limit int) ([]RecordSummary, error)
}

// RecordSummary is the listing view of a stored record
type RecordSummary struct {
	RunID         core.RunID        `json:"run_id" db:"run_id"`
	SchemaVersion string            `json:"schema_version" db:"schema_version"`
	Primary       core.HypothesisID `json:"primary" db:"primary_id"`
	CreatedAt     time.Time         `json:"created_at" db:"created_at"`
}

// ResultCache is a content-addressed store for expensive intermediate
// results. A miss is reported as (nil, false, nil).
type ResultCache interface {
	Get(ctx context.Context, key core.Hash) ([]byte, bool, error)
	Set(ctx context.Context, key core.Hash, value []byte, ttl time.Duration) error
}
