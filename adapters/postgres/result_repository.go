package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"edgeproof/domain/core"
	"edgeproof/domain/result"
	apperrors "edgeproof/internal/errors"
	"edgeproof/ports"
)

// ResultRepository stores validation records as JSONB rows
type ResultRepository struct {
	db *sqlx.DB
}

var _ ports.ResultRepository = (*ResultRepository)(nil)

// NewResultRepository creates a PostgreSQL result repository
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// Connect opens a connection pool without touching the schema
func Connect(ctx context.Context, url string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, apperrors.DatabaseError("connect", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		db.SetMaxIdleConns(maxIdle)
	}
	return db, nil
}

// Open connects to PostgreSQL and applies pending migrations
func Open(ctx context.Context, url string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := Connect(ctx, url, maxOpen, maxIdle)
	if err != nil {
		return nil, err
	}
	if _, err := NewMigrator(db).Up(ctx); err != nil {
		db.Close()
		return nil, apperrors.DatabaseError("migrate", err)
	}
	return db, nil
}

type recordRow struct {
	RunID             string    `db:"run_id"`
	SchemaVersion     string    `db:"schema_version"`
	PrimaryID         string    `db:"primary_id"`
	InputFingerprint  string    `db:"input_fingerprint"`
	ConfigFingerprint string    `db:"config_fingerprint"`
	CreatedAt         time.Time `db:"created_at"`
	Record            []byte    `db:"record"`
}

// Save inserts a record. Records are immutable: saving a run_id twice
// with different content is rejected, an identical resave is a no-op.
func (r *ResultRepository) Save(ctx context.Context, record result.Record) error {
	if record.RunID == "" {
		return apperrors.InvalidInput("run_id is required")
	}
	body, err := json.Marshal(record)
	if err != nil {
		return apperrors.Wrap(err, "encode record")
	}

	row := recordRow{
		RunID:             string(record.RunID),
		SchemaVersion:     record.SchemaVersion,
		PrimaryID:         string(record.Primary),
		InputFingerprint:  string(record.InputFingerprint),
		ConfigFingerprint: string(record.ConfigFingerprint),
		CreatedAt:         record.CreatedAt.UTC(),
		Record:            body,
	}
	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO validation_results
			(run_id, schema_version, primary_id, input_fingerprint, config_fingerprint, created_at, record)
		VALUES
			(:run_id, :schema_version, :primary_id, :input_fingerprint, :config_fingerprint, :created_at, :record)
	`, row)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
		existing, getErr := r.Get(ctx, record.RunID)
		if getErr != nil {
			return getErr
		}
		same, err := sameRecord(existing, body)
		if err != nil {
			return err
		}
		if same {
			return nil
		}
		return apperrors.WithCode(apperrors.CodeInvalidInput,
			fmt.Errorf("run %s already stored with a different record", record.RunID))
	}
	return apperrors.DatabaseError("save record", err)
}

// sameRecord reports whether the stored record encodes to body
func sameRecord(existing *result.Record, body []byte) (bool, error) {
	prev, err := json.Marshal(existing)
	if err != nil {
		return false, apperrors.Wrap(err, "encode stored record")
	}
	return string(prev) == string(body), nil
}

// Get loads the record of one run
func (r *ResultRepository) Get(ctx context.Context, runID core.RunID) (*result.Record, error) {
	var body []byte
	err := r.db.GetContext(ctx, &body, `
		SELECT record
		FROM validation_results
		WHERE run_id = $1
	`, string(runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrResultNotFound, runID)
	}
	if err != nil {
		return nil, apperrors.DatabaseError("get record", err)
	}

	var record result.Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, apperrors.Wrap(err, "decode record")
	}
	return &record, nil
}

// List returns summaries of the most recent records
func (r *ResultRepository) List(ctx context.Context, limit int) ([]ports.RecordSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var summaries []ports.RecordSummary
	err := r.db.SelectContext(ctx, &summaries, `
		SELECT run_id, schema_version, primary_id, created_at
		FROM validation_results
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apperrors.DatabaseError("list records", err)
	}
	return summaries, nil
}
