package postgres

import (
	"context"
	"crypto/sha256"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// ErrMigrationChanged reports an applied migration whose SQL no longer
// matches the checksum recorded when it ran
var ErrMigrationChanged = errors.New("applied migration changed")

// MigrationFile is one versioned schema change
type MigrationFile struct {
	Version string
	Name    string
	SQL     string
}

// Migrator applies the embedded schema migrations in version order
type Migrator struct {
	db    *sqlx.DB
	files fs.FS
}

// NewMigrator creates a migrator over the embedded migration set
func NewMigrator(db *sqlx.DB) *Migrator {
	return &Migrator{db: db, files: migrationFS}
}

// Up executes all pending migrations and returns the versions it applied.
// It refuses to run when an applied migration was edited afterwards.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := m.migrationFiles()
	if err != nil {
		return nil, fmt.Errorf("failed to find migration files: %w", err)
	}

	for _, file := range files {
		if sum, ok := applied[file.Version]; ok && sum != checksum(file.SQL) {
			return nil, fmt.Errorf("%w: %s_%s", ErrMigrationChanged, file.Version, file.Name)
		}
	}

	var done []string
	for _, file := range files {
		if _, ok := applied[file.Version]; ok {
			continue
		}
		if err := m.apply(ctx, file); err != nil {
			return done, fmt.Errorf("failed to apply migration %s: %w", file.Version, err)
		}
		done = append(done, file.Version)
	}
	return done, nil
}

type appliedMigration struct {
	Version  string `db:"version"`
	Checksum string `db:"checksum"`
}

// appliedVersions maps each applied version to its recorded checksum
func (m *Migrator) appliedVersions(ctx context.Context) (map[string]string, error) {
	var rows []appliedMigration
	if err := m.db.SelectContext(ctx, &rows, `SELECT version, checksum FROM schema_migrations`); err != nil {
		return nil, err
	}
	applied := make(map[string]string, len(rows))
	for _, r := range rows {
		applied[r.Version] = r.Checksum
	}
	return applied, nil
}

func (m *Migrator) migrationFiles() ([]MigrationFile, error) {
	entries, err := fs.Glob(m.files, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	files := make([]MigrationFile, 0, len(entries))
	for _, entry := range entries {
		data, err := fs.ReadFile(m.files, entry)
		if err != nil {
			return nil, err
		}
		base := strings.TrimSuffix(path.Base(entry), ".sql")
		version, name, ok := strings.Cut(base, "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: expected <version>_<name>.sql", entry)
		}
		files = append(files, MigrationFile{Version: version, Name: name, SQL: string(data)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

func (m *Migrator) apply(ctx context.Context, file MigrationFile) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, file.SQL); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, checksum) VALUES ($1, $2)`,
		file.Version, checksum(file.SQL))
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

func checksum(s string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(s)))
}
