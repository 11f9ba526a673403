package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements AttestationStore with PostgreSQL persistence.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed audit store from a
// connection string.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attestation_audit (
		id UUID PRIMARY KEY,
		kpi_value BIGINT NOT NULL,
		entries_processed INTEGER NOT NULL,
		computation_hash VARCHAR(64) NOT NULL,
		attested_at_ms BIGINT NOT NULL,
		tee_public_key VARCHAR(64) NOT NULL,
		attestation BYTEA NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_audit_created ON attestation_audit(created_at);
	CREATE INDEX IF NOT EXISTS idx_audit_hash ON attestation_audit(computation_hash);
	`

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Save persists one audit record. Records are write-once; replaying the same
// ID is a no-op.
func (s *PostgresStore) Save(ctx context.Context, record *AuditRecord) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := `
	INSERT INTO attestation_audit
		(id, kpi_value, entries_processed, computation_hash, attested_at_ms, tee_public_key, attestation, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO NOTHING
	`

	_, err := s.db.ExecContext(ctx, query,
		record.ID,
		record.KPIValue,
		record.EntriesProcessed,
		record.ComputationHash,
		record.Timestamp,
		record.TEEPublicKey,
		[]byte(record.AttestationBytes),
		record.CreatedAt,
	)
	return err
}

// Recent returns up to limit records, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*AuditRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kpi_value, entries_processed, computation_hash, attested_at_ms, tee_public_key, attestation, created_at
		FROM attestation_audit
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*AuditRecord
	for rows.Next() {
		var (
			record      AuditRecord
			attestation []byte
		)
		if err := rows.Scan(
			&record.ID,
			&record.KPIValue,
			&record.EntriesProcessed,
			&record.ComputationHash,
			&record.Timestamp,
			&record.TEEPublicKey,
			&attestation,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		record.AttestationBytes = ByteArray(attestation)
		result = append(result, &record)
	}

	return result, rows.Err()
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
