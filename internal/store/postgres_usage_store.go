package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dunamismax/mediaproc/internal/domain"
	_ "github.com/lib/pq"
)

const usageSchemaSQL = `
CREATE TABLE IF NOT EXISTS transform_usage (
	id TEXT PRIMARY KEY,
	object_key TEXT NOT NULL,
	output_format TEXT NOT NULL,
	source_bytes BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	bytes_saved BIGINT NOT NULL,
	pixels_processed BIGINT NOT NULL,
	compute_time_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transform_usage_created_at_idx ON transform_usage (created_at);
`

type PostgresUsageStore struct {
	db *sql.DB
}

func NewPostgresUsageStore(ctx context.Context, dsn string) (*PostgresUsageStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresUsageStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresUsageStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, usageSchemaSQL); err != nil {
		return fmt.Errorf("ensure transform_usage schema: %w", err)
	}
	return nil
}

func (s *PostgresUsageStore) Close() error {
	return s.db.Close()
}

func (s *PostgresUsageStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresUsageStore) CreateUsageLog(ctx context.Context, usage domain.UsageLog) error {
	createdAt := usage.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO transform_usage (
			id, object_key, output_format, source_bytes, output_bytes,
			bytes_saved, pixels_processed, compute_time_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		usage.ID,
		usage.ObjectKey,
		string(usage.Format),
		usage.SourceBytes,
		usage.OutputBytes,
		usage.BytesSaved(),
		usage.PixelsProcessed,
		usage.ComputeTimeMS,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage log %s: %w", usage.ID, err)
	}
	return nil
}

// Summary aggregates usage recorded at or after since.
func (s *PostgresUsageStore) Summary(ctx context.Context, since time.Time) (UsageSummary, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(pixels_processed), 0),
			COALESCE(SUM(bytes_saved), 0),
			COALESCE(SUM(compute_time_ms), 0)
		FROM transform_usage
		WHERE created_at >= $1`,
		since,
	)

	var sum UsageSummary
	if err := row.Scan(&sum.Transforms, &sum.PixelsProcessed, &sum.BytesSaved, &sum.ComputeTimeMS); err != nil {
		return UsageSummary{}, fmt.Errorf("query usage summary: %w", err)
	}
	return sum, nil
}

func (s *PostgresUsageStore) Recent(ctx context.Context, limit int) ([]domain.UsageLog, error) {
	if limit <= 0 {
		return []domain.UsageLog{}, nil
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, object_key, output_format, source_bytes, output_bytes,
			pixels_processed, compute_time_ms, created_at
		FROM transform_usage
		ORDER BY created_at DESC
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent usage: %w", err)
	}
	defer rows.Close()

	logs := make([]domain.UsageLog, 0, limit)
	for rows.Next() {
		var (
			u      domain.UsageLog
			format string
		)
		if err := rows.Scan(&u.ID, &u.ObjectKey, &format, &u.SourceBytes, &u.OutputBytes,
			&u.PixelsProcessed, &u.ComputeTimeMS, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage row: %w", err)
		}
		u.Format = domain.OutputFormat(format)
		logs = append(logs, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage rows: %w", err)
	}
	return logs, nil
}
