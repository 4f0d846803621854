package connector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Staging is the local cache the connector materializes stream batches
// into: one JSONB row per record, replaced wholesale per stream on
// every sync.
type Staging struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

// NewStaging opens a connection pool and prepares the schema.
func NewStaging(ctx context.Context, dsn string, logger *logrus.Logger) (*Staging, error) {
	if dsn == "" {
		return nil, fmt.Errorf("staging DSN is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create staging pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to staging database: %w", err)
	}

	s := &Staging{pool: pool, logger: logger}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("staging cache ready")
	return s, nil
}

func (s *Staging) ensureSchema(ctx context.Context) error {
	ddl := `
		CREATE TABLE IF NOT EXISTS connector_records (
			record_id    UUID PRIMARY KEY,
			stream       TEXT NOT NULL,
			payload      JSONB NOT NULL,
			extracted_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS connector_records_stream_idx
			ON connector_records (stream);
	`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create staging schema: %w", err)
	}
	return nil
}

// Replace swaps the staged batch for one stream. Runs in a single
// transaction so readers never observe a half-written stream.
func (s *Staging) Replace(ctx context.Context, stream string, records []Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin staging transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM connector_records WHERE stream = $1`, stream); err != nil {
		return fmt.Errorf("clear stream %s: %w", stream, err)
	}

	for _, record := range records {
		recordID, ok := record[FieldRecordID].(string)
		if !ok || recordID == "" {
			return fmt.Errorf("stream %s: record missing %s", stream, FieldRecordID)
		}
		payload, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("encode record for stream %s: %w", stream, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO connector_records (record_id, stream, payload) VALUES ($1, $2, $3)`,
			recordID, stream, payload); err != nil {
			return fmt.Errorf("stage record for stream %s: %w", stream, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit stream %s: %w", stream, err)
	}

	s.logger.WithFields(logrus.Fields{"stream": stream, "records": len(records)}).Info("stream staged")
	return nil
}

// Stream returns the staged batch for one stream. An unknown or
// unselected stream yields an empty batch, not an error.
func (s *Staging) Stream(ctx context.Context, stream string) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload FROM connector_records WHERE stream = $1 ORDER BY extracted_at, record_id`,
		stream)
	if err != nil {
		return nil, fmt.Errorf("read stream %s: %w", stream, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan stream %s: %w", stream, err)
		}
		var record Record
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("decode staged record in stream %s: %w", stream, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stream %s: %w", stream, err)
	}

	return records, nil
}

func (s *Staging) Close() {
	s.pool.Close()
}
