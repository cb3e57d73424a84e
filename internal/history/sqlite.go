package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS predictions (
	id                 TEXT PRIMARY KEY,
	symptoms           TEXT NOT NULL,
	class_code         INTEGER NOT NULL,
	label              TEXT NOT NULL,
	schema_fingerprint TEXT NOT NULL,
	created_at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS predictions_created_at_idx ON predictions (created_at DESC);
`

// SQLiteStore keeps symptoms as a JSON array and timestamps as unix nanoseconds.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create predictions table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Record(ctx context.Context, r Record) error {
	r = prepare(r)
	symptoms, err := json.Marshal(r.Symptoms)
	if err != nil {
		return fmt.Errorf("encode symptoms: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO predictions (id, symptoms, class_code, label, schema_fingerprint, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID.String(), string(symptoms), r.Code, r.Label, r.SchemaFingerprint, r.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, symptoms, class_code, label, schema_fingerprint, created_at
		 FROM predictions ORDER BY created_at DESC LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query predictions: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			r        Record
			id       string
			symptoms string
			created  int64
		)
		if err := rows.Scan(&id, &symptoms, &r.Code, &r.Label, &r.SchemaFingerprint, &created); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse prediction id: %w", err)
		}
		if err := json.Unmarshal([]byte(symptoms), &r.Symptoms); err != nil {
			return nil, fmt.Errorf("decode symptoms: %w", err)
		}
		r.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate predictions: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
