// Package history keeps an optional audit trail of predictions.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Record is one prediction served by the checker.
type Record struct {
	ID                uuid.UUID `json:"id"`
	Symptoms          []string  `json:"symptoms"`
	Code              int       `json:"code"`
	Label             string    `json:"label"`
	SchemaFingerprint string    `json:"schemaFingerprint"`
	CreatedAt         time.Time `json:"createdAt"`
}

type Store interface {
	Ping(ctx context.Context) error
	Record(ctx context.Context, r Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// Open connects to the given driver and ensures the predictions table exists.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case DriverPostgres:
		s, err := OpenPostgres(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	case DriverSQLite:
		s, err := OpenSQLite(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported history driver %q", driver)
}

func prepare(r Record) Record {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Symptoms == nil {
		r.Symptoms = []string{}
	}
	return r
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 500 {
		return 500
	}
	return limit
}
