// Package sqlite stores profiles and predictions in a single SQLite file
// for local development and single node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_profiles (
	id                       TEXT PRIMARY KEY,
	email                    TEXT NOT NULL UNIQUE,
	age                      INTEGER NOT NULL,
	country                  TEXT NOT NULL,
	city                     TEXT NOT NULL,
	account_age_days         INTEGER NOT NULL,
	purchases_last_12_months INTEGER NOT NULL,
	canceled_orders          INTEGER NOT NULL,
	tickets_per_order_avg    REAL NOT NULL,
	distance_to_venue_km     REAL NOT NULL,
	payment_failures_ratio   REAL NOT NULL,
	event_affinity_score     REAL NOT NULL,
	night_purchase_ratio     REAL NOT NULL,
	resale_reports_count     INTEGER NOT NULL,
	attendance_rate          REAL NOT NULL,
	created_at               DATETIME NOT NULL,
	updated_at               DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS predictions (
	id                     TEXT PRIMARY KEY,
	user_id                TEXT NOT NULL REFERENCES user_profiles(id) ON DELETE CASCADE,
	attendance_probability REAL NOT NULL,
	reseller_probability   REAL NOT NULL,
	risk_label             TEXT NOT NULL,
	model_version          TEXT NOT NULL,
	created_at             DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_predictions_user_created ON predictions (user_id, created_at DESC);
`

// Store owns the SQLite connection.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection serializes writes
	// instead of surfacing SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to initialize schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
