package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS analysis_reports (
  id             TEXT        PRIMARY KEY,
  company        TEXT        NOT NULL,
  status         TEXT        NOT NULL,
  final_report   TEXT        NOT NULL DEFAULT '',
  quality_passed BOOLEAN     NOT NULL DEFAULT FALSE,
  iterations     INTEGER     NOT NULL DEFAULT 0,
  messages       JSONB       NOT NULL DEFAULT '[]',
  report_url     TEXT        NOT NULL DEFAULT '',
  error          TEXT        NOT NULL DEFAULT '',
  created_at     TIMESTAMPTZ NOT NULL,
  completed_at   TIMESTAMPTZ NULL
);
CREATE INDEX IF NOT EXISTS idx_analysis_reports_created ON analysis_reports (created_at DESC);`

// EnsureSchema creates the reports table when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
