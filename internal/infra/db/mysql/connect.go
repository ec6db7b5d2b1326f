package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
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
  id             VARCHAR(36)  NOT NULL PRIMARY KEY,
  company        VARCHAR(64)  NOT NULL,
  status         VARCHAR(16)  NOT NULL,
  final_report   MEDIUMTEXT   NOT NULL,
  quality_passed BOOLEAN      NOT NULL DEFAULT FALSE,
  iterations     INT          NOT NULL DEFAULT 0,
  messages       JSON         NULL,
  report_url     VARCHAR(512) NOT NULL DEFAULT '',
  error          TEXT         NOT NULL,
  created_at     DATETIME(6)  NOT NULL,
  completed_at   DATETIME(6)  NULL,
  KEY idx_analysis_reports_created (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

// EnsureSchema creates the reports table when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
