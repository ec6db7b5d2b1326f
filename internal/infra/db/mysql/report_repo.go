package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/reports"
)

const reportColumns = `id, company, status, final_report, quality_passed, iterations,
       messages, report_url, error, created_at, completed_at`

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

var _ reports.Repository = (*ReportRepository)(nil)

// Save insert/update report record
func (r *ReportRepository) Save(ctx context.Context, rec *reports.Record) error {
	const q = `
INSERT INTO analysis_reports
(id, company, status, final_report, quality_passed, iterations,
 messages, report_url, error, created_at, completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status),
 final_report=VALUES(final_report),
 quality_passed=VALUES(quality_passed),
 iterations=VALUES(iterations),
 messages=VALUES(messages),
 report_url=VALUES(report_url),
 error=VALUES(error),
 completed_at=VALUES(completed_at);
`
	msgs, err := encodeMessages(rec.Messages)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = r.db.ExecContext(ctx, q,
		string(rec.ID), stringOrDash(rec.Company), string(rec.Status), rec.FinalReport,
		rec.QualityPassed, rec.Iterations,
		msgs, rec.ReportURL, rec.Error, created, nullTime(rec.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("saving report %s: %w", rec.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*reports.Record, error) {
	var (
		rec       reports.Record
		msgs      []byte
		completed sql.NullTime
	)
	if err := s.Scan(
		&rec.ID, &rec.Company, &rec.Status, &rec.FinalReport, &rec.QualityPassed, &rec.Iterations,
		&msgs, &rec.ReportURL, &rec.Error, &rec.CreatedAt, &completed,
	); err != nil {
		return nil, err
	}
	m, err := decodeMessages(msgs)
	if err != nil {
		return nil, fmt.Errorf("decoding messages of %s: %w", rec.ID, err)
	}
	rec.Messages = m
	if completed.Valid {
		t := completed.Time
		rec.CompletedAt = &t
	}
	return &rec, nil
}

// Get by ID
func (r *ReportRepository) Get(ctx context.Context, id reports.ReportID) (*reports.Record, error) {
	q := `SELECT ` + reportColumns + ` FROM analysis_reports WHERE id=? LIMIT 1;`
	rec, err := scanReport(r.db.QueryRowContext(ctx, q, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reports.ErrNotFound
	}
	return rec, err
}

func where(f reports.Filter) (string, []any) {
	clause := " WHERE 1=1"
	var args []any
	if f.Company != "" {
		clause += " AND company LIKE ?"
		args = append(args, "%"+escapeLikePattern(f.Company)+"%")
	}
	if f.Status != "" {
		clause += " AND status = ?"
		args = append(args, string(f.Status))
	}
	return clause, args
}

// Paginate with offset + limit, newest first
func (r *ReportRepository) Paginate(ctx context.Context, page, pageSize int, f reports.Filter) (reports.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	clause, args := where(f)
	query := `SELECT ` + reportColumns + ` FROM analysis_reports` + clause +
		"\n ORDER BY created_at DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return reports.PaginatedResult{}, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	out := []*reports.Record{}
	for rows.Next() {
		rec, err := scanReport(rows)
		if err != nil {
			return reports.PaginatedResult{}, fmt.Errorf("scanning row: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return reports.PaginatedResult{}, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_reports`+clause, args...).Scan(&total); err != nil {
		return reports.PaginatedResult{}, fmt.Errorf("getting total count: %w", err)
	}
	return reports.PaginatedResult{
		Data:       out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: reports.TotalPagesFor(total, pageSize),
	}, nil
}
