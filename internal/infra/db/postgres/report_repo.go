package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/reports"
)

const reportColumns = `id, company, status, final_report, quality_passed, iterations,
       messages, report_url, error, created_at, completed_at`

type ReportRepository struct{ db *sql.DB }

func NewReportRepository(db *sql.DB) *ReportRepository { return &ReportRepository{db: db} }

var _ reports.Repository = (*ReportRepository)(nil)

// Save insert/update report record
func (r *ReportRepository) Save(ctx context.Context, rec *reports.Record) error {
	const q = `
INSERT INTO analysis_reports
(id, company, status, final_report, quality_passed, iterations,
 messages, report_url, error, created_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
 status = EXCLUDED.status,
 final_report = EXCLUDED.final_report,
 quality_passed = EXCLUDED.quality_passed,
 iterations = EXCLUDED.iterations,
 messages = EXCLUDED.messages,
 report_url = EXCLUDED.report_url,
 error = EXCLUDED.error,
 completed_at = EXCLUDED.completed_at;`

	msgs := rec.Messages
	if msgs == nil {
		msgs = []analysis.Message{}
	}
	body, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encoding messages: %w", err)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	var completed sql.NullTime
	if rec.CompletedAt != nil {
		completed = sql.NullTime{Time: *rec.CompletedAt, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, q,
		string(rec.ID), rec.Company, string(rec.Status), rec.FinalReport,
		rec.QualityPassed, rec.Iterations,
		string(body), rec.ReportURL, rec.Error, created, completed,
	)
	if err != nil {
		return fmt.Errorf("saving report %s: %w", rec.ID, err)
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanReport(s rowScanner) (*reports.Record, error) {
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
	if len(msgs) > 0 {
		if err := json.Unmarshal(msgs, &rec.Messages); err != nil {
			return nil, fmt.Errorf("decoding messages of %s: %w", rec.ID, err)
		}
	}
	if completed.Valid {
		t := completed.Time
		rec.CompletedAt = &t
	}
	return &rec, nil
}

// Get by ID
func (r *ReportRepository) Get(ctx context.Context, id reports.ReportID) (*reports.Record, error) {
	q := `SELECT ` + reportColumns + ` FROM analysis_reports WHERE id=$1 LIMIT 1;`
	rec, err := scanReport(r.db.QueryRowContext(ctx, q, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reports.ErrNotFound
	}
	return rec, err
}

// where builds the filter clause with numbered placeholders starting at $1.
func where(f reports.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Company != "" {
		args = append(args, "%"+escapeLikePattern(f.Company)+"%")
		conds = append(conds, fmt.Sprintf("company ILIKE $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
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
	n := len(args)
	query := fmt.Sprintf("SELECT %s FROM analysis_reports%s\n ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		reportColumns, clause, n+1, n+2)
	qargs := append(append([]any{}, args...), pageSize, offset)
	rows, err := r.db.QueryContext(ctx, query, qargs...)
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
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM analysis_reports"+clause, args...).Scan(&total); err != nil {
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
