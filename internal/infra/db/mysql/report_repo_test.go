package mysql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/bryanwahyu/automaton-analyst/internal/domain/reports"
)

var columns = []string{"id", "company", "status", "final_report", "quality_passed", "iterations",
	"messages", "report_url", "error", "created_at", "completed_at"}

func newMock(t *testing.T) (*ReportRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewReportRepository(db), mock
}

func TestSaveUpserts(t *testing.T) {
	repo, mock := newMock(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := &reports.Record{
		ID:        "7f1b6a3e-0000-4000-8000-000000000001",
		Company:   "ACME",
		Status:    reports.StatusRunning,
		CreatedAt: created,
	}

	mock.ExpectExec("INSERT INTO analysis_reports .* ON DUPLICATE KEY UPDATE").
		WithArgs(
			string(rec.ID), "ACME", "running", "",
			false, 0,
			[]byte("[]"), "", "", created, nil,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestGetDecodesRow(t *testing.T) {
	repo, mock := newMock(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	done := created.Add(time.Minute)

	mock.ExpectQuery(`SELECT (.+) FROM analysis_reports WHERE id=\? LIMIT 1`).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"abc", "ACME", "completed", "report", true, 1,
			[]byte(`[{"stage":"query_planner","content":"planned","at":"2024-01-02T03:04:05Z"}]`),
			"s3://r", "", created, done,
		))

	got, err := repo.Get(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != reports.StatusCompleted || !got.QualityPassed || got.Iterations != 1 {
		t.Fatalf("unexpected record %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Stage != "query_planner" || !got.Messages[0].At.Equal(created) {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(done) {
		t.Fatalf("unexpected completed_at %v", got.CompletedAt)
	}
}

func TestGetNotFound(t *testing.T) {
	repo, mock := newMock(t)
	mock.ExpectQuery("SELECT (.+) FROM analysis_reports").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(columns))

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, reports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPaginateAppliesFilter(t *testing.T) {
	repo, mock := newMock(t)
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT (.+) FROM analysis_reports WHERE 1=1 AND company LIKE \? AND status = \?\s+ORDER BY created_at DESC LIMIT \? OFFSET \?`).
		WithArgs(`%AC\_ME%`, "failed", 10, 10).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"abc", "AC_ME", "failed", "", false, 3, nil, "", "boom", created, nil,
		))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM analysis_reports WHERE 1=1 AND company LIKE \? AND status = \?`).
		WithArgs(`%AC\_ME%`, "failed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	got, err := repo.Paginate(context.Background(), 2, 10, reports.Filter{Company: "AC_ME", Status: reports.StatusFailed})
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	if got.Total != 11 || got.TotalPages != 2 || got.Page != 2 || len(got.Data) != 1 {
		t.Fatalf("unexpected page %+v", got)
	}
	if got.Data[0].Messages != nil || got.Data[0].CompletedAt != nil {
		t.Fatalf("expected empty optional fields, got %+v", got.Data[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestEscapeLikePattern(t *testing.T) {
	if got := escapeLikePattern(`50%_a\b`); got != `50\%\_a\\b` {
		t.Fatalf("unexpected escape %q", got)
	}
	if stringOrDash("  ") != "-" || stringOrDash("x") != "x" {
		t.Fatal("unexpected stringOrDash result")
	}
}
