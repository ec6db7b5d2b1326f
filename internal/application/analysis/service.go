package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-analyst/internal/application"
	"github.com/bryanwahyu/automaton-analyst/internal/application/workflow"
	domain "github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/reports"
)

// ProgressFunc receives coarse milestones. Percentages never decrease within a run.
type ProgressFunc func(label string, percent int)

// Tracker observes run lifecycle for metrics.
type Tracker interface {
	RunStarted()
	RunFinished(failed bool)
}

// Service implements the analysis use cases.
// Service is designed to be used concurrently; each run owns its own state.
type Service struct {
	Engine  *workflow.Engine
	Repo    reports.Repository   // optional
	Archive reports.ArchiveStore // optional
	Tracker Tracker              // optional
	Clock   application.Clock
	Log     *zap.Logger

	wg sync.WaitGroup
}

type milestone struct {
	label   string
	percent int
}

var milestones = map[workflow.Node]milestone{
	workflow.NodePlan:    {"Research plan ready", 20},
	workflow.NodeFetch:   {"Data collected", 40},
	workflow.NodeAnalyze: {"Analysis complete", 60},
	workflow.NodeWrite:   {"Report drafted", 80},
}

// Run builds the initial state for company, drives the workflow to completion and
// returns the terminal state as is.
func (s *Service) Run(ctx context.Context, company string, progress ProgressFunc) (*domain.State, error) {
	if s.Engine == nil {
		return nil, fmt.Errorf("analysis service: engine is required")
	}
	st, err := domain.NewState(company)
	if err != nil {
		return nil, err
	}

	rep := newReporter(progress, s.logger())
	rep.report("Initializing analysis", 0)
	engine := s.Engine.Observe(func(node workflow.Node, _ *domain.State) {
		if m, ok := milestones[node]; ok {
			rep.report(m.label, m.percent)
		}
	})
	if err := engine.Run(ctx, st); err != nil {
		return st, err
	}
	rep.report("Analysis complete", 100)
	return st, nil
}

// Submit validates company, stores a running record and finishes the run in the
// background. The returned record carries the id to poll.
func (s *Service) Submit(ctx context.Context, company string) (*reports.Record, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return nil, domain.ErrEmptyCompany
	}
	rec := &reports.Record{
		ID:        reports.ReportID(uuid.New().String()),
		Company:   company,
		Status:    reports.StatusRunning,
		CreatedAt: s.now(),
	}
	if s.Repo != nil {
		if err := s.Repo.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("save running report: %w", err)
		}
	}

	queued := *rec
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		// jalan sampai selesai, tidak ikut context request
		s.complete(context.Background(), rec)
	}()
	return &queued, nil
}

// Wait blocks until background runs started by Submit have finished.
func (s *Service) Wait() { s.wg.Wait() }

func (s *Service) complete(ctx context.Context, rec *reports.Record) {
	log := s.logger().With(zap.String("report_id", string(rec.ID)), zap.String("company", rec.Company))
	if s.Tracker != nil {
		s.Tracker.RunStarted()
	}

	st, err := s.Run(ctx, rec.Company, nil)
	done := s.now()
	rec.CompletedAt = &done
	if err != nil {
		rec.Status = reports.StatusFailed
		rec.Error = err.Error()
		log.Error("analysis run failed", zap.Error(err))
	} else {
		rec.Status = reports.StatusCompleted
	}
	if st != nil {
		rec.FinalReport = st.FinalReport
		rec.QualityPassed = st.QualityCheckPassed
		rec.Iterations = st.IterationCount
		rec.Messages = st.Messages
		if url, aerr := s.archive(ctx, rec.ID, st); aerr != nil {
			log.Warn("report archive failed", zap.Error(aerr))
		} else {
			rec.ReportURL = url
		}
	}
	if s.Tracker != nil {
		s.Tracker.RunFinished(err != nil)
	}
	if s.Repo == nil {
		return
	}
	if serr := s.Repo.Save(ctx, rec); serr != nil {
		log.Error("save finished report failed", zap.Error(serr))
	}
}

// archive uploads report.md and state.json; it returns the report URL.
func (s *Service) archive(ctx context.Context, id reports.ReportID, st *domain.State) (string, error) {
	if s.Archive == nil {
		return "", nil
	}
	prefix := fmt.Sprintf("%s/%s", strings.ToLower(st.CompanyName), id)
	url, err := s.Archive.Put(ctx, prefix+"/report.md", []byte(st.FinalReport), "text/markdown")
	if err != nil {
		return "", err
	}
	body, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return url, fmt.Errorf("marshal state: %w", err)
	}
	if _, err := s.Archive.Put(ctx, prefix+"/state.json", body, "application/json"); err != nil {
		return url, err
	}
	return url, nil
}

// Get ambil 1 report by id
func (s *Service) Get(ctx context.Context, id reports.ReportID) (*reports.Record, error) {
	if s.Repo == nil {
		return nil, reports.ErrNotFound
	}
	return s.Repo.Get(ctx, id)
}

// List returns a page of stored reports, newest first.
func (s *Service) List(ctx context.Context, page, pageSize int, filter reports.Filter) (reports.PaginatedResult, error) {
	if s.Repo == nil {
		return reports.PaginatedResult{Data: []*reports.Record{}, Page: page, PageSize: pageSize}, nil
	}
	return s.Repo.Paginate(ctx, page, pageSize, filter)
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

// reporter forwards milestones best-effort and keeps percentages monotonic.
type reporter struct {
	fn   ProgressFunc
	log  *zap.Logger
	last int
}

func newReporter(fn ProgressFunc, log *zap.Logger) *reporter {
	return &reporter{fn: fn, log: log}
}

func (r *reporter) report(label string, percent int) {
	if r.fn == nil {
		return
	}
	if percent < r.last {
		percent = r.last
	}
	r.last = percent
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Warn("progress callback panicked", zap.Any("panic", rec))
		}
	}()
	r.fn(label, percent)
}
