package analysis

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bryanwahyu/automaton-analyst/internal/application"
	"github.com/bryanwahyu/automaton-analyst/internal/application/agents"
	"github.com/bryanwahyu/automaton-analyst/internal/application/workflow"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/reports"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/ai/canned"
)

var fixedNow = time.Date(2024, time.June, 1, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, gen ai.Generator) *workflow.Engine {
	t.Helper()
	deps := agents.Deps{Clock: application.FixedClock(fixedNow)}
	g, err := workflow.NewAnalysisGraph(workflow.Steps{
		Plan:    agents.NewPlanner(gen, deps),
		Fetch:   agents.NewFetcher(agents.Sources{}, deps),
		Analyze: agents.NewAnalyst(gen, deps),
		Write:   agents.NewWriter(gen, deps),
		Check:   agents.NewChecker(gen, deps),
	})
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	e, err := workflow.New(g)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	return e
}

type memRepo struct {
	mu    sync.Mutex
	saved map[reports.ReportID]reports.Record
	saves int
	err   error
}

func newMemRepo() *memRepo { return &memRepo{saved: map[reports.ReportID]reports.Record{}} }

func (m *memRepo) Save(_ context.Context, r *reports.Record) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.saved[r.ID] = *r
	return nil
}

func (m *memRepo) Get(_ context.Context, id reports.ReportID) (*reports.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.saved[id]
	if !ok {
		return nil, reports.ErrNotFound
	}
	return &r, nil
}

func (m *memRepo) Paginate(_ context.Context, page, pageSize int, _ reports.Filter) (reports.PaginatedResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := reports.PaginatedResult{Page: page, PageSize: pageSize, Total: int64(len(m.saved))}
	for id := range m.saved {
		r := m.saved[id]
		out.Data = append(out.Data, &r)
	}
	return out, nil
}

type memArchive struct {
	mu   sync.Mutex
	keys []string
}

func (a *memArchive) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.keys = append(a.keys, key)
	return "mem://" + key, nil
}

type countingTracker struct {
	mu              sync.Mutex
	started, failed int
	finished        int
}

func (c *countingTracker) RunStarted() {
	c.mu.Lock()
	c.started++
	c.mu.Unlock()
}

func (c *countingTracker) RunFinished(failed bool) {
	c.mu.Lock()
	c.finished++
	if failed {
		c.failed++
	}
	c.mu.Unlock()
}

func TestRunOfflineWithFailingSources(t *testing.T) {
	svc := &Service{Engine: newTestEngine(t, canned.Offline()), Clock: application.FixedClock(fixedNow)}

	type event struct {
		label   string
		percent int
	}
	var events []event
	st, err := svc.Run(context.Background(), "ACME", func(label string, percent int) {
		events = append(events, event{label, percent})
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if !st.QualityCheckPassed || st.IterationCount != 1 {
		t.Fatalf("expected approval on first check, got passed=%v iter=%d", st.QualityCheckPassed, st.IterationCount)
	}
	for _, key := range domain.SourceKeys {
		if !st.RawData[key].Failed() {
			t.Fatalf("expected %s to be an error marker, got %+v", key, st.RawData[key])
		}
	}
	if !strings.HasPrefix(st.FinalReport, "Investment Research Report: ACME") {
		t.Fatalf("unexpected report %q", st.FinalReport)
	}

	wantPercents := []int{0, 20, 40, 60, 80, 100}
	if len(events) != len(wantPercents) {
		t.Fatalf("expected %d progress events, got %+v", len(wantPercents), events)
	}
	for i, p := range wantPercents {
		if events[i].percent != p {
			t.Fatalf("event %d: expected %d%%, got %+v", i, p, events[i])
		}
	}
	if events[0].label != "Initializing analysis" || events[5].label != "Analysis complete" {
		t.Fatalf("unexpected labels %+v", events)
	}
}

func TestRunProgressStaysMonotonicAcrossLoops(t *testing.T) {
	gen := canned.New(
		canned.Rule{Contains: canned.MarkChecker, Reply: "QUALITY_SCORE: 2"},
		canned.Rule{Contains: canned.MarkWriter, Reply: "short failed body"},
	)
	svc := &Service{Engine: newTestEngine(t, gen)}

	last := -1
	st, err := svc.Run(context.Background(), "ACME", func(_ string, percent int) {
		if percent < last {
			t.Fatalf("progress went backwards: %d after %d", percent, last)
		}
		last = percent
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.IterationCount != domain.MaxIterations+1 {
		t.Fatalf("expected %d checks, got %d", domain.MaxIterations+1, st.IterationCount)
	}
	if gen.CallsMatching(canned.MarkChecker) != domain.MaxIterations+1 {
		t.Fatalf("expected %d checker calls, got %d", domain.MaxIterations+1, gen.CallsMatching(canned.MarkChecker))
	}
	if last != 100 {
		t.Fatalf("expected final progress 100, got %d", last)
	}
}

func TestRunSurvivesPanickingCallback(t *testing.T) {
	svc := &Service{Engine: newTestEngine(t, canned.Offline())}
	st, err := svc.Run(context.Background(), "ACME", func(string, int) { panic("ui crashed") })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if st.FinalReport == "" {
		t.Fatal("expected a report despite callback panics")
	}
}

func TestRunRejectsEmptyCompany(t *testing.T) {
	svc := &Service{Engine: newTestEngine(t, canned.Offline())}
	if _, err := svc.Run(context.Background(), "   ", nil); !errors.Is(err, domain.ErrEmptyCompany) {
		t.Fatalf("expected ErrEmptyCompany, got %v", err)
	}
	if _, err := (&Service{}).Run(context.Background(), "ACME", nil); err == nil {
		t.Fatal("expected error without engine")
	}
}

func TestRunWithoutModelUsesFallbacks(t *testing.T) {
	svc := &Service{Engine: newTestEngine(t, nil)}
	st, err := svc.Run(context.Background(), "ACME", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(st.ResearchPlan) != 3 {
		t.Fatalf("expected fallback plan, got %v", st.ResearchPlan)
	}
	if !st.AnalyzedData.Failed() {
		t.Fatalf("expected analysis fallback, got %+v", st.AnalyzedData)
	}
	if !strings.Contains(st.FinalReport, "technical difficulties") {
		t.Fatalf("expected error report, got %q", st.FinalReport)
	}
	if !st.QualityCheckPassed || st.IterationCount != 1 {
		t.Fatalf("expected fail-open check, got passed=%v iter=%d", st.QualityCheckPassed, st.IterationCount)
	}
}

func TestSubmitPersistsAndArchives(t *testing.T) {
	repo := newMemRepo()
	archive := &memArchive{}
	tracker := &countingTracker{}
	svc := &Service{
		Engine:  newTestEngine(t, canned.Offline()),
		Repo:    repo,
		Archive: archive,
		Tracker: tracker,
		Clock:   application.FixedClock(fixedNow),
	}

	rec, err := svc.Submit(context.Background(), "  acme ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.Status != reports.StatusRunning || rec.Company != "acme" || rec.ID == "" {
		t.Fatalf("unexpected queued record %+v", rec)
	}
	svc.Wait()

	got, err := svc.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != reports.StatusCompleted || !got.QualityPassed || got.Iterations != 1 {
		t.Fatalf("unexpected stored record %+v", got)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(fixedNow) {
		t.Fatalf("expected completion time, got %v", got.CompletedAt)
	}
	wantURL := "mem://acme/" + string(rec.ID) + "/report.md"
	if got.ReportURL != wantURL {
		t.Fatalf("expected report url %q, got %q", wantURL, got.ReportURL)
	}
	if len(archive.keys) != 2 || !strings.HasSuffix(archive.keys[1], "/state.json") {
		t.Fatalf("unexpected archive keys %v", archive.keys)
	}
	if repo.saves != 2 {
		t.Fatalf("expected running and final saves, got %d", repo.saves)
	}
	if tracker.started != 1 || tracker.finished != 1 || tracker.failed != 0 {
		t.Fatalf("unexpected tracker counts %+v", tracker)
	}
}

func TestSubmitValidatesAndReportsSaveErrors(t *testing.T) {
	svc := &Service{Engine: newTestEngine(t, canned.Offline()), Repo: &memRepo{err: errors.New("db down")}}
	if _, err := svc.Submit(context.Background(), ""); !errors.Is(err, domain.ErrEmptyCompany) {
		t.Fatalf("expected ErrEmptyCompany, got %v", err)
	}
	if _, err := svc.Submit(context.Background(), "ACME"); err == nil {
		t.Fatal("expected save error")
	}
	svc.Wait()
}

func TestGetAndListWithoutRepository(t *testing.T) {
	svc := &Service{}
	if _, err := svc.Get(context.Background(), "x"); !errors.Is(err, reports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	list, err := svc.List(context.Background(), 2, 10, reports.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Page != 2 || list.PageSize != 10 || len(list.Data) != 0 {
		t.Fatalf("unexpected empty page %+v", list)
	}
}

func TestReporterClampsPercent(t *testing.T) {
	var got []int
	r := newReporter(func(_ string, p int) { got = append(got, p) }, nil)
	r.report("a", 40)
	r.report("b", 20)
	r.report("c", 60)
	if got[0] != 40 || got[1] != 40 || got[2] != 60 {
		t.Fatalf("expected clamped percents, got %v", got)
	}
}

type explodingGenerator struct{}

func (explodingGenerator) Generate(context.Context, string, string) (string, error) {
	panic("model client crashed")
}

func TestRunKeepsStateShapesWhenModelPanics(t *testing.T) {
	svc := &Service{Engine: newTestEngine(t, explodingGenerator{})}
	st, err := svc.Run(context.Background(), "ACME", nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(st.ResearchPlan) == 0 {
		t.Fatal("expected a fallback plan")
	}
	if st.AnalyzedData.Error == "" || st.AnalyzedData.FallbackAnalysis == "" {
		t.Fatalf("expected error-shaped analysis, got %+v", st.AnalyzedData)
	}
	if st.FinalReport == "" || !strings.Contains(st.FinalReport, "technical difficulties") {
		t.Fatalf("expected non-empty error report, got %q", st.FinalReport)
	}
	if !st.QualityCheckPassed || st.IterationCount != 1 {
		t.Fatalf("expected fail-open check, got passed=%v iter=%d", st.QualityCheckPassed, st.IterationCount)
	}
}
