package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	appanalysis "github.com/bryanwahyu/automaton-analyst/internal/application/analysis"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/ai"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/reports"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/ratelimit"
	"github.com/bryanwahyu/automaton-analyst/internal/middleware"
)

// Deps are the collaborators of the HTTP surface. Only Analyses is required.
type Deps struct {
	Analyses    *appanalysis.Service
	Usage       func() []ratelimit.Usage
	Metrics     *middleware.Metrics
	Health      map[string]middleware.HealthChecker
	Ready       func() bool
	Limiter     *ratelimit.Keyed
	CORSOrigins []string
	Logger      *zap.Logger
}

type Router struct {
	svc   *appanalysis.Service
	usage func() []ratelimit.Usage
	log   *zap.Logger
}

func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	metrics := d.Metrics
	if metrics == nil {
		metrics = middleware.NewMetrics()
	}
	r := &Router{svc: d.Analyses, usage: d.Usage, log: log}

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.Logging(log))
	mux.Use(metrics.Middleware)
	if d.Limiter != nil {
		mux.Use(middleware.RateLimit(d.Limiter))
	}

	mux.Get("/health", middleware.HealthHandler(d.Health))
	mux.Get("/ready", middleware.ReadinessHandler(d.Ready))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", metrics.Handler)

	mux.Route("/v1", func(rt chi.Router) {
		rt.Post("/analyses", r.wrap(r.handleSubmit))
		rt.Get("/analyses", r.wrap(r.handleList))
		rt.Post("/analyses/run", r.wrap(r.handleRun))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		rt.Get("/sources/usage", r.wrap(r.handleUsage))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks validation failures.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var bad badRequest
		switch {
		case errors.As(err, &bad), errors.Is(err, analysis.ErrEmptyCompany):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, reports.ErrNotFound):
			writeError(w, http.StatusNotFound, "not found")
		case errors.Is(err, ai.ErrQuotaExceeded):
			writeError(w, http.StatusTooManyRequests, "ai quota exceeded")
		default:
			r.log.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
			writeError(w, http.StatusInternalServerError, err.Error())
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	_ = writeJSON(w, status, map[string]string{"error": msg})
}

type companyRequest struct {
	Company string `json:"company"`
}

func decodeCompany(w http.ResponseWriter, req *http.Request) (string, error) {
	var body companyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<16)).Decode(&body); err != nil {
		return "", badRequest{err}
	}
	company := middleware.SanitizeString(body.Company)
	if err := middleware.ValidateSymbol(company); err != nil {
		return "", badRequest{err}
	}
	return company, nil
}

// POST /v1/analyses
// Body: {"company": "AAPL"}
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	company, err := decodeCompany(w, req)
	if err != nil {
		return err
	}
	rec, err := r.svc.Submit(req.Context(), company)
	if err != nil {
		return err
	}

	// langsung balikin respons ke client, run jalan di background
	return writeJSON(w, http.StatusAccepted, map[string]any{
		"status":   "queued",
		"id":       rec.ID,
		"company":  rec.Company,
		"message":  "analysis started in background",
		"queuedAt": rec.CreatedAt,
	})
}

// POST /v1/analyses/run
// Runs synchronously and returns the terminal state.
func (r *Router) handleRun(w http.ResponseWriter, req *http.Request) error {
	company, err := decodeCompany(w, req)
	if err != nil {
		return err
	}
	start := time.Now()
	// client disconnect tidak membatalkan run
	st, err := r.svc.Run(context.WithoutCancel(req.Context()), company, nil)
	if err != nil {
		return err
	}
	r.log.Info("synchronous analysis finished",
		zap.String("company", company),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("quality_passed", st.QualityCheckPassed),
	)
	return writeJSON(w, http.StatusOK, st)
}

// GET /v1/analyses?page=&page_size=&company=&status=
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	filter := reports.Filter{
		Company: middleware.SanitizeString(q.Get("company")),
		Status:  reports.Status(q.Get("status")),
	}

	list, err := r.svc.List(req.Context(), middleware.ValidatePage(page), middleware.ValidateLimit(size), filter)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, list)
}

// GET /v1/analyses/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateReportID(id); err != nil {
		return badRequest{err}
	}
	rec, err := r.svc.Get(req.Context(), reports.ReportID(id))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, rec)
}

// GET /v1/sources/usage
func (r *Router) handleUsage(w http.ResponseWriter, req *http.Request) error {
	usage := []ratelimit.Usage{}
	if r.usage != nil {
		usage = r.usage()
	}
	return writeJSON(w, http.StatusOK, map[string]any{"sources": usage})
}
