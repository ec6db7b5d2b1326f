// Package bootstrap wires configuration into a ready analysis service.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/automaton-analyst/internal/application"
	"github.com/bryanwahyu/automaton-analyst/internal/application/agents"
	appanalysis "github.com/bryanwahyu/automaton-analyst/internal/application/analysis"
	"github.com/bryanwahyu/automaton-analyst/internal/application/workflow"
	"github.com/bryanwahyu/automaton-analyst/internal/config"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/ai"
	"github.com/bryanwahyu/automaton-analyst/internal/domain/reports"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/ai/canned"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/ai/openai"
	mysqlp "github.com/bryanwahyu/automaton-analyst/internal/infra/db/mysql"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/db/postgres"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/marketdata/alphavantage"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/marketdata/edgar"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/marketdata/news"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/marketdata/yahoo"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/ratelimit"
	"github.com/bryanwahyu/automaton-analyst/internal/infra/storage"
)

type Options struct {
	// Offline swaps the model for the canned generator.
	Offline bool
	// Persist connects the configured database and archive.
	Persist bool
	Tracker appanalysis.Tracker
}

// App is the assembled analysis service plus the resources it owns.
type App struct {
	Service *appanalysis.Service
	Usage   *ratelimit.Manager
	DB      *sql.DB
}

func (a *App) Close() {
	if a.Service != nil {
		a.Service.Wait()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}

func Build(ctx context.Context, cfg *config.Config, log *zap.Logger, opts Options) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	clock := application.SystemClock{}
	usage := NewUsage(cfg, clock)

	gen := NewGenerator(cfg, log, opts.Offline)
	deps := agents.Deps{Clock: clock, Logger: log, CallTimeout: cfg.CallTimeout(), GenerateTimeout: GenerateBudget(gen, cfg)}
	engine, err := NewEngine(gen, NewSources(cfg, usage, log), deps)
	if err != nil {
		return nil, err
	}

	app := &App{Usage: usage}
	svc := &appanalysis.Service{Engine: engine, Clock: clock, Log: log, Tracker: opts.Tracker}
	if opts.Persist {
		repo, db, err := NewRepository(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.DB = db
		if repo != nil {
			svc.Repo = repo
		}
		if cfg.Minio.Enabled {
			store, err := storage.New(ctx, storage.Options{
				Endpoint:   cfg.Minio.Endpoint,
				Region:     cfg.Minio.Region,
				Bucket:     cfg.Minio.BucketName,
				AccessKey:  cfg.Minio.AccessKey,
				SecretKey:  cfg.Minio.SecretKey,
				UseSSL:     cfg.Minio.UseSSL,
				PresignTTL: time.Duration(cfg.Minio.PresignMinutes) * time.Minute,
			})
			if err != nil {
				app.Close()
				return nil, fmt.Errorf("minio init: %w", err)
			}
			svc.Archive = store
		}
	}
	app.Service = svc
	return app, nil
}

// NewGenerator returns the canned script offline, otherwise the chat completion
// client with bounded retry. Without a key the model is left unset and every
// step degrades to its fallback output.
func NewGenerator(cfg *config.Config, log *zap.Logger, offline bool) ai.Generator {
	if offline {
		return canned.Offline()
	}
	if cfg.LLM.APIKey == "" {
		log.Warn("no LLM api key configured, steps will use fallback outputs")
		return nil
	}
	client := openai.NewClient(openai.Options{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		HTTPClient:  &http.Client{Timeout: cfg.CallTimeout()},
	})
	return openai.WithRetry(client, cfg.LLM.MaxAttempts, log).PerAttempt(cfg.CallTimeout())
}

// GenerateBudget is the deadline a step gives one generation. A retrying
// client needs room for every attempt, otherwise a timed-out first attempt
// leaves nothing to retry with.
func GenerateBudget(gen ai.Generator, cfg *config.Config) time.Duration {
	if r, ok := gen.(*openai.Retrying); ok {
		return r.Budget()
	}
	return cfg.CallTimeout()
}

// NewUsage configures the per-source quotas and pacing.
func NewUsage(cfg *config.Config, clock application.Clock) *ratelimit.Manager {
	av := cfg.Sources.AlphaVantage
	return ratelimit.NewManager(clock).
		Configure(ratelimit.SourceYahoo, ratelimit.Limit{}).
		Configure(ratelimit.SourceAlphaVantage, ratelimit.Limit{
			Daily:     av.DailyLimit,
			PerSecond: float64(av.PerMinute) / 60,
			Burst:     av.PerMinute,
		}).
		Configure(ratelimit.SourceStockNews, ratelimit.Limit{Daily: cfg.Sources.StockNews.DailyLimit}).
		Configure(ratelimit.SourceEdgar, ratelimit.Limit{
			PerSecond: cfg.Sources.Edgar.PerSecond,
			Burst:     int(cfg.Sources.Edgar.PerSecond),
		})
}

func NewSources(cfg *config.Config, usage *ratelimit.Manager, log *zap.Logger) agents.Sources {
	hc := &http.Client{Timeout: cfg.CallTimeout()}
	s := cfg.Sources
	return agents.Sources{
		Price: yahoo.New(yahoo.Options{BaseURL: s.Yahoo.BaseURL, CookieURL: s.Yahoo.CookieURL, HTTPClient: hc, Limiter: usage}),
		Fundamentals: alphavantage.New(alphavantage.Options{
			APIKey: s.AlphaVantage.APIKey, BaseURL: s.AlphaVantage.BaseURL, HTTPClient: hc, Limiter: usage,
		}),
		Filings: edgar.New(edgar.Options{
			TickersURL: s.Edgar.TickersURL, DataURL: s.Edgar.DataURL, UserAgent: s.Edgar.UserAgent,
			HTTPClient: hc, Limiter: usage,
		}),
		News: news.New(news.Options{
			APIKey: s.StockNews.APIKey, BaseURL: s.StockNews.BaseURL, HTTPClient: hc, Limiter: usage, Logger: log,
		}),
	}
}

// NewEngine builds the five steps and the compiled analysis graph.
func NewEngine(gen ai.Generator, src agents.Sources, deps agents.Deps) (*workflow.Engine, error) {
	g, err := workflow.NewAnalysisGraph(workflow.Steps{
		Plan:    agents.NewPlanner(gen, deps),
		Fetch:   agents.NewFetcher(src, deps),
		Analyze: agents.NewAnalyst(gen, deps),
		Write:   agents.NewWriter(gen, deps),
		Check:   agents.NewChecker(gen, deps),
	})
	if err != nil {
		return nil, err
	}
	return workflow.New(g, workflow.WithLogger(deps.Logger), workflow.WithClock(deps.Clock))
}

// NewRepository connects the configured driver. An empty driver means no persistence.
func NewRepository(ctx context.Context, cfg *config.Config) (reports.Repository, *sql.DB, error) {
	switch cfg.Database.Driver {
	case "":
		return nil, nil, nil
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("mysql connect: %w", err)
		}
		if err := mysqlp.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("mysql schema: %w", err)
		}
		return mysqlp.NewReportRepository(db), db, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("postgres schema: %w", err)
		}
		return postgres.NewReportRepository(db), db, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
}
