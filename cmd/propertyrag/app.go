package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/DanielJandric/embeddingsall-sub000/internal/agentic"
	"github.com/DanielJandric/embeddingsall-sub000/internal/config"
	"github.com/DanielJandric/embeddingsall-sub000/internal/events"
	"github.com/DanielJandric/embeddingsall-sub000/internal/logging"
	"github.com/DanielJandric/embeddingsall-sub000/internal/orchestrator"
	"github.com/DanielJandric/embeddingsall-sub000/internal/plan"
	"github.com/DanielJandric/embeddingsall-sub000/internal/planner"
	"github.com/DanielJandric/embeddingsall-sub000/internal/router"
	"github.com/DanielJandric/embeddingsall-sub000/internal/strategy"
	"github.com/DanielJandric/embeddingsall-sub000/internal/telemetry"
	"github.com/DanielJandric/embeddingsall-sub000/internal/tools"
	"github.com/DanielJandric/embeddingsall-sub000/internal/tools/postgres"
	"github.com/DanielJandric/embeddingsall-sub000/internal/tools/vector"
	"github.com/DanielJandric/embeddingsall-sub000/internal/validation"
)

// appOptions tweak wiring per command.
type appOptions struct {
	// stderrLogs keeps stdout free for a stdio protocol.
	stderrLogs bool
}

// app holds the wired service and everything that must be closed.
type app struct {
	cfg       *config.Config
	logger    *logging.Logger
	telemetry *telemetry.Telemetry
	pool      *pgxpool.Pool
	vector    *vector.Store
	service   *agentic.Service
	closers   []func(context.Context) error
}

func loadLogger(cfg *config.Config, opts appOptions) (*logging.Logger, error) {
	logCfg, err := logging.FromSettings(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logCfg.Output.Stderr = opts.stderrLogs
	name := cfg.Observability.ServiceName
	if name == "" {
		name = logging.ServiceName
	}
	logCfg.Fields = map[string]string{"service": name, "version": version}
	return logging.NewLogger(logCfg, global.GetLoggerProvider())
}

// newApp wires the service from the config file at path.
func newApp(ctx context.Context, path string, opts appOptions) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := loadLogger(cfg, opts)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	tel, err := telemetry.New(ctx, telemetry.FromSettings(cfg.Observability, version))
	if err != nil {
		return err
	}
	a.telemetry = tel
	a.closers = append(a.closers, tel.Shutdown)

	registry := tools.NewRegistry(a.logger)
	if err := a.wirePostgres(ctx, registry); err != nil {
		return err
	}
	if err := a.wireVector(registry); err != nil {
		return err
	}
	runner, err := a.runner(registry)
	if err != nil {
		return err
	}

	strategies := strategy.NewRegistry(strategy.Config{
		StrictValidation: cfg.Validation.StrictRules,
		SemanticSearch:   cfg.Agent.SemanticSearch && cfg.Vector.Enabled,
		MaxRetries:       cfg.Agent.MaxRetries,
		VacancyThreshold: cfg.Agent.VacancyThreshold,
	})
	orch := orchestrator.New(planner.New(strategies),
		orchestrator.WithConfig(orchestrator.Config{
			MaxParallelSteps: cfg.Orchestrator.MaxParallelSteps,
			StepTimeout:      cfg.Orchestrator.StepTimeout,
		}),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithValidationChain(validation.NewChain(validation.RulesFor(cfg.Validation.StrictRules)...)),
	)

	publisher, err := a.publisher()
	if err != nil {
		return err
	}

	a.service = agentic.NewService(router.New(strategies, a.logger), orch, runner,
		agentic.WithLogger(a.logger),
		agentic.WithPublisher(publisher),
		agentic.WithDefaults(agentic.Defaults{
			ConfidenceThreshold: cfg.Agent.ConfidenceThreshold,
			MaxIterations:       cfg.Agent.MaxIterations,
			EnableReflection:    cfg.Agent.EnableReflection,
		}),
	)

	a.logger.Info(ctx, "service ready",
		zap.Strings("tools", registry.Methods()),
		zap.Bool("telemetry", tel.Enabled()),
		zap.Bool("events", cfg.NATS.Enabled),
	)
	return nil
}

func (a *app) wirePostgres(ctx context.Context, registry *tools.Registry) error {
	pg := a.cfg.Postgres
	if !pg.DSN.IsSet() {
		a.logger.Warn(ctx, "postgres.dsn not set; structured-data tools are unavailable")
		return nil
	}
	if pg.MigrateOnStart {
		v, err := postgres.Migrate(ctx, pg.DSN.Value())
		if err != nil {
			return err
		}
		a.logger.Info(ctx, "database migrated", zap.Int64("version", v))
	}
	a.logger.Info(ctx, "connecting to postgres",
		logging.Secret("postgres.dsn", pg.DSN),
		zap.Int32("max_conns", pg.MaxConns),
	)
	pool, err := postgres.NewPool(ctx, pg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	a.pool = pool
	a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
	return postgres.NewTools(pool).Register(registry)
}

func (a *app) wireVector(registry *tools.Registry) error {
	if !a.cfg.Vector.Enabled {
		return nil
	}
	store, err := vector.New(a.cfg.Vector, vector.WithLogger(a.logger))
	if err != nil {
		return err
	}
	a.vector = store
	return store.Register(registry)
}

// runner decorates the registry; the breaker is outermost and the timeout
// innermost so every attempt gets its own deadline.
func (a *app) runner(registry *tools.Registry) (plan.ToolRunner, error) {
	tc := a.cfg.Tools
	mws := []tools.Middleware{tools.WithBreaker(tc.BreakerThreshold, tc.BreakerCooldown)}
	if tc.CacheEnabled {
		cache, err := tools.NewCache(tc.CacheMaxCost)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { cache.Close(); return nil })
		mws = append(mws, tools.WithCache(cache, tc.CacheTTL))
	}
	if tc.RateLimit > 0 {
		mws = append(mws, tools.WithRateLimit(rate.NewLimiter(rate.Limit(tc.RateLimit), tc.RateBurst)))
	}
	if tc.Timeout > 0 {
		mws = append(mws, tools.WithTimeout(tc.Timeout))
	}
	return tools.Chain(registry, mws...), nil
}

func (a *app) publisher() (events.Publisher, error) {
	nc := a.cfg.NATS
	if !nc.Enabled {
		return events.Nop{}, nil
	}
	conn, err := events.Connect(nc.URL, a.cfg.Observability.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return conn.Drain() })
	return events.NewNATSPublisher(conn, nc.Subject), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
