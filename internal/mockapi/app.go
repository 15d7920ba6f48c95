// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mockapi

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taibuivan/leadcrm/internal/crm"
	"github.com/taibuivan/leadcrm/internal/mockapi/auth"
	"github.com/taibuivan/leadcrm/internal/mockapi/hub"
	"github.com/taibuivan/leadcrm/internal/mockapi/leads"
	"github.com/taibuivan/leadcrm/internal/platform/config"
	"github.com/taibuivan/leadcrm/internal/platform/constants"
	"github.com/taibuivan/leadcrm/internal/platform/migration"
	pgstore "github.com/taibuivan/leadcrm/internal/platform/postgres"
	"github.com/taibuivan/leadcrm/internal/platform/sec"
)

// App is a fully wired development backend.
type App struct {
	Server *Server
	Hub    *hub.Hub
	Leads  *leads.Service
	Tokens *sec.TokenService

	pool *pgxpool.Pool
}

// Options overrides the collaborators [Build] creates by default.
type Options struct {
	// Seeds replaces [auth.DefaultSeeds].
	Seeds []auth.Seed

	// Clock drives lead timestamps and periodic pushes.
	Clock clockwork.Clock

	// Registry receives the hub metrics and backs /metrics.
	Registry *prometheus.Registry
}

/*
Build wires every component of the backend.

Description: Leads live in memory unless cfg.DatabaseURL is set, in which
case migrations run first and a PostgreSQL pool backs the store.

# Flow
 1. Token service and operator accounts.
 2. Lead store (memory or PostgreSQL) and service.
 3. Realtime hub subscribed to lead changes.
 4. Optional demo data.
 5. HTTP server.
*/
func Build(ctx context.Context, cfg *config.MockAPIConfig, log *slog.Logger, options Options) (*App, error) {
	if options.Seeds == nil {
		options.Seeds = auth.DefaultSeeds()
	}
	if options.Clock == nil {
		options.Clock = clockwork.NewRealClock()
	}
	if options.Registry == nil {
		options.Registry = prometheus.NewRegistry()
	}

	// ── 1. Auth ───────────────────────────────────────────────────────────

	tokens, err := sec.NewTokenService(cfg.JWTSecret, constants.AuthIssuer)
	if err != nil {
		return nil, fmt.Errorf("initialize token service: %w", err)
	}

	operators, err := auth.NewMemoryRepository(options.Seeds)
	if err != nil {
		return nil, fmt.Errorf("seed operators: %w", err)
	}
	authService := auth.NewService(operators, tokens, cfg.TokenTTL)

	// ── 2. Leads ──────────────────────────────────────────────────────────

	app := &App{Tokens: tokens}
	health := HealthDependencies{}

	var repository leads.Repository = leads.NewMemoryRepository()
	if cfg.DatabaseURL != "" {
		if err := migration.RunUp(cfg.DatabaseURL, leads.Migrations, leads.MigrationsDir, log); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		app.pool = pool
		repository = leads.NewPostgresRepository(pool)
		health.CheckDatabase = func() error {
			return pgstore.Ping(context.Background(), pool)
		}
	}

	app.Leads = leads.NewService(repository, options.Clock, log)

	// ── 3. Realtime ───────────────────────────────────────────────────────

	app.Hub = hub.New(hub.Options{
		Verifier:      tokens,
		Leads:         app.Leads,
		StatsInterval: cfg.StatsInterval,
		Clock:         options.Clock,
		Metrics:       hub.NewMetrics(options.Registry),
		Logger:        log,
	})
	app.Leads.OnChange(app.Hub.LeadChanged)

	// ── 4. Demo Data ──────────────────────────────────────────────────────

	if cfg.SeedDemo {
		assignees := make([]leads.Actor, 0, len(options.Seeds))
		for _, seed := range options.Seeds {
			operator, err := operators.FindByEmail(ctx, seed.Email)
			if err != nil {
				app.Close()
				return nil, err
			}
			assignees = append(assignees, leads.Actor{ID: operator.ID, Role: crm.RoleSuperAdmin})
		}
		created, err := leads.SeedDemo(ctx, app.Leads, assignees)
		if err != nil {
			app.Close()
			return nil, err
		}
		log.Info("demo_leads_seeded", slog.Int("created", created))
	}

	// ── 5. HTTP ───────────────────────────────────────────────────────────

	liveness, readiness := NewHealthHandlers(health, log)
	app.Server = NewServer(ctx, cfg, log, tokens, Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(authService),
		Leads:     leads.NewHandler(app.Leads),
		Realtime:  app.Hub,
		Gatherer:  options.Registry,
	})

	return app, nil
}

// Close releases the database pool, if any.
func (app *App) Close() {
	if app.pool != nil {
		app.pool.Close()
	}
}
