// Package app wires the application together: configuration, database,
// genkit, and the domain components, in explicit dependency order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sombra-labs/confluence-rag/db"
	"github.com/sombra-labs/confluence-rag/internal/config"
	"github.com/sombra-labs/confluence-rag/internal/confluence"
	"github.com/sombra-labs/confluence-rag/internal/ingest"
	"github.com/sombra-labs/confluence-rag/internal/knowledge"
	"github.com/sombra-labs/confluence-rag/internal/rag"
)

// App holds the wired application components.
// Call Close to release resources.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool     *pgxpool.Pool
	Genkit   *genkit.Genkit
	Embedder ai.Embedder

	Store        *knowledge.Store
	Index        *knowledge.Index
	Confluence   *confluence.Client
	Orchestrator *ingest.Orchestrator
	Runner       *ingest.Runner
	Engine       *rag.Engine

	dbCleanup func()
}

// Setup creates and initializes the application. Components are wired
// in dependency order; on error everything already initialized is
// released.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.Pool = pool

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	a.Embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	a.Store = knowledge.NewStore(pool, logger)
	a.Index = knowledge.NewIndex(pool, a.Embedder, logger)

	client, err := confluence.NewClient(
		cfg.Confluence.BaseURL, cfg.Confluence.Username, cfg.Confluence.Password, logger)
	if err != nil {
		return nil, fmt.Errorf("creating confluence client: %w", err)
	}
	a.Confluence = client

	a.Orchestrator = ingest.NewOrchestrator(
		a.Confluence, a.Store, a.Index, cfg.Confluence.SpaceKeyList(), logger)

	runner, err := ingest.NewRunner(ctx, a.Orchestrator, logger)
	if err != nil {
		return nil, fmt.Errorf("creating sync runner: %w", err)
	}
	a.Runner = runner

	a.Engine = rag.New(g, a.Index, rag.Config{
		ModelName:         cfg.ModelName,
		ConfluenceBaseURL: cfg.Confluence.BaseURL,
	}, logger)

	return a, nil
}

// Close releases all application resources in reverse wiring order.
func (a *App) Close() error {
	if a.Runner != nil {
		a.Runner.Close()
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	return nil
}

// provideGenkit initializes Genkit with the Google AI plugin. The
// GEMINI_API_KEY environment variable supplies the credential.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with gemini provider")
	}
	return g, nil
}

// provideDBPool creates a PostgreSQL connection pool and runs
// migrations. Pool is configured with sensible defaults for connection
// management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}
