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
	"github.com/firebase/genkit/go/plugins/ollama"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/medifestructuras/asistente/db"
	"github.com/medifestructuras/asistente/internal/api"
	"github.com/medifestructuras/asistente/internal/chat"
	"github.com/medifestructuras/asistente/internal/config"
	"github.com/medifestructuras/asistente/internal/embedding"
	"github.com/medifestructuras/asistente/internal/history"
	"github.com/medifestructuras/asistente/internal/knowledge"
	"github.com/medifestructuras/asistente/internal/observability"
	"github.com/medifestructuras/asistente/internal/retrieval"
)

// Model calls go out at most this fast. Each retry attempt waits for its
// own token.
const (
	modelCallsPerSecond = 2
	modelCallBurst      = 4
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before Genkit initialization so the
	// span processor is in place when the first flow runs.
	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	rawEmbedder := provideEmbedder(g, cfg)
	if rawEmbedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedding.New(rawEmbedder, cfg.EmbeddingDimension, logger)

	a.Knowledge = knowledge.New(pool, logger)
	a.History = history.New(pool, logger)

	a.Retrieval, err = retrieval.New(a.Embedder, a.Knowledge, retrieval.Config{
		MinSimilarity: cfg.RAGMinSimilarity,
		TopK:          cfg.RAGTopK,
		MaxChunks:     cfg.RAGMaxChunks,
		KeywordMax:    cfg.RAGKeywordChunks,
		OverviewPath:  cfg.CourseOverviewPath,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating retrieval engine: %w", err)
	}

	generator, err := chat.NewModelGenerator(chat.GeneratorConfig{
		Genkit:      g,
		Logger:      logger,
		ModelName:   cfg.FullModelName(),
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
		RateLimiter: rate.NewLimiter(rate.Limit(modelCallsPerSecond), modelCallBurst),
	})
	if err != nil {
		return nil, fmt.Errorf("creating model generator: %w", err)
	}

	a.Bot, err = chat.New(a.Retrieval, a.History, generator, chat.Config{
		ContactDelay: cfg.ContactDelay(),
		SocialDelay:  cfg.SocialDelay(),
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("creating chat bot: %w", err)
	}

	a.Server, err = api.NewServer(api.ServerConfig{
		Logger:      logger,
		Bot:         a.Bot,
		Pool:        pool,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
	})
	if err != nil {
		return nil, fmt.Errorf("creating API server: %w", err)
	}

	return a, nil
}

// provideOtelShutdown wires OTLP trace export before Genkit initialization.
// Export failures degrade to a no-op: the chatbot runs without tracing.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	shutdown, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		Environment: cfg.Telemetry.Environment,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the configured AI provider.
func provideGenkit(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*genkit.Genkit, error) {
	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g := genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		ollamaPlugin.DefineEmbedder(g, cfg.OllamaHost, cfg.EmbedderModel, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)
		return g, nil

	case config.ProviderGoogleAI:
		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with googleai provider")
		}
		logger.Info("initialized Genkit with googleai provider", "model", cfg.ModelName)
		return g, nil

	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidProvider, cfg.Provider)
	}
}

// provideEmbedder looks up the embedder registered by the AI provider
// plugin. Ollama keys embedders by server address; GoogleAI by model name.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.Embedder(g, cfg.OllamaHost)
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
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
