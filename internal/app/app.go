// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles the pipeline: database pool,
// Genkit model provider, embedding layer, knowledge and history stores,
// retrieval engine, chat orchestrator, and the HTTP API server.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medifestructuras/asistente/internal/api"
	"github.com/medifestructuras/asistente/internal/chat"
	"github.com/medifestructuras/asistente/internal/config"
	"github.com/medifestructuras/asistente/internal/embedding"
	"github.com/medifestructuras/asistente/internal/history"
	"github.com/medifestructuras/asistente/internal/ingest"
	"github.com/medifestructuras/asistente/internal/knowledge"
	"github.com/medifestructuras/asistente/internal/retrieval"
)

// App is the core application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	// Core services
	Genkit    *genkit.Genkit
	Embedder  *embedding.Embedder
	DBPool    *pgxpool.Pool
	Knowledge *knowledge.Store
	History   *history.Store
	Retrieval *retrieval.Engine
	Bot       *chat.Bot
	Server    *api.Server

	// Lifecycle management
	otelCleanup func()
	dbCleanup   func()
}

// Close gracefully shuts down all resources. Safe to call on a partially
// initialized App (Setup calls it on failure).
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.dbCleanup != nil {
		a.dbCleanup()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}

// NewIndexer creates a document indexer backed by the application's
// embedder and knowledge store. Used by the ingest command.
func (a *App) NewIndexer() (*ingest.Indexer, error) {
	return ingest.New(a.Embedder, a.Knowledge, ingest.Config{}, a.Logger)
}
