// Package cmd provides the CLI commands for the assistant.
//
// Commands:
//   - serve: HTTP API server for the chat widget
//   - ingest: index the markdown knowledge base into PostgreSQL
//
// Signal handling and graceful shutdown are implemented via context
// cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/medifestructuras/asistente/internal/log"
)

// Execute is the main entry point for the assistant CLI.
func Execute() error {
	slog.SetDefault(log.New(log.Config{
		Level: logLevel(),
		JSON:  os.Getenv("LOG_FORMAT") == "json",
	}))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "ingest":
		return runIngest()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

func logLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("Asistente - RAG chatbot for the Medif Estructuras site")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  asistente serve [addr]      Start HTTP API server (default: 127.0.0.1:8080)")
	fmt.Println("  asistente ingest [dir]      Index the knowledge base (default: ./docs)")
	fmt.Println("  asistente --version         Show version information")
	fmt.Println("  asistente --help            Show this help")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  GEMINI_API_KEY     Required when provider is googleai")
	fmt.Println("  DATABASE_URL       Optional: overrides the postgres_* settings")
	fmt.Println("  DEBUG              Optional: enable debug logging")
	fmt.Println("  LOG_FORMAT         Optional: \"json\" for JSON log output")
}
