package cmd

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/medifestructuras/asistente/internal/app"
	"github.com/medifestructuras/asistente/internal/config"
)

const defaultDocsDir = "./docs"

// runIngest indexes the markdown knowledge base into the document store.
// Existing chunks for each file are replaced, so re-running after editing
// the docs is safe.
func runIngest() error {
	dir, err := parseIngestDir()
	if err != nil {
		return fmt.Errorf("parsing ingest flags: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("checking docs directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting ingestion", "dir", dir)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	indexer, err := a.NewIndexer()
	if err != nil {
		return fmt.Errorf("creating indexer: %w", err)
	}

	if err := indexer.IngestDir(ctx, dir); err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	logger.Info("ingestion complete", "dir", dir)
	return nil
}

// parseIngestDir reads the docs directory from the command line, supporting
// both positional (asistente ingest ./docs) and flag (-dir ./docs) forms.
func parseIngestDir() (string, error) {
	ingestFlags := flag.NewFlagSet("ingest", flag.ContinueOnError)
	ingestFlags.SetOutput(os.Stderr)

	dir := ingestFlags.String("dir", defaultDocsDir, "Knowledge base directory")

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		*dir = args[0]
		args = args[1:]
	}

	if err := ingestFlags.Parse(args); err != nil {
		return "", err
	}
	return *dir, nil
}
