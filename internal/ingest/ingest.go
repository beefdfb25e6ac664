// Package ingest indexes the markdown knowledge base: it cleans each
// document, splits it into overlapping word chunks, embeds every chunk, and
// replaces the file's rows in the document store. Routing, FAQ, and summary
// files get smaller chunks so each answer-sized fact stays retrievable on
// its own. Stored text keeps its case, accents, and punctuation: it is what
// the model reads back as evidence.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"

	"github.com/medifestructuras/asistente/internal/knowledge"
	"github.com/medifestructuras/asistente/internal/textutil"
)

// Chunk sizing defaults, in words.
const (
	DefaultChunkSize = 500
	DefaultOverlap   = 50

	// ShortFormChunkSize applies to routing, FAQ, and summary files, whose
	// individual entries are short and self-contained.
	ShortFormChunkSize = 200
)

// Embedder produces unit-length embeddings for chunk text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the write access the indexer needs.
type Store interface {
	DeleteByPath(ctx context.Context, filepath string) error
	InsertChunk(ctx context.Context, p knowledge.InsertChunkParams) error
}

// Config tunes the indexer. Zero values fall back to the defaults.
type Config struct {
	ChunkSize          int
	Overlap            int
	ShortFormChunkSize int
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Overlap < 0 {
		c.Overlap = DefaultOverlap
	}
	if c.ShortFormChunkSize <= 0 {
		c.ShortFormChunkSize = ShortFormChunkSize
	}
}

// Indexer ingests markdown files into the document store.
type Indexer struct {
	embedder Embedder
	store    Store
	config   Config
	logger   *slog.Logger
}

// New creates an Indexer. A nil logger falls back to slog.Default().
func New(embedder Embedder, store Store, config Config, logger *slog.Logger) (*Indexer, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	config.applyDefaults()
	return &Indexer{embedder: embedder, store: store, config: config, logger: logger}, nil
}

// IngestDir walks baseDir and ingests every markdown file under it.
func (i *Indexer) IngestDir(ctx context.Context, baseDir string) error {
	return filepath.WalkDir(baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		if err := i.IngestFile(ctx, baseDir, p); err != nil {
			return fmt.Errorf("ingesting %s: %w", p, err)
		}
		return nil
	})
}

// IngestFile replaces the stored chunks of one markdown file. The file's
// previous rows are deleted first so re-ingestion never leaves stale
// chunks behind.
func (i *Indexer) IngestFile(ctx context.Context, baseDir, fullPath string) error {
	relPath, err := filepath.Rel(baseDir, fullPath)
	if err != nil {
		return fmt.Errorf("resolving relative path: %w", err)
	}
	relPath = filepath.ToSlash(relPath)

	raw, err := readMarkdown(fullPath)
	if err != nil {
		return err
	}

	cleaned := textutil.Clean(strings.ReplaceAll(raw, "\n", " "))
	if cleaned == "" {
		i.logger.Info("skipping empty document", "path", relPath)
		return nil
	}

	if err := i.store.DeleteByPath(ctx, relPath); err != nil {
		return err
	}

	chunkSize := i.config.ChunkSize
	if isShortForm(relPath) {
		chunkSize = i.config.ShortFormChunkSize
	}

	chunks := ChunkWords(cleaned, chunkSize, i.config.Overlap)
	for index, chunk := range chunks {
		normalized := textutil.Clean(chunk)
		if normalized == "" {
			continue
		}

		embedding, err := i.embedder.EmbedQuery(ctx, normalized)
		if err != nil {
			return fmt.Errorf("embedding chunk %d: %w", index, err)
		}

		err = i.store.InsertChunk(ctx, knowledge.InsertChunkParams{
			Filepath:       relPath,
			ChunkIndex:     index,
			ChunkID:        uuid.NewString(),
			Text:           chunk,
			NormalizedText: normalized,
			Source:         relPath,
			Embedding:      embedding,
		})
		if err != nil {
			return err
		}
	}

	i.logger.Info("ingested document", "path", relPath, "chunks", len(chunks), "chunk_size", chunkSize)
	return nil
}

// ChunkWords splits text into overlapping word windows. The last window may
// be shorter; empty windows are skipped.
func ChunkWords(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	words := strings.Fields(text)
	var chunks []string
	for start := 0; start < len(words); start += step {
		end := min(start+size, len(words))
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// isShortForm reports whether the file holds short self-contained entries:
// anything under faq/, faq_*.md, *_summary.md, and routing.md.
func isShortForm(relPath string) bool {
	normalized := strings.ToLower(filepath.ToSlash(relPath))
	base := path.Base(normalized)
	switch {
	case strings.HasPrefix(normalized, "faq/"), strings.Contains(normalized, "/faq/"):
		return true
	case strings.HasPrefix(base, "faq_") && strings.HasSuffix(base, ".md"):
		return true
	case strings.HasSuffix(base, "_summary.md"):
		return true
	case base == "routing.md":
		return true
	default:
		return false
	}
}

// readMarkdown reads a file as UTF-8, falling back to Latin-1 for legacy
// exports that were never re-encoded.
func readMarkdown(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	if utf8.Valid(data) {
		// Strip a UTF-8 BOM if present.
		return strings.TrimPrefix(string(data), "\uFEFF"), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return string(decoded), nil
}
