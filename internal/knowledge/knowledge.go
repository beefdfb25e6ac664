// Package knowledge implements the document store backing retrieval:
// vector similarity search over pgvector, keyword lookup over the
// normalized-text column, and fetch-by-path for forced injections. It owns
// no embedding logic; callers hand it ready-made query vectors.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Chunk is one stored slice of a source document, as surfaced to the
// retrieval engine. Similarity is max(0, 1-cosine_distance), so it stays in
// [0, 1]; chunks fetched by path carry similarity 1.
type Chunk struct {
	Text       string
	Source     string // relative path used for priority ranking and dedup
	Filepath   string
	ChunkIndex int
	ChunkID    string
	Similarity float64
	CreatedAt  time.Time
}

// Querier is the subset of pgxpool.Pool the store needs. Defining it on the
// consumer side keeps the store testable without a live database.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides read/write access to the documents table.
// Store is safe for concurrent use.
type Store struct {
	db     Querier
	logger *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(db Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// SearchSimilar returns the topK chunks nearest to the query vector by
// cosine distance, optionally restricted to sources under one of the given
// path prefixes. Results are ordered by ascending distance.
func (s *Store) SearchSimilar(ctx context.Context, queryVector []float32, topK int, sourcePrefixes []string) ([]Chunk, error) {
	query := `
		SELECT text, source, filepath, chunk_index, chunk_id, created_at,
		       embedding <=> $1 AS cosine_distance
		FROM documents`
	args := []any{pgvector.NewVector(queryVector)}

	if len(sourcePrefixes) > 0 {
		query += `
		WHERE source ILIKE ANY ($2)`
		args = append(args, prefixPatterns(sourcePrefixes))
	}

	query += fmt.Sprintf(`
		ORDER BY cosine_distance ASC
		LIMIT %d`, topK)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var distance float64
		if err := rows.Scan(&c.Text, &c.Source, &c.Filepath, &c.ChunkIndex, &c.ChunkID, &c.CreatedAt, &distance); err != nil {
			return nil, fmt.Errorf("scanning similarity row: %w", err)
		}
		c.Similarity = max(0, 1-distance)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading similarity rows: %w", err)
	}

	s.logger.Debug("similarity search",
		"top_k", topK,
		"prefixes", strings.Join(sourcePrefixes, ","),
		"matches", len(chunks))
	return chunks, nil
}

// FindByKeywords returns document texts whose normalized text contains any
// of the keywords (case-insensitive substring match), deduplicated in row
// order, up to maxResults.
func (s *Store) FindByKeywords(ctx context.Context, keywords []string, maxResults int) ([]string, error) {
	patterns := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		patterns = append(patterns, "%"+kw+"%")
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT text
		FROM documents
		WHERE normalized_text ILIKE ANY ($1)
		LIMIT $2`,
		patterns, maxResults)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]struct{})
	var texts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scanning keyword row: %w", err)
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		texts = append(texts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading keyword rows: %w", err)
	}
	return texts, nil
}

// GetByPaths returns every chunk whose filepath matches one of the given
// paths, newest first. Fetched chunks carry similarity 1: they were
// requested explicitly, not ranked.
func (s *Store) GetByPaths(ctx context.Context, paths []string) ([]Chunk, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	rows, err := s.db.Query(ctx, `
		SELECT text, source, filepath, chunk_index, chunk_id, created_at
		FROM documents
		WHERE filepath = ANY ($1)
		ORDER BY created_at DESC`,
		paths)
	if err != nil {
		return nil, fmt.Errorf("fetch by paths: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.Text, &c.Source, &c.Filepath, &c.ChunkIndex, &c.ChunkID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning path row: %w", err)
		}
		c.Similarity = 1.0
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading path rows: %w", err)
	}
	return chunks, nil
}

// InsertChunkParams describes one chunk to store.
type InsertChunkParams struct {
	Filepath       string
	ChunkIndex     int
	ChunkID        string
	Text           string
	NormalizedText string
	Source         string
	Embedding      []float32
}

// InsertChunk stores one document chunk. The (filepath, chunk_id) pair is
// unique; re-inserting an existing chunk is an error, so callers replace a
// file with DeleteByPath followed by fresh inserts.
func (s *Store) InsertChunk(ctx context.Context, p InsertChunkParams) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO documents (filepath, chunk_index, chunk_id, text, normalized_text, source, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.Filepath, p.ChunkIndex, p.ChunkID, p.Text, p.NormalizedText, p.Source,
		pgvector.NewVector(p.Embedding))
	if err != nil {
		return fmt.Errorf("inserting chunk %d of %s: %w", p.ChunkIndex, p.Filepath, err)
	}
	return nil
}

// DeleteByPath removes every chunk of the given file.
func (s *Store) DeleteByPath(ctx context.Context, filepath string) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM documents WHERE filepath = $1`, filepath); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", filepath, err)
	}
	return nil
}

// prefixPatterns converts source prefixes to ILIKE patterns, ensuring each
// prefix ends with a path separator before the wildcard.
func prefixPatterns(prefixes []string) []string {
	patterns := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		patterns = append(patterns, prefix+"%")
	}
	return patterns
}
