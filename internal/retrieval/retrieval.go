// Package retrieval turns a user question into the ranked, deduplicated
// set of document chunks that ground the answer. It combines vector
// similarity search, source-priority ranking, a forced course overview for
// course questions, and a keyword fallback for lexical matches the vector
// index missed.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/medifestructuras/asistente/internal/embedding"
	"github.com/medifestructuras/asistente/internal/intent"
	"github.com/medifestructuras/asistente/internal/knowledge"
	"github.com/medifestructuras/asistente/internal/textutil"
)

// Embedder produces unit-length query vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the document access the engine needs.
type Store interface {
	SearchSimilar(ctx context.Context, queryVector []float32, topK int, sourcePrefixes []string) ([]knowledge.Chunk, error)
	FindByKeywords(ctx context.Context, keywords []string, maxResults int) ([]string, error)
	GetByPaths(ctx context.Context, paths []string) ([]knowledge.Chunk, error)
}

// Config tunes the retrieval pipeline. The zero value is not usable; call
// DefaultConfig or fill every field.
type Config struct {
	// MinSimilarity is the cosine-similarity floor below which vector
	// matches are discarded and keyword candidates rejected.
	MinSimilarity float64

	// TopK is how many nearest neighbors the vector search returns before
	// filtering and ranking.
	TopK int

	// MaxChunks caps how many chunks reach the prompt.
	MaxChunks int

	// KeywordMax caps how many keyword candidates are considered in the
	// fallback pass.
	KeywordMax int

	// OverviewPath is the document prepended to the context whenever the
	// question is about courses. Empty disables the injection.
	OverviewPath string
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		MinSimilarity: 0.6,
		TopK:          8,
		MaxChunks:     5,
		KeywordMax:    2,
		OverviewPath:  "overview_cursos.md",
	}
}

func (c Config) validate() error {
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("min similarity must be in [0, 1], got %f", c.MinSimilarity)
	}
	if c.TopK <= 0 {
		return errors.New("top-k must be positive")
	}
	if c.MaxChunks <= 0 {
		return errors.New("max chunks must be positive")
	}
	if c.KeywordMax < 0 {
		return errors.New("keyword max cannot be negative")
	}
	return nil
}

// Result is the retrieval outcome handed to prompt assembly.
type Result struct {
	// ContextChunks are the selected chunk texts, best first. Empty means
	// nothing relevant was found and the caller should answer with the
	// fixed fallback instead of generating.
	ContextChunks []string

	// SourceFilters are the path prefixes the vector search was narrowed
	// to, if any.
	SourceFilters []string

	// BestSimilarity is the highest similarity among accepted vector
	// matches, 0 when none passed the floor.
	BestSimilarity float64

	// SimilarChunks counts vector matches that passed the similarity
	// floor, before ranking, dedup, and the overview injection.
	// KeywordChunks counts fallback chunks that made it into the context.
	SimilarChunks int
	KeywordChunks int
}

// Engine runs the retrieval pipeline.
// Engine is safe for concurrent use.
type Engine struct {
	embedder Embedder
	store    Store
	config   Config
	logger   *slog.Logger
}

// New creates an Engine. A nil logger falls back to slog.Default().
func New(embedder Embedder, store Store, config Config, logger *slog.Logger) (*Engine, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{embedder: embedder, store: store, config: config, logger: logger}, nil
}

// Retrieve embeds the question, searches the vector index (narrowed to
// inferred source prefixes when the question names a topic area), ranks and
// deduplicates the matches, and tops up with keyword candidates that pass
// the similarity floor. A narrowed search that comes back empty is NOT
// retried unfiltered: the narrowing already encodes what the user asked
// about.
func (e *Engine) Retrieve(ctx context.Context, message string, keywords []string) (Result, error) {
	queryVector, err := e.embedder.EmbedQuery(ctx, message)
	if err != nil {
		return Result{}, fmt.Errorf("embedding question: %w", err)
	}

	normalized := textutil.Normalize(message)
	filters := intent.InferSourceFilters(normalized)

	matches, err := e.store.SearchSimilar(ctx, queryVector, e.config.TopK, filters)
	if err != nil {
		return Result{}, fmt.Errorf("vector search: %w", err)
	}

	accepted := make([]knowledge.Chunk, 0, len(matches))
	best := 0.0
	for _, m := range matches {
		if m.Similarity < e.config.MinSimilarity {
			continue
		}
		if m.Similarity > best {
			best = m.Similarity
		}
		accepted = append(accepted, m)
	}

	ranked := rankChunks(accepted)

	var selected []knowledge.Chunk
	if intent.IsCourseRequest(normalized) && e.config.OverviewPath != "" {
		overview, err := e.store.GetByPaths(ctx, []string{e.config.OverviewPath})
		if err != nil {
			e.logger.Warn("course overview fetch failed", "path", e.config.OverviewPath, "error", err)
		} else {
			selected = overview
		}
	}
	selected = append(selected, ranked...)

	texts := dedupTexts(selected, e.config.MaxChunks)

	fromKeywords := 0
	if len(texts) < e.config.MaxChunks && len(keywords) > 0 && e.config.KeywordMax > 0 {
		added, err := e.keywordFallback(ctx, queryVector, keywords, texts)
		if err != nil {
			e.logger.Warn("keyword fallback failed", "error", err)
		} else {
			fromKeywords = len(added)
			texts = append(texts, added...)
		}
	}

	e.logger.Info("retrieval complete",
		"filters", strings.Join(filters, ","),
		"best_similarity", best,
		"similar_chunks", len(accepted),
		"keyword_chunks", fromKeywords,
		"context_chunks", len(texts))

	return Result{
		ContextChunks:  texts,
		SourceFilters:  filters,
		BestSimilarity: best,
		SimilarChunks:  len(accepted),
		KeywordChunks:  fromKeywords,
	}, nil
}

// keywordFallback fetches lexical matches and keeps only those whose own
// embedding is actually close to the query. Without the re-check a stray
// substring match could smuggle irrelevant text into the prompt.
func (e *Engine) keywordFallback(ctx context.Context, queryVector []float32, keywords, existing []string) ([]string, error) {
	candidates, err := e.store.FindByKeywords(ctx, keywords, e.config.KeywordMax)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(existing))
	for _, text := range existing {
		seen[textutil.Normalize(text)] = struct{}{}
	}

	budget := e.config.MaxChunks - len(existing)
	var added []string
	for _, candidate := range candidates {
		if len(added) >= budget {
			break
		}
		key := textutil.Normalize(candidate)
		if _, dup := seen[key]; dup {
			continue
		}

		candidateVector, err := e.embedder.EmbedQuery(ctx, candidate)
		if err != nil {
			e.logger.Warn("keyword candidate embedding failed", "error", err)
			continue
		}
		if embedding.DotProduct(queryVector, candidateVector) < e.config.MinSimilarity {
			continue
		}

		seen[key] = struct{}{}
		added = append(added, candidate)
	}
	return added, nil
}

// rankChunks orders chunks by source priority, then by descending
// similarity within the same priority. The sort is stable so equally
// ranked chunks keep their search order.
func rankChunks(chunks []knowledge.Chunk) []knowledge.Chunk {
	ranked := make([]knowledge.Chunk, len(chunks))
	copy(ranked, chunks)

	sort.SliceStable(ranked, func(i, j int) bool {
		pi, pj := chunkPriority(ranked[i].Source), chunkPriority(ranked[j].Source)
		if pi != pj {
			return pi < pj
		}
		return ranked[i].Similarity > ranked[j].Similarity
	})
	return ranked
}

// chunkPriority ranks sources: routing documents first, then summaries and
// FAQs, then everything else; chunks without a source sort last.
func chunkPriority(source string) int {
	if source == "" {
		return 3
	}
	base := strings.ToLower(path.Base(source))
	switch {
	case base == "routing.md":
		return 0
	case strings.HasSuffix(base, "_summary.md"),
		base == "faq.md",
		strings.HasPrefix(base, "faq_") && strings.HasSuffix(base, ".md"):
		return 1
	default:
		return 2
	}
}

// dedupTexts extracts chunk texts in rank order, skipping repeats of the
// same source file or the same normalized text, up to limit.
func dedupTexts(chunks []knowledge.Chunk, limit int) []string {
	seenSources := make(map[string]struct{})
	seenTexts := make(map[string]struct{})

	var texts []string
	for _, c := range chunks {
		if len(texts) >= limit {
			break
		}
		key := textutil.Normalize(c.Text)
		if key == "" {
			continue
		}
		if _, dup := seenTexts[key]; dup {
			continue
		}
		if c.Source != "" {
			if _, dup := seenSources[c.Source]; dup {
				continue
			}
			seenSources[c.Source] = struct{}{}
		}
		seenTexts[key] = struct{}{}
		texts = append(texts, c.Text)
	}
	return texts
}
