package retrieval

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/medifestructuras/asistente/internal/knowledge"
)

// fakeEmbedder returns canned unit vectors per input text.
type fakeEmbedder struct {
	vectors map[string][]float32
	fallbck []float32
	err     error
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.fallbck, nil
}

type fakeStore struct {
	similar     []knowledge.Chunk
	similarErr  error
	keyword     []string
	keywordErr  error
	byPaths     []knowledge.Chunk
	byPathsErr  error
	gotTopK     int
	gotPrefixes []string
	gotPaths    []string
}

func (f *fakeStore) SearchSimilar(_ context.Context, _ []float32, topK int, prefixes []string) ([]knowledge.Chunk, error) {
	f.gotTopK = topK
	f.gotPrefixes = prefixes
	return f.similar, f.similarErr
}

func (f *fakeStore) FindByKeywords(_ context.Context, _ []string, _ int) ([]string, error) {
	return f.keyword, f.keywordErr
}

func (f *fakeStore) GetByPaths(_ context.Context, paths []string) ([]knowledge.Chunk, error) {
	f.gotPaths = paths
	return f.byPaths, f.byPathsErr
}

func newTestEngine(t *testing.T, store Store, embedder Embedder) *Engine {
	t.Helper()
	e, err := New(embedder, store, DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestRetrieveFiltersBelowSimilarityFloor(t *testing.T) {
	store := &fakeStore{similar: []knowledge.Chunk{
		{Text: "precios de cursos", Source: "cursos/precios.md", Similarity: 0.9},
		{Text: "horarios de cursos", Source: "cursos/horarios.md", Similarity: 0.65},
		{Text: "texto irrelevante", Source: "otros/cosa.md", Similarity: 0.4},
	}}
	e := newTestEngine(t, store, &fakeEmbedder{fallbck: []float32{1, 0}})

	result, err := e.Retrieve(context.Background(), "cuanto cuestan los cursos de estructuras", nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	if len(result.ContextChunks) != 2 {
		t.Fatalf("got %d chunks, want 2 (the 0.4 match must be dropped): %v",
			len(result.ContextChunks), result.ContextChunks)
	}
	if result.BestSimilarity != 0.9 {
		t.Errorf("BestSimilarity = %f, want 0.9", result.BestSimilarity)
	}
}

func TestRetrieveRoutingDocumentOutranksHigherSimilarity(t *testing.T) {
	store := &fakeStore{similar: []knowledge.Chunk{
		{Text: "detalle del curso de etabs", Source: "cursos/etabs.md", Similarity: 0.95},
		{Text: "mapa de temas del sitio", Source: "cursos/routing.md", Similarity: 0.7},
		{Text: "resumen de servicios", Source: "servicios/servicios_summary.md", Similarity: 0.72},
	}}
	e := newTestEngine(t, store, &fakeEmbedder{fallbck: []float32{1, 0}})

	result, err := e.Retrieve(context.Background(), "informacion general", nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	// routing.md outranks everything, summaries outrank plain sources,
	// regardless of raw similarity.
	want := []string{
		"mapa de temas del sitio",
		"resumen de servicios",
		"detalle del curso de etabs",
	}
	if !reflect.DeepEqual(result.ContextChunks, want) {
		t.Errorf("ContextChunks = %v, want %v", result.ContextChunks, want)
	}
}

func TestRetrieveDeduplicatesSourcesAndTexts(t *testing.T) {
	store := &fakeStore{similar: []knowledge.Chunk{
		{Text: "primer parrafo de precios", Source: "otros/precios.md", Similarity: 0.9},
		{Text: "segundo parrafo de precios", Source: "otros/precios.md", Similarity: 0.85},
		{Text: "PRIMER   PARRAFO DE PRECIOS!!", Source: "otros/duplicado.md", Similarity: 0.8},
		{Text: "horarios disponibles", Source: "otros/horarios.md", Similarity: 0.7},
	}}
	e := newTestEngine(t, store, &fakeEmbedder{fallbck: []float32{1, 0}})

	result, err := e.Retrieve(context.Background(), "precios", nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	// One chunk per source file, one chunk per normalized text.
	want := []string{"primer parrafo de precios", "horarios disponibles"}
	if !reflect.DeepEqual(result.ContextChunks, want) {
		t.Errorf("ContextChunks = %v, want %v", result.ContextChunks, want)
	}
}

func TestRetrieveSimilarChunksCountsThresholdSurvivors(t *testing.T) {
	store := &fakeStore{similar: []knowledge.Chunk{
		{Text: "primer parrafo de precios", Source: "otros/precios.md", Similarity: 0.9},
		{Text: "PRIMER   PARRAFO DE PRECIOS!!", Source: "otros/duplicado.md", Similarity: 0.8},
		{Text: "horarios disponibles", Source: "otros/horarios.md", Similarity: 0.7},
		{Text: "texto irrelevante", Source: "otros/cosa.md", Similarity: 0.3},
	}}
	e := newTestEngine(t, store, &fakeEmbedder{fallbck: []float32{1, 0}})

	result, err := e.Retrieve(context.Background(), "precios", nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	// Three matches passed the floor; dedup then drops one, but the
	// count reports the floor survivors, not the selected context.
	if result.SimilarChunks != 3 {
		t.Errorf("SimilarChunks = %d, want 3", result.SimilarChunks)
	}
	if len(result.ContextChunks) != 2 {
		t.Errorf("ContextChunks = %v, want 2 deduplicated chunks", result.ContextChunks)
	}
}

func TestRetrieveNarrowsSearchBySourceFilters(t *testing.T) {
	store := &fakeStore{}
	e := newTestEngine(t, store, &fakeEmbedder{fallbck: []float32{1, 0}})

	result, err := e.Retrieve(context.Background(), "que cursos de cype tienen", nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	want := []string{"cursos/", "software/"}
	if !reflect.DeepEqual(store.gotPrefixes, want) {
		t.Errorf("search prefixes = %v, want %v", store.gotPrefixes, want)
	}
	if !reflect.DeepEqual(result.SourceFilters, want) {
		t.Errorf("SourceFilters = %v, want %v", result.SourceFilters, want)
	}
	// Narrowed searches that find nothing are not retried unfiltered.
	if len(result.ContextChunks) != 0 {
		t.Errorf("ContextChunks = %v, want empty", result.ContextChunks)
	}
}

func TestRetrievePrependsCourseOverview(t *testing.T) {
	store := &fakeStore{
		similar: []knowledge.Chunk{
			{Text: "detalle del curso de cype", Source: "cursos/cype.md", Similarity: 0.9},
		},
		byPaths: []knowledge.Chunk{
			{Text: "listado completo de cursos", Source: "overview_cursos.md", Filepath: "overview_cursos.md", Similarity: 1.0},
		},
	}
	e := newTestEngine(t, store, &fakeEmbedder{fallbck: []float32{1, 0}})

	result, err := e.Retrieve(context.Background(), "que cursos ofrecen", nil)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	want := []string{"listado completo de cursos", "detalle del curso de cype"}
	if !reflect.DeepEqual(result.ContextChunks, want) {
		t.Errorf("ContextChunks = %v, want %v", result.ContextChunks, want)
	}
	if !reflect.DeepEqual(store.gotPaths, []string{"overview_cursos.md"}) {
		t.Errorf("overview fetched from %v, want [overview_cursos.md]", store.gotPaths)
	}
	// The injected overview is not a vector match and must not inflate
	// the similarity count.
	if result.SimilarChunks != 1 {
		t.Errorf("SimilarChunks = %d, want 1", result.SimilarChunks)
	}
}

func TestKeywordFallbackValidatesCandidates(t *testing.T) {
	store := &fakeStore{
		keyword: []string{"licencias de sap2000", "receta de empanadas con sap"},
	}
	embedder := &fakeEmbedder{
		fallbck: []float32{1, 0},
		vectors: map[string][]float32{
			"licencias de sap2000":        {0.9, 0.436},
			"receta de empanadas con sap": {0, 1},
		},
	}
	e := newTestEngine(t, store, embedder)

	result, err := e.Retrieve(context.Background(), "usan sap2000", []string{"sap2000"})
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	want := []string{"licencias de sap2000"}
	if !reflect.DeepEqual(result.ContextChunks, want) {
		t.Errorf("ContextChunks = %v, want %v (off-topic candidate must fail the similarity check)",
			result.ContextChunks, want)
	}
	if result.KeywordChunks != 1 {
		t.Errorf("KeywordChunks = %d, want 1", result.KeywordChunks)
	}
}

func TestRetrieveSurfacesSearchErrors(t *testing.T) {
	searchErr := errors.New("connection refused")
	store := &fakeStore{similarErr: searchErr}
	e := newTestEngine(t, store, &fakeEmbedder{fallbck: []float32{1, 0}})

	if _, err := e.Retrieve(context.Background(), "hola cursos", nil); !errors.Is(err, searchErr) {
		t.Errorf("err = %v, want wrapped search error", err)
	}
}

func TestChunkPriority(t *testing.T) {
	tests := []struct {
		source string
		want   int
	}{
		{"cursos/routing.md", 0},
		{"servicios/servicios_summary.md", 1},
		{"faq/faq.md", 1},
		{"faq/faq_precios.md", 1},
		{"cursos/etabs.md", 2},
		{"", 3},
	}
	for _, tt := range tests {
		if got := chunkPriority(tt.source); got != tt.want {
			t.Errorf("chunkPriority(%q) = %d, want %d", tt.source, got, tt.want)
		}
	}
}
