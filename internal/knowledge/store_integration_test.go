package knowledge

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/medifestructuras/asistente/internal/log"
	"github.com/medifestructuras/asistente/internal/testutil"
)

const testDimension = 768

// unitVec builds a unit-length test vector pointing mostly along axis idx,
// with a small constant component so distinct vectors stay comparable.
func unitVec(idx int) []float32 {
	v := make([]float32, testDimension)
	for i := range v {
		v[i] = 0.01
	}
	v[idx%testDimension] = 1
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}

func insertTestChunk(t *testing.T, store *Store, filepath, source, text string, idx int, vec []float32) {
	t.Helper()
	err := store.InsertChunk(context.Background(), InsertChunkParams{
		Filepath:       filepath,
		ChunkIndex:     idx,
		ChunkID:        fmt.Sprintf("%s-%d", filepath, idx),
		Text:           text,
		NormalizedText: text,
		Source:         source,
		Embedding:      vec,
	})
	if err != nil {
		t.Fatalf("InsertChunk(%s): %v", filepath, err)
	}
}

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := New(db.Pool, log.NewNop())

	insertTestChunk(t, store, "cursos/etabs.md", "cursos/etabs.md",
		"el curso de etabs cuesta 300 euros", 0, unitVec(0))
	insertTestChunk(t, store, "cursos/etabs.md", "cursos/etabs.md",
		"el curso dura ocho semanas", 1, unitVec(1))
	insertTestChunk(t, store, "software/cype.md", "software/cype.md",
		"cype es un software de calculo estructural", 0, unitVec(2))

	t.Run("similarity search orders by distance", func(t *testing.T) {
		chunks, err := store.SearchSimilar(ctx, unitVec(0), 3, nil)
		if err != nil {
			t.Fatalf("SearchSimilar: %v", err)
		}
		if len(chunks) != 3 {
			t.Fatalf("got %d chunks, want 3", len(chunks))
		}
		if chunks[0].Text != "el curso de etabs cuesta 300 euros" {
			t.Errorf("best match = %q, want the price chunk", chunks[0].Text)
		}
		if chunks[0].Similarity < 0.99 {
			t.Errorf("best similarity = %f, want ~1.0", chunks[0].Similarity)
		}
		for i := 1; i < len(chunks); i++ {
			if chunks[i].Similarity > chunks[i-1].Similarity {
				t.Errorf("chunks not ordered by descending similarity at %d", i)
			}
		}
	})

	t.Run("similarity search with source filter", func(t *testing.T) {
		chunks, err := store.SearchSimilar(ctx, unitVec(2), 5, []string{"software/"})
		if err != nil {
			t.Fatalf("SearchSimilar: %v", err)
		}
		if len(chunks) != 1 {
			t.Fatalf("got %d chunks, want only software/", len(chunks))
		}
		if chunks[0].Source != "software/cype.md" {
			t.Errorf("source = %q, want software/cype.md", chunks[0].Source)
		}
	})

	t.Run("keyword search", func(t *testing.T) {
		texts, err := store.FindByKeywords(ctx, []string{"etabs"}, 10)
		if err != nil {
			t.Fatalf("FindByKeywords: %v", err)
		}
		if len(texts) != 1 {
			t.Fatalf("got %d texts, want 1", len(texts))
		}
		if texts[0] != "el curso de etabs cuesta 300 euros" {
			t.Errorf("text = %q", texts[0])
		}
	})

	t.Run("fetch by path carries similarity 1", func(t *testing.T) {
		chunks, err := store.GetByPaths(ctx, []string{"software/cype.md"})
		if err != nil {
			t.Fatalf("GetByPaths: %v", err)
		}
		if len(chunks) != 1 {
			t.Fatalf("got %d chunks, want 1", len(chunks))
		}
		if chunks[0].Similarity != 1.0 {
			t.Errorf("similarity = %f, want 1.0", chunks[0].Similarity)
		}
	})

	t.Run("duplicate chunk id rejected", func(t *testing.T) {
		err := store.InsertChunk(ctx, InsertChunkParams{
			Filepath:       "cursos/etabs.md",
			ChunkIndex:     0,
			ChunkID:        "cursos/etabs.md-0",
			Text:           "duplicado",
			NormalizedText: "duplicado",
			Source:         "cursos/etabs.md",
			Embedding:      unitVec(3),
		})
		if err == nil {
			t.Fatal("expected unique violation for duplicate (filepath, chunk_id)")
		}
	})

	t.Run("delete by path", func(t *testing.T) {
		if err := store.DeleteByPath(ctx, "cursos/etabs.md"); err != nil {
			t.Fatalf("DeleteByPath: %v", err)
		}
		chunks, err := store.SearchSimilar(ctx, unitVec(0), 5, nil)
		if err != nil {
			t.Fatalf("SearchSimilar after delete: %v", err)
		}
		for _, c := range chunks {
			if c.Filepath == "cursos/etabs.md" {
				t.Errorf("chunk of deleted file still present: %q", c.Text)
			}
		}
	})
}
