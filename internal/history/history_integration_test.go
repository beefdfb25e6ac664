package history

import (
	"context"
	"testing"

	"github.com/medifestructuras/asistente/internal/log"
	"github.com/medifestructuras/asistente/internal/testutil"
)

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := New(db.Pool, log.NewNop())

	const conv = "conv-integration-1"

	t.Run("ensure conversation is idempotent", func(t *testing.T) {
		if err := store.EnsureConversation(ctx, conv); err != nil {
			t.Fatalf("EnsureConversation: %v", err)
		}
		if err := store.EnsureConversation(ctx, conv); err != nil {
			t.Fatalf("EnsureConversation (repeat): %v", err)
		}
	})

	t.Run("turns come back oldest-first within the limit", func(t *testing.T) {
		exchanges := []struct{ role, content string }{
			{RoleUser, "hola"},
			{RoleAssistant, "Hola, ¿cómo estás?"},
			{RoleUser, "¿cuánto cuesta el curso?"},
			{RoleAssistant, "El curso cuesta 300 euros."},
			{RoleUser, "¿y la duración?"},
			{RoleAssistant, "Ocho semanas."},
		}
		for _, e := range exchanges {
			if err := store.SaveTurn(ctx, conv, e.role, e.content, "203.0.113.7"); err != nil {
				t.Fatalf("SaveTurn(%q): %v", e.content, err)
			}
		}

		turns, err := store.GetRecent(ctx, conv, 4)
		if err != nil {
			t.Fatalf("GetRecent: %v", err)
		}
		if len(turns) != 4 {
			t.Fatalf("got %d turns, want 4", len(turns))
		}
		if turns[0].Content != "¿cuánto cuesta el curso?" {
			t.Errorf("oldest in window = %q, want the price question", turns[0].Content)
		}
		if turns[3].Content != "Ocho semanas." {
			t.Errorf("newest in window = %q, want the last answer", turns[3].Content)
		}
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		if err := store.SaveTurn(ctx, conv, "system", "nope", ""); err == nil {
			t.Fatal("expected check violation for invalid role")
		}
	})

	t.Run("unknown conversation yields empty window", func(t *testing.T) {
		turns, err := store.GetRecent(ctx, "missing-conv", 4)
		if err != nil {
			t.Fatalf("GetRecent: %v", err)
		}
		if len(turns) != 0 {
			t.Errorf("got %d turns, want none", len(turns))
		}
	})
}
