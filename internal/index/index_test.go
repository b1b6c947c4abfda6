package index

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AVIDS2/memorix/internal/models"
)

var testWeights = Weights{Text: 0.6, Vector: 0.4, Threshold: 0.5}

func newTestIndex() *Index {
	return New(nil, testWeights, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func obs(id int64, title string) models.Observation {
	return models.Observation{
		ID:        id,
		ProjectID: "acme/app",
		Type:      models.TypeDiscovery,
		Title:     title,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, int(id), 0, time.UTC).Format(time.RFC3339),
		Tokens:    10,
	}
}

func TestSearchFieldBoostOrdering(t *testing.T) {
	ix := newTestIndex()

	titleHit := obs(1, "database migration plan")
	fileHit := obs(2, "unrelated")
	fileHit.FilesModified = []string{"internal/database/schema.go"}
	ix.Insert(fileHit, nil)
	ix.Insert(titleHit, nil)

	resp := ix.Search(models.SearchRequest{Query: "database"}, nil)
	if len(resp.Hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(resp.Hits))
	}
	if resp.Hits[0].ID != 1 {
		t.Fatalf("title match should rank first, got id %d", resp.Hits[0].ID)
	}
	if got := resp.Hits[0].MatchedFields; len(got) != 1 || got[0] != "title" {
		t.Fatalf("matchedFields = %v", got)
	}
	if got := resp.Hits[1].MatchedFields; len(got) != 1 || got[0] != "filesModified" {
		t.Fatalf("matchedFields = %v", got)
	}
}

func TestSearchFuzzyMatchLabeled(t *testing.T) {
	ix := newTestIndex()
	ix.Insert(obs(1, "database schema"), nil)

	// One transposition, query longer than six chars: two edits allowed.
	resp := ix.Search(models.SearchRequest{Query: "databsae"}, nil)
	if len(resp.Hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(resp.Hits))
	}
	if got := resp.Hits[0].MatchedFields; len(got) != 1 || got[0] != "fuzzy" {
		t.Fatalf("matchedFields = %v, want [fuzzy]", got)
	}
}

func TestSearchShortQueryTighterFuzz(t *testing.T) {
	ix := newTestIndex()
	ix.Insert(obs(1, "auth"), nil)

	if resp := ix.Search(models.SearchRequest{Query: "autx"}, nil); len(resp.Hits) != 1 {
		t.Fatalf("one edit on a short query should match, got %d hits", len(resp.Hits))
	}
	if resp := ix.Search(models.SearchRequest{Query: "axtx"}, nil); len(resp.Hits) != 0 {
		t.Fatalf("two edits on a short query should not match")
	}
}

func TestSearchTypeFilter(t *testing.T) {
	ix := newTestIndex()
	a := obs(1, "jwt refresh")
	a.Type = models.TypeDecision
	b := obs(2, "jwt parsing")
	ix.Insert(a, nil)
	ix.Insert(b, nil)

	resp := ix.Search(models.SearchRequest{Query: "jwt", Type: models.TypeDecision}, nil)
	if len(resp.Hits) != 1 || resp.Hits[0].ID != 1 {
		t.Fatalf("hits = %+v", resp.Hits)
	}
}

func TestSearchSinceUntilWindow(t *testing.T) {
	ix := newTestIndex()
	for i := int64(1); i <= 3; i++ {
		o := obs(i, "deploy checklist")
		o.CreatedAt = time.Date(2026, 1, int(i), 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
		ix.Insert(o, nil)
	}

	resp := ix.Search(models.SearchRequest{
		Query: "deploy",
		Since: "2026-01-02T00:00:00Z",
		Until: "2026-01-02T23:59:59Z",
	}, nil)
	if len(resp.Hits) != 1 || resp.Hits[0].ID != 2 {
		t.Fatalf("hits = %+v", resp.Hits)
	}
}

func TestSearchEmptyQueryInsertionOrder(t *testing.T) {
	ix := newTestIndex()
	ix.Insert(obs(3, "third"), nil)
	ix.Insert(obs(1, "first"), nil)
	ix.Insert(obs(2, "second"), nil)

	resp := ix.Search(models.SearchRequest{Limit: 2}, []string{"acme/app"})
	if len(resp.Hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(resp.Hits))
	}
	if resp.Hits[0].ID != 3 || resp.Hits[1].ID != 1 {
		t.Fatalf("hits out of insertion order: %+v", resp.Hits)
	}
	if resp.Hits[0].MatchedFields != nil {
		t.Fatalf("empty query should not annotate matches: %v", resp.Hits[0].MatchedFields)
	}
}

func TestSearchAliasPostFilter(t *testing.T) {
	ix := newTestIndex()
	for i := int64(1); i <= 4; i++ {
		o := obs(i, "build cache")
		switch i % 2 {
		case 0:
			o.ProjectID = "local/app"
		default:
			o.ProjectID = "other/project"
		}
		ix.Insert(o, nil)
	}
	canonical := obs(5, "build cache")
	ix.Insert(canonical, nil)

	resp := ix.Search(models.SearchRequest{Query: "cache"}, []string{"acme/app", "local/app"})
	if len(resp.Hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(resp.Hits))
	}
	for _, h := range resp.Hits {
		if h.ID != 2 && h.ID != 4 && h.ID != 5 {
			t.Fatalf("hit %d outside the alias set", h.ID)
		}
	}
}

func TestSearchTokenBudget(t *testing.T) {
	ix := newTestIndex()
	tokens := []int{30, 40, 35, 50, 20, 25, 60, 10, 45, 30}
	for i, tk := range tokens {
		o := obs(int64(i+1), "release notes")
		o.Tokens = tk
		ix.Insert(o, nil)
	}

	resp := ix.Search(models.SearchRequest{Query: "release", MaxTokens: 120}, nil)
	if len(resp.Hits) != 3 {
		t.Fatalf("got %d hits, want 3", len(resp.Hits))
	}
	sum := 0
	for _, h := range resp.Hits {
		sum += h.Tokens
	}
	if sum != 105 {
		t.Fatalf("budget sum = %d, want 105", sum)
	}
}

func TestSearchTokenBudgetSingleOversizedHit(t *testing.T) {
	ix := newTestIndex()
	o := obs(1, "release notes")
	o.Tokens = 200
	ix.Insert(o, nil)

	resp := ix.Search(models.SearchRequest{Query: "release", MaxTokens: 120}, nil)
	if len(resp.Hits) != 1 || resp.Hits[0].ID != 1 {
		t.Fatalf("an oversized sole hit must still be returned: %+v", resp.Hits)
	}
}

// uniformProvider embeds everything to the same direction, so any two
// vectors have similarity 1.
type uniformProvider struct{}

func (uniformProvider) Name() string    { return "uniform" }
func (uniformProvider) Dimensions() int { return 3 }
func (uniformProvider) Embed(string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}
func (uniformProvider) EmbedBatch(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func TestHybridFindsSemanticMatch(t *testing.T) {
	// Lexical-only: no match for an unrelated term.
	lex := newTestIndex()
	lex.Insert(obs(1, "login flow"), nil)
	if resp := lex.Search(models.SearchRequest{Query: "authentication"}, nil); len(resp.Hits) != 0 {
		t.Fatalf("lexical-only search should miss, got %+v", resp.Hits)
	}

	// With a provider, similarity clears the threshold.
	hyb := New(uniformProvider{}, testWeights, slog.New(slog.NewTextHandler(io.Discard, nil)))
	hyb.Insert(obs(1, "login flow"), []float32{1, 0, 0})
	resp := hyb.Search(models.SearchRequest{Query: "authentication"}, nil)
	if len(resp.Hits) != 1 {
		t.Fatalf("hybrid search should hit, got %d", len(resp.Hits))
	}
	if got := resp.Hits[0].MatchedFields; len(got) != 1 || got[0] != "fuzzy" {
		t.Fatalf("vector-only hit should be labeled fuzzy, got %v", got)
	}
}

func TestAccessAccounting(t *testing.T) {
	ix := newTestIndex()
	ix.Insert(obs(1, "retry budget"), nil)

	done := make(chan []int64, 1)
	ix.SetAccessHook(func(ids []int64) { done <- ids })

	if resp := ix.Search(models.SearchRequest{Query: "retry"}, nil); len(resp.Hits) != 1 {
		t.Fatalf("expected one hit")
	}

	select {
	case ids := <-done:
		if len(ids) != 1 || ids[0] != 1 {
			t.Fatalf("hook got %v", ids)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("access hook never fired")
	}
	if got := ix.AccessCount(1); got != 1 {
		t.Fatalf("accessCount = %d, want 1", got)
	}
}

func TestRemoveAndUpdate(t *testing.T) {
	ix := newTestIndex()
	ix.Insert(obs(1, "old title"), nil)
	ix.Insert(obs(2, "stays"), nil)

	updated := obs(1, "new title")
	ix.Update(updated, nil)
	if resp := ix.Search(models.SearchRequest{Query: "old"}, nil); len(resp.Hits) != 0 {
		t.Fatalf("stale content still indexed: %+v", resp.Hits)
	}
	if resp := ix.Search(models.SearchRequest{Query: "new"}, nil); len(resp.Hits) != 1 {
		t.Fatalf("updated content not indexed")
	}

	ix.Remove(2)
	if ix.Len() != 1 {
		t.Fatalf("len = %d, want 1", ix.Len())
	}
	ix.Remove(99) // unknown id is a no-op
}
