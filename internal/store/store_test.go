package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/AVIDS2/memorix/internal/memerr"
	"github.com/AVIDS2/memorix/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestObservationsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	obs := []models.Observation{
		{
			ID:            1,
			EntityName:    "auth",
			Type:          models.TypeDecision,
			Title:         "JWT refresh",
			Narrative:     "rotate on use",
			Facts:         []string{"15-minute expiry"},
			Concepts:      []string{"jwt"},
			Tokens:        42,
			CreatedAt:     "2026-01-02T03:04:05Z",
			ProjectID:     "acme/app",
			TopicKey:      "decision/jwt-refresh",
			RevisionCount: 1,
		},
		{ID: 2, EntityName: "db", Type: models.TypeGotcha, Title: "lock order", CreatedAt: "2026-01-03T00:00:00Z", ProjectID: "acme/app", RevisionCount: 1},
	}
	if err := s.SaveObservations(obs); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadObservations()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, obs) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", got, obs)
	}
}

func TestMissingFilesAreEmpty(t *testing.T) {
	s := newTestStore(t)

	if obs, err := s.LoadObservations(); err != nil || obs != nil {
		t.Fatalf("observations: got %v, %v", obs, err)
	}
	if next, err := s.LoadNextID(); err != nil || next != 1 {
		t.Fatalf("nextId: got %d, %v", next, err)
	}
	if g, err := s.LoadGraph(); err != nil || len(g.Entities) != 0 || len(g.Relations) != 0 {
		t.Fatalf("graph: got %+v, %v", g, err)
	}
	if groups, err := s.LoadAliases(); err != nil || groups != nil {
		t.Fatalf("aliases: got %v, %v", groups, err)
	}
}

func TestCorruptFileIsIntegrityError(t *testing.T) {
	s := newTestStore(t)
	if err := os.WriteFile(filepath.Join(s.Dir(), ObservationsFile), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.LoadObservations()
	if !memerr.IsKind(err, memerr.KindIntegrityError) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
}

func TestCounterRoundTrip(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveNextID(42); err != nil {
		t.Fatal(err)
	}
	next, err := s.LoadNextID()
	if err != nil || next != 42 {
		t.Fatalf("got %d, %v", next, err)
	}
}

func TestGraphRoundTrip(t *testing.T) {
	s := newTestStore(t)
	g := models.Graph{
		Entities: []models.Entity{
			{Name: "auth", EntityType: "module", Observations: []string{"uses JWT"}},
			{Name: "db", EntityType: "module"},
		},
		Relations: []models.Relation{
			{From: "auth", To: "db", RelationType: "reads-from"},
		},
	}
	if err := s.SaveGraph(g); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadGraph()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, g) {
		t.Fatalf("graph round trip mismatch:\ngot  %+v\nwant %+v", got, g)
	}
}

func TestGraphToleratesForeignLines(t *testing.T) {
	// Lines written by other tools with unknown type tags are skipped.
	s := newTestStore(t)
	content := `{"type":"entity","name":"auth","entityType":"module","observations":["x"]}
{"type":"metadata","version":"9"}
{"type":"relation","from":"auth","to":"db","relationType":"uses"}
`
	if err := os.WriteFile(filepath.Join(s.Dir(), GraphFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	g, err := s.LoadGraph()
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Entities) != 1 || len(g.Relations) != 1 {
		t.Fatalf("got %+v", g)
	}
}

func TestAliasesVersionRejected(t *testing.T) {
	s := newTestStore(t)
	raw := `{"version":2,"groups":[]}`
	path := filepath.Join(s.Dir(), AliasesFile)
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := s.LoadAliases()
	if !memerr.IsKind(err, memerr.KindIntegrityError) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
	// The file must be untouched.
	data, _ := os.ReadFile(path)
	if string(data) != raw {
		t.Fatal("alias file was modified while rejecting unknown version")
	}
}

func TestEmbeddingCacheDimsFilter(t *testing.T) {
	s := newTestStore(t)
	entries := []CacheEntry{
		{Hash: "aaaa", Vector: []float32{1, 2, 3}},
		{Hash: "bbbb", Vector: []float32{1, 2}},
	}
	if err := s.SaveEmbeddingCache(entries); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadEmbeddingCache(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Hash != "aaaa" {
		t.Fatalf("got %+v", got)
	}
}

func TestMigrateSubdirs(t *testing.T) {
	s := newTestStore(t)

	// Base already has one observation.
	base := []models.Observation{
		{ID: 5, Title: "base rec", CreatedAt: "2026-01-02T00:00:00Z", ProjectID: "local/app", Type: models.TypeDiscovery, RevisionCount: 1},
	}
	if err := s.SaveObservations(base); err != nil {
		t.Fatal(err)
	}

	// Legacy subdir with two observations, one duplicating the base record.
	sub, err := New(filepath.Join(s.Dir(), "local_app"))
	if err != nil {
		t.Fatal(err)
	}
	subObs := []models.Observation{
		{ID: 1, Title: "older rec", CreatedAt: "2026-01-01T00:00:00Z", ProjectID: "local/app", Type: models.TypeGotcha, RevisionCount: 1},
		{ID: 2, Title: "base rec", CreatedAt: "2026-01-02T00:00:00Z", ProjectID: "local/app", Type: models.TypeDiscovery, RevisionCount: 1},
	}
	if err := sub.SaveObservations(subObs); err != nil {
		t.Fatal(err)
	}
	if err := sub.SaveGraph(models.Graph{
		Entities: []models.Entity{{Name: "auth", EntityType: "module", Observations: []string{"line"}}},
	}); err != nil {
		t.Fatal(err)
	}

	if err := s.MigrateSubdirs(discardLogger()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	merged, err := s.LoadObservations()
	if err != nil {
		t.Fatal(err)
	}
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged observations, got %d", len(merged))
	}
	// Sorted by createdAt, renumbered from 1.
	if merged[0].Title != "older rec" || merged[0].ID != 1 {
		t.Fatalf("first = %+v", merged[0])
	}
	if merged[1].Title != "base rec" || merged[1].ID != 2 {
		t.Fatalf("second = %+v", merged[1])
	}
	next, err := s.LoadNextID()
	if err != nil || next != 3 {
		t.Fatalf("nextId = %d, %v", next, err)
	}

	// Graph merged in.
	g, err := s.LoadGraph()
	if err != nil || len(g.Entities) != 1 {
		t.Fatalf("graph = %+v, %v", g, err)
	}

	// Subdir moved into the backup area.
	if _, err := os.Stat(filepath.Join(s.Dir(), "local_app")); !os.IsNotExist(err) {
		t.Fatal("legacy subdir still present")
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), MigratedDir, "local_app", ObservationsFile)); err != nil {
		t.Fatalf("backup missing: %v", err)
	}

	// Idempotence: a second run finds nothing to do.
	if err := s.MigrateSubdirs(discardLogger()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	again, _ := s.LoadObservations()
	if !reflect.DeepEqual(again, merged) {
		t.Fatal("second migration changed data")
	}
}
