package observations

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/AVIDS2/memorix/internal/index"
	"github.com/AVIDS2/memorix/internal/memerr"
	"github.com/AVIDS2/memorix/internal/models"
	"github.com/AVIDS2/memorix/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newManager(t *testing.T, dir string) *Manager {
	t.Helper()
	st, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	ix := index.New(nil, index.Weights{Text: 0.6, Vector: 0.4, Threshold: 0.5}, discard())
	m, err := NewManager(st, ix, nil, discard())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func storeInput(title string) models.StoreObservationInput {
	return models.StoreObservationInput{
		EntityName: "auth",
		Type:       models.TypeDecision,
		Title:      title,
		Narrative:  "tokens rotate because refresh is cheap",
		ProjectID:  "acme/app",
	}
}

func TestStoreAllocatesIncreasingIDs(t *testing.T) {
	m := newManager(t, t.TempDir())

	var last int64
	for i := 0; i < 5; i++ {
		res, err := m.Store(storeInput("observation"))
		if err != nil {
			t.Fatal(err)
		}
		if res.ID <= last {
			t.Fatalf("id %d not greater than previous %d", res.ID, last)
		}
		last = res.ID
	}
	if last != 5 {
		t.Fatalf("last id = %d, want 5", last)
	}
}

func TestStoreEnrichesRecord(t *testing.T) {
	m := newManager(t, t.TempDir())

	input := storeInput("JWT refresh")
	input.Narrative = "refreshToken rotates in internal/auth/refresh.go because reuse is unsafe"
	res, err := m.Store(input)
	if err != nil {
		t.Fatal(err)
	}

	o, err := m.Get(res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !o.HasCausalLanguage {
		t.Error("causal language not detected")
	}
	if !contains(o.Concepts, "refreshToken") {
		t.Errorf("concepts missing extracted identifier: %v", o.Concepts)
	}
	if !contains(o.FilesModified, "internal/auth/refresh.go") {
		t.Errorf("files missing extracted path: %v", o.FilesModified)
	}
	if o.Tokens <= 0 {
		t.Error("tokens not computed")
	}
	if o.CreatedAt == "" || o.UpdatedAt == "" {
		t.Error("timestamps not set")
	}
}

func TestUpsertByTopicKey(t *testing.T) {
	m := newManager(t, t.TempDir())

	input := storeInput("JWT refresh")
	input.TopicKey = "decision/jwt-refresh"
	first, err := m.Store(input)
	if err != nil {
		t.Fatal(err)
	}

	input.Narrative = "15-minute expiry"
	second, err := m.Store(input)
	if err != nil {
		t.Fatal(err)
	}

	if second.ID != first.ID {
		t.Fatalf("upsert changed id: %d -> %d", first.ID, second.ID)
	}
	if !second.Upserted {
		t.Error("second store not reported as upsert")
	}
	if second.RevisionCount != 2 {
		t.Fatalf("revisionCount = %d, want 2", second.RevisionCount)
	}

	o, err := m.Get(first.ID)
	if err != nil {
		t.Fatal(err)
	}
	if o.Narrative != "15-minute expiry" {
		t.Fatalf("narrative not replaced: %q", o.Narrative)
	}
	if o.UpdatedAt == "" {
		t.Error("updatedAt not set")
	}
	if len(m.All()) != 1 {
		t.Fatalf("upsert created a second record: %d", len(m.All()))
	}
}

func TestTopicKeyScopedByProject(t *testing.T) {
	m := newManager(t, t.TempDir())

	input := storeInput("shared key")
	input.TopicKey = "decision/shared"
	if _, err := m.Store(input); err != nil {
		t.Fatal(err)
	}

	other := input
	other.ProjectID = "other/app"
	res, err := m.Store(other)
	if err != nil {
		t.Fatal(err)
	}
	if res.Upserted {
		t.Error("topic key matched across projects")
	}
	if len(m.All()) != 2 {
		t.Fatalf("records = %d, want 2", len(m.All()))
	}
}

func TestTwoManagersSameDirectory(t *testing.T) {
	dir := t.TempDir()
	a := newManager(t, dir)
	b := newManager(t, dir)

	for i := 0; i < 10; i++ {
		if _, err := a.Store(storeInput("from a")); err != nil {
			t.Fatal(err)
		}
		if _, err := b.Store(storeInput("from b")); err != nil {
			t.Fatal(err)
		}
	}

	st, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	obs, err := st.LoadObservations()
	if err != nil {
		t.Fatal(err)
	}
	if len(obs) != 20 {
		t.Fatalf("disk holds %d records, want 20", len(obs))
	}
	seen := make(map[int64]bool)
	var maxID int64
	for _, o := range obs {
		if seen[o.ID] {
			t.Fatalf("duplicate id %d", o.ID)
		}
		seen[o.ID] = true
		if o.ID > maxID {
			maxID = o.ID
		}
	}
	nextID, err := st.LoadNextID()
	if err != nil {
		t.Fatal(err)
	}
	if nextID != maxID+1 {
		t.Fatalf("nextId = %d, want %d", nextID, maxID+1)
	}
}

func TestMigrateProjectIDs(t *testing.T) {
	dir := t.TempDir()
	m := newManager(t, dir)

	a := storeInput("one")
	a.ProjectID = "placeholder/app"
	b := storeInput("two")
	b.ProjectID = "local/app"
	c := storeInput("three")
	c.ProjectID = "unrelated/project"
	for _, in := range []models.StoreObservationInput{a, b, c} {
		if _, err := m.Store(in); err != nil {
			t.Fatal(err)
		}
	}

	changed, err := m.MigrateProjectIDs([]string{"acme/app", "placeholder/app", "local/app"}, "acme/app")
	if err != nil {
		t.Fatal(err)
	}
	if changed != 2 {
		t.Fatalf("changed = %d, want 2", changed)
	}
	for _, o := range m.All() {
		if o.ProjectID == "placeholder/app" || o.ProjectID == "local/app" {
			t.Fatalf("stale projectId survived: %+v", o)
		}
	}

	// Persisted, and a rerun is a no-op.
	fresh := newManager(t, dir)
	changed, err = fresh.MigrateProjectIDs([]string{"acme/app", "placeholder/app", "local/app"}, "acme/app")
	if err != nil {
		t.Fatal(err)
	}
	if changed != 0 {
		t.Fatalf("rerun changed %d records", changed)
	}
}

func TestTimeline(t *testing.T) {
	m := newManager(t, t.TempDir())
	for i := 0; i < 7; i++ {
		if _, err := m.Store(storeInput("step")); err != nil {
			t.Fatal(err)
		}
	}

	tl, err := m.Timeline(models.TimelineRequest{AnchorID: 4, DepthBefore: 2, DepthAfter: 2})
	if err != nil {
		t.Fatal(err)
	}
	if tl.Anchor == nil || tl.Anchor.ID != 4 {
		t.Fatalf("anchor = %+v", tl.Anchor)
	}
	if len(tl.Before) != 2 || tl.Before[0].ID != 2 || tl.Before[1].ID != 3 {
		t.Fatalf("before = %+v", tl.Before)
	}
	if len(tl.After) != 2 || tl.After[0].ID != 5 || tl.After[1].ID != 6 {
		t.Fatalf("after = %+v", tl.After)
	}

	// Defaults clamp at the edges.
	tl, err = m.Timeline(models.TimelineRequest{AnchorID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(tl.Before) != 0 || len(tl.After) != 3 {
		t.Fatalf("edge timeline: before=%d after=%d", len(tl.Before), len(tl.After))
	}

	if _, err := m.Timeline(models.TimelineRequest{AnchorID: 99}); !memerr.IsKind(err, memerr.KindNotFound) {
		t.Fatalf("missing anchor error = %v", err)
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	m := newManager(t, dir)
	res, err := m.Store(storeInput("doomed"))
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Delete(res.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(res.ID); !memerr.IsKind(err, memerr.KindNotFound) {
		t.Fatalf("get after delete = %v", err)
	}
	if err := m.Delete(res.ID); !memerr.IsKind(err, memerr.KindNotFound) {
		t.Fatalf("double delete = %v", err)
	}
}

func TestArchiveMovesRecords(t *testing.T) {
	dir := t.TempDir()
	m := newManager(t, dir)
	for i := 0; i < 3; i++ {
		if _, err := m.Store(storeInput("record")); err != nil {
			t.Fatal(err)
		}
	}

	moved, err := m.Archive([]int64{1, 3, 99})
	if err != nil {
		t.Fatal(err)
	}
	if moved != 2 {
		t.Fatalf("moved = %d, want 2", moved)
	}
	if len(m.All()) != 1 || m.All()[0].ID != 2 {
		t.Fatalf("live set = %+v", m.All())
	}

	st, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	archived, err := st.LoadArchive()
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 2 {
		t.Fatalf("archive holds %d, want 2", len(archived))
	}
}

func TestReindexIdempotent(t *testing.T) {
	dir := t.TempDir()
	m := newManager(t, dir)
	for i := 0; i < 4; i++ {
		if _, err := m.Store(storeInput("indexed")); err != nil {
			t.Fatal(err)
		}
	}

	fresh := newManager(t, dir)
	if err := fresh.Reindex(); err != nil {
		t.Fatal(err)
	}
	if err := fresh.Reindex(); err != nil {
		t.Fatal(err)
	}
	if got := fresh.ix.Len(); got != 4 {
		t.Fatalf("index holds %d docs after double reindex, want 4", got)
	}
}

func TestStoreAllocatesPastIDsOnDisk(t *testing.T) {
	// A crash between the observations write and the counter bump leaves
	// the counter behind the ids already published. Allocation must clamp
	// against both.
	dir := t.TempDir()
	st, err := store.New(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := st.SaveObservations([]models.Observation{{
		ID: 7, EntityName: "auth", Type: models.TypeDecision,
		Title: "survived the crash", ProjectID: "acme/app", CreatedAt: models.Now(),
	}}); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveNextID(7); err != nil {
		t.Fatal(err)
	}

	m := newManager(t, dir)
	res, err := m.Store(storeInput("after recovery"))
	if err != nil {
		t.Fatal(err)
	}
	if res.ID != 8 {
		t.Fatalf("allocated id %d, want 8", res.ID)
	}
	next, err := st.LoadNextID()
	if err != nil {
		t.Fatal(err)
	}
	if next != 9 {
		t.Fatalf("counter = %d, want 9", next)
	}
}

func TestFailedStoreLeavesIndexEmpty(t *testing.T) {
	dir := t.TempDir()
	m := newManager(t, dir)

	// Destroy the data directory so persistence cannot proceed; the index
	// must not gain an entry for a record that never reached disk.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Store(storeInput("never persisted")); err == nil {
		t.Fatal("store succeeded without a data directory")
	}
	if got := m.ix.Len(); got != 0 {
		t.Fatalf("index holds %d docs after failed store, want 0", got)
	}
}

func TestStoreScrubsSecrets(t *testing.T) {
	m := newManager(t, t.TempDir())

	input := storeInput("auth setup")
	input.Narrative = "configured the client <private>with my personal account</private> " +
		"after setting OPENAI_API_KEY=sk-abcdefghijklmnopqrstuvwx in the shell"
	res, err := m.Store(input)
	if err != nil {
		t.Fatal(err)
	}

	o, err := m.Get(res.ID)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(o.Narrative, "personal account") {
		t.Errorf("private block survived: %q", o.Narrative)
	}
	if strings.Contains(o.Narrative, "sk-abcdef") {
		t.Errorf("api key survived: %q", o.Narrative)
	}
	if !strings.Contains(o.Narrative, "configured the client") {
		t.Errorf("clean text lost: %q", o.Narrative)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
