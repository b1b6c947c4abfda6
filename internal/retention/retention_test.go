package retention

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/AVIDS2/memorix/internal/index"
	"github.com/AVIDS2/memorix/internal/models"
	"github.com/AVIDS2/memorix/internal/observations"
	"github.com/AVIDS2/memorix/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seed writes records straight through the store so tests can control
// createdAt, then builds the engine on top.
func seed(t *testing.T, records []models.Observation, opts ...Option) (*Engine, *observations.Manager, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) > 0 {
		if err := st.SaveObservations(records); err != nil {
			t.Fatal(err)
		}
		if err := st.SaveNextID(int64(len(records)) + 1); err != nil {
			t.Fatal(err)
		}
	}
	ix := index.New(nil, index.Weights{Text: 0.6, Vector: 0.4, Threshold: 0.5}, discard())
	mgr, err := observations.NewManager(st, ix, nil, discard())
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(mgr, opts...), mgr, st
}

func aged(id int64, typ models.ObservationType, ageHours float64) models.Observation {
	created := time.Now().UTC().Add(-time.Duration(ageHours * float64(time.Hour)))
	return models.Observation{
		ID:        id,
		Type:      typ,
		Title:     "record",
		ProjectID: "acme/app",
		CreatedAt: created.Format(time.RFC3339),
	}
}

func TestScoreDecaysWithAge(t *testing.T) {
	e, _, _ := seed(t, nil)
	now := time.Now().UTC()

	young := e.Score(aged(1, models.TypeDecision, 1), now)
	old := e.Score(aged(2, models.TypeDecision, 5000), now)
	if young <= old {
		t.Fatalf("young=%f old=%f", young, old)
	}
	if Classify(young) != "active" {
		t.Fatalf("fresh decision classified %q", Classify(young))
	}
	if Classify(old) != "archive" {
		t.Fatalf("ancient decision classified %q", Classify(old))
	}
}

func TestScoreRewardsAccess(t *testing.T) {
	e, _, _ := seed(t, nil)
	now := time.Now().UTC()

	plain := aged(1, models.TypeDiscovery, 1000)
	touched := plain
	touched.AccessCount = 10
	if e.Score(touched, now) <= e.Score(plain, now) {
		t.Fatal("access count did not raise the score")
	}
}

func TestCausalRecordsDecaySlower(t *testing.T) {
	e, _, _ := seed(t, nil)
	now := time.Now().UTC()

	plain := aged(1, models.TypeDiscovery, 1000)
	causal := plain
	causal.HasCausalLanguage = true
	if e.Score(causal, now) <= e.Score(plain, now) {
		t.Fatal("causal record should outscore its plain twin at equal age")
	}
}

func TestBaseScoreOrdering(t *testing.T) {
	e, _, _ := seed(t, nil)
	now := time.Now().UTC()

	decision := e.Score(aged(1, models.TypeDecision, 1), now)
	session := e.Score(aged(2, models.TypeSessionRequest, 1), now)
	if decision <= session {
		t.Fatalf("decision=%f sessionRequest=%f", decision, session)
	}
}

func TestImmunity(t *testing.T) {
	cases := []struct {
		name string
		o    models.Observation
		want bool
	}{
		{"decision type", models.Observation{Type: models.TypeDecision}, true},
		{"gotcha type", models.Observation{Type: models.TypeGotcha}, true},
		{"trade-off type", models.Observation{Type: models.TypeTradeOff}, true},
		{"causal language", models.Observation{Type: models.TypeDiscovery, HasCausalLanguage: true}, true},
		{"heavy access", models.Observation{Type: models.TypeDiscovery, AccessCount: 5}, true},
		{"plain discovery", models.Observation{Type: models.TypeDiscovery}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Immune(tc.o); got != tc.want {
				t.Fatalf("Immune = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestArchiveSparesImmuneRecords(t *testing.T) {
	// An ancient decision scores near zero but must survive the pass.
	old := aged(1, models.TypeDecision, 10000)
	e, mgr, _ := seed(t, []models.Observation{old})

	now := time.Now().UTC()
	if score := e.Score(old, now); score >= DefaultArchiveThreshold {
		t.Fatalf("test premise broken: score %f not below threshold", score)
	}

	res, err := e.Archive(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Archived) != 0 || res.Kept != 1 {
		t.Fatalf("archive result = %+v", res)
	}
	if len(mgr.All()) != 1 {
		t.Fatal("immune record left the live set")
	}
}

func TestArchiveMovesStaleRecords(t *testing.T) {
	e, mgr, st := seed(t, []models.Observation{
		aged(1, models.TypeDiscovery, 10000),
		aged(2, models.TypeDiscovery, 1),
	})

	res, err := e.Archive(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Archived) != 1 || res.Archived[0] != 1 {
		t.Fatalf("archived = %v", res.Archived)
	}
	if res.Kept != 1 {
		t.Fatalf("kept = %d", res.Kept)
	}
	archived, err := st.LoadArchive()
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 1 || archived[0].ID != 1 {
		t.Fatalf("archive file = %+v", archived)
	}

	// One way: a second pass finds nothing new and nothing comes back.
	res, err = e.Archive(0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Archived) != 0 {
		t.Fatalf("second pass archived %v", res.Archived)
	}
	if len(mgr.All()) != 1 {
		t.Fatalf("live set = %d", len(mgr.All()))
	}
}

func TestArchiveScopedToAliases(t *testing.T) {
	other := aged(2, models.TypeDiscovery, 10000)
	other.ProjectID = "other/project"
	e, mgr, _ := seed(t, []models.Observation{
		aged(1, models.TypeDiscovery, 10000),
		other,
	})

	res, err := e.Archive(0, []string{"acme/app"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Archived) != 1 || res.Archived[0] != 1 {
		t.Fatalf("archived = %v", res.Archived)
	}
	if len(mgr.All()) != 1 || mgr.All()[0].ID != 2 {
		t.Fatalf("live set = %+v", mgr.All())
	}
}

func TestReportSortsByScore(t *testing.T) {
	e, _, _ := seed(t, []models.Observation{
		aged(1, models.TypeDiscovery, 5000),
		aged(2, models.TypeDecision, 1),
	})

	entries := e.Report(nil)
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].ID != 1 || entries[0].Class != "archive" || entries[0].Immune {
		t.Fatalf("first entry = %+v", entries[0])
	}
	if entries[1].ID != 2 || !entries[1].Immune {
		t.Fatalf("second entry = %+v", entries[1])
	}
}

func TestHighlightsPrefersContextWorthyTypes(t *testing.T) {
	chatter := aged(3, models.TypeSessionRequest, 1)
	e, _, _ := seed(t, []models.Observation{
		aged(1, models.TypeDecision, 1),
		aged(2, models.TypeGotcha, 1),
		chatter,
	})

	highlights := e.Highlights([]string{"acme/app"}, 5)
	if len(highlights) != 2 {
		t.Fatalf("highlights = %d", len(highlights))
	}
	for _, h := range highlights {
		if h.Type == models.TypeSessionRequest {
			t.Fatal("session chatter surfaced as a highlight")
		}
	}
}

func TestHalfLifeOverride(t *testing.T) {
	slow, _, _ := seed(t, nil, WithHalfLife(3600, 7200))
	fast, _, _ := seed(t, nil)
	now := time.Now().UTC()

	o := aged(1, models.TypeDiscovery, 1000)
	if slow.Score(o, now) <= fast.Score(o, now) {
		t.Fatal("longer halflife should yield a higher score at equal age")
	}
}

func TestBaseScoreOverride(t *testing.T) {
	e, _, _ := seed(t, nil, WithBaseScores(map[string]float64{"discovery": 20}))
	base, _, _ := seed(t, nil)
	now := time.Now().UTC()

	o := aged(1, models.TypeDiscovery, 1)
	if e.Score(o, now) <= base.Score(o, now) {
		t.Fatal("base score override had no effect")
	}
}
