// Package retention scores observations by type, age, and access history,
// and moves low-value records into the archive. Records that explain why
// something is the way it is never get archived.
package retention

import (
	"math"
	"sort"
	"time"

	"github.com/AVIDS2/memorix/internal/models"
	"github.com/AVIDS2/memorix/internal/observations"
)

// Decay defaults. The YAML overrides file can replace any of these; zero
// values in the engine fall back here.
const (
	DefaultHalfLifeHours       = 360.0 // 15 days
	DefaultCausalHalfLifeHours = 720.0 // causal records decay at half speed
	DefaultArchiveThreshold    = 1.0
)

// Classification boundaries on the retention score.
const (
	activeFloor = 5.0
	staleFloor  = 1.0
)

// immunityAccessCount marks a record as proven-useful: accessed this many
// times, it never gets archived regardless of score.
const immunityAccessCount = 5

// defaultBaseScores gives the highest base to the record types that are
// expensive to rediscover and the lowest to session chatter.
var defaultBaseScores = map[models.ObservationType]float64{
	models.TypeDecision:        10.0,
	models.TypeGotcha:          10.0,
	models.TypeTradeOff:        8.0,
	models.TypeWhyItExists:     8.0,
	models.TypeProblemSolution: 7.0,
	models.TypeHowItWorks:      6.0,
	models.TypeDiscovery:       5.0,
	models.TypeWhatChanged:     4.0,
	models.TypeSessionRequest:  2.0,
}

// immuneTypes are exempt from archival regardless of score.
var immuneTypes = map[models.ObservationType]bool{
	models.TypeDecision: true,
	models.TypeGotcha:   true,
	models.TypeTradeOff: true,
}

// Engine computes retention scores and runs archive passes through the
// observations manager.
type Engine struct {
	mgr *observations.Manager

	halfLifeHours       float64
	causalHalfLifeHours float64
	baseScores          map[models.ObservationType]float64
}

// Option tunes an Engine at construction.
type Option func(*Engine)

// WithHalfLife overrides the decay halflives; zero keeps the default.
func WithHalfLife(plain, causal float64) Option {
	return func(e *Engine) {
		if plain > 0 {
			e.halfLifeHours = plain
		}
		if causal > 0 {
			e.causalHalfLifeHours = causal
		}
	}
}

// WithBaseScores overrides base scores for the named types only.
func WithBaseScores(scores map[string]float64) Option {
	return func(e *Engine) {
		for k, v := range scores {
			if v > 0 {
				e.baseScores[models.ObservationType(k)] = v
			}
		}
	}
}

func NewEngine(mgr *observations.Manager, opts ...Option) *Engine {
	e := &Engine{
		mgr:                 mgr,
		halfLifeHours:       DefaultHalfLifeHours,
		causalHalfLifeHours: DefaultCausalHalfLifeHours,
		baseScores:          make(map[models.ObservationType]float64, len(defaultBaseScores)),
	}
	for k, v := range defaultBaseScores {
		e.baseScores[k] = v
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Score computes base × exp(−ageHours/halfLife) × (1 + log(1+accessCount)).
func (e *Engine) Score(o models.Observation, now time.Time) float64 {
	base, ok := e.baseScores[o.Type]
	if !ok {
		base = defaultBaseScores[models.TypeDiscovery]
	}

	halfLife := e.halfLifeHours
	if o.HasCausalLanguage {
		halfLife = e.causalHalfLifeHours
	}

	// An unparsable createdAt yields a zero time, which makes the record
	// ancient; it still survives archival if it is immune.
	ageHours := now.Sub(o.CreatedTime()).Hours()
	if ageHours < 0 {
		ageHours = 0
	}

	decay := math.Exp(-ageHours / halfLife)
	reinforcement := 1 + math.Log(1+float64(o.AccessCount))
	return base * decay * reinforcement
}

// Classify buckets a score: active, stale, or archive candidate.
func Classify(score float64) string {
	switch {
	case score > activeFloor:
		return "active"
	case score >= staleFloor:
		return "stale"
	default:
		return "archive"
	}
}

// Immune reports whether a record is exempt from archival: causal language,
// a protected type, or proven usefulness by access count.
func Immune(o models.Observation) bool {
	if o.HasCausalLanguage {
		return true
	}
	if immuneTypes[o.Type] {
		return true
	}
	return o.AccessCount >= immunityAccessCount
}

// Report scores every live observation, optionally filtered to one
// project's alias set, sorted by ascending score so archive candidates
// lead.
func (e *Engine) Report(aliases []string) []models.RetentionEntry {
	var aliasSet map[string]bool
	if len(aliases) > 0 {
		aliasSet = make(map[string]bool, len(aliases))
		for _, a := range aliases {
			aliasSet[a] = true
		}
	}

	now := time.Now().UTC()
	var entries []models.RetentionEntry
	for _, o := range e.mgr.All() {
		if aliasSet != nil && !aliasSet[o.ProjectID] {
			continue
		}
		score := e.Score(o, now)
		entries = append(entries, models.RetentionEntry{
			ID:     o.ID,
			Type:   o.Type,
			Title:  o.Title,
			Score:  score,
			Class:  Classify(score),
			Immune: Immune(o),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score < entries[j].Score
	})
	return entries
}

// Archive moves every non-immune observation scoring below threshold into
// the archive. A non-positive threshold uses the default. Archival is one
// way; nothing moves back.
func (e *Engine) Archive(threshold float64, aliases []string) (models.ArchiveResult, error) {
	if threshold <= 0 {
		threshold = DefaultArchiveThreshold
	}

	var aliasSet map[string]bool
	if len(aliases) > 0 {
		aliasSet = make(map[string]bool, len(aliases))
		for _, a := range aliases {
			aliasSet[a] = true
		}
	}

	now := time.Now().UTC()
	var doomed []int64
	kept := 0
	for _, o := range e.mgr.All() {
		if aliasSet != nil && !aliasSet[o.ProjectID] {
			continue
		}
		if !Immune(o) && e.Score(o, now) < threshold {
			doomed = append(doomed, o.ID)
			continue
		}
		kept++
	}

	if len(doomed) > 0 {
		if _, err := e.mgr.Archive(doomed); err != nil {
			return models.ArchiveResult{}, err
		}
	}
	return models.ArchiveResult{Archived: doomed, Kept: kept}, nil
}

// Highlights returns the top-limit observations by retention score among
// the context-worthy types, for the session start bundle.
func (e *Engine) Highlights(aliases []string, limit int) []models.Observation {
	worthy := map[models.ObservationType]bool{
		models.TypeDecision:        true,
		models.TypeGotcha:          true,
		models.TypeProblemSolution: true,
		models.TypeTradeOff:        true,
	}
	aliasSet := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		aliasSet[a] = true
	}

	now := time.Now().UTC()
	type scored struct {
		o     models.Observation
		score float64
	}
	var pool []scored
	for _, o := range e.mgr.All() {
		if len(aliasSet) > 0 && !aliasSet[o.ProjectID] {
			continue
		}
		if !worthy[o.Type] {
			continue
		}
		pool = append(pool, scored{o: o, score: e.Score(o, now)})
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].score > pool[j].score
	})
	if limit > 0 && len(pool) > limit {
		pool = pool[:limit]
	}
	out := make([]models.Observation, len(pool))
	for i, s := range pool {
		out[i] = s.o
	}
	return out
}
