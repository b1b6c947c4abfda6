// Package index is the in-memory search index over observations: lexical
// field-boosted matching with fuzzy tolerance, upgraded to hybrid ranking
// when an embedding provider is active. The index is rebuilt from the
// observations file on startup; durable writes elsewhere keep it current
// under the same project lock.
package index

import (
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/AVIDS2/memorix/internal/embedding"
	"github.com/AVIDS2/memorix/internal/models"
)

// Field boosts for lexical scoring. Only these six fields are searchable.
const (
	boostTitle         = 3.0
	boostEntityName    = 2.0
	boostConcepts      = 1.5
	boostNarrative     = 1.0
	boostFacts         = 1.0
	boostFilesModified = 0.5
)

const (
	defaultLimit  = 20
	fuzzyPartial  = 0.5 // fraction of the field boost awarded to an edit-distance match
	overfetchMult = 3   // candidate multiplier when alias post-filtering is needed
)

// doc is one indexed observation: per-field lowercased text plus the
// metadata needed to build a compact search hit.
type doc struct {
	id        int64
	projectID string
	obsType   models.ObservationType
	title     string
	createdAt string
	tokens    int

	fields map[string]string // field name -> lowercased content
	vector []float32

	accessCount    int
	lastAccessedAt string
}

// Weights tunes hybrid ranking. Zero value is unusable; callers pass the
// configured weights.
type Weights struct {
	Text      float64
	Vector    float64
	Threshold float64
}

// Index holds the searchable view of the live observation set. Safe for
// concurrent use; the access-accounting goroutine mutates it after the
// search response has been shaped.
type Index struct {
	mu       sync.RWMutex
	docs     map[int64]*doc
	order    []int64 // insertion order, for empty-query reads
	provider embedding.Provider
	weights  Weights
	logger   *slog.Logger

	// onAccess, when set, is told about returned hit ids so the owner of
	// the authoritative observation list can mirror the access counts.
	// Called from a background goroutine; errors stay inside.
	onAccess func(ids []int64)
}

func New(provider embedding.Provider, weights Weights, logger *slog.Logger) *Index {
	return &Index{
		docs:     make(map[int64]*doc),
		provider: provider,
		weights:  weights,
		logger:   logger,
	}
}

// SetAccessHook registers the mirror callback for access accounting.
func (ix *Index) SetAccessHook(fn func(ids []int64)) {
	ix.mu.Lock()
	ix.onAccess = fn
	ix.mu.Unlock()
}

// HasVectors reports whether hybrid mode is available.
func (ix *Index) HasVectors() bool { return ix.provider != nil }

// Insert adds or replaces an observation in the index. vec may be nil when
// no provider is active or embedding failed.
func (ix *Index) Insert(o models.Observation, vec []float32) {
	d := &doc{
		id:        o.ID,
		projectID: o.ProjectID,
		obsType:   o.Type,
		title:     o.Title,
		createdAt: o.CreatedAt,
		tokens:    o.Tokens,
		fields: map[string]string{
			"title":         strings.ToLower(o.Title),
			"entityName":    strings.ToLower(o.EntityName),
			"concepts":      strings.ToLower(strings.Join(o.Concepts, " ")),
			"narrative":     strings.ToLower(o.Narrative),
			"facts":         strings.ToLower(strings.Join(o.Facts, " ")),
			"filesModified": strings.ToLower(strings.Join(o.FilesModified, " ")),
		},
		vector:         vec,
		accessCount:    o.AccessCount,
		lastAccessedAt: o.LastAccessedAt,
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, exists := ix.docs[o.ID]; !exists {
		ix.order = append(ix.order, o.ID)
	}
	ix.docs[o.ID] = d
}

// Remove drops an observation from the index. Unknown ids are a no-op.
func (ix *Index) Remove(id int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.docs[id]; !ok {
		return
	}
	delete(ix.docs, id)
	for i, v := range ix.order {
		if v == id {
			ix.order = append(ix.order[:i], ix.order[i+1:]...)
			break
		}
	}
}

// Update replaces the indexed form of an observation.
func (ix *Index) Update(o models.Observation, vec []float32) {
	ix.Remove(o.ID)
	ix.Insert(o, vec)
}

// Len reports the number of indexed observations.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// fieldBoosts orders fields by descending weight so matchedFields come out
// in a stable, meaningful order.
var fieldBoosts = []struct {
	name  string
	boost float64
}{
	{"title", boostTitle},
	{"entityName", boostEntityName},
	{"concepts", boostConcepts},
	{"narrative", boostNarrative},
	{"facts", boostFacts},
	{"filesModified", boostFilesModified},
}

var tokenSplit = regexp.MustCompile(`[^\p{L}\p{N}_./-]+`)

func queryTokens(query string) []string {
	var out []string
	for _, t := range tokenSplit.Split(strings.ToLower(query), -1) {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// maxEdits is the fuzzy tolerance: short queries tolerate one edit,
// longer ones two.
func maxEdits(query string) int {
	if len(query) <= 6 {
		return 1
	}
	return 2
}

type candidate struct {
	d        *doc
	lexical  float64
	sim      float64
	score    float64
	matched  []string
	anyExact bool
}

// Search runs the Layer 1 query. aliases is the already-expanded alias set
// for the request's projectId; empty means no project filter.
func (ix *Index) Search(req models.SearchRequest, aliases []string) models.SearchResponse {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	// A single alias pushes down as an index-side filter. Multiple aliases
	// overfetch and post-filter so no alias's hits get crowded out.
	var pushdown string
	postFilter := false
	fetchLimit := limit
	switch len(aliases) {
	case 0:
	case 1:
		pushdown = aliases[0]
	default:
		postFilter = true
		fetchLimit = limit * overfetchMult
	}

	tokens := queryTokens(req.Query)
	edits := maxEdits(req.Query)

	var queryVec []float32
	if ix.provider != nil && req.Query != "" {
		vec, err := ix.provider.Embed(req.Query)
		if err != nil {
			ix.logger.Warn("query embedding failed, lexical-only", "error", err)
		} else {
			queryVec = vec
		}
	}

	ix.mu.RLock()
	var cands []candidate
	if len(tokens) == 0 {
		// Empty query: filtered scan in insertion order.
		for _, id := range ix.order {
			d := ix.docs[id]
			if !ix.admits(d, pushdown, req.Type) {
				continue
			}
			cands = append(cands, candidate{d: d})
		}
	} else {
		for _, id := range ix.order {
			d := ix.docs[id]
			if !ix.admits(d, pushdown, req.Type) {
				continue
			}
			c := scoreDoc(d, tokens, edits)
			if queryVec != nil && d.vector != nil {
				c.sim = cosineSimilarity(queryVec, d.vector)
			}
			if req.Mode == models.SearchModeVector {
				if c.sim >= ix.weights.Threshold {
					c.lexical = 0
					cands = append(cands, c)
				}
				continue
			}
			if c.lexical > 0 || c.sim >= ix.weights.Threshold {
				cands = append(cands, c)
			}
		}
	}
	ix.mu.RUnlock()

	if len(tokens) > 0 {
		rankCandidates(cands, ix.weights, queryVec != nil)
	}

	// Windows apply after ranking so lexical matches outside the window
	// are discarded, not replaced.
	cands = filterWindow(cands, req.Since, req.Until)

	if len(cands) > fetchLimit {
		cands = cands[:fetchLimit]
	}
	if postFilter {
		cands = filterAliases(cands, aliases)
	}
	if len(cands) > limit {
		cands = cands[:limit]
	}

	hits := budgetHits(cands, req.MaxTokens)
	if len(tokens) == 0 {
		// Nothing to match against; the fuzzy label would be noise.
		for i := range hits {
			hits[i].MatchedFields = nil
		}
	}

	if len(hits) > 0 {
		ids := make([]int64, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		go ix.recordAccess(ids)
	}

	return models.SearchResponse{Hits: hits, Total: len(hits)}
}

func (ix *Index) admits(d *doc, projectID string, t models.ObservationType) bool {
	if projectID != "" && d.projectID != projectID {
		return false
	}
	if t != "" && d.obsType != t {
		return false
	}
	return true
}

// scoreDoc accumulates field-boosted token matches. Containment earns the
// full boost and marks the field; an edit-distance match earns half and
// marks nothing, so a hit carried only by fuzziness reports "fuzzy".
func scoreDoc(d *doc, tokens []string, edits int) candidate {
	c := candidate{d: d}
	matched := make(map[string]bool)

	for _, fb := range fieldBoosts {
		content := d.fields[fb.name]
		if content == "" {
			continue
		}
		fieldTokens := strings.Fields(content)
		for _, qt := range tokens {
			if len(qt) > 1 && strings.Contains(content, qt) {
				c.lexical += fb.boost
				c.anyExact = true
				matched[fb.name] = true
				continue
			}
			for _, ft := range fieldTokens {
				if fuzzyEqual(qt, ft, edits) {
					c.lexical += fb.boost * fuzzyPartial
					break
				}
			}
		}
	}

	for _, fb := range fieldBoosts {
		if matched[fb.name] {
			c.matched = append(c.matched, fb.name)
		}
	}
	return c
}

func fuzzyEqual(a, b string, edits int) bool {
	if a == b {
		return true
	}
	// Cheap length gate before computing the distance.
	if abs(len(a)-len(b)) > edits {
		return false
	}
	return levenshtein.ComputeDistance(a, b) <= edits
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// rankCandidates normalizes lexical scores to [0,1] and blends with vector
// similarity when hybrid mode is on, then sorts descending with id as a
// stable tiebreak.
func rankCandidates(cands []candidate, w Weights, hybrid bool) {
	maxLex := 0.0
	for _, c := range cands {
		if c.lexical > maxLex {
			maxLex = c.lexical
		}
	}
	for i := range cands {
		lexNorm := 0.0
		if maxLex > 0 {
			lexNorm = cands[i].lexical / maxLex
		}
		if hybrid {
			cands[i].score = lexNorm*w.Text + cands[i].sim*w.Vector
		} else {
			cands[i].score = lexNorm
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].score != cands[j].score {
			return cands[i].score > cands[j].score
		}
		return cands[i].d.id < cands[j].d.id
	})
}

func filterWindow(cands []candidate, since, until string) []candidate {
	if since == "" && until == "" {
		return cands
	}
	out := cands[:0]
	for _, c := range cands {
		// RFC3339 UTC strings compare correctly as strings.
		if since != "" && c.d.createdAt < since {
			continue
		}
		if until != "" && c.d.createdAt > until {
			continue
		}
		out = append(out, c)
	}
	return out
}

func filterAliases(cands []candidate, aliases []string) []candidate {
	set := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		set[a] = true
	}
	out := cands[:0]
	for _, c := range cands {
		if set[c.d.projectID] {
			out = append(out, c)
		}
	}
	return out
}

// budgetHits shapes candidates into compact hits, honoring maxTokens: the
// longest prefix whose token sum stays within budget, or exactly one hit
// when even the first exceeds it.
func budgetHits(cands []candidate, maxTokens int) []models.SearchHit {
	hits := make([]models.SearchHit, 0, len(cands))
	sum := 0
	for _, c := range cands {
		if maxTokens > 0 {
			if sum+c.d.tokens > maxTokens {
				if len(hits) == 0 {
					hits = append(hits, toHit(c))
				}
				break
			}
			sum += c.d.tokens
		}
		hits = append(hits, toHit(c))
	}
	return hits
}

func toHit(c candidate) models.SearchHit {
	matched := c.matched
	if len(matched) == 0 {
		matched = []string{"fuzzy"}
	}
	return models.SearchHit{
		ID:            c.d.id,
		Time:          c.d.createdAt,
		Type:          c.d.obsType,
		Icon:          c.d.obsType.Icon(),
		Title:         c.d.title,
		Tokens:        c.d.tokens,
		MatchedFields: matched,
	}
}

// recordAccess bumps access metadata for returned hits. Runs detached from
// the search call; nothing here reaches the caller.
func (ix *Index) recordAccess(ids []int64) {
	now := time.Now().UTC().Format(time.RFC3339)

	ix.mu.Lock()
	for _, id := range ids {
		if d, ok := ix.docs[id]; ok {
			d.accessCount++
			d.lastAccessedAt = now
		}
	}
	hook := ix.onAccess
	ix.mu.Unlock()

	if hook != nil {
		hook(ids)
	}
}

// AccessCount reports the index-side access counter for an id, for
// retention scoring and tests.
func (ix *Index) AccessCount(id int64) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if d, ok := ix.docs[id]; ok {
		return d.accessCount
	}
	return 0
}

// cosineSimilarity is the similarity measure for hybrid ranking. Returns 0
// for mismatched or empty vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}
	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
