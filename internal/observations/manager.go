// Package observations owns the authoritative in-memory observation list
// and its durable form. Every write reconciles against the file on disk
// under the directory lock, so concurrent processes on the same data
// directory never clobber each other's records.
package observations

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/AVIDS2/memorix/internal/embedding"
	"github.com/AVIDS2/memorix/internal/extract"
	"github.com/AVIDS2/memorix/internal/index"
	"github.com/AVIDS2/memorix/internal/memerr"
	"github.com/AVIDS2/memorix/internal/models"
	"github.com/AVIDS2/memorix/internal/privacy"
	"github.com/AVIDS2/memorix/internal/store"
	"github.com/AVIDS2/memorix/internal/tokens"
)

const (
	defaultTimelineDepth = 3
)

// Manager coordinates the observation lifecycle: enrichment, id allocation,
// indexing, and lock-fenced persistence.
type Manager struct {
	st       *store.Store
	ix       *index.Index
	provider embedding.Provider // nil when vector search is off
	logger   *slog.Logger

	mu      sync.RWMutex
	records []models.Observation
	nextID  int64
}

// NewManager loads the live observation set and counter from st.
func NewManager(st *store.Store, ix *index.Index, provider embedding.Provider, logger *slog.Logger) (*Manager, error) {
	records, err := st.LoadObservations()
	if err != nil {
		return nil, err
	}
	nextID, err := st.LoadNextID()
	if err != nil {
		return nil, err
	}
	m := &Manager{
		st:       st,
		ix:       ix,
		provider: provider,
		logger:   logger,
		records:  records,
		nextID:   nextID,
	}
	ix.SetAccessHook(m.recordAccess)
	return m, nil
}

// Store persists a new observation, or upserts when the input's topicKey
// already names a record in the same project.
func (m *Manager) Store(input models.StoreObservationInput) (models.StoreObservationResult, error) {
	sanitize(&input)
	if input.TopicKey != "" {
		if existing, ok := m.findByTopicKey(input.ProjectID, input.TopicKey); ok {
			return m.upsert(existing, input)
		}
	}

	now := models.Now()
	o := models.Observation{
		EntityName:    input.EntityName,
		Type:          input.Type,
		Title:         input.Title,
		Narrative:     input.Narrative,
		Facts:         input.Facts,
		FilesModified: input.FilesModified,
		Concepts:      input.Concepts,
		CreatedAt:     now,
		UpdatedAt:     now,
		ProjectID:     input.ProjectID,
		TopicKey:      input.TopicKey,
		RevisionCount: 1,
		SessionID:     input.SessionID,
	}
	m.enrich(&o)

	vec := m.embed(o)

	// Id allocation happens inside the lock against the on-disk counter,
	// so two processes can never hand out the same id.
	if err := m.persistNew(&o, vec); err != nil {
		return models.StoreObservationResult{}, err
	}

	return models.StoreObservationResult{
		ID:            o.ID,
		Upserted:      false,
		RevisionCount: o.RevisionCount,
		Tokens:        o.Tokens,
	}, nil
}

// upsert replaces an existing record's content in place: the id and
// createdAt survive, revisionCount goes up, and the index entry is swapped.
func (m *Manager) upsert(existing models.Observation, input models.StoreObservationInput) (models.StoreObservationResult, error) {
	o := existing
	o.EntityName = input.EntityName
	o.Type = input.Type
	o.Title = input.Title
	o.Narrative = input.Narrative
	o.Facts = input.Facts
	o.FilesModified = input.FilesModified
	o.Concepts = input.Concepts
	o.SessionID = input.SessionID
	o.RevisionCount = existing.RevisionCount + 1
	o.UpdatedAt = models.Now()
	m.enrich(&o)

	vec := m.embed(o)

	if err := m.persistReplace(o, existing, vec); err != nil {
		return models.StoreObservationResult{}, err
	}

	return models.StoreObservationResult{
		ID:            o.ID,
		Upserted:      true,
		RevisionCount: o.RevisionCount,
		Tokens:        o.Tokens,
	}, nil
}

// sanitize runs the privacy filter over every free-text field before
// anything is enriched, embedded, or written.
func sanitize(input *models.StoreObservationInput) {
	input.Title = privacy.Clean(input.Title)
	input.Narrative = privacy.Clean(input.Narrative)
	for i, f := range input.Facts {
		input.Facts[i] = privacy.Clean(f)
	}
}

// enrich runs the extractor over the record's text and recomputes the
// token count over the enriched whole.
func (m *Manager) enrich(o *models.Observation) {
	text := o.SearchableText()
	ex := extract.Analyze(text)
	o.Concepts = extract.EnrichConcepts(o.Concepts, ex.Identifiers)
	o.FilesModified = extract.EnrichFiles(o.FilesModified, ex.Files)
	o.HasCausalLanguage = ex.HasCausalLanguage

	full := strings.Join([]string{
		text,
		strings.Join(o.Concepts, " "),
		strings.Join(o.FilesModified, " "),
	}, " ")
	o.Tokens = tokens.Count(full)
}

// embed returns the record's vector or nil when no provider is active or
// the provider fails; embedding failure never blocks a write.
func (m *Manager) embed(o models.Observation) []float32 {
	if m.provider == nil {
		return nil
	}
	vec, err := m.provider.Embed(o.SearchableText())
	if err != nil {
		m.logger.Warn("embedding failed, storing without vector", "id", o.ID, "error", err)
		return nil
	}
	return vec
}

// persistNew indexes and writes a new observation under the lock. The
// on-disk state is reloaded first; the record's id is finalized against the
// merged counter AND the max id already present in the records, so a crash
// that published observations.json without its counter bump can never cause
// an id to be reissued. A failed write rolls the index entry back so search
// never returns an unpersisted record.
func (m *Manager) persistNew(o *models.Observation, vec []float32) error {
	return m.st.WithLock(func() error {
		diskObs, err := m.st.LoadObservations()
		if err != nil {
			return err
		}
		diskNext, err := m.st.LoadNextID()
		if err != nil {
			return err
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		next := m.nextID
		if diskNext > next {
			next = diskNext
		}
		for _, d := range diskObs {
			if d.ID >= next {
				next = d.ID + 1
			}
		}
		o.ID = next

		merged := m.reconcile(diskObs)
		merged = append(merged, *o)

		m.ix.Insert(*o, vec)
		if err := m.st.SaveObservations(merged); err != nil {
			m.ix.Remove(o.ID)
			return err
		}
		if err := m.st.SaveNextID(next + 1); err != nil {
			m.ix.Remove(o.ID)
			return err
		}
		m.records = merged
		m.nextID = next + 1
		return nil
	})
}

// persistReplace indexes and writes an updated record under the lock,
// replacing the on-disk version with the same id. A failed write restores
// the previous revision's index entry.
func (m *Manager) persistReplace(o, prev models.Observation, vec []float32) error {
	return m.st.WithLock(func() error {
		diskObs, err := m.st.LoadObservations()
		if err != nil {
			return err
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		merged := m.reconcile(diskObs)
		replaced := false
		for i := range merged {
			if merged[i].ID == o.ID {
				merged[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, o)
		}

		m.ix.Update(o, vec)
		if err := m.st.SaveObservations(merged); err != nil {
			m.ix.Update(prev, nil)
			return err
		}
		m.records = merged
		return nil
	})
}

// reconcile takes the on-disk record set as the base and carries over the
// in-process access accounting, which is written lazily on the next write
// rather than on every search. Caller holds m.mu.
func (m *Manager) reconcile(diskObs []models.Observation) []models.Observation {
	local := make(map[int64]models.Observation, len(m.records))
	for _, r := range m.records {
		local[r.ID] = r
	}
	merged := make([]models.Observation, len(diskObs))
	for i, d := range diskObs {
		if l, ok := local[d.ID]; ok && l.AccessCount > d.AccessCount {
			d.AccessCount = l.AccessCount
			d.LastAccessedAt = l.LastAccessedAt
		}
		merged[i] = d
	}
	return merged
}

// Reindex rebuilds the search index from the live set with one batched
// embedding call. Batch failure degrades to a lexical-only index.
func (m *Manager) Reindex() error {
	m.mu.RLock()
	records := make([]models.Observation, len(m.records))
	copy(records, m.records)
	m.mu.RUnlock()

	var vecs [][]float32
	if m.provider != nil && len(records) > 0 {
		texts := make([]string, len(records))
		for i, o := range records {
			texts[i] = o.SearchableText()
		}
		batch, err := m.provider.EmbedBatch(texts)
		if err != nil {
			m.logger.Warn("batch embedding failed, reindexing without vectors", "error", err)
		} else {
			vecs = batch
		}
	}

	for i, o := range records {
		var vec []float32
		if vecs != nil {
			vec = vecs[i]
		}
		m.ix.Insert(o, vec)
	}
	m.logger.Info("reindex complete", "observations", len(records), "vectors", vecs != nil)
	return nil
}

// MigrateProjectIDs rewrites records whose projectId is a non-canonical
// alias, persisting once. Returns how many records changed.
func (m *Manager) MigrateProjectIDs(aliases []string, canonical string) (int, error) {
	aliasSet := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		if a != canonical {
			aliasSet[a] = true
		}
	}
	if len(aliasSet) == 0 {
		return 0, nil
	}

	changed := 0
	err := m.st.WithLock(func() error {
		diskObs, err := m.st.LoadObservations()
		if err != nil {
			return err
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		merged := m.reconcile(diskObs)
		for i := range merged {
			if aliasSet[merged[i].ProjectID] {
				merged[i].ProjectID = canonical
				changed++
			}
		}
		if changed == 0 {
			m.records = merged
			return nil
		}
		if err := m.st.SaveObservations(merged); err != nil {
			return err
		}
		m.records = merged
		return nil
	})
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		m.logger.Info("migrated observation project ids", "changed", changed, "canonical", canonical)
	}
	return changed, nil
}

// Get returns one observation by id.
func (m *Manager) Get(id int64) (models.Observation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.records {
		if o.ID == id {
			return o, nil
		}
	}
	return models.Observation{}, memerr.Newf(memerr.KindNotFound, "observation %d not found", id)
}

// GetMany returns full records for ids, skipping unknown ids.
func (m *Manager) GetMany(ids []int64) []models.Observation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byID := make(map[int64]models.Observation, len(m.records))
	for _, o := range m.records {
		byID[o.ID] = o
	}
	out := make([]models.Observation, 0, len(ids))
	for _, id := range ids {
		if o, ok := byID[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

// All returns a copy of the live set, for retention scoring and stats.
func (m *Manager) All() []models.Observation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Observation, len(m.records))
	copy(out, m.records)
	return out
}

// Timeline returns the anchor plus its chronological neighbors. It reads
// the authoritative list rather than the index.
func (m *Manager) Timeline(req models.TimelineRequest) (models.TimelineResponse, error) {
	before := req.DepthBefore
	if before <= 0 {
		before = defaultTimelineDepth
	}
	after := req.DepthAfter
	if after <= 0 {
		after = defaultTimelineDepth
	}

	m.mu.RLock()
	ordered := make([]models.Observation, len(m.records))
	copy(ordered, m.records)
	m.mu.RUnlock()

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt != ordered[j].CreatedAt {
			return ordered[i].CreatedAt < ordered[j].CreatedAt
		}
		return ordered[i].ID < ordered[j].ID
	})

	anchorIdx := -1
	for i, o := range ordered {
		if o.ID == req.AnchorID {
			anchorIdx = i
			break
		}
	}
	if anchorIdx < 0 {
		return models.TimelineResponse{}, memerr.Newf(memerr.KindNotFound, "observation %d not found", req.AnchorID)
	}

	lo := anchorIdx - before
	if lo < 0 {
		lo = 0
	}
	hi := anchorIdx + after + 1
	if hi > len(ordered) {
		hi = len(ordered)
	}

	anchor := ordered[anchorIdx]
	return models.TimelineResponse{
		Anchor: &anchor,
		Before: append([]models.Observation{}, ordered[lo:anchorIdx]...),
		After:  append([]models.Observation{}, ordered[anchorIdx+1:hi]...),
	}, nil
}

// Delete removes an observation from the live set and the index. It does
// not archive; retention owns that path.
func (m *Manager) Delete(id int64) error {
	found := false
	err := m.st.WithLock(func() error {
		diskObs, err := m.st.LoadObservations()
		if err != nil {
			return err
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		merged := m.reconcile(diskObs)
		kept := merged[:0]
		for _, o := range merged {
			if o.ID == id {
				found = true
				continue
			}
			kept = append(kept, o)
		}
		if !found {
			m.records = merged
			return nil
		}
		if err := m.st.SaveObservations(kept); err != nil {
			return err
		}
		m.records = kept
		return nil
	})
	if err != nil {
		return err
	}
	if !found {
		return memerr.Newf(memerr.KindNotFound, "observation %d not found", id)
	}
	m.ix.Remove(id)
	return nil
}

// Archive moves the given ids from the live set to the archive file and
// drops them from the index. Unknown ids are skipped.
func (m *Manager) Archive(ids []int64) (int, error) {
	idSet := make(map[int64]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	var moved []models.Observation
	err := m.st.WithLock(func() error {
		diskObs, err := m.st.LoadObservations()
		if err != nil {
			return err
		}

		m.mu.Lock()
		defer m.mu.Unlock()

		merged := m.reconcile(diskObs)
		kept := merged[:0:0]
		for _, o := range merged {
			if idSet[o.ID] {
				moved = append(moved, o)
				continue
			}
			kept = append(kept, o)
		}
		if len(moved) == 0 {
			m.records = merged
			return nil
		}
		if err := m.st.AppendArchive(moved); err != nil {
			return err
		}
		if err := m.st.SaveObservations(kept); err != nil {
			return err
		}
		m.records = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, o := range moved {
		m.ix.Remove(o.ID)
	}
	return len(moved), nil
}

// findByTopicKey locates the upsert target for (projectId, topicKey).
func (m *Manager) findByTopicKey(projectID, topicKey string) (models.Observation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.records {
		if o.ProjectID == projectID && o.TopicKey == topicKey {
			return o, true
		}
	}
	return models.Observation{}, false
}

// recordAccess mirrors the index's access accounting into the in-memory
// records. Durability is lazy: the counts ride along with the next write.
func (m *Manager) recordAccess(ids []int64) {
	now := models.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	idSet := make(map[int64]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}
	for i := range m.records {
		if idSet[m.records[i].ID] {
			m.records[i].AccessCount++
			m.records[i].LastAccessedAt = now
		}
	}
}
