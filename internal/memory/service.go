// Package memory is the façade every outer surface talks to: it validates
// tool arguments, expands the project alias set once per call, delegates to
// the owning component, and shapes responses for progressive disclosure.
// It never touches durable files directly.
package memory

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/AVIDS2/memorix/internal/embedding"
	"github.com/AVIDS2/memorix/internal/graph"
	"github.com/AVIDS2/memorix/internal/index"
	"github.com/AVIDS2/memorix/internal/memerr"
	"github.com/AVIDS2/memorix/internal/models"
	"github.com/AVIDS2/memorix/internal/observations"
	"github.com/AVIDS2/memorix/internal/privacy"
	"github.com/AVIDS2/memorix/internal/project"
	"github.com/AVIDS2/memorix/internal/retention"
	"github.com/AVIDS2/memorix/internal/sessions"
	"github.com/AVIDS2/memorix/internal/store"
)

const defaultHighlightCount = 5

// Service wires every component behind one call surface.
type Service struct {
	st        *store.Store
	registry  *project.Registry
	projectID string // canonical id for this process's working directory
	obs       *observations.Manager
	ix        *index.Index
	graph     *graph.Manager
	retention *retention.Engine
	sessions  *sessions.Manager
	provider  embedding.Provider // nil when vector search is off
	logger    *slog.Logger
}

func NewService(
	st *store.Store,
	registry *project.Registry,
	projectID string,
	obs *observations.Manager,
	ix *index.Index,
	g *graph.Manager,
	ret *retention.Engine,
	sess *sessions.Manager,
	provider embedding.Provider,
	logger *slog.Logger,
) *Service {
	return &Service{
		st:        st,
		registry:  registry,
		projectID: projectID,
		obs:       obs,
		ix:        ix,
		graph:     g,
		retention: ret,
		sessions:  sess,
		provider:  provider,
		logger:    logger,
	}
}

// ProjectID is the canonical project id this process serves.
func (s *Service) ProjectID() string { return s.projectID }

// resolve expands a project id to its alias set, defaulting to this
// process's project. Called once per tool call.
func (s *Service) resolve(projectID string) (canonical string, aliases []string) {
	if projectID == "" {
		projectID = s.projectID
	}
	canonical = s.registry.Canonical(projectID)
	return canonical, s.registry.ResolveAliases(projectID)
}

// Store validates and persists an observation, upserting on topicKey.
func (s *Service) Store(input models.StoreObservationInput) (models.StoreObservationResult, error) {
	// A title that is nothing but private blocks would sanitize to empty,
	// leaving an unfindable record.
	if input.Title == "" || privacy.OnlyPrivate(input.Title) {
		return models.StoreObservationResult{}, fmt.Errorf("title is required")
	}
	if input.EntityName == "" {
		return models.StoreObservationResult{}, fmt.Errorf("entityName is required")
	}
	if !input.Type.IsValid() {
		return models.StoreObservationResult{}, fmt.Errorf("unknown observation type %q", input.Type)
	}
	canonical, _ := s.resolve(input.ProjectID)
	input.ProjectID = canonical

	res, err := s.obs.Store(input)
	if err != nil {
		return models.StoreObservationResult{}, err
	}
	s.logger.Info("observation stored",
		"id", res.ID, "type", input.Type, "upserted", res.Upserted, "project", canonical)
	return res, nil
}

// Search is Layer 1: compact hits under an optional token budget.
func (s *Service) Search(req models.SearchRequest) (models.SearchResponse, error) {
	if req.Mode != models.SearchModeAuto && req.Mode != models.SearchModeVector {
		return models.SearchResponse{}, fmt.Errorf("unknown search mode %q", req.Mode)
	}
	if req.Mode == models.SearchModeVector && s.provider == nil {
		return models.SearchResponse{}, memerr.New(memerr.KindEmbeddingUnavailable,
			"vector search requested but no embedding provider is active")
	}
	if req.Limit < 0 || req.MaxTokens < 0 {
		return models.SearchResponse{}, fmt.Errorf("limit and maxTokens must not be negative")
	}
	if req.Type != "" && !req.Type.IsValid() {
		return models.SearchResponse{}, fmt.Errorf("unknown observation type %q", req.Type)
	}

	_, aliases := s.resolve(req.ProjectID)
	return s.ix.Search(req, aliases), nil
}

// Timeline is Layer 2: chronological context around an anchor.
func (s *Service) Timeline(req models.TimelineRequest) (models.TimelineResponse, error) {
	if req.AnchorID < 1 {
		return models.TimelineResponse{}, fmt.Errorf("anchorId is required")
	}
	return s.obs.Timeline(req)
}

// Get is Layer 3: full records by id. Unknown ids are skipped; asking for
// exactly one unknown id is NotFound.
func (s *Service) Get(ids []int64) ([]models.Observation, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one id is required")
	}
	records := s.obs.GetMany(ids)
	if len(records) == 0 && len(ids) == 1 {
		return nil, memerr.Newf(memerr.KindNotFound, "observation %d not found", ids[0])
	}
	return records, nil
}

// Observations lists this project's live records newest first, for the
// dashboard.
func (s *Service) Observations(projectID string) []models.Observation {
	_, aliases := s.resolve(projectID)
	aliasSet := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		aliasSet[a] = true
	}
	var out []models.Observation
	for _, o := range s.obs.All() {
		if aliasSet[o.ProjectID] {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Delete removes an observation outright, bypassing the archive.
func (s *Service) Delete(id int64) error {
	if id < 1 {
		return fmt.Errorf("id is required")
	}
	if err := s.obs.Delete(id); err != nil {
		return err
	}
	s.logger.Info("observation deleted", "id", id)
	return nil
}

// SessionStart opens a session and returns the rehydration bundle.
func (s *Service) SessionStart(agent string) (models.SessionContext, error) {
	if agent == "" {
		agent = "unknown"
	}
	canonical, aliases := s.resolve("")
	sess, err := s.sessions.Start(agent, canonical)
	if err != nil {
		return models.SessionContext{}, err
	}
	return models.SessionContext{
		Session:         sess,
		PreviousSummary: s.sessions.LastSummary(aliases),
		Highlights:      s.retention.Highlights(aliases, defaultHighlightCount),
	}, nil
}

// SessionEnd completes a session with its summary.
func (s *Service) SessionEnd(id, summary string) (models.Session, error) {
	if id == "" {
		return models.Session{}, fmt.Errorf("session id is required")
	}
	return s.sessions.End(id, summary)
}

// SessionContext is the read-only session view.
func (s *Service) SessionContext(id string) (models.Session, error) {
	if id == "" {
		return models.Session{}, fmt.Errorf("session id is required")
	}
	return s.sessions.Get(id)
}

// Sessions lists every session, for the dashboard.
func (s *Service) Sessions() []models.Session {
	return s.sessions.All()
}

// --- Knowledge graph passthroughs ---

func (s *Service) CreateEntities(entities []models.Entity) ([]models.Entity, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("at least one entity is required")
	}
	return s.graph.CreateEntities(entities)
}

func (s *Service) CreateRelations(relations []models.Relation) ([]models.Relation, error) {
	if len(relations) == 0 {
		return nil, fmt.Errorf("at least one relation is required")
	}
	return s.graph.CreateRelations(relations)
}

func (s *Service) AddGraphObservations(entityName string, lines []string) ([]string, error) {
	if entityName == "" {
		return nil, fmt.Errorf("entityName is required")
	}
	return s.graph.AddObservations(entityName, lines)
}

func (s *Service) SearchNodes(query string) ([]models.Entity, error) {
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	return s.graph.SearchNodes(query), nil
}

func (s *Service) OpenNodes(names []string) ([]models.Entity, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("at least one name is required")
	}
	return s.graph.OpenNodes(names), nil
}

func (s *Service) ReadGraph() models.Graph {
	return s.graph.ReadGraph()
}

// --- Retention ---

// RetentionReport scores this project's live observations.
func (s *Service) RetentionReport(projectID string) []models.RetentionEntry {
	_, aliases := s.resolve(projectID)
	return s.retention.Report(aliases)
}

// Archive runs a retention pass. threshold <= 0 uses the default.
func (s *Service) Archive(threshold float64, projectID string) (models.ArchiveResult, error) {
	_, aliases := s.resolve(projectID)
	res, err := s.retention.Archive(threshold, aliases)
	if err != nil {
		return models.ArchiveResult{}, err
	}
	if len(res.Archived) > 0 {
		s.logger.Info("retention archive pass", "archived", len(res.Archived), "kept", res.Kept)
	}
	return res, nil
}

// Stats summarizes the project's memory.
func (s *Service) Stats(projectID string) (models.Stats, error) {
	canonical, aliases := s.resolve(projectID)
	aliasSet := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		aliasSet[a] = true
	}

	stats := models.Stats{
		ProjectID: canonical,
		Aliases:   aliases,
		ByType:    make(map[string]int),
	}
	for _, o := range s.obs.All() {
		if !aliasSet[o.ProjectID] {
			continue
		}
		stats.Observations++
		stats.TotalTokens += o.Tokens
		stats.ByType[string(o.Type)]++
	}

	archived, err := s.st.LoadArchive()
	if err != nil {
		return models.Stats{}, err
	}
	for _, o := range archived {
		if aliasSet[o.ProjectID] {
			stats.Archived++
		}
	}

	g := s.graph.ReadGraph()
	stats.Entities = len(g.Entities)
	stats.Relations = len(g.Relations)

	for _, sess := range s.sessions.All() {
		if aliasSet[sess.ProjectID] {
			stats.Sessions++
		}
	}

	if s.provider != nil {
		stats.EmbeddingName = s.provider.Name()
	}
	return stats, nil
}
