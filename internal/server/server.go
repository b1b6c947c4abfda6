// Package server is the composition root: it runs the startup sequence,
// wires every component, and registers the MCP tools. No business logic
// lives here.
package server

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/AVIDS2/memorix/internal/config"
	"github.com/AVIDS2/memorix/internal/embedding"
	"github.com/AVIDS2/memorix/internal/graph"
	"github.com/AVIDS2/memorix/internal/index"
	"github.com/AVIDS2/memorix/internal/mcptools"
	"github.com/AVIDS2/memorix/internal/memerr"
	"github.com/AVIDS2/memorix/internal/memory"
	"github.com/AVIDS2/memorix/internal/models"
	"github.com/AVIDS2/memorix/internal/observations"
	"github.com/AVIDS2/memorix/internal/project"
	"github.com/AVIDS2/memorix/internal/retention"
	"github.com/AVIDS2/memorix/internal/sessions"
	"github.com/AVIDS2/memorix/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Engine is the assembled system: the service façade plus the pieces the
// dashboard needs directly.
type Engine struct {
	Service *memory.Service
	Store   *store.Store
	Config  *config.Config
	Logger  *slog.Logger
}

// NewEngine runs the startup sequence against cfg's data directory.
//
// Order matters: the legacy layout migration runs before anything reads
// the files; project identity resolves before any record is written so the
// canonical id is known; the one-shot projectId migration precedes reindex
// so the index never holds stale ids.
func NewEngine(cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := st.MigrateSubdirs(logger); err != nil {
		return nil, fmt.Errorf("legacy layout migration: %w", err)
	}

	// Project identity. A detection landing on a home or system directory
	// means the process was launched somewhere no project lives; serving
	// would pollute shared memory, so refuse outright.
	workDir := cfg.ProjectDir
	if workDir == "" {
		workDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
	}
	info := project.Detect(workDir)
	if info.ID == models.InvalidProjectID {
		return nil, memerr.Newf(memerr.KindInvalidProject,
			"%s is not a project directory; set MEMORIX_PROJECT_DIR", workDir)
	}
	logger.Info("project detected", "id", info.ID, "root", info.RootPath)

	registry, err := project.LoadRegistry(st)
	if err != nil {
		return nil, err
	}
	group, err := registry.Register(info)
	if err != nil {
		return nil, err
	}
	canonical := group.Canonical

	// Identifiers already present in the data join the alias groups too:
	// a project stored as local/app before git init merges by basename.
	existing, err := st.LoadObservations()
	if err != nil {
		return nil, err
	}
	observed := observedProjectIDs(existing)
	if err := registry.MergeByBasename(observed); err != nil {
		return nil, err
	}
	canonical = registry.Canonical(canonical)

	provider := embedding.Select(cfg, logger)
	var active embedding.Provider
	if provider != nil {
		cache, err := embedding.NewCache(provider, st)
		if err != nil {
			return nil, err
		}
		active = cache
	}

	ix := index.New(active, index.Weights{
		Text:      cfg.TextWeight,
		Vector:    cfg.VectorWeight,
		Threshold: cfg.VectorThreshold,
	}, logger)

	obs, err := observations.NewManager(st, ix, active, logger)
	if err != nil {
		return nil, err
	}

	// One-shot projectId migration before the index is built, so search
	// never sees retired aliases.
	aliases := registry.ResolveAliases(canonical)
	if _, err := obs.MigrateProjectIDs(aliases, canonical); err != nil {
		return nil, err
	}
	if err := obs.Reindex(); err != nil {
		return nil, err
	}

	g, err := graph.NewManager(st)
	if err != nil {
		return nil, err
	}
	sess, err := sessions.NewManager(st)
	if err != nil {
		return nil, err
	}
	ret := retention.NewEngine(obs,
		retention.WithHalfLife(cfg.HalfLifeHours, cfg.CausalHalfLifeHours),
		retention.WithBaseScores(cfg.BaseScores),
	)

	svc := memory.NewService(st, registry, canonical, obs, ix, g, ret, sess, active, logger)
	return &Engine{Service: svc, Store: st, Config: cfg, Logger: logger}, nil
}

// NewMCPServer builds the MCP server over an assembled engine with every
// tool registered.
func NewMCPServer(eng *Engine) *server.MCPServer {
	s := server.NewMCPServer(
		"memorix",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	svc := eng.Service

	// Observations.
	storeTool := mcptools.NewStoreTool(svc)
	s.AddTool(storeTool.Definition(), storeTool.Handle)

	searchTool := mcptools.NewSearchTool(svc)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	timelineTool := mcptools.NewTimelineTool(svc)
	s.AddTool(timelineTool.Definition(), timelineTool.Handle)

	getTool := mcptools.NewGetTool(svc)
	s.AddTool(getTool.Definition(), getTool.Handle)

	deleteTool := mcptools.NewDeleteTool(svc)
	s.AddTool(deleteTool.Definition(), deleteTool.Handle)

	// Sessions.
	sessionStart := mcptools.NewSessionStartTool(svc)
	s.AddTool(sessionStart.Definition(), sessionStart.Handle)

	sessionEnd := mcptools.NewSessionEndTool(svc)
	s.AddTool(sessionEnd.Definition(), sessionEnd.Handle)

	sessionContext := mcptools.NewSessionContextTool(svc)
	s.AddTool(sessionContext.Definition(), sessionContext.Handle)

	// Knowledge graph.
	createEntities := mcptools.NewCreateEntitiesTool(svc)
	s.AddTool(createEntities.Definition(), createEntities.Handle)

	createRelations := mcptools.NewCreateRelationsTool(svc)
	s.AddTool(createRelations.Definition(), createRelations.Handle)

	addObservations := mcptools.NewAddObservationsTool(svc)
	s.AddTool(addObservations.Definition(), addObservations.Handle)

	searchNodes := mcptools.NewSearchNodesTool(svc)
	s.AddTool(searchNodes.Definition(), searchNodes.Handle)

	openNodes := mcptools.NewOpenNodesTool(svc)
	s.AddTool(openNodes.Definition(), openNodes.Handle)

	readGraph := mcptools.NewReadGraphTool(svc)
	s.AddTool(readGraph.Definition(), readGraph.Handle)

	// Retention and stats.
	retentionReport := mcptools.NewRetentionReportTool(svc)
	s.AddTool(retentionReport.Definition(), retentionReport.Handle)

	archiveTool := mcptools.NewArchiveTool(svc)
	s.AddTool(archiveTool.Definition(), archiveTool.Handle)

	statsTool := mcptools.NewStatsTool(svc)
	s.AddTool(statsTool.Definition(), statsTool.Handle)

	return s
}

// observedProjectIDs collects the distinct project ids present in the
// stored observations, in first-seen order.
func observedProjectIDs(obs []models.Observation) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range obs {
		if o.ProjectID == "" || seen[o.ProjectID] {
			continue
		}
		seen[o.ProjectID] = true
		out = append(out, o.ProjectID)
	}
	return out
}

// serverInstructions tells the client how to use the memory tools well.
func serverInstructions() string {
	return `You have access to memorix, a persistent memory server for coding sessions.
Memory survives between conversations — use it to build project knowledge over time.

## Session lifecycle
1. Call session_start at the beginning of each coding session. It returns the
   previous session's summary and the highest-value observations for this project.
2. Save observations throughout the session (see below).
3. Call session_end with a summary of what was done, decided, and left open.

## When to save (call memory_store proactively)
- Architectural decisions and trade-offs (type: decision, trade-off)
- Bugs and their fixes: what was wrong, why, how it was fixed (type: problem-solution)
- Surprising behavior and edge cases (type: gotcha)
- How subsystems work once you figured them out (type: how-it-works)
- Why code exists in its current form (type: why-it-exists)
- Discoveries about the codebase (type: discovery)
- Changes you made (type: what-changed)

Include causal language ("because", "so that", "due to") in narratives — records
that explain why are kept longer.

Use topicKey (e.g. "decision/jwt-refresh") for observations that should evolve
in place rather than accumulate duplicates.

## Progressive disclosure (keep responses small)
1. memory_search returns compact hits — id, time, type, title only.
2. memory_timeline shows what happened around a hit chronologically.
3. memory_get fetches full records, only for the ids you actually need.
Set maxTokens on memory_search when context budget is tight.

## Knowledge graph
Use graph_create_entities / graph_create_relations to model components and their
relationships, and graph_search_nodes / graph_open_nodes / graph_read to explore
them. The graph file is shared with other memory tools.

## Hygiene
retention_report shows what has gone stale; retention_archive moves low-value
records to the archive. Decisions, gotchas, trade-offs, and causal records are
immune and never archived.`
}
