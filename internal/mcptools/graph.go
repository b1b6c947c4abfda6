package mcptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/AVIDS2/memorix/internal/memory"
	"github.com/AVIDS2/memorix/internal/models"
)

// CreateEntitiesTool handles graph_create_entities.
type CreateEntitiesTool struct {
	svc *memory.Service
}

func NewCreateEntitiesTool(svc *memory.Service) *CreateEntitiesTool {
	return &CreateEntitiesTool{svc: svc}
}

func (t *CreateEntitiesTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_create_entities",
		mcp.WithDescription(
			"Add entities to the knowledge graph. Existing names are skipped, never overwritten.",
		),
		mcp.WithString("entities",
			mcp.Required(),
			mcp.Description(`JSON array of {"name","entityType","observations"} objects`),
		),
	)
}

func (t *CreateEntitiesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var entities []models.Entity
	if err := json.Unmarshal([]byte(req.GetString("entities", "")), &entities); err != nil {
		return errResult(fmt.Errorf("entities must be a JSON array of entity objects: %w", err))
	}
	created, err := t.svc.CreateEntities(entities)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(map[string]any{"created": created})
}

// CreateRelationsTool handles graph_create_relations.
type CreateRelationsTool struct {
	svc *memory.Service
}

func NewCreateRelationsTool(svc *memory.Service) *CreateRelationsTool {
	return &CreateRelationsTool{svc: svc}
}

func (t *CreateRelationsTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_create_relations",
		mcp.WithDescription(
			"Connect graph entities with directional, typed relations. Both endpoints "+
				"must already exist; duplicate tuples are skipped.",
		),
		mcp.WithString("relations",
			mcp.Required(),
			mcp.Description(`JSON array of {"from","to","relationType"} objects`),
		),
	)
}

func (t *CreateRelationsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var relations []models.Relation
	if err := json.Unmarshal([]byte(req.GetString("relations", "")), &relations); err != nil {
		return errResult(fmt.Errorf("relations must be a JSON array of relation objects: %w", err))
	}
	created, err := t.svc.CreateRelations(relations)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(map[string]any{"created": created})
}

// AddObservationsTool handles graph_add_observations.
type AddObservationsTool struct {
	svc *memory.Service
}

func NewAddObservationsTool(svc *memory.Service) *AddObservationsTool {
	return &AddObservationsTool{svc: svc}
}

func (t *AddObservationsTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_add_observations",
		mcp.WithDescription("Append observation lines to an existing graph entity."),
		mcp.WithString("entityName",
			mcp.Required(),
			mcp.Description("Entity to append to"),
		),
		mcp.WithString("observations",
			mcp.Required(),
			mcp.Description("Lines to append, as a JSON array of strings"),
		),
	)
}

func (t *AddObservationsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lines, err := stringListArg(req, "observations")
	if err != nil {
		return errResult(err)
	}
	added, err := t.svc.AddGraphObservations(req.GetString("entityName", ""), lines)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(map[string]any{"added": added})
}

// SearchNodesTool handles graph_search_nodes.
type SearchNodesTool struct {
	svc *memory.Service
}

func NewSearchNodesTool(svc *memory.Service) *SearchNodesTool {
	return &SearchNodesTool{svc: svc}
}

func (t *SearchNodesTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_search_nodes",
		mcp.WithDescription("Find graph entities whose name or observations match a query."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Case-insensitive substring to match"),
		),
	)
}

func (t *SearchNodesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodes, err := t.svc.SearchNodes(req.GetString("query", ""))
	if err != nil {
		return errResult(err)
	}
	return jsonResult(map[string]any{"entities": nodes})
}

// OpenNodesTool handles graph_open_nodes.
type OpenNodesTool struct {
	svc *memory.Service
}

func NewOpenNodesTool(svc *memory.Service) *OpenNodesTool {
	return &OpenNodesTool{svc: svc}
}

func (t *OpenNodesTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_open_nodes",
		mcp.WithDescription("Fetch full graph entity records by name."),
		mcp.WithString("names",
			mcp.Required(),
			mcp.Description("Entity names as a JSON array of strings"),
		),
	)
}

func (t *OpenNodesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names, err := stringListArg(req, "names")
	if err != nil {
		return errResult(err)
	}
	nodes, err := t.svc.OpenNodes(names)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(map[string]any{"entities": nodes})
}

// ReadGraphTool handles graph_read.
type ReadGraphTool struct {
	svc *memory.Service
}

func NewReadGraphTool(svc *memory.Service) *ReadGraphTool {
	return &ReadGraphTool{svc: svc}
}

func (t *ReadGraphTool) Definition() mcp.Tool {
	return mcp.NewTool("graph_read",
		mcp.WithDescription("Return the entire knowledge graph: every entity and relation."),
	)
}

func (t *ReadGraphTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(t.svc.ReadGraph())
}
