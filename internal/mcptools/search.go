package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/AVIDS2/memorix/internal/memory"
	"github.com/AVIDS2/memorix/internal/models"
)

// SearchTool handles memory_search, the compact Layer 1 read path.
type SearchTool struct {
	svc *memory.Service
}

func NewSearchTool(svc *memory.Service) *SearchTool {
	return &SearchTool{svc: svc}
}

func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_search",
		mcp.WithDescription(
			"Search persistent memory. Returns compact hits (id, time, type, title); "+
				"follow up with memory_timeline for chronological context or memory_get "+
				"for full records. Set maxTokens to cap the response size.",
		),
		mcp.WithString("query",
			mcp.Description("Keywords or natural language; empty lists recent observations"),
		),
		mcp.WithString("projectId",
			mcp.Description("Project filter; defaults to the detected project"),
		),
		mcp.WithString("type",
			mcp.Description("Filter by observation type"),
		),
		mcp.WithString("since",
			mcp.Description("Only observations created at or after this ISO-8601 time"),
		),
		mcp.WithString("until",
			mcp.Description("Only observations created at or before this ISO-8601 time"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max hits (default 20)"),
		),
		mcp.WithNumber("maxTokens",
			mcp.Description("Token budget over the returned hits"),
		),
		mcp.WithString("mode",
			mcp.Description(`"vector" forces vector-only ranking; default blends automatically`),
		),
	)
}

func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := t.svc.Search(models.SearchRequest{
		Query:     req.GetString("query", ""),
		ProjectID: req.GetString("projectId", ""),
		Type:      models.ObservationType(req.GetString("type", "")),
		Since:     req.GetString("since", ""),
		Until:     req.GetString("until", ""),
		Limit:     intArg(req, "limit", 0),
		MaxTokens: intArg(req, "maxTokens", 0),
		Mode:      req.GetString("mode", ""),
	})
	if err != nil {
		return errResult(err)
	}
	return jsonResult(resp)
}

// TimelineTool handles memory_timeline, the Layer 2 read path.
type TimelineTool struct {
	svc *memory.Service
}

func NewTimelineTool(svc *memory.Service) *TimelineTool {
	return &TimelineTool{svc: svc}
}

func (t *TimelineTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_timeline",
		mcp.WithDescription(
			"Show the chronological neighborhood of an observation: what happened "+
				"just before and after it. Use after memory_search to understand context.",
		),
		mcp.WithNumber("anchorId",
			mcp.Required(),
			mcp.Description("Observation id to center on"),
		),
		mcp.WithNumber("depthBefore",
			mcp.Description("Observations before the anchor (default 3)"),
		),
		mcp.WithNumber("depthAfter",
			mcp.Description("Observations after the anchor (default 3)"),
		),
	)
}

func (t *TimelineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := t.svc.Timeline(models.TimelineRequest{
		AnchorID:    int64Arg(req, "anchorId", 0),
		DepthBefore: intArg(req, "depthBefore", 0),
		DepthAfter:  intArg(req, "depthAfter", 0),
	})
	if err != nil {
		return errResult(err)
	}
	return jsonResult(resp)
}

// GetTool handles memory_get, the Layer 3 read path: full records by id.
type GetTool struct {
	svc *memory.Service
}

func NewGetTool(svc *memory.Service) *GetTool {
	return &GetTool{svc: svc}
}

func (t *GetTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_get",
		mcp.WithDescription(
			"Fetch full observation records by id, untruncated. The final step of "+
				"progressive disclosure after memory_search and memory_timeline.",
		),
		mcp.WithString("ids",
			mcp.Required(),
			mcp.Description("Observation ids as a JSON array, e.g. [12, 15]"),
		),
	)
}

func (t *GetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := int64ListArg(req, "ids")
	if err != nil {
		return errResult(err)
	}
	records, err := t.svc.Get(ids)
	if err != nil {
		return errResult(err)
	}
	return jsonResult(records)
}

// DeleteTool handles memory_delete: remove an observation outright.
type DeleteTool struct {
	svc *memory.Service
}

func NewDeleteTool(svc *memory.Service) *DeleteTool {
	return &DeleteTool{svc: svc}
}

func (t *DeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_delete",
		mcp.WithDescription(
			"Permanently delete an observation. For routine cleanup prefer "+
				"retention_archive, which preserves records in the archive file.",
		),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Observation id to delete"),
		),
	)
}

func (t *DeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64Arg(req, "id", 0)
	if err := t.svc.Delete(id); err != nil {
		return errResult(err)
	}
	return jsonResult(map[string]any{"deleted": id})
}
