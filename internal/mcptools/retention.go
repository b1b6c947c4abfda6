package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/AVIDS2/memorix/internal/memory"
)

// RetentionReportTool handles retention_report: score the live set without
// touching anything.
type RetentionReportTool struct {
	svc *memory.Service
}

func NewRetentionReportTool(svc *memory.Service) *RetentionReportTool {
	return &RetentionReportTool{svc: svc}
}

func (t *RetentionReportTool) Definition() mcp.Tool {
	return mcp.NewTool("retention_report",
		mcp.WithDescription(
			"Score every live observation by retention value (type, age, access "+
				"history). Archive candidates come first. Read-only; use "+
				"retention_archive to act on it.",
		),
		mcp.WithString("projectId",
			mcp.Description("Project filter; defaults to the detected project"),
		),
	)
}

func (t *RetentionReportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	entries := t.svc.RetentionReport(req.GetString("projectId", ""))
	return jsonResult(map[string]any{"entries": entries})
}

// ArchiveTool handles retention_archive: move low-value observations to the
// archive file.
type ArchiveTool struct {
	svc *memory.Service
}

func NewArchiveTool(svc *memory.Service) *ArchiveTool {
	return &ArchiveTool{svc: svc}
}

func (t *ArchiveTool) Definition() mcp.Tool {
	return mcp.NewTool("retention_archive",
		mcp.WithDescription(
			"Archive observations scoring below the threshold. Decisions, gotchas, "+
				"trade-offs, causal records, and frequently accessed observations are "+
				"immune. Archival is one-way.",
		),
		mcp.WithNumber("threshold",
			mcp.Description("Score cutoff (default 1.0)"),
		),
		mcp.WithString("projectId",
			mcp.Description("Project filter; defaults to the detected project"),
		),
	)
}

func (t *ArchiveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	res, err := t.svc.Archive(floatArg(req, "threshold", 0), req.GetString("projectId", ""))
	if err != nil {
		return errResult(err)
	}
	return jsonResult(res)
}

// StatsTool handles memory_stats.
type StatsTool struct {
	svc *memory.Service
}

func NewStatsTool(svc *memory.Service) *StatsTool {
	return &StatsTool{svc: svc}
}

func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_stats",
		mcp.WithDescription(
			"Summarize this project's memory: observation counts by type, token "+
				"totals, graph size, sessions, and the active embedding provider.",
		),
		mcp.WithString("projectId",
			mcp.Description("Project filter; defaults to the detected project"),
		),
	)
}

func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := t.svc.Stats(req.GetString("projectId", ""))
	if err != nil {
		return errResult(err)
	}
	return jsonResult(stats)
}
