package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/AVIDS2/memorix/internal/memory"
	"github.com/AVIDS2/memorix/internal/models"
)

// StoreTool handles memory_store: persist one observation, upserting when
// the topicKey already names a record.
type StoreTool struct {
	svc *memory.Service
}

func NewStoreTool(svc *memory.Service) *StoreTool {
	return &StoreTool{svc: svc}
}

func (t *StoreTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_store",
		mcp.WithDescription(
			"Save an observation to persistent memory. Use after decisions, bug fixes, "+
				"discoveries, or anything worth remembering across sessions. Supplying a "+
				"topicKey updates the existing observation instead of creating a duplicate.",
		),
		mcp.WithString("title",
			mcp.Required(),
			mcp.Description("Short, searchable title"),
		),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("One of: decision, gotcha, problem-solution, how-it-works, "+
				"what-changed, discovery, why-it-exists, trade-off, session-request"),
		),
		mcp.WithString("narrative",
			mcp.Description("The full story: what happened and why"),
		),
		mcp.WithString("entityName",
			mcp.Required(),
			mcp.Description("The component or concept this observation is about"),
		),
		mcp.WithString("facts",
			mcp.Description(`Key facts as a JSON array of strings, e.g. ["expiry is 15m"]`),
		),
		mcp.WithString("filesModified",
			mcp.Description("Files touched, as a JSON array of strings"),
		),
		mcp.WithString("concepts",
			mcp.Description("Concept tags, as a JSON array of strings"),
		),
		mcp.WithString("topicKey",
			mcp.Description(`Stable family/slug key for observations that evolve, e.g. "decision/jwt-refresh"`),
		),
		mcp.WithString("sessionId",
			mcp.Description("Session this observation belongs to"),
		),
		mcp.WithString("projectId",
			mcp.Description("Project override; defaults to the detected project"),
		),
	)
}

func (t *StoreTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	facts, err := stringListArg(req, "facts")
	if err != nil {
		return errResult(err)
	}
	files, err := stringListArg(req, "filesModified")
	if err != nil {
		return errResult(err)
	}
	concepts, err := stringListArg(req, "concepts")
	if err != nil {
		return errResult(err)
	}

	res, err := t.svc.Store(models.StoreObservationInput{
		EntityName:    req.GetString("entityName", ""),
		Type:          models.ObservationType(req.GetString("type", "")),
		Title:         req.GetString("title", ""),
		Narrative:     req.GetString("narrative", ""),
		Facts:         facts,
		FilesModified: files,
		Concepts:      concepts,
		TopicKey:      req.GetString("topicKey", ""),
		SessionID:     req.GetString("sessionId", ""),
		ProjectID:     req.GetString("projectId", ""),
	})
	if err != nil {
		return errResult(err)
	}
	return jsonResult(res)
}
