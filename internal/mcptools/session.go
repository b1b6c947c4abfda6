package mcptools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/AVIDS2/memorix/internal/memory"
)

// SessionStartTool handles session_start: open a working window and return
// the rehydration bundle.
type SessionStartTool struct {
	svc *memory.Service
}

func NewSessionStartTool(svc *memory.Service) *SessionStartTool {
	return &SessionStartTool{svc: svc}
}

func (t *SessionStartTool) Definition() mcp.Tool {
	return mcp.NewTool("session_start",
		mcp.WithDescription(
			"Start a coding session. Returns the previous session's summary plus the "+
				"highest-value observations for this project. Call this first in every session.",
		),
		mcp.WithString("agent",
			mcp.Description("Name of the agent or editor starting the session"),
		),
	)
}

func (t *SessionStartTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bundle, err := t.svc.SessionStart(req.GetString("agent", ""))
	if err != nil {
		return errResult(err)
	}
	return jsonResult(bundle)
}

// SessionEndTool handles session_end: complete a session with its summary.
type SessionEndTool struct {
	svc *memory.Service
}

func NewSessionEndTool(svc *memory.Service) *SessionEndTool {
	return &SessionEndTool{svc: svc}
}

func (t *SessionEndTool) Definition() mcp.Tool {
	return mcp.NewTool("session_end",
		mcp.WithDescription(
			"End a session with a summary of what was accomplished. The summary is "+
				"what the next session_start returns, so make it count.",
		),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Id returned by session_start"),
		),
		mcp.WithString("summary",
			mcp.Description("What was done, decided, and left open"),
		),
	)
}

func (t *SessionEndTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := t.svc.SessionEnd(req.GetString("sessionId", ""), req.GetString("summary", ""))
	if err != nil {
		return errResult(err)
	}
	return jsonResult(sess)
}

// SessionContextTool handles session_context, the read-only session view.
type SessionContextTool struct {
	svc *memory.Service
}

func NewSessionContextTool(svc *memory.Service) *SessionContextTool {
	return &SessionContextTool{svc: svc}
}

func (t *SessionContextTool) Definition() mcp.Tool {
	return mcp.NewTool("session_context",
		mcp.WithDescription("Look up one session's record: status, timestamps, summary."),
		mcp.WithString("sessionId",
			mcp.Required(),
			mcp.Description("Session id to look up"),
		),
	)
}

func (t *SessionContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, err := t.svc.SessionContext(req.GetString("sessionId", ""))
	if err != nil {
		return errResult(err)
	}
	return jsonResult(sess)
}
