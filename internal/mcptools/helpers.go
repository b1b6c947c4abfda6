// Package mcptools exposes the memory engine as MCP tools.
//
// Every tool follows the same shape: a struct holding the service façade,
// Definition() returning the mcp.Tool schema, and Handle() processing one
// call. List-valued arguments arrive as JSON array strings, because MCP
// clients differ in how they encode arrays.
package mcptools

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// int64Arg extracts an id-sized integer argument.
func int64Arg(req mcp.CallToolRequest, key string, defaultVal int64) int64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int64(v)
}

// floatArg extracts a float argument.
func floatArg(req mcp.CallToolRequest, key string, defaultVal float64) float64 {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return v
}

// stringListArg parses a JSON array string argument like `["a","b"]`. An
// absent or empty argument yields nil; a malformed one is an error.
func stringListArg(req mcp.CallToolRequest, key string) ([]string, error) {
	raw := req.GetString(key, "")
	if raw == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%s must be a JSON array of strings: %w", key, err)
	}
	return out, nil
}

// int64ListArg parses a JSON array string argument like `[1,2,3]`.
func int64ListArg(req mcp.CallToolRequest, key string) ([]int64, error) {
	raw := req.GetString(key, "")
	if raw == "" {
		return nil, nil
	}
	var out []int64
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("%s must be a JSON array of numbers: %w", key, err)
	}
	return out, nil
}

// jsonResult marshals v as the tool's text payload.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errResult shapes an error as the tool's error payload. Kinded errors
// already render as "Kind: message", which clients can branch on; untagged
// validation errors pass through as-is.
func errResult(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}
