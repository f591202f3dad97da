// Package gateway wires the policy loader, sanitizer engine and filter in
// front of the downstream application, and exposes the same sanitizer to MCP
// clients as a tool.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/policy"
	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/sanitizer"
	"github.com/Easy-Infra-Ltd/easy-html-gateway/src/transport"
)

const sanitizeToolName = "sanitize_html"

// Registry registers sanitizer tools on the upstream MCP server. Tool calls
// use the same policy and engine as the HTTP filter.
type Registry struct {
	upstream   *transport.Upstream
	loader     policy.Loader
	engine     sanitizer.Engine
	policyFile string
	logger     *slog.Logger
}

// NewRegistry creates a registry bound to the given upstream.
func NewRegistry(
	upstream *transport.Upstream,
	loader policy.Loader,
	engine sanitizer.Engine,
	policyFile string,
	logger *slog.Logger,
) *Registry {
	return &Registry{
		upstream:   upstream,
		loader:     loader,
		engine:     engine,
		policyFile: policyFile,
		logger:     logger.With("area", "registry"),
	}
}

// Register adds the sanitizer tools to the upstream server and returns how
// many were registered.
func (r *Registry) Register() int {
	r.upstream.Server.AddTool(&mcp.Tool{
		Name:        sanitizeToolName,
		Title:       "Sanitize HTML",
		Description: "Runs an HTML fragment through the gateway's sanitization policy and returns the cleaned markup.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"html": map[string]any{
					"type":        "string",
					"description": "HTML to sanitize",
				},
			},
			"required": []string{"html"},
		},
	}, r.sanitizeHandler())

	r.logger.Info("registered tools", "count", 1)
	return 1
}

type sanitizeArgs struct {
	HTML *string `json:"html"`
}

// sanitizeHandler returns the handler for sanitize_html. Tool input and output
// are JSON strings, so both sides use the default encoding.
func (r *Registry) sanitizeHandler() mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args sanitizeArgs
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
			}
		}
		if args.HTML == nil {
			return errorResult("html is required"), nil
		}

		p, err := r.loader.Load(r.policyFile)
		if err != nil {
			r.logger.Error("policy load failed", "tool", sanitizeToolName, "err", err)
			return errorResult(err.Error()), nil
		}

		res, err := r.engine.Scan(ctx, *args.HTML, p, sanitizer.Encodings{})
		if err != nil {
			r.logger.Warn("rejected tool input", "tool", sanitizeToolName, "err", err)
			return errorResult(err.Error()), nil
		}

		content := []mcp.Content{&mcp.TextContent{Text: res.CleanHTML}}
		if res.NumberOfErrors > 0 {
			content = append(content, &mcp.TextContent{
				Text: fmt.Sprintf("%d finding(s): %s", res.NumberOfErrors, strings.Join(res.ErrorMessages, "; ")),
			})
		}
		return &mcp.CallToolResult{Content: content}, nil
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
		IsError: true,
	}
}
