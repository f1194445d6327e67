// Package listroutes implements the list_routes MCP tool: enumerate and
// search the application's route table.
package listroutes

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/routepack/routepack/internal/app"
	"github.com/routepack/routepack/internal/config"
	"github.com/routepack/routepack/internal/registry"
	"github.com/routepack/routepack/internal/routes"
)

// ListRoutesTool implements the tools.Tool interface for route listing.
type ListRoutesTool struct{}

func init() {
	registry.Register(&ListRoutesTool{})
}

// Definition returns the tool's definition for MCP registration.
func (t *ListRoutesTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"list_routes",
		mcp.WithDescription("Lists the application's routes, optionally filtered by a pattern (controller#action, route name, or free text with fuzzy matching)."),
		mcp.WithString("app_root",
			mcp.Required(),
			mcp.Description("Absolute path to the Rails application root."),
		),
		mcp.WithString("pattern",
			mcp.Description("Optional filter; empty lists every route."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute executes the list_routes tool.
func (t *ListRoutesTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]interface{}) (*mcp.CallToolResult, error) {
	logger.Info("Executing list_routes")

	appRoot, ok := args["app_root"].(string)
	if !ok || appRoot == "" {
		return nil, fmt.Errorf("missing required parameter 'app_root'")
	}
	pattern, _ := args["pattern"].(string)

	a := app.New(config.LoadOrDefault(appRoot), logger)
	matches, err := a.Routes.Search(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search routes: %w", err)
	}

	response := struct {
		Count  int            `json:"count"`
		Routes []routes.Route `json:"routes"`
	}{Count: len(matches), Routes: matches}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
