// Package listbundles implements the list_bundles MCP tool: enumerate,
// validate and summarise previously extracted bundles.
package listbundles

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/routepack/routepack/internal/app"
	"github.com/routepack/routepack/internal/bundlestore"
	"github.com/routepack/routepack/internal/config"
	"github.com/routepack/routepack/internal/registry"
)

// ListBundlesTool implements the tools.Tool interface for bundle listing.
type ListBundlesTool struct{}

func init() {
	registry.Register(&ListBundlesTool{})
}

// Definition returns the tool's definition for MCP registration.
func (t *ListBundlesTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"list_bundles",
		mcp.WithDescription("Lists extraction bundles in the store with per-bundle validation status and aggregate statistics (count, total size, oldest/newest)."),
		mcp.WithString("app_root",
			mcp.Required(),
			mcp.Description("Absolute path to the Rails application root."),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute executes the list_bundles tool.
func (t *ListBundlesTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]interface{}) (*mcp.CallToolResult, error) {
	logger.Info("Executing list_bundles")

	appRoot, ok := args["app_root"].(string)
	if !ok || appRoot == "" {
		return nil, fmt.Errorf("missing required parameter 'app_root'")
	}

	a := app.New(config.LoadOrDefault(appRoot), logger)
	bundles, err := a.Store.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list bundles: %w", err)
	}
	stats, err := a.Store.Statistics()
	if err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}

	response := struct {
		Statistics bundlestore.Stats        `json:"statistics"`
		Bundles    []bundlestore.BundleInfo `json:"bundles"`
	}{Statistics: stats, Bundles: bundles}

	jsonBytes, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
