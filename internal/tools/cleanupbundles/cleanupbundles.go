// Package cleanupbundles implements the cleanup_bundles MCP tool: prune
// extraction bundles by age or retention count.
package cleanupbundles

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/routepack/routepack/internal/app"
	"github.com/routepack/routepack/internal/bundlestore"
	"github.com/routepack/routepack/internal/config"
	"github.com/routepack/routepack/internal/registry"
)

// CleanupBundlesTool implements the tools.Tool interface for bundle pruning.
type CleanupBundlesTool struct{}

func init() {
	registry.Register(&CleanupBundlesTool{})
}

// Definition returns the tool's definition for MCP registration.
func (t *CleanupBundlesTool) Definition() mcp.Tool {
	return mcp.NewTool(
		"cleanup_bundles",
		mcp.WithDescription("Removes extraction bundles by policy: older than a duration, keeping only the N newest, or all. Requires force=true; there is no interactive confirmation over MCP."),
		mcp.WithString("app_root",
			mcp.Required(),
			mcp.Description("Absolute path to the Rails application root."),
		),
		mcp.WithString("older_than",
			mcp.Description("Remove bundles older than this Go duration (e.g. '720h')."),
		),
		mcp.WithNumber("keep_latest",
			mcp.Description("Keep only the N most recent bundles."),
		),
		mcp.WithBoolean("all",
			mcp.Description("Remove every bundle."),
			mcp.DefaultBool(false),
		),
		mcp.WithBoolean("force",
			mcp.Required(),
			mcp.Description("Must be true; cleanup is destructive and safe by default."),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute executes the cleanup_bundles tool.
func (t *CleanupBundlesTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]interface{}) (*mcp.CallToolResult, error) {
	logger.Info("Executing cleanup_bundles")

	appRoot, ok := args["app_root"].(string)
	if !ok || appRoot == "" {
		return nil, fmt.Errorf("missing required parameter 'app_root'")
	}
	force, _ := args["force"].(bool)
	if !force {
		return nil, fmt.Errorf("cleanup_bundles requires force=true")
	}

	policy := bundlestore.CleanupPolicy{Force: true}
	if v, ok := args["older_than"].(string); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid older_than duration %q: %w", v, err)
		}
		policy.OlderThan = d
	}
	if v, ok := args["keep_latest"].(float64); ok && v > 0 {
		policy.KeepLatest = int(v)
	}
	if v, ok := args["all"].(bool); ok {
		policy.All = v
	}

	a := app.New(config.LoadOrDefault(appRoot), logger)
	result, err := a.Store.Cleanup(policy)
	if err != nil {
		return nil, fmt.Errorf("cleanup failed: %w", err)
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
