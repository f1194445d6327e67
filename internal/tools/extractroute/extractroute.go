// Package extractroute implements the extract_route MCP tool: resolve one or
// more route patterns and materialise their dependency closures as bundles.
package extractroute

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/routepack/routepack/internal/app"
	"github.com/routepack/routepack/internal/config"
	"github.com/routepack/routepack/internal/extract"
	"github.com/routepack/routepack/internal/registry"
	"github.com/routepack/routepack/internal/tools"
)

// ExtractRouteTool implements the tools.Tool interface for route extraction.
type ExtractRouteTool struct{}

var _ tools.ExtendedHelpProvider = (*ExtractRouteTool)(nil)

const toolName = "extract_route"

func init() {
	registry.Register(&ExtractRouteTool{})
}

// Definition returns the tool's definition for MCP registration.
func (t *ExtractRouteTool) Definition() mcp.Tool {
	return mcp.NewTool(
		toolName,
		mcp.WithDescription("Extracts the source files (models, views, controllers, helpers, concerns) and detected gems that implement one or more Rails routes into timestamped, manifested bundle directories."),
		mcp.WithString("app_root",
			mcp.Required(),
			mcp.Description("Absolute path to the Rails application root."),
		),
		mcp.WithArray("patterns",
			mcp.Required(),
			mcp.Description("Route patterns to extract, e.g. [\"users#index\", \"admin/posts#show\"] or route names."),
			mcp.WithStringItems(),
		),
		mcp.WithString("mode",
			mcp.Description("Category mode: one of m, v, c, mv, mc, vc, mvc (default mvc)."),
		),
		mcp.WithBoolean("include_gems",
			mcp.Description("Copy essential files of detected gems into the bundle."),
			mcp.DefaultBool(false),
		),
		mcp.WithBoolean("include_tests",
			mcp.Description("Copy spec/test counterparts of matched files."),
			mcp.DefaultBool(false),
		),
		mcp.WithBoolean("compress",
			mcp.Description("Replace each bundle directory with a zip archive."),
			mcp.DefaultBool(false),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

// Execute executes the extract_route tool.
func (t *ExtractRouteTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]interface{}) (*mcp.CallToolResult, error) {
	logger.Info("Executing extract_route")

	appRoot, patterns, err := parseTargets(args)
	if err != nil {
		return nil, err
	}

	cfg := config.LoadOrDefault(appRoot)
	opts := extract.OptionsFromConfig(cfg)
	if mode, ok := args["mode"].(string); ok && mode != "" {
		if !config.ValidMode(mode) {
			return nil, fmt.Errorf("invalid mode %q: expected one of m, v, c, mv, mc, vc, mvc", mode)
		}
		opts.Mode = mode
	}
	if v, ok := args["include_gems"].(bool); ok {
		opts.IncludeGems = v
	}
	if v, ok := args["include_tests"].(bool); ok {
		opts.IncludeTests = v
	}
	if v, ok := args["compress"].(bool); ok {
		opts.Compress = v
	}

	a := app.New(cfg, logger)
	batch, err := a.Extractor.ExtractRoutes(patterns, opts)
	if err != nil {
		return nil, err
	}

	return newToolResultJSON(batch)
}

// parseTargets validates the app_root and patterns arguments.
func parseTargets(args map[string]interface{}) (string, []string, error) {
	appRoot, ok := args["app_root"].(string)
	if !ok || appRoot == "" {
		return "", nil, fmt.Errorf("missing required parameter 'app_root'")
	}

	raw, ok := args["patterns"].([]interface{})
	if !ok || len(raw) == 0 {
		return "", nil, fmt.Errorf("missing required parameter 'patterns': provide an array of route patterns")
	}
	patterns := make([]string, 0, len(raw))
	for i, item := range raw {
		s, ok := item.(string)
		if !ok || s == "" {
			return "", nil, fmt.Errorf("patterns item %d must be a non-empty string", i)
		}
		patterns = append(patterns, s)
	}
	return appRoot, patterns, nil
}

func newToolResultJSON(data interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// ProvideExtendedInfo implements the ExtendedHelpProvider interface.
func (t *ExtractRouteTool) ProvideExtendedInfo() *tools.ExtendedHelp {
	return &tools.ExtendedHelp{
		WhenToUse:    "Use to carve the code implementing specific routes out of a Rails application, for example to hand a focused slice of a large app to a reviewer or an AI context window.",
		WhenNotToUse: "Don't use on non-Rails projects or when you need a precise AST-level dependency graph; detection is heuristic pattern matching.",
		CommonPatterns: []string{
			"Single route: {\"app_root\": \"/srv/app\", \"patterns\": [\"users#index\"]}",
			"Batch: {\"app_root\": \"/srv/app\", \"patterns\": [\"users#index\", \"posts#show\"]}",
			"Views only, zipped: {\"app_root\": \"/srv/app\", \"patterns\": [\"users#index\"], \"mode\": \"v\", \"compress\": true}",
		},
		ParameterDetails: map[string]string{
			"patterns": "Each pattern is either controller#action (exact match) or a route name / free text (first match wins). Unresolvable patterns fail individually without aborting the batch.",
			"mode":     "Which of models/views/controllers to copy. Helpers, concerns, gems and tests are independent toggles.",
		},
		Examples: []tools.ToolExample{
			{
				Description: "Extract users#index with gems",
				Arguments: map[string]interface{}{
					"app_root":     "/srv/app",
					"patterns":     []string{"users#index"},
					"include_gems": true,
				},
				ExpectedResult: "Batch result with one successful extraction and the bundle path under route_extracts/",
			},
		},
	}
}
