// Package registry holds the shared tool registry for routepack's MCP
// surface. Tools self-register from their package init functions.
package registry

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/routepack/routepack/internal/tools"
	"github.com/sirupsen/logrus"
)

var (
	toolRegistry  = make(map[string]tools.Tool)
	disabledTools = make(map[string]bool)

	logger *logrus.Logger
	cache  *sync.Map
)

// Init initialises the registry and shared resources.
func Init(l *logrus.Logger) {
	logger = l
	cache = &sync.Map{}
	parseDisabledTools()
}

// parseDisabledTools parses the ROUTEPACK_DISABLED_TOOLS environment
// variable, a comma-separated list of tool names.
func parseDisabledTools() {
	disabledTools = make(map[string]bool)
	for name := range strings.SplitSeq(os.Getenv("ROUTEPACK_DISABLED_TOOLS"), ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		disabledTools[name] = true
		if logger != nil {
			logger.WithField("tool", name).Debug("Tool disabled via environment variable")
		}
	}
}

// Register adds a tool implementation to the registry unless it is disabled.
func Register(tool tools.Tool) {
	name := tool.Definition().Name
	if disabledTools[name] {
		if logger != nil {
			logger.WithField("tool", name).Debug("Tool not registered (disabled)")
		}
		return
	}
	toolRegistry[name] = tool
	if logger != nil {
		logger.WithField("tool", name).Debug("Tool registered")
	}
}

// GetTool retrieves a tool by name, returning false when unknown or
// disabled.
func GetTool(name string) (tools.Tool, bool) {
	if disabledTools[name] {
		return nil, false
	}
	tool, ok := toolRegistry[name]
	return tool, ok
}

// GetEnabledTools returns every registered, enabled tool.
func GetEnabledTools() map[string]tools.Tool {
	out := make(map[string]tools.Tool, len(toolRegistry))
	for name, tool := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		out[name] = tool
	}
	return out
}

// GetEnabledToolNames returns a sorted list of enabled tool names.
func GetEnabledToolNames() []string {
	var names []string
	for name := range toolRegistry {
		if disabledTools[name] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetLogger returns the shared logger instance.
func GetLogger() *logrus.Logger {
	return logger
}

// GetCache returns the shared cache instance.
func GetCache() *sync.Map {
	return cache
}
