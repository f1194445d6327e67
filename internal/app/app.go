// Package app wires the routepack pipeline together from a configuration
// value: route table, resolvers, gem analyzer, extractor and bundle store.
// Both the CLI and the MCP tools assemble through here.
package app

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/routepack/routepack/internal/bundlestore"
	"github.com/routepack/routepack/internal/cache"
	"github.com/routepack/routepack/internal/config"
	"github.com/routepack/routepack/internal/deps"
	"github.com/routepack/routepack/internal/extract"
	"github.com/routepack/routepack/internal/gems"
	"github.com/routepack/routepack/internal/routes"
)

// App is a fully wired routepack pipeline over one application root.
type App struct {
	Config    *config.Config
	Logger    *logrus.Logger
	Routes    *routes.Resolver
	Deps      *deps.Resolver
	Gems      *gems.Analyzer
	Extractor *extract.Extractor
	Store     *bundlestore.Store
}

// New assembles the pipeline. The route table defaults to the application's
// routes files; tests swap it via NewWithTable.
func New(cfg *config.Config, logger *logrus.Logger) *App {
	return NewWithTable(cfg, routes.NewFileTable(cfg.AppRoot, logger), logger)
}

// NewWithTable assembles the pipeline over an explicit route table.
func NewWithTable(cfg *config.Config, table routes.Table, logger *logrus.Logger) *App {
	resolver := routes.NewResolver(table, logger)
	depResolver := deps.NewResolver(cfg, logger)
	registry := gems.NewLocalRegistry(cfg.AppRoot, cfg.GemPaths, logger)
	analyzer := gems.NewAnalyzer(registry, cache.New[*gems.Spec](time.Duration(cfg.GemCacheTTL)), logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Routes:    resolver,
		Deps:      depResolver,
		Gems:      analyzer,
		Extractor: extract.NewExtractor(cfg, resolver, depResolver, analyzer, logger),
		Store:     bundlestore.NewStore(cfg.ExtractPath(), logger),
	}
}
