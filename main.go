package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"
	urfavecli "github.com/urfave/cli/v3"

	"github.com/routepack/routepack/internal/app"
	"github.com/routepack/routepack/internal/bundlestore"
	"github.com/routepack/routepack/internal/cli"
	"github.com/routepack/routepack/internal/config"
	"github.com/routepack/routepack/internal/extract"
	"github.com/routepack/routepack/internal/registry"
	"github.com/routepack/routepack/internal/watch"

	// Import all tool packages to register them
	_ "github.com/routepack/routepack/internal/imports"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// debugLogFile is closed on shutdown; atomic to stay safe against the signal
// handler racing cleanup.
var (
	debugLogFile atomic.Pointer[os.File]
	isStdioMode  atomic.Bool
)

// DefaultMemoryLimit is the default soft memory limit for the process (2GB).
// Gem registry walks over vendor/bundle trees are the only real consumer.
const DefaultMemoryLimit = 2 * 1024 * 1024 * 1024

// parseLogLevel parses the LOG_LEVEL environment variable.
// Defaults to WarnLevel if not set or invalid.
func parseLogLevel() logrus.Level {
	logLevelStr := strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL")))

	switch logLevelStr {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel
	}
}

// setMemoryLimit configures the Go runtime soft memory limit.
func setMemoryLimit() {
	var memLimit int64 = DefaultMemoryLimit
	if v := os.Getenv("ROUTEPACK_MEMORY_LIMIT"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			memLimit = parsed
		}
	}
	debug.SetMemoryLimit(memLimit)
}

func main() {
	setMemoryLimit()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Discard output until we know whether we are serving stdio MCP (file
	// logging only) or running a CLI command (stderr).
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(parseLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	registry.Init(logger)

	defer performCleanup()

	root := &urfavecli.Command{
		Name:    "routepack",
		Usage:   "Extract the source files implementing Rails routes into shareable bundles",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []urfavecli.Flag{
			&urfavecli.StringFlag{
				Name:    "app-root",
				Aliases: []string{"r"},
				Usage:   "Rails application root (default: current directory)",
				Sources: urfavecli.EnvVars("ROUTEPACK_APP_ROOT"),
			},
			&urfavecli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "text",
				Usage:   "Output format for CLI commands (text or json)",
			},
			&urfavecli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
				Sources: urfavecli.EnvVars("ROUTEPACK_VERBOSE"),
			},
		},
		Commands: []*urfavecli.Command{
			{
				Name:      "extract",
				Usage:     "Extract one or more routes into bundles",
				ArgsUsage: "PATTERN [PATTERN...]",
				Flags:     extractFlags(),
				Action: func(ctx context.Context, cmd *urfavecli.Command) error {
					patterns := cmd.Args().Slice()
					if len(patterns) == 0 {
						return fmt.Errorf("at least one route pattern is required (e.g. users#index)")
					}
					a, runner, err := setupCLI(cmd, logger)
					if err != nil {
						return err
					}
					opts, err := extractOptions(cmd, a)
					if err != nil {
						return err
					}
					return runner.Extract(patterns, opts)
				},
			},
			{
				Name:      "routes",
				Usage:     "List routes, optionally filtered by a pattern",
				ArgsUsage: "[PATTERN]",
				Action: func(ctx context.Context, cmd *urfavecli.Command) error {
					_, runner, err := setupCLI(cmd, logger)
					if err != nil {
						return err
					}
					return runner.Routes(cmd.Args().First())
				},
			},
			{
				Name:  "bundles",
				Usage: "List extracted bundles with validation status and statistics",
				Action: func(ctx context.Context, cmd *urfavecli.Command) error {
					_, runner, err := setupCLI(cmd, logger)
					if err != nil {
						return err
					}
					return runner.Bundles()
				},
			},
			{
				Name:  "cleanup",
				Usage: "Remove bundles by age or retention policy",
				Flags: []urfavecli.Flag{
					&urfavecli.DurationFlag{
						Name:  "older-than",
						Usage: "Remove bundles older than this duration (e.g. 720h)",
					},
					&urfavecli.IntFlag{
						Name:  "keep-latest",
						Usage: "Keep only the N most recent bundles",
					},
					&urfavecli.BoolFlag{
						Name:  "all",
						Usage: "Remove every bundle",
					},
					&urfavecli.BoolFlag{
						Name:  "force",
						Usage: "Skip the confirmation prompt",
					},
				},
				Action: func(ctx context.Context, cmd *urfavecli.Command) error {
					_, runner, err := setupCLI(cmd, logger)
					if err != nil {
						return err
					}
					return runner.Cleanup(bundlestore.CleanupPolicy{
						OlderThan:  cmd.Duration("older-than"),
						KeepLatest: int(cmd.Int("keep-latest")),
						All:        cmd.Bool("all"),
						Force:      cmd.Bool("force"),
					})
				},
			},
			{
				Name:      "watch",
				Usage:     "Extract a route and re-extract whenever its sources change",
				ArgsUsage: "PATTERN",
				Flags:     extractFlags(),
				Action: func(ctx context.Context, cmd *urfavecli.Command) error {
					pattern := cmd.Args().First()
					if pattern == "" {
						return fmt.Errorf("a route pattern is required (e.g. users#index)")
					}
					a, _, err := setupCLI(cmd, logger)
					if err != nil {
						return err
					}
					opts, err := extractOptions(cmd, a)
					if err != nil {
						return err
					}
					watcher := watch.NewWatcher(a.Extractor, a.Config.AppRoot, logger)
					err = watcher.Run(ctx, pattern, opts)
					if err == context.Canceled {
						return nil
					}
					return err
				},
			},
			{
				Name:  "version",
				Usage: "Print version information",
				Action: func(ctx context.Context, cmd *urfavecli.Command) error {
					fmt.Printf("routepack version %s\n", Version)
					fmt.Printf("Commit: %s\n", Commit)
					fmt.Printf("Built: %s\n", BuildDate)
					return nil
				},
			},
		},
		// No subcommand: serve MCP over stdio.
		Action: func(cliCtx context.Context, cmd *urfavecli.Command) error {
			return serveStdio(logger)
		},
	}

	if err := root.Run(ctx, os.Args); err != nil {
		// In stdio mode nothing may be written to stdout or stderr; the MCP
		// protocol owns both streams from the client's point of view.
		if !isStdioMode.Load() {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// extractFlags are shared between the extract and watch commands.
func extractFlags() []urfavecli.Flag {
	return []urfavecli.Flag{
		&urfavecli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   "Category mode: m, v, c, mv, mc, vc or mvc",
		},
		&urfavecli.BoolFlag{
			Name:  "gems",
			Usage: "Include essential files of detected gems",
		},
		&urfavecli.BoolFlag{
			Name:  "tests",
			Usage: "Include spec/test counterparts of matched files",
		},
		&urfavecli.BoolFlag{
			Name:  "compress",
			Usage: "Replace each bundle directory with a zip archive",
		},
	}
}

// setupCLI switches the logger to stderr and wires a pipeline rooted at the
// requested application directory.
func setupCLI(cmd *urfavecli.Command, logger *logrus.Logger) (*app.App, *cli.Runner, error) {
	logger.SetOutput(os.Stderr)
	if cmd.Bool("verbose") {
		logger.SetLevel(logrus.DebugLevel)
	}

	output := cli.OutputFormat(cmd.String("output"))
	if output != cli.OutputText && output != cli.OutputJSON {
		return nil, nil, fmt.Errorf("invalid output format %q: expected text or json", output)
	}

	appRoot := cmd.String("app-root")
	if appRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		appRoot = cwd
	}

	cfg := config.LoadOrDefault(appRoot)
	cfg.Verbose = cfg.Verbose || cmd.Bool("verbose")

	a := app.New(cfg, logger)
	return a, cli.NewRunner(a, output), nil
}

// extractOptions builds extraction options from the command flags on top of
// the configuration defaults.
func extractOptions(cmd *urfavecli.Command, a *app.App) (extract.Options, error) {
	opts := extract.OptionsFromConfig(a.Config)
	if mode := cmd.String("mode"); mode != "" {
		if !config.ValidMode(mode) {
			return opts, fmt.Errorf("invalid mode %q: expected one of m, v, c, mv, mc, vc, mvc", mode)
		}
		opts.Mode = mode
	}
	if cmd.Bool("gems") {
		opts.IncludeGems = true
	}
	if cmd.Bool("tests") {
		opts.IncludeTests = true
	}
	if cmd.Bool("compress") {
		opts.Compress = true
	}
	return opts, nil
}

// serveStdio runs the MCP server over stdin/stdout. Logging always goes to a
// file so the protocol stream stays clean.
func serveStdio(logger *logrus.Logger) error {
	isStdioMode.Store(true)
	configureStdioLogging(logger)

	logger.Debug("Creating MCP server")
	mcpSrv := mcpserver.NewMCPServer("routepack", Version)

	enabledTools := registry.GetEnabledTools()
	logger.WithField("tool_count", len(enabledTools)).Debug("Registering tools")

	for toolName, toolImpl := range enabledTools {
		name := toolName

		mcpSrv.AddTool(toolImpl.Definition(), func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			currentTool, ok := registry.GetTool(name)
			if !ok {
				return nil, fmt.Errorf("tool not found: %s", name)
			}

			args, ok := request.Params.Arguments.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid arguments type: expected map[string]interface{}, got %T", request.Params.Arguments)
			}

			result, err := currentTool.Execute(toolCtx, registry.GetLogger(), registry.GetCache(), args)
			if err != nil {
				logger.WithError(err).WithField("tool", name).Error("Tool execution failed")
				return nil, fmt.Errorf("tool execution failed: %w", err)
			}
			return result, nil
		})
	}

	logger.Debug("Starting stdio server")
	return mcpserver.ServeStdio(mcpSrv)
}

// configureStdioLogging sends all logging to ~/.routepack/logs/routepack.log.
// When that fails the output is discarded rather than risked on the protocol
// streams.
func configureStdioLogging(logger *logrus.Logger) {
	logLevel := parseLogLevel()
	if logLevel < logrus.WarnLevel {
		logLevel = logrus.WarnLevel // minimum warn level for stdio mode
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		logger.SetOutput(io.Discard)
		logrus.SetOutput(io.Discard)
		return
	}

	logDir := filepath.Join(homeDir, ".routepack", "logs")
	if err := os.MkdirAll(logDir, 0700); err != nil {
		logger.SetOutput(io.Discard)
		logrus.SetOutput(io.Discard)
		return
	}

	logFile := filepath.Join(logDir, "routepack.log")
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		logger.SetOutput(io.Discard)
		logrus.SetOutput(io.Discard)
		return
	}

	debugLogFile.Store(file)
	logger.SetOutput(file)
	logrus.SetOutput(file)
	logger.SetLevel(logLevel)
	logrus.SetLevel(logLevel)
	logger.WithField("level", logLevel.String()).Debug("Logging configured")
}

// performCleanup closes the log file on shutdown. Errors are swallowed; in
// stdio mode there is nowhere safe to report them.
func performCleanup() {
	if file := debugLogFile.Load(); file != nil {
		_ = file.Close()
	}
}
