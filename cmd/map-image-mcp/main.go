package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ironsheep/map-image-tools/internal/catalog"
	"github.com/ironsheep/map-image-tools/internal/config"
	"github.com/ironsheep/map-image-tools/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func usage() {
	fmt.Println("map-image-mcp - MCP server that loads map marker and pattern images")
	fmt.Println()
	fmt.Println("Usage: map-image-mcp [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --config PATH    Read configuration from a TOML file")
	fmt.Println("  --version, -v    Print version information")
	fmt.Println("  --help, -h       Print this help message")
	fmt.Println()
	fmt.Println("Environment variables:")
	fmt.Println("  " + config.EnvLogLevel + "=debug          Log level (debug, info, warn, error)")
	fmt.Println("  " + config.EnvPixelRatio + "=2          Display pixel ratio")
	fmt.Println("  " + config.EnvPatternCatalog + "=PATH   Pattern catalog (YAML)")
	fmt.Println("  " + config.EnvAssetsURL + "=URL        Asset API base URL")
	fmt.Println("  " + config.EnvAssetsToken + "=TOKEN    Asset API bearer token")
	fmt.Println()
	fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
}

// parseArgs handles the few flags the server takes. It returns done when
// the process should exit without serving.
func parseArgs(args []string) (configPath string, done bool, err error) {
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--version" || arg == "-v" || arg == "version":
			fmt.Printf("map-image-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return "", true, nil
		case arg == "--help" || arg == "-h" || arg == "help":
			usage()
			return "", true, nil
		case arg == "--config":
			if i+1 >= len(args) {
				return "", false, fmt.Errorf("--config needs a path")
			}
			i++
			configPath = args[i]
		case strings.HasPrefix(arg, "--config="):
			configPath = strings.TrimPrefix(arg, "--config=")
		default:
			return "", false, fmt.Errorf("unknown argument %q", arg)
		}
	}
	return configPath, false, nil
}

func main() {
	configPath, done, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "map-image-mcp: %v\n", err)
		os.Exit(2)
	}
	if done {
		return
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "map-image-mcp: %v\n", err)
		os.Exit(1)
	}

	// Log to stderr (stdout is for MCP protocol)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	logger.Debug("starting map image server",
		"version", Version, "build_time", BuildTime, "commit", GitCommit,
		"pixel_ratio", cfg.PixelRatio)

	srv, err := server.New(cfg, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Patterns.SyncOnStart {
		names := srv.SyncPatterns()
		logger.Info("registering patterns", "count", len(names))
	}
	if cfg.Patterns.Watch && cfg.Patterns.Catalog != "" {
		err := catalog.Watch(ctx, cfg.Patterns.Catalog, logger, func(c *catalog.Catalog) {
			srv.ReplaceCatalog(c)
		})
		if err != nil {
			logger.Warn("pattern catalog will not be watched", "error", err)
		}
	}

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
