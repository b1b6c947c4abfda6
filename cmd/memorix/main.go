// Command memorix runs the memory server.
//
// The default command serves MCP over stdio for editor integration; the
// dashboard command serves the read-only HTTP view of the same data.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/AVIDS2/memorix/internal/api"
	"github.com/AVIDS2/memorix/internal/config"
	"github.com/AVIDS2/memorix/internal/server"
)

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "serve":
		run(serveMCP)
	case "dashboard":
		run(serveDashboard)
	case "version":
		fmt.Println("memorix " + server.Version)
	case "help", "-h", "--help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

func run(fn func(*config.Config, *slog.Logger) error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "memorix:", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel)
	if err := fn(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func serveMCP(cfg *config.Config, logger *slog.Logger) error {
	eng, err := server.NewEngine(cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("serving MCP on stdio",
		"version", server.Version,
		"project", eng.Service.ProjectID(),
		"dataDir", cfg.DataDir,
	)
	return mcpserver.ServeStdio(server.NewMCPServer(eng))
}

func serveDashboard(cfg *config.Config, logger *slog.Logger) error {
	eng, err := server.NewEngine(cfg, logger)
	if err != nil {
		return err
	}
	router := api.NewRouter(eng.Service, logger)
	logger.Info("serving dashboard",
		"addr", cfg.DashboardAddr,
		"project", eng.Service.ProjectID(),
	)
	return http.ListenAndServe(cfg.DashboardAddr, router)
}

// newLogger writes JSON logs to stderr; stdout belongs to the MCP transport.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func usage(w *os.File) {
	fmt.Fprint(w, `memorix - persistent memory for coding agents

Usage:
  memorix [command]

Commands:
  serve      Serve MCP over stdio (default)
  dashboard  Serve the read-only HTTP dashboard
  version    Print the version
  help       Show this help

Environment:
  MEMORIX_DATA_DIR     Data directory (default ~/.memorix/data)
  MEMORIX_PROJECT_DIR  Project directory (default: working directory)
  MEMORIX_CONFIG       Overrides file (default ~/.memorix/config.yaml)
  DASHBOARD_ADDR       Dashboard listen address (default 127.0.0.1:8742)
  LOG_LEVEL            debug, info, warn, error (default info)
`)
}
