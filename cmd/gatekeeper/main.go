// Gatekeeper is a multi-tenant agent platform.
//
// It hosts user-defined agents that answer chat turns by alternating
// model reasoning with tool invocations, under per-user plan quotas.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	gatekeeper serve             Start the API server
//	gatekeeper init [dir]        Initialize a working directory with defaults
//	gatekeeper ask <question>    Ask a single question (for testing)
//	gatekeeper version           Print version and build information
//	gatekeeper -o json version   Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/pompdany/gatekeeper/internal/agent"
	"github.com/pompdany/gatekeeper/internal/buildinfo"
	"github.com/pompdany/gatekeeper/internal/builder"
	"github.com/pompdany/gatekeeper/internal/config"
	"github.com/pompdany/gatekeeper/internal/defaults"
	"github.com/pompdany/gatekeeper/internal/httptool"
	"github.com/pompdany/gatekeeper/internal/llm"
	"github.com/pompdany/gatekeeper/internal/quota"
	"github.com/pompdany/gatekeeper/internal/store"
	"github.com/pompdany/gatekeeper/internal/tasktool"
	"github.com/pompdany/gatekeeper/internal/tools"
	"github.com/pompdany/gatekeeper/internal/web"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for database/sql
)

// main constructs the OS-level environment and delegates to [run] so
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the gatekeeper command. Arguments are
// parsed by hand: the flag package relies on package-level globals,
// which makes it impossible to call run() concurrently from tests, and
// the argument surface here is small.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: gatekeeper ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "git_branch", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// printUsage writes the top-level help text to w.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Gatekeeper - Multi-Tenant Agent Platform")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: gatekeeper [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve        Start the API server")
	fmt.Fprintln(w, "  init [dir]   Initialize working directory with defaults (default: .)")
	fmt.Fprintln(w, "  ask          Ask a single question (for testing)")
	fmt.Fprintln(w, "  version      Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	return nil
}

// runInit writes the default config file into dir, refusing to
// overwrite an existing one.
func runInit(stdout io.Writer, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, not overwriting", path)
	}
	if err := os.WriteFile(path, defaults.ConfigYAML, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	fmt.Fprintf(stdout, "Wrote %s\n", path)
	fmt.Fprintln(stdout, "Edit it (at minimum model.api_key and owner_email), then run: gatekeeper serve")
	return nil
}

// runAsk boots a throwaway platform on an in-memory database, creates
// an ephemeral agent with the standard tools, and runs one turn.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)
	question := strings.Join(args, " ")

	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	db, err := store.Open(":memory:")
	if err != nil {
		return err
	}
	defer db.Close()

	tiers := quota.Tiers(cfg.Plans)
	st, err := store.New(db, tiers)
	if err != nil {
		return err
	}

	if err := st.EnsureUser("cli@localhost", "vip"); err != nil {
		return err
	}

	registry, llmClient := buildPlatform(logger, cfg, st, tiers)

	ag := &store.Agent{
		Creator:      "cli@localhost",
		Name:         "CLI",
		Persona:      "a concise assistant",
		Goal:         "answer the question directly",
		EnabledTools: []string{httptool.ToolName, "get_current_time"},
		Model:        cfg.Model.Default,
		Temperature:  cfg.Agents.DefaultTemperature,
	}
	if err := st.CreateAgent(ag); err != nil {
		return err
	}

	loop := agent.NewLoop(logger, llmClient, st, registry, agent.NewAssembler(cfg.Agents.HistoryWindow), cfg.Agents.MaxIterations)
	res, err := loop.Run(ctx, ag, "cli@localhost", question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, res.Content)
	return nil
}

// runServe is the primary operating mode: load config, open the
// database, wire the tool registry and orchestration loop, seed the
// builder agent, and serve the API until a shutdown signal arrives.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Gatekeeper", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// Reconfigure now that the desired level is known.
	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		logger = newLogger(stdout, level)
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"port", cfg.Listen.Port,
		"model", cfg.Model.Default,
		"database", cfg.Database.Path,
	)

	db, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	tiers := quota.Tiers(cfg.Plans)
	st, err := store.New(db, tiers)
	if err != nil {
		return fmt.Errorf("open store %s: %w", cfg.Database.Path, err)
	}
	logger.Info("database opened", "path", cfg.Database.Path)

	// The owner account gets the vip plan and owns the Architect. An
	// account that signed up earlier on a lower plan is upgraded on
	// every start; usage counters are kept.
	owner := cfg.OwnerEmail
	if owner == "" {
		return fmt.Errorf("owner_email is required in %s", cfgPath)
	}
	if err := st.EnsureUser(owner, "vip"); err != nil {
		return err
	}
	if err := st.SetPlan(owner, "vip"); err != nil {
		return err
	}

	registry, llmClient := buildPlatform(logger, cfg, st, tiers)

	if err := builder.SeedArchitect(st, owner, cfg.Model.Default); err != nil {
		return fmt.Errorf("seed builder agent: %w", err)
	}
	logger.Info("builder agent ready", "agent_id", builder.ArchitectID, "owner", owner)

	guard := quota.NewGuard(st, tiers)
	assembler := agent.NewAssembler(cfg.Agents.HistoryWindow)
	loop := agent.NewLoop(logger, llmClient, st, registry, assembler, cfg.Agents.MaxIterations)

	listen := fmt.Sprintf("%s:%d", cfg.Listen.Address, cfg.Listen.Port)
	server := web.NewServer(listen, logger, st, guard, loop, registry, cfg.Model.Default)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		_ = server.Shutdown(context.Background())
	}()

	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("Gatekeeper stopped")
	return nil
}

// buildPlatform wires the full tool registry and the model client.
func buildPlatform(logger *slog.Logger, cfg *config.Config, st *store.Store, tiers quota.Tiers) (*tools.Registry, llm.Client) {
	guard := quota.NewGuard(st, tiers)

	registry := tools.NewRegistry()
	registry.MustRegister(tools.ClockTool())

	invoker := httptool.NewInvoker(cfg.HTTPTool, logger)
	registry.MustRegister(httptool.HTTPTool(invoker))

	registry.MustRegister(tasktool.New(logger, st).Tool())

	b := builder.New(logger, st, guard, cfg.Model.Default)
	registry.MustRegister(b.Tool())

	llmClient := llm.NewOpenAIClient(cfg.Model.BaseURL, cfg.Model.APIKey, logger)
	return registry, llmClient
}

// newLogger creates a structured text logger writing to w.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
