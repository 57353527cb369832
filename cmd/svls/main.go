package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/hdltools/svls/internal/config"
	"github.com/hdltools/svls/internal/debug"
	"github.com/hdltools/svls/internal/design"
	"github.com/hdltools/svls/internal/mcp"
	"github.com/hdltools/svls/internal/server"
	"github.com/hdltools/svls/internal/version"
)

func main() {
	app := &cli.App{
		Name:                   "svls",
		Usage:                  "SystemVerilog design intelligence server",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				Value:   ".svls.kdl",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Workspace root directory (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "Write debug logs to a file under the system temp directory",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve MCP tools over stdio",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "watch",
						Usage: "Watch the workspace and reindex changed files",
					},
				},
			},
			{
				Name:   "index",
				Usage:  "Index the workspace and list its symbols",
				Action: indexCommand,
			},
			{
				Name:      "trace",
				Usage:     "Trace a signal cone: svls trace [--top m | -f list.f] drivers|loads <signal path>",
				Action:    traceCommand,
				ArgsUsage: "direction path",
				Flags:     designFlags(),
			},
			{
				Name:      "hier",
				Usage:     "Show the children of a hierarchical scope",
				Action:    hierCommand,
				ArgsUsage: "[path]",
				Flags:     designFlags(),
			},
		},
		// Bare invocation serves stdio, matching how MCP clients launch
		// the binary.
		Action: serveCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func designFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "top",
			Usage: "Top-level module name",
		},
		&cli.StringFlag{
			Name:    "build-file",
			Aliases: []string{"f"},
			Usage:   "Build file (.f) selecting the design",
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")
	if rootFlag := c.String("root"); rootFlag != "" && configPath == ".svls.kdl" {
		configPath = filepath.Join(rootFlag, ".svls.kdl")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	if rootFlag := c.String("root"); rootFlag != "" {
		absRoot, err := filepath.Abs(rootFlag)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", rootFlag, err)
		}
		cfg.Project.Root = absRoot
	}
	return cfg, nil
}

func startDriver(ctx context.Context, c *cli.Context, watch bool) (*server.Driver, *config.Config, error) {
	if c.Bool("debug-log") {
		if logPath, err := debug.InitDebugLogFile(); err == nil {
			fmt.Fprintln(os.Stderr, "debug log:", logPath)
		}
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	d := server.New(cfg, cfg.Project.Root)
	if err := d.Start(ctx, watch); err != nil {
		return nil, nil, err
	}
	return d, cfg, nil
}

// selectDesign applies build configuration in precedence order: CLI flags
// first, then the config file's build section.
func selectDesign(ctx context.Context, d *server.Driver, cfg *config.Config, c *cli.Context) error {
	switch {
	case c.String("build-file") != "":
		return d.SetBuildFile(ctx, c.String("build-file"))
	case c.String("top") != "":
		return d.SetTopLevel(ctx, c.String("top"))
	case cfg.Build.File != "":
		return d.SetBuildFile(ctx, cfg.Build.File)
	case cfg.Build.Top != "":
		return d.SetTopLevel(ctx, cfg.Build.Top)
	}
	return fmt.Errorf("no design selected: pass --top or --build-file")
}

func serveCommand(c *cli.Context) error {
	// Stdio carries the protocol; stray debug prints would corrupt it.
	debug.SetStdioMode(true)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Bool("debug-log") {
		if logPath, err := debug.InitDebugLogFile(); err == nil {
			fmt.Fprintln(os.Stderr, "debug log:", logPath)
		}
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	d := server.New(cfg, cfg.Project.Root)
	if err := d.Start(ctx, c.Bool("watch") || cfg.Index.WatchMode); err != nil {
		return err
	}

	// Pre-select a design when the config names one; explore mode
	// otherwise.
	if cfg.Build.File != "" {
		if err := d.SetBuildFile(ctx, cfg.Build.File); err != nil {
			debug.LogServer("build file from config rejected: %v", err)
		}
	} else if cfg.Build.Top != "" {
		if err := d.SetTopLevel(ctx, cfg.Build.Top); err != nil {
			debug.LogServer("top from config rejected: %v", err)
		}
	}
	if cfg.Wcp.Address != "" {
		if err := d.AttachWaveform(ctx, cfg.Wcp.Address); err != nil {
			debug.LogServer("waveform viewer unavailable: %v", err)
		}
	}
	defer d.DetachWaveform()

	return mcp.NewServer(d).Run(ctx)
}

func indexCommand(c *cli.Context) error {
	ctx := context.Background()
	d, _, err := startDriver(ctx, c, false)
	if err != nil {
		return err
	}
	snap := d.Indexer().Snapshot()
	for _, e := range snap.Symbols() {
		fmt.Printf("%-10s %-30s %s:%s\n", e.Kind, e.Name, e.File, e.Rng.Start)
	}
	fmt.Printf("%d symbols in %d files\n", len(snap.Symbols()), len(snap.Files()))
	return nil
}

func traceCommand(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("usage: svls trace [flags] drivers|loads <signal path>")
	}
	var dir design.ConeDirection
	switch c.Args().Get(0) {
	case "drivers":
		dir = design.ConeDrivers
	case "loads":
		dir = design.ConeLoads
	default:
		return fmt.Errorf("direction must be drivers or loads, got %q", c.Args().Get(0))
	}

	ctx := context.Background()
	d, cfg, err := startDriver(ctx, c, false)
	if err != nil {
		return err
	}
	if err := selectDesign(ctx, d, cfg, c); err != nil {
		return err
	}
	comp, err := d.Compilation()
	if err != nil {
		return err
	}
	paths, err := comp.GetConePaths(dir, c.Args().Get(1))
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}

func hierCommand(c *cli.Context) error {
	ctx := context.Background()
	d, cfg, err := startDriver(ctx, c, false)
	if err != nil {
		return err
	}
	if err := selectDesign(ctx, d, cfg, c); err != nil {
		return err
	}
	comp, err := d.Compilation()
	if err != nil {
		return err
	}
	nodes, err := comp.GetScope(c.Args().Get(0))
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if n.DeclName != "" {
			fmt.Printf("%-14s %-24s %s\n", n.Kind, n.Name, n.DeclName)
		} else {
			fmt.Printf("%-14s %s\n", n.Kind, n.Name)
		}
	}
	return nil
}
