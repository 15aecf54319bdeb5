// benchtop is the PartsBin workstation agent. It resolves this machine's
// durable device identity, syncs preferences with the server, and manages
// the active theme for whatever front end embeds it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jheath/partsbin/internal/agent"
	"github.com/jheath/partsbin/internal/agent/api"
	"github.com/jheath/partsbin/internal/agent/cache"
	"github.com/jheath/partsbin/internal/config"
	"github.com/jheath/partsbin/internal/version"
	"github.com/jheath/partsbin/pkg/themes"
	"go.uber.org/zap"
)

const usage = `benchtop - PartsBin workstation agent

Usage:
  benchtop [flags] <command>

Commands:
  whoami        resolve and print this device's identity
  prefs         print the effective preference record
  theme         print the active theme
  theme set ID  switch the active theme (dark, light, ocean, forest)
  heartbeat     report this device as alive to the server
  version       print version information

Flags:
  -config PATH  path to configuration file
`

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	if args[0] == "version" {
		fmt.Println(version.Info())
		return
	}

	viperCfg, err := config.LoadAgent(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger, err := config.NewLogger(viperCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	stateDir := viperCfg.GetString("agent.state_dir")
	c, err := cache.New(stateDir)
	if err != nil {
		logger.Fatal("failed to open state dir", zap.Error(err))
	}

	// One-time import of state written by the v1 agent.
	if migrated, err := c.MigrateLegacy(); err != nil {
		logger.Warn("legacy state migration failed", zap.Error(err))
	} else if migrated {
		logger.Info("migrated legacy agent state", zap.String("state_dir", stateDir))
	}

	client := api.New(viperCfg.GetString("server.url"),
		api.WithTimeout(viperCfg.GetDuration("server.timeout")))

	resolver := agent.NewResolver(client, c, logger.Named("resolver"))
	prefs := agent.NewPrefs(client, c, logger.Named("prefs"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The preference identity is the username when configured, else the
	// device identity.
	res := resolver.Resolve(ctx)
	identity := viperCfg.GetString("agent.username")
	if identity == "" {
		identity = res.ID
	}

	switch args[0] {
	case "whoami":
		runWhoami(res, identity)
	case "prefs":
		runPrefs(ctx, prefs, identity)
	case "theme":
		runTheme(ctx, args[1:], prefs, identity, logger)
	case "heartbeat":
		runHeartbeat(ctx, client, res, logger)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", args[0])
		flag.Usage()
		os.Exit(2)
	}
}

func runWhoami(res agent.Resolution, identity string) {
	printJSON(map[string]string{
		"device_id": res.ID,
		"outcome":   string(res.Outcome),
		"identity":  identity,
	})
}

func runPrefs(ctx context.Context, prefs *agent.Prefs, identity string) {
	record := prefs.Get(ctx, identity)
	printJSON(record)
}

func runTheme(ctx context.Context, args []string, prefs *agent.Prefs, identity string, logger *zap.Logger) {
	manager := agent.NewThemeManager(prefs, nil, logger.Named("theme"))
	manager.Init(ctx, identity)

	if len(args) == 0 {
		printJSON(manager.Current())
		return
	}
	if args[0] != "set" || len(args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: benchtop theme [set ID]\navailable: %v\n", themes.IDs())
		os.Exit(2)
	}

	theme := manager.SetTheme(ctx, args[1])
	// The persist behind SetTheme is asynchronous; wait it out so the write
	// survives process exit.
	prefs.Flush()
	printJSON(theme)
}

func runHeartbeat(ctx context.Context, client *api.Client, res agent.Resolution, logger *zap.Logger) {
	if res.Outcome == agent.OutcomeFallback {
		fmt.Fprintln(os.Stderr, "server unreachable, no heartbeat sent")
		os.Exit(1)
	}
	if err := client.Heartbeat(ctx, res.ID); err != nil {
		logger.Error("heartbeat failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Println("ok")
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(b))
}
