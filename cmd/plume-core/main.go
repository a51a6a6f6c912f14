// Package main is the entry point for the plume editor core: a
// headless process speaking newline-delimited JSON on stdin/stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/plumedit/plume/internal/config"
	"github.com/plumedit/plume/internal/core"
	"github.com/plumedit/plume/internal/logging"
	"github.com/plumedit/plume/internal/plugin"
	"github.com/plumedit/plume/internal/rpc"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

type options struct {
	configPath string
	logLevel   string
	logFile    string
	pluginDir  string
	noWatch    bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: loading config: %v\n", err)
		return 1
	}
	applyOverrides(cfg, opts)

	logger, logClose, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if logClose != nil {
		defer logClose()
	}
	logger.Info("plume-core %s (%s) starting", version, commit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The front-end owns stdin/stdout; everything else goes to the log.
	peer := rpc.NewPeer(os.Stdin, os.Stdout, logger)
	c := core.New(cfg, peer, logger)
	c.Bind(peer)

	var host *plugin.Host
	if cfg.Plugins.Enabled && cfg.Plugins.Dir != "" {
		host = plugin.NewHost(c, logger)
		defer host.Close()
		if err := host.LoadDir(cfg.Plugins.Dir); err != nil {
			logger.Warn("plugins unavailable: %v", err)
		} else {
			c.AttachCollaborator(host)
		}
	}

	if !opts.noWatch && opts.configPath != "" {
		watcher, err := config.NewWatcher(opts.configPath, logger)
		if err != nil {
			logger.Warn("config watch unavailable: %v", err)
		} else {
			defer watcher.Close()
			watcher.OnReload(func(next *config.Config) {
				logger.SetLevel(logging.ParseLevel(next.Logging.Level))
			})
		}
	}

	// Handle signals for graceful shutdown.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		logger.Info("shutting down")
		cancel()
		peer.Close()
	}()

	go func() { _ = c.Run(ctx) }()

	if err := peer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("connection: %v", err)
		return 1
	}
	return 0
}

// buildLogger configures logging per the config; returns a close
// function when a log file is open.
func buildLogger(cfg *config.Config) (*logging.Logger, func(), error) {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(cfg.Logging.Level)

	if cfg.Logging.File == "" {
		return logging.New(lc), nil, nil
	}
	f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	lc.Output = f
	return logging.New(lc), func() { f.Close() }, nil
}

// applyOverrides lets flags win over the config file.
func applyOverrides(cfg *config.Config, opts options) {
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.Logging.File = opts.logFile
	}
	if opts.pluginDir != "" {
		cfg.Plugins.Dir = opts.pluginDir
	}
}

func parseFlags() options {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", config.DefaultPath(), "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", config.DefaultPath(), "Path to configuration file (shorthand)")
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.logFile, "log-file", "", "Write logs to this file instead of stderr")
	flag.StringVar(&opts.pluginDir, "plugins", "", "Directory of Lua plugins")
	flag.BoolVar(&opts.noWatch, "no-watch", false, "Disable config live reload")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "plume-core - headless text editor core\n\n")
		fmt.Fprintf(os.Stderr, "Usage: plume-core [options]\n\n")
		fmt.Fprintf(os.Stderr, "Speaks newline-delimited JSON on stdin/stdout.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("plume-core %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		os.Exit(0)
	}

	return opts
}
