package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Versifine/passthru/internal/config"
	"github.com/Versifine/passthru/internal/console"
	"github.com/Versifine/passthru/internal/logger"
	"github.com/Versifine/passthru/internal/proxy"
	"github.com/Versifine/passthru/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout))
}

func run(args []string, stdin io.Reader, stdout io.Writer) int {
	fs := flag.NewFlagSet("passthru", flag.ContinueOnError)
	fs.SetOutput(stdout)
	configPath := fs.String("config", "", "optional YAML config file")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "log format: console, text, json")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintln(stdout, config.Usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *showVersion {
		fmt.Fprintln(stdout, "passthru", version.String())
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("Failed to load config", "path", *configPath, "error", err)
			return 1
		}
		cfg = loaded
	}
	if err := cfg.ApplyArgs(fs.Args()); err != nil {
		if errors.Is(err, config.ErrUsage) {
			// Wrong argument count is not treated as a failure.
			fs.Usage()
			return 0
		}
		slog.Error("Invalid arguments", "error", err)
		return 1
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid config", "error", err)
		return 1
	}

	cons := console.New(stdin)
	closeLog, err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cons.Writer(stdout),
		File:   cfg.Logging.File,
	})
	if err != nil {
		slog.Error("Failed to set up logging", "error", err)
		return 1
	}
	defer closeLog()

	slog.Info("passthru", "version", version.String())
	server := proxy.NewServer(proxy.Config{
		ListenHost:       cfg.Listen.Host,
		ListenPort:       cfg.Listen.Port,
		RemoteHost:       cfg.Remote.Host,
		RemotePort:       cfg.Remote.Port,
		BufferSize:       cfg.Relay.BufferSize,
		RetryInterval:    cfg.Relay.RetryInterval,
		RetryMaxInterval: cfg.Relay.RetryMaxInterval,
		NoDelay:          cfg.Relay.NoDelayEnabled(),
	}, proxy.WithLogger(slog.Default()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return server.Start(gctx)
	})
	g.Go(func() error {
		slog.Info("Press Q to quit")
		return cons.Run(gctx, func() {
			slog.Info("Quit requested")
			server.Terminate()
		})
	})
	if err := g.Wait(); err != nil {
		slog.Error("Relay server failed", "error", err)
		return 1
	}
	return 0
}
