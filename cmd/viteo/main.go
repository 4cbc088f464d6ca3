// Package main provides the CLI entry point for viteo.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/viteo/pkg/adapters/logger"
	"github.com/user/viteo/pkg/adapters/osfilesystem"
	"github.com/user/viteo/pkg/config"
	"github.com/user/viteo/pkg/ports"
	"github.com/user/viteo/pkg/viteo"
)

var version = "dev"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, l10n.T("Interrupted, shutting down..."))
		cancel()
	}()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, l10n.F("Error: %v", err))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "viteo",
		Usage:   l10n.T("Extract decoded frames from video files"),
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: l10n.T("YAML configuration file"), EnvVars: []string{"VITEO_CONFIG"}},
			&cli.StringFlag{Name: "engine", Aliases: []string{"e"}, Usage: l10n.T("Decoder engine (auto, videotoolbox, ffmpeg)")},
			&cli.StringFlag{Name: "ffmpeg", Usage: l10n.T("Path to the ffmpeg executable"), EnvVars: []string{"FFMPEG_PATH"}},
			&cli.IntFlag{Name: "batch-size", Usage: l10n.T("Frames decoded per bulk batch")},
			&cli.IntFlag{Name: "internal-batch", Usage: l10n.T("Frames per streamed batch")},
			&cli.IntFlag{Name: "queue", Usage: l10n.T("Queue capacity in frames (0 = unbounded)")},
			&cli.IntFlag{Name: "pool", Usage: l10n.T("Reusable frame buffers (0 = allocate per frame)")},
			&cli.StringFlag{Name: "format", Usage: l10n.T("Channel order of streamed frames (bgra, rgba, bgr, rgb)")},
			&cli.StringFlag{Name: "log-level", Aliases: []string{"l"}, Usage: l10n.T("Log level (debug, info, warn, error)")},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"Q"}, Usage: l10n.T("Suppress all log output")},
		},
		Commands: []*cli.Command{
			infoCommand(),
			extractCommand(),
			benchCommand(),
			sheetCommand(),
		},
	}
}

// env holds what every command needs: the merged config, a logger and an extractor.
type env struct {
	cfg       config.Config
	log       ports.Logger
	fs        ports.FileSystem
	extractor *viteo.Extractor
}

// setup loads the config file, applies global flag overrides and builds the extractor.
func setup(c *cli.Context) (*env, error) {
	cfg := config.Defaults()
	if path := c.String("config"); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
		cfg = loaded
	}

	if c.IsSet("engine") {
		cfg.Engine = c.String("engine")
	}
	if c.IsSet("ffmpeg") {
		cfg.FFmpegPath = c.String("ffmpeg")
	}
	if c.IsSet("batch-size") {
		cfg.BatchSize = c.Int("batch-size")
	}
	if c.IsSet("internal-batch") {
		cfg.InternalBatch = c.Int("internal-batch")
	}
	if c.IsSet("queue") {
		cfg.QueueCapacity = c.Int("queue")
	}
	if c.IsSet("pool") {
		cfg.PoolSize = c.Int("pool")
	}
	if c.IsSet("format") {
		cfg.Format = c.String("format")
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var log ports.Logger
	if c.Bool("quiet") {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(cfg.Level())
	}

	fs := osfilesystem.New()
	x := viteo.New(viteo.NewConfigBuilderFrom(cfg).Build(),
		viteo.WithLogger(log),
		viteo.WithFileSystem(fs),
	)
	return &env{cfg: cfg, log: log, fs: fs, extractor: x}, nil
}
