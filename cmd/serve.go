package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"chatrelay/internal/chunk"
	"chatrelay/internal/config"
	providerfactory "chatrelay/internal/provider/factory"
	"chatrelay/internal/quota"
	"chatrelay/internal/server"
)

const serveUsage = `Usage:
  chatrelay serve [--config <path>] [--port <port>]

Flags:
  --config string   Path to YAML configuration file (optional; defaults apply)
  --port   int      Override server port from configuration

Environment:
  GEMINI_API_KEY    Upstream credential for the gemini provider (required)
  OPENAI_API_KEY    Upstream credential when provider.name is "openai"
  PORT              Override server port`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	// Pick up a local .env when present; real environment wins.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	if overridePort != 0 {
		if overridePort <= 0 || overridePort > 65535 {
			return fmt.Errorf("port override %d must be a valid TCP port", overridePort)
		}
		cfg.Server.Port = overridePort
	}

	client, err := providerfactory.NewClient(cfg.Provider)
	if err != nil {
		return err
	}

	tracker := quota.NewTracker(quota.Windows(
		cfg.Quota.MinuteLimit,
		cfg.Quota.HourLimit,
		cfg.Quota.DayLimit,
	))

	emitter := chunk.NewEmitter(
		cfg.Stream.ChunkSize,
		time.Duration(cfg.Stream.WordDelayMS)*time.Millisecond,
	)

	srv, err := server.New(cfg, tracker, client, emitter)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
