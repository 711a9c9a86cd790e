package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/killfeedsc/killfeed-go/internal/config"
	"github.com/killfeedsc/killfeed-go/internal/logging"
	"github.com/killfeedsc/killfeed-go/internal/pipeline"
)

var (
	// serve flags
	serveConfig  string
	serveLogPath string
	servePort    int
	servePlayer  string
	serveDebug   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Follow Game.log and broadcast events to WebSocket viewers",
	Long: `Follow the Star Citizen Game.log and push every combat event to the
viewers connected on ws://<host>:<port>/ws.

Settings are read from config.yml in the working directory (or --config),
then KILLFEED_<SECTION>_<KEY> environment variables, then flags.

Endpoints:
  /ws       WebSocket kill feed
  /status   pipeline status as JSON
  /metrics  Prometheus metrics
  /healthz  liveness probe

Examples:
  # Use config.yml from the working directory
  killfeed serve

  # Override the log location and port
  killfeed serve --log-path "D:\StarCitizen\LIVE" --port 9000

  # Mark deaths of the local player
  killfeed serve --player MyHandle`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	addServeFlags(serveCmd.Flags())
	registerCompletions(serveCmd)
}

func addServeFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&serveConfig, "config", "c", "",
		"Config file (default: ./config.yml if present)")
	fs.StringVarP(&serveLogPath, "log-path", "p", "",
		"Game.log file or the directory containing it")
	fs.IntVar(&servePort, "port", config.DefaultPort,
		"WebSocket port")
	fs.StringVar(&servePlayer, "player", "",
		"Local player name")
	fs.BoolVar(&serveDebug, "debug", false,
		"Enable debug logging")
}

// serveFlagKeys maps serve flags to the config keys they override.
var serveFlagKeys = map[string]string{
	"log-path": config.KeyGameLogPath,
	"port":     config.KeyPort,
	"player":   config.KeyPlayerName,
	"debug":    config.KeyDebug,
}

// loadServeConfig reads the configuration file at path with the flags set
// in fs applied on top.
func loadServeConfig(fs *pflag.FlagSet, path string) (config.Config, []string, error) {
	loader := config.NewLoader()
	for name, key := range serveFlagKeys {
		if err := loader.BindFlag(key, fs.Lookup(name)); err != nil {
			return config.Config{}, nil, err
		}
	}
	return loader.Load(path)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, warnings, err := loadServeConfig(cmd.Flags(), serveConfig)
	if err != nil {
		return err
	}

	logger, closeLog, err := logging.New(logging.Options{
		Debug:      cfg.Debug || verbose,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Console:    os.Stderr,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	for _, w := range warnings {
		logger.Warn(w)
	}
	if cfg.Source != "" {
		logger.Info("loaded config", zap.String("file", cfg.Source))
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(cfg, pipeline.Options{
		Version: version,
		Logger:  logger,
	})
	if err != nil {
		return fmt.Errorf("starting pipeline: %w", err)
	}

	logger.Info("killfeed starting",
		zap.String("version", version),
		zap.String("log_path", cfg.GameLogPath),
		zap.String("addr", cfg.Addr()),
		zap.String("watch_mode", cfg.WatchMode),
	)
	if err := p.Run(ctx); err != nil {
		return err
	}
	logger.Info("killfeed stopped")
	return nil
}
