package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/killfeedsc/killfeed-go/pkg/killfeed"
)

var (
	// parse flags
	parseLogDir       string
	parseIncludeTypes []string
	parseExcludeTypes []string
	parsePlayer       string
	parseWhere        string
	parseSince        string
	parseUntil        string
	parseFormat       string
	parseRaw          bool
	parseStopOnError  bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [files...]",
	Short: "Parse Game.log files (batch mode)",
	Long: `Parse Game.log and its backups in logbackups/ and output events.

Unlike 'tail', this command processes historical files without real-time
following. It reads all matching log files in chronological order.

Examples:
  # Parse all logs in the auto-detected directory
  killfeed parse

  # Specify the log directory
  killfeed parse --log-dir "C:\Program Files\Roberts Space Industries\StarCitizen\LIVE"

  # Filter by time range
  killfeed parse --since "2025-01-15T12:00:00Z" --until "2025-01-16T00:00:00Z"

  # Kills of one player
  killfeed parse --include-types kill --where 'killer == "MyHandle"'

  # Parse specific files
  killfeed parse Game.log "logbackups/Game Build(9999999) 15 Jan 25 (12 00 00).log"

  # Count kills per weapon with jq
  killfeed parse --include-types kill | jq -s 'group_by(.weapon) | map({(.[0].weapon): length}) | add'`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseLogDir, "log-dir", "d", "",
		"Star Citizen install directory holding Game.log (auto-detected if not specified)")
	parseCmd.Flags().StringSliceVar(&parseIncludeTypes, "include-types", nil,
		"Event types to include (comma-separated: kill,death,suicide,...)")
	parseCmd.Flags().StringSliceVar(&parseExcludeTypes, "exclude-types", nil,
		"Event types to exclude (comma-separated)")
	parseCmd.Flags().StringVar(&parsePlayer, "player", "",
		"Only events where this player is the killer or the victim")
	parseCmd.Flags().StringVar(&parseWhere, "where", "",
		"Only events matching this expression")
	parseCmd.Flags().StringVar(&parseSince, "since", "",
		"Only events at/after timestamp (RFC3339 format, e.g., 2025-01-15T12:00:00Z)")
	parseCmd.Flags().StringVar(&parseUntil, "until", "",
		"Only events before timestamp (RFC3339 format)")
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
	parseCmd.Flags().BoolVar(&parseRaw, "raw", false,
		"Include raw log lines in output")
	parseCmd.Flags().BoolVar(&parseStopOnError, "stop-on-error", false,
		"Stop on first error instead of skipping")

	registerCompletions(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	if !ValidFormats[parseFormat] {
		return fmt.Errorf("invalid format %q: must be one of: jsonl, pretty", parseFormat)
	}

	includes, err := NormalizeEventTypes(parseIncludeTypes)
	if err != nil {
		return err
	}
	excludes, err := NormalizeEventTypes(parseExcludeTypes)
	if err != nil {
		return err
	}
	if err := RejectOverlap(includes, excludes); err != nil {
		return err
	}
	if _, err := killfeed.CompileWhere(parseWhere); err != nil {
		return err
	}

	sinceTime, untilTime, err := parseTimeRange(parseSince, parseUntil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []killfeed.ParseOption
	if len(includes) > 0 {
		opts = append(opts, killfeed.WithParseIncludeTypes(includes...))
	}
	if len(excludes) > 0 {
		opts = append(opts, killfeed.WithParseExcludeTypes(excludes...))
	}
	if parsePlayer != "" {
		opts = append(opts, killfeed.WithParsePlayer(parsePlayer))
	}
	if parseWhere != "" {
		opts = append(opts, killfeed.WithParseWhere(parseWhere))
	}
	if !sinceTime.IsZero() || !untilTime.IsZero() {
		opts = append(opts, killfeed.WithParseTimeRange(sinceTime, untilTime))
	}
	if parseRaw {
		opts = append(opts, killfeed.WithParseIncludeRawLine(true))
	}
	if parseStopOnError {
		opts = append(opts, killfeed.WithParseStopOnError(true))
	}

	events := killfeed.ParseDir(ctx, parseLogDir, opts...)
	if len(args) > 0 {
		events = killfeed.ParsePaths(ctx, args, opts...)
	}

	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	for ev, err := range events {
		if err != nil {
			// Ctrl+C: exit silently
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			// Per-file errors from explicit paths are reported and skipped.
			if len(args) > 0 && !parseStopOnError && !errors.Is(err, killfeed.ErrNoLogFiles) {
				fmt.Fprintf(errOut, "warning: %v\n", err)
				continue
			}
			return fmt.Errorf("parse error: %w", err)
		}

		if err := OutputEvent(parseFormat, ev, out); err != nil {
			return fmt.Errorf("output error: %w", err)
		}
	}

	return nil
}

// parseTimeRange parses since and until strings into time.Time values.
func parseTimeRange(since, until string) (time.Time, time.Time, error) {
	var sinceTime, untilTime time.Time
	var err error

	if since != "" {
		sinceTime, err = time.Parse(time.RFC3339, since)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --since format: %w (expected RFC3339, e.g., 2025-01-15T12:00:00Z)", err)
		}
	}

	if until != "" {
		untilTime, err = time.Parse(time.RFC3339, until)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --until format: %w (expected RFC3339, e.g., 2025-01-15T12:00:00Z)", err)
		}
	}

	if !sinceTime.IsZero() && !untilTime.IsZero() && sinceTime.After(untilTime) {
		return time.Time{}, time.Time{}, fmt.Errorf("--since must be before --until")
	}

	return sinceTime, untilTime, nil
}
