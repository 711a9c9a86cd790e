package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/killfeedsc/killfeed-go/pkg/killfeed"
)

var (
	// tail flags
	logPath          string
	format           string
	tailIncludeTypes []string
	tailExcludeTypes []string
	tailPlayer       string
	tailWhere        string
	localPlayer      string
	includeRaw       bool
	fromStart        bool
	notify           bool
	replayLast       int
	replaySince      string
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow Game.log and print events",
	Long: `Follow the Star Citizen Game.log in real time and print parsed events.

Events are output as JSON Lines by default (one JSON object per line),
which makes it easy to process with tools like jq.

Examples:
  # Follow the auto-detected log
  killfeed tail

  # Specify the log file or its directory
  killfeed tail --log-path "C:\Program Files\Roberts Space Industries\StarCitizen\LIVE"

  # Only kills and vehicle destructions
  killfeed tail --include-types kill,vehicle_destruction

  # Only events involving one player
  killfeed tail --player MyHandle

  # Arbitrary expression over event fields
  killfeed tail --where 'type == "kill" && victim_ship != ""'

  # Human-readable output from the start of the current session
  killfeed tail --format pretty --from-start

  # Pipe to jq for filtering
  killfeed tail | jq 'select(.type == "kill")'`,
	Args: cobra.NoArgs,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringVarP(&logPath, "log-path", "p", "",
		"Game.log file or its directory (auto-detected if not specified)")
	tailCmd.Flags().StringVarP(&format, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
	tailCmd.Flags().StringSliceVar(&tailIncludeTypes, "include-types", nil,
		"Event types to include (comma-separated: kill,death,suicide,...)")
	tailCmd.Flags().StringSliceVar(&tailExcludeTypes, "exclude-types", nil,
		"Event types to exclude (comma-separated)")
	tailCmd.Flags().StringVar(&tailPlayer, "player", "",
		"Only events where this player is the killer or the victim")
	tailCmd.Flags().StringVar(&tailWhere, "where", "",
		"Only events matching this expression (fields: type, killer, victim, killer_ship, victim_ship, weapon, damage_type, status, timestamp)")
	tailCmd.Flags().StringVar(&localPlayer, "local-player", "",
		"Name to use for 'Local player was killed' lines")
	tailCmd.Flags().BoolVar(&includeRaw, "raw", false,
		"Include raw log lines in output")
	tailCmd.Flags().BoolVar(&notify, "notify", false,
		"Use filesystem notifications instead of polling")

	// Replay options
	tailCmd.Flags().BoolVar(&fromStart, "from-start", false,
		"Read the whole current log before following it")
	tailCmd.Flags().IntVar(&replayLast, "replay-last", 0,
		"Replay the last N lines before following")
	tailCmd.Flags().StringVar(&replaySince, "replay-since", "",
		"Replay events since timestamp (RFC3339 format, e.g., 2025-01-15T12:00:00Z)")
	tailCmd.MarkFlagsMutuallyExclusive("from-start", "replay-last", "replay-since")

	registerCompletions(tailCmd)
}

// tailOptions translates the tail flags into watch options.
func tailOptions() ([]killfeed.WatchOption, error) {
	includes, err := NormalizeEventTypes(tailIncludeTypes)
	if err != nil {
		return nil, err
	}
	excludes, err := NormalizeEventTypes(tailExcludeTypes)
	if err != nil {
		return nil, err
	}
	if err := RejectOverlap(includes, excludes); err != nil {
		return nil, err
	}
	if _, err := killfeed.CompileWhere(tailWhere); err != nil {
		return nil, err
	}

	var opts []killfeed.WatchOption
	if logPath != "" {
		opts = append(opts, killfeed.WithLogPath(logPath))
	}
	if includeRaw {
		opts = append(opts, killfeed.WithIncludeRawLine(true))
	}
	if notify {
		opts = append(opts, killfeed.WithNotify(true))
	}
	if localPlayer != "" {
		opts = append(opts, killfeed.WithLocalPlayer(localPlayer))
	}

	switch {
	case fromStart:
		opts = append(opts, killfeed.WithReplayFromStart())
	case replayLast > 0:
		opts = append(opts, killfeed.WithReplayLastN(replayLast))
	case replaySince != "":
		t, err := time.Parse(time.RFC3339, replaySince)
		if err != nil {
			return nil, fmt.Errorf("invalid --replay-since format: %w", err)
		}
		opts = append(opts, killfeed.WithReplaySinceTime(t))
	}

	if len(includes) > 0 {
		opts = append(opts, killfeed.WithIncludeTypes(includes...))
	}
	if len(excludes) > 0 {
		opts = append(opts, killfeed.WithExcludeTypes(excludes...))
	}
	if tailPlayer != "" {
		opts = append(opts, killfeed.WithPlayer(tailPlayer))
	}
	if tailWhere != "" {
		opts = append(opts, killfeed.WithWhere(tailWhere))
	}
	return opts, nil
}

func runTail(cmd *cobra.Command, args []string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format %q: must be one of: jsonl, pretty", format)
	}

	opts, err := tailOptions()
	if err != nil {
		return err
	}

	logger, closeLog, err := cliLogger()
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	opts = append(opts, killfeed.WithLogger(logger))

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	watcher, err := killfeed.NewWatcher(opts...)
	if err != nil {
		return err
	}
	defer watcher.Close()

	events, errs, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}

	return printEvents(ctx, events, errs, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// printEvents writes events until both channels close or ctx is done.
func printEvents(ctx context.Context, events <-chan killfeed.Event, errs <-chan error, out, errOut io.Writer) error {
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := OutputEvent(format, ev, out); err != nil {
				return fmt.Errorf("output error: %w", err)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(errOut, "warning: %v\n", err)

		case <-ctx.Done():
			return nil
		}
	}
	return nil
}
