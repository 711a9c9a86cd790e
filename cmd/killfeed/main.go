package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/killfeedsc/killfeed-go/internal/logging"
)

var (
	// Version information (set by ldflags)
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	verbose bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "killfeed",
	Short: "Star Citizen kill feed",
	Long: `killfeed follows the Star Citizen Game.log and turns combat lines
into kill, death and vehicle destruction events.

'serve' pushes events to browser overlays over WebSocket; 'tail' and
'parse' print them as JSON Lines for processing with other tools.

This is an unofficial tool and is not affiliated with Cloud Imperium Games.`,
	SilenceUsage: true, // Don't show usage on error
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tailCmd)
	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "killfeed %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

// cliLogger returns a stderr logger for tail and parse, debug level with
// --verbose and silent otherwise.
func cliLogger() (*zap.Logger, func() error, error) {
	if !verbose {
		return zap.NewNop(), func() error { return nil }, nil
	}
	return logging.New(logging.Options{Debug: true})
}
