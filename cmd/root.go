// Package cmd implements the osnma command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "1.0.0"

	// Global flags
	debugLog bool
	jsonLog  bool
)

var rootCmd = &cobra.Command{
	Use:   "osnma",
	Short: "Galileo OSNMA navigation message authentication",
	Long: `Galileo OSNMA navigation message authentication v` + version + `

Processes Galileo INAV pages and their OSNMA data, verifying that the
navigation message (ephemeris, clock, health, timing parameters) was
genuinely produced by the Galileo ground segment.

This tool supports:
  - Processing a live Galmon stream from stdin (run)
  - Validating a DSM-PKR against the Merkle tree root (pkr)
  - Walking a TESLA key chain backward (chain)`,
	Version: version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false,
		"Log in JSON format")
}

// configureLogging sets the default slog handler from the global flags.
func configureLogging() {
	level := slog.LevelInfo
	if debugLog {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonLog {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, opts)))
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
