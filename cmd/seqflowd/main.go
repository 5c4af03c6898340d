package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cschjolb/seqflow/internal/cmdrun"
	cfgpkg "github.com/cschjolb/seqflow/internal/config"
	pebblestore "github.com/cschjolb/seqflow/internal/storage/pebble"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "seqflowd",
		Short: "seqflow runtime CLI",
		Long:  "seqflowd is a single-binary runtime for the ordered-delivery event store. This CLI manages storage and runs the demo consumer.",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize seqflow",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("seqflowd init: nothing to do yet")
		},
	}
	rootCmd.AddCommand(initCmd)

	runCmd := &cobra.Command{
		Use:     "run",
		Short:   "Open the document store and run the demo consumer",
		Aliases: []string{"server", "start"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			logLevel, _ := cmd.Flags().GetString("log-level")
			logFormat, _ := cmd.Flags().GetString("log-format")
			filter, _ := cmd.Flags().GetString("filter")

			mode := pebblestore.FsyncModeAlways
			switch fsyncMode {
			case "never":
				mode = pebblestore.FsyncModeNever
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "always":
				mode = pebblestore.FsyncModeAlways
			default:
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}

			cfg := cfgpkg.Default()
			cfgpkg.FromEnv(&cfg)

			return cmdrun.Run(context.Background(), cmdrun.Options{
				DataDir:       dataDir,
				Fsync:         mode,
				FsyncInterval: time.Duration(fsyncIntervalMs) * time.Millisecond,
				Config:        cfg,
				LogLevel:      logLevel,
				LogFormat:     logFormat,
				Filter:        filter,
			})
		},
	}
	runCmd.Flags().String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	runCmd.Flags().String("fsync", "always", "Fsync mode: always|interval|never")
	runCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms (default 5)")
	runCmd.Flags().String("log-level", os.Getenv("SEQFLOW_LOG_LEVEL"), "Log level: debug|info|warn|error")
	runCmd.Flags().String("log-format", os.Getenv("SEQFLOW_LOG_FORMAT"), "Log format: text|json (default text)")
	runCmd.Flags().String("filter", "", "CEL expression filtering delivered transactions, e.g. category == 'orders' && revision > 10")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
