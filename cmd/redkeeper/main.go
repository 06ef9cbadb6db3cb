package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/redkeeper/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	logLevel   string
	jsonLog    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "redkeeper",
	Short: "Redkeeper - lifecycle operator for replicated Redis with Sentinel",
	Long: `Redkeeper manages one unit of a replicated Redis deployment: it renders
the redis-server and sentinel configuration, tracks which unit is the
primary, settles failovers, and publishes connection data for consumers.

One redkeeper process runs next to each Redis unit and reacts to the
lifecycle events its platform delivers.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(log.Config{
			Level:      log.Level(logLevel),
			JSONOutput: jsonLog,
		})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Redkeeper version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringVar(&configPath, "config",
		"/etc/redkeeper/config.yaml", "Operator configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", true,
		"Emit JSON log lines")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(actionCmd)
}
