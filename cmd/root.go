package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cdlprep/cdlprep/internal/app"
)

var rootCmd = &cobra.Command{
	Use:   "cdlprep",
	Short: "CDL knowledge test prep",
	Long:  "cdlprep: practice and mock exams for the commercial driver's license knowledge tests.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides CDLPREP_DB env var)")
	rootCmd.PersistentFlags().String("user", "", "User id to study as (overrides CDLPREP_USER)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: trace, debug, info, warn, error")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(topicsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(achievementsCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(entitleCmd)
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start the study app",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

// runApp opens the runtime and launches the TUI.
func runApp(cmd *cobra.Command) error {
	rt, err := openRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	rt.log.WithField("user_id", rt.cfg.UserID).Info("starting TUI")
	return app.Run(rt.screenDeps())
}
