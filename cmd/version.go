package cmd

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/cdlprep/cdlprep/internal/question"
)

// version is set via -ldflags at build time.
var version = "(devel)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the binary and built-in question bank versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "cdlprep %s%s\n", version, revision())

		bank, err := question.DefaultBank()
		if err != nil {
			return fmt.Errorf("load built-in bank: %w", err)
		}
		fmt.Fprintf(out, "built-in question bank %s (%d topics)\n", bank.Version, len(bank.Topics))
		return nil
	},
}

// revision returns " (<short vcs revision>)" from the build info, or "".
func revision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return " (" + s.Value[:7] + ")"
		}
	}
	return ""
}
