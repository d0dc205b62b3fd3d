package main

import (
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tracerlib/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "tracerlib",
	Short: "Execution call tracer with user/stdlib classification",
	Long:  `tracerlib records call/return streams of a traced region, classifies every frame as user or standard-library code, and assembles per-goroutine call trees`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyColorMode(cmd)
	},
}

func main() {
	rootCmd.Version = version.Version

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(versionCmd)

	rootCmd.PersistentFlags().String("color", "auto", "colorize output (auto|on|off)")
	rootCmd.PersistentFlags().Bool("quiet", false, "suppress non-essential output")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// isTerminal reports whether the file is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}
