package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"tracerlib/internal/store"
	"tracerlib/internal/ui"
)

var viewCmd = &cobra.Command{
	Use:   "view <file" + store.Ext + ">",
	Short: "Browse a recorded call tree interactively",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := store.Load(args[0])
		if err != nil {
			return err
		}
		p := tea.NewProgram(ui.NewViewer(sess), tea.WithAltScreen())
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("viewer failed: %w", err)
		}
		return nil
	},
}
