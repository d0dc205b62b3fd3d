package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tracerlib/internal/stats"
	"tracerlib/internal/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats [flags] <file" + store.Ext + ">...",
	Short: "Aggregate call statistics across recorded sessions",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runStats,
}

func init() {
	f := statsCmd.Flags()
	f.Int("top", 20, "number of rows to print, 0 for all")
	f.Int("jobs", 0, "parallel file loads (default: GOMAXPROCS)")
}

func runStats(cmd *cobra.Command, args []string) error {
	top, err := cmd.Flags().GetInt("top")
	if err != nil {
		return fmt.Errorf("failed to get top flag: %w", err)
	}
	jobs, err := cmd.Flags().GetInt("jobs")
	if err != nil {
		return fmt.Errorf("failed to get jobs flag: %w", err)
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	reports := make([]stats.Report, len(args))

	var g errgroup.Group
	g.SetLimit(jobs)
	for i, path := range args {
		i, path := i, path
		g.Go(func() error {
			sess, err := store.Load(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			reports[i] = stats.Collect(sess)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return stats.Render(cmd.OutOrStdout(), stats.Merge(reports...), top)
}
