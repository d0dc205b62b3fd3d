package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"tracerlib/internal/config"
	"tracerlib/internal/observ"
	"tracerlib/internal/prof"
	"tracerlib/internal/script"
	"tracerlib/internal/session"
	"tracerlib/internal/stats"
	"tracerlib/internal/store"
	"tracerlib/internal/trace"
)

const (
	summaryRowLimit = 10
	timeRounding    = 10 * time.Microsecond
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <script.go>",
	Short: "Run a Go script under the tracer",
	Long:  `run interprets a standard-library-only Go script, records every call into the instrumented packages, and prints a session summary. Use --out to keep the session for show, stats and view.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runScript,
}

func init() {
	f := runCmd.Flags()
	f.String("filter", "", "frame classes to retain (all|user)")
	f.Int("depth", 0, "max recorded nesting depth, 0 for unlimited")
	f.StringSlice("pkgs", nil, "instrument only these packages (default: all)")
	f.String("out", "", "write the finished session to this "+store.Ext+" file")
	f.String("stream", "", "stream live events to this file, - for stdout")
	f.String("format", "", "live stream format (text|ndjson|chrome)")
	f.Int("ring", 0, "keep the last N events for failure context")
	f.Duration("heartbeat", 0, "emit liveness marks at this interval")
	f.Duration("timeout", 0, "abort the script after this duration")
	f.Bool("timings", false, "report phase timings on stderr")
	f.String("cpuprofile", "", "write a CPU profile to this file")
	f.String("memprofile", "", "write a heap profile to this file")
}

func runScript(cmd *cobra.Command, args []string) error {
	quiet, err := quietMode(cmd)
	if err != nil {
		return err
	}
	scriptPath := args[0]

	filterFlag, err := cmd.Flags().GetString("filter")
	if err != nil {
		return fmt.Errorf("failed to get filter flag: %w", err)
	}
	depthFlag, err := cmd.Flags().GetInt("depth")
	if err != nil {
		return fmt.Errorf("failed to get depth flag: %w", err)
	}
	pkgs, err := cmd.Flags().GetStringSlice("pkgs")
	if err != nil {
		return fmt.Errorf("failed to get pkgs flag: %w", err)
	}
	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return fmt.Errorf("failed to get out flag: %w", err)
	}
	streamDest, err := cmd.Flags().GetString("stream")
	if err != nil {
		return fmt.Errorf("failed to get stream flag: %w", err)
	}
	formatFlag, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	ringSize, err := cmd.Flags().GetInt("ring")
	if err != nil {
		return fmt.Errorf("failed to get ring flag: %w", err)
	}
	heartbeatFlag, err := cmd.Flags().GetDuration("heartbeat")
	if err != nil {
		return fmt.Errorf("failed to get heartbeat flag: %w", err)
	}
	timeout, err := cmd.Flags().GetDuration("timeout")
	if err != nil {
		return fmt.Errorf("failed to get timeout flag: %w", err)
	}
	showTimings, err := cmd.Flags().GetBool("timings")
	if err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}
	cpuProfile, err := cmd.Flags().GetString("cpuprofile")
	if err != nil {
		return fmt.Errorf("failed to get cpuprofile flag: %w", err)
	}
	memProfile, err := cmd.Flags().GetString("memprofile")
	if err != nil {
		return fmt.Errorf("failed to get memprofile flag: %w", err)
	}

	timer := observ.NewTimer()

	phase := timer.Begin("configure")
	fileCfg, err := config.Discover(filepath.Dir(scriptPath))
	if err != nil {
		return err
	}

	cfg := session.Config{Overrides: fileCfg.Overrides()}

	if cmd.Flags().Changed("depth") {
		cfg.MaxDepth = depthFlag
	} else {
		cfg.MaxDepth = fileCfg.Trace.Depth
	}

	if filterFlag != "" {
		cfg.Filter, err = session.ParseFilter(filterFlag)
		if err != nil {
			return err
		}
	} else {
		cfg.Filter = fileCfg.Filter()
	}

	if cmd.Flags().Changed("heartbeat") {
		cfg.Heartbeat = heartbeatFlag
	} else {
		cfg.Heartbeat, err = fileCfg.HeartbeatInterval()
		if err != nil {
			return err
		}
	}

	format := fileCfg.Format()
	if formatFlag != "" {
		format, err = trace.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
	}

	if streamDest == "" {
		streamDest = fileCfg.Output.Stream
	}

	var sinks []trace.Sink
	var streamFile *os.File
	if streamDest != "" {
		var w io.Writer = cmd.OutOrStdout()
		if streamDest != "-" {
			streamFile, err = os.Create(streamDest)
			if err != nil {
				return fmt.Errorf("failed to open stream destination: %w", err)
			}
			w = streamFile
		}
		sinks = append(sinks, trace.NewStreamSink(w, format))
	}
	var ring *trace.RingSink
	if ringSize > 0 {
		ring = trace.NewRingSink(ringSize)
		sinks = append(sinks, ring)
	}
	switch len(sinks) {
	case 0:
	case 1:
		cfg.Sink = sinks[0]
	default:
		cfg.Sink = trace.NewMultiSink(sinks...)
	}

	cfg.Logger = session.NopLogger
	if !quiet || showTimings {
		cfg.Logger = session.LoggerFunc(func(f string, args ...any) {
			fmt.Fprintf(cmd.ErrOrStderr(), "tracerlib: "+f+"\n", args...)
		})
	}
	timer.End(phase, "")

	if cpuProfile != "" {
		if err := prof.StartCPU(cpuProfile); err != nil {
			return err
		}
		defer prof.StopCPU()
	}

	ctx := cmd.Context()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctrl := session.NewController(cfg.Logger)
	runner, err := script.NewRunner(ctrl, script.Options{
		Packages: pkgs,
		Stdout:   cmd.OutOrStdout(),
		Stderr:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	phase = timer.Begin("run")
	sess, runErr := runner.Run(ctx, scriptPath, cfg)
	timer.End(phase, filepath.Base(scriptPath))

	if cfg.Sink != nil {
		if err := cfg.Sink.Close(); err != nil {
			cfg.Logger.Logf("stream close failed: %v", err)
		}
	}
	if streamFile != nil {
		if err := streamFile.Close(); err != nil {
			cfg.Logger.Logf("stream file close failed: %v", err)
		}
	}

	if sess == nil {
		return runErr
	}

	if runErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "script failed: %v\n", runErr)
		if ring != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "last %d events before failure:\n", len(ring.Snapshot()))
			if err := ring.Dump(cmd.ErrOrStderr(), trace.FormatText); err != nil {
				cfg.Logger.Logf("ring dump failed: %v", err)
			}
		}
	}

	if outPath != "" {
		phase = timer.Begin("save")
		if err := store.Save(outPath, sess); err != nil {
			return err
		}
		timer.End(phase, outPath)
		if !quiet {
			fmt.Fprintf(cmd.ErrOrStderr(), "session saved to %s\n", outPath)
		}
	}

	if memProfile != "" {
		if err := prof.WriteHeap(memProfile); err != nil {
			return err
		}
	}

	if !quiet {
		printRunSummary(cmd.OutOrStdout(), sess)
	}
	if showTimings {
		timer.Log(cfg.Logger.Logf)
	}
	return runErr
}

func printRunSummary(w io.Writer, sess *session.Session) {
	c := sess.Counters()
	fmt.Fprintf(w, "session %s: %d events, %d goroutines, %s wall\n",
		sess.ID(), sess.EventCount(), len(sess.Gids()), sess.Wall().Round(timeRounding))
	if c.Filtered > 0 || c.StrayReturns > 0 || c.Realigned > 0 {
		fmt.Fprintf(w, "  suppressed %d, stray returns %d, realigned %d\n",
			c.Filtered, c.StrayReturns, c.Realigned)
	}
	if sess.Panicked() {
		fmt.Fprintln(w, "  region panicked; open frames marked incomplete")
	}
	if err := stats.Render(w, stats.Collect(sess), summaryRowLimit); err != nil {
		fmt.Fprintf(w, "summary render failed: %v\n", err)
	}
}
