package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"tracerlib/internal/callgraph"
	"tracerlib/internal/classify"
	"tracerlib/internal/session"
	"tracerlib/internal/stats"
	"tracerlib/internal/store"
	"tracerlib/internal/trace"
)

var showCmd = &cobra.Command{
	Use:   "show [flags] <file" + store.Ext + ">",
	Short: "Print a recorded session as a call tree or event stream",
	Args:  cobra.ExactArgs(1),
	RunE:  showSession,
}

func init() {
	f := showCmd.Flags()
	f.Bool("events", false, "dump the raw event stream instead of the call tree")
	f.String("format", "text", "event stream format (text|ndjson|chrome)")
	f.StringSlice("classes", nil, "show only these classes (user, stdlib, unknown)")
}

func showSession(cmd *cobra.Command, args []string) error {
	quiet, err := quietMode(cmd)
	if err != nil {
		return err
	}
	dumpEvents, err := cmd.Flags().GetBool("events")
	if err != nil {
		return fmt.Errorf("failed to get events flag: %w", err)
	}
	formatFlag, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	classNames, err := cmd.Flags().GetStringSlice("classes")
	if err != nil {
		return fmt.Errorf("failed to get classes flag: %w", err)
	}

	sess, err := store.Load(args[0])
	if err != nil {
		return err
	}

	if dumpEvents {
		format, err := trace.ParseFormat(formatFlag)
		if err != nil {
			return err
		}
		return dumpEventStream(cmd.OutOrStdout(), sess, format)
	}

	keep, err := parseClassSet(classNames)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !quiet {
		printSessionHeader(out, sess)
	}
	for _, root := range sess.Roots() {
		printTree(out, root, keep)
	}
	return nil
}

func dumpEventStream(w io.Writer, sess *session.Session, format trace.Format) error {
	sink := trace.NewStreamSink(w, format)
	for _, ev := range sess.Events() {
		sink.Emit(&ev)
	}
	return sink.Close()
}

// parseClassSet turns --classes values into a membership set; nil means all.
func parseClassSet(names []string) (map[classify.Class]bool, error) {
	if len(names) == 0 {
		return nil, nil
	}
	keep := make(map[classify.Class]bool, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "user":
			keep[classify.ClassUser] = true
		case "stdlib", "std":
			keep[classify.ClassStdlib] = true
		case "unknown":
			keep[classify.ClassUnknown] = true
		default:
			return nil, fmt.Errorf("unknown class %q (expected: user, stdlib or unknown)", name)
		}
	}
	return keep, nil
}

func printSessionHeader(w io.Writer, sess *session.Session) {
	c := sess.Counters()
	fmt.Fprintf(w, "session %s  events=%d  goroutines=%d  wall=%s\n",
		sess.ID(), sess.EventCount(), len(sess.Gids()), sess.Wall().Round(timeRounding))
	if sess.Panicked() {
		fmt.Fprintln(w, "region panicked")
	}
	if c.Filtered > 0 || c.StrayReturns > 0 || c.Realigned > 0 {
		fmt.Fprintf(w, "suppressed=%d stray=%d realigned=%d\n",
			c.Filtered, c.StrayReturns, c.Realigned)
	}
}

// printTree writes one root's subtree with two-space indentation. A class
// filter hides non-matching nodes but still descends into their children,
// re-parenting visible descendants at the hidden node's indent level.
func printTree(w io.Writer, n *callgraph.Node, keep map[classify.Class]bool) {
	printNode(w, n, 0, keep)
}

func printNode(w io.Writer, n *callgraph.Node, indent int, keep map[classify.Class]bool) {
	next := indent
	if keep == nil || keep[n.Class] {
		fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", indent), nodeLine(n))
		next = indent + 1
	}
	for _, child := range n.Children {
		printNode(w, child, next, keep)
	}
}

func nodeLine(n *callgraph.Node) string {
	var b strings.Builder
	b.WriteString(stats.ClassColor(n.Class).Sprint(n.Name()))
	if n.Returned() {
		fmt.Fprintf(&b, " %s", n.Duration().Round(timeRounding))
	}
	if n.Incomplete {
		b.WriteString(" [incomplete]")
	}
	if n.Unterminated {
		b.WriteString(" [unterminated]")
	}
	if n.Elided > 0 {
		fmt.Fprintf(&b, " (+%d elided)", n.Elided)
	}
	return b.String()
}
