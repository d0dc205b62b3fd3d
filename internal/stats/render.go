package stats

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"tracerlib/internal/classify"
)

var classColors = map[classify.Class]*color.Color{
	classify.ClassUser:    color.New(color.FgGreen),
	classify.ClassStdlib:  color.New(color.FgBlue),
	classify.ClassUnknown: color.New(color.FgYellow),
}

// ClassColor returns the display color for a classification.
func ClassColor(c classify.Class) *color.Color {
	if cc, ok := classColors[c]; ok {
		return cc
	}
	return color.New(color.Reset)
}

const nameColumnWidth = 48

// Render writes the report as an aligned table. limit caps the number of
// rows; 0 renders all.
func Render(w io.Writer, r Report, limit int) error {
	p := message.NewPrinter(language.English)

	summary := p.Sprintf("sessions %d   events %d   calls %d   max depth %d   wall %s",
		r.Sessions, r.Events, r.Calls, r.MaxDepth, formatDuration(r.Wall))
	if _, err := fmt.Fprintln(w, summary); err != nil {
		return err
	}

	classLine := p.Sprintf("classes: %s %d   %s %d   %s %d",
		ClassColor(classify.ClassUser).Sprint("user"), r.ByClass[classify.ClassUser],
		ClassColor(classify.ClassStdlib).Sprint("stdlib"), r.ByClass[classify.ClassStdlib],
		ClassColor(classify.ClassUnknown).Sprint("unknown"), r.ByClass[classify.ClassUnknown])
	if _, err := fmt.Fprintln(w, classLine); err != nil {
		return err
	}

	if r.Dropped+r.Filtered+r.StrayReturns+r.Realigned > 0 {
		anomalies := p.Sprintf("suppressed: depth %d, filter %d   anomalies: stray returns %d, realigned %d",
			r.Dropped, r.Filtered, r.StrayReturns, r.Realigned)
		if _, err := fmt.Fprintln(w, anomalies); err != nil {
			return err
		}
	}

	if len(r.Rows) == 0 {
		return nil
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}

	header := fmt.Sprintf("%s  %-7s  %12s  %12s  %12s",
		pad("function", nameColumnWidth), "class", "calls", "cum", "self")
	if _, err := fmt.Fprintln(w, header); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, strings.Repeat("-", runewidth.StringWidth(header))); err != nil {
		return err
	}

	rows := r.Rows
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	for i := range rows {
		row := &rows[i]
		line := fmt.Sprintf("%s  %s  %12s  %12s  %12s",
			pad(row.name(), nameColumnWidth),
			ClassColor(row.Class).Sprint(pad(row.Class.String(), 7)),
			p.Sprintf("%d", row.Calls),
			formatDuration(row.Cum),
			formatDuration(row.Self))
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if limit > 0 && len(r.Rows) > limit {
		if _, err := p.Fprintf(w, "... %d more rows\n", len(r.Rows)-limit); err != nil {
			return err
		}
	}
	return nil
}

// pad truncates or right-pads s to exactly width display cells.
func pad(s string, width int) string {
	if runewidth.StringWidth(s) > width {
		return runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return fmt.Sprintf("%.3fms", float64(d)/float64(time.Millisecond))
}
