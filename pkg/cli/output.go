package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/seal-hub/CraftDroid/pkg/core"
	"github.com/seal-hub/CraftDroid/pkg/evaluate"
	"github.com/seal-hub/CraftDroid/pkg/migrate"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// Exit codes returned by Execute.
const (
	exitFailure     = 1
	exitConfig      = 2
	exitUnreachable = 3
	exitCancelled   = 130
)

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return exitCancelled
	}
	switch core.CategoryOf(err) {
	case core.ErrCategoryConfig:
		return exitConfig
	case core.ErrCategoryConnection:
		return exitUnreachable
	}
	return exitFailure
}

func printSetupStep(msg string) {
	fmt.Printf("  %s⏳ %s%s\n", color(colorCyan), msg, color(colorReset))
}

func printSetupSuccess(msg string) {
	fmt.Printf("  %s✓%s %s\n", color(colorGreen), color(colorReset), msg)
}

func printWarning(format string, args ...interface{}) {
	fmt.Printf("  %s⚠%s %s\n", color(colorYellow), color(colorReset), fmt.Sprintf(format, args...))
}

func onRound(r migrate.RoundStats) {
	status := fmt.Sprintf("%sfitness %.4f%s", color(colorBold), r.Fitness, color(colorReset))
	extra := ""
	if r.Backtracks > 0 {
		extra += fmt.Sprintf(", %d backtracks", r.Backtracks)
	}
	if r.Explored {
		extra += ", explored"
	}
	fmt.Printf("  %s[round %d]%s %s  %d events (gui %d, oracle %d, stepping %d, empty %d%s) %s%s%s\n",
		color(colorCyan), r.Index, color(colorReset), status,
		r.Events, r.GUI, r.Oracle, r.Stepping, r.Empty, extra,
		color(colorDim), formatDuration(r.Duration.Milliseconds()), color(colorReset))
}

func printEvents(events []core.Event) {
	for i, e := range events {
		desc := describeEvent(e)
		if e.Kind == core.KindEmpty {
			fmt.Printf("  %s%3d  %s%s\n", color(colorRed), i, desc, color(colorReset))
			continue
		}
		fmt.Printf("  %3d  %s %s(%.3f)%s\n", i, desc, color(colorDim), e.Score, color(colorReset))
	}
}

// describeEvent renders an event on one line.
func describeEvent(e core.Event) string {
	switch e.Kind {
	case core.KindEmpty:
		return "<no match>"
	case core.KindSys:
		return "SYS " + e.Action.String()
	}
	target := e.ResourceID
	if target == "" && e.Text != "" {
		target = fmt.Sprintf("%q", e.Text)
	}
	if target == "" && e.ContentDesc != "" {
		target = fmt.Sprintf("desc=%q", e.ContentDesc)
	}
	if target == "" {
		target = e.Class
	}
	return fmt.Sprintf("%-7s %s %s", e.Kind, e.Action.String(), target)
}

func printEvaluation(r evaluate.Result) {
	fmt.Println()
	fmt.Printf("  %-8s %5s %5s %5s %5s %10s %8s\n", "", "tp", "tn", "fp", "fn", "precision", "recall")
	fmt.Println("  " + strings.Repeat("─", 52))
	for _, row := range []struct {
		name string
		c    evaluate.Counts
	}{{"gui", r.GUI}, {"oracle", r.Oracle}, {"total", r.GUI.Add(r.Oracle)}} {
		fmt.Printf("  %-8s %5d %5d %5d %5d %10.3f %8.3f\n",
			row.name, row.c.TP, row.c.TN, row.c.FP, row.c.FN, row.c.Precision(), row.c.Recall())
	}
	fmt.Printf("\n  Finished: %d/%d\n", r.Finished, r.Total)
}

func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}
