package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/noah-isme/evalmate-go-client/internal/models"
	"github.com/noah-isme/evalmate-go-client/internal/progress"
)

var (
	titleColor     = color.New(color.FgCyan, color.Bold)
	successColor   = color.New(color.FgGreen)
	warnColor      = color.New(color.FgYellow)
	errorColor     = color.New(color.FgRed)
	assistantColor = color.New(color.FgMagenta)
)

func (a *App) titlef(format string, args ...interface{}) {
	titleColor.Fprintf(a.out, format+"\n", args...)
}

func (a *App) successf(format string, args ...interface{}) {
	successColor.Fprintf(a.out, format+"\n", args...)
}

func (a *App) warnf(format string, args ...interface{}) {
	warnColor.Fprintf(a.out, format+"\n", args...)
}

func (a *App) errorf(format string, args ...interface{}) {
	errorColor.Fprintf(a.out, "ERROR: "+format+"\n", args...)
}

func (a *App) banner() {
	a.titlef("EvalMate")
	fmt.Fprintln(a.out, "AI-assisted assignment grading, from the terminal.")
	fmt.Fprintln(a.out)
}

func (a *App) stepf(n int, label string) {
	fmt.Fprintf(a.out, "\nStep %d/5: %s\n", n, label)
}

func (a *App) renderResult(result models.EvaluationResult) {
	a.successf("Evaluation complete.")
	if result.IsNarrative() {
		a.renderNarrative(result)
	} else {
		a.renderItemTable(result)
	}

	fmt.Fprintln(a.out)
	scoreColorFor(result.Total).Fprintf(a.out, "%s - Total score: %.1f/100\n", verdict(result.Total), result.Total)
	if result.OverallFeedback != "" {
		fmt.Fprintf(a.out, "Overall feedback: %s\n", result.OverallFeedback)
	}
}

func (a *App) renderNarrative(result models.EvaluationResult) {
	a.titlef("\nEvaluation")
	fmt.Fprintln(a.out, result.NarrativeEvaluation)

	if len(result.Strengths) > 0 {
		a.titlef("\nStrengths")
		for _, s := range result.Strengths {
			fmt.Fprintf(a.out, "  - %s\n", s)
		}
	}
	if len(result.Gaps) > 0 {
		a.titlef("\nGaps")
		for _, g := range result.Gaps {
			fmt.Fprintf(a.out, "  - %s\n", g)
		}
	}
	if result.Guidance != "" {
		a.titlef("\nGuidance")
		fmt.Fprintln(a.out, result.Guidance)
	}
}

func (a *App) renderItemTable(result models.EvaluationResult) {
	if len(result.Items) == 0 {
		return
	}
	fmt.Fprintf(a.out, "\n%-20s %7s  %s\n", "Criterion", "Score", "Justification")
	for _, item := range result.Items {
		scoreColorFor(item.Score).Fprintf(a.out, "%-20s %7.1f  %s\n",
			truncate(item.RubricItemID, 20), item.Score, truncate(item.Justification, 80))
	}
}

func scoreColorFor(score float64) *color.Color {
	switch {
	case score >= 80:
		return successColor
	case score >= 60:
		return warnColor
	default:
		return errorColor
	}
}

func verdict(total float64) string {
	switch {
	case total >= 80:
		return "EXCELLENT"
	case total >= 60:
		return "GOOD"
	default:
		return "NEEDS WORK"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// ProgressRenderer draws estimator updates onto a single terminal line,
// rewriting it in place and clearing it when progress goes quiet. It is
// wired as the estimator's update callback, so Render must tolerate calls
// from the estimator's goroutines.
type ProgressRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	visible bool
}

// NewProgressRenderer constructs a renderer writing to out.
func NewProgressRenderer(out io.Writer) *ProgressRenderer {
	return &ProgressRenderer{out: out}
}

// Render draws one update.
func (r *ProgressRenderer) Render(u progress.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u == (progress.Update{}) {
		if r.visible {
			fmt.Fprint(r.out, "\r\x1b[K")
			r.visible = false
		}
		return
	}
	fmt.Fprintf(r.out, "\r\x1b[K  %s... %3d%%", u.Label, u.Percent)
	r.visible = true
}
