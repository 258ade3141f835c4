package progress

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// SpinnerProgressReporter shows a spinner with the current stage and item
// and prints a line when a stage is done
type SpinnerProgressReporter struct {
	mu      sync.Mutex
	out     io.Writer
	spinner *spinner.Spinner

	stage      string
	stageStart time.Time
	stageItems int
	now        func() time.Time
}

// NewSpinnerProgressReporter creates a spinner-based progress reporter
// writing to out
func NewSpinnerProgressReporter(out io.Writer) *SpinnerProgressReporter {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.HideCursor = false

	return &SpinnerProgressReporter{
		out:     out,
		spinner: s,
		now:     time.Now,
	}
}

// OnProgress handles progress events
func (r *SpinnerProgressReporter) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Stage != r.stage {
		r.completeStage()
		r.stage = event.Stage
		r.stageStart = r.now()
		r.stageItems = 0
	}
	r.stageItems = event.Total

	if event.Spinner {
		r.spinner.Suffix = " " + stageLabel(event)
		if !r.spinner.Active() {
			r.spinner.Start()
		}
	} else if r.spinner.Active() {
		r.spinner.Stop()
	}
}

// Info prints an info message
func (r *SpinnerProgressReporter) Info(message string) {
	r.println(color.New(color.FgCyan), message)
}

// Error prints an error message
func (r *SpinnerProgressReporter) Error(message string) {
	r.println(color.New(color.FgRed), message)
}

// Stop completes the current stage and stops the spinner
func (r *SpinnerProgressReporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completeStage()
	r.stage = ""
}

func (r *SpinnerProgressReporter) println(c *color.Color, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	wasActive := r.spinner.Active()
	if wasActive {
		r.spinner.Stop()
	}
	_, _ = c.Fprintln(r.out, message)
	if wasActive {
		r.spinner.Start()
	}
}

// completeStage prints the summary line of the running stage. Callers hold mu.
func (r *SpinnerProgressReporter) completeStage() {
	if r.spinner.Active() {
		r.spinner.Stop()
	}
	if r.stage == "" {
		return
	}
	elapsed := r.now().Sub(r.stageStart).Round(time.Millisecond)
	_, _ = color.New(color.FgGreen).Fprintf(r.out, "✓ %s", stageName(r.stage))
	_, _ = fmt.Fprintf(r.out, " %d items (%s)\n", r.stageItems, elapsed)
}

func stageLabel(event usecase.ProgressEvent) string {
	label := stageName(event.Stage)
	if event.Total > 0 {
		label = fmt.Sprintf("%s [%d/%d]", label, event.Current, event.Total)
	}
	if event.Message != "" {
		label += " " + color.New(color.Bold).Sprint(event.Message)
	}
	return label
}

func stageName(stage string) string {
	switch stage {
	case models.StageDeploy:
		return "Deploying"
	case models.StageWire:
		return "Wiring"
	case models.StageVerify:
		return "Verifying"
	case models.StagePropagation:
		return "Propagating"
	}
	return stage
}

// Ensure SpinnerProgressReporter implements ProgressSink
var _ usecase.ProgressSink = (*SpinnerProgressReporter)(nil)
