package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dungeondelvers/delvectl/internal/domain/models"
)

var (
	okIcon   = "✅"
	failIcon = "❌"
	skipIcon = "⏭️ "
)

// RunRenderer prints a run report: one line per item, then a summary table
type RunRenderer struct {
	out io.Writer
}

// NewRunRenderer creates a new run renderer
func NewRunRenderer(out io.Writer) *RunRenderer {
	return &RunRenderer{out: out}
}

// Render implements Renderer
func (r *RunRenderer) Render(report *models.RunReport) error {
	header := color.New(color.FgCyan, color.Bold)
	header.Fprintf(r.out, "Run %s (%s", report.RunID, report.Command)
	if report.ChainID != 0 {
		header.Fprintf(r.out, ", chain %d", report.ChainID)
	}
	header.Fprintln(r.out, ")")

	if report.Deploy != nil && len(report.Deploy.Entries) > 0 {
		r.section("Deployments")
		for _, e := range report.Deploy.Entries {
			r.deployLine(e)
		}
	}
	if report.Wire != nil && len(report.Wire.Entries) > 0 {
		r.section("Wiring")
		for _, e := range report.Wire.Entries {
			r.wireLine(e)
		}
	}
	if len(report.Verification) > 0 {
		r.section("Verification")
		for _, v := range report.Verification {
			r.verifyLine(v)
		}
	}
	if report.Propagation != nil && len(report.Propagation.Entries) > 0 {
		r.section("Config propagation")
		for _, e := range report.Propagation.Entries {
			r.propagationLine(e)
		}
	}

	if len(report.Summary) > 0 {
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, summaryTable(report.Summary))
	}

	if report.Path != "" {
		fmt.Fprintf(r.out, "\nReport: %s\n", report.Path)
	}
	if report.HasFailures() {
		color.New(color.FgRed, color.Bold).Fprintf(r.out, "%d item(s) failed\n", report.FailedCount())
	}
	return nil
}

func (r *RunRenderer) section(title string) {
	fmt.Fprintln(r.out)
	color.New(color.Bold).Fprintln(r.out, title)
}

func (r *RunRenderer) deployLine(e *models.DeployEntry) {
	name := color.New(color.Bold).Sprint(e.Contract)
	switch e.Status {
	case models.DeployStatusDeployed:
		fmt.Fprintf(r.out, "  %s %s deployed at %s (block %d, tx %s)\n", okIcon, name, e.Address, e.Block, shortHash(e.TxHash))
	case models.DeployStatusSkipped:
		fmt.Fprintf(r.out, "  %s %s already at %s\n", skipIcon, name, e.Address)
	case models.DeployStatusBlocked:
		fmt.Fprintf(r.out, "  %s %s blocked: %s\n", failIcon, name, e.Error)
	default:
		fmt.Fprintf(r.out, "  %s %s failed%s: %s\n", failIcon, name, kindSuffix(string(e.ErrorKind)), e.Error)
	}
}

func (r *RunRenderer) wireLine(e *models.WireEntry) {
	label := color.New(color.Bold).Sprint(e.Op)
	switch e.Status {
	case models.WireStatusSucceeded:
		fmt.Fprintf(r.out, "  %s %s via %s (tx %s)\n", okIcon, label, e.Method, shortHash(e.TxHash))
	case models.WireStatusSkippedAlreadySet:
		fmt.Fprintf(r.out, "  %s %s already set\n", skipIcon, label)
	default:
		fmt.Fprintf(r.out, "  %s %s failed%s: %s\n", failIcon, label, kindSuffix(string(e.ErrorKind)), e.Error)
		for _, a := range e.Attempts {
			line := fmt.Sprintf("      %s: %s", a.Method, a.Outcome)
			if a.Reason != "" {
				line += " (" + a.Reason + ")"
			}
			color.New(color.Faint).Fprintln(r.out, line)
		}
	}
}

func (r *RunRenderer) verifyLine(v *models.VerificationRecord) {
	name := color.New(color.Bold).Sprint(v.ContractName)
	switch v.Status {
	case models.VerificationStatusVerified, models.VerificationStatusAlreadyVerified:
		fmt.Fprintf(r.out, "  %s %s %s", okIcon, name, v.Status)
		if v.ExplorerURL != "" {
			fmt.Fprintf(r.out, " %s", v.ExplorerURL)
		}
		fmt.Fprintln(r.out)
	case models.VerificationStatusSkipped:
		fmt.Fprintf(r.out, "  %s %s skipped (%s)\n", skipIcon, name, v.ErrorDetail)
	default:
		fmt.Fprintf(r.out, "  %s %s verification failed: %s\n", failIcon, name, v.ErrorDetail)
	}
}

func (r *RunRenderer) propagationLine(e *models.PropagationEntry) {
	switch e.Status {
	case models.PropagationStatusWritten:
		fmt.Fprintf(r.out, "  %s %s updated (%d keys", okIcon, e.FilePath, len(e.KeysUpdated))
		if len(e.KeysRemoved) > 0 {
			fmt.Fprintf(r.out, ", removed %s", strings.Join(e.KeysRemoved, ", "))
		}
		fmt.Fprintln(r.out, ")")
	case models.PropagationStatusUnchanged:
		fmt.Fprintf(r.out, "  %s %s unchanged\n", skipIcon, e.FilePath)
	default:
		fmt.Fprintf(r.out, "  %s %s failed: %s\n", failIcon, e.FilePath, e.Error)
	}
}

func summaryTable(summary []models.StageSummary) string {
	title := cases.Title(language.English)

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stage", "Succeeded", "Skipped", "Failed"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	for _, s := range summary {
		failed := fmt.Sprint(s.Failed)
		if s.Failed > 0 {
			failed = color.New(color.FgRed).Sprint(failed)
		}
		t.AppendRow(table.Row{title.String(s.Stage), s.Succeeded, s.Skipped, failed})
	}
	return t.Render()
}

func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:10] + "…" + hash[len(hash)-4:]
}

func kindSuffix(kind string) string {
	if kind == "" {
		return ""
	}
	return " [" + kind + "]"
}

var _ Renderer[*models.RunReport] = (*RunRenderer)(nil)
