package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// PlanRenderer prints the offline deployment plan
type PlanRenderer struct {
	out io.Writer
}

// NewPlanRenderer creates a new plan renderer
func NewPlanRenderer(out io.Writer) *PlanRenderer {
	return &PlanRenderer{out: out}
}

// Render implements Renderer
func (r *PlanRenderer) Render(plan *usecase.PlanResult) error {
	name := plan.Manifest.Name
	if name == "" {
		name = plan.Manifest.Path
	}
	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Plan for %s", name)
	if plan.Manifest.ChainID != 0 {
		color.New(color.FgCyan, color.Bold).Fprintf(r.out, " (chain %d)", plan.Manifest.ChainID)
	}
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out)

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Contract", "Depends on", "Action"})
	for i, c := range plan.Order {
		action := color.New(color.FgYellow).Sprint("deploy")
		if c.HasAddress() {
			action = color.New(color.FgGreen).Sprintf("use %s", c.Address.Hex())
		}
		deps := "-"
		if len(c.DependsOn) > 0 {
			deps = strings.Join(c.DependsOn, ", ")
		}
		t.AppendRow(table.Row{i + 1, c.Name, deps, action})
	}
	fmt.Fprintln(r.out, t.Render())

	fmt.Fprintf(r.out, "\n%d to deploy, %d already known\n", len(plan.Pending), len(plan.Order)-len(plan.Pending))

	if len(plan.WireOps) > 0 {
		fmt.Fprintln(r.out)
		color.New(color.Bold).Fprintln(r.out, "Wire operations")
		for i, op := range plan.WireOps {
			fmt.Fprintf(r.out, "  %d. %s\n", i+1, op.Label())
			if len(op.CandidateMethods) > 1 {
				color.New(color.Faint).Fprintf(r.out, "     candidates: %v\n", op.CandidateMethods)
			}
		}
	}

	if len(plan.Targets) > 0 {
		fmt.Fprintln(r.out)
		color.New(color.Bold).Fprintln(r.out, "Propagation targets")
		for _, target := range plan.Targets {
			fmt.Fprintf(r.out, "  %s (%s)\n", target.FilePath, target.Format)
		}
	}
	return nil
}

var _ Renderer[*usecase.PlanResult] = (*PlanRenderer)(nil)
