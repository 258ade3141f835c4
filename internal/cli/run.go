package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dungeondelvers/delvectl/internal/cli/render"
	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

type runFunc func(ctx context.Context, params usecase.RunParams) (*models.RunReport, error)

// NewDeployCmd creates the deploy command
func NewDeployCmd() *cobra.Command {
	var params usecase.RunParams

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy, wire, verify and propagate a manifest",
		Long: `Deploy every contract of the manifest that has no address yet, in dependency
order, then run the wire operations, verify sources on the explorer and update
the propagation targets.

Examples:
  delvectl deploy --manifest deploy/v26.json
  delvectl deploy --manifest deploy/v26.json --resume-from .delve/reports/run-20260314T092653Z-3f2b8c1a.json
  delvectl deploy --manifest deploy/v26.yaml --addresses deployed.env --skip-verify --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			return runAndRender(cmd, app.OrchestrateRun.Deploy, params)
		},
	}

	addManifestFlags(cmd, &params)
	cmd.Flags().StringVar(&params.ResumeFrom, "resume-from", "", "Seed addresses from a previous run report")
	cmd.Flags().BoolVar(&params.SkipVerify, "skip-verify", false, "Do not verify sources on the explorer")
	cmd.Flags().BoolVar(&params.SkipPropagate, "skip-propagate", false, "Do not update propagation targets")
	cmd.Flags().BoolVarP(&params.AssumeYes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

// NewVerifyOnlyCmd creates the verify-only command
func NewVerifyOnlyCmd() *cobra.Command {
	var params usecase.RunParams

	cmd := &cobra.Command{
		Use:   "verify-only",
		Short: "Verify the sources of already deployed contracts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			return runAndRender(cmd, app.OrchestrateRun.VerifyOnly, params)
		},
	}

	addManifestFlags(cmd, &params)
	_ = cmd.MarkFlagRequired("addresses")
	return cmd
}

// NewPropagateOnlyCmd creates the propagate-only command
func NewPropagateOnlyCmd() *cobra.Command {
	var params usecase.RunParams

	cmd := &cobra.Command{
		Use:   "propagate-only",
		Short: "Write known addresses into the propagation targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			return runAndRender(cmd, app.OrchestrateRun.PropagateOnly, params)
		},
	}

	addManifestFlags(cmd, &params)
	_ = cmd.MarkFlagRequired("addresses")
	return cmd
}

// NewPlanCmd creates the plan command
func NewPlanCmd() *cobra.Command {
	var params usecase.RunParams

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the deployment order without touching the chain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}
			plan, err := app.OrchestrateRun.Plan(cmd.Context(), params)
			if err != nil {
				return err
			}
			stopProgress(cmd)
			return render.NewPlanRenderer(cmd.OutOrStdout()).Render(plan)
		},
	}

	addManifestFlags(cmd, &params)
	return cmd
}

func addManifestFlags(cmd *cobra.Command, params *usecase.RunParams) {
	cmd.Flags().StringVarP(&params.ManifestPath, "manifest", "m", "", "Deployment manifest (JSON, YAML or TOML)")
	cmd.Flags().StringVarP(&params.AddressesPath, "addresses", "a", "", "Known addresses: JSON map, run report or dotenv file")
	_ = cmd.MarkFlagRequired("manifest")
}

// runAndRender executes a run command, prints its report and turns failed
// items into a non-zero exit
func runAndRender(cmd *cobra.Command, run runFunc, params usecase.RunParams) error {
	report, err := run(cmd.Context(), params)
	stopProgress(cmd)
	if report != nil {
		if renderErr := render.NewRunRenderer(cmd.OutOrStdout()).Render(report); renderErr != nil {
			return renderErr
		}
	}
	if err != nil {
		return err
	}
	if report.HasFailures() {
		return fmt.Errorf("%w: %d failed item(s), see %s", domain.ErrRunHasFailures, report.FailedCount(), report.Path)
	}
	return nil
}
