package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dungeondelvers/delvectl/internal/adapters/progress"
	"github.com/dungeondelvers/delvectl/internal/app"
	"github.com/dungeondelvers/delvectl/internal/config"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// contextKey is the type for context keys
type contextKey string

const (
	// appKey is the context key for the app instance
	appKey contextKey = "app"
	// sinkKey is the context key for the progress sink
	sinkKey contextKey = "sink"
)

// stoppableSink is a progress sink that owns terminal state
type stoppableSink interface {
	usecase.ProgressSink
	Stop()
}

// session holds what a command run has to release once it returns
type session struct {
	sink   stoppableSink
	cancel context.CancelFunc
}

func (s *session) close() {
	if s.sink != nil {
		s.sink.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd, _ := newRootCmd()
	return rootCmd
}

func newRootCmd() (*cobra.Command, *session) {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "delvectl",
		Short: "Deploy, wire and verify the DungeonDelvers contracts",
		Long: `delvectl deploys a manifest of interdependent contracts in dependency order,
wires their cross-references, verifies their sources on the block explorer and
writes the resulting addresses into downstream config files.

Every run writes a JSON report that can be fed back with --resume-from.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip for help/version commands
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			v := config.SetupViper(config.FindProjectRoot(), cmd)

			if v.GetBool("non_interactive") || v.GetBool("debug") {
				s.sink = progress.NewNopSink()
			} else {
				s.sink = progress.NewSpinnerProgressReporter(cmd.ErrOrStderr())
			}

			appInstance, err := app.InitApp(v, s.sink)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}
			appInstance.Log.Debug("configuration loaded", "config", appInstance.Config)

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			ctx = context.WithValue(ctx, sinkKey, s.sink)
			if appInstance.Config.Timeout > 0 {
				ctx, s.cancel = context.WithTimeout(ctx, appInstance.Config.Timeout)
			}
			cmd.SetContext(ctx)
			return nil
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.Bool("debug", false, "Enable debug logging")
	flags.Bool("non-interactive", false, "Disable prompts and spinners")
	flags.String("reports-dir", "", "Directory for run reports (default .delve/reports)")
	flags.String("metrics-file", "", "Write Prometheus metrics to this textfile")
	flags.String("rpc-url", "", "RPC endpoint (overrides DELVE_RPC_URL)")
	flags.Duration("timeout", 0, "Abort the command after this duration (default 30m)")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "run",
		Title: "Run Commands",
	})

	for _, cmd := range []*cobra.Command{
		NewDeployCmd(),
		NewVerifyOnlyCmd(),
		NewPropagateOnlyCmd(),
		NewPlanCmd(),
	} {
		cmd.GroupID = "run"
		rootCmd.AddCommand(cmd)
	}

	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd, s
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	if err := run(newRootCmd()); err != nil {
		fmt.Fprintln(os.Stderr, formatError(err))
		return 1
	}
	return 0
}

// run executes the command tree and releases the session whether or not the
// command failed. Cobra skips post-run hooks on error.
func run(rootCmd *cobra.Command, s *session) error {
	defer s.close()
	return rootCmd.ExecuteContext(context.Background())
}

// getApp retrieves the app instance from the command context
func getApp(cmd *cobra.Command) (*app.App, error) {
	appInstance := cmd.Context().Value(appKey)
	if appInstance == nil {
		return nil, fmt.Errorf("app not initialized")
	}

	app, ok := appInstance.(*app.App)
	if !ok {
		return nil, fmt.Errorf("invalid app instance")
	}

	return app, nil
}

// stopProgress clears the spinner before results are printed
func stopProgress(cmd *cobra.Command) {
	if sink, ok := cmd.Context().Value(sinkKey).(stoppableSink); ok {
		sink.Stop()
	}
}
