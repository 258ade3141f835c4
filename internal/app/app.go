package app

import (
	"log/slog"

	"github.com/dungeondelvers/delvectl/internal/domain/config"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig
	Log    *slog.Logger

	// Use cases
	OrchestrateRun *usecase.OrchestrateRun
	ReportRun      *usecase.ReportRun
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	log *slog.Logger,
	orchestrateRun *usecase.OrchestrateRun,
	reportRun *usecase.ReportRun,
) (*App, error) {
	return &App{
		Config:         cfg,
		Log:            log,
		OrchestrateRun: orchestrateRun,
		ReportRun:      reportRun,
	}, nil
}
