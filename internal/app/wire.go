//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"

	"github.com/dungeondelvers/delvectl/internal/adapters"
	"github.com/dungeondelvers/delvectl/internal/config"
	"github.com/dungeondelvers/delvectl/internal/logging"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// InitApp creates a fully wired App instance
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, error) {
	wire.Build(
		// Configuration
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Use cases
		usecase.NewDeployContracts,
		usecase.NewWireContracts,
		usecase.NewVerifyContracts,
		usecase.NewPropagateConfig,
		usecase.NewReportRun,
		usecase.NewOrchestrateRun,

		// App
		NewApp,
	)
	return nil, nil
}
