package adapters

import (
	"github.com/google/wire"
	"github.com/spf13/afero"

	"github.com/dungeondelvers/delvectl/internal/adapters/blockchain"
	"github.com/dungeondelvers/delvectl/internal/adapters/fs"
	"github.com/dungeondelvers/delvectl/internal/adapters/interactive"
	"github.com/dungeondelvers/delvectl/internal/adapters/manifest"
	"github.com/dungeondelvers/delvectl/internal/adapters/metrics"
	"github.com/dungeondelvers/delvectl/internal/adapters/propagation"
	"github.com/dungeondelvers/delvectl/internal/adapters/verification"
	"github.com/dungeondelvers/delvectl/internal/usecase"
)

// ProvideFs provides the OS filesystem
func ProvideFs() afero.Fs {
	return afero.NewOsFs()
}

// FSSet provides filesystem-based implementations
var FSSet = wire.NewSet(
	ProvideFs,

	manifest.NewLoaderAdapter,
	wire.Bind(new(usecase.ManifestLoader), new(*manifest.LoaderAdapter)),

	fs.NewAddressBookAdapter,
	wire.Bind(new(usecase.AddressBookLoader), new(*fs.AddressBookAdapter)),

	fs.NewReportStoreAdapter,
	wire.Bind(new(usecase.ReportStore), new(*fs.ReportStoreAdapter)),
)

// PropagationSet provides the downstream config writers
var PropagationSet = wire.NewSet(
	propagation.NewFileStore,
	wire.Bind(new(usecase.ConfigFileStore), new(*propagation.FileStore)),
	propagation.Formatters,
)

// BlockchainSet provides the chain client
var BlockchainSet = wire.NewSet(
	blockchain.NewClientAdapter,
	wire.Bind(new(usecase.ChainClient), new(*blockchain.ClientAdapter)),
)

// VerificationSet provides the block explorer client
var VerificationSet = wire.NewSet(
	verification.NewEtherscanAdapter,
	wire.Bind(new(usecase.ExplorerClient), new(*verification.EtherscanAdapter)),
)

// InteractiveSet provides interactive implementations
var InteractiveSet = wire.NewSet(
	interactive.NewConfirmerAdapter,
	wire.Bind(new(usecase.Confirmer), new(*interactive.ConfirmerAdapter)),
)

// MetricsSet provides the metrics recorder
var MetricsSet = wire.NewSet(
	metrics.NewRecorder,
	wire.Bind(new(usecase.MetricsRecorder), new(*metrics.Recorder)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	FSSet,
	PropagationSet,
	BlockchainSet,
	VerificationSet,
	InteractiveSet,
	MetricsSet,
)
