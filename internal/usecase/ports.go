package usecase

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/pkg/abiconv"
)

// ErrAborted is returned when the operator declines to continue
var ErrAborted = errors.New("aborted by operator")

// ErrNotYetIndexed is returned by an ExplorerClient when the explorer does
// not know the contract bytecode yet. Submission is retried on it.
var ErrNotYetIndexed = errors.New("contract not yet indexed by explorer")

// ChainClient talks to the RPC endpoint and owns the signer and its nonce.
// It is the only component that sends transactions.
type ChainClient interface {
	ChainID(ctx context.Context) (uint64, error)
	SignerAddress(ctx context.Context) (common.Address, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
	// Call executes a read-only call and decodes the outputs of method
	Call(ctx context.Context, to common.Address, method *abiconv.Method, args []any) ([]any, error)
	// Send signs and submits a transaction and waits for its confirmations
	Send(ctx context.Context, to common.Address, method *abiconv.Method, args []any) (*TxReceipt, error)
	// Deploy creates a contract from creation bytecode and constructor args
	Deploy(ctx context.Context, bytecode []byte, contractABI *abi.ABI, args []any) (*DeployResult, error)
}

// TxReceipt is the part of a mined receipt the run records
type TxReceipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// DeployResult is returned by ChainClient.Deploy
type DeployResult struct {
	Address     common.Address
	Receipt     TxReceipt
	EncodedArgs []byte // ABI encoded constructor arguments
}

// ExplorerStatus is the state of a verification request on the explorer
type ExplorerStatus string

const (
	ExplorerStatusPending         ExplorerStatus = "pending"
	ExplorerStatusVerified        ExplorerStatus = "verified"
	ExplorerStatusAlreadyVerified ExplorerStatus = "already-verified"
	ExplorerStatusFailed          ExplorerStatus = "failed"
)

// VerificationRequest is the payload of a source verification submission
type VerificationRequest struct {
	ChainID          uint64
	Address          common.Address
	ContractName     string
	CompilerVersion  string
	SourceCode       string // solc standard JSON input
	ConstructorArgs  string // hex, no 0x prefix
	OptimizationRuns int
	EVMVersion       string
	LicenseType      int
}

// SubmitResult is the explorer answer to a submission
type SubmitResult struct {
	GUID            string
	AlreadyVerified bool
}

// ExplorerClient submits and polls Etherscan-compatible source verification
type ExplorerClient interface {
	Submit(ctx context.Context, req VerificationRequest) (*SubmitResult, error)
	CheckStatus(ctx context.Context, chainID uint64, guid string) (ExplorerStatus, string, error)
	ContractURL(address common.Address) string
}

// ManifestLoader parses a manifest file and attaches artifacts and sources
type ManifestLoader interface {
	Load(ctx context.Context, path string) (*models.Manifest, error)
}

// AddressBookLoader reads a name -> address map (JSON map, run report or dotenv)
type AddressBookLoader interface {
	Load(ctx context.Context, path string) (map[string]common.Address, error)
}

// ReportStore persists run reports. Saved reports are never overwritten.
type ReportStore interface {
	Save(ctx context.Context, report *models.RunReport) (string, error)
	Load(ctx context.Context, path string) (*models.RunReport, error)
}

// PropagatedValue is one address rendered into a downstream file
type PropagatedValue struct {
	Contract string
	Key      string
	Address  common.Address
	Block    uint64
}

// MergeResult is the new content of a propagation target
type MergeResult struct {
	Content []byte
	Updated []string
	Removed []string
}

// ConfigFormatter merges addresses into the existing content of one file
// format, keeping everything it does not manage
type ConfigFormatter interface {
	Format() models.PropagationFormat
	Merge(existing []byte, target *models.PropagationTarget, values []PropagatedValue) (*MergeResult, error)
}

// ConfigFileStore reads and atomically replaces downstream config files
type ConfigFileStore interface {
	Read(path string) ([]byte, bool, error)
	WriteAtomic(path string, data []byte) error
}

// MetricsRecorder records run outcomes
type MetricsRecorder interface {
	ObserveDeploy(entry *models.DeployEntry)
	ObserveWire(entry *models.WireEntry)
	ObserveVerification(record *models.VerificationRecord)
	ObservePropagation(entry *models.PropagationEntry)
	ObserveRun(report *models.RunReport)
	Flush() error
}

// Confirmer asks the operator before anything is sent on-chain
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata interface{}
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}

// NopMetrics is a no-op implementation of MetricsRecorder
type NopMetrics struct{}

func (NopMetrics) ObserveDeploy(*models.DeployEntry)             {}
func (NopMetrics) ObserveWire(*models.WireEntry)                 {}
func (NopMetrics) ObserveVerification(*models.VerificationRecord) {}
func (NopMetrics) ObservePropagation(*models.PropagationEntry)   {}
func (NopMetrics) ObserveRun(*models.RunReport)                  {}
func (NopMetrics) Flush() error                                  { return nil }
