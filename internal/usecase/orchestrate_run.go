package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/config"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/registry"
)

// Command names recorded in run reports
const (
	CommandDeploy        = "deploy"
	CommandVerifyOnly    = "verify-only"
	CommandPropagateOnly = "propagate-only"
)

// RunParams are the inputs shared by the run commands
type RunParams struct {
	ManifestPath  string
	AddressesPath string // JSON map, run report or dotenv
	ResumeFrom    string // previous run report
	SkipVerify    bool
	SkipPropagate bool
	AssumeYes     bool
}

// PlanResult is the offline view of what a deploy would do
type PlanResult struct {
	Manifest *models.Manifest
	Order    []*models.ContractSpec
	Pending  []*models.ContractSpec
	WireOps  []*models.WireOp
	Targets  []*models.PropagationTarget
	Seeded   []string
}

// OrchestrateRun drives the pipeline Deployer -> Wiring Engine -> Verifier ->
// Config Propagator -> Run Reporter for every command
type OrchestrateRun struct {
	cfg        *config.RuntimeConfig
	manifests  ManifestLoader
	books      AddressBookLoader
	chain      ChainClient
	deployer   *DeployContracts
	wirer      *WireContracts
	verifier   *VerifyContracts
	propagator *PropagateConfig
	reporter   *ReportRun
	confirmer  Confirmer
	progress   ProgressSink
	log        *slog.Logger
}

// NewOrchestrateRun creates the run orchestrator
func NewOrchestrateRun(
	cfg *config.RuntimeConfig,
	manifests ManifestLoader,
	books AddressBookLoader,
	chain ChainClient,
	deployer *DeployContracts,
	wirer *WireContracts,
	verifier *VerifyContracts,
	propagator *PropagateConfig,
	reporter *ReportRun,
	confirmer Confirmer,
	progress ProgressSink,
	log *slog.Logger,
) *OrchestrateRun {
	return &OrchestrateRun{
		cfg:        cfg,
		manifests:  manifests,
		books:      books,
		chain:      chain,
		deployer:   deployer,
		wirer:      wirer,
		verifier:   verifier,
		propagator: propagator,
		reporter:   reporter,
		confirmer:  confirmer,
		progress:   progress,
		log:        log.With("component", "Orchestrator"),
	}
}

// Deploy runs the full pipeline. Manifest, seeding and connection problems
// are returned before any transaction is sent; per-item failures are only
// recorded in the report.
func (o *OrchestrateRun) Deploy(ctx context.Context, params RunParams) (*models.RunReport, error) {
	reg, err := o.prepare(ctx, params)
	if err != nil {
		return nil, err
	}
	manifest := reg.Manifest()

	chainID, err := o.resolveChain(ctx, manifest)
	if err != nil {
		return nil, err
	}
	signer, err := o.chain.SignerAddress(ctx)
	if err != nil {
		return nil, err
	}
	reg.SetSigner(signer)

	pending := reg.Pending()
	chain := newGatedChain(o.chain, o.confirmation(params, chainID, signer, len(pending), len(reg.WireOps())))

	report := o.reporter.Start(CommandDeploy, manifest)
	report.ChainID = chainID
	report.Signer = signer.Hex()

	o.progress.Info(fmt.Sprintf("Deploying %d of %d contracts", len(pending), len(reg.Contracts())))
	report.Deploy = o.deployer.withChain(chain).DeployAll(ctx, reg)
	if err := chain.refused(); err != nil {
		return nil, err
	}

	if len(reg.WireOps()) > 0 {
		o.progress.Info(fmt.Sprintf("Executing %d wire operations", len(reg.WireOps())))
	}
	report.Wire = o.wirer.withChain(chain).ExecuteAll(ctx, reg)
	if err := chain.refused(); err != nil {
		return nil, err
	}

	if !params.SkipVerify {
		report.Verification = o.verifier.forChain(chainID).VerifyAll(ctx, reg, report.Deploy)
	}
	if !params.SkipPropagate {
		report.Propagation = o.propagator.Propagate(ctx, reg)
	}

	return o.reporter.Finish(ctx, report)
}

// VerifyOnly verifies every contract with a known address
func (o *OrchestrateRun) VerifyOnly(ctx context.Context, params RunParams) (*models.RunReport, error) {
	if params.AddressesPath == "" && params.ResumeFrom == "" {
		return nil, fmt.Errorf("an addresses file is required")
	}
	reg, err := o.prepare(ctx, params)
	if err != nil {
		return nil, err
	}
	o.trySigner(ctx, reg)

	chainID, err := o.resolveChain(ctx, reg.Manifest())
	if err != nil {
		var mismatch *domain.ChainMismatchError
		if errors.As(err, &mismatch) {
			return nil, err
		}
		// Verification only talks to the explorer
		o.log.Warn("RPC unavailable, using the configured chain id", "chain_id", o.cfg.Network.ChainID, "error", err)
		chainID = o.cfg.Network.ChainID
	}

	report := o.reporter.Start(CommandVerifyOnly, reg.Manifest())
	report.ChainID = chainID
	report.Verification = o.verifier.forChain(chainID).VerifyAll(ctx, reg, nil)
	return o.reporter.Finish(ctx, report)
}

// PropagateOnly writes the known addresses into the downstream config files
func (o *OrchestrateRun) PropagateOnly(ctx context.Context, params RunParams) (*models.RunReport, error) {
	if params.AddressesPath == "" && params.ResumeFrom == "" {
		return nil, fmt.Errorf("an addresses file is required")
	}
	reg, err := o.prepare(ctx, params)
	if err != nil {
		return nil, err
	}

	report := o.reporter.Start(CommandPropagateOnly, reg.Manifest())
	report.Propagation = o.propagator.Propagate(ctx, reg)
	return o.reporter.Finish(ctx, report)
}

// Plan loads and validates the manifest without touching the chain
func (o *OrchestrateRun) Plan(ctx context.Context, params RunParams) (*PlanResult, error) {
	reg, err := o.prepare(ctx, params)
	if err != nil {
		return nil, err
	}
	seeded := make([]string, 0)
	for _, c := range reg.Contracts() {
		if c.HasAddress() {
			seeded = append(seeded, c.Name)
		}
	}
	return &PlanResult{
		Manifest: reg.Manifest(),
		Order:    reg.TopologicalOrder(),
		Pending:  reg.Pending(),
		WireOps:  reg.WireOps(),
		Targets:  reg.Targets(),
		Seeded:   seeded,
	}, nil
}

// prepare loads the manifest, builds the registry and seeds known addresses
func (o *OrchestrateRun) prepare(ctx context.Context, params RunParams) (*registry.Registry, error) {
	manifest, err := o.manifests.Load(ctx, params.ManifestPath)
	if err != nil {
		return nil, err
	}
	reg, err := registry.Load(manifest)
	if err != nil {
		return nil, err
	}

	for _, source := range []string{params.ResumeFrom, params.AddressesPath} {
		if source == "" {
			continue
		}
		book, err := o.books.Load(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("failed to load addresses from %s: %w", source, err)
		}
		if signer, ok := book[models.SignerRef]; ok {
			reg.SetSigner(signer)
		}
		seeded, err := reg.SeedAddresses(book)
		if err != nil {
			return nil, err
		}
		o.log.Debug("seeded addresses", "source", source, "contracts", seeded)
	}
	return reg, nil
}

// trySigner resolves $signer when a key is configured; verify-only works
// without one as long as no constructor argument needs it
func (o *OrchestrateRun) trySigner(ctx context.Context, reg *registry.Registry) {
	if _, ok := reg.Signer(); ok || o.cfg.Signer.PrivateKey == "" {
		return
	}
	signer, err := o.chain.SignerAddress(ctx)
	if err != nil {
		o.log.Warn("signer unavailable", "error", err)
		return
	}
	reg.SetSigner(signer)
}

// resolveChain returns the chain id served by the RPC endpoint and checks it
// against the configured and the manifest chain ids
func (o *OrchestrateRun) resolveChain(ctx context.Context, manifest *models.Manifest) (uint64, error) {
	chainID, err := o.chain.ChainID(ctx)
	if err != nil {
		var mismatch *domain.ChainMismatchError
		if errors.As(err, &mismatch) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to connect to %s: %w", o.cfg.Network.RPCURL, err)
	}
	if expected := o.cfg.Network.ChainID; expected != 0 && expected != chainID {
		return 0, &domain.ChainMismatchError{Source: "config", Expected: expected, Actual: chainID}
	}
	if manifest.ChainID != 0 && manifest.ChainID != chainID {
		return 0, &domain.ChainMismatchError{Source: "manifest", Expected: manifest.ChainID, Actual: chainID}
	}
	return chainID, nil
}

// confirmation builds the question asked before the first transaction.
// Non-interactive runs must pass --yes.
func (o *OrchestrateRun) confirmation(params RunParams, chainID uint64, signer common.Address, deploys, wireOps int) func(ctx context.Context) error {
	if params.AssumeYes {
		return nil
	}
	return func(ctx context.Context) error {
		if o.cfg.NonInteractive {
			return ErrConfirmationRequired
		}
		// keep the spinner off the prompt line
		if s, ok := o.progress.(interface{ Stop() }); ok {
			s.Stop()
		}
		prompt := fmt.Sprintf("Deploy %d contracts and run up to %d wire ops on chain %d as %s", deploys, wireOps, chainID, signer.Hex())
		ok, err := o.confirmer.Confirm(ctx, prompt)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
		return nil
	}
}
