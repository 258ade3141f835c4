package usecase

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/registry"
)

// DeployContracts deploys every contract of the registry that has no address
// yet, in dependency order
type DeployContracts struct {
	chain    ChainClient
	progress ProgressSink
	metrics  MetricsRecorder
	log      *slog.Logger
}

// NewDeployContracts creates a new deploy use case
func NewDeployContracts(chain ChainClient, progress ProgressSink, metrics MetricsRecorder, log *slog.Logger) *DeployContracts {
	return &DeployContracts{
		chain:    chain,
		progress: progress,
		metrics:  metrics,
		log:      log.With("component", "Deployer"),
	}
}

// withChain returns a copy of the deployer sending through chain
func (d *DeployContracts) withChain(chain ChainClient) *DeployContracts {
	c := *d
	c.chain = chain
	return &c
}

// DeployAll walks the topological order. Contracts that already have an
// address are skipped. A failed deployment marks every contract depending on
// it as blocked while independent branches continue.
func (d *DeployContracts) DeployAll(ctx context.Context, reg *registry.Registry) *models.DeployReport {
	order := reg.TopologicalOrder()
	report := &models.DeployReport{Entries: make([]*models.DeployEntry, 0, len(order))}
	blockedBy := make(map[string]string)

	for i, c := range order {
		d.progress.OnProgress(ctx, ProgressEvent{
			Stage:   models.StageDeploy,
			Current: i + 1,
			Total:   len(order),
			Message: c.Name,
			Spinner: c.NeedsDeployment(),
		})

		entry := d.deployOne(ctx, reg, c, blockedBy)
		if entry.Status == models.DeployStatusFailed || entry.Status == models.DeployStatusBlocked {
			for _, dep := range reg.Dependents(c.Name) {
				if _, ok := blockedBy[dep.Name]; !ok && dep.NeedsDeployment() {
					blockedBy[dep.Name] = c.Name
				}
			}
		}

		d.metrics.ObserveDeploy(entry)
		report.Entries = append(report.Entries, entry)
	}

	return report
}

func (d *DeployContracts) deployOne(ctx context.Context, reg *registry.Registry, c *models.ContractSpec, blockedBy map[string]string) *models.DeployEntry {
	entry := &models.DeployEntry{Contract: c.Name}

	if c.HasAddress() {
		entry.Status = models.DeployStatusSkipped
		entry.Address = c.Address.Hex()
		if c.DeployTxHash != nil {
			entry.TxHash = c.DeployTxHash.Hex()
		}
		d.log.Debug("contract already deployed", "contract", c.Name, "address", entry.Address)
		return entry
	}

	if cause, ok := blockedBy[c.Name]; ok {
		err := &domain.UnresolvedDependencyError{Contract: c.Name, Reference: cause}
		entry.Status = models.DeployStatusBlocked
		entry.Error = fmt.Sprintf("dependency %s failed: %v", cause, err)
		entry.ErrorKind = domain.ErrorKindUnresolved
		d.progress.Error(fmt.Sprintf("%s blocked by %s", c.Name, cause))
		return entry
	}

	fail := func(err error) *models.DeployEntry {
		entry.Status = models.DeployStatusFailed
		entry.Error = err.Error()
		entry.ErrorKind = domain.ClassifyError(err)
		d.log.Error("deployment failed", "contract", c.Name, "error", err)
		d.progress.Error(fmt.Sprintf("%s: %v", c.Name, err))
		return entry
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	args, err := reg.ResolveArgs(c.Name, c.ConstructorArgs)
	if err != nil {
		return fail(err)
	}
	if len(c.Bytecode) == 0 {
		return fail(fmt.Errorf("%s: %w (artifact %q)", c.Name, domain.ErrNoBytecode, c.Artifact))
	}

	result, err := d.chain.Deploy(ctx, c.Bytecode, c.ABI, args)
	if err != nil {
		return fail(err)
	}

	if err := reg.SetDeployed(c.Name, result.Address, result.Receipt.TxHash, result.Receipt.BlockNumber); err != nil {
		return fail(err)
	}

	entry.Status = models.DeployStatusDeployed
	entry.Address = result.Address.Hex()
	entry.TxHash = result.Receipt.TxHash.Hex()
	entry.Block = result.Receipt.BlockNumber
	entry.GasUsed = result.Receipt.GasUsed
	entry.ConstructorArgs = hex.EncodeToString(result.EncodedArgs)

	d.log.Info("contract deployed", "contract", c.Name, "address", entry.Address, "tx", entry.TxHash, "gas_used", entry.GasUsed)
	d.progress.Info(fmt.Sprintf("%s deployed at %s", c.Name, entry.Address))
	return entry
}
