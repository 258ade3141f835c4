package usecase

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/dungeondelvers/delvectl/internal/domain/config"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/registry"
	"github.com/dungeondelvers/delvectl/pkg/abiconv"
)

var errStillPending = errors.New("verification pending")

// VerifyContracts submits deployed contracts to the block explorer and polls
// until the explorer reports a terminal state
type VerifyContracts struct {
	explorer ExplorerClient
	cfg      *config.RuntimeConfig
	chainID  uint64
	progress ProgressSink
	metrics  MetricsRecorder
	log      *slog.Logger
}

// NewVerifyContracts creates a new verification use case
func NewVerifyContracts(explorer ExplorerClient, cfg *config.RuntimeConfig, progress ProgressSink, metrics MetricsRecorder, log *slog.Logger) *VerifyContracts {
	return &VerifyContracts{
		explorer: explorer,
		cfg:      cfg,
		chainID:  cfg.Network.ChainID,
		progress: progress,
		metrics:  metrics,
		log:      log.With("component", "Verifier"),
	}
}

// forChain returns a verifier submitting for the chain the run resolved
func (v *VerifyContracts) forChain(chainID uint64) *VerifyContracts {
	if chainID == 0 {
		return v
	}
	c := *v
	c.chainID = chainID
	return &c
}

// VerifyAll verifies the contracts deployed by this run, or, without a deploy
// report, every contract of the registry that has an address. Failures are
// recorded, never returned.
func (v *VerifyContracts) VerifyAll(ctx context.Context, reg *registry.Registry, deployed *models.DeployReport) []*models.VerificationRecord {
	type job struct {
		spec    *models.ContractSpec
		argsHex string
		err     error
	}

	var jobs []job
	if deployed != nil {
		for _, e := range deployed.Deployed() {
			spec, err := reg.Contract(e.Contract)
			if err != nil {
				continue
			}
			jobs = append(jobs, job{spec: spec, argsHex: e.ConstructorArgs})
		}
	} else {
		for _, spec := range reg.Contracts() {
			if !spec.HasAddress() {
				continue
			}
			argsHex, err := v.encodeConstructorArgs(reg, spec)
			jobs = append(jobs, job{spec: spec, argsHex: argsHex, err: err})
		}
	}

	records := make([]*models.VerificationRecord, 0, len(jobs))
	for i, j := range jobs {
		v.progress.OnProgress(ctx, ProgressEvent{
			Stage:   models.StageVerify,
			Current: i + 1,
			Total:   len(jobs),
			Message: j.spec.Name,
			Spinner: true,
		})

		var record *models.VerificationRecord
		if j.err != nil {
			record = &models.VerificationRecord{
				ContractName: j.spec.Name,
				Address:      j.spec.Address.Hex(),
				Status:       models.VerificationStatusFailed,
				ErrorDetail:  j.err.Error(),
			}
		} else {
			record = v.Verify(ctx, j.spec, j.argsHex)
		}

		switch record.Status {
		case models.VerificationStatusFailed:
			v.progress.Error(fmt.Sprintf("%s verification failed: %s", record.ContractName, record.ErrorDetail))
		case models.VerificationStatusVerified, models.VerificationStatusAlreadyVerified:
			v.progress.Info(fmt.Sprintf("%s %s", record.ContractName, record.Status))
		}
		v.metrics.ObserveVerification(record)
		records = append(records, record)
	}
	return records
}

func (v *VerifyContracts) encodeConstructorArgs(reg *registry.Registry, spec *models.ContractSpec) (string, error) {
	if len(spec.ConstructorArgs) == 0 {
		return "", nil
	}
	values, err := reg.ResolveArgs(spec.Name, spec.ConstructorArgs)
	if err != nil {
		return "", err
	}
	encoded, err := abiconv.EncodeConstructorArgs(spec.ABI, values)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(encoded), nil
}

// Verify submits one contract and polls its status at a fixed interval, up to
// the configured number of attempts
func (v *VerifyContracts) Verify(ctx context.Context, spec *models.ContractSpec, constructorArgsHex string) *models.VerificationRecord {
	record := &models.VerificationRecord{
		ContractName:    spec.Name,
		ConstructorArgs: constructorArgsHex,
	}
	if spec.HasAddress() {
		record.Address = spec.Address.Hex()
		record.ExplorerURL = v.explorer.ContractURL(*spec.Address)
	}

	if reason := v.skipReason(spec); reason != "" {
		record.Status = models.VerificationStatusSkipped
		record.ErrorDetail = reason
		v.log.Debug("verification skipped", "contract", spec.Name, "reason", reason)
		return record
	}

	req := VerificationRequest{
		ChainID:          v.chainID,
		Address:          *spec.Address,
		ContractName:     spec.Source.ContractName,
		CompilerVersion:  spec.Source.CompilerVersion,
		SourceCode:       spec.Source.SourceCode,
		ConstructorArgs:  constructorArgsHex,
		OptimizationRuns: spec.Source.OptimizationRuns,
		EVMVersion:       spec.Source.EVMVersion,
		LicenseType:      spec.Source.LicenseType,
	}

	var submitted *SubmitResult
	err := backoff.Retry(func() error {
		record.Attempts++
		res, err := v.explorer.Submit(ctx, req)
		if err != nil {
			if errors.Is(err, ErrNotYetIndexed) {
				return err
			}
			return backoff.Permanent(err)
		}
		submitted = res
		return nil
	}, v.policy(ctx))
	if err != nil {
		return v.failed(record, fmt.Errorf("submit: %w", err))
	}

	if submitted.AlreadyVerified {
		record.Status = models.VerificationStatusAlreadyVerified
		return record
	}
	record.GUID = submitted.GUID

	var (
		status  ExplorerStatus
		message string
	)
	err = backoff.Retry(func() error {
		record.Attempts++
		st, msg, err := v.explorer.CheckStatus(ctx, v.chainID, submitted.GUID)
		if err != nil {
			v.log.Debug("status check failed", "contract", spec.Name, "error", err)
			return err
		}
		if st == ExplorerStatusPending {
			return errStillPending
		}
		status, message = st, msg
		return nil
	}, v.policy(ctx))
	if err != nil {
		if errors.Is(err, errStillPending) {
			return v.failed(record, fmt.Errorf("still pending after %d status checks (guid %s)", v.cfg.Explorer.MaxAttempts, submitted.GUID))
		}
		return v.failed(record, fmt.Errorf("check status: %w", err))
	}

	switch status {
	case ExplorerStatusVerified:
		record.Status = models.VerificationStatusVerified
	case ExplorerStatusAlreadyVerified:
		record.Status = models.VerificationStatusAlreadyVerified
	default:
		return v.failed(record, errors.New(message))
	}
	v.log.Info("contract verified", "contract", spec.Name, "status", record.Status, "url", record.ExplorerURL)
	return record
}

func (v *VerifyContracts) skipReason(spec *models.ContractSpec) string {
	switch {
	case !spec.HasAddress():
		return "no address"
	case config.IsLocalChainID(v.chainID):
		return "local chain"
	case spec.Source == nil:
		return "no source reference"
	case v.cfg.Explorer.APIKey == "":
		return "no explorer API key"
	}
	return ""
}

// policy polls at a fixed interval for at most MaxAttempts tries
func (v *VerifyContracts) policy(ctx context.Context) backoff.BackOff {
	attempts := v.cfg.Explorer.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithMaxRetries(backoff.NewConstantBackOff(v.cfg.Explorer.PollInterval), uint64(attempts-1))
	return backoff.WithContext(b, ctx)
}

func (v *VerifyContracts) failed(record *models.VerificationRecord, err error) *models.VerificationRecord {
	record.Status = models.VerificationStatusFailed
	record.ErrorDetail = err.Error()
	v.log.Warn("verification failed", "contract", record.ContractName, "error", err)
	return record
}
