package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/dungeondelvers/delvectl/internal/domain"
	"github.com/dungeondelvers/delvectl/internal/domain/models"
	"github.com/dungeondelvers/delvectl/internal/registry"
	"github.com/dungeondelvers/delvectl/pkg/abiconv"
)

// WireContracts executes the cross-contract configuration calls of a manifest
type WireContracts struct {
	chain    ChainClient
	progress ProgressSink
	metrics  MetricsRecorder
	log      *slog.Logger
}

// NewWireContracts creates a new wiring use case
func NewWireContracts(chain ChainClient, progress ProgressSink, metrics MetricsRecorder, log *slog.Logger) *WireContracts {
	return &WireContracts{
		chain:    chain,
		progress: progress,
		metrics:  metrics,
		log:      log.With("component", "WiringEngine"),
	}
}

// withChain returns a copy of the wiring engine sending through chain
func (w *WireContracts) withChain(chain ChainClient) *WireContracts {
	c := *w
	c.chain = chain
	return &c
}

// ExecuteAll runs every wire op in declaration order, one confirmed
// transaction at a time
func (w *WireContracts) ExecuteAll(ctx context.Context, reg *registry.Registry) *models.WireReport {
	ops := reg.WireOps()
	report := &models.WireReport{Entries: make([]*models.WireEntry, 0, len(ops))}

	for i, op := range ops {
		w.progress.OnProgress(ctx, ProgressEvent{
			Stage:   models.StageWire,
			Current: i + 1,
			Total:   len(ops),
			Message: op.Label(),
			Spinner: true,
		})

		entry := w.execute(ctx, reg, op)
		op.Status = entry.Status
		w.metrics.ObserveWire(entry)
		report.Entries = append(report.Entries, entry)
	}
	return report
}

// boundGetter is a verify getter resolved against the registry
type boundGetter struct {
	method   *abiconv.Method
	args     []any
	expected any
}

func (w *WireContracts) execute(ctx context.Context, reg *registry.Registry, op *models.WireOp) *models.WireEntry {
	entry := &models.WireEntry{
		Op:       op.Label(),
		Target:   op.TargetContract,
		Argument: op.Argument.String(),
		Status:   models.WireStatusPending,
	}

	fail := func(err error) *models.WireEntry {
		entry.Status = models.WireStatusFailed
		entry.Error = err.Error()
		entry.ErrorKind = domain.ClassifyError(err)
		w.log.Error("wire op failed", "op", entry.Op, "error", err)
		w.progress.Error(fmt.Sprintf("%s: %v", entry.Op, err))
		return entry
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	target, err := reg.Address(op.TargetContract)
	if err != nil {
		return fail(relabel(err, op.Label()))
	}
	spec, err := reg.Contract(op.TargetContract)
	if err != nil {
		return fail(err)
	}
	args, err := reg.ResolveArgs(op.Label(), op.Args())
	if err != nil {
		return fail(err)
	}

	var getter *boundGetter
	if op.VerifyGetter != "" {
		getter, err = w.bindGetter(reg, spec.ABI, op)
		if err != nil {
			return fail(err)
		}

		current, err := w.read(ctx, target, getter)
		switch {
		case err != nil:
			w.log.Warn("pre-read failed, wiring anyway", "op", entry.Op, "getter", op.VerifyGetter, "error", err)
		default:
			entry.Previous = abiconv.Format(current)
			if ok, _ := abiconv.Equal(getter.method.Outputs[0].Type, current, getter.expected); ok {
				entry.Status = models.WireStatusSkippedAlreadySet
				entry.Current = entry.Previous
				w.log.Debug("already set", "op", entry.Op, "value", entry.Current)
				return entry
			}
		}
	}

	sent := false
	var lastErr error
	for _, candidate := range op.CandidateMethods {
		attempt := models.WireAttempt{Method: candidate}

		method, err := abiconv.ResolveMethod(spec.ABI, candidate, args)
		if err != nil {
			attempt.Outcome = models.AttemptNotFound
			attempt.Reason = err.Error()
			entry.Attempts = append(entry.Attempts, attempt)
			lastErr = err
			continue
		}
		attempt.Method = method.Sig

		receipt, err := w.chain.Send(ctx, target, method, args)
		if err != nil {
			var revert *domain.RevertError
			if errors.As(err, &revert) {
				attempt.Outcome = models.AttemptReverted
				attempt.Reason = revert.Reason
				attempt.TxHash = revert.TxHash
				entry.Attempts = append(entry.Attempts, attempt)
				lastErr = err
				w.log.Debug("candidate reverted", "op", entry.Op, "method", method.Sig, "reason", revert.Reason)
				continue
			}
			// The transaction may or may not have been mined: never try another candidate.
			attempt.Outcome = models.AttemptError
			attempt.Reason = err.Error()
			entry.Attempts = append(entry.Attempts, attempt)
			return fail(err)
		}

		attempt.Outcome = models.AttemptSent
		attempt.TxHash = receipt.TxHash.Hex()
		entry.Attempts = append(entry.Attempts, attempt)
		entry.Method = method.Sig
		entry.TxHash = attempt.TxHash
		sent = true
		break
	}

	if !sent {
		if lastErr == nil {
			lastErr = fmt.Errorf("no candidate methods: %w", domain.ErrMethodNotFound)
		}
		return fail(lastErr)
	}

	if getter != nil {
		current, err := w.read(ctx, target, getter)
		if err != nil {
			return fail(&domain.VerificationMismatchError{Getter: op.VerifyGetter, Cause: err})
		}
		entry.Current = abiconv.Format(current)
		ok, err := abiconv.Equal(getter.method.Outputs[0].Type, current, getter.expected)
		if err != nil || !ok {
			return fail(&domain.VerificationMismatchError{
				Getter:   op.VerifyGetter,
				Expected: abiconv.Format(getter.expected),
				Actual:   entry.Current,
				Cause:    err,
			})
		}
	}

	entry.Status = models.WireStatusSucceeded
	w.log.Info("wired", "op", entry.Op, "method", entry.Method, "tx", entry.TxHash)
	w.progress.Info(fmt.Sprintf("%s via %s", entry.Op, entry.Method))
	return entry
}

func (w *WireContracts) bindGetter(reg *registry.Registry, targetABI *abi.ABI, op *models.WireOp) (*boundGetter, error) {
	args, err := reg.ResolveArgs(op.Label(), op.GetterArgs)
	if err != nil {
		return nil, err
	}
	expected, err := reg.Resolve(op.Expected())
	if err != nil {
		return nil, relabel(err, op.Label())
	}
	method, err := abiconv.ResolveGetter(targetABI, op.VerifyGetter, args, expected)
	if err != nil {
		return nil, fmt.Errorf("verify getter: %w", err)
	}
	if len(method.Outputs) == 0 {
		return nil, fmt.Errorf("verify getter %s returns nothing", method.Sig)
	}
	return &boundGetter{method: method, args: args, expected: expected}, nil
}

func (w *WireContracts) read(ctx context.Context, target common.Address, g *boundGetter) (any, error) {
	out, err := w.chain.Call(ctx, target, g.method, g.args)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s returned nothing", g.method.Sig)
	}
	return out[0], nil
}

// relabel names the wire op in an UnresolvedDependencyError for the target
func relabel(err error, label string) error {
	var unresolved *domain.UnresolvedDependencyError
	if errors.As(err, &unresolved) {
		return &domain.UnresolvedDependencyError{Contract: label, Reference: unresolved.Reference}
	}
	return err
}
