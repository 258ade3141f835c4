package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for domain operations
var (
	// ErrNotFound is returned when a requested resource doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidAddress is returned when an EVM address is invalid
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidManifest is returned when the manifest fails validation
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrAddressImmutable is returned when a contract that already has an address is assigned another one
	ErrAddressImmutable = errors.New("contract address is immutable once set")

	// ErrMethodNotFound is returned when a candidate method is not exposed by the contract ABI
	ErrMethodNotFound = errors.New("method not found in ABI")

	// ErrNoBytecode is returned when a contract must be deployed but has no creation bytecode
	ErrNoBytecode = errors.New("no creation bytecode")

	// ErrRunHasFailures is returned by commands whose run report contains failed items
	ErrRunHasFailures = errors.New("run completed with failures")

	// ErrReportExists is returned when a run report file is already present
	ErrReportExists = errors.New("run report already exists")
)

// CyclicDependencyError reports contracts whose dependsOn edges form a cycle.
type CyclicDependencyError struct {
	Contracts []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected involving contracts: %s", strings.Join(e.Contracts, ", "))
}

// UnresolvedDependencyError reports a reference to a contract that has no address yet.
type UnresolvedDependencyError struct {
	Contract  string // contract (or wire op) that needed the value
	Reference string // referenced contract name
}

func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("%s: dependency %q has no address", e.Contract, e.Reference)
}

// ChainMismatchError reports an RPC endpoint serving another chain than the
// one the configuration or the manifest expects.
type ChainMismatchError struct {
	Source   string // "config" or "manifest"
	Expected uint64
	Actual   uint64
}

func (e *ChainMismatchError) Error() string {
	return fmt.Sprintf("%s expects chain %d but the RPC endpoint serves chain %d", e.Source, e.Expected, e.Actual)
}

// RpcError wraps a transport-level failure talking to the RPC endpoint.
type RpcError struct {
	Op  string
	Err error
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("rpc %s: %v", e.Op, e.Err)
}

func (e *RpcError) Unwrap() error { return e.Err }

// TimeoutError is returned when a receipt or confirmation is not observed in time.
type TimeoutError struct {
	Op     string
	TxHash string
	After  string
}

func (e *TimeoutError) Error() string {
	if e.TxHash != "" {
		return fmt.Sprintf("%s: transaction %s not confirmed after %s", e.Op, e.TxHash, e.After)
	}
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.After)
}

// InsufficientFundsError is returned when the signer cannot cover the gas cost.
type InsufficientFundsError struct {
	Account  string
	Balance  string
	Required string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: account %s has %s wei, needs %s wei", e.Account, e.Balance, e.Required)
}

// RevertError is returned when a call or transaction reverts.
type RevertError struct {
	Method string
	Reason string
	TxHash string
}

func (e *RevertError) Error() string {
	msg := "execution reverted"
	if e.Method != "" {
		msg = e.Method + ": " + msg
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.TxHash != "" {
		msg += " (tx " + e.TxHash + ")"
	}
	return msg
}

// VerificationMismatchError is returned when a wiring call was accepted on-chain
// but the getter does not report the expected value afterwards.
type VerificationMismatchError struct {
	Getter   string
	Expected string
	Actual   string
	Cause    error
}

func (e *VerificationMismatchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("call succeeded but verification mismatch: %s unreadable: %v", e.Getter, e.Cause)
	}
	return fmt.Sprintf("call succeeded but verification mismatch: %s() = %s, expected %s", e.Getter, e.Actual, e.Expected)
}

func (e *VerificationMismatchError) Unwrap() error { return e.Cause }

// ErrorKind classifies an error for reports.
type ErrorKind string

const (
	ErrorKindRPC                  ErrorKind = "rpc"
	ErrorKindTimeout              ErrorKind = "timeout"
	ErrorKindInsufficientFunds    ErrorKind = "insufficient-funds"
	ErrorKindRevert               ErrorKind = "revert"
	ErrorKindVerificationMismatch ErrorKind = "verification-mismatch"
	ErrorKindUnresolved           ErrorKind = "unresolved-dependency"
	ErrorKindOther                ErrorKind = "other"
)

// ClassifyError maps an error onto the report taxonomy.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var (
		revert   *RevertError
		timeout  *TimeoutError
		funds    *InsufficientFundsError
		mismatch *VerificationMismatchError
		unres    *UnresolvedDependencyError
		rpcErr   *RpcError
	)
	switch {
	case errors.As(err, &mismatch):
		return ErrorKindVerificationMismatch
	case errors.As(err, &revert), errors.Is(err, ErrMethodNotFound):
		return ErrorKindRevert
	case errors.As(err, &timeout):
		return ErrorKindTimeout
	case errors.As(err, &funds):
		return ErrorKindInsufficientFunds
	case errors.As(err, &unres):
		return ErrorKindUnresolved
	case errors.As(err, &rpcErr):
		return ErrorKindRPC
	default:
		return ErrorKindOther
	}
}
