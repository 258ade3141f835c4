package models

import (
	"time"

	"github.com/dungeondelvers/delvectl/internal/domain"
)

// DeployStatus is the outcome of the Deployer for one contract
type DeployStatus string

const (
	DeployStatusDeployed DeployStatus = "deployed"
	DeployStatusSkipped  DeployStatus = "skipped"
	DeployStatusFailed   DeployStatus = "failed"
	DeployStatusBlocked  DeployStatus = "blocked" // a dependency failed
)

// DeployEntry records what happened to one ContractSpec
type DeployEntry struct {
	Contract        string           `json:"contract"`
	Status          DeployStatus     `json:"status"`
	Address         string           `json:"address,omitempty"`
	TxHash          string           `json:"txHash,omitempty"`
	Block           uint64           `json:"block,omitempty"`
	GasUsed         uint64           `json:"gasUsed,omitempty"`
	ConstructorArgs string           `json:"constructorArgs,omitempty"` // Hex, no 0x prefix
	Error           string           `json:"error,omitempty"`
	ErrorKind       domain.ErrorKind `json:"errorKind,omitempty"`
}

// DeployReport is the Deployer output
type DeployReport struct {
	Entries []*DeployEntry `json:"entries"`
}

// Entry finds the entry for a contract
func (r *DeployReport) Entry(contract string) *DeployEntry {
	if r == nil {
		return nil
	}
	for _, e := range r.Entries {
		if e.Contract == contract {
			return e
		}
	}
	return nil
}

// Deployed lists the entries created by this run
func (r *DeployReport) Deployed() []*DeployEntry {
	var out []*DeployEntry
	if r == nil {
		return out
	}
	for _, e := range r.Entries {
		if e.Status == DeployStatusDeployed {
			out = append(out, e)
		}
	}
	return out
}

// WireEntry records what happened to one WireOp
type WireEntry struct {
	Op        string           `json:"op"`
	Target    string           `json:"target"`
	Method    string           `json:"method,omitempty"` // candidate that was sent
	Argument  string           `json:"argument,omitempty"`
	Status    WireStatus       `json:"status"`
	Attempts  []WireAttempt    `json:"attempts,omitempty"`
	Previous  string           `json:"previous,omitempty"` // getter value before the call
	Current   string           `json:"current,omitempty"`  // getter value after the call
	TxHash    string           `json:"txHash,omitempty"`
	Error     string           `json:"error,omitempty"`
	ErrorKind domain.ErrorKind `json:"errorKind,omitempty"`
}

// WireReport is the Wiring Engine output
type WireReport struct {
	Entries []*WireEntry `json:"entries"`
}

// PropagationStatus is the outcome for one propagation target
type PropagationStatus string

const (
	PropagationStatusWritten   PropagationStatus = "written"
	PropagationStatusUnchanged PropagationStatus = "unchanged"
	PropagationStatusFailed    PropagationStatus = "failed"
)

// PropagationEntry records what happened to one PropagationTarget
type PropagationEntry struct {
	FilePath    string            `json:"filePath"`
	Format      PropagationFormat `json:"format"`
	Status      PropagationStatus `json:"status"`
	KeysUpdated []string          `json:"keysUpdated,omitempty"`
	KeysRemoved []string          `json:"keysRemoved,omitempty"`
	Error       string            `json:"error,omitempty"`
}

// PropagationReport is the Config Propagator output
type PropagationReport struct {
	Entries []*PropagationEntry `json:"entries"`
}

// StageSummary counts outcomes of one stage
type StageSummary struct {
	Stage     string `json:"stage"`
	Succeeded int    `json:"succeeded"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}

// Total is the number of items in the stage
func (s StageSummary) Total() int {
	return s.Succeeded + s.Skipped + s.Failed
}

// Stage names used in summaries
const (
	StageDeploy      = "deploy"
	StageWire        = "wire"
	StageVerify      = "verify"
	StagePropagation = "propagate"
)

// RunReport is the persisted audit record of one invocation
type RunReport struct {
	RunID        string                `json:"runId"`
	Command      string                `json:"command"`
	Manifest     string                `json:"manifest"`
	ManifestName string                `json:"manifestName,omitempty"`
	ChainID      uint64                `json:"chainId,omitempty"`
	Signer       string                `json:"signer,omitempty"`
	StartedAt    time.Time             `json:"startedAt"`
	FinishedAt   time.Time             `json:"finishedAt"`
	Deploy       *DeployReport         `json:"deploy,omitempty"`
	Wire         *WireReport           `json:"wire,omitempty"`
	Verification []*VerificationRecord `json:"verification,omitempty"`
	Propagation  *PropagationReport    `json:"propagation,omitempty"`
	Summary      []StageSummary        `json:"summary"`

	// Runtime fields (not persisted)
	Path string `json:"-"`
}

// HasFailures reports whether any stage recorded a failed item
func (r *RunReport) HasFailures() bool {
	for _, s := range r.Summary {
		if s.Failed > 0 {
			return true
		}
	}
	return false
}

// FailedCount is the total number of failed items across stages
func (r *RunReport) FailedCount() int {
	n := 0
	for _, s := range r.Summary {
		n += s.Failed
	}
	return n
}

// Addresses returns every contract address recorded by the deploy stage
func (r *RunReport) Addresses() map[string]string {
	out := make(map[string]string)
	if r.Deploy == nil {
		return out
	}
	for _, e := range r.Deploy.Entries {
		if e.Address != "" {
			out[e.Contract] = e.Address
		}
	}
	return out
}
