package models

import (
	"fmt"
)

// WireStatus is the lifecycle state of a WireOp within one run
type WireStatus string

const (
	WireStatusPending           WireStatus = "pending"
	WireStatusSucceeded         WireStatus = "succeeded"
	WireStatusSkippedAlreadySet WireStatus = "skipped-already-set"
	WireStatusFailed            WireStatus = "failed"
)

// WireOp declares one "set the address of X inside contract Y" call
type WireOp struct {
	TargetContract   string     `json:"targetContract"`
	CandidateMethods []string   `json:"candidateMethods"`
	Argument         ValueRef   `json:"argument"`
	ExtraArgs        []ValueRef `json:"extraArgs,omitempty"`
	VerifyGetter     string     `json:"verifyGetter,omitempty"`
	GetterArgs       []ValueRef `json:"getterArgs,omitempty"`
	Expect           *ValueRef  `json:"expect,omitempty"`

	Status WireStatus `json:"status"`
	Index  int        `json:"-"`
}

// Label is a human readable identifier, e.g. "Hero.setDungeonCore(@DungeonCore)"
func (w *WireOp) Label() string {
	method := "?"
	if len(w.CandidateMethods) > 0 {
		method = w.CandidateMethods[0]
	}
	return fmt.Sprintf("%s.%s(%s)", w.TargetContract, method, w.Argument)
}

// Args returns the call arguments: the primary argument followed by extra args
func (w *WireOp) Args() []ValueRef {
	args := make([]ValueRef, 0, 1+len(w.ExtraArgs))
	if !w.Argument.IsZero() {
		args = append(args, w.Argument)
	}
	return append(args, w.ExtraArgs...)
}

// Expected returns the value the verify getter must report
func (w *WireOp) Expected() ValueRef {
	if w.Expect != nil {
		return *w.Expect
	}
	return w.Argument
}

// References lists every contract name the op needs an address for
func (w *WireOp) References() []string {
	refs := []string{w.TargetContract}
	for _, arg := range append(w.Args(), w.GetterArgs...) {
		if arg.IsRef() && arg.Ref != SignerRef {
			refs = append(refs, arg.Ref)
		}
	}
	if w.Expect != nil && w.Expect.IsRef() && w.Expect.Ref != SignerRef {
		refs = append(refs, w.Expect.Ref)
	}
	return refs
}

// AttemptOutcome is the result of trying one candidate method
type AttemptOutcome string

const (
	AttemptReverted AttemptOutcome = "reverted"
	AttemptNotFound AttemptOutcome = "not-found"
	AttemptSent     AttemptOutcome = "sent"
	AttemptError    AttemptOutcome = "error"
)

// WireAttempt records one candidate method attempt
type WireAttempt struct {
	Method  string         `json:"method"`
	Outcome AttemptOutcome `json:"outcome"`
	Reason  string         `json:"reason,omitempty"`
	TxHash  string         `json:"txHash,omitempty"`
}
