package models

// Manifest is the declarative description of one deployment: what to deploy,
// how the contracts depend on each other, what to wire and where to
// propagate the resulting addresses.
type Manifest struct {
	Name               string               `json:"name,omitempty"`
	ChainID            uint64               `json:"chainId,omitempty"`
	Contracts          []*ContractSpec      `json:"contracts"`
	WireOps            []*WireOp            `json:"wireOps,omitempty"`
	PropagationTargets []*PropagationTarget `json:"propagationTargets,omitempty"`

	// Path the manifest was loaded from (not persisted)
	Path string `json:"-"`
}
