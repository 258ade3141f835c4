package models

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// SignerRef is the reference that resolves to the signer address.
const SignerRef = "$signer"

// ContractSpec declares one logical contract of the deploy graph
type ContractSpec struct {
	// Declaration
	Name            string     `json:"name"`
	DependsOn       []string   `json:"dependsOn,omitempty"`
	ConstructorArgs []ValueRef `json:"constructorArgsTemplate,omitempty"`
	Artifact        string     `json:"artifact,omitempty"` // Hardhat or Foundry artifact path
	Source          *SourceRef `json:"source,omitempty"`   // Explorer verification input

	// Deployment state, set exactly once
	Address      *common.Address `json:"address,omitempty"`
	DeployTxHash *common.Hash    `json:"deployTxHash,omitempty"`
	DeployBlock  uint64          `json:"deployBlock,omitempty"`

	// Runtime fields (not persisted)
	ABI      *abi.ABI `json:"-"`
	Bytecode []byte   `json:"-"`
	Index    int      `json:"-"` // Manifest declaration order
}

// HasAddress reports whether the contract is deployed (or pre-existing)
func (c *ContractSpec) HasAddress() bool {
	return c.Address != nil && *c.Address != (common.Address{})
}

// NeedsDeployment reports whether the Deployer has work to do for this contract
func (c *ContractSpec) NeedsDeployment() bool {
	return !c.HasAddress()
}

// SourceRef points at the verification input for a contract
type SourceRef struct {
	ContractName      string `json:"contractName"`                // e.g. "contracts/core/Hero.sol:Hero"
	CompilerVersion   string `json:"compilerVersion"`             // e.g. "v0.8.20+commit.a1b79de6"
	StandardJSONInput string `json:"standardJsonInput,omitempty"` // Path to solc standard JSON input
	OptimizationRuns  int    `json:"optimizationRuns,omitempty"`
	EVMVersion        string `json:"evmVersion,omitempty"`
	LicenseType       int    `json:"licenseType,omitempty"`

	// Runtime fields (not persisted)
	SourceCode string `json:"-"` // Loaded content of StandardJSONInput
}
