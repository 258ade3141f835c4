package models

// VerificationStatus is the terminal outcome of explorer verification
type VerificationStatus string

const (
	VerificationStatusVerified        VerificationStatus = "verified"
	VerificationStatusAlreadyVerified VerificationStatus = "already-verified"
	VerificationStatusFailed          VerificationStatus = "failed"
	VerificationStatusSkipped         VerificationStatus = "skipped"
)

// VerificationRecord is written once per deployed contract by the Verifier
type VerificationRecord struct {
	ContractName    string             `json:"contractName"`
	Address         string             `json:"address"`
	ConstructorArgs string             `json:"constructorArgs,omitempty"` // Hex, no 0x prefix
	Status          VerificationStatus `json:"status"`
	ErrorDetail     string             `json:"errorDetail,omitempty"`
	GUID            string             `json:"guid,omitempty"`
	ExplorerURL     string             `json:"explorerUrl,omitempty"`
	Attempts        int                `json:"attempts,omitempty"`
}

// Succeeded reports whether the contract ends up verified
func (r *VerificationRecord) Succeeded() bool {
	return r.Status == VerificationStatusVerified || r.Status == VerificationStatusAlreadyVerified
}
