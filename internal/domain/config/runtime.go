package config

import (
	"log/slog"
	"time"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string
	DataDir     string // .delve
	ReportsDir  string
	MetricsFile string // Prometheus textfile, empty to disable

	// Execution settings
	Debug          bool
	NonInteractive bool
	Timeout        time.Duration
	LogLevel       string

	Network  Network
	Signer   Signer
	Tx       TxSettings
	Explorer Explorer
}

// Network describes the chain the run talks to
type Network struct {
	ChainID uint64 `json:"chainId"` // Expected chain id, 0 accepts whatever the RPC reports
	RPCURL  string `json:"rpcUrl"`
}

// Signer holds the key used for every transaction of the run
type Signer struct {
	PrivateKey string //nolint:gosec // loaded from the environment, never logged
}

// TxSettings tunes transaction submission and waiting
type TxSettings struct {
	Confirmations      uint64
	TxTimeout          time.Duration // Receipt + confirmations
	CallTimeout        time.Duration // Single eth_call / estimate
	PollInterval       time.Duration // Receipt polling
	GasPriceGwei       float64       // 0 uses eth_gasPrice
	GasLimitMultiplier float64
}

// Explorer configures Etherscan-compatible source verification
type Explorer struct {
	APIKey       string
	APIURL       string // e.g. https://api.bscscan.com/api
	BrowserURL   string // e.g. https://bscscan.com
	PollInterval time.Duration
	MaxAttempts  int
}

// LogValue keeps secrets out of structured logs
func (c *RuntimeConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("project_root", c.ProjectRoot),
		slog.String("reports_dir", c.ReportsDir),
		slog.Uint64("chain_id", c.Network.ChainID),
		slog.String("rpc_url", c.Network.RPCURL),
		slog.Bool("signer_configured", c.Signer.PrivateKey != ""),
		slog.Bool("explorer_key_configured", c.Explorer.APIKey != ""),
		slog.Uint64("confirmations", c.Tx.Confirmations),
		slog.Duration("tx_timeout", c.Tx.TxTimeout),
		slog.Bool("non_interactive", c.NonInteractive),
	)
}

// IsLocalChain reports whether the configured chain is a local dev chain
func (n Network) IsLocalChain() bool {
	return IsLocalChainID(n.ChainID)
}

// IsLocalChainID reports whether id is a local dev chain (anvil, hardhat, ganache)
func IsLocalChainID(id uint64) bool {
	return id == 31337 || id == 1337
}
