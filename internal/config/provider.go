package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/dungeondelvers/delvectl/internal/domain/config"
)

// EnvPrefix is the prefix of every environment variable the tool reads
const EnvPrefix = "DELVE"

// Defaults for BNB Smart Chain mainnet
const (
	DefaultChainID     = 56
	DefaultRPCURL      = "https://bsc-dataseed.binance.org/"
	DefaultExplorerAPI = "https://api.bscscan.com/api"
	DefaultExplorerURL = "https://bscscan.com"
)

// Provider creates RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*config.RuntimeConfig, error) {
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		projectRoot = FindProjectRoot()
	}

	dataDir := filepath.Join(projectRoot, ".delve")
	reportsDir := v.GetString("reports_dir")
	if reportsDir == "" {
		reportsDir = filepath.Join(dataDir, "reports")
	} else if !filepath.IsAbs(reportsDir) {
		reportsDir = filepath.Join(projectRoot, reportsDir)
	}

	cfg := &config.RuntimeConfig{
		ProjectRoot:    projectRoot,
		DataDir:        dataDir,
		ReportsDir:     reportsDir,
		MetricsFile:    v.GetString("metrics_file"),
		Debug:          v.GetBool("debug"),
		NonInteractive: v.GetBool("non_interactive"),
		Timeout:        v.GetDuration("timeout"),
		LogLevel:       v.GetString("log_level"),
		Network: config.Network{
			ChainID: v.GetUint64("chain_id"),
			RPCURL:  os.ExpandEnv(v.GetString("rpc_url")),
		},
		Signer: config.Signer{
			PrivateKey: strings.TrimSpace(v.GetString("private_key")),
		},
		Tx: config.TxSettings{
			Confirmations:      v.GetUint64("confirmations"),
			TxTimeout:          v.GetDuration("tx_timeout"),
			CallTimeout:        v.GetDuration("call_timeout"),
			PollInterval:       v.GetDuration("poll_interval"),
			GasPriceGwei:       v.GetFloat64("gas_price_gwei"),
			GasLimitMultiplier: v.GetFloat64("gas_limit_multiplier"),
		},
		Explorer: config.Explorer{
			APIKey:       strings.TrimSpace(v.GetString("explorer_api_key")),
			APIURL:       v.GetString("explorer_api_url"),
			BrowserURL:   strings.TrimSuffix(v.GetString("explorer_url"), "/"),
			PollInterval: v.GetDuration("verify_poll_interval"),
			MaxAttempts:  v.GetInt("verify_max_attempts"),
		},
	}

	if cfg.Debug && cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *config.RuntimeConfig) error {
	switch {
	case cfg.Tx.GasLimitMultiplier < 1:
		return fmt.Errorf("gas_limit_multiplier must be >= 1, got %v", cfg.Tx.GasLimitMultiplier)
	case cfg.Tx.GasPriceGwei < 0:
		return fmt.Errorf("gas_price_gwei must not be negative")
	case cfg.Tx.TxTimeout <= 0 || cfg.Tx.CallTimeout <= 0:
		return fmt.Errorf("tx_timeout and call_timeout must be positive")
	case cfg.Tx.PollInterval <= 0 || cfg.Explorer.PollInterval <= 0:
		return fmt.Errorf("poll intervals must be positive")
	case cfg.Explorer.MaxAttempts <= 0:
		return fmt.Errorf("verify_max_attempts must be positive, got %d", cfg.Explorer.MaxAttempts)
	}
	return nil
}

// FindProjectRoot walks up from the current directory to the first one
// holding a .delve directory or a .git checkout. It falls back to the
// current directory.
func FindProjectRoot() string {
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}

	for dir := cwd; ; {
		for _, marker := range []string{".delve", ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd
		}
		dir = parent
	}
}

// SetupViper creates and configures a viper instance
func SetupViper(projectRoot string, cmd *cobra.Command) *viper.Viper {
	LoadEnvFiles(projectRoot)

	v := viper.New()

	// Set up config file (.delve/config.yaml, .json or .toml)
	v.SetConfigName("config")
	v.AddConfigPath(filepath.Join(projectRoot, ".delve"))

	// Set up environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// Unprefixed names used by the existing hardhat scripts
	_ = v.BindEnv("private_key", EnvPrefix+"_PRIVATE_KEY", "PRIVATE_KEY")
	_ = v.BindEnv("explorer_api_key", EnvPrefix+"_EXPLORER_API_KEY", "BSCSCAN_API_KEY")

	// Set defaults
	v.SetDefault("project_root", projectRoot)
	v.SetDefault("timeout", "30m")
	v.SetDefault("debug", false)
	v.SetDefault("non_interactive", false)
	v.SetDefault("chain_id", DefaultChainID)
	v.SetDefault("rpc_url", DefaultRPCURL)
	v.SetDefault("explorer_api_url", DefaultExplorerAPI)
	v.SetDefault("explorer_url", DefaultExplorerURL)
	v.SetDefault("confirmations", 1)
	v.SetDefault("tx_timeout", "3m")
	v.SetDefault("call_timeout", "30s")
	v.SetDefault("poll_interval", "2s")
	v.SetDefault("verify_poll_interval", "5s")
	v.SetDefault("verify_max_attempts", 20)
	v.SetDefault("gas_price_gwei", 0)
	v.SetDefault("gas_limit_multiplier", 1.2)

	// Try to read config file (ignore error if not found)
	_ = v.ReadInConfig()

	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if err := v.BindPFlag(key, f); err != nil {
				panic(err)
			}
		})
	}

	return v
}
