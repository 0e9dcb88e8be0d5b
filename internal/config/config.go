package config

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. BURN_RELAYER_PAGE_SIZE.
const EnvPrefix = "BURN_RELAYER"

// Config holds every setting of the relayer. Keys are the flag names.
type Config struct {
	Network      string `mapstructure:"network"`
	Contract     string `mapstructure:"contract"`
	DeployHeight uint64 `mapstructure:"deploy-height"`

	IndexerURL    string  `mapstructure:"indexer-url"`
	IndexerAPIKey string  `mapstructure:"indexer-api-key"`
	HTTPProxy     string  `mapstructure:"http-proxy"`
	IndexerRPS    float64 `mapstructure:"indexer-rps"`
	PageSize      int     `mapstructure:"page-size"`
	MaxRetries    int     `mapstructure:"max-retries"`

	BurnAddress        string        `mapstructure:"burn-address"`
	ScaleFactor        int64         `mapstructure:"scale-factor"`
	Cooldown           time.Duration `mapstructure:"cooldown"`
	BlocksPerIteration int           `mapstructure:"blocks-per-iteration"`

	DestRPCURL   string `mapstructure:"dest-rpc-url"`
	DestContract string `mapstructure:"dest-contract"`
	PrivateKey   string `mapstructure:"private-key"`

	MetricsAddr string `mapstructure:"metrics-addr"`
}

// Load layers the built-in defaults, an optional config file, the
// environment and any flags already bound to v, then fills unset network
// fields from the selected preset.
func Load(v *viper.Viper, configFilePath string) (*Config, error) {
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewBufferString(DefaultValues)); err != nil {
		return nil, fmt.Errorf("read default config: %w", err)
	}

	if configFilePath != "" {
		v.SetConfigFile(configFilePath)
		v.SetConfigType(strings.TrimPrefix(filepath.Ext(configFilePath), "."))
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFilePath, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("http-proxy", EnvPrefix+"_HTTP_PROXY", "HTTP_PROXY"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Network != "" {
		if err := cfg.applyNetwork(cfg.Network); err != nil {
			return nil, err
		}
	}

	return &cfg, nil
}

// ValidateIndexer checks the settings needed to read the source chain.
func (c *Config) ValidateIndexer() error {
	if c.IndexerURL == "" {
		return missing("indexer-url")
	}
	if c.IndexerAPIKey == "" {
		return missing("indexer-api-key")
	}
	if !common.IsHexAddress(c.Contract) {
		return invalid("contract", c.Contract)
	}
	if !common.IsHexAddress(c.BurnAddress) {
		return invalid("burn-address", c.BurnAddress)
	}
	if c.PageSize < 1 || c.PageSize > 10000 {
		return invalid("page-size", c.PageSize)
	}
	if c.MaxRetries < 1 {
		return invalid("max-retries", c.MaxRetries)
	}
	if c.ScaleFactor < 1 {
		return invalid("scale-factor", c.ScaleFactor)
	}
	if c.IndexerRPS < 0 {
		return invalid("indexer-rps", c.IndexerRPS)
	}
	return nil
}

// ValidateRelay checks everything the relay command needs.
func (c *Config) ValidateRelay() error {
	if err := c.ValidateIndexer(); err != nil {
		return err
	}
	if c.DestRPCURL == "" {
		return missing("dest-rpc-url")
	}
	if c.DestContract == "" {
		return missing("dest-contract")
	}
	if !common.IsHexAddress(c.DestContract) {
		return invalid("dest-contract", c.DestContract)
	}
	if c.PrivateKey == "" {
		return missing("private-key")
	}
	if c.BlocksPerIteration < 1 {
		return invalid("blocks-per-iteration", c.BlocksPerIteration)
	}
	if c.Cooldown < 0 {
		return invalid("cooldown", c.Cooldown)
	}
	return nil
}

func (c *Config) ContractAddress() common.Address {
	return common.HexToAddress(c.Contract)
}

func (c *Config) BurnSinkAddress() common.Address {
	return common.HexToAddress(c.BurnAddress)
}

func (c *Config) DestContractAddress() common.Address {
	return common.HexToAddress(c.DestContract)
}

func missing(key string) error {
	return fmt.Errorf("missing required setting %q (flag --%s or env %s)", key, key, envName(key))
}

func invalid(key string, value any) error {
	return fmt.Errorf("invalid setting %q: %v", key, value)
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}
