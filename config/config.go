package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
)

// Config drives the deald daemon. A default file is written on first run.
type Config struct {
	RPCAddress            string `toml:"RPCAddress"`
	DataDir               string `toml:"DataDir"`
	OwnerAddress          string `toml:"OwnerAddress"`
	DefaultCommissionRate uint32 `toml:"DefaultCommissionRate"`
	AllowFaucet           bool   `toml:"AllowFaucet"`
	LogFile               string `toml:"LogFile"`
	LogMaxSizeMB          int    `toml:"LogMaxSizeMB"`
	LogMaxBackups         int    `toml:"LogMaxBackups"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./deald-data"
	}
	if cfg.DefaultCommissionRate == 0 {
		cfg.DefaultCommissionRate = 10
	}
	if cfg.LogMaxSizeMB == 0 {
		cfg.LogMaxSizeMB = 64
	}
	if cfg.LogMaxBackups == 0 {
		cfg.LogMaxBackups = 4
	}
}

// Validate rejects configurations the engine cannot honour: a malformed
// owner address or a commission rate outside the open interval (0, 100).
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if strings.TrimSpace(cfg.OwnerAddress) == "" {
		return fmt.Errorf("config: OwnerAddress is required")
	}
	if !common.IsHexAddress(strings.TrimSpace(cfg.OwnerAddress)) {
		return fmt.Errorf("config: OwnerAddress %q is not a valid address", cfg.OwnerAddress)
	}
	if cfg.DefaultCommissionRate == 0 || cfg.DefaultCommissionRate >= 100 {
		return fmt.Errorf("config: DefaultCommissionRate must be > 0 and < 100")
	}
	return nil
}

// Owner returns the parsed owner address.
func (cfg *Config) Owner() [20]byte {
	return [20]byte(common.HexToAddress(strings.TrimSpace(cfg.OwnerAddress)))
}

// createDefault creates and saves a default configuration file. The owner
// address is intentionally left blank: the daemon refuses to start until the
// operator fills it in.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("config: wrote default config to %s; set OwnerAddress and restart", path)
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
