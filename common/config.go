package common

import (
	"os"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
)

// Config holds the settings a buffer pool and its disk manager are built from
type Config struct {
	DBFile       string `toml:"db-file"`
	PoolSize     uint32 `toml:"pool-size"`
	Replacer     string `toml:"replacer"`
	VirtualDisk  bool   `toml:"virtual-disk"`
	LogLevel     string `toml:"log-level"`
	Workers      int    `toml:"workers"`
	OpsPerWorker int    `toml:"ops-per-worker"`
	PageCount    int    `toml:"page-count"`
	MetricsAddr  string `toml:"metrics-addr"`
}

func DefaultConfig() Config {
	return Config{
		DBFile:       "bufpool.db",
		PoolSize:     DefaultPoolSize,
		Replacer:     "lru",
		VirtualDisk:  false,
		LogLevel:     "info",
		Workers:      4,
		OpsPerWorker: 10000,
		PageCount:    4 * DefaultPoolSize,
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "reading config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "decoding config %s", path)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.PoolSize == 0 {
		return errors.New("pool-size must be positive")
	}
	switch c.Replacer {
	case "lru", "clock":
	default:
		return errors.Errorf("unknown replacer %q", c.Replacer)
	}
	if !c.VirtualDisk && c.DBFile == "" {
		return errors.New("db-file is required unless virtual-disk is set")
	}
	if c.Workers < 0 || c.OpsPerWorker < 0 || c.PageCount < 0 {
		return errors.New("workers, ops-per-worker and page-count must not be negative")
	}
	return nil
}
