package rebalance

import (
	"io/ioutil"

	"gopkg.in/yaml.v2"
)

// Config holds the tunables the supply engine reads at startup. The yaml
// tags give the keys a deployment writes in its config file; note that
// RebalanceThrottleMillis is read from the key rebalanceThrottle.
type Config struct {
	RebalanceBatchSize      int    `yaml:"rebalanceBatchSize"`
	RebalanceBatchesCount   int    `yaml:"rebalanceBatchesCount"`
	RebalanceThrottleMillis int    `yaml:"rebalanceThrottle"`
	RebalanceThreadPoolSize int    `yaml:"rebalanceThreadPoolSize"`
	OverflowStoreFile       string `yaml:"overflowStoreFile"`
	ListenAddress           string `yaml:"listenAddress"`
	LogLevel                string `yaml:"logLevel"`
}

// DefaultConfig returns the tunables a fresh node starts with before any
// config file is loaded.
func DefaultConfig() Config {
	return Config{
		RebalanceBatchSize:      1024 * 1024,
		RebalanceBatchesCount:   4,
		RebalanceThrottleMillis: 0,
		RebalanceThreadPoolSize: 4,
		OverflowStoreFile:       "overflow.db",
		ListenAddress:           ":9090",
		LogLevel:                "info",
	}
}

// LoadFromFile reads and validates a YAML config file, overlaying its
// values on top of DefaultConfig so a deployment only has to specify the
// knobs it wants to change.
func LoadFromFile(file string) (Config, error) {
	config := DefaultConfig()

	raw, err := ioutil.ReadFile(file)

	if err != nil {
		return Config{}, err
	}

	if err := yaml.Unmarshal(raw, &config); err != nil {
		return Config{}, err
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c Config) Validate() error {
	if c.RebalanceBatchSize <= 0 {
		return EInvalidConfig
	}

	if c.RebalanceBatchesCount <= 0 {
		return EInvalidConfig
	}

	if c.RebalanceThreadPoolSize <= 0 {
		return EInvalidConfig
	}

	if c.RebalanceThrottleMillis < 0 {
		return EInvalidConfig
	}

	return nil
}
