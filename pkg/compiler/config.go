package compiler

import (
	"fmt"
	"strconv"

	"github.com/xyproto/env/v2"
)

// Environment variables read by ConfigFromEnv
const (
	EnvOptimize           = "JMMC_OPTIMIZE"
	EnvRegisterAllocation = "JMMC_REGISTER_ALLOCATION"
	EnvTarget             = "JMMC_TARGET"
	EnvDebug              = "JMMC_DEBUG"
)

// Config selects the optional pipeline stages
type Config struct {
	Optimize bool
	// RegisterAllocation is -1 to keep one register per variable, 0 to use as
	// few registers as possible and n > 0 to use exactly n for locals
	RegisterAllocation int
	// Target is a Java version such as "8" or "17"; empty omits .bytecode
	Target string
	Debug  bool
}

// DefaultConfig compiles without optimization or register allocation
func DefaultConfig() Config {
	return Config{RegisterAllocation: -1}
}

// Validate rejects register counts below -1
func (c Config) Validate() error {
	if c.RegisterAllocation < -1 {
		return fmt.Errorf("registerAllocation must be -1, 0 or positive, got %d", c.RegisterAllocation)
	}
	return nil
}

// ConfigFromMap reads the "optimize", "registerAllocation", "target" and
// "debug" keys; missing keys keep their defaults
func ConfigFromMap(m map[string]string) (Config, error) {
	cfg := DefaultConfig()
	if v, ok := m["optimize"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("optimize: %w", err)
		}
		cfg.Optimize = b
	}
	if v, ok := m["registerAllocation"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("registerAllocation: %w", err)
		}
		cfg.RegisterAllocation = n
	}
	if v, ok := m["target"]; ok {
		cfg.Target = v
	}
	if v, ok := m["debug"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("debug: %w", err)
		}
		cfg.Debug = b
	}
	return cfg, cfg.Validate()
}

// ConfigFromEnv starts from DefaultConfig and applies the JMMC_* variables.
// Values are parsed like the ConfigFromMap keys.
func ConfigFromEnv() (Config, error) {
	return configFromLookup(func(name string) (string, bool) {
		if !env.Has(name) {
			return "", false
		}
		return env.Str(name), true
	})
}

var envKeys = map[string]string{
	EnvOptimize:           "optimize",
	EnvRegisterAllocation: "registerAllocation",
	EnvTarget:             "target",
	EnvDebug:              "debug",
}

func configFromLookup(lookup func(string) (string, bool)) (Config, error) {
	m := make(map[string]string)
	for name, key := range envKeys {
		if v, ok := lookup(name); ok {
			m[key] = v
		}
	}
	cfg, err := ConfigFromMap(m)
	if err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}
