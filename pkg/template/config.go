package template

import (
	"errors"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-yaml"
)

// defaultMaxExecDepth is the maximum nesting of {{template}} invocations.
const defaultMaxExecDepth = 1500

// Config contains the tunable options of the engine.
type Config struct {
	// LogLevel controls the verbosity of logging (debug, info, warn, error, off).
	LogLevel string
	// MaxExecDepth bounds the nesting of template invocations.
	MaxExecDepth int
	// CacheMaxSize is the maximum number of templates held by the
	// default template cache. 0 disables caching.
	CacheMaxSize int
	// CacheTTL is the time-to-live for cached templates. 0 means no expiration.
	CacheTTL time.Duration
}

var (
	globalConfig      *Config
	globalConfigMutex sync.Mutex
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel:     "info",
		MaxExecDepth: defaultMaxExecDepth,
		CacheMaxSize: 100,
		CacheTTL:     0,
	}
}

// ConfigFromEnvironment creates a configuration from environment
// variables, falling back to the defaults for unset values.
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()

	if val := os.Getenv("TEMPLATE_LOG_LEVEL"); val != "" {
		config.LogLevel = val
	}
	if val := os.Getenv("TEMPLATE_MAX_EXEC_DEPTH"); val != "" {
		if depth, err := strconv.Atoi(val); err == nil {
			config.MaxExecDepth = depth
		}
	}
	if val := os.Getenv("TEMPLATE_CACHE_MAX_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			config.CacheMaxSize = size
		}
	}
	if val := os.Getenv("TEMPLATE_CACHE_TTL"); val != "" {
		if ttl, err := time.ParseDuration(val); err == nil {
			config.CacheTTL = ttl
		}
	}

	return config
}

// fileConfig is the YAML shape of a configuration file.
type fileConfig struct {
	LogLevel     string `yaml:"log_level"`
	MaxExecDepth int    `yaml:"max_exec_depth"`
	CacheMaxSize *int   `yaml:"cache_max_size"`
	CacheTTL     string `yaml:"cache_ttl"`
}

// ConfigFromFile loads a configuration from a YAML file. Unset keys
// keep their default values.
func ConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if fc.LogLevel != "" {
		config.LogLevel = fc.LogLevel
	}
	if fc.MaxExecDepth != 0 {
		config.MaxExecDepth = fc.MaxExecDepth
	}
	if fc.CacheMaxSize != nil {
		config.CacheMaxSize = *fc.CacheMaxSize
	}
	if fc.CacheTTL != "" {
		ttl, err := time.ParseDuration(fc.CacheTTL)
		if err != nil {
			return nil, err
		}
		config.CacheTTL = ttl
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks whether the configuration is usable.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "off":
	default:
		return errors.New("invalid log level: " + c.LogLevel)
	}
	if c.MaxExecDepth <= 0 {
		return errors.New("max exec depth must be positive")
	}
	if c.CacheMaxSize < 0 {
		return errors.New("cache max size cannot be negative")
	}
	if c.CacheTTL < 0 {
		return errors.New("cache TTL cannot be negative")
	}
	return nil
}

// GetGlobalConfig returns a copy of the global configuration,
// initialising it from the environment on first use.
func GetGlobalConfig() *Config {
	globalConfigMutex.Lock()
	defer globalConfigMutex.Unlock()
	if globalConfig == nil {
		globalConfig = ConfigFromEnvironment()
	}
	c := *globalConfig
	return &c
}

// SetGlobalConfig replaces the global configuration and refreshes the
// global logger level.
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()
	UpdateLoggerFromConfig()
}
