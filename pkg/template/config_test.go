package template

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	if config.MaxExecDepth != 1500 {
		t.Errorf("MaxExecDepth = %d, want 1500", config.MaxExecDepth)
	}
	if config.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", config.LogLevel)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("TEMPLATE_LOG_LEVEL", "debug")
	t.Setenv("TEMPLATE_MAX_EXEC_DEPTH", "50")
	t.Setenv("TEMPLATE_CACHE_MAX_SIZE", "7")
	t.Setenv("TEMPLATE_CACHE_TTL", "90s")

	config := ConfigFromEnvironment()
	if config.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", config.LogLevel)
	}
	if config.MaxExecDepth != 50 {
		t.Errorf("MaxExecDepth = %d", config.MaxExecDepth)
	}
	if config.CacheMaxSize != 7 {
		t.Errorf("CacheMaxSize = %d", config.CacheMaxSize)
	}
	if config.CacheTTL != 90*time.Second {
		t.Errorf("CacheTTL = %v", config.CacheTTL)
	}
}

func TestConfigFromEnvironmentIgnoresGarbage(t *testing.T) {
	t.Setenv("TEMPLATE_MAX_EXEC_DEPTH", "not-a-number")
	config := ConfigFromEnvironment()
	if config.MaxExecDepth != 1500 {
		t.Errorf("MaxExecDepth = %d, want default", config.MaxExecDepth)
	}
}

func TestConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "log_level: warn\nmax_exec_depth: 99\ncache_max_size: 0\ncache_ttl: 5m\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	config, err := ConfigFromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if config.LogLevel != "warn" {
		t.Errorf("LogLevel = %q", config.LogLevel)
	}
	if config.MaxExecDepth != 99 {
		t.Errorf("MaxExecDepth = %d", config.MaxExecDepth)
	}
	if config.CacheMaxSize != 0 {
		t.Errorf("CacheMaxSize = %d, want explicit 0", config.CacheMaxSize)
	}
	if config.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v", config.CacheTTL)
	}
}

func TestConfigFromFileErrors(t *testing.T) {
	if _, err := ConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("log_level: bogus\n"), 0o644)
	if _, err := ConfigFromFile(path); err == nil {
		t.Error("expected validation error for bad log level")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(c *Config) {}, true},
		{"off level", func(c *Config) { c.LogLevel = "off" }, true},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, false},
		{"zero depth", func(c *Config) { c.MaxExecDepth = 0 }, false},
		{"negative cache", func(c *Config) { c.CacheMaxSize = -1 }, false},
		{"negative ttl", func(c *Config) { c.CacheTTL = -time.Second }, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			config := DefaultConfig()
			test.mutate(config)
			if err := config.Validate(); (err == nil) != test.ok {
				t.Errorf("Validate() = %v, ok = %v", err, test.ok)
			}
		})
	}
}

func TestSetGlobalConfig(t *testing.T) {
	old := GetGlobalConfig()
	defer SetGlobalConfig(old)

	config := DefaultConfig()
	config.MaxExecDepth = 42
	SetGlobalConfig(config)
	if got := GetGlobalConfig().MaxExecDepth; got != 42 {
		t.Errorf("MaxExecDepth = %d, want 42", got)
	}
	// The returned config is a copy; mutating it has no global effect.
	GetGlobalConfig().MaxExecDepth = 7
	if got := GetGlobalConfig().MaxExecDepth; got != 42 {
		t.Errorf("global config was mutated through a copy")
	}
}
