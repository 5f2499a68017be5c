// FILE: logkeep/src/internal/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"logkeep/src/internal/buffer"

	lconfig "github.com/lixenwraith/config"
)

func defaults() *Config {
	return &Config{
		Buffer: BufferConfig{
			Capacity: buffer.DefaultCapacity,
		},
		Format: FormatConfig{
			Type: "text",
		},
		Sinks: []SinkConfig{
			{
				Type: "http",
				HTTP: &HTTPOptions{
					Host:        "127.0.0.1",
					Port:        8080,
					BufferSize:  1000,
					StreamPath:  "/stream",
					EntriesPath: "/entries",
					StatusPath:  "/status",
					ClearPath:   "/clear",
					Heartbeat: &HeartbeatConfig{
						Enabled:         true,
						IntervalSeconds: 30,
					},
				},
			},
		},
		Logging: DefaultLogConfig(),
	}
}

// LoadWithCLI builds the configuration from defaults, the config file,
// LOGKEEP_ environment variables and CLI arguments, in ascending
// precedence.
func LoadWithCLI(cliArgs []string) (*Config, error) {
	configPath := GetConfigPath()

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix("LOGKEEP_").
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, finalConfig.validate()
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	env = "LOGKEEP_" + env
	return env
}

// GetConfigPath resolves the config file location from the
// LOGKEEP_CONFIG_FILE and LOGKEEP_CONFIG_DIR environment variables,
// falling back to ~/.config/logkeep.toml.
func GetConfigPath() string {
	if configFile := os.Getenv("LOGKEEP_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("LOGKEEP_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("LOGKEEP_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "logkeep.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "logkeep.toml")
	}

	return "logkeep.toml"
}
