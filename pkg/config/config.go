// Package config loads per-role DNFS configuration (name server, storage
// server, client) from YAML files, environment variables, and defaults,
// using viper for layered loading, mapstructure for decoding, and
// go-playground/validator for struct-tag validation.
//
// Configuration never drives business logic (wire formats, lock semantics,
// replication factor are fixed by the protocol) — only connectivity,
// storage paths, timing, and container sizing.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// LoggingConfig controls logger output, shared by every role.
type LoggingConfig struct {
	// Level is the minimum level to emit: DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`
	// Format selects the slog handler: text (colorized terminal) or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`
	// Output is stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP endpoint.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

func defaultLogging() LoggingConfig {
	return LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// load reads a YAML config file (if present) overlaid with environment
// variables under the given prefix (e.g. "DNFS_NS"), unmarshals into dst,
// then lets the caller apply defaults and validate. A missing config file
// is not an error: every role runs off defaults plus env vars alone. When
// configPath is empty, the search path is "." then the role's file
// (configName.yaml) under the XDG config directory.
func load(envPrefix, configName, configPath string, dst any) (found bool, err error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(defaultConfigDir())
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("config: read config file: %w", err)
	}

	hook := mapstructure.ComposeDecodeHookFunc(durationDecodeHook())
	if err := v.Unmarshal(dst, viper.DecodeHook(hook)); err != nil {
		return false, fmt.Errorf("config: unmarshal: %w", err)
	}
	return true, nil
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

var validate = validator.New()

// Validate runs go-playground/validator's struct-tag validation against cfg.
func Validate(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}

// WriteDefault marshals cfg (a role's default *Config, already defaulted)
// to YAML and writes it to path, creating parent directories as needed.
// Backs each binary's "config init" subcommand, which seeds an editable
// starting point instead of requiring an operator to hand-write the yaml
// tags documented on each Config struct.
func WriteDefault(path string, cfg any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// defaultConfigDir follows the XDG base directory convention.
func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "dnfs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dnfs")
}
