package config

import "time"

// ClientConfig governs only the client's own diagnostics and connection
// handling; NS address/port are positional CLI arguments (spec.md §6:
// `dnfs-client <ns_ip> <ns_port>`), not config-file fields.
type ClientConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// DialTimeout bounds connecting to the NS or an SS.
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"required,gt=0" yaml:"dial_timeout"`
	// RequestTimeout bounds waiting for a response to one request.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required,gt=0" yaml:"request_timeout"`
}

// DefaultClientConfig returns the client's defaults, unaffected by any
// config file or environment variable. Used by the "config init"
// subcommand to seed an editable starting point.
func DefaultClientConfig() *ClientConfig {
	return defaultClientConfig()
}

func defaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Logging:        defaultLogging(),
		DialTimeout:    5 * time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// ApplyClientDefaults fills zero-valued fields with defaults.
func ApplyClientDefaults(cfg *ClientConfig) {
	d := defaultClientConfig()
	applyLoggingDefaults(&cfg.Logging)
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = d.DialTimeout
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = d.RequestTimeout
	}
}

// LoadClientConfig loads, defaults, and validates the client configuration.
func LoadClientConfig(configPath string) (*ClientConfig, error) {
	cfg := defaultClientConfig()
	found, err := load("DNFS_CLIENT", "client", configPath, cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return cfg, nil
	}
	ApplyClientDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
