package config

import "time"

// NameServerConfig is the name server's full configuration: the client-facing
// listener, the storage-server control listener, heartbeat timing, the
// roster/access-request SQLite database, and container sizing for the
// resolution cache, access table, and file map (spec.md §4.2).
type NameServerConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// ClientListenAddr accepts LOGIN and directory-operation connections.
	ClientListenAddr string `mapstructure:"client_listen_addr" validate:"required" yaml:"client_listen_addr"`
	// SSListenAddr accepts REGISTER, HEARTBEAT, and recovery control traffic.
	SSListenAddr string `mapstructure:"ss_listen_addr" validate:"required" yaml:"ss_listen_addr"`

	// DataDir holds users.db, permission_db/, and the roster/access-request
	// SQLite file (spec.md §6).
	DataDir string `mapstructure:"data_dir" validate:"required" yaml:"data_dir"`

	// HeartbeatInterval is how often an SS is expected to send a heartbeat.
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"required,gt=0" yaml:"heartbeat_interval"`
	// HeartbeatTimeout is how long the NS waits before declaring an SS dead.
	HeartbeatTimeout time.Duration `mapstructure:"heartbeat_timeout" validate:"required,gt=0" yaml:"heartbeat_timeout"`

	// ResolutionCacheSize is the owner:filename -> SS LRU cache capacity.
	ResolutionCacheSize int `mapstructure:"resolution_cache_size" validate:"required,gt=0" yaml:"resolution_cache_size"`
	// AccessTableCapacity and FileMapCapacity size the double-hashed tables
	// up front (spec.md §4.2: "sized generously", rehashing is rare).
	AccessTableCapacity int     `mapstructure:"access_table_capacity" validate:"required,gt=0" yaml:"access_table_capacity"`
	FileMapCapacity     int     `mapstructure:"file_map_capacity" validate:"required,gt=0" yaml:"file_map_capacity"`
	TableMaxLoadFactor  float64 `mapstructure:"table_max_load_factor" validate:"gt=0,lt=1" yaml:"table_max_load_factor"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// DefaultNameServerConfig returns the name server's defaults, unaffected by
// any config file or environment variable. Used by the "config init"
// subcommand to seed an editable starting point.
func DefaultNameServerConfig() *NameServerConfig {
	return defaultNameServerConfig()
}

func defaultNameServerConfig() *NameServerConfig {
	return &NameServerConfig{
		Logging:             defaultLogging(),
		Metrics:             MetricsConfig{Enabled: false, Port: 9090},
		ClientListenAddr:    "0.0.0.0:9000",
		SSListenAddr:        "0.0.0.0:9001",
		DataDir:             "/var/lib/dnfs/ns",
		HeartbeatInterval:   5 * time.Second,
		HeartbeatTimeout:    15 * time.Second,
		ResolutionCacheSize: 128,
		AccessTableCapacity: 1024,
		FileMapCapacity:     1024,
		TableMaxLoadFactor:  0.5,
		ShutdownTimeout:     10 * time.Second,
	}
}

// ApplyNameServerDefaults fills zero-valued fields with defaults.
func ApplyNameServerDefaults(cfg *NameServerConfig) {
	d := defaultNameServerConfig()
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	if cfg.ClientListenAddr == "" {
		cfg.ClientListenAddr = d.ClientListenAddr
	}
	if cfg.SSListenAddr == "" {
		cfg.SSListenAddr = d.SSListenAddr
	}
	if cfg.DataDir == "" {
		cfg.DataDir = d.DataDir
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = d.HeartbeatInterval
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = d.HeartbeatTimeout
	}
	if cfg.ResolutionCacheSize == 0 {
		cfg.ResolutionCacheSize = d.ResolutionCacheSize
	}
	if cfg.AccessTableCapacity == 0 {
		cfg.AccessTableCapacity = d.AccessTableCapacity
	}
	if cfg.FileMapCapacity == 0 {
		cfg.FileMapCapacity = d.FileMapCapacity
	}
	if cfg.TableMaxLoadFactor == 0 {
		cfg.TableMaxLoadFactor = d.TableMaxLoadFactor
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = d.ShutdownTimeout
	}
}

// LoadNameServerConfig loads, defaults, and validates the NS configuration.
func LoadNameServerConfig(configPath string) (*NameServerConfig, error) {
	cfg := defaultNameServerConfig()
	found, err := load("DNFS_NS", "ns", configPath, cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return cfg, nil
	}
	ApplyNameServerDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
