package config

import "time"

// StorageServerConfig is the storage server's full configuration. The NS
// address and this SS's own advertised address/ports are spec.md §6
// positional CLI arguments (`<ns_ip> <ns_port> <my_ip> <my_client_port>
// <my_repl_port>`), not config-file fields; everything else — data
// directory, timing, replication, and lock-map sizing — lives here.
type StorageServerConfig struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// DataDir holds each file's contents, metadata.db, swapfiles, the undo
	// slot, and the checkpoint store (spec.md §6).
	DataDir string `mapstructure:"data_dir" validate:"required" yaml:"data_dir"`

	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"required,gt=0" yaml:"heartbeat_interval"`

	// ReplicationMaxRetries bounds the replication worker's retry queue
	// (spec.md §4.3: "at most 5 attempts before the job is dropped").
	ReplicationMaxRetries int `mapstructure:"replication_max_retries" validate:"required,gt=0" yaml:"replication_max_retries"`
	// ReplicationQueueSize bounds the in-memory pending-replication queue.
	ReplicationQueueSize int `mapstructure:"replication_queue_size" validate:"required,gt=0" yaml:"replication_queue_size"`
	// ReplicationRetryBackoff is the delay between retry attempts for one job.
	ReplicationRetryBackoff time.Duration `mapstructure:"replication_retry_backoff" validate:"required,gt=0" yaml:"replication_retry_backoff"`

	// SentenceLockMapInitialSize is the starting capacity of a file's
	// growable per-sentence mutex array (spec.md §4.3).
	SentenceLockMapInitialSize int `mapstructure:"sentence_lock_map_initial_size" validate:"required,gt=0" yaml:"sentence_lock_map_initial_size"`

	// AcceptPollInterval is the SO_RCVTIMEO-style poll period acceptor loops
	// use to notice a shutdown flag (spec.md §5).
	AcceptPollInterval time.Duration `mapstructure:"accept_poll_interval" validate:"required,gt=0" yaml:"accept_poll_interval"`

	// CheckpointInterval drives the periodic metadata-table checkpointer.
	CheckpointInterval time.Duration `mapstructure:"checkpoint_interval" validate:"required,gt=0" yaml:"checkpoint_interval"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`
}

// DefaultStorageServerConfig returns the storage server's defaults,
// unaffected by any config file or environment variable. Used by the
// "config init" subcommand to seed an editable starting point.
func DefaultStorageServerConfig() *StorageServerConfig {
	return defaultStorageServerConfig()
}

func defaultStorageServerConfig() *StorageServerConfig {
	return &StorageServerConfig{
		Logging:                    defaultLogging(),
		Metrics:                    MetricsConfig{Enabled: false, Port: 9091},
		DataDir:                    "/var/lib/dnfs/ss",
		HeartbeatInterval:          5 * time.Second,
		ReplicationMaxRetries:      5,
		ReplicationQueueSize:       256,
		ReplicationRetryBackoff:    2 * time.Second,
		SentenceLockMapInitialSize: 64,
		AcceptPollInterval:         500 * time.Millisecond,
		CheckpointInterval:         30 * time.Second,
		ShutdownTimeout:            10 * time.Second,
	}
}

// ApplyStorageServerDefaults fills zero-valued fields with defaults.
func ApplyStorageServerDefaults(cfg *StorageServerConfig) {
	d := defaultStorageServerConfig()
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	if cfg.DataDir == "" {
		cfg.DataDir = d.DataDir
	}
	if cfg.HeartbeatInterval == 0 {
		cfg.HeartbeatInterval = d.HeartbeatInterval
	}
	if cfg.ReplicationMaxRetries == 0 {
		cfg.ReplicationMaxRetries = d.ReplicationMaxRetries
	}
	if cfg.ReplicationQueueSize == 0 {
		cfg.ReplicationQueueSize = d.ReplicationQueueSize
	}
	if cfg.ReplicationRetryBackoff == 0 {
		cfg.ReplicationRetryBackoff = d.ReplicationRetryBackoff
	}
	if cfg.SentenceLockMapInitialSize == 0 {
		cfg.SentenceLockMapInitialSize = d.SentenceLockMapInitialSize
	}
	if cfg.AcceptPollInterval == 0 {
		cfg.AcceptPollInterval = d.AcceptPollInterval
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = d.CheckpointInterval
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = d.ShutdownTimeout
	}
}

// LoadStorageServerConfig loads, defaults, and validates the SS configuration.
func LoadStorageServerConfig(configPath string) (*StorageServerConfig, error) {
	cfg := defaultStorageServerConfig()
	found, err := load("DNFS_SS", "ss", configPath, cfg)
	if err != nil {
		return nil, err
	}
	if !found {
		return cfg, nil
	}
	ApplyStorageServerDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
