package config

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// ByteSize is a byte count parsed from humanized YAML strings
// (e.g. "15MiB", "64KiB", or a bare number).
type ByteSize int

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == "" {
		*b = 0
		return nil
	}
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return fmt.Errorf("invalid byte size %q: %w", raw, err)
	}
	*b = ByteSize(n)
	return nil
}

// Duration is a time.Duration parsed from YAML duration strings.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw == "" || raw == "0" {
		*d = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(dur)
	return nil
}

// Config is the main configuration struct.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Storage     StorageConfig     `yaml:"storage"`
	Tables      []TableConfig     `yaml:"tables"`
	Writer      WriterConfig      `yaml:"writer"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Security    SecurityConfig    `yaml:"security"`
}

// ServerConfig holds http and tls settings.
type ServerConfig struct {
	Address string    `yaml:"address"`
	Port    int       `yaml:"port"`
	Engine  string    `yaml:"engine"` // "nethttp" (default) or "fasthttp"
	TLS     TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate configuration.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// StorageConfig declares the keyspaces and placements this node writes.
type StorageConfig struct {
	DataDir    string            `yaml:"data_dir"`
	Keyspaces  []KeyspaceConfig  `yaml:"keyspaces"`
	Placements []PlacementConfig `yaml:"placements"`
}

// KeyspaceConfig is one shard of the backing cluster.
type KeyspaceConfig struct {
	Name string `yaml:"name"`
	// Path overrides <data_dir>/<name>.
	Path string `yaml:"path"`
	// FrameSize is the transport frame limit; must match writer.max_frame_size.
	FrameSize ByteSize `yaml:"frame_size"`
}

// PlacementConfig binds a placement to a keyspace and column families.
type PlacementConfig struct {
	Name      string `yaml:"name"`
	Keyspace  string `yaml:"keyspace"`
	DeltaCF   string `yaml:"delta_cf"`
	HistoryCF string `yaml:"history_cf"`
}

// TableConfig names a logical table and its ordered write placements.
type TableConfig struct {
	Name       string   `yaml:"name"`
	Placements []string `yaml:"placements"`
}

// WriterConfig carries the write-path thresholds.
type WriterConfig struct {
	MaxBatchSize      int      `yaml:"max_batch_size"`
	MaxPendingSize    int      `yaml:"max_pending_size"`
	MaxFrameSize      ByteSize `yaml:"max_frame_size"`
	MaxDeltaSize      ByteSize `yaml:"max_delta_size"`
	BlockSize         ByteSize `yaml:"block_size"`
	DeltaPrefixLength int      `yaml:"delta_prefix_length"`
	PurgeBatchSize    int      `yaml:"purge_batch_size"`
	HistoryTTL        Duration `yaml:"history_ttl"`
}

// MaintenanceConfig configures the history expiry sweeper.
type MaintenanceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// SecurityConfig holds API keys and rate limiting.
type SecurityConfig struct {
	APIKeys struct {
		Backend []string `yaml:"backend"`
		Admin   []string `yaml:"admin"`
	} `yaml:"api_keys"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}
