// FILE: logkeep/src/internal/config/config.go
package config

import (
	"logkeep/src/internal/filter"
	"logkeep/src/internal/format"
)

// Config is the root logkeep configuration.
type Config struct {
	Buffer   BufferConfig    `toml:"buffer"`
	Dispatch DispatchConfig  `toml:"dispatch"`
	Filters  []filter.Config `toml:"filters"`
	Format   FormatConfig    `toml:"format"`
	Sinks    []SinkConfig    `toml:"sinks"`
	Logging  *LogConfig      `toml:"logging"`
}

// BufferConfig controls the bounded entry store.
type BufferConfig struct {
	// Maximum number of retained entries.
	Capacity int `toml:"capacity"`

	// Snapshot file written on shutdown and, when restore_on_start is
	// set, read back on startup. Empty disables persistence.
	SnapshotPath   string `toml:"snapshot_path"`
	RestoreOnStart bool   `toml:"restore_on_start"`
}

// DispatchConfig controls entry admission.
type DispatchConfig struct {
	// Entries per second admitted to the dispatcher; 0 disables the
	// limit. Overflow is dropped, never queued.
	RateLimit float64 `toml:"rate_limit"`
	RateBurst int     `toml:"rate_burst"`
}

// FormatConfig selects the formatter used by the sinks.
type FormatConfig struct {
	Type    string         `toml:"type"` // "text" or "json"
	Options format.Options `toml:"options"`
}

// SinkConfig describes one output destination. Exactly one of the
// option sections must match Type.
type SinkConfig struct {
	Type    string          `toml:"type"` // "console", "file", "http", "tcp"
	Console *ConsoleOptions `toml:"console"`
	File    *FileOptions    `toml:"file"`
	HTTP    *HTTPOptions    `toml:"http"`
	TCP     *TCPOptions     `toml:"tcp"`
}

// ConsoleOptions configures the console sink.
type ConsoleOptions struct {
	// "stdout", "stderr", or "split" (info and below to stdout,
	// warn and above to stderr).
	Target     string `toml:"target"`
	BufferSize int64  `toml:"buffer_size"`
}

// FileOptions configures the rotating file sink.
type FileOptions struct {
	Path       string `toml:"path"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
	BufferSize int64  `toml:"buffer_size"`
}

// HTTPOptions configures the HTTP sink.
type HTTPOptions struct {
	Host       string `toml:"host"`
	Port       int64  `toml:"port"`
	BufferSize int64  `toml:"buffer_size"`

	StreamPath  string `toml:"stream_path"`
	EntriesPath string `toml:"entries_path"`
	StatusPath  string `toml:"status_path"`
	ClearPath   string `toml:"clear_path"`

	WriteTimeoutMS int64 `toml:"write_timeout_ms"`

	Heartbeat *HeartbeatConfig `toml:"heartbeat"`

	// HS256 secret for bearer-token auth on the stream, entries and
	// clear endpoints. Empty disables authentication.
	AuthSecret string `toml:"auth_secret"`
}

// TCPOptions configures the TCP broadcast sink.
type TCPOptions struct {
	Host       string `toml:"host"`
	Port       int64  `toml:"port"`
	BufferSize int64  `toml:"buffer_size"`
}

// HeartbeatConfig controls periodic keep-alive events on streaming sinks.
type HeartbeatConfig struct {
	Enabled         bool  `toml:"enabled"`
	IntervalSeconds int64 `toml:"interval_seconds"`
}
