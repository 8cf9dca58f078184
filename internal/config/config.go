// Package config handles loading and parsing the application's configuration.
package config

import (
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Serialization modes accepted in the `mode` key.
const (
	ModeSynchronized   = "synchronized"
	ModeUnsynchronized = "unsynchronized"
	ModeSequenced      = "sequenced"
)

// Duration wraps time.Duration so it can be written as "250ms" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", string(text))
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Raft tunes the single-node log used in sequenced mode.
type Raft struct {
	HeartbeatTimeout Duration `toml:"heartbeat_timeout"`
	ElectionTimeout  Duration `toml:"election_timeout"`
	CommitTimeout    Duration `toml:"commit_timeout"`
}

// Config holds all configuration for the application.
// We use struct tags to explicitly map TOML keys to struct fields.
type Config struct {
	NodeID        string   `toml:"node_id"` // Unique ID of this node, also the raft server ID
	Host          string   `toml:"host"`
	Port          int      `toml:"port"`     // HTTP port
	RPCPort       int      `toml:"rpc_port"` // gRPC port
	Mode          string   `toml:"mode"`     // synchronized, unsynchronized or sequenced
	CounterRounds int      `toml:"counter_rounds"`
	ApplyTimeout  Duration `toml:"apply_timeout"`
	LogLevel      string   `toml:"log_level"`
	LogFormat     string   `toml:"log_format"` // console or json
	Raft          Raft     `toml:"raft"`
}

// New returns a new Config with default values.
func New() *Config {
	return &Config{
		NodeID:        "node1",
		Host:          "localhost",
		Port:          8080,
		RPCPort:       9080,
		Mode:          ModeSynchronized,
		CounterRounds: 900000,
		ApplyTimeout:  Duration{5 * time.Second},
		LogLevel:      "info",
		LogFormat:     "console",
		Raft: Raft{
			HeartbeatTimeout: Duration{100 * time.Millisecond},
			ElectionTimeout:  Duration{100 * time.Millisecond},
			CommitTimeout:    Duration{5 * time.Millisecond},
		},
	}
}

// Load reads a configuration file from the given path and populates the Config struct.
func (c *Config) Load(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return errors.Wrapf(err, "load config %s", path)
	}
	return nil
}

// Validate checks that the configuration can be used to start a node.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeSynchronized, ModeUnsynchronized, ModeSequenced:
	default:
		return errors.Errorf("unknown mode %q", c.Mode)
	}
	if c.NodeID == "" {
		return errors.New("node_id must not be empty")
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("invalid port %d", c.Port)
	}
	if c.RPCPort < 0 || c.RPCPort > 65535 {
		return errors.Errorf("invalid rpc_port %d", c.RPCPort)
	}
	if c.CounterRounds <= 0 {
		return errors.Errorf("counter_rounds must be positive, got %d", c.CounterRounds)
	}
	if c.ApplyTimeout.Duration <= 0 {
		return errors.New("apply_timeout must be positive")
	}
	return nil
}
