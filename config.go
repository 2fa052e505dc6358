package graphstore

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the engine's on-disk configuration, loaded from a TOML file
// the way talent-plan-tinykv's scheduler config does (toml struct tags,
// BurntSushi/toml decoding).
type Config struct {
	// DataDir holds the write-ahead log. The in-memory block arena and
	// graph directory are never persisted directly; they are rebuilt by
	// replaying the WAL on Open.
	DataDir string `toml:"data-dir"`

	// ArenaRegionOrder sizes each region the block arena grows by,
	// log2(bytes). See internal/block.Arena.
	ArenaRegionOrder int `toml:"arena-region-order"`

	// SyncWAL fsyncs every WAL append. Off by default, matching the
	// teacher's append-and-move-on WAL posture; turn on for durability at
	// the cost of commit latency.
	SyncWAL bool `toml:"sync-wal"`

	// LogLevel is a zap level name: "debug", "info", "warn", or "error".
	LogLevel string `toml:"log-level"`
}

// DefaultConfig returns the configuration new-ing up a Graph with no TOML
// file uses.
func DefaultConfig() Config {
	return Config{
		DataDir:          "data",
		ArenaRegionOrder: 26, // 64 MiB regions
		SyncWAL:          false,
		LogLevel:         "info",
	}
}

// LoadConfig reads and decodes a TOML configuration file, starting from
// DefaultConfig so an incomplete file still yields usable settings.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
