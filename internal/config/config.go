package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	pebblestore "github.com/cschjolb/seqflow/internal/storage/pebble"
)

// Config is the top-level configuration loaded from file/env for the CLI's
// demo server (cmd/seqflowd): category provisioning policy, storage fsync
// mode, and the EventStream replay/live-cutover tuning knobs.
type Config struct {
	AllowAutoCreateCategories bool             `json:"allowAutoCreateCategories"`
	DefaultCategoryName       string           `json:"defaultCategoryName"`
	CategoryNameRegex         string           `json:"categoryNameRegex"`
	CategoryDefaults          CategoryDefaults `json:"categoryDefaults"`
	MaxCategories             int              `json:"maxCategories"`
	AllowedCategories         []string         `json:"allowedCategories"`

	Fsync    string       `json:"fsync"` // "always", "interval", "never"
	Stream   StreamConfig `json:"stream"`
	DataDir  string       `json:"dataDir"`
}

// CategoryDefaults captures per-category baseline limits: partition count
// and payload/headers byte caps. They are loaded and overlaid from the
// environment only; category.Ensure provisions new categories with
// category.Defaults() and does not read these values.
type CategoryDefaults struct {
	Partitions      int `json:"partitions"`
	PayloadMaxBytes int `json:"payloadMaxBytes"`
	HeadersMaxBytes int `json:"headersMaxBytes"`
}

// StreamConfig mirrors eventstream.Config's tuning knobs so they can be
// loaded from file/env without importing internal/eventstream here (config
// stays a leaf package).
type StreamConfig struct {
	ReplayBuffer             int           `json:"replayBuffer"`
	LiveBuffer               int           `json:"liveBuffer"`
	GapReplayDelay           time.Duration `json:"gapReplayDelay"`
	MaxClockSkew             time.Duration `json:"maxClockSkew"`
	MaxReplayConsumptionWait time.Duration `json:"maxReplayConsumptionWait"`
	Workers                  int           `json:"workers"`
	ConsumeTimeout           time.Duration `json:"consumeTimeout"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		AllowAutoCreateCategories: true,
		DefaultCategoryName:       "default",
		CategoryNameRegex:         "[a-z0-9-_]{1,64}",
		CategoryDefaults: CategoryDefaults{
			Partitions:      16,
			PayloadMaxBytes: 1 << 20,
			HeadersMaxBytes: 16 << 10,
		},
		Fsync: "default",
		Stream: StreamConfig{
			ReplayBuffer:             256,
			LiveBuffer:               0,
			GapReplayDelay:           2 * time.Second,
			MaxClockSkew:             5 * time.Second,
			MaxReplayConsumptionWait: 0,
			Workers:                  0,
			ConsumeTimeout:           60 * time.Second,
		},
		DataDir: DefaultDataDir(),
	}
}

// FsyncMode translates Config.Fsync into the storage layer's enum.
func (c Config) FsyncMode() pebblestore.FsyncMode {
	switch c.Fsync {
	case "always":
		return pebblestore.FsyncModeAlways
	case "interval":
		return pebblestore.FsyncModeInterval
	case "never":
		return pebblestore.FsyncModeNever
	default:
		return pebblestore.FsyncModeUnspecified
	}
}

// Load reads configuration from a JSON file. If path is empty, returns
// defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".json", "":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	case ".yaml", ".yml":
		return Config{}, errors.New("yaml config not supported yet; use JSON for now")
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}
