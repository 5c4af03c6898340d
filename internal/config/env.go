package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// FromEnv overlays SEQFLOW_* environment variables onto cfg.
func FromEnv(cfg *Config) {
	if v := os.Getenv("SEQFLOW_ALLOW_AUTO_CREATE_CATEGORIES"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AllowAutoCreateCategories = b
		}
	}
	if v := os.Getenv("SEQFLOW_DEFAULT_CATEGORY_NAME"); v != "" {
		cfg.DefaultCategoryName = v
	}
	if v := os.Getenv("SEQFLOW_CATEGORY_NAME_REGEX"); v != "" {
		cfg.CategoryNameRegex = v
	}
	if v := os.Getenv("SEQFLOW_CATEGORY_DEFAULTS_PARTITIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CategoryDefaults.Partitions = n
		}
	}
	if v := os.Getenv("SEQFLOW_CATEGORY_DEFAULTS_PAYLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CategoryDefaults.PayloadMaxBytes = n
		}
	}
	if v := os.Getenv("SEQFLOW_CATEGORY_DEFAULTS_HEADERS_MAX_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CategoryDefaults.HeadersMaxBytes = n
		}
	}
	if v := os.Getenv("SEQFLOW_MAX_CATEGORIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxCategories = n
		}
	}
	if v := os.Getenv("SEQFLOW_ALLOWED_CATEGORIES"); v != "" {
		parts := strings.Split(v, ",")
		cfg.AllowedCategories = nil
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.AllowedCategories = append(cfg.AllowedCategories, p)
			}
		}
	}
	if v := os.Getenv("SEQFLOW_FSYNC"); v != "" {
		cfg.Fsync = v
	}
	if v := os.Getenv("SEQFLOW_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	if v := os.Getenv("SEQFLOW_STREAM_REPLAY_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stream.ReplayBuffer = n
		}
	}
	if v := os.Getenv("SEQFLOW_STREAM_LIVE_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stream.LiveBuffer = n
		}
	}
	if v := os.Getenv("SEQFLOW_STREAM_GAP_REPLAY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.GapReplayDelay = d
		}
	}
	if v := os.Getenv("SEQFLOW_STREAM_MAX_CLOCK_SKEW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.MaxClockSkew = d
		}
	}
	if v := os.Getenv("SEQFLOW_STREAM_MAX_REPLAY_CONSUMPTION_WAIT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.MaxReplayConsumptionWait = d
		}
	}
	if v := os.Getenv("SEQFLOW_STREAM_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Stream.Workers = n
		}
	}
	if v := os.Getenv("SEQFLOW_STREAM_CONSUME_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Stream.ConsumeTimeout = d
		}
	}
}
