package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env
// vars. Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if PROPCAST_CONFIG is set
//  3. env (prefix PROPCAST_)
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("PROPCAST_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// Environment variables: PROPCAST_ADDR, PROPCAST_WORKER_COUNT, ...
	// Map env keys like PROPCAST_WORKER_COUNT -> worker_count (flat
	// keys). Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("PROPCAST_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "propcast_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	switch c.StoreBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.StoreBackend == "redis" && c.RedisAddr == "" {
		return errors.New("redis_addr required for the redis backend")
	}
	if c.WorkerCount < 1 {
		return errors.New("worker_count must be positive")
	}
	if c.QueueCapacity < 1 {
		return errors.New("queue_capacity must be positive")
	}
	if c.ConfidenceBlend < 0 || c.ConfidenceBlend > 1 {
		return errors.New("confidence_blend must be within [0, 1]")
	}
	return nil
}
