// Package config defines service configuration and loading.
//
// Configuration layers defaults, an optional YAML file, and
// PROPCAST_-prefixed environment variables, highest layer winning.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreBackend selects the persistence layer: memory or redis.
	StoreBackend string `koanf:"store_backend"`

	// RedisAddr is the Redis endpoint when StoreBackend is redis.
	RedisAddr string `koanf:"redis_addr"`

	// PostgresDSN is the feature-store connection string. Empty disables
	// the Postgres feature store.
	PostgresDSN string `koanf:"postgres_dsn"`

	// ModelArtifactPath points at the learned model artifact. Empty
	// leaves the learned method permanently abstaining.
	ModelArtifactPath string `koanf:"model_artifact_path"`

	// WorkerCount sets the number of prediction workers.
	WorkerCount int `koanf:"worker_count"`

	// QueueCapacity bounds the in-memory work queue.
	QueueCapacity int `koanf:"queue_capacity"`

	// BatchDeadline is how long a batch may run before it closes as
	// partial.
	BatchDeadline time.Duration `koanf:"batch_deadline"`

	// DispatchRate and DispatchBurst pace work-item enqueueing.
	DispatchRate  float64 `koanf:"dispatch_rate"`
	DispatchBurst int     `koanf:"dispatch_burst"`

	// ConfidenceBlend mixes mean method confidence with the agreement
	// score when computing ensemble confidence.
	ConfidenceBlend float64 `koanf:"confidence_blend"`

	// MinEdge is the |predicted - line| threshold below which the
	// recommendation is PASS.
	MinEdge float64 `koanf:"min_edge"`

	// LowAgreement forces PASS below this agreement score.
	LowAgreement float64 `koanf:"low_agreement"`

	// WeightWindowDays is the trailing grading window for weight
	// recomputation.
	WeightWindowDays int `koanf:"weight_window_days"`

	// WeightMinSamples is the grading count below which a method keeps
	// its previous weight.
	WeightMinSamples int `koanf:"weight_min_samples"`

	// WeightInterval is how often weights are recomputed.
	WeightInterval time.Duration `koanf:"weight_interval"`
}

// New returns a Config populated with production defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":8090",
		StoreBackend:     "memory",
		RedisAddr:        "localhost:6379",
		WorkerCount:      runtime.NumCPU() * 4,
		QueueCapacity:    10_000,
		BatchDeadline:    10 * time.Minute,
		DispatchRate:     200,
		DispatchBurst:    50,
		ConfidenceBlend:  0.5,
		MinEdge:          1.5,
		LowAgreement:     70,
		WeightWindowDays: 14,
		WeightMinSamples: 10,
		WeightInterval:   6 * time.Hour,
	}
}
