package app

import (
	"github.com/vk/flowgrid/internal/flowerr"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	PipelinePath string // .hcl file or directory of .hcl files
	ReportPath   string // optional YAML run report

	LogFormat   string
	LogLevel    string
	WorkerCount int
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	const op = "app.NewConfig"
	if cfg.PipelinePath == "" {
		return nil, flowerr.Config(op, "PipelinePath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 0 {
		return nil, flowerr.Config(op, "worker count must not be negative, got %d", cfg.WorkerCount)
	}
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = DefaultWorkers
	}
	if _, err := parseLevel(cfg.LogLevel); err != nil {
		return nil, flowerr.Config(op, "%w", err)
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return nil, flowerr.Config(op, "invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	return &cfg, nil
}

// DefaultWorkers is the number of steps run concurrently when unset.
const DefaultWorkers = 4
