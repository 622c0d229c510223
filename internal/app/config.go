package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/vk/modgraph/internal/inspector"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ManifestPaths []string // .hcl files or directories

	Preview        bool
	Snapshot       bool
	SnapshotOut    string // file path, "-" for the output writer
	SnapshotFormat string

	DevtoolsURL       string
	DevtoolsNamespace string
	DevtoolsTimeout   time.Duration

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.ManifestPaths) == 0 {
		return nil, errors.New("at least one manifest path is required")
	}
	switch cfg.SnapshotFormat {
	case "":
		cfg.SnapshotFormat = inspector.FormatJSON
	case inspector.FormatJSON, inspector.FormatYAML:
	default:
		return nil, fmt.Errorf("invalid snapshot format '%s': must be '%s' or '%s'", cfg.SnapshotFormat, inspector.FormatJSON, inspector.FormatYAML)
	}
	// Exporting or publishing needs something recorded.
	if cfg.SnapshotOut != "" || cfg.DevtoolsURL != "" {
		cfg.Snapshot = true
	}
	return &cfg, nil
}
