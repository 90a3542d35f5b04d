package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	NATSStoreDir string `env:"NATS_STORE_DIR" envDefault:"./data/nats"`

	// ArtifactBackend selects where decoded binary content goes: memory
	// (dev/tests), dir (local filesystem), or s3.
	ArtifactBackend  string `env:"ARTIFACT_BACKEND" envDefault:"memory"`
	ArtifactDir      string `env:"ARTIFACT_DIR" envDefault:"./data/artifacts"`
	ArtifactMaxBytes int64  `env:"ARTIFACT_MAX_BYTES" envDefault:"33554432"`
	ArtifactTTLHours int    `env:"ARTIFACT_TTL_HOURS" envDefault:"24"`

	S3Bucket       string `env:"S3_BUCKET"`
	S3Prefix       string `env:"S3_PREFIX" envDefault:"artifacts"`
	S3Region       string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`

	ProgressGraceMs int `env:"PROGRESS_GRACE_MS" envDefault:"2000"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	switch cfg.ArtifactBackend {
	case "memory", "dir", "s3":
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", cfg.ArtifactBackend)
	}
	if cfg.ArtifactBackend == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET required for s3 artifact backend")
	}
	return cfg, nil
}
