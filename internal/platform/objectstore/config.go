package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/platform/env"
)

type Config struct {
	Enabled        bool
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Region         string
	UseSSL         bool
	BucketPackages string
	BucketMetadata string
}

func ConfigFromEnv() (Config, error) {
	enabled, err := env.Bool("DATAFLOW_MINIO_ENABLED", false)
	if err != nil {
		return Config{}, err
	}
	useSSL, err := env.Bool("DATAFLOW_MINIO_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Enabled:        enabled,
		Endpoint:       env.String("DATAFLOW_MINIO_ENDPOINT", "localhost:9000"),
		AccessKey:      env.String("DATAFLOW_MINIO_ACCESS_KEY", "dataflow"),
		SecretKey:      env.String("DATAFLOW_MINIO_SECRET_KEY", "dataflowminio"),
		Region:         env.String("DATAFLOW_MINIO_REGION", "us-east-1"),
		UseSSL:         useSSL,
		BucketPackages: env.String("DATAFLOW_MINIO_BUCKET_PACKAGES", "packages"),
		BucketMetadata: env.String("DATAFLOW_MINIO_BUCKET_METADATA", "app-metadata"),
	}
	if !cfg.Enabled {
		return cfg, nil
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if strings.TrimSpace(c.BucketPackages) == "" {
		return errors.New("packages bucket is required")
	}
	if strings.TrimSpace(c.BucketMetadata) == "" {
		return errors.New("metadata bucket is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}
