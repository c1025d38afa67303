package auditexport

import (
	"fmt"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/platform/env"
)

const (
	DestinationNone   = "none"
	DestinationStdout = "stdout"
)

// Config controls audit export format and destination.
type Config struct {
	Format      string
	Destination string
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Format:      env.String("DATAFLOW_AUDIT_EXPORT_FORMAT", "ndjson"),
		Destination: env.String("DATAFLOW_AUDIT_EXPORT_DESTINATION", DestinationNone),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	format := strings.ToLower(strings.TrimSpace(c.Format))
	destination := strings.ToLower(strings.TrimSpace(c.Destination))
	if format == "" {
		format = "ndjson"
	}
	if destination == "" {
		destination = DestinationNone
	}
	if format != "ndjson" {
		return fmt.Errorf("unsupported audit export format: %s", format)
	}
	if destination != DestinationNone && destination != DestinationStdout {
		return fmt.Errorf("unsupported audit export destination: %s", destination)
	}
	return nil
}

func (c Config) destination() string {
	d := strings.ToLower(strings.TrimSpace(c.Destination))
	if d == "" {
		return DestinationNone
	}
	return d
}
