package auditexport

import (
	"context"
	"io"

	"github.com/animus-labs/animus-dataflow/internal/domain"
)

// Exporter sends audit records to external systems.
type Exporter interface {
	Export(ctx context.Context, rec domain.AuditRecord) error
}

// NoopExporter drops every record.
type NoopExporter struct{}

func (NoopExporter) Export(ctx context.Context, rec domain.AuditRecord) error {
	return nil
}

// New builds the exporter selected by cfg. stdout is used for the stdout destination.
func New(cfg Config, stdout io.Writer) (Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.destination() == DestinationStdout && stdout != nil {
		return NewNDJSONExporter(stdout), nil
	}
	return NoopExporter{}, nil
}
