package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/animus-labs/animus-dataflow/internal/auditexport"
	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/repo"
)

// Service persists audit records and forwards them to an exporter.
// Recording never fails the audited operation.
type Service struct {
	logger   *slog.Logger
	store    repo.AuditRecordStore
	exporter auditexport.Exporter
	redactor Redactor
}

func NewService(logger *slog.Logger, store repo.AuditRecordStore, exporter auditexport.Exporter, redactor Redactor) *Service {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if exporter == nil {
		exporter = auditexport.NoopExporter{}
	}
	return &Service{logger: logger, store: store, exporter: exporter, redactor: redactor}
}

// Redactor is safe to call on a nil Service; the zero Redactor masks nothing.
func (s *Service) Redactor() Redactor {
	if s == nil {
		return Redactor{}
	}
	return s.redactor
}

// Record stores one entry. String data is stored as is; anything else is JSON encoded.
// Callers redact sensitive values before passing data in.
func (s *Service) Record(ctx context.Context, op domain.AuditOperation, action domain.AuditAction, correlationID string, data any) {
	if s == nil {
		return
	}
	encoded, err := encodeData(data)
	if err != nil {
		s.logger.Error("encode audit data", "operation", op, "action", action, "correlation_id", correlationID, "error", err)
		return
	}
	rec, err := s.store.Append(ctx, domain.AuditRecord{
		Operation:     op,
		Action:        action,
		CorrelationID: correlationID,
		Data:          encoded,
	})
	if err != nil {
		s.logger.Error("append audit record", "operation", op, "action", action, "correlation_id", correlationID, "error", err)
		return
	}
	if err := s.exporter.Export(ctx, rec); err != nil {
		s.logger.Warn("export audit record", "record_id", rec.ID, "error", err)
	}
}

func (s *Service) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	records, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, domain.Backend("list audit records", err)
	}
	return records, nil
}

func encodeData(data any) (string, error) {
	switch v := data.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	}
	blob, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	return string(blob), nil
}
