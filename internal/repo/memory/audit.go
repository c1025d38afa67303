package memory

import (
	"context"
	"sync"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/platform/auditlog"
)

type AuditRecords struct {
	mu      sync.RWMutex
	records []domain.AuditRecord
}

func NewAuditRecords() *AuditRecords {
	return &AuditRecords{}
}

func (s *AuditRecords) Append(_ context.Context, rec domain.AuditRecord) (domain.AuditRecord, error) {
	row := auditlog.Record{
		CreatedAt:     rec.CreatedAt,
		CreatedBy:     rec.CreatedBy,
		Operation:     string(rec.Operation),
		Action:        string(rec.Action),
		CorrelationID: rec.CorrelationID,
		Data:          rec.Data,
	}.Normalize()
	if err := row.Validate(); err != nil {
		return domain.AuditRecord{}, err
	}
	integrity, err := auditlog.ComputeIntegritySHA256(row)
	if err != nil {
		return domain.AuditRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = int64(len(s.records) + 1)
	rec.CreatedAt = row.CreatedAt
	rec.CreatedBy = row.CreatedBy
	rec.IntegritySHA256 = integrity
	s.records = append(s.records, rec)
	return rec, nil
}

// List returns matching records, newest first.
func (s *AuditRecords) List(_ context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditRecord, 0)
	for i := len(s.records) - 1; i >= 0; i-- {
		rec := s.records[i]
		if filter.Operation != "" && rec.Operation != filter.Operation {
			continue
		}
		if filter.Action != "" && rec.Action != filter.Action {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
