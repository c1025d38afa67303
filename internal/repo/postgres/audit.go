package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/platform/auditlog"
)

type AuditRecordStore struct {
	db DB
}

func NewAuditRecordStore(db DB) *AuditRecordStore {
	if db == nil {
		return nil
	}
	return &AuditRecordStore{db: db}
}

func (s *AuditRecordStore) Append(ctx context.Context, rec domain.AuditRecord) (domain.AuditRecord, error) {
	row := auditlog.Record{
		CreatedAt:     rec.CreatedAt,
		CreatedBy:     rec.CreatedBy,
		Operation:     string(rec.Operation),
		Action:        string(rec.Action),
		CorrelationID: rec.CorrelationID,
		Data:          rec.Data,
	}.Normalize()
	id, integrity, err := auditlog.Insert(ctx, s.db, row)
	if err != nil {
		return domain.AuditRecord{}, fmt.Errorf("append audit record: %w", err)
	}
	rec.ID = id
	rec.CreatedAt = row.CreatedAt
	rec.CreatedBy = row.CreatedBy
	rec.IntegritySHA256 = integrity
	return rec, nil
}

func (s *AuditRecordStore) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error) {
	clauses := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if filter.Operation != "" {
		args = append(args, string(filter.Operation))
		clauses = append(clauses, fmt.Sprintf("operation = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		clauses = append(clauses, fmt.Sprintf("action = $%d", len(args)))
	}

	query := `SELECT record_id, created_at, created_by, operation, action, correlation_id, data, integrity_sha256 FROM audit_records`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY record_id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AuditRecord, 0)
	for rows.Next() {
		var (
			rec       domain.AuditRecord
			operation string
			action    string
		)
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.CreatedBy, &operation, &action, &rec.CorrelationID, &rec.Data, &rec.IntegritySHA256); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.Operation = domain.AuditOperation(operation)
		rec.Action = domain.AuditAction(action)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit records: %w", err)
	}
	return out, nil
}
