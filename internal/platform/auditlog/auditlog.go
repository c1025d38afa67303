package auditlog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record is one row of the audit_records table.
type Record struct {
	CreatedAt     time.Time
	CreatedBy     string
	Operation     string
	Action        string
	CorrelationID string
	Data          string
}

type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r Record) Validate() error {
	if r.CreatedAt.IsZero() {
		return errors.New("CreatedAt is required")
	}
	if strings.TrimSpace(r.Operation) == "" {
		return errors.New("Operation is required")
	}
	if strings.TrimSpace(r.Action) == "" {
		return errors.New("Action is required")
	}
	if strings.TrimSpace(r.CorrelationID) == "" {
		return errors.New("CorrelationID is required")
	}
	return nil
}

// Normalize fills defaults and trims identifiers.
func (r Record) Normalize() Record {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if strings.TrimSpace(r.CreatedBy) == "" {
		r.CreatedBy = "system"
	}
	r.CreatedBy = strings.TrimSpace(r.CreatedBy)
	r.Operation = strings.TrimSpace(r.Operation)
	r.Action = strings.TrimSpace(r.Action)
	r.CorrelationID = strings.TrimSpace(r.CorrelationID)
	return r
}

// Insert stores r and returns its id and integrity hash.
func Insert(ctx context.Context, q QueryRower, r Record) (int64, string, error) {
	if q == nil {
		return 0, "", errors.New("queryer is required")
	}
	r = r.Normalize()
	if err := r.Validate(); err != nil {
		return 0, "", err
	}

	integrity, err := ComputeIntegritySHA256(r)
	if err != nil {
		return 0, "", err
	}

	var id int64
	err = q.QueryRowContext(
		ctx,
		`INSERT INTO audit_records (
			created_at,
			created_by,
			operation,
			action,
			correlation_id,
			data,
			integrity_sha256
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING record_id`,
		r.CreatedAt,
		r.CreatedBy,
		r.Operation,
		r.Action,
		r.CorrelationID,
		r.Data,
		integrity,
	).Scan(&id)
	if err != nil {
		return 0, "", fmt.Errorf("insert audit record: %w", err)
	}
	return id, integrity, nil
}

func ComputeIntegritySHA256(r Record) (string, error) {
	type integrityInput struct {
		CreatedAt     time.Time `json:"created_at"`
		CreatedBy     string    `json:"created_by"`
		Operation     string    `json:"operation"`
		Action        string    `json:"action"`
		CorrelationID string    `json:"correlation_id"`
		Data          string    `json:"data"`
	}

	r = r.Normalize()
	blob, err := json.Marshal(integrityInput{
		CreatedAt:     r.CreatedAt,
		CreatedBy:     r.CreatedBy,
		Operation:     r.Operation,
		Action:        r.Action,
		CorrelationID: r.CorrelationID,
		Data:          r.Data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal integrity: %w", err)
	}
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:]), nil
}
