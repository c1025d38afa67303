package auditexport

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/animus-labs/animus-dataflow/internal/domain"
)

// NDJSONExporter writes audit records as newline-delimited JSON.
type NDJSONExporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewNDJSONExporter(w io.Writer) *NDJSONExporter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	return &NDJSONExporter{enc: enc}
}

func (e *NDJSONExporter) Export(ctx context.Context, rec domain.AuditRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(exportRecordFromDomain(rec))
}

type exportRecord struct {
	RecordID        int64  `json:"record_id"`
	CreatedAt       string `json:"created_at"`
	CreatedBy       string `json:"created_by"`
	Operation       string `json:"operation"`
	Action          string `json:"action"`
	CorrelationID   string `json:"correlation_id"`
	Data            string `json:"data"`
	IntegritySHA256 string `json:"integrity_sha256"`
}

func exportRecordFromDomain(rec domain.AuditRecord) exportRecord {
	return exportRecord{
		RecordID:        rec.ID,
		CreatedAt:       rec.CreatedAt.UTC().Format(timeFormatRFC3339Nano),
		CreatedBy:       rec.CreatedBy,
		Operation:       string(rec.Operation),
		Action:          string(rec.Action),
		CorrelationID:   rec.CorrelationID,
		Data:            rec.Data,
		IntegritySHA256: rec.IntegritySHA256,
	}
}

const timeFormatRFC3339Nano = "2006-01-02T15:04:05.999999999Z07:00"
