package domain

import (
	"strings"
	"time"
)

type AuditOperation string

const (
	AuditOperationStream          AuditOperation = "STREAM"
	AuditOperationTask            AuditOperation = "TASK"
	AuditOperationSchedule        AuditOperation = "SCHEDULE"
	AuditOperationAppRegistration AuditOperation = "APP_REGISTRATION"
)

type AuditAction string

const (
	AuditActionCreate   AuditAction = "CREATE"
	AuditActionDelete   AuditAction = "DELETE"
	AuditActionDeploy   AuditAction = "DEPLOY"
	AuditActionUndeploy AuditAction = "UNDEPLOY"
	AuditActionUpdate   AuditAction = "UPDATE"
	AuditActionLaunch   AuditAction = "LAUNCH"
)

// AuditRecord is an immutable audit trail entry. Data is already redacted.
type AuditRecord struct {
	ID              int64
	CreatedAt       time.Time
	CreatedBy       string
	Operation       AuditOperation
	Action          AuditAction
	CorrelationID   string
	Data            string
	IntegritySHA256 string
}

func (r AuditRecord) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(string(r.Operation)) == "" {
		verr.Add("operation is required")
	}
	if strings.TrimSpace(string(r.Action)) == "" {
		verr.Add("action is required")
	}
	if strings.TrimSpace(r.CorrelationID) == "" {
		verr.Add("correlation id is required")
	}
	return verr.OrNil()
}

// AuditFilter narrows audit record listings.
type AuditFilter struct {
	Operation AuditOperation
	Action    AuditAction
	Limit     int
}
