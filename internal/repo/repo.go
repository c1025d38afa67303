package repo

import (
	"context"
	"fmt"

	"github.com/animus-labs/animus-dataflow/internal/domain"
)

var (
	ErrNotFound = fmt.Errorf("record %w", domain.ErrNotFound)
	ErrConflict = fmt.Errorf("record already exists: %w", domain.ErrDuplicate)
)

// DefinitionFilter selects definitions whose name contains Search.
type DefinitionFilter struct {
	Search string
	Page   domain.PageRequest
}

type StreamDefinitionStore interface {
	Get(ctx context.Context, name string) (domain.StreamDefinition, error)
	// Save fails with ErrConflict when the name is taken.
	Save(ctx context.Context, def domain.StreamDefinition) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context, filter DefinitionFilter) (domain.Page[domain.StreamDefinition], error)
}

type TaskDefinitionStore interface {
	Get(ctx context.Context, name string) (domain.TaskDefinition, error)
	Save(ctx context.Context, def domain.TaskDefinition) error
	// SaveAll stores every definition or none of them.
	SaveAll(ctx context.Context, defs []domain.TaskDefinition) error
	Delete(ctx context.Context, name string) error
	// DeleteAll removes every named definition or none of them.
	DeleteAll(ctx context.Context, names []string) error
	List(ctx context.Context, filter DefinitionFilter) (domain.Page[domain.TaskDefinition], error)
}

type AppFilter struct {
	Type domain.AppType
	Name string
}

type AppRegistrationStore interface {
	// Save inserts or replaces the registration for name, type and version.
	Save(ctx context.Context, reg domain.AppRegistration) error
	Get(ctx context.Context, name string, typ domain.AppType, version string) (domain.AppRegistration, error)
	Default(ctx context.Context, name string, typ domain.AppType) (domain.AppRegistration, error)
	SetDefault(ctx context.Context, name string, typ domain.AppType, version string) error
	List(ctx context.Context, filter AppFilter) ([]domain.AppRegistration, error)
	Delete(ctx context.Context, name string, typ domain.AppType, version string) error
}

type AuditRecordStore interface {
	Append(ctx context.Context, rec domain.AuditRecord) (domain.AuditRecord, error)
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditRecord, error)
}
