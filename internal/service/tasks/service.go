package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/audit"
	"github.com/animus-labs/animus-dataflow/internal/deployer"
	"github.com/animus-labs/animus-dataflow/internal/deployment/compiler"
	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/dsl/taskdsl"
	"github.com/animus-labs/animus-dataflow/internal/repo"
)

const (
	AppValid   = "valid"
	AppInvalid = "invalid"
)

type Registry interface {
	Find(ctx context.Context, name string, typ domain.AppType) (domain.AppRegistration, error)
}

type Config struct {
	// MaxConcurrentTasks caps running executions across all tasks.
	MaxConcurrentTasks int
}

type Service struct {
	logger   *slog.Logger
	defs     repo.TaskDefinitionStore
	registry Registry
	compiler *compiler.Compiler
	launcher deployer.TaskLauncher
	audit    *audit.Service
	cfg      Config
}

// New returns nil when a required collaborator is missing. auditor is optional.
func New(logger *slog.Logger, defs repo.TaskDefinitionStore, registry Registry, c *compiler.Compiler, launcher deployer.TaskLauncher, auditor *audit.Service, cfg Config) *Service {
	if defs == nil || registry == nil || c == nil || launcher == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrentTasks <= 0 {
		cfg.MaxConcurrentTasks = 20
	}
	return &Service{
		logger:   logger,
		defs:     defs,
		registry: registry,
		compiler: c,
		launcher: launcher,
		audit:    auditor,
		cfg:      cfg,
	}
}

// Save stores a task definition. A composed definition is stored together
// with one child definition per step. Any existing definition with a child's
// name fails the save and nothing is stored.
func (s *Service) Save(ctx context.Context, def domain.TaskDefinition) (domain.TaskDefinition, error) {
	def.Name = strings.TrimSpace(def.Name)
	def.DSL = strings.TrimSpace(def.DSL)
	if err := domain.ValidateDefinitionName(def.Name); err != nil {
		return domain.TaskDefinition{}, err
	}
	g, err := taskdsl.Parse(def.Name, def.DSL)
	if err != nil {
		return domain.TaskDefinition{}, err
	}
	for _, app := range g.Apps() {
		if _, err := s.registry.Find(ctx, app, domain.AppTypeTask); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.TaskDefinition{}, &domain.UnregisteredAppError{Stage: def.Name, App: app, Type: domain.AppTypeTask}
			}
			return domain.TaskDefinition{}, domain.Backend("registry lookup", err)
		}
	}

	if _, err := s.defs.Get(ctx, def.Name); err == nil {
		return domain.TaskDefinition{}, &domain.DuplicateDefinitionError{Name: def.Name}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.TaskDefinition{}, domain.Backend("get task definition", err)
	}

	batch := []domain.TaskDefinition{def}
	if g.Composed() {
		for _, child := range g.Children() {
			if _, err := s.defs.Get(ctx, child.Name); err == nil {
				return domain.TaskDefinition{}, &domain.DuplicateDefinitionError{Name: child.Name}
			} else if !errors.Is(err, repo.ErrNotFound) {
				return domain.TaskDefinition{}, domain.Backend("get task definition", err)
			}
			batch = append(batch, domain.TaskDefinition{Name: child.Name, DSL: child.DSL})
		}
	}

	if err := s.defs.SaveAll(ctx, batch); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.TaskDefinition{}, &domain.DuplicateDefinitionError{Name: def.Name}
		}
		return domain.TaskDefinition{}, domain.Backend("save task definitions", err)
	}
	s.audit.Record(ctx, domain.AuditOperationTask, domain.AuditActionCreate, def.Name, s.audit.Redactor().DSL(def.DSL))
	s.logger.Info("task definition saved", "task", def.Name, "composed", g.Composed(), "definitions", len(batch))
	return def, nil
}

func (s *Service) Get(ctx context.Context, name string) (domain.TaskDefinition, error) {
	def, err := s.defs.Get(ctx, name)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.TaskDefinition{}, domain.NotFound("Could not find task definition named %s", name)
	}
	if err != nil {
		return domain.TaskDefinition{}, domain.Backend("get task definition", err)
	}
	return def, nil
}

func (s *Service) List(ctx context.Context, filter repo.DefinitionFilter) (domain.Page[domain.TaskDefinition], error) {
	page, err := s.defs.List(ctx, filter)
	if err != nil {
		return domain.Page[domain.TaskDefinition]{}, domain.Backend("list task definitions", err)
	}
	return page, nil
}

// Delete removes a definition. For a composed definition the children whose
// DSL still matches the graph step are removed with it.
func (s *Service) Delete(ctx context.Context, name string) error {
	def, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	names := []string{def.Name}
	if taskdsl.IsComposed(def.DSL) {
		g, err := taskdsl.Parse(def.Name, def.DSL)
		if err != nil {
			return fmt.Errorf("stored definition %s: %w", name, err)
		}
		for _, child := range g.Children() {
			existing, err := s.defs.Get(ctx, child.Name)
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			if err != nil {
				return domain.Backend("get task definition", err)
			}
			if existing.DSL == child.DSL {
				names = append(names, child.Name)
			}
		}
	}

	if err := s.deleteAll(ctx, def.Name, names); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.NotFound("Could not find task definition named %s", name)
		}
		return domain.Backend("delete task definitions", err)
	}
	s.audit.Record(ctx, domain.AuditOperationTask, domain.AuditActionDelete, def.Name, s.audit.Redactor().DSL(def.DSL))
	return nil
}

// deleteAll removes names in one batch. Children removed since they were
// looked up are dropped and the batch retried once; a missing parent stays
// ErrNotFound.
func (s *Service) deleteAll(ctx context.Context, parent string, names []string) error {
	err := s.defs.DeleteAll(ctx, names)
	if !errors.Is(err, repo.ErrNotFound) {
		return err
	}
	present := make([]string, 0, len(names))
	for _, n := range names {
		_, err := s.defs.Get(ctx, n)
		switch {
		case err == nil:
			present = append(present, n)
		case !errors.Is(err, repo.ErrNotFound):
			return err
		case n == parent:
			return err
		default:
			s.logger.Warn("child task definition already removed", "task", parent, "child", n)
		}
	}
	return s.defs.DeleteAll(ctx, present)
}

// Launch compiles and launches a task, refusing when the launcher already
// runs the configured maximum of executions.
func (s *Service) Launch(ctx context.Context, name string, properties map[string]string, args []string) (string, error) {
	def, err := s.Get(ctx, name)
	if err != nil {
		return "", err
	}
	running, err := s.launcher.RunningCount(ctx)
	if err != nil {
		return "", domain.Backend("count running tasks", err)
	}
	if running >= s.cfg.MaxConcurrentTasks {
		return "", &domain.LimitError{Message: fmt.Sprintf("the maximum concurrent task executions [%d] is at its limit", s.cfg.MaxConcurrentTasks)}
	}

	req, err := s.compiler.CompileTask(ctx, compiler.TaskLaunch{Definition: def, Properties: properties, Arguments: args})
	if err != nil {
		return "", err
	}
	id, err := s.launcher.Launch(ctx, req)
	if err != nil {
		return "", domain.Backend("launch task", err)
	}
	if strings.TrimSpace(id) == "" {
		return "", domain.Backend("launch task", fmt.Errorf("deployment id is empty for task %s", name))
	}

	redactor := s.audit.Redactor()
	s.audit.Record(ctx, domain.AuditOperationTask, domain.AuditActionLaunch, name, map[string]any{
		"taskName":             name,
		"executionId":          id,
		"deploymentProperties": redactor.Properties(properties),
		"commandlineArguments": redactor.Arguments(args),
	})
	s.logger.Info("task launched", "task", name, "app", req.App, "execution_id", id)
	return id, nil
}

// Validation reports, per "task:app", whether each app of a definition is registered.
type Validation struct {
	Name        string
	DSL         string
	Description string
	Apps        map[string]string
}

func (s *Service) Validate(ctx context.Context, name string) (Validation, error) {
	def, err := s.Get(ctx, name)
	if err != nil {
		return Validation{}, err
	}
	g, err := taskdsl.Parse(def.Name, def.DSL)
	if err != nil {
		return Validation{}, fmt.Errorf("stored definition %s: %w", name, err)
	}
	out := Validation{Name: def.Name, DSL: def.DSL, Description: def.Description, Apps: map[string]string{}}
	for _, app := range g.Apps() {
		key := string(domain.AppTypeTask) + ":" + app
		_, err := s.registry.Find(ctx, app, domain.AppTypeTask)
		switch {
		case err == nil:
			out.Apps[key] = AppValid
		case errors.Is(err, domain.ErrNotFound):
			out.Apps[key] = AppInvalid
		default:
			return Validation{}, domain.Backend("registry lookup", err)
		}
	}
	return out, nil
}
