// Package schedules creates and removes cron schedules for task definitions.
package schedules

import (
	"context"
	"log/slog"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/audit"
	"github.com/animus-labs/animus-dataflow/internal/deployer"
	"github.com/animus-labs/animus-dataflow/internal/deployment/compiler"
	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/robfig/cron/v3"
)

// TaskDefinitions resolves the definition a schedule launches.
type TaskDefinitions interface {
	Get(ctx context.Context, name string) (domain.TaskDefinition, error)
}

type Config struct {
	// MaxSchedules caps the number of schedules a listing returns.
	MaxSchedules int
}

type Service struct {
	logger    *slog.Logger
	tasks     TaskDefinitions
	compiler  *compiler.Compiler
	scheduler deployer.Scheduler
	audit     *audit.Service
	cfg       Config
}

func New(logger *slog.Logger, tasks TaskDefinitions, c *compiler.Compiler, scheduler deployer.Scheduler, auditor *audit.Service, cfg Config) *Service {
	if tasks == nil || c == nil || scheduler == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSchedules <= 0 {
		cfg.MaxSchedules = 10000
	}
	return &Service{logger: logger, tasks: tasks, compiler: c, scheduler: scheduler, audit: auditor, cfg: cfg}
}

// Schedule compiles the task launch and registers it under scheduleName.
// The cron expression is read from the scheduler properties.
func (s *Service) Schedule(ctx context.Context, scheduleName, taskName string, properties map[string]string, args []string) error {
	scheduleName = strings.TrimSpace(scheduleName)
	if scheduleName == "" {
		return domain.Invalid("schedule name is required")
	}
	def, err := s.tasks.Get(ctx, taskName)
	if err != nil {
		return err
	}
	req, err := s.compiler.CompileTask(ctx, compiler.TaskLaunch{Definition: def, Properties: properties, Arguments: args})
	if err != nil {
		return err
	}

	schedulerProps := compiler.SchedulerProperties(def, req.App, properties)
	expr := strings.TrimSpace(schedulerProps[domain.SchedulerCronExpression])
	if expr == "" {
		return &domain.MissingPropertyError{Key: domain.SchedulerCronExpression}
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return domain.Invalid("invalid cron expression %q: %v", expr, err)
	}

	err = s.scheduler.Schedule(ctx, domain.ScheduleRequest{
		Name:                scheduleName,
		TaskDefinitionName:  def.Name,
		Request:             req,
		SchedulerProperties: schedulerProps,
	})
	if err != nil {
		return domain.Backend("schedule task", err)
	}

	redactor := s.audit.Redactor()
	s.audit.Record(ctx, domain.AuditOperationSchedule, domain.AuditActionCreate, scheduleName, map[string]any{
		"taskDefinitionName":       def.Name,
		"taskDefinitionProperties": redactor.Properties(req.AppProperties),
		"deploymentProperties":     redactor.Properties(properties),
		"commandlineArguments":     redactor.Arguments(args),
	})
	s.logger.Info("schedule created", "schedule", scheduleName, "task", def.Name, "cron", expr)
	return nil
}

func (s *Service) Unschedule(ctx context.Context, scheduleName string) error {
	info, err := s.Get(ctx, scheduleName)
	if err != nil {
		return err
	}
	if err := s.scheduler.Unschedule(ctx, scheduleName); err != nil {
		return domain.Backend("unschedule task", err)
	}
	s.audit.Record(ctx, domain.AuditOperationSchedule, domain.AuditActionDelete, scheduleName, info.TaskDefinitionName)
	return nil
}

func (s *Service) Get(ctx context.Context, scheduleName string) (domain.ScheduleInfo, error) {
	all, err := s.scheduler.List(ctx, "")
	if err != nil {
		return domain.ScheduleInfo{}, domain.Backend("list schedules", err)
	}
	for _, info := range all {
		if info.Name == scheduleName {
			return info, nil
		}
	}
	return domain.ScheduleInfo{}, domain.NotFound("Could not find schedule named %s", scheduleName)
}

func (s *Service) List(ctx context.Context) ([]domain.ScheduleInfo, error) {
	return s.ListForTask(ctx, "")
}

// ListForTask returns the schedules of one task definition, or of all when
// taskName is empty, up to the configured maximum.
func (s *Service) ListForTask(ctx context.Context, taskName string) ([]domain.ScheduleInfo, error) {
	out, err := s.scheduler.List(ctx, taskName)
	if err != nil {
		return nil, domain.Backend("list schedules", err)
	}
	if len(out) > s.cfg.MaxSchedules {
		s.logger.Warn("schedule listing truncated", "task", taskName, "total", len(out), "max", s.cfg.MaxSchedules)
		out = out[:s.cfg.MaxSchedules]
	}
	return out, nil
}
