package local

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/animus-labs/animus-dataflow/internal/deployer"
	"github.com/animus-labs/animus-dataflow/internal/deployment/props"
	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/robfig/cron/v3"
)

type scheduleEntry struct {
	id  cron.EntryID
	req domain.ScheduleRequest
}

// Scheduler launches scheduled tasks through a TaskLauncher on a cron timetable.
type Scheduler struct {
	cron     *cron.Cron
	launcher deployer.TaskLauncher
	logger   *slog.Logger
	mu       sync.Mutex
	entries  map[string]scheduleEntry
}

func NewScheduler(launcher deployer.TaskLauncher, logger *slog.Logger) *Scheduler {
	if launcher == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(),
		launcher: launcher,
		logger:   logger,
		entries:  make(map[string]scheduleEntry),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("task scheduler started")
}

// Stop halts the timetable and waits for running launches.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("task scheduler stopped")
}

func (s *Scheduler) Schedule(_ context.Context, req domain.ScheduleRequest) error {
	spec := req.CronExpression()
	if spec == "" {
		return &domain.MissingPropertyError{Key: domain.SchedulerCronExpression}
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return domain.Invalid("invalid cron expression %q: %v", spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[req.Name]; ok {
		return fmt.Errorf("schedule %s already exists: %w", req.Name, domain.ErrDuplicate)
	}
	name, launch := req.Name, req.Request
	id := s.cron.Schedule(schedule, cron.FuncJob(func() {
		execID, err := s.launcher.Launch(context.Background(), launch)
		if err != nil {
			s.logger.Warn("scheduled launch failed", "schedule", name, "task", launch.Stage, "error", err)
			return
		}
		s.logger.Info("scheduled launch", "schedule", name, "task", launch.Stage, "execution_id", execID)
	}))
	s.entries[req.Name] = scheduleEntry{id: id, req: req}
	s.logger.Info("task scheduled", "schedule", req.Name, "task", req.TaskDefinitionName, "cron", spec)
	return nil
}

func (s *Scheduler) Unschedule(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[name]
	if !ok {
		return domain.NotFound("schedule %s not found", name)
	}
	s.cron.Remove(entry.id)
	delete(s.entries, name)
	return nil
}

func (s *Scheduler) List(_ context.Context, taskDefinitionName string) ([]domain.ScheduleInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.ScheduleInfo, 0, len(s.entries))
	for name, entry := range s.entries {
		if taskDefinitionName != "" && entry.req.TaskDefinitionName != taskDefinitionName {
			continue
		}
		out = append(out, domain.ScheduleInfo{
			Name:               name,
			TaskDefinitionName: entry.req.TaskDefinitionName,
			Properties:         props.Merge(entry.req.SchedulerProperties),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Next reports when the named schedule fires next.
func (s *Scheduler) Next(name string) (cron.Entry, bool) {
	s.mu.Lock()
	entry, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return cron.Entry{}, false
	}
	return s.cron.Entry(entry.id), true
}

var (
	_ deployer.StreamDeployer = (*StreamDeployer)(nil)
	_ deployer.TaskLauncher   = (*TaskLauncher)(nil)
	_ deployer.Scheduler      = (*Scheduler)(nil)
)
