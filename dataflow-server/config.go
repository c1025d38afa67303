package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/animus-labs/animus-dataflow/internal/audit"
	"github.com/animus-labs/animus-dataflow/internal/deployment/merge"
	"github.com/animus-labs/animus-dataflow/internal/platform/env"
)

const (
	storeMemory   = "memory"
	storePostgres = "postgres"
)

type config struct {
	Store                  string
	MaxConcurrentTasks     int
	MaxSchedules           int
	StatusWorkers          int
	TaskLease              time.Duration
	ComposedTaskRunner     string
	ServerURI              string
	DefaultPackageVersion  string
	MetricsProperties      string
	MetricsTriggerIncludes string
	CommonStreamProperties map[string]string
	CommonTaskProperties   map[string]string
	RedactKeys             []string
}

func configFromEnv() (config, error) {
	maxTasks, err := env.Int("DATAFLOW_MAX_CONCURRENT_TASKS", 20)
	if err != nil {
		return config{}, err
	}
	maxSchedules, err := env.Int("DATAFLOW_MAX_SCHEDULES", 10000)
	if err != nil {
		return config{}, err
	}
	statusWorkers, err := env.Int("DATAFLOW_STATUS_WORKERS", 8)
	if err != nil {
		return config{}, err
	}
	taskLease, err := env.Duration("DATAFLOW_TASK_LEASE", 0)
	if err != nil {
		return config{}, err
	}
	commonStream, err := env.Properties("DATAFLOW_COMMON_STREAM_PROPERTIES")
	if err != nil {
		return config{}, err
	}
	commonTask, err := env.Properties("DATAFLOW_COMMON_TASK_PROPERTIES")
	if err != nil {
		return config{}, err
	}

	defaults := merge.DefaultDefaults()
	cfg := config{
		Store:                  strings.ToLower(strings.TrimSpace(env.String("DATAFLOW_STORE", storeMemory))),
		MaxConcurrentTasks:     maxTasks,
		MaxSchedules:           maxSchedules,
		StatusWorkers:          statusWorkers,
		TaskLease:              taskLease,
		ComposedTaskRunner:     strings.TrimSpace(env.String("DATAFLOW_COMPOSED_TASK_RUNNER", "composed-task-runner")),
		ServerURI:              strings.TrimSpace(env.String("DATAFLOW_SERVER_URI", "")),
		DefaultPackageVersion:  strings.TrimSpace(env.String("DATAFLOW_DEFAULT_PACKAGE_VERSION", "1.0.0")),
		MetricsProperties:      env.String("DATAFLOW_METRICS_PROPERTIES", defaults.MetricsProperties),
		MetricsTriggerIncludes: env.String("DATAFLOW_METRICS_TRIGGER_INCLUDES", defaults.MetricsTriggerIncludes),
		CommonStreamProperties: commonStream,
		CommonTaskProperties:   commonTask,
		RedactKeys:             env.List("DATAFLOW_REDACT_KEYS", audit.DefaultSensitiveKeys),
	}
	if err := cfg.Validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func (c config) Validate() error {
	if c.Store != storeMemory && c.Store != storePostgres {
		return fmt.Errorf("unsupported DATAFLOW_STORE: %q", c.Store)
	}
	if c.MaxConcurrentTasks < 1 {
		return errors.New("DATAFLOW_MAX_CONCURRENT_TASKS must be >= 1")
	}
	if c.MaxSchedules < 1 {
		return errors.New("DATAFLOW_MAX_SCHEDULES must be >= 1")
	}
	if c.StatusWorkers < 1 {
		return errors.New("DATAFLOW_STATUS_WORKERS must be >= 1")
	}
	if c.TaskLease < 0 {
		return errors.New("DATAFLOW_TASK_LEASE must be >= 0")
	}
	if c.ComposedTaskRunner == "" {
		return errors.New("DATAFLOW_COMPOSED_TASK_RUNNER is required")
	}
	if c.DefaultPackageVersion == "" {
		return errors.New("DATAFLOW_DEFAULT_PACKAGE_VERSION is required")
	}
	if c.ServerURI != "" && !strings.HasPrefix(c.ServerURI, "http://") && !strings.HasPrefix(c.ServerURI, "https://") {
		return fmt.Errorf("DATAFLOW_SERVER_URI must be an http(s) url: %q", c.ServerURI)
	}
	return nil
}

func (c config) mergeDefaults() merge.Defaults {
	return merge.Defaults{
		MetricsProperties:      c.MetricsProperties,
		MetricsTriggerIncludes: c.MetricsTriggerIncludes,
	}
}
