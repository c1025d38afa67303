package main

import (
	"testing"
	"time"
)

func TestConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := configFromEnv()
	if err != nil {
		t.Fatalf("configFromEnv() err=%v", err)
	}
	if cfg.Store != storeMemory || cfg.MaxConcurrentTasks != 20 || cfg.MaxSchedules != 10000 || cfg.StatusWorkers != 8 {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.ComposedTaskRunner != "composed-task-runner" || cfg.DefaultPackageVersion != "1.0.0" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if len(cfg.RedactKeys) == 0 || cfg.MetricsProperties == "" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATAFLOW_STORE", "Postgres")
	t.Setenv("DATAFLOW_MAX_CONCURRENT_TASKS", "3")
	t.Setenv("DATAFLOW_TASK_LEASE", "90s")
	t.Setenv("DATAFLOW_COMMON_STREAM_PROPERTIES", "spring.cloud.stream.kafka.binder.brokers=kafka:9092, management.endpoints=health")
	t.Setenv("DATAFLOW_REDACT_KEYS", "password, apikey")
	t.Setenv("DATAFLOW_SERVER_URI", "http://dataflow:9393")

	cfg, err := configFromEnv()
	if err != nil {
		t.Fatalf("configFromEnv() err=%v", err)
	}
	if cfg.Store != storePostgres || cfg.MaxConcurrentTasks != 3 || cfg.TaskLease != 90*time.Second {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.CommonStreamProperties["management.endpoints"] != "health" || len(cfg.CommonStreamProperties) != 2 {
		t.Fatalf("common stream properties=%+v", cfg.CommonStreamProperties)
	}
	if len(cfg.RedactKeys) != 2 || cfg.RedactKeys[1] != "apikey" {
		t.Fatalf("redact keys=%+v", cfg.RedactKeys)
	}
}

func TestConfigFromEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"DATAFLOW_STORE":                  "redis",
		"DATAFLOW_MAX_CONCURRENT_TASKS":   "0",
		"DATAFLOW_STATUS_WORKERS":         "many",
		"DATAFLOW_SERVER_URI":             "dataflow:9393",
		"DATAFLOW_COMMON_TASK_PROPERTIES": "novalue",
		"DATAFLOW_COMPOSED_TASK_RUNNER":   " ",
		"DATAFLOW_TASK_LEASE":             "-1s",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := configFromEnv(); err == nil {
				t.Fatalf("configFromEnv() with %s=%q expected error", key, value)
			}
		})
	}
}
