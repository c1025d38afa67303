package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/animus-labs/animus-dataflow/internal/audit"
	"github.com/animus-labs/animus-dataflow/internal/auditexport"
	"github.com/animus-labs/animus-dataflow/internal/deployer/local"
	"github.com/animus-labs/animus-dataflow/internal/deployment/compiler"
	"github.com/animus-labs/animus-dataflow/internal/platform/httpserver"
	"github.com/animus-labs/animus-dataflow/internal/platform/objectstore"
	"github.com/animus-labs/animus-dataflow/internal/platform/postgres"
	"github.com/animus-labs/animus-dataflow/internal/registry"
	"github.com/animus-labs/animus-dataflow/internal/release"
	"github.com/animus-labs/animus-dataflow/internal/repo"
	"github.com/animus-labs/animus-dataflow/internal/repo/memory"
	repopg "github.com/animus-labs/animus-dataflow/internal/repo/postgres"
	"github.com/animus-labs/animus-dataflow/internal/service/schedules"
	"github.com/animus-labs/animus-dataflow/internal/service/streams"
	"github.com/animus-labs/animus-dataflow/internal/service/tasks"
)

const serviceName = "dataflow-server"

type stores struct {
	streams repo.StreamDefinitionStore
	tasks   repo.TaskDefinitionStore
	apps    repo.AppRegistrationStore
	audit   repo.AuditRecordStore
}

func memoryStores() stores {
	return stores{
		streams: memory.NewStreamDefinitions(),
		tasks:   memory.NewTaskDefinitions(),
		apps:    memory.NewAppRegistrations(),
		audit:   memory.NewAuditRecords(),
	}
}

func postgresStores(db *sql.DB) stores {
	return stores{
		streams: repopg.NewStreamDefinitionStore(db),
		tasks:   repopg.NewTaskDefinitionStore(db),
		apps:    repopg.NewAppRegistrationStore(db),
		audit:   repopg.NewAuditRecordStore(db),
	}
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpCfg, err := httpserver.ConfigFromEnv(serviceName)
	if err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}
	cfg, err := configFromEnv()
	if err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(2)
	}
	storeCfg, err := objectstore.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid object store config", "error", err)
		os.Exit(2)
	}
	exportCfg, err := auditexport.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid audit export config", "error", err)
		os.Exit(2)
	}

	var checks []httpserver.ReadinessCheck

	st := memoryStores()
	if cfg.Store == storePostgres {
		dbCfg, err := postgres.ConfigFromEnv()
		if err != nil {
			logger.Error("invalid database config", "error", err)
			os.Exit(2)
		}
		db, err := postgres.Open(ctx, logger, dbCfg, repopg.Migrate)
		if err != nil {
			logger.Error("database unavailable", "database", dbCfg.RedactedURL(), "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		st = postgresStores(db)
		checks = append(checks, httpserver.ReadinessCheck{
			Name:  "postgres",
			Check: postgres.Check(db, 750*time.Millisecond),
		})
	}

	var objects objectstore.Store = objectstore.NewMemoryStore()
	if storeCfg.Enabled {
		client, err := objectstore.NewMinIOClient(storeCfg)
		if err != nil {
			logger.Error("object store client init failed", "error", err)
			os.Exit(2)
		}
		startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := objectstore.EnsureBuckets(startupCtx, client, storeCfg); err != nil {
			cancel()
			logger.Error("object store unavailable", "error", err)
			os.Exit(1)
		}
		cancel()
		objects = objectstore.NewMinIOStore(client)
		checks = append(checks, httpserver.ReadinessCheck{
			Name: "minio",
			Check: func(ctx context.Context) error {
				checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
				defer cancel()
				return objectstore.CheckBuckets(checkCtx, client, storeCfg)
			},
		})
	}

	exporter, err := auditexport.New(exportCfg, os.Stdout)
	if err != nil {
		logger.Error("invalid audit export config", "error", err)
		os.Exit(2)
	}
	auditService := audit.NewService(logger, st.audit, exporter, audit.NewRedactor(cfg.RedactKeys))

	registryService := registry.New(logger, st.apps, objects)
	comp := compiler.New(logger, registryService, compiler.Config{
		Defaults:               cfg.mergeDefaults(),
		CommonStreamProperties: cfg.CommonStreamProperties,
		CommonTaskProperties:   cfg.CommonTaskProperties,
		ComposedTaskRunner:     cfg.ComposedTaskRunner,
		ServerURI:              cfg.ServerURI,
	})

	streamDeployer := local.NewStreamDeployer(logger)
	launcher := local.NewTaskLauncher(logger, cfg.TaskLease)
	scheduler := local.NewScheduler(launcher, logger)
	scheduler.Start()
	defer scheduler.Stop()

	streamService := streams.New(logger, st.streams, registryService, comp, streamDeployer,
		release.NewStore(objects, storeCfg.BucketPackages), auditService,
		streams.Config{StatusWorkers: cfg.StatusWorkers, DefaultPackageVersion: cfg.DefaultPackageVersion})
	taskService := tasks.New(logger, st.tasks, registryService, comp, launcher, auditService,
		tasks.Config{MaxConcurrentTasks: cfg.MaxConcurrentTasks})
	scheduleService := schedules.New(logger, taskService, comp, scheduler, auditService,
		schedules.Config{MaxSchedules: cfg.MaxSchedules})
	if registryService == nil || streamService == nil || taskService == nil || scheduleService == nil {
		logger.Error("service init failed")
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz(serviceName))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks(serviceName, checks...))

	api := newDataflowAPI(logger, registryService, streamService, taskService, scheduleService, auditService)
	api.register(mux)

	if err := httpserver.Run(ctx, logger, httpCfg, httpserver.Wrap(logger, mux)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
