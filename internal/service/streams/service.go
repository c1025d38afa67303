package streams

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/audit"
	"github.com/animus-labs/animus-dataflow/internal/deployer"
	"github.com/animus-labs/animus-dataflow/internal/deployment/compiler"
	"github.com/animus-labs/animus-dataflow/internal/deployment/state"
	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/dsl/streamdsl"
	"github.com/animus-labs/animus-dataflow/internal/release"
	"github.com/animus-labs/animus-dataflow/internal/repo"
	"golang.org/x/sync/errgroup"
)

const (
	AppValid   = "valid"
	AppInvalid = "invalid"
)

// Registry answers whether the apps named by a definition are registered.
type Registry interface {
	Find(ctx context.Context, name string, typ domain.AppType) (domain.AppRegistration, error)
}

type Config struct {
	// StatusWorkers bounds concurrent deployer status lookups.
	StatusWorkers int
	// DefaultPackageVersion is used when release.packageVersion is not supplied.
	DefaultPackageVersion string
}

type Service struct {
	logger   *slog.Logger
	defs     repo.StreamDefinitionStore
	registry Registry
	compiler *compiler.Compiler
	deployer deployer.StreamDeployer
	packages *release.Store
	audit    *audit.Service
	cfg      Config
}

// New returns nil when a required collaborator is missing. packages and
// auditor are optional.
func New(logger *slog.Logger, defs repo.StreamDefinitionStore, registry Registry, c *compiler.Compiler, d deployer.StreamDeployer, packages *release.Store, auditor *audit.Service, cfg Config) *Service {
	if defs == nil || registry == nil || c == nil || d == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StatusWorkers <= 0 {
		cfg.StatusWorkers = 8
	}
	if strings.TrimSpace(cfg.DefaultPackageVersion) == "" {
		cfg.DefaultPackageVersion = "1.0.0"
	}
	return &Service{
		logger:   logger,
		defs:     defs,
		registry: registry,
		compiler: c,
		deployer: d,
		packages: packages,
		audit:    auditor,
		cfg:      cfg,
	}
}

// Create parses and stores a definition. Every referenced app must be
// registered. When deploy is set the stream is deployed with no properties.
func (s *Service) Create(ctx context.Context, def domain.StreamDefinition, deploy bool) (domain.StreamDefinition, error) {
	def.Name = strings.TrimSpace(def.Name)
	def.DSL = strings.TrimSpace(def.DSL)
	if err := domain.ValidateDefinitionName(def.Name); err != nil {
		return domain.StreamDefinition{}, err
	}
	pipeline, err := streamdsl.Parse(def.Name, def.DSL)
	if err != nil {
		return domain.StreamDefinition{}, err
	}
	for _, stage := range pipeline.Stages {
		if _, err := s.registry.Find(ctx, stage.App, stage.Type); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.StreamDefinition{}, &domain.UnregisteredAppError{Stage: stage.Name, App: stage.App, Type: stage.Type}
			}
			return domain.StreamDefinition{}, domain.Backend("registry lookup", err)
		}
	}

	if err := s.defs.Save(ctx, def); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return domain.StreamDefinition{}, &domain.DuplicateDefinitionError{Name: def.Name}
		}
		return domain.StreamDefinition{}, domain.Backend("save stream definition", err)
	}
	s.audit.Record(ctx, domain.AuditOperationStream, domain.AuditActionCreate, def.Name, s.audit.Redactor().DSL(def.DSL))

	if deploy {
		if err := s.Deploy(ctx, def.Name, nil); err != nil {
			return def, err
		}
	}
	return def, nil
}

func (s *Service) Get(ctx context.Context, name string) (domain.StreamDefinition, error) {
	def, err := s.defs.Get(ctx, name)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.StreamDefinition{}, domain.NotFound("Could not find stream definition named %s", name)
	}
	if err != nil {
		return domain.StreamDefinition{}, domain.Backend("get stream definition", err)
	}
	return def, nil
}

func (s *Service) List(ctx context.Context, filter repo.DefinitionFilter) (domain.Page[domain.StreamDefinition], error) {
	page, err := s.defs.List(ctx, filter)
	if err != nil {
		return domain.Page[domain.StreamDefinition]{}, domain.Backend("list stream definitions", err)
	}
	return page, nil
}

func (s *Service) pipeline(ctx context.Context, name string) (domain.StreamDefinition, domain.Pipeline, error) {
	def, err := s.Get(ctx, name)
	if err != nil {
		return domain.StreamDefinition{}, domain.Pipeline{}, err
	}
	pipeline, err := streamdsl.Parse(def.Name, def.DSL)
	if err != nil {
		return domain.StreamDefinition{}, domain.Pipeline{}, fmt.Errorf("stored definition %s: %w", name, err)
	}
	return def, pipeline, nil
}

func (s *Service) deployed(ctx context.Context, name string) (bool, error) {
	apps, err := s.deployer.Status(ctx, name)
	if err != nil {
		return false, domain.Backend("stream status", err)
	}
	return len(apps) > 0, nil
}

// Deploy compiles the stream with properties, stores the release package and
// deploys it.
func (s *Service) Deploy(ctx context.Context, name string, properties map[string]string) error {
	def, pipeline, err := s.pipeline(ctx, name)
	if err != nil {
		return err
	}
	if ok, err := s.deployed(ctx, name); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("stream %s is already deployed: %w", name, domain.ErrDuplicate)
	}

	requests, err := s.compiler.Compile(ctx, pipeline, properties)
	if err != nil {
		return err
	}
	pkg, err := release.Build(def, requests, release.ReleaseProperties(properties, s.cfg.DefaultPackageVersion))
	if err != nil {
		return err
	}
	if s.packages != nil {
		if _, err := s.packages.Put(ctx, pkg); err != nil {
			return err
		}
	}
	if err := s.deployer.Deploy(ctx, pkg); err != nil {
		return domain.Backend("deploy stream", err)
	}

	redactor := s.audit.Redactor()
	s.audit.Record(ctx, domain.AuditOperationStream, domain.AuditActionDeploy, name, map[string]any{
		"streamDefinitionDsl":  redactor.DSL(def.DSL),
		"deploymentProperties": redactor.Properties(properties),
	})
	s.logger.Info("stream deployed", "stream", name, "package_version", pkg.Metadata.Version, "apps", len(requests))
	return nil
}

// Update upgrades a deployed stream in place with updateProperties.
func (s *Service) Update(ctx context.Context, name string, updateProperties map[string]string) error {
	_, pipeline, err := s.pipeline(ctx, name)
	if err != nil {
		return err
	}
	if ok, err := s.deployed(ctx, name); err != nil {
		return err
	} else if !ok {
		return domain.NotFound("stream %s is not deployed", name)
	}

	requests, err := s.compiler.CompileUpdate(ctx, pipeline, updateProperties)
	if err != nil {
		return err
	}
	update := release.NewUpdate(name, requests)
	if len(update.Apps) == 0 {
		return domain.Invalid("update for stream %s changes nothing", name)
	}
	if err := s.deployer.Upgrade(ctx, update); err != nil {
		return domain.Backend("upgrade stream", err)
	}
	manifest, err := update.Manifest()
	if err != nil {
		s.logger.Warn("render update manifest", "stream", name, "error", err)
	}
	s.audit.Record(ctx, domain.AuditOperationStream, domain.AuditActionUpdate, name, map[string]any{
		"updateProperties": s.audit.Redactor().Properties(updateProperties),
	})
	s.logger.Info("stream updated", "stream", name, "apps", len(update.Apps), "manifest_bytes", len(manifest))
	return nil
}

func (s *Service) Undeploy(ctx context.Context, name string) error {
	if _, err := s.Get(ctx, name); err != nil {
		return err
	}
	if err := s.deployer.Undeploy(ctx, name); err != nil {
		return domain.Backend("undeploy stream", err)
	}
	s.audit.Record(ctx, domain.AuditOperationStream, domain.AuditActionUndeploy, name, nil)
	return nil
}

// Delete undeploys the stream when needed and removes its definition.
func (s *Service) Delete(ctx context.Context, name string) error {
	def, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if ok, err := s.deployed(ctx, name); err != nil {
		return err
	} else if ok {
		if err := s.deployer.Undeploy(ctx, name); err != nil {
			return domain.Backend("undeploy stream", err)
		}
	}
	if err := s.defs.Delete(ctx, name); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.NotFound("Could not find stream definition named %s", name)
		}
		return domain.Backend("delete stream definition", err)
	}
	s.audit.Record(ctx, domain.AuditOperationStream, domain.AuditActionDelete, name, s.audit.Redactor().DSL(def.DSL))
	return nil
}

// Validation reports, per "type:name", whether each app of a stream is registered.
type Validation struct {
	Name        string
	DSL         string
	Description string
	Apps        map[string]string
}

func (s *Service) Validate(ctx context.Context, name string) (Validation, error) {
	def, pipeline, err := s.pipeline(ctx, name)
	if err != nil {
		return Validation{}, err
	}
	out := Validation{Name: def.Name, DSL: def.DSL, Description: def.Description, Apps: map[string]string{}}
	for _, stage := range pipeline.Stages {
		key := string(stage.Type) + ":" + stage.App
		_, err := s.registry.Find(ctx, stage.App, stage.Type)
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

// State returns the aggregate state of one stream.
func (s *Service) State(ctx context.Context, name string) (domain.DeploymentState, error) {
	defined := true
	if _, err := s.Get(ctx, name); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return "", err
		}
		defined = false
	}
	apps, err := s.deployer.Status(ctx, name)
	if err != nil {
		return "", domain.Backend("stream status", err)
	}
	return state.StreamState(apps, defined), nil
}

// States looks up many streams concurrently. A stream whose lookup fails is
// logged and left out of the result; order follows names.
func (s *Service) States(ctx context.Context, names []string) []domain.StreamState {
	results := make([]*domain.StreamState, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.StatusWorkers)
	for i, name := range names {
		g.Go(func() error {
			st, err := s.State(gctx, name)
			if err != nil {
				s.logger.Warn("stream status lookup failed", "stream", name, "error", err)
				return nil
			}
			results[i] = &domain.StreamState{Name: name, State: st}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.StreamState, 0, len(names))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// AppStatuses pages over the runtime status of every deployed app.
func (s *Service) AppStatuses(ctx context.Context, page domain.PageRequest) (domain.Page[domain.AppStatus], error) {
	apps, err := s.deployer.Statuses(ctx)
	if err != nil {
		return domain.Page[domain.AppStatus]{}, domain.Backend("runtime status", err)
	}
	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].DeploymentID < apps[j].DeploymentID
	})
	for i := range apps {
		apps[i].State = state.AppState(apps[i])
	}
	return domain.Paginate(apps, page), nil
}
