// Package compiler turns parsed stream and task definitions plus deployment
// properties into deployment requests.
package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/deployment/merge"
	"github.com/animus-labs/animus-dataflow/internal/deployment/partition"
	"github.com/animus-labs/animus-dataflow/internal/deployment/props"
	"github.com/animus-labs/animus-dataflow/internal/domain"
)

// Registry is the view of the application registry the compiler needs.
type Registry interface {
	Find(ctx context.Context, name string, typ domain.AppType) (domain.AppRegistration, error)
	FindVersion(ctx context.Context, name string, typ domain.AppType, version string) (domain.AppRegistration, error)
	ResolveArtifact(reg domain.AppRegistration) domain.Resource
	ResolveMetadata(reg domain.AppRegistration) (domain.Resource, bool)
	LoadMetadata(ctx context.Context, res domain.Resource) ([]merge.Property, error)
}

type Config struct {
	Defaults               merge.Defaults
	CommonStreamProperties map[string]string
	CommonTaskProperties   map[string]string
	ComposedTaskRunner     string
	ServerURI              string
}

// Compiler is safe for concurrent use; it holds no per-call state.
type Compiler struct {
	logger   *slog.Logger
	registry Registry
	merger   merge.Merger
	cfg      Config
}

func New(logger *slog.Logger, registry Registry, cfg Config) *Compiler {
	if registry == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.ComposedTaskRunner) == "" {
		cfg.ComposedTaskRunner = "composed-task-runner"
	}
	return &Compiler{
		logger:   logger,
		registry: registry,
		merger:   merge.New(cfg.Defaults),
		cfg:      cfg,
	}
}

// ComposedTaskRunner is the registered task app that executes composed graphs.
func (c *Compiler) ComposedTaskRunner() string { return c.cfg.ComposedTaskRunner }

type resolvedStage struct {
	stage    domain.AppStage
	reg      domain.AppRegistration
	version  string
	metadata []merge.Property
}

// resolve looks up every stage before any request is built so that a
// missing registration aborts the whole compile.
func (c *Compiler) resolve(ctx context.Context, pipeline domain.Pipeline, deployProps map[string]string) ([]resolvedStage, error) {
	out := make([]resolvedStage, 0, len(pipeline.Stages))
	for _, stage := range pipeline.Stages {
		version, _ := props.Version(deployProps, stage.Name)
		reg, err := c.find(ctx, stage.Name, stage.App, stage.Type, version)
		if err != nil {
			return nil, err
		}
		out = append(out, resolvedStage{
			stage:    stage,
			reg:      reg,
			version:  version,
			metadata: c.metadata(ctx, reg),
		})
	}
	return out, nil
}

func (c *Compiler) find(ctx context.Context, stage, app string, typ domain.AppType, version string) (domain.AppRegistration, error) {
	var (
		reg domain.AppRegistration
		err error
	)
	if version != "" {
		reg, err = c.registry.FindVersion(ctx, app, typ, version)
	} else {
		reg, err = c.registry.Find(ctx, app, typ)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.AppRegistration{}, &domain.UnregisteredAppError{Stage: stage, App: app, Type: typ, Version: version}
		}
		return domain.AppRegistration{}, domain.Backend("registry lookup", err)
	}
	return reg, nil
}

// metadata returns nil when the registration has no usable metadata, which
// disables short-name expansion for the stage.
func (c *Compiler) metadata(ctx context.Context, reg domain.AppRegistration) []merge.Property {
	res, ok := c.registry.ResolveMetadata(reg)
	if !ok {
		return nil
	}
	meta, err := c.registry.LoadMetadata(ctx, res)
	if err != nil {
		c.logger.Warn("metadata unavailable, skipping property expansion",
			"app", reg.Name, "type", reg.Type, "resource", res.URI, "error", err)
		return nil
	}
	return meta
}

// Compile builds one request per stage, in pipeline order.
func (c *Compiler) Compile(ctx context.Context, pipeline domain.Pipeline, deployProps map[string]string) ([]domain.DeploymentRequest, error) {
	stages, err := c.resolve(ctx, pipeline, deployProps)
	if err != nil {
		return nil, err
	}

	appProps := make([]map[string]string, len(stages))
	deployerProps := make([]map[string]string, len(stages))
	for i, rs := range stages {
		scope := props.Resolve(deployProps, rs.stage.Name)
		definition := props.Merge(c.cfg.CommonStreamProperties, rs.stage.Properties)
		merged, err := c.merger.Merge(definition, scope.AppProperties(), rs.metadata)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", rs.stage.Name, err)
		}
		appProps[i] = merged
		deployerProps[i] = scope.Deployer
	}

	plan := make([]partition.Stage, len(stages))
	for i, rs := range stages {
		plan[i] = partition.Stage{
			Type:       rs.stage.Type,
			Properties: appProps[i],
			Count:      partition.Count(deployerProps[i]),
		}
	}
	decisions := partition.Plan(plan)

	out := make([]domain.DeploymentRequest, 0, len(stages))
	for i, rs := range stages {
		app, deployer := appProps[i], deployerProps[i]
		if rs.stage.Type != domain.AppTypeApp {
			partition.Apply(decisions[i], app, deployer)
		}
		c.stamp(pipeline.Name, rs.stage, app, deployer)
		out = append(out, c.request(rs, app, deployer))
	}
	return out, nil
}

// stamp adds the bookkeeping properties every stream app receives.
func (c *Compiler) stamp(stream string, stage domain.AppStage, app, deployer map[string]string) {
	app[domain.StreamNameKey] = stream
	app[domain.AppLabelKey] = stage.Name
	app[domain.AppTypeKey] = string(stage.Type)
	app[domain.MetricsKey] = stream + "." + stage.Name + "." + domain.InstanceGUIDPlaceholder
	deployer[domain.DeployerGroup] = stream
	if raw, ok := deployer[domain.DeployerCount]; ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			app[domain.InstanceCount] = strconv.Itoa(n)
		}
	}
}

func (c *Compiler) request(rs resolvedStage, app, deployer map[string]string) domain.DeploymentRequest {
	req := domain.DeploymentRequest{
		Stage:              rs.stage.Name,
		App:                rs.stage.App,
		Type:               rs.stage.Type,
		Resource:           c.registry.ResolveArtifact(rs.reg),
		Version:            rs.version,
		AppProperties:      appOnly(app),
		DeployerProperties: deployer,
		CommandLineArgs:    []string{},
	}
	if rs.version != "" {
		req.CommandLineArgs = append(req.CommandLineArgs, rs.version)
	}
	return req
}

// CompileUpdate builds per-stage requests carrying only the changed
// properties and the version override.
func (c *Compiler) CompileUpdate(ctx context.Context, pipeline domain.Pipeline, updateProps map[string]string) ([]domain.DeploymentRequest, error) {
	stages, err := c.resolve(ctx, pipeline, updateProps)
	if err != nil {
		return nil, err
	}
	out := make([]domain.DeploymentRequest, 0, len(stages))
	for _, rs := range stages {
		scope := props.Resolve(updateProps, rs.stage.Name)
		app := scope.AppProperties()
		if len(app) > 0 {
			app, err = merge.Expand(app, rs.metadata)
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", rs.stage.Name, err)
			}
		}
		out = append(out, c.request(rs, app, scope.Deployer))
	}
	return out, nil
}

// appOnly drops deployer and scheduler keys from an application property map.
func appOnly(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if isPlatformKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func isPlatformKey(k string) bool {
	return strings.HasPrefix(k, domain.DeployerPrefix) ||
		strings.HasPrefix(k, domain.SchedulerPrefix) ||
		strings.HasPrefix(k, domain.DeployerKeyPrefix) ||
		strings.HasPrefix(k, domain.SchedulerKeyPrefix)
}
