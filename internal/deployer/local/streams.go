// Package local implements the deployer interfaces in process. Streams and
// task executions are tracked in memory; schedules fire through robfig/cron.
package local

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/animus-labs/animus-dataflow/internal/deployment/props"
	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/release"
)

type deployedApp struct {
	name     string
	revision int
	spec     release.AppSpec
}

type deployedStream struct {
	pkg  release.Package
	apps []*deployedApp
}

type StreamDeployer struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	streams map[string]*deployedStream
}

func NewStreamDeployer(logger *slog.Logger) *StreamDeployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamDeployer{logger: logger, streams: map[string]*deployedStream{}}
}

func (d *StreamDeployer) Deploy(_ context.Context, pkg release.Package) error {
	name := pkg.Metadata.Name
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.streams[name]; ok {
		return fmt.Errorf("stream %s is already deployed: %w", name, domain.ErrDuplicate)
	}
	ds := &deployedStream{pkg: pkg}
	for _, app := range pkg.Apps {
		ds.apps = append(ds.apps, &deployedApp{name: app.Name, revision: 1, spec: app.Spec})
	}
	d.streams[name] = ds
	d.logger.Info("stream deployed", "stream", name, "version", pkg.Metadata.Version, "apps", len(ds.apps))
	return nil
}

func (d *StreamDeployer) Upgrade(_ context.Context, update release.Update) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ds, ok := d.streams[update.Stream]
	if !ok {
		return domain.NotFound("stream %s is not deployed", update.Stream)
	}
	byName := map[string]*deployedApp{}
	for _, app := range ds.apps {
		byName[app.name] = app
	}
	for name := range update.Apps {
		if _, ok := byName[name]; !ok {
			return domain.Invalid("stream %s has no app %s", update.Stream, name)
		}
	}
	for name, spec := range update.Apps {
		app := byName[name]
		app.spec.ApplicationProperties = props.Merge(app.spec.ApplicationProperties, spec.ApplicationProperties)
		app.spec.DeploymentProperties = props.Merge(app.spec.DeploymentProperties, spec.DeploymentProperties)
		if spec.Version != "" {
			app.spec.Version = spec.Version
		}
		app.revision++
	}
	d.logger.Info("stream upgraded", "stream", update.Stream, "apps", len(update.Apps))
	return nil
}

func (d *StreamDeployer) Undeploy(_ context.Context, stream string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.streams[stream]; !ok {
		return domain.NotFound("stream %s is not deployed", stream)
	}
	delete(d.streams, stream)
	d.logger.Info("stream undeployed", "stream", stream)
	return nil
}

func (d *StreamDeployer) Status(_ context.Context, stream string) ([]domain.AppStatus, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ds, ok := d.streams[stream]
	if !ok {
		return []domain.AppStatus{}, nil
	}
	return statuses(stream, ds), nil
}

func (d *StreamDeployer) Statuses(_ context.Context) ([]domain.AppStatus, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.streams))
	for name := range d.streams {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]domain.AppStatus, 0)
	for _, name := range names {
		out = append(out, statuses(name, d.streams[name])...)
	}
	return out, nil
}

// Package returns the currently deployed package with upgrades applied.
func (d *StreamDeployer) Package(stream string) (release.Package, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ds, ok := d.streams[stream]
	if !ok {
		return release.Package{}, false
	}
	pkg := ds.pkg
	pkg.Apps = make([]release.App, 0, len(ds.apps))
	for _, app := range ds.apps {
		pkg.Apps = append(pkg.Apps, release.App{Name: app.name, Spec: app.spec})
	}
	return pkg, true
}

func statuses(stream string, ds *deployedStream) []domain.AppStatus {
	out := make([]domain.AppStatus, 0, len(ds.apps))
	for _, app := range ds.apps {
		id := fmt.Sprintf("%s.%s-v%d", stream, app.name, app.revision)
		count := 1
		if n, err := strconv.Atoi(app.spec.DeploymentProperties[domain.DeployerCount]); err == nil && n > 0 {
			count = n
		}
		instances := make([]domain.InstanceStatus, 0, count)
		for i := 0; i < count; i++ {
			instances = append(instances, domain.InstanceStatus{
				ID:    fmt.Sprintf("%s-%d", id, i),
				State: domain.StateDeployed,
				Attributes: map[string]string{
					"guid":     fmt.Sprintf("%s-%d", id, i),
					"resource": app.spec.Resource,
					"version":  app.spec.Version,
				},
			})
		}
		out = append(out, domain.AppStatus{
			DeploymentID: id,
			Stream:       stream,
			Stage:        app.name,
			State:        domain.StateDeployed,
			Instances:    instances,
		})
	}
	return out
}
