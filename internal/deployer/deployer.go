// Package deployer declares the platform boundary: stream deployment, task
// launching and task scheduling.
package deployer

import (
	"context"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/release"
)

type StreamDeployer interface {
	Deploy(ctx context.Context, pkg release.Package) error
	Upgrade(ctx context.Context, update release.Update) error
	Undeploy(ctx context.Context, stream string) error
	// Status returns the runtime state of every app of a stream. An
	// undeployed stream has no apps.
	Status(ctx context.Context, stream string) ([]domain.AppStatus, error)
	// Statuses returns the apps of every deployed stream.
	Statuses(ctx context.Context) ([]domain.AppStatus, error)
}

type TaskLauncher interface {
	// Launch starts a task and returns its execution id.
	Launch(ctx context.Context, req domain.DeploymentRequest) (string, error)
	RunningCount(ctx context.Context) (int, error)
}

type Scheduler interface {
	Schedule(ctx context.Context, req domain.ScheduleRequest) error
	Unschedule(ctx context.Context, name string) error
	// List returns schedules for taskDefinitionName, or all when empty.
	List(ctx context.Context, taskDefinitionName string) ([]domain.ScheduleInfo, error)
}
