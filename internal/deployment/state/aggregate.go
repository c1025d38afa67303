package state

import (
	"github.com/animus-labs/animus-dataflow/internal/domain"
)

// Aggregate reduces instance states to one deployment state. The checks run
// in a fixed order: empty, all deployed, all failed, all undeployed, any
// other uniform state, then the mixed cases.
func Aggregate(states []domain.DeploymentState) domain.DeploymentState {
	if len(states) == 0 {
		return domain.StateUnknown
	}
	counts := map[domain.DeploymentState]int{}
	for _, s := range states {
		if !s.Valid() {
			s = domain.StateUnknown
		}
		counts[s]++
	}
	total := len(states)
	switch {
	case counts[domain.StateDeployed] == total:
		return domain.StateDeployed
	case counts[domain.StateFailed] == total:
		return domain.StateFailed
	case counts[domain.StateUndeployed] == total:
		return domain.StateUndeployed
	case len(counts) == 1:
		for s := range counts {
			return s
		}
	}
	if counts[domain.StateFailed] == 0 && (counts[domain.StateDeployed] > 0 || counts[domain.StateDeploying] > 0) {
		return domain.StateDeploying
	}
	return domain.StatePartial
}

// AppState is the state of one stage: the aggregate of its instances when
// any are reported, otherwise the state the deployer reported for the stage.
func AppState(app domain.AppStatus) domain.DeploymentState {
	if len(app.Instances) == 0 {
		if app.State == "" {
			return domain.StateUnknown
		}
		return app.State
	}
	states := make([]domain.DeploymentState, 0, len(app.Instances))
	for _, in := range app.Instances {
		states = append(states, in.State)
	}
	return Aggregate(states)
}

// StreamState aggregates the per-stage states of a stream. A stream with a
// definition but nothing reported by the deployer is undeployed.
func StreamState(apps []domain.AppStatus, defined bool) domain.DeploymentState {
	if len(apps) == 0 {
		if defined {
			return domain.StateUndeployed
		}
		return domain.StateUnknown
	}
	states := make([]domain.DeploymentState, 0, len(apps))
	for _, app := range apps {
		states = append(states, AppState(app))
	}
	return Aggregate(states)
}
