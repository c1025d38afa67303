package domain

import "strings"

// DeploymentRequest is the compiled, stage-scoped unit handed to a deployer,
// launcher or scheduler.
type DeploymentRequest struct {
	// Stage is the stage label (streams) or definition name (tasks).
	Stage    string
	App      string
	Type     AppType
	Resource Resource
	// Version is the resolved version override, if any.
	Version string
	// AppProperties never carries deployer or scheduler prefixed keys.
	AppProperties      map[string]string
	DeployerProperties map[string]string
	CommandLineArgs    []string
}

// Count returns the requested instance count, defaulting to 1.
func (r DeploymentRequest) Count() int {
	if v, ok := r.DeployerProperties[DeployerCount]; ok {
		if n, err := parsePositive(v); err == nil {
			return n
		}
	}
	return 1
}

// ScheduleRequest wraps a task launch request with scheduler properties.
type ScheduleRequest struct {
	Name                string
	TaskDefinitionName  string
	Request             DeploymentRequest
	SchedulerProperties map[string]string
}

func (r ScheduleRequest) CronExpression() string {
	return strings.TrimSpace(r.SchedulerProperties[SchedulerCronExpression])
}

// ScheduleInfo is what a scheduler reports about an existing schedule.
type ScheduleInfo struct {
	Name               string
	TaskDefinitionName string
	Properties         map[string]string
}
