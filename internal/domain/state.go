package domain

// DeploymentState is the closed set of aggregate lifecycle states.
type DeploymentState string

const (
	StateUnknown    DeploymentState = "unknown"
	StateDeploying  DeploymentState = "deploying"
	StateDeployed   DeploymentState = "deployed"
	StatePartial    DeploymentState = "partial"
	StateFailed     DeploymentState = "failed"
	StateUndeployed DeploymentState = "undeployed"
)

func (s DeploymentState) Valid() bool {
	switch s {
	case StateUnknown, StateDeploying, StateDeployed, StatePartial, StateFailed, StateUndeployed:
		return true
	default:
		return false
	}
}

// InstanceStatus is the runtime view of one deployed instance.
type InstanceStatus struct {
	ID         string
	State      DeploymentState
	Attributes map[string]string
}

// AppStatus is the runtime view of one deployed stage.
type AppStatus struct {
	DeploymentID string
	Stream       string
	Stage        string
	State        DeploymentState
	Instances    []InstanceStatus
}

// StreamState pairs a stream name with its aggregate state.
type StreamState struct {
	Name  string
	State DeploymentState
}
