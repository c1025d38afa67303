// Package partition decides which pipeline stages produce or consume
// partitioned data.
package partition

import (
	"strconv"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
)

// Stage is the input the planner needs for one pipeline position.
type Stage struct {
	Type domain.AppType
	// Properties are the stage's merged application properties.
	Properties map[string]string
	// Count is the requested instance count; values below 1 mean 1.
	Count int
}

// Decision is the partitioning role of one stage.
type Decision struct {
	Consumer bool
	Producer bool
	// PartitionCount is the downstream instance count when Producer is set.
	PartitionCount int
}

// Plan folds over the stages in pipeline order. Stage i consumes partitioned
// input when it asks for it or when stage i-1 intends to partition its
// output; stage i produces partitioned output when stage i+1 consumes
// partitioned input or runs more than one instance. Stages of type app never
// take part.
func Plan(stages []Stage) []Decision {
	out := make([]Decision, len(stages))
	upstreamPartitions := false
	for i, s := range stages {
		participates := s.Type != domain.AppTypeApp
		out[i].Consumer = participates && (flag(s.Properties, domain.InputPartitioned) || upstreamPartitions)
		upstreamPartitions = participates && (hasKeyStrategy(s.Properties) ||
			(i+1 < len(stages) && count(stages[i+1]) > 1))
	}
	for i, s := range stages {
		if s.Type == domain.AppTypeApp || i+1 >= len(stages) {
			continue
		}
		next := stages[i+1]
		if out[i+1].Consumer || count(next) > 1 {
			out[i].Producer = true
			out[i].PartitionCount = count(next)
		}
	}
	return out
}

// Apply writes the properties implied by d into the stage's application and
// deployer property maps.
func Apply(d Decision, appProps, deployerProps map[string]string) {
	if d.Consumer {
		appProps[domain.InputPartitioned] = "true"
		deployerProps[domain.DeployerIndexed] = "true"
	}
	if d.Producer {
		appProps[domain.OutputPartitionCount] = strconv.Itoa(d.PartitionCount)
		if !hasKeyStrategy(appProps) {
			appProps[domain.OutputPartitionKeyExpression] = domain.DefaultPartitionKeyExpression
		}
	}
}

func hasKeyStrategy(p map[string]string) bool {
	return strings.TrimSpace(p[domain.OutputPartitionKeyExpression]) != "" ||
		strings.TrimSpace(p[domain.OutputPartitionKeyExtractorClass]) != ""
}

func flag(p map[string]string, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(p[key]))
	return err == nil && v
}

func count(s Stage) int {
	if s.Count < 1 {
		return 1
	}
	return s.Count
}

// Count parses a deployer count property, defaulting to 1.
func Count(deployerProps map[string]string) int {
	n, err := strconv.Atoi(strings.TrimSpace(deployerProps[domain.DeployerCount]))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
