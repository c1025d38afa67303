package domain

import (
	"fmt"
	"strconv"
)

// Deployment property prefixes accepted from callers.
const (
	AppPrefix       = "app."
	DeployerPrefix  = "deployer."
	SchedulerPrefix = "scheduler."
	VersionPrefix   = "version."
	ReleasePrefix   = "release."
	Wildcard        = "*"
)

// Qualified keys understood by deployers and applications.
const (
	DeployerKeyPrefix  = "spring.cloud.deployer."
	DeployerCount      = DeployerKeyPrefix + "count"
	DeployerGroup      = DeployerKeyPrefix + "group"
	DeployerIndexed    = DeployerKeyPrefix + "indexed"
	SchedulerKeyPrefix = "spring.cloud.scheduler."

	SchedulerCronExpression = SchedulerKeyPrefix + "cron.expression"

	OutputBindingPrefix = "spring.cloud.stream.bindings.output."
	InputBindingPrefix  = "spring.cloud.stream.bindings.input."

	OutputPartitionKeyExpression     = OutputBindingPrefix + "producer.partitionKeyExpression"
	OutputPartitionKeyExtractorClass = OutputBindingPrefix + "producer.partitionKeyExtractorClass"
	OutputPartitionCount             = OutputBindingPrefix + "producer.partitionCount"
	InputPartitioned                 = InputBindingPrefix + "consumer.partitioned"

	InstanceCount = "spring.cloud.stream.instanceCount"

	MetricsKey             = "spring.cloud.stream.metrics.key"
	MetricsProperties      = "spring.cloud.stream.metrics.properties"
	MetricsTriggerIncludes = "spring.metrics.export.triggers.application.includes"

	StreamNameKey = "spring.cloud.dataflow.stream.name"
	AppLabelKey   = "spring.cloud.dataflow.stream.app.label"
	AppTypeKey    = "spring.cloud.dataflow.stream.app.type"

	TaskNameKey = "spring.cloud.task.name"

	// DefaultPartitionKeyExpression partitions on the whole payload.
	DefaultPartitionKeyExpression = "payload"
	// InstanceGUIDPlaceholder is resolved per instance by the runtime.
	InstanceGUIDPlaceholder = "${spring.cloud.application.guid}"
)

// Composed task runner properties.
const (
	ComposedTaskGraph      = "graph"
	ComposedTaskProperties = "composed-task-properties"
	ComposedTaskServerURI  = "dataflow-server-uri"
)

// Release properties consumed by the package builder.
const (
	ReleasePackageVersion = ReleasePrefix + "packageVersion"
	ReleasePackageName    = ReleasePrefix + "packageName"
	ReleaseRepoName       = ReleasePrefix + "repoName"
	ReleasePlatformName   = ReleasePrefix + "platformName"
)

func parsePositive(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("count must be >= 1, got %d", n)
	}
	return n, nil
}
