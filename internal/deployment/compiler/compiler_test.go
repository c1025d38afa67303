package compiler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/animus-labs/animus-dataflow/internal/deployment/merge"
	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/dsl/streamdsl"
)

type fakeRegistry struct {
	apps     map[string]domain.AppRegistration
	metadata map[string][]merge.Property
	lookups  int
}

func newFakeRegistry() *fakeRegistry {
	r := &fakeRegistry{apps: map[string]domain.AppRegistration{}, metadata: map[string][]merge.Property{}}
	for _, reg := range []domain.AppRegistration{
		{Name: "time", Type: domain.AppTypeSource, Version: "1.0.0", URI: "maven://org.acme:time-source:1.0.0"},
		{Name: "filter", Type: domain.AppTypeProcessor, Version: "1.0.0", URI: "maven://org.acme:filter-processor:1.0.0"},
		{Name: "log", Type: domain.AppTypeSink, Version: "1.0.0", URI: "maven://org.acme:log-sink:1.0.0", MetadataURI: "file:///meta/log.yml"},
		{Name: "log", Type: domain.AppTypeSink, Version: "1.1.1.RELEASE", URI: "maven://org.acme:log-sink:1.1.1.RELEASE"},
		{Name: "a1", Type: domain.AppTypeApp, Version: "1.0.0", URI: "docker:acme/a1:1.0.0"},
		{Name: "a2", Type: domain.AppTypeApp, Version: "1.0.0", URI: "docker:acme/a2:1.0.0"},
		{Name: "AAA", Type: domain.AppTypeTask, Version: "1.0.0", URI: "maven://org.acme:aaa:1.0.0"},
		{Name: "BBB", Type: domain.AppTypeTask, Version: "1.0.0", URI: "maven://org.acme:bbb:1.0.0"},
		{Name: "composed-task-runner", Type: domain.AppTypeTask, Version: "2.0.0", URI: "maven://org.acme:ctr:2.0.0"},
	} {
		r.apps[key(reg.Name, reg.Type, reg.Version)] = reg
		if _, ok := r.apps[key(reg.Name, reg.Type, "")]; !ok {
			r.apps[key(reg.Name, reg.Type, "")] = reg
		}
	}
	r.metadata["file:///meta/log.yml"] = []merge.Property{{ID: "log.level"}, {ID: "log.expression"}}
	return r
}

func key(name string, typ domain.AppType, version string) string {
	return string(typ) + ":" + name + ":" + version
}

func (r *fakeRegistry) Find(ctx context.Context, name string, typ domain.AppType) (domain.AppRegistration, error) {
	return r.FindVersion(ctx, name, typ, "")
}

func (r *fakeRegistry) FindVersion(_ context.Context, name string, typ domain.AppType, version string) (domain.AppRegistration, error) {
	r.lookups++
	reg, ok := r.apps[key(name, typ, version)]
	if !ok {
		return domain.AppRegistration{}, domain.NotFound("%s:%s not registered", typ, name)
	}
	return reg, nil
}

func (r *fakeRegistry) ResolveArtifact(reg domain.AppRegistration) domain.Resource {
	return domain.Resource{URI: reg.URI}
}

func (r *fakeRegistry) ResolveMetadata(reg domain.AppRegistration) (domain.Resource, bool) {
	if reg.MetadataURI == "" {
		return domain.Resource{}, false
	}
	return domain.Resource{URI: reg.MetadataURI}, true
}

func (r *fakeRegistry) LoadMetadata(_ context.Context, res domain.Resource) ([]merge.Property, error) {
	meta, ok := r.metadata[res.URI]
	if !ok {
		return nil, errors.New("metadata unreachable")
	}
	return meta, nil
}

func newTestCompiler(reg Registry) *Compiler {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return New(logger, reg, Config{
		Defaults:               merge.DefaultDefaults(),
		CommonStreamProperties: map[string]string{"spring.cloud.stream.kafka.binder.brokers": "kafka:9092"},
		CommonTaskProperties:   map[string]string{"spring.datasource.url": "jdbc:postgresql://db/tasks"},
		ServerURI:              "http://dataflow:8080",
	})
}

func mustParse(t *testing.T, name, dsl string) domain.Pipeline {
	t.Helper()
	p, err := streamdsl.Parse(name, dsl)
	if err != nil {
		t.Fatalf("Parse(%q) err=%v", dsl, err)
	}
	return p
}

func TestCompile_OrderAndBookkeeping(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	pipeline := mustParse(t, "ticktock", "time | filter --expression=true | log")
	reqs, err := c.Compile(context.Background(), pipeline, map[string]string{})
	if err != nil {
		t.Fatalf("Compile() err=%v", err)
	}
	if len(reqs) != 3 {
		t.Fatalf("len(Compile())=%d, want 3", len(reqs))
	}
	for i, want := range []string{"time", "filter", "log"} {
		if reqs[i].Stage != want {
			t.Fatalf("request %d stage=%q, want %q", i, reqs[i].Stage, want)
		}
	}
	filter := reqs[1]
	if filter.AppProperties["expression"] != "true" {
		t.Fatalf("definition property missing: %v", filter.AppProperties)
	}
	if filter.AppProperties[domain.StreamNameKey] != "ticktock" ||
		filter.AppProperties[domain.AppLabelKey] != "filter" ||
		filter.AppProperties[domain.AppTypeKey] != "processor" {
		t.Fatalf("bookkeeping missing: %v", filter.AppProperties)
	}
	if filter.AppProperties[domain.MetricsKey] != "ticktock.filter.${spring.cloud.application.guid}" {
		t.Fatalf("metrics key=%q", filter.AppProperties[domain.MetricsKey])
	}
	if filter.AppProperties["spring.cloud.stream.kafka.binder.brokers"] != "kafka:9092" {
		t.Fatalf("common property missing: %v", filter.AppProperties)
	}
	if filter.AppProperties[domain.MetricsTriggerIncludes] != "integration**" {
		t.Fatalf("metrics default missing: %v", filter.AppProperties)
	}
	if filter.DeployerProperties[domain.DeployerGroup] != "ticktock" {
		t.Fatalf("deployer group=%v", filter.DeployerProperties)
	}
	if filter.Resource.URI != "maven://org.acme:filter-processor:1.0.0" {
		t.Fatalf("resource=%v", filter.Resource)
	}
	if len(filter.CommandLineArgs) != 0 {
		t.Fatalf("args=%v, want none", filter.CommandLineArgs)
	}
}

func TestCompile_Partitioning(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	pipeline := mustParse(t, "p", "time | filter | log")
	reqs, err := c.Compile(context.Background(), pipeline, map[string]string{
		"deployer.log.count":                       "3",
		"app.time.producer.partitionKeyExpression": "headers.key",
	})
	if err != nil {
		t.Fatalf("Compile() err=%v", err)
	}
	time, filter, log := reqs[0], reqs[1], reqs[2]
	if time.AppProperties[domain.OutputPartitionKeyExpression] != "headers.key" {
		t.Fatalf("time key expression=%v", time.AppProperties)
	}
	if time.AppProperties[domain.OutputPartitionCount] != "1" {
		t.Fatalf("time partition count=%q", time.AppProperties[domain.OutputPartitionCount])
	}
	if filter.AppProperties[domain.InputPartitioned] != "true" || filter.DeployerProperties[domain.DeployerIndexed] != "true" {
		t.Fatalf("filter should consume partitions: %v %v", filter.AppProperties, filter.DeployerProperties)
	}
	if filter.AppProperties[domain.OutputPartitionCount] != "3" {
		t.Fatalf("filter partition count=%q, want 3", filter.AppProperties[domain.OutputPartitionCount])
	}
	if filter.AppProperties[domain.OutputPartitionKeyExpression] != "payload" {
		t.Fatalf("filter default key expression=%q", filter.AppProperties[domain.OutputPartitionKeyExpression])
	}
	if log.AppProperties[domain.InputPartitioned] != "true" || log.AppProperties[domain.InstanceCount] != "3" {
		t.Fatalf("log properties=%v", log.AppProperties)
	}
	if log.DeployerProperties[domain.DeployerCount] != "3" {
		t.Fatalf("log deployer=%v", log.DeployerProperties)
	}
}

func TestCompile_AppStreamNotPartitioned(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	reqs, err := c.Compile(context.Background(), mustParse(t, "apps", "a1 || a2"), map[string]string{"deployer.a2.count": "4"})
	if err != nil {
		t.Fatalf("Compile() err=%v", err)
	}
	if _, ok := reqs[0].AppProperties[domain.OutputPartitionCount]; ok {
		t.Fatalf("app stage should not be partitioned: %v", reqs[0].AppProperties)
	}
}

func TestCompile_VersionOverride(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	reqs, err := c.Compile(context.Background(), mustParse(t, "v", "time | log"), map[string]string{"version.log": "1.1.1.RELEASE"})
	if err != nil {
		t.Fatalf("Compile() err=%v", err)
	}
	log := reqs[1]
	if log.Version != "1.1.1.RELEASE" || len(log.CommandLineArgs) != 1 || log.CommandLineArgs[0] != "1.1.1.RELEASE" {
		t.Fatalf("log request=%+v", log)
	}
	if log.Resource.URI != "maven://org.acme:log-sink:1.1.1.RELEASE" {
		t.Fatalf("resource=%v", log.Resource)
	}
}

func TestCompile_UnregisteredAborts(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	reqs, err := c.Compile(context.Background(), mustParse(t, "bad", "time | foo | log"), nil)
	if reqs != nil {
		t.Fatalf("Compile() returned partial requests: %v", reqs)
	}
	var unregistered *domain.UnregisteredAppError
	if !errors.As(err, &unregistered) {
		t.Fatalf("Compile() err=%v, want UnregisteredAppError", err)
	}
	if unregistered.Stage != "foo" || unregistered.Type != domain.AppTypeProcessor {
		t.Fatalf("unregistered=%+v", unregistered)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Compile() err should be not-found class")
	}
}

func TestCompile_UnknownVersion(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	_, err := c.Compile(context.Background(), mustParse(t, "v", "time | log"), map[string]string{"version.log": "9.9.9"})
	var unregistered *domain.UnregisteredAppError
	if !errors.As(err, &unregistered) || unregistered.Version != "9.9.9" {
		t.Fatalf("Compile() err=%v", err)
	}
}

func TestCompile_ExpandsAndSkipsMetadata(t *testing.T) {
	reg := newFakeRegistry()
	c := newTestCompiler(reg)
	reqs, err := c.Compile(context.Background(), mustParse(t, "m", "time | log --level=WARN"), nil)
	if err != nil {
		t.Fatalf("Compile() err=%v", err)
	}
	if reqs[1].AppProperties["log.level"] != "WARN" {
		t.Fatalf("short name not expanded: %v", reqs[1].AppProperties)
	}

	delete(reg.metadata, "file:///meta/log.yml")
	reqs, err = c.Compile(context.Background(), mustParse(t, "m", "time | log --level=WARN"), nil)
	if err != nil {
		t.Fatalf("Compile() without metadata err=%v", err)
	}
	if reqs[1].AppProperties["level"] != "WARN" {
		t.Fatalf("unexpanded property missing: %v", reqs[1].AppProperties)
	}
}

func TestCompile_NoPlatformKeysInAppProperties(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	all := map[string]string{
		"app.*.deployer.sneaky":                "x",
		"app.log.scheduler.sneaky":             "y",
		"deployer.*.memory":                    "1g",
		"scheduler.log.cron":                   "* * * * *",
		"app.log.spring.cloud.deployer.memory": "2g",
	}
	reqs, err := c.Compile(context.Background(), mustParse(t, "s", "time | filter --deployer.inline=z | log"), all)
	if err != nil {
		t.Fatalf("Compile() err=%v", err)
	}
	for _, req := range reqs {
		for k := range req.AppProperties {
			if strings.HasPrefix(k, "deployer.") || strings.HasPrefix(k, "scheduler.") ||
				strings.HasPrefix(k, domain.DeployerKeyPrefix) || strings.HasPrefix(k, domain.SchedulerKeyPrefix) {
				t.Fatalf("stage %s carries platform key %q", req.Stage, k)
			}
		}
		if req.DeployerProperties["spring.cloud.deployer.memory"] != "1g" {
			t.Fatalf("stage %s deployer=%v", req.Stage, req.DeployerProperties)
		}
	}
}

func TestCompile_DoesNotMutateInput(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	all := map[string]string{"app.log.level": "DEBUG", "deployer.log.count": "2"}
	pipeline := mustParse(t, "s", "time | log --foo=bar")
	if _, err := c.Compile(context.Background(), pipeline, all); err != nil {
		t.Fatalf("Compile() err=%v", err)
	}
	if len(all) != 2 || len(pipeline.Stages[1].Properties) != 1 {
		t.Fatalf("inputs mutated: %v %v", all, pipeline.Stages[1].Properties)
	}
}

func TestCompileUpdate(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	reqs, err := c.CompileUpdate(context.Background(), mustParse(t, "u", "time | log"), map[string]string{
		"app.log.level":       "ERROR",
		"deployer.log.memory": "2g",
		"version.log":         "1.1.1.RELEASE",
	})
	if err != nil {
		t.Fatalf("CompileUpdate() err=%v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("len=%d", len(reqs))
	}
	time, log := reqs[0], reqs[1]
	if len(time.AppProperties) != 0 || len(time.CommandLineArgs) != 0 {
		t.Fatalf("time request should be empty: %+v", time)
	}
	if len(log.AppProperties) != 1 {
		t.Fatalf("log app properties=%v, want only the update", log.AppProperties)
	}
	if log.AppProperties["level"] != "ERROR" && log.AppProperties["log.level"] != "ERROR" {
		t.Fatalf("log app properties=%v", log.AppProperties)
	}
	if log.DeployerProperties["spring.cloud.deployer.memory"] != "2g" {
		t.Fatalf("log deployer=%v", log.DeployerProperties)
	}
	if _, ok := log.AppProperties[domain.StreamNameKey]; ok {
		t.Fatalf("update should not stamp bookkeeping")
	}
	if len(log.CommandLineArgs) != 1 || log.CommandLineArgs[0] != "1.1.1.RELEASE" {
		t.Fatalf("log args=%v", log.CommandLineArgs)
	}
}
