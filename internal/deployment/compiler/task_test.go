package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/dsl/taskdsl"
)

func TestCompileTask_Simple(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	req, err := c.CompileTask(context.Background(), TaskLaunch{
		Definition: domain.TaskDefinition{Name: "myTask", DSL: "AAA --timestamp.format=YYYY"},
		Properties: map[string]string{
			"app.AAA.foo":         "bar",
			"app.myTask.baz":      "qux",
			"deployer.AAA.memory": "1g",
			"deployer.myTask.cpu": "2",
			"app.other.ignored":   "x",
		},
		Arguments: []string{"--run=1"},
	})
	if err != nil {
		t.Fatalf("CompileTask() err=%v", err)
	}
	if req.App != "AAA" || req.Stage != "myTask" || req.Type != domain.AppTypeTask {
		t.Fatalf("request=%+v", req)
	}
	want := map[string]string{
		"timestamp.format":      "YYYY",
		"foo":                   "bar",
		"baz":                   "qux",
		domain.TaskNameKey:      "myTask",
		"spring.datasource.url": "jdbc:postgresql://db/tasks",
	}
	for k, v := range want {
		if req.AppProperties[k] != v {
			t.Fatalf("AppProperties[%q]=%q, want %q (all %v)", k, req.AppProperties[k], v, req.AppProperties)
		}
	}
	if _, ok := req.AppProperties["ignored"]; ok {
		t.Fatalf("other app's property leaked")
	}
	if req.DeployerProperties["spring.cloud.deployer.memory"] != "1g" || req.DeployerProperties["spring.cloud.deployer.cpu"] != "2" {
		t.Fatalf("deployer=%v", req.DeployerProperties)
	}
	if len(req.CommandLineArgs) != 1 || req.CommandLineArgs[0] != "--run=1" {
		t.Fatalf("args=%v", req.CommandLineArgs)
	}
}

func TestCompileTask_Unregistered(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	_, err := c.CompileTask(context.Background(), TaskLaunch{Definition: domain.TaskDefinition{Name: "t", DSL: "ZZZ"}})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("CompileTask() err=%v, want not found", err)
	}
}

func TestCompileTask_Malformed(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	reg := c.registry.(*fakeRegistry)
	_, err := c.CompileTask(context.Background(), TaskLaunch{Definition: domain.TaskDefinition{Name: "t", DSL: "AAA &&"}})
	if !errors.Is(err, domain.ErrInvalidDSL) {
		t.Fatalf("CompileTask() err=%v, want invalid dsl", err)
	}
	if reg.lookups != 0 {
		t.Fatalf("registry consulted before DSL validation")
	}
}

func TestCompileTask_Composed(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	req, err := c.CompileTask(context.Background(), TaskLaunch{
		Definition: domain.TaskDefinition{Name: "seqTask", DSL: "AAA && BBB"},
		Properties: map[string]string{
			"app.seqTask.AAA.timestamp.format":                      "YYYY",
			"deployer.seqTask.AAA.memory":                           "1240m",
			"app.composed-task-runner.interval-time-between-checks": "1000",
		},
	})
	if err != nil {
		t.Fatalf("CompileTask() err=%v", err)
	}
	if req.App != "composed-task-runner" || req.Stage != "seqTask" {
		t.Fatalf("request=%+v", req)
	}
	if req.AppProperties[domain.ComposedTaskGraph] != "seqTask-AAA && seqTask-BBB" {
		t.Fatalf("graph=%q", req.AppProperties[domain.ComposedTaskGraph])
	}
	wantComposed := "app.seqTask-AAA.app.AAA.timestamp.format=YYYY, deployer.seqTask-AAA.deployer.AAA.memory=1240m"
	if req.AppProperties[domain.ComposedTaskProperties] != wantComposed {
		t.Fatalf("composed-task-properties=%q, want %q", req.AppProperties[domain.ComposedTaskProperties], wantComposed)
	}
	if req.AppProperties["interval-time-between-checks"] != "1000" {
		t.Fatalf("runner property missing: %v", req.AppProperties)
	}
	if req.AppProperties[domain.ComposedTaskServerURI] != "http://dataflow:8080" {
		t.Fatalf("server uri=%q", req.AppProperties[domain.ComposedTaskServerURI])
	}
	if req.AppProperties[domain.TaskNameKey] != "seqTask" {
		t.Fatalf("task name=%q", req.AppProperties[domain.TaskNameKey])
	}
	if _, ok := req.AppProperties["AAA.timestamp.format"]; ok {
		t.Fatalf("child property leaked into runner: %v", req.AppProperties)
	}
	if len(req.DeployerProperties) != 0 {
		t.Fatalf("runner deployer=%v", req.DeployerProperties)
	}
}

func TestCompileTask_ComposedServerURIFromArgs(t *testing.T) {
	c := newTestCompiler(newFakeRegistry())
	req, err := c.CompileTask(context.Background(), TaskLaunch{
		Definition: domain.TaskDefinition{Name: "seqTask", DSL: "AAA && BBB"},
		Arguments:  []string{"--dataflow-server-uri=http://other"},
	})
	if err != nil {
		t.Fatalf("CompileTask() err=%v", err)
	}
	if _, ok := req.AppProperties[domain.ComposedTaskServerURI]; ok {
		t.Fatalf("server uri should not be injected when passed as an argument")
	}
}

func TestComposedTaskProperties_Labels(t *testing.T) {
	g, err := taskdsl.Parse("flow", "t1: AAA && t1.b: BBB")
	if err != nil {
		t.Fatalf("Parse() err=%v", err)
	}
	got := ComposedTaskProperties(g, map[string]string{
		"app.flow.t1.b.x": "1",
		"app.flow.t1.y":   "2",
		"app.flow.zzz.q":  "3",
	})
	want := "app.flow-t1.b.app.BBB.x=1, app.flow-t1.app.AAA.y=2"
	if got != want {
		t.Fatalf("ComposedTaskProperties()=%q, want %q", got, want)
	}
}

func TestSchedulerProperties(t *testing.T) {
	got := SchedulerProperties(domain.TaskDefinition{Name: "nightly"}, "AAA", map[string]string{
		"scheduler.AAA.cron.expression":     "0 1 * * *",
		"scheduler.nightly.cron.expression": "0 2 * * *",
	})
	if got[domain.SchedulerCronExpression] != "0 2 * * *" {
		t.Fatalf("SchedulerProperties()=%v", got)
	}
	if len(got) != 1 {
		t.Fatalf("SchedulerProperties()=%v, want only the cron expression", got)
	}
}
