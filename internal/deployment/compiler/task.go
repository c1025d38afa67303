package compiler

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/deployment/props"
	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/dsl/taskdsl"
)

// TaskLaunch is the input for compiling a single task launch or schedule.
type TaskLaunch struct {
	Definition domain.TaskDefinition
	Properties map[string]string
	Arguments  []string
}

// CompileTask builds the launch request for a task definition. Composed
// definitions compile to a request for the composed task runner.
func (c *Compiler) CompileTask(ctx context.Context, launch TaskLaunch) (domain.DeploymentRequest, error) {
	g, err := taskdsl.Parse(launch.Definition.Name, launch.Definition.DSL)
	if err != nil {
		return domain.DeploymentRequest{}, err
	}
	if g.Composed() {
		return c.compileComposed(ctx, g, launch)
	}

	node := g.Node(g.Tasks()[0])
	definition := map[string]string{}
	for _, arg := range node.Args {
		definition[arg.Key] = arg.Value
	}
	return c.compileTaskApp(ctx, launch, node.App, definition, true)
}

func (c *Compiler) compileComposed(ctx context.Context, g *taskdsl.Graph, launch TaskLaunch) (domain.DeploymentRequest, error) {
	definition := map[string]string{domain.ComposedTaskGraph: g.ExecutableDSL()}
	if composed := ComposedTaskProperties(g, launch.Properties); composed != "" {
		definition[domain.ComposedTaskProperties] = composed
	}
	if c.cfg.ServerURI != "" && !hasArgument(launch.Arguments, domain.ComposedTaskServerURI) {
		if _, ok := props.Resolve(launch.Properties, c.cfg.ComposedTaskRunner).AppProperties()[domain.ComposedTaskServerURI]; !ok {
			definition[domain.ComposedTaskServerURI] = c.cfg.ServerURI
		}
	}
	// app.<parent>.* and deployer.<parent>.* address child steps here, so the
	// definition-name scope is not applied to the runner itself.
	return c.compileTaskApp(ctx, launch, c.cfg.ComposedTaskRunner, definition, false)
}

func (c *Compiler) compileTaskApp(ctx context.Context, launch TaskLaunch, app string, definition map[string]string, nameScope bool) (domain.DeploymentRequest, error) {
	name := launch.Definition.Name
	version, _ := props.Version(launch.Properties, app)
	reg, err := c.find(ctx, name, app, domain.AppTypeTask, version)
	if err != nil {
		return domain.DeploymentRequest{}, err
	}

	byApp := props.Resolve(launch.Properties, app)
	deploy := byApp.AppProperties()
	deployer := byApp.Deployer
	if nameScope && name != app {
		byName := props.Resolve(launch.Properties, name)
		deploy = props.Merge(deploy, byName.App)
		deployer = props.Merge(deployer, byName.Deployer)
	}

	merged, err := c.merger.Merge(props.Merge(c.cfg.CommonTaskProperties, definition), deploy, c.metadata(ctx, reg))
	if err != nil {
		return domain.DeploymentRequest{}, fmt.Errorf("task %s: %w", name, err)
	}
	merged[domain.TaskNameKey] = name

	args := make([]string, 0, len(launch.Arguments)+1)
	args = append(args, launch.Arguments...)
	if version != "" {
		args = append(args, version)
	}
	return domain.DeploymentRequest{
		Stage:              name,
		App:                app,
		Type:               domain.AppTypeTask,
		Resource:           c.registry.ResolveArtifact(reg),
		Version:            version,
		AppProperties:      appOnly(merged),
		DeployerProperties: deployer,
		CommandLineArgs:    args,
	}, nil
}

// SchedulerProperties returns the qualified scheduler properties for a task
// definition, read from both its app and definition scopes.
func SchedulerProperties(def domain.TaskDefinition, app string, all map[string]string) map[string]string {
	return props.SchedulerFor(all, app, def.Name)
}

// ComposedTaskProperties translates app.<parent>.<step>.<key> and
// deployer.<parent>.<step>.<key> launch properties into the properties the
// runner forwards to each child launch.
func ComposedTaskProperties(g *taskdsl.Graph, all map[string]string) string {
	children := g.Children()
	// Longest discriminator first so dotted labels match before their prefixes.
	sort.SliceStable(children, func(i, j int) bool {
		return len(discriminator(children[i])) > len(discriminator(children[j]))
	})

	var parts []string
	for _, k := range props.SortedKeys(all) {
		for _, scope := range []string{"app", "deployer"} {
			prefix := scope + "." + g.Name + "."
			rest, ok := strings.CutPrefix(k, prefix)
			if !ok {
				continue
			}
			for _, child := range children {
				key, ok := strings.CutPrefix(rest, discriminator(child)+".")
				if !ok || key == "" {
					continue
				}
				parts = append(parts, fmt.Sprintf("%s.%s.%s.%s.%s=%s", scope, child.Name, scope, child.App, key, all[k]))
				break
			}
		}
	}
	return strings.Join(parts, ", ")
}

func discriminator(c taskdsl.Child) string {
	if c.Label != "" {
		return c.Label
	}
	return c.App
}

func hasArgument(args []string, key string) bool {
	for _, arg := range args {
		if strings.HasPrefix(strings.TrimPrefix(arg, "--"), key+"=") {
			return true
		}
	}
	return false
}
