// Package taskdsl parses composed-task definitions into a step graph.
//
// Grammar:
//
//	flow       := node ('&&' node)*
//	node       := split | task transition*
//	split      := '<' flow ('||' flow)+ '>'
//	task       := [label ':'] app ('--' key '=' value)*
//	transition := (quoted-status | '*') '->' (task | ':' label | '$END' | '$FAIL')
//
// Nodes live in an arena and reference each other by NodeID, so transitions
// may point at any labeled step without forming pointer cycles.
package taskdsl

import (
	"sort"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/dsl"
)

type NodeID int

const NoNode NodeID = -1

type NodeKind int

const (
	NodeTask NodeKind = iota
	NodeSplit
	NodeFlow
)

// Node is one arena entry. Task nodes use Label, App, Args and Transitions;
// flows and splits use Children (flows hold steps, splits hold flows).
type Node struct {
	Kind        NodeKind
	Pos         int
	Label       string
	App         string
	Args        []Arg
	Transitions []Transition
	Children    []NodeID
}

type Arg struct {
	Key   string
	Value string
}

// Transition routes an exit status to a target. Exactly one of Target, Ref
// and End is set.
type Transition struct {
	Status string
	Target NodeID
	Ref    string
	End    string
}

const (
	EndStatus  = "$END"
	FailStatus = "$FAIL"
	AnyStatus  = "*"
)

// Graph is a parsed composed-task definition.
type Graph struct {
	Name  string
	DSL   string
	nodes []Node
	root  NodeID
}

// Child is a task definition derived from one step of the graph.
type Child struct {
	Name  string
	Label string
	App   string
	DSL   string
}

func (g *Graph) Node(id NodeID) Node { return g.nodes[id] }
func (g *Graph) Root() NodeID        { return g.root }

// Discriminator is the label when present, otherwise the app name.
func (n Node) Discriminator() string {
	if n.Label != "" {
		return n.Label
	}
	return n.App
}

// Tasks returns task node ids in declaration order, transition targets
// following the step that declares them.
func (g *Graph) Tasks() []NodeID {
	var out []NodeID
	var walk func(id NodeID)
	walk = func(id NodeID) {
		n := g.nodes[id]
		switch n.Kind {
		case NodeTask:
			out = append(out, id)
			for _, tr := range n.Transitions {
				if tr.Target != NoNode {
					walk(tr.Target)
				}
			}
		default:
			for _, child := range n.Children {
				walk(child)
			}
		}
	}
	walk(g.root)
	return out
}

// Composed reports whether the graph is more than a single bare task.
func (g *Graph) Composed() bool {
	root := g.nodes[g.root]
	if len(root.Children) != 1 {
		return true
	}
	only := g.nodes[root.Children[0]]
	return only.Kind != NodeTask || len(only.Transitions) > 0
}

// ChildName returns the qualified definition name for a task node.
func (g *Graph) ChildName(id NodeID) string {
	return g.Name + "-" + g.nodes[id].Discriminator()
}

// Children lists the child definitions in declaration order.
func (g *Graph) Children() []Child {
	ids := g.Tasks()
	out := make([]Child, 0, len(ids))
	for _, id := range ids {
		n := g.nodes[id]
		out = append(out, Child{
			Name:  g.ChildName(id),
			Label: n.Label,
			App:   n.App,
			DSL:   TaskDSL(n.App, n.Args),
		})
	}
	return out
}

// ExecutableDSL rewrites step references to their qualified child names.
// Labels are kept only where a transition refers to them.
func (g *Graph) ExecutableDSL() string {
	referenced := map[string]bool{}
	for _, id := range g.Tasks() {
		for _, tr := range g.nodes[id].Transitions {
			if tr.Ref != "" {
				referenced[tr.Ref] = true
			}
		}
	}
	var b strings.Builder
	g.render(&b, g.root, referenced)
	return b.String()
}

func (g *Graph) render(b *strings.Builder, id NodeID, referenced map[string]bool) {
	n := g.nodes[id]
	switch n.Kind {
	case NodeFlow:
		for i, child := range n.Children {
			if i > 0 {
				b.WriteString(" && ")
			}
			g.render(b, child, referenced)
		}
	case NodeSplit:
		b.WriteString("<")
		for i, child := range n.Children {
			if i > 0 {
				b.WriteString(" || ")
			}
			g.render(b, child, referenced)
		}
		b.WriteString(">")
	case NodeTask:
		if n.Label != "" && referenced[n.Label] {
			b.WriteString(n.Label)
			b.WriteString(": ")
		}
		b.WriteString(g.ChildName(id))
		for _, tr := range n.Transitions {
			b.WriteString(" ")
			if tr.Status == AnyStatus {
				b.WriteString("'*'")
			} else {
				b.WriteString("'" + strings.ReplaceAll(tr.Status, "'", "''") + "'")
			}
			b.WriteString("->")
			switch {
			case tr.Target != NoNode:
				g.render(b, tr.Target, referenced)
			case tr.Ref != "":
				b.WriteString(":" + tr.Ref)
			default:
				b.WriteString(tr.End)
			}
		}
	}
}

// Apps returns the distinct app names referenced by the graph, sorted.
func (g *Graph) Apps() []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range g.Tasks() {
		app := g.nodes[id].App
		if !seen[app] {
			seen[app] = true
			out = append(out, app)
		}
	}
	sort.Strings(out)
	return out
}

// TaskDSL renders an app reference with its arguments.
func TaskDSL(app string, args []Arg) string {
	var b strings.Builder
	b.WriteString(app)
	for _, a := range args {
		b.WriteString(" --")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(dsl.Quote(a.Value))
	}
	return b.String()
}

// validate checks label references and qualified-name uniqueness.
func (g *Graph) validate() error {
	labels := map[string]bool{}
	names := map[string]bool{}
	for _, id := range g.Tasks() {
		n := g.nodes[id]
		if n.Label != "" {
			labels[n.Label] = true
		}
		name := g.ChildName(id)
		if names[name] {
			return &domain.DuplicateDefinitionError{Name: name}
		}
		names[name] = true
	}
	for _, id := range g.Tasks() {
		for _, tr := range g.nodes[id].Transitions {
			if tr.Ref != "" && !labels[tr.Ref] {
				return dsl.Errorf(g.DSL, g.nodes[id].Pos, "transition refers to unknown label %q", tr.Ref)
			}
		}
	}
	return nil
}
