package taskdsl

import (
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/dsl"
)

type parser struct {
	text   string
	tokens []dsl.Token
	pos    int
	nodes  []Node
}

// Parse builds and validates the graph of a task definition named name.
func Parse(name, text string) (*Graph, error) {
	g, err := parse(name, text)
	if err != nil {
		return nil, err
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// IsComposed reports whether text describes more than one bare task. Text
// that does not parse is not composed.
func IsComposed(text string) bool {
	g, err := parse("", text)
	if err != nil {
		return false
	}
	return g.Composed()
}

func parse(name, text string) (*Graph, error) {
	if strings.TrimSpace(text) == "" {
		return nil, dsl.Errorf(text, 0, "task definition is empty")
	}
	tokens, err := dsl.Tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{text: text, tokens: tokens}
	root, err := p.flow()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.Kind != dsl.EOF {
		return nil, dsl.Errorf(text, tok.Pos, "unexpected %s %q", tok.Kind, tok.Text)
	}
	return &Graph{Name: name, DSL: text, nodes: p.nodes, root: root}, nil
}

func (p *parser) peek() dsl.Token { return p.tokens[p.pos] }

func (p *parser) next() dsl.Token {
	tok := p.tokens[p.pos]
	if tok.Kind != dsl.EOF {
		p.pos++
	}
	return tok
}

func (p *parser) add(n Node) NodeID {
	p.nodes = append(p.nodes, n)
	return NodeID(len(p.nodes) - 1)
}

func (p *parser) flow() (NodeID, error) {
	start := p.peek().Pos
	var steps []NodeID
	for {
		id, err := p.step()
		if err != nil {
			return NoNode, err
		}
		steps = append(steps, id)
		if p.peek().Kind != dsl.DoubleAmp {
			break
		}
		p.next()
	}
	return p.add(Node{Kind: NodeFlow, Pos: start, Children: steps}), nil
}

func (p *parser) step() (NodeID, error) {
	if p.peek().Kind == dsl.LT {
		return p.split()
	}
	id, err := p.task()
	if err != nil {
		return NoNode, err
	}
	for {
		tok := p.peek()
		if tok.Kind != dsl.String && tok.Kind != dsl.Star {
			return id, nil
		}
		tr, err := p.transition()
		if err != nil {
			return NoNode, err
		}
		p.nodes[id].Transitions = append(p.nodes[id].Transitions, tr)
	}
}

func (p *parser) split() (NodeID, error) {
	open := p.next()
	var flows []NodeID
	for {
		id, err := p.flow()
		if err != nil {
			return NoNode, err
		}
		flows = append(flows, id)
		tok := p.next()
		switch tok.Kind {
		case dsl.DoublePipe:
			continue
		case dsl.GT:
			if len(flows) < 2 {
				return NoNode, dsl.Errorf(p.text, open.Pos, "a split requires at least two flows")
			}
			return p.add(Node{Kind: NodeSplit, Pos: open.Pos, Children: flows}), nil
		default:
			return NoNode, dsl.Errorf(p.text, tok.Pos, "expected '||' or '>' but found %s", tok.Kind)
		}
	}
}

func (p *parser) task() (NodeID, error) {
	first := p.next()
	if first.Kind != dsl.Ident {
		return NoNode, dsl.Errorf(p.text, first.Pos, "expected task app name but found %s", first.Kind)
	}
	if strings.HasPrefix(first.Text, "$") {
		return NoNode, dsl.Errorf(p.text, first.Pos, "%s may only be used as a transition target", first.Text)
	}
	n := Node{Kind: NodeTask, Pos: first.Pos, App: first.Text}
	if p.peek().Kind == dsl.Colon {
		p.next()
		app := p.next()
		if app.Kind != dsl.Ident {
			return NoNode, dsl.Errorf(p.text, app.Pos, "expected task app name after label %q", first.Text)
		}
		n.Label = first.Text
		n.App = app.Text
	}
	for p.peek().Kind == dsl.Option {
		opt := p.next()
		n.Args = append(n.Args, Arg{Key: opt.Key, Value: opt.Value})
	}
	return p.add(n), nil
}

func (p *parser) transition() (Transition, error) {
	status := p.next()
	tr := Transition{Status: status.Text, Target: NoNode}
	if status.Kind == dsl.Star {
		tr.Status = AnyStatus
	}
	if strings.TrimSpace(tr.Status) == "" {
		return Transition{}, dsl.Errorf(p.text, status.Pos, "transition exit status is empty")
	}
	if arrow := p.next(); arrow.Kind != dsl.Arrow {
		return Transition{}, dsl.Errorf(p.text, arrow.Pos, "expected '->' after exit status %q", tr.Status)
	}

	target := p.peek()
	switch {
	case target.Kind == dsl.Colon:
		p.next()
		ref := p.next()
		if ref.Kind != dsl.Ident {
			return Transition{}, dsl.Errorf(p.text, ref.Pos, "expected label after ':'")
		}
		tr.Ref = ref.Text
	case target.Kind == dsl.Ident && (target.Text == EndStatus || target.Text == FailStatus):
		p.next()
		tr.End = target.Text
	default:
		id, err := p.task()
		if err != nil {
			return Transition{}, err
		}
		tr.Target = id
	}
	return tr, nil
}
