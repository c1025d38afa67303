// Package streamdsl parses pipe-delimited stream definitions into pipelines.
//
// Grammar:
//
//	stream := stage ('|' stage)* | stage ('||' stage)+
//	stage  := [label ':'] app ('--' key '=' value)*
//
// Stages joined by '|' are typed source, processor..., sink. Stages joined by
// '||' are independent applications of type app.
package streamdsl

import (
	"sort"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/dsl"
)

type parser struct {
	text   string
	tokens []dsl.Token
	pos    int
}

func Parse(name, text string) (domain.Pipeline, error) {
	if strings.TrimSpace(text) == "" {
		return domain.Pipeline{}, dsl.Errorf(text, 0, "stream definition is empty")
	}
	tokens, err := dsl.Tokenize(text)
	if err != nil {
		return domain.Pipeline{}, err
	}
	p := &parser{text: text, tokens: tokens}

	var stages []domain.AppStage
	var separator dsl.Kind
	seen := map[string]int{}
	for {
		stage, pos, err := p.stage()
		if err != nil {
			return domain.Pipeline{}, err
		}
		if first, ok := seen[stage.Name]; ok {
			return domain.Pipeline{}, dsl.Errorf(text, pos,
				"duplicate app name %q (first at position %d), use labels to disambiguate", stage.Name, first)
		}
		seen[stage.Name] = pos
		stages = append(stages, stage)

		tok := p.next()
		switch tok.Kind {
		case dsl.EOF:
			return domain.Pipeline{Name: name, Stages: assignTypes(stages, separator)}, nil
		case dsl.Pipe, dsl.DoublePipe:
			if separator != dsl.EOF && separator != tok.Kind {
				return domain.Pipeline{}, dsl.Errorf(text, tok.Pos, "cannot mix '|' and '||' in one stream")
			}
			separator = tok.Kind
		default:
			return domain.Pipeline{}, dsl.Errorf(text, tok.Pos, "unexpected %s %q", tok.Kind, tok.Text)
		}
	}
}

func (p *parser) peek() dsl.Token { return p.tokens[p.pos] }

func (p *parser) next() dsl.Token {
	tok := p.tokens[p.pos]
	if tok.Kind != dsl.EOF {
		p.pos++
	}
	return tok
}

func (p *parser) stage() (domain.AppStage, int, error) {
	first := p.next()
	if first.Kind != dsl.Ident {
		return domain.AppStage{}, 0, dsl.Errorf(p.text, first.Pos, "expected app name but found %s", first.Kind)
	}
	app := first.Text
	label := ""
	if p.peek().Kind == dsl.Colon {
		p.next()
		appTok := p.next()
		if appTok.Kind != dsl.Ident {
			return domain.AppStage{}, 0, dsl.Errorf(p.text, appTok.Pos, "expected app name after label %q", first.Text)
		}
		label = first.Text
		app = appTok.Text
	}

	stage := domain.AppStage{Name: app, App: app, Properties: map[string]string{}}
	if label != "" {
		stage.Name = label
	}
	for p.peek().Kind == dsl.Option {
		opt := p.next()
		stage.Properties[opt.Key] = opt.Value
	}
	return stage, first.Pos, nil
}

func assignTypes(stages []domain.AppStage, separator dsl.Kind) []domain.AppStage {
	last := len(stages) - 1
	for i := range stages {
		switch {
		case separator == dsl.DoublePipe:
			stages[i].Type = domain.AppTypeApp
		case i == 0:
			stages[i].Type = domain.AppTypeSource
		case i == last:
			stages[i].Type = domain.AppTypeSink
		default:
			stages[i].Type = domain.AppTypeProcessor
		}
	}
	return stages
}

// Format renders a pipeline back to canonical DSL text.
func Format(p domain.Pipeline) string {
	separator := " | "
	if len(p.Stages) > 1 && p.Stages[0].Type == domain.AppTypeApp {
		separator = " || "
	}
	parts := make([]string, 0, len(p.Stages))
	for _, s := range p.Stages {
		parts = append(parts, FormatStage(s))
	}
	return strings.Join(parts, separator)
}

// FormatStage renders one stage with its properties in key order.
func FormatStage(s domain.AppStage) string {
	var b strings.Builder
	if s.Labeled() {
		b.WriteString(s.Name)
		b.WriteString(": ")
	}
	b.WriteString(s.App)
	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(" --")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(dsl.Quote(s.Properties[k]))
	}
	return b.String()
}
