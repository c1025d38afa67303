package domain

import (
	"strings"
)

// StreamDefinition is the persisted form of a stream: a name and its DSL text.
type StreamDefinition struct {
	Name        string
	DSL         string
	Description string
}

// TaskDefinition is the persisted form of a task. Composed tasks and their
// children are stored as plain task definitions.
type TaskDefinition struct {
	Name        string
	DSL         string
	Description string
}

func ValidateDefinitionName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return Invalid("definition name is required")
	}
	if strings.ContainsAny(name, " \t\n|:<>&") {
		return Invalid("definition name %q contains invalid characters", name)
	}
	return nil
}

// Pipeline is a parsed stream definition. Stage order is deployment order.
type Pipeline struct {
	Name   string
	Stages []AppStage
}

// AppStage is one application within a pipeline.
type AppStage struct {
	// Name is the label when present, otherwise the registered app name.
	Name string
	App  string
	Type AppType
	// Properties holds definition-time properties from the DSL.
	Properties map[string]string
}

func (s AppStage) Labeled() bool { return s.Name != s.App }

// Stage returns the stage with the given name.
func (p Pipeline) Stage(name string) (AppStage, bool) {
	for _, s := range p.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return AppStage{}, false
}

// Page is a slice of results plus the total number of matches.
type Page[T any] struct {
	Items []T
	Total int
}

// PageRequest selects a window of results. Size <= 0 means unbounded.
type PageRequest struct {
	Page int
	Size int
}

// Paginate returns the requested window of items.
func Paginate[T any](items []T, req PageRequest) Page[T] {
	total := len(items)
	if req.Size <= 0 {
		return Page[T]{Items: items, Total: total}
	}
	start := req.Page * req.Size
	if start < 0 || start >= total {
		return Page[T]{Items: []T{}, Total: total}
	}
	end := start + req.Size
	if end > total {
		end = total
	}
	return Page[T]{Items: items[start:end], Total: total}
}
