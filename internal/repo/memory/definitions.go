// Package memory holds in-process stores used by single-node deployments and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/repo"
)

type definitions[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	name  func(T) string
}

func newDefinitions[T any](name func(T) string) *definitions[T] {
	return &definitions[T]{items: map[string]T{}, name: name}
}

func (d *definitions[T]) get(name string) (T, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	item, ok := d.items[name]
	if !ok {
		var zero T
		return zero, repo.ErrNotFound
	}
	return item, nil
}

func (d *definitions[T]) saveAll(items []T) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := map[string]bool{}
	for _, item := range items {
		name := d.name(item)
		if _, ok := d.items[name]; ok || seen[name] {
			return repo.ErrConflict
		}
		seen[name] = true
	}
	for _, item := range items {
		d.items[d.name(item)] = item
	}
	return nil
}

func (d *definitions[T]) deleteAll(names []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range names {
		if _, ok := d.items[name]; !ok {
			return repo.ErrNotFound
		}
	}
	for _, name := range names {
		delete(d.items, name)
	}
	return nil
}

func (d *definitions[T]) list(filter repo.DefinitionFilter) domain.Page[T] {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.items))
	for name := range d.items {
		if filter.Search == "" || strings.Contains(name, filter.Search) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]T, 0, len(names))
	for _, name := range names {
		out = append(out, d.items[name])
	}
	return domain.Paginate(out, filter.Page)
}

type StreamDefinitions struct {
	defs *definitions[domain.StreamDefinition]
}

func NewStreamDefinitions() *StreamDefinitions {
	return &StreamDefinitions{defs: newDefinitions(func(d domain.StreamDefinition) string { return d.Name })}
}

func (s *StreamDefinitions) Get(_ context.Context, name string) (domain.StreamDefinition, error) {
	return s.defs.get(name)
}

func (s *StreamDefinitions) Save(_ context.Context, def domain.StreamDefinition) error {
	return s.defs.saveAll([]domain.StreamDefinition{def})
}

func (s *StreamDefinitions) Delete(_ context.Context, name string) error {
	return s.defs.deleteAll([]string{name})
}

func (s *StreamDefinitions) List(_ context.Context, filter repo.DefinitionFilter) (domain.Page[domain.StreamDefinition], error) {
	return s.defs.list(filter), nil
}

type TaskDefinitions struct {
	defs *definitions[domain.TaskDefinition]
}

func NewTaskDefinitions() *TaskDefinitions {
	return &TaskDefinitions{defs: newDefinitions(func(d domain.TaskDefinition) string { return d.Name })}
}

func (s *TaskDefinitions) Get(_ context.Context, name string) (domain.TaskDefinition, error) {
	return s.defs.get(name)
}

func (s *TaskDefinitions) Save(_ context.Context, def domain.TaskDefinition) error {
	return s.defs.saveAll([]domain.TaskDefinition{def})
}

func (s *TaskDefinitions) SaveAll(_ context.Context, defs []domain.TaskDefinition) error {
	return s.defs.saveAll(defs)
}

func (s *TaskDefinitions) Delete(_ context.Context, name string) error {
	return s.defs.deleteAll([]string{name})
}

func (s *TaskDefinitions) DeleteAll(_ context.Context, names []string) error {
	return s.defs.deleteAll(names)
}

func (s *TaskDefinitions) List(_ context.Context, filter repo.DefinitionFilter) (domain.Page[domain.TaskDefinition], error) {
	return s.defs.list(filter), nil
}
