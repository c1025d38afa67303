package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/repo"
)

type appKey struct {
	name    string
	typ     domain.AppType
	version string
}

type AppRegistrations struct {
	mu   sync.RWMutex
	apps map[appKey]domain.AppRegistration
}

func NewAppRegistrations() *AppRegistrations {
	return &AppRegistrations{apps: map[appKey]domain.AppRegistration{}}
}

func (s *AppRegistrations) Save(_ context.Context, reg domain.AppRegistration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if reg.Default {
		s.clearDefault(reg.Name, reg.Type)
	}
	s.apps[appKey{reg.Name, reg.Type, reg.Version}] = reg
	return nil
}

func (s *AppRegistrations) clearDefault(name string, typ domain.AppType) {
	for k, v := range s.apps {
		if k.name == name && k.typ == typ && v.Default {
			v.Default = false
			s.apps[k] = v
		}
	}
}

func (s *AppRegistrations) Get(_ context.Context, name string, typ domain.AppType, version string) (domain.AppRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	reg, ok := s.apps[appKey{name, typ, version}]
	if !ok {
		return domain.AppRegistration{}, repo.ErrNotFound
	}
	return reg, nil
}

func (s *AppRegistrations) Default(_ context.Context, name string, typ domain.AppType) (domain.AppRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, v := range s.apps {
		if k.name == name && k.typ == typ && v.Default {
			return v, nil
		}
	}
	return domain.AppRegistration{}, repo.ErrNotFound
}

func (s *AppRegistrations) SetDefault(_ context.Context, name string, typ domain.AppType, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := appKey{name, typ, version}
	reg, ok := s.apps[k]
	if !ok {
		return repo.ErrNotFound
	}
	s.clearDefault(name, typ)
	reg.Default = true
	s.apps[k] = reg
	return nil
}

func (s *AppRegistrations) List(_ context.Context, filter repo.AppFilter) ([]domain.AppRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AppRegistration, 0, len(s.apps))
	for _, v := range s.apps {
		if filter.Type != "" && v.Type != filter.Type {
			continue
		}
		if filter.Name != "" && v.Name != filter.Name {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out, nil
}

func (s *AppRegistrations) Delete(_ context.Context, name string, typ domain.AppType, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := appKey{name, typ, version}
	if _, ok := s.apps[k]; !ok {
		return repo.ErrNotFound
	}
	delete(s.apps, k)
	return nil
}
