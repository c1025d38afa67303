// Package registry keeps the catalog of registered applications and resolves
// their artifacts and metadata.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/platform/objectstore"
	"github.com/animus-labs/animus-dataflow/internal/repo"
)

type Service struct {
	logger  *slog.Logger
	store   repo.AppRegistrationStore
	objects objectstore.Store
}

// New returns nil when store is nil. objects may be nil, in which case
// s3:// metadata cannot be loaded.
func New(logger *slog.Logger, store repo.AppRegistrationStore, objects objectstore.Store) *Service {
	if store == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger, store: store, objects: objects}
}

func notFound(name string, typ domain.AppType) error {
	return domain.NotFound("The '%s:%s' application could not be found.", typ, name)
}

// Register stores reg. When reg.Version is empty it is derived from the URI.
// The first version registered for a name and type becomes the default.
// An existing registration is only replaced when force is set.
func (s *Service) Register(ctx context.Context, reg domain.AppRegistration, force bool) (domain.AppRegistration, error) {
	reg.Name = strings.TrimSpace(reg.Name)
	reg.URI = strings.TrimSpace(reg.URI)
	reg.MetadataURI = strings.TrimSpace(reg.MetadataURI)
	if err := reg.Validate(); err != nil {
		return domain.AppRegistration{}, err
	}
	if err := supportedScheme(reg.URI); err != nil {
		return domain.AppRegistration{}, domain.Invalid("%v", err)
	}
	if reg.MetadataURI != "" {
		if err := supportedScheme(reg.MetadataURI); err != nil {
			return domain.AppRegistration{}, domain.Invalid("%v", err)
		}
	}
	if strings.TrimSpace(reg.Version) == "" {
		version, err := ResourceVersion(reg.URI)
		if err != nil {
			return domain.AppRegistration{}, err
		}
		reg.Version = version
	}

	existing, err := s.store.Get(ctx, reg.Name, reg.Type, reg.Version)
	switch {
	case err == nil && !force:
		return domain.AppRegistration{}, fmt.Errorf("the '%s:%s:%s' application is already registered as %s: %w",
			reg.Type, reg.Name, reg.Version, existing.URI, domain.ErrDuplicate)
	case err == nil:
		reg.Default = reg.Default || existing.Default
	case !errors.Is(err, repo.ErrNotFound):
		return domain.AppRegistration{}, domain.Backend("get app registration", err)
	}

	if !reg.Default {
		if _, err := s.store.Default(ctx, reg.Name, reg.Type); errors.Is(err, repo.ErrNotFound) {
			reg.Default = true
		} else if err != nil {
			return domain.AppRegistration{}, domain.Backend("get default registration", err)
		}
	}
	if err := s.store.Save(ctx, reg); err != nil {
		return domain.AppRegistration{}, domain.Backend("save app registration", err)
	}
	s.logger.Info("app registered", "type", reg.Type, "name", reg.Name, "version", reg.Version, "default", reg.Default)
	return reg, nil
}

// Find returns the default version of the named application.
func (s *Service) Find(ctx context.Context, name string, typ domain.AppType) (domain.AppRegistration, error) {
	reg, err := s.store.Default(ctx, name, typ)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.AppRegistration{}, notFound(name, typ)
	}
	if err != nil {
		return domain.AppRegistration{}, domain.Backend("find app registration", err)
	}
	return reg, nil
}

func (s *Service) FindVersion(ctx context.Context, name string, typ domain.AppType, version string) (domain.AppRegistration, error) {
	reg, err := s.store.Get(ctx, name, typ, version)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.AppRegistration{}, domain.NotFound("The '%s:%s:%s' application could not be found.", typ, name, version)
	}
	if err != nil {
		return domain.AppRegistration{}, domain.Backend("find app registration", err)
	}
	return reg, nil
}

// Registered reports whether a default registration exists for name and type.
func (s *Service) Registered(ctx context.Context, name string, typ domain.AppType) (bool, error) {
	_, err := s.Find(ctx, name, typ)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Service) List(ctx context.Context, filter repo.AppFilter) ([]domain.AppRegistration, error) {
	regs, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, domain.Backend("list app registrations", err)
	}
	return regs, nil
}

// Unregister removes one version, or the default version when version is empty.
func (s *Service) Unregister(ctx context.Context, name string, typ domain.AppType, version string) error {
	if version == "" {
		reg, err := s.Find(ctx, name, typ)
		if err != nil {
			return err
		}
		version = reg.Version
	}
	err := s.store.Delete(ctx, name, typ, version)
	if errors.Is(err, repo.ErrNotFound) {
		return notFound(name, typ)
	}
	if err != nil {
		return domain.Backend("delete app registration", err)
	}
	return nil
}

func (s *Service) SetDefault(ctx context.Context, name string, typ domain.AppType, version string) error {
	err := s.store.SetDefault(ctx, name, typ, version)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.NotFound("The '%s:%s:%s' application could not be found.", typ, name, version)
	}
	if err != nil {
		return domain.Backend("set default registration", err)
	}
	return nil
}

func (s *Service) ResolveArtifact(reg domain.AppRegistration) domain.Resource {
	return domain.Resource{URI: reg.URI}
}

// ResolveMetadata reports false when the registration has no metadata resource.
func (s *Service) ResolveMetadata(reg domain.AppRegistration) (domain.Resource, bool) {
	if reg.MetadataURI != "" {
		return domain.Resource{URI: reg.MetadataURI}, true
	}
	return domain.Resource{}, false
}
