package release

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/platform/objectstore"
)

// Store persists packages as YAML objects under <name>/<version>/package.yml.
type Store struct {
	objects objectstore.Store
	bucket  string
}

func NewStore(objects objectstore.Store, bucket string) *Store {
	if objects == nil || bucket == "" {
		return nil
	}
	return &Store{objects: objects, bucket: bucket}
}

func Key(name, version string) string {
	return path.Join(name, version, "package.yml")
}

func (s *Store) Put(ctx context.Context, pkg Package) (string, error) {
	data, err := pkg.Marshal()
	if err != nil {
		return "", err
	}
	key := Key(pkg.Metadata.Name, pkg.Metadata.Version)
	if err := s.objects.Put(ctx, s.bucket, key, data, "application/yaml"); err != nil {
		return "", domain.Backend("store package", err)
	}
	return key, nil
}

func (s *Store) Get(ctx context.Context, name, version string) (Package, error) {
	data, err := s.objects.Get(ctx, s.bucket, Key(name, version))
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		return Package{}, domain.NotFound("package %s version %s not found", name, version)
	}
	if err != nil {
		return Package{}, domain.Backend("load package", err)
	}
	pkg, err := Unmarshal(data)
	if err != nil {
		return Package{}, fmt.Errorf("package %s/%s: %w", name, version, err)
	}
	return pkg, nil
}
