package registry

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/deployment/merge"
	"github.com/animus-labs/animus-dataflow/internal/domain"
)

// LoadMetadata reads the whitelisted property list behind res.
// Supported locations are file:, plain paths and s3://bucket/key.
func (s *Service) LoadMetadata(ctx context.Context, res domain.Resource) ([]merge.Property, error) {
	data, err := s.readResource(ctx, res.URI)
	if err != nil {
		return nil, err
	}
	meta, err := merge.ParseMetadata(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse metadata %s: %w", res.URI, err)
	}
	return meta, nil
}

func (s *Service) readResource(ctx context.Context, uri string) ([]byte, error) {
	switch {
	case strings.HasPrefix(uri, "s3://"):
		if s.objects == nil {
			return nil, fmt.Errorf("object store is not configured for %s", uri)
		}
		bucket, key, ok := strings.Cut(strings.TrimPrefix(uri, "s3://"), "/")
		if !ok || bucket == "" || key == "" {
			return nil, fmt.Errorf("s3 uri %q must be s3://bucket/key", uri)
		}
		return s.objects.Get(ctx, bucket, key)
	case strings.HasPrefix(uri, "file:"):
		path := strings.TrimPrefix(uri, "file:")
		path = strings.TrimPrefix(path, "//")
		return os.ReadFile(path)
	case strings.Contains(uri, "://"), strings.HasPrefix(uri, "docker:"):
		return nil, fmt.Errorf("metadata resource %q cannot be read", uri)
	default:
		return os.ReadFile(uri)
	}
}
