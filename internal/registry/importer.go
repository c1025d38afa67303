package registry

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
)

// ImportResult lists registrations written and skipped by Import.
type ImportResult struct {
	Registered []domain.AppRegistration
	Skipped    []string
}

type importEntry struct {
	typ      domain.AppType
	name     string
	uri      string
	metadata string
	line     int
}

// Import registers applications from properties text:
//
//	source.time=maven://org.example:time-source:1.0.0
//	source.time.metadata=maven://org.example:time-source:jar:metadata:1.0.0
//
// Blank lines and lines starting with # or ! are ignored. Existing
// registrations are skipped unless overwrite is set.
func (s *Service) Import(ctx context.Context, text string, overwrite bool) (ImportResult, error) {
	entries, err := parseImport(text)
	if err != nil {
		return ImportResult{}, err
	}
	var result ImportResult
	for _, e := range entries {
		reg, err := s.Register(ctx, domain.AppRegistration{
			Name:        e.name,
			Type:        e.typ,
			URI:         e.uri,
			MetadataURI: e.metadata,
		}, overwrite)
		if errors.Is(err, domain.ErrDuplicate) {
			result.Skipped = append(result.Skipped, string(e.typ)+"."+e.name)
			continue
		}
		if err != nil {
			return result, fmt.Errorf("line %d: %w", e.line, err)
		}
		result.Registered = append(result.Registered, reg)
	}
	return result, nil
}

func parseImport(text string) ([]importEntry, error) {
	byKey := map[string]*importEntry{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, domain.Invalid("line %d: expected <type>.<name>=<uri>", lineNo)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		parts := strings.Split(key, ".")
		metadata := false
		if len(parts) == 3 && parts[2] == "metadata" {
			metadata = true
			parts = parts[:2]
		}
		if len(parts) != 2 || parts[1] == "" {
			return nil, domain.Invalid("line %d: invalid key %q", lineNo, key)
		}
		typ, err := domain.ParseAppType(parts[0])
		if err != nil {
			return nil, domain.Invalid("line %d: %v", lineNo, err)
		}
		if value == "" {
			return nil, domain.Invalid("line %d: uri is required", lineNo)
		}
		id := string(typ) + "." + parts[1]
		e, ok := byKey[id]
		if !ok {
			e = &importEntry{typ: typ, name: parts[1], line: lineNo}
			byKey[id] = e
		}
		if metadata {
			e.metadata = value
		} else {
			e.uri = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read import: %w", err)
	}

	out := make([]importEntry, 0, len(byKey))
	for id, e := range byKey {
		if e.uri == "" {
			return nil, domain.Invalid("metadata given without application uri for %s", id)
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].line < out[j].line })
	return out, nil
}
