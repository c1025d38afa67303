package merge

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Property is one whitelisted configuration property of an application.
type Property struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name,omitempty"`
	Type        string `yaml:"type,omitempty"`
	Description string `yaml:"description,omitempty"`
	Default     string `yaml:"default,omitempty"`
}

// ShortName is Name when set, otherwise the last dotted segment of ID.
func (p Property) ShortName() string {
	if p.Name != "" {
		return p.Name
	}
	if i := strings.LastIndex(p.ID, "."); i >= 0 {
		return p.ID[i+1:]
	}
	return p.ID
}

type metadataDocument struct {
	Properties []Property `yaml:"properties"`
}

// ParseMetadata reads a YAML (or JSON) metadata document:
//
//	properties:
//	  - id: log.level
//	    type: java.lang.String
func ParseMetadata(r io.Reader) ([]Property, error) {
	var doc metadataDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []Property{}, nil
		}
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	out := make([]Property, 0, len(doc.Properties))
	for i, p := range doc.Properties {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("metadata property %d: id is required", i)
		}
		out = append(out, p)
	}
	return out, nil
}
