// Package merge combines definition-time and deploy-time application
// properties and expands whitelisted short names.
package merge

import (
	"sort"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
)

// Defaults are injected into every merged map unless already present.
type Defaults struct {
	MetricsProperties      string
	MetricsTriggerIncludes string
}

func DefaultDefaults() Defaults {
	return Defaults{
		MetricsProperties:      "spring.application.name,spring.application.index,spring.cloud.application.*,spring.cloud.dataflow.*",
		MetricsTriggerIncludes: "integration**",
	}
}

type Merger struct {
	defaults Defaults
}

func New(defaults Defaults) Merger {
	return Merger{defaults: defaults}
}

// Merge returns definition overlaid with deploy, expanded against metadata.
// A nil metadata slice skips expansion.
func (m Merger) Merge(definition, deploy map[string]string, metadata []Property) (map[string]string, error) {
	merged := make(map[string]string, len(definition)+len(deploy)+2)
	for k, v := range definition {
		merged[k] = v
	}
	for k, v := range deploy {
		merged[k] = v
	}
	expanded, err := Expand(merged, metadata)
	if err != nil {
		return nil, err
	}
	if m.defaults.MetricsProperties != "" {
		if _, ok := expanded[domain.MetricsProperties]; !ok {
			expanded[domain.MetricsProperties] = m.defaults.MetricsProperties
		}
	}
	if m.defaults.MetricsTriggerIncludes != "" {
		if _, ok := expanded[domain.MetricsTriggerIncludes]; !ok {
			expanded[domain.MetricsTriggerIncludes] = m.defaults.MetricsTriggerIncludes
		}
	}
	return expanded, nil
}

// Expand rewrites keys that match exactly one whitelisted short name to the
// property id. Full ids and unknown keys pass through; a short name shared by
// several properties is rejected.
func Expand(props map[string]string, metadata []Property) (map[string]string, error) {
	out := make(map[string]string, len(props))
	if metadata == nil {
		for k, v := range props {
			out[k] = v
		}
		return out, nil
	}

	ids := make(map[string]bool, len(metadata))
	byName := make(map[string][]string, len(metadata))
	for _, p := range metadata {
		ids[p.ID] = true
		name := p.ShortName()
		byName[name] = append(byName[name], p.ID)
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if ids[k] {
			out[k] = props[k]
			continue
		}
		switch longForms := byName[k]; len(longForms) {
		case 0:
			out[k] = props[k]
		case 1:
			out[longForms[0]] = props[k]
		default:
			sort.Strings(longForms)
			return nil, domain.Invalid("ambiguous short form property '%s' could mean any of [%s]", k, strings.Join(longForms, ", "))
		}
	}
	return out, nil
}
