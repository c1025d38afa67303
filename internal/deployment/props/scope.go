// Package props splits flat deployment property maps into per-stage scopes.
//
// Recognised caller prefixes:
//
//	app.*.<key>            every stage
//	app.<stage>.<key>      one stage, wins over app.*.
//	deployer.*.<key>       deployer property for every stage
//	deployer.<stage>.<key> deployer property for one stage
//	scheduler.<stage>.<key>
//	version.<stage>
//
// Keys with any other prefix are ignored by the resolver.
package props

import (
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
)

// Scope is the view of a property map from one stage.
type Scope struct {
	Wildcard  map[string]string
	App       map[string]string
	Deployer  map[string]string
	Scheduler map[string]string
}

// Resolve never mutates all and returns fresh maps on every call.
func Resolve(all map[string]string, stage string) Scope {
	return Scope{
		Wildcard:  extractApp(all, domain.AppPrefix+domain.Wildcard+"."),
		App:       extractApp(all, domain.AppPrefix+stage+"."),
		Deployer:  Deployer(all, stage),
		Scheduler: Scheduler(all, stage),
	}
}

// AppProperties layers the stage-specific properties over the wildcard ones.
func (s Scope) AppProperties() map[string]string {
	return Merge(s.Wildcard, s.App)
}

// extractApp strips prefix and rewrites producer./consumer. shorthands to
// their binding keys.
func extractApp(all map[string]string, prefix string) map[string]string {
	out := map[string]string{}
	for _, k := range SortedKeys(all) {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if rest == "" {
			continue
		}
		out[bindingKey(rest)] = all[k]
	}
	return out
}

func bindingKey(key string) string {
	switch {
	case strings.HasPrefix(key, "producer."):
		return domain.OutputBindingPrefix + key
	case strings.HasPrefix(key, "consumer."):
		return domain.InputBindingPrefix + key
	default:
		return key
	}
}

// Deployer returns deployer.*. then deployer.<stage>. properties qualified
// with the deployer key prefix.
func Deployer(all map[string]string, stage string) map[string]string {
	out := map[string]string{}
	qualifyInto(out, all, domain.DeployerPrefix+domain.Wildcard+".", domain.DeployerKeyPrefix)
	qualifyInto(out, all, domain.DeployerPrefix+stage+".", domain.DeployerKeyPrefix)
	return out
}

// Scheduler returns scheduler properties qualified with the scheduler key
// prefix. Bare scheduler.<key> entries apply with the lowest precedence.
func Scheduler(all map[string]string, stage string) map[string]string {
	return SchedulerFor(all, stage)
}

// SchedulerFor is Scheduler for an entity known under several stage names;
// later names win.
func SchedulerFor(all map[string]string, stages ...string) map[string]string {
	wildcard := domain.SchedulerPrefix + domain.Wildcard + "."
	scoped := []string{wildcard}
	for _, stage := range stages {
		scoped = append(scoped, domain.SchedulerPrefix+stage+".")
	}
	out := map[string]string{}
	for _, k := range SortedKeys(all) {
		if !strings.HasPrefix(k, domain.SchedulerPrefix) || hasAnyPrefix(k, scoped) {
			continue
		}
		out[domain.SchedulerKeyPrefix+strings.TrimPrefix(k, domain.SchedulerPrefix)] = all[k]
	}
	for _, prefix := range scoped {
		qualifyInto(out, all, prefix, domain.SchedulerKeyPrefix)
	}
	return out
}

func hasAnyPrefix(k string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(k, p) {
			return true
		}
	}
	return false
}

func qualifyInto(out, all map[string]string, prefix, qualified string) {
	for _, k := range SortedKeys(all) {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if rest == "" {
			continue
		}
		out[qualified+rest] = all[k]
	}
}

// Version returns the version override for stage: version.<stage> if set,
// otherwise the first key in sorted order starting with version.<stage>.
func Version(all map[string]string, stage string) (string, bool) {
	exact := domain.VersionPrefix + stage
	if v, ok := all[exact]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	for _, k := range SortedKeys(all) {
		if strings.HasPrefix(k, exact) && strings.TrimSpace(all[k]) != "" {
			return strings.TrimSpace(all[k]), true
		}
	}
	return "", false
}

// WithPrefix returns the entries whose key starts with prefix, prefix removed.
func WithPrefix(all map[string]string, prefix string) map[string]string {
	out := map[string]string{}
	for k, v := range all {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			out[rest] = v
		}
	}
	return out
}

// WithoutPrefix drops the entries whose key starts with prefix.
func WithoutPrefix(all map[string]string, prefix string) map[string]string {
	out := map[string]string{}
	for k, v := range all {
		if !strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out
}
