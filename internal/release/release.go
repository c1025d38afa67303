// Package release builds the versioned deployment packages and update
// manifests handed to the stream deployer.
package release

import (
	"fmt"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/deployment/props"
	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	APIVersion      = "dataflow/v1"
	KindPackage     = "StreamPackage"
	DefaultRepoName = "local"
	DefaultPlatform = "default"
)

type Package struct {
	APIVersion string   `yaml:"apiVersion"`
	Kind       string   `yaml:"kind"`
	Metadata   Metadata `yaml:"metadata"`
	Apps       []App    `yaml:"apps"`
}

type Metadata struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description,omitempty"`
	RepoName    string `yaml:"repoName"`
	Platform    string `yaml:"platform"`
}

type App struct {
	Name string  `yaml:"name"`
	Spec AppSpec `yaml:"spec"`
}

type AppSpec struct {
	Type                  string            `yaml:"type"`
	Resource              string            `yaml:"resource"`
	Version               string            `yaml:"version,omitempty"`
	ApplicationProperties map[string]string `yaml:"applicationProperties,omitempty"`
	DeploymentProperties  map[string]string `yaml:"deploymentProperties,omitempty"`
}

// Build assembles the package for a stream. releaseProps holds the
// release.* keys of the deployment request; release.packageVersion is required.
func Build(def domain.StreamDefinition, requests []domain.DeploymentRequest, releaseProps map[string]string) (Package, error) {
	version := strings.TrimSpace(releaseProps[domain.ReleasePackageVersion])
	if version == "" {
		return Package{}, &domain.MissingPropertyError{Key: domain.ReleasePackageVersion}
	}
	name := strings.TrimSpace(releaseProps[domain.ReleasePackageName])
	if name == "" {
		name = def.Name
	}
	repoName := strings.TrimSpace(releaseProps[domain.ReleaseRepoName])
	if repoName == "" {
		repoName = DefaultRepoName
	}
	platform := strings.TrimSpace(releaseProps[domain.ReleasePlatformName])
	if platform == "" {
		platform = DefaultPlatform
	}

	pkg := Package{
		APIVersion: APIVersion,
		Kind:       KindPackage,
		Metadata: Metadata{
			ID:          uuid.NewString(),
			Name:        name,
			Version:     version,
			Description: def.DSL,
			RepoName:    repoName,
			Platform:    platform,
		},
		Apps: make([]App, 0, len(requests)),
	}
	for _, req := range requests {
		pkg.Apps = append(pkg.Apps, App{
			Name: req.Stage,
			Spec: AppSpec{
				Type:                  string(req.Type),
				Resource:              req.Resource.URI,
				Version:               req.Version,
				ApplicationProperties: req.AppProperties,
				DeploymentProperties:  req.DeployerProperties,
			},
		})
	}
	return pkg, nil
}

// ReleaseProperties extracts the release.* keys, defaulting the package version.
func ReleaseProperties(all map[string]string, defaultVersion string) map[string]string {
	out := map[string]string{}
	for k, v := range all {
		if strings.HasPrefix(k, domain.ReleasePrefix) {
			out[k] = v
		}
	}
	if defaultVersion != "" {
		props.PutIfAbsent(out, domain.ReleasePackageVersion, defaultVersion)
	}
	return out
}

func (p Package) App(name string) (App, bool) {
	for _, a := range p.Apps {
		if a.Name == name {
			return a, true
		}
	}
	return App{}, false
}

func (p Package) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal package: %w", err)
	}
	return out, nil
}

func Unmarshal(data []byte) (Package, error) {
	var p Package
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Package{}, fmt.Errorf("unmarshal package: %w", err)
	}
	if p.Metadata.Name == "" || p.Metadata.Version == "" {
		return Package{}, fmt.Errorf("package metadata requires name and version")
	}
	return p, nil
}

// Update is the set of per-app changes applied by an upgrade.
type Update struct {
	Stream string
	Apps   map[string]UpdateSpec
}

type UpdateSpec struct {
	ApplicationProperties map[string]string `yaml:"applicationProperties,omitempty"`
	DeploymentProperties  map[string]string `yaml:"deploymentProperties,omitempty"`
	Version               string            `yaml:"version,omitempty"`
}

func (s UpdateSpec) empty() bool {
	return len(s.ApplicationProperties) == 0 && len(s.DeploymentProperties) == 0 && s.Version == ""
}

// NewUpdate keeps only the stages that change something.
func NewUpdate(stream string, requests []domain.DeploymentRequest) Update {
	u := Update{Stream: stream, Apps: map[string]UpdateSpec{}}
	for _, req := range requests {
		spec := UpdateSpec{
			ApplicationProperties: req.AppProperties,
			DeploymentProperties:  req.DeployerProperties,
			Version:               req.Version,
		}
		if spec.empty() {
			continue
		}
		u.Apps[req.Stage] = spec
	}
	return u
}

// Manifest renders the update as YAML keyed by app name:
//
//	log:
//	  spec:
//	    applicationProperties:
//	      log.level: DEBUG
func (u Update) Manifest() (string, error) {
	if len(u.Apps) == 0 {
		return "", nil
	}
	doc := make(map[string]map[string]UpdateSpec, len(u.Apps))
	for name, spec := range u.Apps {
		doc[name] = map[string]UpdateSpec{"spec": spec}
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal update: %w", err)
	}
	return string(out), nil
}
