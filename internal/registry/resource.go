package registry

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/animus-labs/animus-dataflow/internal/domain"
)

var jarVersion = regexp.MustCompile(`^(.*)-(\d[^/]*)\.jar$`)

// ResourceVersion extracts the version embedded in an artifact URI.
//
//	maven://group:artifact[:extension[:classifier]]:version
//	docker:repository:tag
//	http(s)://host/path/artifact-<version>.jar
func ResourceVersion(uri string) (string, error) {
	_, version, err := splitResource(uri)
	return version, err
}

// ResourceWithoutVersion returns uri with its version removed.
func ResourceWithoutVersion(uri string) (string, error) {
	base, _, err := splitResource(uri)
	return base, err
}

func splitResource(uri string) (string, string, error) {
	uri = strings.TrimSpace(uri)
	switch {
	case strings.HasPrefix(uri, "maven://"):
		coords := strings.Split(strings.TrimPrefix(uri, "maven://"), ":")
		if len(coords) < 3 || coords[len(coords)-1] == "" {
			return "", "", domain.Invalid("maven coordinates %q must be group:artifact[:extension[:classifier]]:version", uri)
		}
		return "maven://" + strings.Join(coords[:len(coords)-1], ":"), coords[len(coords)-1], nil
	case strings.HasPrefix(uri, "docker:"):
		image := strings.TrimPrefix(strings.TrimPrefix(uri, "docker:"), "//")
		colon := strings.LastIndex(image, ":")
		if colon < 0 || colon < strings.LastIndex(image, "/") || colon == len(image)-1 {
			return "", "", domain.Invalid("docker image %q has no tag", uri)
		}
		return "docker:" + image[:colon], image[colon+1:], nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return "", "", domain.Invalid("invalid resource uri %q: %v", uri, err)
	}
	if u.Path == "" || u.Path == "/" {
		return "", "", domain.Invalid("URI path doesn't exist")
	}
	file := path.Base(u.Path)
	if path.Ext(file) == "" {
		return "", "", domain.Invalid("URI file name extension doesn't exist")
	}
	m := jarVersion.FindStringSubmatch(file)
	if m == nil {
		return "", "", domain.Invalid("Could not parse version from %s, expected format is <artifactId>-<version>.jar", uri)
	}
	base := strings.TrimSuffix(uri, file) + m[1]
	return base, m[2], nil
}

// supportedScheme reports whether uri uses a scheme the registry accepts.
func supportedScheme(uri string) error {
	for _, prefix := range []string{"maven://", "docker:", "http://", "https://", "file:", "s3://"} {
		if strings.HasPrefix(uri, prefix) {
			return nil
		}
	}
	return fmt.Errorf("unsupported resource uri %q", uri)
}
