package domain

import (
	"fmt"
	"strings"
)

// AppType is the closed set of registered application kinds.
type AppType string

const (
	AppTypeSource    AppType = "source"
	AppTypeProcessor AppType = "processor"
	AppTypeSink      AppType = "sink"
	AppTypeTask      AppType = "task"
	AppTypeApp       AppType = "app"
)

var appTypes = []AppType{AppTypeSource, AppTypeProcessor, AppTypeSink, AppTypeTask, AppTypeApp}

func ParseAppType(raw string) (AppType, error) {
	value := AppType(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range appTypes {
		if t == value {
			return t, nil
		}
	}
	return "", Invalid("unknown application type %q", raw)
}

// Streaming reports whether the type takes part in message-channel binding.
func (t AppType) Streaming() bool {
	switch t {
	case AppTypeSource, AppTypeProcessor, AppTypeSink:
		return true
	default:
		return false
	}
}

// AppRegistration binds a name and type to a versioned artifact.
type AppRegistration struct {
	Name        string
	Type        AppType
	Version     string
	URI         string
	MetadataURI string
	Default     bool
}

func (r AppRegistration) Validate() error {
	verr := &ValidationError{}
	if strings.TrimSpace(r.Name) == "" {
		verr.Add("name is required")
	}
	if _, err := ParseAppType(string(r.Type)); err != nil {
		verr.Add(fmt.Sprintf("type %q is not supported", r.Type))
	}
	if strings.TrimSpace(r.URI) == "" {
		verr.Add("uri is required")
	}
	return verr.OrNil()
}

// Key returns "type:name", the form used by validation reports.
func (r AppRegistration) Key() string {
	return string(r.Type) + ":" + r.Name
}

// Resource is an opaque artifact or metadata handle.
type Resource struct {
	URI string
}

func (r Resource) IsZero() bool { return strings.TrimSpace(r.URI) == "" }

func (r Resource) String() string { return r.URI }
