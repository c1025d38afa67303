package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind error
	}{
		{"not found", NotFound("stream %s", "ticktock"), ErrNotFound},
		{"unregistered", &UnregisteredAppError{Stage: "log", App: "log", Type: AppTypeSink}, ErrNotFound},
		{"duplicate", &DuplicateDefinitionError{Name: "seqTask-AAA"}, ErrDuplicate},
		{"missing", &MissingPropertyError{Key: "release.packageVersion"}, ErrMissingProperty},
		{"backend", Backend("deploy", errors.New("connection refused")), ErrBackend},
		{"limit", &LimitError{Message: "full"}, ErrLimitExceeded},
		{"validation", Invalid("bad"), ErrInvalid},
	}
	for _, tc := range cases {
		wrapped := fmt.Errorf("outer: %w", tc.err)
		if !errors.Is(wrapped, tc.kind) {
			t.Fatalf("%s: errors.Is(%v, %v)=false", tc.name, wrapped, tc.kind)
		}
		if !Classified(wrapped) {
			t.Fatalf("%s: Classified()=false", tc.name)
		}
	}
}

func TestBackend_KeepsClassifiedErrors(t *testing.T) {
	nf := NotFound("missing")
	if got := Backend("status", nf); got != error(nf) {
		t.Fatalf("Backend()=%v, want the original error", got)
	}
	if Backend("status", nil) != nil {
		t.Fatalf("Backend(nil) should be nil")
	}
	cause := errors.New("timeout")
	if err := Backend("status", cause); !errors.Is(err, cause) {
		t.Fatalf("Backend() should unwrap to its cause")
	}
}

func TestUnregisteredAppError_Message(t *testing.T) {
	err := &UnregisteredAppError{Stage: "foo", App: "foo", Type: AppTypeSource}
	want := `the 'source:foo' application could not be found (stage "foo")`
	if err.Error() != want {
		t.Fatalf("Error()=%q, want %q", err.Error(), want)
	}
}

func TestValidationError_OrNil(t *testing.T) {
	verr := &ValidationError{}
	verr.Add("  ")
	if verr.OrNil() != nil {
		t.Fatalf("OrNil() should be nil without issues")
	}
	verr.Add("name is required")
	if verr.OrNil() == nil {
		t.Fatalf("OrNil() should return the error")
	}
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	page := Paginate(items, PageRequest{Page: 1, Size: 2})
	if page.Total != 5 || len(page.Items) != 2 || page.Items[0] != 3 {
		t.Fatalf("Paginate()=%+v", page)
	}
	last := Paginate(items, PageRequest{Page: 2, Size: 2})
	if len(last.Items) != 1 || last.Items[0] != 5 {
		t.Fatalf("Paginate() last=%+v", last)
	}
	beyond := Paginate(items, PageRequest{Page: 9, Size: 2})
	if len(beyond.Items) != 0 || beyond.Total != 5 {
		t.Fatalf("Paginate() beyond=%+v", beyond)
	}
}

func TestDeploymentRequest_Count(t *testing.T) {
	req := DeploymentRequest{DeployerProperties: map[string]string{DeployerCount: "3"}}
	if req.Count() != 3 {
		t.Fatalf("Count()=%d, want 3", req.Count())
	}
	if (DeploymentRequest{}).Count() != 1 {
		t.Fatalf("Count() default should be 1")
	}
	bad := DeploymentRequest{DeployerProperties: map[string]string{DeployerCount: "zero"}}
	if bad.Count() != 1 {
		t.Fatalf("Count() invalid should fall back to 1")
	}
}
