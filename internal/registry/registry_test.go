package registry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/platform/objectstore"
	"github.com/animus-labs/animus-dataflow/internal/repo"
	"github.com/animus-labs/animus-dataflow/internal/repo/memory"
)

func newTestService(objects objectstore.Store) *Service {
	return New(slog.New(slog.NewJSONHandler(io.Discard, nil)), memory.NewAppRegistrations(), objects)
}

func TestRegister_FirstVersionBecomesDefault(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil)

	first, err := svc.Register(ctx, domain.AppRegistration{Name: "log", Type: domain.AppTypeSink, URI: "maven://org.example:log-sink:1.0.0"}, false)
	if err != nil {
		t.Fatalf("Register() err=%v", err)
	}
	if !first.Default || first.Version != "1.0.0" {
		t.Fatalf("first=%+v", first)
	}
	second, err := svc.Register(ctx, domain.AppRegistration{Name: "log", Type: domain.AppTypeSink, URI: "maven://org.example:log-sink:2.0.0"}, false)
	if err != nil {
		t.Fatalf("Register() err=%v", err)
	}
	if second.Default {
		t.Fatalf("second registration should not be default")
	}

	found, err := svc.Find(ctx, "log", domain.AppTypeSink)
	if err != nil || found.Version != "1.0.0" {
		t.Fatalf("Find()=%+v, %v", found, err)
	}
	if err := svc.SetDefault(ctx, "log", domain.AppTypeSink, "2.0.0"); err != nil {
		t.Fatalf("SetDefault() err=%v", err)
	}
	found, _ = svc.Find(ctx, "log", domain.AppTypeSink)
	if found.Version != "2.0.0" {
		t.Fatalf("Find() after SetDefault=%+v", found)
	}
}

func TestRegister_DuplicateRequiresForce(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil)
	reg := domain.AppRegistration{Name: "time", Type: domain.AppTypeSource, URI: "docker:apps/time:1.0"}
	if _, err := svc.Register(ctx, reg, false); err != nil {
		t.Fatalf("Register() err=%v", err)
	}
	reg.MetadataURI = "file:/tmp/time.yml"
	if _, err := svc.Register(ctx, reg, false); !errors.Is(err, domain.ErrDuplicate) {
		t.Fatalf("Register() err=%v, want ErrDuplicate", err)
	}
	got, err := svc.Register(ctx, reg, true)
	if err != nil {
		t.Fatalf("Register(force) err=%v", err)
	}
	if !got.Default || got.MetadataURI != "file:/tmp/time.yml" {
		t.Fatalf("forced registration=%+v", got)
	}
}

func TestRegister_Validation(t *testing.T) {
	svc := newTestService(nil)
	cases := []domain.AppRegistration{
		{Name: "", Type: domain.AppTypeSink, URI: "maven://a:b:1"},
		{Name: "x", Type: "widget", URI: "maven://a:b:1"},
		{Name: "x", Type: domain.AppTypeSink, URI: "ftp://host/x-1.0.jar"},
		{Name: "x", Type: domain.AppTypeSink, URI: "docker:apps/x"},
	}
	for _, reg := range cases {
		if _, err := svc.Register(context.Background(), reg, false); !errors.Is(err, domain.ErrInvalid) {
			t.Fatalf("Register(%+v) err=%v, want ErrInvalid", reg, err)
		}
	}
}

func TestFind_NotFoundMessage(t *testing.T) {
	svc := newTestService(nil)
	_, err := svc.Find(context.Background(), "foo", domain.AppTypeSource)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Find() err=%v", err)
	}
	if err.Error() != "The 'source:foo' application could not be found." {
		t.Fatalf("message=%q", err.Error())
	}
	ok, err := svc.Registered(context.Background(), "foo", domain.AppTypeSource)
	if ok || err != nil {
		t.Fatalf("Registered()=%v, %v", ok, err)
	}
}

func TestUnregister(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil)
	_, _ = svc.Register(ctx, domain.AppRegistration{Name: "log", Type: domain.AppTypeSink, URI: "maven://a:log:1.0.0"}, false)
	if err := svc.Unregister(ctx, "log", domain.AppTypeSink, ""); err != nil {
		t.Fatalf("Unregister() err=%v", err)
	}
	if err := svc.Unregister(ctx, "log", domain.AppTypeSink, "1.0.0"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Unregister() err=%v, want ErrNotFound", err)
	}
	regs, _ := svc.List(ctx, repo.AppFilter{})
	if len(regs) != 0 {
		t.Fatalf("List()=%+v", regs)
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil)
	text := `# stream apps
source.time=maven://org.example:time-source:1.0.0
source.time.metadata=maven://org.example:time-source:jar:metadata:1.0.0

sink.log=docker:apps/log-sink:2.1.0
task.timestamp=maven://org.example:timestamp-task:1.0.0
`
	res, err := svc.Import(ctx, text, false)
	if err != nil {
		t.Fatalf("Import() err=%v", err)
	}
	if len(res.Registered) != 3 {
		t.Fatalf("registered=%+v", res.Registered)
	}
	if res.Registered[0].MetadataURI != "maven://org.example:time-source:jar:metadata:1.0.0" {
		t.Fatalf("metadata not attached: %+v", res.Registered[0])
	}

	res, err = svc.Import(ctx, "sink.log=docker:apps/log-sink:2.1.0\n", false)
	if err != nil || len(res.Skipped) != 1 || res.Skipped[0] != "sink.log" {
		t.Fatalf("Import() again=%+v, %v", res, err)
	}
	if _, err := svc.Import(ctx, "widget.x=maven://a:b:1", false); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("Import(bad type) err=%v", err)
	}
	if _, err := svc.Import(ctx, "source.y.metadata=maven://a:b:1", false); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("Import(metadata only) err=%v", err)
	}
}

func TestLoadMetadata(t *testing.T) {
	ctx := context.Background()
	doc := []byte("properties:\n  - id: log.level\n    type: java.lang.String\n  - id: log.expression\n")

	dir := t.TempDir()
	path := filepath.Join(dir, "log.yml")
	if err := os.WriteFile(path, doc, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	objects := objectstore.NewMemoryStore()
	_ = objects.Put(ctx, "app-metadata", "log/1.0.0.yml", doc, "application/yaml")
	svc := newTestService(objects)

	for _, uri := range []string{"file:" + path, path, "s3://app-metadata/log/1.0.0.yml"} {
		props, err := svc.LoadMetadata(ctx, domain.Resource{URI: uri})
		if err != nil {
			t.Fatalf("LoadMetadata(%q) err=%v", uri, err)
		}
		if len(props) != 2 || props[0].ID != "log.level" {
			t.Fatalf("LoadMetadata(%q)=%+v", uri, props)
		}
	}
	if _, err := svc.LoadMetadata(ctx, domain.Resource{URI: "maven://a:b:jar:metadata:1"}); err == nil {
		t.Fatalf("expected error for maven metadata")
	}
	if _, err := newTestService(nil).LoadMetadata(ctx, domain.Resource{URI: "s3://b/k"}); err == nil {
		t.Fatalf("expected error without object store")
	}
}
