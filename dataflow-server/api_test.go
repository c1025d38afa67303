package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/animus-labs/animus-dataflow/internal/audit"
	"github.com/animus-labs/animus-dataflow/internal/deployer/local"
	"github.com/animus-labs/animus-dataflow/internal/deployment/compiler"
	"github.com/animus-labs/animus-dataflow/internal/deployment/merge"
	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/platform/httpserver"
	"github.com/animus-labs/animus-dataflow/internal/platform/objectstore"
	"github.com/animus-labs/animus-dataflow/internal/registry"
	"github.com/animus-labs/animus-dataflow/internal/release"
	"github.com/animus-labs/animus-dataflow/internal/service/schedules"
	"github.com/animus-labs/animus-dataflow/internal/service/streams"
	"github.com/animus-labs/animus-dataflow/internal/service/tasks"
)

func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	st := memoryStores()
	objects := objectstore.NewMemoryStore()
	auditService := audit.NewService(logger, st.audit, nil, audit.NewRedactor(nil))
	reg := registry.New(logger, st.apps, objects)
	comp := compiler.New(logger, reg, compiler.Config{Defaults: merge.DefaultDefaults()})
	launcher := local.NewTaskLauncher(logger, 0)
	scheduler := local.NewScheduler(launcher, logger)

	streamService := streams.New(logger, st.streams, reg, comp, local.NewStreamDeployer(logger),
		release.NewStore(objects, "packages"), auditService, streams.Config{})
	taskService := tasks.New(logger, st.tasks, reg, comp, launcher, auditService, tasks.Config{MaxConcurrentTasks: 1})
	scheduleService := schedules.New(logger, taskService, comp, scheduler, auditService, schedules.Config{})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz(serviceName))
	newDataflowAPI(logger, reg, streamService, taskService, scheduleService, auditService).register(mux)
	return httpserver.Wrap(logger, mux)
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status=%d, want %d, body=%s", rec.Code, want, rec.Body.String())
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
}

func registerDefaults(t *testing.T, h http.Handler) {
	t.Helper()
	expectStatus(t, do(t, h, http.MethodPost, "/apps/source/time", registerAppRequest{URI: "maven://org.acme:time-source:1.0.0"}), http.StatusCreated)
	rec := do(t, h, http.MethodPost, "/apps:import", importAppsRequest{
		Properties: "# defaults\nsink.log=maven://org.acme:log-sink:1.0.0\ntask.timestamp=docker:acme/timestamp:1.0.0\n",
	})
	expectStatus(t, rec, http.StatusCreated)
	var out importAppsResponse
	decodeBody(t, rec, &out)
	if len(out.Registered) != 2 {
		t.Fatalf("imported=%+v", out)
	}
}

func TestAppsAPI(t *testing.T) {
	h := newTestHandler(t)
	registerDefaults(t, h)

	rec := do(t, h, http.MethodPost, "/apps/source/time", registerAppRequest{URI: "maven://org.acme:time-source:1.0.0"})
	expectStatus(t, rec, http.StatusConflict)

	rec = do(t, h, http.MethodPost, "/apps/widget/time", registerAppRequest{URI: "maven://org.acme:time-source:1.0.0"})
	expectStatus(t, rec, http.StatusBadRequest)

	rec = do(t, h, http.MethodGet, "/apps?type=sink", nil)
	expectStatus(t, rec, http.StatusOK)
	var list struct {
		Apps []appRegistration `json:"apps"`
	}
	decodeBody(t, rec, &list)
	if len(list.Apps) != 1 || list.Apps[0].Name != "log" || !list.Apps[0].Default || list.Apps[0].Version != "1.0.0" {
		t.Fatalf("apps=%+v", list.Apps)
	}

	expectStatus(t, do(t, h, http.MethodDelete, "/apps/sink/log", nil), http.StatusNoContent)
	expectStatus(t, do(t, h, http.MethodDelete, "/apps/sink/log", nil), http.StatusNotFound)
}

func TestStreamsAPI(t *testing.T) {
	h := newTestHandler(t)
	registerDefaults(t, h)

	rec := do(t, h, http.MethodPost, "/streams/definitions", definitionRequest{Name: "ticktock", Definition: "time | log", Deploy: true})
	expectStatus(t, rec, http.StatusCreated)
	if loc := rec.Header().Get("Location"); loc != "/streams/definitions/ticktock" {
		t.Fatalf("Location=%q", loc)
	}

	rec = do(t, h, http.MethodPost, "/streams/definitions", definitionRequest{Name: "ticktock", Definition: "time | log"})
	expectStatus(t, rec, http.StatusConflict)

	rec = do(t, h, http.MethodPost, "/streams/definitions", definitionRequest{Name: "broken", Definition: "time log"})
	expectStatus(t, rec, http.StatusBadRequest)
	var apiErr map[string]string
	decodeBody(t, rec, &apiErr)
	if apiErr["error"] != "invalid_dsl" || apiErr["request_id"] == "" {
		t.Fatalf("error body=%+v", apiErr)
	}

	rec = do(t, h, http.MethodGet, "/streams/status?names=ticktock,ghost", nil)
	expectStatus(t, rec, http.StatusOK)
	var status struct {
		Streams []streamState `json:"streams"`
	}
	decodeBody(t, rec, &status)
	if len(status.Streams) != 2 || status.Streams[0].State != "deployed" || status.Streams[1].State != "unknown" {
		t.Fatalf("status=%+v", status.Streams)
	}

	rec = do(t, h, http.MethodGet, "/runtime/apps?size=1", nil)
	expectStatus(t, rec, http.StatusOK)
	var runtime pageResponse[appStatus]
	decodeBody(t, rec, &runtime)
	if runtime.Total != 2 || len(runtime.Items) != 1 || runtime.Items[0].DeploymentID != "ticktock.log-v1" {
		t.Fatalf("runtime=%+v", runtime)
	}

	rec = do(t, h, http.MethodPost, "/streams/deployments/ticktock", nil)
	expectStatus(t, rec, http.StatusConflict)
	rec = do(t, h, http.MethodPost, "/streams/deployments/update/ticktock", propertiesRequest{Properties: map[string]string{"app.log.level": "WARN"}})
	expectStatus(t, rec, http.StatusCreated)

	rec = do(t, h, http.MethodGet, "/streams/validation/ticktock", nil)
	expectStatus(t, rec, http.StatusOK)
	var v validationResponse
	decodeBody(t, rec, &v)
	if v.AppStatuses["source:time"] != "valid" || v.AppStatuses["sink:log"] != "valid" {
		t.Fatalf("validation=%+v", v)
	}

	expectStatus(t, do(t, h, http.MethodDelete, "/streams/deployments/ticktock", nil), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodDelete, "/streams/definitions/ticktock", nil), http.StatusNoContent)
	expectStatus(t, do(t, h, http.MethodGet, "/streams/definitions/ticktock", nil), http.StatusNotFound)

	rec = do(t, h, http.MethodGet, "/audit-records?operation=stream", nil)
	expectStatus(t, rec, http.StatusOK)
	var audits struct {
		Records []auditRecord `json:"audit_records"`
	}
	decodeBody(t, rec, &audits)
	if len(audits.Records) != 5 || audits.Records[0].Action != "DELETE" {
		t.Fatalf("audit records=%+v", audits.Records)
	}
}

func TestStreamsAPI_RejectsUnknownFields(t *testing.T) {
	h := newTestHandler(t)
	rec := do(t, h, http.MethodPost, "/streams/definitions", `{"name":"a","definition":"time | log","extra":1}`)
	expectStatus(t, rec, http.StatusBadRequest)
	var apiErr map[string]string
	decodeBody(t, rec, &apiErr)
	if apiErr["error"] != "invalid_json" {
		t.Fatalf("error body=%+v", apiErr)
	}
}

func TestTasksAPI(t *testing.T) {
	h := newTestHandler(t)
	registerDefaults(t, h)

	expectStatus(t, do(t, h, http.MethodPost, "/tasks/definitions", definitionRequest{Name: "ts", Definition: "timestamp"}), http.StatusCreated)
	expectStatus(t, do(t, h, http.MethodGet, "/tasks/definitions/ts", nil), http.StatusOK)

	rec := do(t, h, http.MethodPost, "/tasks/executions", launchRequest{Name: "ts"})
	expectStatus(t, rec, http.StatusCreated)
	var launched map[string]string
	decodeBody(t, rec, &launched)
	if launched["execution_id"] == "" {
		t.Fatalf("launch body=%+v", launched)
	}

	rec = do(t, h, http.MethodPost, "/tasks/executions", launchRequest{Name: "ts"})
	expectStatus(t, rec, http.StatusTooManyRequests)

	rec = do(t, h, http.MethodGet, "/tasks/validation/ts", nil)
	expectStatus(t, rec, http.StatusOK)
	var v validationResponse
	decodeBody(t, rec, &v)
	if v.AppStatuses["task:timestamp"] != "valid" {
		t.Fatalf("validation=%+v", v)
	}

	rec = do(t, h, http.MethodGet, "/tasks/definitions?search=t", nil)
	expectStatus(t, rec, http.StatusOK)
	var page pageResponse[definition]
	decodeBody(t, rec, &page)
	if page.Total != 1 || page.Items[0].Definition != "timestamp" {
		t.Fatalf("page=%+v", page)
	}

	expectStatus(t, do(t, h, http.MethodDelete, "/tasks/definitions/ts", nil), http.StatusNoContent)
}

func TestSchedulesAPI(t *testing.T) {
	h := newTestHandler(t)
	registerDefaults(t, h)
	expectStatus(t, do(t, h, http.MethodPost, "/tasks/definitions", definitionRequest{Name: "ts", Definition: "timestamp"}), http.StatusCreated)

	rec := do(t, h, http.MethodPost, "/tasks/schedules", scheduleRequest{ScheduleName: "daily", TaskName: "ts"})
	expectStatus(t, rec, http.StatusBadRequest)
	var apiErr map[string]string
	decodeBody(t, rec, &apiErr)
	if apiErr["error"] != "missing_property" {
		t.Fatalf("error body=%+v", apiErr)
	}

	rec = do(t, h, http.MethodPost, "/tasks/schedules", scheduleRequest{
		ScheduleName: "daily",
		TaskName:     "ts",
		Properties:   map[string]string{"scheduler.cron.expression": "@daily"},
	})
	expectStatus(t, rec, http.StatusCreated)

	rec = do(t, h, http.MethodGet, "/tasks/schedules?task=ts", nil)
	expectStatus(t, rec, http.StatusOK)
	var list struct {
		Schedules []scheduleInfo `json:"schedules"`
	}
	decodeBody(t, rec, &list)
	if len(list.Schedules) != 1 || list.Schedules[0].Properties[domain.SchedulerCronExpression] != "@daily" {
		t.Fatalf("schedules=%+v", list.Schedules)
	}

	expectStatus(t, do(t, h, http.MethodGet, "/tasks/schedules/daily", nil), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodDelete, "/tasks/schedules/daily", nil), http.StatusNoContent)
	expectStatus(t, do(t, h, http.MethodGet, "/tasks/schedules/daily", nil), http.StatusNotFound)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
		code string
	}{
		{domain.NotFound("missing"), http.StatusNotFound, "not_found"},
		{&domain.UnregisteredAppError{App: "foo", Type: domain.AppTypeSink}, http.StatusNotFound, "not_found"},
		{&domain.DuplicateDefinitionError{Name: "a"}, http.StatusConflict, "conflict"},
		{&domain.MissingPropertyError{Key: "k"}, http.StatusBadRequest, "missing_property"},
		{domain.Invalid("bad"), http.StatusBadRequest, "invalid_request"},
		{fmt.Errorf("wrap: %w", domain.ErrInvalidDSL), http.StatusBadRequest, "invalid_dsl"},
		{&domain.LimitError{Message: "full"}, http.StatusTooManyRequests, "limit_exceeded"},
		{domain.Backend("deploy", errors.New("boom")), http.StatusBadGateway, "backend_error"},
		{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range tests {
		status, code := errorStatus(tc.err)
		if status != tc.want || code != tc.code {
			t.Fatalf("errorStatus(%v)=%d %s, want %d %s", tc.err, status, code, tc.want, tc.code)
		}
	}
}
