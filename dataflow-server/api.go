package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/animus-labs/animus-dataflow/internal/audit"
	"github.com/animus-labs/animus-dataflow/internal/domain"
	"github.com/animus-labs/animus-dataflow/internal/platform/httpserver"
	"github.com/animus-labs/animus-dataflow/internal/registry"
	"github.com/animus-labs/animus-dataflow/internal/repo"
	"github.com/animus-labs/animus-dataflow/internal/service/schedules"
	"github.com/animus-labs/animus-dataflow/internal/service/streams"
	"github.com/animus-labs/animus-dataflow/internal/service/tasks"
)

const maxBodyBytes = 1 << 20

type dataflowAPI struct {
	logger    *slog.Logger
	registry  *registry.Service
	streams   *streams.Service
	tasks     *tasks.Service
	schedules *schedules.Service
	audit     *audit.Service
}

func newDataflowAPI(logger *slog.Logger, reg *registry.Service, streamSvc *streams.Service, taskSvc *tasks.Service, scheduleSvc *schedules.Service, auditSvc *audit.Service) *dataflowAPI {
	return &dataflowAPI{
		logger:    logger,
		registry:  reg,
		streams:   streamSvc,
		tasks:     taskSvc,
		schedules: scheduleSvc,
		audit:     auditSvc,
	}
}

func (api *dataflowAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /apps", api.handleListApps)
	mux.HandleFunc("POST /apps:import", api.handleImportApps)
	mux.HandleFunc("POST /apps/{type}/{name}", api.handleRegisterApp)
	mux.HandleFunc("DELETE /apps/{type}/{name}", api.handleUnregisterApp)

	mux.HandleFunc("POST /streams/definitions", api.handleCreateStream)
	mux.HandleFunc("GET /streams/definitions", api.handleListStreams)
	mux.HandleFunc("GET /streams/definitions/{name}", api.handleGetStream)
	mux.HandleFunc("DELETE /streams/definitions/{name}", api.handleDeleteStream)
	mux.HandleFunc("POST /streams/deployments/{name}", api.handleDeployStream)
	mux.HandleFunc("POST /streams/deployments/update/{name}", api.handleUpdateStream)
	mux.HandleFunc("DELETE /streams/deployments/{name}", api.handleUndeployStream)
	mux.HandleFunc("GET /streams/validation/{name}", api.handleValidateStream)
	mux.HandleFunc("GET /streams/status", api.handleStreamStatus)
	mux.HandleFunc("GET /runtime/apps", api.handleRuntimeApps)

	mux.HandleFunc("POST /tasks/definitions", api.handleCreateTask)
	mux.HandleFunc("GET /tasks/definitions", api.handleListTasks)
	mux.HandleFunc("GET /tasks/definitions/{name}", api.handleGetTask)
	mux.HandleFunc("DELETE /tasks/definitions/{name}", api.handleDeleteTask)
	mux.HandleFunc("POST /tasks/executions", api.handleLaunchTask)
	mux.HandleFunc("GET /tasks/validation/{name}", api.handleValidateTask)

	mux.HandleFunc("POST /tasks/schedules", api.handleCreateSchedule)
	mux.HandleFunc("GET /tasks/schedules", api.handleListSchedules)
	mux.HandleFunc("GET /tasks/schedules/{name}", api.handleGetSchedule)
	mux.HandleFunc("DELETE /tasks/schedules/{name}", api.handleDeleteSchedule)

	mux.HandleFunc("GET /audit-records", api.handleListAuditRecords)
}

type appRegistration struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Version     string `json:"version"`
	URI         string `json:"uri"`
	MetadataURI string `json:"metadata_uri,omitempty"`
	Default     bool   `json:"default"`
}

func appRegistrationFromDomain(reg domain.AppRegistration) appRegistration {
	return appRegistration{
		Name:        reg.Name,
		Type:        string(reg.Type),
		Version:     reg.Version,
		URI:         reg.URI,
		MetadataURI: reg.MetadataURI,
		Default:     reg.Default,
	}
}

type registerAppRequest struct {
	URI         string `json:"uri"`
	MetadataURI string `json:"metadata_uri,omitempty"`
	Version     string `json:"version,omitempty"`
	Force       bool   `json:"force,omitempty"`
}

func (api *dataflowAPI) handleRegisterApp(w http.ResponseWriter, r *http.Request) {
	typ, err := domain.ParseAppType(r.PathValue("type"))
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	var req registerAppRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeErrorCode(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	reg, err := api.registry.Register(r.Context(), domain.AppRegistration{
		Name:        strings.TrimSpace(r.PathValue("name")),
		Type:        typ,
		Version:     req.Version,
		URI:         req.URI,
		MetadataURI: req.MetadataURI,
	}, req.Force)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, appRegistrationFromDomain(reg))
}

type importAppsRequest struct {
	Properties string `json:"properties"`
	Overwrite  bool   `json:"overwrite,omitempty"`
}

type importAppsResponse struct {
	Registered []appRegistration `json:"registered"`
	Skipped    []string          `json:"skipped"`
}

func (api *dataflowAPI) handleImportApps(w http.ResponseWriter, r *http.Request) {
	var req importAppsRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeErrorCode(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	result, err := api.registry.Import(r.Context(), req.Properties, req.Overwrite)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	out := importAppsResponse{Registered: make([]appRegistration, 0, len(result.Registered)), Skipped: result.Skipped}
	for _, reg := range result.Registered {
		out.Registered = append(out.Registered, appRegistrationFromDomain(reg))
	}
	if out.Skipped == nil {
		out.Skipped = []string{}
	}
	httpserver.WriteJSON(w, http.StatusCreated, out)
}

func (api *dataflowAPI) handleListApps(w http.ResponseWriter, r *http.Request) {
	filter := repo.AppFilter{Name: strings.TrimSpace(r.URL.Query().Get("name"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		typ, err := domain.ParseAppType(raw)
		if err != nil {
			api.writeError(w, r, err)
			return
		}
		filter.Type = typ
	}
	regs, err := api.registry.List(r.Context(), filter)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	out := make([]appRegistration, 0, len(regs))
	for _, reg := range regs {
		out = append(out, appRegistrationFromDomain(reg))
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"apps": out})
}

func (api *dataflowAPI) handleUnregisterApp(w http.ResponseWriter, r *http.Request) {
	typ, err := domain.ParseAppType(r.PathValue("type"))
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	version := strings.TrimSpace(r.URL.Query().Get("version"))
	if err := api.registry.Unregister(r.Context(), r.PathValue("name"), typ, version); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type definitionRequest struct {
	Name        string `json:"name"`
	Definition  string `json:"definition"`
	Description string `json:"description,omitempty"`
	Deploy      bool   `json:"deploy,omitempty"`
}

type definition struct {
	Name        string `json:"name"`
	Definition  string `json:"definition"`
	Description string `json:"description,omitempty"`
}

type pageResponse[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}

func (api *dataflowAPI) handleCreateStream(w http.ResponseWriter, r *http.Request) {
	var req definitionRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeErrorCode(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	def, err := api.streams.Create(r.Context(), domain.StreamDefinition{
		Name:        req.Name,
		DSL:         req.Definition,
		Description: strings.TrimSpace(req.Description),
	}, req.Deploy)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/streams/definitions/"+def.Name)
	httpserver.WriteJSON(w, http.StatusCreated, definition{Name: def.Name, Definition: def.DSL, Description: def.Description})
}

func (api *dataflowAPI) handleListStreams(w http.ResponseWriter, r *http.Request) {
	filter := definitionFilter(r)
	page, err := api.streams.List(r.Context(), filter)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	items := make([]definition, 0, len(page.Items))
	for _, def := range page.Items {
		items = append(items, definition{Name: def.Name, Definition: def.DSL, Description: def.Description})
	}
	httpserver.WriteJSON(w, http.StatusOK, pageResponse[definition]{Items: items, Total: page.Total, Page: filter.Page.Page, Size: filter.Page.Size})
}

func (api *dataflowAPI) handleGetStream(w http.ResponseWriter, r *http.Request) {
	def, err := api.streams.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, definition{Name: def.Name, Definition: def.DSL, Description: def.Description})
}

func (api *dataflowAPI) handleDeleteStream(w http.ResponseWriter, r *http.Request) {
	if err := api.streams.Delete(r.Context(), r.PathValue("name")); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type propertiesRequest struct {
	Properties map[string]string `json:"properties,omitempty"`
}

func (api *dataflowAPI) handleDeployStream(w http.ResponseWriter, r *http.Request) {
	var req propertiesRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		api.writeErrorCode(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := api.streams.Deploy(r.Context(), r.PathValue("name"), req.Properties); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (api *dataflowAPI) handleUpdateStream(w http.ResponseWriter, r *http.Request) {
	var req propertiesRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeErrorCode(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := api.streams.Update(r.Context(), r.PathValue("name"), req.Properties); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (api *dataflowAPI) handleUndeployStream(w http.ResponseWriter, r *http.Request) {
	if err := api.streams.Undeploy(r.Context(), r.PathValue("name")); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type validationResponse struct {
	AppName     string            `json:"app_name"`
	DSL         string            `json:"dsl"`
	Description string            `json:"description,omitempty"`
	AppStatuses map[string]string `json:"app_statuses"`
}

func (api *dataflowAPI) handleValidateStream(w http.ResponseWriter, r *http.Request) {
	v, err := api.streams.Validate(r.Context(), r.PathValue("name"))
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, validationResponse{AppName: v.Name, DSL: v.DSL, Description: v.Description, AppStatuses: v.Apps})
}

type streamState struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func (api *dataflowAPI) handleStreamStatus(w http.ResponseWriter, r *http.Request) {
	var names []string
	for _, name := range strings.Split(r.URL.Query().Get("names"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		api.writeErrorCode(w, r, http.StatusBadRequest, "names_required", "query parameter names is required")
		return
	}
	states := api.streams.States(r.Context(), names)
	out := make([]streamState, 0, len(states))
	for _, st := range states {
		out = append(out, streamState{Name: st.Name, State: string(st.State)})
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"streams": out})
}

type instanceStatus struct {
	ID         string            `json:"id"`
	State      string            `json:"state"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

type appStatus struct {
	DeploymentID string           `json:"deployment_id"`
	Stream       string           `json:"stream"`
	Stage        string           `json:"stage"`
	State        string           `json:"state"`
	Instances    []instanceStatus `json:"instances"`
}

func (api *dataflowAPI) handleRuntimeApps(w http.ResponseWriter, r *http.Request) {
	req := pageRequest(r)
	page, err := api.streams.AppStatuses(r.Context(), req)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	items := make([]appStatus, 0, len(page.Items))
	for _, app := range page.Items {
		instances := make([]instanceStatus, 0, len(app.Instances))
		for _, in := range app.Instances {
			instances = append(instances, instanceStatus{ID: in.ID, State: string(in.State), Attributes: in.Attributes})
		}
		items = append(items, appStatus{
			DeploymentID: app.DeploymentID,
			Stream:       app.Stream,
			Stage:        app.Stage,
			State:        string(app.State),
			Instances:    instances,
		})
	}
	httpserver.WriteJSON(w, http.StatusOK, pageResponse[appStatus]{Items: items, Total: page.Total, Page: req.Page, Size: req.Size})
}

func (api *dataflowAPI) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req definitionRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeErrorCode(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	def, err := api.tasks.Save(r.Context(), domain.TaskDefinition{
		Name:        req.Name,
		DSL:         req.Definition,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/tasks/definitions/"+def.Name)
	httpserver.WriteJSON(w, http.StatusCreated, definition{Name: def.Name, Definition: def.DSL, Description: def.Description})
}

func (api *dataflowAPI) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter := definitionFilter(r)
	page, err := api.tasks.List(r.Context(), filter)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	items := make([]definition, 0, len(page.Items))
	for _, def := range page.Items {
		items = append(items, definition{Name: def.Name, Definition: def.DSL, Description: def.Description})
	}
	httpserver.WriteJSON(w, http.StatusOK, pageResponse[definition]{Items: items, Total: page.Total, Page: filter.Page.Page, Size: filter.Page.Size})
}

func (api *dataflowAPI) handleGetTask(w http.ResponseWriter, r *http.Request) {
	def, err := api.tasks.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, definition{Name: def.Name, Definition: def.DSL, Description: def.Description})
}

func (api *dataflowAPI) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := api.tasks.Delete(r.Context(), r.PathValue("name")); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type launchRequest struct {
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
	Arguments  []string          `json:"arguments,omitempty"`
}

func (api *dataflowAPI) handleLaunchTask(w http.ResponseWriter, r *http.Request) {
	var req launchRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeErrorCode(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		api.writeErrorCode(w, r, http.StatusBadRequest, "name_required", "name is required")
		return
	}
	id, err := api.tasks.Launch(r.Context(), strings.TrimSpace(req.Name), req.Properties, req.Arguments)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusCreated, map[string]string{"execution_id": id})
}

func (api *dataflowAPI) handleValidateTask(w http.ResponseWriter, r *http.Request) {
	v, err := api.tasks.Validate(r.Context(), r.PathValue("name"))
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, validationResponse{AppName: v.Name, DSL: v.DSL, Description: v.Description, AppStatuses: v.Apps})
}

type scheduleRequest struct {
	ScheduleName string            `json:"schedule_name"`
	TaskName     string            `json:"task_name"`
	Properties   map[string]string `json:"properties,omitempty"`
	Arguments    []string          `json:"arguments,omitempty"`
}

type scheduleInfo struct {
	ScheduleName       string            `json:"schedule_name"`
	TaskDefinitionName string            `json:"task_definition_name"`
	Properties         map[string]string `json:"properties"`
}

func scheduleInfoFromDomain(info domain.ScheduleInfo) scheduleInfo {
	props := info.Properties
	if props == nil {
		props = map[string]string{}
	}
	return scheduleInfo{ScheduleName: info.Name, TaskDefinitionName: info.TaskDefinitionName, Properties: props}
}

func (api *dataflowAPI) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeErrorCode(w, r, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if err := api.schedules.Schedule(r.Context(), req.ScheduleName, strings.TrimSpace(req.TaskName), req.Properties, req.Arguments); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/tasks/schedules/"+strings.TrimSpace(req.ScheduleName))
	w.WriteHeader(http.StatusCreated)
}

func (api *dataflowAPI) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	infos, err := api.schedules.ListForTask(r.Context(), strings.TrimSpace(r.URL.Query().Get("task")))
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	out := make([]scheduleInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, scheduleInfoFromDomain(info))
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"schedules": out})
}

func (api *dataflowAPI) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	info, err := api.schedules.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, scheduleInfoFromDomain(info))
}

func (api *dataflowAPI) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := api.schedules.Unschedule(r.Context(), r.PathValue("name")); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type auditRecord struct {
	RecordID        int64     `json:"record_id"`
	CreatedAt       time.Time `json:"created_at"`
	CreatedBy       string    `json:"created_by"`
	Operation       string    `json:"operation"`
	Action          string    `json:"action"`
	CorrelationID   string    `json:"correlation_id"`
	Data            string    `json:"data"`
	IntegritySHA256 string    `json:"integrity_sha256"`
}

func (api *dataflowAPI) handleListAuditRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AuditFilter{
		Operation: domain.AuditOperation(strings.ToUpper(strings.TrimSpace(q.Get("operation")))),
		Action:    domain.AuditAction(strings.ToUpper(strings.TrimSpace(q.Get("action")))),
		Limit:     clampInt(parseIntQuery(r, "limit", 100), 1, 1000),
	}
	records, err := api.audit.List(r.Context(), filter)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	out := make([]auditRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, auditRecord{
			RecordID:        rec.ID,
			CreatedAt:       rec.CreatedAt,
			CreatedBy:       rec.CreatedBy,
			Operation:       string(rec.Operation),
			Action:          string(rec.Action),
			CorrelationID:   rec.CorrelationID,
			Data:            rec.Data,
			IntegritySHA256: rec.IntegritySHA256,
		})
	}
	httpserver.WriteJSON(w, http.StatusOK, map[string]any{"audit_records": out})
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// decodeOptionalJSON accepts an empty body.
func decodeOptionalJSON(r *http.Request, dst any) error {
	err := decodeJSON(r, dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func definitionFilter(r *http.Request) repo.DefinitionFilter {
	return repo.DefinitionFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Page:   pageRequest(r),
	}
}

func pageRequest(r *http.Request) domain.PageRequest {
	return domain.PageRequest{
		Page: clampInt(parseIntQuery(r, "page", 0), 0, 1<<20),
		Size: clampInt(parseIntQuery(r, "size", 20), 1, 1000),
	}
}

func (api *dataflowAPI) writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	requestID, _ := httpserver.RequestIDFromContext(r.Context())
	if requestID == "" {
		requestID = r.Header.Get(httpserver.RequestIDHeader)
	}
	httpserver.WriteJSON(w, status, map[string]any{
		"error":      code,
		"message":    message,
		"request_id": requestID,
	})
}

func (api *dataflowAPI) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		api.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal error"
	} else if status == http.StatusBadGateway {
		api.logger.Error("backend failure", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	api.writeErrorCode(w, r, status, code, message)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrInvalidDSL):
		return http.StatusBadRequest, "invalid_dsl"
	case errors.Is(err, domain.ErrMissingProperty):
		return http.StatusBadRequest, "missing_property"
	case errors.Is(err, domain.ErrInvalid):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrLimitExceeded):
		return http.StatusTooManyRequests, "limit_exceeded"
	case errors.Is(err, domain.ErrBackend):
		return http.StatusBadGateway, "backend_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func clampInt(v int, min int, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
