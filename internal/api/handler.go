// Package api provides the HTTP API handlers and routing for the jobs
// service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"

	"jobforge/internal/apperrors"
	"jobforge/internal/health"
	"jobforge/internal/manager"
)

// maxRequestBodySize limits request bodies to 1MB to prevent memory
// exhaustion.
const maxRequestBodySize = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// CreateJobRequest is the body of POST /v1/jobs/{definitionName}.
type CreateJobRequest struct {
	Args map[string]string `json:"args" validate:"omitempty,dive,keys,max=253,endkeys,max=65536"`
}

// JobResponse summarizes one job.
type JobResponse struct {
	Name           string `json:"name"`
	Definition     string `json:"definition,omitempty"`
	Status         string `json:"status"`
	Finished       bool   `json:"finished"`
	StartTime      string `json:"startTime,omitempty"`
	CompletionTime string `json:"completionTime,omitempty"`
}

// ListJobsResponse is the body of GET /v1/jobs.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ListDefinitionsResponse is the body of GET /v1/definitions.
type ListDefinitionsResponse struct {
	Definitions []string `json:"definitions"`
}

// JobLogsResponse is the body of GET /v1/jobs/{name}/logs, keyed by pod then
// container.
type JobLogsResponse struct {
	Logs map[string]map[string][]string `json:"logs"`
}

// Handler contains the HTTP handlers for the jobs API.
type Handler struct {
	manager *manager.Manager
	health  *health.Checker
}

func NewHandler(m *manager.Manager, healthChecker *health.Checker) *Handler {
	return &Handler{manager: m, health: healthChecker}
}

// CreateJob handles POST /v1/jobs/{definitionName}.
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	definitionName := r.PathValue("definitionName")
	if err := validate.Var(definitionName, "required,max=38,hostname_rfc1123"); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid definition name")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	name, err := h.manager.CreateJob(r.Context(), definitionName, req.Args)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}

// ListJobs handles GET /v1/jobs. An optional definition query parameter
// narrows the list to one definition.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	definitionName := r.URL.Query().Get("definition")

	jobs, err := h.manager.ListJobs(r.Context(), definitionName)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	resp := ListJobsResponse{Jobs: make([]JobResponse, 0, len(jobs))}
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, summarize(job))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// ListDefinitions handles GET /v1/definitions.
func (h *Handler) ListDefinitions(w http.ResponseWriter, r *http.Request) {
	names, err := h.manager.Register().Definitions(r.Context())
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}

	h.writeJSON(w, http.StatusOK, ListDefinitionsResponse{Definitions: names})
}

// GetJob handles GET /v1/jobs/{name}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	job, err := h.manager.ReadJob(r.Context(), name)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summarize(job))
}

// GetJobLogs handles GET /v1/jobs/{name}/logs.
func (h *Handler) GetJobLogs(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	logs, err := h.manager.JobLogs(r.Context(), name)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.writeJSON(w, http.StatusOK, JobLogsResponse{Logs: logs})
}

// DeleteJob handles DELETE /v1/jobs/{name}.
func (h *Handler) DeleteJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if err := h.manager.DeleteJob(r.Context(), name); err != nil {
		h.handleError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Livez handles GET /livez. Returns 200 while the process is alive; it does
// not check dependencies.
func (h *Handler) Livez(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Live(); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz. Returns 503 while the cluster API is
// unreachable or shutdown has begun.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.health.Ready(r.Context()); err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unready", "error": err.Error()})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func summarize(job *batchv1.Job) JobResponse {
	resp := JobResponse{
		Name:       job.Name,
		Definition: job.Labels[manager.DefinitionLabel],
		Status:     jobStatus(job),
		Finished:   manager.JobIsFinished(job),
	}
	if job.Status.StartTime != nil {
		resp.StartTime = job.Status.StartTime.UTC().Format(time.RFC3339)
	}
	if job.Status.CompletionTime != nil {
		resp.CompletionTime = job.Status.CompletionTime.UTC().Format(time.RFC3339)
	}
	return resp
}

func jobStatus(job *batchv1.Job) string {
	for _, cond := range job.Status.Conditions {
		if cond.Status != corev1.ConditionTrue {
			continue
		}
		switch cond.Type {
		case batchv1.JobComplete:
			return "Succeeded"
		case batchv1.JobFailed:
			return "Failed"
		}
	}
	if job.Status.Active > 0 {
		return "Running"
	}
	return "Pending"
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// handleError maps domain errors to HTTP status codes.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		slog.Error("Internal error", "error", err, "path", r.URL.Path)
	} else {
		slog.Warn("Client error", "error", err, "path", r.URL.Path, "status", status)
	}
	h.writeError(w, status, err.Error())
}
