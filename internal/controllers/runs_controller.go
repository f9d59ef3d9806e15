package controllers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/opskit/flowline/internal/domain"
	"github.com/opskit/flowline/internal/engine"
	"github.com/opskit/flowline/internal/models"
)

// RunsController serves the reporting projection over runs and their step
// executions, and the operator cancel action.
type RunsController struct {
	AuthController
	Runs            engine.RunStore
	Execs           engine.StepExecutionStore
	Coordinator     *engine.Coordinator
	DefaultPageSize int
}

func NewRunsController(runs engine.RunStore, execs engine.StepExecutionStore,
	coordinator *engine.Coordinator, users engine.UserStore, defaultPageSize int) *RunsController {
	if defaultPageSize <= 0 {
		defaultPageSize = 50
	}
	return &RunsController{
		Runs:            runs,
		Execs:           execs,
		Coordinator:     coordinator,
		DefaultPageSize: defaultPageSize,
		AuthController:  AuthController{Users: users},
	}
}

func (c *RunsController) handleSearchRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := r.URL.Query()
	req := models.SearchRunsRequest{
		TenantID: q.Get("tenantId"),
		Status:   q.Get("status"),
		Limit:    c.DefaultPageSize,
	}
	if req.TenantID == "" {
		http.Error(w, "tenantId is required", http.StatusBadRequest)
		return
	}
	if v := q.Get("workflowId"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "workflowId is an integer", http.StatusBadRequest)
			return
		}
		req.WorkflowID = int64(id)
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			req.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			req.Offset = n
		}
	}

	runs, err := c.Runs.SearchRuns(req)
	if err != nil {
		slog.Error("Failed to search runs", "tenantId", req.TenantID, "error", err)
		http.Error(w, "failed to search runs", http.StatusInternalServerError)
		return
	}
	results := make([]models.RunApiResponse, 0, len(*runs))
	for i := range *runs {
		results = append(results, mapRunToApi(&(*runs)[i], nil))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(results)
}

func (c *RunsController) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	run, err := c.Runs.FindByID(id)
	if err != nil || run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	execs, err := c.Execs.FindAllByRunID(id)
	if err != nil {
		slog.Error("Failed to load step executions", "runId", id, "error", err)
		http.Error(w, "failed to load run", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(mapRunToApi(run, *execs))
}

func (c *RunsController) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	_, err := c.Coordinator.Cancel(r.Context(), id, actorFromContext(r.Context()))
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrRunNotFound):
		http.Error(w, "run not found", http.StatusNotFound)
		return
	case errors.Is(err, engine.ErrRunAlreadyTerminal):
		http.Error(w, "run is already terminal", http.StatusConflict)
		return
	default:
		slog.Error("Failed to cancel run", "runId", id, "error", err)
		http.Error(w, "failed to cancel run", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.CancelRunResponse{OK: true})
}

func mapRunToApi(run *domain.Run, execs []domain.StepExecution) models.RunApiResponse {
	resp := models.RunApiResponse{
		ID:          run.ID,
		WorkflowID:  run.WorkflowID,
		TenantID:    run.TenantID,
		EventType:   run.EventType,
		Status:      run.Status,
		TriggeredBy: run.TriggeredBy,
		Started:     run.Started,
		Completed:   nullTimePtr(run.Completed.Time, run.Completed.Valid),
	}
	for i := range execs {
		se := execs[i]
		resp.StepExecutions = append(resp.StepExecutions, models.StepExecutionApiResponse{
			ID:        se.ID,
			StepID:    se.StepID,
			StepOrder: se.StepOrder,
			Status:    se.Status,
			Started:   se.Started,
			Completed: nullTimePtr(se.Completed.Time, se.Completed.Valid),
			Output:    se.Output.String,
			Error:     se.Error.String,
		})
	}
	return resp
}

func nullTimePtr(t time.Time, valid bool) *time.Time {
	if !valid {
		return nil
	}
	return &t
}
