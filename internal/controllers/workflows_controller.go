package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/opskit/flowline/internal/domain"
	"github.com/opskit/flowline/internal/engine"
	"github.com/opskit/flowline/internal/models"
)

// WorkflowsController holds dependencies for workflow definition endpoints.
// Destructive operations (delete, step replacement) go through the integrity
// store so dependent run history is always purged in the same transaction.
type WorkflowsController struct {
	AuthController
	Workflows engine.WorkflowStore
	Steps     engine.StepStore
	Integrity engine.IntegrityStore
}

func NewWorkflowsController(workflows engine.WorkflowStore, steps engine.StepStore,
	integrity engine.IntegrityStore, users engine.UserStore) *WorkflowsController {
	return &WorkflowsController{
		Workflows:      workflows,
		Steps:          steps,
		Integrity:      integrity,
		AuthController: AuthController{Users: users},
	}
}

func (c *WorkflowsController) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	wf, steps, ok := decodeSaveWorkflow(w, r)
	if !ok {
		return
	}

	id, err := c.Workflows.Save(wf)
	if err != nil {
		slog.Error("Failed to save workflow", "error", err)
		http.Error(w, "failed to create workflow", http.StatusInternalServerError)
		return
	}
	for i := range steps {
		steps[i].WorkflowID = id
		if _, err := c.Steps.Save(&steps[i]); err != nil {
			slog.Error("Failed to save workflow step", "workflowId", id, "error", err)
			http.Error(w, "failed to create workflow", http.StatusInternalServerError)
			return
		}
	}

	slog.InfoContext(r.Context(), "Workflow created", "workflowId", id,
		"tenantId", wf.TenantID, "createdBy", actorFromContext(r.Context()))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.SaveWorkflowResponse{ID: id})
}

func (c *WorkflowsController) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	existing, err := c.Workflows.FindByID(id)
	if err != nil || existing == nil {
		http.Error(w, "workflow not found", http.StatusNotFound)
		return
	}

	wf, steps, ok := decodeSaveWorkflow(w, r)
	if !ok {
		return
	}

	wf.ID = id
	wf.Created = existing.Created
	if err := c.Workflows.Update(wf); err != nil {
		slog.Error("Failed to update workflow", "workflowId", id, "error", err)
		http.Error(w, "failed to update workflow", http.StatusInternalServerError)
		return
	}
	// replacing the step list invalidates dependent run history; the
	// integrity store purges it in the same transaction
	if err := c.Integrity.ReplaceSteps(id, steps); err != nil {
		slog.Error("Failed to replace workflow steps", "workflowId", id, "error", err)
		http.Error(w, "failed to update workflow", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Workflow updated", "workflowId", id,
		"updatedBy", actorFromContext(r.Context()))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.SaveWorkflowResponse{ID: id})
}

func (c *WorkflowsController) handleArchiveWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if wf, err := c.Workflows.FindByID(id); err != nil || wf == nil {
		http.Error(w, "workflow not found", http.StatusNotFound)
		return
	}
	if err := c.Workflows.UpdateStatus(id, domain.WorkflowStatusArchived); err != nil {
		slog.Error("Failed to archive workflow", "workflowId", id, "error", err)
		http.Error(w, "failed to archive workflow", http.StatusInternalServerError)
		return
	}
	slog.InfoContext(r.Context(), "Workflow archived", "workflowId", id,
		"archivedBy", actorFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (c *WorkflowsController) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if wf, err := c.Workflows.FindByID(id); err != nil || wf == nil {
		http.Error(w, "workflow not found", http.StatusNotFound)
		return
	}
	if err := c.Integrity.DeleteWorkflow(id); err != nil {
		slog.Error("Failed to delete workflow", "workflowId", id, "error", err)
		http.Error(w, "failed to delete workflow", http.StatusInternalServerError)
		return
	}
	slog.InfoContext(r.Context(), "Workflow deleted", "workflowId", id,
		"deletedBy", actorFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (c *WorkflowsController) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	wf, err := c.Workflows.FindByID(id)
	if err != nil || wf == nil {
		http.Error(w, "workflow not found", http.StatusNotFound)
		return
	}
	steps, err := c.Steps.FindByWorkflowID(id)
	if err != nil {
		slog.Error("Failed to load workflow steps", "workflowId", id, "error", err)
		http.Error(w, "failed to load workflow", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(mapWorkflowToApi(wf, *steps))
}

func (c *WorkflowsController) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		http.Error(w, "tenantId is required", http.StatusBadRequest)
		return
	}
	workflows, err := c.Workflows.FindByTenant(tenantID)
	if err != nil {
		slog.Error("Failed to list workflows", "tenantId", tenantID, "error", err)
		http.Error(w, "failed to list workflows", http.StatusInternalServerError)
		return
	}
	results := make([]models.WorkflowApiResponse, 0, len(*workflows))
	for i := range *workflows {
		results = append(results, mapWorkflowToApi(&(*workflows)[i], nil))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(results)
}

// decodeSaveWorkflow parses and validates the shared create/update body.
// On failure it has already written the response.
func decodeSaveWorkflow(w http.ResponseWriter, r *http.Request) (*domain.Workflow, []domain.Step, bool) {
	var req models.SaveWorkflowRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return nil, nil, false
	}

	status := req.Status
	if status == "" {
		status = domain.WorkflowStatusDraft
	}
	switch status {
	case domain.WorkflowStatusDraft, domain.WorkflowStatusActive, domain.WorkflowStatusArchived:
	default:
		http.Error(w, "invalid workflow status", http.StatusBadRequest)
		return nil, nil, false
	}

	wf := &domain.Workflow{
		TenantID:      req.TenantID,
		Name:          req.Name,
		TriggerType:   req.TriggerType,
		TriggerConfig: req.TriggerConfig,
		Status:        status,
	}
	steps := make([]domain.Step, 0, len(req.Steps))
	for _, s := range req.Steps {
		steps = append(steps, domain.Step{
			StepOrder: s.StepOrder,
			StepType:  s.StepType,
			Config:    s.Config,
		})
	}

	if err := engine.ValidateWorkflow(wf, steps); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, nil, false
	}
	return wf, steps, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := r.PathValue("id")
	if idStr == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		http.Error(w, "id is an integer", http.StatusBadRequest)
		return 0, false
	}
	return int64(id), true
}

func mapWorkflowToApi(wf *domain.Workflow, steps []domain.Step) models.WorkflowApiResponse {
	resp := models.WorkflowApiResponse{
		ID:            wf.ID,
		TenantID:      wf.TenantID,
		Name:          wf.Name,
		TriggerType:   wf.TriggerType,
		TriggerConfig: wf.TriggerConfig,
		Status:        wf.Status,
		Created:       wf.Created,
		Modified:      wf.Modified,
	}
	for _, s := range steps {
		resp.Steps = append(resp.Steps, models.StepApiResponse{
			ID:        s.ID,
			StepOrder: s.StepOrder,
			StepType:  s.StepType,
			Config:    s.Config,
		})
	}
	return resp
}
