package controllers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/opskit/flowline/internal/domain"
	"github.com/opskit/flowline/internal/engine"
	"github.com/opskit/flowline/internal/models"
)

// ApprovalsController lists pending approvals and accepts decisions.
type ApprovalsController struct {
	AuthController
	Approvals engine.ApprovalStore
	Gate      *engine.ApprovalGate
}

func NewApprovalsController(approvals engine.ApprovalStore, gate *engine.ApprovalGate, users engine.UserStore) *ApprovalsController {
	return &ApprovalsController{Approvals: approvals, Gate: gate, AuthController: AuthController{Users: users}}
}

func (c *ApprovalsController) handleGetPendingApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		http.Error(w, "tenantId is required", http.StatusBadRequest)
		return
	}
	approvals, err := c.Approvals.FindPendingByTenant(tenantID)
	if err != nil {
		slog.Error("Failed to list pending approvals", "tenantId", tenantID, "error", err)
		http.Error(w, "failed to list approvals", http.StatusInternalServerError)
		return
	}
	results := make([]models.ApprovalApiResponse, 0, len(*approvals))
	for i := range *approvals {
		results = append(results, mapApprovalToApi(&(*approvals)[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(results)
}

func (c *ApprovalsController) handleDecideApproval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req models.DecideApprovalRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.Decision != domain.DecisionApproved && req.Decision != domain.DecisionRejected {
		http.Error(w, "decision must be APPROVED or REJECTED", http.StatusBadRequest)
		return
	}

	run, err := c.Gate.Decide(r.Context(), id, req.Decision, actorFromContext(r.Context()))
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrApprovalNotFound):
		http.Error(w, "approval not found", http.StatusNotFound)
		return
	case errors.Is(err, engine.ErrAlreadyDecided):
		http.Error(w, "approval already decided", http.StatusConflict)
		return
	case errors.Is(err, engine.ErrRunAlreadyTerminal):
		http.Error(w, "run is already terminal", http.StatusConflict)
		return
	case errors.Is(err, engine.ErrInvalidApprovalState):
		http.Error(w, "run is not waiting on this approval", http.StatusConflict)
		return
	default:
		slog.Error("Failed to decide approval", "approvalId", id, "error", err)
		http.Error(w, "failed to decide approval", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(mapRunToApi(run, nil))
}

func mapApprovalToApi(a *domain.Approval) models.ApprovalApiResponse {
	return models.ApprovalApiResponse{
		ID:              a.ID,
		RunID:           a.RunID,
		StepExecutionID: a.StepExecutionID,
		ApproverGroup:   a.ApproverGroup,
		Requested:       a.Requested,
		TimeoutAt:       nullTimePtr(a.TimeoutAt.Time, a.TimeoutAt.Valid),
		Decided:         nullTimePtr(a.Decided.Time, a.Decided.Valid),
		DecidedBy:       a.DecidedBy.String,
		Decision:        a.Decision.String,
	}
}
