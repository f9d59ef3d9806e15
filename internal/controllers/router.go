package controllers

import "net/http"

// RegisterRoutes wires the HTTP routes for this controller.
func (c *EventsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/events", c.RequireAuth(c.handleDispatchEvent))
}

func (c *WorkflowsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/workflows", c.RequireAuth(c.handleCreateWorkflow))
	mux.HandleFunc("GET /api/workflows", c.RequireAuth(c.handleListWorkflows))
	mux.HandleFunc("GET /api/workflows/{id}", c.RequireAuth(c.handleGetWorkflow))
	mux.HandleFunc("PUT /api/workflows/{id}", c.RequireAuth(c.handleUpdateWorkflow))
	mux.HandleFunc("POST /api/workflows/{id}/archive", c.RequireAuth(c.handleArchiveWorkflow))
	mux.HandleFunc("DELETE /api/workflows/{id}", c.RequireAuth(c.handleDeleteWorkflow))
}

func (c *RunsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/runs", c.RequireAuth(c.handleSearchRuns))
	mux.HandleFunc("GET /api/runs/{id}", c.RequireAuth(c.handleGetRun))
	mux.HandleFunc("POST /api/runs/{id}/cancel", c.RequireAuth(c.handleCancelRun))
}

func (c *ApprovalsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/approvals/pending", c.RequireAuth(c.handleGetPendingApprovals))
	mux.HandleFunc("POST /api/approvals/{id}/decision", c.RequireAuth(c.handleDecideApproval))
}
