package controllers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/opskit/flowline/internal/engine"
	"github.com/opskit/flowline/internal/models"
)

// EventsController accepts entity-change events and hands them to the
// dispatcher.
type EventsController struct {
	AuthController
	Dispatcher *engine.Dispatcher
}

func NewEventsController(dispatcher *engine.Dispatcher, users engine.UserStore) *EventsController {
	return &EventsController{Dispatcher: dispatcher, AuthController: AuthController{Users: users}}
}

func (c *EventsController) handleDispatchEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req models.DispatchEventRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.TenantID == "" || req.EventType == "" {
		http.Error(w, "tenantId and eventType are required", http.StatusBadRequest)
		return
	}

	actor := req.ActorID
	if actor == "" {
		actor = actorFromContext(r.Context())
	}

	runs, err := c.Dispatcher.Dispatch(r.Context(), req.TenantID, req.EventType, req.Payload, actor)
	if err != nil && len(runs) == 0 {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		// some matched workflows did start; report the rest and return them
		slog.ErrorContext(r.Context(), "Event dispatch partially failed",
			"eventType", req.EventType, "tenantId", req.TenantID, "error", err)
	}

	resp := models.DispatchEventResponse{RunIDs: make([]int64, 0, len(runs))}
	for _, run := range runs {
		resp.RunIDs = append(resp.RunIDs, run.ID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}
