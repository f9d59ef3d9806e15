package engine

// Trigger types the engine recognizes, one per business event that the
// entity-mutation modules emit. Dispatching an event type outside this
// catalog is a silent no-op; saving a workflow against one is a validation
// error.
const (
	TriggerClientStatusChanged     = "client_status_changed"
	TriggerContactCreated          = "contact_created"
	TriggerFormSubmitted           = "form_submitted"
	TriggerBookingCancelled        = "booking_cancelled"
	TriggerBookingRescheduled      = "booking_rescheduled"
	TriggerSurveyResponseSubmitted = "survey_response_submitted"
	TriggerInvoicePaid             = "invoice_paid"
	TriggerProposalAccepted        = "proposal_accepted"
)

// triggerCatalog maps each trigger type to the payload keys its emitters are
// contracted to supply.
var triggerCatalog = map[string][]string{
	TriggerClientStatusChanged:     {"entity_id", "from_status", "to_status"},
	TriggerContactCreated:          {"entity_id"},
	TriggerFormSubmitted:           {"entity_id", "form_id"},
	TriggerBookingCancelled:        {"entity_id", "booking_id"},
	TriggerBookingRescheduled:      {"entity_id", "booking_id", "new_start"},
	TriggerSurveyResponseSubmitted: {"entity_id", "survey_id"},
	TriggerInvoicePaid:             {"entity_id", "invoice_id", "amount"},
	TriggerProposalAccepted:        {"entity_id", "proposal_id"},
}

// KnownTrigger reports whether the event type is part of the catalog.
func KnownTrigger(eventType string) bool {
	_, ok := triggerCatalog[eventType]
	return ok
}

// RequiredPayloadKeys returns the payload keys an emitter must supply for the
// event type, nil for unknown types.
func RequiredPayloadKeys(eventType string) []string {
	return triggerCatalog[eventType]
}
