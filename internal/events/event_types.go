package events

import (
	"time"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	// EventTicketReceived fires after a ticket event is persisted; the SLA
	// service subscribes to run the on-demand response-SLA check.
	EventTicketReceived EventType = "ticket_received"

	// EventSLAAlertRaised fires only after the alert and the escalation bump
	// have committed. Notifier and broadcaster consume it independently.
	EventSLAAlertRaised EventType = "sla_alert_raised"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketReceivedPayload payload.
type TicketReceivedPayload struct {
	Priority     string              `json:"priority"`
	CustomerTier string              `json:"customer_tier"`
	Status       domain.TicketStatus `json:"status"`
}

// AlertRaisedPayload carries the persisted alert together with the ticket
// snapshot observed after the escalation bump.
type AlertRaisedPayload struct {
	Ticket domain.Ticket `json:"ticket"`
	Alert  domain.Alert  `json:"alert"`
}
