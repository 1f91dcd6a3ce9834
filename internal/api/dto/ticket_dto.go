package dto

import (
	"time"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
)

// TicketEvent is one ingestion payload entry.
type TicketEvent struct {
	ID           string              `json:"id"`
	Priority     string              `json:"priority"`
	CustomerTier string              `json:"customer_tier"`
	Status       domain.TicketStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// TicketSummary response.
type TicketSummary struct {
	ID              string              `json:"id"`
	Priority        string              `json:"priority"`
	CustomerTier    string              `json:"customer_tier"`
	Status          domain.TicketStatus `json:"status"`
	EscalationLevel int                 `json:"escalation_level"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

// AlertResponse represents one alert history entry.
type AlertResponse struct {
	ID        int64               `json:"id"`
	TicketID  string              `json:"ticket_id"`
	SLAType   domain.SLAType      `json:"sla_type"`
	State     domain.SLAState     `json:"state"`
	Details   domain.AlertDetails `json:"details"`
	CreatedAt time.Time           `json:"created_at"`
}

// TicketDetailResponse provides the ticket with its alert history.
type TicketDetailResponse struct {
	TicketSummary
	Alerts []AlertResponse `json:"alerts"`
}

// FromTicket maps a domain ticket to its summary representation.
func FromTicket(ticket domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:              ticket.ID,
		Priority:        ticket.Priority,
		CustomerTier:    ticket.CustomerTier,
		Status:          ticket.Status,
		EscalationLevel: ticket.EscalationLevel,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
}

// FromAlerts maps domain alerts to responses.
func FromAlerts(alerts []domain.Alert) []AlertResponse {
	result := make([]AlertResponse, 0, len(alerts))
	for _, alert := range alerts {
		result = append(result, AlertResponse{
			ID:        alert.ID,
			TicketID:  alert.TicketID,
			SLAType:   alert.SLAType,
			State:     alert.State,
			Details:   alert.Details,
			CreatedAt: alert.CreatedAt,
		})
	}
	return result
}
