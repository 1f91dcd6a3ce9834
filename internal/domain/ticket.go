package domain

import "time"

// TicketStatus enumerates lifecycle states reported by the ingestion feed.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Ticket is the aggregate monitored for SLA compliance. Priority and
// CustomerTier are free-form keys into the SLA target table; the watchdog
// only reads tickets and bumps EscalationLevel when alerts are raised.
type Ticket struct {
	ID              string
	Priority        string
	CustomerTier    string
	Status          TicketStatus
	EscalationLevel int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TicketStatusHistory is an append-only record of status transitions.
type TicketStatusHistory struct {
	ID        int64
	TicketID  string
	Status    TicketStatus
	ChangedAt time.Time
}
