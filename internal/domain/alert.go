package domain

import "time"

// SLAType identifies which deadline is being measured.
type SLAType string

const (
	SLATypeResponse   SLAType = "response"
	SLATypeResolution SLAType = "resolution"
)

// SLATypes lists every deadline evaluated during a sweep.
var SLATypes = []SLAType{SLATypeResponse, SLATypeResolution}

// SLAState classifies how far a ticket is into its SLA window.
type SLAState string

const (
	SLAStateOK     SLAState = "ok"
	SLAStateAlert  SLAState = "alert"
	SLAStateBreach SLAState = "breach"
)

// AlertDetails captures the measurements behind an alert.
type AlertDetails struct {
	ElapsedMinutes float64 `json:"elapsed_minutes"`
	TargetMinutes  float64 `json:"target_minutes"`
	PercentUsed    float64 `json:"percent_used"`
}

// Alert is an append-only record of a threshold crossing. Alerts are never
// mutated after creation.
type Alert struct {
	ID        int64
	TicketID  string
	SLAType   SLAType
	State     SLAState
	Details   AlertDetails
	CreatedAt time.Time
}
