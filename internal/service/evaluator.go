package service

import (
	"errors"
	"time"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
	"github.com/spec-kit/ticket-watchdog/internal/slaconfig"
)

// ErrNoTarget signals that the config table has no usable entry for a
// tier/priority/SLA-type combination. Callers log a warning and move on.
var ErrNoTarget = errors.New("no sla target configured")

// Thresholds are the two process-wide fractions applied to percent-used.
// Alert must be strictly below Breach.
type Thresholds struct {
	Alert  float64
	Breach float64
}

// Classification is the outcome of evaluating one ticket/SLA-type pair that
// crossed a threshold.
type Classification struct {
	State          domain.SLAState
	ElapsedMinutes float64
	TargetMinutes  float64
	PercentUsed    float64
}

// Details converts the classification measurements to alert details.
func (c Classification) Details() domain.AlertDetails {
	return domain.AlertDetails{
		ElapsedMinutes: c.ElapsedMinutes,
		TargetMinutes:  c.TargetMinutes,
		PercentUsed:    c.PercentUsed,
	}
}

// Evaluate classifies one ticket against one SLA deadline. It returns
// (nil, nil) when the ticket is within its window (nothing is emitted for
// OK tickets), (nil, ErrNoTarget) when the config has no entry, and a
// classification when a threshold is crossed. Breach takes precedence over
// alert. Timestamps are compared in UTC.
func Evaluate(ticket *domain.Ticket, slaType domain.SLAType, cfg slaconfig.SLAConfig, th Thresholds, now time.Time) (*Classification, error) {
	target, ok := cfg.Target(ticket.CustomerTier, ticket.Priority, slaType)
	if !ok {
		return nil, ErrNoTarget
	}

	elapsed := now.UTC().Sub(ticket.CreatedAt.UTC()).Minutes()
	percentUsed := elapsed / target

	var state domain.SLAState
	switch {
	case percentUsed >= th.Breach:
		state = domain.SLAStateBreach
	case percentUsed >= th.Alert:
		state = domain.SLAStateAlert
	default:
		return nil, nil
	}

	return &Classification{
		State:          state,
		ElapsedMinutes: elapsed,
		TargetMinutes:  target,
		PercentUsed:    percentUsed,
	}, nil
}
