package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
	"github.com/spec-kit/ticket-watchdog/pkg/util"
)

// AlertRecorder is the ledger write path consumed by the SLA service. The
// int result is the ticket's escalation level after the bump, read back from
// the same transaction so concurrent raises never understate it.
type AlertRecorder interface {
	Record(ctx context.Context, ticketID string, slaType domain.SLAType, state domain.SLAState, details domain.AlertDetails) (*domain.Alert, int, error)
}

// AlertLedger persists alerts. Each Record call writes the alert row and
// bumps the ticket's escalation level inside one transaction: both land or
// neither does.
type AlertLedger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewAlertLedger constructs the ledger.
func NewAlertLedger(pool *pgxpool.Pool, logger *zap.Logger) *AlertLedger {
	return &AlertLedger{pool: pool, logger: logger}
}

// Record appends an alert and increments the ticket's escalation level by
// exactly one, returning the level after the bump. Returns
// util.ErrTicketNotFound when the ticket vanished between sweep enumeration
// and the write.
func (l *AlertLedger) Record(ctx context.Context, ticketID string, slaType domain.SLAType, state domain.SLAState, details domain.AlertDetails) (*domain.Alert, int, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	const bump = `
        UPDATE tickets SET escalation_level = escalation_level + 1
        WHERE id=$1
        RETURNING escalation_level`
	var level int
	if err := tx.QueryRow(ctx, bump, ticketID).Scan(&level); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, util.ErrTicketNotFound
		}
		return nil, 0, err
	}

	alert := &domain.Alert{
		TicketID: ticketID,
		SLAType:  slaType,
		State:    state,
		Details:  details,
	}
	const insert = `
        INSERT INTO alerts (ticket_id, sla_type, state, details)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`
	if err := tx.QueryRow(ctx, insert,
		alert.TicketID,
		alert.SLAType,
		alert.State,
		alert.Details,
	).Scan(&alert.ID, &alert.CreatedAt); err != nil {
		return nil, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}

	l.logger.Info("alert recorded",
		zap.String("ticket_id", ticketID),
		zap.String("sla_type", string(slaType)),
		zap.String("state", string(state)),
		zap.Int64("alert_id", alert.ID),
		zap.Int("escalation_level", level))
	return alert, level, nil
}
