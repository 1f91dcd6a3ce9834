package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
)

// AlertRepository reads the append-only alert history. Writes go through the
// ledger, which needs transactional coupling with the escalation bump.
type AlertRepository interface {
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Alert, error)
}

type alertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository builds repository.
func NewAlertRepository(pool *pgxpool.Pool) AlertRepository {
	return &alertRepository{pool: pool}
}

func (r *alertRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Alert, error) {
	const query = `
        SELECT id, ticket_id, sla_type, state, details, created_at
        FROM alerts WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Alert
	for rows.Next() {
		var alert domain.Alert
		if err := rows.Scan(
			&alert.ID,
			&alert.TicketID,
			&alert.SLAType,
			&alert.State,
			&alert.Details,
			&alert.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}
