package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
)

// TicketFilter captures dashboard listing parameters. When State is set only
// tickets having at least one alert in that state are returned.
type TicketFilter struct {
	State  *domain.SLAState
	Limit  int
	Offset int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListAll(ctx context.Context) ([]domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	AppendStatusHistory(ctx context.Context, entry *domain.TicketStatusHistory) error
	ListStatusHistory(ctx context.Context, ticketID string) ([]domain.TicketStatusHistory, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, priority, customer_tier, status, escalation_level, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, priority, customer_tier, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING escalation_level`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.Priority,
		ticket.CustomerTier,
		ticket.Status,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	).Scan(&ticket.EscalationLevel)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET priority=$1, customer_tier=$2, status=$3, updated_at=$4
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Priority,
		ticket.CustomerTier,
		ticket.Status,
		ticket.UpdatedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.Priority,
		&ticket.CustomerTier,
		&ticket.Status,
		&ticket.EscalationLevel,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListAll(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.State != nil {
		args = append(args, *filter.State)
		clauses = append(clauses, fmt.Sprintf(
			"id IN (SELECT ticket_id FROM alerts WHERE state=$%d)", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) AppendStatusHistory(ctx context.Context, entry *domain.TicketStatusHistory) error {
	const query = `
        INSERT INTO ticket_status_history (ticket_id, status, changed_at)
        VALUES ($1,$2,$3)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.Status,
		entry.ChangedAt,
	).Scan(&entry.ID)
}

func (r *ticketRepository) ListStatusHistory(ctx context.Context, ticketID string) ([]domain.TicketStatusHistory, error) {
	const query = `
        SELECT id, ticket_id, status, changed_at
        FROM ticket_status_history WHERE ticket_id=$1 ORDER BY changed_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketStatusHistory
	for rows.Next() {
		var entry domain.TicketStatusHistory
		if err := rows.Scan(&entry.ID, &entry.TicketID, &entry.Status, &entry.ChangedAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.Priority,
			&ticket.CustomerTier,
			&ticket.Status,
			&ticket.EscalationLevel,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
