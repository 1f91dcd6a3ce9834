package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
	"github.com/spec-kit/ticket-watchdog/internal/events"
	"github.com/spec-kit/ticket-watchdog/internal/repository"
	"github.com/spec-kit/ticket-watchdog/pkg/util"
)

// TicketEventInput describes one ticket event from the ingestion feed.
type TicketEventInput struct {
	ID           string
	Priority     string
	CustomerTier string
	Status       domain.TicketStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	AlertRepo  repository.AlertRepository
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketService coordinates ticket ingestion and reads. Ingestion is
// idempotent on updated_at: stale events are acknowledged without effect.
type TicketService struct {
	tickets    repository.TicketRepository
	alerts     repository.AlertRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		alerts:     deps.AlertRepo,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
	}
}

// IngestBatch upserts a batch of ticket events in order. Only persistence
// failures abort the batch; downstream evaluation runs via the dispatcher
// and can never fail the request.
func (s *TicketService) IngestBatch(ctx context.Context, inputs []TicketEventInput) ([]domain.Ticket, error) {
	result := make([]domain.Ticket, 0, len(inputs))
	for _, input := range inputs {
		ticket, err := s.Ingest(ctx, input)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, nil
}

// Ingest creates the ticket on first sight or applies the event when it is
// newer than the stored state. Every accepted event appends a status-history
// row and publishes EventTicketReceived.
func (s *TicketService) Ingest(ctx context.Context, input TicketEventInput) (*domain.Ticket, error) {
	normalize(&input)

	existing, err := s.tickets.GetByID(ctx, input.ID)
	switch {
	case err == nil:
		if !input.UpdatedAt.After(existing.UpdatedAt) {
			// Stale or duplicate event; idempotent no-op.
			return existing, nil
		}
		existing.Priority = input.Priority
		existing.CustomerTier = input.CustomerTier
		existing.Status = input.Status
		existing.UpdatedAt = input.UpdatedAt
		if err := s.tickets.Update(ctx, existing); err != nil {
			return nil, err
		}
	case errors.Is(err, pgx.ErrNoRows):
		existing = &domain.Ticket{
			ID:           input.ID,
			Priority:     input.Priority,
			CustomerTier: input.CustomerTier,
			Status:       input.Status,
			CreatedAt:    input.CreatedAt,
			UpdatedAt:    input.UpdatedAt,
		}
		if err := s.tickets.Create(ctx, existing); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	history := &domain.TicketStatusHistory{
		TicketID:  existing.ID,
		Status:    input.Status,
		ChangedAt: input.UpdatedAt,
	}
	if err := s.tickets.AppendStatusHistory(ctx, history); err != nil {
		return nil, err
	}

	s.publishReceived(ctx, existing)
	return existing, nil
}

// GetTicket returns a ticket with its alert history.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, []domain.Alert, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, util.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, nil, err
	}
	alerts, err := s.alerts.ListByTicket(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return ticket, alerts, nil
}

// ListDashboard returns paginated tickets, optionally filtered to those with
// at least one alert in the given state.
func (s *TicketService) ListDashboard(ctx context.Context, state *domain.SLAState, limit, offset int) ([]domain.Ticket, error) {
	return s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		State:  state,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *TicketService) publishReceived(ctx context.Context, ticket *domain.Ticket) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketReceived,
		TicketID:  ticket.ID,
		Timestamp: time.Now().UTC(),
		Payload: events.TicketReceivedPayload{
			Priority:     ticket.Priority,
			CustomerTier: ticket.CustomerTier,
			Status:       ticket.Status,
		},
	})
}

func normalize(input *TicketEventInput) {
	if strings.TrimSpace(input.ID) == "" {
		input.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if input.CreatedAt.IsZero() {
		input.CreatedAt = now
	}
	if input.UpdatedAt.IsZero() {
		input.UpdatedAt = now
	}
	if input.Status == "" {
		input.Status = domain.TicketStatusOpen
	}
}
