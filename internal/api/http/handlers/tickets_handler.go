package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-watchdog/internal/api/dto"
	"github.com/spec-kit/ticket-watchdog/internal/domain"
	"github.com/spec-kit/ticket-watchdog/internal/service"
	"github.com/spec-kit/ticket-watchdog/pkg/util"
)

// TicketsHandler serves the ingestion and dashboard endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
}

// NewTicketsHandler returns a new handler instance.
func NewTicketsHandler(tickets *service.TicketService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets}
}

// Ingest accepts a batch of ticket events. Evaluation, notification, and
// broadcast outcomes never affect the response; only ticket persistence can
// fail the request.
func (h *TicketsHandler) Ingest(c *fiber.Ctx) error {
	var payload []dto.TicketEvent
	if err := c.BodyParser(&payload); err != nil {
		return util.NewValidationError("invalid request body", map[string]any{"parse": err.Error()})
	}
	if len(payload) == 0 {
		return util.NewValidationError("empty event batch", nil)
	}

	inputs := make([]service.TicketEventInput, 0, len(payload))
	for _, event := range payload {
		inputs = append(inputs, service.TicketEventInput{
			ID:           event.ID,
			Priority:     event.Priority,
			CustomerTier: event.CustomerTier,
			Status:       event.Status,
			CreatedAt:    event.CreatedAt,
			UpdatedAt:    event.UpdatedAt,
		})
	}

	tickets, err := h.tickets.IngestBatch(c.UserContext(), inputs)
	if err != nil {
		return err
	}

	response := make([]dto.TicketSummary, 0, len(tickets))
	for _, ticket := range tickets {
		response = append(response, dto.FromTicket(ticket))
	}
	return c.JSON(response)
}

// Get returns one ticket with its alert history.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	ticket, alerts, err := h.tickets.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.TicketDetailResponse{
		TicketSummary: dto.FromTicket(*ticket),
		Alerts:        dto.FromAlerts(alerts),
	})
}

// Dashboard lists tickets with pagination and an optional SLA state filter.
func (h *TicketsHandler) Dashboard(c *fiber.Ctx) error {
	var state *domain.SLAState
	if raw := c.Query("state"); raw != "" {
		s := domain.SLAState(raw)
		switch s {
		case domain.SLAStateOK, domain.SLAStateAlert, domain.SLAStateBreach:
			state = &s
		default:
			return util.NewValidationError("invalid state filter", map[string]any{"state": raw})
		}
	}

	limit := queryInt(c, "limit", 100)
	offset := queryInt(c, "offset", 0)
	if limit < 1 || limit > 1000 || offset < 0 {
		return util.NewValidationError("invalid pagination", map[string]any{
			"limit": limit, "offset": offset,
		})
	}

	tickets, err := h.tickets.ListDashboard(c.UserContext(), state, limit, offset)
	if err != nil {
		return err
	}

	response := make([]dto.TicketSummary, 0, len(tickets))
	for _, ticket := range tickets {
		response = append(response, dto.FromTicket(ticket))
	}
	return c.JSON(response)
}

func queryInt(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return parsed
}
