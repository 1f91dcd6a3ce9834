package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
	"github.com/spec-kit/ticket-watchdog/internal/events"
	"github.com/spec-kit/ticket-watchdog/internal/observability"
	"github.com/spec-kit/ticket-watchdog/internal/repository"
	"github.com/spec-kit/ticket-watchdog/internal/slaconfig"
	"github.com/spec-kit/ticket-watchdog/pkg/util"
)

// ConfigSource yields the active SLA target snapshot.
type ConfigSource interface {
	Current() slaconfig.SLAConfig
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	TicketRepo repository.TicketRepository
	Ledger     AlertRecorder
	Config     ConfigSource
	Suppressor Suppressor
	Dispatcher events.Dispatcher
	Thresholds Thresholds
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Now        func() time.Time
}

// SLAService drives SLA evaluation: the periodic sweep over all tickets and
// the on-demand check after ingestion. For every threshold crossing it runs
// the ledger write first and publishes EventSLAAlertRaised only after the
// commit, so notification and broadcast always trail a durable alert.
type SLAService struct {
	tickets    repository.TicketRepository
	ledger     AlertRecorder
	config     ConfigSource
	suppressor Suppressor
	dispatcher events.Dispatcher
	thresholds Thresholds
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time

	// sweeping serializes sweeps: a tick that fires while the previous
	// sweep is still running is skipped, never queued.
	sweeping atomic.Bool
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	suppressor := deps.Suppressor
	if suppressor == nil {
		suppressor = noopSuppressor{}
	}
	return &SLAService{
		tickets:    deps.TicketRepo,
		ledger:     deps.Ledger,
		config:     deps.Config,
		suppressor: suppressor,
		dispatcher: deps.Dispatcher,
		thresholds: deps.Thresholds,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        now,
	}
}

// RegisterHandlers subscribes the on-demand evaluation to ticket events.
// The dispatcher is synchronous but the handler swallows every failure, so
// ingestion never fails because of evaluation.
func (s *SLAService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketReceived, func(ctx context.Context, event events.Event) error {
		s.EvaluateTicket(ctx, event.TicketID)
		return nil
	})
}

// EvaluateAll runs one full sweep: every ticket, both SLA types. Per-ticket
// failures are logged and skipped; a failure listing tickets ends the sweep
// early. The next scheduled tick always fires regardless of outcome.
func (s *SLAService) EvaluateAll(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Warn("sweep already running; skipping tick")
		s.metrics.RecordSweepSkipped()
		return
	}
	defer s.sweeping.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic during sweep", zap.Any("panic", r))
		}
	}()

	start := s.now()
	cfg := s.config.Current()

	tickets, err := s.tickets.ListAll(ctx)
	if err != nil {
		s.logger.Error("sweep failed to list tickets", zap.Error(err))
		return
	}

	for i := range tickets {
		ticket := &tickets[i]
		for _, slaType := range domain.SLATypes {
			s.evaluateOne(ctx, ticket, slaType, cfg)
		}
	}

	s.metrics.RecordSweep(time.Since(start), len(tickets))
	s.logger.Info("sweep complete",
		zap.Int("tickets", len(tickets)),
		zap.Duration("duration", time.Since(start)))
}

// EvaluateTicket runs the on-demand response-SLA check for one ticket.
// All failures are logged and swallowed.
func (s *SLAService) EvaluateTicket(ctx context.Context, ticketID string) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		s.logger.Warn("on-demand evaluation: ticket lookup failed",
			zap.String("ticket_id", ticketID), zap.Error(err))
		return
	}
	s.evaluateOne(ctx, ticket, domain.SLATypeResponse, s.config.Current())
}

func (s *SLAService) evaluateOne(ctx context.Context, ticket *domain.Ticket, slaType domain.SLAType, cfg slaconfig.SLAConfig) {
	cls, err := Evaluate(ticket, slaType, cfg, s.thresholds, s.now())
	if err != nil {
		if errors.Is(err, ErrNoTarget) {
			s.logger.Warn("no sla target configured",
				zap.String("ticket_id", ticket.ID),
				zap.String("tier", ticket.CustomerTier),
				zap.String("priority", ticket.Priority),
				zap.String("sla_type", string(slaType)))
		} else {
			s.logger.Error("evaluation failed",
				zap.String("ticket_id", ticket.ID), zap.Error(err))
		}
		return
	}
	if cls == nil {
		return
	}
	s.raise(ctx, ticket, slaType, cls)
}

// raise persists the alert and, on success, publishes the raised event.
func (s *SLAService) raise(ctx context.Context, ticket *domain.Ticket, slaType domain.SLAType, cls *Classification) {
	seen, err := s.suppressor.Seen(ctx, ticket.ID, slaType, cls.State)
	if err != nil {
		// Suppression is an optimization; fail open and raise anyway.
		s.logger.Warn("suppression check failed",
			zap.String("ticket_id", ticket.ID), zap.Error(err))
	} else if seen {
		s.logger.Debug("alert suppressed within dedup window",
			zap.String("ticket_id", ticket.ID),
			zap.String("sla_type", string(slaType)),
			zap.String("state", string(cls.State)))
		return
	}

	alert, level, err := s.ledger.Record(ctx, ticket.ID, slaType, cls.State, cls.Details())
	if err != nil {
		if errors.Is(err, util.ErrTicketNotFound) {
			s.logger.Warn("ticket vanished before ledger write",
				zap.String("ticket_id", ticket.ID))
		} else {
			s.logger.Error("ledger write failed",
				zap.String("ticket_id", ticket.ID),
				zap.String("sla_type", string(slaType)),
				zap.Error(err))
		}
		return
	}

	s.metrics.RecordAlert(string(alert.State))

	// The snapshot taken at sweep start can be stale when raises race, so
	// the payload carries the level the ledger read back after its bump.
	raised := *ticket
	raised.EscalationLevel = level

	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventSLAAlertRaised,
		TicketID:  ticket.ID,
		Timestamp: alert.CreatedAt,
		Payload: events.AlertRaisedPayload{
			Ticket: raised,
			Alert:  *alert,
		},
	})
}
