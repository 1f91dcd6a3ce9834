package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-watchdog/internal/config"
	"github.com/spec-kit/ticket-watchdog/internal/domain"
	"github.com/spec-kit/ticket-watchdog/internal/events"
	"github.com/spec-kit/ticket-watchdog/internal/observability"
)

const notifyQueueSize = 64

// webhookPayload is the Slack-style incoming-webhook message shape.
type webhookPayload struct {
	Text        string              `json:"text"`
	Attachments []webhookAttachment `json:"attachments"`
}

type webhookAttachment struct {
	Color  string         `json:"color"`
	Fields []webhookField `json:"fields"`
}

type webhookField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type notification struct {
	ticket domain.Ticket
	alert  domain.Alert
}

// Notifier delivers best-effort webhook notifications for raised alerts.
// Delivery runs on its own goroutine behind a bounded queue so a slow
// webhook never stalls the sweep or the ingestion path; every failure is
// logged and swallowed.
type Notifier struct {
	cfg     config.NotificationConfig
	client  *http.Client
	logger  *zap.Logger
	metrics *observability.Metrics
	queue   chan notification
}

// NewNotifier constructs the notifier.
func NewNotifier(cfg config.NotificationConfig, logger *zap.Logger, metrics *observability.Metrics) *Notifier {
	return &Notifier{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.WebhookTimeout()},
		logger:  logger,
		metrics: metrics,
		queue:   make(chan notification, notifyQueueSize),
	}
}

// RegisterHandlers subscribes to alert events.
func (n *Notifier) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventSLAAlertRaised, func(_ context.Context, event events.Event) error {
		payload, ok := event.Payload.(events.AlertRaisedPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T", event.Payload)
		}
		n.Notify(payload.Ticket, payload.Alert)
		return nil
	})
}

// Notify enqueues a delivery without blocking the caller. When the queue is
// full the notification is dropped and logged.
func (n *Notifier) Notify(ticket domain.Ticket, alert domain.Alert) {
	select {
	case n.queue <- notification{ticket: ticket, alert: alert}:
	default:
		n.logger.Warn("notification queue full; dropping",
			zap.String("ticket_id", ticket.ID),
			zap.Int64("alert_id", alert.ID))
		n.metrics.RecordNotification(false)
	}
}

// Start drains the queue until ctx is cancelled. Run it on its own goroutine.
func (n *Notifier) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-n.queue:
			n.send(item.ticket, item.alert)
		}
	}
}

func (n *Notifier) send(ticket domain.Ticket, alert domain.Alert) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		n.logger.Warn("NOTIFY_WEBHOOK_URL not set; skipping webhook notification")
		return
	}

	body, err := json.Marshal(buildWebhookPayload(ticket, alert))
	if err != nil {
		n.logger.Error("failed to encode webhook payload", zap.Error(err))
		n.metrics.RecordNotification(false)
		return
	}

	req, err := http.NewRequest(http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Error("failed to build webhook request", zap.Error(err))
		n.metrics.RecordNotification(false)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("webhook delivery failed",
			zap.String("ticket_id", ticket.ID),
			zap.Int64("alert_id", alert.ID),
			zap.Error(err))
		n.metrics.RecordNotification(false)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.logger.Error("webhook returned error status",
			zap.String("ticket_id", ticket.ID),
			zap.Int64("alert_id", alert.ID),
			zap.Int("status", resp.StatusCode))
		n.metrics.RecordNotification(false)
		return
	}

	n.logger.Info("webhook notification sent",
		zap.String("ticket_id", ticket.ID),
		zap.Int64("alert_id", alert.ID))
	n.metrics.RecordNotification(true)
}

func buildWebhookPayload(ticket domain.Ticket, alert domain.Alert) webhookPayload {
	color := "#ffa500"
	if alert.State == domain.SLAStateBreach {
		color = "#ff0000"
	}

	rawDetails, _ := json.Marshal(alert.Details)

	return webhookPayload{
		Text: fmt.Sprintf("SLA %s for Ticket %s", strings.ToUpper(string(alert.State)), ticket.ID),
		Attachments: []webhookAttachment{{
			Color: color,
			Fields: []webhookField{
				{Title: "Ticket ID", Value: ticket.ID, Short: true},
				{Title: "Priority", Value: ticket.Priority, Short: true},
				{Title: "Customer Tier", Value: ticket.CustomerTier, Short: true},
				{Title: "SLA Type", Value: string(alert.SLAType), Short: true},
				{Title: "State", Value: string(alert.State), Short: true},
				{Title: "Escalation Lv.", Value: fmt.Sprintf("%d", ticket.EscalationLevel), Short: true},
				{Title: "Elapsed (min)", Value: fmt.Sprintf("%.1f", alert.Details.ElapsedMinutes), Short: true},
				{Title: "Target (min)", Value: fmt.Sprintf("%g", alert.Details.TargetMinutes), Short: true},
				{Title: "Details", Value: string(rawDetails), Short: false},
				{Title: "Timestamp", Value: alert.CreatedAt.UTC().Format(time.RFC3339), Short: false},
			},
		}},
	}
}
