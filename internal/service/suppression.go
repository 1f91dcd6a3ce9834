package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
)

// Suppressor implements the optional re-alert deduplication window. Seen
// reports whether an identical (ticket, sla_type, state) raise happened
// within the window and marks the combination as seen. A state change uses a
// different key, so it is never suppressed.
type Suppressor interface {
	Seen(ctx context.Context, ticketID string, slaType domain.SLAType, state domain.SLAState) (bool, error)
}

func suppressionKey(ticketID string, slaType domain.SLAType, state domain.SLAState) string {
	return fmt.Sprintf("sla:dedup:%s:%s:%s", ticketID, slaType, state)
}

// NewSuppressor picks an implementation for the configured window: nil
// window disables suppression entirely (re-alert on every sweep, the
// historical behavior); with a window, Redis is used when available so the
// bookkeeping survives restarts, otherwise an in-process map.
func NewSuppressor(client *redis.Client, window time.Duration) Suppressor {
	if window <= 0 {
		return noopSuppressor{}
	}
	if client != nil {
		return &redisSuppressor{client: client, window: window}
	}
	return NewMemorySuppressor(window)
}

type noopSuppressor struct{}

func (noopSuppressor) Seen(context.Context, string, domain.SLAType, domain.SLAState) (bool, error) {
	return false, nil
}

type redisSuppressor struct {
	client *redis.Client
	window time.Duration
}

func (s *redisSuppressor) Seen(ctx context.Context, ticketID string, slaType domain.SLAType, state domain.SLAState) (bool, error) {
	stored, err := s.client.SetNX(ctx, suppressionKey(ticketID, slaType, state), 1, s.window).Result()
	if err != nil {
		return false, err
	}
	return !stored, nil
}

// memorySuppressor is the in-process fallback.
type memorySuppressor struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewMemorySuppressor builds an in-memory suppressor with the given window.
func NewMemorySuppressor(window time.Duration) Suppressor {
	return &memorySuppressor{
		window: window,
		now:    time.Now,
		seen:   make(map[string]time.Time),
	}
}

func (s *memorySuppressor) Seen(_ context.Context, ticketID string, slaType domain.SLAType, state domain.SLAState) (bool, error) {
	key := suppressionKey(ticketID, slaType, state)
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.seen[key]; ok && now.Before(expiry) {
		return true, nil
	}
	s.seen[key] = now.Add(s.window)
	return false, nil
}
