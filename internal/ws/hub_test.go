package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-watchdog/internal/domain"
	"github.com/spec-kit/ticket-watchdog/internal/events"
	"github.com/spec-kit/ticket-watchdog/internal/observability"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zap.NewNop(), observability.NewMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

// addClient registers a conn-less client; tests read its send channel
// directly instead of running a write pump.
func addClient(hub *Hub, buf int) *client {
	c := &client{send: make(chan []byte, buf), done: make(chan struct{})}
	hub.register(c)
	return c
}

func read(t *testing.T, c *client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return nil
	}
}

func testMessage() AlertMessage {
	return AlertMessage{
		TicketID: "T-1",
		SLAType:  domain.SLATypeResponse,
		State:    domain.SLAStateBreach,
		Details: domain.AlertDetails{
			ElapsedMinutes: 2,
			TargetMinutes:  1,
			PercentUsed:    2,
		},
		Timestamp: "2025-06-01T12:00:00Z",
	}
}

func TestHub_BroadcastReachesAllSubscribers(t *testing.T) {
	hub := newTestHub(t)
	c1 := addClient(hub, sendBufSize)
	c2 := addClient(hub, sendBufSize)

	hub.Publish(testMessage())

	msg1 := read(t, c1)
	msg2 := read(t, c2)
	if string(msg1) != string(msg2) {
		t.Errorf("subscribers got different payloads: %s vs %s", msg1, msg2)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(msg1, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["ticket_id"] != "T-1" {
		t.Errorf("ticket_id: got %v", decoded["ticket_id"])
	}
	if decoded["sla_type"] != "response" {
		t.Errorf("sla_type: got %v", decoded["sla_type"])
	}
	if decoded["state"] != "breach" {
		t.Errorf("state: got %v", decoded["state"])
	}
	details, ok := decoded["details"].(map[string]interface{})
	if !ok {
		t.Fatal("details: missing or wrong type")
	}
	if details["percent_used"] != 2.0 {
		t.Errorf("percent_used: got %v", details["percent_used"])
	}
	if decoded["timestamp"] != "2025-06-01T12:00:00Z" {
		t.Errorf("timestamp: got %v", decoded["timestamp"])
	}
}

func TestHub_ZeroSubscribersIsNoop(t *testing.T) {
	hub := newTestHub(t)

	// Must not panic or block.
	hub.Publish(testMessage())

	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}

func TestHub_SlowSubscriberDroppedOthersUnaffected(t *testing.T) {
	hub := newTestHub(t)
	addClient(hub, 1) // slow: buffer of one
	healthy := addClient(hub, sendBufSize)

	// First event fills the slow client's buffer; the second overflows it.
	hub.Publish(testMessage())
	hub.Publish(testMessage())

	read(t, healthy)
	read(t, healthy)

	deadline := time.After(2 * time.Second)
	for hub.Count() != 1 {
		select {
		case <-deadline:
			t.Fatalf("slow subscriber not dropped, Count=%d", hub.Count())
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func TestHub_UnregisterIdempotent(t *testing.T) {
	hub := NewHub(zap.NewNop(), observability.NewMetrics())
	c := addClient(hub, 1)

	hub.unregister(c)
	hub.unregister(c) // second removal is a no-op

	// Removing a client that was never registered is safe too.
	hub.unregister(&client{send: make(chan []byte, 1), done: make(chan struct{})})

	if n := hub.Count(); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}

func TestHub_RegisterHandlersBroadcastsAlertEvents(t *testing.T) {
	hub := newTestHub(t)
	c := addClient(hub, sendBufSize)

	dispatcher := events.NewInMemoryDispatcher(zap.NewNop())
	hub.RegisterHandlers(dispatcher)

	created := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	_ = dispatcher.Publish(context.Background(), events.Event{
		Type:     events.EventSLAAlertRaised,
		TicketID: "T-9",
		Payload: events.AlertRaisedPayload{
			Ticket: domain.Ticket{ID: "T-9"},
			Alert: domain.Alert{
				TicketID:  "T-9",
				SLAType:   domain.SLATypeResolution,
				State:     domain.SLAStateAlert,
				CreatedAt: created,
			},
		},
	})

	var decoded map[string]interface{}
	if err := json.Unmarshal(read(t, c), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["ticket_id"] != "T-9" || decoded["sla_type"] != "resolution" {
		t.Errorf("broadcast message: %v", decoded)
	}
}

func TestHub_CancelClosesSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop(), observability.NewMetrics())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	c := addClient(hub, 1)
	cancel()
	<-done

	select {
	case <-c.done:
	default:
		t.Error("client not signalled on shutdown")
	}
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after shutdown: got %d, want 0", n)
	}
}

// A subscriber disconnecting while a broadcast is in flight must never crash
// the dispatch loop: fan-out snapshots the registry outside the lock, so the
// send can race the removal.
func TestHub_DisconnectDuringBroadcastDoesNotPanic(t *testing.T) {
	hub := NewHub(zap.NewNop(), observability.NewMetrics())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				c := &client{send: make(chan []byte, 1), done: make(chan struct{})}
				hub.register(c)
				hub.unregister(c)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				hub.fanOut([]byte("x"))
			}
		}
	}()

	time.Sleep(500 * time.Millisecond)
	close(stop)
	wg.Wait()
}
