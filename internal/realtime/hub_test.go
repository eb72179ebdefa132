package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reward360/pointsguard/internal/transactions"
)

func scoredTx(account string, level transactions.RiskLevel) *transactions.Transaction {
	return &transactions.Transaction{
		ID:        1,
		AccountID: account,
		RiskLevel: level,
		Status:    transactions.StatusCleared,
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	time.Sleep(20 * time.Millisecond)
	return h
}

func joinClient(t *testing.T, h *Hub, sub Subscription) *Client {
	t.Helper()
	client := &Client{hub: h, send: make(chan []byte, sendBuffer), sub: sub}
	h.joins <- client
	time.Sleep(20 * time.Millisecond)
	return client
}

func expectMessage(t *testing.T, client *Client) {
	t.Helper()
	select {
	case msg := <-client.send:
		assert.NotEmpty(t, msg)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for feed message")
	}
}

func expectSilence(t *testing.T, client *Client) {
	t.Helper()
	time.Sleep(50 * time.Millisecond)
	select {
	case msg := <-client.send:
		t.Fatalf("expected no message, got %s", msg)
	default:
	}
}

func TestSubscriptionMatches(t *testing.T) {
	flagged := &Event{Type: EventFlagged, Data: scoredTx("acct-1", transactions.RiskHigh)}
	scored := &Event{Type: EventScored, Data: scoredTx("acct-2", transactions.RiskLow)}

	tests := []struct {
		name  string
		sub   Subscription
		event *Event
		want  bool
	}{
		{"all events", Subscription{AllEvents: true}, scored, true},
		{"empty subscription admits everything", Subscription{}, scored, true},
		{"event type match", Subscription{EventTypes: []EventType{EventFlagged}}, flagged, true},
		{"event type miss", Subscription{EventTypes: []EventType{EventFlagged}}, scored, false},
		{"account match", Subscription{AccountIDs: []string{"acct-1"}}, flagged, true},
		{"account miss", Subscription{AccountIDs: []string{"acct-1"}}, scored, false},
		{"risk level match", Subscription{RiskLevels: []string{"HIGH", "CRITICAL"}}, flagged, true},
		{"risk level miss", Subscription{RiskLevels: []string{"HIGH", "CRITICAL"}}, scored, false},
		{"flagged only gates scored", Subscription{AllEvents: true, FlaggedOnly: true}, scored, false},
		{"flagged only passes flagged", Subscription{AllEvents: true, FlaggedOnly: true}, flagged, true},
		{"no data skips data filters", Subscription{AccountIDs: []string{"acct-1"}}, &Event{Type: EventScored}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.sub.matches(tt.event))
		})
	}
}

func TestStats_Initial(t *testing.T) {
	h := NewHub(slog.Default())
	stats := h.Stats()
	assert.Zero(t, stats.ConnectedClients)
	assert.Zero(t, stats.TotalEvents)
	assert.Zero(t, stats.PeakClients)
}

func TestBroadcast_CountsEvents(t *testing.T) {
	h := startHub(t)

	h.Broadcast(&Event{Type: EventScored, Timestamp: time.Now()})
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int64(1), h.Stats().TotalEvents)
}

func TestJoinLeave_TracksPeak(t *testing.T) {
	h := startHub(t)
	client := joinClient(t, h, Subscription{AllEvents: true})

	stats := h.Stats()
	require.Equal(t, 1, stats.ConnectedClients)
	assert.Equal(t, int64(1), stats.PeakClients)

	h.leaves <- client
	time.Sleep(20 * time.Millisecond)

	stats = h.Stats()
	assert.Zero(t, stats.ConnectedClients)
	assert.Equal(t, int64(1), stats.PeakClients, "peak survives disconnects")
}

func TestDeliver_ToMatchingClient(t *testing.T) {
	h := startHub(t)
	client := joinClient(t, h, Subscription{AllEvents: true})

	h.Broadcast(&Event{
		Type:      EventScored,
		Timestamp: time.Now(),
		Data:      scoredTx("acct-1", transactions.RiskLow),
	})

	expectMessage(t, client)
}

func TestDeliver_RespectsEventTypeFilter(t *testing.T) {
	h := startHub(t)
	client := joinClient(t, h, Subscription{EventTypes: []EventType{EventFlagged}})

	h.Broadcast(&Event{Type: EventScored, Timestamp: time.Now()})
	expectSilence(t, client)

	h.Broadcast(&Event{Type: EventFlagged, Timestamp: time.Now()})
	expectMessage(t, client)
}

func TestTransactionScored_SplitsByRisk(t *testing.T) {
	h := startHub(t)
	client := joinClient(t, h, Subscription{FlaggedOnly: true})

	// LOW goes out as a plain scored event, invisible to FlaggedOnly.
	h.TransactionScored(scoredTx("acct-1", transactions.RiskLow))
	expectSilence(t, client)

	h.TransactionScored(scoredTx("acct-1", transactions.RiskHigh))
	expectMessage(t, client)
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := NewHub(slog.Default())
	ctx, cancel := context.WithCancel(context.Background())

	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop after context cancellation")
	}
}
