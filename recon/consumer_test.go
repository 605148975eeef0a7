package recon

import (
	"context"
	"io"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
	"github.com/sirupsen/logrus"
)

func discardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestConsumer(store Store) (*Consumer, *Correlator) {
	c := newTestCorrelator(store)
	c.Logger = discardLogger()
	return NewConsumer(c, c.Logger, "reconciliation-group"), c
}

func TestConsumerHandleMessageValid(t *testing.T) {
	store := newFakeStore()
	co, c := newTestConsumer(store)

	payload := []byte(`{"transaction_id":"TX1","source":"APP","amount":1000,"status":"success","timestamp":"2026-08-28T10:00:00Z"}`)
	co.handleMessage(context.Background(), models.SourceApp, payload)

	if c.PendingCount() != 1 {
		t.Fatalf("pending count = %d, want 1", c.PendingCount())
	}
	store.mu.Lock()
	raw := store.raws["TX1|APP"]
	store.mu.Unlock()
	if raw.TransactionId != "TX1" {
		t.Fatal("raw record not persisted")
	}
	// Lowercase wire status is normalized at the boundary.
	if raw.Status != models.TxStatusSuccess {
		t.Fatalf("status = %s, want SUCCESS", raw.Status)
	}
	if !raw.EventTimestamp.Equal(time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("event timestamp = %s", raw.EventTimestamp)
	}
}

func TestConsumerTopicIsAuthoritativeForSource(t *testing.T) {
	store := newFakeStore()
	co, _ := newTestConsumer(store)

	// Payload claims BANK but arrived on the APP topic.
	payload := []byte(`{"transaction_id":"TX1","source":"BANK","amount":1000,"status":"PENDING"}`)
	co.handleMessage(context.Background(), models.SourceApp, payload)

	store.mu.Lock()
	_, asApp := store.raws["TX1|APP"]
	_, asBank := store.raws["TX1|BANK"]
	store.mu.Unlock()
	if !asApp || asBank {
		t.Fatalf("recorded asApp=%v asBank=%v, want topic source APP", asApp, asBank)
	}
}

func TestConsumerHandleMessageBadJSON(t *testing.T) {
	store := newFakeStore()
	co, c := newTestConsumer(store)
	sub := c.Notifier.Subscribe()

	co.handleMessage(context.Background(), models.SourceApp, []byte(`{not json`))

	select {
	case ev := <-sub.C:
		if ev.Type != EventError || ev.TransactionId != "unknown" {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no error event for malformed payload")
	}
	if c.PendingCount() != 0 {
		t.Fatal("malformed payload reached the correlator")
	}
}

func TestConsumerHandleMessageMissingAmount(t *testing.T) {
	store := newFakeStore()
	co, c := newTestConsumer(store)
	sub := c.Notifier.Subscribe()

	payload := []byte(`{"transaction_id":"TX1","source":"APP","status":"PENDING"}`)
	co.handleMessage(context.Background(), models.SourceApp, payload)

	select {
	case ev := <-sub.C:
		if ev.Type != EventError {
			t.Fatalf("unexpected event %+v", ev)
		}
		// Decodable payload keeps its attribution.
		if ev.TransactionId != "TX1" {
			t.Fatalf("transaction id = %q, want TX1", ev.TransactionId)
		}
	case <-time.After(time.Second):
		t.Fatal("no error event for invalid payload")
	}
	if c.PendingCount() != 0 {
		t.Fatal("invalid payload reached the correlator")
	}
}

func TestConsumerZeroTimestampDefaultsToNow(t *testing.T) {
	store := newFakeStore()
	co, _ := newTestConsumer(store)

	payload := []byte(`{"transaction_id":"TX1","source":"APP","amount":1000,"status":"PENDING"}`)
	before := time.Now().UTC()
	co.handleMessage(context.Background(), models.SourceApp, payload)

	store.mu.Lock()
	raw := store.raws["TX1|APP"]
	store.mu.Unlock()
	if raw.EventTimestamp.Before(before) {
		t.Fatalf("zero timestamp not defaulted: %s", raw.EventTimestamp)
	}
}

func TestProbeTransactionId(t *testing.T) {
	if got := probeTransactionId([]byte(`{"transaction_id":"TX9","amount":"oops"}`)); got != "TX9" {
		t.Fatalf("probe = %q, want TX9", got)
	}
	if got := probeTransactionId([]byte(`{not json`)); got != "unknown" {
		t.Fatalf("probe = %q, want unknown", got)
	}
}
