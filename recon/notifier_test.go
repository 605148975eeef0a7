package recon

import (
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/models"
)

func TestNotifierDeliversToAllSubscribers(t *testing.T) {
	n := NewNotifier(nil)
	a := n.Subscribe()
	b := n.Subscribe()

	n.TransactionMatched("TX1", models.ReconStatusMatched, MatchedDetails)

	for _, sub := range []*Subscription{a, b} {
		select {
		case ev := <-sub.C:
			if ev.Type != EventTransactionMatched || ev.TransactionId != "TX1" {
				t.Fatalf("unexpected event %+v", ev)
			}
			if ev.Timestamp.IsZero() {
				t.Fatal("event timestamp not set")
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestNotifierUnsubscribeClosesChannel(t *testing.T) {
	n := NewNotifier(nil)
	sub := n.Subscribe()
	n.Unsubscribe(sub)

	if _, ok := <-sub.C; ok {
		t.Fatal("channel still open after unsubscribe")
	}
	if n.SubscriberCount() != 0 {
		t.Fatalf("subscriber count = %d, want 0", n.SubscriberCount())
	}

	// Double unsubscribe must not panic.
	n.Unsubscribe(sub)
}

func TestNotifierPublisherNeverBlocks(t *testing.T) {
	n := NewNotifier(nil)
	stalled := n.Subscribe() // never read
	live := n.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			n.EmitError("TX1", "boom")
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a stalled subscriber")
	}

	// The live subscriber still got the buffered prefix.
	select {
	case ev := <-live.C:
		if ev.Type != EventError {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("live subscriber starved")
	}

	_ = stalled
}

func TestNotifierConcurrentPublishers(t *testing.T) {
	n := NewNotifier(nil)
	stalled := n.Subscribe() // never read
	live := n.Subscribe()

	drained := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range live.C {
			drained++
		}
	}()

	// Many transactions completing at once all publish against the same
	// subscriber set; drop accounting must hold up under that.
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				n.EmitError("TX1", "boom")
			}
		}()
	}
	wg.Wait()

	// 1600 publishes against a full buffer exceed the consecutive-drop budget.
	if n.SubscriberCount() > 1 {
		t.Fatalf("stalled subscriber survived, count = %d", n.SubscriberCount())
	}

	n.Unsubscribe(live)
	<-done
	if drained == 0 {
		t.Fatal("live subscriber received nothing")
	}
	for range stalled.C {
	}
}

func TestNotifierRemovesStalledSubscriber(t *testing.T) {
	n := NewNotifier(nil)
	stalled := n.Subscribe() // never read

	// Fill the buffer, then exceed the consecutive-drop budget.
	for i := 0; i < subscriberBuffer+maxConsecutiveDrops; i++ {
		n.EmitError("TX1", "boom")
	}

	if n.SubscriberCount() != 0 {
		t.Fatalf("stalled subscriber not removed, count = %d", n.SubscriberCount())
	}

	// Channel is closed once drained.
	drained := 0
	for range stalled.C {
		drained++
	}
	if drained != subscriberBuffer {
		t.Fatalf("drained %d buffered events, want %d", drained, subscriberBuffer)
	}
}
