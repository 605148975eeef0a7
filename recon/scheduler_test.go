package recon

import (
	"sync"
	"testing"
	"time"
)

type firedSet struct {
	mu    sync.Mutex
	fired map[string]int
}

func newFiredSet() *firedSet {
	return &firedSet{fired: map[string]int{}}
}

func (f *firedSet) fire(txnId string) {
	f.mu.Lock()
	f.fired[txnId]++
	f.mu.Unlock()
}

func (f *firedSet) count(txnId string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fired[txnId]
}

func TestSchedulerFiresAfterWindow(t *testing.T) {
	f := newFiredSet()
	s := NewScheduler(20*time.Millisecond, time.Hour, f.fire)

	s.Schedule("TX1", time.Now())

	deadline := time.Now().Add(2 * time.Second)
	for f.count("TX1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("deadline never fired")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerCancelPreventsFiring(t *testing.T) {
	f := newFiredSet()
	s := NewScheduler(30*time.Millisecond, time.Hour, f.fire)

	s.Schedule("TX1", time.Now())
	s.Cancel("TX1")

	time.Sleep(100 * time.Millisecond)
	if got := f.count("TX1"); got != 0 {
		t.Fatalf("cancelled deadline fired %d times", got)
	}
	if s.ScheduledCount() != 0 {
		t.Fatalf("scheduled count = %d, want 0", s.ScheduledCount())
	}
}

func TestSchedulerScheduleIsIdempotent(t *testing.T) {
	f := newFiredSet()
	s := NewScheduler(20*time.Millisecond, time.Hour, f.fire)

	first := time.Now()
	s.Schedule("TX1", first)
	s.Schedule("TX1", first.Add(time.Hour)) // must not re-arm

	if s.ScheduledCount() != 1 {
		t.Fatalf("scheduled count = %d, want 1", s.ScheduledCount())
	}

	time.Sleep(200 * time.Millisecond)
	if got := f.count("TX1"); got != 1 {
		t.Fatalf("fired %d times, want 1", got)
	}
}

func TestSchedulerExpiredDeadlineFiresImmediately(t *testing.T) {
	f := newFiredSet()
	s := NewScheduler(time.Minute, time.Hour, f.fire)

	// First seen long ago: the window already elapsed.
	s.Schedule("TX1", time.Now().Add(-2*time.Minute))

	deadline := time.Now().Add(2 * time.Second)
	for f.count("TX1") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("expired deadline did not fire")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerSweepCatchesExpired(t *testing.T) {
	f := newFiredSet()
	s := NewScheduler(time.Minute, time.Hour, f.fire)

	// Arm a deadline, then simulate a missed timer by sweeping at a
	// timestamp past the deadline.
	s.Schedule("TX1", time.Now())
	s.Schedule("TX2", time.Now())

	s.sweepOnce(time.Now().Add(2 * time.Minute))

	if f.count("TX1") != 1 || f.count("TX2") != 1 {
		t.Fatalf("sweep fired TX1=%d TX2=%d, want 1 each", f.count("TX1"), f.count("TX2"))
	}

	// A sweep before the deadline fires nothing new.
	s.sweepOnce(time.Now())
	if f.count("TX1") != 1 {
		t.Fatalf("early sweep re-fired TX1")
	}
}
