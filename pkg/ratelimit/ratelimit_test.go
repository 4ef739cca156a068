package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func newTestLimiter(t *testing.T, window time.Duration) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	l := New(window)
	l.now = clock.now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestAllow_ExhaustsAndRefills(t *testing.T) {
	l, clock := newTestLimiter(t, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("10.0.0.1", 3) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("10.0.0.1", 3) {
		t.Fatal("fourth request should be limited")
	}
	if !l.Allow("10.0.0.2", 3) {
		t.Fatal("other clients have their own bucket")
	}

	clock.t = clock.t.Add(20 * time.Second) // one token at 3/min
	if !l.Allow("10.0.0.1", 3) {
		t.Fatal("token should have refilled")
	}
	if l.Allow("10.0.0.1", 3) {
		t.Fatal("only one token should have refilled")
	}
}

func TestAllow_NonPositiveLimitDisables(t *testing.T) {
	l, _ := newTestLimiter(t, time.Minute)
	for i := 0; i < 100; i++ {
		if !l.Allow("k", 0) {
			t.Fatal("limit 0 must not reject")
		}
	}
}

func TestReset(t *testing.T) {
	l, _ := newTestLimiter(t, time.Minute)
	l.Allow("k", 1)
	if l.Allow("k", 1) {
		t.Fatal("expected limit")
	}
	l.Reset("k")
	if !l.Allow("k", 1) {
		t.Fatal("reset should restore the bucket")
	}
}

func TestSweepRemovesIdleKeys(t *testing.T) {
	l, clock := newTestLimiter(t, time.Minute)
	l.Allow("idle", 5)
	clock.t = clock.t.Add(3 * time.Minute)
	l.Allow("active", 5)

	l.sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries["idle"]; ok {
		t.Error("idle key should be swept")
	}
	if _, ok := l.entries["active"]; !ok {
		t.Error("active key should remain")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	l := New(time.Second)
	l.Stop()
	l.Stop()
}
