package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerStaysClosedBelowThreshold(t *testing.T) {
	b := New(3, time.Minute)

	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("request %d refused: %v", i, err)
		}
		b.Observe(errors.New("down"))
	}

	if err := b.Allow(); err != nil {
		t.Errorf("two failures out of three should not trip: %v", err)
	}
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	b := New(3, time.Minute)

	for i := 0; i < 3; i++ {
		b.Observe(errors.New("down"))
	}

	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
	if !b.Open() {
		t.Error("breaker should report open")
	}
}

func TestSuccessResetsFailureRun(t *testing.T) {
	b := New(3, time.Minute)

	b.Observe(errors.New("down"))
	b.Observe(errors.New("down"))
	b.Observe(nil)
	b.Observe(errors.New("down"))
	b.Observe(errors.New("down"))

	if err := b.Allow(); err != nil {
		t.Errorf("interleaved success should reset the run: %v", err)
	}
}

func TestCooldownProbe(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	b := New(2, 30*time.Second)
	b.now = func() time.Time { return clock }

	b.Observe(errors.New("down"))
	b.Observe(errors.New("down"))
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected open, got %v", err)
	}

	clock = clock.Add(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("cooldown elapsed, probe should pass: %v", err)
	}

	// A failed probe restarts the cooldown.
	b.Observe(errors.New("still down"))
	if err := b.Allow(); !errors.Is(err, ErrOpen) {
		t.Errorf("failed probe should reopen, got %v", err)
	}

	// A successful probe closes the breaker for good.
	clock = clock.Add(31 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("second probe should pass: %v", err)
	}
	b.Observe(nil)
	if b.Open() {
		t.Error("successful probe should close the breaker")
	}
	if err := b.Allow(); err != nil {
		t.Errorf("closed breaker should allow: %v", err)
	}
}
