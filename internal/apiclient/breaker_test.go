package apiclient

import (
	"errors"
	"testing"
	"time"

	"github.com/autobrr/autobrr-sub001/internal/config"
)

// fakeClock lets tests move the breaker through its open timeout.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg config.CircuitBreakerConfig) (*Breaker, *fakeClock, *[]BreakerState) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var changes []BreakerState
	b := NewBreaker(cfg, func(s BreakerState) { changes = append(changes, s) })
	b.now = clock.now
	b.windowStart = clock.now()
	return b, clock, &changes
}

func TestBreaker_startsClosed(t *testing.T) {
	b, _, _ := newTestBreaker(config.CircuitBreakerConfig{FailureThreshold: 3})

	if s := b.State(); s != BreakerClosed {
		t.Errorf("initial state = %v, want closed", s)
	}
	if err := b.Allow(); err != nil {
		t.Errorf("Allow() error = %v, want nil", err)
	}
}

func TestBreaker_opensAfterConsecutiveFailures(t *testing.T) {
	b, _, changes := newTestBreaker(config.CircuitBreakerConfig{FailureThreshold: 3})

	b.Failure()
	b.Failure()
	b.Success() // resets the streak
	b.Failure()
	b.Failure()
	if s := b.State(); s != BreakerClosed {
		t.Fatalf("state = %v, want closed after reset streak", s)
	}

	b.Failure()
	if s := b.State(); s != BreakerOpen {
		t.Fatalf("state = %v, want open", s)
	}
	if err := b.Allow(); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("Allow() error = %v, want ErrBreakerOpen", err)
	}
	if len(*changes) != 1 || (*changes)[0] != BreakerOpen {
		t.Errorf("changes = %v, want [open]", *changes)
	}
}

func TestBreaker_halfOpenRecovery(t *testing.T) {
	b, clock, changes := newTestBreaker(config.CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 2,
		Timeout:          time.Second,
	})

	b.Failure()
	clock.advance(2 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow() after timeout = %v, want nil", err)
	}
	if s := b.State(); s != BreakerHalfOpen {
		t.Fatalf("state = %v, want half-open", s)
	}

	b.Success()
	if s := b.State(); s != BreakerHalfOpen {
		t.Errorf("state after 1 success = %v, want half-open", s)
	}
	b.Success()
	if s := b.State(); s != BreakerClosed {
		t.Errorf("state after 2 successes = %v, want closed", s)
	}

	want := []BreakerState{BreakerOpen, BreakerHalfOpen, BreakerClosed}
	if len(*changes) != len(want) {
		t.Fatalf("changes = %v, want %v", *changes, want)
	}
	for i := range want {
		if (*changes)[i] != want[i] {
			t.Errorf("changes[%d] = %v, want %v", i, (*changes)[i], want[i])
		}
	}
}

func TestBreaker_halfOpenFailureReopens(t *testing.T) {
	b, clock, _ := newTestBreaker(config.CircuitBreakerConfig{FailureThreshold: 1, Timeout: time.Second})

	b.Failure()
	clock.advance(2 * time.Second)
	_ = b.Allow()
	b.Failure()

	if s := b.State(); s != BreakerOpen {
		t.Errorf("state = %v, want open", s)
	}
}

func TestBreaker_errorRateTrips(t *testing.T) {
	b, _, _ := newTestBreaker(config.CircuitBreakerConfig{
		FailureThreshold:   100,
		ErrorRateThreshold: 0.5,
		ErrorRateWindow:    time.Minute,
	})

	// Alternate so the consecutive threshold never trips.
	for i := 0; i < 4; i++ {
		b.Success()
		b.Failure()
	}
	if s := b.State(); s != BreakerClosed {
		t.Fatalf("state = %v, want closed below min samples", s)
	}
	b.Success()
	b.Failure()
	if s := b.State(); s != BreakerOpen {
		t.Errorf("state = %v, want open at 50%% error rate", s)
	}
}

func TestBreaker_errorRateWindowExpires(t *testing.T) {
	b, clock, _ := newTestBreaker(config.CircuitBreakerConfig{
		FailureThreshold:   100,
		ErrorRateThreshold: 0.5,
		ErrorRateWindow:    time.Minute,
	})

	// Nine failures stay below the sample minimum; a tenth in the same
	// window would trip.
	for i := 0; i < 9; i++ {
		b.Failure()
	}
	clock.advance(2 * time.Minute)
	b.Failure()
	if s := b.State(); s != BreakerClosed {
		t.Errorf("state = %v, want closed after window reset", s)
	}
}

func TestBreakerState_StringAndGauge(t *testing.T) {
	tests := []struct {
		state BreakerState
		str   string
		gauge float64
	}{
		{BreakerClosed, "closed", 0},
		{BreakerHalfOpen, "half-open", 1},
		{BreakerOpen, "open", 2},
		{BreakerState(42), "unknown", 0},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.str {
			t.Errorf("String() = %q, want %q", got, tt.str)
		}
		if got := tt.state.GaugeValue(); got != tt.gauge {
			t.Errorf("%s GaugeValue() = %v, want %v", tt.str, got, tt.gauge)
		}
	}
}

func TestNewBreaker_defaults(t *testing.T) {
	b := NewBreaker(config.CircuitBreakerConfig{}, nil)
	if b.cfg.FailureThreshold != 5 || b.cfg.SuccessThreshold != 2 || b.cfg.Timeout != 30*time.Second {
		t.Errorf("defaults = %+v", b.cfg)
	}
}
