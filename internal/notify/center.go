// Package notify holds the transient toast notifications emitted by
// mutations and fans them out to polling and streaming clients.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autobrr/autobrr-sub001/internal/config"
	"github.com/autobrr/autobrr-sub001/internal/observability"
)

// Kind is the toast style.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Toast is one notification.
type Toast struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier is what mutation code emits toasts through.
type Notifier interface {
	Notify(kind Kind, message string) Toast
}

const subscriberBuffer = 16

// Center keeps the most recent toasts in a bounded ring and broadcasts new
// ones to subscribers. Slow subscribers miss toasts instead of blocking.
type Center struct {
	mu      sync.Mutex
	ring    []Toast
	next    int
	full    bool
	seq     uint64
	ttl     time.Duration
	subs    map[chan Toast]struct{}
	now     func() time.Time
	metrics *observability.Metrics
}

// NewCenter creates a Center. metrics may be nil.
func NewCenter(cfg config.ToastConfig, metrics *observability.Metrics) *Center {
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = 100
	}
	return &Center{
		ring:    make([]Toast, capacity),
		ttl:     cfg.TTL,
		subs:    make(map[chan Toast]struct{}),
		now:     time.Now,
		metrics: metrics,
	}
}

// Notify records a toast and broadcasts it.
func (c *Center) Notify(kind Kind, message string) Toast {
	c.mu.Lock()
	c.seq++
	t := Toast{
		ID:        uuid.New().String(),
		Seq:       c.seq,
		Kind:      kind,
		Message:   message,
		CreatedAt: c.now().UTC(),
	}
	c.ring[c.next] = t
	c.next = (c.next + 1) % len(c.ring)
	if c.next == 0 {
		c.full = true
	}
	for ch := range c.subs {
		select {
		case ch <- t:
		default:
		}
	}
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RecordToast(string(kind))
	}
	return t
}

// Since returns live toasts with a sequence number greater than seq, oldest
// first.
func (c *Center) Since(seq uint64) []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.since(seq)
}

func (c *Center) since(seq uint64) []Toast {
	start, n := 0, c.next
	if c.full {
		start, n = c.next, len(c.ring)
	}
	now := c.now()
	out := make([]Toast, 0, n)
	for i := 0; i < n; i++ {
		t := c.ring[(start+i)%len(c.ring)]
		if t.Seq <= seq {
			continue
		}
		if c.ttl > 0 && now.Sub(t.CreatedAt) > c.ttl {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Subscribe returns a channel of new toasts and a function that ends the
// subscription and closes the channel.
func (c *Center) Subscribe() (<-chan Toast, func()) {
	_, ch, cancel := c.subscribe(nil)
	return ch, cancel
}

// SubscribeSince is Subscribe plus the live toasts after seq. Every toast
// lands either in the backlog or on the channel, never both.
func (c *Center) SubscribeSince(seq uint64) ([]Toast, <-chan Toast, func()) {
	return c.subscribe(&seq)
}

func (c *Center) subscribe(since *uint64) ([]Toast, <-chan Toast, func()) {
	ch := make(chan Toast, subscriberBuffer)
	var backlog []Toast
	c.mu.Lock()
	if since != nil {
		backlog = c.since(*since)
	}
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return backlog, ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}
