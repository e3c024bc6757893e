// Package requestgate deduplicates concurrent network operations by
// category. Beginning a request in a category cancels the previous live
// request of that category; staleness is detected with IsCurrent, which is
// the authoritative check — context cancellation is only advisory cleanup
// for the transport.
package requestgate

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Category names one independent request slot.
type Category string

// Request categories used by the dashboard.
const (
	CategorySensorList    Category = "sensor-list"
	CategoryLatestValue   Category = "latest-value"
	CategoryAggregateData Category = "aggregate-data"
	CategoryActuators     Category = "actuators"
	CategoryLogTail       Category = "log-tail"
)

// Ticket is an opaque handle for one outstanding request. It carries a
// cancellation context for the transport and an identity for staleness
// comparison; nothing else.
type Ticket struct {
	id       uuid.UUID
	category Category
	ctx      context.Context
	cancel   context.CancelFunc
}

// Context returns the ticket's context. The transport should pass it to the
// underlying request so a superseded request can abort early.
func (t *Ticket) Context() context.Context {
	if t == nil {
		return context.Background()
	}
	return t.ctx
}

// Category returns the category the ticket was minted for.
func (t *Ticket) Category() Category {
	if t == nil {
		return ""
	}
	return t.category
}

// Gate tracks the live ticket per category.
type Gate struct {
	mu   sync.Mutex
	live map[Category]*Ticket
}

// New creates an empty Gate.
func New() *Gate {
	return &Gate{live: make(map[Category]*Ticket)}
}

// Begin mints a ticket for the category, cancelling any prior live ticket
// of the same category first. It never waits for the superseded request to
// finish; categories are independent of each other.
func (g *Gate) Begin(ctx context.Context, category Category) *Ticket {
	if ctx == nil {
		ctx = context.Background()
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.live[category]; ok {
		prev.cancel()
	}

	tctx, cancel := context.WithCancel(ctx)
	t := &Ticket{
		id:       uuid.New(),
		category: category,
		ctx:      tctx,
		cancel:   cancel,
	}
	g.live[category] = t
	return t
}

// IsCurrent reports whether the ticket is still the most recently begun
// ticket for its category. Callers must check this immediately after an
// awaited result resolves and before applying it to shared state; a false
// result means the response is stale and is discarded silently.
func (g *Gate) IsCurrent(t *Ticket) bool {
	if t == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	live, ok := g.live[t.category]
	return ok && live.id == t.id
}

// Finish releases the ticket's resources if it is still the live ticket.
// The slot stays occupied so a later IsCurrent on an even older ticket
// still reads as stale.
func (g *Gate) Finish(t *Ticket) {
	if t == nil {
		return
	}
	t.cancel()
}

// Cancel aborts the live ticket of a category, if any.
func (g *Gate) Cancel(category Category) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t, ok := g.live[category]; ok {
		t.cancel()
		delete(g.live, category)
	}
}

// CancelAll aborts every live ticket.
func (g *Gate) CancelAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for category, t := range g.live {
		t.cancel()
		delete(g.live, category)
	}
}
