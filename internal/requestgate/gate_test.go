package requestgate

import (
	"context"
	"testing"
	"time"
)

func TestBeginSupersedesPriorTicket(t *testing.T) {
	g := New()

	a := g.Begin(context.Background(), CategoryAggregateData)
	if !g.IsCurrent(a) {
		t.Fatal("fresh ticket should be current")
	}

	b := g.Begin(context.Background(), CategoryAggregateData)

	if g.IsCurrent(a) {
		t.Error("superseded ticket must not be current")
	}
	if !g.IsCurrent(b) {
		t.Error("newest ticket must be current")
	}

	select {
	case <-a.Context().Done():
	default:
		t.Error("superseded ticket's context should be cancelled")
	}
	select {
	case <-b.Context().Done():
		t.Error("live ticket's context must not be cancelled")
	default:
	}
}

func TestCategoriesAreIndependent(t *testing.T) {
	g := New()

	agg := g.Begin(context.Background(), CategoryAggregateData)
	latest := g.Begin(context.Background(), CategoryLatestValue)
	g.Begin(context.Background(), CategoryAggregateData)

	if !g.IsCurrent(latest) {
		t.Error("beginning aggregate-data must not supersede latest-value")
	}
	select {
	case <-latest.Context().Done():
		t.Error("other category's context must not be cancelled")
	default:
	}
	if g.IsCurrent(agg) {
		t.Error("old aggregate ticket should be stale")
	}
}

// Resolution order does not matter: the last Begin wins even if the older
// request resolves after the newer one.
func TestStaleResultDiscardedRegardlessOfResolutionOrder(t *testing.T) {
	g := New()

	type result struct {
		ticket *Ticket
		rows   string
	}

	resolveA := make(chan struct{})
	resolveB := make(chan struct{})
	results := make(chan result, 2)

	fetch := func(ticket *Ticket, rows string, gate <-chan struct{}) {
		<-gate
		results <- result{ticket: ticket, rows: rows}
	}

	a := g.Begin(context.Background(), CategoryAggregateData)
	go fetch(a, "old rows", resolveA)
	b := g.Begin(context.Background(), CategoryAggregateData)
	go fetch(b, "new rows", resolveB)

	// B resolves first, then A.
	close(resolveB)
	close(resolveA)

	applied := ""
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			if g.IsCurrent(r.ticket) {
				applied = r.rows
			}
		case <-time.After(time.Second):
			t.Fatal("fetch did not resolve")
		}
	}

	if applied != "new rows" {
		t.Fatalf("applied %q, want %q", applied, "new rows")
	}
}

func TestCancelAndCancelAll(t *testing.T) {
	g := New()

	a := g.Begin(context.Background(), CategoryAggregateData)
	b := g.Begin(context.Background(), CategoryLatestValue)

	g.Cancel(CategoryAggregateData)
	if g.IsCurrent(a) {
		t.Error("cancelled ticket should not be current")
	}
	if !g.IsCurrent(b) {
		t.Error("Cancel must not touch other categories")
	}

	g.CancelAll()
	if g.IsCurrent(b) {
		t.Error("CancelAll should invalidate every ticket")
	}
	select {
	case <-b.Context().Done():
	default:
		t.Error("CancelAll should cancel ticket contexts")
	}
}

func TestTicketContextInheritsParent(t *testing.T) {
	g := New()
	parent, cancel := context.WithCancel(context.Background())

	tk := g.Begin(parent, CategoryLogTail)
	cancel()

	select {
	case <-tk.Context().Done():
	case <-time.After(time.Second):
		t.Error("ticket context should follow parent cancellation")
	}
}

func TestNilTicketIsNeverCurrent(t *testing.T) {
	g := New()
	if g.IsCurrent(nil) {
		t.Error("nil ticket must not be current")
	}
	g.Finish(nil) // must not panic
}
