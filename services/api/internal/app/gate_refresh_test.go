package app

import (
	"context"
	"testing"
	"time"

	"github.com/cimillas/panache/services/api/internal/cache"
	"github.com/cimillas/panache/services/api/internal/clock"
	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/cimillas/panache/services/api/internal/gate"
)

// staleSource serves concert records captured before any gate entry.
type staleSource struct {
	*memStore
	concert domain.TicketRecord
}

func (s staleSource) ConcertTicket(context.Context, int64) (domain.TicketRecord, error) {
	return s.concert, nil
}

func TestGate_StaleRefreshDoesNotReopenConcertGate(t *testing.T) {
	t.Parallel()

	store := newMemStore()
	concert := store.addConcert(domain.Concert{Name: "Headliner", Date: "2026-02-14"},
		domain.TierInventory{Tier: "GOLD", Price: 100, TicketLimit: 10})
	ticket := &domain.ConcertTicket{ConcertID: concert.ID, Tier: "GOLD", TicketCode: newTicketCode(concertTicketPrefix), BuyerName: "Meera"}
	ctx := context.Background()
	if err := store.CreateConcertTicket(ctx, ticket); err != nil {
		t.Fatalf("create ticket: %v", err)
	}

	cal, err := clock.NewCalendar(clock.NewFixed(time.Date(2026, 2, 14, 4, 30, 0, 0, time.UTC)), "Asia/Kolkata", "2026-02-14")
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	c := cache.New()
	tasks := NewTaskQueue(quietLogger(), 16)
	refresher := NewRefresher(store, c, tasks, quietLogger())
	if err := NewHydrator(store, c, quietLogger()).Run(ctx); err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	before, err := store.ConcertTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("read ticket: %v", err)
	}
	svc := gate.NewService(c, store, cal, refresher, quietLogger())
	scan := gate.VerifyScanRequest{TicketCode: ticket.TicketCode, GateID: domain.GateCelebrity}

	if res := svc.VerifyScan(ctx, scan); res.Reply.Type != gate.TypeScanSuccess {
		t.Fatalf("expected first scan to pass, got %+v", res.Reply)
	}

	stale := NewRefresher(staleSource{memStore: store, concert: before}, c, tasks, quietLogger())
	if _, err := stale.Refresh(ctx, domain.ConcertOwner(ticket.ID)); err != nil {
		t.Fatalf("stale refresh: %v", err)
	}
	if rec, _, _ := c.Lookup(ticket.TicketCode); rec.Gates.ArenaGateUsed {
		t.Fatalf("expected the stale refresh to clear the cached flag")
	}

	res := svc.VerifyScan(ctx, scan)
	if res.Reply.Type != gate.TypeScanError {
		t.Fatalf("expected second scan denied, got %+v", res.Reply)
	}
	if got := res.Reply.Payload.(gate.ScanError).Reason; got != domain.DenyAlreadyUsed {
		t.Fatalf("expected %s, got %s", domain.DenyAlreadyUsed, got)
	}
	if rows, _ := store.ConcertEntries(ctx, ticket.ID); len(rows) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(rows))
	}

	tasks.Drain(ctx)
	rec, _, _ := c.Lookup(ticket.TicketCode)
	if !rec.Gates.ArenaGateUsed || rec.Gates.MainGateUsed {
		t.Fatalf("expected cache rebuilt from the ledger, got %+v", rec.Gates)
	}
}
