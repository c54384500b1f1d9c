package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/cimillas/panache/services/api/internal/app"
	"github.com/cimillas/panache/services/api/internal/cache"
	"github.com/cimillas/panache/services/api/internal/clock"
	"github.com/cimillas/panache/services/api/internal/payment"
	"github.com/cimillas/panache/services/api/internal/storage/postgres"
	"github.com/cimillas/panache/services/api/internal/testutil"
)

type apiErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestIssuanceFlow_HTTPIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)

	logger, _ := testutil.Logger()
	cal, err := clock.NewCalendar(clock.NewFixed(time.Date(2026, 2, 14, 4, 30, 0, 0, time.UTC)), "Asia/Kolkata", "2026-02-14")
	if err != nil {
		t.Fatalf("calendar: %v", err)
	}
	verifier := payment.NewVerifier("secret")
	ticketCache := cache.New()
	tasks := app.NewTaskQueue(logger, 64)
	tickets := postgres.NewTicketRepository(pool)
	refresher := app.NewRefresher(tickets, ticketCache, tasks, logger)
	hydrator := app.NewHydrator(tickets, ticketCache, logger)
	admin := app.NewAdminService(postgres.NewAdminRepository(pool), postgres.NewLedgerRepository(pool), refresher, cal)

	h := NewRouter(Services{
		Teams:     app.NewRegistrationService(postgres.NewRegistrationRepository(pool), verifier, refresher, tasks, nil, cal),
		Tickets:   app.NewConcertService(postgres.NewConcertRepository(pool), verifier, refresher, tasks, nil, cal),
		Orders:    app.NewCheckoutService(postgres.NewCheckoutRepository(pool), nil),
		Catalog:   admin,
		Admin:     admin,
		Rebuilder: hydrator,
		Cache:     ticketCache,
	})

	rec := serve(h, http.MethodPost, "/admin/events", `{"name":"Hackathon","date":"2026-02-14","min_team_size":1,"max_team_size":3}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create event: %d %s", rec.Code, rec.Body.String())
	}
	var event eventResponse
	if err := json.NewDecoder(rec.Body).Decode(&event); err != nil {
		t.Fatalf("decode event: %v", err)
	}

	if rec := serve(h, http.MethodPost, "/admin/departments", `{"name":"CSE","secret_code":"CSE-2026"}`); rec.Code != http.StatusCreated {
		t.Fatalf("create department: %d %s", rec.Code, rec.Body.String())
	}

	body := fmt.Sprintf(`{"event_id":%d,"code":"CSE-2026","team_name":"Alpha","members":[{"name":"Asha"},{"name":"Ravi"}]}`, event.ID)
	rec = serve(h, http.MethodPost, "/teams", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register team: %d %s", rec.Code, rec.Body.String())
	}
	var team teamResponse
	if err := json.NewDecoder(rec.Body).Decode(&team); err != nil {
		t.Fatalf("decode team: %v", err)
	}
	if team.PaymentStatus != "EXEMPT" || len(team.Members) != 2 {
		t.Fatalf("unexpected team %+v", team)
	}

	rec = serve(h, http.MethodPost, "/teams", body)
	var apiErr apiErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&apiErr); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if rec.Code != http.StatusConflict || apiErr.Code != codeDuplicateRegistration {
		t.Fatalf("expected duplicate registration, got %d %+v", rec.Code, apiErr)
	}

	if rec := serve(h, http.MethodGet, "/ready", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected not ready before hydration, got %d", rec.Code)
	}
	rec = serve(h, http.MethodPost, "/admin/cache/rehydrate", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("rehydrate: %d %s", rec.Code, rec.Body.String())
	}
	if _, ok, _ := ticketCache.Lookup(team.TicketCode); !ok {
		t.Fatalf("expected team pass in cache after rehydrate")
	}

	member := team.Members[0]
	entry := fmt.Sprintf(`{"team_id":%d,"member_id":%d,"gate_id":"MAIN_GATE","type":"ENTRY"}`, team.ID, member.ID)
	if rec := serve(h, http.MethodPost, "/admin/entries", entry); rec.Code != http.StatusCreated {
		t.Fatalf("manual entry: %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(h, http.MethodGet, fmt.Sprintf("/admin/teams/%d/members/%d/entries", team.ID, member.ID), "")
	var entries []entryResponse
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 1 || entries[0].DayNumber != 1 {
		t.Fatalf("unexpected entries %+v", entries)
	}

	rec2, ok, err := ticketCache.Lookup(team.TicketCode)
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if m := rec2.Member(member.ID); m == nil || m.Status != "ENTRY" {
		t.Fatalf("expected member inside after manual entry, got %+v", rec2.Members)
	}
}
