package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cimillas/panache/services/api/internal/app"
	"github.com/cimillas/panache/services/api/internal/domain"
)

type fakeAdmin struct {
	events     []domain.Event
	eventIn    app.CreateEventInput
	concertIn  app.CreateConcertInput
	statusSet  domain.PaymentStatus
	manualIn   app.ManualEntryInput
	inviteN    int
	history    []domain.EntryLogEntry
	err        error
	rebuilds   int
	rebuildErr error
}

func (f *fakeAdmin) CreateEvent(_ context.Context, in app.CreateEventInput) (domain.Event, error) {
	f.eventIn = in
	if f.err != nil {
		return domain.Event{}, f.err
	}
	return domain.Event{ID: 1, Name: in.Name, Date: "2026-02-14", Fee: in.Fee, MinTeam: 1, MaxTeam: 4}, nil
}

func (f *fakeAdmin) ListEvents(context.Context) ([]domain.Event, error) { return f.events, f.err }

func (f *fakeAdmin) CreateDepartment(_ context.Context, name, secret string) (domain.Department, error) {
	if f.err != nil {
		return domain.Department{}, f.err
	}
	return domain.Department{ID: 2, Name: name, SecretCode: secret}, nil
}

func (f *fakeAdmin) CreateConcert(_ context.Context, in app.CreateConcertInput) (domain.Concert, []domain.TierInventory, error) {
	f.concertIn = in
	if f.err != nil {
		return domain.Concert{}, nil, f.err
	}
	tiers := make([]domain.TierInventory, 0, len(in.Tiers))
	for _, t := range in.Tiers {
		tiers = append(tiers, domain.TierInventory{ConcertID: 3, Tier: t.Tier, Price: t.Price, TicketLimit: t.TicketLimit})
	}
	return domain.Concert{ID: 3, Name: in.Name, Date: in.Date}, tiers, nil
}

func (f *fakeAdmin) ListTiers(_ context.Context, concertID int64) ([]domain.TierInventory, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.TierInventory{{ConcertID: concertID, Tier: "GOLD", Price: 1500, TicketLimit: 10, TicketsSold: 4}}, nil
}

func (f *fakeAdmin) IssueInviteCodes(_ context.Context, _ int64, count int) ([]string, error) {
	f.inviteN = count
	if f.err != nil {
		return nil, f.err
	}
	codes := make([]string, count)
	for i := range codes {
		codes[i] = "INV"
	}
	return codes, nil
}

func (f *fakeAdmin) GetTeam(_ context.Context, teamID int64) (domain.Team, error) {
	if f.err != nil {
		return domain.Team{}, f.err
	}
	return domain.Team{ID: teamID, Name: "Alpha", TicketCode: "PAN-T-1", Members: []domain.TeamMember{{ID: 5, Name: "Asha"}}}, nil
}

func (f *fakeAdmin) SetTeamPaymentStatus(_ context.Context, _ int64, status domain.PaymentStatus) error {
	f.statusSet = status
	return f.err
}

func (f *fakeAdmin) RecordManualEntry(_ context.Context, in app.ManualEntryInput) (domain.EntryLogEntry, error) {
	f.manualIn = in
	if f.err != nil {
		return domain.EntryLogEntry{}, f.err
	}
	return domain.EntryLogEntry{ID: 1, TeamID: in.TeamID, MemberID: in.MemberID, ConcertTicketID: in.ConcertTicketID,
		GateID: in.GateID, Type: in.Type, DayNumber: 1, LoggedAt: time.Date(2026, 2, 14, 5, 0, 0, 0, time.UTC)}, nil
}

func (f *fakeAdmin) MemberHistory(context.Context, int64, int64) ([]domain.EntryLogEntry, error) {
	return f.history, f.err
}

func (f *fakeAdmin) ConcertTicketHistory(context.Context, int64) ([]domain.EntryLogEntry, error) {
	return f.history, f.err
}

func (f *fakeAdmin) Run(context.Context) error {
	f.rebuilds++
	return f.rebuildErr
}

func (f *fakeAdmin) Ready() bool { return f.rebuilds > 0 }
func (f *fakeAdmin) Len() int    { return 42 }

func adminRouter(f *fakeAdmin) http.Handler {
	return NewRouter(Services{
		Teams:     &fakeRegistrar{},
		Tickets:   &fakePurchaser{},
		Orders:    &fakeOrders{},
		Catalog:   f,
		Admin:     f,
		Rebuilder: f,
		Cache:     f,
	})
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminEvents(t *testing.T) {
	t.Parallel()

	f := &fakeAdmin{events: []domain.Event{{ID: 1, Name: "Hackathon", Date: "2026-02-14"}}}
	h := adminRouter(f)

	rec := serve(h, http.MethodPost, "/admin/events", `{"name":"Robo Wars","date":"2026-02-15","fee":300,"min_team_size":2,"max_team_size":4}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	if f.eventIn.Name != "Robo Wars" || f.eventIn.Fee != 300 || f.eventIn.MaxTeam != 4 {
		t.Fatalf("unexpected input %+v", f.eventIn)
	}

	rec = serve(h, http.MethodPost, "/admin/events", `{"name":"x","date":"15-02-2026"}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), codeInvalidField) {
		t.Fatalf("expected date validation failure, got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(h, http.MethodGet, "/admin/events", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var events []eventResponse
	if err := json.NewDecoder(rec.Body).Decode(&events); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(events) != 1 || events[0].Name != "Hackathon" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestAdminCatalog(t *testing.T) {
	t.Parallel()

	f := &fakeAdmin{}
	h := adminRouter(f)

	rec := serve(h, http.MethodPost, "/admin/departments", `{"name":"CSE","secret_code":"CSE-2026"}`)
	if rec.Code != http.StatusCreated || strings.Contains(rec.Body.String(), "CSE-2026") {
		t.Fatalf("expected department created without echoing secret, got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(h, http.MethodPost, "/admin/concerts", `{"name":"Headliner","date":"2026-02-15","tiers":[{"tier":"GOLD","price":1500,"ticket_limit":100}]}`)
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"available":100`) {
		t.Fatalf("unexpected concert response %d %s", rec.Code, rec.Body.String())
	}
	if len(f.concertIn.Tiers) != 1 || f.concertIn.Tiers[0].TicketLimit != 100 {
		t.Fatalf("unexpected concert input %+v", f.concertIn)
	}

	rec = serve(h, http.MethodPost, "/admin/concerts", `{"name":"Headliner","date":"2026-02-15","tiers":[{"tier":"GOLD","price":1500,"ticket_limit":0}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected zero limit rejected, got %d", rec.Code)
	}

	rec = serve(h, http.MethodGet, "/admin/concerts/3/tiers", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"available":6`) {
		t.Fatalf("unexpected tiers response %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(h, http.MethodPost, "/admin/events/1/invite-codes", `{"count":3}`)
	if rec.Code != http.StatusCreated || f.inviteN != 3 {
		t.Fatalf("unexpected invite response %d %s", rec.Code, rec.Body.String())
	}
	rec = serve(h, http.MethodPost, "/admin/events/1/invite-codes", `{"count":501}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected oversized batch rejected, got %d", rec.Code)
	}

	f.err = domain.ErrConcertNotFound
	rec = serve(h, http.MethodGet, "/admin/concerts/99/tiers", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), codeConcertNotFound) {
		t.Fatalf("expected concert not found, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAdminTeamsAndLedger(t *testing.T) {
	t.Parallel()

	f := &fakeAdmin{history: []domain.EntryLogEntry{
		{ID: 1, TeamID: 1, MemberID: 5, GateID: domain.GateMain, Type: domain.EntryTypeEntry, DayNumber: 1},
		{ID: 2, TeamID: 1, MemberID: 5, GateID: domain.GateMain, Type: domain.EntryTypeExit, DayNumber: 1},
	}}
	h := adminRouter(f)

	rec := serve(h, http.MethodGet, "/admin/teams/1", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ticket_code":"PAN-T-1"`) {
		t.Fatalf("unexpected team response %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(h, http.MethodPost, "/admin/teams/1/payment-status", `{"status":"APPROVED"}`)
	if rec.Code != http.StatusNoContent || f.statusSet != domain.PaymentStatusApproved {
		t.Fatalf("unexpected payment status response %d, set %q", rec.Code, f.statusSet)
	}
	rec = serve(h, http.MethodPost, "/admin/teams/1/payment-status", `{"status":"MAYBE"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown status rejected, got %d", rec.Code)
	}

	rec = serve(h, http.MethodPost, "/admin/entries", `{"team_id":1,"member_id":5,"gate_id":"MAIN_GATE","type":"ENTRY"}`)
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"type":"ENTRY"`) {
		t.Fatalf("unexpected manual entry response %d %s", rec.Code, rec.Body.String())
	}
	if f.manualIn.MemberID != 5 || f.manualIn.GateID != domain.GateMain {
		t.Fatalf("unexpected manual entry input %+v", f.manualIn)
	}
	rec = serve(h, http.MethodPost, "/admin/entries", `{"concert_ticket_id":3,"gate_id":"SIDE_GATE","type":"ENTRY"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected unknown gate rejected, got %d", rec.Code)
	}

	rec = serve(h, http.MethodGet, "/admin/teams/1/members/5/entries", "")
	var entries []entryResponse
	if err := json.NewDecoder(rec.Body).Decode(&entries); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(entries) != 2 || entries[1].Type != "EXIT" {
		t.Fatalf("unexpected history %+v", entries)
	}

	rec = serve(h, http.MethodGet, "/admin/concert-tickets/3/entries", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	f.err = domain.ErrMemberNotFound
	rec = serve(h, http.MethodGet, "/admin/teams/1/members/99/entries", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), codeMemberNotFound) {
		t.Fatalf("expected member not found, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestAdminRehydrate(t *testing.T) {
	t.Parallel()

	f := &fakeAdmin{}
	h := adminRouter(f)

	if rec := serve(h, http.MethodGet, "/ready", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected not ready before hydration, got %d", rec.Code)
	}

	rec := serve(h, http.MethodPost, "/admin/cache/rehydrate", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"entries":42`) {
		t.Fatalf("unexpected rehydrate response %d %s", rec.Code, rec.Body.String())
	}
	if rec := serve(h, http.MethodGet, "/ready", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected ready after hydration, got %d", rec.Code)
	}

	f.rebuildErr = app.ErrHydrationInProgress
	rec = serve(h, http.MethodPost, "/admin/cache/rehydrate", "")
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), codeHydrationInProgress) {
		t.Fatalf("expected conflict, got %d %s", rec.Code, rec.Body.String())
	}

	f.rebuildErr = errors.New("db down")
	rec = serve(h, http.MethodPost, "/admin/cache/rehydrate", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestRouter_Fallbacks(t *testing.T) {
	t.Parallel()

	h := adminRouter(&fakeAdmin{})

	rec := serve(h, http.MethodGet, "/missing", "")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), codeNotFound) {
		t.Fatalf("expected JSON 404, got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(h, http.MethodGet, "/teams", "")
	if rec.Code != http.StatusMethodNotAllowed || !strings.Contains(rec.Body.String(), codeMethodNotAllowed) {
		t.Fatalf("expected JSON 405, got %d %s", rec.Code, rec.Body.String())
	}

	rec = serve(h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rec.Code)
	}
}
