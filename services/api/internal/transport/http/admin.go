package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cimillas/panache/services/api/internal/app"
	"github.com/cimillas/panache/services/api/internal/domain"
)

// AdminCatalogService is the minimal interface needed for catalog endpoints.
type AdminCatalogService interface {
	CreateEvent(ctx context.Context, in app.CreateEventInput) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	CreateDepartment(ctx context.Context, name, secret string) (domain.Department, error)
	CreateConcert(ctx context.Context, in app.CreateConcertInput) (domain.Concert, []domain.TierInventory, error)
	ListTiers(ctx context.Context, concertID int64) ([]domain.TierInventory, error)
	IssueInviteCodes(ctx context.Context, eventID int64, count int) ([]string, error)
}

// AdminTicketService is the minimal interface needed for pass and ledger
// endpoints.
type AdminTicketService interface {
	GetTeam(ctx context.Context, teamID int64) (domain.Team, error)
	SetTeamPaymentStatus(ctx context.Context, teamID int64, status domain.PaymentStatus) error
	RecordManualEntry(ctx context.Context, in app.ManualEntryInput) (domain.EntryLogEntry, error)
	MemberHistory(ctx context.Context, teamID, memberID int64) ([]domain.EntryLogEntry, error)
	ConcertTicketHistory(ctx context.Context, ticketID int64) ([]domain.EntryLogEntry, error)
}

// CacheRebuilder reloads the ticket cache from the durable store.
type CacheRebuilder interface {
	Run(ctx context.Context) error
}

// CacheSize reports how many tickets the cache holds.
type CacheSize interface {
	Len() int
}

type createEventRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Date    string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Fee     int64  `json:"fee" validate:"gte=0"`
	MinTeam int    `json:"min_team_size" validate:"gte=0"`
	MaxTeam int    `json:"max_team_size" validate:"gte=0"`
}

type eventResponse struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Date    string `json:"date"`
	Fee     int64  `json:"fee"`
	MinTeam int    `json:"min_team_size"`
	MaxTeam int    `json:"max_team_size"`
}

func newEventResponse(e domain.Event) eventResponse {
	return eventResponse{ID: e.ID, Name: e.Name, Date: e.Date, Fee: e.Fee, MinTeam: e.MinTeam, MaxTeam: e.MaxTeam}
}

func HandleListEvents(svc AdminCatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := svc.ListEvents(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		resp := make([]eventResponse, 0, len(events))
		for _, e := range events {
			resp = append(resp, newEventResponse(e))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleCreateEvent(svc AdminCatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createEventRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		event, err := svc.CreateEvent(r.Context(), app.CreateEventInput{
			Name:    req.Name,
			Date:    req.Date,
			Fee:     req.Fee,
			MinTeam: req.MinTeam,
			MaxTeam: req.MaxTeam,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newEventResponse(event))
	}
}

type createDepartmentRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	SecretCode string `json:"secret_code" validate:"required,min=4,max=64"`
}

type departmentResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func HandleCreateDepartment(svc AdminCatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createDepartmentRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		dept, err := svc.CreateDepartment(r.Context(), req.Name, req.SecretCode)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, departmentResponse{ID: dept.ID, Name: dept.Name})
	}
}

type createConcertRequest struct {
	Name  string        `json:"name" validate:"required,max=120"`
	Date  string        `json:"date" validate:"required,datetime=2006-01-02"`
	Tiers []tierRequest `json:"tiers" validate:"required,min=1,dive"`
}

type tierRequest struct {
	Tier        string `json:"tier" validate:"required,max=32"`
	Price       int64  `json:"price" validate:"gte=0"`
	TicketLimit int    `json:"ticket_limit" validate:"gt=0"`
}

type tierResponse struct {
	Tier        string `json:"tier"`
	Price       int64  `json:"price"`
	TicketLimit int    `json:"ticket_limit"`
	TicketsSold int    `json:"tickets_sold"`
	Available   int    `json:"available"`
}

type concertResponse struct {
	ID    int64          `json:"id"`
	Name  string         `json:"name"`
	Date  string         `json:"date"`
	Tiers []tierResponse `json:"tiers"`
}

func newTierResponses(tiers []domain.TierInventory) []tierResponse {
	resp := make([]tierResponse, 0, len(tiers))
	for _, t := range tiers {
		resp = append(resp, tierResponse{
			Tier:        t.Tier,
			Price:       t.Price,
			TicketLimit: t.TicketLimit,
			TicketsSold: t.TicketsSold,
			Available:   t.Available(),
		})
	}
	return resp
}

func HandleCreateConcert(svc AdminCatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createConcertRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		in := app.CreateConcertInput{Name: req.Name, Date: req.Date}
		for _, t := range req.Tiers {
			in.Tiers = append(in.Tiers, app.TierInput{Tier: t.Tier, Price: t.Price, TicketLimit: t.TicketLimit})
		}
		concert, tiers, err := svc.CreateConcert(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, concertResponse{
			ID:    concert.ID,
			Name:  concert.Name,
			Date:  concert.Date,
			Tiers: newTierResponses(tiers),
		})
	}
}

func HandleListTiers(svc AdminCatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		concertID, ok := pathID(w, r, "concertID")
		if !ok {
			return
		}
		tiers, err := svc.ListTiers(r.Context(), concertID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newTierResponses(tiers))
	}
}

type inviteCodesRequest struct {
	Count int `json:"count" validate:"required,gt=0,lte=500"`
}

type inviteCodesResponse struct {
	EventID int64    `json:"event_id"`
	Codes   []string `json:"codes"`
}

func HandleIssueInviteCodes(svc AdminCatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, ok := pathID(w, r, "eventID")
		if !ok {
			return
		}
		var req inviteCodesRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		codes, err := svc.IssueInviteCodes(r.Context(), eventID, req.Count)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, inviteCodesResponse{EventID: eventID, Codes: codes})
	}
}

func HandleGetTeam(svc AdminTicketService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID, ok := pathID(w, r, "teamID")
		if !ok {
			return
		}
		team, err := svc.GetTeam(r.Context(), teamID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newTeamResponse(team))
	}
}

type paymentStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING PAID EXEMPT APPROVED REJECTED"`
}

func HandleSetPaymentStatus(svc AdminTicketService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID, ok := pathID(w, r, "teamID")
		if !ok {
			return
		}
		var req paymentStatusRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		if err := svc.SetTeamPaymentStatus(r.Context(), teamID, domain.PaymentStatus(req.Status)); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type manualEntryRequest struct {
	TeamID          int64  `json:"team_id,omitempty" validate:"gte=0"`
	MemberID        int64  `json:"member_id,omitempty" validate:"gte=0"`
	ConcertTicketID int64  `json:"concert_ticket_id,omitempty" validate:"gte=0"`
	GateID          string `json:"gate_id" validate:"required,oneof=MAIN_GATE CELEBRITY_GATE"`
	Type            string `json:"type" validate:"required,oneof=ENTRY EXIT"`
}

type entryResponse struct {
	ID              int64     `json:"id"`
	TeamID          int64     `json:"team_id,omitempty"`
	MemberID        int64     `json:"member_id,omitempty"`
	ConcertTicketID int64     `json:"concert_ticket_id,omitempty"`
	GateID          string    `json:"gate_id"`
	Type            string    `json:"type"`
	DayNumber       int       `json:"day_number"`
	LoggedAt        time.Time `json:"logged_at"`
}

func newEntryResponse(e domain.EntryLogEntry) entryResponse {
	return entryResponse{
		ID:              e.ID,
		TeamID:          e.TeamID,
		MemberID:        e.MemberID,
		ConcertTicketID: e.ConcertTicketID,
		GateID:          string(e.GateID),
		Type:            string(e.Type),
		DayNumber:       e.DayNumber,
		LoggedAt:        e.LoggedAt,
	}
}

func newEntryResponses(entries []domain.EntryLogEntry) []entryResponse {
	resp := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, newEntryResponse(e))
	}
	return resp
}

// HandleManualEntry records an operator override on the ledger. Exactly one of
// team_id+member_id or concert_ticket_id must be given.
func HandleManualEntry(svc AdminTicketService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req manualEntryRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		entry, err := svc.RecordManualEntry(r.Context(), app.ManualEntryInput{
			TeamID:          req.TeamID,
			MemberID:        req.MemberID,
			ConcertTicketID: req.ConcertTicketID,
			GateID:          domain.GateID(req.GateID),
			Type:            domain.EntryType(req.Type),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newEntryResponse(entry))
	}
}

func HandleMemberHistory(svc AdminTicketService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID, ok := pathID(w, r, "teamID")
		if !ok {
			return
		}
		memberID, ok := pathID(w, r, "memberID")
		if !ok {
			return
		}
		entries, err := svc.MemberHistory(r.Context(), teamID, memberID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newEntryResponses(entries))
	}
}

func HandleConcertTicketHistory(svc AdminTicketService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticketID, ok := pathID(w, r, "ticketID")
		if !ok {
			return
		}
		entries, err := svc.ConcertTicketHistory(r.Context(), ticketID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newEntryResponses(entries))
	}
}

type rehydrateResponse struct {
	Entries  int    `json:"entries"`
	Duration string `json:"duration"`
}

// HandleRehydrate rebuilds the ticket cache. Gate scans are answered with
// "system warming up" until it completes. The rebuild outlives a dropped
// client connection.
func HandleRehydrate(rebuilder CacheRebuilder, cache CacheSize) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if err := rebuilder.Run(context.WithoutCancel(r.Context())); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rehydrateResponse{
			Entries:  cache.Len(),
			Duration: time.Since(start).String(),
		})
	}
}
