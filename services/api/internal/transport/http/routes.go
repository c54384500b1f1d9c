package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Services bundles what the HTTP surface needs.
type Services struct {
	Teams     TeamRegistrar
	Tickets   TicketPurchaser
	Orders    OrderCreator
	Catalog   AdminCatalogService
	Admin     AdminTicketService
	Rebuilder CacheRebuilder
	Cache     interface {
		Readiness
		CacheSize
	}
	// Gate serves the websocket endpoint; it is mounted at /ws when set.
	Gate http.Handler
}

// NewRouter wires every route. Unknown paths and wrong methods get JSON
// errors.
func NewRouter(s Services) *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = NotFoundHandler()
	r.MethodNotAllowedHandler = MethodNotAllowedHandler()

	r.HandleFunc("/health", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ready", ReadyHandler(s.Cache)).Methods(http.MethodGet)
	if s.Gate != nil {
		r.Handle("/ws", s.Gate).Methods(http.MethodGet)
	}

	r.HandleFunc("/teams", HandleRegisterTeam(s.Teams)).Methods(http.MethodPost)
	r.HandleFunc("/events/{eventID}/orders", HandleCreateEventOrder(s.Orders)).Methods(http.MethodPost)
	r.HandleFunc("/concerts/{concertID}/orders", HandleCreateConcertOrder(s.Orders)).Methods(http.MethodPost)
	r.HandleFunc("/concerts/{concertID}/tickets", HandlePurchaseTicket(s.Tickets)).Methods(http.MethodPost)

	admin := r.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/events", HandleListEvents(s.Catalog)).Methods(http.MethodGet)
	admin.HandleFunc("/events", HandleCreateEvent(s.Catalog)).Methods(http.MethodPost)
	admin.HandleFunc("/events/{eventID}/invite-codes", HandleIssueInviteCodes(s.Catalog)).Methods(http.MethodPost)
	admin.HandleFunc("/departments", HandleCreateDepartment(s.Catalog)).Methods(http.MethodPost)
	admin.HandleFunc("/concerts", HandleCreateConcert(s.Catalog)).Methods(http.MethodPost)
	admin.HandleFunc("/concerts/{concertID}/tiers", HandleListTiers(s.Catalog)).Methods(http.MethodGet)
	admin.HandleFunc("/teams/{teamID}", HandleGetTeam(s.Admin)).Methods(http.MethodGet)
	admin.HandleFunc("/teams/{teamID}/payment-status", HandleSetPaymentStatus(s.Admin)).Methods(http.MethodPost)
	admin.HandleFunc("/teams/{teamID}/members/{memberID}/entries", HandleMemberHistory(s.Admin)).Methods(http.MethodGet)
	admin.HandleFunc("/concert-tickets/{ticketID}/entries", HandleConcertTicketHistory(s.Admin)).Methods(http.MethodGet)
	admin.HandleFunc("/entries", HandleManualEntry(s.Admin)).Methods(http.MethodPost)
	admin.HandleFunc("/cache/rehydrate", HandleRehydrate(s.Rebuilder, s.Cache)).Methods(http.MethodPost)

	return r
}
