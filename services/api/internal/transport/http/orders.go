package http

import (
	"context"
	"net/http"

	"github.com/cimillas/panache/services/api/internal/payment"
)

// OrderCreator opens gateway orders for the client to pay against.
type OrderCreator interface {
	CreateConcertOrder(ctx context.Context, concertID int64, tier string) (payment.Order, error)
	CreateEventOrder(ctx context.Context, eventID int64) (payment.Order, error)
}

type concertOrderRequest struct {
	Tier string `json:"tier" validate:"required,max=32"`
}

func HandleCreateConcertOrder(svc OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		concertID, ok := pathID(w, r, "concertID")
		if !ok {
			return
		}
		var req concertOrderRequest
		if !decodeRequest(w, r, &req) {
			return
		}
		order, err := svc.CreateConcertOrder(r.Context(), concertID, req.Tier)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, order)
	}
}

func HandleCreateEventOrder(svc OrderCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eventID, ok := pathID(w, r, "eventID")
		if !ok {
			return
		}
		order, err := svc.CreateEventOrder(r.Context(), eventID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, order)
	}
}
