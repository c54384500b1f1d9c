package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cimillas/panache/services/api/internal/app"
	"github.com/cimillas/panache/services/api/internal/payment"
)

// TicketPurchaser is the minimal interface needed to issue concert tickets.
type TicketPurchaser interface {
	PurchaseTicket(ctx context.Context, in app.PurchaseTicketInput) (app.PurchaseTicketResult, error)
}

// HandlePurchaseTicket returns an HTTP handler issuing a concert ticket for a
// verified payment. A replayed payment answers 200 with the original ticket.
func HandlePurchaseTicket(svc TicketPurchaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		concertID, ok := pathID(w, r, "concertID")
		if !ok {
			return
		}
		var req purchaseTicketRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		result, err := svc.PurchaseTicket(r.Context(), app.PurchaseTicketInput{
			ConcertID:  concertID,
			Tier:       req.Tier,
			BuyerName:  req.BuyerName,
			BuyerEmail: req.BuyerEmail,
			Payment:    req.Payment,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		t := result.Ticket
		writeJSON(w, status, concertTicketResponse{
			ID:         t.ID,
			ConcertID:  t.ConcertID,
			Tier:       t.Tier,
			TicketCode: t.TicketCode,
			BuyerName:  t.BuyerName,
			PaymentID:  t.PaymentID,
			CreatedAt:  t.CreatedAt,
		})
	}
}

type purchaseTicketRequest struct {
	Tier       string        `json:"tier" validate:"required,max=32"`
	BuyerName  string        `json:"buyer_name" validate:"required,max=120"`
	BuyerEmail string        `json:"buyer_email,omitempty" validate:"omitempty,email"`
	Payment    payment.Proof `json:"payment"`
}

type concertTicketResponse struct {
	ID         int64     `json:"id"`
	ConcertID  int64     `json:"concert_id"`
	Tier       string    `json:"tier"`
	TicketCode string    `json:"ticket_code"`
	BuyerName  string    `json:"buyer_name"`
	PaymentID  string    `json:"payment_id"`
	CreatedAt  time.Time `json:"created_at"`
}
