package app

import (
	"context"
	"errors"
	"strings"

	"github.com/cimillas/panache/services/api/internal/clock"
	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/cimillas/panache/services/api/internal/payment"
)

type ConcertRepository interface {
	// WithSerializableTx runs fn in a serializable transaction, retrying on
	// serialization failures.
	WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetConcert(ctx context.Context, concertID int64) (domain.Concert, error)
	FindTicketByPaymentID(ctx context.Context, paymentID string) (*domain.ConcertTicket, error)
	// ReserveTierSlot increments tickets_sold only while it is below
	// ticket_limit and reports domain.ErrSoldOut otherwise.
	ReserveTierSlot(ctx context.Context, concertID int64, tier string) error
	CreateConcertTicket(ctx context.Context, ticket *domain.ConcertTicket) error
}

type ConcertService struct {
	repo      ConcertRepository
	verifier  PaymentVerifier
	refresher *Refresher
	tasks     *TaskQueue
	notifier  Notifier
	clock     clock.Clock
}

func NewConcertService(repo ConcertRepository, verifier PaymentVerifier, refresher *Refresher, tasks *TaskQueue, notifier Notifier, clk clock.Clock) *ConcertService {
	return &ConcertService{
		repo:      repo,
		verifier:  verifier,
		refresher: refresher,
		tasks:     tasks,
		notifier:  notifier,
		clock:     clk,
	}
}

type PurchaseTicketInput struct {
	ConcertID  int64
	Tier       string
	BuyerName  string
	BuyerEmail string
	Payment    payment.Proof
}

type PurchaseTicketResult struct {
	Ticket  domain.ConcertTicket
	Created bool
}

// PurchaseTicket issues one concert ticket for a verified payment. A repeated
// callback for the same payment returns the ticket already issued.
func (s *ConcertService) PurchaseTicket(ctx context.Context, in PurchaseTicketInput) (PurchaseTicketResult, error) {
	in.Tier = strings.TrimSpace(in.Tier)
	if in.Tier == "" {
		return PurchaseTicketResult{}, domain.ErrTierNotFound
	}
	if err := s.verifier.Verify(in.Payment); err != nil {
		return PurchaseTicketResult{}, err
	}

	concert, err := s.repo.GetConcert(ctx, in.ConcertID)
	if err != nil {
		return PurchaseTicketResult{}, err
	}

	var result PurchaseTicketResult
	for attempt := 0; attempt < ticketCodeAttempts; attempt++ {
		result, err = s.purchase(ctx, in)
		if !errors.Is(err, domain.ErrTicketCodeTaken) {
			break
		}
	}
	if err != nil {
		return PurchaseTicketResult{}, err
	}

	if result.Created {
		s.refresher.Enqueue(domain.ConcertOwner(result.Ticket.ID))
		s.notify(result.Ticket, concert)
	}
	return result, nil
}

func (s *ConcertService) purchase(ctx context.Context, in PurchaseTicketInput) (PurchaseTicketResult, error) {
	var result PurchaseTicketResult
	err := s.repo.WithSerializableTx(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindTicketByPaymentID(txCtx, in.Payment.PaymentID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = PurchaseTicketResult{Ticket: *existing, Created: false}
			return nil
		}

		if err := s.repo.ReserveTierSlot(txCtx, in.ConcertID, in.Tier); err != nil {
			return err
		}

		ticket := domain.ConcertTicket{
			ConcertID:  in.ConcertID,
			Tier:       in.Tier,
			TicketCode: newTicketCode(concertTicketPrefix),
			BuyerName:  strings.TrimSpace(in.BuyerName),
			BuyerEmail: strings.TrimSpace(in.BuyerEmail),
			OrderID:    in.Payment.OrderID,
			PaymentID:  in.Payment.PaymentID,
			CreatedAt:  s.clock.Now(),
		}
		if err := s.repo.CreateConcertTicket(txCtx, &ticket); err != nil {
			return err
		}
		result = PurchaseTicketResult{Ticket: ticket, Created: true}
		return nil
	})
	if err != nil {
		return PurchaseTicketResult{}, err
	}
	return result, nil
}

func (s *ConcertService) notify(ticket domain.ConcertTicket, concert domain.Concert) {
	if s.notifier == nil {
		return
	}
	issued := domain.IssuedTicket{
		Kind:       domain.TicketKindConcert,
		OwnerID:    ticket.ID,
		TicketCode: ticket.TicketCode,
		HolderName: ticket.BuyerName,
		Email:      ticket.BuyerEmail,
		Date:       concert.Date,
		Tier:       ticket.Tier,
		IssuedAt:   ticket.CreatedAt,
	}
	s.tasks.Enqueue(Task{
		Name: "notify " + ticket.TicketCode,
		Run: func(ctx context.Context) error {
			return s.notifier.NotifyTicketIssued(ctx, issued)
		},
	})
}
