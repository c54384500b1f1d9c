package app

import (
	"context"
	"strconv"

	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/cimillas/panache/services/api/internal/payment"
)

// OrderGateway creates payment orders at the gateway.
type OrderGateway interface {
	CreateOrder(ctx context.Context, amount int64, metadata map[string]string) (payment.Order, error)
}

type CheckoutRepository interface {
	GetEvent(ctx context.Context, eventID int64) (domain.Event, error)
	GetTier(ctx context.Context, concertID int64, tier string) (domain.TierInventory, error)
}

// CheckoutService prices a purchase and opens the gateway order the client
// pays against. Nothing is reserved here; inventory is only taken when the
// verified payment comes back.
type CheckoutService struct {
	repo    CheckoutRepository
	gateway OrderGateway
}

func NewCheckoutService(repo CheckoutRepository, gateway OrderGateway) *CheckoutService {
	return &CheckoutService{repo: repo, gateway: gateway}
}

func (s *CheckoutService) CreateConcertOrder(ctx context.Context, concertID int64, tier string) (payment.Order, error) {
	inv, err := s.repo.GetTier(ctx, concertID, tier)
	if err != nil {
		return payment.Order{}, err
	}
	if inv.Available() <= 0 {
		return payment.Order{}, domain.ErrSoldOut
	}
	return s.gateway.CreateOrder(ctx, inv.Price, map[string]string{
		"concert_id": strconv.FormatInt(concertID, 10),
		"tier":       tier,
	})
}

func (s *CheckoutService) CreateEventOrder(ctx context.Context, eventID int64) (payment.Order, error) {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return payment.Order{}, err
	}
	if event.Fee <= 0 {
		return payment.Order{}, domain.ErrInvalidPrice
	}
	return s.gateway.CreateOrder(ctx, event.Fee, map[string]string{
		"event_id": strconv.FormatInt(eventID, 10),
	})
}
