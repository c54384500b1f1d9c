package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ConcertRepository struct {
	db
}

func NewConcertRepository(pool *pgxpool.Pool) *ConcertRepository {
	return &ConcertRepository{db: db{pool: pool}}
}

func (r *ConcertRepository) WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withSerializableTx(ctx, r.pool, fn)
}

func (r *ConcertRepository) GetConcert(ctx context.Context, concertID int64) (domain.Concert, error) {
	const query = `SELECT id, name, concert_date::text FROM concerts WHERE id = $1`
	var c domain.Concert
	if err := r.queryRow(ctx, query, concertID).Scan(&c.ID, &c.Name, &c.Date); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Concert{}, domain.ErrConcertNotFound
		}
		return domain.Concert{}, fmt.Errorf("get concert: %w", err)
	}
	return c, nil
}

func (r *ConcertRepository) GetTier(ctx context.Context, concertID int64, tier string) (domain.TierInventory, error) {
	return getTier(ctx, r.db, concertID, tier)
}

func getTier(ctx context.Context, d db, concertID int64, tier string) (domain.TierInventory, error) {
	const query = `
SELECT concert_id, tier, price, ticket_limit, tickets_sold
FROM tier_inventory
WHERE concert_id = $1 AND tier = $2`
	var t domain.TierInventory
	err := d.queryRow(ctx, query, concertID, tier).Scan(&t.ConcertID, &t.Tier, &t.Price, &t.TicketLimit, &t.TicketsSold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TierInventory{}, domain.ErrTierNotFound
		}
		return domain.TierInventory{}, fmt.Errorf("get tier: %w", err)
	}
	return t, nil
}

// FindTicketByPaymentID returns nil when no ticket was issued for paymentID.
func (r *ConcertRepository) FindTicketByPaymentID(ctx context.Context, paymentID string) (*domain.ConcertTicket, error) {
	const query = `
SELECT id, concert_id, tier, ticket_code, buyer_name, buyer_email, order_id, payment_id, created_at
FROM concert_tickets
WHERE payment_id = $1`
	var t domain.ConcertTicket
	err := r.queryRow(ctx, query, paymentID).
		Scan(&t.ID, &t.ConcertID, &t.Tier, &t.TicketCode, &t.BuyerName, &t.BuyerEmail, &t.OrderID, &t.PaymentID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find ticket by payment id: %w", err)
	}
	return &t, nil
}

// ReserveTierSlot takes one unit of inventory with a guarded update; it never
// reads availability first.
func (r *ConcertRepository) ReserveTierSlot(ctx context.Context, concertID int64, tier string) error {
	const stmt = `
UPDATE tier_inventory
SET tickets_sold = tickets_sold + 1
WHERE concert_id = $1 AND tier = $2 AND tickets_sold < ticket_limit`
	tag, err := r.exec(ctx, stmt, concertID, tier)
	if err != nil {
		return fmt.Errorf("reserve tier slot: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tier_inventory WHERE concert_id = $1 AND tier = $2)`, concertID, tier).Scan(&exists); err != nil {
		return fmt.Errorf("check tier: %w", err)
	}
	if !exists {
		return domain.ErrTierNotFound
	}
	return domain.ErrSoldOut
}

func (r *ConcertRepository) CreateConcertTicket(ctx context.Context, ticket *domain.ConcertTicket) error {
	const stmt = `
INSERT INTO concert_tickets (concert_id, tier, ticket_code, buyer_name, buyer_email, order_id, payment_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id`
	err := r.queryRow(ctx, stmt,
		ticket.ConcertID,
		ticket.Tier,
		ticket.TicketCode,
		ticket.BuyerName,
		ticket.BuyerEmail,
		ticket.OrderID,
		ticket.PaymentID,
		ticket.CreatedAt,
	).Scan(&ticket.ID)
	if err != nil {
		switch {
		case violatesConstraint(err, "concert_tickets_ticket_code_key"):
			return domain.ErrTicketCodeTaken
		case violatesConstraint(err, "concert_tickets_payment_id_key"):
			// A concurrent callback for the same payment won; replaying the
			// unit returns its ticket.
			return domain.ErrConcurrentModification
		case isForeignKeyViolation(err):
			return domain.ErrTierNotFound
		}
		return fmt.Errorf("create concert ticket: %w", err)
	}
	return nil
}

// CheckoutRepository prices orders before payment.
type CheckoutRepository struct {
	db
}

func NewCheckoutRepository(pool *pgxpool.Pool) *CheckoutRepository {
	return &CheckoutRepository{db: db{pool: pool}}
}

func (r *CheckoutRepository) GetEvent(ctx context.Context, eventID int64) (domain.Event, error) {
	return getEvent(ctx, r.db, eventID)
}

func (r *CheckoutRepository) GetTier(ctx context.Context, concertID int64, tier string) (domain.TierInventory, error) {
	return getTier(ctx, r.db, concertID, tier)
}
