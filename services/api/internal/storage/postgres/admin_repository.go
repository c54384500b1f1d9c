package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AdminRepository struct {
	db
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{db: db{pool: pool}}
}

func (r *AdminRepository) CreateEvent(ctx context.Context, event *domain.Event) error {
	const stmt = `
INSERT INTO events (name, event_date, fee, min_team_size, max_team_size)
VALUES ($1, $2::date, $3, $4, $5)
RETURNING id`
	err := r.queryRow(ctx, stmt, event.Name, event.Date, event.Fee, event.MinTeam, event.MaxTeam).Scan(&event.ID)
	if err != nil {
		if isInvalidDate(err) {
			return domain.ErrInvalidEventDate
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

func (r *AdminRepository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	const query = `
SELECT id, name, event_date::text, fee, min_team_size, max_team_size
FROM events
ORDER BY event_date ASC, id ASC`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Date, &e.Fee, &e.MinTeam, &e.MaxTeam); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate events: %w", rows.Err())
	}
	return events, nil
}

func (r *AdminRepository) CreateDepartment(ctx context.Context, dept *domain.Department) error {
	const stmt = `INSERT INTO departments (name, secret_code) VALUES ($1, $2) RETURNING id`
	if err := r.queryRow(ctx, stmt, dept.Name, dept.SecretCode).Scan(&dept.ID); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDepartmentExists
		}
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// CreateConcert inserts the concert and its tiers in one transaction.
func (r *AdminRepository) CreateConcert(ctx context.Context, concert *domain.Concert, tiers []domain.TierInventory) error {
	return withTx(ctx, r.pool, func(txCtx context.Context) error {
		const stmt = `INSERT INTO concerts (name, concert_date) VALUES ($1, $2::date) RETURNING id`
		if err := r.queryRow(txCtx, stmt, concert.Name, concert.Date).Scan(&concert.ID); err != nil {
			if isInvalidDate(err) {
				return domain.ErrInvalidEventDate
			}
			return fmt.Errorf("create concert: %w", err)
		}

		const tierStmt = `
INSERT INTO tier_inventory (concert_id, tier, price, ticket_limit)
VALUES ($1, $2, $3, $4)`
		for _, t := range tiers {
			if _, err := r.exec(txCtx, tierStmt, concert.ID, t.Tier, t.Price, t.TicketLimit); err != nil {
				if isUniqueViolation(err) {
					return domain.ErrTierExists
				}
				return fmt.Errorf("create tier %s: %w", t.Tier, err)
			}
		}
		return nil
	})
}

func (r *AdminRepository) ListTiers(ctx context.Context, concertID int64) ([]domain.TierInventory, error) {
	var exists bool
	if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM concerts WHERE id = $1)`, concertID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check concert: %w", err)
	}
	if !exists {
		return nil, domain.ErrConcertNotFound
	}

	const query = `
SELECT concert_id, tier, price, ticket_limit, tickets_sold
FROM tier_inventory
WHERE concert_id = $1
ORDER BY price DESC, tier ASC`
	rows, err := r.query(ctx, query, concertID)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	tiers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TierInventory, error) {
		var t domain.TierInventory
		err := row.Scan(&t.ConcertID, &t.Tier, &t.Price, &t.TicketLimit, &t.TicketsSold)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan tiers: %w", err)
	}
	return tiers, nil
}

func (r *AdminRepository) CreateInviteCodes(ctx context.Context, eventID int64, codes []string) error {
	const stmt = `
INSERT INTO invite_codes (code, event_id)
SELECT code, $1 FROM unnest($2::text[]) AS code`
	if _, err := r.exec(ctx, stmt, eventID, codes); err != nil {
		switch {
		case isForeignKeyViolation(err):
			return domain.ErrEventNotFound
		case isUniqueViolation(err):
			return domain.ErrConcurrentModification
		}
		return fmt.Errorf("create invite codes: %w", err)
	}
	return nil
}

func (r *AdminRepository) UpdateTeamPaymentStatus(ctx context.Context, teamID int64, status domain.PaymentStatus) error {
	tag, err := r.exec(ctx, `UPDATE teams SET payment_status = $2 WHERE id = $1`, teamID, string(status))
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTeamNotFound
	}
	return nil
}

// GetTeam loads a team with its members.
func (r *AdminRepository) GetTeam(ctx context.Context, teamID int64) (domain.Team, error) {
	const query = `
SELECT id, event_id, department_id, college_id, name, ticket_code, payment_status,
	COALESCE(order_id, ''), COALESCE(payment_id, ''), COALESCE(invite_code, ''), created_at
FROM teams
WHERE id = $1`
	var t domain.Team
	err := r.queryRow(ctx, query, teamID).Scan(&t.ID, &t.EventID, &t.DepartmentID, &t.CollegeID, &t.Name,
		&t.TicketCode, &t.PaymentStatus, &t.OrderID, &t.PaymentID, &t.InviteCode, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Team{}, domain.ErrTeamNotFound
		}
		return domain.Team{}, fmt.Errorf("get team: %w", err)
	}

	rows, err := r.query(ctx, `SELECT id, team_id, name, email, phone FROM team_members WHERE team_id = $1 ORDER BY id`, teamID)
	if err != nil {
		return domain.Team{}, fmt.Errorf("list members: %w", err)
	}
	t.Members, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TeamMember, error) {
		var m domain.TeamMember
		err := row.Scan(&m.ID, &m.TeamID, &m.Name, &m.Email, &m.Phone)
		return m, err
	})
	if err != nil {
		return domain.Team{}, fmt.Errorf("scan members: %w", err)
	}
	return t, nil
}
