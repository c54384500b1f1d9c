package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TicketRepository projects issuance records and the entry ledger into cache
// records. Every member's status is the type of their latest ledger row.
type TicketRepository struct {
	db
}

func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{db: db{pool: pool}}
}

const teamTicketSelect = `
SELECT t.id, t.ticket_code, t.name, t.payment_status, e.event_date::text,
	COALESCE(m.members, '[]'::json)
FROM teams t
JOIN events e ON e.id = t.event_id
LEFT JOIN LATERAL (
	SELECT json_agg(json_build_object(
		'id', tm.id,
		'name', tm.name,
		'status', COALESCE(latest.type, 'EXIT')
	) ORDER BY tm.id) AS members
	FROM team_members tm
	LEFT JOIN LATERAL (
		SELECT el.type
		FROM entry_logs el
		WHERE el.member_id = tm.id
		ORDER BY el.logged_at DESC, el.id DESC
		LIMIT 1
	) latest ON TRUE
	WHERE tm.team_id = t.id
) m ON TRUE`

const concertTicketSelect = `
SELECT ct.id, ct.ticket_code, ct.buyer_name, ct.tier, c.concert_date::text,
	EXISTS (
		SELECT 1 FROM entry_logs el
		WHERE el.concert_ticket_id = ct.id AND el.gate_id = 'MAIN_GATE' AND el.type = 'ENTRY'
	),
	EXISTS (
		SELECT 1 FROM entry_logs el
		WHERE el.concert_ticket_id = ct.id AND el.gate_id = 'CELEBRITY_GATE' AND el.type = 'ENTRY'
	),
	COALESCE((
		SELECT el.type FROM entry_logs el
		WHERE el.concert_ticket_id = ct.id
		ORDER BY el.logged_at DESC, el.id DESC
		LIMIT 1
	), 'EXIT')
FROM concert_tickets ct
JOIN concerts c ON c.id = ct.concert_id`

// TeamTicketsAfter returns up to limit team tickets with id > afterID in id
// order.
func (r *TicketRepository) TeamTicketsAfter(ctx context.Context, afterID int64, limit int) ([]domain.TicketRecord, error) {
	rows, err := r.query(ctx, teamTicketSelect+`
WHERE t.id > $1
ORDER BY t.id
LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("page team tickets: %w", err)
	}
	return collect(rows, scanTeamTicket)
}

func (r *TicketRepository) ConcertTicketsAfter(ctx context.Context, afterID int64, limit int) ([]domain.TicketRecord, error) {
	rows, err := r.query(ctx, concertTicketSelect+`
WHERE ct.id > $1
ORDER BY ct.id
LIMIT $2`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("page concert tickets: %w", err)
	}
	return collect(rows, scanConcertTicket)
}

func (r *TicketRepository) TeamTicket(ctx context.Context, teamID int64) (domain.TicketRecord, error) {
	rec, err := scanTeamTicket(r.queryRow(ctx, teamTicketSelect+` WHERE t.id = $1`, teamID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TicketRecord{}, domain.ErrTicketNotFound
		}
		return domain.TicketRecord{}, fmt.Errorf("get team ticket: %w", err)
	}
	return rec, nil
}

func (r *TicketRepository) ConcertTicket(ctx context.Context, ticketID int64) (domain.TicketRecord, error) {
	rec, err := scanConcertTicket(r.queryRow(ctx, concertTicketSelect+` WHERE ct.id = $1`, ticketID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TicketRecord{}, domain.ErrTicketNotFound
		}
		return domain.TicketRecord{}, fmt.Errorf("get concert ticket: %w", err)
	}
	return rec, nil
}

func scanTeamTicket(row pgx.Row) (domain.TicketRecord, error) {
	rec := domain.TicketRecord{Kind: domain.TicketKindTeam}
	var payment string
	if err := row.Scan(&rec.ID, &rec.Code, &rec.DisplayName, &payment, &rec.Date, &rec.Members); err != nil {
		return domain.TicketRecord{}, err
	}
	rec.PaymentState = payment
	rec.LastKnownStatus = domain.EntryTypeExit
	for _, m := range rec.Members {
		if m.Status == domain.EntryTypeEntry {
			rec.LastKnownStatus = domain.EntryTypeEntry
			break
		}
	}
	return rec, nil
}

func scanConcertTicket(row pgx.Row) (domain.TicketRecord, error) {
	rec := domain.TicketRecord{
		Kind:         domain.TicketKindConcert,
		PaymentState: string(domain.PaymentStatusPaid),
		Gates:        &domain.GateFlags{},
	}
	err := row.Scan(&rec.ID, &rec.Code, &rec.DisplayName, &rec.Tier, &rec.Date,
		&rec.Gates.MainGateUsed, &rec.Gates.ArenaGateUsed, &rec.LastKnownStatus)
	if err != nil {
		return domain.TicketRecord{}, err
	}
	return rec, nil
}

func collect(rows pgx.Rows, scan func(pgx.Row) (domain.TicketRecord, error)) ([]domain.TicketRecord, error) {
	defer rows.Close()
	var out []domain.TicketRecord
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return out, nil
}
