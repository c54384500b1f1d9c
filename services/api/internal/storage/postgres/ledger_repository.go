package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepository appends to entry_logs. Rows are never updated or deleted;
// a trigger enforces that. Timestamps come from the database clock, taken
// after any per-owner lock, so "latest row wins" matches insert order.
type LedgerRepository struct {
	db
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db{pool: pool}}
}

const insertEntry = `
INSERT INTO entry_logs (team_id, member_id, concert_ticket_id, gate_id, type, day_number)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, logged_at`

// ToggleMember writes the opposite of the member's latest entry type. The
// member row is locked for the transaction so concurrent toggles for the same
// person are applied one after the other.
func (r *LedgerRepository) ToggleMember(ctx context.Context, entry domain.EntryLogEntry) (domain.EntryLogEntry, error) {
	err := withTx(ctx, r.pool, func(txCtx context.Context) error {
		if err := r.lockMember(txCtx, entry.TeamID, entry.MemberID); err != nil {
			return err
		}

		last := domain.EntryTypeExit
		err := r.queryRow(txCtx, `
SELECT type FROM entry_logs
WHERE member_id = $1
ORDER BY logged_at DESC, id DESC
LIMIT 1`, entry.MemberID).Scan(&last)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("latest member entry: %w", err)
		}

		entry.Type = last.Opposite()
		entry.ConcertTicketID = 0
		return r.insert(txCtx, &entry)
	})
	if err != nil {
		return domain.EntryLogEntry{}, err
	}
	return entry, nil
}

// RecordConcertEntry appends a one-time gate ENTRY for a concert ticket.
func (r *LedgerRepository) RecordConcertEntry(ctx context.Context, entry domain.EntryLogEntry) (domain.EntryLogEntry, error) {
	entry.TeamID, entry.MemberID = 0, 0
	entry.Type = domain.EntryTypeEntry
	if err := r.insert(ctx, &entry); err != nil {
		return domain.EntryLogEntry{}, err
	}
	return entry, nil
}

// AppendManual writes an operator override with the given type.
func (r *LedgerRepository) AppendManual(ctx context.Context, entry domain.EntryLogEntry) (domain.EntryLogEntry, error) {
	if entry.ConcertTicketID != 0 {
		if err := r.insert(ctx, &entry); err != nil {
			return domain.EntryLogEntry{}, err
		}
		return entry, nil
	}
	err := withTx(ctx, r.pool, func(txCtx context.Context) error {
		if err := r.lockMember(txCtx, entry.TeamID, entry.MemberID); err != nil {
			return err
		}
		return r.insert(txCtx, &entry)
	})
	if err != nil {
		return domain.EntryLogEntry{}, err
	}
	return entry, nil
}

// MemberEntries lists a member's ledger rows oldest first.
func (r *LedgerRepository) MemberEntries(ctx context.Context, memberID int64) ([]domain.EntryLogEntry, error) {
	return r.list(ctx, `WHERE member_id = $1`, memberID)
}

// ConcertEntries lists a concert ticket's ledger rows oldest first.
func (r *LedgerRepository) ConcertEntries(ctx context.Context, ticketID int64) ([]domain.EntryLogEntry, error) {
	return r.list(ctx, `WHERE concert_ticket_id = $1`, ticketID)
}

func (r *LedgerRepository) lockMember(ctx context.Context, teamID, memberID int64) error {
	var id int64
	err := r.queryRow(ctx, `SELECT id FROM team_members WHERE id = $1 AND team_id = $2 FOR UPDATE`, memberID, teamID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrMemberNotFound
		}
		return fmt.Errorf("lock member: %w", err)
	}
	return nil
}

func (r *LedgerRepository) insert(ctx context.Context, entry *domain.EntryLogEntry) error {
	err := r.queryRow(ctx, insertEntry,
		nullID(entry.TeamID),
		nullID(entry.MemberID),
		nullID(entry.ConcertTicketID),
		string(entry.GateID),
		string(entry.Type),
		entry.DayNumber,
	).Scan(&entry.ID, &entry.LoggedAt)
	if err != nil {
		switch {
		case violatesConstraint(err, "entry_logs_concert_gate_entry_key"):
			return domain.ErrGateAlreadyUsed
		case isForeignKeyViolation(err) && entry.ConcertTicketID != 0:
			return domain.ErrTicketNotFound
		case isForeignKeyViolation(err):
			return domain.ErrMemberNotFound
		}
		return fmt.Errorf("append entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) list(ctx context.Context, where string, args ...any) ([]domain.EntryLogEntry, error) {
	rows, err := r.query(ctx, `
SELECT id, COALESCE(team_id, 0), COALESCE(member_id, 0), COALESCE(concert_ticket_id, 0),
	gate_id, type, day_number, logged_at
FROM entry_logs `+where+`
ORDER BY logged_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []domain.EntryLogEntry
	for rows.Next() {
		var e domain.EntryLogEntry
		if err := rows.Scan(&e.ID, &e.TeamID, &e.MemberID, &e.ConcertTicketID, &e.GateID, &e.Type, &e.DayNumber, &e.LoggedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return out, nil
}

// nullID maps the zero id to SQL NULL.
func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}
