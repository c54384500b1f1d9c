package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RegistrationRepository struct {
	db
}

func NewRegistrationRepository(pool *pgxpool.Pool) *RegistrationRepository {
	return &RegistrationRepository{db: db{pool: pool}}
}

func (r *RegistrationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *RegistrationRepository) GetEvent(ctx context.Context, eventID int64) (domain.Event, error) {
	return getEvent(ctx, r.db, eventID)
}

func getEvent(ctx context.Context, d db, eventID int64) (domain.Event, error) {
	const query = `
SELECT id, name, event_date::text, fee, min_team_size, max_team_size
FROM events
WHERE id = $1`
	var e domain.Event
	err := d.queryRow(ctx, query, eventID).Scan(&e.ID, &e.Name, &e.Date, &e.Fee, &e.MinTeam, &e.MaxTeam)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrEventNotFound
		}
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// FindDepartmentBySecret returns nil when secret is not a department code.
func (r *RegistrationRepository) FindDepartmentBySecret(ctx context.Context, secret string) (*domain.Department, error) {
	const query = `SELECT id, name, secret_code FROM departments WHERE secret_code = $1`
	var d domain.Department
	err := r.queryRow(ctx, query, secret).Scan(&d.ID, &d.Name, &d.SecretCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find department: %w", err)
	}
	return &d, nil
}

// GetInviteCodeForUpdate locks the invite row for the rest of the
// transaction. It returns nil for an unknown code.
func (r *RegistrationRepository) GetInviteCodeForUpdate(ctx context.Context, code string) (*domain.InviteCode, error) {
	const query = `
SELECT code, event_id, is_used, used_by_team_id
FROM invite_codes
WHERE code = $1
FOR UPDATE`
	var inv domain.InviteCode
	err := r.queryRow(ctx, query, code).Scan(&inv.Code, &inv.EventID, &inv.IsUsed, &inv.UsedByTeamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invite code: %w", err)
	}
	return &inv, nil
}

// FindOrCreateCollege onboards a college by case-insensitive name.
func (r *RegistrationRepository) FindOrCreateCollege(ctx context.Context, name string) (domain.College, error) {
	const stmt = `
INSERT INTO colleges (name) VALUES ($1)
ON CONFLICT ((lower(name))) DO UPDATE SET name = colleges.name
RETURNING id, name`
	var c domain.College
	if err := r.queryRow(ctx, stmt, name).Scan(&c.ID, &c.Name); err != nil {
		return domain.College{}, fmt.Errorf("find or create college: %w", err)
	}
	return c, nil
}

func (r *RegistrationRepository) TeamExists(ctx context.Context, eventID int64, departmentID, collegeID *int64) (bool, error) {
	const query = `
SELECT EXISTS (
	SELECT 1 FROM teams
	WHERE event_id = $1 AND (department_id = $2 OR college_id = $3)
)`
	var exists bool
	if err := r.queryRow(ctx, query, eventID, departmentID, collegeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check team exists: %w", err)
	}
	return exists, nil
}

// CreateTeam inserts the team and its members and fills in their ids.
func (r *RegistrationRepository) CreateTeam(ctx context.Context, team *domain.Team) error {
	const stmt = `
INSERT INTO teams (event_id, department_id, college_id, name, ticket_code, payment_status, order_id, payment_id, invite_code, created_at)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), $10)
RETURNING id`
	err := r.queryRow(ctx, stmt,
		team.EventID,
		team.DepartmentID,
		team.CollegeID,
		team.Name,
		team.TicketCode,
		string(team.PaymentStatus),
		team.OrderID,
		team.PaymentID,
		team.InviteCode,
		team.CreatedAt,
	).Scan(&team.ID)
	if err != nil {
		switch {
		case violatesConstraint(err, "teams_ticket_code_key"):
			return domain.ErrTicketCodeTaken
		case isUniqueViolation(err):
			return domain.ErrDuplicateRegistration
		case isForeignKeyViolation(err):
			return domain.ErrEventNotFound
		}
		return fmt.Errorf("create team: %w", err)
	}

	const memberStmt = `
INSERT INTO team_members (team_id, name, email, phone)
VALUES ($1, $2, $3, $4)
RETURNING id`
	for i := range team.Members {
		m := &team.Members[i]
		m.TeamID = team.ID
		if err := r.queryRow(ctx, memberStmt, team.ID, m.Name, m.Email, m.Phone).Scan(&m.ID); err != nil {
			return fmt.Errorf("create team member: %w", err)
		}
	}
	return nil
}

// ConsumeInviteCode marks code used by teamID. It only succeeds once.
func (r *RegistrationRepository) ConsumeInviteCode(ctx context.Context, code string, teamID int64) error {
	const stmt = `
UPDATE invite_codes
SET is_used = TRUE, used_by_team_id = $2
WHERE code = $1 AND NOT is_used`
	tag, err := r.exec(ctx, stmt, code, teamID)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInviteCodeUsed
		}
		return fmt.Errorf("consume invite code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInviteCodeUsed
	}
	return nil
}
