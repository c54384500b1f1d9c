package app

import (
	"context"
	"strings"
	"time"

	"github.com/cimillas/panache/services/api/internal/clock"
	"github.com/cimillas/panache/services/api/internal/domain"
)

type AdminRepository interface {
	CreateEvent(ctx context.Context, event *domain.Event) error
	ListEvents(ctx context.Context) ([]domain.Event, error)
	CreateDepartment(ctx context.Context, dept *domain.Department) error
	CreateConcert(ctx context.Context, concert *domain.Concert, tiers []domain.TierInventory) error
	ListTiers(ctx context.Context, concertID int64) ([]domain.TierInventory, error)
	CreateInviteCodes(ctx context.Context, eventID int64, codes []string) error
	UpdateTeamPaymentStatus(ctx context.Context, teamID int64, status domain.PaymentStatus) error
	GetTeam(ctx context.Context, teamID int64) (domain.Team, error)
}

// EntryRecorder appends operator overrides to the entry ledger and reads a
// ticket's history back.
type EntryRecorder interface {
	AppendManual(ctx context.Context, entry domain.EntryLogEntry) (domain.EntryLogEntry, error)
	MemberEntries(ctx context.Context, memberID int64) ([]domain.EntryLogEntry, error)
	ConcertEntries(ctx context.Context, ticketID int64) ([]domain.EntryLogEntry, error)
}

type AdminService struct {
	repo      AdminRepository
	ledger    EntryRecorder
	refresher *Refresher
	calendar  *clock.Calendar
}

func NewAdminService(repo AdminRepository, ledger EntryRecorder, refresher *Refresher, cal *clock.Calendar) *AdminService {
	return &AdminService{
		repo:      repo,
		ledger:    ledger,
		refresher: refresher,
		calendar:  cal,
	}
}

type CreateEventInput struct {
	Name    string
	Date    string
	Fee     int64
	MinTeam int
	MaxTeam int
}

func (s *AdminService) CreateEvent(ctx context.Context, in CreateEventInput) (domain.Event, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Event{}, domain.ErrEventNameRequired
	}
	date := in.Date
	if date == "" {
		date = s.calendar.Today()
	}
	if _, err := time.Parse(clock.DateLayout, date); err != nil {
		return domain.Event{}, domain.ErrInvalidEventDate
	}
	if in.Fee < 0 {
		return domain.Event{}, domain.ErrInvalidPrice
	}
	minTeam, maxTeam := in.MinTeam, in.MaxTeam
	if minTeam <= 0 {
		minTeam = 1
	}
	if maxTeam == 0 {
		maxTeam = minTeam
	}
	if maxTeam < minTeam {
		return domain.Event{}, domain.ErrInvalidTeamSize
	}

	event := domain.Event{
		Name:    name,
		Date:    date,
		Fee:     in.Fee,
		MinTeam: minTeam,
		MaxTeam: maxTeam,
	}
	if err := s.repo.CreateEvent(ctx, &event); err != nil {
		return domain.Event{}, err
	}
	return event, nil
}

func (s *AdminService) ListEvents(ctx context.Context) ([]domain.Event, error) {
	return s.repo.ListEvents(ctx)
}

func (s *AdminService) CreateDepartment(ctx context.Context, name, secret string) (domain.Department, error) {
	dept := domain.Department{Name: strings.TrimSpace(name), SecretCode: strings.TrimSpace(secret)}
	if dept.Name == "" || dept.SecretCode == "" {
		return domain.Department{}, domain.ErrInvalidCode
	}
	if err := s.repo.CreateDepartment(ctx, &dept); err != nil {
		return domain.Department{}, err
	}
	return dept, nil
}

type TierInput struct {
	Tier        string
	Price       int64
	TicketLimit int
}

type CreateConcertInput struct {
	Name  string
	Date  string
	Tiers []TierInput
}

func (s *AdminService) CreateConcert(ctx context.Context, in CreateConcertInput) (domain.Concert, []domain.TierInventory, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Concert{}, nil, domain.ErrConcertNameRequired
	}
	if _, err := time.Parse(clock.DateLayout, in.Date); err != nil {
		return domain.Concert{}, nil, domain.ErrInvalidEventDate
	}

	seen := make(map[string]struct{}, len(in.Tiers))
	tiers := make([]domain.TierInventory, 0, len(in.Tiers))
	for _, t := range in.Tiers {
		tier := strings.ToUpper(strings.TrimSpace(t.Tier))
		if tier == "" {
			return domain.Concert{}, nil, domain.ErrTierNotFound
		}
		if _, dup := seen[tier]; dup {
			return domain.Concert{}, nil, domain.ErrTierExists
		}
		seen[tier] = struct{}{}
		if t.TicketLimit <= 0 {
			return domain.Concert{}, nil, domain.ErrInvalidTicketLimit
		}
		if t.Price < 0 {
			return domain.Concert{}, nil, domain.ErrInvalidPrice
		}
		tiers = append(tiers, domain.TierInventory{Tier: tier, Price: t.Price, TicketLimit: t.TicketLimit})
	}

	concert := domain.Concert{Name: name, Date: in.Date}
	if err := s.repo.CreateConcert(ctx, &concert, tiers); err != nil {
		return domain.Concert{}, nil, err
	}
	for i := range tiers {
		tiers[i].ConcertID = concert.ID
	}
	return concert, tiers, nil
}

func (s *AdminService) ListTiers(ctx context.Context, concertID int64) ([]domain.TierInventory, error) {
	if concertID <= 0 {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListTiers(ctx, concertID)
}

const maxInviteBatch = 500

// IssueInviteCodes generates count fresh invite codes scoped to eventID.
func (s *AdminService) IssueInviteCodes(ctx context.Context, eventID int64, count int) ([]string, error) {
	if eventID <= 0 {
		return nil, domain.ErrInvalidID
	}
	if count <= 0 || count > maxInviteBatch {
		return nil, domain.ErrInvalidQuantity
	}
	codes := make([]string, count)
	for i := range codes {
		codes[i] = newInviteCode()
	}
	if err := s.repo.CreateInviteCodes(ctx, eventID, codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// SetTeamPaymentStatus records an approval or payment change and refreshes the
// team's cache entry in the background.
func (s *AdminService) SetTeamPaymentStatus(ctx context.Context, teamID int64, status domain.PaymentStatus) error {
	if teamID <= 0 {
		return domain.ErrInvalidID
	}
	if !status.Valid() {
		return domain.ErrInvalidPaymentStatus
	}
	if err := s.repo.UpdateTeamPaymentStatus(ctx, teamID, status); err != nil {
		return err
	}
	s.refresher.Enqueue(domain.TeamOwner(teamID))
	return nil
}

type ManualEntryInput struct {
	TeamID          int64
	MemberID        int64
	ConcertTicketID int64
	GateID          domain.GateID
	Type            domain.EntryType
}

// RecordManualEntry appends an operator override to the ledger. The owner's
// cache entry is recomputed before returning so the gate sees it immediately.
func (s *AdminService) RecordManualEntry(ctx context.Context, in ManualEntryInput) (domain.EntryLogEntry, error) {
	if !in.GateID.Valid() {
		return domain.EntryLogEntry{}, domain.ErrInvalidGate
	}
	if !in.Type.Valid() {
		return domain.EntryLogEntry{}, domain.ErrInvalidEntryType
	}
	member := in.TeamID > 0 && in.MemberID > 0
	concert := in.ConcertTicketID > 0
	if member == concert {
		return domain.EntryLogEntry{}, domain.ErrInvalidID
	}

	now := s.calendar.Now()
	entry, err := s.ledger.AppendManual(ctx, domain.EntryLogEntry{
		TeamID:          in.TeamID,
		MemberID:        in.MemberID,
		ConcertTicketID: in.ConcertTicketID,
		GateID:          in.GateID,
		Type:            in.Type,
		DayNumber:       s.calendar.DayNumber(now),
		LoggedAt:        now,
	})
	if err != nil {
		return domain.EntryLogEntry{}, err
	}
	if _, err := s.refresher.Refresh(ctx, entry.Owner()); err != nil {
		s.refresher.logger.WithError(err).WithField("owner", entry.Owner().String()).Warn("refresh after manual entry failed")
		s.refresher.Enqueue(entry.Owner())
	}
	return entry, nil
}

func (s *AdminService) GetTeam(ctx context.Context, teamID int64) (domain.Team, error) {
	if teamID <= 0 {
		return domain.Team{}, domain.ErrInvalidID
	}
	return s.repo.GetTeam(ctx, teamID)
}

// MemberHistory returns the ledger rows of one team member, oldest first.
func (s *AdminService) MemberHistory(ctx context.Context, teamID, memberID int64) ([]domain.EntryLogEntry, error) {
	if teamID <= 0 || memberID <= 0 {
		return nil, domain.ErrInvalidID
	}
	team, err := s.repo.GetTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, m := range team.Members {
		if m.ID == memberID {
			found = true
			break
		}
	}
	if !found {
		return nil, domain.ErrMemberNotFound
	}
	return s.ledger.MemberEntries(ctx, memberID)
}

func (s *AdminService) ConcertTicketHistory(ctx context.Context, ticketID int64) ([]domain.EntryLogEntry, error) {
	if ticketID <= 0 {
		return nil, domain.ErrInvalidID
	}
	return s.ledger.ConcertEntries(ctx, ticketID)
}
