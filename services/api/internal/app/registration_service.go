package app

import (
	"context"
	"errors"
	"strings"

	"github.com/cimillas/panache/services/api/internal/clock"
	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/cimillas/panache/services/api/internal/payment"
)

type RegistrationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetEvent(ctx context.Context, eventID int64) (domain.Event, error)
	FindDepartmentBySecret(ctx context.Context, secret string) (*domain.Department, error)
	GetInviteCodeForUpdate(ctx context.Context, code string) (*domain.InviteCode, error)
	FindOrCreateCollege(ctx context.Context, name string) (domain.College, error)
	TeamExists(ctx context.Context, eventID int64, departmentID, collegeID *int64) (bool, error)
	CreateTeam(ctx context.Context, team *domain.Team) error
	ConsumeInviteCode(ctx context.Context, code string, teamID int64) error
}

// PaymentVerifier validates a gateway checkout callback.
type PaymentVerifier interface {
	Verify(p payment.Proof) error
}

// Notifier delivers issuance events to external consumers.
type Notifier interface {
	NotifyTicketIssued(ctx context.Context, t domain.IssuedTicket) error
}

type RegistrationService struct {
	repo      RegistrationRepository
	verifier  PaymentVerifier
	refresher *Refresher
	tasks     *TaskQueue
	notifier  Notifier
	clock     clock.Clock
}

func NewRegistrationService(repo RegistrationRepository, verifier PaymentVerifier, refresher *Refresher, tasks *TaskQueue, notifier Notifier, clk clock.Clock) *RegistrationService {
	return &RegistrationService{
		repo:      repo,
		verifier:  verifier,
		refresher: refresher,
		tasks:     tasks,
		notifier:  notifier,
		clock:     clk,
	}
}

type MemberInput struct {
	Name  string
	Email string
	Phone string
}

type RegisterTeamInput struct {
	EventID  int64
	Code     string
	TeamName string
	// CollegeName is required when Code is an invite code; unknown colleges
	// are onboarded on the fly.
	CollegeName string
	Members     []MemberInput
	Payment     *payment.Proof
}

// ticketCodeAttempts bounds retries when a generated pass code collides.
const ticketCodeAttempts = 3

// RegisterTeam issues a team ticket. The registration code is either a
// department secret or an unused invite code for the event. Team, members and
// invite-code consumption commit as one unit.
func (s *RegistrationService) RegisterTeam(ctx context.Context, in RegisterTeamInput) (domain.Team, error) {
	in.Code = strings.TrimSpace(in.Code)
	in.TeamName = strings.TrimSpace(in.TeamName)
	if in.Code == "" {
		return domain.Team{}, domain.ErrInvalidCode
	}
	if in.TeamName == "" {
		return domain.Team{}, domain.ErrTeamNameRequired
	}

	event, err := s.repo.GetEvent(ctx, in.EventID)
	if err != nil {
		return domain.Team{}, err
	}
	if len(in.Members) < max(event.MinTeam, 1) || (event.MaxTeam > 0 && len(in.Members) > event.MaxTeam) {
		return domain.Team{}, domain.ErrInvalidTeamSize
	}

	dept, err := s.repo.FindDepartmentBySecret(ctx, in.Code)
	if err != nil {
		return domain.Team{}, err
	}
	if dept == nil && strings.TrimSpace(in.CollegeName) == "" {
		return domain.Team{}, domain.ErrCollegeRequired
	}

	status := domain.PaymentStatusExempt
	if dept == nil && event.Fee > 0 {
		if in.Payment == nil {
			return domain.Team{}, domain.ErrPaymentRequired
		}
		if err := s.verifier.Verify(*in.Payment); err != nil {
			return domain.Team{}, err
		}
		status = domain.PaymentStatusPaid
	}

	var team domain.Team
	for attempt := 0; attempt < ticketCodeAttempts; attempt++ {
		team, err = s.register(ctx, in, event, dept, status)
		if !errors.Is(err, domain.ErrTicketCodeTaken) {
			break
		}
	}
	if err != nil {
		return domain.Team{}, err
	}

	s.refresher.Enqueue(domain.TeamOwner(team.ID))
	s.notify(team, event)
	return team, nil
}

func (s *RegistrationService) register(ctx context.Context, in RegisterTeamInput, event domain.Event, dept *domain.Department, status domain.PaymentStatus) (domain.Team, error) {
	team := domain.Team{
		EventID:       event.ID,
		Name:          in.TeamName,
		TicketCode:    newTicketCode(teamTicketPrefix),
		PaymentStatus: status,
		CreatedAt:     s.clock.Now(),
	}
	if in.Payment != nil && status == domain.PaymentStatusPaid {
		team.OrderID = in.Payment.OrderID
		team.PaymentID = in.Payment.PaymentID
	}
	for _, m := range in.Members {
		team.Members = append(team.Members, domain.TeamMember{
			Name:  strings.TrimSpace(m.Name),
			Email: strings.TrimSpace(m.Email),
			Phone: strings.TrimSpace(m.Phone),
		})
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if dept != nil {
			team.DepartmentID = &dept.ID
		} else {
			invite, err := s.repo.GetInviteCodeForUpdate(txCtx, in.Code)
			if err != nil {
				return err
			}
			switch {
			case invite == nil:
				return domain.ErrInvalidCode
			case invite.EventID != event.ID:
				return domain.ErrInviteCodeWrongEvent
			case invite.IsUsed:
				return domain.ErrInviteCodeUsed
			}
			college, err := s.repo.FindOrCreateCollege(txCtx, strings.TrimSpace(in.CollegeName))
			if err != nil {
				return err
			}
			team.CollegeID = &college.ID
			team.InviteCode = invite.Code
		}

		exists, err := s.repo.TeamExists(txCtx, event.ID, team.DepartmentID, team.CollegeID)
		if err != nil {
			return err
		}
		if exists {
			return domain.ErrDuplicateRegistration
		}

		if err := s.repo.CreateTeam(txCtx, &team); err != nil {
			return err
		}
		if team.InviteCode != "" {
			return s.repo.ConsumeInviteCode(txCtx, team.InviteCode, team.ID)
		}
		return nil
	})
	if err != nil {
		return domain.Team{}, err
	}
	return team, nil
}

func (s *RegistrationService) notify(team domain.Team, event domain.Event) {
	if s.notifier == nil {
		return
	}
	holder, email := team.Name, ""
	if len(team.Members) > 0 {
		email = team.Members[0].Email
	}
	issued := domain.IssuedTicket{
		Kind:       domain.TicketKindTeam,
		OwnerID:    team.ID,
		TicketCode: team.TicketCode,
		HolderName: holder,
		Email:      email,
		Date:       event.Date,
		IssuedAt:   team.CreatedAt,
	}
	s.tasks.Enqueue(Task{
		Name: "notify " + team.TicketCode,
		Run: func(ctx context.Context) error {
			return s.notifier.NotifyTicketIssued(ctx, issued)
		},
	})
}
