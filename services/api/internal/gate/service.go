// Package gate implements the scan verification protocol run by terminals at
// the festival gates. Lookups run against the ticket cache; anything that
// admits a person is decided by the entry ledger.
package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cimillas/panache/services/api/internal/cache"
	"github.com/cimillas/panache/services/api/internal/clock"
	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/sirupsen/logrus"
)

// Ledger appends gate activity to the durable entry log.
type Ledger interface {
	// ToggleMember appends the opposite of the member's latest ledger type,
	// serialized per member, and returns the row written.
	ToggleMember(ctx context.Context, entry domain.EntryLogEntry) (domain.EntryLogEntry, error)
	// RecordConcertEntry appends a one-time ENTRY for a concert ticket at a
	// gate. A second entry at the same gate fails with
	// domain.ErrGateAlreadyUsed.
	RecordConcertEntry(ctx context.Context, entry domain.EntryLogEntry) (domain.EntryLogEntry, error)
}

// Refresher schedules a cache entry to be recomputed from the store.
type Refresher interface {
	Enqueue(owner domain.OwnerRef)
}

// Result is the outcome of one inbound message. Reply goes to the sender,
// Broadcast (if set) to every connected terminal.
type Result struct {
	Reply     Message
	Broadcast *Message
}

type Service struct {
	cache     *cache.TicketCache
	ledger    Ledger
	calendar  *clock.Calendar
	refresher Refresher
	logger    logrus.FieldLogger
}

func NewService(c *cache.TicketCache, ledger Ledger, cal *clock.Calendar, refresher Refresher, logger logrus.FieldLogger) *Service {
	return &Service{
		cache:     c,
		ledger:    ledger,
		calendar:  cal,
		refresher: refresher,
		logger:    logger.WithField("object", "gate"),
	}
}

func deny(reason domain.DenialReason) Result {
	return Result{Reply: Denied(reason)}
}

// Handle decodes one frame from a terminal and dispatches it.
func (s *Service) Handle(ctx context.Context, raw []byte) Result {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return deny(domain.DenyInvalidRequest)
	}
	switch env.Type {
	case TypeVerifyScan:
		var req VerifyScanRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return deny(domain.DenyInvalidRequest)
		}
		return s.VerifyScan(ctx, req)
	case TypeToggleMemberStatus:
		var req ToggleMemberRequest
		if err := json.Unmarshal(env.Payload, &req); err != nil {
			return deny(domain.DenyInvalidRequest)
		}
		return s.ToggleMemberStatus(ctx, req)
	default:
		return deny(domain.DenyInvalidRequest)
	}
}

// VerifyScan decides whether the ticket may pass the gate. Rules are
// evaluated in order and the first match wins.
func (s *Service) VerifyScan(ctx context.Context, req VerifyScanRequest) Result {
	if !s.cache.Ready() {
		return deny(domain.DenyWarmingUp)
	}
	code := strings.TrimSpace(req.TicketCode)
	if code == "" {
		return deny(domain.DenyInvalidRequest)
	}

	rec, ok, err := s.cache.Lookup(code)
	if err != nil {
		s.logger.WithError(err).WithField("code", code).Error("cached ticket unreadable")
		return deny(domain.DenyTryAgain)
	}
	if !ok {
		return deny(domain.DenyNotFound)
	}
	if !s.calendar.IsToday(rec.Date) {
		return deny(domain.DenyNotValidToday)
	}

	switch req.GateID {
	case domain.GateCelebrity:
		switch rec.Kind {
		case domain.TicketKindConcert:
			if !cleared(rec) {
				return deny(domain.DenyPaymentNotCleared)
			}
			return s.claimConcertGate(ctx, rec, req.GateID)
		case domain.TicketKindTeam:
			return deny(domain.DenyWrongPassType)
		}
	case domain.GateMain:
		if !cleared(rec) {
			return deny(domain.DenyPaymentNotCleared)
		}
		switch rec.Kind {
		case domain.TicketKindTeam:
			return Result{Reply: Message{Type: TypeScanTeamDetails, Payload: TeamDetails{
				TeamName:     rec.DisplayName,
				TeamID:       rec.ID,
				TicketCode:   rec.Code,
				PaymentState: rec.PaymentState,
				Members:      rec.Members,
			}}}
		case domain.TicketKindConcert:
			return s.claimConcertGate(ctx, rec, req.GateID)
		}
	default:
		return deny(domain.DenyInvalidScanner)
	}

	s.logger.WithFields(logrus.Fields{"code": code, "kind": rec.Kind.String()}).Error("unhandled ticket kind")
	return deny(domain.DenyTryAgain)
}

func cleared(rec domain.TicketRecord) bool {
	return domain.PaymentStatus(rec.PaymentState).Admits()
}

func gateUsed(rec domain.TicketRecord, gate domain.GateID) bool {
	if rec.Gates == nil {
		return false
	}
	if gate == domain.GateCelebrity {
		return rec.Gates.ArenaGateUsed
	}
	return rec.Gates.MainGateUsed
}

// claimConcertGate admits a concert pass once per gate. The ledger entry is
// written before the reply and its uniqueness per ticket and gate decides;
// the cached flag only short-circuits repeat scans and may lag behind.
func (s *Service) claimConcertGate(ctx context.Context, rec domain.TicketRecord, gate domain.GateID) Result {
	if gateUsed(rec, gate) {
		return deny(domain.DenyAlreadyUsed)
	}

	owner := domain.ConcertOwner(rec.ID)
	now := s.calendar.Now()
	_, err := s.ledger.RecordConcertEntry(ctx, domain.EntryLogEntry{
		ConcertTicketID: rec.ID,
		GateID:          gate,
		Type:            domain.EntryTypeEntry,
		DayNumber:       s.calendar.DayNumber(now),
		LoggedAt:        now,
	})
	switch {
	case errors.Is(err, domain.ErrGateAlreadyUsed):
		s.markGateUsed(rec.Code, gate)
		s.refresher.Enqueue(owner)
		return deny(domain.DenyAlreadyUsed)
	case errors.Is(err, domain.ErrTicketNotFound):
		return deny(domain.DenyNotFound)
	case err != nil:
		s.logger.WithError(err).WithFields(logrus.Fields{
			"code": rec.Code,
			"gate": gate,
		}).Error("concert gate ledger write failed")
		s.refresher.Enqueue(owner)
		return deny(domain.DenyTryAgain)
	}

	s.markGateUsed(rec.Code, gate)
	s.refresher.Enqueue(owner)
	return Result{Reply: Message{Type: TypeScanSuccess, Payload: ScanSuccess{
		Action:      domain.EntryTypeEntry,
		DisplayName: rec.DisplayName,
		Message:     fmt.Sprintf("Entry granted at %s", gate),
		TicketCode:  rec.Code,
		Tier:        rec.Tier,
	}}}
}

// markGateUsed sets the cached flag right away so repeat scans are refused
// without a ledger round trip. The queued refresh rewrites it from the store.
func (s *Service) markGateUsed(code string, gate domain.GateID) {
	_, err := s.cache.Update(code, func(r *domain.TicketRecord) error {
		if r.Gates == nil {
			r.Gates = &domain.GateFlags{}
		}
		if gate == domain.GateCelebrity {
			r.Gates.ArenaGateUsed = true
		} else {
			r.Gates.MainGateUsed = true
		}
		r.LastKnownStatus = domain.EntryTypeEntry
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("code", code).Warn("cache update after gate entry failed")
	}
}

// ToggleMemberStatus flips one team member between ENTRY and EXIT. The ledger
// decides the new status; the cache and every terminal are updated after it.
func (s *Service) ToggleMemberStatus(ctx context.Context, req ToggleMemberRequest) Result {
	if !s.cache.Ready() {
		return deny(domain.DenyWarmingUp)
	}
	if req.TeamID <= 0 || req.MemberID <= 0 {
		return deny(domain.DenyInvalidRequest)
	}
	if req.GateID != domain.GateMain {
		return deny(domain.DenyInvalidScanner)
	}

	owner := domain.TeamOwner(req.TeamID)
	rec, ok, err := s.cache.LookupOwner(owner)
	if err != nil {
		s.logger.WithError(err).WithField("owner", owner.String()).Error("cached ticket unreadable")
		return deny(domain.DenyTryAgain)
	}
	if !ok {
		return deny(domain.DenyNotFound)
	}
	if !cleared(rec) {
		return deny(domain.DenyPaymentNotCleared)
	}
	if rec.Member(req.MemberID) == nil {
		return deny(domain.DenyMemberNotFound)
	}

	now := s.calendar.Now()
	entry, err := s.ledger.ToggleMember(ctx, domain.EntryLogEntry{
		TeamID:    req.TeamID,
		MemberID:  req.MemberID,
		GateID:    req.GateID,
		DayNumber: s.calendar.DayNumber(now),
		LoggedAt:  now,
	})
	switch {
	case errors.Is(err, domain.ErrMemberNotFound):
		return deny(domain.DenyMemberNotFound)
	case err != nil:
		s.logger.WithError(err).WithFields(logrus.Fields{
			"team":   req.TeamID,
			"member": req.MemberID,
		}).Error("toggle member failed")
		return deny(domain.DenyTryAgain)
	}

	updated, err := s.cache.Update(rec.Code, func(r *domain.TicketRecord) error {
		m := r.Member(req.MemberID)
		if m == nil {
			return domain.ErrMemberNotFound
		}
		m.Status = entry.Type
		r.LastKnownStatus = teamStatus(r.Members)
		return nil
	})
	if err != nil {
		// The ledger row stands; the refresh below reconciles the cache.
		s.logger.WithError(err).WithField("owner", owner.String()).Warn("cache update after toggle failed")
		updated = rec
		if m := updated.Member(req.MemberID); m != nil {
			m.Status = entry.Type
		}
	}
	s.refresher.Enqueue(owner)

	member := updated.Member(req.MemberID)
	broadcast := Message{Type: TypeTeamMembersUpdated, Payload: TeamMembersUpdated{
		TeamID:  req.TeamID,
		Members: updated.Members,
	}}
	return Result{
		Reply: Message{Type: TypeMemberLogSuccess, Payload: MemberLogSuccess{
			TeamID:   req.TeamID,
			MemberID: req.MemberID,
			Name:     member.Name,
			Status:   entry.Type,
			Message:  fmt.Sprintf("%s logged %s", member.Name, strings.ToLower(string(entry.Type))),
		}},
		Broadcast: &broadcast,
	}
}

// teamStatus is ENTRY while any member is inside.
func teamStatus(members []domain.MemberStatus) domain.EntryType {
	for _, m := range members {
		if m.Status == domain.EntryTypeEntry {
			return domain.EntryTypeEntry
		}
	}
	return domain.EntryTypeExit
}

// Ready reports whether scans can be served.
func (s *Service) Ready() bool { return s.cache.Ready() }
