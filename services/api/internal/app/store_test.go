package app

import (
	"context"
	"errors"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/sirupsen/logrus"
)

// memStore is an in-memory stand-in for the Postgres repositories. WithTx
// serializes transactions and rolls back state on error.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   memState

	// pageErrAfter makes the nth page call fail (1-based) when set.
	pageErrAfter int
	pageCalls    int
}

type memState struct {
	nextID         int64
	events         map[int64]domain.Event
	departments    map[int64]domain.Department
	colleges       map[int64]domain.College
	invites        map[string]domain.InviteCode
	teams          map[int64]domain.Team
	concerts       map[int64]domain.Concert
	tiers          map[string]domain.TierInventory
	concertTickets map[int64]domain.ConcertTicket
	ledger         []domain.EntryLogEntry
}

var errPageFailed = errors.New("page failed")

func newMemStore() *memStore {
	return &memStore{st: memState{
		events:         map[int64]domain.Event{},
		departments:    map[int64]domain.Department{},
		colleges:       map[int64]domain.College{},
		invites:        map[string]domain.InviteCode{},
		teams:          map[int64]domain.Team{},
		concerts:       map[int64]domain.Concert{},
		tiers:          map[string]domain.TierInventory{},
		concertTickets: map[int64]domain.ConcertTicket{},
	}}
}

func (s memState) clone() memState {
	c := s
	c.events = cloneMap(s.events)
	c.departments = cloneMap(s.departments)
	c.colleges = cloneMap(s.colleges)
	c.invites = cloneMap(s.invites)
	c.teams = cloneMap(s.teams)
	c.concerts = cloneMap(s.concerts)
	c.tiers = cloneMap(s.tiers)
	c.concertTickets = cloneMap(s.concertTickets)
	c.ledger = append([]domain.EntryLogEntry(nil), s.ledger...)
	return c
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func tierKey(concertID int64, tier string) string {
	return strconv.FormatInt(concertID, 10) + "|" + tier
}

func (m *memStore) id() int64 {
	m.st.nextID++
	return m.st.nextID
}

func (m *memStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	m.mu.Lock()
	saved := m.st.clone()
	m.mu.Unlock()
	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.st = saved
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) WithSerializableTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.WithTx(ctx, fn)
}

// seeding helpers

func (m *memStore) addEvent(e domain.Event) domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	m.st.events[e.ID] = e
	return e
}

func (m *memStore) addDepartment(name, secret string) domain.Department {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := domain.Department{ID: m.id(), Name: name, SecretCode: secret}
	m.st.departments[d.ID] = d
	return d
}

func (m *memStore) addInvite(code string, eventID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.invites[code] = domain.InviteCode{Code: code, EventID: eventID}
}

func (m *memStore) addConcert(c domain.Concert, tiers ...domain.TierInventory) domain.Concert {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	m.st.concerts[c.ID] = c
	for _, t := range tiers {
		t.ConcertID = c.ID
		m.st.tiers[tierKey(c.ID, t.Tier)] = t
	}
	return c
}

func (m *memStore) teamCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.teams)
}

func (m *memStore) ticketCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.st.concertTickets)
}

func (m *memStore) tier(concertID int64, tier string) domain.TierInventory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.tiers[tierKey(concertID, tier)]
}

func (m *memStore) invite(code string) domain.InviteCode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.invites[code]
}

// RegistrationRepository

func (m *memStore) GetEvent(_ context.Context, eventID int64) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.st.events[eventID]
	if !ok {
		return domain.Event{}, domain.ErrEventNotFound
	}
	return e, nil
}

func (m *memStore) FindDepartmentBySecret(_ context.Context, secret string) (*domain.Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.st.departments {
		if d.SecretCode == secret {
			d := d
			return &d, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetInviteCodeForUpdate(_ context.Context, code string) (*domain.InviteCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.st.invites[code]
	if !ok {
		return nil, nil
	}
	return &inv, nil
}

func (m *memStore) FindOrCreateCollege(_ context.Context, name string) (domain.College, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.st.colleges {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	c := domain.College{ID: m.id(), Name: name}
	m.st.colleges[c.ID] = c
	return c, nil
}

func (m *memStore) TeamExists(_ context.Context, eventID int64, departmentID, collegeID *int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.st.teams {
		if t.EventID != eventID {
			continue
		}
		if departmentID != nil && t.DepartmentID != nil && *t.DepartmentID == *departmentID {
			return true, nil
		}
		if collegeID != nil && t.CollegeID != nil && *t.CollegeID == *collegeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateTeam(_ context.Context, team *domain.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.st.teams {
		if t.TicketCode == team.TicketCode {
			return domain.ErrTicketCodeTaken
		}
	}
	team.ID = m.id()
	for i := range team.Members {
		team.Members[i].ID = m.id()
		team.Members[i].TeamID = team.ID
	}
	stored := *team
	stored.Members = append([]domain.TeamMember(nil), team.Members...)
	m.st.teams[team.ID] = stored
	return nil
}

func (m *memStore) ConsumeInviteCode(_ context.Context, code string, teamID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.st.invites[code]
	if !ok || inv.IsUsed {
		return domain.ErrInviteCodeUsed
	}
	inv.IsUsed = true
	inv.UsedByTeamID = &teamID
	m.st.invites[code] = inv
	return nil
}

// ConcertRepository

func (m *memStore) GetConcert(_ context.Context, concertID int64) (domain.Concert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.st.concerts[concertID]
	if !ok {
		return domain.Concert{}, domain.ErrConcertNotFound
	}
	return c, nil
}

func (m *memStore) FindTicketByPaymentID(_ context.Context, paymentID string) (*domain.ConcertTicket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.st.concertTickets {
		if t.PaymentID == paymentID {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (m *memStore) ReserveTierSlot(_ context.Context, concertID int64, tier string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.st.tiers[tierKey(concertID, tier)]
	if !ok {
		return domain.ErrTierNotFound
	}
	if inv.TicketsSold >= inv.TicketLimit {
		return domain.ErrSoldOut
	}
	inv.TicketsSold++
	m.st.tiers[tierKey(concertID, tier)] = inv
	return nil
}

func (m *memStore) CreateConcertTicket(_ context.Context, ticket *domain.ConcertTicket) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ticket.ID = m.id()
	m.st.concertTickets[ticket.ID] = *ticket
	return nil
}

func (m *memStore) GetTier(_ context.Context, concertID int64, tier string) (domain.TierInventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.st.tiers[tierKey(concertID, tier)]
	if !ok {
		return domain.TierInventory{}, domain.ErrTierNotFound
	}
	return inv, nil
}

// AdminRepository

func (m *memStore) CreateEvent(_ context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	m.st.events[e.ID] = *e
	return nil
}

func (m *memStore) ListEvents(_ context.Context) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Event, 0, len(m.st.events))
	for _, e := range m.st.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateDepartment(_ context.Context, d *domain.Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.departments {
		if existing.SecretCode == d.SecretCode {
			return domain.ErrDepartmentExists
		}
	}
	d.ID = m.id()
	m.st.departments[d.ID] = *d
	return nil
}

func (m *memStore) CreateConcert(_ context.Context, c *domain.Concert, tiers []domain.TierInventory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id()
	m.st.concerts[c.ID] = *c
	for _, t := range tiers {
		t.ConcertID = c.ID
		m.st.tiers[tierKey(c.ID, t.Tier)] = t
	}
	return nil
}

func (m *memStore) ListTiers(_ context.Context, concertID int64) ([]domain.TierInventory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.concerts[concertID]; !ok {
		return nil, domain.ErrConcertNotFound
	}
	var out []domain.TierInventory
	for _, t := range m.st.tiers {
		if t.ConcertID == concertID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out, nil
}

func (m *memStore) CreateInviteCodes(_ context.Context, eventID int64, codes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.events[eventID]; !ok {
		return domain.ErrEventNotFound
	}
	for _, code := range codes {
		m.st.invites[code] = domain.InviteCode{Code: code, EventID: eventID}
	}
	return nil
}

func (m *memStore) UpdateTeamPaymentStatus(_ context.Context, teamID int64, status domain.PaymentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.st.teams[teamID]
	if !ok {
		return domain.ErrTeamNotFound
	}
	t.PaymentStatus = status
	m.st.teams[teamID] = t
	return nil
}

func (m *memStore) GetTeam(_ context.Context, teamID int64) (domain.Team, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.st.teams[teamID]
	if !ok {
		return domain.Team{}, domain.ErrTeamNotFound
	}
	return t, nil
}

// EntryRecorder

func (m *memStore) AppendManual(_ context.Context, e domain.EntryLogEntry) (domain.EntryLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	m.st.ledger = append(m.st.ledger, e)
	return e, nil
}

// RecordConcertEntry mirrors the unique gate entry index of the ledger.
func (m *memStore) RecordConcertEntry(_ context.Context, e domain.EntryLogEntry) (domain.EntryLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.st.concertTickets[e.ConcertTicketID]; !ok {
		return domain.EntryLogEntry{}, domain.ErrTicketNotFound
	}
	for _, r := range m.st.ledger {
		if r.ConcertTicketID == e.ConcertTicketID && r.GateID == e.GateID && r.Type == domain.EntryTypeEntry {
			return domain.EntryLogEntry{}, domain.ErrGateAlreadyUsed
		}
	}
	e.ID = m.id()
	e.Type = domain.EntryTypeEntry
	m.st.ledger = append(m.st.ledger, e)
	return e, nil
}

func (m *memStore) ToggleMember(_ context.Context, e domain.EntryLogEntry) (domain.EntryLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	last := domain.EntryTypeExit
	for _, r := range m.st.ledger {
		if r.MemberID == e.MemberID {
			last = r.Type
		}
	}
	e.ID = m.id()
	e.Type = last.Opposite()
	m.st.ledger = append(m.st.ledger, e)
	return e, nil
}

func (m *memStore) MemberEntries(_ context.Context, memberID int64) ([]domain.EntryLogEntry, error) {
	return m.entries(func(e domain.EntryLogEntry) bool { return e.MemberID == memberID }), nil
}

func (m *memStore) ConcertEntries(_ context.Context, ticketID int64) ([]domain.EntryLogEntry, error) {
	return m.entries(func(e domain.EntryLogEntry) bool { return e.ConcertTicketID == ticketID }), nil
}

func (m *memStore) entries(match func(domain.EntryLogEntry) bool) []domain.EntryLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EntryLogEntry
	for _, e := range m.st.ledger {
		if match(e) {
			out = append(out, e)
		}
	}
	return out
}

// TicketSource

func (m *memStore) TeamTicketsAfter(_ context.Context, afterID int64, limit int) ([]domain.TicketRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pageFault(); err != nil {
		return nil, err
	}
	var ids []int64
	for id := range m.st.teams {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.TicketRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.teamRecord(m.st.teams[id]))
	}
	return out, nil
}

func (m *memStore) ConcertTicketsAfter(_ context.Context, afterID int64, limit int) ([]domain.TicketRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.pageFault(); err != nil {
		return nil, err
	}
	var ids []int64
	for id := range m.st.concertTickets {
		if id > afterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.TicketRecord, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.concertRecord(m.st.concertTickets[id]))
	}
	return out, nil
}

func (m *memStore) TeamTicket(_ context.Context, teamID int64) (domain.TicketRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.st.teams[teamID]
	if !ok {
		return domain.TicketRecord{}, domain.ErrTicketNotFound
	}
	return m.teamRecord(t), nil
}

func (m *memStore) ConcertTicket(_ context.Context, ticketID int64) (domain.TicketRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.st.concertTickets[ticketID]
	if !ok {
		return domain.TicketRecord{}, domain.ErrTicketNotFound
	}
	return m.concertRecord(t), nil
}

func (m *memStore) pageFault() error {
	m.pageCalls++
	if m.pageErrAfter > 0 && m.pageCalls >= m.pageErrAfter {
		return errPageFailed
	}
	return nil
}

func (m *memStore) teamRecord(t domain.Team) domain.TicketRecord {
	rec := domain.TicketRecord{
		Kind:            domain.TicketKindTeam,
		ID:              t.ID,
		Code:            t.TicketCode,
		DisplayName:     t.Name,
		PaymentState:    string(t.PaymentStatus),
		Date:            m.st.events[t.EventID].Date,
		LastKnownStatus: domain.EntryTypeExit,
		Members:         []domain.MemberStatus{},
	}
	for _, mem := range t.Members {
		status := domain.EntryTypeExit
		for _, e := range m.st.ledger {
			if e.MemberID == mem.ID {
				status = e.Type
			}
		}
		if status == domain.EntryTypeEntry {
			rec.LastKnownStatus = domain.EntryTypeEntry
		}
		rec.Members = append(rec.Members, domain.MemberStatus{ID: mem.ID, Name: mem.Name, Status: status})
	}
	return rec
}

func (m *memStore) concertRecord(t domain.ConcertTicket) domain.TicketRecord {
	rec := domain.TicketRecord{
		Kind:            domain.TicketKindConcert,
		ID:              t.ID,
		Code:            t.TicketCode,
		DisplayName:     t.BuyerName,
		PaymentState:    string(domain.PaymentStatusPaid),
		Date:            m.st.concerts[t.ConcertID].Date,
		LastKnownStatus: domain.EntryTypeExit,
		Gates:           &domain.GateFlags{},
		Tier:            t.Tier,
	}
	for _, e := range m.st.ledger {
		if e.ConcertTicketID != t.ID {
			continue
		}
		rec.LastKnownStatus = e.Type
		if e.Type != domain.EntryTypeEntry {
			continue
		}
		switch e.GateID {
		case domain.GateMain:
			rec.Gates.MainGateUsed = true
		case domain.GateCelebrity:
			rec.Gates.ArenaGateUsed = true
		}
	}
	return rec
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type recordingNotifier struct {
	mu     sync.Mutex
	issued []domain.IssuedTicket
}

func (n *recordingNotifier) NotifyTicketIssued(_ context.Context, t domain.IssuedTicket) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.issued = append(n.issued, t)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.issued)
}
