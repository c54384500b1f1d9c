package domain

import "time"

// EntryLogEntry is one append-only row of the entry/exit ledger. Exactly one
// of MemberID or ConcertTicketID is set.
type EntryLogEntry struct {
	ID              int64
	TeamID          int64
	MemberID        int64
	ConcertTicketID int64
	GateID          GateID
	Type            EntryType
	DayNumber       int
	LoggedAt        time.Time
}

// Owner returns the ticket owner the row belongs to.
func (e EntryLogEntry) Owner() OwnerRef {
	if e.ConcertTicketID != 0 {
		return ConcertOwner(e.ConcertTicketID)
	}
	return TeamOwner(e.TeamID)
}
