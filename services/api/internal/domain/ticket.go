package domain

import (
	"fmt"
	"strconv"
)

// TicketKind tags the variant held by a TicketRecord.
type TicketKind uint8

const (
	TicketKindTeam    TicketKind = 1
	TicketKindConcert TicketKind = 2
)

func (k TicketKind) String() string {
	switch k {
	case TicketKindTeam:
		return "TEAM"
	case TicketKindConcert:
		return "CONCERT"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(k)) + ")"
	}
}

// EntryType is the direction of a ledger row and the in/out status derived from it.
type EntryType string

const (
	EntryTypeEntry EntryType = "ENTRY"
	EntryTypeExit  EntryType = "EXIT"
)

func (t EntryType) Valid() bool {
	return t == EntryTypeEntry || t == EntryTypeExit
}

// Opposite returns the status a toggle moves to.
func (t EntryType) Opposite() EntryType {
	if t == EntryTypeEntry {
		return EntryTypeExit
	}
	return EntryTypeEntry
}

// MemberStatus is a team member as seen by the gate.
type MemberStatus struct {
	ID     int64     `cbor:"1,keyasint" json:"id"`
	Name   string    `cbor:"2,keyasint" json:"name"`
	Status EntryType `cbor:"3,keyasint" json:"status"`
}

// GateFlags records which one-time concert gates a pass has been through.
type GateFlags struct {
	MainGateUsed  bool `cbor:"1,keyasint"`
	ArenaGateUsed bool `cbor:"2,keyasint"`
}

// TicketRecord is the cached projection of a team ticket or a concert ticket.
// It is always derivable from the issuance rows plus the entry ledger and is
// replaced, never merged, on refresh.
//
// Members is only set for TicketKindTeam; Gates and Tier only for
// TicketKindConcert. Validate enforces that.
type TicketRecord struct {
	Kind            TicketKind     `cbor:"1,keyasint"`
	ID              int64          `cbor:"2,keyasint"`
	Code            string         `cbor:"3,keyasint"`
	DisplayName     string         `cbor:"4,keyasint"`
	PaymentState    string         `cbor:"5,keyasint,omitempty"`
	Date            string         `cbor:"6,keyasint"`
	LastKnownStatus EntryType      `cbor:"7,keyasint"`
	Members         []MemberStatus `cbor:"8,keyasint"`
	Gates           *GateFlags     `cbor:"9,keyasint"`
	Tier            string         `cbor:"10,keyasint,omitempty"`
}

// Owner returns the durable owner of the record.
func (r TicketRecord) Owner() OwnerRef {
	return OwnerRef{Kind: r.Kind, ID: r.ID}
}

func (r TicketRecord) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("%w: empty code", ErrInvalidTicketRecord)
	}
	switch r.Kind {
	case TicketKindTeam:
		if r.Gates != nil || r.Tier != "" {
			return fmt.Errorf("%w: team record %s carries concert fields", ErrInvalidTicketRecord, r.Code)
		}
	case TicketKindConcert:
		if len(r.Members) != 0 {
			return fmt.Errorf("%w: concert record %s carries members", ErrInvalidTicketRecord, r.Code)
		}
	default:
		return fmt.Errorf("%w: kind %s", ErrInvalidTicketRecord, r.Kind)
	}
	return nil
}

// Member returns a pointer into Members for the given id.
func (r *TicketRecord) Member(id int64) *MemberStatus {
	for i := range r.Members {
		if r.Members[i].ID == id {
			return &r.Members[i]
		}
	}
	return nil
}

// OwnerRef identifies the durable record a cache entry is derived from.
type OwnerRef struct {
	Kind TicketKind
	ID   int64
}

func (o OwnerRef) String() string {
	switch o.Kind {
	case TicketKindTeam:
		return "team:" + strconv.FormatInt(o.ID, 10)
	case TicketKindConcert:
		return "concert:" + strconv.FormatInt(o.ID, 10)
	default:
		return "unknown:" + strconv.FormatInt(o.ID, 10)
	}
}

func TeamOwner(id int64) OwnerRef    { return OwnerRef{Kind: TicketKindTeam, ID: id} }
func ConcertOwner(id int64) OwnerRef { return OwnerRef{Kind: TicketKindConcert, ID: id} }
