package domain

import "time"

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusExempt   PaymentStatus = "EXEMPT"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusRejected PaymentStatus = "REJECTED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusExempt, PaymentStatusApproved, PaymentStatusRejected:
		return true
	}
	return false
}

// Admits reports whether a pass in this state may go through a gate.
func (s PaymentStatus) Admits() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusExempt, PaymentStatusApproved:
		return true
	}
	return false
}

// Event is a competition teams register for. Date is the festival day it runs
// on, formatted as 2006-01-02.
type Event struct {
	ID      int64
	Name    string
	Date    string
	Fee     int64
	MinTeam int
	MaxTeam int
}

// Department is an internal department registering through its secret code.
type Department struct {
	ID         int64
	Name       string
	SecretCode string
}

// College is an external institution onboarded through an invite code.
type College struct {
	ID   int64
	Name string
}

// InviteCode scopes an external college to one event. IsUsed is true iff
// UsedByTeamID is set.
type InviteCode struct {
	Code         string
	EventID      int64
	IsUsed       bool
	UsedByTeamID *int64
}

type Team struct {
	ID            int64
	EventID       int64
	DepartmentID  *int64
	CollegeID     *int64
	Name          string
	TicketCode    string
	PaymentStatus PaymentStatus
	OrderID       string
	PaymentID     string
	InviteCode    string
	CreatedAt     time.Time
	Members       []TeamMember
}

type TeamMember struct {
	ID     int64
	TeamID int64
	Name   string
	Email  string
	Phone  string
}
