package domain

import "time"

// IssuedTicket describes a freshly issued pass to downstream delivery (email,
// sheet export). Those consumers live outside this service.
type IssuedTicket struct {
	Kind       TicketKind `json:"-"`
	KindName   string     `json:"kind"`
	OwnerID    int64      `json:"owner_id"`
	TicketCode string     `json:"ticket_code"`
	HolderName string     `json:"holder_name"`
	Email      string     `json:"email,omitempty"`
	Date       string     `json:"date"`
	Tier       string     `json:"tier,omitempty"`
	IssuedAt   time.Time  `json:"issued_at"`
}
