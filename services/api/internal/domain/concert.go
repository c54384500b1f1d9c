package domain

import "time"

type Concert struct {
	ID   int64
	Name string
	Date string
}

// TierInventory caps how many tickets of a tier can be sold. TicketsSold never
// exceeds TicketLimit.
type TierInventory struct {
	ConcertID   int64
	Tier        string
	Price       int64
	TicketLimit int
	TicketsSold int
}

func (t TierInventory) Available() int {
	return t.TicketLimit - t.TicketsSold
}

type ConcertTicket struct {
	ID         int64
	ConcertID  int64
	Tier       string
	TicketCode string
	BuyerName  string
	BuyerEmail string
	OrderID    string
	PaymentID  string
	CreatedAt  time.Time
}
