package domain

import "errors"

var (
	ErrInvalidID              = errors.New("invalid id")
	ErrEventNotFound          = errors.New("event not found")
	ErrEventNameRequired      = errors.New("event name required")
	ErrInvalidEventDate       = errors.New("invalid event date")
	ErrDepartmentNotFound     = errors.New("department not found")
	ErrDepartmentExists       = errors.New("department already exists")
	ErrConcertNotFound        = errors.New("concert not found")
	ErrConcertNameRequired    = errors.New("concert name required")
	ErrTierNotFound           = errors.New("tier not found")
	ErrTierExists             = errors.New("tier already exists")
	ErrInvalidTicketLimit     = errors.New("invalid ticket limit")
	ErrInvalidPrice           = errors.New("invalid price")
	ErrSoldOut                = errors.New("sold out")
	ErrInvalidCode            = errors.New("invalid registration code")
	ErrInviteCodeUsed         = errors.New("invite code already used")
	ErrInviteCodeWrongEvent   = errors.New("invite code not valid for this event")
	ErrDuplicateRegistration  = errors.New("team already registered for this event")
	ErrTeamNotFound           = errors.New("team not found")
	ErrMemberNotFound         = errors.New("member not found")
	ErrInvalidTeamSize        = errors.New("invalid team size")
	ErrTeamNameRequired       = errors.New("team name required")
	ErrCollegeRequired        = errors.New("college name required")
	ErrTicketNotFound         = errors.New("ticket not found")
	ErrTicketCodeTaken        = errors.New("ticket code already taken")
	ErrGateAlreadyUsed        = errors.New("gate already used")
	ErrInvalidGate            = errors.New("invalid gate")
	ErrInvalidEntryType       = errors.New("invalid entry type")
	ErrInvalidPaymentStatus   = errors.New("invalid payment status")
	ErrPaymentRequired        = errors.New("payment verification required")
	ErrInvalidSignature       = errors.New("invalid payment signature")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidTicketRecord    = errors.New("invalid ticket record")
	ErrCacheNotReady          = errors.New("ticket cache not ready")
	ErrConcurrentModification = errors.New("concurrent modification")
)
