package domain

// GateID names the physical checkpoint a scanner is attached to.
type GateID string

const (
	GateMain      GateID = "MAIN_GATE"
	GateCelebrity GateID = "CELEBRITY_GATE"
)

func (g GateID) Valid() bool {
	return g == GateMain || g == GateCelebrity
}

// DenialReason is the finite vocabulary sent to a terminal when a scan or
// toggle is refused. Raw storage errors never reach the terminal.
type DenialReason string

const (
	DenyWarmingUp      DenialReason = "system_warming_up"
	DenyNotFound       DenialReason = "not_found"
	DenyNotValidToday  DenialReason = "not_valid_today"
	DenyWrongPassType  DenialReason = "wrong_pass_type"
	DenyAlreadyUsed    DenialReason = "already_used"
	DenyInvalidScanner DenialReason = "invalid_scanner"
	DenyInvalidRequest DenialReason = "invalid_request"
	DenyMemberNotFound DenialReason = "member_not_found"
	DenyTryAgain       DenialReason = "try_again"

	DenyPaymentNotCleared DenialReason = "payment_not_cleared"
)

var denialMessages = map[DenialReason]string{
	DenyWarmingUp:      "System warming up, please retry in a moment",
	DenyNotFound:       "Ticket not found",
	DenyNotValidToday:  "Ticket not valid today",
	DenyWrongPassType:  "Wrong pass type for this gate",
	DenyAlreadyUsed:    "Ticket already used at this gate",
	DenyInvalidScanner: "Invalid scanner",
	DenyInvalidRequest: "Invalid request",
	DenyMemberNotFound: "Member not found on this team",
	DenyTryAgain:       "Something went wrong, please try again",

	DenyPaymentNotCleared: "Payment or approval not cleared",
}

// Message is the operator-facing text for the reason.
func (r DenialReason) Message() string {
	if msg, ok := denialMessages[r]; ok {
		return msg
	}
	return denialMessages[DenyTryAgain]
}

// Retryable reports whether resending the same request may succeed.
func (r DenialReason) Retryable() bool {
	return r == DenyWarmingUp || r == DenyTryAgain
}
