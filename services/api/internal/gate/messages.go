package gate

import (
	"encoding/json"

	"github.com/cimillas/panache/services/api/internal/domain"
)

// Message types exchanged with scanning terminals.
const (
	TypeVerifyScan         = "VERIFY_SCAN"
	TypeScanSuccess        = "SCAN_SUCCESS"
	TypeScanError          = "SCAN_ERROR"
	TypeScanTeamDetails    = "SCAN_TEAM_DETAILS"
	TypeToggleMemberStatus = "TOGGLE_MEMBER_STATUS"
	TypeMemberLogSuccess   = "MEMBER_LOG_SUCCESS"
	TypeTeamMembersUpdated = "TEAM_MEMBERS_UPDATED"
	TypeSystemStatus       = "SYSTEM_STATUS"
	TypeSystemReady        = "SYSTEM_READY"
)

// Envelope is an inbound frame before its payload is decoded.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is an outbound frame.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type VerifyScanRequest struct {
	TicketCode string        `json:"ticketCode"`
	GateID     domain.GateID `json:"gateId"`
}

type ToggleMemberRequest struct {
	TeamID   int64         `json:"teamId"`
	MemberID int64         `json:"memberId"`
	GateID   domain.GateID `json:"gateId"`
}

type ScanSuccess struct {
	Action      domain.EntryType `json:"action"`
	DisplayName string           `json:"displayName"`
	Message     string           `json:"message"`
	TicketCode  string           `json:"ticketCode"`
	Tier        string           `json:"tier,omitempty"`
}

type ScanError struct {
	Error     string              `json:"error"`
	Reason    domain.DenialReason `json:"reason"`
	Retryable bool                `json:"retryable"`
}

type TeamDetails struct {
	TeamName     string                `json:"teamName"`
	TeamID       int64                 `json:"teamId"`
	TicketCode   string                `json:"ticketCode"`
	PaymentState string                `json:"paymentState"`
	Members      []domain.MemberStatus `json:"members"`
}

type MemberLogSuccess struct {
	TeamID   int64            `json:"teamId"`
	MemberID int64            `json:"memberId"`
	Name     string           `json:"name"`
	Status   domain.EntryType `json:"status"`
	Message  string           `json:"message"`
}

type TeamMembersUpdated struct {
	TeamID  int64                 `json:"teamId"`
	Members []domain.MemberStatus `json:"members"`
}

type SystemStatus struct {
	IsReady bool `json:"isReady"`
}

// Denied builds the SCAN_ERROR frame for reason.
func Denied(reason domain.DenialReason) Message {
	return Message{Type: TypeScanError, Payload: ScanError{
		Error:     reason.Message(),
		Reason:    reason,
		Retryable: reason.Retryable(),
	}}
}

// StatusMessage is sent to every terminal when it connects.
func StatusMessage(ready bool) Message {
	return Message{Type: TypeSystemStatus, Payload: SystemStatus{IsReady: ready}}
}

// ReadyMessage is broadcast once hydration completes.
func ReadyMessage() Message {
	return Message{Type: TypeSystemReady}
}
