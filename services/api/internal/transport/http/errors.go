package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cimillas/panache/services/api/internal/app"
	"github.com/cimillas/panache/services/api/internal/domain"
)

const (
	codeMethodNotAllowed      = "method_not_allowed"
	codeNotFound              = "not_found"
	codeInvalidRequestBody    = "invalid_request_body"
	codeInvalidField          = "invalid_field"
	codeInvalidID             = "invalid_id"
	codeEventNotFound         = "event_not_found"
	codeEventNameRequired     = "event_name_required"
	codeInvalidEventDate      = "invalid_event_date"
	codeDepartmentExists      = "department_exists"
	codeConcertNotFound       = "concert_not_found"
	codeConcertNameRequired   = "concert_name_required"
	codeTierNotFound          = "tier_not_found"
	codeTierExists            = "tier_exists"
	codeInvalidTicketLimit    = "invalid_ticket_limit"
	codeInvalidPrice          = "invalid_price"
	codeSoldOut               = "sold_out"
	codeInvalidCode           = "invalid_code"
	codeInviteCodeUsed        = "invite_code_used"
	codeInviteCodeWrongEvent  = "invite_code_wrong_event"
	codeDuplicateRegistration = "duplicate_registration"
	codeTeamNotFound          = "team_not_found"
	codeMemberNotFound        = "member_not_found"
	codeTicketNotFound        = "ticket_not_found"
	codeInvalidTeamSize       = "invalid_team_size"
	codeTeamNameRequired      = "team_name_required"
	codeCollegeRequired       = "college_required"
	codeGateAlreadyUsed       = "gate_already_used"
	codeInvalidGate           = "invalid_gate"
	codeInvalidEntryType      = "invalid_entry_type"
	codeInvalidPaymentStatus  = "invalid_payment_status"
	codePaymentRequired       = "payment_required"
	codeInvalidSignature      = "invalid_signature"
	codeInvalidQuantity       = "invalid_quantity"
	codeConcurrentUpdate      = "concurrent_update"
	codeHydrationInProgress   = "hydration_in_progress"
	codeNotReady              = "not_ready"
	codeForbidden             = "forbidden"
	codeInternalError         = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

// serviceErrors maps domain failures to responses. Order matters only where
// one error wraps another.
var serviceErrors = []errorMapping{
	{domain.ErrInvalidID, http.StatusBadRequest, codeInvalidID},
	{domain.ErrEventNotFound, http.StatusNotFound, codeEventNotFound},
	{domain.ErrEventNameRequired, http.StatusBadRequest, codeEventNameRequired},
	{domain.ErrInvalidEventDate, http.StatusBadRequest, codeInvalidEventDate},
	{domain.ErrDepartmentExists, http.StatusConflict, codeDepartmentExists},
	{domain.ErrConcertNotFound, http.StatusNotFound, codeConcertNotFound},
	{domain.ErrConcertNameRequired, http.StatusBadRequest, codeConcertNameRequired},
	{domain.ErrTierNotFound, http.StatusNotFound, codeTierNotFound},
	{domain.ErrTierExists, http.StatusConflict, codeTierExists},
	{domain.ErrInvalidTicketLimit, http.StatusBadRequest, codeInvalidTicketLimit},
	{domain.ErrInvalidPrice, http.StatusBadRequest, codeInvalidPrice},
	{domain.ErrSoldOut, http.StatusConflict, codeSoldOut},
	{domain.ErrInvalidCode, http.StatusBadRequest, codeInvalidCode},
	{domain.ErrInviteCodeUsed, http.StatusConflict, codeInviteCodeUsed},
	{domain.ErrInviteCodeWrongEvent, http.StatusBadRequest, codeInviteCodeWrongEvent},
	{domain.ErrDuplicateRegistration, http.StatusConflict, codeDuplicateRegistration},
	{domain.ErrTeamNotFound, http.StatusNotFound, codeTeamNotFound},
	{domain.ErrMemberNotFound, http.StatusNotFound, codeMemberNotFound},
	{domain.ErrTicketNotFound, http.StatusNotFound, codeTicketNotFound},
	{domain.ErrInvalidTeamSize, http.StatusBadRequest, codeInvalidTeamSize},
	{domain.ErrTeamNameRequired, http.StatusBadRequest, codeTeamNameRequired},
	{domain.ErrCollegeRequired, http.StatusBadRequest, codeCollegeRequired},
	{domain.ErrGateAlreadyUsed, http.StatusConflict, codeGateAlreadyUsed},
	{domain.ErrInvalidGate, http.StatusBadRequest, codeInvalidGate},
	{domain.ErrInvalidEntryType, http.StatusBadRequest, codeInvalidEntryType},
	{domain.ErrInvalidPaymentStatus, http.StatusBadRequest, codeInvalidPaymentStatus},
	{domain.ErrPaymentRequired, http.StatusPaymentRequired, codePaymentRequired},
	{domain.ErrInvalidSignature, http.StatusBadRequest, codeInvalidSignature},
	{domain.ErrInvalidQuantity, http.StatusBadRequest, codeInvalidQuantity},
	{domain.ErrConcurrentModification, http.StatusConflict, codeConcurrentUpdate},
	{app.ErrHydrationInProgress, http.StatusConflict, codeHydrationInProgress},
}

// writeServiceError translates err into a stable code. Anything unmapped is
// reported as an opaque internal error.
func writeServiceError(w http.ResponseWriter, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			writeError(w, m.status, m.code, m.err.Error())
			return
		}
	}
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
