package http

import (
	"context"
	"net/http"
	"time"

	"github.com/cimillas/panache/services/api/internal/app"
	"github.com/cimillas/panache/services/api/internal/domain"
	"github.com/cimillas/panache/services/api/internal/payment"
)

// TeamRegistrar is the minimal interface needed to register a team.
type TeamRegistrar interface {
	RegisterTeam(ctx context.Context, in app.RegisterTeamInput) (domain.Team, error)
}

// HandleRegisterTeam returns an HTTP handler issuing a team pass.
func HandleRegisterTeam(svc TeamRegistrar) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerTeamRequest
		if !decodeRequest(w, r, &req) {
			return
		}

		in := app.RegisterTeamInput{
			EventID:     req.EventID,
			Code:        req.Code,
			TeamName:    req.TeamName,
			CollegeName: req.CollegeName,
			Payment:     req.Payment,
		}
		for _, m := range req.Members {
			in.Members = append(in.Members, app.MemberInput{Name: m.Name, Email: m.Email, Phone: m.Phone})
		}

		team, err := svc.RegisterTeam(r.Context(), in)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newTeamResponse(team))
	}
}

type registerTeamRequest struct {
	EventID     int64           `json:"event_id" validate:"required,gt=0"`
	Code        string          `json:"code" validate:"required,max=64"`
	TeamName    string          `json:"team_name" validate:"required,max=120"`
	CollegeName string          `json:"college_name,omitempty" validate:"max=200"`
	Members     []memberRequest `json:"members" validate:"required,min=1,max=20,dive"`
	Payment     *payment.Proof  `json:"payment,omitempty"`
}

type memberRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Phone string `json:"phone,omitempty" validate:"max=32"`
}

type teamResponse struct {
	ID            int64            `json:"id"`
	EventID       int64            `json:"event_id"`
	Name          string           `json:"name"`
	TicketCode    string           `json:"ticket_code"`
	PaymentStatus string           `json:"payment_status"`
	InviteCode    string           `json:"invite_code,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	Members       []memberResponse `json:"members"`
}

type memberResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

func newTeamResponse(team domain.Team) teamResponse {
	resp := teamResponse{
		ID:            team.ID,
		EventID:       team.EventID,
		Name:          team.Name,
		TicketCode:    team.TicketCode,
		PaymentStatus: string(team.PaymentStatus),
		InviteCode:    team.InviteCode,
		CreatedAt:     team.CreatedAt,
		Members:       make([]memberResponse, 0, len(team.Members)),
	}
	for _, m := range team.Members {
		resp.Members = append(resp.Members, memberResponse{ID: m.ID, Name: m.Name, Email: m.Email, Phone: m.Phone})
	}
	return resp
}
