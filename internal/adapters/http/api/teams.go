package api

import (
	"context"
	"net/http"
)

// TeamsDependencies lists the teams that can be predicted.
type TeamsDependencies interface {
	Teams(ctx context.Context) ([]string, error)
}

// TeamsHandler handles team listing requests.
type TeamsHandler struct {
	deps TeamsDependencies
}

// NewTeamsHandler creates a new teams handler.
func NewTeamsHandler(deps TeamsDependencies) *TeamsHandler {
	return &TeamsHandler{deps: deps}
}

type teamsResponse struct {
	Teams []string `json:"teams"`
}

// HandleTeams handles GET /teams requests.
func (h *TeamsHandler) HandleTeams(w http.ResponseWriter, r *http.Request) {
	const op = "api.teams"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}
	teams, err := h.deps.Teams(r.Context())
	if err != nil {
		err = classify(op, err)
		status, code := statusOf(err)
		writeError(w, status, code, err)
		return
	}
	if teams == nil {
		teams = []string{}
	}
	writeJSON(w, http.StatusOK, teamsResponse{Teams: teams})
}
