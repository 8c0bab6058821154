package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	service "github.com/okian/matchcast/internal/app"
	"github.com/okian/matchcast/internal/domain/predictor"
)

const maxRequestBody = 1 << 20

// PredictDependencies defines the prediction operation.
type PredictDependencies interface {
	Predict(ctx context.Context, team string) (Report, error)
}

// PredictHandler handles prediction requests.
type PredictHandler struct {
	deps PredictDependencies
}

// NewPredictHandler creates a new predict handler.
func NewPredictHandler(deps PredictDependencies) *PredictHandler {
	return &PredictHandler{deps: deps}
}

// predictRequest mirrors the OpenAPI schema for POST /predict.
type predictRequest struct {
	Team string `json:"team"`
}

// HandlePredict handles POST /predict requests.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	const op = "api.predict"
	if r.Method != http.MethodPost {
		methodNotAllowed(w, op, http.MethodPost)
		return
	}

	var req predictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		req.Team = ""
	}
	team := strings.TrimSpace(req.Team)
	if team == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, predictor.ErrTeamRequired))
		return
	}

	report, err := h.deps.Predict(r.Context(), team)
	if err != nil {
		err = classify(op, err)
		status, code := statusOf(err)
		writeError(w, status, code, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, predictor.ErrTeamRequired):
		return WrapKind(op, ErrBadRequest, err)
	case errors.Is(err, predictor.ErrTeamNotFound):
		return WrapKind(op, ErrNotFound, err)
	case errors.Is(err, service.ErrNotStarted), errors.Is(err, context.Canceled):
		return WrapKind(op, ErrUnavailable, err)
	default:
		return WrapKind(op, ErrInternal, err)
	}
}
