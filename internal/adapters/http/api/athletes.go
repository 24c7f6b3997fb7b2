package api

import (
	"context"
	"net/http"

	service "github.com/okian/athletegraph/internal/app"
	"github.com/okian/athletegraph/internal/domain/model"
	"github.com/okian/athletegraph/pkg/logger"
)

// AthleteDependencies lists and upserts the athletes visible to a credential.
type AthleteDependencies interface {
	Athletes(ctx context.Context, credential string) ([]model.Athlete, error)
	UpsertAthlete(ctx context.Context, in service.AthleteInput, credential string) (model.Athlete, error)
}

// AthletesHandler serves the coach-scoped athlete routes.
type AthletesHandler struct {
	deps AthleteDependencies
	log  logger.Logger
}

// NewAthletesHandler creates a new athletes handler.
func NewAthletesHandler(deps AthleteDependencies, log logger.Logger) *AthletesHandler {
	return &AthletesHandler{deps: deps, log: log}
}

type athletesResponse struct {
	Athletes []model.Athlete `json:"athletes"`
}

// HandleAthletes handles GET and POST /athletes requests.
func (h *AthletesHandler) HandleAthletes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.upsert(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *AthletesHandler) list(w http.ResponseWriter, r *http.Request) {
	athletes, err := h.deps.Athletes(r.Context(), r.Header.Get(headerAPIKey))
	if err != nil {
		h.fail(w, r, "list athletes failed", err)
		return
	}
	writeJSON(w, http.StatusOK, athletesResponse{Athletes: athletes})
}

func (h *AthletesHandler) upsert(w http.ResponseWriter, r *http.Request) {
	const op = "api.athletes_upsert"
	var in service.AthleteInput
	if err := decode(w, r, &in); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	a, err := h.deps.UpsertAthlete(r.Context(), in, r.Header.Get(headerAPIKey))
	if err != nil {
		h.fail(w, r, "upsert athlete failed", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *AthletesHandler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), msg,
			logger.String("code", code),
			logger.String("request_id", RequestIDFrom(r.Context())),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}
