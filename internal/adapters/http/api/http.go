// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/okian/athletegraph/internal/app"
	"github.com/okian/athletegraph/internal/domain/model"
	"github.com/okian/athletegraph/pkg/logger"
)

// headerAPIKey carries the caller's credential.
const headerAPIKey = "X-API-Key"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 8 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	IngestOne(ctx context.Context, in service.MetricInput, credential string) error
	IngestBatch(ctx context.Context, items []service.MetricInput, credential string) (service.BatchResult, error)
	Units() []string
	Athletes(ctx context.Context, credential string) ([]model.Athlete, error)
	UpsertAthlete(ctx context.Context, in service.AthleteInput, credential string) (model.Athlete, error)
	Health(ctx context.Context) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	ingestHandler   *IngestHandler
	unitsHandler    *UnitsHandler
	athletesHandler *AthletesHandler
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	cors            *CORS
	log             logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS origin allow-list.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.cors = NewCORS(origins)
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		cors: NewCORS(nil),
		log:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ingestHandler = NewIngestHandler(deps, s.log)
	s.unitsHandler = NewUnitsHandler(deps)
	s.athletesHandler = NewAthletesHandler(deps, s.log)
	s.healthHandler = NewHealthHandler(deps)
	s.statsHandler = NewStatsHandler(stats)
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	route := func(path, endpoint string, h http.HandlerFunc) {
		mux.HandleFunc(path, s.cors.Wrap(RequestID(MetricsMiddleware(h, endpoint))))
	}
	route("/ingest", "ingest", s.ingestHandler.HandleIngest)
	route("/ingest/batch", "ingest_batch", s.ingestHandler.HandleBatch)
	route("/ontology/units", "units", s.unitsHandler.HandleUnits)
	route("/athletes", "athletes", s.athletesHandler.HandleAthletes)
	route("/health", "health", s.healthHandler.HandleHealth)
	route("/stats", "stats", s.statsHandler.HandleStats)
	mux.HandleFunc("/metrics", HandleMetrics)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeClassified picks status and code from err.
func writeClassified(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}
