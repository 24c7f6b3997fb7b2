// Package service is the ingestion gateway: it authenticates callers,
// validates metric payloads and hands valid records to the graph writer.
package service

import (
	"context"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/okian/athletegraph/internal/adapters/credentials"
	"github.com/okian/athletegraph/internal/adapters/graph"
	"github.com/okian/athletegraph/internal/domain/model"
	"github.com/okian/athletegraph/internal/domain/ontology"
	"github.com/okian/athletegraph/pkg/logger"
	"github.com/okian/athletegraph/pkg/metrics"
)

const defaultBatchMax = 1000

// Service implements the dependencies of the HTTP API and the ingest CLI.
type Service struct {
	mu sync.RWMutex

	units    ontology.AllowedUnitSet
	store    graph.Store
	reader   graph.Reader
	athletes graph.AthleteWriter
	writer   *graph.Writer
	resolver credentials.Resolver
	batchMax int
	workers  int
	shape    *validator.Validate

	started bool
	logger  logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithUnits sets the allowed unit set.
func WithUnits(units ontology.AllowedUnitSet) Option {
	return func(s *Service) {
		s.units = units
	}
}

// WithStore sets the graph store. A store that also implements graph.Reader
// serves reads too unless WithReader overrides it.
func WithStore(store graph.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithReader sets the read side of the graph.
func WithReader(r graph.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.reader = r
		}
	}
}

// WithResolver sets the credential resolver.
func WithResolver(r credentials.Resolver) Option {
	return func(s *Service) {
		if r != nil {
			s.resolver = r
		}
	}
}

// WithBatchLimit caps the items accepted by IngestBatch.
func WithBatchLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchMax = n
		}
	}
}

// WithWriteWorkers sets how many records a batch writes concurrently.
func WithWriteWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// New constructs a Service. Without options it runs on an in-memory store, an
// empty key table and an empty unit set, so every request is rejected until
// it is configured.
func New(opts ...Option) *Service {
	s := &Service{
		units:    ontology.NewAllowedUnitSet(),
		resolver: credentials.NewStatic(nil),
		batchMax: defaultBatchMax,
		workers:  1,
		shape:    newShapeValidator(),
		logger:   logger.Get(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		mem := graph.NewMemoryStore()
		s.store = mem
		if s.reader == nil {
			s.reader = mem
		}
	}
	if s.reader == nil {
		if r, ok := s.store.(graph.Reader); ok {
			s.reader = r
		}
	}
	if aw, ok := s.store.(graph.AthleteWriter); ok {
		s.athletes = aw
	}
	s.writer = graph.NewWriter(s.store,
		graph.WithWriterLogger(s.logger.Named("writer")),
		graph.WithWorkers(s.workers),
	)
	return s
}

// Start prepares the store. It is safe to call more than once.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if sc, ok := s.store.(interface{ EnsureSchema(context.Context) }); ok {
		sc.EnsureSchema(ctx)
	}
	metrics.UpdateOntologyUnits(s.units.Len())

	s.started = true
	s.logger.Info(ctx, "ingestion service started",
		logger.Int("units", s.units.Len()),
		logger.Int("batch_max", s.batchMax),
	)
	return nil
}

// Stop closes the store if it holds resources.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if c, ok := s.store.(interface{ Close(context.Context) error }); ok {
		if err := c.Close(ctx); err != nil {
			s.logger.Warn(ctx, "close store", logger.Error(err))
		}
	}
	s.started = false
	s.logger.Info(ctx, "ingestion service stopped")
}

// Units returns the allowed unit symbols, sorted.
func (s *Service) Units() []string {
	return s.units.Symbols()
}

// Health pings the store.
func (s *Service) Health(ctx context.Context) error {
	if s.reader == nil {
		return nil
	}
	return s.reader.Ping(ctx)
}

// Athletes lists the athletes of the coach behind credential.
func (s *Service) Athletes(ctx context.Context, credential string) ([]model.Athlete, error) {
	coach, err := s.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	if s.reader == nil {
		return nil, ErrNoReader
	}
	athletes, err := s.reader.ListAthletes(ctx, coach)
	if err != nil {
		return nil, err
	}
	if athletes == nil {
		athletes = []model.Athlete{}
	}
	return athletes, nil
}

// UpsertAthlete creates or renames an athlete of the coach behind credential.
func (s *Service) UpsertAthlete(ctx context.Context, in AthleteInput, credential string) (model.Athlete, error) {
	coach, err := s.authenticate(ctx, credential)
	if err != nil {
		return model.Athlete{}, err
	}
	in.AthleteID = strings.TrimSpace(in.AthleteID)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.shape.Struct(in); err != nil {
		return model.Athlete{}, &InputError{Code: "invalid_shape", Err: shapeError(err)}
	}
	if s.athletes == nil {
		return model.Athlete{}, ErrNoAthleteWriter
	}

	a, err := s.athletes.UpsertAthlete(ctx, model.Athlete{AthleteID: in.AthleteID, CoachID: coach, Name: in.Name})
	if err != nil {
		s.logger.Warn(ctx, "athlete upsert failed",
			logger.String("coach_id", coach),
			logger.String("athlete_id", in.AthleteID),
			logger.Error(err),
		)
		return model.Athlete{}, err
	}
	return a, nil
}

// Stats returns service settings for diagnostics.
func (s *Service) Stats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"started":   s.started,
		"units":     s.units.Len(),
		"batch_max": s.batchMax,
		"workers":   s.workers,
	}
}

// BatchLimit returns the IngestBatch item cap.
func (s *Service) BatchLimit() int { return s.batchMax }

func (s *Service) authenticate(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		metrics.RecordAuthFailure()
		return "", &AuthenticationError{Reason: "missing API key"}
	}
	coach, ok, err := s.resolver.Resolve(ctx, credential)
	if err != nil {
		return "", err
	}
	if !ok {
		metrics.RecordAuthFailure()
		return "", &AuthenticationError{Reason: "unknown API key"}
	}
	return coach, nil
}
