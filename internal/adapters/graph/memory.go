package graph

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/athletegraph/internal/domain/model"
)

// Layouts accepted for ts, matching what Neo4j datetime() parses from the
// strings this service receives. Zone-less values are taken as UTC.
var tsLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

type nodeKey struct {
	id    string
	coach string
}

type metricNode struct {
	observationID string
	session       nodeKey
	name          string
	unit          string
	value         float64
	coach         string
}

// MemoryStore keeps the graph in process. It applies the same upsert and
// Metric policy rules as Neo4jStore.
type MemoryStore struct {
	mu       sync.RWMutex
	opts     options
	athletes map[nodeKey]string
	sessions map[nodeKey]time.Time
	attended map[nodeKey]map[nodeKey]struct{}
	metrics  []metricNode
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		opts:     o,
		athletes: make(map[nodeKey]string),
		sessions: make(map[nodeKey]time.Time),
		attended: make(map[nodeKey]map[nodeKey]struct{}),
	}
}

// UpsertObservation applies rec atomically: a record with an unparseable ts
// leaves no trace.
func (s *MemoryStore) UpsertObservation(ctx context.Context, rec model.MetricRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ts, err := ParseTS(rec.TS)
	if err != nil {
		return &RecordRejectedError{Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ak := nodeKey{id: rec.AthleteID, coach: rec.CoachID}
	sk := nodeKey{id: rec.SessionID, coach: rec.CoachID}
	if _, ok := s.athletes[ak]; !ok {
		s.athletes[ak] = ""
	}
	s.sessions[sk] = ts
	if s.attended[ak] == nil {
		s.attended[ak] = make(map[nodeKey]struct{})
	}
	s.attended[ak][sk] = struct{}{}

	m := metricNode{
		session: sk,
		name:    rec.Name,
		unit:    rec.Unit,
		value:   rec.Value,
		coach:   rec.CoachID,
	}
	if s.opts.policy == PolicyMerge {
		for _, existing := range s.metrics {
			if existing.session == m.session && existing.name == m.name &&
				existing.unit == m.unit && existing.value == m.value && existing.coach == m.coach {
				return nil
			}
		}
	}
	m.observationID = s.opts.newID()
	s.metrics = append(s.metrics, m)
	return nil
}

// ListAthletes returns the coach's athletes sorted by id.
func (s *MemoryStore) ListAthletes(ctx context.Context, coachID string) ([]model.Athlete, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Athlete
	for k, name := range s.athletes {
		if k.coach != coachID {
			continue
		}
		out = append(out, model.Athlete{AthleteID: k.id, CoachID: k.coach, Name: name, Sessions: len(s.attended[k])})
	}
	slices.SortFunc(out, func(a, b model.Athlete) int { return strings.Compare(a.AthleteID, b.AthleteID) })
	if len(out) > athletesLimit {
		out = out[:athletesLimit]
	}
	return out, nil
}

// UpsertAthlete creates the athlete if needed and sets its name.
func (s *MemoryStore) UpsertAthlete(ctx context.Context, a model.Athlete) (model.Athlete, error) {
	if err := ctx.Err(); err != nil {
		return model.Athlete{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	k := nodeKey{id: a.AthleteID, coach: a.CoachID}
	s.athletes[k] = a.Name
	return model.Athlete{AthleteID: k.id, CoachID: k.coach, Name: a.Name, Sessions: len(s.attended[k])}, nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Counts reports node totals: athletes, sessions and metrics.
func (s *MemoryStore) Counts() (athletes, sessions, metrics int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.athletes), len(s.sessions), len(s.metrics)
}

// MetricsFor returns the number of Metric nodes recorded under a session.
func (s *MemoryStore) MetricsFor(sessionID, coachID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.metrics {
		if m.session.id == sessionID && m.session.coach == coachID {
			n++
		}
	}
	return n
}

// ParseTS parses an ISO-8601 timestamp the way the store does.
func ParseTS(raw string) (time.Time, error) {
	for _, layout := range tsLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTS, raw)
}
