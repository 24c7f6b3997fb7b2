// Package graph persists metric observations as an
// Athlete-[:ATTENDED]->Session-[:RECORDED]->Metric property graph.
package graph

import (
	"context"
	"fmt"

	"github.com/okian/athletegraph/internal/domain/model"
)

// MetricPolicy decides whether repeated identical observations collapse.
type MetricPolicy string

const (
	// PolicyAppend creates a Metric node per observation.
	PolicyAppend MetricPolicy = "append"
	// PolicyMerge reuses a Metric node with the same name, unit, value and
	// coach under the same session.
	PolicyMerge MetricPolicy = "merge"
)

// ParsePolicy accepts "append" or "merge"; empty means append.
func ParsePolicy(s string) (MetricPolicy, error) {
	switch MetricPolicy(s) {
	case "", PolicyAppend:
		return PolicyAppend, nil
	case PolicyMerge:
		return PolicyMerge, nil
	default:
		return "", fmt.Errorf("unknown metric policy %q", s)
	}
}

// Store writes one observation. Athlete and Session are upserted on
// (id, coach_id); the Metric follows the store's MetricPolicy.
type Store interface {
	UpsertObservation(ctx context.Context, rec model.MetricRecord) error
}

// AthleteWriter upserts an Athlete on (athlete_id, coach_id) and sets its
// name. The stored athlete is returned with its session count.
type AthleteWriter interface {
	UpsertAthlete(ctx context.Context, a model.Athlete) (model.Athlete, error)
}

// Reader serves coach-scoped, read-only queries.
type Reader interface {
	ListAthletes(ctx context.Context, coachID string) ([]model.Athlete, error)
	Ping(ctx context.Context) error
}
