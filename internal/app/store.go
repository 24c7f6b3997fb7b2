package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/athletegraph/internal/adapters/graph"
	"github.com/okian/athletegraph/internal/config"
	"github.com/okian/athletegraph/pkg/logger"
)

// OpenStore returns the graph store selected by cfg with policy applied. The
// memory backend needs no credentials; neo4j fails with ErrMissingCreds
// before dialing when any NEO4J_* value is absent.
func OpenStore(ctx context.Context, cfg *config.Config, policy graph.MetricPolicy, log logger.Logger) (graph.Store, error) {
	opts := []graph.Option{graph.WithPolicy(policy), graph.WithLogger(log.Named("graph"))}

	if cfg.StoreBackend == config.StoreMemory {
		log.Warn(ctx, "using in-memory store; data is lost on exit")
		return graph.NewMemoryStore(opts...), nil
	}
	store, err := OpenNeo4j(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// OpenNeo4j dials the neo4j store described by cfg.Neo4j.
func OpenNeo4j(ctx context.Context, cfg *config.Config, opts ...graph.Option) (*graph.Neo4jStore, error) {
	if missing := cfg.Neo4j.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: set %s (NEO4J_PASS is accepted for the password)", ErrMissingCreds, strings.Join(missing, ", "))
	}
	return graph.NewNeo4jStore(ctx, graph.Neo4jConfig{
		URI:         cfg.Neo4j.URI,
		User:        cfg.Neo4j.User,
		Password:    cfg.Neo4j.Secret(),
		Database:    cfg.Neo4j.Database,
		MaxPoolSize: cfg.Neo4j.MaxPoolSize,
		Timeout:     time.Duration(cfg.Neo4j.TimeoutSeconds) * time.Second,
	}, opts...)
}
