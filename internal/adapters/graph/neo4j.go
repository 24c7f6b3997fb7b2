package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/okian/athletegraph/internal/domain/model"
	"github.com/okian/athletegraph/pkg/logger"
)

const athletesLimit = 500

const upsertPrefix = `
MERGE (a:Athlete {athlete_id: $athlete_id, coach_id: $coach_id})
MERGE (s:Session {session_id: $session_id, coach_id: $coach_id})
SET s.ts = datetime($ts)
MERGE (a)-[:ATTENDED]->(s)
`

const appendMetric = `
CREATE (s)-[:RECORDED]->(:Metric {
  observation_id: $observation_id, name: $name, unit: $unit, value: $value, coach_id: $coach_id
})
`

const mergeMetric = `
MERGE (s)-[:RECORDED]->(m:Metric {name: $name, unit: $unit, value: $value, coach_id: $coach_id})
ON CREATE SET m.observation_id = $observation_id
`

const listAthletes = `
MATCH (a:Athlete {coach_id: $coach_id})
OPTIONAL MATCH (a)-[:ATTENDED]->(s:Session)
RETURN a.athlete_id AS athlete_id, a.name AS name, count(s) AS sessions
ORDER BY athlete_id
LIMIT $limit
`

const upsertAthlete = `
MERGE (a:Athlete {athlete_id: $athlete_id, coach_id: $coach_id})
SET a.name = $name
WITH a
OPTIONAL MATCH (a)-[:ATTENDED]->(s:Session)
RETURN a.athlete_id AS athlete_id, a.name AS name, count(s) AS sessions
`

var schemaStatements = []string{
	`CREATE CONSTRAINT athlete_coach_unique IF NOT EXISTS FOR (a:Athlete) REQUIRE (a.athlete_id, a.coach_id) IS UNIQUE`,
	`CREATE CONSTRAINT session_coach_unique IF NOT EXISTS FOR (s:Session) REQUIRE (s.session_id, s.coach_id) IS UNIQUE`,
}

// Neo4jConfig holds the connection settings for NewNeo4jStore.
type Neo4jConfig struct {
	URI         string
	User        string
	Password    string
	Database    string
	MaxPoolSize int
	Timeout     time.Duration
}

// Neo4jStore is the Store and Reader backed by a Neo4j server.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	opts     options
	upsert   string
}

// NewNeo4jStore opens a driver and verifies connectivity.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig, opts ...Option) (*Neo4jStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""), func(c *neo4j.Config) {
		if cfg.MaxPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("init neo4j driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, &StoreConnectionError{Err: err}
	}

	s := &Neo4jStore{
		driver:   driver,
		database: cfg.Database,
		opts:     o,
		upsert:   upsertPrefix + appendMetric,
	}
	if o.policy == PolicyMerge {
		s.upsert = upsertPrefix + mergeMetric
	}
	return s, nil
}

// Close releases the driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	return s.driver.Close(ctx)
}

// EnsureSchema creates the uniqueness constraints. Failures are logged and
// ignored; the MERGE clauses keep writes idempotent without them.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range schemaStatements {
		res, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			s.opts.log.Warn(ctx, "schema statement failed", logger.String("statement", stmt), logger.Error(err))
		}
	}
}

// UpsertObservation writes rec in one explicit transaction. The driver's
// managed retries are not used.
func (s *Neo4jStore) UpsertObservation(ctx context.Context, rec model.MetricRecord) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx, neo4j.WithTxTimeout(s.opts.txTimeout))
	if err != nil {
		return classify(err)
	}
	defer tx.Close(ctx)

	res, err := tx.Run(ctx, s.upsert, map[string]any{
		"athlete_id":     rec.AthleteID,
		"session_id":     rec.SessionID,
		"coach_id":       rec.CoachID,
		"ts":             rec.TS,
		"name":           rec.Name,
		"unit":           rec.Unit,
		"value":          rec.Value,
		"observation_id": s.opts.newID(),
	})
	if err != nil {
		_ = tx.Rollback(ctx)
		return classify(err)
	}
	if _, err := res.Consume(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// ListAthletes returns the coach's athletes with their session counts.
func (s *Neo4jStore) ListAthletes(ctx context.Context, coachID string) ([]model.Athlete, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, listAthletes, map[string]any{"coach_id": coachID, "limit": athletesLimit})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		athletes := make([]model.Athlete, 0, len(records))
		for _, r := range records {
			a, err := athleteFromRecord(r, coachID)
			if err != nil {
				return nil, err
			}
			athletes = append(athletes, a)
		}
		return athletes, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	return out.([]model.Athlete), nil
}

// Ping checks the server is reachable.
func (s *Neo4jStore) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return &StoreConnectionError{Err: err}
	}
	return nil
}

// RunStatements executes a ';'-separated Cypher script statement by statement
// in auto-commit mode and returns how many ran. It stops at the first error.
func (s *Neo4jStore) RunStatements(ctx context.Context, script string) (int, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	ran := 0
	for _, stmt := range SplitStatements(script) {
		res, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			return ran, fmt.Errorf("statement %d: %w", ran+1, classify(err))
		}
		ran++
	}
	return ran, nil
}

// UpsertAthlete merges the athlete on (athlete_id, coach_id) and sets its
// name in one explicit transaction.
func (s *Neo4jStore) UpsertAthlete(ctx context.Context, a model.Athlete) (model.Athlete, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx, neo4j.WithTxTimeout(s.opts.txTimeout))
	if err != nil {
		return model.Athlete{}, classify(err)
	}
	defer tx.Close(ctx)

	res, err := tx.Run(ctx, upsertAthlete, map[string]any{
		"athlete_id": a.AthleteID,
		"coach_id":   a.CoachID,
		"name":       a.Name,
	})
	if err != nil {
		_ = tx.Rollback(ctx)
		return model.Athlete{}, classify(err)
	}
	rec, err := res.Single(ctx)
	if err != nil {
		_ = tx.Rollback(ctx)
		return model.Athlete{}, classify(err)
	}
	out, err := athleteFromRecord(rec, a.CoachID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return model.Athlete{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Athlete{}, classify(err)
	}
	return out, nil
}

func athleteFromRecord(r *neo4j.Record, coachID string) (model.Athlete, error) {
	id, _, err := neo4j.GetRecordValue[string](r, "athlete_id")
	if err != nil {
		return model.Athlete{}, err
	}
	name, _, err := neo4j.GetRecordValue[string](r, "name")
	if err != nil {
		return model.Athlete{}, err
	}
	n, _, err := neo4j.GetRecordValue[int64](r, "sessions")
	if err != nil {
		return model.Athlete{}, err
	}
	return model.Athlete{AthleteID: id, CoachID: coachID, Name: name, Sessions: int(n)}, nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// SplitStatements splits a Cypher script on ';' and drops blank statements
// and '//' comment lines.
func SplitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "//") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// classify maps driver errors onto the package error kinds.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if neo4j.IsConnectivityError(err) {
		return &StoreConnectionError{Err: err}
	}
	var ne *neo4j.Neo4jError
	if errors.As(err, &ne) {
		switch {
		case strings.HasPrefix(ne.Code, "Neo.TransientError."),
			ne.Code == "Neo.ClientError.Schema.ConstraintValidationFailed":
			return &WriteConflictError{Code: ne.Code, Err: err}
		case strings.HasPrefix(ne.Code, "Neo.ClientError.Security."):
			return &StoreConnectionError{Err: err}
		case strings.HasPrefix(ne.Code, "Neo.ClientError.Statement."):
			return &RecordRejectedError{Code: ne.Code, Err: err}
		}
	}
	return fmt.Errorf("graph store: %w", err)
}

func newObservationID() string {
	return uuid.NewString()
}
