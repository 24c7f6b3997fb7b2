package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

func TestSplitStatements(t *testing.T) {
	script := `
// seed athletes
MERGE (a:Athlete {athlete_id: 'A1', coach_id: 'doe'});

MERGE (s:Session {session_id: 'S1', coach_id: 'doe'})
SET s.ts = datetime('2024-05-01T10:00:00Z');
;
`
	got := SplitStatements(script)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[0] != "MERGE (a:Athlete {athlete_id: 'A1', coach_id: 'doe'})" {
		t.Errorf("unexpected first statement %q", got[0])
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind string
	}{
		{"deadlock", &neo4j.Neo4jError{Code: "Neo.TransientError.Transaction.DeadlockDetected", Msg: "deadlock"}, "conflict"},
		{"constraint race", &neo4j.Neo4jError{Code: "Neo.ClientError.Schema.ConstraintValidationFailed", Msg: "exists"}, "conflict"},
		{"bad datetime", &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.ArgumentError", Msg: "Text cannot be parsed"}, "rejected"},
		{"auth", &neo4j.Neo4jError{Code: "Neo.ClientError.Security.Unauthorized", Msg: "nope"}, "connection"},
		{"connectivity", &neo4j.ConnectivityError{Inner: errors.New("refused")}, "connection"},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), "canceled"},
		{"other", errors.New("boom"), "other"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ErrorKind(classify(tc.err)); got != tc.kind {
				t.Errorf("kind = %q, want %q", got, tc.kind)
			}
		})
	}
}
