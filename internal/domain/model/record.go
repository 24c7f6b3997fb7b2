// Package model contains domain models passed between layers.
package model

// Semantic field names. The six required fields resolve to source columns;
// coach_id is a fixed value attached by the caller.
const (
	FieldAthleteID = "athlete_id"
	FieldSessionID = "session_id"
	FieldTS        = "ts"
	FieldName      = "name"
	FieldUnit      = "unit"
	FieldValue     = "value"
	FieldCoachID   = "coach_id"
)

// RequiredFields lists the fields that must map to a column, in the order
// inference and reports use.
var RequiredFields = []string{
	FieldAthleteID,
	FieldSessionID,
	FieldTS,
	FieldName,
	FieldUnit,
	FieldValue,
}

// MetricRecord is one validated observation and the unit of truth written to
// the graph store. Treat it as immutable once built by the validator.
type MetricRecord struct {
	AthleteID string  `json:"athlete_id"`
	SessionID string  `json:"session_id"`
	TS        string  `json:"ts"` // ISO-8601, parsed by the store
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Value     float64 `json:"value"`
	CoachID   string  `json:"coach_id"`
}

// Identity returns the fields that identify the record in reports.
func (r MetricRecord) Identity() map[string]string {
	return map[string]string{
		FieldAthleteID: r.AthleteID,
		FieldSessionID: r.SessionID,
		FieldTS:        r.TS,
		FieldName:      r.Name,
	}
}

// Athlete is the read model returned by coach-scoped listings and athlete
// upserts. Name is empty until set through an upsert.
type Athlete struct {
	AthleteID string `json:"athlete_id"`
	CoachID   string `json:"coach_id"`
	Name      string `json:"name,omitempty"`
	Sessions  int    `json:"sessions"`
}
