// Package validate turns raw rows into MetricRecords through a FieldMapping
// and the allowed unit set.
package validate

import (
	"errors"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/okian/athletegraph/internal/domain/mapping"
	"github.com/okian/athletegraph/internal/domain/model"
	"github.com/okian/athletegraph/internal/domain/ontology"
)

var (
	errMissing   = errors.New("missing value")
	errNotFinite = errors.New("not a finite number")
	errBool      = errors.New("boolean is not a number")
)

// Row is one source row keyed by source column. CSV rows carry strings; JSON
// payloads may carry float64 or json.Number.
type Row map[string]any

// RowError is a rejected row. Fields holds the identifying values that could
// be resolved, for reports.
type RowError struct {
	Index  int
	Fields map[string]string
	Err    error
}

// Batch is the outcome of ValidateBatch. Every input row ends up in exactly
// one of the two slices.
type Batch struct {
	Records  []model.MetricRecord
	Rejected []RowError
}

// CheckMapping fails when any required field has no column.
func CheckMapping(m mapping.FieldMapping) error {
	if missing := m.Unresolved(); len(missing) > 0 {
		return &UnmappedFieldError{Fields: missing}
	}
	return nil
}

// Validate builds a MetricRecord from row. The row index in coercion errors
// is 0; ValidateBatch fills in the real one.
func Validate(row Row, m mapping.FieldMapping, units ontology.AllowedUnitSet) (model.MetricRecord, error) {
	if err := CheckMapping(m); err != nil {
		return model.MetricRecord{}, err
	}
	return validateRow(0, row, m, units)
}

// ValidateBatch validates rows against m. A structural mapping error is
// returned before any row is looked at; otherwise row failures are
// collected and the batch error is nil.
func ValidateBatch(rows []Row, m mapping.FieldMapping, units ontology.AllowedUnitSet) (Batch, error) {
	if err := CheckMapping(m); err != nil {
		return Batch{}, err
	}

	var b Batch
	for i, row := range rows {
		rec, err := validateRow(i, row, m, units)
		if err != nil {
			b.Rejected = append(b.Rejected, RowError{
				Index:  i,
				Fields: identify(row, m),
				Err:    err,
			})
			continue
		}
		b.Records = append(b.Records, rec)
	}
	return b, nil
}

func validateRow(idx int, row Row, m mapping.FieldMapping, units ontology.AllowedUnitSet) (model.MetricRecord, error) {
	str := func(field string) (string, error) {
		col, _ := m.Column(field)
		raw, ok := row[col]
		if !ok || raw == nil {
			return "", &TypeCoercionError{Row: idx, Field: field, Value: raw, Err: errMissing}
		}
		s, err := cast.ToStringE(raw)
		if err != nil {
			return "", &TypeCoercionError{Row: idx, Field: field, Value: raw, Err: err}
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return "", &TypeCoercionError{Row: idx, Field: field, Value: raw, Err: errMissing}
		}
		return s, nil
	}

	var (
		rec model.MetricRecord
		err error
	)
	if rec.AthleteID, err = str(model.FieldAthleteID); err != nil {
		return model.MetricRecord{}, err
	}
	if rec.SessionID, err = str(model.FieldSessionID); err != nil {
		return model.MetricRecord{}, err
	}
	if rec.TS, err = str(model.FieldTS); err != nil {
		return model.MetricRecord{}, err
	}
	if rec.Name, err = str(model.FieldName); err != nil {
		return model.MetricRecord{}, err
	}
	if rec.Unit, err = str(model.FieldUnit); err != nil {
		return model.MetricRecord{}, err
	}

	col, _ := m.Column(model.FieldValue)
	if rec.Value, err = toFloat(row[col]); err != nil {
		return model.MetricRecord{}, &TypeCoercionError{Row: idx, Field: model.FieldValue, Value: row[col], Err: err}
	}

	if !units.Contains(rec.Unit) {
		return model.MetricRecord{}, &UnitNotAllowedError{Unit: rec.Unit, Allowed: units}
	}

	rec.CoachID = m.CoachID
	return rec, nil
}

func toFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case nil:
		return 0, errMissing
	case bool:
		return 0, errBool
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, errMissing
		}
		raw = v
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotFinite
	}
	return f, nil
}

func identify(row Row, m mapping.FieldMapping) map[string]string {
	out := make(map[string]string, 3)
	for _, f := range []string{model.FieldAthleteID, model.FieldSessionID, model.FieldName} {
		col, ok := m.Column(f)
		if !ok {
			continue
		}
		if s, err := cast.ToStringE(row[col]); err == nil && s != "" {
			out[f] = strings.TrimSpace(s)
		}
	}
	return out
}
