package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/okian/athletegraph/internal/adapters/graph"
	"github.com/okian/athletegraph/internal/domain/mapping"
	"github.com/okian/athletegraph/internal/domain/model"
	"github.com/okian/athletegraph/internal/domain/validate"
	"github.com/okian/athletegraph/pkg/logger"
	"github.com/okian/athletegraph/pkg/metrics"
)

// MetricInput is one observation as submitted over the API. CoachID is
// accepted for compatibility and ignored; the credential decides the coach.
type MetricInput struct {
	AthleteID string   `json:"athlete_id" validate:"required,min=1"`
	SessionID string   `json:"session_id" validate:"required,min=1"`
	TS        string   `json:"ts" validate:"required"`
	Name      string   `json:"name" validate:"required"`
	Unit      string   `json:"unit" validate:"required"`
	Value     *float64 `json:"value" validate:"required"`
	CoachID   string   `json:"coach_id,omitempty"`
}

// AthleteInput names an athlete. The coach comes from the credential.
type AthleteInput struct {
	AthleteID string `json:"athlete_id" validate:"required"`
	Name      string `json:"name" validate:"required"`
}

// ItemError is a failed batch item.
type ItemError struct {
	Index int
	Err   error
}

// BatchResult reports a batch: Count items written, Errors the rest.
type BatchResult struct {
	Count  int
	Errors []ItemError
}

// TableReport is the outcome of a tabular ingest.
type TableReport struct {
	Rows     int
	Rejected []validate.RowError
	Write    graph.WriteReport
}

// IngestOne authenticates, validates and writes a single observation.
func (s *Service) IngestOne(ctx context.Context, in MetricInput, credential string) error {
	coach, err := s.authenticate(ctx, credential)
	if err != nil {
		return err
	}
	rec, err := s.check(in, coach)
	if err != nil {
		return err
	}

	report := s.writer.Write(ctx, []model.MetricRecord{rec})
	if len(report.Failed) > 0 {
		return report.Failed[0].Err
	}
	return nil
}

// IngestBatch validates every item, writes the valid ones and reports
// per-item failures by index. Only authentication and the size cap fail the
// whole batch.
func (s *Service) IngestBatch(ctx context.Context, items []MetricInput, credential string) (BatchResult, error) {
	coach, err := s.authenticate(ctx, credential)
	if err != nil {
		return BatchResult{}, err
	}
	if len(items) > s.batchMax {
		return BatchResult{}, fmt.Errorf("%w: %d items, limit %d", ErrBatchTooLarge, len(items), s.batchMax)
	}

	var (
		result  BatchResult
		records = make([]model.MetricRecord, 0, len(items))
		origin  = make([]int, 0, len(items))
	)
	for i, in := range items {
		rec, err := s.check(in, coach)
		if err != nil {
			result.Errors = append(result.Errors, ItemError{Index: i, Err: err})
			continue
		}
		records = append(records, rec)
		origin = append(origin, i)
	}

	report := s.writer.Write(ctx, records)
	result.Count = report.Written
	for _, f := range report.Failed {
		result.Errors = append(result.Errors, ItemError{Index: origin[f.Index], Err: f.Err})
	}
	slices.SortStableFunc(result.Errors, func(a, b ItemError) int { return cmp.Compare(a.Index, b.Index) })

	s.logger.Info(ctx, "batch ingested",
		logger.String("coach_id", coach),
		logger.Int("items", len(items)),
		logger.Int("written", result.Count),
		logger.Int("failed", len(result.Errors)),
	)
	return result, nil
}

// ValidateTable runs the row validator over a decoded table.
func (s *Service) ValidateTable(rows []validate.Row, m mapping.FieldMapping) (validate.Batch, error) {
	batch, err := validate.ValidateBatch(rows, m, s.units)
	if err != nil {
		return validate.Batch{}, err
	}
	for range batch.Records {
		metrics.RecordRowValidated()
	}
	for _, r := range batch.Rejected {
		metrics.RecordRowRejected(validate.Reason(r.Err))
		s.logger.Debug(context.Background(), "row rejected",
			logger.Int("index", r.Index),
			logger.Error(r.Err),
		)
	}
	return batch, nil
}

// IngestTable validates rows through m and writes the valid records. A
// structural mapping error aborts before anything is written.
func (s *Service) IngestTable(ctx context.Context, rows []validate.Row, m mapping.FieldMapping) (TableReport, error) {
	batch, err := s.ValidateTable(rows, m)
	if err != nil {
		return TableReport{}, err
	}
	report := TableReport{
		Rows:     len(rows),
		Rejected: batch.Rejected,
		Write:    s.writer.Write(ctx, batch.Records),
	}
	s.logger.Info(ctx, "table ingested",
		logger.String("coach_id", m.CoachID),
		logger.Int("rows", report.Rows),
		logger.Int("rejected", len(report.Rejected)),
		logger.Int("written", report.Write.Written),
		logger.Int("failed", len(report.Write.Failed)),
	)
	return report, nil
}

// check runs the shape checks and then the row validator with an identity
// mapping bound to coach.
func (s *Service) check(in MetricInput, coach string) (model.MetricRecord, error) {
	if err := s.shape.Struct(in); err != nil {
		metrics.RecordRowRejected("invalid_shape")
		return model.MetricRecord{}, &InputError{Code: "invalid_shape", Err: shapeError(err)}
	}

	row := validate.Row{
		model.FieldAthleteID: in.AthleteID,
		model.FieldSessionID: in.SessionID,
		model.FieldTS:        in.TS,
		model.FieldName:      in.Name,
		model.FieldUnit:      in.Unit,
		model.FieldValue:     *in.Value,
	}
	rec, err := validate.Validate(row, mapping.Identity(coach), s.units)
	if err != nil {
		reason := validate.Reason(err)
		metrics.RecordRowRejected(reason)
		return model.MetricRecord{}, &InputError{Code: reason, Err: err}
	}
	metrics.RecordRowValidated()
	return rec, nil
}

// shapeError flattens validator output into one readable error.
func shapeError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}

// newShapeValidator reports fields by their JSON names.
func newShapeValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
