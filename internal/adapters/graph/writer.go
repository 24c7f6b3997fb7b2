package graph

import (
	"context"
	"errors"
	"time"

	"github.com/okian/athletegraph/internal/domain/model"
	"github.com/okian/athletegraph/pkg/logger"
	"github.com/okian/athletegraph/pkg/metrics"
)

// FailedWrite pairs a record, and its position in the input, with the error
// that stopped it.
type FailedWrite struct {
	Index  int
	Record model.MetricRecord
	Err    error
}

// WriteReport accounts for every record handed to Write.
type WriteReport struct {
	Written int
	Failed  []FailedWrite
}

// Writer pushes records into a Store, one transaction per record.
type Writer struct {
	store   Store
	log     logger.Logger
	workers int
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterLogger sets the logger.
func WithWriterLogger(l logger.Logger) WriterOption {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// WithWorkers sets how many records are written concurrently. One, the
// default, writes strictly in input order.
func WithWorkers(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.workers = n
		}
	}
}

// NewWriter returns a Writer over store.
func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{store: store, log: logger.Nop(), workers: 1}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write stores records. Each record is its own transaction and a failure
// does not stop the rest. Once ctx is done the records not yet started are
// reported as failed with the context error. Failed is ordered by Index.
func (w *Writer) Write(ctx context.Context, records []model.MetricRecord) WriteReport {
	errs := make([]error, len(records))
	if w.workers > 1 && len(records) > 1 {
		w.writeParallel(ctx, records, errs)
	} else {
		for i := range records {
			errs[i] = w.writeOne(ctx, records[i])
		}
	}

	var (
		report      WriteReport
		interrupted int
	)
	for i, err := range errs {
		if err == nil {
			metrics.RecordRecordWritten()
			report.Written++
			continue
		}
		metrics.RecordWriteFailure(ErrorKind(err))
		report.Failed = append(report.Failed, FailedWrite{Index: i, Record: records[i], Err: err})
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			interrupted++
		}
	}
	if interrupted > 0 {
		w.log.Warn(ctx, "write interrupted",
			logger.Int("remaining", interrupted),
			logger.Error(ctx.Err()))
	}
	return report
}

func (w *Writer) writeOne(ctx context.Context, rec model.MetricRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	err := w.store.UpsertObservation(ctx, rec)
	metrics.RecordWriteLatency(time.Since(start))
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		w.log.Warn(ctx, "record write failed",
			logger.String("athlete_id", rec.AthleteID),
			logger.String("session_id", rec.SessionID),
			logger.String("name", rec.Name),
			logger.String("kind", ErrorKind(err)),
			logger.Error(err))
	}
	return err
}
