package graph

import (
	"context"
	"strconv"
	"sync"

	"github.com/okian/athletegraph/internal/domain/model"
	"github.com/okian/athletegraph/pkg/logger"
)

// jobsPerWorker bounds the job queue relative to the pool size.
const jobsPerWorker = 4

// writeParallel fans records out to a pool of workers over a bounded job
// queue. errs[i] receives the outcome of records[i]; each slot has a single
// writer so no locking is needed.
func (w *Writer) writeParallel(ctx context.Context, records []model.MetricRecord, errs []error) {
	n := min(w.workers, len(records))
	jobs := make(chan int, n*jobsPerWorker)

	var wg sync.WaitGroup
	for id := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.runWorker(ctx, "worker-"+strconv.Itoa(id), jobs, records, errs)
		}()
	}

	for i := range records {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

func (w *Writer) runWorker(ctx context.Context, name string, jobs <-chan int, records []model.MetricRecord, errs []error) {
	log := w.log.Named(name)
	done := 0
	for i := range jobs {
		errs[i] = w.writeOne(ctx, records[i])
		done++
	}
	log.Debug(ctx, "worker drained", logger.Int("records", done))
}
