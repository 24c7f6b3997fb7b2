package graph_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/athletegraph/internal/adapters/graph"
	"github.com/okian/athletegraph/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func record(athlete, session, ts, name string, value float64) model.MetricRecord {
	return model.MetricRecord{
		AthleteID: athlete,
		SessionID: session,
		TS:        ts,
		Name:      name,
		Unit:      "kg",
		Value:     value,
		CoachID:   "doe",
	}
}

// flakyStore fails the listed call numbers with err and forwards the rest.
type flakyStore struct {
	next  graph.Store
	fail  map[int]error
	calls int
}

func (f *flakyStore) UpsertObservation(ctx context.Context, rec model.MetricRecord) error {
	f.calls++
	if err, ok := f.fail[f.calls]; ok {
		return err
	}
	return f.next.UpsertObservation(ctx, rec)
}

func TestWriter(t *testing.T) {
	ctx := context.Background()

	Convey("Given three records where the second has a malformed ts", t, func() {
		store := graph.NewMemoryStore()
		w := graph.NewWriter(store)
		records := []model.MetricRecord{
			record("A1", "S1", "2024-05-01T10:00:00Z", "squat", 100),
			record("A1", "S2", "yesterday-ish", "squat", 105),
			record("A2", "S3", "2024-05-02T10:00:00Z", "bench", 80),
		}

		report := w.Write(ctx, records)

		Convey("Then the others are written and the failure is reported", func() {
			So(report.Written, ShouldEqual, 2)
			So(report.Failed, ShouldHaveLength, 1)
			So(report.Failed[0].Index, ShouldEqual, 1)
			So(report.Failed[0].Record, ShouldResemble, records[1])
			So(errors.Is(report.Failed[0].Err, graph.ErrRecordRejected), ShouldBeTrue)
			So(errors.Is(report.Failed[0].Err, graph.ErrInvalidTS), ShouldBeTrue)
		})

		Convey("Then records 1 and 3 are present and 2 left nothing behind", func() {
			athletes, sessions, metrics := store.Counts()
			So(athletes, ShouldEqual, 2)
			So(sessions, ShouldEqual, 2)
			So(metrics, ShouldEqual, 2)
			So(store.MetricsFor("S2", "doe"), ShouldEqual, 0)
		})
	})

	Convey("Given a store that loses its connection mid-batch", t, func() {
		store := &flakyStore{
			next: graph.NewMemoryStore(),
			fail: map[int]error{2: &graph.StoreConnectionError{Err: errors.New("dial tcp: refused")}},
		}
		report := graph.NewWriter(store).Write(ctx, []model.MetricRecord{
			record("A1", "S1", "2024-05-01", "squat", 1),
			record("A1", "S1", "2024-05-01", "squat", 2),
			record("A1", "S1", "2024-05-01", "squat", 3),
		})

		Convey("Then the writer keeps going without retrying", func() {
			So(store.calls, ShouldEqual, 3)
			So(report.Written, ShouldEqual, 2)
			So(graph.ErrorKind(report.Failed[0].Err), ShouldEqual, "connection")
		})
	})

	Convey("Given a cancelled context", t, func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		store := graph.NewMemoryStore()
		records := []model.MetricRecord{
			record("A1", "S1", "2024-05-01", "squat", 1),
			record("A1", "S1", "2024-05-01", "squat", 2),
		}

		report := graph.NewWriter(store).Write(cctx, records)

		Convey("Then every record is reported as failed", func() {
			So(report.Written, ShouldEqual, 0)
			So(report.Failed, ShouldHaveLength, 2)
			So(errors.Is(report.Failed[1].Err, context.Canceled), ShouldBeTrue)
			So(graph.ErrorKind(report.Failed[0].Err), ShouldEqual, "canceled")
		})
	})
}

func TestWriterPool(t *testing.T) {
	ctx := context.Background()

	Convey("Given fifty records written by four workers", t, func() {
		store := graph.NewMemoryStore()
		records := make([]model.MetricRecord, 0, 50)
		for i := range 50 {
			records = append(records, record(fmt.Sprintf("A%d", i%5), fmt.Sprintf("S%d", i%10), "2024-05-01T10:00:00Z", "squat", float64(i)))
		}
		records[7].TS = "not-a-time"
		records[31].TS = "also-not"

		report := graph.NewWriter(store, graph.WithWorkers(4)).Write(ctx, records)

		Convey("Then every record is accounted for and failures keep input order", func() {
			So(report.Written, ShouldEqual, 48)
			So(report.Failed, ShouldHaveLength, 2)
			So(report.Failed[0].Index, ShouldEqual, 7)
			So(report.Failed[1].Index, ShouldEqual, 31)
		})

		Convey("Then the graph matches a sequential run", func() {
			seq := graph.NewMemoryStore()
			graph.NewWriter(seq).Write(ctx, records)
			a1, s1, m1 := store.Counts()
			a2, s2, m2 := seq.Counts()
			So([]int{a1, s1, m1}, ShouldResemble, []int{a2, s2, m2})
			So(m1, ShouldEqual, 48)
		})
	})

	Convey("Given more workers than records", t, func() {
		store := graph.NewMemoryStore()
		report := graph.NewWriter(store, graph.WithWorkers(16)).Write(ctx, []model.MetricRecord{
			record("A1", "S1", "2024-05-01", "squat", 1),
			record("A1", "S1", "2024-05-01", "squat", 2),
		})
		So(report.Written, ShouldEqual, 2)
		So(report.Failed, ShouldBeEmpty)
	})
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given the same athlete and session ingested twice", t, func() {
		store := graph.NewMemoryStore()
		So(store.UpsertObservation(ctx, record("A1", "S1", "2024-05-01T10:00:00Z", "squat", 100)), ShouldBeNil)
		So(store.UpsertObservation(ctx, record("A1", "S1", "2024-05-01T10:00:00Z", "squat", 110)), ShouldBeNil)

		Convey("Then there is one Athlete, one Session and two Metrics", func() {
			athletes, sessions, metrics := store.Counts()
			So(athletes, ShouldEqual, 1)
			So(sessions, ShouldEqual, 1)
			So(metrics, ShouldEqual, 2)
		})

		Convey("Then the athlete listing is coach scoped", func() {
			list, err := store.ListAthletes(ctx, "doe")
			So(err, ShouldBeNil)
			So(list, ShouldResemble, []model.Athlete{{AthleteID: "A1", CoachID: "doe", Sessions: 1}})

			other, err := store.ListAthletes(ctx, "roe")
			So(err, ShouldBeNil)
			So(other, ShouldBeEmpty)
		})
	})

	Convey("Given repeated identical observations", t, func() {
		rec := record("A1", "S1", "2024-05-01", "squat", 100)

		Convey("The append policy keeps both", func() {
			store := graph.NewMemoryStore(graph.WithPolicy(graph.PolicyAppend))
			So(store.UpsertObservation(ctx, rec), ShouldBeNil)
			So(store.UpsertObservation(ctx, rec), ShouldBeNil)
			So(store.MetricsFor("S1", "doe"), ShouldEqual, 2)
		})

		Convey("The merge policy collapses them", func() {
			store := graph.NewMemoryStore(graph.WithPolicy(graph.PolicyMerge))
			So(store.UpsertObservation(ctx, rec), ShouldBeNil)
			So(store.UpsertObservation(ctx, rec), ShouldBeNil)
			So(store.MetricsFor("S1", "doe"), ShouldEqual, 1)
		})
	})

	Convey("Given the same ids under two coaches", t, func() {
		store := graph.NewMemoryStore()
		a := record("A1", "S1", "2024-05-01", "squat", 100)
		b := a
		b.CoachID = "roe"
		So(store.UpsertObservation(ctx, a), ShouldBeNil)
		So(store.UpsertObservation(ctx, b), ShouldBeNil)

		athletes, sessions, _ := store.Counts()
		So(athletes, ShouldEqual, 2)
		So(sessions, ShouldEqual, 2)
	})
}

func TestParsePolicy(t *testing.T) {
	Convey("ParsePolicy accepts the two policies", t, func() {
		p, err := graph.ParsePolicy("")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, graph.PolicyAppend)

		p, err = graph.ParsePolicy("merge")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, graph.PolicyMerge)

		_, err = graph.ParsePolicy("dedupe")
		So(err, ShouldNotBeNil)
	})
}
