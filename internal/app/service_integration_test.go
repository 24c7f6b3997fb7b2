package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/okian/athletegraph/internal/adapters/csvsource"
	"github.com/okian/athletegraph/internal/adapters/graph"
	"github.com/okian/athletegraph/internal/domain/mapping"
	"github.com/okian/athletegraph/internal/domain/validate"
	. "github.com/smartystreets/goconvey/convey"
)

const coachCSV = `athlete_code,sess_num,timestamp,metric_name,units,reading
A1,S1,2024-05-01T10:00:00Z,squat,kg,100
A1,S1,2024-05-01T10:00:00Z,hr,bpm,72
A2,S2,2024-05-02T09:30:00Z,sprint,lightyears,3
A2,S2,2024-05-02T09:30:00Z,sprint,m,abc
A2,S3,not-a-time,jump,m,0.5
`

func TestServiceIntegration_Table(t *testing.T) {
	ctx := context.Background()

	Convey("Given a coach CSV and an empty mapping dir", t, func() {
		store := graph.NewMemoryStore()
		svc := newService(store)
		table, err := csvsource.Read(strings.NewReader(coachCSV))
		So(err, ShouldBeNil)

		path := mapping.PathFor(t.TempDir(), "doe")
		m, created, err := mapping.GetOrCreate(table.Columns, path, "doe")
		So(err, ShouldBeNil)
		So(created, ShouldBeTrue)

		Convey("When the table is ingested", func() {
			report, err := svc.IngestTable(ctx, table.Rows, m)
			So(err, ShouldBeNil)

			Convey("Then every row is accounted for", func() {
				So(report.Rows, ShouldEqual, 5)
				So(report.Rejected, ShouldHaveLength, 2)
				So(table.Line(report.Rejected[0].Index), ShouldEqual, 4)
				So(validate.Reason(report.Rejected[0].Err), ShouldEqual, "unit_not_allowed")
				So(validate.Reason(report.Rejected[1].Err), ShouldEqual, "type_coercion")
				So(report.Write.Written, ShouldEqual, 2)
				So(report.Write.Failed, ShouldHaveLength, 1)
			})

			Convey("Then a second run reuses the stored mapping and adds observations", func() {
				again, created, err := mapping.GetOrCreate(table.Columns, path, "doe")
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				So(again.Equal(m), ShouldBeTrue)

				_, err = svc.IngestTable(ctx, table.Rows, again)
				So(err, ShouldBeNil)
				athletes, sessions, metrics := store.Counts()
				So(athletes, ShouldEqual, 1)
				So(sessions, ShouldEqual, 1)
				So(metrics, ShouldEqual, 4)
			})
		})

		Convey("When the mapping leaves value unresolved", func() {
			broken := m
			broken.Columns = map[string]string{}
			for k, v := range m.Columns {
				if k != "value" {
					broken.Columns[k] = v
				}
			}

			_, err := svc.IngestTable(ctx, table.Rows, broken)

			Convey("Then nothing is written", func() {
				So(errors.Is(err, validate.ErrUnmappedField), ShouldBeTrue)
				_, _, metrics := store.Counts()
				So(metrics, ShouldEqual, 0)
			})
		})
	})
}
