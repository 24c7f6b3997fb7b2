package mapping_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/athletegraph/internal/domain/mapping"
	"github.com/okian/athletegraph/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	headerCols  = []string{"athlete_code", "sess_num", "timestamp", "metric_name", "units", "reading"}
	partialCols = []string{"athlete_code", "sess_num", "timestamp", "metric_name", "units", "score"}
)

func TestInfer(t *testing.T) {
	Convey("Given a header with coach-specific column names", t, func() {
		m := mapping.Infer(headerCols, "doe")

		Convey("Then every field resolves", func() {
			So(m.Columns, ShouldResemble, map[string]string{
				model.FieldAthleteID: "athlete_code",
				model.FieldSessionID: "sess_num",
				model.FieldTS:        "timestamp",
				model.FieldName:      "metric_name",
				model.FieldUnit:      "units",
				model.FieldValue:     "reading",
			})
			So(m.CoachID, ShouldEqual, "doe")
			So(m.Complete(), ShouldBeTrue)
		})

		Convey("Then inference is deterministic", func() {
			So(mapping.Infer(headerCols, "doe").Equal(m), ShouldBeTrue)
		})
	})

	Convey("Given a header with nothing recognisable for some fields", t, func() {
		m := mapping.Infer([]string{"athlete", "session", "unit"}, "doe")

		Convey("Then those fields stay unresolved", func() {
			So(m.Unresolved(), ShouldResemble, []string{model.FieldTS, model.FieldName, model.FieldValue})
			So(m.Complete(), ShouldBeFalse)
		})
	})

	Convey("Given canonical column names in mixed case", t, func() {
		m := mapping.Infer([]string{"Value", "ATHLETE_ID", "session_id", "ts", "name", "unit"}, "doe")

		Convey("Then matching ignores case and every field resolves", func() {
			So(m.Complete(), ShouldBeTrue)
			col, _ := m.Column(model.FieldValue)
			So(col, ShouldEqual, "Value")
		})
	})

	Convey("Given two candidate columns for one field", t, func() {
		m := mapping.Infer([]string{"name_alt", "name"}, "doe")

		Convey("Then the first in input order wins", func() {
			col, ok := m.Column(model.FieldName)
			So(ok, ShouldBeTrue)
			So(col, ShouldEqual, "name_alt")
		})
	})

	Convey("Given no columns", t, func() {
		m := mapping.Infer(nil, "doe")
		So(m.Unresolved(), ShouldResemble, model.RequiredFields)
	})
}

func TestIdentityAndStale(t *testing.T) {
	Convey("Identity maps each field to itself", t, func() {
		m := mapping.Identity("doe")
		So(m.Complete(), ShouldBeTrue)
		col, _ := m.Column(model.FieldTS)
		So(col, ShouldEqual, model.FieldTS)
		So(mapping.Stale(m, headerCols), ShouldBeFalse)
	})

	Convey("Stale compares the recorded column fingerprint", t, func() {
		m := mapping.Infer(headerCols, "doe")
		So(mapping.Stale(m, headerCols), ShouldBeFalse)
		So(mapping.Stale(m, append([]string{"extra"}, headerCols...)), ShouldBeTrue)
	})

	Convey("MissingColumns lists mapped columns absent from a header", t, func() {
		m := mapping.Infer(headerCols, "doe")
		So(mapping.MissingColumns(m, []string{"athlete_code", "units"}), ShouldResemble,
			[]string{"metric_name", "reading", "sess_num", "timestamp"})
	})

	Convey("SafeIdentity keeps paths inside the mapping dir", t, func() {
		So(mapping.SafeIdentity("doe"), ShouldEqual, "doe")
		So(mapping.SafeIdentity("../etc"), ShouldEqual, "___etc")
		So(mapping.SafeIdentity("  "), ShouldEqual, "_")
		So(mapping.PathFor("maps", "doe"), ShouldEqual, filepath.Join("maps", "coach_doe", "mappings.yaml"))
	})
}

func TestPersistence(t *testing.T) {
	Convey("Given a temp mapping dir", t, func() {
		dir := t.TempDir()
		path := mapping.PathFor(dir, "doe")

		Convey("When GetOrCreate runs for the first time", func() {
			m, created, err := mapping.GetOrCreate(partialCols, path, "doe")
			So(err, ShouldBeNil)
			So(created, ShouldBeTrue)
			So(m.Unresolved(), ShouldResemble, []string{model.FieldValue})

			Convey("Then the file holds nulls for unresolved fields", func() {
				raw, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(raw), ShouldContainSubstring, "athlete_id: athlete_code")
				So(string(raw), ShouldContainSubstring, "value: null")
				So(string(raw), ShouldContainSubstring, "coach_id: doe")
			})

			Convey("Then a second call reuses the stored mapping", func() {
				again, created, err := mapping.GetOrCreate([]string{"other"}, path, "doe")
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				So(again.Equal(m), ShouldBeTrue)
				So(mapping.Stale(again, []string{"other"}), ShouldBeTrue)
			})

			Convey("Then a hand edit is honored", func() {
				edited := m
				edited.Columns = map[string]string{}
				for k, v := range m.Columns {
					edited.Columns[k] = v
				}
				edited.Columns[model.FieldValue] = "score"
				So(mapping.Save(edited, path), ShouldBeNil)

				loaded, created, err := mapping.GetOrCreate(partialCols, path, "doe")
				So(err, ShouldBeNil)
				So(created, ShouldBeFalse)
				So(loaded.Complete(), ShouldBeTrue)
			})
		})

		Convey("When a JSON mapping round-trips", func() {
			jsonPath := filepath.Join(dir, "m.json")
			m := mapping.Identity("doe")
			So(mapping.Save(m, jsonPath), ShouldBeNil)

			loaded, err := mapping.Load(jsonPath)
			So(err, ShouldBeNil)
			So(loaded.Equal(m), ShouldBeTrue)
		})

		Convey("When the stored file omits coach_id", func() {
			So(os.MkdirAll(filepath.Dir(path), 0o755), ShouldBeNil)
			So(os.WriteFile(path, []byte("athlete_id: a\nvalue: v\n"), 0o644), ShouldBeNil)

			m, _, err := mapping.GetOrCreate(headerCols, path, "doe")
			So(err, ShouldBeNil)
			So(m.CoachID, ShouldEqual, "doe")
			So(m.Unresolved(), ShouldHaveLength, 4)
		})

		Convey("When the stored file is not a flat document", func() {
			So(os.MkdirAll(filepath.Dir(path), 0o755), ShouldBeNil)
			So(os.WriteFile(path, []byte("athlete_id: [a, b]\n"), 0o644), ShouldBeNil)

			_, _, err := mapping.GetOrCreate(headerCols, path, "doe")
			So(errors.Is(err, mapping.ErrMalformedMapping), ShouldBeTrue)
		})
	})
}
