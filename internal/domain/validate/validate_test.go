package validate_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/athletegraph/internal/domain/mapping"
	"github.com/okian/athletegraph/internal/domain/model"
	"github.com/okian/athletegraph/internal/domain/ontology"
	"github.com/okian/athletegraph/internal/domain/validate"
	. "github.com/smartystreets/goconvey/convey"
)

var units = ontology.NewAllowedUnitSet("kg", "m", "s", "bpm")

func csvMapping() mapping.FieldMapping {
	return mapping.Infer([]string{"athlete_code", "sess_num", "timestamp", "metric_name", "units", "reading"}, "doe")
}

func csvRow(unit, value string) validate.Row {
	return validate.Row{
		"athlete_code": "A1",
		"sess_num":     "S1",
		"timestamp":    "2024-05-01T10:00:00Z",
		"metric_name":  "squat",
		"units":        unit,
		"reading":      value,
	}
}

func TestValidate(t *testing.T) {
	m := csvMapping()

	Convey("Given a row with an allowed unit", t, func() {
		rec, err := validate.Validate(csvRow("kg", " 102.5 "), m, units)

		Convey("Then it becomes a record carrying the mapping's coach", func() {
			So(err, ShouldBeNil)
			So(rec, ShouldResemble, model.MetricRecord{
				AthleteID: "A1",
				SessionID: "S1",
				TS:        "2024-05-01T10:00:00Z",
				Name:      "squat",
				Unit:      "kg",
				Value:     102.5,
				CoachID:   "doe",
			})
		})
	})

	Convey("Given a row with a unit outside the ontology", t, func() {
		_, err := validate.Validate(csvRow("lightyears", "1"), m, units)

		Convey("Then it is rejected and the message lists the allowed set", func() {
			var ue *validate.UnitNotAllowedError
			So(errors.As(err, &ue), ShouldBeTrue)
			So(ue.Unit, ShouldEqual, "lightyears")
			So(errors.Is(err, validate.ErrUnitNotAllowed), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "[bpm, kg, m, s]")
			So(validate.Reason(err), ShouldEqual, "unit_not_allowed")
		})
	})

	Convey("Given values that are not numbers", t, func() {
		for _, v := range []string{"heavy", "", "NaN", "+Inf"} {
			_, err := validate.Validate(csvRow("kg", v), m, units)

			var ce *validate.TypeCoercionError
			So(errors.As(err, &ce), ShouldBeTrue)
			So(ce.Field, ShouldEqual, model.FieldValue)
			So(errors.Is(err, validate.ErrTypeCoercion), ShouldBeTrue)
		}
	})

	Convey("Given a row missing a mapped column", t, func() {
		row := csvRow("kg", "1")
		delete(row, "sess_num")
		_, err := validate.Validate(row, m, units)

		var ce *validate.TypeCoercionError
		So(errors.As(err, &ce), ShouldBeTrue)
		So(ce.Field, ShouldEqual, model.FieldSessionID)
	})

	Convey("Given JSON-decoded payload values", t, func() {
		row := validate.Row{
			"athlete_id": "A1", "session_id": "S1", "ts": "2024-05-01",
			"name": "hr", "unit": "bpm",
		}

		Convey("Then float64 and json.Number both coerce", func() {
			row["value"] = 71.0
			rec, err := validate.Validate(row, mapping.Identity("doe"), units)
			So(err, ShouldBeNil)
			So(rec.Value, ShouldEqual, 71.0)

			row["value"] = json.Number("72")
			rec, err = validate.Validate(row, mapping.Identity("doe"), units)
			So(err, ShouldBeNil)
			So(rec.Value, ShouldEqual, 72.0)
		})

		Convey("Then a boolean is not a number", func() {
			row["value"] = true
			_, err := validate.Validate(row, mapping.Identity("doe"), units)
			So(errors.Is(err, validate.ErrTypeCoercion), ShouldBeTrue)
		})
	})
}

func TestValidateBatch(t *testing.T) {
	Convey("Given a mapping that leaves value unresolved", t, func() {
		m := mapping.Infer([]string{"athlete_code", "sess_num", "timestamp", "metric_name", "units", "score"}, "doe")
		rows := make([]validate.Row, 1000)
		for i := range rows {
			rows[i] = csvRow("kg", fmt.Sprint(i))
		}

		Convey("Then the batch fails before any row is processed", func() {
			b, err := validate.ValidateBatch(rows, m, units)
			var ue *validate.UnmappedFieldError
			So(errors.As(err, &ue), ShouldBeTrue)
			So(ue.Fields, ShouldResemble, []string{model.FieldValue})
			So(b.Records, ShouldBeEmpty)
			So(b.Rejected, ShouldBeEmpty)
		})
	})

	Convey("Given a mix of good and bad rows", t, func() {
		rows := []validate.Row{
			csvRow("kg", "100"),
			csvRow("lightyears", "3"),
			csvRow("m", "abc"),
			csvRow("s", "9.8"),
		}
		b, err := validate.ValidateBatch(rows, csvMapping(), units)

		Convey("Then every row is accounted for", func() {
			So(err, ShouldBeNil)
			So(b.Records, ShouldHaveLength, 2)
			So(b.Rejected, ShouldHaveLength, 2)
			So(b.Rejected[0].Index, ShouldEqual, 1)
			So(b.Rejected[1].Index, ShouldEqual, 2)
			So(b.Rejected[0].Fields[model.FieldAthleteID], ShouldEqual, "A1")
			So(validate.Reason(b.Rejected[1].Err), ShouldEqual, "type_coercion")
		})

		Convey("Then coercion errors carry the batch index", func() {
			var ce *validate.TypeCoercionError
			So(errors.As(b.Rejected[1].Err, &ce), ShouldBeTrue)
			So(ce.Row, ShouldEqual, 2)
		})
	})
}
