package csvsource_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/athletegraph/internal/adapters/csvsource"
	"github.com/okian/athletegraph/internal/domain/validate"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRead(t *testing.T) {
	Convey("Given a CSV with a BOM and padded header cells", t, func() {
		in := "\ufeffathlete_code, sess_num ,timestamp\nA1,S1,2024-05-01\n\nA2,S2,2024-05-02\n"
		table, err := csvsource.Read(strings.NewReader(in))

		Convey("Then columns are clean and rows are keyed by column", func() {
			So(err, ShouldBeNil)
			So(table.Columns, ShouldResemble, []string{"athlete_code", "sess_num", "timestamp"})
			So(table.Rows, ShouldHaveLength, 2)
			So(table.Rows[1], ShouldResemble, validate.Row{"athlete_code": "A2", "sess_num": "S2", "timestamp": "2024-05-02"})
		})

		Convey("Then source lines skip the blank line", func() {
			So(table.Line(0), ShouldEqual, 2)
			So(table.Line(1), ShouldEqual, 4)
			So(table.Line(9), ShouldEqual, 0)
		})
	})

	Convey("Given malformed input", t, func() {
		_, err := csvsource.Read(strings.NewReader(""))
		So(errors.Is(err, csvsource.ErrNoHeader), ShouldBeTrue)

		_, err = csvsource.Read(strings.NewReader("a,a\n1,2\n"))
		So(errors.Is(err, csvsource.ErrDuplicateCol), ShouldBeTrue)
	})

	Convey("Given rows narrower and wider than the header", t, func() {
		table, err := csvsource.Read(strings.NewReader("a,b,c\n1,2,3\n4,5\n6,7,8,9\n"))

		Convey("Then every row is kept with its line", func() {
			So(err, ShouldBeNil)
			So(table.Rows, ShouldHaveLength, 3)
			So(table.Line(1), ShouldEqual, 3)
		})

		Convey("Then missing cells are nil and extra cells are dropped", func() {
			So(table.Rows[1], ShouldResemble, validate.Row{"a": "4", "b": "5", "c": nil})
			So(table.Rows[2], ShouldResemble, validate.Row{"a": "6", "b": "7", "c": "8"})
		})

		Convey("Then the odd rows are listed", func() {
			So(table.Ragged, ShouldResemble, []csvsource.RaggedRow{
				{Index: 1, Line: 3, Fields: 2},
				{Index: 2, Line: 4, Fields: 4},
			})
		})
	})

	Convey("Given a file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "in.csv")
		So(os.WriteFile(path, []byte("x,y\n1,2\n"), 0o644), ShouldBeNil)

		table, err := csvsource.ReadFile(path)
		So(err, ShouldBeNil)
		So(table.Rows, ShouldHaveLength, 1)

		_, err = csvsource.ReadFile(filepath.Join(t.TempDir(), "missing.csv"))
		So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
	})
}
