package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialized with defaults", func() {
			So(Init(), ShouldBeNil)
			defer func() { _ = Sync() }()

			Convey("Then Get returns a logger", func() {
				So(Get(), ShouldNotBeNil)
				So(Named("test"), ShouldNotBeNil)
			})
		})

		Convey("When initialized with an unknown format", func() {
			err := InitWithWriter(&bytes.Buffer{}, "xml")

			Convey("Then it should fail", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(InitWithWriter(&buf, FormatJSON), ShouldBeNil)
		ctx := context.Background()

		Convey("When a named logger writes a record with fields", func() {
			Named("graph").With(String("coach_id", "doe")).Info(ctx, "record written",
				String("athlete_id", "A1"),
				Int("written", 2),
				Strings("units", []string{"kg", "m"}),
				Error(errors.New("boom")),
			)

			Convey("Then the record carries every field", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "record written")
				So(rec["component"], ShouldEqual, "graph")
				So(rec["coach_id"], ShouldEqual, "doe")
				So(rec["athlete_id"], ShouldEqual, "A1")
				So(rec["units"], ShouldEqual, "kg,m")
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})

		Convey("When the level is raised to warn", func() {
			So(SetLevelString("warn"), ShouldBeNil)
			defer func() { _ = SetLevelString("info") }()
			Get().Info(ctx, "hidden")

			Convey("Then info records are dropped", func() {
				So(buf.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level strings", t, func() {
		So(Init(), ShouldBeNil)
		for _, lvl := range []string{"debug", "INFO", "", "warning", "error"} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		_ = SetLevelString("info")
	})
}

func TestNop(t *testing.T) {
	Convey("Nop logger swallows records without panicking", t, func() {
		l := Nop()
		So(func() { l.Named("x").With(String("a", "b")).Error(context.Background(), "ignored") }, ShouldNotPanic)
	})
}
