package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When initialised with defaults", func() {
			So(Init(), ShouldBeNil)
			So(Get(), ShouldNotBeNil)
			So(Sync(), ShouldBeNil)
		})

		Convey("When used before Init", func() {
			saved := global
			global = nil
			defer func() { global = saved }()
			So(func() { Get() }, ShouldPanicWith, "rapport logger used before logger.Init")
			So(func() { Named("service") }, ShouldPanic)
		})

		Convey("When initialised with an unknown format", func() {
			So(Init(WithFormat("xml")), ShouldNotBeNil)
		})
	})
}

func TestLoggerJSON(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat("JSON"), WithOutput(&buf)), ShouldBeNil)

		Convey("When logging with fields", func() {
			Get().Info(context.Background(), "snapshot computed",
				String("subject", "u1"),
				Int("lvl", 4),
				Float64("score", 7),
				Bool("available", true),
				Duration("took", time.Millisecond),
				Strings("factors", []string{"location"}),
				Error(errors.New("boom")),
			)

			Convey("Then one JSON record carries every field and the caller", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "snapshot computed")
				So(rec["subject"], ShouldEqual, "u1")
				So(rec["lvl"], ShouldEqual, float64(4))
				So(rec["available"], ShouldEqual, true)
				So(rec["error"], ShouldEqual, "boom")
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})
	})
}

func TestLoggerLevels(t *testing.T) {
	Convey("Given a text logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithOutput(&buf)), ShouldBeNil)
		ctx := context.Background()

		Convey("When the level is raised to warn", func() {
			So(SetLevelString("WARNING"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Warn(ctx, "shown")

			Convey("Then only warn and above are written", func() {
				So(buf.String(), ShouldNotContainSubstring, "hidden")
				So(buf.String(), ShouldContainSubstring, "shown")
			})
		})

		Convey("When a named logger is used", func() {
			So(SetLevelString("debug"), ShouldBeNil)
			Named("worker").Debug(ctx, "tick", Int("id", 1))

			Convey("Then its fields are grouped under the name", func() {
				So(strings.Contains(buf.String(), "worker.id=1"), ShouldBeTrue)
			})
		})

		Convey("When the level string is unknown", func() {
			So(SetLevelString("verbose"), ShouldNotBeNil)
		})
	})
}
