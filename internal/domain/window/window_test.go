package window_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/skillwatch/internal/domain/window"
	. "github.com/smartystreets/goconvey/convey"
)

func at(loc *time.Location, hour, minute int) time.Time {
	return time.Date(2026, time.March, 14, hour, minute, 30, 0, loc)
}

func TestParseClock(t *testing.T) {
	Convey("Given clock strings", t, func() {
		Convey("Then valid HH:mm values should convert to minutes", func() {
			for in, want := range map[string]int{"00:00": 0, "07:00": 420, "7:05": 425, "23:59": 1439, " 12:30 ": 750} {
				got, err := window.ParseClock(in)
				So(err, ShouldBeNil)
				So(got, ShouldEqual, want)
			}
		})

		Convey("Then invalid values should be rejected", func() {
			for _, in := range []string{"", "7", "24:00", "12:60", "ab:cd", "-1:00"} {
				_, err := window.ParseClock(in)
				So(errors.Is(err, window.ErrInvalidClock), ShouldBeTrue)
			}
		})

		Convey("Then formatting should round-trip", func() {
			So(window.FormatClock(425), ShouldEqual, "07:05")
		})
	})
}

func TestParse(t *testing.T) {
	Convey("Given window bounds", t, func() {
		Convey("When the time zone is unknown", func() {
			_, err := window.Parse("07:00", "23:00", "Mars/Olympus")

			Convey("Then it should fail", func() {
				So(errors.Is(err, window.ErrInvalidTimeZone), ShouldBeTrue)
			})
		})

		Convey("When the time zone is empty", func() {
			w, err := window.Parse("07:00", "23:00", "")

			Convey("Then the default zone should be used", func() {
				So(err, ShouldBeNil)
				So(w.Zone(), ShouldEqual, window.DefaultTimeZone)
			})
		})

		Convey("When using the defaults", func() {
			w, err := window.Default()

			Convey("Then it should be 07:00-23:00", func() {
				So(err, ShouldBeNil)
				So(w.String(), ShouldEqual, "07:00-23:00 Europe/Copenhagen")
				So(w.Wraps(), ShouldBeFalse)
			})
		})
	})
}

func TestContains(t *testing.T) {
	Convey("Given a 07:00-23:00 window", t, func() {
		w, err := window.Parse("07:00", "23:00", "UTC")
		So(err, ShouldBeNil)
		utc := time.UTC

		Convey("Then membership should follow the half-open interval", func() {
			So(w.Contains(at(utc, 6, 59)), ShouldBeFalse)
			So(w.Contains(at(utc, 7, 0)), ShouldBeTrue)
			So(w.Contains(at(utc, 22, 59)), ShouldBeTrue)
			So(w.Contains(at(utc, 23, 0)), ShouldBeFalse)
		})
	})

	Convey("Given a wrapping 23:00-07:00 window", t, func() {
		w, err := window.Parse("23:00", "07:00", "UTC")
		So(err, ShouldBeNil)
		utc := time.UTC

		Convey("Then times across midnight should be active", func() {
			So(w.Wraps(), ShouldBeTrue)
			So(w.Contains(at(utc, 23, 30)), ShouldBeTrue)
			So(w.Contains(at(utc, 6, 30)), ShouldBeTrue)
			So(w.Contains(at(utc, 12, 0)), ShouldBeFalse)
			So(w.Contains(at(utc, 7, 0)), ShouldBeFalse)
		})
	})

	Convey("Given a window with equal bounds", t, func() {
		w, _ := window.Parse("09:00", "09:00", "UTC")

		Convey("Then it should never be active", func() {
			So(w.Contains(at(time.UTC, 9, 0)), ShouldBeFalse)
			So(w.Contains(at(time.UTC, 15, 0)), ShouldBeFalse)
		})
	})

	Convey("Given a window in a zone ahead of UTC", t, func() {
		w, err := window.Parse("07:00", "23:00", "Asia/Tokyo")
		So(err, ShouldBeNil)

		Convey("Then evaluation should use the window's local time", func() {
			// 22:30 UTC is 07:30 the next day in Tokyo.
			So(w.Contains(at(time.UTC, 22, 30)), ShouldBeTrue)
			// 15:00 UTC is 00:00 in Tokyo.
			So(w.Contains(at(time.UTC, 15, 0)), ShouldBeFalse)
		})
	})
}

func TestBoundaries(t *testing.T) {
	Convey("Given a window", t, func() {
		w, _ := window.Parse("07:15", "23:00", "UTC")

		Convey("Then boundary cron specs should fire at start and end in its zone", func() {
			So(w.Boundaries(), ShouldResemble, []string{
				"CRON_TZ=UTC 15 7 * * *",
				"CRON_TZ=UTC 0 23 * * *",
			})
		})
	})
}
