package feedsim

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/skillwatch/internal/domain/feed"
	"github.com/okian/skillwatch/internal/domain/skills"
	"github.com/okian/skillwatch/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithWriter(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func TestFeed(t *testing.T) {
	Convey("Given a simulator with a controllable clock", t, func() {
		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		sim := New(WithClock(func() time.Time { return now }))

		Convey("When rendering a feed", func() {
			text := sim.Feed("Zezima", now)
			snap := feed.Parse(text)

			Convey("Then it should cover every entry plus trailing activity rows", func() {
				rows := strings.Split(strings.TrimSpace(text), "\n")
				So(len(rows), ShouldEqual, len(skills.Names())+activityRows)
				So(feed.NewParser().Defaulted(text), ShouldEqual, 0)
			})

			Convey("Then the overall row should sum the skills", func() {
				var levels int
				var xp int64
				snap.Each(func(name string, r skills.Record) {
					if name == skills.Overall {
						return
					}
					levels += r.Level
					xp += r.Experience
				})
				overall, _ := snap.Record(skills.Overall)
				So(overall.Level, ShouldEqual, levels)
				So(overall.Experience, ShouldEqual, xp)
			})

			Convey("Then hitpoints should never be below level 10", func() {
				hp, _ := snap.Record("hitpoints")
				So(hp.Level, ShouldBeGreaterThanOrEqualTo, 10)
			})
		})

		Convey("Then the same player should always get the same profile", func() {
			So(sim.Feed("Zezima", now), ShouldEqual, New().Feed(" zezima ", time.Now()))
			So(sim.Feed("Zezima", now), ShouldNotEqual, sim.Feed("Lynx Titan", now))
		})

		Convey("Then experience should never decrease over time", func() {
			before := feed.Parse(sim.Feed("Zezima", now))
			after := feed.Parse(sim.Feed("Zezima", now.Add(3*time.Hour)))
			before.Each(func(name string, r skills.Record) {
				later, _ := after.Record(name)
				So(later.Experience, ShouldBeGreaterThanOrEqualTo, r.Experience)
			})
		})
	})
}

func TestServeHTTP(t *testing.T) {
	Convey("Given a simulator behind an HTTP server", t, func() {
		sim := New(WithUnknownPlayers("Ghost"))
		srv := httptest.NewServer(sim)
		defer srv.Close()

		get := func(query string) (*http.Response, string) {
			resp, err := http.Get(srv.URL + "/index_lite.ws" + query)
			So(err, ShouldBeNil)
			defer func() { _ = resp.Body.Close() }()
			body, err := io.ReadAll(resp.Body)
			So(err, ShouldBeNil)
			return resp, string(body)
		}

		Convey("When a known player is requested", func() {
			resp, body := get("?player=Zezima")

			Convey("Then feed text should be returned", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
				So(resp.Header.Get("Content-Type"), ShouldStartWith, "text/plain")
				So(body, ShouldEqual, sim.Feed("Zezima", time.Now()))
				So(sim.Requests(), ShouldEqual, int64(1))
			})
		})

		Convey("When an unknown player is requested", func() {
			resp, _ := get("?player=ghost")

			Convey("Then it should answer 404", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When no player is given", func() {
			resp, _ := get("")

			Convey("Then it should answer 400", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When failures are forced", func() {
			sim.SetFailing(true)
			resp, _ := get("?player=Zezima")

			Convey("Then it should answer 503 until cleared", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
				sim.SetFailing(false)
				resp, _ = get("?player=Zezima")
				So(resp.StatusCode, ShouldEqual, http.StatusOK)
			})
		})

		Convey("When the failure rate is one", func() {
			always := httptest.NewServer(New(WithFailureRate(1)))
			defer always.Close()
			resp, err := http.Get(always.URL + "?player=Zezima")
			So(err, ShouldBeNil)
			_ = resp.Body.Close()

			Convey("Then every request should fail", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When posting", func() {
			resp, err := http.Post(srv.URL+"?player=Zezima", "text/plain", nil)
			So(err, ShouldBeNil)
			_ = resp.Body.Close()

			Convey("Then it should be rejected", func() {
				So(resp.StatusCode, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}
