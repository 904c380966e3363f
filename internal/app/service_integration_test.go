package service_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	service "github.com/okian/skillwatch/internal/app"
	"github.com/okian/skillwatch/internal/adapters/repository"
	"github.com/okian/skillwatch/internal/domain/feed"
	"github.com/okian/skillwatch/internal/domain/skills"
	"github.com/okian/skillwatch/internal/feedsim"
	. "github.com/smartystreets/goconvey/convey"
)

func TestServiceIntegration(t *testing.T) {
	Convey("Given a service polling the feed simulator", t, func() {
		sim := feedsim.New(feedsim.WithUnknownPlayers("Ghost"))
		upstream := httptest.NewServer(sim)
		defer upstream.Close()

		ctx := context.Background()
		newService := func(player string) *service.Service {
			return service.New(
				service.WithPlayer(player),
				service.WithFeedURL(upstream.URL+"/index_lite.ws"),
				service.WithClock(noon),
				service.WithUpstreamLimit(0, 0),
				service.WithFetchTimeout(2*time.Second),
			)
		}

		Convey("When a known player is tracked", func() {
			svc := newService("Zezima")
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			triggered, err := svc.Refresh(ctx)

			Convey("Then the board should mirror the upstream feed", func() {
				So(triggered, ShouldBeTrue)
				So(err, ShouldBeNil)

				board, err := svc.Board(ctx)
				So(err, ShouldBeNil)
				So(board.Status, ShouldEqual, repository.StatusReady)

				want := feed.Parse(sim.Feed("Zezima", time.Now()))
				So(len(board.Entries), ShouldEqual, want.Len())
				for _, e := range board.Entries {
					r, ok := want.Record(e.Name)
					So(ok, ShouldBeTrue)
					So(e.Experience, ShouldEqual, r.Experience)
					So(e.Level, ShouldEqual, r.Level)
				}
				So(sim.Requests(), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When many readers hit the service while a fetch is running", func() {
			svc := newService("Lynx Titan")
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()
			_, err := svc.Refresh(ctx)
			So(err, ShouldBeNil)
			before := sim.Requests()

			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = svc.Stats(ctx)
				}()
			}
			wg.Wait()

			Convey("Then upstream requests should stay far below the number of reads", func() {
				So(eventually(func() bool {
					st, err := svc.Stats(ctx)
					return err == nil && !st.State.Fetching
				}), ShouldBeTrue)
				So(sim.Requests()-before, ShouldBeLessThan, 50)
			})
		})

		Convey("When the upstream goes down after a success", func() {
			svc := newService("Zezima")
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()
			_, err := svc.Refresh(ctx)
			So(err, ShouldBeNil)

			sim.SetFailing(true)
			_, err = svc.Refresh(ctx)

			Convey("Then the last snapshot should be served with an error flag", func() {
				So(err, ShouldNotBeNil)
				v, err := svc.Stats(ctx)
				So(err, ShouldBeNil)
				So(v.State.Status(), ShouldEqual, repository.StatusError)
				So(v.State.HasSnapshot(), ShouldBeTrue)

				overall, _ := v.State.Snapshot.Record(skills.Overall)
				So(overall.Experience, ShouldBeGreaterThan, 0)
			})

			Convey("Then the next success should clear the error", func() {
				sim.SetFailing(false)
				_, err := svc.Refresh(ctx)
				So(err, ShouldBeNil)
				v, _ := svc.Stats(ctx)
				So(v.State.Status(), ShouldEqual, repository.StatusReady)
			})
		})

		Convey("When the rate limit has no token left for a refresh", func() {
			svc := service.New(
				service.WithPlayer("Zezima"),
				service.WithFeedURL(upstream.URL+"/index_lite.ws"),
				service.WithClock(noon),
				service.WithUpstreamLimit(0.2, 1),
				service.WithFetchTimeout(2*time.Second),
			)
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			So(eventually(func() bool {
				b, err := svc.Board(ctx)
				return err == nil && b.Status == repository.StatusReady && !b.Fetching
			}), ShouldBeTrue)
			before := sim.Requests()

			triggered, err := svc.Refresh(ctx)

			Convey("Then the refresh should be skipped without reaching the upstream", func() {
				So(triggered, ShouldBeTrue)
				So(errors.Is(err, service.ErrSkipped), ShouldBeTrue)
				So(sim.Requests(), ShouldEqual, before)
			})

			Convey("Then the board should stay ready", func() {
				board, err := svc.Board(ctx)
				So(err, ShouldBeNil)
				So(board.Status, ShouldEqual, repository.StatusReady)
				So(board.Error, ShouldBeEmpty)
			})
		})

		Convey("When the player does not exist upstream", func() {
			svc := newService("Ghost")
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()
			_, err := svc.Refresh(ctx)

			Convey("Then the state should be an error without data", func() {
				So(err, ShouldNotBeNil)
				board, err := svc.Board(ctx)
				So(err, ShouldBeNil)
				So(board.Status, ShouldEqual, repository.StatusError)
				So(board.Error, ShouldContainSubstring, "404")
				So(board.Entries, ShouldBeEmpty)
			})
		})
	})
}
