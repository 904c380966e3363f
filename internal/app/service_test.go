package service_test

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/skillwatch/internal/app"
	"github.com/okian/skillwatch/internal/adapters/repository"
	"github.com/okian/skillwatch/internal/config"
	"github.com/okian/skillwatch/internal/domain/skills"
	"github.com/okian/skillwatch/internal/domain/window"
	"github.com/okian/skillwatch/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init(logger.WithWriter(io.Discard))
	if err != nil {
		panic(err)
	}
}

func noon() time.Time {
	loc, _ := time.LoadLocation("Europe/Copenhagen")
	return time.Date(2024, 6, 1, 12, 0, 0, 0, loc)
}

func night() time.Time {
	loc, _ := time.LoadLocation("Europe/Copenhagen")
	return time.Date(2024, 6, 1, 2, 0, 0, 0, loc)
}

type stubFetcher struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (f *stubFetcher) Fetch(context.Context) (skills.Snapshot, error) {
	f.calls.Add(1)
	if f.fail.Load() {
		return skills.Snapshot{}, errors.New("upstream unavailable")
	}
	return skills.NewSnapshot(skills.Names(), map[string]skills.Record{
		skills.Overall: {Rank: 1, Level: 2277, Experience: 4_600_000_000},
		"attack":       {Rank: 5, Level: 99, Experience: 13_034_431},
		"defence":      {Rank: 9, Level: 50, Experience: 101_333 + 5_000},
	}), nil
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestService_Start(t *testing.T) {
	Convey("Given a service without a player", t, func() {
		svc := service.New()
		defer svc.Stop()

		Convey("When starting the service", func() {
			err := svc.Start(context.Background())

			Convey("Then it should fail with a configuration error", func() {
				So(errors.Is(err, config.ErrMissingPlayer), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})

			Convey("And queries should report the service as not started", func() {
				_, err := svc.Stats(context.Background())
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				_, err = svc.Wake(context.Background())
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.Active(), ShouldBeFalse)
			})
		})
	})

	Convey("Given a service with a player", t, func() {
		f := &stubFetcher{}
		svc := service.New(
			service.WithPlayer("Zezima"),
			service.WithFetcher(f.Fetch),
			service.WithClock(noon),
		)
		defer svc.Stop()

		Convey("When starting the service", func() {
			err := svc.Start(context.Background())

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, true)
				So(svc.Start(context.Background()), ShouldBeNil)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithPlayer("Zezima"), service.WithFetcher((&stubFetcher{}).Fetch), service.WithClock(night))
		So(svc.Start(context.Background()), ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_SetWindowAfterStop(t *testing.T) {
	Convey("Given a service stopped outside the window", t, func() {
		f := &stubFetcher{}
		svc := service.New(service.WithPlayer("Zezima"), service.WithFetcher(f.Fetch), service.WithClock(night))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		svc.Stop()

		Convey("When the window is widened to the whole day", func() {
			w, err := window.Parse("00:00", "23:59", "Europe/Copenhagen")
			So(err, ShouldBeNil)
			So(svc.SetWindow(ctx, w), ShouldBeNil)

			Convey("Then the window should be remembered without any fetch", func() {
				So(svc.Window().Equal(w), ShouldBeTrue)
				So(svc.Active(), ShouldBeFalse)
				time.Sleep(20 * time.Millisecond)
				So(f.calls.Load(), ShouldEqual, int64(0))
			})
		})
	})
}

func TestService_Active(t *testing.T) {
	Convey("Given a service started inside the window", t, func() {
		f := &stubFetcher{}
		svc := service.New(service.WithPlayer("Zezima"), service.WithFetcher(f.Fetch), service.WithClock(noon))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the board is read after the first fetch", func() {
			So(eventually(func() bool {
				v, err := svc.Stats(ctx)
				return err == nil && v.State.Status() == repository.StatusReady
			}), ShouldBeTrue)
			board, err := svc.Board(ctx)

			Convey("Then entries should carry curve-derived level info", func() {
				So(err, ShouldBeNil)
				So(board.Status, ShouldEqual, repository.StatusReady)
				So(board.Active, ShouldBeTrue)
				So(board.Stale, ShouldBeTrue)
				So(board.Player, ShouldEqual, "Zezima")
				So(board.FetchedAt, ShouldNotBeNil)
				So(len(board.Entries), ShouldEqual, len(skills.Names()))

				So(board.Entries[0].Name, ShouldEqual, skills.Overall)
				So(board.Entries[1].Name, ShouldEqual, "attack")
				So(board.Entries[1].CurveLevel, ShouldEqual, 99)
				So(board.Entries[1].Progress, ShouldEqual, float64(100))
				So(board.Entries[2].CurveLevel, ShouldEqual, 50)
				So(board.Entries[2].Progress, ShouldBeBetween, 0, 100)
				So(board.Entries[3].Rank, ShouldEqual, -1)
				So(board.Entries[3].CurveLevel, ShouldEqual, 1)
			})
		})

		Convey("When the upstream fails after a success", func() {
			_, err := svc.Refresh(ctx)
			So(err, ShouldBeNil)
			f.fail.Store(true)
			triggered, err := svc.Refresh(ctx)

			Convey("Then the board should show the error with the last data", func() {
				So(triggered, ShouldBeTrue)
				So(err, ShouldNotBeNil)
				board, err := svc.Board(ctx)
				So(err, ShouldBeNil)
				So(board.Status, ShouldEqual, repository.StatusError)
				So(board.Error, ShouldContainSubstring, "upstream unavailable")
				So(len(board.Entries), ShouldEqual, len(skills.Names()))

				stats := svc.GetStats()
				So(stats["last_error"], ShouldContainSubstring, "upstream unavailable")
				So(stats["status"], ShouldEqual, repository.StatusError)
			})
		})

		Convey("When the window is moved away from now", func() {
			w, err := window.Parse("20:00", "21:00", "Europe/Copenhagen")
			So(err, ShouldBeNil)
			So(svc.SetWindow(ctx, w), ShouldBeNil)

			Convey("Then the service should become inactive at once", func() {
				So(svc.Active(), ShouldBeFalse)
				So(svc.Window().Equal(w), ShouldBeTrue)
				woke, err := svc.Wake(ctx)
				So(err, ShouldBeNil)
				So(woke, ShouldBeFalse)
			})
		})
	})
}

func TestService_Inactive(t *testing.T) {
	Convey("Given a service started outside the window", t, func() {
		f := &stubFetcher{}
		svc := service.New(service.WithPlayer("Zezima"), service.WithFetcher(f.Fetch), service.WithClock(night))
		ctx := context.Background()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When the board is read", func() {
			board, err := svc.Board(ctx)

			Convey("Then it should be loading, not stale, and nothing fetched", func() {
				So(err, ShouldBeNil)
				So(board.Status, ShouldEqual, repository.StatusLoading)
				So(board.Active, ShouldBeFalse)
				So(board.Stale, ShouldBeFalse)
				So(board.FetchedAt, ShouldBeNil)
				So(board.Entries, ShouldBeEmpty)
				time.Sleep(20 * time.Millisecond)
				So(f.calls.Load(), ShouldEqual, int64(0))
			})
		})

		Convey("When a refresh is requested", func() {
			triggered, err := svc.Refresh(ctx)

			Convey("Then it should be ignored", func() {
				So(err, ShouldBeNil)
				So(triggered, ShouldBeFalse)
			})
		})
	})
}

func TestService_GetStats(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithPlayer("Zezima"))

		Convey("When getting stats before starting", func() {
			stats := svc.GetStats()

			Convey("Then it should return basic stats", func() {
				So(stats, ShouldNotBeNil)
				So(stats["started"], ShouldEqual, false)
				So(stats["player"], ShouldEqual, "Zezima")
				So(stats["window"], ShouldEqual, "07:00-23:00 Europe/Copenhagen")
			})
		})
	})
}

func TestFromConfig(t *testing.T) {
	Convey("Given a loaded config", t, func() {
		cfg := config.New()
		cfg.Player = "Lynx Titan"
		cfg.WindowStart = "22:00"
		cfg.WindowEnd = "02:00"

		Convey("When mapping it to options", func() {
			opts, err := service.FromConfig(cfg)
			So(err, ShouldBeNil)
			svc := service.New(opts...)

			Convey("Then the service should carry the settings", func() {
				So(svc.Window().String(), ShouldEqual, "22:00-02:00 Europe/Copenhagen")
				So(svc.GetStats()["player"], ShouldEqual, "Lynx Titan")
			})
		})

		Convey("When the window is invalid", func() {
			cfg.TimeZone = "Not/AZone"
			_, err := service.FromConfig(cfg)

			Convey("Then mapping should fail", func() {
				So(errors.Is(err, config.ErrInvalidConfig), ShouldBeTrue)
			})
		})
	})
}
