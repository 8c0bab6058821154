package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/okian/matchcast/internal/adapters/cache"
	service "github.com/okian/matchcast/internal/app"
	"github.com/okian/matchcast/internal/domain/features"
	"github.com/okian/matchcast/internal/domain/model"
	"github.com/okian/matchcast/internal/domain/nn"
	"github.com/okian/matchcast/internal/domain/predictor"
	"github.com/okian/matchcast/pkg/logger"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

var teams = []string{"Arsenal", "Chelsea", "Everton"}

type stubLoader struct {
	records []model.Record
	err     error
}

func (l stubLoader) Load(context.Context) ([]model.Record, error) { return l.records, l.err }

func sampleRecords(n int) []model.Record {
	results := []string{"W", "L", "D"}
	out := make([]model.Record, n)
	for i := range out {
		out[i] = model.Record{
			Line:     i + 2,
			Team:     teams[i%len(teams)],
			Opponent: teams[(i+1)%len(teams)],
			Venue:    []string{"Home", "Away"}[i%2],
			Date:     fmt.Sprintf("2023-09-%02d", 1+i%28),
			Time:     fmt.Sprintf("%d:30", 12+i%8),
			Result:   results[i%3],
			Stats: [10]string{
				fmt.Sprintf("%.1f", 0.5+float64(i%3)), "1.1", fmt.Sprint(40 + i%20), "30,000",
				fmt.Sprint(8 + i%5), "3", "17.2", "0", "1", "0",
			},
		}
	}
	return out
}

func fastNetwork() nn.Config {
	cfg := nn.DefaultConfig()
	cfg.Hidden = []int{8}
	cfg.Epochs = 3
	cfg.BatchSize = 8
	return cfg
}

func newService(records []model.Record, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithLoader(stubLoader{records: records}),
		service.WithNetworkConfig(fastNetwork()),
	}
	return service.New(append(base, opts...)...)
}

func TestService_Start(t *testing.T) {
	Convey("Given a service over 30 clean rows", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		svc := newService(sampleRecords(30))
		defer svc.Stop()

		Convey("When it is not started", func() {
			_, err := svc.Predict(ctx, "Arsenal")

			Convey("Then reads are refused", func() {
				So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When starting the service", func() {
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And stats describe the fit", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["matches"], ShouldEqual, 30)
				So(stats["train_rows"], ShouldEqual, 21)
				So(stats["test_rows"], ShouldEqual, 9)
				So(stats["epochs"], ShouldEqual, 3)
				So(stats["rejected_rows"], ShouldEqual, 0)
				So(stats["model_id"], ShouldNotBeEmpty)
			})

			Convey("And teams are listed in order", func() {
				got, err := svc.Teams(ctx)
				So(err, ShouldBeNil)
				So(got, ShouldResemble, teams)
			})
		})
	})

	Convey("Given rows with invalid results and times", t, func() {
		ctx := context.Background()
		records := sampleRecords(30)
		records[4].Result = "X"
		records[7].Time = "evening"
		records[9].Date = "someday"

		Convey("When the date policy coerces", func() {
			svc := newService(records)
			So(svc.Start(ctx), ShouldBeNil)
			stats := svc.GetStats()

			Convey("Then only result and time failures are dropped", func() {
				So(stats["matches"], ShouldEqual, 28)
				So(stats["rejected_rows"], ShouldEqual, 2)
				So(stats["coerced_dates"], ShouldEqual, 1)
				So(stats["rejected_by_reason"], ShouldResemble, map[string]int{
					features.ReasonInvalidResult: 1,
					features.ReasonInvalidTime:   1,
				})
			})
		})

		Convey("When the date policy rejects", func() {
			svc := newService(records, service.WithDatePolicy(features.DateReject))
			So(svc.Start(ctx), ShouldBeNil)

			Convey("Then the bad date is dropped too", func() {
				So(svc.GetStats()["matches"], ShouldEqual, 27)
				So(svc.GetStats()["rejected_rows"], ShouldEqual, 3)
			})
		})
	})

	Convey("Given a failing loader", t, func() {
		svc := service.New(service.WithLoader(stubLoader{err: errors.New("disk gone")}))

		Convey("Then Start fails", func() {
			err := svc.Start(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "disk gone")
		})
	})

	Convey("Given no dataset at all", t, func() {
		err := service.New().Start(context.Background())
		So(err, ShouldNotBeNil)
	})

	Convey("Given a CSV file on disk", t, func() {
		var b strings.Builder
		b.WriteString("date,time,venue,result,opponent,xg,xga,poss,attendance,sh,sot,dist,fk,pk,pkatt,team\n")
		for _, r := range sampleRecords(12) {
			s := r.Stats
			fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%s,%s,%s,\"%s\",%s,%s,%s,%s,%s,%s,%s\n",
				r.Date, r.Time, r.Venue, r.Result, r.Opponent,
				s[0], s[1], s[2], s[3], s[4], s[5], s[6], s[8], s[7], s[9], r.Team)
		}
		path := filepath.Join(t.TempDir(), "matches.csv")
		So(os.WriteFile(path, []byte(b.String()), 0o600), ShouldBeNil)

		svc := service.New(service.WithDataPath(path), service.WithNetworkConfig(fastNetwork()))

		Convey("Then the service trains from it", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.GetStats()["matches"], ShouldEqual, 12)
		})
	})
}

func TestService_Predict(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService(sampleRecords(30))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When predicting a known team", func() {
			report, err := svc.Predict(ctx, "Chelsea")

			Convey("Then every match of the team is scored", func() {
				So(err, ShouldBeNil)
				So(len(report.Results), ShouldEqual, 10)
				So(report.Accuracy, ShouldBeBetweenOrEqual, 0, 100)
				So(report.ModelID, ShouldEqual, svc.GetStats()["model_id"])
				for _, r := range report.Results {
					So(r.Team, ShouldEqual, "Chelsea")
					So(r.Date, ShouldNotBeNil)
				}
			})
		})

		Convey("When predicting an unknown team", func() {
			_, err := svc.Predict(ctx, "Ipswich")
			So(errors.Is(err, predictor.ErrTeamNotFound), ShouldBeTrue)
		})

		Convey("When the team is blank", func() {
			_, err := svc.Predict(ctx, "  ")
			So(errors.Is(err, predictor.ErrTeamRequired), ShouldBeTrue)
		})

		Convey("When the service is stopped", func() {
			svc.Stop()
			_, err := svc.Predict(ctx, "Chelsea")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Teams(ctx)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})
	})
}

func TestService_Cache(t *testing.T) {
	Convey("Given a service with an in-memory cache and warm-up", t, func() {
		ctx := context.Background()
		mem := cache.NewMemory()
		svc := newService(sampleRecords(30), service.WithCache(mem), service.WithWarmupWorkers(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("Then every team is cached before the first request", func() {
			So(mem.Len(), ShouldEqual, len(teams))
			So(svc.GetStats()["cache"], ShouldEqual, true)
		})

		Convey("Then a prediction is served from the cache unchanged", func() {
			id := svc.GetStats()["model_id"].(string)
			cached, err := mem.Get(ctx, id, "Everton")
			So(err, ShouldBeNil)
			report, err := svc.Predict(ctx, "Everton")
			So(err, ShouldBeNil)
			So(report, ShouldResemble, cached)
		})
	})

	Convey("Given a service with a redis cache and no warm-up", t, func() {
		ctx := context.Background()
		mr, err := miniredis.Run()
		So(err, ShouldBeNil)
		defer mr.Close()

		rc := cache.NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), cache.WithTTL(time.Minute))
		svc := newService(sampleRecords(30), service.WithCache(rc), service.WithWarmupWorkers(0))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		id := svc.GetStats()["model_id"].(string)

		Convey("When a team is predicted", func() {
			So(mr.Exists(cache.Key(id, "Arsenal")), ShouldBeFalse)
			first, err := svc.Predict(ctx, "Arsenal")
			So(err, ShouldBeNil)

			Convey("Then the report is written through and read back", func() {
				So(mr.Exists(cache.Key(id, "Arsenal")), ShouldBeTrue)
				second, err := svc.Predict(ctx, "Arsenal")
				So(err, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})

		Convey("When redis goes away", func() {
			mr.Close()

			Convey("Then predictions are still computed", func() {
				report, err := svc.Predict(ctx, "Arsenal")
				So(err, ShouldBeNil)
				So(len(report.Results), ShouldEqual, 10)
			})
		})
	})
}
