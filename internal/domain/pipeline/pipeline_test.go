package pipeline

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/okian/matchcast/internal/domain/model"
	"github.com/okian/matchcast/internal/domain/nn"
	"github.com/okian/matchcast/internal/domain/preprocess"
	. "github.com/smartystreets/goconvey/convey"
)

func sampleMatches(n int) []model.Match {
	teams := []string{"Arsenal", "Chelsea", "Everton", "Fulham"}
	outcomes := []model.Outcome{model.Win, model.Loss, model.Draw}
	out := make([]model.Match, n)
	for i := range out {
		res := outcomes[i%3]
		xg := 1.0
		switch res {
		case model.Win:
			xg = 2.5
		case model.Loss:
			xg = 0.3
		}
		venue := "Home"
		if i%2 == 1 {
			venue = "Away"
		}
		out[i] = model.Match{
			Team:     teams[i%len(teams)],
			Opponent: teams[(i+1)%len(teams)],
			Venue:    venue,
			Date:     time.Date(2023, 8, 1+i%28, 0, 0, 0, 0, time.UTC),
			Hour:     12 + i%9,
			Result:   res,
			Stats: model.Stats{
				XG: xg, XGA: 3 - xg, Poss: 40 + float64(i%20), Attendance: 20000 + float64(i*100),
				Sh: 8 + xg*3, SoT: 2 + xg, Dist: 18 - xg, PK: 0, FK: float64(i % 2), PKAtt: 0,
			},
		}
	}
	if n > 3 {
		out[3].Stats.Attendance = math.NaN()
	}
	return out
}

func fastNetwork() nn.Config {
	cfg := nn.DefaultConfig()
	cfg.Hidden = []int{16, 8}
	cfg.Dropout = 0.1
	cfg.Epochs = 5
	cfg.BatchSize = 8
	return cfg
}

func TestSplit(t *testing.T) {
	Convey("Given a split of 10 rows at 0.3", t, func() {
		train, test := Split(10, 0.3, 42)

		Convey("Then 3 rows are held out and every index appears once", func() {
			So(len(test), ShouldEqual, 3)
			So(len(train), ShouldEqual, 7)
			all := append(append([]int{}, train...), test...)
			sort.Ints(all)
			for i, v := range all {
				So(v, ShouldEqual, i)
			}
		})

		Convey("Then the split is reproducible for a seed", func() {
			train2, test2 := Split(10, 0.3, 42)
			So(train2, ShouldResemble, train)
			So(test2, ShouldResemble, test)
		})
	})

	Convey("Given fractional test sizes", t, func() {
		_, test := Split(11, 0.3, 1)
		So(len(test), ShouldEqual, 4)

		train, test := Split(1, 0.3, 1)
		So(len(test), ShouldEqual, 1)
		So(len(train), ShouldEqual, 0)
	})
}

func TestFit(t *testing.T) {
	Convey("Given a small match table", t, func() {
		ctx := context.Background()
		matches := sampleMatches(40)

		Convey("When fitting with a fast network", func() {
			var epochs []nn.EpochStats
			fitted, err := Fit(ctx, matches,
				WithNetworkConfig(fastNetwork()),
				WithEpochHook(func(s nn.EpochStats) { epochs = append(epochs, s) }),
			)

			Convey("Then a fitted context is returned", func() {
				So(err, ShouldBeNil)
				So(fitted.ID(), ShouldNotBeEmpty)
				train, test := fitted.SplitSizes()
				So(test, ShouldEqual, 12)
				So(train, ShouldEqual, 28)
				So(len(fitted.History()), ShouldEqual, 5)
				So(len(epochs), ShouldEqual, 5)
				So(fitted.Teams(), ShouldResemble, []string{"Arsenal", "Chelsea", "Everton", "Fulham"})
				So(len(fitted.Matches()), ShouldEqual, 40)
			})

			Convey("Then every match yields a finite scaled vector", func() {
				for _, m := range fitted.Matches() {
					x, err := fitted.Features(m)
					So(err, ShouldBeNil)
					for _, v := range x {
						So(math.IsNaN(v) || math.IsInf(v, 0), ShouldBeFalse)
					}
					p, err := fitted.Classifier().Predict(x)
					So(err, ShouldBeNil)
					So(len(p), ShouldEqual, model.NumOutcomes)
				}
			})
		})

		Convey("When fitting twice with the same seed", func() {
			a, err := Fit(ctx, matches, WithNetworkConfig(fastNetwork()), WithSeed(7))
			So(err, ShouldBeNil)
			b, err := Fit(ctx, matches, WithNetworkConfig(fastNetwork()), WithSeed(7))
			So(err, ShouldBeNil)

			Convey("Then the training history matches but ids differ", func() {
				So(b.History(), ShouldResemble, a.History())
				So(b.ID(), ShouldNotEqual, a.ID())
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := Fit(cctx, matches, WithNetworkConfig(fastNetwork()))
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})

	Convey("Given degenerate tables", t, func() {
		ctx := context.Background()

		Convey("When the table is empty", func() {
			_, err := Fit(ctx, nil)
			So(errors.Is(err, ErrEmptyDataset), ShouldBeTrue)
		})

		Convey("When the split leaves no training rows", func() {
			fitted, err := Fit(ctx, sampleMatches(1), WithNetworkConfig(fastNetwork()))
			So(fitted, ShouldBeNil)
			So(errors.Is(err, ErrEmptyTrainingSet), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "1 rows")
		})

		Convey("When a statistic is never observed", func() {
			matches := sampleMatches(10)
			for i := range matches {
				matches[i].Stats.XG = math.NaN()
			}
			_, err := Fit(ctx, matches, WithNetworkConfig(fastNetwork()))
			So(errors.Is(err, preprocess.ErrUndefinedStatistic), ShouldBeTrue)
		})
	})
}

func TestOptions(t *testing.T) {
	Convey("Given fit options", t, func() {
		s := settings{testSize: 0.3}
		WithTestSize(0)(&s)
		WithTestSize(1.5)(&s)
		So(s.testSize, ShouldEqual, 0.3)
		WithTestSize(0.2)(&s)
		So(s.testSize, ShouldEqual, 0.2)
		WithLogger(nil)(&s)
		So(s.logger, ShouldBeNil)
	})
}
