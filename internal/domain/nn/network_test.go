package nn_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/okian/matchcast/internal/domain/nn"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// clusters returns three well separated 2-D blobs labelled 0, 1, 2.
func clusters(perClass int, seed int64) (*mat.Dense, *mat.Dense, []int) {
	rng := rand.New(rand.NewSource(seed))
	centers := [][2]float64{{-3, 0}, {3, 0}, {0, 3}}
	x := mat.NewDense(perClass*3, 2, nil)
	classes := make([]int, 0, perClass*3)
	for c, ctr := range centers {
		for i := 0; i < perClass; i++ {
			row := c*perClass + i
			x.Set(row, 0, ctr[0]+rng.NormFloat64()*0.3)
			x.Set(row, 1, ctr[1]+rng.NormFloat64()*0.3)
			classes = append(classes, c)
		}
	}
	y, _ := nn.OneHot(classes, 3)
	return x, y, classes
}

func smallConfig() nn.Config {
	cfg := nn.DefaultConfig()
	cfg.Hidden = []int{16}
	cfg.Dropout = 0
	cfg.L2 = 0
	cfg.LearningRate = 0.05
	cfg.Epochs = 60
	cfg.BatchSize = 8
	return cfg
}

func TestNew(t *testing.T) {
	Convey("Given network configurations", t, func() {
		Convey("When the default topology is requested", func() {
			net, err := nn.New(14, 3, nn.DefaultConfig())

			Convey("Then it accepts 14 features and emits 3 classes", func() {
				So(err, ShouldBeNil)
				So(net.Inputs(), ShouldEqual, 14)
				So(net.Outputs(), ShouldEqual, 3)
			})
		})

		Convey("When parameters are invalid", func() {
			bad := nn.DefaultConfig()
			bad.Dropout = 1
			_, err := nn.New(14, 3, bad)
			So(errors.Is(err, nn.ErrInvalidConfig), ShouldBeTrue)

			bad = nn.DefaultConfig()
			bad.Hidden = []int{8, 0}
			_, err = nn.New(14, 3, bad)
			So(errors.Is(err, nn.ErrInvalidConfig), ShouldBeTrue)

			_, err = nn.New(0, 3, nn.DefaultConfig())
			So(errors.Is(err, nn.ErrInvalidConfig), ShouldBeTrue)
		})
	})
}

func TestPredict(t *testing.T) {
	Convey("Given an untrained network", t, func() {
		net, err := nn.New(4, 3, nn.DefaultConfig())
		So(err, ShouldBeNil)

		Convey("Then predictions are probability distributions", func() {
			p, err := net.Predict([]float64{0.1, -2, 3, 0})
			So(err, ShouldBeNil)
			So(len(p), ShouldEqual, 3)
			So(floats.Sum(p), ShouldAlmostEqual, 1, 1e-9)
			for _, v := range p {
				So(v, ShouldBeBetweenOrEqual, 0, 1)
			}
		})

		Convey("And inference is deterministic", func() {
			a, _ := net.Predict([]float64{1, 2, 3, 4})
			b, _ := net.Predict([]float64{1, 2, 3, 4})
			So(a, ShouldResemble, b)
		})

		Convey("And batch inference matches single inference", func() {
			x := mat.NewDense(2, 4, []float64{1, 2, 3, 4, -1, 0, 1, 0})
			batch, err := net.PredictBatch(x)
			So(err, ShouldBeNil)
			single, _ := net.Predict([]float64{-1, 0, 1, 0})
			for j := 0; j < 3; j++ {
				So(batch.At(1, j), ShouldAlmostEqual, single[j], 1e-12)
			}
		})

		Convey("And the wrong width is rejected", func() {
			_, err := net.Predict([]float64{1})
			So(errors.Is(err, nn.ErrShape), ShouldBeTrue)
		})
	})
}

func TestTrain(t *testing.T) {
	Convey("Given a separable three-class problem", t, func() {
		x, y, _ := clusters(30, 1)
		vx, vy, _ := clusters(10, 2)
		net, err := nn.New(2, 3, smallConfig())
		So(err, ShouldBeNil)

		Convey("When training with an epoch hook", func() {
			var seen []int
			history, err := net.Train(context.Background(), x, y, vx, vy, nn.WithEpochHook(func(s nn.EpochStats) {
				seen = append(seen, s.Epoch)
			}))

			Convey("Then every epoch is reported", func() {
				So(err, ShouldBeNil)
				So(len(history), ShouldEqual, 60)
				So(len(seen), ShouldEqual, 60)
				So(seen[59], ShouldEqual, 60)
			})

			Convey("And the loss falls while accuracy reaches the clusters", func() {
				So(history.Last().Loss, ShouldBeLessThan, history[0].Loss)
				So(history.Last().Accuracy, ShouldBeGreaterThanOrEqualTo, 0.95)
				So(history.Last().ValAccuracy, ShouldBeGreaterThanOrEqualTo, 0.9)
			})

			Convey("And no epoch records a zero loss", func() {
				for _, s := range history {
					So(s.Loss, ShouldBeGreaterThan, 0)
					So(s.ValLoss, ShouldBeGreaterThan, 0)
				}
			})

			Convey("And evaluating does not move the parameters", func() {
				l1, a1, err := net.Evaluate(vx, vy)
				So(err, ShouldBeNil)
				l2, a2, _ := net.Evaluate(vx, vy)
				So(l1, ShouldEqual, l2)
				So(a1, ShouldEqual, a2)
			})
		})

		Convey("When the same seed trains twice", func() {
			other, _ := nn.New(2, 3, smallConfig())
			h1, _ := net.Train(context.Background(), x, y, nil, nil)
			h2, _ := other.Train(context.Background(), x, y, nil, nil)

			Convey("Then the runs are identical", func() {
				So(h1.Last().Loss, ShouldEqual, h2.Last().Loss)
			})
		})

		Convey("When dropout and L2 are active", func() {
			cfg := smallConfig()
			cfg.Dropout = 0.5
			cfg.L2 = 0.01
			reg, _ := nn.New(2, 3, cfg)
			history, err := reg.Train(context.Background(), x, y, nil, nil)

			Convey("Then training still converges", func() {
				So(err, ShouldBeNil)
				So(history.Last().Accuracy, ShouldBeGreaterThanOrEqualTo, 0.9)
			})
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := net.Train(ctx, x, y, nil, nil)

			Convey("Then training stops with the context error", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When targets do not match the samples", func() {
			_, err := net.Train(context.Background(), x, mat.NewDense(3, 3, nil), nil, nil)
			So(errors.Is(err, nn.ErrShape), ShouldBeTrue)
		})

		Convey("When the validation split has the wrong width", func() {
			hooked := 0
			history, err := net.Train(context.Background(), x, y, mat.NewDense(4, 5, nil), mat.NewDense(4, 3, nil),
				nn.WithEpochHook(func(nn.EpochStats) { hooked++ }))

			Convey("Then training fails instead of recording empty scores", func() {
				So(errors.Is(err, nn.ErrShape), ShouldBeTrue)
				So(history, ShouldBeEmpty)
				So(hooked, ShouldEqual, 0)
			})
		})
	})
}

func TestOneHotAndArgmax(t *testing.T) {
	Convey("Given class indexes", t, func() {
		y, err := nn.OneHot([]int{2, 0}, 3)
		So(err, ShouldBeNil)
		So(mat.Row(nil, 0, y), ShouldResemble, []float64{0, 0, 1})
		So(nn.Argmax([]float64{0.2, 0.7, 0.1}), ShouldEqual, 1)

		_, err = nn.OneHot([]int{3}, 3)
		So(errors.Is(err, nn.ErrShape), ShouldBeTrue)
		_, err = nn.OneHot(nil, 3)
		So(errors.Is(err, nn.ErrNoData), ShouldBeTrue)
	})
}
