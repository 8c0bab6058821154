// Package pipeline builds the fitted prediction context: category codes,
// imputer, scaler and classifier, fitted once over a loaded match table.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/okian/matchcast/internal/domain/features"
	"github.com/okian/matchcast/internal/domain/model"
	"github.com/okian/matchcast/internal/domain/nn"
	"github.com/okian/matchcast/internal/domain/preprocess"
	"github.com/okian/matchcast/pkg/logger"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrEmptyDataset is returned when there is nothing to fit on.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrEmptyTrainingSet is returned when the split leaves no training rows.
	ErrEmptyTrainingSet = errors.New("empty training set")
)

// Classifier maps a scaled feature vector to outcome probabilities.
type Classifier interface {
	Predict(x []float64) ([]float64, error)
}

// Fitted is the immutable prediction context. It is safe for concurrent use.
type Fitted struct {
	id       string
	matches  []model.Match
	deriver  *features.Deriver
	imputer  *preprocess.Imputer
	scaler   *preprocess.Scaler
	model    Classifier
	history  nn.History
	train    int
	test     int
	duration time.Duration
}

// New assembles a Fitted from already fitted parts.
func New(matches []model.Match, deriver *features.Deriver, imputer *preprocess.Imputer,
	scaler *preprocess.Scaler, clf Classifier,
) *Fitted {
	return &Fitted{
		id:      uuid.NewString(),
		matches: append([]model.Match(nil), matches...),
		deriver: deriver,
		imputer: imputer,
		scaler:  scaler,
		model:   clf,
	}
}

// ID identifies this fit; a new process start yields a new id.
func (f *Fitted) ID() string { return f.id }

// Matches returns the match table. Callers must not modify it.
func (f *Fitted) Matches() []model.Match { return f.matches }

// Deriver returns the category-code deriver.
func (f *Fitted) Deriver() *features.Deriver { return f.deriver }

// Imputer returns the fitted imputer.
func (f *Fitted) Imputer() *preprocess.Imputer { return f.imputer }

// Scaler returns the fitted scaler.
func (f *Fitted) Scaler() *preprocess.Scaler { return f.scaler }

// Classifier returns the trained model.
func (f *Fitted) Classifier() Classifier { return f.model }

// History returns per-epoch training statistics.
func (f *Fitted) History() nn.History { return f.history }

// SplitSizes returns the number of training and held-out rows.
func (f *Fitted) SplitSizes() (train, test int) { return f.train, f.test }

// Duration is the wall time Fit took.
func (f *Fitted) Duration() time.Duration { return f.duration }

// Teams lists the distinct teams in the table, sorted.
func (f *Fitted) Teams() []string {
	seen := make(map[string]struct{})
	for _, m := range f.matches {
		seen[m.Team] = struct{}{}
	}
	teams := make([]string, 0, len(seen))
	for t := range seen {
		teams = append(teams, t)
	}
	sort.Strings(teams)
	return teams
}

// Features derives, imputes and scales one match with the fitted parameters.
func (f *Fitted) Features(m model.Match) ([]float64, error) {
	row, err := f.imputer.TransformRow(f.deriver.Derive(m))
	if err != nil {
		return nil, err
	}
	return f.scaler.TransformRow(row)
}

// Split shuffles n indexes with seed and holds out ceil(testSize*n) of them.
func Split(n int, testSize float64, seed int64) (train, test []int) {
	perm := rand.New(rand.NewSource(seed)).Perm(n) //nolint:gosec // reproducible split
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest > n {
		nTest = n
	}
	return perm[nTest:], perm[:nTest]
}

// Fit runs the startup pipeline: category codes over the whole table, split,
// imputer and scaler fitted on the training rows, then classifier training
// with per-epoch validation on the held-out rows.
func Fit(ctx context.Context, matches []model.Match, opts ...Option) (*Fitted, error) {
	s := settings{testSize: 0.3, seed: 42, network: nn.DefaultConfig()}
	for _, opt := range opts {
		opt(&s)
	}
	if len(matches) == 0 {
		return nil, ErrEmptyDataset
	}
	start := time.Now()

	deriver := features.NewDeriver(matches)
	trainIdx, testIdx := Split(len(matches), s.testSize, s.seed)
	if len(trainIdx) == 0 {
		return nil, fmt.Errorf("%w: %d rows with test size %.2f", ErrEmptyTrainingSet, len(matches), s.testSize)
	}

	trainX, trainY, err := design(deriver, matches, trainIdx)
	if err != nil {
		return nil, err
	}
	imputer, err := preprocess.FitImputer(trainX)
	if err != nil {
		return nil, fmt.Errorf("fit imputer: %w", err)
	}
	trainImputed, err := imputer.Transform(trainX)
	if err != nil {
		return nil, err
	}
	scaler, err := preprocess.FitScaler(trainImputed)
	if err != nil {
		return nil, fmt.Errorf("fit scaler: %w", err)
	}
	trainScaled, err := scaler.Transform(trainImputed)
	if err != nil {
		return nil, err
	}

	var valX, valY mat.Matrix
	if len(testIdx) > 0 {
		testX, testY, err := design(deriver, matches, testIdx)
		if err != nil {
			return nil, err
		}
		testImputed, err := imputer.Transform(testX)
		if err != nil {
			return nil, err
		}
		testScaled, err := scaler.Transform(testImputed)
		if err != nil {
			return nil, err
		}
		valX, valY = testScaled, testY
	}

	cfg := s.network
	cfg.Seed = s.seed
	net, err := nn.New(features.Width, model.NumOutcomes, cfg)
	if err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.Info(ctx, "training classifier",
			logger.Int("train_rows", len(trainIdx)),
			logger.Int("test_rows", len(testIdx)),
			logger.Int("epochs", cfg.Epochs),
			logger.Int("batch_size", cfg.BatchSize),
		)
	}
	history, err := net.Train(ctx, trainScaled, trainY, valX, valY, nn.WithEpochHook(s.onEpoch))
	if err != nil {
		return nil, fmt.Errorf("train classifier: %w", err)
	}

	fitted := New(matches, deriver, imputer, scaler, net)
	fitted.history = history
	fitted.train, fitted.test = len(trainIdx), len(testIdx)
	fitted.duration = time.Since(start)

	if s.logger != nil {
		last := history.Last()
		s.logger.Info(ctx, "classifier trained",
			logger.String("model_id", fitted.id),
			logger.Float64("loss", last.Loss),
			logger.Float64("accuracy", last.Accuracy),
			logger.Float64("val_loss", last.ValLoss),
			logger.Float64("val_accuracy", last.ValAccuracy),
			logger.Duration("duration", fitted.duration),
		)
	}
	return fitted, nil
}

// design builds the raw feature matrix and one-hot targets for idx.
func design(d *features.Deriver, matches []model.Match, idx []int) (*mat.Dense, *mat.Dense, error) {
	subset := make([]model.Match, len(idx))
	classes := make([]int, len(idx))
	for i, k := range idx {
		subset[i] = matches[k]
		classes[i] = matches[k].Result.Class()
	}
	x, err := d.Matrix(subset)
	if err != nil {
		return nil, nil, err
	}
	y, err := nn.OneHot(classes, model.NumOutcomes)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}
