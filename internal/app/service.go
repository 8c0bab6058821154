// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/matchcast/internal/adapters/cache"
	"github.com/okian/matchcast/internal/adapters/mq/queue"
	"github.com/okian/matchcast/internal/adapters/mq/worker"
	"github.com/okian/matchcast/internal/domain/features"
	"github.com/okian/matchcast/internal/domain/model"
	"github.com/okian/matchcast/internal/domain/nn"
	"github.com/okian/matchcast/internal/domain/pipeline"
	"github.com/okian/matchcast/internal/domain/predictor"
	"github.com/okian/matchcast/internal/domain/types"
	"github.com/okian/matchcast/pkg/logger"
	"github.com/okian/matchcast/pkg/metrics"
)

const warmupTimeout = time.Minute

// ErrNotStarted is returned when predictions are requested before Start.
var ErrNotStarted = errors.New("service not started")

// Loader supplies the raw match records.
type Loader interface {
	Load(ctx context.Context) ([]model.Record, error)
}

// Service fits the prediction context once at Start and answers reads from it.
type Service struct {
	mu sync.RWMutex

	loader        Loader
	datePolicy    features.DatePolicy
	testSize      float64
	seed          int64
	network       nn.Config
	cache         cache.Cache
	warmupWorkers int

	fitted *pipeline.Fitted
	load   features.LoadReport

	started bool
	logger  logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		datePolicy: features.DateCoerce,
		testSize:   0.3,
		seed:       42,
		network:    nn.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the dataset, fits the pipeline and warms the cache. It returns
// once the service can answer predictions.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	if s.fitted == nil {
		fitted, err := s.fit(ctx)
		if err != nil {
			metrics.RecordErrorByComponent("service", "startup")
			return err
		}
		s.fitted = fitted
	}

	metrics.UpdateModelInfo(s.fitted.ID())
	metrics.UpdateFeatureColumns(features.Width)
	metrics.UpdateTrainingDuration(s.fitted.Duration().Seconds())

	if s.cache != nil && s.warmupWorkers > 0 {
		s.warmup(ctx, s.fitted)
	}

	s.started = true
	train, test := s.fitted.SplitSizes()
	s.logger.Info(ctx, "prediction service started",
		logger.String("model_id", s.fitted.ID()),
		logger.Int("matches", len(s.fitted.Matches())),
		logger.Int("train_rows", train),
		logger.Int("test_rows", test),
		logger.Bool("cache", s.cache != nil),
	)
	return nil
}

func (s *Service) fit(ctx context.Context) (*pipeline.Fitted, error) {
	if s.loader == nil {
		return nil, errors.New("no dataset configured")
	}
	records, err := s.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}

	matches, report := features.ParseRecords(records, s.datePolicy)
	s.load = report
	for _, rej := range report.Rejections {
		metrics.RecordRowRejected(rej.Reason)
		s.logger.Warn(ctx, "row rejected",
			logger.Int("line", rej.Line),
			logger.String("reason", rej.Reason),
			logger.Error(rej.Err),
		)
	}
	metrics.UpdateDatasetRows(report.Accepted)
	s.logger.Info(ctx, "dataset loaded",
		logger.Int("records", len(records)),
		logger.Int("accepted", report.Accepted),
		logger.Int("rejected", len(report.Rejections)),
		logger.Int("coerced_dates", report.CoercedDates),
	)

	fitted, err := pipeline.Fit(ctx, matches,
		pipeline.WithTestSize(s.testSize),
		pipeline.WithSeed(s.seed),
		pipeline.WithNetworkConfig(s.network),
		pipeline.WithLogger(s.logger),
		pipeline.WithEpochHook(func(e nn.EpochStats) {
			metrics.RecordTrainingEpoch()
			metrics.UpdateEpochLoss("train", e.Loss)
			metrics.UpdateEpochAccuracy("train", e.Accuracy)
			metrics.UpdateEpochLoss("validation", e.ValLoss)
			metrics.UpdateEpochAccuracy("validation", e.ValAccuracy)
			s.logger.Debug(ctx, "epoch",
				logger.Int("epoch", e.Epoch),
				logger.Float64("loss", e.Loss),
				logger.Float64("accuracy", e.Accuracy),
				logger.Float64("val_loss", e.ValLoss),
				logger.Float64("val_accuracy", e.ValAccuracy),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("fit pipeline: %w", err)
	}
	return fitted, nil
}

// warmup precomputes every team's report into the cache. Failures are
// logged and leave the cache cold for that team.
func (s *Service) warmup(ctx context.Context, fitted *pipeline.Fitted) {
	start := time.Now()
	teams := fitted.Teams()
	q := queue.NewInMemoryQueue(queue.WithCapacity(len(teams)))

	pool := worker.NewPool(min(s.warmupWorkers, len(teams)), q, worker.HandlerFunc(
		func(ctx context.Context, job queue.Job) error {
			report, err := predictor.Predict(ctx, fitted, job.Team)
			if err != nil {
				return err
			}
			return s.cache.Set(ctx, job.ModelID, job.Team, report)
		}))

	ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()
	pool.Start(ctx)
	for _, team := range teams {
		q.Enqueue(ctx, queue.Job{ModelID: fitted.ID(), Team: team})
	}
	_ = q.Close()

	if err := pool.Wait(ctx); err != nil {
		s.logger.Warn(ctx, "cache warm-up incomplete", logger.Error(err))
		return
	}
	processed, failed := pool.Counts()
	s.logger.Info(ctx, "cache warmed",
		logger.Int("teams", len(teams)),
		logger.Int("processed", int(processed)),
		logger.Int("failed", int(failed)),
		logger.Duration("duration", time.Since(start)),
	)
}

// Stop releases the cache. The fitted context is kept so a restarted
// service serves the same model.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Warn(context.Background(), "closing cache", logger.Error(err))
		}
		s.cache = nil
	}
	s.started = false
	s.logger.Info(context.Background(), "prediction service stopped")
}

func (s *Service) current() (*pipeline.Fitted, cache.Cache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.fitted, s.cache, nil
}

// Predict returns the accuracy and per-match predictions for team.
func (s *Service) Predict(ctx context.Context, team string) (types.Report, error) {
	start := time.Now()
	if strings.TrimSpace(team) == "" {
		metrics.RecordPrediction("bad_request")
		return types.Report{}, predictor.ErrTeamRequired
	}
	fitted, c, err := s.current()
	if err != nil {
		metrics.RecordPrediction("error")
		return types.Report{}, err
	}

	if c != nil {
		report, err := c.Get(ctx, fitted.ID(), team)
		switch {
		case err == nil:
			metrics.RecordCacheHit()
			metrics.RecordPrediction("ok")
			metrics.RecordPredictionLatency(float64(time.Since(start).Milliseconds()))
			return report, nil
		case errors.Is(err, cache.ErrMiss):
			metrics.RecordCacheMiss()
		default:
			metrics.RecordCacheError()
			s.logger.Warn(ctx, "cache read failed", logger.String("team", team), logger.Error(err))
		}
	}

	report, err := predictor.Predict(ctx, fitted, team)
	if err != nil {
		if errors.Is(err, predictor.ErrTeamNotFound) {
			metrics.RecordPrediction("not_found")
		} else {
			metrics.RecordPrediction("error")
			metrics.RecordErrorByComponent("predictor", "predict")
		}
		return types.Report{}, err
	}

	metrics.RecordPrediction("ok")
	metrics.RecordPredictedMatches(len(report.Results))
	metrics.RecordPredictionAccuracy(report.Accuracy)
	metrics.RecordPredictionLatency(float64(time.Since(start).Milliseconds()))

	if c != nil {
		if err := c.Set(ctx, fitted.ID(), team, report); err != nil {
			metrics.RecordCacheError()
			s.logger.Warn(ctx, "cache write failed", logger.String("team", team), logger.Error(err))
		}
	}
	return report, nil
}

// Teams lists the teams that can be predicted.
func (s *Service) Teams(_ context.Context) ([]string, error) {
	fitted, _, err := s.current()
	if err != nil {
		return nil, err
	}
	return fitted.Teams(), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started": s.started,
		"cache":   s.cache != nil,
	}
	if s.fitted == nil {
		return stats
	}

	train, test := s.fitted.SplitSizes()
	last := s.fitted.History().Last()
	stats["model_id"] = s.fitted.ID()
	stats["matches"] = len(s.fitted.Matches())
	stats["teams"] = len(s.fitted.Teams())
	stats["rejected_rows"] = len(s.load.Rejections)
	stats["rejected_by_reason"] = s.load.RejectedBy()
	stats["coerced_dates"] = s.load.CoercedDates
	stats["train_rows"] = train
	stats["test_rows"] = test
	stats["epochs"] = len(s.fitted.History())
	stats["loss"] = last.Loss
	stats["accuracy"] = last.Accuracy
	stats["val_loss"] = last.ValLoss
	stats["val_accuracy"] = last.ValAccuracy
	stats["training_seconds"] = s.fitted.Duration().Seconds()
	return stats
}
