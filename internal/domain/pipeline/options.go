package pipeline

import (
	"github.com/okian/matchcast/internal/domain/nn"
	"github.com/okian/matchcast/pkg/logger"
)

// Option applies a configuration option to Fit.
type Option func(*settings)

type settings struct {
	testSize float64
	seed     int64
	network  nn.Config
	onEpoch  func(nn.EpochStats)
	logger   logger.Logger
}

// WithTestSize sets the held-out fraction.
func WithTestSize(fraction float64) Option {
	return func(s *settings) {
		if fraction > 0 && fraction < 1 {
			s.testSize = fraction
		}
	}
}

// WithSeed sets the split seed.
func WithSeed(seed int64) Option {
	return func(s *settings) {
		s.seed = seed
	}
}

// WithNetworkConfig replaces the classifier topology and schedule.
func WithNetworkConfig(cfg nn.Config) Option {
	return func(s *settings) {
		s.network = cfg
	}
}

// WithEpochHook observes every training epoch.
func WithEpochHook(fn func(nn.EpochStats)) Option {
	return func(s *settings) {
		s.onEpoch = fn
	}
}

// WithLogger sets the logger used during fitting.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
