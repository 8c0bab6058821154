package service

import (
	"github.com/okian/matchcast/internal/adapters/cache"
	"github.com/okian/matchcast/internal/adapters/dataset"
	"github.com/okian/matchcast/internal/domain/features"
	"github.com/okian/matchcast/internal/domain/nn"
	"github.com/okian/matchcast/internal/domain/pipeline"
	"github.com/okian/matchcast/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithDataPath reads the match table from a CSV file.
func WithDataPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.loader = dataset.NewLoader(path)
		}
	}
}

// WithLoader sets the source of raw match records.
func WithLoader(l Loader) Option {
	return func(s *Service) {
		if l != nil {
			s.loader = l
		}
	}
}

// WithDatePolicy sets how rows with an unparseable date are handled.
func WithDatePolicy(p features.DatePolicy) Option {
	return func(s *Service) {
		if p != "" {
			s.datePolicy = p
		}
	}
}

// WithTestSize sets the held-out fraction of the startup fit.
func WithTestSize(fraction float64) Option {
	return func(s *Service) {
		if fraction > 0 && fraction < 1 {
			s.testSize = fraction
		}
	}
}

// WithSeed sets the seed of the split and the classifier.
func WithSeed(seed int64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithNetworkConfig sets the classifier topology and training schedule.
func WithNetworkConfig(cfg nn.Config) Option {
	return func(s *Service) {
		s.network = cfg
	}
}

// WithFitted serves an already fitted context instead of training at Start.
func WithFitted(f *pipeline.Fitted) Option {
	return func(s *Service) {
		if f != nil {
			s.fitted = f
		}
	}
}

// WithCache enables the prediction cache.
func WithCache(c cache.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithWarmupWorkers sets the size of the cache warm-up pool. Zero disables it.
func WithWarmupWorkers(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.warmupWorkers = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
