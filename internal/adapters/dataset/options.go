package dataset

import "github.com/okian/matchcast/pkg/logger"

// Option applies a configuration option to the Loader.
type Option func(*Loader)

// WithDelimiter sets the field delimiter. Defaults to ','.
func WithDelimiter(r rune) Option {
	return func(l *Loader) {
		if r != 0 {
			l.delimiter = r
		}
	}
}

// WithLogger sets the logger used while loading.
func WithLogger(log logger.Logger) Option {
	return func(l *Loader) {
		if log != nil {
			l.logger = log
		}
	}
}
