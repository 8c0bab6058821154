package cache

import "time"

type settings struct {
	ttl time.Duration
	now func() time.Time
}

func defaults() settings {
	return settings{ttl: DefaultTTL, now: time.Now}
}

// Option configures a cache.
type Option func(*settings)

// WithTTL sets how long a report stays cached. Non-positive values keep the default.
func WithTTL(ttl time.Duration) Option {
	return func(s *settings) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock overrides the time source of the in-memory cache.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}
