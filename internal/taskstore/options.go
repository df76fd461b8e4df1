package taskstore

import (
	"time"

	"github.com/google/uuid"
)

// Clock supplies timestamps for new and mutated tasks.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

// Now calls f.
func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithIDGenerator replaces the random UUID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		s.newID = gen
	}
}

func defaultIDGenerator() string {
	return uuid.NewString()
}
