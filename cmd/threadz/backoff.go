package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/threadz"
)

// starter retries thread creation with exponential backoff. Only
// CreationFailed is retried; the handle is still unstarted after it, so
// the next attempt starts from a clean state.
type starter struct {
	clock       clockz.Clock
	log         zerolog.Logger
	attr        func() *threadz.Attr
	baseDelay   time.Duration
	maxAttempts int
}

func newStarter(maxAttempts int, baseDelay time.Duration, log zerolog.Logger) *starter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &starter{
		clock:       clockz.RealClock,
		log:         log,
		baseDelay:   baseDelay,
		maxAttempts: maxAttempts,
	}
}

// WithClock sets a custom clock for testing.
func (s *starter) WithClock(clock clockz.Clock) *starter {
	s.clock = clock
	return s
}

// WithAttr sets the attributes applied before every attempt.
func (s *starter) WithAttr(attr func() *threadz.Attr) *starter {
	s.attr = attr
	return s
}

// Start starts fn on th and returns the number of attempts it took.
func (s *starter) Start(ctx context.Context, th *threadz.Thread, fn any, args ...any) (int, error) {
	delay := s.baseDelay
	var lastErr error

	for i := 0; i < s.maxAttempts; i++ {
		if s.attr != nil {
			th.SetAttr(s.attr())
		}
		err := th.Start(fn, args...)
		if err == nil {
			return i + 1, nil
		}
		if !errors.Is(err, threadz.ErrCreationFailed) {
			return i + 1, err
		}
		lastErr = err

		if i < s.maxAttempts-1 {
			s.log.Warn().
				Err(err).
				Int("attempt", i+1).
				Int("max_attempts", s.maxAttempts).
				Dur("delay", delay).
				Msg("thread creation failed, backing off")

			select {
			case <-s.clock.After(delay):
				delay *= 2
			case <-ctx.Done():
				return i + 1, ctx.Err()
			}
		}
	}
	return s.maxAttempts, lastErr
}
