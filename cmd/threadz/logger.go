package main

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zoobzio/threadz"
)

func initLogger(app string, level zerolog.Level, out io.Writer) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
	logger := zerolog.New(output).Level(level).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}

// observe logs every lifecycle event of th.
func observe(th *threadz.Thread, logger zerolog.Logger) {
	event := func(msg string, level zerolog.Level) func(context.Context, threadz.Event) error {
		return func(_ context.Context, e threadz.Event) error {
			ev := logger.WithLevel(level).
				Str("thread", e.Name).
				Stringer("tid", e.ID).
				Str("run", e.RunID)
			if e.Callable != "" {
				ev = ev.Str("callable", e.Callable)
			}
			if e.Duration > 0 {
				ev = ev.Dur("duration", e.Duration)
			}
			if e.Err != nil {
				ev = ev.Err(e.Err)
			}
			ev.Msg(msg)
			return nil
		}
	}

	// Registration only fails once the hooks are closed.
	_ = th.OnStarted(event("thread started", zerolog.DebugLevel))
	_ = th.OnFinished(event("thread finished", zerolog.DebugLevel))
	_ = th.OnDetached(event("thread detached", zerolog.InfoLevel))
	_ = th.OnCanceled(event("thread cancel requested", zerolog.InfoLevel))
}
