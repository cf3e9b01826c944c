package threadz

import (
	"context"
	"errors"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// execution is everything the spawned thread needs. It is built by the
// launching goroutine and owned by the thread from then on.
type execution struct {
	run     *run
	inv     Invocation
	clock   clockz.Clock
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[Event]
	name    string
}

// ErrGoexit is the run's result when the callable ends its thread with
// runtime.Goexit instead of returning, as t.FailNow does in a test.
var ErrGoexit = errors.New("callable exited via runtime.Goexit")

// execute runs on the spawned thread. Every write to shared state happens
// before done is closed, so a joiner sees the complete result.
func (e *execution) execute(ctx context.Context, id NativeID) {
	defer close(e.run.done)
	defer e.run.cancel()

	e.metrics.Gauge(ThreadRunning).Set(1)
	start := e.clock.Now()

	spanCtx, span := e.tracer.StartSpan(ctx, ThreadRunSpan)
	span.SetTag(ThreadTagID, id.String())
	span.SetTag(ThreadTagRunID, e.run.id)
	span.SetTag(ThreadTagName, e.name)
	span.SetTag(ThreadTagCallable, e.inv.Name())

	// Overwritten when invoke returns; Goexit skips the assignment but
	// still runs deferred calls.
	err := ErrGoexit
	defer func() {
		e.finish(ctx, id, span, start, err)
	}()
	err = invoke(spanCtx, e.inv)
}

// finish records the result of a run that has ended, normally or not.
func (e *execution) finish(ctx context.Context, id NativeID, span *tracez.ActiveSpan, start time.Time, err error) {
	elapsed := e.clock.Since(start)

	var panicErr *PanicError
	if errors.As(err, &panicErr) {
		e.metrics.Counter(ThreadPanicsTotal).Inc()
	}
	if ctx.Err() != nil {
		span.SetTag(ThreadTagCanceled, "true")
	}
	if err == nil {
		span.SetTag(ThreadTagSuccess, "true")
	} else {
		span.SetTag(ThreadTagSuccess, "false")
		span.SetTag(ThreadTagError, err.Error())
	}
	span.Finish()

	e.metrics.Gauge(ThreadRunDurationMs).Set(float64(elapsed.Milliseconds()))
	e.metrics.Gauge(ThreadRunning).Set(0)

	_ = e.hooks.Emit(context.Background(), ThreadEventFinished, Event{ //nolint:errcheck
		Name:      e.name,
		Callable:  e.inv.Name(),
		RunID:     e.run.id,
		ID:        id,
		Err:       err,
		Duration:  elapsed,
		Timestamp: e.clock.Now(),
	})

	e.run.err = err
}

// invoke calls inv, turning a panic into a *PanicError.
func invoke(ctx context.Context, inv Invocation) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = newPanicError(v)
		}
	}()
	return inv.Invoke(ctx)
}
