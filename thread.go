package threadz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for Thread.
const (
	// Metrics.
	ThreadStartedTotal        = metricz.Key("thread.started.total")
	ThreadJoinedTotal         = metricz.Key("thread.joined.total")
	ThreadDetachedTotal       = metricz.Key("thread.detached.total")
	ThreadCanceledTotal       = metricz.Key("thread.canceled.total")
	ThreadCreateFailuresTotal = metricz.Key("thread.create.failures.total")
	ThreadPanicsTotal         = metricz.Key("thread.panics.total")
	ThreadRunning             = metricz.Key("thread.running")
	ThreadRunDurationMs       = metricz.Key("thread.run.duration.ms")

	// Spans.
	ThreadRunSpan = tracez.Key("thread.run")

	// Tags.
	ThreadTagID       = tracez.Tag("thread.id")
	ThreadTagRunID    = tracez.Tag("thread.run_id")
	ThreadTagName     = tracez.Tag("thread.name")
	ThreadTagCallable = tracez.Tag("thread.callable")
	ThreadTagSuccess  = tracez.Tag("thread.success")
	ThreadTagError    = tracez.Tag("thread.error")
	ThreadTagCanceled = tracez.Tag("thread.canceled")

	// Hook event keys.
	ThreadEventStarted  = hookz.Key("thread.started")
	ThreadEventFinished = hookz.Key("thread.finished")
	ThreadEventDetached = hookz.Key("thread.detached")
	ThreadEventCanceled = hookz.Key("thread.canceled")
)

// Event describes a thread lifecycle transition. It is emitted via hookz
// when a thread starts, finishes, is detached, or is asked to cancel.
type Event struct {
	Timestamp time.Time     // When the event occurred
	Err       error         // Callable result (finished only)
	Name      string        // Thread name
	Callable  string        // Name of the bound invocation
	RunID     string        // Unique per start; native ids are recycled
	Duration  time.Duration // Run time (finished only)
	ID        NativeID      // Native thread id
}

// Thread is a handle to a single native thread.
//
// A zero-argument [New] handle owns no thread. [Thread.Start] binds a
// callable and spawns a thread to run it; [Thread.Join] waits for it and
// returns the handle to its unstarted state so it can be started again.
// [Thread.Detach] hands the thread over to the runtime for good, and
// [Thread.Cancel] asks it to stop.
//
//	th := threadz.New(threadz.WithName("indexer"))
//	if err := th.Start(rebuild, threadz.Ref(&index), shard); err != nil {
//	    return err
//	}
//	defer th.Close()
//
// All methods are safe for concurrent use. The spawned thread never calls
// back into its handle; it only runs the bound invocation.
//
// # Observability
//
// Metrics:
//   - thread.started.total: Counter of successful starts
//   - thread.joined.total: Counter of successful joins
//   - thread.detached.total: Counter of successful detaches
//   - thread.canceled.total: Counter of accepted cancel requests
//   - thread.create.failures.total: Counter of CreationFailed starts
//   - thread.panics.total: Counter of callables that panicked
//   - thread.running: Gauge, 1 while the callable runs
//   - thread.run.duration.ms: Gauge of the last run's duration
//
// Traces:
//   - thread.run: One span per run, recorded on the spawned thread
//
// Events (via hooks):
//   - thread.started: Fired after a successful start
//   - thread.finished: Fired on the spawned thread when the callable returns
//   - thread.detached: Fired after a successful detach
//   - thread.canceled: Fired after a cancel request is accepted
type Thread struct {
	platform Platform
	clock    clockz.Clock
	metrics  *metricz.Registry
	tracer   *tracez.Tracer
	hooks    *hookz.Hooks[Event]
	attr     *Attr
	run      *run
	lastErr  error
	name     string
	id       NativeID
	mu       sync.Mutex
	closer   sync.Once
	detached bool
	joining  bool
}

// run is the state shared between a handle and the thread it spawned. The
// thread writes err and then closes done; readers wait on done first.
type run struct {
	err    error
	done   chan struct{}
	cancel context.CancelFunc
	id     string
}

// Option configures a Thread.
type Option func(*Thread)

// WithName names the thread for traces and events.
func WithName(name string) Option {
	return func(t *Thread) {
		t.name = name
	}
}

// WithAttr sets the creation attributes used by the first start.
func WithAttr(attr *Attr) Option {
	return func(t *Thread) {
		t.attr = attr
	}
}

// WithClock sets a custom clock for testing.
func WithClock(clock clockz.Clock) Option {
	return func(t *Thread) {
		t.clock = clock
	}
}

// WithPlatform replaces the native threading primitive, mainly so tests
// can make creation, cancellation or detaching fail on demand.
func WithPlatform(p Platform) Option {
	return func(t *Thread) {
		t.platform = p
	}
}

// New returns a handle that owns no thread.
func New(opts ...Option) *Thread {
	metrics := metricz.New()
	metrics.Counter(ThreadStartedTotal)
	metrics.Counter(ThreadJoinedTotal)
	metrics.Counter(ThreadDetachedTotal)
	metrics.Counter(ThreadCanceledTotal)
	metrics.Counter(ThreadCreateFailuresTotal)
	metrics.Counter(ThreadPanicsTotal)
	metrics.Gauge(ThreadRunning)
	metrics.Gauge(ThreadRunDurationMs)

	t := &Thread{
		platform: NativePlatform,
		clock:    clockz.RealClock,
		metrics:  metrics,
		tracer:   tracez.New(),
		hooks:    hookz.New[Event](),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Spawn creates a handle and starts fn on it, see [Thread.Start].
// On failure the handle is released and nil is returned with the error.
func Spawn(fn any, args ...any) (*Thread, error) {
	t := New()
	if err := t.Start(fn, args...); err != nil {
		t.Close() //nolint:errcheck // nothing is running
		return nil, err
	}
	return t, nil
}

// SpawnMethod creates a handle and starts the named method of recv on it,
// see [Thread.StartMethod].
func SpawnMethod(recv any, method string, args ...any) (*Thread, error) {
	t := New()
	if err := t.StartMethod(recv, method, args...); err != nil {
		t.Close() //nolint:errcheck // nothing is running
		return nil, err
	}
	return t, nil
}

// Start binds fn to args (see [Bind]) and runs it on a new thread.
//
// It fails with AlreadyStarted when the handle still owns a thread, with
// InvalidCallable when fn and args do not fit, and with CreationFailed when
// the platform cannot create the thread. After a CreationFailed the handle
// is still unstarted and Start may be called again.
func (t *Thread) Start(fn any, args ...any) error {
	inv, err := Bind(fn, args...)
	if err != nil {
		return t.stamp(err)
	}
	return t.Launch(inv)
}

// StartMethod binds the named method of recv to args (see [BindMethod]) and
// runs it on a new thread. Failure semantics match Start.
func (t *Thread) StartMethod(recv any, method string, args ...any) error {
	inv, err := BindMethod(recv, method, args...)
	if err != nil {
		return t.stamp(err)
	}
	return t.Launch(inv)
}

// Launch runs an already bound invocation on a new thread. Failure
// semantics match Start.
func (t *Thread) Launch(inv Invocation) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.id.IsZero() {
		return t.failLocked(OpStart, AlreadyStarted, nil)
	}
	if nilInvocation(inv) {
		return t.failLocked(OpStart, InvalidCallable, errors.New("nil invocation"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		done:   make(chan struct{}),
		cancel: cancel,
		id:     uuid.NewString(),
	}
	name := t.name
	if t.attr != nil && t.attr.Name != "" {
		name = t.attr.Name
	}
	exec := &execution{
		run:     r,
		inv:     inv,
		name:    name,
		clock:   t.getClock(),
		metrics: t.metrics,
		tracer:  t.tracer,
		hooks:   t.hooks,
	}

	id, err := t.platform.Spawn(t.attr, func(id NativeID) {
		exec.execute(ctx, id)
	})
	if err != nil {
		cancel()
		t.metrics.Counter(ThreadCreateFailuresTotal).Inc()
		return t.failLocked(OpStart, CreationFailed, err)
	}

	t.id = id
	t.run = r
	t.detached = false
	t.attr = nil
	t.metrics.Counter(ThreadStartedTotal).Inc()

	_ = t.hooks.Emit(context.Background(), ThreadEventStarted, Event{ //nolint:errcheck
		Name:      name,
		Callable:  inv.Name(),
		RunID:     r.id,
		ID:        id,
		Timestamp: t.getClock().Now(),
	})
	return nil
}

// Join blocks until the thread's callable returns, then resets the handle
// to unstarted. It fails with NotJoinable when the handle owns no live,
// non-detached thread, including when another Join is already waiting.
//
// The callable's own result is available from [Thread.Err] afterwards.
func (t *Thread) Join() error {
	t.mu.Lock()
	if !t.joinableLocked() || t.joining {
		err := t.failLocked(OpJoin, NotJoinable, nil)
		t.mu.Unlock()
		return err
	}
	r := t.run
	t.joining = true
	t.mu.Unlock()

	<-r.done

	t.mu.Lock()
	t.joining = false
	t.id = 0
	t.run = nil
	t.lastErr = r.err
	t.mu.Unlock()

	t.metrics.Counter(ThreadJoinedTotal).Inc()
	return nil
}

// Joinable reports whether the handle owns a live, non-detached thread.
func (t *Thread) Joinable() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.joinableLocked()
}

func (t *Thread) joinableLocked() bool {
	return !t.id.IsZero() && !t.detached
}

// Detach gives up join responsibility. The thread keeps running and the
// runtime reclaims it when the callable returns. The handle is left
// detached for good: Joinable reports false, ID still reports the thread,
// and Start fails with AlreadyStarted.
//
// It fails with NotDetachable when the handle owns no live, non-detached
// thread or a Join is waiting on it, and with DetachFailed when the
// platform rejects the request, leaving the thread joinable.
func (t *Thread) Detach() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.joinableLocked() || t.joining {
		return t.failLocked(OpDetach, NotDetachable, nil)
	}
	if err := t.platform.Detach(t.id); err != nil {
		return t.failLocked(OpDetach, DetachFailed, err)
	}

	t.detached = true
	t.metrics.Counter(ThreadDetachedTotal).Inc()

	_ = t.hooks.Emit(context.Background(), ThreadEventDetached, Event{ //nolint:errcheck
		Name:      t.name,
		RunID:     t.run.id,
		ID:        t.id,
		Timestamp: t.getClock().Now(),
	})
	return nil
}

// Cancel asks the thread to stop by canceling the context handed to its
// callable. It does not wait; a following Join observes the termination.
// Callables that never look at their context run to completion.
//
// It fails with NotCancelable when the handle owns no live, non-detached
// thread, and with CancelFailed when the platform rejects the request, in
// which case the thread is untouched and still joinable.
func (t *Thread) Cancel() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.joinableLocked() {
		return t.failLocked(OpCancel, NotCancelable, nil)
	}
	if err := t.platform.Cancel(t.id); err != nil {
		return t.failLocked(OpCancel, CancelFailed, err)
	}

	t.run.cancel()
	t.metrics.Counter(ThreadCanceledTotal).Inc()

	_ = t.hooks.Emit(context.Background(), ThreadEventCanceled, Event{ //nolint:errcheck
		Name:      t.name,
		RunID:     t.run.id,
		ID:        t.id,
		Timestamp: t.getClock().Now(),
	})
	return nil
}

// ID returns the native id of the thread the handle refers to, or zero.
// A detached handle keeps reporting its thread's id.
func (t *Thread) ID() NativeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// NativeHandle returns the same value as ID.
func (t *Thread) NativeHandle() NativeID {
	return t.ID()
}

// Name returns the handle's name.
func (t *Thread) Name() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.name
}

// SetAttr sets the creation attributes for the next successful start only.
// The handle keeps attr as given and never modifies it.
func (t *Thread) SetAttr(attr *Attr) *Thread {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attr = attr
	return t
}

// Err returns the result of the last joined run: the callable's returned
// error, a *PanicError if it panicked, or nil.
func (t *Thread) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Metrics returns the metrics registry for this thread.
func (t *Thread) Metrics() *metricz.Registry {
	return t.metrics
}

// Tracer returns the tracer for this thread.
func (t *Thread) Tracer() *tracez.Tracer {
	return t.tracer
}

// Close joins a live, non-detached thread, or waits for it to finish when
// another goroutine is already joining, and then shuts down the
// observability components. A detached thread is left running; while it
// runs, its metrics, tracer and hooks stay open and Close may be called
// again later to release them.
func (t *Thread) Close() error {
	var err error
	if t.Joinable() {
		if jerr := t.Join(); jerr != nil && !errors.Is(jerr, ErrNotJoinable) {
			err = jerr
		}
	}

	// A Join running on another goroutine still owns the run; wait for
	// the callable to return before shutting anything down.
	t.mu.Lock()
	r, detached := t.run, t.detached
	t.mu.Unlock()
	if r != nil {
		if detached {
			select {
			case <-r.done:
			default:
				return err
			}
		} else {
			<-r.done
		}
	}

	t.closer.Do(func() {
		if t.tracer != nil {
			t.tracer.Close()
		}
		t.hooks.Close()
	})
	return err
}

// OnStarted registers a handler for successful starts.
// The handler is called asynchronously.
func (t *Thread) OnStarted(handler func(context.Context, Event) error) error {
	_, err := t.hooks.Hook(ThreadEventStarted, handler)
	return err
}

// OnFinished registers a handler for runs that have returned. The event
// carries the callable's result and run duration.
func (t *Thread) OnFinished(handler func(context.Context, Event) error) error {
	_, err := t.hooks.Hook(ThreadEventFinished, handler)
	return err
}

// OnDetached registers a handler for successful detaches.
func (t *Thread) OnDetached(handler func(context.Context, Event) error) error {
	_, err := t.hooks.Hook(ThreadEventDetached, handler)
	return err
}

// OnCanceled registers a handler for accepted cancel requests.
func (t *Thread) OnCanceled(handler func(context.Context, Event) error) error {
	_, err := t.hooks.Hook(ThreadEventCanceled, handler)
	return err
}

func (t *Thread) getClock() clockz.Clock {
	if t.clock == nil {
		return clockz.RealClock
	}
	return t.clock
}

func (t *Thread) failLocked(op string, code Code, cause error) *Error {
	return &Error{
		Op:        op,
		Code:      code,
		Err:       cause,
		Name:      t.name,
		ID:        t.id,
		Timestamp: t.getClock().Now(),
	}
}

// stamp fills in handle details on a bind error.
func (t *Thread) stamp(err error) error {
	var te *Error
	if !errors.As(err, &te) {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	te.Name = t.name
	te.ID = t.id
	te.Timestamp = t.getClock().Now()
	return te
}
