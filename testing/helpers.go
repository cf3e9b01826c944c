// Package testing provides test utilities and helpers for threadz-based applications.
//
// This package includes mock and chaos platforms, assertion helpers, and
// concurrency utilities that make it possible to drive a threadz.Thread
// through failure paths the operating system rarely produces on demand.
//
// Example usage:
//
//	func TestWorkerRetriesCreation(t *testing.T) {
//		platform := testing.NewMockPlatform(t).FailNextSpawn(errors.New("EAGAIN"))
//		th := threadz.New(threadz.WithPlatform(platform))
//
//		err := th.Start(work)
//		testing.AssertCode(t, err, threadz.CreationFailed)
//
//		if err := th.Start(work); err != nil {
//			t.Fatal(err)
//		}
//		testing.AssertSpawned(t, platform, 1)
//	}
package testing

import (
	"crypto/rand"
	"errors"
	"fmt"
	mathrand "math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/threadz"
)

// Platform operations recorded in call history.
const (
	OpSpawn  = "spawn"
	OpCancel = "cancel"
	OpDetach = "detach"
)

// MockPlatform provides a configurable implementation of threadz.Platform.
// It tracks calls, allows configuring failures and start delays, and
// provides assertion methods for testing thread lifecycles.
//
// Unless it wraps another platform, entries run on plain goroutines and
// ids are handed out sequentially starting at 1.
type MockPlatform struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	t           *testing.T
	wrapped     threadz.Platform
	spawnErr    error
	cancelErr   error
	detachErr   error
	spawnQueue  []error
	cancelQueue []error
	detachQueue []error
	delay       time.Duration
	nextID      uint64
	spawns      int64
	cancels     int64
	detaches    int64
	mu          sync.Mutex
	callHistory []PlatformCall
	maxHistory  int
}

// PlatformCall represents a single call to a mock platform.
type PlatformCall struct {
	Timestamp time.Time
	Err       error
	Op        string
	ID        threadz.NativeID
}

// NewMockPlatform creates a new mock platform for testing. When t is not
// nil, queued failures that were never consumed are logged at cleanup.
func NewMockPlatform(t *testing.T) *MockPlatform {
	m := &MockPlatform{
		t:          t,
		maxHistory: 100, // Keep last 100 calls by default
	}
	if t != nil {
		t.Cleanup(m.reportPending)
	}
	return m
}

func (m *MockPlatform) reportPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.spawnQueue) + len(m.cancelQueue) + len(m.detachQueue); n > 0 {
		m.t.Logf("mock platform: %d queued failures were never consumed", n)
	}
}

// Wrap delegates successful spawns to another platform, typically
// threadz.NativePlatform, so callables run on real OS threads while
// failures are still injected by the mock.
func (m *MockPlatform) Wrap(p threadz.Platform) *MockPlatform {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wrapped = p
	return m
}

// WithSpawnError makes every subsequent Spawn fail with err.
// Pass nil to restore normal behavior.
func (m *MockPlatform) WithSpawnError(err error) *MockPlatform {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spawnErr = err
	return m
}

// WithCancelError makes every subsequent Cancel fail with err.
func (m *MockPlatform) WithCancelError(err error) *MockPlatform {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelErr = err
	return m
}

// WithDetachError makes every subsequent Detach fail with err.
func (m *MockPlatform) WithDetachError(err error) *MockPlatform {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detachErr = err
	return m
}

// FailNextSpawn queues a one-shot Spawn failure. Queued failures are
// consumed in order before the persistent error is consulted.
func (m *MockPlatform) FailNextSpawn(err error) *MockPlatform {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.spawnQueue = append(m.spawnQueue, err)
	return m
}

// FailNextCancel queues a one-shot Cancel failure.
func (m *MockPlatform) FailNextCancel(err error) *MockPlatform {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelQueue = append(m.cancelQueue, err)
	return m
}

// FailNextDetach queues a one-shot Detach failure.
func (m *MockPlatform) FailNextDetach(err error) *MockPlatform {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detachQueue = append(m.detachQueue, err)
	return m
}

// WithDelay postpones the start of every spawned entry. Spawn itself still
// returns immediately, which is useful for testing races between a start
// and the calls that follow it.
func (m *MockPlatform) WithDelay(d time.Duration) *MockPlatform {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithHistorySize configures how many calls to keep in history.
// Set to 0 to disable history tracking.
func (m *MockPlatform) WithHistorySize(size int) *MockPlatform {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxHistory = size
	if size == 0 {
		m.callHistory = nil
	} else if len(m.callHistory) > size {
		m.callHistory = m.callHistory[len(m.callHistory)-size:]
	}
	return m
}

// Spawn implements threadz.Platform.
func (m *MockPlatform) Spawn(attr *threadz.Attr, entry func(threadz.NativeID)) (threadz.NativeID, error) {
	m.mu.Lock()
	err := next(&m.spawnQueue, m.spawnErr)
	wrapped, delay := m.wrapped, m.delay
	m.mu.Unlock()

	if err == nil {
		err = attr.Validate()
	}
	if err != nil {
		m.record(OpSpawn, 0, err)
		return 0, err
	}

	run := entry
	if delay > 0 {
		run = func(id threadz.NativeID) {
			time.Sleep(delay)
			entry(id)
		}
	}

	var id threadz.NativeID
	if wrapped != nil {
		id, err = wrapped.Spawn(attr, run)
		if err != nil {
			m.record(OpSpawn, 0, err)
			return 0, err
		}
	} else {
		id = threadz.NativeID(atomic.AddUint64(&m.nextID, 1))
		go run(id)
	}

	atomic.AddInt64(&m.spawns, 1)
	m.record(OpSpawn, id, nil)
	return id, nil
}

// Cancel implements threadz.Platform.
func (m *MockPlatform) Cancel(id threadz.NativeID) error {
	m.mu.Lock()
	err := next(&m.cancelQueue, m.cancelErr)
	wrapped := m.wrapped
	m.mu.Unlock()

	if err == nil && wrapped != nil {
		err = wrapped.Cancel(id)
	}
	if err == nil {
		atomic.AddInt64(&m.cancels, 1)
	}
	m.record(OpCancel, id, err)
	return err
}

// Detach implements threadz.Platform.
func (m *MockPlatform) Detach(id threadz.NativeID) error {
	m.mu.Lock()
	err := next(&m.detachQueue, m.detachErr)
	wrapped := m.wrapped
	m.mu.Unlock()

	if err == nil && wrapped != nil {
		err = wrapped.Detach(id)
	}
	if err == nil {
		atomic.AddInt64(&m.detaches, 1)
	}
	m.record(OpDetach, id, err)
	return err
}

// SpawnCount returns the number of successful spawns.
func (m *MockPlatform) SpawnCount() int {
	return int(atomic.LoadInt64(&m.spawns))
}

// CancelCount returns the number of successful cancels.
func (m *MockPlatform) CancelCount() int {
	return int(atomic.LoadInt64(&m.cancels))
}

// DetachCount returns the number of successful detaches.
func (m *MockPlatform) DetachCount() int {
	return int(atomic.LoadInt64(&m.detaches))
}

// CallHistory returns a copy of all recorded calls, failed ones included.
// Returns nil if history tracking is disabled.
func (m *MockPlatform) CallHistory() []PlatformCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.callHistory == nil {
		return nil
	}
	history := make([]PlatformCall, len(m.callHistory))
	copy(history, m.callHistory)
	return history
}

// Reset clears all call tracking and configured failures.
func (m *MockPlatform) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	atomic.StoreInt64(&m.spawns, 0)
	atomic.StoreInt64(&m.cancels, 0)
	atomic.StoreInt64(&m.detaches, 0)
	m.spawnErr, m.cancelErr, m.detachErr = nil, nil, nil
	m.spawnQueue, m.cancelQueue, m.detachQueue = nil, nil, nil
	m.callHistory = nil
}

func (m *MockPlatform) record(op string, id threadz.NativeID, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.maxHistory == 0 {
		return
	}
	m.callHistory = append(m.callHistory, PlatformCall{
		Op:        op,
		ID:        id,
		Err:       err,
		Timestamp: time.Now(),
	})
	if len(m.callHistory) > m.maxHistory {
		m.callHistory = m.callHistory[1:]
	}
}

// next pops the first queued error, falling back to the persistent one.
func next(queue *[]error, persistent error) error {
	if len(*queue) > 0 {
		err := (*queue)[0]
		*queue = (*queue)[1:]
		return err
	}
	return persistent
}

// Assertion Helpers

// AssertCode verifies that err is a *threadz.Error carrying code.
func AssertCode(t *testing.T, err error, code threadz.Code) {
	t.Helper()
	if err == nil {
		t.Errorf("expected %s error, got nil", code)
		return
	}
	got, ok := threadz.CodeOf(err)
	if !ok {
		t.Errorf("expected %s error, got untyped error %v", code, err)
		return
	}
	if got != code {
		t.Errorf("expected %s error, got %s (%v)", code, got, err)
	}
}

// AssertSpawned verifies that a mock platform spawned exactly n threads.
func AssertSpawned(t *testing.T, mock *MockPlatform, expected int) {
	t.Helper()
	actual := mock.SpawnCount()
	if actual != expected {
		t.Errorf("expected mock platform to spawn %d threads, but it spawned %d", expected, actual)
	}
}

// AssertNotSpawned verifies that a mock platform never spawned a thread.
func AssertNotSpawned(t *testing.T, mock *MockPlatform) {
	t.Helper()
	AssertSpawned(t, mock, 0)
}

// AssertState verifies a handle's joinability and whether it refers to a
// thread.
func AssertState(t *testing.T, th *threadz.Thread, joinable, hasID bool) {
	t.Helper()
	if th.Joinable() != joinable {
		t.Errorf("expected joinable=%v, got %v", joinable, th.Joinable())
	}
	if th.ID().IsZero() == hasID {
		t.Errorf("expected id present=%v, got id %s", hasID, th.ID())
	}
}

// ChaosPlatform introduces controlled failures and spawn latency for chaos
// testing. It wraps another platform and randomly fails lifecycle calls
// based on configured rates.
type ChaosPlatform struct { //nolint:govet // fieldalignment: Test helper struct optimized for functionality over memory efficiency
	wrapped       threadz.Platform
	spawnFailRate float64
	cancelRate    float64
	detachRate    float64
	latencyMin    time.Duration
	latencyMax    time.Duration
	rng           *mathrand.Rand
	mu            sync.Mutex
	totalCalls    int64
	spawnFailures int64
	cancelFails   int64
	detachFails   int64
}

// ChaosConfig holds configuration for chaos testing.
type ChaosConfig struct {
	SpawnFailureRate  float64       // Probability of failing Spawn (0.0 to 1.0)
	CancelFailureRate float64       // Probability of failing Cancel (0.0 to 1.0)
	DetachFailureRate float64       // Probability of failing Detach (0.0 to 1.0)
	LatencyMin        time.Duration // Minimum latency added to Spawn
	LatencyMax        time.Duration // Maximum latency added to Spawn
	Seed              int64         // Random seed for reproducible chaos (0 for random seed)
}

// Errors returned by a chaos platform.
var (
	ErrChaosSpawn  = errors.New("chaos platform induced spawn failure")
	ErrChaosCancel = errors.New("chaos platform induced cancel failure")
	ErrChaosDetach = errors.New("chaos platform induced detach failure")
)

// NewChaosPlatform creates a chaos platform that wraps another platform.
func NewChaosPlatform(wrapped threadz.Platform, config ChaosConfig) *ChaosPlatform {
	seed := config.Seed
	if seed == 0 {
		// Use crypto/rand for better randomness
		var seedBytes [8]byte
		if _, err := rand.Read(seedBytes[:]); err != nil {
			// Fallback to time-based seed if crypto/rand fails
			seed = time.Now().UnixNano()
		} else {
			seed = int64(seedBytes[0])<<56 | int64(seedBytes[1])<<48 | int64(seedBytes[2])<<40 | int64(seedBytes[3])<<32 |
				int64(seedBytes[4])<<24 | int64(seedBytes[5])<<16 | int64(seedBytes[6])<<8 | int64(seedBytes[7])
		}
	}

	return &ChaosPlatform{
		wrapped:       wrapped,
		spawnFailRate: config.SpawnFailureRate,
		cancelRate:    config.CancelFailureRate,
		detachRate:    config.DetachFailureRate,
		latencyMin:    config.LatencyMin,
		latencyMax:    config.LatencyMax,
		rng:           mathrand.New(mathrand.NewSource(seed)), //nolint:gosec // G404: Test utility uses weak RNG for deterministic chaos scenarios
	}
}

// Spawn implements threadz.Platform with chaos injection.
func (c *ChaosPlatform) Spawn(attr *threadz.Attr, entry func(threadz.NativeID)) (threadz.NativeID, error) {
	atomic.AddInt64(&c.totalCalls, 1)

	c.mu.Lock()
	var latency time.Duration
	if c.latencyMax > c.latencyMin {
		latency = c.latencyMin + time.Duration(c.rng.Int63n(int64(c.latencyMax-c.latencyMin)))
	} else if c.latencyMin > 0 {
		latency = c.latencyMin
	}
	fail := c.rng.Float64() < c.spawnFailRate
	c.mu.Unlock()

	if latency > 0 {
		time.Sleep(latency)
	}
	if fail {
		atomic.AddInt64(&c.spawnFailures, 1)
		return 0, ErrChaosSpawn
	}
	return c.wrapped.Spawn(attr, entry)
}

// Cancel implements threadz.Platform with chaos injection.
func (c *ChaosPlatform) Cancel(id threadz.NativeID) error {
	atomic.AddInt64(&c.totalCalls, 1)
	if c.roll(c.cancelRate) {
		atomic.AddInt64(&c.cancelFails, 1)
		return ErrChaosCancel
	}
	return c.wrapped.Cancel(id)
}

// Detach implements threadz.Platform with chaos injection.
func (c *ChaosPlatform) Detach(id threadz.NativeID) error {
	atomic.AddInt64(&c.totalCalls, 1)
	if c.roll(c.detachRate) {
		atomic.AddInt64(&c.detachFails, 1)
		return ErrChaosDetach
	}
	return c.wrapped.Detach(id)
}

func (c *ChaosPlatform) roll(rate float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rng.Float64() < rate
}

// Stats returns statistics about chaos injection.
func (c *ChaosPlatform) Stats() ChaosStats {
	return ChaosStats{
		TotalCalls:     atomic.LoadInt64(&c.totalCalls),
		SpawnFailures:  atomic.LoadInt64(&c.spawnFailures),
		CancelFailures: atomic.LoadInt64(&c.cancelFails),
		DetachFailures: atomic.LoadInt64(&c.detachFails),
	}
}

// ChaosStats holds statistics about chaos injection.
type ChaosStats struct {
	TotalCalls     int64
	SpawnFailures  int64
	CancelFailures int64
	DetachFailures int64
}

// FailureRate returns the observed share of calls that were failed.
func (s ChaosStats) FailureRate() float64 {
	if s.TotalCalls == 0 {
		return 0
	}
	return float64(s.SpawnFailures+s.CancelFailures+s.DetachFailures) / float64(s.TotalCalls)
}

// String returns a human-readable representation of the stats.
func (s ChaosStats) String() string {
	return fmt.Sprintf("ChaosStats{Total: %d, Spawn: %d, Cancel: %d, Detach: %d (%.1f%%)}",
		s.TotalCalls, s.SpawnFailures, s.CancelFailures, s.DetachFailures, s.FailureRate()*100)
}

// Helper Functions

// WaitForSpawns waits for a mock platform to spawn at least n threads,
// with a timeout. Returns true if the expected spawns were reached.
func WaitForSpawns(mock *MockPlatform, expected int, timeout time.Duration) bool {
	start := time.Now()
	for time.Since(start) < timeout {
		if mock.SpawnCount() >= expected {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// ParallelTest runs a test function in parallel with multiple goroutines.
// Useful for testing concurrent use of a single handle.
func ParallelTest(t *testing.T, goroutines int, testFunc func(int)) {
	t.Helper()

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func(id int) {
			defer wg.Done()
			testFunc(id)
		}(i)
	}

	wg.Wait()
}

// MeasureLatency measures the latency of a function call.
func MeasureLatency(fn func()) time.Duration {
	start := time.Now()
	fn()
	return time.Since(start)
}
