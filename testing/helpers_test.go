package testing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/threadz"
)

func TestMockPlatform(t *testing.T) {
	t.Run("Runs Entry With Sequential IDs", func(t *testing.T) {
		mock := NewMockPlatform(t)

		ids := make(chan threadz.NativeID, 2)
		for i := 0; i < 2; i++ {
			id, err := mock.Spawn(nil, func(id threadz.NativeID) { ids <- id })
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != threadz.NativeID(i+1) {
				t.Errorf("expected id %d, got %s", i+1, id)
			}
		}

		got := map[threadz.NativeID]bool{<-ids: true, <-ids: true}
		if !got[1] || !got[2] {
			t.Errorf("expected entries to see ids 1 and 2, got %v", got)
		}
		AssertSpawned(t, mock, 2)
	})

	t.Run("Queued Failures Are One Shot", func(t *testing.T) {
		first := errors.New("first")
		second := errors.New("second")
		mock := NewMockPlatform(t).FailNextSpawn(first).FailNextSpawn(second)

		var ran int32
		entry := func(threadz.NativeID) { atomic.AddInt32(&ran, 1) }

		if _, err := mock.Spawn(nil, entry); !errors.Is(err, first) {
			t.Errorf("expected first, got %v", err)
		}
		if _, err := mock.Spawn(nil, entry); !errors.Is(err, second) {
			t.Errorf("expected second, got %v", err)
		}
		if _, err := mock.Spawn(nil, entry); err != nil {
			t.Errorf("expected queue to be drained, got %v", err)
		}
		AssertSpawned(t, mock, 1)
	})

	t.Run("Persistent Failures", func(t *testing.T) {
		boom := errors.New("boom")
		mock := NewMockPlatform(t).WithCancelError(boom).WithDetachError(boom)

		for i := 0; i < 3; i++ {
			if err := mock.Cancel(1); !errors.Is(err, boom) {
				t.Errorf("expected boom, got %v", err)
			}
			if err := mock.Detach(1); !errors.Is(err, boom) {
				t.Errorf("expected boom, got %v", err)
			}
		}
		if mock.CancelCount() != 0 || mock.DetachCount() != 0 {
			t.Error("failed calls must not be counted")
		}

		mock.WithCancelError(nil)
		if err := mock.Cancel(1); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if mock.CancelCount() != 1 {
			t.Errorf("expected 1 cancel, got %d", mock.CancelCount())
		}
	})

	t.Run("Rejects Invalid Attributes", func(t *testing.T) {
		mock := NewMockPlatform(t)
		_, err := mock.Spawn(&threadz.Attr{CPUs: []int{-1}}, func(threadz.NativeID) {
			t.Error("entry must not run")
		})
		if err == nil {
			t.Fatal("expected error")
		}
		AssertNotSpawned(t, mock)
	})

	t.Run("Tracks Call History", func(t *testing.T) {
		mock := NewMockPlatform(t).FailNextDetach(errors.New("nope"))

		id, _ := mock.Spawn(nil, func(threadz.NativeID) {})
		_ = mock.Detach(id)
		_ = mock.Cancel(id)

		history := mock.CallHistory()
		if len(history) != 3 {
			t.Fatalf("expected 3 calls, got %d", len(history))
		}
		ops := []string{history[0].Op, history[1].Op, history[2].Op}
		if ops[0] != OpSpawn || ops[1] != OpDetach || ops[2] != OpCancel {
			t.Errorf("unexpected ops %v", ops)
		}
		if history[1].Err == nil {
			t.Error("expected failed detach to be recorded with its error")
		}
		if history[2].ID != id {
			t.Errorf("expected id %s, got %s", id, history[2].ID)
		}
	})

	t.Run("WithHistorySize Zero Disables History", func(t *testing.T) {
		mock := NewMockPlatform(t).WithHistorySize(0)
		_, _ = mock.Spawn(nil, func(threadz.NativeID) {})
		if mock.CallHistory() != nil {
			t.Error("expected no history")
		}
	})

	t.Run("WithHistorySize Trims Existing History", func(t *testing.T) {
		mock := NewMockPlatform(t)
		for i := 0; i < 5; i++ {
			_ = mock.Cancel(threadz.NativeID(i + 1))
		}
		mock.WithHistorySize(2)
		history := mock.CallHistory()
		if len(history) != 2 || history[1].ID != 5 {
			t.Errorf("expected last two calls, got %+v", history)
		}
	})

	t.Run("Reset Clears State", func(t *testing.T) {
		mock := NewMockPlatform(t).WithSpawnError(errors.New("down"))
		_, _ = mock.Spawn(nil, func(threadz.NativeID) {})
		mock.Reset()

		if _, err := mock.Spawn(nil, func(threadz.NativeID) {}); err != nil {
			t.Errorf("expected reset to clear failures, got %v", err)
		}
		AssertSpawned(t, mock, 1)
		if len(mock.CallHistory()) != 1 {
			t.Errorf("expected history to restart, got %d calls", len(mock.CallHistory()))
		}
	})

	t.Run("Applies Delay", func(t *testing.T) {
		mock := NewMockPlatform(t).WithDelay(30 * time.Millisecond)
		done := make(chan struct{})

		spawned := MeasureLatency(func() {
			_, _ = mock.Spawn(nil, func(threadz.NativeID) { close(done) })
		})
		elapsed := MeasureLatency(func() { <-done })

		if spawned >= 30*time.Millisecond {
			t.Errorf("Spawn should not wait for the delay, took %v", spawned)
		}
		if elapsed < 20*time.Millisecond {
			t.Errorf("expected entry to be delayed, ran after %v", elapsed)
		}
	})

	t.Run("Wraps Native Platform", func(t *testing.T) {
		mock := NewMockPlatform(t).Wrap(threadz.NativePlatform)
		th := threadz.New(threadz.WithPlatform(mock))
		defer th.Close()

		ran := false
		if err := th.Start(func() { ran = true }); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := th.Join(); err != nil {
			t.Fatalf("unexpected join error: %v", err)
		}
		if !ran {
			t.Error("expected callable to run")
		}
		AssertSpawned(t, mock, 1)
	})
}

func TestThreadFailurePaths(t *testing.T) {
	t.Run("Creation Failure Leaves Handle Reusable", func(t *testing.T) {
		mock := NewMockPlatform(t).FailNextSpawn(errors.New("EAGAIN"))
		th := threadz.New(threadz.WithPlatform(mock), threadz.WithName("retry"))
		defer th.Close()

		var calls int32
		err := th.Start(func() { atomic.AddInt32(&calls, 1) })
		AssertCode(t, err, threadz.CreationFailed)
		if err.Error() != "failed to create thread: EAGAIN" {
			t.Errorf("unexpected message %q", err.Error())
		}
		AssertState(t, th, false, false)
		AssertNotSpawned(t, mock)

		if err := th.Start(func() { atomic.AddInt32(&calls, 1) }); err != nil {
			t.Fatalf("unexpected error on retry: %v", err)
		}
		AssertState(t, th, true, true)
		if err := th.Join(); err != nil {
			t.Fatalf("unexpected join error: %v", err)
		}
		if got := atomic.LoadInt32(&calls); got != 1 {
			t.Errorf("expected exactly one run, got %d", got)
		}
		if got := th.Metrics().Counter(threadz.ThreadCreateFailuresTotal).Value(); got != 1 {
			t.Errorf("expected 1 creation failure, got %f", got)
		}
	})

	t.Run("Creation Failure Keeps Attributes", func(t *testing.T) {
		mock := NewMockPlatform(t).FailNextSpawn(errors.New("EAGAIN"))
		th := threadz.New(threadz.WithPlatform(mock), threadz.WithAttr(&threadz.Attr{Name: "pinned"}))
		defer th.Close()

		if err := th.Start(func() {}); err == nil {
			t.Fatal("expected creation failure")
		}

		names := make(chan string, 1)
		th.OnStarted(func(_ context.Context, e threadz.Event) error {
			names <- e.Name
			return nil
		})
		if err := th.Start(func() {}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		select {
		case name := <-names:
			if name != "pinned" {
				t.Errorf("expected retained attribute name, got %q", name)
			}
		case <-time.After(time.Second):
			t.Fatal("started hook not called")
		}
		if err := th.Join(); err != nil {
			t.Fatalf("unexpected join error: %v", err)
		}
	})

	t.Run("Cancel Failure Leaves Thread Joinable", func(t *testing.T) {
		mock := NewMockPlatform(t).FailNextCancel(errors.New("ESRCH"))
		th := threadz.New(threadz.WithPlatform(mock))
		defer th.Close()

		release := make(chan struct{})
		var sawCancel atomic.Bool
		if err := th.Start(func(ctx context.Context) {
			<-release
			sawCancel.Store(ctx.Err() != nil)
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err := th.Cancel()
		AssertCode(t, err, threadz.CancelFailed)
		if !errors.Is(err, threadz.ErrCancelFailed) {
			t.Errorf("expected ErrCancelFailed, got %v", err)
		}
		AssertState(t, th, true, true)

		close(release)
		if err := th.Join(); err != nil {
			t.Fatalf("unexpected join error: %v", err)
		}
		if sawCancel.Load() {
			t.Error("a rejected cancel must not reach the callable")
		}
		if got := th.Metrics().Counter(threadz.ThreadCanceledTotal).Value(); got != 0 {
			t.Errorf("expected no accepted cancels, got %f", got)
		}
	})

	t.Run("Detach Failure Leaves Thread Joinable", func(t *testing.T) {
		mock := NewMockPlatform(t).FailNextDetach(errors.New("EINVAL"))
		th := threadz.New(threadz.WithPlatform(mock))
		defer th.Close()

		if err := th.Start(func() {}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		err := th.Detach()
		AssertCode(t, err, threadz.DetachFailed)
		if !strings.HasPrefix(err.Error(), "failed to detach thread") {
			t.Errorf("unexpected message %q", err.Error())
		}
		AssertState(t, th, true, true)

		if err := th.Join(); err != nil {
			t.Errorf("expected join to succeed after failed detach, got %v", err)
		}
		if mock.DetachCount() != 0 {
			t.Errorf("expected no successful detach, got %d", mock.DetachCount())
		}
	})

	t.Run("Detach Then Everything Else Fails", func(t *testing.T) {
		mock := NewMockPlatform(t)
		th := threadz.New(threadz.WithPlatform(mock))
		defer th.Close()

		if err := th.Start(func() {}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := th.Detach(); err != nil {
			t.Fatalf("unexpected detach error: %v", err)
		}
		AssertState(t, th, false, true)
		AssertCode(t, th.Detach(), threadz.NotDetachable)
		AssertCode(t, th.Join(), threadz.NotJoinable)
		AssertCode(t, th.Cancel(), threadz.NotCancelable)
		AssertCode(t, th.Start(func() {}), threadz.AlreadyStarted)
		AssertSpawned(t, mock, 1)
	})

	t.Run("Start Races Delayed Entry", func(t *testing.T) {
		mock := NewMockPlatform(t).WithDelay(20 * time.Millisecond)
		th := threadz.New(threadz.WithPlatform(mock))
		defer th.Close()

		v := 1
		if err := th.Start(func(p *int) { *p *= 10 }, threadz.Ref(&v)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		AssertCode(t, th.Start(func() {}), threadz.AlreadyStarted)
		if err := th.Join(); err != nil {
			t.Fatalf("unexpected join error: %v", err)
		}
		if v != 10 {
			t.Errorf("expected 10, got %d", v)
		}
	})
}

func TestConcurrentHandleUse(t *testing.T) {
	mock := NewMockPlatform(t)
	th := threadz.New(threadz.WithPlatform(mock))
	defer th.Close()

	release := make(chan struct{})
	if err := th.Start(func() { <-release }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var mu sync.Mutex
	codes := map[threadz.Code]int{}
	ParallelTest(t, 8, func(int) {
		err := th.Start(func() {})
		code, _ := threadz.CodeOf(err)
		mu.Lock()
		codes[code]++
		mu.Unlock()
	})
	if codes[threadz.AlreadyStarted] != 8 {
		t.Errorf("expected every concurrent start to be rejected, got %v", codes)
	}

	joins := make(chan error, 4)
	ParallelTest(t, 4, func(int) {
		go func() { joins <- th.Join() }()
	})
	close(release)

	var ok, rejected int
	for i := 0; i < 4; i++ {
		err := <-joins
		switch {
		case err == nil:
			ok++
		case errors.Is(err, threadz.ErrNotJoinable):
			rejected++
		default:
			t.Errorf("unexpected join error: %v", err)
		}
	}
	if ok != 1 || rejected != 3 {
		t.Errorf("expected exactly one successful join, got %d ok and %d rejected", ok, rejected)
	}
	AssertSpawned(t, mock, 1)
}

func TestChaosPlatform(t *testing.T) {
	t.Run("No Chaos Passes Through", func(t *testing.T) {
		chaos := NewChaosPlatform(NewMockPlatform(t), ChaosConfig{Seed: 12345})
		th := threadz.New(threadz.WithPlatform(chaos))
		defer th.Close()

		for i := 0; i < 10; i++ {
			if err := th.Start(func() {}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if err := th.Join(); err != nil {
				t.Fatalf("unexpected join error: %v", err)
			}
		}

		stats := chaos.Stats()
		if stats.TotalCalls != 10 || stats.FailureRate() != 0 {
			t.Errorf("unexpected stats %s", stats)
		}
	})

	t.Run("Injects Spawn Failures At Configured Rate", func(t *testing.T) {
		chaos := NewChaosPlatform(NewMockPlatform(t), ChaosConfig{
			SpawnFailureRate: 0.5,
			Seed:             42,
		})
		th := threadz.New(threadz.WithPlatform(chaos))
		defer th.Close()

		failures := 0
		for i := 0; i < 100; i++ {
			err := th.Start(func() {})
			if err != nil {
				AssertCode(t, err, threadz.CreationFailed)
				if !errors.Is(err, ErrChaosSpawn) {
					t.Fatalf("expected chaos cause, got %v", err)
				}
				if th.Joinable() {
					t.Fatal("failed start must leave the handle unstarted")
				}
				failures++
				continue
			}
			if err := th.Join(); err != nil {
				t.Fatalf("unexpected join error: %v", err)
			}
		}

		// With 50% failure rate, expect roughly 40-60 failures
		if failures < 30 || failures > 70 {
			t.Errorf("expected ~50 failures, got %d", failures)
		}
		if got := chaos.Stats().SpawnFailures; got != int64(failures) {
			t.Errorf("expected stats to match %d failures, got %d", failures, got)
		}
	})

	t.Run("Always Failing Cancel And Detach", func(t *testing.T) {
		chaos := NewChaosPlatform(NewMockPlatform(t), ChaosConfig{
			CancelFailureRate: 1.0,
			DetachFailureRate: 1.0,
			Seed:              7,
		})
		th := threadz.New(threadz.WithPlatform(chaos))
		defer th.Close()

		if err := th.Start(func() {}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		AssertCode(t, th.Cancel(), threadz.CancelFailed)
		AssertCode(t, th.Detach(), threadz.DetachFailed)
		if err := th.Join(); err != nil {
			t.Fatalf("unexpected join error: %v", err)
		}

		stats := chaos.Stats()
		if stats.CancelFailures != 1 || stats.DetachFailures != 1 {
			t.Errorf("unexpected stats %s", stats)
		}
	})

	t.Run("Latency Injection", func(t *testing.T) {
		chaos := NewChaosPlatform(NewMockPlatform(t), ChaosConfig{
			LatencyMin: 20 * time.Millisecond,
			LatencyMax: 30 * time.Millisecond,
			Seed:       1,
		})
		elapsed := MeasureLatency(func() {
			_, _ = chaos.Spawn(nil, func(threadz.NativeID) {})
		})
		if elapsed < 20*time.Millisecond {
			t.Errorf("expected at least 20ms, got %v", elapsed)
		}
	})

	t.Run("Stats String Format", func(t *testing.T) {
		stats := ChaosStats{TotalCalls: 10, SpawnFailures: 2, CancelFailures: 1, DetachFailures: 1}
		s := stats.String()
		if !strings.Contains(s, "Total: 10") || !strings.Contains(s, "40.0%") {
			t.Errorf("unexpected format %q", s)
		}
	})

	t.Run("Stats Zero Calls", func(t *testing.T) {
		if rate := (ChaosStats{}).FailureRate(); rate != 0 {
			t.Errorf("expected 0, got %f", rate)
		}
	})

	t.Run("Random Seed From Crypto", func(t *testing.T) {
		chaos := NewChaosPlatform(NewMockPlatform(t), ChaosConfig{})
		if _, err := chaos.Spawn(nil, func(threadz.NativeID) {}); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestWaitForSpawns(t *testing.T) {
	t.Run("Returns True When Spawns Reached", func(t *testing.T) {
		mock := NewMockPlatform(t)
		go func() {
			time.Sleep(20 * time.Millisecond)
			_, _ = mock.Spawn(nil, func(threadz.NativeID) {})
		}()
		if !WaitForSpawns(mock, 1, time.Second) {
			t.Error("expected spawn to be observed")
		}
	})

	t.Run("Returns False On Timeout", func(t *testing.T) {
		mock := NewMockPlatform(t)
		if WaitForSpawns(mock, 1, 30*time.Millisecond) {
			t.Error("expected timeout")
		}
	})
}
