// Package threadz runs a function or method on its own OS thread behind a
// small join / detach / cancel handle.
//
// # Overview
//
// A [Thread] owns at most one native thread at a time. Starting it binds a
// callable to its arguments, spawns a thread, and returns as soon as the
// thread exists:
//
//	th := threadz.New()
//	if err := th.Start(resize, img, 800, 600); err != nil {
//	    return err
//	}
//	if err := th.Join(); err != nil {
//	    return err
//	}
//
// After Join the handle is unstarted again and can be reused.
//
// # Callables
//
// Any function value can be started, with any number of arguments:
//
//   - Free or package-level functions: th.Start(checksum, path)
//   - Methods with a pointer receiver (mutable): th.Start(cache.Refresh, key)
//   - Methods with a value receiver (read-only): th.Start(cfg.Dump, w)
//   - Receiver plus method name: th.StartMethod(&cache, "Refresh", key)
//   - Typed closures without reflection: th.Launch(threadz.InvocationFunc(fn))
//
// Arguments are checked against the parameter types when the callable is
// bound, so a mismatch fails Start with InvalidCallable before any thread
// is created.
//
// # Value and reference arguments
//
// Arguments are copied by default. [Val] makes that explicit; [Ref] passes a
// pointer so that the callable's writes are visible after Join:
//
//	n := 42
//	th.Start(func(p *int) { *p++ }, threadz.Ref(&n))
//	th.Join() // n == 43
//
// # Cancellation
//
// If a callable's first parameter is a context.Context, the thread passes a
// context that [Thread.Cancel] cancels. Cancellation is cooperative: a
// callable that never checks its context runs to completion. Cancel does not
// wait; Join observes the end of the thread.
//
// # Lifecycle
//
//	Unstarted --Start--> Running --Join--> Unstarted
//	                        |
//	                        +--Detach--> Detached (terminal)
//	                        +--Cancel--> Running (until the callable returns)
//
// Every failure is an [*Error] whose [Code] names the rule that was broken
// (AlreadyStarted, CreationFailed, NotJoinable, NotCancelable, CancelFailed,
// NotDetachable, DetachFailed, InvalidCallable). Nothing is retried or
// logged by the package.
//
// [Thread.Close] joins a thread that is still running and not detached.
//
// # Platforms
//
// [NativePlatform] dedicates an OS thread to every run and applies [Attr]
// settings (CPU affinity, nice value) on Linux. Tests can supply their own
// [Platform] with [WithPlatform]; the threadz/testing package ships one that
// fails on demand.
package threadz
