package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zoobzio/threadz"
	threadztesting "github.com/zoobzio/threadz/testing"
)

// Run starts fn on th with the configured attributes and joins it.
func (e *Env) Run(th *threadz.Thread, fn any, args ...any) error {
	th.SetAttr(e.Config.attr())
	if err := th.Start(fn, args...); err != nil {
		return err
	}
	e.Log.Debug().Stringer("tid", th.ID()).Msg("joining")
	return th.Join()
}

// RunMethod is Run for a receiver and method name.
func (e *Env) RunMethod(th *threadz.Thread, recv any, method string, args ...any) error {
	th.SetAttr(e.Config.attr())
	if err := th.StartMethod(recv, method, args...); err != nil {
		return err
	}
	return th.Join()
}

// QuickstartExample starts free functions with no argument, a copied
// argument and a reference argument on one reusable handle.
type QuickstartExample struct{}

func (*QuickstartExample) Name() string { return "quickstart" }

func (*QuickstartExample) Description() string {
	return "Free functions with value and reference arguments"
}

func threadExample(w io.Writer) {
	fmt.Fprintln(w, "Inside threadExample")
}

func threadExampleWithArg(w io.Writer, d float64) {
	fmt.Fprintf(w, "Inside threadExampleWithArg(%g)\n", d)
}

func threadExampleWithRefArg(w io.Writer, d *float64) {
	*d += 1.0
	fmt.Fprintf(w, "Inside threadExampleWithRefArg(%g)\n", *d)
}

func (*QuickstartExample) Demo(_ context.Context, env *Env) error {
	th := env.NewThread("quickstart")
	defer th.Close()

	if err := env.Run(th, threadExample, env.Out); err != nil {
		return err
	}
	if err := env.Run(th, threadExampleWithArg, env.Out, 42.42); err != nil {
		return err
	}
	d := 42.42
	if err := env.Run(th, threadExampleWithRefArg, env.Out, threadz.Ref(&d)); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "New value of d: %g\n", d)
	return nil
}

// MembersExample runs methods of one object and shows its state changing.
type MembersExample struct{}

func (*MembersExample) Name() string { return "members" }

func (*MembersExample) Description() string {
	return "Methods on a shared object, by value and by name"
}

type counterObject struct {
	out     io.Writer
	private int
}

func (c *counterObject) MethodExample() {
	c.private++
	fmt.Fprintln(c.out, "Inside methodExample")
}

func (c *counterObject) MethodExampleWithArg(d float64) {
	c.private++
	fmt.Fprintf(c.out, "Inside methodExampleWithArg(%g)\n", d)
}

func (c *counterObject) MethodExampleWithRefArg(d *float64) {
	*d += 1.0
	c.private++
	fmt.Fprintf(c.out, "Inside methodExampleWithRefArg(%g)\n", *d)
}

func (c *counterObject) PrivateVar() int {
	return c.private
}

func (*MembersExample) Demo(_ context.Context, env *Env) error {
	obj := &counterObject{out: env.Out}
	fmt.Fprintf(env.Out, "Example private var: %d\n", obj.PrivateVar())

	th := env.NewThread("members")
	defer th.Close()

	if err := env.Run(th, obj.MethodExample); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "Example private var: %d\n", obj.PrivateVar())

	if err := env.RunMethod(th, obj, "MethodExampleWithArg", 42.42); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "Example private var: %d\n", obj.PrivateVar())

	d := 42.42
	if err := env.RunMethod(th, obj, "MethodExampleWithRefArg", threadz.Ref(&d)); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "New value of d: %g\n", d)
	fmt.Fprintf(env.Out, "Example private var: %d\n", obj.PrivateVar())
	return nil
}

// AllTypesExample starts every supported callable shape with zero to ten
// arguments.
type AllTypesExample struct{}

func (*AllTypesExample) Name() string { return "alltypes" }

func (*AllTypesExample) Description() string {
	return "Free functions and methods with 0 to 10 arguments"
}

// printer has one method per arity. Pointer receivers stand for mutable
// methods, Value* methods for read-only ones.
type printer struct {
	out io.Writer
}

func (p printer) line(name string, args ...int) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	if len(parts) == 0 {
		fmt.Fprintln(p.out, name)
		return
	}
	fmt.Fprintf(p.out, "%s: %s\n", name, strings.Join(parts, ", "))
}

func (p *printer) Method0()                                   { p.line("method0") }
func (p *printer) Method1(a1 int)                             { p.line("method1", a1) }
func (p *printer) Method2(a1, a2 int)                         { p.line("method2", a1, a2) }
func (p *printer) Method3(a1, a2, a3 int)                     { p.line("method3", a1, a2, a3) }
func (p *printer) Method4(a1, a2, a3, a4 int)                 { p.line("method4", a1, a2, a3, a4) }
func (p *printer) Method5(a1, a2, a3, a4, a5 int)             { p.line("method5", a1, a2, a3, a4, a5) }
func (p *printer) Method6(a1, a2, a3, a4, a5, a6 int)         { p.line("method6", a1, a2, a3, a4, a5, a6) }
func (p *printer) Method7(a1, a2, a3, a4, a5, a6, a7 int)     { p.line("method7", a1, a2, a3, a4, a5, a6, a7) }
func (p *printer) Method8(a1, a2, a3, a4, a5, a6, a7, a8 int) { p.line("method8", a1, a2, a3, a4, a5, a6, a7, a8) }
func (p *printer) Method9(a1, a2, a3, a4, a5, a6, a7, a8, a9 int) {
	p.line("method9", a1, a2, a3, a4, a5, a6, a7, a8, a9)
}

func (p *printer) Method10(a1, a2, a3, a4, a5, a6, a7, a8, a9, a10 int) {
	p.line("method10", a1, a2, a3, a4, a5, a6, a7, a8, a9, a10)
}

func (p printer) ValueMethod(args ...int) { p.line("valueMethod", args...) }

func (*AllTypesExample) Demo(_ context.Context, env *Env) error {
	th := env.NewThread("alltypes")
	defer th.Close()

	p := &printer{out: env.Out}
	for arity := 0; arity <= 10; arity++ {
		args := make([]any, arity)
		for i := range args {
			args[i] = i + 1
		}
		if err := env.RunMethod(th, p, fmt.Sprintf("Method%d", arity), args...); err != nil {
			return fmt.Errorf("method%d: %w", arity, err)
		}
	}

	// Free function and value receiver.
	if err := env.Run(th, func(w io.Writer, a, b int) {
		fmt.Fprintf(w, "function: %d, %d\n", a, b)
	}, env.Out, 1, 2); err != nil {
		return err
	}
	return env.Run(th, printer{out: env.Out}.ValueMethod, 1, 2, 3)
}

// CancelExample asks a context-aware callable to stop.
type CancelExample struct{}

func (*CancelExample) Name() string { return "cancel" }

func (*CancelExample) Description() string {
	return "Cooperative cancellation of a running thread"
}

func tick(ctx context.Context, w io.Writer, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w, "Ticker stopped")
			return ctx.Err()
		case <-ticker.C:
			fmt.Fprintf(w, "tick %d\n", n)
		}
	}
}

func (*CancelExample) Demo(ctx context.Context, env *Env) error {
	th := env.NewThread("ticker")
	defer th.Close()

	th.SetAttr(env.Config.attr())
	if err := th.Start(tick, env.Out, 50*time.Millisecond); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-time.After(220 * time.Millisecond):
	}

	if err := th.Cancel(); err != nil {
		return err
	}
	if err := th.Join(); err != nil {
		return err
	}
	if err := th.Err(); !errors.Is(err, context.Canceled) {
		return fmt.Errorf("expected the ticker to stop on cancel, got %v", err)
	}
	fmt.Fprintln(env.Out, "Ticker joined after cancel")
	return nil
}

// DetachExample hands a thread over and waits for it by other means.
type DetachExample struct{}

func (*DetachExample) Name() string { return "detach" }

func (*DetachExample) Description() string {
	return "Detached threads and the errors that follow"
}

func (*DetachExample) Demo(_ context.Context, env *Env) error {
	th := env.NewThread("detached")
	defer th.Close()

	done := make(chan struct{})
	th.SetAttr(env.Config.attr())
	if err := th.Start(func(w io.Writer) {
		defer close(done)
		fmt.Fprintln(w, "Inside detached thread")
	}, env.Out); err != nil {
		return err
	}
	id := th.ID()
	if err := th.Detach(); err != nil {
		return err
	}
	<-done

	fmt.Fprintf(env.Out, "Detached thread %s finished\n", id)
	for _, step := range []struct {
		name string
		err  error
	}{
		{"join", th.Join()},
		{"detach", th.Detach()},
		{"cancel", th.Cancel()},
		{"start", th.Start(threadExample, env.Out)},
	} {
		fmt.Fprintf(env.Out, "%s after detach: %v\n", step.name, step.err)
	}
	return nil
}

// ChaosExample starts jobs on a platform that randomly refuses to create
// threads, retrying with backoff.
type ChaosExample struct{}

func (*ChaosExample) Name() string { return "chaos" }

func (*ChaosExample) Description() string {
	return "Creation failures retried with exponential backoff"
}

func (*ChaosExample) Demo(ctx context.Context, env *Env) error {
	chaos := threadztesting.NewChaosPlatform(threadz.NativePlatform, threadztesting.ChaosConfig{
		SpawnFailureRate: 0.3,
		Seed:             42,
	})
	s := newStarter(8, 5*time.Millisecond, env.Log).WithAttr(env.Config.attr)

	results := make([]int, 5)
	for job := range results {
		th := env.NewThread(fmt.Sprintf("job-%d", job), threadz.WithPlatform(chaos))
		attempts, err := s.Start(ctx, th, func(out *int, n int) { *out = n * n }, threadz.Ref(&results[job]), job+1)
		if err != nil {
			th.Close()
			return fmt.Errorf("job %d: %w", job, err)
		}
		if err := th.Close(); err != nil {
			return err
		}
		fmt.Fprintf(env.Out, "job %d started after %d attempt(s): %d\n", job+1, attempts, results[job])
	}
	fmt.Fprintln(env.Out, chaos.Stats())
	return nil
}
