package benchmarks

import (
	"context"
	"testing"

	"github.com/zoobzio/threadz"
	threadztesting "github.com/zoobzio/threadz/testing"
)

type counter struct{ n int }

func (c *counter) Add(d int) { c.n += d }

// BenchmarkBind measures the cost of binding callables to arguments.
func BenchmarkBind(b *testing.B) {
	b.Run("Free_Function", func(b *testing.B) {
		fn := func(a, c int) int { return a + c }
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := threadz.Bind(fn, 1, 2); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Method_By_Name", func(b *testing.B) {
		c := &counter{}
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if _, err := threadz.BindMethod(c, "Add", 1); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Invoke_Bound", func(b *testing.B) {
		c := &counter{}
		inv, err := threadz.Bind(c.Add, 1)
		if err != nil {
			b.Fatal(err)
		}
		ctx := context.Background()
		b.ResetTimer()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			_ = inv.Invoke(ctx)
		}
	})
}

// BenchmarkStartJoin measures a full start/join cycle on one handle.
func BenchmarkStartJoin(b *testing.B) {
	b.Run("Native", func(b *testing.B) {
		th := threadz.New()
		defer th.Close()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if err := th.Start(func() {}); err != nil {
				b.Fatal(err)
			}
			if err := th.Join(); err != nil {
				b.Fatal(err)
			}
		}
	})

	b.Run("Goroutine_Platform", func(b *testing.B) {
		th := threadz.New(threadz.WithPlatform(threadztesting.NewMockPlatform(nil).WithHistorySize(0)))
		defer th.Close()
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			if err := th.Launch(threadz.InvocationFunc(func(context.Context) error { return nil })); err != nil {
				b.Fatal(err)
			}
			if err := th.Join(); err != nil {
				b.Fatal(err)
			}
		}
	})
}
