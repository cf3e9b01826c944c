package main

import (
	"context"
	"io"

	"github.com/rs/zerolog"
	"github.com/zoobzio/threadz"
)

// Example defines the interface that all examples must implement
type Example interface {
	Name() string
	Description() string
	Demo(ctx context.Context, env *Env) error
}

// Env is what an example runs against.
type Env struct {
	Out    io.Writer
	Log    zerolog.Logger
	Config demoConfig
}

// NewThread returns a handle configured from the environment, with its
// lifecycle events logged.
func (e *Env) NewThread(name string, opts ...threadz.Option) *threadz.Thread {
	th := threadz.New(append([]threadz.Option{threadz.WithName(name)}, opts...)...).SetAttr(e.Config.attr())
	observe(th, e.Log)
	return th
}

// getAllExamples returns all registered examples in a consistent order
func getAllExamples() []Example {
	return []Example{
		&QuickstartExample{},
		&MembersExample{},
		&AllTypesExample{},
		&CancelExample{},
		&DetachExample{},
		&ChaosExample{},
	}
}

// getExampleByName returns a specific example by name
func getExampleByName(name string) (Example, bool) {
	for _, ex := range getAllExamples() {
		if ex.Name() == name {
			return ex, true
		}
	}
	return nil, false
}
