package threadz

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Invocation is a call target bound to its arguments, ready to run on a
// spawned thread. A Thread invokes it exactly once.
//
// Most callers never implement Invocation themselves: [Bind] and
// [BindMethod] build one from any function or method, and
// [InvocationFunc] adapts a plain closure.
type Invocation interface {
	Invoke(ctx context.Context) error
	Name() string
}

// InvocationFunc adapts a closure to the Invocation interface. It is the
// statically typed path: no reflection is involved.
//
//	th := threadz.New()
//	err := th.Launch(threadz.InvocationFunc(func(ctx context.Context) error {
//	    return poll(ctx)
//	}))
type InvocationFunc func(ctx context.Context) error

// Invoke calls f.
func (f InvocationFunc) Invoke(ctx context.Context) error {
	return f(ctx)
}

// Name returns the name of the underlying function.
func (f InvocationFunc) Name() string {
	return funcName(reflect.ValueOf(f))
}

// nilInvocation reports whether inv is nil or wraps a nil InvocationFunc.
func nilInvocation(inv Invocation) bool {
	if inv == nil {
		return true
	}
	f, ok := inv.(InvocationFunc)
	return ok && f == nil
}

// Arg is an explicit argument binding. Use [Val] to capture a copy and
// [Ref] to hand the thread a pointer to the caller's variable.
type Arg interface {
	bind(param reflect.Type) (reflect.Value, error)
}

type valArg struct {
	v reflect.Value
}

// Val binds v by value. The value is copied when the invocation is bound;
// later changes by the caller are not seen by the thread.
func Val[T any](v T) Arg {
	return valArg{v: reflect.ValueOf(&v).Elem()}
}

func (a valArg) bind(param reflect.Type) (reflect.Value, error) {
	if !a.v.IsValid() {
		switch param.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
			return reflect.Zero(param), nil
		}
		return reflect.Value{}, fmt.Errorf("nil is not assignable to %s", param)
	}
	if !a.v.Type().AssignableTo(param) {
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", a.v.Type(), param)
	}
	return a.v, nil
}

type refArg struct {
	p reflect.Value
}

// Ref binds p by reference. The thread receives p itself, so writes made by
// the callable are visible to the caller after Join. Ref only binds to a
// parameter of exactly type *T.
//
// Access through p is not synchronized; the caller must not touch the
// variable while the thread runs.
func Ref[T any](p *T) Arg {
	return refArg{p: reflect.ValueOf(p)}
}

func (a refArg) bind(param reflect.Type) (reflect.Value, error) {
	if a.p.IsNil() {
		return reflect.Value{}, fmt.Errorf("nil reference for %s", param)
	}
	if a.p.Type() != param {
		return reflect.Value{}, fmt.Errorf("reference %s does not match parameter %s", a.p.Type(), param)
	}
	return a.p, nil
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// boundCall is the Invocation produced by Bind and BindMethod.
type boundCall struct {
	fn      reflect.Value
	name    string
	args    []reflect.Value
	errIdx  int
	withCtx bool
}

// Bind binds fn to args. fn may be any function value, including a method
// value such as obj.Method; a pointer receiver gives the callable mutable
// access to obj, a value receiver a read-only copy.
//
// Each element of args is either an [Arg] built with [Val] or [Ref], or a
// plain value, which is treated as Val. Argument types must be assignable
// to the parameter types; no conversions are applied. Variadic functions
// accept any number of trailing arguments.
//
// If fn's first parameter is a context.Context, it is not bound from args:
// the thread supplies a context that is canceled by [Thread.Cancel]. If fn's
// last result is an error, it becomes the run's result, see [Thread.Err].
func Bind(fn any, args ...any) (Invocation, error) {
	if inv, ok := fn.(Invocation); ok && len(args) == 0 && !nilInvocation(inv) {
		return inv, nil
	}
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return nil, bindError(fmt.Errorf("%T is not a function", fn))
	}
	if fv.IsNil() {
		return nil, bindError(fmt.Errorf("nil function"))
	}
	call, err := bind(fv, funcName(fv), args)
	if err != nil {
		return nil, err
	}
	return call, nil
}

// BindMethod binds the exported method named method on recv to args. It is
// the receiver-plus-operation form of Bind: BindMethod(&obj, "Update", 1)
// and Bind(obj.Update, 1) produce equivalent invocations.
//
// Methods with pointer receivers are only found when recv is a pointer.
func BindMethod(recv any, method string, args ...any) (Invocation, error) {
	rv := reflect.ValueOf(recv)
	if !rv.IsValid() {
		return nil, bindError(fmt.Errorf("nil receiver"))
	}
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil, bindError(fmt.Errorf("nil receiver %T", recv))
	}
	m := rv.MethodByName(method)
	if !m.IsValid() {
		return nil, bindError(fmt.Errorf("%T has no method %q", recv, method))
	}
	call, err := bind(m, fmt.Sprintf("%T.%s", recv, method), args)
	if err != nil {
		return nil, err
	}
	return call, nil
}

func bind(fv reflect.Value, name string, args []any) (*boundCall, error) {
	ft := fv.Type()
	call := &boundCall{fn: fv, name: name, errIdx: -1}

	offset := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		call.withCtx = true
		offset = 1
	}

	fixed := ft.NumIn() - offset
	switch {
	case ft.IsVariadic() && len(args) < fixed-1:
		return nil, bindError(fmt.Errorf("%s wants at least %d arguments, got %d", name, fixed-1, len(args)))
	case !ft.IsVariadic() && len(args) != fixed:
		return nil, bindError(fmt.Errorf("%s wants %d arguments, got %d", name, fixed, len(args)))
	}

	call.args = make([]reflect.Value, len(args))
	for i, a := range args {
		param := paramType(ft, offset+i)
		arg, ok := a.(Arg)
		if !ok {
			arg = valArg{v: reflect.ValueOf(a)}
		}
		v, err := arg.bind(param)
		if err != nil {
			return nil, bindError(fmt.Errorf("%s argument %d: %w", name, i+1, err))
		}
		call.args[i] = v
	}

	if n := ft.NumOut(); n > 0 && ft.Out(n-1) == errorType {
		call.errIdx = n - 1
	}
	return call, nil
}

func paramType(ft reflect.Type, i int) reflect.Type {
	if ft.IsVariadic() && i >= ft.NumIn()-1 {
		return ft.In(ft.NumIn() - 1).Elem()
	}
	return ft.In(i)
}

// Invoke calls the bound function with the bound arguments.
func (c *boundCall) Invoke(ctx context.Context) error {
	in := make([]reflect.Value, 0, len(c.args)+1)
	if c.withCtx {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}
	in = append(in, c.args...)
	out := c.fn.Call(in)
	if c.errIdx < 0 || out[c.errIdx].IsNil() {
		return nil
	}
	return out[c.errIdx].Interface().(error)
}

// Name returns the bound function's name.
func (c *boundCall) Name() string {
	return c.name
}

func funcName(fv reflect.Value) string {
	if fn := runtime.FuncForPC(fv.Pointer()); fn != nil {
		return strings.TrimSuffix(fn.Name(), "-fm")
	}
	return fv.Type().String()
}

func bindError(err error) *Error {
	return &Error{
		Op:   OpBind,
		Code: InvalidCallable,
		Err:  err,
	}
}
