package decl

import (
	"context"
	"errors"
	"reflect"
	"sync"
)

// DynamicModule is a module type plus inline metadata. Params takes part in
// identity hashing: the same Module with different Params registers as two
// distinct modules. A non-empty Key replaces the derived identity entirely.
type DynamicModule struct {
	Module      *Type
	Params      map[string]any
	Imports     []any
	Providers   []any
	Exports     []any
	Controllers []any
	Global      bool
	Key         string
}

// ForwardReference defers resolution of a declaration or token until it is
// needed, breaking textual reference cycles.
type ForwardReference struct {
	Resolve func() any
}

// ForwardRef wraps fn as a forward reference.
func ForwardRef(fn func() any) *ForwardReference {
	return &ForwardReference{Resolve: fn}
}

// Pending is a module declaration that becomes available asynchronously.
// Await runs at most once per Pending; use Result to read it.
type Pending struct {
	Await func(ctx context.Context) (any, error)

	mu    sync.Mutex
	done  bool
	value any
	err   error
}

// Result awaits the declaration on first use and returns the same value and
// error to every later caller. A cancelled or expired context is not
// remembered, so the next caller awaits again.
func (p *Pending) Result(ctx context.Context) (any, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done {
		return p.value, p.err
	}
	value, err := p.Await(ctx)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil, err
	}
	p.value, p.err, p.done = value, err, true
	return value, err
}

// Async wraps fn as a pending declaration.
func Async(fn func(ctx context.Context) (any, error)) *Pending {
	return &Pending{Await: fn}
}

// IsDynamicModule reports whether v is a non-nil dynamic module descriptor.
func IsDynamicModule(v any) bool {
	dm, ok := v.(*DynamicModule)
	return ok && dm != nil
}

// IsForwardReference reports whether v is a non-nil forward reference.
func IsForwardReference(v any) bool {
	fr, ok := v.(*ForwardReference)
	return ok && fr != nil && fr.Resolve != nil
}

// IsPending reports whether v is a non-nil pending declaration.
func IsPending(v any) bool {
	p, ok := v.(*Pending)
	return ok && p != nil && p.Await != nil
}

// IsModuleDeclaration reports whether v has one of the four module
// declaration shapes and is not a nil pointer.
func IsModuleDeclaration(v any) bool {
	switch d := v.(type) {
	case *Type:
		return d != nil
	case *DynamicModule:
		return d != nil && d.Module != nil
	case *ForwardReference, *Pending:
		return IsForwardReference(v) || IsPending(v)
	}
	return false
}

// IsFalsy reports whether v is a zero value: a nil pointer, an empty string,
// false, zero, or an empty struct. Untyped nil is not falsy but undefined
// and must be checked separately.
func IsFalsy(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return rv.IsZero()
}

// SameDeclaration compares two declarations by identity. Non-comparable
// values never match.
func SameDeclaration(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
