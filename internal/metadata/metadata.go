// Package metadata provides the key-based lookup capability the scanner and
// injector read declarations through. The bootstrapper never assumes how
// metadata was attached; Table is the in-process implementation used by Go
// declarations and by the HCL manifest loader.
package metadata

import (
	"sync"

	"github.com/vk/modgraph/internal/decl"
)

// Key names one kind of metadata payload.
type Key string

const (
	Imports     Key = "imports"
	Providers   Key = "providers"
	Controllers Key = "controllers"
	Exports     Key = "exports"
	Global      Key = "global"

	// Markers that classify a type.
	Injectable Key = "injectable"
	Controller Key = "controller"
	Catch      Key = "catch"

	// Inject holds the constructor dependency tokens in positional order.
	Inject Key = "inject"
	// Optional holds the indices of constructor dependencies that resolve
	// to nil when no provider is visible.
	Optional Key = "optional"
	// Properties holds decl.PropertyDep entries.
	Properties Key = "properties"
	// ScopeKey holds the declared decl.Scope of an injectable type.
	ScopeKey Key = "scope"

	Guards       Key = "guards"
	Interceptors Key = "interceptors"
	Filters      Key = "filters"
	Pipes        Key = "pipes"
	// RouteArgs holds decl.ParamPipes entries on a method.
	RouteArgs Key = "route-args"
)

// EnhancerKeys maps enhancer metadata keys to their subtype names, in the
// order the scanner reflects them.
var EnhancerKeys = []struct {
	Key     Key
	Subtype string
}{
	{Guards, "guard"},
	{Interceptors, "interceptor"},
	{Filters, "filter"},
	{Pipes, "pipe"},
}

// Reader looks up declared metadata. Missing entries yield an empty slice.
type Reader interface {
	Get(key Key, target *decl.Type) []any
	GetMethod(key Key, target *decl.Type, method string) []any
}

type entryKey struct {
	key    Key
	target *decl.Type
	method string
}

// Table is a concurrency-safe metadata store.
type Table struct {
	mu      sync.RWMutex
	entries map[entryKey][]any
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{entries: make(map[entryKey][]any)}
}

// Define appends values to the type-level entry for key.
func (t *Table) Define(key Key, target *decl.Type, values ...any) *Table {
	return t.DefineMethod(key, target, "", values...)
}

// DefineMethod appends values to the method-level entry for key.
func (t *Table) DefineMethod(key Key, target *decl.Type, method string, values ...any) *Table {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := entryKey{key: key, target: target, method: method}
	t.entries[k] = append(t.entries[k], values...)
	return t
}

// Get implements Reader.
func (t *Table) Get(key Key, target *decl.Type) []any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return clone(t.entries[entryKey{key: key, target: target}])
}

// GetMethod implements Reader. Method metadata is inherited along the
// Base chain; the closest declaration wins.
func (t *Table) GetMethod(key Key, target *decl.Type, method string) []any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for cur := target; cur != nil; cur = cur.Base {
		if vals, ok := t.entries[entryKey{key: key, target: cur, method: method}]; ok {
			return clone(vals)
		}
	}
	return nil
}

func clone(in []any) []any {
	if len(in) == 0 {
		return nil
	}
	out := make([]any, len(in))
	copy(out, in)
	return out
}
