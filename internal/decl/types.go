package decl

import (
	"context"
	"fmt"
	"reflect"
)

// Constructor builds a unit instance from its resolved positional dependencies.
type Constructor func(ctx context.Context, deps []any) (any, error)

// Type is a declared unit identity. Two Types are the same unit only if they
// are the same pointer; Name is used for diagnostics.
type Type struct {
	Name string
	New  Constructor
	// Methods lists the overridable method slots that may carry
	// method-level metadata (enhancers, parameter pipes).
	Methods []string
	// Base is the type this one extends, if any.
	Base *Type
}

// NewType returns a Type with the given constructor and method slots.
func NewType(name string, ctor Constructor, methods ...string) *Type {
	return &Type{Name: name, New: ctor, Methods: methods}
}

// Extend returns a new Type whose ownership chain points at t.
func (t *Type) Extend(name string, ctor Constructor, methods ...string) *Type {
	return &Type{Name: name, New: ctor, Methods: methods, Base: t}
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

// AllMethods returns the method slots of t and every base type, own slots
// first, without duplicates.
func (t *Type) AllMethods() []string {
	var out []string
	seen := make(map[string]struct{})
	for cur := t; cur != nil; cur = cur.Base {
		for _, m := range cur.Methods {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// Symbol is an opaque, unique injection token.
type Symbol struct {
	Description string
}

// NewSymbol creates a new unique token.
func NewSymbol(description string) *Symbol {
	return &Symbol{Description: description}
}

func (s *Symbol) String() string {
	return fmt.Sprintf("Symbol(%s)", s.Description)
}

// TokenName renders an injection token for diagnostics.
func TokenName(token any) string {
	switch t := token.(type) {
	case nil:
		return "undefined"
	case string:
		return t
	case *Type:
		return t.String()
	case *Symbol:
		return t.String()
	case *ForwardReference:
		return "ForwardRef"
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// ValidToken reports whether token can key a catalog. Tokens must be
// non-nil and comparable.
func ValidToken(token any) bool {
	if token == nil {
		return false
	}
	if !reflect.TypeOf(token).Comparable() {
		return false
	}
	switch t := token.(type) {
	case string:
		return t != ""
	case *Type:
		return t != nil
	case *Symbol:
		return t != nil
	}
	return true
}
