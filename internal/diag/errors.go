// Package diag defines the fatal bootstrap errors. Every error carries the
// offending token, the module import path or the cycle chain so a failed
// bootstrap can be diagnosed from the message alone. Each type matches one
// sentinel through errors.Is.
package diag

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vk/modgraph/internal/decl"
)

var (
	ErrUndefinedModule     = errors.New("undefined module")
	ErrInvalidModule       = errors.New("invalid module")
	ErrInvalidClassModule  = errors.New("invalid class as module")
	ErrCircularDependency  = errors.New("circular dependency")
	ErrUnknownDependency   = errors.New("unknown dependency")
	ErrUnknownExport       = errors.New("unknown export")
	ErrUnknownModule       = errors.New("unknown module")
	ErrInvalidProvider     = errors.New("invalid provider")
	ErrScopeNotResolvable  = errors.New("scope not resolvable without context")
	ErrUnsupportedProperty = errors.New("unsupported property injection")
)

// Path renders a traversal scope of module declarations.
func Path(scope []any) string {
	names := make([]string, 0, len(scope))
	for _, s := range scope {
		names = append(names, DeclarationName(s))
	}
	return strings.Join(names, " -> ")
}

// DeclarationName renders a module declaration of any shape.
func DeclarationName(d any) string {
	switch v := d.(type) {
	case nil:
		return "undefined"
	case *decl.DynamicModule:
		if v == nil || v.Module == nil {
			return "DynamicModule(<nil>)"
		}
		return v.Module.Name
	case *decl.ForwardReference:
		return "ForwardRef"
	case *decl.Pending:
		return "Pending"
	}
	return decl.TokenName(d)
}

// UndefinedModuleError reports an import position that evaluated to nil,
// typically an unresolved mutual reference between module declarations.
type UndefinedModuleError struct {
	Parent any
	Index  int
	Scope  []any
}

func (e *UndefinedModuleError) Error() string {
	return fmt.Sprintf("cannot create the module instance: the module at index [%d] of the %s \"imports\" array is undefined "+
		"(potential causes: a circular dependency between modules, use ForwardRef to avoid it; "+
		"the module at index [%d] is of an unexpected type). Scope [%s]",
		e.Index, DeclarationName(e.Parent), e.Index, Path(e.Scope))
}

func (e *UndefinedModuleError) Is(target error) bool { return target == ErrUndefinedModule }

// InvalidModuleError reports an import position holding a zero value.
type InvalidModuleError struct {
	Parent any
	Index  int
	Scope  []any
}

func (e *InvalidModuleError) Error() string {
	return fmt.Sprintf("cannot create the module instance: the module at index [%d] of the %s \"imports\" array is invalid "+
		"(check that every import is a module type, a dynamic module, a forward reference or a pending declaration). Scope [%s]",
		e.Index, DeclarationName(e.Parent), Path(e.Scope))
}

func (e *InvalidModuleError) Is(target error) bool { return target == ErrInvalidModule }

// InvalidClassModuleError reports a provider, controller or exception
// filter type supplied where a module was expected.
type InvalidClassModuleError struct {
	Declaration any
	Scope       []any
}

func (e *InvalidClassModuleError) Error() string {
	return fmt.Sprintf("classes annotated as injectable, controller or exception filter cannot be used as modules: %q is not a module. Scope [%s]",
		DeclarationName(e.Declaration), Path(e.Scope))
}

func (e *InvalidClassModuleError) Is(target error) bool { return target == ErrInvalidClassModule }

// UndefinedForwardRefError reports a module declaration that could not be
// resolved because a forward reference yielded nothing.
type UndefinedForwardRefError struct {
	Scope []any
}

func (e *UndefinedForwardRefError) Error() string {
	return fmt.Sprintf("cannot create the module instance: often this is because of a circular dependency between modules, "+
		"use ForwardRef to avoid it. Scope [%s]", Path(e.Scope))
}

func (e *UndefinedForwardRefError) Is(target error) bool { return target == ErrCircularDependency }

// CircularDependencyError reports a cycle, either between module imports
// (Context names the importing module, Scope is its import path from the
// root) or between constructors (Chain lists the cycle, first element
// repeated at the end).
type CircularDependencyError struct {
	Context string
	Scope   []any
	Chain   []string
}

func (e *CircularDependencyError) Error() string {
	if len(e.Chain) > 0 {
		return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Chain, " -> "))
	}
	return fmt.Sprintf("a circular dependency has been detected inside %s: make sure every side of a bidirectional "+
		"relationship uses ForwardRef, and that no import position is left undefined. Scope [%s]", e.Context, Path(e.Scope))
}

func (e *CircularDependencyError) Is(target error) bool { return target == ErrCircularDependency }

// UnknownDependenciesError reports a dependency token with no provider
// visible from the requesting module.
type UnknownDependenciesError struct {
	Unit         string
	Dependencies []string
	Index        int
	Property     string
	Missing      string
	Module       string
}

func (e *UnknownDependenciesError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("cannot resolve dependencies of %s: make sure that the property %q (token %s) is available in the %s context",
			e.Unit, e.Property, e.Missing, e.Module)
	}
	args := make([]string, len(e.Dependencies))
	for i, d := range e.Dependencies {
		if i == e.Index {
			args[i] = "?"
			continue
		}
		args[i] = d
	}
	return fmt.Sprintf("cannot resolve dependencies of %s (%s): make sure that the argument %s at index [%d] is available in the %s context",
		e.Unit, strings.Join(args, ", "), e.Missing, e.Index, e.Module)
}

func (e *UnknownDependenciesError) Is(target error) bool { return target == ErrUnknownDependency }

// UnknownExportError reports an exported token that is neither a provider
// of the module nor one of its imported modules.
type UnknownExportError struct {
	Token  string
	Module string
}

func (e *UnknownExportError) Error() string {
	return fmt.Sprintf("cannot export a provider or module that is not part of the currently processed module (%s): "+
		"make sure that %s is a provider or an imported module of %s", e.Module, e.Token, e.Module)
}

func (e *UnknownExportError) Is(target error) bool { return target == ErrUnknownExport }

// UnknownModuleError reports a registry operation on a module token that
// was never added.
type UnknownModuleError struct {
	Token string
}

func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("module %s is not registered in the container", e.Token)
}

func (e *UnknownModuleError) Is(target error) bool { return target == ErrUnknownModule }

// InvalidProviderError reports a provider declaration that cannot be
// cataloged.
type InvalidProviderError struct {
	Module   string
	Provider any
	Reason   string
}

func (e *InvalidProviderError) Error() string {
	return fmt.Sprintf("invalid provider %s in module %s: %s", decl.TokenName(e.Provider), e.Module, e.Reason)
}

func (e *InvalidProviderError) Is(target error) bool { return target == ErrInvalidProvider }
