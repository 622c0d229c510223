package diag

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vk/modgraph/internal/decl"
)

func TestErrorsMatchSentinels(t *testing.T) {
	app := decl.NewType("AppModule", nil)

	cases := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"undefined module", &UndefinedModuleError{Parent: app, Index: 1}, ErrUndefinedModule},
		{"invalid module", &InvalidModuleError{Parent: app, Index: 0}, ErrInvalidModule},
		{"invalid class", &InvalidClassModuleError{Declaration: app}, ErrInvalidClassModule},
		{"forward ref", &UndefinedForwardRefError{}, ErrCircularDependency},
		{"construction cycle", &CircularDependencyError{Chain: []string{"A", "B", "A"}}, ErrCircularDependency},
		{"unknown dependency", &UnknownDependenciesError{Unit: "X"}, ErrUnknownDependency},
		{"unknown export", &UnknownExportError{Token: "T", Module: "M"}, ErrUnknownExport},
		{"unknown module", &UnknownModuleError{Token: "abc"}, ErrUnknownModule},
		{"invalid provider", &InvalidProviderError{Module: "M"}, ErrInvalidProvider},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := fmt.Errorf("bootstrap failed: %w", tc.err)
			assert.ErrorIs(t, wrapped, tc.sentinel)
		})
	}
	assert.False(t, errors.Is(&InvalidModuleError{}, ErrUndefinedModule))
}

func TestUndefinedModuleError_CarriesPath(t *testing.T) {
	app := decl.NewType("AppModule", nil)
	users := decl.NewType("UsersModule", nil)

	err := &UndefinedModuleError{Parent: users, Index: 2, Scope: []any{app, users}}

	assert.Contains(t, err.Error(), "index [2]")
	assert.Contains(t, err.Error(), "UsersModule")
	assert.Contains(t, err.Error(), "Scope [AppModule -> UsersModule]")
}

func TestUnknownDependenciesError_MarksMissingArgument(t *testing.T) {
	err := &UnknownDependenciesError{
		Unit:         "CatsService",
		Dependencies: []string{"Logger", "CatsRepository"},
		Index:        1,
		Missing:      "CatsRepository",
		Module:       "CatsModule",
	}
	assert.Equal(t,
		"cannot resolve dependencies of CatsService (Logger, ?): make sure that the argument CatsRepository at index [1] is available in the CatsModule context",
		err.Error())

	prop := &UnknownDependenciesError{Unit: "CatsService", Property: "Cache", Missing: "CACHE", Module: "CatsModule"}
	assert.Contains(t, prop.Error(), `property "Cache"`)
}

func TestCircularDependencyError_Messages(t *testing.T) {
	chain := &CircularDependencyError{Chain: []string{"A", "B", "A"}}
	assert.Equal(t, "circular dependency detected: A -> B -> A", chain.Error())

	ctx := &CircularDependencyError{Context: "UsersModule"}
	assert.Contains(t, ctx.Error(), "inside UsersModule")

	scoped := &CircularDependencyError{Context: "UsersModule", Scope: []any{decl.NewType("AppModule", nil), decl.NewType("UsersModule", nil)}}
	assert.Contains(t, scoped.Error(), "Scope [AppModule -> UsersModule]")
}

func TestDeclarationName(t *testing.T) {
	m := decl.NewType("CacheModule", nil)
	assert.Equal(t, "CacheModule", DeclarationName(m))
	assert.Equal(t, "CacheModule", DeclarationName(&decl.DynamicModule{Module: m}))
	assert.Equal(t, "ForwardRef", DeclarationName(decl.ForwardRef(func() any { return m })))
	assert.Equal(t, "undefined", DeclarationName(nil))
	assert.Equal(t, "CacheModule -> ForwardRef", Path([]any{m, decl.ForwardRef(func() any { return nil })}))
}
