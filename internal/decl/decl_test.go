package decl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScope(t *testing.T) {
	cases := map[string]Scope{
		"":           Singleton,
		"singleton":  Singleton,
		"REQUEST":    Request,
		" transient": Transient,
	}
	for in, want := range cases {
		got, err := ParseScope(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseScope("session")
	assert.ErrorContains(t, err, "unknown scope")
}

func TestType_AllMethodsWalksBaseChain(t *testing.T) {
	base := NewType("Base", nil, "Find", "Create")
	derived := base.Extend("Derived", nil, "Create", "Delete")

	assert.Equal(t, []string{"Create", "Delete", "Find"}, derived.AllMethods())
	assert.Equal(t, []string{"Find", "Create"}, base.AllMethods())
}

func TestIsFalsy(t *testing.T) {
	var nilType *Type
	assert.True(t, IsFalsy(nilType))
	assert.True(t, IsFalsy(""))
	assert.True(t, IsFalsy(0))
	assert.True(t, IsFalsy(false))
	assert.False(t, IsFalsy(nil), "untyped nil is undefined, not falsy")
	assert.False(t, IsFalsy(NewType("M", nil)))
	assert.False(t, IsFalsy("module"))
}

func TestIsModuleDeclaration(t *testing.T) {
	m := NewType("M", nil)
	var nilType *Type

	assert.True(t, IsModuleDeclaration(m))
	assert.True(t, IsModuleDeclaration(&DynamicModule{Module: m}))
	assert.True(t, IsModuleDeclaration(ForwardRef(func() any { return m })))
	assert.False(t, IsModuleDeclaration(Async(nil)))
	assert.False(t, IsModuleDeclaration(&DynamicModule{}))
	assert.False(t, IsModuleDeclaration(nilType))
	assert.False(t, IsModuleDeclaration("M"))
}

func TestPendingResult(t *testing.T) {
	t.Run("awaits once", func(t *testing.T) {
		awaits := 0
		p := Async(func(context.Context) (any, error) {
			awaits++
			return &DynamicModule{Module: NewType("M", nil)}, nil
		})

		first, err := p.Result(context.Background())
		require.NoError(t, err)
		second, err := p.Result(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, awaits)
		assert.Same(t, first, second)
	})

	t.Run("remembers a failure", func(t *testing.T) {
		errLoad := errors.New("load failed")
		awaits := 0
		p := Async(func(context.Context) (any, error) {
			awaits++
			return nil, errLoad
		})

		_, err := p.Result(context.Background())
		assert.ErrorIs(t, err, errLoad)
		_, err = p.Result(context.Background())
		assert.ErrorIs(t, err, errLoad)
		assert.Equal(t, 1, awaits)
	})

	t.Run("retries after cancellation", func(t *testing.T) {
		awaits := 0
		p := Async(func(ctx context.Context) (any, error) {
			awaits++
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return "ok", nil
		})
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := p.Result(cancelled)
		assert.ErrorIs(t, err, context.Canceled)
		v, err := p.Result(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
		assert.Equal(t, 2, awaits)
	})
}

func TestSameDeclaration(t *testing.T) {
	m := NewType("M", nil)
	dm := &DynamicModule{Module: m}

	assert.True(t, SameDeclaration(m, m))
	assert.True(t, SameDeclaration(dm, dm))
	assert.False(t, SameDeclaration(dm, &DynamicModule{Module: m}))
	assert.False(t, SameDeclaration(m, dm))
	assert.False(t, SameDeclaration([]int{1}, []int{1}))
	assert.False(t, SameDeclaration(nil, nil))
}

func TestTokenHelpers(t *testing.T) {
	sym := NewSymbol("db")
	svc := NewType("UsersService", nil)

	assert.Equal(t, "Symbol(db)", TokenName(sym))
	assert.Equal(t, "UsersService", TokenName(svc))
	assert.Equal(t, "CONFIG", TokenName("CONFIG"))

	assert.True(t, ValidToken(sym))
	assert.True(t, ValidToken("CONFIG"))
	assert.False(t, ValidToken(""))
	assert.False(t, ValidToken(nil))
	assert.False(t, ValidToken([]string{"x"}))
}

func TestProvideToken(t *testing.T) {
	svc := NewType("Svc", nil)

	tok, ok := ProvideToken(svc)
	assert.True(t, ok)
	assert.Equal(t, svc, tok)

	tok, ok = ProvideToken(&ValueProvider{Provide: "CONFIG", UseValue: 1})
	assert.True(t, ok)
	assert.Equal(t, "CONFIG", tok)
	assert.True(t, IsCustomProvider(&ExistingProvider{Provide: "A", UseExisting: "B"}))
	assert.False(t, IsCustomProvider(svc))

	_, ok = ProvideToken(42)
	assert.False(t, ok)
}

func TestHandle(t *testing.T) {
	h := &Handle{}
	assert.False(t, h.Ready())
	assert.Nil(t, h.Get())

	h.Set("instance")
	assert.True(t, h.Ready())
	assert.Equal(t, "instance", h.Get())
}
