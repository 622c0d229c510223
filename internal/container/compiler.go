package container

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/diag"
)

// Compiled is the canonical form of a module declaration.
type Compiled struct {
	Type    *decl.Type
	Dynamic *decl.DynamicModule
	Token   string
}

// Compiler normalizes module declarations and derives identity tokens.
type Compiler struct {
	tokens *TokenFactory
}

// NewCompiler returns a Compiler with a fresh TokenFactory.
func NewCompiler() *Compiler {
	return &Compiler{tokens: NewTokenFactory()}
}

// Compile normalizes a type, dynamic module or pending declaration.
// Forward references must be resolved by the caller.
func (c *Compiler) Compile(ctx context.Context, declaration any) (*Compiled, error) {
	switch d := declaration.(type) {
	case *decl.Type:
		if d == nil {
			break
		}
		return &Compiled{Type: d, Token: c.tokens.Create(d, nil)}, nil
	case *decl.DynamicModule:
		if d == nil || d.Module == nil {
			break
		}
		return &Compiled{Type: d.Module, Dynamic: d, Token: c.tokens.Create(d.Module, d)}, nil
	case *decl.Pending:
		if !decl.IsPending(d) {
			break
		}
		resolved, err := d.Result(ctx)
		if err != nil {
			return nil, fmt.Errorf("awaiting pending module declaration: %w", err)
		}
		if decl.IsPending(resolved) {
			return nil, &diag.InvalidModuleError{Parent: declaration}
		}
		return c.Compile(ctx, resolved)
	}
	return nil, &diag.InvalidModuleError{Parent: declaration}
}

// TokenFactory derives module identity tokens. Every declared type gets a
// random per-process seed; dynamic modules hash that seed together with a
// canonical rendering of their parameters and inline metadata.
type TokenFactory struct {
	mu    sync.Mutex
	seeds map[any]string
}

// NewTokenFactory returns an empty TokenFactory.
func NewTokenFactory() *TokenFactory {
	return &TokenFactory{seeds: make(map[any]string)}
}

// Create returns the identity token for t with optional dynamic extras.
func (f *TokenFactory) Create(t *decl.Type, dm *decl.DynamicModule) string {
	if dm != nil && dm.Key != "" {
		return dm.Key
	}
	seed := f.seed(t)
	if dm == nil || !hasDynamicContent(dm) {
		return seed
	}
	var b strings.Builder
	b.WriteString(seed)
	b.WriteString("|")
	b.WriteString(t.Name)
	b.WriteString("|")
	f.render(&b, map[string]any{
		"params":      dm.Params,
		"imports":     dm.Imports,
		"providers":   dm.Providers,
		"exports":     dm.Exports,
		"controllers": dm.Controllers,
		"global":      dm.Global,
	})
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func hasDynamicContent(dm *decl.DynamicModule) bool {
	return len(dm.Params) > 0 || len(dm.Imports) > 0 || len(dm.Providers) > 0 ||
		len(dm.Exports) > 0 || len(dm.Controllers) > 0 || dm.Global
}

func (f *TokenFactory) seed(key any) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.seeds[key]; ok {
		return s
	}
	s := uuid.NewString()
	f.seeds[key] = s
	return s
}

// render writes a deterministic rendering of v. Declared types, symbols and
// pending declarations render by identity, provider declarations and dynamic modules by
// structure, and functions by their position only.
func (f *TokenFactory) render(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case string:
		b.WriteString(strconv.Quote(x))
	case bool:
		b.WriteString(strconv.FormatBool(x))
	case *decl.Type:
		if x == nil {
			b.WriteString("null")
			return
		}
		fmt.Fprintf(b, "type(%s#%s)", x.Name, f.seed(x))
	case *decl.Symbol:
		if x == nil {
			b.WriteString("null")
			return
		}
		fmt.Fprintf(b, "symbol(%s#%s)", x.Description, f.seed(x))
	case *decl.ForwardReference:
		b.WriteString("forwardRef")
	case *decl.Pending:
		if x == nil {
			b.WriteString("null")
			return
		}
		fmt.Fprintf(b, "pending(#%s)", f.seed(x))
	case *decl.DynamicModule:
		if x == nil {
			b.WriteString("null")
			return
		}
		b.WriteString("dynamic")
		f.render(b, map[string]any{
			"module":      x.Module,
			"params":      x.Params,
			"imports":     x.Imports,
			"providers":   x.Providers,
			"exports":     x.Exports,
			"controllers": x.Controllers,
			"global":      x.Global,
			"key":         x.Key,
		})
	case *decl.ClassProvider:
		f.render(b, map[string]any{"provide": x.Provide, "useClass": x.UseClass, "scope": x.Scope.String(), "inject": x.Inject})
	case *decl.ValueProvider:
		f.render(b, map[string]any{"provide": x.Provide, "useValue": x.UseValue})
	case *decl.FactoryProvider:
		f.render(b, map[string]any{"provide": x.Provide, "useFactory": "fn", "scope": x.Scope.String(), "inject": x.Inject})
	case *decl.ExistingProvider:
		f.render(b, map[string]any{"provide": x.Provide, "useExisting": x.UseExisting})
	default:
		f.renderValue(b, reflect.ValueOf(v))
	}
}

func (f *TokenFactory) renderValue(b *strings.Builder, rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Invalid:
		b.WriteString("null")
	case reflect.Map:
		keys := rv.MapKeys()
		rendered := make([]string, 0, len(keys))
		byKey := make(map[string]reflect.Value, len(keys))
		for _, k := range keys {
			s := fmt.Sprint(k.Interface())
			rendered = append(rendered, s)
			byKey[s] = rv.MapIndex(k)
		}
		sort.Strings(rendered)
		b.WriteString("{")
		for i, k := range rendered {
			if i > 0 {
				b.WriteString(",")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(":")
			f.render(b, byKey[k].Interface())
		}
		b.WriteString("}")
	case reflect.Slice, reflect.Array:
		b.WriteString("[")
		for i := 0; i < rv.Len(); i++ {
			if i > 0 {
				b.WriteString(",")
			}
			f.render(b, rv.Index(i).Interface())
		}
		b.WriteString("]")
	case reflect.Struct:
		b.WriteString(rv.Type().String())
		b.WriteString("{")
		for i := 0; i < rv.NumField(); i++ {
			field := rv.Type().Field(i)
			if !field.IsExported() {
				continue
			}
			b.WriteString(field.Name)
			b.WriteString(":")
			f.render(b, rv.Field(i).Interface())
			b.WriteString(";")
		}
		b.WriteString("}")
	case reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if rv.IsNil() {
			b.WriteString("null")
			return
		}
		if rv.Kind() == reflect.Func {
			b.WriteString("fn")
			return
		}
		fmt.Fprintf(b, "ref(%s#%s)", rv.Type().String(), f.seed(rv.Interface()))
	case reflect.Interface:
		if rv.IsNil() {
			b.WriteString("null")
			return
		}
		f.render(b, rv.Elem().Interface())
	default:
		fmt.Fprintf(b, "%s(%v)", rv.Kind(), rv.Interface())
	}
}
