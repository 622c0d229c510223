package registry

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/metadata"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Validate performs a strict consistency check over the registered Go code:
// injectable types need constructors, factories need functions and known
// default tokens, and builder params must map onto cty types.
func (r *Registry) Validate(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	for _, name := range sortedKeys(r.types) {
		t := r.types[name]
		if (metadata.IsInjectable(r.table, t) || metadata.IsController(r.table, t)) && t.New == nil {
			errs = append(errs, fmt.Sprintf("type '%s': declared injectable but has no constructor", name))
		}
	}

	for _, name := range sortedKeys(r.factories) {
		f := r.factories[name]
		if f.Fn == nil {
			errs = append(errs, fmt.Sprintf("factory '%s': no function registered", name))
		}
		for _, dep := range f.Inject {
			if _, ok := r.tokens[dep]; !ok {
				errs = append(errs, fmt.Sprintf("factory '%s': default dependency '%s' is not a registered token", name, dep))
			}
		}
	}

	for _, name := range sortedKeys(r.builders) {
		b := r.builders[name]
		if b.Build == nil {
			errs = append(errs, fmt.Sprintf("builder '%s': no build function registered", name))
		}
		if b.NewParams == nil {
			continue
		}
		fields, err := paramFields(b.NewParams())
		if err != nil {
			errs = append(errs, fmt.Sprintf("builder '%s': %v", name, err))
			continue
		}
		for _, param := range sortedKeys(fields) {
			field := fields[param]
			if _, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface()); err != nil {
				errs = append(errs, fmt.Sprintf("builder '%s', param '%s': could not imply cty type from Go field type %s: %v", name, param, field.Type, err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	logger.Debug("Registry validated.", "types", len(r.types), "factories", len(r.factories), "builders", len(r.builders))
	return nil
}

// Build runs the builder registered under name with manifest params. The
// params object must match the builder's Go struct: every attribute must
// name a `cty` tagged field and convert to its type, and every non-nillable
// field must be present.
func (r *Registry) Build(ctx context.Context, name string, params cty.Value) (any, error) {
	b, ok := r.builders[name]
	if !ok {
		return nil, fmt.Errorf("no builder registered under '%s'", name)
	}
	if params.IsNull() {
		params = cty.EmptyObjectVal
	}
	if !params.Type().IsObjectType() && !params.Type().IsMapType() {
		return nil, fmt.Errorf("builder '%s': params must be an object, got %s", name, params.Type().FriendlyName())
	}
	if b.NewParams == nil {
		if params.LengthInt() > 0 {
			return nil, fmt.Errorf("builder '%s' takes no params", name)
		}
		return b.Build(nil)
	}

	target := b.NewParams()
	fields, err := paramFields(target)
	if err != nil {
		return nil, fmt.Errorf("builder '%s': %w", name, err)
	}

	var errs []string
	converted := make(map[string]cty.Value, len(fields))
	for it := params.ElementIterator(); it.Next(); {
		k, val := it.Element()
		param := k.AsString()
		field, ok := fields[param]
		if !ok {
			errs = append(errs, fmt.Sprintf("manifest passes param '%s' which is not found in Go struct", param))
			continue
		}
		ty, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface())
		if err != nil {
			errs = append(errs, fmt.Sprintf("param '%s': %v", param, err))
			continue
		}
		if ty.Equals(cty.DynamicPseudoType) {
			ctxlog.FromContext(ctx).Warn("Builder param has a dynamic Go type, which disables static type checking.", "builder", name, "param", param)
		}
		cv, err := convert.Convert(val, ty)
		if err != nil {
			errs = append(errs, fmt.Sprintf("param '%s': type mismatch. Go struct field '%s' requires '%s': %v", param, field.Name, ty.FriendlyName(), err))
			continue
		}
		converted[param] = cv
	}
	for _, param := range sortedKeys(fields) {
		if _, ok := converted[param]; ok {
			continue
		}
		field := fields[param]
		switch field.Type.Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
			ty, err := gocty.ImpliedType(reflect.Zero(field.Type).Interface())
			if err == nil {
				converted[param] = cty.NullVal(ty)
			}
		default:
			errs = append(errs, fmt.Sprintf("Go struct requires param '%s' which the manifest does not pass", param))
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return nil, fmt.Errorf("builder '%s': invalid params:\n- %s", name, strings.Join(errs, "\n- "))
	}

	if err := gocty.FromCtyValue(cty.ObjectVal(converted), target); err != nil {
		return nil, fmt.Errorf("builder '%s': decoding params: %w", name, err)
	}
	return b.Build(target)
}

// paramFields returns the `cty` tagged exported fields of a params struct
// pointer, keyed by tag name.
func paramFields(params any) (map[string]reflect.StructField, error) {
	rt := reflect.TypeOf(params)
	if rt == nil || rt.Kind() != reflect.Pointer || rt.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("params must be a pointer to a struct, got %T", params)
	}
	rt = rt.Elem()
	fields := make(map[string]reflect.StructField)
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := strings.Split(field.Tag.Get("cty"), ",")[0]
		if tag != "" && tag != "-" {
			fields[tag] = field
		}
	}
	return fields, nil
}
