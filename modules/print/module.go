// Package print provides a Printer provider and a LoggingInterceptor
// enhancer that reports the units it wraps through the Printer.
package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/decl"
	"github.com/vk/modgraph/internal/metadata"
	"github.com/vk/modgraph/internal/registry"
)

var (
	// OutputToken optionally overrides the Printer's writer. It must be
	// visible from PrintModule, typically through a global module.
	OutputToken     = decl.NewSymbol("PRINT_OUTPUT")
	PrinterType     = decl.NewType("Printer", newPrinter, "Print")
	InterceptorType = decl.NewType("LoggingInterceptor", newInterceptor, "Intercept")
	ModuleType      = decl.NewType("PrintModule", nil)
)

// Printer writes key/value listings to its output.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(_ context.Context, deps []any) (any, error) {
	if w, ok := deps[0].(io.Writer); ok {
		return &Printer{w: w}, nil
	}
	return &Printer{w: os.Stdout}, nil
}

// Print writes values sorted by key, one per line.
func (p *Printer) Print(values map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if values == nil {
		_, err := fmt.Fprintln(p.w, "      (null)")
		return err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := fmt.Fprintf(p.w, "      %s = %#v\n", k, values[k]); err != nil {
			return err
		}
	}
	return nil
}

// LoggingInterceptor reports every call it wraps.
type LoggingInterceptor struct {
	printer *Printer
}

func newInterceptor(_ context.Context, deps []any) (any, error) {
	p, ok := deps[0].(*Printer)
	if !ok {
		return nil, fmt.Errorf("print: expected *Printer, got %T", deps[0])
	}
	return &LoggingInterceptor{printer: p}, nil
}

// Intercept runs next and prints its name, outcome and duration.
func (i *LoggingInterceptor) Intercept(ctx context.Context, name string, next func(context.Context) (any, error)) (any, error) {
	start := time.Now()
	out, err := next(ctx)
	elapsed := time.Since(start)
	ctxlog.FromContext(ctx).Debug("Intercepted call.", "name", name, "duration", elapsed, "error", err)

	status := "ok"
	if err != nil {
		status = err.Error()
	}
	if perr := i.printer.Print(map[string]any{"call": name, "status": status}); perr != nil {
		return out, perr
	}
	return out, err
}

// Declare records PrintModule and its providers in table. It is safe to
// call more than once.
func Declare(table *metadata.Table) {
	if metadata.IsInjectable(table, PrinterType) {
		return
	}
	table.DeclareInjectable(PrinterType, metadata.InjectableOptions{Inject: []any{OutputToken}, Optional: []int{0}})
	table.DeclareInjectable(InterceptorType, metadata.InjectableOptions{Inject: []any{PrinterType}})
	table.DeclareModule(ModuleType, metadata.ModuleOptions{
		Providers: []any{PrinterType, InterceptorType},
		Exports:   []any{PrinterType, InterceptorType},
	})
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers PrintModule, its provider types and the output token.
func (m *Module) Register(r *registry.Registry) {
	Declare(r.Table())
	r.RegisterType(ModuleType)
	r.RegisterType(PrinterType)
	r.RegisterType(InterceptorType)
	r.RegisterToken("PRINT_OUTPUT", OutputToken)
}
