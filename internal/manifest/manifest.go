// Package manifest declares module graphs in HCL. A manifest names the
// root module and describes modules, their providers and imports in terms
// of the types, tokens, factories and builders compiled-in modules
// register with the registry.
//
//	root = "AppModule"
//
//	module "AppModule" {
//	  imports = ["PrintModule"]
//
//	  provider "PORT" {
//	    value = 8080
//	  }
//
//	  import "envconfig" {
//	    params = { prefix = "APP_" }
//	  }
//	}
package manifest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/modgraph/internal/ctxlog"
	"github.com/vk/modgraph/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Manifest is the merged content of one or more manifest files.
type Manifest struct {
	Root    string
	Modules []*ModuleBlock
	Files   []string

	byName  map[string]*ModuleBlock
	evalCtx *hcl.EvalContext
}

// Module returns the module block declared under name.
func (m *Manifest) Module(name string) (*ModuleBlock, bool) {
	b, ok := m.byName[name]
	return b, ok
}

// Load parses every .hcl file found under paths and merges them into one
// manifest. Directories are searched recursively. Module names must be
// unique across files and exactly one file must set root.
func Load(ctx context.Context, paths ...string) (*Manifest, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Manifest loader started.", "path_count", len(paths))

	files, err := fsutil.FindFiles(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl manifest files found in %s", strings.Join(paths, ", "))
	}
	logger.Debug("Discovered manifest files.", "count", len(files))

	m := &Manifest{
		Files:   files,
		byName:  make(map[string]*ModuleBlock),
		evalCtx: newEvalContext(os.Environ()),
	}
	parser := hclparse.NewParser()
	var rootFile string

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse manifest file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, m.evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode manifest file %s: %w", file, diags)
		}

		if root.Root != "" {
			if m.Root != "" {
				return nil, fmt.Errorf("root is set in both %s and %s", rootFile, file)
			}
			m.Root, rootFile = root.Root, file
		}
		for _, mod := range root.Modules {
			if prev, ok := m.byName[mod.Name]; ok {
				return nil, fmt.Errorf("module '%s' is declared in both %s and %s", mod.Name, prev.file, file)
			}
			mod.file = file
			m.byName[mod.Name] = mod
			m.Modules = append(m.Modules, mod)
		}
	}

	if m.Root == "" {
		return nil, errors.New("no manifest file sets root")
	}
	if _, ok := m.byName[m.Root]; !ok {
		return nil, fmt.Errorf("root module '%s' is not declared in the manifest", m.Root)
	}
	logger.Debug("Manifest loading complete.", "root", m.Root, "modules", len(m.Modules))
	return m, nil
}

// newEvalContext exposes the process environment as `env` and a small
// set of string functions to manifest expressions.
func newEvalContext(environ []string) *hcl.EvalContext {
	env := make(map[string]cty.Value, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok && k != "" {
			env[k] = cty.StringVal(v)
		}
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": cty.ObjectVal(env)},
		Functions: map[string]function.Function{
			"upper":    stdlib.UpperFunc,
			"lower":    stdlib.LowerFunc,
			"format":   stdlib.FormatFunc,
			"coalesce": stdlib.CoalesceFunc,
			"tonumber": stdlib.MakeToFunc(cty.Number),
		},
	}
}
