package manifest

import "github.com/hashicorp/hcl/v2"

// fileRoot decodes the top-level content of a single manifest file.
type fileRoot struct {
	Root    string         `hcl:"root,optional"`
	Modules []*ModuleBlock `hcl:"module,block"`
}

// ModuleBlock declares one module. Names in Imports, Exports and
// Controllers refer to other manifest modules or to names registered by
// compiled-in modules.
type ModuleBlock struct {
	Name        string           `hcl:"name,label"`
	Global      bool             `hcl:"global,optional"`
	Imports     []string         `hcl:"imports,optional"`
	Exports     []string         `hcl:"exports,optional"`
	Controllers []string         `hcl:"controllers,optional"`
	Providers   []*ProviderBlock `hcl:"provider,block"`
	Dynamic     []*ImportBlock   `hcl:"import,block"`

	file string
}

// ProviderBlock declares a provider under the token named by its label.
// At most one of Type, Value, Existing and Factory may be set; with none
// set the label itself names the provider type.
type ProviderBlock struct {
	Token    string         `hcl:"token,label"`
	Type     string         `hcl:"type,optional"`
	Value    hcl.Expression `hcl:"value,optional"`
	Existing string         `hcl:"existing,optional"`
	Factory  string         `hcl:"factory,optional"`
	Inject   []string       `hcl:"inject,optional"`
	Scope    string         `hcl:"scope,optional"`
}

// ImportBlock imports a module that takes parameters, typically a
// dynamic module produced by a registered builder.
type ImportBlock struct {
	Name   string         `hcl:"name,label"`
	Params hcl.Expression `hcl:"params,optional"`
}
