package app

import (
	"github.com/vk/modgraph/internal/registry"
	"github.com/vk/modgraph/modules/envconfig"
	"github.com/vk/modgraph/modules/httpclient"
	"github.com/vk/modgraph/modules/print"
)

// coreModules is the definitive list of all modules that are compiled into
// the modgraph binary.
var coreModules = []registry.Module{
	&envconfig.Module{},
	&print.Module{},
	&httpclient.Module{},
}
