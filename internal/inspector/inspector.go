package inspector

import (
	"github.com/vk/modgraph/internal/container"
	"github.com/vk/modgraph/internal/decl"
)

// EnhancerEntry describes one enhancer declaration found by the scanner.
// Wrapper is nil for enhancers declared as ready-made instances.
type EnhancerEntry struct {
	ModuleToken string
	ClassRef    *decl.Type
	MethodKey   string
	Subtype     string
	Wrapper     *container.InstanceWrapper
	EnhancerRef any
}

// Inspector observes the bootstrap.
type Inspector interface {
	InsertEnhancerMetadata(entry EnhancerEntry)
	InspectInstanceWrapper(w *container.InstanceWrapper, m *container.Module)
	InspectModules(modules []*container.Module)
	RegisterPartial(err error)
	Snapshot() *Snapshot
}

// Noop discards everything.
type Noop struct{}

var _ Inspector = Noop{}

func (Noop) InsertEnhancerMetadata(EnhancerEntry)                                 {}
func (Noop) InspectInstanceWrapper(*container.InstanceWrapper, *container.Module) {}
func (Noop) InspectModules([]*container.Module)                                   {}
func (Noop) RegisterPartial(error)                                                {}
func (Noop) Snapshot() *Snapshot                                                  { return nil }
