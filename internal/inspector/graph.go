package inspector

import (
	"fmt"
	"sync"

	"github.com/vk/modgraph/internal/container"
	"github.com/vk/modgraph/internal/decl"
)

// Graph statuses.
const (
	StatusComplete = "complete"
	StatusPartial  = "partial"
)

// Node types.
const (
	NodeModule = "module"
	NodeClass  = "class"
)

// Edge types.
const (
	EdgeModuleToModule = "module-to-module"
	EdgeClassToClass   = "class-to-class"
)

// Node is one vertex of the snapshot graph.
type Node struct {
	ID       string         `json:"id" yaml:"id"`
	Label    string         `json:"label" yaml:"label"`
	Type     string         `json:"type" yaml:"type"`
	Parent   string         `json:"parent,omitempty" yaml:"parent,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Edge is one directed relation of the snapshot graph.
type Edge struct {
	ID       string         `json:"id" yaml:"id"`
	Source   string         `json:"source" yaml:"source"`
	Target   string         `json:"target" yaml:"target"`
	Type     string         `json:"type" yaml:"type"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// AttachedEnhancer links an enhancer node to the class that uses it.
type AttachedEnhancer struct {
	NodeID    string `json:"nodeId" yaml:"nodeId"`
	ClassName string `json:"className" yaml:"className"`
	MethodKey string `json:"methodKey,omitempty" yaml:"methodKey,omitempty"`
	Subtype   string `json:"subtype" yaml:"subtype"`
}

// OrphanedEnhancer is an enhancer declared as an instance, with no node.
type OrphanedEnhancer struct {
	Ref       string `json:"ref" yaml:"ref"`
	ClassName string `json:"className" yaml:"className"`
	MethodKey string `json:"methodKey,omitempty" yaml:"methodKey,omitempty"`
	Subtype   string `json:"subtype" yaml:"subtype"`
}

// Extras holds graph data that is not part of the node/edge set.
type Extras struct {
	AttachedEnhancers []AttachedEnhancer `json:"attachedEnhancers" yaml:"attachedEnhancers"`
	OrphanedEnhancers []OrphanedEnhancer `json:"orphanedEnhancers" yaml:"orphanedEnhancers"`
}

// Snapshot is the serializable state of the recorded graph.
type Snapshot struct {
	Nodes  []Node `json:"nodes" yaml:"nodes"`
	Edges  []Edge `json:"edges" yaml:"edges"`
	Extras Extras `json:"extras" yaml:"extras"`
	Status string `json:"status" yaml:"status"`
	Cause  string `json:"cause,omitempty" yaml:"cause,omitempty"`
}

// Node returns the node with id.
func (s *Snapshot) Node(id string) (Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// EdgesOfType returns the edges of one type.
func (s *Snapshot) EdgesOfType(typ string) []Edge {
	var out []Edge
	for _, e := range s.Edges {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Graph is the recording Inspector.
type Graph struct {
	mu        sync.Mutex
	nodes     []Node
	nodeIndex map[string]int
	edges     []Edge
	edgeIndex map[string]int
	entries   []EnhancerEntry
	extras    Extras
	status    string
	cause     error
}

var _ Inspector = (*Graph)(nil)

// NewGraph returns an empty recording inspector.
func NewGraph() *Graph {
	return &Graph{
		nodeIndex: make(map[string]int),
		edgeIndex: make(map[string]int),
		status:    StatusComplete,
	}
}

// InsertEnhancerMetadata caches an enhancer entry until modules are
// inspected.
func (g *Graph) InsertEnhancerMetadata(entry EnhancerEntry) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = append(g.entries, entry)
}

// InspectModules records module nodes, class nodes, import edges and the
// cached enhancer entries.
func (g *Graph) InspectModules(modules []*container.Module) {
	for _, m := range modules {
		g.insertModuleNode(m)
		g.insertClassNodes(m)
		g.insertModuleToModuleEdges(m)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	for _, entry := range g.entries {
		g.insertEnhancerEdge(entry)
	}
	g.entries = nil
}

// InspectInstanceWrapper records class-to-class edges for the resolved
// dependencies of w.
func (g *Graph) InspectInstanceWrapper(w *container.InstanceWrapper, m *container.Module) {
	for i, dep := range w.CtorMetadata() {
		if dep == nil {
			continue
		}
		g.insertClassToClassEdge(w, dep, m, i, "constructor")
	}
	for _, p := range w.Properties {
		if dep, ok := w.PropertyMetadata(p.Field); ok {
			g.insertClassToClassEdge(w, dep, m, p.Field, "property")
		}
	}
}

// RegisterPartial marks the graph as partial, recording the failure.
func (g *Graph) RegisterPartial(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = StatusPartial
	g.cause = err
}

// Snapshot returns a copy of the recorded graph.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := &Snapshot{
		Nodes:  append([]Node{}, g.nodes...),
		Edges:  append([]Edge{}, g.edges...),
		Status: g.status,
		Extras: Extras{
			AttachedEnhancers: append([]AttachedEnhancer{}, g.extras.AttachedEnhancers...),
			OrphanedEnhancers: append([]OrphanedEnhancer{}, g.extras.OrphanedEnhancers...),
		},
	}
	if g.cause != nil {
		s.Cause = g.cause.Error()
	}
	return s
}

// Err returns the failure registered with RegisterPartial.
func (g *Graph) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cause
}

func (g *Graph) insertModuleNode(m *container.Module) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.upsertNode(Node{
		ID:    m.ID(),
		Label: m.Name(),
		Type:  NodeModule,
		Metadata: map[string]any{
			"token":    m.Token(),
			"global":   m.IsGlobal(),
			"distance": m.Distance(),
		},
	})
}

func (g *Graph) insertClassNodes(m *container.Module) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, group := range [][]*container.InstanceWrapper{m.Providers(), m.Controllers(), m.Injectables()} {
		for _, w := range group {
			meta := map[string]any{
				"type":         string(w.Kind),
				"token":        w.Name,
				"scope":        w.Scope.String(),
				"sourceModule": m.Name(),
				"internal":     w.Token == any(container.ModuleRefToken),
				"static":       w.IsStatic(),
			}
			if w.Subtype != "" {
				meta["subtype"] = w.Subtype
			}
			if w.Kind != container.KindInjectable {
				if enh := w.Enhancers(); len(enh) > 0 {
					ids := make([]string, 0, len(enh))
					for _, e := range enh {
						ids = append(ids, e.ID)
					}
					meta["enhancers"] = ids
				}
			}
			g.upsertNode(Node{ID: w.ID, Label: w.Name, Type: NodeClass, Parent: m.ID(), Metadata: meta})
		}
	}
}

func (g *Graph) insertModuleToModuleEdges(m *container.Module) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, imp := range m.Imports() {
		g.insertEdge(Edge{
			ID:     m.ID() + "->" + imp.ID(),
			Source: m.ID(),
			Target: imp.ID(),
			Type:   EdgeModuleToModule,
			Metadata: map[string]any{
				"sourceModuleName": m.Name(),
				"targetModuleName": imp.Name(),
			},
		})
	}
}

func (g *Graph) insertClassToClassEdge(source, target *container.InstanceWrapper, m *container.Module, keyOrIndex any, injection string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	targetModule := ""
	if target.Host != nil {
		targetModule = target.Host.Name()
	}
	g.insertEdge(Edge{
		ID:     fmt.Sprintf("%s->%s@%v", source.ID, target.ID, keyOrIndex),
		Source: source.ID,
		Target: target.ID,
		Type:   EdgeClassToClass,
		Metadata: map[string]any{
			"sourceModuleName": m.Name(),
			"sourceClassName":  source.Name,
			"targetClassName":  target.Name,
			"targetModuleName": targetModule,
			"keyOrIndex":       keyOrIndex,
			"injectionType":    injection,
		},
	})
}

// insertEnhancerEdge must be called with g.mu held.
func (g *Graph) insertEnhancerEdge(entry EnhancerEntry) {
	className := entry.ClassRef.String()
	if entry.Wrapper == nil {
		g.extras.OrphanedEnhancers = append(g.extras.OrphanedEnhancers, OrphanedEnhancer{
			Ref:       decl.TokenName(entry.EnhancerRef),
			ClassName: className,
			MethodKey: entry.MethodKey,
			Subtype:   entry.Subtype,
		})
		return
	}
	g.extras.AttachedEnhancers = append(g.extras.AttachedEnhancers, AttachedEnhancer{
		NodeID:    entry.Wrapper.ID,
		ClassName: className,
		MethodKey: entry.MethodKey,
		Subtype:   entry.Subtype,
	})
}

// upsertNode must be called with g.mu held.
func (g *Graph) upsertNode(n Node) {
	if i, ok := g.nodeIndex[n.ID]; ok {
		g.nodes[i] = n
		return
	}
	g.nodeIndex[n.ID] = len(g.nodes)
	g.nodes = append(g.nodes, n)
}

// insertEdge must be called with g.mu held.
func (g *Graph) insertEdge(e Edge) {
	if i, ok := g.edgeIndex[e.ID]; ok {
		g.edges[i] = e
		return
	}
	g.edgeIndex[e.ID] = len(g.edges)
	g.edges = append(g.edges, e)
}
