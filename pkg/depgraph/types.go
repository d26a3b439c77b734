// Package depgraph builds the typed dependency graph for one container
// version: variables, tags, triggers and, for server containers, clients and
// transformations, linked by the references discovered in their bodies.
//
// The graph is derived state. It is rebuilt for every analysis run and never
// persisted.
package depgraph

// Set is an insertion-ordered string set. Path search returns the first hit in
// edge-insertion order, so edge containers must iterate deterministically.
type Set struct {
	order []string
	seen  map[string]struct{}
}

// NewSet returns an empty ordered set.
func NewSet() *Set {
	return &Set{seen: make(map[string]struct{})}
}

// Add inserts id, keeping the first insertion position on duplicates.
func (s *Set) Add(id string) {
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
}

// Has reports membership.
func (s *Set) Has(id string) bool {
	_, ok := s.seen[id]
	return ok
}

// Items returns the members in insertion order. The slice is shared; callers
// must not mutate it.
func (s *Set) Items() []string {
	return s.order
}

// Len returns the member count.
func (s *Set) Len() int {
	return len(s.order)
}

// TriggerRole distinguishes how a trigger is attached to a tag.
type TriggerRole string

const (
	RoleFiring   TriggerRole = "firing"
	RoleBlocking TriggerRole = "blocking"
)

// TriggerUse records one tag fired or blocked by a trigger.
type TriggerUse struct {
	TagID string
	Role  TriggerRole
}

// VariableNode holds the edges attached to one variable. References and
// ReferencedBy are stored in both directions so traversal can go either way
// without recomputation.
type VariableNode struct {
	ID   string
	Name string

	// References holds variable ids this variable reads.
	References *Set
	// ReferencedBy holds variable ids that read this variable.
	ReferencedBy *Set
	// Tags holds tag ids whose bodies read this variable.
	Tags *Set
	// Triggers holds trigger ids whose conditions read this variable.
	Triggers *Set
	// Transformations holds transformation ids that read this variable
	// (server containers only).
	Transformations *Set
}

// Graph is the full dependency graph for one container version.
type Graph struct {
	// Server marks a server-side container; transformation and client edges
	// only exist when set.
	Server bool

	Variables   map[string]*VariableNode
	VariableIDs []string // insertion order of Variables

	// Name lookups used for resolution during build and rendering afterwards.
	VarNameToID         map[string]string
	VarNames            map[string]string
	TagNames            map[string]string
	TriggerNames        map[string]string
	ClientNames         map[string]string
	TransformationNames map[string]string

	// TriggerTags maps a trigger id to the tags it fires or blocks.
	TriggerTags map[string][]TriggerUse

	// SetupFor and TeardownFor map a setup/teardown tag id to the tags that
	// depend on it.
	SetupFor    map[string][]string
	TeardownFor map[string][]string

	// Server-container edges.
	TransformationClients map[string]*Set // transformation id -> client ids it feeds
	TransformationTags    map[string]*Set // transformation id -> tag ids it feeds
	TransformationChain   map[string]*Set // transformation id -> downstream transformation ids
}

// Variable returns the node for id, or nil when the id is unknown. Unknown ids
// are a normal condition: upstream snapshots may reference deleted elements.
func (g *Graph) Variable(id string) *VariableNode {
	return g.Variables[id]
}

// NodeCount returns the number of variable nodes.
func (g *Graph) NodeCount() int {
	return len(g.Variables)
}

// EdgeCount returns the number of directed edges of every type, counting each
// bidirectional variable reference once.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, v := range g.Variables {
		n += v.References.Len() + v.Tags.Len() + v.Triggers.Len() + v.Transformations.Len()
	}
	for _, uses := range g.TriggerTags {
		n += len(uses)
	}
	for _, deps := range g.SetupFor {
		n += len(deps)
	}
	for _, deps := range g.TeardownFor {
		n += len(deps)
	}
	for _, s := range g.TransformationClients {
		n += s.Len()
	}
	for _, s := range g.TransformationTags {
		n += s.Len()
	}
	for _, s := range g.TransformationChain {
		n += s.Len()
	}
	return n
}
