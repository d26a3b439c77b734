package depgraph

import (
	"encoding/json"

	"github.com/tagwatch/tagwatch/pkg/container"
	"github.com/tagwatch/tagwatch/pkg/refs"
)

// Build derives the dependency graph for a container version. Elements with a
// missing id are skipped for edge purposes; a malformed element never fails the
// build.
func Build(version *container.Version) *Graph {
	g := &Graph{
		Server:                version.IsServer(),
		Variables:             make(map[string]*VariableNode),
		VarNameToID:           make(map[string]string),
		VarNames:              make(map[string]string),
		TagNames:              make(map[string]string),
		TriggerNames:          make(map[string]string),
		ClientNames:           make(map[string]string),
		TransformationNames:   make(map[string]string),
		TriggerTags:           make(map[string][]TriggerUse),
		SetupFor:              make(map[string][]string),
		TeardownFor:           make(map[string][]string),
		TransformationClients: make(map[string]*Set),
		TransformationTags:    make(map[string]*Set),
		TransformationChain:   make(map[string]*Set),
	}

	// First pass: one node per variable, plus the name lookup tables every
	// later pass resolves against.
	for i := range version.Variables {
		v := &version.Variables[i]
		if v.ID == "" {
			continue
		}
		g.Variables[v.ID] = &VariableNode{
			ID:              v.ID,
			Name:            v.Name,
			References:      NewSet(),
			ReferencedBy:    NewSet(),
			Tags:            NewSet(),
			Triggers:        NewSet(),
			Transformations: NewSet(),
		}
		g.VariableIDs = append(g.VariableIDs, v.ID)
		g.VarNames[v.ID] = v.Name
		if v.Name != "" {
			g.VarNameToID[v.Name] = v.ID
		}
	}
	for i := range version.Tags {
		if t := &version.Tags[i]; t.ID != "" {
			g.TagNames[t.ID] = t.Name
		}
	}
	for i := range version.Triggers {
		if t := &version.Triggers[i]; t.ID != "" {
			g.TriggerNames[t.ID] = t.Name
		}
	}
	for i := range version.Clients {
		if c := &version.Clients[i]; c.ID != "" {
			g.ClientNames[c.ID] = c.Name
		}
	}
	for i := range version.Transformations {
		if t := &version.Transformations[i]; t.ID != "" {
			g.TransformationNames[t.ID] = t.Name
		}
	}

	g.linkVariables(version)
	g.linkTags(version)
	g.linkTriggers(version)
	if g.Server {
		g.linkTransformations(version)
	}
	return g
}

// linkVariables adds the bidirectional variable-to-variable reference edges.
func (g *Graph) linkVariables(version *container.Version) {
	for i := range version.Variables {
		v := &version.Variables[i]
		node := g.Variables[v.ID]
		if node == nil {
			continue
		}
		for name := range refs.Extract(v.Body) {
			refID, ok := g.VarNameToID[name]
			if !ok || refID == v.ID {
				continue
			}
			node.References.Add(refID)
			if target := g.Variables[refID]; target != nil {
				target.ReferencedBy.Add(v.ID)
			}
		}
	}
}

// linkTags records which variables each tag reads and which triggers fire or
// block it, and resolves setup/teardown tag names to ids. Unresolved names are
// dropped; a dangling reference is not an error.
func (g *Graph) linkTags(version *container.Version) {
	tagNameToID := make(map[string]string, len(version.Tags))
	for i := range version.Tags {
		if t := &version.Tags[i]; t.ID != "" && t.Name != "" {
			tagNameToID[t.Name] = t.ID
		}
	}

	for i := range version.Tags {
		t := &version.Tags[i]
		if t.ID == "" {
			continue
		}
		for name := range refs.Extract(t.Body) {
			if varID, ok := g.VarNameToID[name]; ok {
				g.Variables[varID].Tags.Add(t.ID)
			}
		}
		for _, triggerID := range t.FiringTriggerIDs {
			g.TriggerTags[triggerID] = append(g.TriggerTags[triggerID], TriggerUse{TagID: t.ID, Role: RoleFiring})
		}
		for _, triggerID := range t.BlockingTriggerIDs {
			g.TriggerTags[triggerID] = append(g.TriggerTags[triggerID], TriggerUse{TagID: t.ID, Role: RoleBlocking})
		}
		for _, name := range t.SetupTagNames {
			if setupID, ok := tagNameToID[name]; ok {
				g.SetupFor[setupID] = append(g.SetupFor[setupID], t.ID)
			}
		}
		for _, name := range t.TeardownTagNames {
			if teardownID, ok := tagNameToID[name]; ok {
				g.TeardownFor[teardownID] = append(g.TeardownFor[teardownID], t.ID)
			}
		}
	}
}

// linkTriggers records which variables each trigger reads. Besides the token
// grammar, the trigger's serialized form is searched for each known variable
// name. This is a narrow substring heuristic: trigger conditions can embed a
// variable as a bare quoted name that the {{...}} grammar misses.
func (g *Graph) linkTriggers(version *container.Version) {
	for i := range version.Triggers {
		t := &version.Triggers[i]
		if t.ID == "" {
			continue
		}
		for name := range refs.Extract(t.Body) {
			if varID, ok := g.VarNameToID[name]; ok {
				g.Variables[varID].Triggers.Add(t.ID)
			}
		}
		serialized := serialize(t.Body)
		if serialized == "" {
			continue
		}
		for name, varID := range g.VarNameToID {
			if containsQuoted(serialized, name) {
				g.Variables[varID].Triggers.Add(t.ID)
			}
		}
	}
}

// linkTransformations adds the server-container edges. Variable reads come
// from the token grammar; the transformation-to-client, -tag and
// -transformation links use the same serialized-form heuristic as triggers,
// since transformations name their targets in match conditions rather than
// through a dedicated reference field.
func (g *Graph) linkTransformations(version *container.Version) {
	for i := range version.Transformations {
		t := &version.Transformations[i]
		if t.ID == "" {
			continue
		}
		for name := range refs.Extract(t.Body) {
			if varID, ok := g.VarNameToID[name]; ok {
				g.Variables[varID].Transformations.Add(t.ID)
			}
		}

		serialized := serialize(t.Body)
		if serialized == "" {
			continue
		}
		for j := range version.Clients {
			c := &version.Clients[j]
			if c.ID == "" || c.Name == "" {
				continue
			}
			if containsQuoted(serialized, c.Name) {
				g.transformationClientSet(t.ID).Add(c.ID)
			}
		}
		for j := range version.Tags {
			tag := &version.Tags[j]
			if tag.ID == "" || tag.Name == "" {
				continue
			}
			if containsQuoted(serialized, tag.Name) {
				g.transformationTagSet(t.ID).Add(tag.ID)
			}
		}
		for j := range version.Transformations {
			other := &version.Transformations[j]
			if other.ID == "" || other.ID == t.ID || other.Name == "" {
				continue
			}
			if containsQuoted(serialized, other.Name) {
				g.transformationChainSet(t.ID).Add(other.ID)
			}
		}
	}
}

func (g *Graph) transformationClientSet(id string) *Set {
	s, ok := g.TransformationClients[id]
	if !ok {
		s = NewSet()
		g.TransformationClients[id] = s
	}
	return s
}

func (g *Graph) transformationTagSet(id string) *Set {
	s, ok := g.TransformationTags[id]
	if !ok {
		s = NewSet()
		g.TransformationTags[id] = s
	}
	return s
}

func (g *Graph) transformationChainSet(id string) *Set {
	s, ok := g.TransformationChain[id]
	if !ok {
		s = NewSet()
		g.TransformationChain[id] = s
	}
	return s
}

func serialize(body map[string]any) string {
	if len(body) == 0 {
		return ""
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return string(data)
}
