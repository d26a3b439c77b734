// Package impact decides whether a set of changed container elements can
// reach, through direct and cascading references, an analytics-relevant
// element. All operations are pure functions over in-memory snapshots.
package impact

import (
	"fmt"
	"strings"

	"github.com/tagwatch/tagwatch/pkg/depgraph"
)

// HopKind tells what kind of node a path hop is.
type HopKind string

const (
	HopVariable       HopKind = "variable"
	HopTag            HopKind = "tag"
	HopTrigger        HopKind = "trigger"
	HopTransformation HopKind = "transformation"
	HopClient         HopKind = "client"
)

// Hop is one node on a discovered impact path.
type Hop struct {
	Kind HopKind
	ID   string
}

// Path is the chain of nodes connecting a changed element to a GA-relevant
// element. The first discovered path is reported; callers must not assume it
// is the shortest.
type Path []Hop

func (p Path) clone() Path {
	out := make(Path, len(p))
	copy(out, p)
	return out
}

func (p Path) with(hops ...Hop) Path {
	out := make(Path, 0, len(p)+len(hops))
	out = append(out, p...)
	out = append(out, hops...)
	return out
}

// Render resolves each hop back to a name and joins the chain into a
// human-readable description.
func (p Path) Render(g *depgraph.Graph) string {
	parts := make([]string, 0, len(p))
	for _, hop := range p {
		parts = append(parts, hop.describe(g))
	}
	return strings.Join(parts, " → ")
}

func (h Hop) describe(g *depgraph.Graph) string {
	switch h.Kind {
	case HopTag:
		return fmt.Sprintf("GA Tag '%s'", lookupName(g.TagNames, h.ID, "Tag"))
	case HopTrigger:
		return fmt.Sprintf("Trigger '%s'", lookupName(g.TriggerNames, h.ID, "Trigger"))
	case HopTransformation:
		return fmt.Sprintf("Transformation '%s'", lookupName(g.TransformationNames, h.ID, "Transformation"))
	case HopClient:
		return fmt.Sprintf("GA Client '%s'", lookupName(g.ClientNames, h.ID, "Client"))
	default:
		return fmt.Sprintf("Variable '%s'", lookupName(g.VarNames, h.ID, "Variable"))
	}
}

func lookupName(names map[string]string, id, kind string) string {
	if name, ok := names[id]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Unknown %s %s", kind, id)
}
