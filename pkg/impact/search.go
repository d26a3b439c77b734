package impact

import (
	"github.com/tagwatch/tagwatch/pkg/classify"
	"github.com/tagwatch/tagwatch/pkg/depgraph"
	"github.com/tagwatch/tagwatch/pkg/logging"
)

// Searcher runs the impact path search over one built graph and one
// classification result. It precomputes, per variable, whether the variable is
// read directly by any GA-relevant tag.
type Searcher struct {
	graph    *depgraph.Graph
	relevant classify.Result
	policy   classify.Policy
	logger   logging.Logger

	// directImpact flags variables with a tag edge into a GA-relevant tag.
	directImpact map[string]bool
}

// NewSearcher builds a searcher. A nil logger is replaced with a nop logger.
func NewSearcher(graph *depgraph.Graph, relevant classify.Result, policy classify.Policy, logger logging.Logger) *Searcher {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Searcher{
		graph:        graph,
		relevant:     relevant,
		policy:       policy,
		logger:       logger,
		directImpact: make(map[string]bool, len(graph.Variables)),
	}
	for id, node := range graph.Variables {
		for _, tagID := range node.Tags.Items() {
			if _, ok := relevant.Tags[tagID]; ok {
				s.directImpact[id] = true
				break
			}
		}
	}
	return s
}

// frame is one pending node on the work stack. Each frame carries its own
// visited copy so sibling branches cannot prune each other; this trades memory
// for correctness on graphs with re-convergent paths.
type frame struct {
	id      string
	path    Path
	visited map[string]struct{}
}

// FindPath searches for a chain from the changed variable to a GA-relevant
// element. At each node the checks run in a fixed order, first match wins:
// the precomputed direct-impact flag, then a direct edge to a GA tag, then a
// trigger edge into a GA tag, then (server containers) transformation hops,
// then recursion into forward references before reverse references. A node
// already visited on the current branch, or absent from the graph, terminates
// that branch with no impact.
func (s *Searcher) FindPath(variableID string) (bool, Path) {
	budget := s.policy.VisitBudget()
	explored := 0

	stack := []frame{{
		id:      variableID,
		path:    Path{},
		visited: make(map[string]struct{}),
	}}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, seen := top.visited[top.id]; seen {
			continue
		}
		node := s.graph.Variable(top.id)
		if node == nil {
			continue
		}

		explored++
		if explored > budget {
			// Abort with no impact determined; the warning is the only
			// signal that the search was truncated.
			s.logger.Warn("impact search aborted, visit budget exhausted",
				logging.ElementID(variableID),
				logging.Int("budget", budget))
			return false, nil
		}

		visited := copyVisited(top.visited)
		visited[top.id] = struct{}{}
		current := top.path.with(Hop{Kind: HopVariable, ID: top.id})

		if s.directImpact[top.id] {
			return true, current
		}

		for _, tagID := range node.Tags.Items() {
			if _, ok := s.relevant.Tags[tagID]; ok {
				return true, current.with(Hop{Kind: HopTag, ID: tagID})
			}
		}

		for _, triggerID := range node.Triggers.Items() {
			for _, use := range s.graph.TriggerTags[triggerID] {
				if _, ok := s.relevant.Tags[use.TagID]; ok {
					return true, current.with(
						Hop{Kind: HopTrigger, ID: triggerID},
						Hop{Kind: HopTag, ID: use.TagID},
					)
				}
			}
		}

		if s.graph.Server {
			if found, path := s.transformationHops(node, current); found {
				return true, path
			}
		}

		if !s.policy.EnableCascadeReferenceChecking {
			continue
		}

		// LIFO stack: push reverse edges first, forward edges last, each
		// batch in reverse insertion order, so forward references are
		// explored first and in edge-insertion order.
		backward := node.ReferencedBy.Items()
		for i := len(backward) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: backward[i], path: current.clone(), visited: copyVisited(visited)})
		}
		forward := node.References.Items()
		for i := len(forward) - 1; i >= 0; i-- {
			stack = append(stack, frame{id: forward[i], path: current.clone(), visited: copyVisited(visited)})
		}
	}

	return false, nil
}

// transformationHops checks the server-container rules: a transformation fed
// by this variable that reaches a GA-relevant tag, a GA-relevant client, or a
// second transformation that reaches either.
func (s *Searcher) transformationHops(node *depgraph.VariableNode, current Path) (bool, Path) {
	for _, transformationID := range node.Transformations.Items() {
		if tagID, ok := s.transformationGATag(transformationID); ok {
			return true, current.with(
				Hop{Kind: HopTransformation, ID: transformationID},
				Hop{Kind: HopTag, ID: tagID},
			)
		}
		if clientID, ok := s.transformationGAClient(transformationID); ok {
			return true, current.with(
				Hop{Kind: HopTransformation, ID: transformationID},
				Hop{Kind: HopClient, ID: clientID},
			)
		}
		if chain, ok := s.graph.TransformationChain[transformationID]; ok {
			for _, nextID := range chain.Items() {
				if tagID, ok := s.transformationGATag(nextID); ok {
					return true, current.with(
						Hop{Kind: HopTransformation, ID: transformationID},
						Hop{Kind: HopTransformation, ID: nextID},
						Hop{Kind: HopTag, ID: tagID},
					)
				}
				if clientID, ok := s.transformationGAClient(nextID); ok {
					return true, current.with(
						Hop{Kind: HopTransformation, ID: transformationID},
						Hop{Kind: HopTransformation, ID: nextID},
						Hop{Kind: HopClient, ID: clientID},
					)
				}
			}
		}
	}
	return false, nil
}

func (s *Searcher) transformationGATag(transformationID string) (string, bool) {
	tags, ok := s.graph.TransformationTags[transformationID]
	if !ok {
		return "", false
	}
	for _, tagID := range tags.Items() {
		if _, relevant := s.relevant.Tags[tagID]; relevant {
			return tagID, true
		}
	}
	return "", false
}

func (s *Searcher) transformationGAClient(transformationID string) (string, bool) {
	clients, ok := s.graph.TransformationClients[transformationID]
	if !ok {
		return "", false
	}
	for _, clientID := range clients.Items() {
		if _, relevant := s.relevant.Clients[clientID]; relevant {
			return clientID, true
		}
	}
	return "", false
}

// DirectlyImpactsGA reports the precomputed direct-impact flag for a variable.
func (s *Searcher) DirectlyImpactsGA(variableID string) bool {
	return s.directImpact[variableID]
}

func copyVisited(visited map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(visited)+1)
	for id := range visited {
		out[id] = struct{}{}
	}
	return out
}
