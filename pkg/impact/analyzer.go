package impact

import (
	"fmt"
	"strings"

	"github.com/tagwatch/tagwatch/pkg/changes"
	"github.com/tagwatch/tagwatch/pkg/classify"
	"github.com/tagwatch/tagwatch/pkg/container"
	"github.com/tagwatch/tagwatch/pkg/depgraph"
	"github.com/tagwatch/tagwatch/pkg/logging"
)

// Result is the verdict for one analysis: whether any change reaches a
// GA-relevant element, with one rendered description per finding.
type Result struct {
	Impacted     bool
	Descriptions []string
	Paths        []Path
}

// Analysis bundles everything one run produced. Graph and Relevance are
// exposed for inspection tooling; downstream consumers only need Changes and
// Result.
type Analysis struct {
	Changes   changes.ChangeSet
	Result    Result
	Graph     *depgraph.Graph
	Relevance classify.Result
}

// Analyzer evaluates version pairs under one policy.
type Analyzer struct {
	policy classify.Policy
	logger logging.Logger
}

// NewAnalyzer returns an analyzer with the given policy. A nil logger is
// replaced with a nop logger.
func NewAnalyzer(policy classify.Policy, logger logging.Logger) *Analyzer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Analyzer{policy: policy, logger: logger}
}

// Analyze diffs two snapshots and searches every changed element for a path to
// a GA-relevant element. It never mutates its inputs and never fails: malformed
// input degrades to an empty result.
func (a *Analyzer) Analyze(oldVersion, newVersion *container.Version) Analysis {
	cs := changes.Diff(oldVersion, newVersion)
	graph := depgraph.Build(newVersion)
	relevant := classify.Classify(newVersion, a.policy)
	searcher := NewSearcher(graph, relevant, a.policy, a.logger)

	a.logger.Debug("dependency graph built",
		logging.Int("variables", graph.NodeCount()),
		logging.Int("edges", graph.EdgeCount()),
		logging.Bool("server_container", graph.Server))

	var result Result
	add := func(description string, path Path) {
		result.Impacted = true
		result.Descriptions = append(result.Descriptions, description)
		if path != nil {
			result.Paths = append(result.Paths, path)
		}
	}

	if graph.Server {
		a.analyzeClients(cs.Clients.All(), oldVersion, graph, relevant, add)
		a.analyzeTransformations(cs.Transformations.All(), newVersion, graph, relevant, add)
	}
	a.analyzeTags(cs.Tags.All(), newVersion, oldVersion, graph, relevant, add)
	a.analyzeTriggers(cs.Triggers.All(), graph, relevant, add)
	a.analyzeVariables(cs.Variables.All(), newVersion, oldVersion, graph, relevant, searcher, add)

	return Analysis{Changes: cs, Result: result, Graph: graph, Relevance: relevant}
}

func (a *Analyzer) analyzeClients(ids []string, oldV *container.Version, g *depgraph.Graph, relevant classify.Result, add func(string, Path)) {
	for _, id := range ids {
		if name, ok := relevant.Clients[id]; ok {
			add(fmt.Sprintf("Direct GA impact: Client '%s' is a GA client", displayName(name)),
				Path{{Kind: HopClient, ID: id}})
			continue
		}
		// Deleted clients only exist in the old snapshot.
		if old := oldV.ClientByID(id); old != nil && classify.IsGAClientType(old.Type) {
			add(fmt.Sprintf("Direct GA impact: Client '%s' is a GA client", displayName(old.Name)),
				Path{{Kind: HopClient, ID: id}})
		}
	}
}

func (a *Analyzer) analyzeTransformations(ids []string, v *container.Version, g *depgraph.Graph, relevant classify.Result, add func(string, Path)) {
	for _, id := range ids {
		name := lookupName(g.TransformationNames, id, "Transformation")
		var findings []string
		var path Path

		if clientSet, ok := g.TransformationClients[id]; ok {
			for _, clientID := range clientSet.Items() {
				if clientName, relevantClient := relevant.Clients[clientID]; relevantClient {
					findings = append(findings, fmt.Sprintf("directly feeds GA client '%s'", displayName(clientName)))
					if path == nil {
						path = Path{{Kind: HopTransformation, ID: id}, {Kind: HopClient, ID: clientID}}
					}
				}
			}
		}
		if tagSet, ok := g.TransformationTags[id]; ok {
			for _, tagID := range tagSet.Items() {
				if tagName, relevantTag := relevant.Tags[tagID]; relevantTag {
					findings = append(findings, fmt.Sprintf("directly impacts GA tag '%s'", displayName(tagName)))
					if path == nil {
						path = Path{{Kind: HopTransformation, ID: id}, {Kind: HopTag, ID: tagID}}
					}
				}
			}
		}
		if chain, ok := g.TransformationChain[id]; ok {
			for _, nextID := range chain.Items() {
				clientSet, ok := g.TransformationClients[nextID]
				if !ok {
					continue
				}
				for _, clientID := range clientSet.Items() {
					if clientName, relevantClient := relevant.Clients[clientID]; relevantClient {
						findings = append(findings, fmt.Sprintf("indirectly feeds GA client '%s' via another transformation", displayName(clientName)))
						if path == nil {
							path = Path{
								{Kind: HopTransformation, ID: id},
								{Kind: HopTransformation, ID: nextID},
								{Kind: HopClient, ID: clientID},
							}
						}
					}
				}
			}
		}
		if containsString(a.policy.CustomImpactNames.Transformations, g.TransformationNames[id]) {
			findings = append(findings, "is configured as GA-impacting")
			if path == nil {
				path = Path{{Kind: HopTransformation, ID: id}}
			}
		}

		if len(findings) > 0 {
			add(fmt.Sprintf("Transformation impact: '%s' %s", name, strings.Join(findings, " and ")), path)
		}
	}
}

func (a *Analyzer) analyzeTags(ids []string, v, oldV *container.Version, g *depgraph.Graph, relevant classify.Result, add func(string, Path)) {
	consent := make(map[string]struct{}, len(relevant.ConsentModeTagIDs))
	for _, id := range relevant.ConsentModeTagIDs {
		consent[id] = struct{}{}
	}

	for _, id := range ids {
		tag := v.TagByID(id)
		if tag == nil {
			// Deleted tags only exist in the old snapshot.
			tag = oldV.TagByID(id)
		}
		name := lookupName(g.TagNames, id, "Tag")
		tagType := ""
		if tag != nil {
			tagType = tag.Type
			if _, known := g.TagNames[id]; !known && tag.Name != "" {
				name = tag.Name
			}
		}

		switch {
		case classify.IsGATagType(tagType):
			add(fmt.Sprintf("Direct GA impact: Tag '%s' is a GA-relevant tag (type: %s)", name, tagType),
				Path{{Kind: HopTag, ID: id}})
		case hasID(consent, id):
			add(fmt.Sprintf("Consent mode impact: Tag '%s' is a consent mode tag", name),
				Path{{Kind: HopTag, ID: id}})
		case tag != nil && mapHasID(relevant.Tags, id):
			// Covers the custom name list and the treat-all-custom-html rule;
			// the two cases above already reported type and consent matches.
			add(fmt.Sprintf("Custom GA impact: Tag '%s' is configured as GA-impacting", name),
				Path{{Kind: HopTag, ID: id}})
		default:
			a.tagSequencingImpact(id, name, g, relevant, add)
		}
	}
}

// tagSequencingImpact reports a changed tag that is a setup or teardown tag
// for a GA-relevant tag.
func (a *Analyzer) tagSequencingImpact(id, name string, g *depgraph.Graph, relevant classify.Result, add func(string, Path)) {
	for _, dependentID := range g.SetupFor[id] {
		if dependentName, ok := relevant.Tags[dependentID]; ok {
			add(fmt.Sprintf("Setup tag impact: Tag '%s' is a setup tag for GA tag '%s'", name, displayName(dependentName)),
				Path{{Kind: HopTag, ID: id}, {Kind: HopTag, ID: dependentID}})
		}
	}
	for _, dependentID := range g.TeardownFor[id] {
		if dependentName, ok := relevant.Tags[dependentID]; ok {
			add(fmt.Sprintf("Teardown tag impact: Tag '%s' is a teardown tag for GA tag '%s'", name, displayName(dependentName)),
				Path{{Kind: HopTag, ID: id}, {Kind: HopTag, ID: dependentID}})
		}
	}
}

func (a *Analyzer) analyzeTriggers(ids []string, g *depgraph.Graph, relevant classify.Result, add func(string, Path)) {
	for _, id := range ids {
		name := lookupName(g.TriggerNames, id, "Trigger")
		matched := false
		for _, use := range g.TriggerTags[id] {
			tagName, ok := relevant.Tags[use.TagID]
			if !ok {
				continue
			}
			matched = true
			add(fmt.Sprintf("Trigger impact: Changed trigger '%s' is a %s trigger for GA tag '%s'", name, use.Role, displayName(tagName)),
				Path{{Kind: HopTrigger, ID: id}, {Kind: HopTag, ID: use.TagID}})
		}
		if !matched && containsString(a.policy.CustomImpactNames.Triggers, g.TriggerNames[id]) {
			add(fmt.Sprintf("Custom GA impact: Trigger '%s' is configured as GA-impacting", name),
				Path{{Kind: HopTrigger, ID: id}})
		}
	}
}

func (a *Analyzer) analyzeVariables(ids []string, v, oldV *container.Version, g *depgraph.Graph, relevant classify.Result, searcher *Searcher, add func(string, Path)) {
	for _, id := range ids {
		variable := v.VariableByID(id)
		if variable == nil {
			variable = oldV.VariableByID(id)
		}
		name := lookupName(g.VarNames, id, "Variable")
		if variable != nil {
			if _, known := g.VarNames[id]; !known && variable.Name != "" {
				name = variable.Name
			}
		}

		if variable != nil && classify.IsCustomVariable(variable, a.policy) {
			add(fmt.Sprintf("Custom GA impact: Variable '%s' is configured as GA-impacting", name),
				Path{{Kind: HopVariable, ID: id}})
			continue
		}

		// Server containers: a variable feeding a transformation that reaches
		// a GA tag is reported with the transformation named, before the
		// generic path search runs.
		if g.Server {
			if description, path, found := a.serverVariableImpact(id, name, g, relevant); found {
				add(description, path)
				continue
			}
		}

		if found, path := searcher.FindPath(id); found {
			add("Deep variable dependency chain: "+path.Render(g), path)
		} else {
			a.logger.Debug("no GA impact found for variable",
				logging.ElementID(id),
				logging.String("name", name))
		}
	}
}

func (a *Analyzer) serverVariableImpact(id, name string, g *depgraph.Graph, relevant classify.Result) (string, Path, bool) {
	node := g.Variable(id)
	if node == nil {
		return "", nil, false
	}
	for _, transformationID := range node.Transformations.Items() {
		tagSet, ok := g.TransformationTags[transformationID]
		if !ok {
			continue
		}
		var tagNames []string
		var firstTag string
		for _, tagID := range tagSet.Items() {
			if tagName, relevantTag := relevant.Tags[tagID]; relevantTag {
				tagNames = append(tagNames, displayName(tagName))
				if firstTag == "" {
					firstTag = tagID
				}
			}
		}
		if len(tagNames) > 0 {
			transformationName := lookupName(g.TransformationNames, transformationID, "Transformation")
			description := fmt.Sprintf(
				"Server variable-transformation impact: Variable '%s' is used in transformation '%s' which affects GA tags: %s",
				name, transformationName, strings.Join(tagNames, ", "))
			path := Path{
				{Kind: HopVariable, ID: id},
				{Kind: HopTransformation, ID: transformationID},
				{Kind: HopTag, ID: firstTag},
			}
			return description, path, true
		}
	}
	return "", nil, false
}

func displayName(name string) string {
	if name == "" {
		return "Unknown"
	}
	return name
}

func containsString(list []string, s string) bool {
	if s == "" {
		return false
	}
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func hasID(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}

func mapHasID(m map[string]string, id string) bool {
	_, ok := m[id]
	return ok
}
