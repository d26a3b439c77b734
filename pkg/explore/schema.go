// Package explore serves the dependency graph of a container over GraphQL so
// a change can be investigated interactively after a run.
package explore

import (
	"fmt"

	"github.com/graphql-go/graphql"

	"github.com/tagwatch/tagwatch/pkg/classify"
	"github.com/tagwatch/tagwatch/pkg/depgraph"
	"github.com/tagwatch/tagwatch/pkg/impact"
	"github.com/tagwatch/tagwatch/pkg/metrics"
)

// Explorer bundles the built graph with its classification and a path
// searcher for one container version. When Metrics is set, impactPath
// queries record their verdicts into it; it should be the same registry the
// server exposes on /metrics.
type Explorer struct {
	ContainerID string
	Graph       *depgraph.Graph
	Relevance   *classify.Result
	Searcher    *impact.Searcher
	Metrics     *metrics.Registry
}

// tagInfo is the resolver source for Tag fields.
type tagInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	GARelevant  bool   `json:"gaRelevant"`
	ConsentMode bool   `json:"consentMode"`
}

// Schema builds the GraphQL schema over the explorer's graph.
func Schema(e *Explorer) (graphql.Schema, error) {
	tagType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Tag",
		Fields: graphql.Fields{
			"id":          &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name":        &graphql.Field{Type: graphql.String},
			"gaRelevant":  &graphql.Field{Type: graphql.Boolean},
			"consentMode": &graphql.Field{Type: graphql.Boolean},
		},
	})

	variableType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Variable",
		Fields: graphql.Fields{
			"id":   &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
			"name": &graphql.Field{Type: graphql.String},
		},
	})

	// Self-referential fields are added after construction.
	variableType.AddFieldConfig("references", &graphql.Field{
		Type:    graphql.NewList(variableType),
		Resolve: e.variableEdgeResolver(func(n *depgraph.VariableNode) *depgraph.Set { return n.References }),
	})
	variableType.AddFieldConfig("referencedBy", &graphql.Field{
		Type:    graphql.NewList(variableType),
		Resolve: e.variableEdgeResolver(func(n *depgraph.VariableNode) *depgraph.Set { return n.ReferencedBy }),
	})
	variableType.AddFieldConfig("tags", &graphql.Field{
		Type: graphql.NewList(tagType),
		Resolve: func(p graphql.ResolveParams) (any, error) {
			node, ok := p.Source.(*depgraph.VariableNode)
			if !ok {
				return nil, nil
			}
			var tags []tagInfo
			for _, id := range node.Tags.Items() {
				tags = append(tags, e.tagInfo(id))
			}
			return tags, nil
		},
	})
	variableType.AddFieldConfig("directlyImpactsGA", &graphql.Field{
		Type: graphql.Boolean,
		Resolve: func(p graphql.ResolveParams) (any, error) {
			node, ok := p.Source.(*depgraph.VariableNode)
			if !ok {
				return nil, nil
			}
			return e.Searcher.DirectlyImpactsGA(node.ID), nil
		},
	})

	impactPathType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ImpactPath",
		Fields: graphql.Fields{
			"found":    &graphql.Field{Type: graphql.NewNonNull(graphql.Boolean)},
			"rendered": &graphql.Field{Type: graphql.String},
		},
	})

	queryFields := graphql.Fields{
		"health": &graphql.Field{
			Type: graphql.String,
			Resolve: func(graphql.ResolveParams) (any, error) {
				return "ok", nil
			},
		},
		"container": &graphql.Field{
			Type: graphql.String,
			Resolve: func(graphql.ResolveParams) (any, error) {
				return e.ContainerID, nil
			},
		},
		"variable": &graphql.Field{
			Type: variableType,
			Args: graphql.FieldConfigArgument{
				"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: func(p graphql.ResolveParams) (any, error) {
				id, _ := p.Args["id"].(string)
				node := e.Graph.Variable(id)
				if node == nil {
					return nil, nil
				}
				return node, nil
			},
		},
		"variables": &graphql.Field{
			Type: graphql.NewList(variableType),
			Resolve: func(graphql.ResolveParams) (any, error) {
				var nodes []*depgraph.VariableNode
				for _, id := range e.Graph.VariableIDs {
					nodes = append(nodes, e.Graph.Variable(id))
				}
				return nodes, nil
			},
		},
		"tags": &graphql.Field{
			Type: graphql.NewList(tagType),
			Resolve: func(graphql.ResolveParams) (any, error) {
				var tags []tagInfo
				for id := range e.Graph.TagNames {
					tags = append(tags, e.tagInfo(id))
				}
				return tags, nil
			},
		},
		"impactPath": &graphql.Field{
			Type: impactPathType,
			Args: graphql.FieldConfigArgument{
				"variableId": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
			},
			Resolve: func(p graphql.ResolveParams) (any, error) {
				id, _ := p.Args["variableId"].(string)
				found, path := e.Searcher.FindPath(id)
				if e.Metrics != nil {
					e.Metrics.RecordImpact(found)
				}
				result := map[string]any{"found": found}
				if found {
					result["rendered"] = path.Render(e.Graph)
				}
				return result, nil
			},
		},
	}

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("create schema: %w", err)
	}
	return schema, nil
}

func (e *Explorer) variableEdgeResolver(edges func(*depgraph.VariableNode) *depgraph.Set) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		node, ok := p.Source.(*depgraph.VariableNode)
		if !ok {
			return nil, nil
		}
		var out []*depgraph.VariableNode
		for _, id := range edges(node).Items() {
			if other := e.Graph.Variable(id); other != nil {
				out = append(out, other)
			}
		}
		return out, nil
	}
}

func (e *Explorer) tagInfo(id string) tagInfo {
	info := tagInfo{ID: id, Name: e.Graph.TagNames[id]}
	if e.Relevance != nil {
		_, info.GARelevant = e.Relevance.Tags[id]
		for _, consentID := range e.Relevance.ConsentModeTagIDs {
			if consentID == id {
				info.ConsentMode = true
				break
			}
		}
	}
	return info
}
