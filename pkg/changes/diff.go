// Package changes structurally diffs two container versions into added,
// modified and deleted id sets per entity type. Comparison excludes the
// volatile fields that change on rename or re-filing without altering
// behavior, so a pure rename never registers.
package changes

import (
	"reflect"
	"sort"

	"github.com/tagwatch/tagwatch/pkg/container"
)

// Volatile fields excluded from comparison, per entity type.
var (
	tagIgnoredFields = map[string]struct{}{
		"name": {}, "fingerprint": {}, "notes": {}, "parentFolderId": {},
		"monitoringMetadata": {}, "tagManagerUrl": {},
	}
	triggerIgnoredFields = map[string]struct{}{
		"name": {}, "fingerprint": {}, "notes": {}, "parentFolderId": {},
		"tagManagerUrl": {},
	}
	variableIgnoredFields = map[string]struct{}{
		"name": {}, "fingerprint": {}, "notes": {}, "parentFolderId": {},
		"formatValue": {}, "tagManagerUrl": {},
	}
	serverEntityIgnoredFields = map[string]struct{}{
		"name": {}, "fingerprint": {}, "notes": {}, "parentFolderId": {},
		"tagManagerUrl": {},
	}
)

// Delta holds the changed ids for one entity type. Slices are sorted and never
// nil.
type Delta struct {
	Added    []string
	Modified []string
	Deleted  []string
}

// All returns every changed id: added, then modified, then deleted.
func (d Delta) All() []string {
	out := make([]string, 0, len(d.Added)+len(d.Modified)+len(d.Deleted))
	out = append(out, d.Added...)
	out = append(out, d.Modified...)
	out = append(out, d.Deleted...)
	return out
}

// Empty reports whether nothing changed for this entity type.
func (d Delta) Empty() bool {
	return len(d.Added) == 0 && len(d.Modified) == 0 && len(d.Deleted) == 0
}

// ChangeSet is the full diff between two versions. It carries ids only; callers
// resolve names against a snapshot when rendering.
type ChangeSet struct {
	Tags            Delta
	Variables       Delta
	Triggers        Delta
	Clients         Delta
	Transformations Delta
}

// Empty reports whether the two versions compared identical.
func (cs ChangeSet) Empty() bool {
	return cs.Tags.Empty() && cs.Variables.Empty() && cs.Triggers.Empty() &&
		cs.Clients.Empty() && cs.Transformations.Empty()
}

// Total counts every changed id across all entity types.
func (cs ChangeSet) Total() int {
	n := 0
	for _, d := range []Delta{cs.Tags, cs.Variables, cs.Triggers, cs.Clients, cs.Transformations} {
		n += len(d.Added) + len(d.Modified) + len(d.Deleted)
	}
	return n
}

// Diff compares two versions. Entities are matched by id; an entity whose
// filtered body differs structurally counts as modified. Map key order is
// irrelevant, list order is significant, matching the source format.
func Diff(oldVersion, newVersion *container.Version) ChangeSet {
	return ChangeSet{
		Tags:            diffBodies(tagBodies(oldVersion), tagBodies(newVersion), tagIgnoredFields),
		Variables:       diffBodies(variableBodies(oldVersion), variableBodies(newVersion), variableIgnoredFields),
		Triggers:        diffBodies(triggerBodies(oldVersion), triggerBodies(newVersion), triggerIgnoredFields),
		Clients:         diffBodies(clientBodies(oldVersion), clientBodies(newVersion), serverEntityIgnoredFields),
		Transformations: diffBodies(transformationBodies(oldVersion), transformationBodies(newVersion), serverEntityIgnoredFields),
	}
}

func diffBodies(old, new map[string]map[string]any, ignored map[string]struct{}) Delta {
	delta := Delta{Added: []string{}, Modified: []string{}, Deleted: []string{}}
	for id := range new {
		if _, ok := old[id]; !ok {
			delta.Added = append(delta.Added, id)
		}
	}
	for id := range old {
		if _, ok := new[id]; !ok {
			delta.Deleted = append(delta.Deleted, id)
		}
	}
	for id, oldBody := range old {
		newBody, ok := new[id]
		if !ok {
			continue
		}
		if !reflect.DeepEqual(filterBody(oldBody, ignored), filterBody(newBody, ignored)) {
			delta.Modified = append(delta.Modified, id)
		}
	}
	sort.Strings(delta.Added)
	sort.Strings(delta.Modified)
	sort.Strings(delta.Deleted)
	return delta
}

func filterBody(body map[string]any, ignored map[string]struct{}) map[string]any {
	filtered := make(map[string]any, len(body))
	for key, value := range body {
		if _, skip := ignored[key]; skip {
			continue
		}
		filtered[key] = value
	}
	return filtered
}

func tagBodies(v *container.Version) map[string]map[string]any {
	out := make(map[string]map[string]any, len(v.Tags))
	for i := range v.Tags {
		if t := &v.Tags[i]; t.ID != "" {
			out[t.ID] = t.Body
		}
	}
	return out
}

func variableBodies(v *container.Version) map[string]map[string]any {
	out := make(map[string]map[string]any, len(v.Variables))
	for i := range v.Variables {
		if e := &v.Variables[i]; e.ID != "" {
			out[e.ID] = e.Body
		}
	}
	return out
}

func triggerBodies(v *container.Version) map[string]map[string]any {
	out := make(map[string]map[string]any, len(v.Triggers))
	for i := range v.Triggers {
		if e := &v.Triggers[i]; e.ID != "" {
			out[e.ID] = e.Body
		}
	}
	return out
}

func clientBodies(v *container.Version) map[string]map[string]any {
	out := make(map[string]map[string]any, len(v.Clients))
	for i := range v.Clients {
		if e := &v.Clients[i]; e.ID != "" {
			out[e.ID] = e.Body
		}
	}
	return out
}

func transformationBodies(v *container.Version) map[string]map[string]any {
	out := make(map[string]map[string]any, len(v.Transformations))
	for i := range v.Transformations {
		if e := &v.Transformations[i]; e.ID != "" {
			out[e.ID] = e.Body
		}
	}
	return out
}
