// Package refs extracts template variable references from configuration
// fragments. A reference is a {{ name }} token embedded in any string value,
// at any depth of a tag, variable or trigger body.
package refs

import (
	"regexp"
	"strings"
)

// tokenPattern matches a single {{ name }} reference. Non-greedy by
// construction: the body may not contain braces, so nested tokens never match.
var tokenPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Extract walks an arbitrary decoded fragment and returns every referenced
// variable name. The walk is total: any shape is accepted, unknown leaves are
// ignored, and a nil fragment yields an empty set.
func Extract(fragment any) map[string]struct{} {
	found := make(map[string]struct{})
	walk(fragment, found)
	return found
}

// ExtractInto is Extract but accumulates into an existing set, which lets
// callers collect references across several fragments without merging.
func ExtractInto(fragment any, found map[string]struct{}) {
	walk(fragment, found)
}

func walk(fragment any, found map[string]struct{}) {
	switch node := fragment.(type) {
	case string:
		scanString(node, found)
	case []any:
		for _, item := range node {
			walk(item, found)
		}
	case map[string]any:
		// Parameters may themselves be structured, so descend into the
		// parameter collection explicitly before the generic sweep. The result
		// is a set, so visiting a value twice is harmless.
		if params, ok := node["parameter"].([]any); ok {
			for _, p := range params {
				walk(p, found)
			}
		}
		for _, value := range node {
			walk(value, found)
		}
	}
	// Scalars other than strings carry no references.
}

func scanString(s string, found map[string]struct{}) {
	if !strings.Contains(s, "{{") {
		return
	}
	for _, match := range tokenPattern.FindAllStringSubmatch(s, -1) {
		name := strings.TrimSpace(match[1])
		if name != "" {
			found[name] = struct{}{}
		}
	}
}

// Contains reports whether the fragment references the given name.
func Contains(fragment any, name string) bool {
	_, ok := Extract(fragment)[name]
	return ok
}
