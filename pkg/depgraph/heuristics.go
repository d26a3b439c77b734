package depgraph

import (
	"encoding/json"
	"strings"
)

// containsQuoted reports whether the serialized JSON form of an element body
// mentions name, either as a {{name}} token or as a bare JSON string. This is
// an exact substring match, not a parser: it over-matches when an unrelated
// field happens to hold the same text, and that trade-off is accepted to catch
// reference shapes the token grammar cannot see.
func containsQuoted(serialized, name string) bool {
	if name == "" {
		return false
	}
	if strings.Contains(serialized, "{{"+name+"}}") {
		return true
	}
	quoted, err := json.Marshal(name)
	if err != nil {
		return false
	}
	return strings.Contains(serialized, string(quoted))
}
