// Package classify labels container elements as analytics-relevant. A tag or
// client is relevant by declared type, by consent-mode detection, or because an
// operator listed its name in the policy.
package classify

// CustomImpactNames lists element names an operator wants treated as
// GA-impacting regardless of automatic detection.
type CustomImpactNames struct {
	Tags            []string `yaml:"tags"`
	Variables       []string `yaml:"variables"`
	Triggers        []string `yaml:"triggers"`
	Clients         []string `yaml:"clients"`
	Transformations []string `yaml:"transformations"`
}

// Policy is the classification policy for one analysis run. It is passed
// explicitly; nothing in this package reads ambient state.
type Policy struct {
	CustomImpactNames CustomImpactNames `yaml:"custom_impact_names"`

	// TreatAllCustomJSVariablesAsImportant and TreatAllCustomHTMLAsImportant
	// are part of the policy contract but not consumed by the path search;
	// they widen classification only.
	TreatAllCustomJSVariablesAsImportant bool `yaml:"treat_all_custom_js_variables_as_important"`
	TreatAllCustomHTMLAsImportant        bool `yaml:"treat_all_custom_html_as_important"`

	// EnableCascadeReferenceChecking gates the transitive reference walk.
	// When false only direct impacts are reported.
	EnableCascadeReferenceChecking bool `yaml:"enable_cascade_reference_checking"`

	// MaxVisitedNodes caps the nodes a single path search may explore.
	// Zero means the default. On budget exhaustion the search aborts with
	// no impact determined and logs a warning.
	MaxVisitedNodes int `yaml:"max_visited_nodes"`
}

// DefaultMaxVisitedNodes bounds one path search when the policy does not say
// otherwise.
const DefaultMaxVisitedNodes = 10000

// DefaultPolicy returns the policy used when no configuration is supplied.
func DefaultPolicy() Policy {
	return Policy{
		EnableCascadeReferenceChecking: true,
		MaxVisitedNodes:                DefaultMaxVisitedNodes,
	}
}

// VisitBudget returns the effective explored-node cap.
func (p Policy) VisitBudget() int {
	if p.MaxVisitedNodes > 0 {
		return p.MaxVisitedNodes
	}
	return DefaultMaxVisitedNodes
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
