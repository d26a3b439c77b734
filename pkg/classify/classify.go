package classify

import (
	"strings"

	"github.com/tagwatch/tagwatch/pkg/container"
)

// Analytics tag type codes, web and server variants.
var gaTagTypes = map[string]struct{}{
	"googtag":              {}, // Google tag (GA4 configuration)
	"gaawe":                {}, // GA4 event
	"gaawc":                {}, // Universal Analytics
	"sgtmgaaw":             {}, // server-side GA4
	"gaaw_client":          {}, // GA4 client surfaced as a tag
	"ga4_c":                {},
	"ga_c":                 {},
	"measurement_protocol": {},
}

// Analytics client type codes (server containers).
var gaClientTypes = map[string]struct{}{
	"ga4_c":       {},
	"ga_c":        {},
	"gaaw_client": {},
}

const (
	consentTemplateOwner = "gtm-templates-simo-ahava"
	consentTemplateRepo  = "consent-mode"
	consentHTMLMarker    = "gtag('consent'"
)

// Result holds the GA-relevant elements of one container version, keyed by id
// with the element name as value for rendering.
type Result struct {
	Tags    map[string]string
	Clients map[string]string

	// ConsentModeTagIDs lists the detected consent-mode tags, deduplicated,
	// in tag collection order. Never nil.
	ConsentModeTagIDs []string
}

// IsGATagType reports whether a declared tag type is in the analytics
// allowlist.
func IsGATagType(tagType string) bool {
	_, ok := gaTagTypes[tagType]
	return ok
}

// IsGAClientType reports whether a declared client type is in the analytics
// allowlist.
func IsGAClientType(clientType string) bool {
	_, ok := gaClientTypes[clientType]
	return ok
}

// Classify labels the GA-relevant tags and clients of a version under the
// given policy.
func Classify(version *container.Version, policy Policy) Result {
	result := Result{
		Tags:              make(map[string]string),
		Clients:           make(map[string]string),
		ConsentModeTagIDs: ConsentModeTagIDs(version),
	}

	consent := make(map[string]struct{}, len(result.ConsentModeTagIDs))
	for _, id := range result.ConsentModeTagIDs {
		consent[id] = struct{}{}
	}

	for i := range version.Tags {
		tag := &version.Tags[i]
		if tag.ID == "" {
			continue
		}
		relevant := IsGATagType(tag.Type)
		if !relevant {
			_, relevant = consent[tag.ID]
		}
		if !relevant {
			relevant = containsName(policy.CustomImpactNames.Tags, tag.Name)
		}
		if !relevant && policy.TreatAllCustomHTMLAsImportant && tag.Type == "html" {
			relevant = true
		}
		if relevant {
			result.Tags[tag.ID] = tag.Name
		}
	}

	for i := range version.Clients {
		client := &version.Clients[i]
		if client.ID == "" {
			continue
		}
		if IsGAClientType(client.Type) || containsName(policy.CustomImpactNames.Clients, client.Name) {
			result.Clients[client.ID] = client.Name
		}
	}

	return result
}

// ConsentModeTagIDs detects consent-mode tags. Preferred: tags built from the
// known gallery consent-mode template, matched by the trailing template id in
// their cvt_..._<templateId> type. Fallback when the template yields nothing:
// html tags whose template parameters carry a gtag('consent' call. The result
// is deduplicated and never nil.
func ConsentModeTagIDs(version *container.Version) []string {
	ids := make([]string, 0)
	seen := make(map[string]struct{})

	templateID := consentTemplateID(version)
	if templateID != "" {
		for i := range version.Tags {
			tag := &version.Tags[i]
			if tag.ID == "" || !strings.HasPrefix(tag.Type, "cvt_") {
				continue
			}
			parts := strings.Split(tag.Type, "_")
			if len(parts) > 1 && parts[len(parts)-1] == templateID {
				if _, dup := seen[tag.ID]; !dup {
					seen[tag.ID] = struct{}{}
					ids = append(ids, tag.ID)
				}
			}
		}
	}

	if len(ids) > 0 {
		return ids
	}

	for i := range version.Tags {
		tag := &version.Tags[i]
		if tag.ID == "" || tag.Type != "html" {
			continue
		}
		if htmlParamsContain(tag.Body, consentHTMLMarker) {
			if _, dup := seen[tag.ID]; !dup {
				seen[tag.ID] = struct{}{}
				ids = append(ids, tag.ID)
			}
		}
	}
	return ids
}

func consentTemplateID(version *container.Version) string {
	for i := range version.CustomTemplates {
		tpl := &version.CustomTemplates[i]
		if tpl.GalleryOwner == consentTemplateOwner && tpl.GalleryRepository == consentTemplateRepo {
			return tpl.TemplateID
		}
	}
	return ""
}

// htmlParamsContain scans a tag body's template parameters whose key names an
// html payload for the given marker.
func htmlParamsContain(body map[string]any, marker string) bool {
	params, ok := body["parameter"].([]any)
	if !ok {
		return false
	}
	for _, raw := range params {
		param, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		paramType, _ := param["type"].(string)
		key, _ := param["key"].(string)
		if paramType != "template" || !strings.Contains(key, "html") {
			continue
		}
		if value, ok := param["value"].(string); ok && strings.Contains(value, marker) {
			return true
		}
	}
	return false
}

// IsCustomVariable reports whether a variable should be treated as important
// under the policy's custom lists and blanket custom-JS rule.
func IsCustomVariable(v *container.Variable, policy Policy) bool {
	if containsName(policy.CustomImpactNames.Variables, v.Name) {
		return true
	}
	return policy.TreatAllCustomJSVariablesAsImportant && v.Type == "jsm"
}
