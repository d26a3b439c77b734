package classify

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/tagwatch/tagwatch/pkg/container"
)

func mustVersion(t *testing.T, payload string) *container.Version {
	t.Helper()
	var v container.Version
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		t.Fatalf("unmarshal version: %v", err)
	}
	return &v
}

func TestIsGATagType(t *testing.T) {
	tests := []struct {
		tagType string
		want    bool
	}{
		{"googtag", true},
		{"gaawe", true},
		{"gaawc", true},
		{"sgtmgaaw", true},
		{"gaaw_client", true},
		{"ga4_c", true},
		{"ga_c", true},
		{"measurement_protocol", true},
		{"html", false},
		{"cvt_GTM-AAAA111_12", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsGATagType(tt.tagType); got != tt.want {
			t.Errorf("IsGATagType(%q) = %v, want %v", tt.tagType, got, tt.want)
		}
	}
}

func TestIsGAClientType(t *testing.T) {
	for _, clientType := range []string{"ga4_c", "ga_c", "gaaw_client"} {
		if !IsGAClientType(clientType) {
			t.Errorf("IsGAClientType(%q) = false", clientType)
		}
	}
	if IsGAClientType("custom_client") {
		t.Error("IsGAClientType(custom_client) = true")
	}
}

func TestClassifyByType(t *testing.T) {
	v := mustVersion(t, `{
		"containerVersionId": "1",
		"tag": [
			{"tagId": "t1", "name": "GA4 Config", "type": "googtag"},
			{"tagId": "t2", "name": "Pixel", "type": "img"}
		],
		"client": [
			{"clientId": "c1", "name": "GA4", "type": "gaaw_client"},
			{"clientId": "c2", "name": "Webhook", "type": "custom"}
		]
	}`)
	result := Classify(v, DefaultPolicy())

	if !reflect.DeepEqual(result.Tags, map[string]string{"t1": "GA4 Config"}) {
		t.Errorf("Tags = %v", result.Tags)
	}
	if !reflect.DeepEqual(result.Clients, map[string]string{"c1": "GA4"}) {
		t.Errorf("Clients = %v", result.Clients)
	}
	if result.ConsentModeTagIDs == nil || len(result.ConsentModeTagIDs) != 0 {
		t.Errorf("ConsentModeTagIDs = %v, want empty non-nil", result.ConsentModeTagIDs)
	}
}

func TestConsentModeByGalleryTemplate(t *testing.T) {
	v := mustVersion(t, `{
		"containerVersionId": "1",
		"customTemplate": [
			{"templateId": "12", "name": "Consent Mode",
			 "galleryReference": {"owner": "gtm-templates-simo-ahava", "repository": "consent-mode"}}
		],
		"tag": [
			{"tagId": "t1", "name": "Consent Default", "type": "cvt_GTM-AAAA111_12"},
			{"tagId": "t2", "name": "Other Template", "type": "cvt_GTM-AAAA111_99"},
			{"tagId": "t3", "name": "Consent Update", "type": "cvt_GTM-AAAA111_12"}
		]
	}`)

	got := ConsentModeTagIDs(v)
	if !reflect.DeepEqual(got, []string{"t1", "t3"}) {
		t.Errorf("ConsentModeTagIDs = %v, want [t1 t3]", got)
	}

	result := Classify(v, DefaultPolicy())
	if _, ok := result.Tags["t1"]; !ok {
		t.Error("consent tag t1 should be GA-relevant")
	}
	if _, ok := result.Tags["t2"]; ok {
		t.Error("tag from unrelated template should not be GA-relevant")
	}
}

func TestConsentModeHTMLFallback(t *testing.T) {
	v := mustVersion(t, `{
		"containerVersionId": "1",
		"tag": [
			{"tagId": "t1", "name": "Consent Script", "type": "html",
			 "parameter": [{"type": "template", "key": "html",
			                "value": "<script>gtag('consent','default',{});</script>"}]},
			{"tagId": "t2", "name": "Banner", "type": "html",
			 "parameter": [{"type": "template", "key": "html", "value": "<div>hi</div>"}]},
			{"tagId": "t3", "name": "Not HTML param", "type": "html",
			 "parameter": [{"type": "template", "key": "css", "value": "gtag('consent'"}]}
		]
	}`)
	got := ConsentModeTagIDs(v)
	if !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("ConsentModeTagIDs = %v, want [t1]", got)
	}
}

func TestConsentTemplateSuppressesHTMLFallback(t *testing.T) {
	// When the gallery template matches tags, html scanning must not run.
	v := mustVersion(t, `{
		"containerVersionId": "1",
		"customTemplate": [
			{"templateId": "12",
			 "galleryReference": {"owner": "gtm-templates-simo-ahava", "repository": "consent-mode"}}
		],
		"tag": [
			{"tagId": "t1", "name": "Template Consent", "type": "cvt_GTM-AAAA111_12"},
			{"tagId": "t2", "name": "Inline Consent", "type": "html",
			 "parameter": [{"type": "template", "key": "html", "value": "gtag('consent','update',{})"}]}
		]
	}`)
	got := ConsentModeTagIDs(v)
	if !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("ConsentModeTagIDs = %v, want [t1]", got)
	}
}

func TestCustomImpactNames(t *testing.T) {
	v := mustVersion(t, `{
		"containerVersionId": "1",
		"tag": [{"tagId": "t1", "name": "Critical Pixel", "type": "img"}],
		"client": [{"clientId": "c1", "name": "Special Client", "type": "custom"}]
	}`)
	policy := DefaultPolicy()
	policy.CustomImpactNames.Tags = []string{"Critical Pixel"}
	policy.CustomImpactNames.Clients = []string{"Special Client"}

	result := Classify(v, policy)
	if _, ok := result.Tags["t1"]; !ok {
		t.Error("custom-listed tag should be GA-relevant")
	}
	if _, ok := result.Clients["c1"]; !ok {
		t.Error("custom-listed client should be GA-relevant")
	}
}

func TestTreatAllCustomHTML(t *testing.T) {
	v := mustVersion(t, `{
		"containerVersionId": "1",
		"tag": [{"tagId": "t1", "name": "Any HTML", "type": "html"}]
	}`)

	if result := Classify(v, DefaultPolicy()); len(result.Tags) != 0 {
		t.Errorf("Tags = %v, want none", result.Tags)
	}

	policy := DefaultPolicy()
	policy.TreatAllCustomHTMLAsImportant = true
	if result := Classify(v, policy); len(result.Tags) != 1 {
		t.Errorf("Tags = %v, want t1", result.Tags)
	}
}

func TestIsCustomVariable(t *testing.T) {
	jsVar := &container.Variable{ID: "v1", Name: "Calc", Type: "jsm"}
	plainVar := &container.Variable{ID: "v2", Name: "DL", Type: "v"}

	policy := DefaultPolicy()
	if IsCustomVariable(jsVar, policy) {
		t.Error("jsm variable should not be important by default")
	}

	policy.TreatAllCustomJSVariablesAsImportant = true
	if !IsCustomVariable(jsVar, policy) {
		t.Error("jsm variable should be important under blanket rule")
	}
	if IsCustomVariable(plainVar, policy) {
		t.Error("blanket rule must only cover jsm variables")
	}

	policy = DefaultPolicy()
	policy.CustomImpactNames.Variables = []string{"DL"}
	if !IsCustomVariable(plainVar, policy) {
		t.Error("custom-listed variable should be important")
	}
}

func TestVisitBudget(t *testing.T) {
	if got := (Policy{}).VisitBudget(); got != DefaultMaxVisitedNodes {
		t.Errorf("zero policy budget = %d", got)
	}
	if got := (Policy{MaxVisitedNodes: 5}).VisitBudget(); got != 5 {
		t.Errorf("explicit budget = %d", got)
	}
}
