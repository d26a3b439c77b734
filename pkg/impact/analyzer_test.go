package impact

import (
	"strings"
	"testing"

	"github.com/tagwatch/tagwatch/pkg/classify"
)

func analyze(t *testing.T, oldPayload, newPayload string, policy classify.Policy) Analysis {
	t.Helper()
	a := NewAnalyzer(policy, nil)
	return a.Analyze(mustVersion(t, oldPayload), mustVersion(t, newPayload))
}

func requireDescription(t *testing.T, result Result, want string) {
	t.Helper()
	for _, desc := range result.Descriptions {
		if desc == want {
			return
		}
	}
	t.Errorf("description %q not found in %v", want, result.Descriptions)
}

func TestAnalyzeNoChanges(t *testing.T) {
	analysis := analyze(t, directImpactVersion, directImpactVersion, classify.DefaultPolicy())
	if !analysis.Changes.Empty() {
		t.Errorf("Changes = %+v, want empty", analysis.Changes)
	}
	if analysis.Result.Impacted {
		t.Error("no changes must mean no impact")
	}
}

func TestAnalyzeChangedGATag(t *testing.T) {
	oldV := `{
		"containerVersionId": "1",
		"tag": [{"tagId": "t1", "name": "GA4 Event", "type": "gaawe",
		         "parameter": [{"key": "eventName", "value": "purchase"}]}]
	}`
	newV := `{
		"containerVersionId": "2",
		"tag": [{"tagId": "t1", "name": "GA4 Event", "type": "gaawe",
		         "parameter": [{"key": "eventName", "value": "buy"}]}]
	}`
	analysis := analyze(t, oldV, newV, classify.DefaultPolicy())
	if !analysis.Result.Impacted {
		t.Fatal("changed GA tag must be impacting")
	}
	requireDescription(t, analysis.Result,
		"Direct GA impact: Tag 'GA4 Event' is a GA-relevant tag (type: gaawe)")
}

func TestAnalyzeDeletedGATag(t *testing.T) {
	oldV := `{
		"containerVersionId": "1",
		"tag": [{"tagId": "t1", "name": "GA4 Config", "type": "googtag"}]
	}`
	newV := `{"containerVersionId": "2", "tag": []}`
	analysis := analyze(t, oldV, newV, classify.DefaultPolicy())
	if !analysis.Result.Impacted {
		t.Fatal("deleting a GA tag must be impacting")
	}
	// The tag only exists in the old snapshot; type and name resolve from there.
	requireDescription(t, analysis.Result,
		"Direct GA impact: Tag 'GA4 Config' is a GA-relevant tag (type: googtag)")
}

func TestAnalyzeConsentModeTag(t *testing.T) {
	oldV := `{
		"containerVersionId": "1",
		"customTemplate": [
			{"templateId": "12",
			 "galleryReference": {"owner": "gtm-templates-simo-ahava", "repository": "consent-mode"}}
		],
		"tag": [{"tagId": "t1", "name": "Consent Default", "type": "cvt_GTM-AAAA111_12",
		         "parameter": [{"key": "adStorage", "value": "denied"}]}]
	}`
	newV := strings.Replace(oldV, `"denied"`, `"granted"`, 1)
	analysis := analyze(t, oldV, newV, classify.DefaultPolicy())
	if !analysis.Result.Impacted {
		t.Fatal("changed consent tag must be impacting")
	}
	requireDescription(t, analysis.Result,
		"Consent mode impact: Tag 'Consent Default' is a consent mode tag")
}

func TestAnalyzeTriggerForGATag(t *testing.T) {
	oldV := `{
		"containerVersionId": "1",
		"tag": [{"tagId": "t1", "name": "GA4 Event", "type": "gaawe", "firingTriggerId": ["tr1"]}],
		"trigger": [{"triggerId": "tr1", "name": "Purchase", "type": "customEvent",
		             "customEventFilter": [{"parameter": [{"key": "arg1", "value": "purchase"}]}]}]
	}`
	newV := strings.Replace(oldV, `"purchase"`, `"order"`, 1)
	analysis := analyze(t, oldV, newV, classify.DefaultPolicy())
	if !analysis.Result.Impacted {
		t.Fatal("changed trigger of a GA tag must be impacting")
	}
	requireDescription(t, analysis.Result,
		"Trigger impact: Changed trigger 'Purchase' is a firing trigger for GA tag 'GA4 Event'")
}

func TestAnalyzeDeepVariableChain(t *testing.T) {
	newV := `{
		"containerVersionId": "2",
		"tag": [
			{"tagId": "t3", "name": "GA4 Purchase", "type": "gaawe",
			 "parameter": [{"type": "template", "key": "value", "value": "{{C}}"}]}
		],
		"variable": [
			{"variableId": "va", "name": "A", "type": "jsm",
			 "parameter": [{"key": "javascript", "value": "return {{B}} + 1;"}]},
			{"variableId": "vb", "name": "B", "type": "jsm",
			 "parameter": [{"key": "javascript", "value": "return {{C}};"}]},
			{"variableId": "vc", "name": "C", "type": "v"}
		]
	}`
	oldV := strings.Replace(newV, "return {{B}} + 1;", "return {{B}};", 1)
	analysis := analyze(t, oldV, newV, classify.DefaultPolicy())
	if !analysis.Result.Impacted {
		t.Fatal("changed variable with transitive GA path must be impacting")
	}
	requireDescription(t, analysis.Result,
		"Deep variable dependency chain: Variable 'A' → Variable 'B' → Variable 'C'")
}

func TestAnalyzeIsolatedVariableChange(t *testing.T) {
	newV := `{
		"containerVersionId": "2",
		"tag": [{"tagId": "t1", "name": "GA4", "type": "googtag"}],
		"variable": [{"variableId": "v9", "name": "Isolated", "type": "v",
		              "parameter": [{"key": "value", "value": "b"}]}]
	}`
	oldV := strings.Replace(newV, `"value": "b"`, `"value": "a"`, 1)
	analysis := analyze(t, oldV, newV, classify.DefaultPolicy())
	if analysis.Result.Impacted {
		t.Errorf("isolated variable change must not be impacting: %v", analysis.Result.Descriptions)
	}
	if analysis.Changes.Variables.Empty() {
		t.Error("the variable change itself must still be detected")
	}
}

func TestAnalyzeCustomVariable(t *testing.T) {
	newV := `{
		"containerVersionId": "2",
		"variable": [{"variableId": "v1", "name": "Important Calc", "type": "jsm",
		              "parameter": [{"key": "javascript", "value": "return 2;"}]}]
	}`
	oldV := strings.Replace(newV, "return 2;", "return 1;", 1)

	policy := classify.DefaultPolicy()
	policy.CustomImpactNames.Variables = []string{"Important Calc"}
	analysis := analyze(t, oldV, newV, policy)
	requireDescription(t, analysis.Result,
		"Custom GA impact: Variable 'Important Calc' is configured as GA-impacting")

	policy = classify.DefaultPolicy()
	policy.TreatAllCustomJSVariablesAsImportant = true
	analysis = analyze(t, oldV, newV, policy)
	if !analysis.Result.Impacted {
		t.Error("blanket custom-JS rule should flag the changed jsm variable")
	}
}

func TestAnalyzeSetupTagImpact(t *testing.T) {
	newV := `{
		"containerVersionId": "2",
		"tag": [
			{"tagId": "t1", "name": "Prep", "type": "html",
			 "parameter": [{"key": "html", "value": "<script>b</script>"}]},
			{"tagId": "t2", "name": "GA4 Event", "type": "gaawe",
			 "setupTag": [{"tagName": "Prep"}]}
		]
	}`
	oldV := strings.Replace(newV, "<script>b</script>", "<script>a</script>", 1)
	analysis := analyze(t, oldV, newV, classify.DefaultPolicy())
	requireDescription(t, analysis.Result,
		"Setup tag impact: Tag 'Prep' is a setup tag for GA tag 'GA4 Event'")
}

func TestAnalyzeServerContainer(t *testing.T) {
	newV := `{
		"containerVersionId": "2",
		"container": {"taggingServerUrls": ["https://sgtm.example.com"]},
		"client": [{"clientId": "c1", "name": "GA4 Client", "type": "gaaw_client",
		            "parameter": [{"key": "priority", "value": "2"}]}],
		"tag": [{"tagId": "t1", "name": "Server GA4", "type": "sgtmgaaw"}],
		"transformation": [
			{"transformationId": "x1", "name": "Strip PII",
			 "parameter": [
				{"key": "input", "value": "{{Client ID}}"},
				{"key": "affectedTags", "value": "Server GA4"},
				{"key": "note", "value": "updated"}
			 ]}
		],
		"variable": [{"variableId": "v1", "name": "Client ID", "type": "v"}]
	}`
	oldV := strings.Replace(newV, `"value": "updated"`, `"value": "original"`, 1)
	oldV = strings.Replace(oldV, `"value": "2"`, `"value": "1"`, 1)

	analysis := analyze(t, oldV, newV, classify.DefaultPolicy())
	if !analysis.Result.Impacted {
		t.Fatal("server container changes must be impacting")
	}
	requireDescription(t, analysis.Result,
		"Direct GA impact: Client 'GA4 Client' is a GA client")
	requireDescription(t, analysis.Result,
		"Transformation impact: 'Strip PII' directly impacts GA tag 'Server GA4'")
}

func TestAnalyzeServerVariableTransformation(t *testing.T) {
	newV := `{
		"containerVersionId": "2",
		"container": {"taggingServerUrls": ["https://sgtm.example.com"]},
		"tag": [{"tagId": "t1", "name": "Server GA4", "type": "sgtmgaaw"}],
		"transformation": [
			{"transformationId": "x1", "name": "Strip PII",
			 "parameter": [
				{"key": "input", "value": "{{Client ID}}"},
				{"key": "affectedTags", "value": "Server GA4"}
			 ]}
		],
		"variable": [{"variableId": "v1", "name": "Client ID", "type": "v",
		              "parameter": [{"key": "value", "value": "b"}]}]
	}`
	oldV := strings.Replace(newV, `"value": "b"`, `"value": "a"`, 1)
	analysis := analyze(t, oldV, newV, classify.DefaultPolicy())
	requireDescription(t, analysis.Result,
		"Server variable-transformation impact: Variable 'Client ID' is used in transformation 'Strip PII' which affects GA tags: Server GA4")
}

func TestAnalyzePathsParallelDescriptions(t *testing.T) {
	analysis := analyze(t,
		`{"containerVersionId": "1",
		  "tag": [{"tagId": "t1", "name": "GA4", "type": "googtag",
		           "parameter": [{"key": "a", "value": "1"}]}]}`,
		`{"containerVersionId": "2",
		  "tag": [{"tagId": "t1", "name": "GA4", "type": "googtag",
		           "parameter": [{"key": "a", "value": "2"}]}]}`,
		classify.DefaultPolicy())
	if len(analysis.Result.Paths) != len(analysis.Result.Descriptions) {
		t.Errorf("paths (%d) and descriptions (%d) out of step",
			len(analysis.Result.Paths), len(analysis.Result.Descriptions))
	}
}
