package container

import (
	"encoding/json"
	"fmt"
)

// Entity decoding keeps the raw body alongside the typed fields. Upstream
// snapshots are third-party data that may be incomplete or in transition, so
// every accessor below treats missing or wrongly typed fields as absent.

func decodeBody(data []byte) (map[string]any, error) {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	return body, nil
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

// stringList accepts either a scalar string or a list of strings. The live
// version endpoint has been observed to return both shapes for trigger id
// fields.
func stringList(v any) []string {
	switch val := v.(type) {
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// tagNameRefs pulls tagName values out of a setupTag/teardownTag list.
func tagNameRefs(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var names []string
	for _, item := range items {
		ref, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if name, ok := ref["tagName"].(string); ok && name != "" {
			names = append(names, name)
		}
	}
	return names
}

// ParseVersion decodes a container version payload. The API wraps live
// version responses in a containerVersion envelope; bare versions are also
// accepted.
func ParseVersion(data []byte) (*Version, error) {
	var envelope struct {
		ContainerVersion *Version `json:"containerVersion"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.ContainerVersion != nil {
		return envelope.ContainerVersion, nil
	}
	var version Version
	if err := json.Unmarshal(data, &version); err != nil {
		return nil, fmt.Errorf("parse container version: %w", err)
	}
	return &version, nil
}

// UnmarshalJSON decodes a tag, retaining the raw body.
func (t *Tag) UnmarshalJSON(data []byte) error {
	body, err := decodeBody(data)
	if err != nil {
		return err
	}
	t.Body = body
	t.ID = stringField(body, "tagId")
	t.Name = stringField(body, "name")
	t.Type = stringField(body, "type")
	t.FiringTriggerIDs = stringList(body["firingTriggerId"])
	t.BlockingTriggerIDs = stringList(body["blockingTriggerId"])
	t.SetupTagNames = tagNameRefs(body["setupTag"])
	t.TeardownTagNames = tagNameRefs(body["teardownTag"])
	return nil
}

// MarshalJSON emits the raw body so a decoded version round-trips losslessly.
func (t Tag) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Body)
}

// UnmarshalJSON decodes a variable, retaining the raw body.
func (v *Variable) UnmarshalJSON(data []byte) error {
	body, err := decodeBody(data)
	if err != nil {
		return err
	}
	v.Body = body
	v.ID = stringField(body, "variableId")
	v.Name = stringField(body, "name")
	v.Type = stringField(body, "type")
	return nil
}

func (v Variable) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Body)
}

// UnmarshalJSON decodes a trigger, retaining the raw body.
func (t *Trigger) UnmarshalJSON(data []byte) error {
	body, err := decodeBody(data)
	if err != nil {
		return err
	}
	t.Body = body
	t.ID = stringField(body, "triggerId")
	t.Name = stringField(body, "name")
	t.Type = stringField(body, "type")
	return nil
}

func (t Trigger) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Body)
}

// UnmarshalJSON decodes a client, retaining the raw body.
func (c *Client) UnmarshalJSON(data []byte) error {
	body, err := decodeBody(data)
	if err != nil {
		return err
	}
	c.Body = body
	c.ID = stringField(body, "clientId")
	c.Name = stringField(body, "name")
	c.Type = stringField(body, "type")
	return nil
}

func (c Client) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Body)
}

// UnmarshalJSON decodes a transformation, retaining the raw body.
func (t *Transformation) UnmarshalJSON(data []byte) error {
	body, err := decodeBody(data)
	if err != nil {
		return err
	}
	t.Body = body
	t.ID = stringField(body, "transformationId")
	t.Name = stringField(body, "name")
	t.Type = stringField(body, "type")
	return nil
}

func (t Transformation) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Body)
}

// UnmarshalJSON decodes a custom template, retaining the raw body. Gallery
// lineage identifies community templates such as the consent-mode template.
func (ct *CustomTemplate) UnmarshalJSON(data []byte) error {
	body, err := decodeBody(data)
	if err != nil {
		return err
	}
	ct.Body = body
	ct.TemplateID = stringField(body, "templateId")
	ct.Name = stringField(body, "name")
	if ref, ok := body["galleryReference"].(map[string]any); ok {
		ct.GalleryOwner, _ = ref["owner"].(string)
		ct.GalleryRepository, _ = ref["repository"].(string)
	}
	return nil
}

func (ct CustomTemplate) MarshalJSON() ([]byte, error) {
	return json.Marshal(ct.Body)
}
