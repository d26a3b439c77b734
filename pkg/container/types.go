package container

// Version is an immutable snapshot of a published container configuration.
// Entity collections are unordered; every entity keeps its raw decoded body so
// downstream diffing and reference extraction see exactly what the API sent.
type Version struct {
	AccountID          string           `json:"accountId"`
	ContainerID        string           `json:"containerId"`
	ContainerVersionID string           `json:"containerVersionId"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	Fingerprint        string           `json:"fingerprint"`
	Container          Meta             `json:"container"`
	Tags               []Tag            `json:"tag"`
	Variables          []Variable       `json:"variable"`
	Triggers           []Trigger        `json:"trigger"`
	Clients            []Client         `json:"client"`
	Transformations    []Transformation `json:"transformation"`
	CustomTemplates    []CustomTemplate `json:"customTemplate"`
}

// Meta is the container metadata embedded in a version.
type Meta struct {
	Name              string   `json:"name"`
	PublicID          string   `json:"publicId"`
	TaggingServerURLs []string `json:"taggingServerUrls"`
}

// Tag is a single tag entity. FiringTriggerIDs and BlockingTriggerIDs tolerate
// both scalar and list encodings. Setup and teardown tags are declared by name,
// not id.
type Tag struct {
	ID                 string
	Name               string
	Type               string
	FiringTriggerIDs   []string
	BlockingTriggerIDs []string
	SetupTagNames      []string
	TeardownTagNames   []string
	Body               map[string]any
}

// Variable is a single variable entity.
type Variable struct {
	ID   string
	Name string
	Type string
	Body map[string]any
}

// Trigger is a single trigger entity.
type Trigger struct {
	ID   string
	Name string
	Type string
	Body map[string]any
}

// Client is a server-container inbound request handler.
type Client struct {
	ID   string
	Name string
	Type string
	Body map[string]any
}

// Transformation is a server-container data transform.
type Transformation struct {
	ID   string
	Name string
	Type string
	Body map[string]any
}

// CustomTemplate is a community-gallery or custom tag template.
type CustomTemplate struct {
	TemplateID        string
	Name              string
	GalleryOwner      string
	GalleryRepository string
	Body              map[string]any
}

// IsServer reports whether this snapshot describes a server-side container.
// Either a client collection or tagging server URLs on the container metadata
// marks it as one.
func (v *Version) IsServer() bool {
	return len(v.Clients) > 0 || len(v.Container.TaggingServerURLs) > 0
}

// TagByID returns the tag with the given id, or nil.
func (v *Version) TagByID(id string) *Tag {
	for i := range v.Tags {
		if v.Tags[i].ID == id {
			return &v.Tags[i]
		}
	}
	return nil
}

// VariableByID returns the variable with the given id, or nil.
func (v *Version) VariableByID(id string) *Variable {
	for i := range v.Variables {
		if v.Variables[i].ID == id {
			return &v.Variables[i]
		}
	}
	return nil
}

// TriggerByID returns the trigger with the given id, or nil.
func (v *Version) TriggerByID(id string) *Trigger {
	for i := range v.Triggers {
		if v.Triggers[i].ID == id {
			return &v.Triggers[i]
		}
	}
	return nil
}

// ClientByID returns the client with the given id, or nil.
func (v *Version) ClientByID(id string) *Client {
	for i := range v.Clients {
		if v.Clients[i].ID == id {
			return &v.Clients[i]
		}
	}
	return nil
}

// TransformationByID returns the transformation with the given id, or nil.
func (v *Version) TransformationByID(id string) *Transformation {
	for i := range v.Transformations {
		if v.Transformations[i].ID == id {
			return &v.Transformations[i]
		}
	}
	return nil
}
