// Package ga4 posts reporting data annotations to the Analytics Admin API so
// GTM publishes show up on GA4 report timelines.
package ga4

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tagwatch/tagwatch/pkg/container"
	"github.com/tagwatch/tagwatch/pkg/googleauth"
	"github.com/tagwatch/tagwatch/pkg/logging"
)

const defaultBaseURL = "https://analyticsadmin.googleapis.com/v1alpha"

// GA4 rejects descriptions of 150 characters or more.
const (
	maxDescriptionLength   = 149
	descriptionPlaceholder = "Description too long to display in GA4. Check GTM for details."
)

// Annotation colors.
const (
	colorNew      = "BLUE"
	colorRollback = "RED"
)

// Annotation is the request body of
// properties.reportingDataAnnotations.create.
type Annotation struct {
	Title          string         `json:"title"`
	Description    string         `json:"description,omitempty"`
	Color          string         `json:"color"`
	AnnotationDate annotationDate `json:"annotationDate"`
}

type annotationDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

// Client posts annotations for one service-account credential.
type Client struct {
	baseURL string
	tokens  googleauth.TokenSource
	http    *http.Client
	logger  logging.Logger
}

// NewClient builds an annotation client. A nil httpClient falls back to a
// 30s-timeout default.
func NewClient(tokens googleauth.TokenSource, httpClient *http.Client, logger logging.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{baseURL: defaultBaseURL, tokens: tokens, http: httpClient, logger: logger}
}

// WithBaseURL overrides the API endpoint. Test helper.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// BuildAnnotation derives the annotation for a published version. rollback
// selects the red rollback variant; otherwise the annotation marks a new
// version in blue. The annotation date comes from the version fingerprint,
// a millisecond unix timestamp.
func BuildAnnotation(version *container.Version, publicID string, rollback bool) (*Annotation, error) {
	ms, err := strconv.ParseInt(version.Fingerprint, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse fingerprint %q: %w", version.Fingerprint, err)
	}
	published := time.UnixMilli(ms).UTC()

	title := fmt.Sprintf("New GTM Version (%s) - %s", version.ContainerVersionID, publicID)
	color := colorNew
	if rollback {
		title = fmt.Sprintf("GTM Version Rollback (%s) - %s", version.ContainerVersionID, publicID)
		color = colorRollback
	}

	description := fmt.Sprintf("Name: %s - Description: %s", version.Name, version.Description)
	if len(description) >= maxDescriptionLength {
		description = descriptionPlaceholder
	}

	return &Annotation{
		Title:       title,
		Description: description,
		Color:       color,
		AnnotationDate: annotationDate{
			Year:  published.Year(),
			Month: int(published.Month()),
			Day:   published.Day(),
		},
	}, nil
}

// CreateAnnotation posts an annotation to a GA4 property.
func (c *Client) CreateAnnotation(ctx context.Context, propertyID string, annotation *Annotation) error {
	payload, err := json.Marshal(annotation)
	if err != nil {
		return err
	}

	u := fmt.Sprintf("%s/properties/%s/reportingDataAnnotations", c.baseURL, propertyID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("create annotation for property %s: %w", propertyID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("create annotation for property %s: status %d: %s", propertyID, resp.StatusCode, string(body))
	}

	c.logger.Info("annotation created",
		logging.PropertyID(propertyID),
		logging.String("title", annotation.Title),
		logging.String("color", annotation.Color))
	return nil
}
