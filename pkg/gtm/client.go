// Package gtm is a minimal Tag Manager API v2 client covering the read
// surface tagwatch needs: account and container discovery plus live-version
// fetches.
package gtm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tagwatch/tagwatch/pkg/container"
	"github.com/tagwatch/tagwatch/pkg/googleauth"
	"github.com/tagwatch/tagwatch/pkg/logging"
)

const defaultBaseURL = "https://tagmanager.googleapis.com/tagmanager/v2"

var ErrContainerNotFound = errors.New("container not found")

// Account is one Tag Manager account as returned by accounts.list.
type Account struct {
	Path      string `json:"path"`
	AccountID string `json:"accountId"`
	Name      string `json:"name"`
}

// Container is one container as returned by accounts.containers.list.
type Container struct {
	Path        string `json:"path"`
	AccountID   string `json:"accountId"`
	ContainerID string `json:"containerId"`
	Name        string `json:"name"`
	PublicID    string `json:"publicId"`
}

// Client calls the Tag Manager API with a bearer token per request.
type Client struct {
	baseURL string
	tokens  googleauth.TokenSource
	http    *http.Client
	logger  logging.Logger
}

// NewClient builds a client. A nil httpClient falls back to a 60s-timeout
// default; version payloads for large containers can be slow to stream.
func NewClient(tokens googleauth.TokenSource, httpClient *http.Client, logger logging.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
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

// Accounts lists every account the credential can read, following pagination.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var accounts []Account
	pageToken := ""
	for {
		var page struct {
			Account       []Account `json:"account"`
			NextPageToken string    `json:"nextPageToken"`
		}
		if err := c.get(ctx, "/accounts", pageToken, &page); err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		accounts = append(accounts, page.Account...)
		if page.NextPageToken == "" {
			return accounts, nil
		}
		pageToken = page.NextPageToken
	}
}

// Containers lists the containers under one account path, following
// pagination.
func (c *Client) Containers(ctx context.Context, accountPath string) ([]Container, error) {
	var containers []Container
	pageToken := ""
	for {
		var page struct {
			Container     []Container `json:"container"`
			NextPageToken string      `json:"nextPageToken"`
		}
		if err := c.get(ctx, "/"+accountPath+"/containers", pageToken, &page); err != nil {
			return nil, fmt.Errorf("list containers for %s: %w", accountPath, err)
		}
		containers = append(containers, page.Container...)
		if page.NextPageToken == "" {
			return containers, nil
		}
		pageToken = page.NextPageToken
	}
}

// FindContainerByPublicID scans every readable account for the container with
// the given public id (GTM-XXXXXXX).
func (c *Client) FindContainerByPublicID(ctx context.Context, publicID string) (*Container, error) {
	accounts, err := c.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, account := range accounts {
		containers, err := c.Containers(ctx, account.Path)
		if err != nil {
			c.logger.Warn("skipping account after container list failure",
				logging.String("account", account.AccountID),
				logging.Error(err))
			continue
		}
		for i := range containers {
			if containers[i].PublicID == publicID {
				return &containers[i], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrContainerNotFound, publicID)
}

// Version fetches one specific container version by id.
func (c *Client) Version(ctx context.Context, containerPath, versionID string) (*container.Version, error) {
	var version container.Version
	if err := c.get(ctx, "/"+containerPath+"/versions/"+versionID, "", &version); err != nil {
		return nil, fmt.Errorf("fetch version %s for %s: %w", versionID, containerPath, err)
	}
	return &version, nil
}

// LiveVersion fetches the published version of a container.
func (c *Client) LiveVersion(ctx context.Context, containerPath string) (*container.Version, error) {
	var version container.Version
	if err := c.get(ctx, "/"+containerPath+"/versions:live", "", &version); err != nil {
		return nil, fmt.Errorf("fetch live version for %s: %w", containerPath, err)
	}
	return &version, nil
}

func (c *Client) get(ctx context.Context, path, pageToken string, out any) error {
	u := c.baseURL + path
	if pageToken != "" {
		u += "?pageToken=" + url.QueryEscape(pageToken)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
