package googleauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSource yields a bearer token for outbound API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// assertionLifetime is the validity window requested per JWT assertion; the
// issued access token is refreshed slightly earlier than it expires.
const (
	assertionLifetime = time.Hour
	expirySlack       = 2 * time.Minute
	grantType         = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// JWTTokenSource signs a service-account assertion and exchanges it at the
// token endpoint, caching the access token until shortly before expiry. Safe
// for concurrent use.
type JWTTokenSource struct {
	creds  *Credentials
	scopes []string
	client *http.Client
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSource creates a token source for the given credentials. A nil
// client falls back to a 30s-timeout default.
func NewTokenSource(creds *Credentials, scopes []string, client *http.Client) *JWTTokenSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if len(scopes) == 0 {
		scopes = Scopes
	}
	return &JWTTokenSource{creds: creds, scopes: scopes, client: client, now: time.Now}
}

// Token returns a valid access token, refreshing if the cached one is about
// to expire.
func (ts *JWTTokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.token != "" && ts.now().Before(ts.expires.Add(-expirySlack)) {
		return ts.token, nil
	}

	assertion, err := ts.signAssertion()
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", grantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.creds.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("token exchange: decode response: %w", err)
	}
	if body.AccessToken == "" {
		return "", fmt.Errorf("token exchange: empty access_token")
	}

	ts.token = body.AccessToken
	ts.expires = ts.now().Add(time.Duration(body.ExpiresIn) * time.Second)
	return ts.token, nil
}

func (ts *JWTTokenSource) signAssertion() (string, error) {
	now := ts.now()
	claims := jwt.MapClaims{
		"iss":   ts.creds.ClientEmail,
		"scope": strings.Join(ts.scopes, " "),
		"aud":   ts.creds.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(ts.creds.key)
}

// StaticTokenSource returns the same token on every call. Test helper.
type StaticTokenSource string

func (s StaticTokenSource) Token(context.Context) (string, error) {
	return string(s), nil
}
