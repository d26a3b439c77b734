package googleauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func testKeyPEM(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	block := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	return key, string(block)
}

func testCredentialsJSON(t *testing.T, tokenURI string) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, pemStr := testKeyPEM(t)
	data, err := json.Marshal(map[string]string{
		"client_email": "svc@project.iam.gserviceaccount.com",
		"private_key":  pemStr,
		"token_uri":    tokenURI,
	})
	require.NoError(t, err)
	return data, key
}

func TestParseCredentials(t *testing.T) {
	data, _ := testCredentialsJSON(t, "")
	creds, err := ParseCredentials(data)
	require.NoError(t, err)
	require.Equal(t, "svc@project.iam.gserviceaccount.com", creds.ClientEmail)
	require.Equal(t, defaultTokenURI, creds.TokenURI, "empty token_uri falls back to the Google endpoint")
	require.NotNil(t, creds.key)
}

func TestParseCredentialsPKCS1(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	data, err := json.Marshal(map[string]string{
		"client_email": "svc@project.iam.gserviceaccount.com",
		"private_key":  string(block),
	})
	require.NoError(t, err)

	creds, err := ParseCredentials(data)
	require.NoError(t, err)
	require.NotNil(t, creds.key)
}

func TestParseCredentialsErrors(t *testing.T) {
	_, pemStr := testKeyPEM(t)
	tests := []struct {
		name string
		body map[string]string
		want error
	}{
		{
			name: "missing email",
			body: map[string]string{"private_key": pemStr},
			want: ErrMissingClientEmail,
		},
		{
			name: "missing key",
			body: map[string]string{"client_email": "a@b.c"},
			want: ErrMissingPrivateKey,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.body)
			require.NoError(t, err)
			_, err = ParseCredentials(data)
			require.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("not pem", func(t *testing.T) {
		data, err := json.Marshal(map[string]string{
			"client_email": "a@b.c",
			"private_key":  "not a key",
		})
		require.NoError(t, err)
		_, err = ParseCredentials(data)
		require.Error(t, err)
	})
}

func TestTokenSourceExchange(t *testing.T) {
	var gotAssertion string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, grantType, r.Form.Get("grant_type"))
		gotAssertion = r.Form.Get("assertion")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-1",
			"expires_in":   3600,
		})
	}))
	defer server.Close()

	data, key := testCredentialsJSON(t, server.URL)
	creds, err := ParseCredentials(data)
	require.NoError(t, err)

	ts := NewTokenSource(creds, nil, server.Client())
	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok-1", token)

	// The assertion must be a valid RS256 JWT with our claims.
	parsed, err := jwt.Parse(gotAssertion, func(*jwt.Token) (any, error) {
		return &key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	require.Equal(t, "svc@project.iam.gserviceaccount.com", claims["iss"])
	require.Contains(t, claims["scope"], "tagmanager.readonly")
}

func TestTokenSourceCaching(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok", "expires_in": 3600})
	}))
	defer server.Close()

	data, _ := testCredentialsJSON(t, server.URL)
	creds, err := ParseCredentials(data)
	require.NoError(t, err)
	ts := NewTokenSource(creds, nil, server.Client())

	for i := 0; i < 3; i++ {
		_, err := ts.Token(context.Background())
		require.NoError(t, err)
	}
	require.Equal(t, 1, calls, "cached token must be reused")

	// Force expiry; the next call re-fetches.
	ts.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestTokenSourceErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer server.Close()

	data, _ := testCredentialsJSON(t, server.URL)
	creds, err := ParseCredentials(data)
	require.NoError(t, err)
	ts := NewTokenSource(creds, nil, server.Client())

	_, err = ts.Token(context.Background())
	require.Error(t, err)
}
