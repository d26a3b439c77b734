// Package googleauth implements the service-account JWT bearer flow used to
// call the Tag Manager and Analytics Admin APIs.
package googleauth

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

var (
	ErrMissingClientEmail = errors.New("credentials file has no client_email")
	ErrMissingPrivateKey  = errors.New("credentials file has no private_key")
	ErrNotRSAKey          = errors.New("private_key is not an RSA key")
)

// Scopes requested for every token. Tag Manager is read-only; the Analytics
// scopes allow annotation writes.
var Scopes = []string{
	"https://www.googleapis.com/auth/tagmanager.readonly",
	"https://www.googleapis.com/auth/analytics",
	"https://www.googleapis.com/auth/analytics.edit",
}

const defaultTokenURI = "https://oauth2.googleapis.com/token"

// Credentials is the subset of a service-account key file this flow needs.
type Credentials struct {
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
	TokenURI    string `json:"token_uri"`

	key *rsa.PrivateKey
}

// LoadCredentials reads and parses a service-account key file.
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials %s: %w", path, err)
	}
	return ParseCredentials(data)
}

// ParseCredentials parses service-account key JSON and decodes the RSA key.
func ParseCredentials(data []byte) (*Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if creds.ClientEmail == "" {
		return nil, ErrMissingClientEmail
	}
	if creds.PrivateKey == "" {
		return nil, ErrMissingPrivateKey
	}
	if creds.TokenURI == "" {
		creds.TokenURI = defaultTokenURI
	}

	block, _ := pem.Decode([]byte(creds.PrivateKey))
	if block == nil {
		return nil, fmt.Errorf("parse credentials: private_key is not PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		// Older key files use PKCS#1.
		if rsaKey, pkcs1Err := x509.ParsePKCS1PrivateKey(block.Bytes); pkcs1Err == nil {
			creds.key = rsaKey
			return &creds, nil
		}
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrNotRSAKey
	}
	creds.key = rsaKey
	return &creds, nil
}
