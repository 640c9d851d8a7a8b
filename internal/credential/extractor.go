// Package credential extracts the identity/access token pair from the opaque
// credential strings presented with an authorization request.
package credential

import (
	"errors"
	"strings"

	"github.com/project-atrium/warder/internal/request"
)

// Default cookie names for the paired tokens
const (
	DefaultIdentityTokenName = "awsIdToken"
	DefaultAccessTokenName   = "awsAccessToken"
)

// Extraction errors
var (
	// ErrCredentialsHeaderMissing indicates the request carried no
	// credentials-presence header at all
	ErrCredentialsHeaderMissing = errors.New("credentials header not present, but is required")

	// ErrIdentityTokenMissing indicates no credential entry matched the
	// identity token name
	ErrIdentityTokenMissing = errors.New("identity token missing from credentials")

	// ErrAccessTokenMissing indicates no credential entry matched the
	// access token name
	ErrAccessTokenMissing = errors.New("access token missing from credentials")
)

// Pair is the raw token pair extracted from a request. Both values are opaque
// signed token strings; nothing has been verified at this point.
type Pair struct {
	AccessToken   string
	IdentityToken string
}

// Extractor pulls the two named tokens out of an unordered credential list
type Extractor struct {
	identityName string
	accessName   string
}

// ExtractorConfig configures the credential names to look for
type ExtractorConfig struct {
	// IdentityTokenName is the credential name holding the identity token.
	// Defaults to "awsIdToken".
	IdentityTokenName string

	// AccessTokenName is the credential name holding the access token.
	// Defaults to "awsAccessToken".
	AccessTokenName string
}

// NewExtractor creates an extractor with the configured credential names
func NewExtractor(cfg ExtractorConfig) *Extractor {
	identityName := cfg.IdentityTokenName
	if identityName == "" {
		identityName = DefaultIdentityTokenName
	}
	accessName := cfg.AccessTokenName
	if accessName == "" {
		accessName = DefaultAccessTokenName
	}
	return &Extractor{
		identityName: identityName,
		accessName:   accessName,
	}
}

// Extract returns the token pair carried by the request.
//
// The request must carry a "cookie" header (credentials presence indicator).
// Matching is a prefix scan over the credential list in given order; the first
// entry whose name matches wins.
func (e *Extractor) Extract(req *request.CheckRequest) (*Pair, error) {
	if req.Header("cookie") == "" {
		return nil, ErrCredentialsHeaderMissing
	}

	accessToken, ok := valueByName(req.Credentials, e.accessName)
	if !ok {
		return nil, ErrAccessTokenMissing
	}

	identityToken, ok := valueByName(req.Credentials, e.identityName)
	if !ok {
		return nil, ErrIdentityTokenMissing
	}

	return &Pair{
		AccessToken:   accessToken,
		IdentityToken: identityToken,
	}, nil
}

// valueByName returns the value of the first "name=value" entry matching name
func valueByName(entries []string, name string) (string, bool) {
	prefix := name + "="
	for _, entry := range entries {
		if value, ok := strings.CutPrefix(entry, prefix); ok {
			return value, true
		}
	}
	return "", false
}
