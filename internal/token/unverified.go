// Package token decodes and verifies the paired identity/access tokens.
//
// Two distinct levels of trust live here. UnverifiedClaims is a structural
// decode only (base64url + JSON, no signature check) and is safe solely for
// routing decisions: discovering which issuer to look up and which signing key
// to fetch. Verify establishes the real trust: signature, temporal claims, and
// the access-token binding hash.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedToken indicates a token whose structure could not be parsed
var ErrMalformedToken = errors.New("malformed token")

// UnverifiedClaims is the decoded-but-unverified routing information of a
// token. Callers must never act on anything here beyond issuer discovery and
// key selection — none of it is authenticated.
type UnverifiedClaims struct {
	// Issuer is the unverified iss claim
	Issuer string

	// KeyID is the kid from the JOSE header
	KeyID string

	// Algorithm is the alg from the JOSE header
	Algorithm string
}

// ParseUnverified structurally decodes a compact JWT without any signature
// verification. Returns ErrMalformedToken if the structure is invalid.
func ParseUnverified(raw string) (*UnverifiedClaims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}

	var header struct {
		Algorithm string `json:"alg"`
		KeyID     string `json:"kid"`
	}
	if err := decodeSegment(parts[0], &header); err != nil {
		return nil, fmt.Errorf("%w: invalid header: %v", ErrMalformedToken, err)
	}

	var payload struct {
		Issuer string `json:"iss"`
	}
	if err := decodeSegment(parts[1], &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid payload: %v", ErrMalformedToken, err)
	}

	return &UnverifiedClaims{
		Issuer:    payload.Issuer,
		KeyID:     header.KeyID,
		Algorithm: header.Algorithm,
	}, nil
}

// decodeSegment base64url-decodes one JWT segment and unmarshals it into dst
func decodeSegment(segment string, dst any) error {
	data, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
