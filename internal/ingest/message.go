// Package ingest consumes organization-change notifications and maintains the
// issuer trust registry from them. Messages are processed independently:
// a malformed or failing message never affects its siblings in the same batch.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrMalformedMessage indicates a message that cannot yield a registry upsert:
// bad JSON, missing fields, or an unparseable organization id
var ErrMalformedMessage = errors.New("malformed organization-change message")

// Message is one queue message: an opaque delivery id plus the raw body
type Message struct {
	ID   string
	Body []byte
}

// OrganizationChange is the payload of an organization-change notification
type OrganizationChange struct {
	OrganizationID   uuid.UUID
	IdentityPoolID   string
	AWSPrimaryRegion string
}

// envelope is the notification wire shape: the payload rides inside
// detail.entity
type envelope struct {
	Detail struct {
		Entity struct {
			OrganizationID   string `json:"organizationId"`
			IdentityPoolID   string `json:"identityPoolId"`
			AWSPrimaryRegion string `json:"awsPrimaryRegion"`
		} `json:"entity"`
	} `json:"detail"`
}

// ParseMessage decodes a message body into an OrganizationChange.
// Every required field must be present and non-empty.
func ParseMessage(body []byte) (*OrganizationChange, error) {
	var e envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	entity := e.Detail.Entity
	if entity.OrganizationID == "" || entity.IdentityPoolID == "" || entity.AWSPrimaryRegion == "" {
		return nil, fmt.Errorf("%w: missing organizationId, identityPoolId or awsPrimaryRegion", ErrMalformedMessage)
	}

	organizationID, err := uuid.Parse(entity.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad organization id: %v", ErrMalformedMessage, err)
	}

	return &OrganizationChange{
		OrganizationID:   organizationID,
		IdentityPoolID:   entity.IdentityPoolID,
		AWSPrimaryRegion: entity.AWSPrimaryRegion,
	}, nil
}

// DeriveIssuerURL derives the issuer base URL from an organization's identity
// pool and region. Pure function; the registry key is derived from its output.
func DeriveIssuerURL(identityPoolID, region string) string {
	return fmt.Sprintf("https://cognito-idp.%s.amazonaws.com/%s", region, identityPoolID)
}
