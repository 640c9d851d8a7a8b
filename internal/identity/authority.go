// Package identity resolves a caller's durable identity (account and
// organization) through a cache-aside lookup with the external identity
// authority as the source of truth.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// ErrIncompleteIdentityResponse indicates the authority answered 200 but the
// body was missing an account or organization identifier
var ErrIncompleteIdentityResponse = errors.New("identity authority response missing account or organization id")

// AuthorityError indicates the identity authority answered with a non-success
// status
type AuthorityError struct {
	Status int
}

func (e *AuthorityError) Error() string {
	return fmt.Sprintf("identity authority responded with status %d", e.Status)
}

// Identifiers is the pair of durable identifiers the authority resolves
type Identifiers struct {
	AccountID      uuid.UUID
	OrganizationID uuid.UUID
}

// Authority is the external identity authority
type Authority interface {
	// FetchUser resolves the caller behind the given opaque credential.
	// Exactly one attempt is made; retry policy belongs to the caller's
	// transport.
	FetchUser(ctx context.Context, credential string) (*Identifiers, error)
}

// HTTPAuthority is an Authority over the central API's /auth/user endpoint
type HTTPAuthority struct {
	endpoint   string
	httpClient *http.Client
}

// HTTPAuthorityConfig configures an HTTPAuthority
type HTTPAuthorityConfig struct {
	// Endpoint is the authority's base URL
	Endpoint string

	// HTTPClient is an optional HTTP client.
	// If nil, http.DefaultClient will be used.
	HTTPClient *http.Client
}

// NewHTTPAuthority creates an authority client for the given base endpoint
func NewHTTPAuthority(cfg HTTPAuthorityConfig) *HTTPAuthority {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPAuthority{
		endpoint:   cfg.Endpoint,
		httpClient: httpClient,
	}
}

// FetchUser implements Authority. The caller's credential is forwarded as an
// opaque Cookie header; the authority decides what to make of it.
func (a *HTTPAuthority) FetchUser(ctx context.Context, credential string) (*Identifiers, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.endpoint+"/auth/user", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build authority request: %w", err)
	}
	req.Header.Set("Cookie", credential)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity authority unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &AuthorityError{Status: resp.StatusCode}
	}

	var body struct {
		AccountUUID  string `json:"accountUuid"`
		Organization struct {
			UUID string `json:"uuid"`
		} `json:"organization"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode authority response: %w", err)
	}

	if body.AccountUUID == "" || body.Organization.UUID == "" {
		return nil, ErrIncompleteIdentityResponse
	}

	accountID, err := uuid.Parse(body.AccountUUID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad account id: %v", ErrIncompleteIdentityResponse, err)
	}
	organizationID, err := uuid.Parse(body.Organization.UUID)
	if err != nil {
		return nil, fmt.Errorf("%w: bad organization id: %v", ErrIncompleteIdentityResponse, err)
	}

	return &Identifiers{
		AccountID:      accountID,
		OrganizationID: organizationID,
	}, nil
}
