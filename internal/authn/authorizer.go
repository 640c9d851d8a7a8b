// Package authn runs the authorization check: credential extraction, issuer
// trust, signature and binding verification, identity resolution, and context
// projection, in that order, with the first failure terminating the check.
//
// Denials are cause-blind at the package boundary. The cause of a denial is
// reported to the request probe and goes no further; callers see only the
// Authorized bit.
package authn

import (
	"context"
	"errors"
	"strings"

	"github.com/lestrrat-go/jwx/v3/jwk"

	"github.com/project-atrium/warder/internal/credential"
	"github.com/project-atrium/warder/internal/identity"
	"github.com/project-atrium/warder/internal/registry"
	"github.com/project-atrium/warder/internal/request"
	"github.com/project-atrium/warder/internal/token"
)

// jwksPath locates an issuer's signing keys relative to its base URL
const jwksPath = "/.well-known/jwks.json"

var errMissingUsername = errors.New("verified identity token carries no username claim")

// KeyResolver resolves an issuer's signing key by key id
type KeyResolver interface {
	Resolve(ctx context.Context, jwksURL, keyID string) (jwk.Key, error)
}

// TokenVerifier verifies an identity token and its access-token binding
type TokenVerifier interface {
	Verify(ctx context.Context, pair *credential.Pair, key jwk.Key, algorithm string) (*token.VerifiedToken, error)
}

// IdentityResolver resolves the durable identity behind a verified caller
type IdentityResolver interface {
	Resolve(ctx context.Context, username, userPoolID, credential string) (*identity.Record, error)
}

// ContextMapper derives additional context entries from verified claims.
// Optional; deployments use it to project deployment-specific claims without
// a code change.
type ContextMapper interface {
	Map(ctx context.Context, claims map[string]any) (map[string]any, error)
}

// Decision is the outcome of one check. A denied decision carries no context
// and no cause.
type Decision struct {
	Authorized bool
	Context    map[string]any
}

var denied = &Decision{}

// Authorizer runs authorization checks
type Authorizer struct {
	extractor  *credential.Extractor
	registry   registry.Lookuper
	keys       KeyResolver
	verifier   TokenVerifier
	identities IdentityResolver
	mapper     ContextMapper
	observer   AuthCheckObserver
}

// AuthorizerConfig configures an Authorizer
type AuthorizerConfig struct {
	// Extractor pulls the token pair out of the request (required)
	Extractor *credential.Extractor

	// Registry is the issuer trust registry (required)
	Registry registry.Lookuper

	// Keys resolves issuer signing keys (required)
	Keys KeyResolver

	// Verifier verifies identity tokens (required)
	Verifier TokenVerifier

	// Identities resolves durable identities (required)
	Identities IdentityResolver

	// Mapper is an optional context mapper applied after projection
	Mapper ContextMapper

	// Observer creates request-scoped probes. If nil, uses a no-op observer.
	Observer AuthCheckObserver
}

// NewAuthorizer creates an authorizer
func NewAuthorizer(cfg AuthorizerConfig) *Authorizer {
	observer := cfg.Observer
	if observer == nil {
		observer = &NoOpAuthCheckObserver{}
	}
	return &Authorizer{
		extractor:  cfg.Extractor,
		registry:   cfg.Registry,
		keys:       cfg.Keys,
		verifier:   cfg.Verifier,
		identities: cfg.Identities,
		mapper:     cfg.Mapper,
		observer:   observer,
	}
}

// Check runs the full authorization check against a request.
//
// The check is a linear pipeline; each stage either advances or terminates
// with a denial. No stage after the failing one runs, so an untrusted issuer
// never triggers a key fetch and an unverified token never reaches the
// identity authority.
func (a *Authorizer) Check(ctx context.Context, req *request.CheckRequest) *Decision {
	ctx, probe := a.observer.AuthCheckStarted(ctx)
	defer probe.End()

	pair, err := a.extractor.Extract(req)
	if err != nil {
		probe.CredentialExtractionFailed(err)
		return denied
	}
	probe.CredentialsExtracted()

	accessClaims, err := token.ParseUnverified(pair.AccessToken)
	if err != nil {
		probe.TokenVerificationFailed(err)
		return denied
	}
	identityClaims, err := token.ParseUnverified(pair.IdentityToken)
	if err != nil {
		probe.TokenVerificationFailed(err)
		return denied
	}

	// Both tokens must name the same issuer before that issuer is even
	// looked up. Claims are still unverified here; the comparison gates
	// work, it grants nothing.
	if accessClaims.Issuer != identityClaims.Issuer {
		probe.IssuerMismatch(accessClaims.Issuer, identityClaims.Issuer)
		return denied
	}
	issuer := identityClaims.Issuer

	trusted, err := a.registry.Lookup(ctx, issuer)
	if err != nil {
		probe.IssuerLookupFailed(issuer, err)
		return denied
	}
	probe.IssuerTrusted(trusted)

	key, err := a.keys.Resolve(ctx, issuer+jwksPath, identityClaims.KeyID)
	if err != nil {
		probe.SigningKeyResolutionFailed(identityClaims.KeyID, err)
		return denied
	}

	verified, err := a.verifier.Verify(ctx, pair, key, identityClaims.Algorithm)
	if err != nil {
		probe.TokenVerificationFailed(err)
		return denied
	}
	probe.TokenVerified(verified.Subject)

	username := verified.GetString(claimUsername)
	if username == "" {
		probe.IdentityResolutionFailed(errMissingUsername)
		return denied
	}

	cookie := req.Header("cookie")
	resolved, err := a.identities.Resolve(ctx, username, UserPoolID(verified.Issuer), cookie)
	if err != nil {
		probe.IdentityResolutionFailed(err)
		return denied
	}
	probe.IdentityResolved(resolved)

	authContext := Context{
		AccountID:      resolved.AccountID,
		Cookie:         cookie,
		Email:          verified.GetString(claimEmail),
		FirstName:      verified.GetString(claimGivenName),
		LastName:       verified.GetString(claimFamilyName),
		OrganizationID: resolved.OrganizationID,
		Role:           verified.GetString(claimRole),
		Username:       username,
		UserClaims:     userClaimsFromToken(verified),
	}

	result := authContext.Map()
	if a.mapper != nil {
		mapped, err := a.mapper.Map(ctx, verified.Claims)
		if err != nil {
			probe.ContextMappingFailed(err)
			return denied
		}
		for name, value := range mapped {
			result[name] = value
		}
	}

	probe.Authorized(resolved)
	return &Decision{Authorized: true, Context: result}
}

// UserPoolID extracts the user pool identifier from an issuer URL, which
// carries it as the last path segment.
func UserPoolID(issuer string) string {
	return issuer[strings.LastIndex(issuer, "/")+1:]
}
