package authn

import (
	"context"

	"github.com/project-atrium/warder/internal/identity"
	"github.com/project-atrium/warder/internal/registry"
)

// AuthCheckObserver creates request-scoped observability probes for
// authorization checks.
//
// Following the domain-oriented observability pattern, the observer captures
// execution context at the start of a check and returns a request-scoped probe
// that doesn't require context to be passed to each method. Denial causes
// reach the probe only; the caller of a check sees a cause-blind boolean.
type AuthCheckObserver interface {
	// AuthCheckStarted creates a new request-scoped probe for one check.
	// Returns an instrumented context and a probe scoped to this request.
	AuthCheckStarted(ctx context.Context) (context.Context, AuthCheckProbe)
}

// AuthCheckProbe provides request-scoped observability for a single
// authorization check.
//
// The probe lifecycle:
//  1. Created by AuthCheckObserver.AuthCheckStarted()
//  2. Events reported as the check progresses
//  3. Terminated with End() - typically deferred
type AuthCheckProbe interface {
	// CredentialsExtracted is called when the token pair was pulled out of
	// the request's credential list.
	CredentialsExtracted()

	// CredentialExtractionFailed is called when the request carried no usable
	// token pair.
	CredentialExtractionFailed(err error)

	// IssuerMismatch is called when the two tokens name different unverified
	// issuers.
	IssuerMismatch(accessIssuer, identityIssuer string)

	// IssuerTrusted is called when the issuer was found in the trust registry.
	IssuerTrusted(record *registry.Record)

	// IssuerLookupFailed is called when the issuer is untrusted or the
	// registry was unavailable.
	IssuerLookupFailed(issuer string, err error)

	// SigningKeyResolutionFailed is called when the issuer's signing key
	// could not be resolved.
	SigningKeyResolutionFailed(keyID string, err error)

	// TokenVerified is called when signature and binding verification passed.
	TokenVerified(subject string)

	// TokenVerificationFailed is called when signature or binding
	// verification failed.
	TokenVerificationFailed(err error)

	// IdentityResolved is called when the caller's durable identity was
	// resolved.
	IdentityResolved(record *identity.Record)

	// IdentityResolutionFailed is called when identity resolution failed.
	IdentityResolutionFailed(err error)

	// ContextMappingFailed is called when a configured context-mapping
	// expression failed to evaluate.
	ContextMappingFailed(err error)

	// Authorized is called when the check reached its terminal authorized
	// state.
	Authorized(record *identity.Record)

	// End terminates the observation. Should be deferred to ensure cleanup.
	End()
}

// NoOpAuthCheckProbe is an exported null object implementation of
// AuthCheckProbe. Implementations can embed this to get default no-op
// behavior, allowing new methods to be added to the interface without
// breaking existing implementations.
type NoOpAuthCheckProbe struct{}

func (n *NoOpAuthCheckProbe) CredentialsExtracted()                              {}
func (n *NoOpAuthCheckProbe) CredentialExtractionFailed(err error)               {}
func (n *NoOpAuthCheckProbe) IssuerMismatch(accessIssuer, identityIssuer string) {}
func (n *NoOpAuthCheckProbe) IssuerTrusted(record *registry.Record)              {}
func (n *NoOpAuthCheckProbe) IssuerLookupFailed(issuer string, err error)        {}
func (n *NoOpAuthCheckProbe) SigningKeyResolutionFailed(keyID string, err error) {}
func (n *NoOpAuthCheckProbe) TokenVerified(subject string)                       {}
func (n *NoOpAuthCheckProbe) TokenVerificationFailed(err error)                  {}
func (n *NoOpAuthCheckProbe) IdentityResolved(record *identity.Record)           {}
func (n *NoOpAuthCheckProbe) IdentityResolutionFailed(err error)                 {}
func (n *NoOpAuthCheckProbe) ContextMappingFailed(err error)                     {}
func (n *NoOpAuthCheckProbe) Authorized(record *identity.Record)                 {}
func (n *NoOpAuthCheckProbe) End()                                               {}

// NoOpAuthCheckObserver implements AuthCheckObserver with no-op behavior.
// Use this as a default when no observability is needed.
type NoOpAuthCheckObserver struct{}

func (n *NoOpAuthCheckObserver) AuthCheckStarted(ctx context.Context) (context.Context, AuthCheckProbe) {
	return ctx, &NoOpAuthCheckProbe{}
}
