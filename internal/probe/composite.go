package probe

import (
	"context"

	"github.com/project-atrium/warder/internal/authn"
	"github.com/project-atrium/warder/internal/identity"
	"github.com/project-atrium/warder/internal/ingest"
	"github.com/project-atrium/warder/internal/registry"
)

// compositeObserver fans every event out to multiple observers
type compositeObserver struct {
	observers []ApplicationObserver
}

// NewCompositeObserver creates an observer that delegates to all given
// observers in order
func NewCompositeObserver(observers ...ApplicationObserver) ApplicationObserver {
	return &compositeObserver{observers: observers}
}

func (c *compositeObserver) AuthCheckStarted(ctx context.Context) (context.Context, authn.AuthCheckProbe) {
	probes := make([]authn.AuthCheckProbe, 0, len(c.observers))
	for _, o := range c.observers {
		var probe authn.AuthCheckProbe
		ctx, probe = o.AuthCheckStarted(ctx)
		probes = append(probes, probe)
	}
	return ctx, &compositeAuthCheckProbe{probes: probes}
}

func (c *compositeObserver) BatchStarted(ctx context.Context, size int) (context.Context, ingest.IngestProbe) {
	probes := make([]ingest.IngestProbe, 0, len(c.observers))
	for _, o := range c.observers {
		var probe ingest.IngestProbe
		ctx, probe = o.BatchStarted(ctx, size)
		probes = append(probes, probe)
	}
	return ctx, &compositeIngestProbe{probes: probes}
}

type compositeAuthCheckProbe struct {
	probes []authn.AuthCheckProbe
}

func (p *compositeAuthCheckProbe) CredentialsExtracted() {
	for _, probe := range p.probes {
		probe.CredentialsExtracted()
	}
}

func (p *compositeAuthCheckProbe) CredentialExtractionFailed(err error) {
	for _, probe := range p.probes {
		probe.CredentialExtractionFailed(err)
	}
}

func (p *compositeAuthCheckProbe) IssuerMismatch(accessIssuer, identityIssuer string) {
	for _, probe := range p.probes {
		probe.IssuerMismatch(accessIssuer, identityIssuer)
	}
}

func (p *compositeAuthCheckProbe) IssuerTrusted(record *registry.Record) {
	for _, probe := range p.probes {
		probe.IssuerTrusted(record)
	}
}

func (p *compositeAuthCheckProbe) IssuerLookupFailed(issuer string, err error) {
	for _, probe := range p.probes {
		probe.IssuerLookupFailed(issuer, err)
	}
}

func (p *compositeAuthCheckProbe) SigningKeyResolutionFailed(keyID string, err error) {
	for _, probe := range p.probes {
		probe.SigningKeyResolutionFailed(keyID, err)
	}
}

func (p *compositeAuthCheckProbe) TokenVerified(subject string) {
	for _, probe := range p.probes {
		probe.TokenVerified(subject)
	}
}

func (p *compositeAuthCheckProbe) TokenVerificationFailed(err error) {
	for _, probe := range p.probes {
		probe.TokenVerificationFailed(err)
	}
}

func (p *compositeAuthCheckProbe) IdentityResolved(record *identity.Record) {
	for _, probe := range p.probes {
		probe.IdentityResolved(record)
	}
}

func (p *compositeAuthCheckProbe) IdentityResolutionFailed(err error) {
	for _, probe := range p.probes {
		probe.IdentityResolutionFailed(err)
	}
}

func (p *compositeAuthCheckProbe) ContextMappingFailed(err error) {
	for _, probe := range p.probes {
		probe.ContextMappingFailed(err)
	}
}

func (p *compositeAuthCheckProbe) Authorized(record *identity.Record) {
	for _, probe := range p.probes {
		probe.Authorized(record)
	}
}

func (p *compositeAuthCheckProbe) End() {
	for _, probe := range p.probes {
		probe.End()
	}
}

type compositeIngestProbe struct {
	probes []ingest.IngestProbe
}

func (p *compositeIngestProbe) MessageIngested(messageID string, record *registry.Record) {
	for _, probe := range p.probes {
		probe.MessageIngested(messageID, record)
	}
}

func (p *compositeIngestProbe) MessageFailed(messageID string, err error) {
	for _, probe := range p.probes {
		probe.MessageFailed(messageID, err)
	}
}

func (p *compositeIngestProbe) End() {
	for _, probe := range p.probes {
		probe.End()
	}
}
