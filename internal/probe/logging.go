// Package probe provides observability implementations for the domain
// observers. The logging observer is the default wiring; deployments wanting
// metrics or tracing implement the same interfaces and compose them.
package probe

import (
	"context"
	"log/slog"

	"github.com/project-atrium/warder/internal/authn"
	"github.com/project-atrium/warder/internal/identity"
	"github.com/project-atrium/warder/internal/ingest"
	"github.com/project-atrium/warder/internal/registry"
)

// ApplicationObserver combines the observers of every instrumented subsystem
type ApplicationObserver interface {
	authn.AuthCheckObserver
	ingest.IngestObserver
}

// NoOpApplicationObserver implements ApplicationObserver with no-op behavior
type NoOpApplicationObserver struct {
	authn.NoOpAuthCheckObserver
	ingest.NoOpIngestObserver
}

// loggingObserver creates request-scoped logging probes
type loggingObserver struct {
	logger *slog.Logger
}

// NewLoggingObserver creates an application observer that logs all
// observability events using structured logging with slog.
func NewLoggingObserver(logger *slog.Logger) ApplicationObserver {
	if logger == nil {
		logger = slog.Default()
	}
	return &loggingObserver{logger: logger}
}

func (o *loggingObserver) AuthCheckStarted(ctx context.Context) (context.Context, authn.AuthCheckProbe) {
	probeLogger := o.logger.With("event", "auth_check")
	probeLogger.LogAttrs(ctx, slog.LevelDebug, "Starting authorization check")

	return ctx, &loggingAuthCheckProbe{
		ctx:    ctx,
		logger: probeLogger,
	}
}

// loggingAuthCheckProbe logs the events of a single authorization check.
// Denial causes surface here at Warn level and nowhere else.
type loggingAuthCheckProbe struct {
	authn.NoOpAuthCheckProbe
	ctx    context.Context
	logger *slog.Logger
}

func (p *loggingAuthCheckProbe) CredentialsExtracted() {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug, "Credentials extracted")
}

func (p *loggingAuthCheckProbe) CredentialExtractionFailed(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelWarn,
		"Credential extraction failed",
		slog.String("error", err.Error()),
	)
}

func (p *loggingAuthCheckProbe) IssuerMismatch(accessIssuer, identityIssuer string) {
	p.logger.LogAttrs(p.ctx, slog.LevelWarn,
		"Token issuers do not match",
		slog.String("access_issuer", accessIssuer),
		slog.String("identity_issuer", identityIssuer),
	)
}

func (p *loggingAuthCheckProbe) IssuerTrusted(record *registry.Record) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug,
		"Issuer found in trust registry",
		slog.String("issuer", record.URL),
		slog.String("organization_uuid", record.OrganizationID.String()),
	)
}

func (p *loggingAuthCheckProbe) IssuerLookupFailed(issuer string, err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelWarn,
		"Issuer lookup failed",
		slog.String("issuer", issuer),
		slog.String("error", err.Error()),
	)
}

func (p *loggingAuthCheckProbe) SigningKeyResolutionFailed(keyID string, err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelWarn,
		"Signing key resolution failed",
		slog.String("key_id", keyID),
		slog.String("error", err.Error()),
	)
}

func (p *loggingAuthCheckProbe) TokenVerified(subject string) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug,
		"Identity token verified",
		slog.String("subject", subject),
	)
}

func (p *loggingAuthCheckProbe) TokenVerificationFailed(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelWarn,
		"Token verification failed",
		slog.String("error", err.Error()),
	)
}

func (p *loggingAuthCheckProbe) IdentityResolved(record *identity.Record) {
	p.logger.LogAttrs(p.ctx, slog.LevelDebug,
		"Identity resolved",
		slog.String("username", record.Username),
		slog.String("account_uuid", record.AccountID.String()),
	)
}

func (p *loggingAuthCheckProbe) IdentityResolutionFailed(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelWarn,
		"Identity resolution failed",
		slog.String("error", err.Error()),
	)
}

func (p *loggingAuthCheckProbe) ContextMappingFailed(err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelWarn,
		"Context mapping failed",
		slog.String("error", err.Error()),
	)
}

func (p *loggingAuthCheckProbe) Authorized(record *identity.Record) {
	p.logger.LogAttrs(p.ctx, slog.LevelInfo,
		"Request authorized",
		slog.String("username", record.Username),
		slog.String("organization_uuid", record.OrganizationID.String()),
	)
}

func (o *loggingObserver) BatchStarted(ctx context.Context, size int) (context.Context, ingest.IngestProbe) {
	probeLogger := o.logger.With("event", "ingest")
	probeLogger.LogAttrs(ctx, slog.LevelDebug,
		"Starting ingestion batch",
		slog.Int("size", size),
	)

	return ctx, &loggingIngestProbe{
		ctx:    ctx,
		logger: probeLogger,
	}
}

// loggingIngestProbe logs the events of one ingestion batch.
// slog loggers are safe for concurrent use, so no extra locking is needed.
type loggingIngestProbe struct {
	ingest.NoOpIngestProbe
	ctx    context.Context
	logger *slog.Logger
}

func (p *loggingIngestProbe) MessageIngested(messageID string, record *registry.Record) {
	p.logger.LogAttrs(p.ctx, slog.LevelInfo,
		"Issuer ingested",
		slog.String("message_id", messageID),
		slog.String("issuer", record.URL),
		slog.Int("version", record.Version),
	)
}

func (p *loggingIngestProbe) MessageFailed(messageID string, err error) {
	p.logger.LogAttrs(p.ctx, slog.LevelWarn,
		"Message failed",
		slog.String("message_id", messageID),
		slog.String("error", err.Error()),
	)
}
