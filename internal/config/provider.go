package config

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/project-atrium/warder/internal/authn"
	"github.com/project-atrium/warder/internal/credential"
	"github.com/project-atrium/warder/internal/httpfixture"
	"github.com/project-atrium/warder/internal/identity"
	"github.com/project-atrium/warder/internal/ingest"
	"github.com/project-atrium/warder/internal/keys"
	"github.com/project-atrium/warder/internal/mapper"
	"github.com/project-atrium/warder/internal/probe"
	"github.com/project-atrium/warder/internal/registry"
	"github.com/project-atrium/warder/internal/server"
	"github.com/project-atrium/warder/internal/store"
	"github.com/project-atrium/warder/internal/token"
)

// Provider constructs all application components from configuration.
// This is the main entry point for building a configured warder instance.
type Provider struct {
	config *Config

	// Lazily constructed components (cached after first call)
	observer            probe.ApplicationObserver
	keyedStore          store.Store
	trustRegistry       *registry.Registry
	lookup              registry.Lookuper
	authorizer          *authn.Authorizer
	httpFixtureProvider httpfixture.FixtureProvider
	httpFixtureBuilt    bool
	awsConfig           *aws.Config
}

// NewProvider creates a new provider from configuration
func NewProvider(config *Config) *Provider {
	return &Provider{
		config: config,
	}
}

// SetObserver sets the application observer for all components built by this provider.
// Must be called before Authorizer() or IngestProcessor().
func (p *Provider) SetObserver(observer probe.ApplicationObserver) {
	p.observer = observer
}

// Observer returns the configured application observer
func (p *Provider) Observer() (probe.ApplicationObserver, error) {
	if p.observer != nil {
		return p.observer, nil
	}

	observer, err := NewObserver(p.config.Observability)
	if err != nil {
		return nil, fmt.Errorf("failed to create observer: %w", err)
	}

	p.observer = observer
	return observer, nil
}

// Store returns the configured keyed store shared by the trust registry and
// the identity cache
func (p *Provider) Store(ctx context.Context) (store.Store, error) {
	if p.keyedStore != nil {
		return p.keyedStore, nil
	}

	switch p.config.Store.Type {
	case "memory", "":
		p.keyedStore = store.NewMemoryStore()
	case "dynamodb":
		if p.config.Store.Table == "" {
			return nil, fmt.Errorf("store.table is required for the dynamodb store")
		}

		awsCfg, err := p.loadAWSConfig(ctx)
		if err != nil {
			return nil, err
		}

		client := dynamodb.NewFromConfig(*awsCfg, func(o *dynamodb.Options) {
			if p.config.Store.Endpoint != "" {
				o.BaseEndpoint = aws.String(p.config.Store.Endpoint)
			}
		})
		p.keyedStore = store.NewDynamoStore(client, p.config.Store.Table)
	default:
		return nil, fmt.Errorf("unknown store type: %s (supported: dynamodb, memory)", p.config.Store.Type)
	}

	return p.keyedStore, nil
}

// Registry returns the trust registry (the write side of issuer trust)
func (p *Provider) Registry(ctx context.Context) (*registry.Registry, error) {
	if p.trustRegistry != nil {
		return p.trustRegistry, nil
	}

	s, err := p.Store(ctx)
	if err != nil {
		return nil, err
	}

	p.trustRegistry = registry.New(s)
	return p.trustRegistry, nil
}

// Lookup returns the read side of issuer trust, wrapped in the local
// read-through cache when enabled
func (p *Provider) Lookup(ctx context.Context) (registry.Lookuper, error) {
	if p.lookup != nil {
		return p.lookup, nil
	}

	reg, err := p.Registry(ctx)
	if err != nil {
		return nil, err
	}

	if p.config.Registry.LocalCache.Enabled {
		p.lookup = registry.NewCachedLookup(reg, registry.CachedLookupConfig{
			GroupName:      p.config.Registry.LocalCache.GroupName,
			CacheSizeBytes: p.config.Registry.LocalCache.SizeBytes,
		})
	} else {
		p.lookup = reg
	}

	return p.lookup, nil
}

// Authorizer returns the fully wired authentication pipeline
func (p *Provider) Authorizer(ctx context.Context) (*authn.Authorizer, error) {
	if p.authorizer != nil {
		return p.authorizer, nil
	}

	lookup, err := p.Lookup(ctx)
	if err != nil {
		return nil, err
	}

	s, err := p.Store(ctx)
	if err != nil {
		return nil, err
	}

	observer, err := p.Observer()
	if err != nil {
		return nil, err
	}

	httpClient := p.HTTPClient()

	keyResolver, err := keys.NewResolver(ctx, keys.ResolverConfig{
		RefreshInterval: p.config.Keys.RefreshInterval,
		HTTPClient:      httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create key resolver: %w", err)
	}

	if p.config.Authority.Endpoint == "" {
		return nil, fmt.Errorf("authority.endpoint is required")
	}

	identityResolver := identity.NewResolver(identity.ResolverConfig{
		Store: s,
		Authority: identity.NewHTTPAuthority(identity.HTTPAuthorityConfig{
			Endpoint:   p.config.Authority.Endpoint,
			HTTPClient: httpClient,
		}),
		Logger: NewLogger(p.config.Observability),
		TTL:    p.config.Identity.CacheTTL,
	})

	var contextMapper authn.ContextMapper
	if p.config.ContextMapping != nil && p.config.ContextMapping.CEL != "" {
		celMapper, err := mapper.NewCELMapper(p.config.ContextMapping.CEL)
		if err != nil {
			return nil, fmt.Errorf("failed to create context mapper: %w", err)
		}
		contextMapper = celMapper
	}

	p.authorizer = authn.NewAuthorizer(authn.AuthorizerConfig{
		Extractor: credential.NewExtractor(credential.ExtractorConfig{
			IdentityTokenName: p.config.Credentials.IdentityTokenName,
			AccessTokenName:   p.config.Credentials.AccessTokenName,
		}),
		Registry:   lookup,
		Keys:       keyResolver,
		Verifier:   token.NewVerifier(token.VerifierConfig{}),
		Identities: identityResolver,
		Mapper:     contextMapper,
		Observer:   observer,
	})

	return p.authorizer, nil
}

// IngestProcessor returns the batch processor for organization-change
// messages
func (p *Provider) IngestProcessor(ctx context.Context) (*ingest.Processor, error) {
	reg, err := p.Registry(ctx)
	if err != nil {
		return nil, err
	}

	observer, err := p.Observer()
	if err != nil {
		return nil, err
	}

	return ingest.NewProcessor(ingest.ProcessorConfig{
		Registry:    reg,
		Concurrency: p.config.Ingest.Concurrency,
		Observer:    observer,
	}), nil
}

// IngestConsumer returns the SQS consumer feeding the batch processor
func (p *Provider) IngestConsumer(ctx context.Context) (*ingest.Consumer, error) {
	if p.config.Ingest.QueueURL == "" {
		return nil, fmt.Errorf("ingest.queue_url is required")
	}

	processor, err := p.IngestProcessor(ctx)
	if err != nil {
		return nil, err
	}

	awsCfg, err := p.loadAWSConfig(ctx)
	if err != nil {
		return nil, err
	}

	return ingest.NewConsumer(ingest.ConsumerConfig{
		Client:          sqs.NewFromConfig(*awsCfg),
		QueueURL:        p.config.Ingest.QueueURL,
		Processor:       processor,
		Logger:          NewLogger(p.config.Observability),
		WaitTimeSeconds: int32(p.config.Ingest.WaitTimeSeconds),
		BatchSize:       int32(p.config.Ingest.BatchSize),
	}), nil
}

// ServerConfig returns the server configuration
func (p *Provider) ServerConfig() server.Config {
	return server.Config{
		GRPCPort: p.config.Server.GRPCPort,
		HTTPPort: p.config.Server.HTTPPort,
		Logger:   NewLogger(p.config.Observability),
	}
}

// HTTPClient returns an HTTP client configured with fixtures if available.
// Returns nil if no special transport is needed (components fall back to
// http.DefaultClient).
func (p *Provider) HTTPClient() *http.Client {
	fixtureProvider := p.HTTPFixtureProvider()
	if fixtureProvider == nil {
		return nil
	}
	return &http.Client{
		Transport: httpfixture.NewTransport(httpfixture.TransportConfig{
			Provider: fixtureProvider,
			Strict:   true,
		}),
	}
}

// HTTPFixtureProvider returns the fixture provider for hermetic testing
// Returns nil if no fixtures are configured (normal production mode)
func (p *Provider) HTTPFixtureProvider() httpfixture.FixtureProvider {
	if p.httpFixtureBuilt {
		return p.httpFixtureProvider
	}

	provider, err := BuildHTTPFixtureProvider(p.config.Fixtures, nil)
	if err != nil {
		// A broken fixture is a configuration error; fail fast
		panic(fmt.Sprintf("failed to build HTTP fixture provider: %v", err))
	}

	p.httpFixtureProvider = provider
	p.httpFixtureBuilt = true
	return p.httpFixtureProvider
}

// loadAWSConfig loads the AWS SDK configuration once and caches it
func (p *Provider) loadAWSConfig(ctx context.Context) (*aws.Config, error) {
	if p.awsConfig != nil {
		return p.awsConfig, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if p.config.Store.Region != "" {
		opts = append(opts, awsconfig.WithRegion(p.config.Store.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	p.awsConfig = &awsCfg
	return p.awsConfig, nil
}
