// Package config loads application configuration and constructs the
// configured components.
package config

import "time"

// Config is the root application configuration
type Config struct {
	Server         ServerConfig          `koanf:"server"`
	Store          StoreConfig           `koanf:"store"`
	Registry       RegistryConfig        `koanf:"registry"`
	Authority      AuthorityConfig       `koanf:"authority"`
	Identity       IdentityConfig        `koanf:"identity"`
	Credentials    CredentialsConfig     `koanf:"credentials"`
	Keys           KeysConfig            `koanf:"keys"`
	Ingest         IngestConfig          `koanf:"ingest"`
	ContextMapping *ContextMappingConfig `koanf:"context_mapping"`
	Observability  *ObservabilityConfig  `koanf:"observability"`
	Fixtures       []FixtureConfig       `koanf:"fixtures"`
}

// ServerConfig configures the listening ports
type ServerConfig struct {
	GRPCPort int `koanf:"grpc_port"`
	HTTPPort int `koanf:"http_port"`
}

// StoreConfig configures the keyed store shared by the trust registry and the
// identity cache
type StoreConfig struct {
	// Type selects the backend: "dynamodb" or "memory"
	Type string `koanf:"type"`

	// Table is the DynamoDB table name (dynamodb only)
	Table string `koanf:"table"`

	// Region is the AWS region (dynamodb only; falls back to the SDK's
	// default resolution when empty)
	Region string `koanf:"region"`

	// Endpoint overrides the DynamoDB endpoint, for local development
	Endpoint string `koanf:"endpoint"`
}

// RegistryConfig configures the issuer trust registry
type RegistryConfig struct {
	LocalCache LocalCacheConfig `koanf:"local_cache"`
}

// LocalCacheConfig configures the in-process read-through cache over registry
// lookups
type LocalCacheConfig struct {
	Enabled   bool   `koanf:"enabled"`
	GroupName string `koanf:"group_name"`
	SizeBytes int64  `koanf:"size_bytes"`
}

// AuthorityConfig configures the external identity authority
type AuthorityConfig struct {
	// Endpoint is the authority's base URL
	Endpoint string `koanf:"endpoint"`
}

// IdentityConfig configures the identity cache
type IdentityConfig struct {
	// CacheTTL bounds how long cached identities are honored.
	// Zero means entries never expire.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// CredentialsConfig configures the credential names carrying the token pair
type CredentialsConfig struct {
	IdentityTokenName string `koanf:"identity_token_name"`
	AccessTokenName   string `koanf:"access_token_name"`
}

// KeysConfig configures signing-key discovery
type KeysConfig struct {
	// RefreshInterval is the minimum interval between JWKS refreshes
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// IngestConfig configures the ingestion consumer
type IngestConfig struct {
	// QueueURL is the SQS queue carrying organization-change notifications
	QueueURL string `koanf:"queue_url"`

	// Concurrency bounds parallel message processing within a batch
	Concurrency int `koanf:"concurrency"`

	// WaitTimeSeconds is the long-poll duration
	WaitTimeSeconds int `koanf:"wait_time_seconds"`

	// BatchSize is the maximum messages per receive
	BatchSize int `koanf:"batch_size"`
}

// ContextMappingConfig configures the optional claim-to-context mapping
type ContextMappingConfig struct {
	// CEL is the mapping expression; it must evaluate to a map
	CEL string `koanf:"cel"`
}

// ObservabilityConfig configures logging and observers
type ObservabilityConfig struct {
	// Type selects the observer: "logging", "noop" or "composite"
	Type string `koanf:"type"`

	// LogLevel is the default log level (debug, info, warn, error)
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: "json" (default) or "text"
	LogFormat string `koanf:"log_format"`

	// AuthCheck and Ingest tune per-event-stream levels
	AuthCheck *EventConfig `koanf:"auth_check"`
	Ingest    *EventConfig `koanf:"ingest"`

	// Observers are the sub-observers of a composite observer
	Observers []ObservabilityConfig `koanf:"observers"`
}

// EventConfig tunes one event stream
type EventConfig struct {
	Enabled  *bool  `koanf:"enabled"`
	LogLevel string `koanf:"log_level"`
}

// FixtureConfig configures one HTTP fixture for hermetic operation
type FixtureConfig struct {
	// Type is "http_rule" or "jwks"
	Type string `koanf:"type"`

	// Request/Response describe an http_rule fixture
	Request  FixtureRequestConfig  `koanf:"request"`
	Response FixtureResponseConfig `koanf:"response"`

	// Issuer, JWKSURL, KeyID and Algorithm describe a jwks fixture
	Issuer    string `koanf:"issuer"`
	JWKSURL   string `koanf:"jwks_url"`
	KeyID     string `koanf:"key_id"`
	Algorithm string `koanf:"algorithm"`
}

// FixtureRequestConfig describes which requests a fixture matches
type FixtureRequestConfig struct {
	Method  string            `koanf:"method"`
	URL     string            `koanf:"url"`
	URLType string            `koanf:"url_type"`
	Headers map[string]string `koanf:"headers"`
}

// FixtureResponseConfig describes a fixture's canned response
type FixtureResponseConfig struct {
	StatusCode int               `koanf:"status_code"`
	Headers    map[string]string `koanf:"headers"`
	Body       string            `koanf:"body"`
}
