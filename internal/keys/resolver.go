// Package keys resolves issuer signing keys from published JWKS endpoints.
package keys

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// Resolution errors
var (
	// ErrUnknownSigningKey indicates the published key set has no entry for
	// the requested key id
	ErrUnknownSigningKey = errors.New("signing key not found in published key set")

	// ErrKeyDiscoveryUnavailable indicates the key-discovery endpoint could
	// not be fetched
	ErrKeyDiscoveryUnavailable = errors.New("key discovery endpoint unavailable")
)

// Resolver fetches issuer key sets over HTTPS and selects keys by key id.
//
// Key sets are cached per endpoint URL for the lifetime of the process with a
// background refresh interval. The cache is an optimization, not a correctness
// requirement: keys are immutable once published under a given id.
type Resolver struct {
	cache           *jwk.Cache
	refreshInterval time.Duration
	httpClient      *http.Client

	mu         sync.Mutex
	registered map[string]bool
}

// ResolverConfig configures a Resolver
type ResolverConfig struct {
	// RefreshInterval is the minimum interval between background refreshes of
	// a cached key set (default: 15 minutes)
	RefreshInterval time.Duration

	// HTTPClient is an optional HTTP client for JWKS fetching.
	// If nil, http.DefaultClient will be used.
	// This is useful for testing with fixtures or custom transports.
	HTTPClient *http.Client
}

// NewResolver creates a signing-key resolver with an auto-refreshing JWKS cache
func NewResolver(ctx context.Context, cfg ResolverConfig) (*Resolver, error) {
	refreshInterval := cfg.RefreshInterval
	if refreshInterval == 0 {
		refreshInterval = 15 * time.Minute
	}

	cache, err := jwk.NewCache(ctx, httprc.NewClient())
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS cache: %w", err)
	}

	return &Resolver{
		cache:           cache,
		refreshInterval: refreshInterval,
		httpClient:      cfg.HTTPClient,
		registered:      make(map[string]bool),
	}, nil
}

// Resolve fetches the key set published at jwksURL and returns the key whose
// id matches keyID exactly.
func (r *Resolver) Resolve(ctx context.Context, jwksURL, keyID string) (jwk.Key, error) {
	if err := r.register(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDiscoveryUnavailable, err)
	}

	set, err := r.cache.Lookup(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDiscoveryUnavailable, err)
	}

	key, found := set.LookupKeyID(keyID)
	if !found {
		return nil, fmt.Errorf("%w: kid %q at %s", ErrUnknownSigningKey, keyID, jwksURL)
	}

	return key, nil
}

// register adds jwksURL to the cache on first use. Issuers arrive dynamically
// from the trust registry, so registration is lazy rather than at startup.
func (r *Resolver) register(ctx context.Context, jwksURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registered[jwksURL] {
		return nil
	}

	opts := []jwk.RegisterOption{jwk.WithMinInterval(r.refreshInterval)}
	if r.httpClient != nil {
		opts = append(opts, jwk.WithHTTPClient(r.httpClient))
	}
	if err := r.cache.Register(ctx, jwksURL, opts...); err != nil {
		return err
	}

	r.registered[jwksURL] = true
	return nil
}
