package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/project-atrium/warder/internal/clock"
	"github.com/project-atrium/warder/internal/store"
)

// Entity name and attribute names in the single-table layout
const (
	entityName = "USER"

	attrEntity       = "entity"
	attrAccount      = "account_uuid"
	attrOrganization = "organization_uuid"
	attrUsername     = "username"
	attrUserPool     = "user_pool_id"
	attrCachedAt     = "cached_at"
)

// Record is one resolved identity, keyed by (username, issuer pool)
type Record struct {
	Username       string
	UserPoolID     string
	AccountID      uuid.UUID
	OrganizationID uuid.UUID
}

// Resolver resolves identities cache-aside: the local store is consulted
// first, the external authority only on a miss, and the result is written
// back through.
type Resolver struct {
	store     store.Store
	authority Authority
	logger    *slog.Logger
	clock     clock.Clock
	ttl       time.Duration
}

// ResolverConfig configures a Resolver
type ResolverConfig struct {
	// Store is the backing keyed store (required)
	Store store.Store

	// Authority is the external identity authority (required)
	Authority Authority

	// Logger receives side-channel warnings (best-effort cache writes that
	// failed). If nil, uses slog.Default().
	Logger *slog.Logger

	// TTL bounds how long a cached identity is honored. Zero means entries
	// never expire, which matches the durable-cache contract; deployments
	// that want eviction set this instead of relying on store-native TTL.
	TTL time.Duration

	// Clock is the time source for TTL decisions. If nil, uses system clock.
	Clock clock.Clock
}

// NewResolver creates an identity resolver
func NewResolver(cfg ResolverConfig) *Resolver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Resolver{
		store:     cfg.Store,
		authority: cfg.Authority,
		logger:    logger,
		clock:     clk,
		ttl:       cfg.TTL,
	}
}

// Resolve returns the identity behind (username, userPoolID).
//
// On a cache hit the authority is never contacted. On a miss the caller's
// credential is forwarded to the authority and the result is written back
// best-effort: a failed write is logged and the resolution still succeeds.
func (r *Resolver) Resolve(ctx context.Context, username, userPoolID, credential string) (*Record, error) {
	key := keyFor(username, userPoolID)

	item, found, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if found && r.fresh(item) {
		return recordFromItem(item)
	}

	identifiers, err := r.authority.FetchUser(ctx, credential)
	if err != nil {
		return nil, err
	}

	record := &Record{
		Username:       username,
		UserPoolID:     userPoolID,
		AccountID:      identifiers.AccountID,
		OrganizationID: identifiers.OrganizationID,
	}

	// Write-through is best-effort and must be allowed to complete even if
	// the request is cancelled underneath us.
	writeCtx := context.WithoutCancel(ctx)
	if err := r.store.Put(writeCtx, key, store.Item{
		attrEntity:       entityName,
		attrAccount:      record.AccountID.String(),
		attrOrganization: record.OrganizationID.String(),
		attrUsername:     username,
		attrUserPool:     userPoolID,
		attrCachedAt:     r.clock.Now().Unix(),
	}); err != nil {
		r.logger.Warn("failed to cache resolved identity",
			slog.String("username", username),
			slog.String("user_pool_id", userPoolID),
			slog.String("error", err.Error()),
		)
	}

	return record, nil
}

// fresh reports whether a cached entry is still within the configured TTL.
// Entries without a cached_at attribute are treated as fresh.
func (r *Resolver) fresh(item store.Item) bool {
	if r.ttl == 0 {
		return true
	}
	cachedAt := store.AsInt(item[attrCachedAt])
	if cachedAt == 0 {
		return true
	}
	return r.clock.Now().Before(time.Unix(int64(cachedAt), 0).Add(r.ttl))
}

// keyFor derives the store key for an identity. Usernames are
// case-normalized; pool ids are not.
func keyFor(username, userPoolID string) store.Key {
	k := strings.Join([]string{entityName, strings.ToLower(username), "USER_POOL", userPoolID}, "#")
	return store.Key{PartitionKey: k, SortKey: k}
}

func recordFromItem(item store.Item) (*Record, error) {
	accountID, err := uuid.Parse(store.AsString(item[attrAccount]))
	if err != nil {
		return nil, fmt.Errorf("invalid account id in identity record: %w", err)
	}
	organizationID, err := uuid.Parse(store.AsString(item[attrOrganization]))
	if err != nil {
		return nil, fmt.Errorf("invalid organization id in identity record: %w", err)
	}

	return &Record{
		Username:       store.AsString(item[attrUsername]),
		UserPoolID:     store.AsString(item[attrUserPool]),
		AccountID:      accountID,
		OrganizationID: organizationID,
	}, nil
}
