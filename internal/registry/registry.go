// Package registry maintains the durable mapping from issuer URL to the
// organization that owns it.
//
// The registry is fed by the ingestion pipeline and read on every
// authorization check. Upsert is idempotent and safe under concurrent or
// duplicate delivery: payload fields are first-writer-wins and a version
// counter increments by exactly one per successful call, implemented as a
// single atomic conditional update against the backing store.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/project-atrium/warder/internal/store"
)

// ErrIssuerNotFound indicates the issuer URL is not present in the registry
var ErrIssuerNotFound = errors.New("issuer not found in trust registry")

// Entity name and attribute names in the single-table layout
const (
	entityName = "IDP"

	attrEntity       = "entity"
	attrURL          = "url"
	attrOrganization = "organization_uuid"
	attrVersion      = "version"
)

// Record is one trusted issuer
type Record struct {
	// URL is the issuer's base URL, globally unique
	URL string

	// OrganizationID is the owning organization
	OrganizationID uuid.UUID

	// Version increments on every successful upsert; it is the
	// optimistic-concurrency fence
	Version int
}

// Lookuper is the read side of the registry
type Lookuper interface {
	// Lookup returns the trusted issuer registered under url, or
	// ErrIssuerNotFound
	Lookup(ctx context.Context, url string) (*Record, error)
}

// Registry is the issuer trust registry over a keyed store
type Registry struct {
	store store.Store
}

// New creates a registry over the given store
func New(s store.Store) *Registry {
	return &Registry{store: s}
}

// Lookup implements Lookuper. Pure read.
func (r *Registry) Lookup(ctx context.Context, url string) (*Record, error) {
	item, found, err := r.store.Get(ctx, keyFor(url))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrIssuerNotFound, url)
	}
	return recordFromItem(item)
}

// Upsert registers url as a trusted issuer of the given organization.
//
// Idempotent: the first call creates the record with version 1; every later
// call leaves url and organization untouched and increments the version by
// exactly 1. Never fails because a record already exists; only store-level
// errors surface.
func (r *Registry) Upsert(ctx context.Context, url string, organizationID uuid.UUID) (*Record, error) {
	item, err := r.store.Upsert(ctx, keyFor(url), store.Item{
		attrEntity:       entityName,
		attrURL:          url,
		attrOrganization: organizationID.String(),
	}, attrVersion)
	if err != nil {
		return nil, err
	}
	return recordFromItem(item)
}

// keyFor derives the store key for an issuer URL. URLs are case-normalized so
// the same issuer cannot register twice under different casings.
func keyFor(url string) store.Key {
	k := entityName + "#" + strings.ToLower(url)
	return store.Key{PartitionKey: k, SortKey: k}
}

func recordFromItem(item store.Item) (*Record, error) {
	organizationID, err := uuid.Parse(store.AsString(item[attrOrganization]))
	if err != nil {
		return nil, fmt.Errorf("invalid organization id in issuer record: %w", err)
	}

	return &Record{
		URL:            store.AsString(item[attrURL]),
		OrganizationID: organizationID,
		Version:        store.AsInt(item[attrVersion]),
	}, nil
}
