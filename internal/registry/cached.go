package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang/groupcache"
	"github.com/google/uuid"
)

// CachedLookup wraps a Lookuper with a groupcache read-through cache.
//
// Caching trusted-issuer lookups is safe because the payload fields of a
// record (url, organization) are first-writer-wins immutable; only the version
// counter moves, and nothing on the authorization path reads it. Lookup
// failures, including ErrIssuerNotFound, are returned as errors and therefore
// never cached, so a freshly ingested issuer becomes visible on the next
// check.
type CachedLookup struct {
	group *groupcache.Group
}

// CachedLookupConfig configures a CachedLookup
type CachedLookupConfig struct {
	// GroupName is the groupcache group name. Group names are process-global;
	// the default is "issuer-registry". Tests sharing a process must pick
	// unique names.
	GroupName string

	// CacheSizeBytes is the maximum cache size (default: 8MB)
	CacheSizeBytes int64
}

// cachedRecord is the wire form of a Record inside the cache
type cachedRecord struct {
	URL            string `json:"url"`
	OrganizationID string `json:"organization_uuid"`
	Version        int    `json:"version"`
}

// NewCachedLookup creates a read-through cache in front of source
func NewCachedLookup(source Lookuper, cfg CachedLookupConfig) *CachedLookup {
	name := cfg.GroupName
	if name == "" {
		name = "issuer-registry"
	}

	size := cfg.CacheSizeBytes
	if size == 0 {
		size = 8 << 20
	}

	getter := groupcache.GetterFunc(func(ctx context.Context, key string, dest groupcache.Sink) error {
		record, err := source.Lookup(ctx, key)
		if err != nil {
			return err
		}

		data, err := json.Marshal(cachedRecord{
			URL:            record.URL,
			OrganizationID: record.OrganizationID.String(),
			Version:        record.Version,
		})
		if err != nil {
			return fmt.Errorf("failed to encode issuer record: %w", err)
		}
		return dest.SetBytes(data)
	})

	return &CachedLookup{
		group: groupcache.NewGroup(name, size, getter),
	}
}

// Lookup implements Lookuper
func (c *CachedLookup) Lookup(ctx context.Context, url string) (*Record, error) {
	var data []byte
	if err := c.group.Get(ctx, url, groupcache.AllocatingByteSliceSink(&data)); err != nil {
		return nil, err
	}

	var cached cachedRecord
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("failed to decode cached issuer record: %w", err)
	}

	organizationID, err := uuid.Parse(cached.OrganizationID)
	if err != nil {
		return nil, fmt.Errorf("invalid organization id in cached issuer record: %w", err)
	}

	return &Record{
		URL:            cached.URL,
		OrganizationID: organizationID,
		Version:        cached.Version,
	}, nil
}
