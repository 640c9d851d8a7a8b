// Package store provides the keyed entry store contract shared by the issuer
// trust registry and the identity cache, with DynamoDB-backed and in-memory
// implementations.
//
// The contract is a single table keyed by a two-part key. Mutation happens
// through exactly two primitives: an unconditional overwrite and one atomic
// conditional update ("set each field if absent, increment the counter field
// by 1") that returns the post-update snapshot. No read-modify-write sequence
// is ever required of callers.
package store

import (
	"context"
	"errors"
	"strconv"
)

// ErrStorageUnavailable indicates a store-level failure (transport, throttling,
// table missing). It is the only failure mode the primitives surface.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Key is the two-part primary key of an entry
type Key struct {
	PartitionKey string
	SortKey      string
}

// Item is one stored entry's attributes, excluding the key fields
type Item map[string]any

// Store is the keyed entry store contract
type Store interface {
	// Get returns the entry stored under key, reporting absence via the
	// second return value
	Get(ctx context.Context, key Key) (Item, bool, error)

	// Put unconditionally overwrites the entry stored under key
	Put(ctx context.Context, key Key, item Item) error

	// Upsert atomically applies "set each attrs field if absent, leave it
	// otherwise; increment counter by exactly 1" and returns the post-update
	// entry. Safe under concurrent and duplicate invocation.
	Upsert(ctx context.Context, key Key, attrs Item, counter string) (Item, error)
}

// AsInt converts a stored numeric attribute to int. Backends differ in how
// they decode numbers (DynamoDB yields float64 through interface decoding,
// the memory store keeps int), so entity packages normalize through this.
func AsInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// AsString converts a stored attribute to string, returning "" for non-strings
func AsString(v any) string {
	s, _ := v.(string)
	return s
}
