package identity

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-atrium/warder/internal/clock"
	"github.com/project-atrium/warder/internal/httpfixture"
	"github.com/project-atrium/warder/internal/store"
)

// countingAuthority records every fetch and the credential it carried
type countingAuthority struct {
	calls       int
	credentials []string
	identifiers *Identifiers
	err         error
}

func (a *countingAuthority) FetchUser(ctx context.Context, credential string) (*Identifiers, error) {
	a.calls++
	a.credentials = append(a.credentials, credential)
	if a.err != nil {
		return nil, a.err
	}
	return a.identifiers, nil
}

func TestResolver_Resolve(t *testing.T) {
	ctx := context.Background()
	accountID := uuid.New()
	organizationID := uuid.New()

	t.Run("miss fetches from the authority and caches", func(t *testing.T) {
		authority := &countingAuthority{identifiers: &Identifiers{
			AccountID:      accountID,
			OrganizationID: organizationID,
		}}
		resolver := NewResolver(ResolverConfig{
			Store:     store.NewMemoryStore(),
			Authority: authority,
		})

		record, err := resolver.Resolve(ctx, "alice", "pool-1", "cookie-value")
		require.NoError(t, err)

		assert.Equal(t, "alice", record.Username)
		assert.Equal(t, "pool-1", record.UserPoolID)
		assert.Equal(t, accountID, record.AccountID)
		assert.Equal(t, organizationID, record.OrganizationID)
		assert.Equal(t, []string{"cookie-value"}, authority.credentials)

		// Second resolution never reaches the authority
		again, err := resolver.Resolve(ctx, "alice", "pool-1", "cookie-value")
		require.NoError(t, err)
		assert.Equal(t, record, again)
		assert.Equal(t, 1, authority.calls)
	})

	t.Run("username casing shares the cache entry", func(t *testing.T) {
		authority := &countingAuthority{identifiers: &Identifiers{
			AccountID:      accountID,
			OrganizationID: organizationID,
		}}
		resolver := NewResolver(ResolverConfig{
			Store:     store.NewMemoryStore(),
			Authority: authority,
		})

		_, err := resolver.Resolve(ctx, "Alice", "pool-1", "c")
		require.NoError(t, err)
		_, err = resolver.Resolve(ctx, "ALICE", "pool-1", "c")
		require.NoError(t, err)

		assert.Equal(t, 1, authority.calls)
	})

	t.Run("pools are distinct cache entries", func(t *testing.T) {
		authority := &countingAuthority{identifiers: &Identifiers{
			AccountID:      accountID,
			OrganizationID: organizationID,
		}}
		resolver := NewResolver(ResolverConfig{
			Store:     store.NewMemoryStore(),
			Authority: authority,
		})

		_, err := resolver.Resolve(ctx, "alice", "pool-1", "c")
		require.NoError(t, err)
		_, err = resolver.Resolve(ctx, "alice", "pool-2", "c")
		require.NoError(t, err)

		assert.Equal(t, 2, authority.calls)
	})

	t.Run("expired entries are refetched", func(t *testing.T) {
		clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
		authority := &countingAuthority{identifiers: &Identifiers{
			AccountID:      accountID,
			OrganizationID: organizationID,
		}}
		resolver := NewResolver(ResolverConfig{
			Store:     store.NewMemoryStore(),
			Authority: authority,
			TTL:       time.Hour,
			Clock:     clk,
		})

		_, err := resolver.Resolve(ctx, "alice", "pool-1", "c")
		require.NoError(t, err)

		clk.Advance(30 * time.Minute)
		_, err = resolver.Resolve(ctx, "alice", "pool-1", "c")
		require.NoError(t, err)
		assert.Equal(t, 1, authority.calls)

		clk.Advance(31 * time.Minute)
		_, err = resolver.Resolve(ctx, "alice", "pool-1", "c")
		require.NoError(t, err)
		assert.Equal(t, 2, authority.calls)
	})

	t.Run("authority failure fails the resolution", func(t *testing.T) {
		boom := errors.New("authority down")
		resolver := NewResolver(ResolverConfig{
			Store:     store.NewMemoryStore(),
			Authority: &countingAuthority{err: boom},
		})

		_, err := resolver.Resolve(ctx, "alice", "pool-1", "c")
		assert.ErrorIs(t, err, boom)
	})
}

func authorityClient(provider httpfixture.FixtureProvider) *http.Client {
	return &http.Client{Transport: httpfixture.NewTransport(httpfixture.TransportConfig{
		Provider: provider,
		Strict:   true,
	})}
}

func TestHTTPAuthority_FetchUser(t *testing.T) {
	ctx := context.Background()
	endpoint := "https://central.example.com"
	accountID := uuid.New()
	organizationID := uuid.New()

	t.Run("resolves identifiers from a success response", func(t *testing.T) {
		provider := httpfixture.NewMapProvider(map[string]*httpfixture.Fixture{
			"GET " + endpoint + "/auth/user": {
				StatusCode: http.StatusOK,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body: `{"accountUuid":"` + accountID.String() +
					`","organization":{"uuid":"` + organizationID.String() + `"}}`,
			},
		})
		authority := NewHTTPAuthority(HTTPAuthorityConfig{
			Endpoint:   endpoint,
			HTTPClient: authorityClient(provider),
		})

		identifiers, err := authority.FetchUser(ctx, "awsIdToken=a; awsAccessToken=b")
		require.NoError(t, err)

		assert.Equal(t, accountID, identifiers.AccountID)
		assert.Equal(t, organizationID, identifiers.OrganizationID)
	})

	t.Run("non-success statuses surface as authority errors", func(t *testing.T) {
		provider := httpfixture.NewMapProvider(map[string]*httpfixture.Fixture{
			"GET " + endpoint + "/auth/user": {
				StatusCode: http.StatusForbidden,
				Body:       `{"message":"forbidden"}`,
			},
		})
		authority := NewHTTPAuthority(HTTPAuthorityConfig{
			Endpoint:   endpoint,
			HTTPClient: authorityClient(provider),
		})

		_, err := authority.FetchUser(ctx, "c")
		var authorityErr *AuthorityError
		require.ErrorAs(t, err, &authorityErr)
		assert.Equal(t, http.StatusForbidden, authorityErr.Status)
	})

	t.Run("incomplete bodies are rejected", func(t *testing.T) {
		provider := httpfixture.NewMapProvider(map[string]*httpfixture.Fixture{
			"GET " + endpoint + "/auth/user": {
				StatusCode: http.StatusOK,
				Body:       `{"accountUuid":"` + accountID.String() + `"}`,
			},
		})
		authority := NewHTTPAuthority(HTTPAuthorityConfig{
			Endpoint:   endpoint,
			HTTPClient: authorityClient(provider),
		})

		_, err := authority.FetchUser(ctx, "c")
		assert.ErrorIs(t, err, ErrIncompleteIdentityResponse)
	})
}
