package authn_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-atrium/warder/internal/authn"
	"github.com/project-atrium/warder/internal/clock"
	"github.com/project-atrium/warder/internal/credential"
	"github.com/project-atrium/warder/internal/httpfixture"
	"github.com/project-atrium/warder/internal/identity"
	"github.com/project-atrium/warder/internal/registry"
	"github.com/project-atrium/warder/internal/request"
	"github.com/project-atrium/warder/internal/store"
	"github.com/project-atrium/warder/internal/token"
)

const (
	testIssuer = "https://cognito-idp.us-east-1.amazonaws.com/pool-1"
	testCookie = "awsIdToken=unused; awsAccessToken=unused"
)

// fixtureKeyResolver serves the fixture's public key and counts resolutions
type fixtureKeyResolver struct {
	fixture *httpfixture.JWKSFixture
	calls   int
	jwksURL string
}

func (r *fixtureKeyResolver) Resolve(ctx context.Context, jwksURL, keyID string) (jwk.Key, error) {
	r.calls++
	r.jwksURL = jwksURL
	if keyID != r.fixture.KeyID() {
		return nil, errors.New("unknown key id")
	}
	return r.fixture.PublicKey(), nil
}

// countingRegistry wraps a Lookuper and counts lookups
type countingRegistry struct {
	inner registry.Lookuper
	calls int
}

func (r *countingRegistry) Lookup(ctx context.Context, url string) (*registry.Record, error) {
	r.calls++
	return r.inner.Lookup(ctx, url)
}

// staticIdentities resolves every caller to the same identity
type staticIdentities struct {
	record     *identity.Record
	err        error
	calls      int
	credential string
}

func (r *staticIdentities) Resolve(ctx context.Context, username, userPoolID, credential string) (*identity.Record, error) {
	r.calls++
	r.credential = credential
	if r.err != nil {
		return nil, r.err
	}
	record := *r.record
	record.Username = username
	record.UserPoolID = userPoolID
	return &record, nil
}

// mapperFunc adapts a function to ContextMapper
type mapperFunc func(ctx context.Context, claims map[string]any) (map[string]any, error)

func (f mapperFunc) Map(ctx context.Context, claims map[string]any) (map[string]any, error) {
	return f(ctx, claims)
}

type authorizerHarness struct {
	authorizer *authn.Authorizer
	fixture    *httpfixture.JWKSFixture
	registry   *countingRegistry
	keys       *fixtureKeyResolver
	identities *staticIdentities
	accountID  uuid.UUID
	orgID      uuid.UUID
}

func newHarness(t *testing.T, mapper authn.ContextMapper) *authorizerHarness {
	t.Helper()

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	fixture, err := httpfixture.NewJWKSFixture(httpfixture.JWKSFixtureConfig{
		Issuer: testIssuer,
		Clock:  clk,
	})
	require.NoError(t, err)

	reg := registry.New(store.NewMemoryStore())
	orgID := uuid.New()
	_, err = reg.Upsert(context.Background(), testIssuer, orgID)
	require.NoError(t, err)

	counting := &countingRegistry{inner: reg}
	keys := &fixtureKeyResolver{fixture: fixture}
	identities := &staticIdentities{record: &identity.Record{
		AccountID:      uuid.New(),
		OrganizationID: orgID,
	}}

	return &authorizerHarness{
		authorizer: authn.NewAuthorizer(authn.AuthorizerConfig{
			Extractor:  credential.NewExtractor(credential.ExtractorConfig{}),
			Registry:   counting,
			Keys:       keys,
			Verifier:   token.NewVerifier(token.VerifierConfig{Clock: clk}),
			Identities: identities,
			Mapper:     mapper,
		}),
		fixture:    fixture,
		registry:   counting,
		keys:       keys,
		identities: identities,
		accountID:  identities.record.AccountID,
		orgID:      orgID,
	}
}

func (h *authorizerHarness) checkRequest(t *testing.T, identityClaims map[string]interface{}) *request.CheckRequest {
	t.Helper()
	identityToken, accessToken, err := h.fixture.SignTokenPair(identityClaims, map[string]interface{}{
		"token_use": "access",
	})
	require.NoError(t, err)

	return &request.CheckRequest{
		Headers: map[string]string{"cookie": testCookie},
		Credentials: []string{
			"awsIdToken=" + identityToken,
			"awsAccessToken=" + accessToken,
		},
	}
}

func TestAuthorizer_Check_Authorized(t *testing.T) {
	h := newHarness(t, nil)
	req := h.checkRequest(t, map[string]interface{}{
		"sub":                     "subject-1",
		"cognito:username":        "alice",
		"email":                   "alice@example.com",
		"given_name":              "Alice",
		"family_name":             "Example",
		"custom:role":             "researcher",
		"custom:build_query":      true,
		"custom:can_share":        "true",
		"custom:irb_memberships":  "irb-1,irb-2",
		"custom:phi_access_level": "METRICS_ONLY",
		"custom:validate_data":    "false",
		"custom:download_data":    false,
		"custom:version_view":     "not-a-bool",
	})

	decision := h.authorizer.Check(context.Background(), req)
	require.True(t, decision.Authorized)

	assert.Equal(t, h.accountID.String(), decision.Context["accountUuid"])
	assert.Equal(t, h.orgID.String(), decision.Context["organizationUuid"])
	assert.Equal(t, testCookie, decision.Context["cookie"])
	assert.Equal(t, "alice@example.com", decision.Context["email"])
	assert.Equal(t, "Alice", decision.Context["firstName"])
	assert.Equal(t, "Example", decision.Context["lastName"])
	assert.Equal(t, "researcher", decision.Context["role"])
	assert.Equal(t, "alice", decision.Context["username"])

	userClaims, ok := decision.Context["user_claims"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, userClaims["buildQuery"])
	assert.Equal(t, true, userClaims["canShare"])
	assert.Equal(t, []any{"irb-1", "irb-2"}, userClaims["irbMemberships"])
	assert.Equal(t, "METRICS_ONLY", userClaims["phiAccessLevel"])
	assert.Equal(t, false, userClaims["validateData"])
	assert.Equal(t, false, userClaims["downloadData"])
	assert.Equal(t, false, userClaims["versionView"])

	// The identity authority saw the caller's own cookie
	assert.Equal(t, testCookie, h.identities.credential)

	// Keys were fetched from the issuer's well-known location
	assert.Equal(t, testIssuer+"/.well-known/jwks.json", h.keys.jwksURL)
}

func TestAuthorizer_Check_DefaultsRestrictive(t *testing.T) {
	h := newHarness(t, nil)
	req := h.checkRequest(t, map[string]interface{}{
		"cognito:username": "bob",
	})

	decision := h.authorizer.Check(context.Background(), req)
	require.True(t, decision.Authorized)

	userClaims := decision.Context["user_claims"].(map[string]any)
	assert.Equal(t, false, userClaims["buildQuery"])
	assert.Equal(t, []any{}, userClaims["irbMemberships"])
	assert.Equal(t, "NONE", userClaims["phiAccessLevel"])
}

func TestAuthorizer_Check_Denials(t *testing.T) {
	t.Run("missing credentials deny without reaching the registry", func(t *testing.T) {
		h := newHarness(t, nil)

		decision := h.authorizer.Check(context.Background(), &request.CheckRequest{})

		assert.False(t, decision.Authorized)
		assert.Nil(t, decision.Context)
		assert.Equal(t, 0, h.registry.calls)
	})

	t.Run("issuer mismatch denies before the trust lookup", func(t *testing.T) {
		h := newHarness(t, nil)
		other, err := httpfixture.NewJWKSFixture(httpfixture.JWKSFixtureConfig{
			Issuer: "https://cognito-idp.eu-west-1.amazonaws.com/pool-other",
		})
		require.NoError(t, err)

		identityToken, _, err := h.fixture.SignTokenPair(
			map[string]interface{}{"cognito:username": "alice"},
			map[string]interface{}{"token_use": "access"},
		)
		require.NoError(t, err)
		foreignAccess, err := other.CreateAndSignToken(map[string]interface{}{"token_use": "access"})
		require.NoError(t, err)

		req := &request.CheckRequest{
			Headers: map[string]string{"cookie": testCookie},
			Credentials: []string{
				"awsIdToken=" + identityToken,
				"awsAccessToken=" + foreignAccess,
			},
		}

		decision := h.authorizer.Check(context.Background(), req)

		assert.False(t, decision.Authorized)
		assert.Equal(t, 0, h.registry.calls)
		assert.Equal(t, 0, h.keys.calls)
	})

	t.Run("untrusted issuer denies before any key fetch", func(t *testing.T) {
		h := newHarness(t, nil)
		untrusted, err := httpfixture.NewJWKSFixture(httpfixture.JWKSFixtureConfig{
			Issuer: "https://cognito-idp.us-east-1.amazonaws.com/pool-untrusted",
		})
		require.NoError(t, err)

		identityToken, accessToken, err := untrusted.SignTokenPair(
			map[string]interface{}{"cognito:username": "alice"},
			map[string]interface{}{"token_use": "access"},
		)
		require.NoError(t, err)

		req := &request.CheckRequest{
			Headers: map[string]string{"cookie": testCookie},
			Credentials: []string{
				"awsIdToken=" + identityToken,
				"awsAccessToken=" + accessToken,
			},
		}

		decision := h.authorizer.Check(context.Background(), req)

		assert.False(t, decision.Authorized)
		assert.Equal(t, 1, h.registry.calls)
		assert.Equal(t, 0, h.keys.calls)
	})

	t.Run("broken token binding denies", func(t *testing.T) {
		h := newHarness(t, nil)
		identityToken, _, err := h.fixture.SignTokenPair(
			map[string]interface{}{"cognito:username": "alice"},
			map[string]interface{}{"token_use": "access"},
		)
		require.NoError(t, err)
		// An access token the identity token never committed to
		_, otherAccess, err := h.fixture.SignTokenPair(
			map[string]interface{}{"cognito:username": "alice"},
			map[string]interface{}{"token_use": "access", "session": "other"},
		)
		require.NoError(t, err)

		req := &request.CheckRequest{
			Headers: map[string]string{"cookie": testCookie},
			Credentials: []string{
				"awsIdToken=" + identityToken,
				"awsAccessToken=" + otherAccess,
			},
		}

		decision := h.authorizer.Check(context.Background(), req)

		assert.False(t, decision.Authorized)
		assert.Equal(t, 0, h.identities.calls)
	})

	t.Run("missing username claim denies after verification", func(t *testing.T) {
		h := newHarness(t, nil)
		req := h.checkRequest(t, map[string]interface{}{"sub": "subject-1"})

		decision := h.authorizer.Check(context.Background(), req)

		assert.False(t, decision.Authorized)
		assert.Equal(t, 0, h.identities.calls)
	})

	t.Run("identity resolution failure denies", func(t *testing.T) {
		h := newHarness(t, nil)
		h.identities.err = errors.New("authority down")
		req := h.checkRequest(t, map[string]interface{}{"cognito:username": "alice"})

		decision := h.authorizer.Check(context.Background(), req)

		assert.False(t, decision.Authorized)
		assert.Nil(t, decision.Context)
	})
}

func TestAuthorizer_Check_Mapper(t *testing.T) {
	t.Run("mapped entries merge over the projection", func(t *testing.T) {
		mapper := mapperFunc(func(ctx context.Context, claims map[string]any) (map[string]any, error) {
			return map[string]any{
				"tenant": claims["custom:tenant"],
				"role":   "overridden",
			}, nil
		})
		h := newHarness(t, mapper)
		req := h.checkRequest(t, map[string]interface{}{
			"cognito:username": "alice",
			"custom:role":      "researcher",
			"custom:tenant":    "acme",
		})

		decision := h.authorizer.Check(context.Background(), req)
		require.True(t, decision.Authorized)

		assert.Equal(t, "acme", decision.Context["tenant"])
		assert.Equal(t, "overridden", decision.Context["role"])
	})

	t.Run("mapper failure denies", func(t *testing.T) {
		mapper := mapperFunc(func(ctx context.Context, claims map[string]any) (map[string]any, error) {
			return nil, errors.New("bad projection")
		})
		h := newHarness(t, mapper)
		req := h.checkRequest(t, map[string]interface{}{"cognito:username": "alice"})

		decision := h.authorizer.Check(context.Background(), req)

		assert.False(t, decision.Authorized)
		assert.Nil(t, decision.Context)
	})
}

func TestUserPoolID(t *testing.T) {
	assert.Equal(t, "pool-1", authn.UserPoolID(testIssuer))
	assert.Equal(t, "plain", authn.UserPoolID("plain"))
}
