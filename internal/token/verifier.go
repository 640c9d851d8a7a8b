package token

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/project-atrium/warder/internal/clock"
	"github.com/project-atrium/warder/internal/credential"
)

// Verification errors
var (
	// ErrInvalidIdentityToken indicates the identity token failed signature
	// or temporal claim verification
	ErrInvalidIdentityToken = errors.New("invalid identity token")

	// ErrTokenBindingMismatch indicates the access token is not the one the
	// identity token's at_hash claim commits to
	ErrTokenBindingMismatch = errors.New("access token does not match identity token binding hash")

	// ErrUnsupportedAlgorithm indicates a signing algorithm other than RS256
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
)

// atHashClaim is the identity-token claim committing to the access token
const atHashClaim = "at_hash"

// VerifiedToken is the decoded payload of an identity token after signature
// and access-token binding verification have succeeded. Immutable.
type VerifiedToken struct {
	// Issuer is the verified iss claim
	Issuer string

	// Subject is the verified sub claim
	Subject string

	// Claims holds every payload claim, JSON-decoded
	Claims map[string]any

	// ExpiresAt and IssuedAt are the verified temporal claims
	ExpiresAt time.Time
	IssuedAt  time.Time
}

// GetString returns the named claim as a string, or "" when absent or not a string
func (t *VerifiedToken) GetString(name string) string {
	s, _ := t.Claims[name].(string)
	return s
}

// Verifier verifies an identity token's signature and its binding to the
// paired access token
type Verifier struct {
	clock clock.Clock
}

// VerifierConfig configures a Verifier
type VerifierConfig struct {
	// Clock is the time source for temporal claim validation.
	// If nil, uses the system clock.
	Clock clock.Clock
}

// NewVerifier creates a token verifier
func NewVerifier(cfg VerifierConfig) *Verifier {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	return &Verifier{clock: clk}
}

// Verify verifies the identity token of pair against key and then verifies the
// access-token binding hash. Only RS256 is supported. Temporal claims (exp,
// iat) are validated; audience is deliberately not.
func (v *Verifier) Verify(ctx context.Context, pair *credential.Pair, key jwk.Key, algorithm string) (*VerifiedToken, error) {
	if algorithm != jwa.RS256().String() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	parsed, err := jwt.Parse(
		[]byte(pair.IdentityToken),
		jwt.WithKey(jwa.RS256(), key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(func() time.Time {
			return v.clock.Now()
		})),
	)
	if err != nil {
		if errors.Is(err, jwt.TokenExpiredError()) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidIdentityToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentityToken, err)
	}

	if err := verifyAccessTokenHash(pair.AccessToken, parsed); err != nil {
		return nil, err
	}

	// Flatten all claims into a plain map
	allClaims := map[string]any{}
	serialized, err := json.Marshal(parsed)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize token claims: %w", err)
	}
	if err := json.Unmarshal(serialized, &allClaims); err != nil {
		return nil, fmt.Errorf("failed to parse token claims: %w", err)
	}

	issuer, _ := parsed.Issuer()
	subject, _ := parsed.Subject()
	expiresAt, _ := parsed.Expiration()
	issuedAt, _ := parsed.IssuedAt()

	return &VerifiedToken{
		Issuer:    issuer,
		Subject:   subject,
		Claims:    allClaims,
		ExpiresAt: expiresAt,
		IssuedAt:  issuedAt,
	}, nil
}

// verifyAccessTokenHash checks the at_hash binding: the left half of the
// SHA-256 digest of the raw access token, base64url-encoded without padding,
// must equal the identity token's at_hash claim.
func verifyAccessTokenHash(accessToken string, identityToken jwt.Token) error {
	var atHash string
	if err := identityToken.Get(atHashClaim, &atHash); err != nil {
		return fmt.Errorf("%w: missing %s claim", ErrTokenBindingMismatch, atHashClaim)
	}

	if ComputeAccessTokenHash(accessToken) != atHash {
		return ErrTokenBindingMismatch
	}
	return nil
}

// ComputeAccessTokenHash computes the at_hash value for a raw access token
// using the RS256 hash family (SHA-256, left half, unpadded base64url).
func ComputeAccessTokenHash(accessToken string) string {
	digest := sha256.Sum256([]byte(accessToken))
	return base64.RawURLEncoding.EncodeToString(digest[:len(digest)/2])
}
