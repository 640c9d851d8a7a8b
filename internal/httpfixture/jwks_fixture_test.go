package httpfixture

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/lestrrat-go/jwx/v3/jwt"

	"github.com/project-atrium/warder/internal/clock"
	"github.com/project-atrium/warder/internal/token"
)

func TestNewJWKSFixture(t *testing.T) {
	t.Run("creates fixture with valid config", func(t *testing.T) {
		fixture, err := NewJWKSFixture(JWKSFixtureConfig{
			Issuer: "https://test-issuer.example.com",
		})
		if err != nil {
			t.Fatalf("failed to create fixture: %v", err)
		}

		if fixture.issuer != "https://test-issuer.example.com" {
			t.Errorf("expected issuer 'https://test-issuer.example.com', got %q", fixture.issuer)
		}

		// JWKS URL defaults to the issuer's well-known location
		if fixture.jwksURL != "https://test-issuer.example.com/.well-known/jwks.json" {
			t.Errorf("expected default jwksURL, got %q", fixture.jwksURL)
		}

		if fixture.keyID != "test-key-1" {
			t.Errorf("expected default keyID 'test-key-1', got %q", fixture.keyID)
		}

		if fixture.algorithm != jwa.RS256() {
			t.Errorf("expected default algorithm RS256, got %v", fixture.algorithm)
		}

		if fixture.privateKey == nil {
			t.Error("expected private key to be generated")
		}

		if fixture.publicKey == nil {
			t.Error("expected public key to be created")
		}

		if fixture.jwks == nil {
			t.Error("expected JWKS to be created")
		}
	})

	t.Run("uses custom key ID and algorithm", func(t *testing.T) {
		fixture, err := NewJWKSFixture(JWKSFixtureConfig{
			Issuer:    "https://test-issuer.example.com",
			KeyID:     "custom-key-id",
			Algorithm: jwa.RS512(),
		})
		if err != nil {
			t.Fatalf("failed to create fixture: %v", err)
		}

		if fixture.keyID != "custom-key-id" {
			t.Errorf("expected keyID 'custom-key-id', got %q", fixture.keyID)
		}

		if fixture.algorithm != jwa.RS512() {
			t.Errorf("expected algorithm RS512, got %v", fixture.algorithm)
		}
	})

	t.Run("requires issuer", func(t *testing.T) {
		_, err := NewJWKSFixture(JWKSFixtureConfig{})
		if err == nil {
			t.Fatal("expected error for missing issuer")
		}
	})
}

func TestJWKSFixture_GetFixture(t *testing.T) {
	fixture, err := NewJWKSFixture(JWKSFixtureConfig{
		Issuer: "https://test-issuer.example.com",
	})
	if err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}

	t.Run("returns fixture for matching URL", func(t *testing.T) {
		req := &http.Request{
			Method: "GET",
			URL:    mustParseURL(t, "https://test-issuer.example.com/.well-known/jwks.json"),
		}

		result := fixture.GetFixture(req)
		if result == nil {
			t.Fatal("expected fixture to be returned")
		}

		if result.StatusCode != 200 {
			t.Errorf("expected status code 200, got %d", result.StatusCode)
		}

		if result.Headers["Content-Type"] != "application/json" {
			t.Errorf("expected Content-Type 'application/json', got %q", result.Headers["Content-Type"])
		}

		jwks, err := jwk.Parse([]byte(result.Body))
		if err != nil {
			t.Fatalf("failed to parse JWKS response: %v", err)
		}

		if jwks.Len() != 1 {
			t.Errorf("expected 1 key in JWKS, got %d", jwks.Len())
		}

		key, ok := jwks.Key(0)
		if !ok {
			t.Fatal("failed to get key from JWKS")
		}

		keyID, _ := key.KeyID()
		if keyID != "test-key-1" {
			t.Errorf("expected key ID 'test-key-1', got %q", keyID)
		}
	})

	t.Run("returns nil for non-matching URL", func(t *testing.T) {
		req := &http.Request{
			Method: "GET",
			URL:    mustParseURL(t, "https://different-issuer.example.com/.well-known/jwks.json"),
		}

		if fixture.GetFixture(req) != nil {
			t.Error("expected nil for non-matching URL")
		}
	})
}

func TestJWKSFixture_CreateAndSignToken(t *testing.T) {
	fixture, err := NewJWKSFixture(JWKSFixtureConfig{
		Issuer: "https://test-issuer.example.com",
	})
	if err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}

	tokenString, err := fixture.CreateAndSignToken(map[string]interface{}{
		"sub":   "user@example.com",
		"email": "user@example.com",
	})
	if err != nil {
		t.Fatalf("failed to create and sign token: %v", err)
	}

	parsed, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(fixture.jwks),
		jwt.WithValidate(true),
		jwt.WithIssuer(fixture.issuer),
	)
	if err != nil {
		t.Fatalf("failed to parse/verify token: %v", err)
	}

	subject, _ := parsed.Subject()
	if subject != "user@example.com" {
		t.Errorf("expected subject 'user@example.com', got %q", subject)
	}

	var email string
	if err := parsed.Get("email", &email); err != nil {
		t.Errorf("expected 'email' claim to be present: %v", err)
	} else if email != "user@example.com" {
		t.Errorf("expected email 'user@example.com', got %q", email)
	}
}

func TestJWKSFixture_WithFakeClock(t *testing.T) {
	fixedTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFakeClock(fixedTime)

	fixture, err := NewJWKSFixture(JWKSFixtureConfig{
		Issuer: "https://test-issuer.example.com",
		Clock:  clk,
	})
	if err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}

	t.Run("uses clock for token timestamps", func(t *testing.T) {
		tokenString, err := fixture.CreateAndSignToken(map[string]interface{}{
			"sub": "user@example.com",
		})
		if err != nil {
			t.Fatalf("failed to create token: %v", err)
		}

		parsed, err := jwt.Parse([]byte(tokenString), jwt.WithVerify(false), jwt.WithValidate(false))
		if err != nil {
			t.Fatalf("failed to parse token: %v", err)
		}

		iat, _ := parsed.IssuedAt()
		if !iat.Equal(fixedTime) {
			t.Errorf("expected iat %v, got %v", fixedTime, iat)
		}

		exp, _ := parsed.Expiration()
		if !exp.Equal(fixedTime.Add(1 * time.Hour)) {
			t.Errorf("expected exp %v, got %v", fixedTime.Add(1*time.Hour), exp)
		}
	})

	t.Run("custom expiry is honored", func(t *testing.T) {
		expiry := fixedTime.Add(30 * time.Minute)
		tokenString, err := fixture.CreateAndSignTokenWithExpiry(
			map[string]interface{}{"sub": "user@example.com"},
			expiry,
		)
		if err != nil {
			t.Fatalf("failed to create token: %v", err)
		}

		parsed, err := jwt.Parse([]byte(tokenString), jwt.WithVerify(false), jwt.WithValidate(false))
		if err != nil {
			t.Fatalf("failed to parse token: %v", err)
		}

		exp, _ := parsed.Expiration()
		if !exp.Equal(expiry) {
			t.Errorf("expected exp %v, got %v", expiry, exp)
		}
	})
}

func TestJWKSFixture_SignTokenPair(t *testing.T) {
	fixture, err := NewJWKSFixture(JWKSFixtureConfig{
		Issuer: "https://test-issuer.example.com",
	})
	if err != nil {
		t.Fatalf("failed to create fixture: %v", err)
	}

	identityToken, accessToken, err := fixture.SignTokenPair(
		map[string]interface{}{"sub": "user@example.com"},
		map[string]interface{}{"token_use": "access"},
	)
	if err != nil {
		t.Fatalf("failed to sign token pair: %v", err)
	}

	parsed, err := jwt.Parse(
		[]byte(identityToken),
		jwt.WithKeySet(fixture.jwks),
		jwt.WithValidate(true),
	)
	if err != nil {
		t.Fatalf("failed to parse/verify identity token: %v", err)
	}

	// The identity token commits to the exact access token it was paired with
	var atHash string
	if err := parsed.Get("at_hash", &atHash); err != nil {
		t.Fatalf("expected at_hash claim: %v", err)
	}
	if atHash != token.ComputeAccessTokenHash(accessToken) {
		t.Errorf("at_hash = %q does not commit to the paired access token", atHash)
	}

	// Both tokens carry the fixture's issuer
	accessParsed, err := jwt.Parse([]byte(accessToken), jwt.WithKeySet(fixture.jwks), jwt.WithValidate(true))
	if err != nil {
		t.Fatalf("failed to parse/verify access token: %v", err)
	}
	accessIssuer, _ := accessParsed.Issuer()
	identityIssuer, _ := parsed.Issuer()
	if accessIssuer != identityIssuer {
		t.Errorf("issuer mismatch: %q vs %q", accessIssuer, identityIssuer)
	}
}

func mustParseURL(t *testing.T, urlStr string) *url.URL {
	t.Helper()
	u, err := url.Parse(urlStr)
	if err != nil {
		t.Fatalf("failed to parse URL %q: %v", urlStr, err)
	}
	return u
}
