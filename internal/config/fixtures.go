package config

import (
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwa"

	"github.com/project-atrium/warder/internal/clock"
	"github.com/project-atrium/warder/internal/httpfixture"
)

// BuildHTTPFixtureProvider creates a composite HTTP fixture provider from fixture configurations
// Returns nil if no fixtures are configured (normal production mode)
func BuildHTTPFixtureProvider(fixtures []FixtureConfig, clk clock.Clock) (httpfixture.FixtureProvider, error) {
	if len(fixtures) == 0 {
		return nil, nil
	}

	if clk == nil {
		clk = clock.NewSystemClock()
	}

	var providers []httpfixture.FixtureProvider

	// Build HTTP rule fixtures
	var rules []httpfixture.HTTPFixtureRule
	for _, f := range fixtures {
		if f.Type != "http_rule" {
			continue
		}

		rules = append(rules, httpfixture.HTTPFixtureRule{
			Request: httpfixture.FixtureRequest{
				Method:  f.Request.Method,
				URL:     f.Request.URL,
				URLType: f.Request.URLType,
				Headers: f.Request.Headers,
			},
			Response: httpfixture.Fixture{
				StatusCode: f.Response.StatusCode,
				Headers:    f.Response.Headers,
				Body:       f.Response.Body,
			},
		})
	}
	if len(rules) > 0 {
		providers = append(providers, httpfixture.NewRuleBasedProvider(rules))
	}

	// Build JWKS fixtures
	for _, f := range fixtures {
		if f.Type != "jwks" {
			continue
		}

		if f.Issuer == "" {
			return nil, fmt.Errorf("jwks fixture missing required field: issuer")
		}

		var algo jwa.SignatureAlgorithm
		if f.Algorithm != "" {
			var ok bool
			algo, ok = jwa.LookupSignatureAlgorithm(f.Algorithm)
			if !ok {
				return nil, fmt.Errorf("unknown signature algorithm %q for issuer %s", f.Algorithm, f.Issuer)
			}
		}

		jwksFixture, err := httpfixture.NewJWKSFixture(httpfixture.JWKSFixtureConfig{
			Issuer:    f.Issuer,
			JWKSURL:   f.JWKSURL,
			KeyID:     f.KeyID,
			Algorithm: algo,
			Clock:     clk,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create JWKS fixture for issuer %s: %w", f.Issuer, err)
		}

		providers = append(providers, jwksFixture)
	}

	return httpfixture.NewCompositeProvider(providers...), nil
}
