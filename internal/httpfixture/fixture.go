// Package httpfixture provides hermetic HTTP fixtures for testing and
// air-gapped operation. A fixture transport answers HTTP requests from
// configured responses instead of the network.
package httpfixture

import (
	"fmt"
	"net/http"
	"regexp"
	"time"
)

// Fixture is a canned HTTP response
type Fixture struct {
	StatusCode int
	Headers    map[string]string
	Body       string

	// Delay simulates network latency before the response is returned
	Delay *time.Duration
}

// FixtureRequest describes which requests a rule matches
type FixtureRequest struct {
	// Method is the HTTP method to match; "*" matches any
	Method string

	// URL is the URL to match, interpreted per URLType
	URL string

	// URLType is "exact" (default) or "pattern" (regular expression)
	URLType string

	// Headers must all be present with the given values
	Headers map[string]string
}

// HTTPFixtureRule pairs a request matcher with its response
type HTTPFixtureRule struct {
	Request  FixtureRequest
	Response Fixture
}

// FixtureProvider supplies fixtures for requests. A nil return means the
// provider has no fixture for the request.
type FixtureProvider interface {
	GetFixture(req *http.Request) *Fixture
}

// ruleBasedProvider matches requests against an ordered rule list
type ruleBasedProvider struct {
	rules []HTTPFixtureRule
}

// NewRuleBasedProvider creates a provider from rules. Rules are evaluated in
// order; the first match wins.
func NewRuleBasedProvider(rules []HTTPFixtureRule) FixtureProvider {
	return &ruleBasedProvider{rules: rules}
}

func (p *ruleBasedProvider) GetFixture(req *http.Request) *Fixture {
	for i := range p.rules {
		rule := &p.rules[i]
		if matches(rule, req) {
			return &rule.Response
		}
	}
	return nil
}

func matches(rule *HTTPFixtureRule, req *http.Request) bool {
	if rule.Request.Method != "*" && rule.Request.Method != req.Method {
		return false
	}

	switch rule.Request.URLType {
	case "pattern":
		matched, err := regexp.MatchString("^"+rule.Request.URL+"$", req.URL.String())
		if err != nil || !matched {
			return false
		}
	default:
		if rule.Request.URL != req.URL.String() {
			return false
		}
	}

	for name, value := range rule.Request.Headers {
		if req.Header.Get(name) != value {
			return false
		}
	}

	return true
}

// mapProvider looks fixtures up by "METHOD url" key
type mapProvider struct {
	fixtures map[string]*Fixture
}

// NewMapProvider creates a provider backed by a map keyed as "METHOD url"
func NewMapProvider(fixtures map[string]*Fixture) FixtureProvider {
	return &mapProvider{fixtures: fixtures}
}

func (p *mapProvider) GetFixture(req *http.Request) *Fixture {
	return p.fixtures[fmt.Sprintf("%s %s", req.Method, req.URL.String())]
}

// FuncProvider adapts a function to FixtureProvider, for fixtures whose
// response depends on the request
type FuncProvider func(req *http.Request) *Fixture

// NewFuncProvider creates a provider from a function
func NewFuncProvider(fn func(req *http.Request) *Fixture) FixtureProvider {
	return FuncProvider(fn)
}

func (f FuncProvider) GetFixture(req *http.Request) *Fixture {
	return f(req)
}

// compositeProvider asks each provider in order
type compositeProvider struct {
	providers []FixtureProvider
}

// NewCompositeProvider creates a provider that consults all given providers
// in order and returns the first fixture found
func NewCompositeProvider(providers ...FixtureProvider) FixtureProvider {
	return &compositeProvider{providers: providers}
}

func (p *compositeProvider) GetFixture(req *http.Request) *Fixture {
	for _, provider := range p.providers {
		if fixture := provider.GetFixture(req); fixture != nil {
			return fixture
		}
	}
	return nil
}
