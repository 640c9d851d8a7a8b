// Package request provides common request-related types used across the warder system.
//
// This package contains the transport-agnostic shape of an inbound authorization
// request: the named headers and the ordered list of opaque credential strings
// carried with it. The serving layer builds one of these per check; the
// authentication pipeline never sees the wire protocol.
package request

// CheckRequest describes a single inbound authorization request
type CheckRequest struct {
	// Headers are the request headers, keyed by lowercased header name
	Headers map[string]string `json:"headers,omitempty"`

	// Credentials is the ordered list of opaque credential strings presented
	// with the request (conventionally "name=value" entries). Order is
	// preserved from the wire; the list must not be assumed sorted or deduped.
	Credentials []string `json:"credentials,omitempty"`

	// Additional arbitrary context about the request (e.g. method, path,
	// proxy context extensions). Informational only.
	Additional map[string]any `json:"additional,omitempty"`
}

// Header returns the named header, or "" when absent. Names are matched
// lowercased, which is how proxies deliver them.
func (r *CheckRequest) Header(name string) string {
	if r == nil || r.Headers == nil {
		return ""
	}
	return r.Headers[name]
}
