package integrations

import (
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/nugallery/pkg/buildinfo"
	"github.com/matzehuels/nugallery/pkg/errors"
)

// DefaultTimeout is the request timeout used when none is configured.
const DefaultTimeout = 30 * time.Second

var (
	// ErrNotFound is returned when a package or resource doesn't exist in the registry.
	ErrNotFound = errors.New(errors.ErrCodeNotFound, "resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New(errors.ErrCodeNetwork, "network error")
)

// NewHTTPClient creates an HTTP client with the given request timeout.
// A zero timeout selects DefaultTimeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// UserAgent identifies the gallery to registries.
func UserAgent() string {
	return "nugallery/" + buildinfo.Version + " (https://github.com/matzehuels/nugallery)"
}

// URLEncode percent-encodes a string for use in URLs.
// This is a convenience wrapper around [url.QueryEscape].
func URLEncode(s string) string { return url.QueryEscape(s) }

// PathEscape percent-encodes a string for use as one URL path segment.
func PathEscape(s string) string { return url.PathEscape(s) }
