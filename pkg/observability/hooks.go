// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries emit events through globally registered hooks that default to
// no-ops, so instrumentation is opt-in and the core packages carry no
// dependency on a particular backend. Register hooks once at startup:
//
//	hooks := observability.NewLogHooks(logger)
//	observability.SetGalleryHooks(hooks)
//	observability.SetHTTPHooks(hooks)
//
// Libraries call them around the work they instrument:
//
//	observability.Gallery().OnFetchStart(ctx, observability.FetchPackage, key)
//	// ... download and parse ...
//	observability.Gallery().OnFetchComplete(ctx, observability.FetchPackage, key, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// Fetch kinds reported by [GalleryHooks].
const (
	FetchPackage  = "package"
	FetchSearch   = "search"
	FetchVersions = "versions"
)

// =============================================================================
// Gallery Hooks
// =============================================================================

// GalleryHooks receives events from the package fetch pipeline. Fetch
// events fire once per cache population, not per lookup.
type GalleryHooks interface {
	OnFetchStart(ctx context.Context, kind, key string)
	OnFetchComplete(ctx context.Context, kind, key string, duration time.Duration, err error)

	// OnResolve records one top-level assembly resolution.
	OnResolve(ctx context.Context, name, moniker string, found bool, duration time.Duration)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnRequest records an outgoing HTTP request.
	OnRequest(ctx context.Context, method, host, path string)

	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopGalleryHooks is a no-op implementation of GalleryHooks.
type NoopGalleryHooks struct{}

func (NoopGalleryHooks) OnFetchStart(context.Context, string, string)                          {}
func (NoopGalleryHooks) OnFetchComplete(context.Context, string, string, time.Duration, error) {}
func (NoopGalleryHooks) OnResolve(context.Context, string, string, bool, time.Duration)         {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	galleryHooks GalleryHooks = NoopGalleryHooks{}
	httpHooks    HTTPHooks    = NoopHTTPHooks{}
	hooksMu      sync.RWMutex
)

// SetGalleryHooks registers custom gallery hooks. Nil is ignored.
func SetGalleryHooks(h GalleryHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		galleryHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Gallery returns the registered gallery hooks.
func Gallery() GalleryHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return galleryHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	galleryHooks = NoopGalleryHooks{}
	httpHooks = NoopHTTPHooks{}
}
