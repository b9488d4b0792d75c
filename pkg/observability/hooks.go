// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries in this module emit events through the registered hooks; nothing
// here depends on a particular backend. The CLI installs hooks that forward
// events to its logger, other embedders can plug in their own.
//
// Register hooks once at startup:
//
//	observability.SetResolverHooks(myResolverHooks{})
//	observability.SetCacheHooks(myCacheHooks{})
//
// Libraries call the registered hooks:
//
//	observability.Resolver().OnResolveStart(ctx, name, ver)
//	// ... resolve ...
//	observability.Resolver().OnResolveComplete(ctx, name, ver, status, time.Since(start), err)
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Resolver Hooks
// =============================================================================

// ResolverHooks receives module lifecycle events.
type ResolverHooks interface {
	// Resolve events. version is empty when any version was requested.
	OnResolveStart(ctx context.Context, name, version string)
	OnResolveComplete(ctx context.Context, name, version, status string, duration time.Duration, err error)

	// OnDownload records a module fetched from an update provider.
	OnDownload(ctx context.Context, name, version string, size int64, duration time.Duration, err error)

	// OnStop records a module stop, forced when the grace period ran out.
	OnStop(ctx context.Context, name, version string, forced bool)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)
	// OnError records a network failure or timeout.
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopResolverHooks is a no-op implementation of ResolverHooks.
type NoopResolverHooks struct{}

func (NoopResolverHooks) OnResolveStart(context.Context, string, string) {}
func (NoopResolverHooks) OnResolveComplete(context.Context, string, string, string, time.Duration, error) {
}
func (NoopResolverHooks) OnDownload(context.Context, string, string, int64, time.Duration, error) {}
func (NoopResolverHooks) OnStop(context.Context, string, string, bool)                            {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	resolverHooks ResolverHooks = NoopResolverHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetResolverHooks registers resolver hooks. Nil is ignored.
func SetResolverHooks(h ResolverHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		resolverHooks = h
	}
}

// SetCacheHooks registers cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers HTTP hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Resolver returns the registered resolver hooks.
func Resolver() ResolverHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return resolverHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
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
	resolverHooks = NoopResolverHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
