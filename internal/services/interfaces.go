package services

import (
	"context"
)

// CacheServiceInterface defines the interface for cache service
type CacheServiceInterface interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value in cache with TTL
	Set(ctx context.Context, key string, value string) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear clears all cache entries
	Clear(ctx context.Context) error

	// Exists checks if a key exists in cache
	Exists(ctx context.Context, key string) (bool, error)

	// GetStats returns cache statistics
	GetStats(ctx context.Context) (map[string]interface{}, error)

	// Health returns cache service health status
	Health() map[string]interface{}
}

// BrowserServiceInterface defines the interface for browser service
type BrowserServiceInterface interface {
	// GetBrowser gets an available browser context
	GetBrowser(ctx context.Context) (BrowserContext, error)

	// ReleaseBrowser releases a browser context back to the pool
	ReleaseBrowser(browserCtx BrowserContext) error

	// GetStats returns browser pool statistics
	GetStats() map[string]interface{}

	// Health returns browser service health status
	Health() map[string]interface{}

	// Restart restarts the browser pool
	Restart() error

	// Close closes all browsers and releases resources
	Close() error
}

// BrowserContext represents a browser context for automation
type BrowserContext interface {
	// Navigate navigates to a URL
	Navigate(ctx context.Context, url string) error

	// WaitForSelector waits for an element to become visible
	WaitForSelector(ctx context.Context, selector string) error

	// Click clicks on an element
	Click(ctx context.Context, selector string) error

	// Type types text into an element
	Type(ctx context.Context, selector, text string) error

	// GetText gets text content from an element
	GetText(ctx context.Context, selector string) (string, error)

	// GetHTML gets the full page HTML
	GetHTML(ctx context.Context) (string, error)

	// Screenshot captures the visible page
	Screenshot(ctx context.Context) ([]byte, error)

	// ScreenshotElement captures a single element
	ScreenshotElement(ctx context.Context, selector string) ([]byte, error)

	// ExecuteScript executes JavaScript
	ExecuteScript(ctx context.Context, script string) (interface{}, error)

	// SetCookies installs cookies before navigation
	SetCookies(ctx context.Context, cookies []Cookie) error

	// GetCookies returns the cookies of the current session
	GetCookies(ctx context.Context) ([]Cookie, error)

	// Close closes the browser context
	Close() error

	// IsHealthy checks if the browser context is healthy
	IsHealthy() bool

	// GetID returns the browser context ID
	GetID() string
}

// Cookie represents an HTTP cookie
type Cookie struct {
	Name     string `json:"name"`
	Value    string `json:"value"`
	Domain   string `json:"domain,omitempty"`
	Path     string `json:"path,omitempty"`
	Expires  int64  `json:"expires,omitempty"`
	HTTPOnly bool   `json:"httpOnly,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	SameSite string `json:"sameSite,omitempty"`
}
