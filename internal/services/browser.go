package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/civicdata/consulta-api/internal/config"
)

// BrowserService manages a pool of browser contexts
type BrowserService struct {
	config   config.BrowserConfig
	logger   *logrus.Logger
	pool     chan *ChromeBrowserContext
	contexts []*ChromeBrowserContext
	mu       sync.RWMutex
	closed   bool
}

// ChromeBrowserContext implements BrowserContext interface
type ChromeBrowserContext struct {
	id       string
	cancel   context.CancelFunc
	chromedp context.Context
	healthy  bool
	mu       sync.RWMutex
}

// NewBrowserService creates a new browser service
func NewBrowserService(config config.BrowserConfig, logger *logrus.Logger) (BrowserServiceInterface, error) {
	service := &BrowserService{
		config:   config,
		logger:   logger,
		pool:     make(chan *ChromeBrowserContext, config.MaxBrowsers),
		contexts: make([]*ChromeBrowserContext, 0, config.MaxBrowsers),
	}

	// Initialize minimum browsers
	for i := 0; i < config.MinBrowsers; i++ {
		browserCtx, err := service.createBrowser()
		if err != nil {
			logger.WithError(err).Error("Failed to create initial browser")
			continue
		}
		service.contexts = append(service.contexts, browserCtx)
		service.pool <- browserCtx
	}

	logger.WithField("browsers", len(service.contexts)).Info("Browser service initialized")
	return service, nil
}

// GetBrowser gets an available browser context
func (s *BrowserService) GetBrowser(ctx context.Context) (BrowserContext, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, fmt.Errorf("browser service is closed")
	}
	s.mu.RUnlock()

	select {
	case browserCtx := <-s.pool:
		if browserCtx.IsHealthy() {
			return browserCtx, nil
		}
		s.logger.WithField("browser_id", browserCtx.GetID()).Warn("Unhealthy browser detected, creating new one")
		browserCtx.Close()

		newBrowser, err := s.createBrowser()
		if err != nil {
			s.swap(browserCtx, nil)
			return nil, fmt.Errorf("failed to create new browser: %w", err)
		}
		s.swap(browserCtx, newBrowser)
		return newBrowser, nil

	case <-time.After(10 * time.Second):
		// No browser available, try to create a new one if under limit
		s.mu.Lock()
		if len(s.contexts) < s.config.MaxBrowsers {
			browserCtx, err := s.createBrowser()
			if err != nil {
				s.mu.Unlock()
				return nil, fmt.Errorf("failed to create browser: %w", err)
			}
			s.contexts = append(s.contexts, browserCtx)
			s.mu.Unlock()
			return browserCtx, nil
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("no browser available and pool is at maximum capacity")

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ReleaseBrowser releases a browser context back to the pool
func (s *BrowserService) ReleaseBrowser(browserCtx BrowserContext) error {
	chromeBrowser, ok := browserCtx.(*ChromeBrowserContext)
	if !ok {
		return fmt.Errorf("invalid browser context type")
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		chromeBrowser.Close()
		return nil
	}
	s.mu.RUnlock()

	select {
	case s.pool <- chromeBrowser:
		return nil
	default:
		// Pool is full, close the browser
		chromeBrowser.Close()
		return nil
	}
}

// swap keeps the tracked set in step with the pool when a dead browser
// gets replaced: Close, Restart and GetStats must keep seeing every
// live browser. A nil replacement just drops the dead one.
func (s *BrowserService) swap(dead, fresh *ChromeBrowserContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, ctx := range s.contexts {
		if ctx != dead {
			continue
		}
		if fresh == nil {
			s.contexts = append(s.contexts[:i], s.contexts[i+1:]...)
		} else {
			s.contexts[i] = fresh
		}
		return
	}
	if fresh != nil {
		s.contexts = append(s.contexts, fresh)
	}
}

// createBrowser creates a new browser context
func (s *BrowserService) createBrowser() (*ChromeBrowserContext, error) {
	// Chrome options for headless operation behind government portals
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-features", "TranslateUI"),
		chromedp.Flag("disable-ipc-flooding-protection", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"),
	}

	if s.config.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)

	browserCtx := &ChromeBrowserContext{
		id:       fmt.Sprintf("browser-%d", time.Now().UnixNano()),
		cancel:   func() { ctxCancel(); cancel() },
		chromedp: ctx,
		healthy:  true,
	}

	// Test browser health with a simple navigation
	testCtx, testCancel := context.WithTimeout(ctx, 15*time.Second)
	defer testCancel()

	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCtx.Close()
		return nil, fmt.Errorf("browser health check failed: %w", err)
	}

	s.logger.WithField("browser_id", browserCtx.id).Debug("Browser created successfully")
	return browserCtx, nil
}

// GetStats returns browser pool statistics
func (s *BrowserService) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	healthy := 0
	for _, ctx := range s.contexts {
		if ctx.IsHealthy() {
			healthy++
		}
	}

	return map[string]interface{}{
		"total_browsers":   len(s.contexts),
		"healthy_browsers": healthy,
		"available":        len(s.pool),
		"max_browsers":     s.config.MaxBrowsers,
		"min_browsers":     s.config.MinBrowsers,
	}
}

// Health returns browser service health status
func (s *BrowserService) Health() map[string]interface{} {
	stats := s.GetStats()

	status := "healthy"
	if stats["healthy_browsers"].(int) == 0 {
		status = "unhealthy"
	} else if stats["healthy_browsers"].(int) < s.config.MinBrowsers {
		status = "degraded"
	}

	return map[string]interface{}{
		"status": status,
		"stats":  stats,
	}
}

// Restart restarts the browser pool
func (s *BrowserService) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ctx := range s.contexts {
		ctx.Close()
	}
	for len(s.pool) > 0 {
		if b := <-s.pool; b != nil {
			b.Close()
		}
	}
	s.contexts = s.contexts[:0]

	for i := 0; i < s.config.MinBrowsers; i++ {
		browserCtx, err := s.createBrowser()
		if err != nil {
			s.logger.WithError(err).Error("Failed to create browser during restart")
			continue
		}
		s.contexts = append(s.contexts, browserCtx)
		s.pool <- browserCtx
	}

	s.logger.Info("Browser pool restarted")
	return nil
}

// Close closes all browsers and releases resources
func (s *BrowserService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true

	for _, ctx := range s.contexts {
		ctx.Close()
	}
	for len(s.pool) > 0 {
		if b := <-s.pool; b != nil {
			b.Close()
		}
	}

	close(s.pool)
	s.logger.Info("Browser service closed")
	return nil
}

// run executes chromedp actions against the browser, bounded by the
// caller's context.
func (c *ChromeBrowserContext) run(ctx context.Context, actions ...chromedp.Action) error {
	c.mu.RLock()
	if !c.healthy {
		c.mu.RUnlock()
		return fmt.Errorf("browser context is not healthy")
	}
	browserCtx := c.chromedp
	c.mu.RUnlock()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(browserCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigate navigates to a URL
func (c *ChromeBrowserContext) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

// WaitForSelector waits for an element to become visible
func (c *ChromeBrowserContext) WaitForSelector(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.WaitVisible(selector))
}

// Click clicks on an element
func (c *ChromeBrowserContext) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.Click(selector))
}

// Type types text into an element
func (c *ChromeBrowserContext) Type(ctx context.Context, selector, text string) error {
	return c.run(ctx, chromedp.SendKeys(selector, text))
}

// GetText gets text content from an element
func (c *ChromeBrowserContext) GetText(ctx context.Context, selector string) (string, error) {
	var text string
	err := c.run(ctx, chromedp.Text(selector, &text))
	return text, err
}

// GetHTML gets the full page HTML
func (c *ChromeBrowserContext) GetHTML(ctx context.Context) (string, error) {
	var html string
	err := c.run(ctx, chromedp.OuterHTML("html", &html))
	return html, err
}

// Screenshot captures the visible page
func (c *ChromeBrowserContext) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

// ScreenshotElement captures a single element
func (c *ChromeBrowserContext) ScreenshotElement(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, chromedp.Screenshot(selector, &buf, chromedp.NodeVisible))
	return buf, err
}

// ExecuteScript executes JavaScript
func (c *ChromeBrowserContext) ExecuteScript(ctx context.Context, script string) (interface{}, error) {
	var result interface{}
	err := c.run(ctx, chromedp.Evaluate(script, &result))
	return result, err
}

// SetCookies installs cookies before navigation
func (c *ChromeBrowserContext) SetCookies(ctx context.Context, cookies []Cookie) error {
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, cookie := range cookies {
			param := network.SetCookie(cookie.Name, cookie.Value).
				WithDomain(cookie.Domain).
				WithPath(cookie.Path).
				WithHTTPOnly(cookie.HTTPOnly).
				WithSecure(cookie.Secure)
			if cookie.Expires > 0 {
				expires := cdp.TimeSinceEpoch(time.Unix(cookie.Expires, 0))
				param = param.WithExpires(&expires)
			}
			if err := param.Do(ctx); err != nil {
				return fmt.Errorf("set cookie %s: %w", cookie.Name, err)
			}
		}
		return nil
	}))
}

// GetCookies returns the cookies of the current session
func (c *ChromeBrowserContext) GetCookies(ctx context.Context) ([]Cookie, error) {
	var out []Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, ck := range cookies {
			out = append(out, Cookie{
				Name:     ck.Name,
				Value:    ck.Value,
				Domain:   ck.Domain,
				Path:     ck.Path,
				Expires:  int64(ck.Expires),
				HTTPOnly: ck.HTTPOnly,
				Secure:   ck.Secure,
			})
		}
		return nil
	}))
	return out, err
}

// Close closes the browser context
func (c *ChromeBrowserContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy = false
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// IsHealthy checks if the browser context is healthy
func (c *ChromeBrowserContext) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// GetID returns the browser context ID
func (c *ChromeBrowserContext) GetID() string {
	return c.id
}
