package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/civicdata/consulta-api/internal/config"
	"github.com/civicdata/consulta-api/internal/ocr"
	"github.com/civicdata/consulta-api/internal/store"
)

// Container holds all service dependencies
type Container struct {
	config      *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client

	CacheService   CacheServiceInterface
	BrowserService BrowserServiceInterface
	Store          *store.Store
	OCR            *ocr.Client
	HTTPClient     *http.Client
}

// NewContainer creates a new service container
func NewContainer(cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	container := &Container{
		config: cfg,
		logger: logger,
	}

	// Initialize Redis client
	if err := container.initRedis(); err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	// Initialize services
	if err := container.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return container, nil
}

// initRedis initializes Redis client
func (c *Container) initRedis() error {
	c.redisClient = redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", c.config.Redis.Host, c.config.Redis.Port),
		Password:     c.config.Redis.Password,
		DB:           c.config.Redis.DB,
		PoolSize:     c.config.Redis.PoolSize,
		DialTimeout:  c.config.Redis.DialTimeout,
		ReadTimeout:  c.config.Redis.ReadTimeout,
		WriteTimeout: c.config.Redis.WriteTimeout,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := c.redisClient.Ping(ctx).Err(); err != nil {
		c.logger.Warn("Redis connection failed, running without cache")
		c.redisClient = nil
	} else {
		c.logger.Info("Redis connection established")
	}

	return nil
}

// initServices initializes all services
func (c *Container) initServices() error {
	// Initialize Cache Service
	c.CacheService = NewCacheService(c.redisClient, c.config.Scraper.CacheTTL, c.logger)

	// Initialize Browser Service
	browserService, err := NewBrowserService(c.config.Browser, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize browser service: %w", err)
	}
	c.BrowserService = browserService

	// Initialize document store
	st, err := store.Open(c.config.Database.Path, c.logger)
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	c.Store = st

	// Initialize OCR client
	c.OCR = ocr.NewClient(c.config.OCR.ServiceURL, c.config.OCR.Languages, c.config.OCR.Timeout, c.logger)

	// Shared HTTP client with a cookie jar; portal sessions live in
	// cookies negotiated per consultation.
	jar, err := cookiejar.New(nil)
	if err != nil {
		return fmt.Errorf("failed to build cookie jar: %w", err)
	}
	c.HTTPClient = &http.Client{
		Timeout: c.config.Scraper.HTTPTimeout,
		Jar:     jar,
	}

	return nil
}

// Close closes all service connections
func (c *Container) Close() error {
	var errs []error

	// Close Redis connection
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Redis: %w", err))
		}
	}

	// Close Browser Service
	if c.BrowserService != nil {
		if err := c.BrowserService.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser service: %w", err))
		}
	}

	// Close document store
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close document store: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// Health checks the health of all services
func (c *Container) Health() map[string]interface{} {
	health := make(map[string]interface{})

	if c.redisClient != nil {
		ctx := context.Background()
		if err := c.redisClient.Ping(ctx).Err(); err != nil {
			health["redis"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		} else {
			health["redis"] = map[string]interface{}{"status": "healthy"}
		}
	} else {
		health["redis"] = map[string]interface{}{"status": "disabled"}
	}

	if c.CacheService != nil {
		health["cache"] = c.CacheService.Health()
	}
	if c.BrowserService != nil {
		health["browser"] = c.BrowserService.Health()
	}
	if c.Store != nil {
		health["store"] = c.Store.Health()
	}

	return health
}
