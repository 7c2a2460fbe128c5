package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/civicdata/consulta-api/internal/api/handlers"
	"github.com/civicdata/consulta-api/internal/api/middleware"
	"github.com/civicdata/consulta-api/internal/config"
	"github.com/civicdata/consulta-api/internal/scraper"
	"github.com/civicdata/consulta-api/internal/services"
)

// Server represents the HTTP server
type Server struct {
	Router   *gin.Engine
	config   *config.Config
	logger   *logrus.Logger
	services *services.Container
	sources  map[string]*scraper.Source
	executor *scraper.Executor
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, logger *logrus.Logger, container *services.Container, sources map[string]*scraper.Source, executor *scraper.Executor) *Server {
	server := &Server{
		config:   cfg,
		logger:   logger,
		services: container,
		sources:  sources,
		executor: executor,
	}

	server.setupRouter()
	return server
}

// setupRouter configures the router with all routes and middleware
func (s *Server) setupRouter() {
	// Create Gin router
	s.Router = gin.New()

	// Global middleware
	s.Router.Use(middleware.Logger(s.logger))
	s.Router.Use(middleware.Recovery(s.logger))
	s.Router.Use(middleware.CORS(s.config.Security.CORS))
	s.Router.Use(middleware.Security())
	s.Router.Use(middleware.RequestID())

	// Rate limiting middleware
	rateLimiter := middleware.NewRateLimiter(s.config.Security.RateLimit)
	s.Router.Use(rateLimiter.Middleware())

	// Health check endpoints (no rate limiting)
	healthHandler := handlers.NewHealthHandler(s.services, s.logger)
	s.Router.GET("/health", healthHandler.GetHealth)
	s.Router.GET("/health/ready", healthHandler.GetReadiness)
	s.Router.GET("/health/live", healthHandler.GetLiveness)

	// API v1 routes
	v1 := s.Router.Group("/api/v1")
	{
		// Consultation routes, one per source
		consultaHandler := handlers.NewConsultaHandler(s.sources, s.executor, s.services.CacheService, s.logger)
		consultas := v1.Group("/consultas")
		{
			consultas.POST("/citaciones-judiciales", consultaHandler.ByCedula("citaciones-judiciales"))
			consultas.POST("/pension-alimenticia", consultaHandler.ByCedula("pension-alimenticia"))
			consultas.POST("/citaciones-ant", consultaHandler.ByCedula("citaciones-ant"))
			consultas.POST("/procesos-judiciales", consultaHandler.ByCedula("procesos-judiciales"))
			consultas.POST("/datos-iess", consultaHandler.ByCedula("datos-iess"))
			consultas.POST("/antecedentes-penales", consultaHandler.ByCedula("antecedentes-penales"))
			consultas.POST("/sri-deudas", consultaHandler.ByRUC("sri-deudas"))
			consultas.POST("/supercias-empresas", consultaHandler.ByIdentity("supercias-empresas"))
			consultas.POST("/interpol", consultaHandler.ByName("interpol"))
		}

		// Error log routes
		errorHandler := handlers.NewErrorLogHandler(s.services.Store, s.logger)
		errores := v1.Group("/errores")
		{
			errores.GET("", errorHandler.GetAll)
			errores.GET("/cedula/:cedula", errorHandler.GetByCedula)
			errores.GET("/servicio/:servicio", errorHandler.GetByService)
			errores.GET("/tipo/:tipo", errorHandler.GetByKind)
			errores.GET("/stats", errorHandler.GetStats)
			errores.DELETE("", errorHandler.Clean)
		}

		// Stored collections overview
		v1.GET("/colecciones", healthHandler.GetCollections)

		// Cache management routes
		cacheHandler := handlers.NewCacheHandler(s.services.CacheService, s.logger)
		cache := v1.Group("/cache")
		{
			cache.GET("/stats", cacheHandler.GetStats)
			cache.DELETE("/clear", cacheHandler.Clear)
			cache.DELETE("/:key", cacheHandler.Delete)
		}

		// Browser pool management routes
		browserHandler := handlers.NewBrowserHandler(s.services.BrowserService, s.logger)
		browser := v1.Group("/browser")
		{
			browser.GET("/stats", browserHandler.GetStats)
			browser.GET("/health", browserHandler.GetHealth)
			browser.POST("/restart", browserHandler.Restart)
		}
	}

	// 404 handler
	s.Router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not Found",
			"message":   "The requested resource was not found",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
		})
	})

	// 405 handler
	s.Router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":     "Method Not Allowed",
			"message":   "The requested method is not allowed for this resource",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
			"method":    c.Request.Method,
		})
	})
}
