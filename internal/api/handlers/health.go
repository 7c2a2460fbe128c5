package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/services"
)

// HealthHandler reports service health.
type HealthHandler struct {
	services *services.Container
	logger   *logrus.Logger
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(container *services.Container, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{services: container, logger: logger}
}

// GetHealth returns the aggregate health of every service.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	health := h.services.Health()
	health["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	c.JSON(http.StatusOK, models.NewSuccessResponse(health, ""))
}

// GetReadiness reports whether the service can take traffic.
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	if h.services.Store == nil {
		c.JSON(http.StatusServiceUnavailable, models.NewErrorResponse("document store not ready"))
		return
	}
	c.JSON(http.StatusOK, models.NewSuccessResponse(map[string]string{"status": "ready"}, ""))
}

// GetLiveness reports whether the process is alive.
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, models.NewSuccessResponse(map[string]string{"status": "alive"}, ""))
}

// GetCollections returns the stored collections with their document
// counts.
func (h *HealthHandler) GetCollections(c *gin.Context) {
	collections, err := h.services.Store.Collections(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to count collections")
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("error al consultar las colecciones"))
		return
	}
	c.JSON(http.StatusOK, models.NewSuccessResponse(collections, ""))
}
