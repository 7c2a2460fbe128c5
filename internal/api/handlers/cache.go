package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/services"
)

// CacheHandler exposes cache administration endpoints.
type CacheHandler struct {
	cache  services.CacheServiceInterface
	logger *logrus.Logger
}

// NewCacheHandler creates a new cache handler.
func NewCacheHandler(cache services.CacheServiceInterface, logger *logrus.Logger) *CacheHandler {
	return &CacheHandler{cache: cache, logger: logger}
}

// GetStats returns cache statistics.
func (h *CacheHandler) GetStats(c *gin.Context) {
	stats, err := h.cache.GetStats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read cache stats")
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("error al consultar la caché"))
		return
	}
	c.JSON(http.StatusOK, models.NewSuccessResponse(stats, ""))
}

// Clear flushes the whole cache.
func (h *CacheHandler) Clear(c *gin.Context) {
	if err := h.cache.Clear(c.Request.Context()); err != nil {
		h.logger.WithError(err).Error("Failed to clear cache")
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("error al limpiar la caché"))
		return
	}
	c.JSON(http.StatusOK, models.NewSuccessResponse(nil, "caché limpiada"))
}

// Delete evicts one cache key.
func (h *CacheHandler) Delete(c *gin.Context) {
	key := c.Param("key")
	if err := h.cache.Delete(c.Request.Context(), key); err != nil {
		h.logger.WithError(err).Error("Failed to delete cache key")
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("error al eliminar la clave"))
		return
	}
	c.JSON(http.StatusOK, models.NewSuccessResponse(nil, "clave eliminada"))
}
