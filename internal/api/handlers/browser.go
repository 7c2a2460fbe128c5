package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/services"
)

// BrowserHandler exposes browser pool administration endpoints.
type BrowserHandler struct {
	browser services.BrowserServiceInterface
	logger  *logrus.Logger
}

// NewBrowserHandler creates a new browser handler.
func NewBrowserHandler(browser services.BrowserServiceInterface, logger *logrus.Logger) *BrowserHandler {
	return &BrowserHandler{browser: browser, logger: logger}
}

// GetStats returns browser pool statistics.
func (h *BrowserHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, models.NewSuccessResponse(h.browser.GetStats(), ""))
}

// GetHealth returns browser pool health.
func (h *BrowserHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, models.NewSuccessResponse(h.browser.Health(), ""))
}

// Restart recreates the browser pool.
func (h *BrowserHandler) Restart(c *gin.Context) {
	if err := h.browser.Restart(); err != nil {
		h.logger.WithError(err).Error("Failed to restart browser pool")
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("error al reiniciar el pool de navegadores"))
		return
	}
	c.JSON(http.StatusOK, models.NewSuccessResponse(nil, "pool de navegadores reiniciado"))
}
