package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/store"
)

// ErrorLogHandler exposes the persistent error log.
type ErrorLogHandler struct {
	store  *store.Store
	logger *logrus.Logger
}

// NewErrorLogHandler creates a new error log handler.
func NewErrorLogHandler(st *store.Store, logger *logrus.Logger) *ErrorLogHandler {
	return &ErrorLogHandler{store: st, logger: logger}
}

// GetAll returns the most recent error log entries.
func (h *ErrorLogHandler) GetAll(c *gin.Context) {
	h.list(c, store.ErrorFilter{Limit: limitParam(c)})
}

// GetByCedula returns error log entries for one identity.
func (h *ErrorLogHandler) GetByCedula(c *gin.Context) {
	h.list(c, store.ErrorFilter{
		Identity: c.Param("cedula"),
		Limit:    limitParam(c),
	})
}

// GetByService returns error log entries for one source.
func (h *ErrorLogHandler) GetByService(c *gin.Context) {
	h.list(c, store.ErrorFilter{
		Service: c.Param("servicio"),
		Limit:   limitParam(c),
	})
}

// GetByKind returns error log entries of one error kind.
func (h *ErrorLogHandler) GetByKind(c *gin.Context) {
	h.list(c, store.ErrorFilter{
		Kind:  c.Param("tipo"),
		Limit: limitParam(c),
	})
}

// GetStats returns aggregate error counts.
func (h *ErrorLogHandler) GetStats(c *gin.Context) {
	stats, err := h.store.ErrorStats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to aggregate error log")
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("error al consultar el registro de errores"))
		return
	}
	c.JSON(http.StatusOK, models.NewSuccessResponse(stats, ""))
}

// Clean deletes entries older than the given number of days (30 by
// default).
func (h *ErrorLogHandler) Clean(c *gin.Context) {
	days := 30
	if raw := c.Query("dias"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("el parámetro dias debe ser un entero positivo"))
			return
		}
		days = parsed
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	removed, err := h.store.PurgeErrorsBefore(c.Request.Context(), cutoff)
	if err != nil {
		h.logger.WithError(err).Error("Failed to purge error log")
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("error al limpiar el registro de errores"))
		return
	}

	h.logger.WithFields(logrus.Fields{
		"removed": removed,
		"days":    days,
	}).Info("Error log purged")
	c.JSON(http.StatusOK, models.NewSuccessResponse(
		map[string]interface{}{"eliminados": removed},
		fmt.Sprintf("%d registros eliminados", removed)))
}

func (h *ErrorLogHandler) list(c *gin.Context, filter store.ErrorFilter) {
	entries, err := h.store.ListErrors(c.Request.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list error log")
		c.JSON(http.StatusInternalServerError, models.NewErrorResponse("error al consultar el registro de errores"))
		return
	}
	if entries == nil {
		entries = []models.ErrorLogEntry{}
	}
	c.JSON(http.StatusOK, models.NewSuccessResponse(entries, ""))
}

func limitParam(c *gin.Context) int {
	if raw := c.Query("limite"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 100
}
