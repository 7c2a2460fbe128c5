package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/civicdata/consulta-api/internal/models"
	"github.com/civicdata/consulta-api/internal/scraper"
	"github.com/civicdata/consulta-api/internal/services"
	"github.com/civicdata/consulta-api/internal/utils"
)

// ConsultaHandler runs consultations against the registered sources.
type ConsultaHandler struct {
	sources  map[string]*scraper.Source
	executor *scraper.Executor
	cache    services.CacheServiceInterface
	logger   *logrus.Logger
}

// NewConsultaHandler creates a new consultation handler.
func NewConsultaHandler(sources map[string]*scraper.Source, executor *scraper.Executor, cache services.CacheServiceInterface, logger *logrus.Logger) *ConsultaHandler {
	return &ConsultaHandler{
		sources:  sources,
		executor: executor,
		cache:    cache,
		logger:   logger,
	}
}

// ByCedula returns a handler that consults one source by cédula.
func (h *ConsultaHandler) ByCedula(sourceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ConsultaRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("el campo cedula es requerido"))
			return
		}

		cedula := utils.CleanIdentity(req.Cedula)
		if !utils.IsValidCedula(cedula) {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("cédula inválida"))
			return
		}

		h.consult(c, sourceName, cedula)
	}
}

// ByIdentity returns a handler that accepts either a cédula or a RUC.
func (h *ConsultaHandler) ByIdentity(sourceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ConsultaRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("el campo cedula es requerido"))
			return
		}

		identity := utils.CleanIdentity(req.Cedula)
		if !utils.IsValidIdentity(identity) {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("identificación inválida"))
			return
		}

		h.consult(c, sourceName, identity)
	}
}

// ByRUC returns a handler that consults one source by RUC.
func (h *ConsultaHandler) ByRUC(sourceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RUCRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("el campo ruc es requerido"))
			return
		}

		ruc := utils.CleanIdentity(req.RUC)
		if !utils.IsValidRUC(ruc) {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("RUC inválido"))
			return
		}

		h.consult(c, sourceName, ruc)
	}
}

// ByName returns a handler that consults one source by full name. The
// two halves travel as one composite identity.
func (h *ConsultaHandler) ByName(sourceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.NameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("los campos nombre y apellido son requeridos"))
			return
		}

		nombre := strings.TrimSpace(req.Nombre)
		apellido := strings.TrimSpace(req.Apellido)
		if nombre == "" || apellido == "" {
			c.JSON(http.StatusBadRequest, models.NewErrorResponse("los campos nombre y apellido son requeridos"))
			return
		}

		h.consult(c, sourceName, nombre+"|"+apellido)
	}
}

func (h *ConsultaHandler) consult(c *gin.Context, sourceName, identity string) {
	src, ok := h.sources[sourceName]
	if !ok {
		c.JSON(http.StatusNotFound, models.NewErrorResponse("fuente no disponible"))
		return
	}

	cacheKey := fmt.Sprintf("consulta:%s:%s", sourceName, identity)
	if cached, err := h.cache.Get(c.Request.Context(), cacheKey); err == nil {
		var result models.Result
		if err := json.Unmarshal([]byte(cached), &result); err == nil {
			h.logger.WithFields(logrus.Fields{
				"source":   sourceName,
				"identity": identity,
			}).Debug("Consultation served from cache")
			c.JSON(http.StatusOK, models.NewSuccessResponse(result, result.Message))
			return
		}
	}

	result := h.executor.Execute(c.Request.Context(), src, identity)

	switch result.Outcome {
	case models.OutcomeError:
		c.JSON(http.StatusInternalServerError, models.APIResponse{
			Success: false,
			Data:    result,
			Message: result.Message,
		})
		return
	case models.OutcomeSuccess, models.OutcomeNotFound:
		// Blocked outcomes are never cached; the challenge may clear at
		// any moment.
		if payload, err := json.Marshal(result); err == nil {
			if err := h.cache.Set(c.Request.Context(), cacheKey, string(payload)); err != nil {
				h.logger.WithError(err).Warn("Failed to cache consultation result")
			}
		}
	}

	c.JSON(http.StatusOK, models.NewSuccessResponse(result, result.Message))
}
