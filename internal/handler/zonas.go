package handler

import (
	"errors"
	"net/http"

	"github.com/creeyes/crmprueba/internal/apierror"
	"github.com/creeyes/crmprueba/internal/dto"
	"github.com/creeyes/crmprueba/internal/service"

	"github.com/gin-gonic/gin"
)

const msgFaltanDatosZona = "Faltan datos obligatorios. Debes indicar Zona, Municipio y Provincia."

type ZonasHandler struct{ svc service.ZonaService }

func NewZonasHandler(svc service.ZonaService) *ZonasHandler {
	return &ZonasHandler{svc: svc}
}

// Arbol GET /api/zonas
//
//	@Summary	Catálogo de zonas agrupado por provincia y municipio
//	@Tags		zonas
//	@Produce	json
//	@Success	200	{object}	dto.ZonaArbolResponse
//	@Router		/api/zonas [get]
func (h *ZonasHandler) Arbol(c *gin.Context) {
	resp, err := h.svc.Arbol(c.Request.Context())
	if err != nil {
		writeServiceError(c, "zonas_arbol", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Registrar POST /api/zonas
//
//	@Summary	Registra provincia, municipio y zona (idempotente)
//	@Tags		zonas
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		dto.RegistrarZonaRequest	true	"Zona"
//	@Success	201		{object}	dto.RegistrarZonaResponse
//	@Success	200		{object}	dto.RegistrarZonaResponse
//	@Failure	400		{object}	apierror.APIError
//	@Router		/api/zonas [post]
func (h *ZonasHandler) Registrar(c *gin.Context) {
	var req dto.RegistrarZonaRequest
	if !bindAndValidate(c, &req, msgFaltanDatosZona) {
		return
	}
	resp, err := h.svc.Registrar(c.Request.Context(), req)
	if errors.Is(err, service.ErrMissingField) {
		c.JSON(http.StatusBadRequest, apierror.New(msgFaltanDatosZona))
		return
	}
	if err != nil {
		writeServiceError(c, "zonas_registrar", err)
		return
	}
	status := http.StatusOK
	if resp.Status == service.ZonaStatusCreated {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}
