package handler

import (
	"net/http"

	"github.com/creeyes/crmprueba/internal/apierror"
	"github.com/creeyes/crmprueba/internal/dto"
	"github.com/creeyes/crmprueba/internal/service"

	"github.com/gin-gonic/gin"
)

const msgJSONInvalido = "JSON invalido"

type WebhooksHandler struct {
	webhooks  service.WebhookService
	deletions service.DeletionService
}

func NewWebhooksHandler(webhooks service.WebhookService, deletions service.DeletionService) *WebhooksHandler {
	return &WebhooksHandler{webhooks: webhooks, deletions: deletions}
}

// Propiedad POST /api/webhooks/propiedad
//
//	@Summary	Alta o modificación de una propiedad desde el CRM
//	@Tags		webhooks
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		dto.WebhookPayload	true	"Webhook del CRM"
//	@Success	200		{object}	dto.WebhookResponse
//	@Failure	400		{object}	apierror.APIError
//	@Failure	404		{object}	apierror.APIError
//	@Router		/api/webhooks/propiedad [post]
func (h *WebhooksHandler) Propiedad(c *gin.Context) {
	var in dto.WebhookPayload
	if !bindPayload(c, &in) {
		return
	}
	resp, err := h.webhooks.Propiedad(c.Request.Context(), in)
	if err != nil {
		writeServiceError(c, "webhook_propiedad", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cliente POST /api/webhooks/cliente
//
//	@Summary	Alta o modificación de un lead desde el CRM
//	@Tags		webhooks
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		dto.WebhookPayload	true	"Webhook del CRM"
//	@Success	200		{object}	dto.WebhookResponse
//	@Failure	400		{object}	apierror.APIError
//	@Failure	404		{object}	apierror.APIError
//	@Router		/api/webhooks/cliente [post]
func (h *WebhooksHandler) Cliente(c *gin.Context) {
	var in dto.WebhookPayload
	if !bindPayload(c, &in) {
		return
	}
	resp, err := h.webhooks.Cliente(c.Request.Context(), in)
	if err != nil {
		writeServiceError(c, "webhook_cliente", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Delete POST /api/webhooks/delete
//
//	@Summary	Borrado de un lead o una propiedad en el CRM
//	@Tags		webhooks
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		dto.WebhookPayload	true	"Evento ContactDelete o RecordDelete"
//	@Success	200		{object}	dto.DeleteResponse
//	@Failure	400		{object}	apierror.APIError
//	@Router		/api/webhooks/delete [post]
func (h *WebhooksHandler) Delete(c *gin.Context) {
	var in dto.WebhookPayload
	if !bindPayload(c, &in) {
		return
	}
	resp, err := h.deletions.Handle(c.Request.Context(), in)
	if err != nil {
		writeServiceError(c, "webhook_delete", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func bindPayload(c *gin.Context, in *dto.WebhookPayload) bool {
	if err := c.ShouldBindJSON(in); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(msgJSONInvalido))
		return false
	}
	return true
}
