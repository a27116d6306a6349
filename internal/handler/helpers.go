package handler

import (
	"errors"
	"net/http"

	"github.com/creeyes/crmprueba/internal/apierror"
	"github.com/creeyes/crmprueba/internal/middleware"
	"github.com/creeyes/crmprueba/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

// bindAndValidate binds the JSON body and runs go-playground/validator tags.
// On failure it writes a 400 with msg and returns false; the caller returns
// without writing another response.
func bindAndValidate(c *gin.Context, req any, msg string) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			c.JSON(http.StatusBadRequest, apierror.Validation(msg, fields))
			return false
		}
		c.JSON(http.StatusBadRequest, apierror.New(msg))
		return false
	}
	return true
}

// writeServiceError maps service sentinels to status codes. Anything else is
// logged and answered with a generic 500.
func writeServiceError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrMissingField):
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	case errors.Is(err, service.ErrTenantNotFound):
		c.JSON(http.StatusNotFound, apierror.New(err.Error()))
	default:
		log.Error().Err(err).
			Str("request_id", middleware.GetRequestID(c)).
			Str("op", op).
			Msg("handler: unexpected error")
		c.JSON(http.StatusInternalServerError, apierror.Internal())
	}
}
