package service

import "errors"

var (
	// ErrTenantNotFound means the payload names a location with no Agencia row.
	ErrTenantNotFound = errors.New("agencia no encontrada")
	// ErrMissingField is wrapped with the name of the missing payload field.
	ErrMissingField = errors.New("falta un campo obligatorio")
)
