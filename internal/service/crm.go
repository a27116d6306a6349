package service

import (
	"context"

	"github.com/creeyes/crmprueba/internal/infra"
)

// CRMGateway is the part of *infra.CRMClient the services call.
type CRMGateway interface {
	CreateContact(ctx context.Context, token, locationID string, in infra.ContactInput) (string, error)
	UpdateContact(ctx context.Context, token, contactID string, in infra.ContactInput) error
	CreateRecord(ctx context.Context, token, locationID, objectKey string, properties map[string]any) (string, error)
	UpdateRecord(ctx context.Context, token, locationID, objectKey, recordID string, properties map[string]any) error
	UpdateObjectFieldOptions(ctx context.Context, token, locationID, fieldID string, options []infra.FieldOption) error
	UpdateContactFieldOptions(ctx context.Context, token, locationID, fieldID string, options []string) error
	FindAssociationTypeID(ctx context.Context, token, locationID, target string) (string, error)
}

// TokenRefresher exchanges a refresh token for a new credential.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*infra.TokenResponse, error)
}

// TaskRunner runs fire-and-forget work off the request goroutine.
// *worker.Pool satisfies it.
type TaskRunner interface {
	Submit(name string, task func(ctx context.Context) error, onDone func(error)) error
}
