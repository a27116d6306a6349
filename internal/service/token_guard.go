package service

import (
	"context"
	"errors"
	"time"

	"github.com/creeyes/crmprueba/internal/model"
	"github.com/creeyes/crmprueba/internal/repository"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const (
	// tokenMargin is kept in reserve so a token never expires mid-request.
	tokenMargin = 10 * time.Minute
	// refreshBudget bounds a shared refresh: row lock wait plus the OAuth call.
	refreshBudget = 30 * time.Second
)

// TokenGuard hands out a usable CRM access token for a tenant, refreshing it
// when it is about to expire. At most one refresh per tenant runs at a time:
// callers in this process share one flight and other processes serialise on
// the credential row lock.
type TokenGuard interface {
	GetValidToken(ctx context.Context, locationID string) (string, bool)
}

type tokenGuard struct {
	repo    repository.CredentialRepository
	oauth   TokenRefresher
	flights singleflight.Group
	now     func() time.Time
}

func NewTokenGuard(repo repository.CredentialRepository, oauth TokenRefresher) TokenGuard {
	return &tokenGuard{repo: repo, oauth: oauth, now: time.Now}
}

func (g *tokenGuard) GetValidToken(ctx context.Context, locationID string) (string, bool) {
	tok, err := g.repo.FindByLocationID(ctx, locationID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Warn().Str("location_id", locationID).Msg("token_guard: no credential stored for tenant")
		} else {
			log.Error().Err(err).Str("location_id", locationID).Msg("token_guard: failed to read credential")
		}
		return "", false
	}
	if tok.ValidAt(g.now(), tokenMargin) {
		return tok.AccessToken, true
	}

	// The flight is shared by every waiting caller, so it must not die with
	// the request of whichever caller started it.
	v, err, shared := g.flights.Do(locationID, func() (any, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshBudget)
		defer cancel()
		return g.refresh(flightCtx, locationID)
	})
	if err != nil {
		log.Error().Err(err).Str("location_id", locationID).Bool("shared", shared).Msg("token_guard: refresh failed")
		return "", false
	}
	return v.(string), true
}

// refresh re-checks expiry under the row lock, so a refresh committed by
// another process in the meantime is reused instead of repeated.
func (g *tokenGuard) refresh(ctx context.Context, locationID string) (string, error) {
	tok, err := g.repo.UpdateLocked(ctx, locationID, func(t *model.CRMToken) (bool, error) {
		if t.ValidAt(g.now(), tokenMargin) {
			return false, nil
		}
		resp, err := g.oauth.RefreshToken(ctx, t.RefreshToken)
		if err != nil {
			return false, err
		}
		t.AccessToken = resp.AccessToken
		if resp.RefreshToken != "" {
			t.RefreshToken = resp.RefreshToken
		}
		if resp.TokenType != "" {
			t.TokenType = resp.TokenType
		}
		if resp.ExpiresIn > 0 {
			t.ExpiresIn = resp.ExpiresIn
		}
		if resp.Scope != "" {
			t.Scope = resp.Scope
		}
		t.UpdatedAt = g.now()
		log.Info().Str("location_id", locationID).Int("expires_in", t.ExpiresIn).Msg("token_guard: token refreshed")
		return true, nil
	})
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}
