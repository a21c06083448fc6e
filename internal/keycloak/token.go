package keycloak

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/rs/zerolog"

	"github.com/gravitate-health/user-orchestrator/internal/platform/httpx"
	"github.com/gravitate-health/user-orchestrator/internal/upstream"
)

// TokenProvider holds the process-wide service credential obtained by
// authenticating as the fixed service principal. The credential's expiry is
// enforced remotely, not tracked here: any elevated call may come back 401 at
// any time, at which point the caller refreshes and retries once.
//
// Concurrent requests share one cache. An overwrite racing with an in-flight
// call is harmless: a stale credential surfaces as another retryable 401,
// never as corruption.
type TokenProvider struct {
	http     httpx.Client
	realm    string
	clientID string
	username string
	password string
	logger   zerolog.Logger

	mu    sync.RWMutex
	token string
}

// NewTokenProvider builds a provider against the identity provider's
// password-grant token endpoint.
func NewTokenProvider(cfg Config, logger zerolog.Logger) *TokenProvider {
	return &TokenProvider{
		http:     httpx.New(cfg.BaseURL, cfg.Timeout),
		realm:    cfg.Realm,
		clientID: cfg.ClientID,
		username: cfg.Username,
		password: cfg.Password,
		logger:   logger.With().Str("component", "token_provider").Logger(),
	}
}

// Token returns the cached credential, obtaining one on first use.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()
	if token != "" {
		return token, nil
	}
	return p.Refresh(ctx)
}

// Refresh always re-authenticates the service principal and overwrites the
// cached credential on success.
func (p *TokenProvider) Refresh(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":  {p.clientID},
		"grant_type": {"password"},
		"username":   {p.username},
		"password":   {p.password},
	}

	resp, err := p.http.Do(ctx, httpx.Request{
		Method: http.MethodPost,
		Path:   "/auth/realms/" + p.realm + "/protocol/openid-connect/token",
		Form:   form,
	})
	if err != nil {
		return "", upstream.Wrap(upstream.KindAuth, backend, "identity provider unreachable", err)
	}
	if !resp.OK() {
		p.logger.Error().Int("status", resp.Status).Msg("service principal rejected")
		return "", upstream.New(upstream.KindAuth, backend, "service principal token exchange rejected")
	}

	var body struct {
		AccessToken string `json:"access_token"`
	}
	if err := resp.Decode(&body); err != nil || body.AccessToken == "" {
		return "", upstream.New(upstream.KindAuth, backend, "token response missing access_token")
	}

	p.mu.Lock()
	p.token = body.AccessToken
	p.mu.Unlock()

	p.logger.Debug().Msg("service credential refreshed")
	return body.AccessToken, nil
}
