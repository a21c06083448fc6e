// Package keycloak is the client for the identity provider: CRUD on the user
// resource, account-action emails, and the service-principal token exchange.
package keycloak

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gravitate-health/user-orchestrator/internal/platform/httpx"
	"github.com/gravitate-health/user-orchestrator/internal/upstream"
)

const backend = "keycloak"

// Config carries everything needed to reach the identity provider.
type Config struct {
	BaseURL  string
	Realm    string
	ClientID string
	Username string // service principal
	Password string
	Timeout  time.Duration
}

// Client talks to the identity provider's admin user API with the service
// credential. It is stateless apart from the shared TokenProvider.
type Client struct {
	http      httpx.Client
	tokens    *TokenProvider
	usersPath string
	logger    zerolog.Logger
}

// New builds a Client sharing the given TokenProvider.
func New(cfg Config, tokens *TokenProvider, logger zerolog.Logger) *Client {
	return &Client{
		http:      httpx.New(cfg.BaseURL, cfg.Timeout),
		tokens:    tokens,
		usersPath: "/auth/admin/realms/" + cfg.Realm + "/users",
		logger:    logger.With().Str("component", "keycloak_client").Logger(),
	}
}

// do performs an elevated call. A 401 triggers one credential refresh and one
// retry; a second 401 is returned as an auth failure.
func (c *Client) do(ctx context.Context, req httpx.Request) (*httpx.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Token = token

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, upstream.Wrap(upstream.KindUpstream, backend, "identity provider unreachable", err)
	}
	if resp.Status != http.StatusUnauthorized {
		return resp, nil
	}

	token, err = c.tokens.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	req.Token = token
	resp, err = c.http.Do(ctx, req)
	if err != nil {
		return nil, upstream.Wrap(upstream.KindUpstream, backend, "identity provider unreachable", err)
	}
	if resp.Status == http.StatusUnauthorized {
		return nil, upstream.New(upstream.KindAuth, backend, "service credential rejected after refresh")
	}
	return resp, nil
}

// CreateUser submits a normalized creation payload and returns the id the
// provider assigned, parsed from the Location response header.
func (c *Client) CreateUser(ctx context.Context, user NewUser) (string, error) {
	resp, err := c.do(ctx, httpx.Request{
		Method: http.MethodPost,
		Path:   c.usersPath,
		Body:   user,
	})
	if err != nil {
		return "", err
	}

	switch {
	case resp.OK():
	case resp.Status == http.StatusConflict:
		return "", upstream.FromStatus(backend, resp.Status, "identity with this email already exists")
	case resp.Status == http.StatusBadRequest || resp.Status == http.StatusUnprocessableEntity:
		return "", upstream.FromStatus(backend, resp.Status, string(resp.Body))
	default:
		return "", upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return "", upstream.New(upstream.KindUpstream, backend, "user created but Location header missing")
	}
	parts := strings.Split(strings.TrimRight(location, "/"), "/")
	id := parts[len(parts)-1]

	c.logger.Info().Str("user_id", id).Msg("identity created")
	return id, nil
}

// GetUser fetches one identity by id.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	resp, err := c.do(ctx, httpx.Request{
		Method: http.MethodGet,
		Path:   c.usersPath + "/" + id,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, upstream.New(upstream.KindNotFound, backend, "no identity with id "+id)
	}
	if !resp.OK() {
		return nil, upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}

	var user User
	if err := resp.Decode(&user); err != nil {
		return nil, upstream.Wrap(upstream.KindUpstream, backend, "malformed user payload", err)
	}
	return &user, nil
}

// ListUsers returns every identity in the realm. The provider offers no
// indexed lookup we can rely on, so email resolution scans this list.
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	resp, err := c.do(ctx, httpx.Request{
		Method: http.MethodGet,
		Path:   c.usersPath,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}

	var users []User
	if err := resp.Decode(&users); err != nil {
		return nil, upstream.Wrap(upstream.KindUpstream, backend, "malformed user list", err)
	}
	return users, nil
}

// GetUserByEmail resolves an email to an identity by scanning the realm's
// users. Absence is not an error: it returns (nil, nil) so callers can avoid
// leaking account existence through error paths.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	users, err := c.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].Email == email {
			return &users[i], nil
		}
	}
	return nil, nil
}

// DeleteUser removes an identity. A missing identity counts as already gone,
// which is what compensation paths need.
func (c *Client) DeleteUser(ctx context.Context, id string) (upstream.DeleteOutcome, error) {
	resp, err := c.do(ctx, httpx.Request{
		Method: http.MethodDelete,
		Path:   c.usersPath + "/" + id,
	})
	if err != nil {
		return upstream.DeleteFailed, err
	}
	switch {
	case resp.OK():
		c.logger.Info().Str("user_id", id).Msg("identity deleted")
		return upstream.Deleted, nil
	case resp.Status == http.StatusNotFound:
		return upstream.AlreadyAbsent, nil
	default:
		return upstream.DeleteFailed, upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}
}

// SendVerificationEmail triggers the VERIFY_EMAIL action unless the account's
// email is already verified, in which case it reports false and performs no
// side-effecting call.
func (c *Client) SendVerificationEmail(ctx context.Context, id string) (bool, error) {
	user, err := c.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	if user.EmailVerified {
		return false, nil
	}
	if err := c.executeActionsEmail(ctx, id, actionVerifyEmail); err != nil {
		return false, err
	}
	c.logger.Info().Str("user_id", id).Msg("verification email sent")
	return true, nil
}

// ResetPassword triggers the UPDATE_PASSWORD action for the account owning
// the given email. An unknown email reports false rather than erroring.
func (c *Client) ResetPassword(ctx context.Context, email string) (bool, error) {
	user, err := c.GetUserByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if user == nil {
		c.logger.Warn().Msg("password reset requested for unknown email")
		return false, nil
	}
	if err := c.executeActionsEmail(ctx, user.ID, actionUpdatePassword); err != nil {
		return false, err
	}
	c.logger.Info().Str("user_id", user.ID).Msg("password reset email sent")
	return true, nil
}

func (c *Client) executeActionsEmail(ctx context.Context, id string, actions ...string) error {
	resp, err := c.do(ctx, httpx.Request{
		Method: http.MethodPut,
		Path:   c.usersPath + "/" + id + "/execute-actions-email",
		Body:   actions,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}
	return nil
}
