// Package profile is the client for the personalization-profile service. A
// profile is keyed by the identity id; it never exists without a matching
// identity, though the reverse is allowed mid-saga.
package profile

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gravitate-health/user-orchestrator/internal/platform/httpx"
	"github.com/gravitate-health/user-orchestrator/internal/upstream"
)

const backend = "profile"

// Profile is an open attribute bag: the service owns the schema, this
// orchestrator only guarantees the id join key is present and the
// identity-sensitive fields are not.
type Profile map[string]any

// ID returns the profile's join key, empty when unset.
func (p Profile) ID() string {
	id, _ := p["id"].(string)
	return id
}

// Client performs CRUD against the profile service.
type Client struct {
	http   httpx.Client
	tokens TokenSource
	logger zerolog.Logger
}

// TokenSource supplies the service credential attached to every call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// New builds a Client for the profile collection at baseURL.
func New(baseURL string, timeout time.Duration, tokens TokenSource, logger zerolog.Logger) *Client {
	return &Client{
		http:   httpx.New(baseURL, timeout),
		tokens: tokens,
		logger: logger.With().Str("component", "profile_client").Logger(),
	}
}

func (c *Client) do(ctx context.Context, req httpx.Request) (*httpx.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Token = token

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, upstream.Wrap(upstream.KindUpstream, backend, "profile service unreachable", err)
	}
	return resp, nil
}

// Create posts a new profile. No local idempotency: retrying after a
// transient failure may conflict remotely.
func (c *Client) Create(ctx context.Context, p Profile) error {
	resp, err := c.do(ctx, httpx.Request{Method: http.MethodPost, Path: "", Body: p})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}
	c.logger.Info().Str("profile_id", p.ID()).Msg("profile created")
	return nil
}

// Get fetches the profile for an identity id.
func (c *Client) Get(ctx context.Context, id string) (Profile, error) {
	resp, err := c.do(ctx, httpx.Request{Method: http.MethodGet, Path: "/" + id})
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, upstream.New(upstream.KindNotFound, backend, "no profile with id "+id)
	}
	if !resp.OK() {
		return nil, upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}

	var p Profile
	if err := resp.Decode(&p); err != nil {
		return nil, upstream.Wrap(upstream.KindUpstream, backend, "malformed profile payload", err)
	}
	return p, nil
}

// Patch applies a partial update to the profile with the given id.
func (c *Client) Patch(ctx context.Context, id string, patch Profile) error {
	resp, err := c.do(ctx, httpx.Request{Method: http.MethodPatch, Path: "/" + id, Body: patch})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}
	c.logger.Info().Str("profile_id", id).Msg("profile patched")
	return nil
}

// Delete removes the profile; a missing profile counts as already gone.
func (c *Client) Delete(ctx context.Context, id string) (upstream.DeleteOutcome, error) {
	resp, err := c.do(ctx, httpx.Request{Method: http.MethodDelete, Path: "/" + id})
	if err != nil {
		return upstream.DeleteFailed, err
	}
	switch {
	case resp.OK():
		c.logger.Info().Str("profile_id", id).Msg("profile deleted")
		return upstream.Deleted, nil
	case resp.Status == http.StatusNotFound:
		return upstream.AlreadyAbsent, nil
	default:
		return upstream.DeleteFailed, upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}
}
