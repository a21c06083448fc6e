// Package fhirstore is the client for the clinical-record service, which
// stores one FHIR Patient per identity. Records are created with the
// client-assigned identity id (PUT), so at most one record can ever exist per
// identity.
package fhirstore

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gravitate-health/user-orchestrator/internal/platform/httpx"
	"github.com/gravitate-health/user-orchestrator/internal/upstream"
)

const backend = "fhir"

// fhirContentType is required by the store for partial updates.
const fhirContentType = "application/fhir+json"

// TokenSource supplies the service credential attached to every call.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client performs CRUD against the Patient resource endpoint.
type Client struct {
	http   httpx.Client
	tokens TokenSource
	logger zerolog.Logger
}

// New builds a Client for the Patient endpoint at baseURL.
func New(baseURL string, timeout time.Duration, tokens TokenSource, logger zerolog.Logger) *Client {
	return &Client{
		http:   httpx.New(baseURL, timeout),
		tokens: tokens,
		logger: logger.With().Str("component", "fhir_client").Logger(),
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
		return nil, upstream.Wrap(upstream.KindUpstream, backend, "clinical record service unreachable", err)
	}
	return resp, nil
}

// Create stores the patient under its own id.
func (c *Client) Create(ctx context.Context, p Patient) error {
	resp, err := c.do(ctx, httpx.Request{Method: http.MethodPut, Path: "/" + p.ID, Body: p})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}
	c.logger.Info().Str("patient_id", p.ID).Msg("clinical record created")
	return nil
}

// Get fetches the patient record for an identity id. The raw resource is
// returned as-is; this service never interprets clinical content.
func (c *Client) Get(ctx context.Context, id string) (json.RawMessage, error) {
	resp, err := c.do(ctx, httpx.Request{Method: http.MethodGet, Path: "/" + id})
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusNotFound {
		return nil, upstream.New(upstream.KindNotFound, backend, "no clinical record with id "+id)
	}
	if !resp.OK() {
		return nil, upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}
	return json.RawMessage(resp.Body), nil
}

// Patch applies a partial update with the store's FHIR content type.
func (c *Client) Patch(ctx context.Context, id string, patch json.RawMessage) (json.RawMessage, error) {
	var body any
	if err := json.Unmarshal(patch, &body); err != nil {
		return nil, upstream.Wrap(upstream.KindValidation, backend, "clinical record patch is not valid JSON", err)
	}

	resp, err := c.do(ctx, httpx.Request{
		Method:      http.MethodPatch,
		Path:        "/" + id,
		Body:        body,
		ContentType: fhirContentType,
	})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}
	c.logger.Info().Str("patient_id", id).Msg("clinical record patched")
	return json.RawMessage(resp.Body), nil
}

// Delete removes the record; a missing record counts as already gone.
func (c *Client) Delete(ctx context.Context, id string) (upstream.DeleteOutcome, error) {
	resp, err := c.do(ctx, httpx.Request{Method: http.MethodDelete, Path: "/" + id})
	if err != nil {
		return upstream.DeleteFailed, err
	}
	switch {
	case resp.OK():
		c.logger.Info().Str("patient_id", id).Msg("clinical record deleted")
		return upstream.Deleted, nil
	case resp.Status == http.StatusNotFound:
		return upstream.AlreadyAbsent, nil
	default:
		return upstream.DeleteFailed, upstream.FromStatus(backend, resp.Status, string(resp.Body))
	}
}
