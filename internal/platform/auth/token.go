// Package auth extracts the acting user's identity from the bearer token a
// caller presents. Signature verification happens at the gateway in front of
// this service; here the token is only decoded to read its subject claim,
// which keys the authorization check (a user may only touch its own record).
package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gravitate-health/user-orchestrator/internal/upstream"
)

// CallerID returns the subject claim of the bearer token in an Authorization
// header value. It fails with an auth-kind error on a missing or malformed
// header, an undecodable token, or an empty subject.
func CallerID(authorization string) (string, error) {
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", upstream.New(upstream.KindAuth, "caller", "missing bearer token")
	}
	return SubjectOf(parts[1])
}

// SubjectOf decodes a raw JWT without verifying its signature and returns the
// subject claim.
func SubjectOf(raw string) (string, error) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return "", upstream.Wrap(upstream.KindAuth, "caller", "malformed token", err)
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", upstream.New(upstream.KindAuth, "caller", "token has no subject claim")
	}
	return sub, nil
}
