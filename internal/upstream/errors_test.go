package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestFromStatus(t *testing.T) {
	cases := []struct {
		status int
		want   Kind
	}{
		{http.StatusConflict, KindConflict},
		{http.StatusNotFound, KindNotFound},
		{http.StatusUnauthorized, KindAuth},
		{http.StatusForbidden, KindAuth},
		{http.StatusBadRequest, KindValidation},
		{http.StatusUnprocessableEntity, KindValidation},
		{http.StatusInternalServerError, KindUpstream},
		{http.StatusBadGateway, KindUpstream},
	}
	for _, tc := range cases {
		err := FromStatus("keycloak", tc.status, "")
		if err.Kind != tc.want {
			t.Errorf("status %d: expected kind %s, got %s", tc.status, tc.want, err.Kind)
		}
		if err.Status != tc.status {
			t.Errorf("status %d: not preserved, got %d", tc.status, err.Status)
		}
	}
}

func TestFromStatus_DefaultsMessageToStatusText(t *testing.T) {
	err := FromStatus("profile", http.StatusServiceUnavailable, "")
	if err.Message != http.StatusText(http.StatusServiceUnavailable) {
		t.Errorf("unexpected message: %q", err.Message)
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	inner := New(KindConflict, "keycloak", "email exists")
	wrapped := fmt.Errorf("creating identity: %w", inner)

	if got := KindOf(wrapped); got != KindConflict {
		t.Errorf("expected conflict through wrapping, got %s", got)
	}
	if !IsKind(wrapped, KindConflict) {
		t.Error("IsKind should see through fmt.Errorf wrapping")
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if got := KindOf(errors.New("dial tcp: refused")); got != KindUpstream {
		t.Errorf("plain errors should default to upstream, got %s", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:    http.StatusUnprocessableEntity,
		KindAuth:          http.StatusBadRequest,
		KindAuthorization: http.StatusUnauthorized,
		KindConflict:      http.StatusConflict,
		KindNotFound:      http.StatusNotFound,
		KindUpstream:      http.StatusServiceUnavailable,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Errorf("%s: expected %d, got %d", kind, want, got)
		}
	}
	if got := HTTPStatus(Kind("bogus")); got != http.StatusInternalServerError {
		t.Errorf("unknown kind should map to 500, got %d", got)
	}
}

func TestDeleteOutcome_Gone(t *testing.T) {
	if !Deleted.Gone() || !AlreadyAbsent.Gone() {
		t.Error("deleted and already_absent both mean the resource is gone")
	}
	if DeleteFailed.Gone() {
		t.Error("a failed delete leaves the resource in place")
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindUpstream, "fhir", "delete patient", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the transport cause")
	}
}
