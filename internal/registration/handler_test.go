package registration

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/gravitate-health/user-orchestrator/internal/keycloak"
	"github.com/gravitate-health/user-orchestrator/internal/profile"
	"github.com/gravitate-health/user-orchestrator/internal/upstream"
)

func newTestServer(svc *Service) *echo.Echo {
	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group(""))
	return e
}

func bearerFor(t *testing.T, sub string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub}).
		SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return "Bearer " + token
}

func doJSON(e *echo.Echo, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateUserEndpoint(t *testing.T) {
	svc := newTestService(&fakeTokens{}, &fakeIdentities{nextID: "u-123"}, &fakeProfiles{}, &fakeRecords{})
	e := newTestServer(svc)

	rec := doJSON(e, http.MethodPost, "/user",
		"", `{"email":"jane@example.org","password":"secret","firstName":"Jane","lastName":"Doe","sex":"F"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"created":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"u-123"`) {
		t.Errorf("identity id missing from body: %s", rec.Body.String())
	}
}

func TestCreateUserRejectsMalformedJSON(t *testing.T) {
	svc := newTestService(&fakeTokens{}, &fakeIdentities{}, &fakeProfiles{}, &fakeRecords{})
	e := newTestServer(svc)

	rec := doJSON(e, http.MethodPost, "/user", "", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCreateUserLocalValidationIs400(t *testing.T) {
	svc := newTestService(&fakeTokens{}, &fakeIdentities{}, &fakeProfiles{}, &fakeRecords{})
	e := newTestServer(svc)

	rec := doJSON(e, http.MethodPost, "/user", "", `{"email":"jane@example.org"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCreateUserUpstreamValidationIs422(t *testing.T) {
	ids := &fakeIdentities{createErr: upstream.New(upstream.KindValidation, "keycloak", "bad email format")}
	svc := newTestService(&fakeTokens{}, ids, &fakeProfiles{}, &fakeRecords{})
	e := newTestServer(svc)

	rec := doJSON(e, http.MethodPost, "/user",
		"", `{"email":"jane@example.org","password":"secret"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestCreateUserConflictIs409(t *testing.T) {
	ids := &fakeIdentities{createErr: upstream.New(upstream.KindConflict, "keycloak", "user exists")}
	svc := newTestService(&fakeTokens{}, ids, &fakeProfiles{}, &fakeRecords{})
	e := newTestServer(svc)

	rec := doJSON(e, http.MethodPost, "/user",
		"", `{"email":"jane@example.org","password":"secret"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestGetUserRequiresBearerToken(t *testing.T) {
	svc := newTestService(&fakeTokens{}, &fakeIdentities{}, &fakeProfiles{}, &fakeRecords{})
	e := newTestServer(svc)

	rec := doJSON(e, http.MethodGet, "/user", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestGetUserReturnsSections(t *testing.T) {
	ids := &fakeIdentities{user: &keycloak.User{ID: "u-1", Email: "jane@example.org"}}
	profs := &fakeProfiles{stored: profile.Profile{"id": "u-1", "sex": "F"}}
	svc := newTestService(&fakeTokens{}, ids, profs, &fakeRecords{})
	e := newTestServer(svc)

	rec := doJSON(e, http.MethodGet, "/user", bearerFor(t, "u-1"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"jane@example.org"`) || !strings.Contains(body, `"sex":"F"`) {
		t.Errorf("body = %s", body)
	}
}

func TestUpdateUserWrongSubjectIs401(t *testing.T) {
	profs := &fakeProfiles{}
	svc := newTestService(&fakeTokens{}, &fakeIdentities{}, profs, &fakeRecords{})
	e := newTestServer(svc)

	rec := doJSON(e, http.MethodPatch, "/user/u-2", bearerFor(t, "u-1"), `{"profile":{"sex":"F"}}`)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(profs.patched) != 0 {
		t.Error("no backend call expected on subject mismatch")
	}
}

func TestUpdateUserAppliesPatch(t *testing.T) {
	profs := &fakeProfiles{}
	svc := newTestService(&fakeTokens{}, &fakeIdentities{}, profs, &fakeRecords{})
	e := newTestServer(svc)

	rec := doJSON(e, http.MethodPatch, "/user/u-1", bearerFor(t, "u-1"), `{"profile":{"sex":"F"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(profs.patched) != 1 {
		t.Errorf("profile patches = %d", len(profs.patched))
	}
}

func TestDeleteUserEndpoint(t *testing.T) {
	ids := &fakeIdentities{deleteOut: upstream.Deleted}
	profs := &fakeProfiles{deleteOut: upstream.AlreadyAbsent}
	recs := &fakeRecords{deleteOut: upstream.Deleted}
	svc := newTestService(&fakeTokens{}, ids, profs, recs)
	e := newTestServer(svc)

	rec := doJSON(e, http.MethodDelete, "/user/u-1", bearerFor(t, "u-1"), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"identityDeleted":true`) || !strings.Contains(body, `"profileDeleted":false`) {
		t.Errorf("body = %s", body)
	}
}

func TestResetPasswordEndpoint(t *testing.T) {
	ids := &fakeIdentities{resetSent: true}
	svc := newTestService(&fakeTokens{}, ids, &fakeProfiles{}, &fakeRecords{})
	e := newTestServer(svc)

	rec := doJSON(e, http.MethodPost, "/reset-password?email=jane@example.org", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"sent":true`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
