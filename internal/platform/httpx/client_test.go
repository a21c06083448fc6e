package httpx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDo_JSONBody(t *testing.T) {
	var gotContentType, gotAuth string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotAuth = r.Header.Get("Authorization")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotBody)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	resp, err := c.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/users",
		Body:   map[string]string{"email": "a@b.com"},
		Token:  "tok-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != http.StatusCreated {
		t.Errorf("expected 201, got %d", resp.Status)
	}
	if !resp.OK() {
		t.Error("201 should be OK")
	}
	if gotContentType != "application/json" {
		t.Errorf("expected application/json, got %s", gotContentType)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("expected bearer token, got %q", gotAuth)
	}
	if gotBody["email"] != "a@b.com" {
		t.Errorf("body not delivered: %v", gotBody)
	}
}

func TestDo_FormBody(t *testing.T) {
	var gotContentType, grant string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		r.ParseForm()
		grant = r.PostFormValue("grant_type")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	form := map[string][]string{"grant_type": {"password"}}
	_, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/token", Form: form})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotContentType != "application/x-www-form-urlencoded" {
		t.Errorf("expected form content type, got %s", gotContentType)
	}
	if grant != "password" {
		t.Errorf("form not delivered, grant_type=%q", grant)
	}
}

func TestDo_CustomContentType(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	_, err := c.Do(context.Background(), Request{
		Method:      http.MethodPatch,
		Path:        "/Patient/u-1",
		Body:        map[string]bool{"active": true},
		ContentType: "application/fhir+json",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotContentType != "application/fhir+json" {
		t.Errorf("expected fhir content type, got %s", gotContentType)
	}
}

func TestDo_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := New(srv.URL, time.Second)
	if _, err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/"}); err == nil {
		t.Error("expected error for refused connection")
	}
}

func TestDo_Non2xxIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"errorMessage":"User exists"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	resp, err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/users"})
	if err != nil {
		t.Fatalf("status codes are data, not errors: %v", err)
	}
	if resp.OK() {
		t.Error("409 must not be OK")
	}
	var body map[string]string
	if err := resp.Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["errorMessage"] != "User exists" {
		t.Errorf("body lost: %v", body)
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://idp.example/auth/", time.Second)
	if c.BaseURL() != "http://idp.example/auth" {
		t.Errorf("expected trimmed base URL, got %s", c.BaseURL())
	}
}
