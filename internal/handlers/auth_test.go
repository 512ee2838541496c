package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"smart_irrigation/internal/service"
)

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAuthHandlers_RegisterAndLogin(t *testing.T) {
	auth := &mockAuth{signUpID: 42, genTokenToken: "tok123", parseID: 1}
	s := &service.Service{Authorization: auth}
	r := newTestRouter(s)

	// register success
	w := postJSON(r, "/api/auth/register", `{"email":"u@farm.io","password":"p"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("register status=%d, body=%s", w.Code, w.Body.String())
	}
	var m map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if int(m["id"].(float64)) != 42 {
		t.Fatalf("expected id=42, got %v", m["id"])
	}
	if auth.lastSignUpEmail != "u@farm.io" {
		t.Fatalf("expected email passed to SignUp, got %q", auth.lastSignUpEmail)
	}

	// login success
	w = postJSON(r, "/api/auth/login", `{"email":"u@farm.io","password":"p"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status=%d, body=%s", w.Code, w.Body.String())
	}
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["token"] != "tok123" {
		t.Fatalf("expected token tok123, got %v", m["token"])
	}

	// login invalid body → 400 with message
	w = postJSON(r, "/api/auth/login", `{"email":1}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &m)
	if m["message"] != errCredentialsMissing {
		t.Fatalf("expected message %q, got %v", errCredentialsMissing, m["message"])
	}
}

func TestAuthHandlers_LoginFailures(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"unknown user", service.ErrUserNotFound, http.StatusUnauthorized, errInvalidCredentials},
		{"wrong password", service.ErrInvalidPassword, http.StatusUnauthorized, errInvalidCredentials},
		{"storage failure", errors.New("db down"), http.StatusInternalServerError, "login failed"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newTestRouter(&service.Service{Authorization: &mockAuth{genTokenErr: tc.err}})

			w := postJSON(r, "/api/auth/login", `{"email":"u@farm.io","password":"bad"}`)
			if w.Code != tc.wantCode {
				t.Fatalf("status=%d, want %d", w.Code, tc.wantCode)
			}
			var out struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(w.Body.Bytes(), &out)
			if out.Message != tc.wantMsg {
				t.Fatalf("message=%q, want %q", out.Message, tc.wantMsg)
			}
		})
	}
}

func TestAuthHandlers_RegisterFailure(t *testing.T) {
	r := newTestRouter(&service.Service{Authorization: &mockAuth{signUpErr: errors.New("UNIQUE constraint failed")}})

	w := postJSON(r, "/api/auth/register", `{"email":"u@farm.io","password":"p"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("UNIQUE")) {
		t.Fatalf("storage details must not leak: %s", w.Body.String())
	}
}
