package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/yourbite/pos-api/internal/auth"
	"github.com/yourbite/pos-api/internal/handler"
)

const testSecret = "test-secret-key"

// --- Mock credentials ---

type mockCredentials struct {
	username string
	password string
}

func (m *mockCredentials) Verify(username, password string) bool {
	return username == m.username && password == m.password
}

func (m *mockCredentials) Known(username string) bool {
	return username == m.username
}

// --- Helpers ---

func setupAuthRouter() *chi.Mux {
	h := handler.NewAuthHandler(&mockCredentials{username: "admin", password: "yourbite123"}, testSecret)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeListResponse(t *testing.T, rr *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// --- Login tests ---

func TestLogin_ValidCredentials(t *testing.T) {
	r := setupAuthRouter()

	rr := doRequest(t, r, "POST", "/auth/login", map[string]string{
		"username": "admin",
		"password": "yourbite123",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	accessToken, ok := resp["access_token"].(string)
	if !ok || accessToken == "" {
		t.Fatal("expected non-empty access_token")
	}
	if resp["refresh_token"] == nil || resp["refresh_token"] == "" {
		t.Error("expected non-empty refresh_token")
	}

	userResp, ok := resp["user"].(map[string]interface{})
	if !ok {
		t.Fatal("expected user object in response")
	}
	if userResp["username"] != "admin" || userResp["role"] != "ADMIN" {
		t.Errorf("user: got %v", userResp)
	}

	claims, err := auth.ValidateToken(testSecret, accessToken)
	if err != nil {
		t.Fatalf("access token should validate: %v", err)
	}
	if claims.Username != "admin" {
		t.Errorf("claims username: got %s", claims.Username)
	}
}

func TestLogin_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"wrong password", map[string]string{"username": "admin", "password": "nope"}, http.StatusUnauthorized},
		{"unknown user", map[string]string{"username": "root", "password": "yourbite123"}, http.StatusUnauthorized},
		{"missing password", map[string]string{"username": "admin"}, http.StatusBadRequest},
		{"not json", "garbage", http.StatusBadRequest},
	}

	r := setupAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, r, "POST", "/auth/login", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

// --- Refresh tests ---

func TestRefresh_ValidToken(t *testing.T) {
	r := setupAuthRouter()

	refreshToken, err := auth.GenerateRefreshToken(testSecret, "admin")
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	rr := doRequest(t, r, "POST", "/auth/refresh", map[string]string{"refresh_token": refreshToken})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	resp := decodeResponse(t, rr)
	if resp["access_token"] == nil || resp["access_token"] == "" {
		t.Error("expected non-empty access_token")
	}
}

func TestRefresh_Rejected(t *testing.T) {
	renamed, _ := auth.GenerateRefreshToken(testSecret, "old-admin")
	access, _ := auth.GenerateToken(testSecret, "admin", "ADMIN")

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusBadRequest},
		{"garbage", "not-a-valid-token", http.StatusUnauthorized},
		{"user no longer configured", renamed, http.StatusUnauthorized},
		{"access token", access, http.StatusUnauthorized},
	}

	r := setupAuthRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, r, "POST", "/auth/refresh", map[string]string{"refresh_token": tt.token})
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d", rr.Code, tt.want)
			}
		})
	}
}
