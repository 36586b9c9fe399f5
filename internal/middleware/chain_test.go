package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestMiddlewareChain_Auth_GETRequest は
// 認証ミドルウェアでGETリクエストが通ることを検証する。
func TestMiddlewareChain_Auth_GETRequest(t *testing.T) {
	repo := validTokenRepo("user-chain-test")
	authMW := NewTokenAuthMiddleware(repo)

	var capturedUserID string
	handler := authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := UserIDFromContext(r.Context())
		capturedUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if capturedUserID != "user-chain-test" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-chain-test")
	}
}

// TestMiddlewareChain_Auth_POSTRequest_WithValidToken は
// 認証ミドルウェアでPOSTリクエストがトークン付きで通ることを検証する。
func TestMiddlewareChain_Auth_POSTRequest_WithValidToken(t *testing.T) {
	authMW := NewTokenAuthMiddleware(validTokenRepo("user-post-test"))

	handlerCalled := false
	handler := authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if !handlerCalled {
		t.Error("handler should have been called")
	}
}

// TestMiddlewareChain_NoToken_Returns401 は
// トークンのないリクエストが401になることを検証する。
func TestMiddlewareChain_NoToken_Returns401(t *testing.T) {
	authMW := NewTokenAuthMiddleware(&mockTokenRepository{})

	handler := authMW(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called without token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
