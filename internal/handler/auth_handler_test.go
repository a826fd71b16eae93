package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/quickstore/internal/account"
	"github.com/hitoshi/quickstore/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, in account.RegisterInput) (*model.Account, error)
	loginFn    func(ctx context.Context, email, password string) (*model.Session, *model.Account, error)
	logoutFn   func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) Register(ctx context.Context, in account.RegisterInput) (*model.Account, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return &model.Account{}, nil
}
func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, *model.Account, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return &model.Session{}, &model.Account{}, nil
}
func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

// --- POST /auth/register テスト ---

func TestAuthHandler_Register_Success(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(ctx context.Context, in account.RegisterInput) (*model.Account, error) {
			return &model.Account{
				ID:       "account-1",
				Email:    "taro@example.com",
				Username: "taro",
				Role:     model.RoleUser,
			}, nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	body, _ := json.Marshal(registerRequest{
		Email: "taro@example.com", Username: "taro", Password: "password1",
	})
	req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusCreated)
	}

	var result accountResponse
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.ID != "account-1" || result.Role != "user" {
		t.Errorf("unexpected response: %+v", result)
	}
}

// --- POST /auth/login テスト ---

func TestAuthHandler_Login_SetsSessionCookie(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.Session, *model.Account, error) {
			return &model.Session{
					ID:        "session-abc",
					AccountID: "account-1",
					ExpiresAt: time.Now().Add(time.Hour),
				}, &model.Account{
					ID:    "account-1",
					Email: email,
				}, nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{CookieSecure: true})

	body, _ := json.Marshal(loginRequest{Email: "taro@example.com", Password: "password1"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cookies := resp.Cookies()
	var sessionCookie *http.Cookie
	for _, c := range cookies {
		if c.Name == "session_id" {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("session cookie should be set")
	}
	if sessionCookie.Value != "session-abc" {
		t.Errorf("cookie value = %q, want %q", sessionCookie.Value, "session-abc")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if !sessionCookie.Secure {
		t.Error("session cookie should be Secure")
	}
}

func TestAuthHandler_Login_InvalidCredentials_Returns401(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, email, password string) (*model.Session, *model.Account, error) {
			return nil, nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	body, _ := json.Marshal(loginRequest{Email: "taro@example.com", Password: "wrong"})
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// --- POST /auth/logout テスト ---

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	loggedOut := ""
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
	}
	h := NewAuthHandler(svc, AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-abc"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
	if loggedOut != "session-abc" {
		t.Errorf("logged out session = %q, want %q", loggedOut, "session-abc")
	}

	var cleared *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "session_id" {
			cleared = c
		}
	}
	if cleared == nil || cleared.MaxAge != -1 {
		t.Error("session cookie should be invalidated")
	}
}
