package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/quickstore/internal/account"
	"github.com/hitoshi/quickstore/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// UpdateProfile はメールアドレスとユーザー名を更新する。
	UpdateProfile(ctx context.Context, accountID string, in account.UpdateProfileInput) (*model.Account, error)
	// SendVerificationEmail はメール確認トークンを発行して送信する。
	SendVerificationEmail(ctx context.Context, accountID string) error
	// VerifyEmail はメール確認トークンを検証して確認済みフラグを立てる。
	VerifyEmail(ctx context.Context, accountID, token string) error
	// RequestPasswordReset はパスワードリセットトークンを発行して送信する。
	RequestPasswordReset(ctx context.Context, email string) error
	// ResetPassword はリセットトークンを検証して新しいパスワードを設定する。
	ResetPassword(ctx context.Context, token, newPassword string) error
	// ExportUserData はアカウントの全データをエクスポートする。
	ExportUserData(ctx context.Context, accountID string) (*account.ExportData, error)
	// DeleteAccount はアカウントと所有データを全て消去する。
	DeleteAccount(ctx context.Context, accountID, confirmation string) error
}

// AccountHandler はアカウント管理のHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
}

// verifyEmailRequest はメール確認リクエストのボディ。
type verifyEmailRequest struct {
	Token string `json:"token"`
}

// requestPasswordResetRequest はパスワードリセット要求のボディ。
type requestPasswordResetRequest struct {
	Email string `json:"email"`
}

// resetPasswordRequest はパスワードリセット実行のボディ。
type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// deleteAccountRequest はアカウント消去リクエストのボディ。
type deleteAccountRequest struct {
	Confirmation string `json:"confirmation"`
}

// UpdateProfile はプロフィールを更新する。
// PUT /api/accounts/me
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), accountID, account.UpdateProfileInput{
		Email:    req.Email,
		Username: req.Username,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAccountResponse(updated))
}

// SendVerificationEmail はメール確認トークンを発行する。
// POST /api/accounts/me/verification
func (h *AccountHandler) SendVerificationEmail(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.SendVerificationEmail(r.Context(), accountID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// VerifyEmail はメール確認トークンを検証する。
// POST /api/accounts/me/verify
func (h *AccountHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if err := h.service.VerifyEmail(r.Context(), accountID, req.Token); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"verified": true})
}

// RequestPasswordReset はパスワードリセットトークンを発行する。
// 未認証で呼び出せる。アカウントの存在有無にかかわらず同じ応答を返す。
// POST /auth/password-reset/request
func (h *AccountHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req requestPasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if err := h.service.RequestPasswordReset(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "登録されているメールアドレスであれば、リセット手順を送信しました。",
	})
}

// ResetPassword はリセットトークンで新しいパスワードを設定する。
// 未認証で呼び出せる。
// POST /auth/password-reset
func (h *AccountHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"reset": true})
}

// ExportUserData はアカウントの全データをエクスポートする。
// GET /api/accounts/me/export
func (h *AccountHandler) ExportUserData(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	export, err := h.service.ExportUserData(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="quickstore-export.json"`)
	json.NewEncoder(w).Encode(export)
}

// DeleteAccount はアカウントと所有データを全て消去する。
// DELETE /api/accounts/me
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	var req deleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), accountID, req.Confirmation); err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションCookieも無効化
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	w.WriteHeader(http.StatusNoContent)
}
