package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/quickstore/internal/model"
	"github.com/hitoshi/quickstore/internal/webhook"
)

// WebhookServiceInterface はWebhookハンドラーが必要とするサービスインターフェース。
type WebhookServiceInterface interface {
	// CreateWebhook はWebhook登録を検証して作成する。
	CreateWebhook(ctx context.Context, accountID string, in webhook.CreateWebhookInput) (*model.Webhook, error)
}

// WebhookHandler はWebhook登録のHTTPハンドラー。
type WebhookHandler struct {
	service WebhookServiceInterface
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(service WebhookServiceInterface) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// createWebhookRequest はWebhook登録リクエストのボディ。
type createWebhookRequest struct {
	URL    string   `json:"url"`
	Events []string `json:"events"`
}

// webhookResponse はWebhook登録のレスポンス。
type webhookResponse struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateWebhook はWebhook登録を作成する。
// POST /api/webhooks
func (h *WebhookHandler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	var req createWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	created, err := h.service.CreateWebhook(r.Context(), accountID, webhook.CreateWebhookInput{
		URL:    req.URL,
		Events: req.Events,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(webhookResponse{
		ID:        created.ID,
		URL:       created.URL,
		Events:    created.Events,
		IsActive:  created.IsActive,
		CreatedAt: created.CreatedAt,
	})
}
