package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/quickstore/internal/model"
	"github.com/hitoshi/quickstore/internal/share"
)

// ShareServiceInterface は共有ハンドラーが必要とするサービスインターフェース。
type ShareServiceInterface interface {
	// ShareItem はアイテムを他アカウントに共有する。
	ShareItem(ctx context.Context, accountID string, in share.ShareItemInput) (*model.Share, error)
	// ListShares はアイテムの共有一覧を返す。
	ListShares(ctx context.Context, accountID, itemID string) ([]*model.Share, error)
}

// ShareHandler はアイテム共有のHTTPハンドラー。
type ShareHandler struct {
	service ShareServiceInterface
}

// NewShareHandler はShareHandlerを生成する。
func NewShareHandler(service ShareServiceInterface) *ShareHandler {
	return &ShareHandler{service: service}
}

// shareItemRequest はアイテム共有リクエストのボディ。
type shareItemRequest struct {
	SharedWith string `json:"shared_with"`
	Permission string `json:"permission"`
}

// shareResponse は共有レコードのレスポンス。
type shareResponse struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"item_id"`
	SharedBy   string    `json:"shared_by"`
	SharedWith string    `json:"shared_with"`
	Permission string    `json:"permission"`
	CreatedAt  time.Time `json:"created_at"`
}

func toShareResponse(s *model.Share) shareResponse {
	return shareResponse{
		ID:         s.ID,
		ItemID:     s.ItemID,
		SharedBy:   s.SharedBy,
		SharedWith: s.SharedWith,
		Permission: string(s.Permission),
		CreatedAt:  s.CreatedAt,
	}
}

// ShareItem はアイテムを共有する。
// POST /api/items/:id/shares
func (h *ShareHandler) ShareItem(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	itemID := chi.URLParam(r, "id")

	var req shareItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	created, err := h.service.ShareItem(r.Context(), accountID, share.ShareItemInput{
		ItemID:     itemID,
		SharedWith: req.SharedWith,
		Permission: model.Permission(req.Permission),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toShareResponse(created))
}

// ListShares はアイテムの共有一覧を取得する。
// GET /api/items/:id/shares
func (h *ShareHandler) ListShares(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	itemID := chi.URLParam(r, "id")

	shares, err := h.service.ListShares(r.Context(), accountID, itemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]shareResponse, len(shares))
	for i, s := range shares {
		results[i] = toShareResponse(s)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"shares": results})
}
