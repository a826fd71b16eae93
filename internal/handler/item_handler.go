package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/quickstore/internal/item"
	"github.com/hitoshi/quickstore/internal/model"
)

// ItemServiceInterface はアイテムハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	// CreateItem は新規アイテムを検証して作成する。
	CreateItem(ctx context.Context, accountID string, in item.SaveItemInput) (*model.Item, error)
	// UpdateItem は既存アイテムを検証して更新する。
	UpdateItem(ctx context.Context, accountID, itemID string, in item.SaveItemInput) (*model.Item, error)
	// DeleteItem はアイテムを削除する。
	DeleteItem(ctx context.Context, accountID, itemID string) error
	// SearchItems は検索条件に一致するアイテムをフォルダ名付きで返す。
	SearchItems(ctx context.Context, accountID string, in item.SearchInput) ([]model.ItemWithFolder, error)
}

// ItemHandler はアイテム管理のHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface) *ItemHandler {
	return &ItemHandler{service: service}
}

// --- リクエスト・レスポンス型 ---

// saveItemRequest はアイテム保存リクエストのボディ。
type saveItemRequest struct {
	Type       string   `json:"type"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	FolderID   *string  `json:"folder_id,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	IsFavorite bool     `json:"is_favorite"`
}

// itemResponse はアイテムのレスポンス。
type itemResponse struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	FolderID   *string   `json:"folder_id,omitempty"`
	FolderName *string   `json:"folder_name,omitempty"`
	Tags       []string  `json:"tags"`
	IsFavorite bool      `json:"is_favorite"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// searchResponse はアイテム検索のレスポンス。
type searchResponse struct {
	Items []itemResponse `json:"items"`
	Count int            `json:"count"`
}

func toItemResponse(it *model.Item) itemResponse {
	return itemResponse{
		ID:         it.ID,
		Type:       string(it.Type),
		Title:      it.Title,
		Content:    it.Content,
		FolderID:   it.FolderID,
		Tags:       it.Tags,
		IsFavorite: it.IsFavorite,
		CreatedAt:  it.CreatedAt,
		UpdatedAt:  it.UpdatedAt,
	}
}

func toSaveItemInput(req saveItemRequest) item.SaveItemInput {
	return item.SaveItemInput{
		Type:       model.ItemType(req.Type),
		Title:      req.Title,
		Content:    req.Content,
		FolderID:   req.FolderID,
		Tags:       req.Tags,
		IsFavorite: req.IsFavorite,
	}
}

// CreateItem は新規アイテムを作成する。
// POST /api/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	var req saveItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	created, err := h.service.CreateItem(r.Context(), accountID, toSaveItemInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toItemResponse(created))
}

// UpdateItem は既存アイテムを更新する。
// PUT /api/items/:id
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	itemID := chi.URLParam(r, "id")

	var req saveItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	updated, err := h.service.UpdateItem(r.Context(), accountID, itemID, toSaveItemInput(req))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toItemResponse(updated))
}

// DeleteItem はアイテムを削除する。
// DELETE /api/items/:id
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	itemID := chi.URLParam(r, "id")

	if err := h.service.DeleteItem(r.Context(), accountID, itemID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SearchItems は検索条件に一致するアイテム一覧を取得する。
// GET /api/items?q=xxx&type=link&folder_id=xxx&tags=a,b&favorite=true&limit=50&skip=0
func (h *ItemHandler) SearchItems(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	in := parseSearchInput(r)

	results, err := h.service.SearchItems(r.Context(), accountID, in)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	items := make([]itemResponse, len(results))
	for i, res := range results {
		resp := toItemResponse(&res.Item)
		resp.FolderName = res.FolderName
		items[i] = resp
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(searchResponse{
		Items: items,
		Count: len(items),
	})
}

// parseSearchInput はクエリパラメータから検索条件を組み立てる。
func parseSearchInput(r *http.Request) item.SearchInput {
	q := r.URL.Query()

	in := item.SearchInput{
		Query: q.Get("q"),
		Limit: intQueryParam(q.Get("limit")),
		Skip:  intQueryParam(q.Get("skip")),
	}

	if typeStr := q.Get("type"); typeStr != "" {
		itemType := model.ItemType(typeStr)
		in.Type = &itemType
	}
	if folderID := q.Get("folder_id"); folderID != "" {
		in.FolderID = &folderID
	}
	if tags, hasTags := q["tags"]; hasTags {
		in.Tags = tags
	}
	if favStr := q.Get("favorite"); favStr != "" {
		fav := favStr == "true"
		in.IsFavorite = &fav
	}

	return in
}

// intQueryParam は数値クエリパラメータをパースする。不正な値は0を返す。
func intQueryParam(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
