package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/quickstore/internal/folder"
	"github.com/hitoshi/quickstore/internal/model"
)

// FolderServiceInterface はフォルダハンドラーが必要とするサービスインターフェース。
type FolderServiceInterface interface {
	// CreateFolder は新規フォルダを検証して作成する。
	CreateFolder(ctx context.Context, accountID string, in folder.SaveFolderInput) (*model.Folder, error)
	// UpdateFolder は既存フォルダを検証して更新する。
	UpdateFolder(ctx context.Context, accountID, folderID string, in folder.SaveFolderInput) (*model.Folder, error)
	// DeleteFolder はフォルダを削除する。アイテムは未分類に戻る。
	DeleteFolder(ctx context.Context, accountID, folderID string) error
	// ListFolders はアカウントの全フォルダを返す。
	ListFolders(ctx context.Context, accountID string) ([]*model.Folder, error)
}

// FolderHandler はフォルダ管理のHTTPハンドラー。
type FolderHandler struct {
	service FolderServiceInterface
}

// NewFolderHandler はFolderHandlerを生成する。
func NewFolderHandler(service FolderServiceInterface) *FolderHandler {
	return &FolderHandler{service: service}
}

// saveFolderRequest はフォルダ保存リクエストのボディ。
type saveFolderRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// folderResponse はフォルダのレスポンス。
type folderResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toFolderResponse(f *model.Folder) folderResponse {
	return folderResponse{
		ID:          f.ID,
		Name:        f.Name,
		Description: f.Description,
		Color:       f.Color,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// CreateFolder は新規フォルダを作成する。
// POST /api/folders
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	var req saveFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	created, err := h.service.CreateFolder(r.Context(), accountID, folder.SaveFolderInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toFolderResponse(created))
}

// UpdateFolder は既存フォルダを更新する。
// PUT /api/folders/:id
func (h *FolderHandler) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	folderID := chi.URLParam(r, "id")

	var req saveFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidBodyResponse(w)
		return
	}

	updated, err := h.service.UpdateFolder(r.Context(), accountID, folderID, folder.SaveFolderInput{
		Name:        req.Name,
		Description: req.Description,
		Color:       req.Color,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toFolderResponse(updated))
}

// DeleteFolder はフォルダを削除する。
// DELETE /api/folders/:id
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	folderID := chi.URLParam(r, "id")

	if err := h.service.DeleteFolder(r.Context(), accountID, folderID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListFolders はアカウントのフォルダ一覧を取得する。
// GET /api/folders
func (h *FolderHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	folders, err := h.service.ListFolders(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]folderResponse, len(folders))
	for i, f := range folders {
		results[i] = toFolderResponse(f)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"folders": results})
}
