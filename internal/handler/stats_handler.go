package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/quickstore/internal/stats"
)

// StatsServiceInterface は統計ハンドラーが必要とするサービスインターフェース。
type StatsServiceInterface interface {
	// GetUserStats はアカウントの利用統計を返す。
	GetUserStats(ctx context.Context, accountID string) (*stats.UserStats, error)
	// GetSystemStats はシステム全体の統計を返す。管理者のみ。
	GetSystemStats(ctx context.Context, accountID string) (*stats.SystemStats, error)
}

// StatsHandler は利用統計のHTTPハンドラー。
type StatsHandler struct {
	service StatsServiceInterface
}

// NewStatsHandler はStatsHandlerを生成する。
func NewStatsHandler(service StatsServiceInterface) *StatsHandler {
	return &StatsHandler{service: service}
}

// GetUserStats はアカウントの利用統計を取得する。
// GET /api/stats/me
func (h *StatsHandler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetUserStats(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// GetSystemStats はシステム全体の統計を取得する。管理者専用。
// GET /api/admin/stats
func (h *StatsHandler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	accountID, ok := accountIDFromRequest(w, r)
	if !ok {
		return
	}

	result, err := h.service.GetSystemStats(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
