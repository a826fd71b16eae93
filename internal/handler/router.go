package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/quickstore/internal/middleware"
)

// HealthChecker はヘルスチェック時の死活確認を抽象化する。
// *sql.DB を受け付けることができる。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメインサービス
	AccountService AccountServiceInterface
	ItemService    ItemServiceInterface
	FolderService  FolderServiceInterface
	ShareService   ShareServiceInterface
	WebhookService WebhookServiceInterface
	StatsService   StatsServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → ClientIP
//	→ SessionMiddleware → RateLimitMiddleware(GeneralMiddleware)
//
// 認証ルート（/auth/*）とヘルスチェックはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.ClientIP)

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	accountHandler := NewAccountHandler(deps.AccountService)
	itemHandler := NewItemHandler(deps.ItemService)
	folderHandler := NewFolderHandler(deps.FolderService)
	shareHandler := NewShareHandler(deps.ShareService)
	webhookHandler := NewWebhookHandler(deps.WebhookService)
	statsHandler := NewStatsHandler(deps.StatsService)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		// パスワードリセットは未認証で呼び出せる
		r.Post("/password-reset/request", accountHandler.RequestPasswordReset)
		r.Post("/password-reset", accountHandler.ResetPassword)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// アイテム管理
		r.Route("/api/items", func(r chi.Router) {
			r.Get("/", itemHandler.SearchItems)
			r.Post("/", itemHandler.CreateItem)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", itemHandler.UpdateItem)
				r.Delete("/", itemHandler.DeleteItem)

				// 共有
				r.Get("/shares", shareHandler.ListShares)
				r.Post("/shares", shareHandler.ShareItem)
			})
		})

		// フォルダ管理
		r.Route("/api/folders", func(r chi.Router) {
			r.Get("/", folderHandler.ListFolders)
			r.Post("/", folderHandler.CreateFolder)

			r.Route("/{id}", func(r chi.Router) {
				r.Put("/", folderHandler.UpdateFolder)
				r.Delete("/", folderHandler.DeleteFolder)
			})
		})

		// アカウント管理
		r.Route("/api/accounts/me", func(r chi.Router) {
			r.Put("/", accountHandler.UpdateProfile)
			r.Delete("/", accountHandler.DeleteAccount)
			r.Get("/export", accountHandler.ExportUserData)
			r.Post("/verification", accountHandler.SendVerificationEmail)
			r.Post("/verify", accountHandler.VerifyEmail)
		})

		// Webhook管理
		r.Route("/api/webhooks", func(r chi.Router) {
			r.Post("/", webhookHandler.CreateWebhook)
		})

		// 統計
		r.Get("/api/stats/me", statsHandler.GetUserStats)
		r.Get("/api/admin/stats", statsHandler.GetSystemStats)
	})

	return r
}

// newHealthHandler はDB死活確認付きのヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
