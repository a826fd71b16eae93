// Package audit は変更操作の監査ログ記録を提供する。
// 監査レコードは主となる書き込みのコミット後に追記され、
// 記録の失敗が主となる書き込みを失敗させることはない。
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/quickstore/internal/model"
	"github.com/hitoshi/quickstore/internal/repository"
)

// Recorder は監査レコード追記のインターフェース。
// サービス層はこのインターフェースに依存する。
type Recorder interface {
	// Record は監査レコードを1件追記する。
	// 失敗しても主となる書き込みには影響しないため、エラーを返さない。
	Record(ctx context.Context, accountID, action string, details map[string]any)
}

// FailureCounter は監査記録の失敗を計数するメトリクスフック。
type FailureCounter interface {
	RecordAuditFailure()
}

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// ipAddressContextKey はリクエスト元IPアドレスを格納するためのキー。
var ipAddressContextKey = contextKey("ip_address")

// ContextWithIPAddress はコンテキストにリクエスト元IPアドレスを注入する。
// HTTPハンドラー層で設定され、監査レコードに記録される。
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipAddressContextKey, ip)
}

// ipAddressFromContext はコンテキストからIPアドレスを取得する。
// 取得できない場合は "unknown" を返す。
func ipAddressFromContext(ctx context.Context) string {
	ip, ok := ctx.Value(ipAddressContextKey).(string)
	if !ok || ip == "" {
		return "unknown"
	}
	return ip
}

// Logger はActivityRepositoryへ監査レコードを追記するRecorder実装。
type Logger struct {
	repo    repository.ActivityRepository
	logger  *slog.Logger
	metrics FailureCounter
}

// NewLogger はLoggerを生成する。metricsはnilを許容する。
func NewLogger(repo repository.ActivityRepository, logger *slog.Logger, metrics FailureCounter) *Logger {
	return &Logger{
		repo:    repo,
		logger:  logger,
		metrics: metrics,
	}
}

// Record は監査レコードを1件追記する。
// 記録に失敗した場合はWarnログとメトリクスのみを残し、呼び出し元には伝播しない。
func (l *Logger) Record(ctx context.Context, accountID, action string, details map[string]any) {
	activity := &model.Activity{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Action:    action,
		Details:   details,
		IPAddress: ipAddressFromContext(ctx),
		CreatedAt: time.Now(),
	}

	if err := l.repo.Create(ctx, activity); err != nil {
		l.logger.Warn("監査レコードの記録に失敗しました",
			slog.String("account_id", accountID),
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		if l.metrics != nil {
			l.metrics.RecordAuditFailure()
		}
	}
}

// compile-time interface check
var _ Recorder = (*Logger)(nil)
