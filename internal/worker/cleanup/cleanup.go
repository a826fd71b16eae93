// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れセッション、期限切れの確認・リセットトークン、
// 保持期間（デフォルト90日）を超過した監査レコードを定期バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPruner は期限切れセッションの削除操作を抽象化する。
type SessionPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// ActivityPruner は古い監査レコードの削除操作を抽象化する。
type ActivityPruner interface {
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// TokenPruner は期限切れトークンのクリア操作を抽象化する。
type TokenPruner interface {
	ClearExpiredTokens(ctx context.Context) (int64, error)
}

// CleanupJob は期限切れデータの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessions      SessionPruner
	tokens        TokenPruner
	activities    ActivityPruner
	logger        *slog.Logger
	RetentionDays int // 監査レコードの保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(sessions SessionPruner, tokens TokenPruner, activities ActivityPruner, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:      sessions,
		tokens:        tokens,
		activities:    activities,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Run は期限切れセッションと保持期間を超過した監査レコードを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	expiredSessions, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	clearedTokens, err := j.tokens.ClearExpiredTokens(ctx)
	if err != nil {
		j.logger.Error("期限切れトークンのクリアに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to clear expired tokens: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -j.RetentionDays)
	prunedActivities, err := j.activities.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		j.logger.Error("監査レコードの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("failed to prune activities: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", expiredSessions),
		slog.Int64("cleared_tokens", clearedTokens),
		slog.Int64("deleted_activities", prunedActivities),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RunPeriodically はintervalごとにRunを実行し続ける。
// コンテキストのキャンセルで停止する。起動直後にも1回実行する。
func (j *CleanupJob) RunPeriodically(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップの初回実行に失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップの定期実行に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}
