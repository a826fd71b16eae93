// Package webhook は監査レコードを外部URLへ配信するディスパッチャを提供する。
// 定期ポーリングで新規の監査レコードを取得し、アクションを購読している
// 有効なWebhook登録へJSONペイロードをPOSTする。
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/quickstore/internal/metrics"
	"github.com/hitoshi/quickstore/internal/model"
)

// pollLimit は1サイクルで処理する監査レコードの最大件数。
const pollLimit = 200

// ActivityFeed は新規監査レコードのポーリング操作を抽象化する。
type ActivityFeed interface {
	ListSince(ctx context.Context, since time.Time, limit int) ([]*model.Activity, error)
}

// RegistrationLister は有効なWebhook登録の取得操作を抽象化する。
type RegistrationLister interface {
	ListActive(ctx context.Context) ([]*model.Webhook, error)
}

// Payload はWebhook配信のJSONボディ。
type Payload struct {
	Event      string         `json:"event"`
	AccountID  string         `json:"accountId"`
	Details    map[string]any `json:"details,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Dispatcher は監査レコードのWebhook配信を行う。
// 配信は至達保証なし（at-most-once）であり、失敗した配信はリトライしない。
type Dispatcher struct {
	activities     ActivityFeed
	registrations  RegistrationLister
	client         *http.Client
	logger         *slog.Logger
	metrics        metrics.Recorder
	maxConcurrency int

	lastPolled time.Time
}

// NewDispatcher はDispatcherの新しいインスタンスを生成する。
// clientにはSSRF防止機能付きのHTTPクライアントを渡すこと。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。
func NewDispatcher(
	activities ActivityFeed,
	registrations RegistrationLister,
	client *http.Client,
	logger *slog.Logger,
	m metrics.Recorder,
	maxConcurrency int,
) *Dispatcher {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Dispatcher{
		activities:     activities,
		registrations:  registrations,
		client:         client,
		logger:         logger,
		metrics:        m,
		maxConcurrency: maxConcurrency,
		lastPolled:     time.Now(),
	}
}

// Start はintervalごとのティッカーでディスパッチャを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (d *Dispatcher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("Webhookディスパッチャを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", d.maxConcurrency),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Webhookディスパッチャを停止しました")
			return
		case <-ticker.C:
			if err := d.RunOnce(ctx); err != nil {
				d.logger.Error("Webhook配信サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は前回ポーリング以降の監査レコードを1回取得し、
// 該当アクションを購読しているWebhookへ並列で配信する。
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	start := time.Now()

	activities, err := d.activities.ListSince(ctx, d.lastPolled, pollLimit)
	if err != nil {
		return fmt.Errorf("failed to list activities: %w", err)
	}
	if len(activities) == 0 {
		return nil
	}

	// ポーリング位置を最後に処理したレコードまで進める
	d.lastPolled = activities[len(activities)-1].CreatedAt

	webhooks, err := d.registrations.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list webhooks: %w", err)
	}
	if len(webhooks) == 0 {
		return nil
	}

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, d.maxConcurrency)
	var wg sync.WaitGroup
	var delivered int

	for _, activity := range activities {
		for _, hook := range webhooks {
			if !d.matches(hook, activity) {
				continue
			}
			delivered++

			wg.Add(1)
			sem <- struct{}{}

			go func(hook *model.Webhook, activity *model.Activity) {
				defer wg.Done()
				defer func() { <-sem }()

				d.deliver(ctx, hook, activity)
			}(hook, activity)
		}
	}

	wg.Wait()

	duration := time.Since(start)
	d.logger.Info("Webhook配信サイクルが完了しました",
		slog.Int("activity_count", len(activities)),
		slog.Int("delivery_count", delivered),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// matches はWebhook登録が監査レコードの配信対象かを判定する。
// 登録アカウント本人のレコードで、かつアクションを購読している場合のみ真。
func (d *Dispatcher) matches(hook *model.Webhook, activity *model.Activity) bool {
	if hook.AccountID != activity.AccountID {
		return false
	}
	return slices.Contains(hook.Events, activity.Action)
}

// deliver は1件のWebhook配信を実行する。
// 2xx以外のレスポンスとトランスポートエラーは失敗として記録する。
func (d *Dispatcher) deliver(ctx context.Context, hook *model.Webhook, activity *model.Activity) {
	payload := Payload{
		Event:      activity.Action,
		AccountID:  activity.AccountID,
		Details:    activity.Details,
		OccurredAt: activity.CreatedAt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.recordResult(false)
		d.logger.Error("Webhookペイロードのシリアライズに失敗しました",
			slog.String("webhook_id", hook.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		d.recordResult(false)
		d.logger.Warn("Webhookリクエストの生成に失敗しました",
			slog.String("webhook_id", hook.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.recordResult(false)
		d.logger.Warn("Webhook配信に失敗しました",
			slog.String("webhook_id", hook.ID),
			slog.String("event", activity.Action),
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	d.recordResult(success)

	if !success {
		d.logger.Warn("Webhook配信が拒否されました",
			slog.String("webhook_id", hook.ID),
			slog.String("event", activity.Action),
			slog.Int("status", resp.StatusCode),
		)
	}
}

func (d *Dispatcher) recordResult(success bool) {
	if d.metrics != nil {
		d.metrics.RecordWebhookDelivery(success)
	}
}
