// Package model はドメインモデルを定義する。
package model

import "time"

// Webhook は外部連携用のWebhook登録を表す。
// eventsには購読するアクションタグ（item_created等）を保持する。
type Webhook struct {
	ID        string
	AccountID string
	URL       string
	Events    []string
	IsActive  bool
	CreatedAt time.Time
}
