// Package model はドメインモデルを定義する。
package model

import "time"

// 監査ログのアクションタグ
const (
	ActionItemCreated   = "item_created"
	ActionItemUpdated   = "item_updated"
	ActionItemDeleted   = "item_deleted"
	ActionFolderCreated = "folder_created"
	ActionEmailVerified = "email_verified"
	ActionPasswordReset = "password_reset"
	ActionItemShared    = "item_shared"
)

// Activity は追記専用の監査レコードを表す。
// ゲートウェイからは作成のみ行い、更新・削除は行わない。
type Activity struct {
	ID        string
	AccountID string
	Action    string
	Details   map[string]any
	IPAddress string // 取得できない場合は "unknown"
	CreatedAt time.Time
}
