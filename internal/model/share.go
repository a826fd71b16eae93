// Package model はドメインモデルを定義する。
package model

import "time"

// Permission は共有の権限種別を表す。
type Permission string

const (
	// PermissionRead は読み取り専用の共有権限。
	PermissionRead Permission = "read"
	// PermissionWrite は書き込み可能な共有権限。
	PermissionWrite Permission = "write"
)

// IsValidPermission は指定された権限が許可リストに含まれるかを返す。
func IsValidPermission(p Permission) bool {
	return p == PermissionRead || p == PermissionWrite
}

// Share はアイテムの共有関係を表す。
// 明示的な共有操作でのみ作成され、更新・削除の経路は持たない。
type Share struct {
	ID         string
	ItemID     string
	SharedBy   string // 共有元アカウントID
	SharedWith string // 共有先アカウントID
	Permission Permission
	CreatedAt  time.Time
}
