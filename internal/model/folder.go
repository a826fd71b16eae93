// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultFolderColor はフォルダ作成時のデフォルトカラー。
const DefaultFolderColor = "#6366F1"

// Folder はアイテムを整理するフォルダを表す。
// 同一アカウント内でトリム済みの名前は一意（大文字小文字を区別する完全一致）。
type Folder struct {
	ID          string
	AccountID   string
	Name        string // トリム済み、1〜100文字
	Description string
	Color       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
