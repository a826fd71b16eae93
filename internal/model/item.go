// Package model はドメインモデルを定義する。
package model

import "time"

// ItemType はアイテムの種別を表す。
type ItemType string

const (
	// ItemTypeLink はURLリンクのアイテム。contentに絶対URLを保持する。
	ItemTypeLink ItemType = "link"
	// ItemTypeFile はファイルのアイテム。contentにファイル参照を保持する。
	ItemTypeFile ItemType = "file"
	// ItemTypeMessage はメッセージのアイテム。
	ItemTypeMessage ItemType = "message"
	// ItemTypeText はテキストメモのアイテム。
	// 一部のクライアント経路で使用される第4の種別。
	ItemTypeText ItemType = "text"
)

// ValidItemTypes は保存時に許可されるアイテム種別の一覧。
var ValidItemTypes = []ItemType{ItemTypeLink, ItemTypeFile, ItemTypeMessage, ItemTypeText}

// IsValidItemType は指定された種別が許可リストに含まれるかを返す。
func IsValidItemType(t ItemType) bool {
	for _, valid := range ValidItemTypes {
		if t == valid {
			return true
		}
	}
	return false
}

// Item はアカウントが保存したアイテム（リンク・ファイル・メッセージ・テキスト）を表す。
// AccountIDは作成時に確定し、以後変更されない。
type Item struct {
	ID         string
	AccountID  string
	Type       ItemType
	Title      string // トリム済み、1〜200文字
	Content    string // 1〜10000文字。type=linkの場合は絶対URL
	FolderID   *string
	Tags       []string // サニタイズ済み、最大10件
	IsFavorite bool
	CreatedAt  time.Time // 作成時に1回だけ設定
	UpdatedAt  time.Time // 保存のたびに更新
}

// ItemWithFolder はアイテムと所属フォルダ名を結合した検索結果用モデル。
// foldersテーブルとLEFT JOINして取得される。
type ItemWithFolder struct {
	Item
	FolderName *string
}

// ItemSearchQuery はアイテム検索の条件を表す。
// nilのフィールドは条件として適用されない。
type ItemSearchQuery struct {
	AccountID  string
	Query      string // タイトルまたは本文に対する大文字小文字を区別しない部分一致
	Type       *ItemType
	FolderID   *string
	Tags       []string // 指定された全タグを含むアイテムのみ
	IsFavorite *bool
	Limit      int // 上限100にクランプされる
	Skip       int
}
