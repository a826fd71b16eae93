// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/quickstore/internal/model"
)

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// FindByUsername はユーザー名でアカウントを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.Account, error)

	// FindByPasswordResetToken はパスワードリセットトークンでアカウントを検索する。
	// 見つからない場合はnilを返す。
	FindByPasswordResetToken(ctx context.Context, token string) (*model.Account, error)

	// Create はアカウントを作成する。
	Create(ctx context.Context, account *model.Account) error

	// Update はアカウント情報を上書き更新する。
	Update(ctx context.Context, account *model.Account) error

	// DeleteByID は指定IDのアカウントを削除する。
	DeleteByID(ctx context.Context, id string) error

	// ClearExpiredTokens は有効期限を超過したメール確認トークンと
	// パスワードリセットトークンをクリアし、対象アカウント数を返す。
	// クリーンアップジョブでのみ使用する。
	ClearExpiredTokens(ctx context.Context) (int64, error)

	// Count は全アカウント数を返す。
	Count(ctx context.Context) (int, error)
}

// ItemRepository はアイテムデータの永続化インターフェース。
// FindByIDは所有者フィルタを適用しない昇格読み取りであり、
// 所有権比較のためにのみサービス層から使用される。
// それ以外の読み取り経路は常にaccount_idで絞り込む。
type ItemRepository interface {
	// FindByID は指定IDのアイテムを所有者フィルタなしで取得する。
	// 見つからない場合はnilを返す。所有権検証専用。
	FindByID(ctx context.Context, id string) (*model.Item, error)

	// Create は新規アイテムを作成する。
	Create(ctx context.Context, item *model.Item) error

	// Update は既存アイテムを上書き更新する。所有者は変更されない。
	Update(ctx context.Context, item *model.Item) error

	// DeleteByID は指定IDのアイテムを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByAccountID はアカウントの全アイテムを削除する。
	// 削除対象がない場合でもエラーにならない（冪等）。
	DeleteByAccountID(ctx context.Context, accountID string) error

	// ListByAccountID はアカウントの全アイテムを作成日時降順で返す。
	ListByAccountID(ctx context.Context, accountID string) ([]*model.Item, error)

	// Search は検索条件に一致するアイテムをフォルダ名付きで返す。
	// 作成日時降順、limit/skipによるページネーション。
	Search(ctx context.Context, q model.ItemSearchQuery) ([]model.ItemWithFolder, error)

	// CountByAccountID はアカウントの全アイテム数を返す。
	CountByAccountID(ctx context.Context, accountID string) (int, error)

	// CountByAccountIDAndType はアカウントの種別ごとのアイテム数を返す。
	CountByAccountIDAndType(ctx context.Context, accountID string, itemType model.ItemType) (int, error)

	// CountFavoritesByAccountID はアカウントのお気に入りアイテム数を返す。
	CountFavoritesByAccountID(ctx context.Context, accountID string) (int, error)

	// Count は全アイテム数を返す。
	Count(ctx context.Context) (int, error)
}

// FolderRepository はフォルダデータの永続化インターフェース。
// FindByIDはItemRepositoryと同様、所有権検証専用の昇格読み取り。
type FolderRepository interface {
	// FindByID は指定IDのフォルダを所有者フィルタなしで取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Folder, error)

	// Create は新規フォルダを作成する。
	Create(ctx context.Context, folder *model.Folder) error

	// Update は既存フォルダを上書き更新する。
	Update(ctx context.Context, folder *model.Folder) error

	// DeleteByID は指定IDのフォルダを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByAccountID はアカウントの全フォルダを削除する（冪等）。
	DeleteByAccountID(ctx context.Context, accountID string) error

	// ListByAccountID はアカウントの全フォルダを名前昇順で返す。
	ListByAccountID(ctx context.Context, accountID string) ([]*model.Folder, error)

	// ExistsByAccountIDAndName は同一アカウント内に同名（トリム済み完全一致）の
	// フォルダが存在するかを返す。excludeIDが空でない場合はそのIDを除外する。
	ExistsByAccountIDAndName(ctx context.Context, accountID, name, excludeID string) (bool, error)

	// CountByAccountID はアカウントのフォルダ数を返す。
	CountByAccountID(ctx context.Context, accountID string) (int, error)

	// Count は全フォルダ数を返す。
	Count(ctx context.Context) (int, error)
}

// ActivityRepository は監査レコードの永続化インターフェース。
// 監査レコードは追記専用であり、更新操作は提供しない。
type ActivityRepository interface {
	// Create は監査レコードを作成する。
	Create(ctx context.Context, activity *model.Activity) error

	// ListRecentByAccountID はアカウントの監査レコードを新しい順に最大limit件返す。
	ListRecentByAccountID(ctx context.Context, accountID string, limit int) ([]*model.Activity, error)

	// ListSince は指定時刻以降に作成された監査レコードを古い順に最大limit件返す。
	// Webhookディスパッチャのポーリングで使用する。
	ListSince(ctx context.Context, since time.Time, limit int) ([]*model.Activity, error)

	// DeleteByAccountID はアカウントの全監査レコードを削除する（冪等）。
	// アカウント消去操作でのみ使用する。
	DeleteByAccountID(ctx context.Context, accountID string) error

	// DeleteOlderThan は指定時刻より古い監査レコードを削除し、削除件数を返す。
	// 保持期間クリーンアップジョブでのみ使用する。
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// ShareRepository は共有データの永続化インターフェース。
type ShareRepository interface {
	// Create は共有レコードを作成する。
	Create(ctx context.Context, share *model.Share) error

	// ListByItemID はアイテムの共有一覧を返す。
	ListByItemID(ctx context.Context, itemID string) ([]*model.Share, error)
}

// WebhookRepository はWebhook登録の永続化インターフェース。
type WebhookRepository interface {
	// Create はWebhook登録を作成する。
	Create(ctx context.Context, webhook *model.Webhook) error

	// ListActive は有効な全Webhook登録を返す。
	ListActive(ctx context.Context) ([]*model.Webhook, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)

	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByAccountID は指定アカウントの全セッションを削除する。
	DeleteByAccountID(ctx context.Context, accountID string) error

	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
