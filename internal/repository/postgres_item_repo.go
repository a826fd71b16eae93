package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/quickstore/internal/model"
)

// PostgresItemRepo はPostgreSQLを使用したアイテムリポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

// FindByID は指定IDのアイテムを所有者フィルタなしで取得する。
// 見つからない場合はnilを返す。所有権検証専用。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id string) (*model.Item, error) {
	item := &model.Item{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, type, title, content, folder_id, tags, is_favorite, created_at, updated_at
		 FROM items WHERE id = $1`,
		id,
	).Scan(&item.ID, &item.AccountID, &item.Type, &item.Title, &item.Content,
		&item.FolderID, pq.Array(&item.Tags), &item.IsFavorite, &item.CreatedAt, &item.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item by ID: %w", err)
	}

	return item, nil
}

// Create は新規アイテムを作成する。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.Item) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, account_id, type, title, content, folder_id, tags, is_favorite, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		item.ID, item.AccountID, item.Type, item.Title, item.Content,
		item.FolderID, pq.Array(item.Tags), item.IsFavorite, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

// Update は既存アイテムを上書き更新する。
// account_idとcreated_atは更新対象に含めない（所有者は不変）。
func (r *PostgresItemRepo) Update(ctx context.Context, item *model.Item) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE items SET type = $2, title = $3, content = $4, folder_id = $5,
			tags = $6, is_favorite = $7, updated_at = $8
		 WHERE id = $1`,
		item.ID, item.Type, item.Title, item.Content, item.FolderID,
		pq.Array(item.Tags), item.IsFavorite, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("item not found: %s", item.ID)
	}
	return nil
}

// DeleteByID は指定IDのアイテムを削除する。
func (r *PostgresItemRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("item not found: %s", id)
	}
	return nil
}

// DeleteByAccountID はアカウントの全アイテムを削除する（冪等）。
func (r *PostgresItemRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete items by account: %w", err)
	}
	return nil
}

// ListByAccountID はアカウントの全アイテムを作成日時降順で返す。
func (r *PostgresItemRepo) ListByAccountID(ctx context.Context, accountID string) ([]*model.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, type, title, content, folder_id, tags, is_favorite, created_at, updated_at
		 FROM items WHERE account_id = $1 ORDER BY created_at DESC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []*model.Item
	for rows.Next() {
		item := &model.Item{}
		if err := rows.Scan(&item.ID, &item.AccountID, &item.Type, &item.Title, &item.Content,
			&item.FolderID, pq.Array(&item.Tags), &item.IsFavorite, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return items, nil
}

// Search は検索条件に一致するアイテムをフォルダ名付きで返す。
// タイトル・本文への部分一致はILIKEで大文字小文字を区別しない。
// タグ条件は「指定された全タグを含む」（@>演算子）。
// 作成日時降順、limit/skipによるページネーション。
func (r *PostgresItemRepo) Search(ctx context.Context, q model.ItemSearchQuery) ([]model.ItemWithFolder, error) {
	var conditions []string
	var args []any

	args = append(args, q.AccountID)
	conditions = append(conditions, fmt.Sprintf("i.account_id = $%d", len(args)))

	if strings.TrimSpace(q.Query) != "" {
		args = append(args, "%"+escapeLikePattern(q.Query)+"%")
		n := len(args)
		conditions = append(conditions, fmt.Sprintf("(i.title ILIKE $%d OR i.content ILIKE $%d)", n, n))
	}
	if q.Type != nil {
		args = append(args, *q.Type)
		conditions = append(conditions, fmt.Sprintf("i.type = $%d", len(args)))
	}
	if q.FolderID != nil {
		args = append(args, *q.FolderID)
		conditions = append(conditions, fmt.Sprintf("i.folder_id = $%d", len(args)))
	}
	if len(q.Tags) > 0 {
		args = append(args, pq.Array(q.Tags))
		conditions = append(conditions, fmt.Sprintf("i.tags @> $%d", len(args)))
	}
	if q.IsFavorite != nil {
		args = append(args, *q.IsFavorite)
		conditions = append(conditions, fmt.Sprintf("i.is_favorite = $%d", len(args)))
	}

	args = append(args, q.Limit)
	limitPos := len(args)
	args = append(args, q.Skip)
	skipPos := len(args)

	query := fmt.Sprintf(
		`SELECT i.id, i.account_id, i.type, i.title, i.content, i.folder_id, i.tags,
			i.is_favorite, i.created_at, i.updated_at, f.name
		 FROM items i
		 LEFT JOIN folders f ON f.id = i.folder_id
		 WHERE %s
		 ORDER BY i.created_at DESC
		 LIMIT $%d OFFSET $%d`,
		strings.Join(conditions, " AND "), limitPos, skipPos,
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	defer rows.Close()

	var results []model.ItemWithFolder
	for rows.Next() {
		var iwf model.ItemWithFolder
		if err := rows.Scan(&iwf.ID, &iwf.AccountID, &iwf.Type, &iwf.Title, &iwf.Content,
			&iwf.FolderID, pq.Array(&iwf.Tags), &iwf.IsFavorite,
			&iwf.CreatedAt, &iwf.UpdatedAt, &iwf.FolderName); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, iwf)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}
	return results, nil
}

// CountByAccountID はアカウントの全アイテム数を返す。
func (r *PostgresItemRepo) CountByAccountID(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// CountByAccountIDAndType はアカウントの種別ごとのアイテム数を返す。
func (r *PostgresItemRepo) CountByAccountIDAndType(ctx context.Context, accountID string, itemType model.ItemType) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE account_id = $1 AND type = $2`,
		accountID, itemType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items by type: %w", err)
	}
	return count, nil
}

// CountFavoritesByAccountID はアカウントのお気に入りアイテム数を返す。
func (r *PostgresItemRepo) CountFavoritesByAccountID(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM items WHERE account_id = $1 AND is_favorite = TRUE`,
		accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count favorite items: %w", err)
	}
	return count, nil
}

// Count は全アイテム数を返す。
func (r *PostgresItemRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// escapeLikePattern はLIKE/ILIKEパターン内のメタ文字をエスケープする。
// 検索文字列はリテラルな部分一致として扱う。
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
