package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/quickstore/internal/model"
)

// PostgresFolderRepo はPostgreSQLを使用したフォルダリポジトリ。
type PostgresFolderRepo struct {
	db *sql.DB
}

// NewPostgresFolderRepo はPostgresFolderRepoを生成する。
func NewPostgresFolderRepo(db *sql.DB) *PostgresFolderRepo {
	return &PostgresFolderRepo{db: db}
}

// FindByID は指定IDのフォルダを所有者フィルタなしで取得する。
// 見つからない場合はnilを返す。所有権検証専用。
func (r *PostgresFolderRepo) FindByID(ctx context.Context, id string) (*model.Folder, error) {
	folder := &model.Folder{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, account_id, name, description, color, created_at, updated_at
		 FROM folders WHERE id = $1`,
		id,
	).Scan(&folder.ID, &folder.AccountID, &folder.Name, &folder.Description,
		&folder.Color, &folder.CreatedAt, &folder.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find folder by ID: %w", err)
	}

	return folder, nil
}

// Create は新規フォルダを作成する。
func (r *PostgresFolderRepo) Create(ctx context.Context, folder *model.Folder) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO folders (id, account_id, name, description, color, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		folder.ID, folder.AccountID, folder.Name, folder.Description,
		folder.Color, folder.CreatedAt, folder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert folder: %w", err)
	}
	return nil
}

// Update は既存フォルダを上書き更新する。
// account_idとcreated_atは更新対象に含めない（所有者は不変）。
func (r *PostgresFolderRepo) Update(ctx context.Context, folder *model.Folder) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE folders SET name = $2, description = $3, color = $4, updated_at = $5
		 WHERE id = $1`,
		folder.ID, folder.Name, folder.Description, folder.Color, folder.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update folder: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("folder not found: %s", folder.ID)
	}
	return nil
}

// DeleteByID は指定IDのフォルダを削除する。
// 所属アイテムのfolder_idはON DELETE SET NULLでNULLに戻る。
func (r *PostgresFolderRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete folder: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("folder not found: %s", id)
	}
	return nil
}

// DeleteByAccountID はアカウントの全フォルダを削除する（冪等）。
func (r *PostgresFolderRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM folders WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete folders by account: %w", err)
	}
	return nil
}

// ListByAccountID はアカウントの全フォルダを名前昇順で返す。
func (r *PostgresFolderRepo) ListByAccountID(ctx context.Context, accountID string) ([]*model.Folder, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, name, description, color, created_at, updated_at
		 FROM folders WHERE account_id = $1 ORDER BY name ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*model.Folder
	for rows.Next() {
		folder := &model.Folder{}
		if err := rows.Scan(&folder.ID, &folder.AccountID, &folder.Name, &folder.Description,
			&folder.Color, &folder.CreatedAt, &folder.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folders: %w", err)
	}
	return folders, nil
}

// ExistsByAccountIDAndName は同一アカウント内に同名（大文字小文字を区別する完全一致）の
// フォルダが存在するかを返す。excludeIDが空でない場合はそのIDを除外する。
func (r *PostgresFolderRepo) ExistsByAccountIDAndName(ctx context.Context, accountID, name, excludeID string) (bool, error) {
	var exists bool
	var err error
	if excludeID != "" {
		err = r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM folders WHERE account_id = $1 AND name = $2 AND id <> $3)`,
			accountID, name, excludeID).Scan(&exists)
	} else {
		err = r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM folders WHERE account_id = $1 AND name = $2)`,
			accountID, name).Scan(&exists)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check folder name existence: %w", err)
	}
	return exists, nil
}

// CountByAccountID はアカウントのフォルダ数を返す。
func (r *PostgresFolderRepo) CountByAccountID(ctx context.Context, accountID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM folders WHERE account_id = $1`, accountID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count folders: %w", err)
	}
	return count, nil
}

// Count は全フォルダ数を返す。
func (r *PostgresFolderRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM folders`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count folders: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ FolderRepository = (*PostgresFolderRepo)(nil)
