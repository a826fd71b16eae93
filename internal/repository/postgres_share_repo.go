package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/quickstore/internal/model"
)

// PostgresShareRepo はPostgreSQLを使用した共有リポジトリ。
type PostgresShareRepo struct {
	db *sql.DB
}

// NewPostgresShareRepo はPostgresShareRepoを生成する。
func NewPostgresShareRepo(db *sql.DB) *PostgresShareRepo {
	return &PostgresShareRepo{db: db}
}

// Create は共有レコードを作成する。
func (r *PostgresShareRepo) Create(ctx context.Context, share *model.Share) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shares (id, item_id, shared_by, shared_with, permission, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		share.ID, share.ItemID, share.SharedBy, share.SharedWith,
		share.Permission, share.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert share: %w", err)
	}
	return nil
}

// ListByItemID はアイテムの共有一覧を返す。
func (r *PostgresShareRepo) ListByItemID(ctx context.Context, itemID string) ([]*model.Share, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, item_id, shared_by, shared_with, permission, created_at
		 FROM shares WHERE item_id = $1 ORDER BY created_at DESC`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list shares: %w", err)
	}
	defer rows.Close()

	var shares []*model.Share
	for rows.Next() {
		share := &model.Share{}
		if err := rows.Scan(&share.ID, &share.ItemID, &share.SharedBy,
			&share.SharedWith, &share.Permission, &share.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		shares = append(shares, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shares: %w", err)
	}
	return shares, nil
}

// compile-time interface check
var _ ShareRepository = (*PostgresShareRepo)(nil)
