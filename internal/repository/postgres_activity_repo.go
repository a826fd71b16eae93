package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hitoshi/quickstore/internal/model"
)

// PostgresActivityRepo はPostgreSQLを使用した監査レコードリポジトリ。
// 監査レコードは追記専用であり、UPDATE文は存在しない。
type PostgresActivityRepo struct {
	db *sql.DB
}

// NewPostgresActivityRepo はPostgresActivityRepoを生成する。
func NewPostgresActivityRepo(db *sql.DB) *PostgresActivityRepo {
	return &PostgresActivityRepo{db: db}
}

// Create は監査レコードを作成する。detailsはJSONBとして保存する。
func (r *PostgresActivityRepo) Create(ctx context.Context, activity *model.Activity) error {
	details, err := json.Marshal(activity.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal activity details: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO activities (id, account_id, action, details, ip_address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		activity.ID, activity.AccountID, activity.Action, details,
		activity.IPAddress, activity.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// ListRecentByAccountID はアカウントの監査レコードを新しい順に最大limit件返す。
func (r *PostgresActivityRepo) ListRecentByAccountID(ctx context.Context, accountID string, limit int) ([]*model.Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, action, details, ip_address, created_at
		 FROM activities WHERE account_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// ListSince は指定時刻以降に作成された監査レコードを古い順に最大limit件返す。
func (r *PostgresActivityRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]*model.Activity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, action, details, ip_address, created_at
		 FROM activities WHERE created_at > $1
		 ORDER BY created_at ASC LIMIT $2`,
		since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities since: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// DeleteByAccountID はアカウントの全監査レコードを削除する（冪等）。
func (r *PostgresActivityRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE account_id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete activities by account: %w", err)
	}
	return nil
}

// DeleteOlderThan は指定時刻より古い監査レコードを削除し、削除件数を返す。
func (r *PostgresActivityRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM activities WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old activities: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// scanActivities は結果セットをmodel.Activityのスライスにスキャンする。
func scanActivities(rows *sql.Rows) ([]*model.Activity, error) {
	var activities []*model.Activity
	for rows.Next() {
		activity := &model.Activity{}
		var details []byte
		if err := rows.Scan(&activity.ID, &activity.AccountID, &activity.Action,
			&details, &activity.IPAddress, &activity.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &activity.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activity details: %w", err)
			}
		}
		activities = append(activities, activity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activities: %w", err)
	}
	return activities, nil
}

// compile-time interface check
var _ ActivityRepository = (*PostgresActivityRepo)(nil)
