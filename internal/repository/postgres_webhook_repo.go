package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/quickstore/internal/model"
)

// PostgresWebhookRepo はPostgreSQLを使用したWebhookリポジトリ。
type PostgresWebhookRepo struct {
	db *sql.DB
}

// NewPostgresWebhookRepo はPostgresWebhookRepoを生成する。
func NewPostgresWebhookRepo(db *sql.DB) *PostgresWebhookRepo {
	return &PostgresWebhookRepo{db: db}
}

// Create はWebhook登録を作成する。
func (r *PostgresWebhookRepo) Create(ctx context.Context, webhook *model.Webhook) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhooks (id, account_id, url, events, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		webhook.ID, webhook.AccountID, webhook.URL, pq.Array(webhook.Events),
		webhook.IsActive, webhook.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert webhook: %w", err)
	}
	return nil
}

// ListActive は有効な全Webhook登録を返す。
func (r *PostgresWebhookRepo) ListActive(ctx context.Context) ([]*model.Webhook, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, account_id, url, events, is_active, created_at
		 FROM webhooks WHERE is_active = TRUE`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active webhooks: %w", err)
	}
	defer rows.Close()

	var webhooks []*model.Webhook
	for rows.Next() {
		webhook := &model.Webhook{}
		if err := rows.Scan(&webhook.ID, &webhook.AccountID, &webhook.URL,
			pq.Array(&webhook.Events), &webhook.IsActive, &webhook.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		webhooks = append(webhooks, webhook)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhooks: %w", err)
	}
	return webhooks, nil
}

// compile-time interface check
var _ WebhookRepository = (*PostgresWebhookRepo)(nil)
