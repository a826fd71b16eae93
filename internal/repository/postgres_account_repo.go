package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/quickstore/internal/model"
)

// accountColumns はSELECT句で使用するaccountsテーブルのカラム一覧。
const accountColumns = `id, email, username, password_hash, role, is_email_verified,
	email_verification_token, email_verification_expiry,
	password_reset_token, password_reset_expiry,
	is_active, last_login, login_attempts, account_created, created_at, updated_at`

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// scanAccount は1行をmodel.Accountにスキャンする。
func scanAccount(row *sql.Row) (*model.Account, error) {
	account := &model.Account{}
	err := row.Scan(
		&account.ID, &account.Email, &account.Username, &account.PasswordHash,
		&account.Role, &account.IsEmailVerified,
		&account.EmailVerificationToken, &account.EmailVerificationExpiry,
		&account.PasswordResetToken, &account.PasswordResetExpiry,
		&account.IsActive, &account.LastLogin, &account.LoginAttempts,
		&account.AccountCreated, &account.CreatedAt, &account.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return account, nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row)
}

// FindByEmail はメールアドレスでアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	return scanAccount(row)
}

// FindByUsername はユーザー名でアカウントを検索する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username)
	return scanAccount(row)
}

// FindByPasswordResetToken はパスワードリセットトークンでアカウントを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByPasswordResetToken(ctx context.Context, token string) (*model.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE password_reset_token = $1`, token)
	return scanAccount(row)
}

// Create はアカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.Account) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, username, password_hash, role, is_email_verified,
			email_verification_token, email_verification_expiry,
			password_reset_token, password_reset_expiry,
			is_active, last_login, login_attempts, account_created, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		account.ID, account.Email, account.Username, account.PasswordHash,
		account.Role, account.IsEmailVerified,
		account.EmailVerificationToken, account.EmailVerificationExpiry,
		account.PasswordResetToken, account.PasswordResetExpiry,
		account.IsActive, account.LastLogin, account.LoginAttempts,
		account.AccountCreated, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// Update はアカウント情報を上書き更新する。
func (r *PostgresAccountRepo) Update(ctx context.Context, account *model.Account) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET email = $2, username = $3, password_hash = $4, role = $5,
			is_email_verified = $6,
			email_verification_token = $7, email_verification_expiry = $8,
			password_reset_token = $9, password_reset_expiry = $10,
			is_active = $11, last_login = $12, login_attempts = $13, updated_at = $14
		 WHERE id = $1`,
		account.ID, account.Email, account.Username, account.PasswordHash, account.Role,
		account.IsEmailVerified,
		account.EmailVerificationToken, account.EmailVerificationExpiry,
		account.PasswordResetToken, account.PasswordResetExpiry,
		account.IsActive, account.LastLogin, account.LoginAttempts, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %s", account.ID)
	}
	return nil
}

// DeleteByID は指定IDのアカウントを削除する。
func (r *PostgresAccountRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("account not found: %s", id)
	}
	return nil
}

// ClearExpiredTokens は有効期限を超過したメール確認トークンと
// パスワードリセットトークンをクリアし、対象アカウント数を返す。
func (r *PostgresAccountRepo) ClearExpiredTokens(ctx context.Context) (int64, error) {
	var cleared int64

	result, err := r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET email_verification_token = NULL, email_verification_expiry = NULL
		 WHERE email_verification_expiry IS NOT NULL AND email_verification_expiry < now()`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired verification tokens: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		cleared += n
	}

	result, err = r.db.ExecContext(ctx,
		`UPDATE accounts
		 SET password_reset_token = NULL, password_reset_expiry = NULL
		 WHERE password_reset_expiry IS NOT NULL AND password_reset_expiry < now()`)
	if err != nil {
		return cleared, fmt.Errorf("failed to clear expired reset tokens: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		cleared += n
	}

	return cleared, nil
}

// Count は全アカウント数を返す。
func (r *PostgresAccountRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count accounts: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
