// Package model はドメインモデルを定義する。
package model

import "time"

// Role はアカウントの権限ロールを表す。
type Role string

const (
	// RoleUser は一般ユーザーロール。新規作成時のデフォルト。
	RoleUser Role = "user"
	// RoleAdmin は管理者ロール。システム統計の参照が可能。
	RoleAdmin Role = "admin"
)

// Account はサービス利用アカウントを表す。
// 全エンティティの所有権のルートとなる。
// PasswordHashはbcryptハッシュ済みの値のみを保持し、平文は保存しない。
type Account struct {
	ID                      string
	Email                   string
	Username                string
	PasswordHash            string
	Role                    Role
	IsEmailVerified         bool
	EmailVerificationToken  *string
	EmailVerificationExpiry *time.Time
	PasswordResetToken      *string
	PasswordResetExpiry     *time.Time
	IsActive                bool
	LastLogin               *time.Time
	LoginAttempts           int
	AccountCreated          time.Time
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// Session はアカウントのログインセッションを表す。
type Session struct {
	ID        string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}
