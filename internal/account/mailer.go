package account

import (
	"context"
	"log/slog"
)

// LogMailer はメール送信をログ出力で代替するMailer実装。
// SMTP基盤を持たない環境（開発・テスト）で使用する。
// トークン自体はログに出力しない。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// SendVerificationEmail はメール確認トークンの発行をログに記録する。
func (m *LogMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	m.logger.Info("メール確認トークンを発行しました",
		slog.String("email", email),
	)
	return nil
}

// SendPasswordResetEmail はパスワードリセットトークンの発行をログに記録する。
func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	m.logger.Info("パスワードリセットトークンを発行しました",
		slog.String("email", email),
	)
	return nil
}

var _ Mailer = (*LogMailer)(nil)
