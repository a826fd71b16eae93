// Package account はアカウント管理のドメインロジックを提供する。
// 登録・ログイン・メール確認・パスワードリセット・データエクスポート・
// アカウント消去を扱う。
package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/quickstore/internal/audit"
	"github.com/hitoshi/quickstore/internal/metrics"
	"github.com/hitoshi/quickstore/internal/model"
	"github.com/hitoshi/quickstore/internal/repository"
)

// トークン・セッションの有効期限
const (
	EmailVerificationTTL = 24 * time.Hour
	PasswordResetTTL     = 1 * time.Hour
	DefaultSessionTTL    = 7 * 24 * time.Hour
)

const (
	minPasswordLength = 8
	minUsernameLength = 3
	maxUsernameLength = 30

	// deleteConfirmation はアカウント消去時に要求される確認リテラル。
	deleteConfirmation = "DELETE"

	// exportActivityLimit はエクスポートに含める監査レコードの上限件数。
	exportActivityLimit = 1000
)

var (
	// emailPattern はメールアドレスの形式チェック。
	// local@domain.tld の形状のみを検証し、RFC完全準拠は狙わない。
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// usernamePattern はユーザー名の形式チェック。英数字とアンダースコアのみ。
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// Mailer はアカウント関連メールの送信インターフェース。
type Mailer interface {
	// SendVerificationEmail はメール確認トークンを送信する。
	SendVerificationEmail(ctx context.Context, email, token string) error
	// SendPasswordResetEmail はパスワードリセットトークンを送信する。
	SendPasswordResetEmail(ctx context.Context, email, token string) error
}

// RegisterInput はアカウント登録リクエストの入力を表す。
type RegisterInput struct {
	Email    string
	Username string
	Password string
}

// UpdateProfileInput はプロフィール更新リクエストの入力を表す。
type UpdateProfileInput struct {
	Email    string
	Username string
}

// ExportData はアカウントの全データエクスポートを表す。
type ExportData struct {
	Profile    ExportProfile     `json:"profile"`
	Items      []*model.Item     `json:"items"`
	Folders    []*model.Folder   `json:"folders"`
	Activities []*model.Activity `json:"activities"`
	ExportedAt time.Time         `json:"exportedAt"`
}

// ExportProfile はエクスポートに含めるプロフィール情報。
// パスワードハッシュとトークン類は含めない。
type ExportProfile struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Username        string    `json:"username"`
	Role            string    `json:"role"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	AccountCreated  time.Time `json:"accountCreated"`
}

// Service はアカウント管理のサービス層。
type Service struct {
	accountRepo  repository.AccountRepository
	sessionRepo  repository.SessionRepository
	itemRepo     repository.ItemRepository
	folderRepo   repository.FolderRepository
	activityRepo repository.ActivityRepository
	recorder     audit.Recorder
	mailer       Mailer
	logger       *slog.Logger
	metrics      metrics.Recorder
	sessionTTL   time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
// sessionTTLが0以下の場合はDefaultSessionTTLを使用する。metricsはnilを許容する。
func NewService(
	accountRepo repository.AccountRepository,
	sessionRepo repository.SessionRepository,
	itemRepo repository.ItemRepository,
	folderRepo repository.FolderRepository,
	activityRepo repository.ActivityRepository,
	recorder audit.Recorder,
	mailer Mailer,
	logger *slog.Logger,
	m metrics.Recorder,
	sessionTTL time.Duration,
) *Service {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Service{
		accountRepo:  accountRepo,
		sessionRepo:  sessionRepo,
		itemRepo:     itemRepo,
		folderRepo:   folderRepo,
		activityRepo: activityRepo,
		recorder:     recorder,
		mailer:       mailer,
		logger:       logger,
		metrics:      m,
		sessionTTL:   sessionTTL,
	}
}

// Register は新規アカウントを検証して作成する。
// 作成時デフォルト（role=user, isEmailVerified=false, isActive=true,
// lastLogin=nil, loginAttempts=0, accountCreated=now）は作成時にのみ適用される。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Account, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	username := strings.TrimSpace(in.Username)

	if err := s.validateEmail(email); err != nil {
		return nil, err
	}
	if err := s.validateUsername(username); err != nil {
		return nil, err
	}
	if err := s.validatePassword(in.Password); err != nil {
		return nil, err
	}

	existing, err := s.accountRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, s.validationFailed("このメールアドレスは既に登録されています。")
	}
	existing, err = s.accountRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, s.validationFailed("このユーザー名は既に使用されています。")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	account := &model.Account{
		ID:              uuid.New().String(),
		Email:           email,
		Username:        username,
		PasswordHash:    string(hash),
		Role:            model.RoleUser,
		IsEmailVerified: false,
		IsActive:        true,
		LastLogin:       nil,
		LoginAttempts:   0,
		AccountCreated:  now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordMutation("account", "created")
	}
	s.logger.Info("アカウントを登録しました",
		slog.String("account_id", account.ID),
		slog.String("username", account.Username),
	)

	return account, nil
}

// UpdateProfile はメールアドレスとユーザー名を検証して更新する。
// 作成時デフォルトは再適用されない。
func (s *Service) UpdateProfile(ctx context.Context, accountID string, in UpdateProfileInput) (*model.Account, error) {
	if accountID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError()
	}

	email := strings.TrimSpace(strings.ToLower(in.Email))
	username := strings.TrimSpace(in.Username)

	if err := s.validateEmail(email); err != nil {
		return nil, err
	}
	if err := s.validateUsername(username); err != nil {
		return nil, err
	}

	if email != account.Email {
		other, err := s.accountRepo.FindByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, s.validationFailed("このメールアドレスは既に登録されています。")
		}
		// メールアドレス変更時は確認済みフラグをリセットする
		account.IsEmailVerified = false
	}
	if username != account.Username {
		other, err := s.accountRepo.FindByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if other != nil {
			return nil, s.validationFailed("このユーザー名は既に使用されています。")
		}
	}

	account.Email = email
	account.Username = username
	account.UpdatedAt = time.Now()

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordMutation("account", "updated")
	}

	return account, nil
}

// Login はメールアドレスとパスワードで認証してセッションを生成する。
// 認証失敗時はアカウントの存在有無を区別しないエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, *model.Account, error) {
	account, err := s.accountRepo.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil, nil, err
	}
	if account == nil || !account.IsActive {
		return nil, nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		account.LoginAttempts++
		account.UpdatedAt = time.Now()
		if updateErr := s.accountRepo.Update(ctx, account); updateErr != nil {
			s.logger.Warn("ログイン試行回数の更新に失敗しました",
				slog.String("account_id", account.ID),
				slog.String("error", updateErr.Error()),
			)
		}
		return nil, nil, model.NewInvalidCredentialsError()
	}

	now := time.Now()
	account.LastLogin = &now
	account.LoginAttempts = 0
	account.UpdatedAt = now
	if err := s.accountRepo.Update(ctx, account); err != nil {
		return nil, nil, err
	}

	sessionID, err := generateToken()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate session ID: %w", err)
	}
	session := &model.Session{
		ID:        sessionID,
		AccountID: account.ID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, nil, err
	}

	s.logger.Info("ログインしました",
		slog.String("account_id", account.ID),
	)

	return session, account, nil
}

// Logout はセッションを削除する。存在しないセッションでもエラーにならない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessionRepo.DeleteByID(ctx, sessionID)
}

// SendVerificationEmail はメール確認トークンを発行して送信する。
// トークンの有効期限は24時間。再送信のたびに新しいトークンで上書きされる。
func (s *Service) SendVerificationEmail(ctx context.Context, accountID string) error {
	if accountID == "" {
		return model.NewUnauthenticatedError()
	}

	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return model.NewAccountNotFoundError()
	}
	if account.IsEmailVerified {
		return s.validationFailed("メールアドレスは既に確認済みです。")
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate verification token: %w", err)
	}
	expiry := time.Now().Add(EmailVerificationTTL)

	account.EmailVerificationToken = &token
	account.EmailVerificationExpiry = &expiry
	account.UpdatedAt = time.Now()

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return err
	}

	if err := s.mailer.SendVerificationEmail(ctx, account.Email, token); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}

	return nil
}

// VerifyEmail はメール確認トークンを検証して確認済みフラグを立てる。
// 成功時にトークンは消去されるため、同一トークンの再利用は失敗する。
func (s *Service) VerifyEmail(ctx context.Context, accountID, token string) error {
	if accountID == "" {
		return model.NewUnauthenticatedError()
	}

	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return model.NewAccountNotFoundError()
	}

	if account.EmailVerificationToken == nil || token == "" || *account.EmailVerificationToken != token {
		return model.NewInvalidTokenError()
	}
	if account.EmailVerificationExpiry == nil || time.Now().After(*account.EmailVerificationExpiry) {
		return model.NewTokenExpiredError()
	}

	account.IsEmailVerified = true
	account.EmailVerificationToken = nil
	account.EmailVerificationExpiry = nil
	account.UpdatedAt = time.Now()

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return err
	}

	s.recorder.Record(ctx, accountID, model.ActionEmailVerified, nil)

	return nil
}

// RequestPasswordReset はパスワードリセットトークンを発行して送信する。
// アカウントの存在有無にかかわらず成功を返す（列挙攻撃対策）。
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	account, err := s.accountRepo.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return err
	}
	if account == nil {
		// 未登録メールアドレスでも同じ応答を返す
		return nil
	}

	token, err := generateToken()
	if err != nil {
		return fmt.Errorf("failed to generate reset token: %w", err)
	}
	expiry := time.Now().Add(PasswordResetTTL)

	account.PasswordResetToken = &token
	account.PasswordResetExpiry = &expiry
	account.UpdatedAt = time.Now()

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return err
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, account.Email, token); err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}

	return nil
}

// ResetPassword はリセットトークンを検証して新しいパスワードを設定する。
// 成功時にトークンと既存の全セッションが消去される。
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.validatePassword(newPassword); err != nil {
		return err
	}
	if token == "" {
		return model.NewInvalidTokenError()
	}

	account, err := s.accountRepo.FindByPasswordResetToken(ctx, token)
	if err != nil {
		return err
	}
	if account == nil {
		return model.NewInvalidTokenError()
	}
	if account.PasswordResetExpiry == nil || time.Now().After(*account.PasswordResetExpiry) {
		return model.NewTokenExpiredError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	account.PasswordHash = string(hash)
	account.PasswordResetToken = nil
	account.PasswordResetExpiry = nil
	account.UpdatedAt = time.Now()

	if err := s.accountRepo.Update(ctx, account); err != nil {
		return err
	}

	// パスワード変更後は既存セッションを全て無効化する
	if err := s.sessionRepo.DeleteByAccountID(ctx, account.ID); err != nil {
		s.logger.Warn("セッションの無効化に失敗しました",
			slog.String("account_id", account.ID),
			slog.String("error", err.Error()),
		)
	}

	s.recorder.Record(ctx, account.ID, model.ActionPasswordReset, nil)

	return nil
}

// ExportUserData はアカウントの全データをエクスポートする。
// 監査レコードは新しい順に最大1000件まで含まれる。
func (s *Service) ExportUserData(ctx context.Context, accountID string) (*ExportData, error) {
	if accountID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	account, err := s.accountRepo.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError()
	}

	items, err := s.itemRepo.ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	folders, err := s.folderRepo.ListByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	activities, err := s.activityRepo.ListRecentByAccountID(ctx, accountID, exportActivityLimit)
	if err != nil {
		return nil, err
	}

	return &ExportData{
		Profile: ExportProfile{
			ID:              account.ID,
			Email:           account.Email,
			Username:        account.Username,
			Role:            string(account.Role),
			IsEmailVerified: account.IsEmailVerified,
			AccountCreated:  account.AccountCreated,
		},
		Items:      items,
		Folders:    folders,
		Activities: activities,
		ExportedAt: time.Now(),
	}, nil
}

// DeleteAccount はアカウントと所有データを全て消去する。
// 確認リテラル "DELETE" の指定が必須。
// 削除はアイテム → フォルダ → 監査レコード → セッション → アカウント本体の順に
// 逐次実行され、途中で失敗してもリトライで再開できる（各削除は冪等）。
func (s *Service) DeleteAccount(ctx context.Context, accountID, confirmation string) error {
	if accountID == "" {
		return model.NewUnauthenticatedError()
	}
	if confirmation != deleteConfirmation {
		return s.validationFailed("アカウントを削除するには確認文字列 DELETE を入力してください。")
	}

	if err := s.itemRepo.DeleteByAccountID(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	if err := s.folderRepo.DeleteByAccountID(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete folders: %w", err)
	}
	if err := s.activityRepo.DeleteByAccountID(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete activities: %w", err)
	}
	if err := s.sessionRepo.DeleteByAccountID(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if err := s.accountRepo.DeleteByID(ctx, accountID); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordMutation("account", "deleted")
	}
	s.logger.Info("アカウントを消去しました",
		slog.String("account_id", accountID),
	)

	return nil
}

// --- バリデーション ---

func (s *Service) validateEmail(email string) error {
	if email == "" {
		return s.validationFailed("メールアドレスは必須です。")
	}
	if !emailPattern.MatchString(email) {
		return s.validationFailed("メールアドレスの形式が正しくありません。")
	}
	return nil
}

func (s *Service) validateUsername(username string) error {
	length := len([]rune(username))
	if length < minUsernameLength || length > maxUsernameLength {
		return s.validationFailed("ユーザー名は3〜30文字で入力してください。")
	}
	if !usernamePattern.MatchString(username) {
		return s.validationFailed("ユーザー名は英数字とアンダースコアのみ使用できます。")
	}
	return nil
}

func (s *Service) validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return s.validationFailed("パスワードは8文字以上で入力してください。")
	}
	return nil
}

func (s *Service) validationFailed(message string) error {
	if s.metrics != nil {
		s.metrics.RecordValidationFailure(model.ErrCodeValidationFailed)
	}
	return model.NewValidationError(message)
}

// generateToken は暗号学的に安全な32バイトの乱数を16進文字列で返す。
// セッションIDおよびメール確認・パスワードリセットトークンに使用する。
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
