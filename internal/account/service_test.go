package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/quickstore/internal/model"
	"github.com/hitoshi/quickstore/internal/repository"
)

// --- モック ---

type mockAccountRepo struct {
	findByIDFn         func(ctx context.Context, id string) (*model.Account, error)
	findByEmailFn      func(ctx context.Context, email string) (*model.Account, error)
	findByUsernameFn   func(ctx context.Context, username string) (*model.Account, error)
	findByResetTokenFn func(ctx context.Context, token string) (*model.Account, error)
	createFn           func(ctx context.Context, account *model.Account) error
	updateFn           func(ctx context.Context, account *model.Account) error
	deleteFn           func(ctx context.Context, id string) error
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.Account, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}
func (m *mockAccountRepo) FindByUsername(ctx context.Context, username string) (*model.Account, error) {
	if m.findByUsernameFn != nil {
		return m.findByUsernameFn(ctx, username)
	}
	return nil, nil
}
func (m *mockAccountRepo) FindByPasswordResetToken(ctx context.Context, token string) (*model.Account, error) {
	if m.findByResetTokenFn != nil {
		return m.findByResetTokenFn(ctx, token)
	}
	return nil, nil
}
func (m *mockAccountRepo) Create(ctx context.Context, account *model.Account) error {
	if m.createFn != nil {
		return m.createFn(ctx, account)
	}
	return nil
}
func (m *mockAccountRepo) Update(ctx context.Context, account *model.Account) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, account)
	}
	return nil
}
func (m *mockAccountRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}
func (m *mockAccountRepo) ClearExpiredTokens(ctx context.Context) (int64, error) { return 0, nil }
func (m *mockAccountRepo) Count(ctx context.Context) (int, error)                { return 0, nil }

var _ repository.AccountRepository = (*mockAccountRepo)(nil)

type mockSessionRepo struct {
	createFn          func(ctx context.Context, session *model.Session) error
	deleteByAccountFn func(ctx context.Context, accountID string) error
	deletedSessions   []string
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}
func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	m.deletedSessions = append(m.deletedSessions, id)
	return nil
}
func (m *mockSessionRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	if m.deleteByAccountFn != nil {
		return m.deleteByAccountFn(ctx, accountID)
	}
	return nil
}
func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) { return 0, nil }

var _ repository.SessionRepository = (*mockSessionRepo)(nil)

// erasureTracker はアカウント消去の削除順序を記録する。
type erasureTracker struct {
	order []string
}

type trackedItemRepo struct {
	repository.ItemRepository
	tracker *erasureTracker
	items   []*model.Item
}

func (m *trackedItemRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	m.tracker.order = append(m.tracker.order, "items")
	return nil
}
func (m *trackedItemRepo) ListByAccountID(ctx context.Context, accountID string) ([]*model.Item, error) {
	return m.items, nil
}

type trackedFolderRepo struct {
	repository.FolderRepository
	tracker *erasureTracker
	folders []*model.Folder
}

func (m *trackedFolderRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	m.tracker.order = append(m.tracker.order, "folders")
	return nil
}
func (m *trackedFolderRepo) ListByAccountID(ctx context.Context, accountID string) ([]*model.Folder, error) {
	return m.folders, nil
}

type trackedActivityRepo struct {
	repository.ActivityRepository
	tracker   *erasureTracker
	listLimit int
}

func (m *trackedActivityRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	m.tracker.order = append(m.tracker.order, "activities")
	return nil
}
func (m *trackedActivityRepo) ListRecentByAccountID(ctx context.Context, accountID string, limit int) ([]*model.Activity, error) {
	m.listLimit = limit
	return []*model.Activity{{ID: "activity-1", AccountID: accountID}}, nil
}

type trackedSessionRepo struct {
	mockSessionRepo
	tracker *erasureTracker
}

func (m *trackedSessionRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	m.tracker.order = append(m.tracker.order, "sessions")
	return nil
}

type recordedAudit struct {
	accountID string
	action    string
}

type mockRecorder struct {
	records []recordedAudit
}

func (m *mockRecorder) Record(ctx context.Context, accountID, action string, details map[string]any) {
	m.records = append(m.records, recordedAudit{accountID, action})
}

type mockMailer struct {
	verificationSent []string
	resetSent        []string
	lastToken        string
}

func (m *mockMailer) SendVerificationEmail(ctx context.Context, email, token string) error {
	m.verificationSent = append(m.verificationSent, email)
	m.lastToken = token
	return nil
}
func (m *mockMailer) SendPasswordResetEmail(ctx context.Context, email, token string) error {
	m.resetSent = append(m.resetSent, email)
	m.lastToken = token
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type testDeps struct {
	accountRepo *mockAccountRepo
	sessionRepo *mockSessionRepo
	recorder    *mockRecorder
	mailer      *mockMailer
}

func newTestService(accountRepo *mockAccountRepo) (*Service, *testDeps) {
	deps := &testDeps{
		accountRepo: accountRepo,
		sessionRepo: &mockSessionRepo{},
		recorder:    &mockRecorder{},
		mailer:      &mockMailer{},
	}
	svc := NewService(
		deps.accountRepo, deps.sessionRepo,
		nil, nil, nil,
		deps.recorder, deps.mailer, testLogger(), nil, 0,
	)
	return svc, deps
}

func assertAPIErrorCode(t *testing.T, err error, wantCode string) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != wantCode {
		t.Errorf("expected code %s, got %s", wantCode, apiErr.Code)
	}
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

// --- Register ---

// TestRegister は正常系で作成時デフォルトが適用されることを検証する。
func TestRegister(t *testing.T) {
	var created *model.Account
	repo := &mockAccountRepo{
		createFn: func(ctx context.Context, account *model.Account) error {
			created = account
			return nil
		},
	}
	svc, _ := newTestService(repo)

	account, err := svc.Register(context.Background(), RegisterInput{
		Email:    "Taro@Example.COM",
		Username: "taro_123",
		Password: "secret-password",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created == nil {
		t.Fatal("account should be persisted")
	}
	if account.Email != "taro@example.com" {
		t.Errorf("email should be lowercased, got %q", account.Email)
	}
	if account.Role != model.RoleUser {
		t.Errorf("expected default role user, got %s", account.Role)
	}
	if account.IsEmailVerified {
		t.Error("new account must not be email-verified")
	}
	if !account.IsActive {
		t.Error("new account must be active")
	}
	if account.LastLogin != nil {
		t.Error("new account must have nil lastLogin")
	}
	if account.LoginAttempts != 0 {
		t.Errorf("expected 0 login attempts, got %d", account.LoginAttempts)
	}
	if account.AccountCreated.IsZero() {
		t.Error("accountCreated should be set")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte("secret-password")); err != nil {
		t.Error("password hash should verify against the original password")
	}
	if account.PasswordHash == "secret-password" {
		t.Error("password must not be stored in plaintext")
	}
}

// TestRegister_Validation は登録バリデーションの各境界を検証する。
func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input RegisterInput
	}{
		{"不正なメール形式", RegisterInput{Email: "not-an-email", Username: "taro", Password: "password1"}},
		{"ドメインにドットなし", RegisterInput{Email: "taro@localhost", Username: "taro", Password: "password1"}},
		{"ユーザー名2文字", RegisterInput{Email: "taro@example.com", Username: "ab", Password: "password1"}},
		{"ユーザー名31文字", RegisterInput{Email: "taro@example.com", Username: "a234567890123456789012345678901", Password: "password1"}},
		{"ユーザー名に記号", RegisterInput{Email: "taro@example.com", Username: "taro-123", Password: "password1"}},
		{"パスワード7文字", RegisterInput{Email: "taro@example.com", Username: "taro", Password: "1234567"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(&mockAccountRepo{})
			_, err := svc.Register(context.Background(), tt.input)
			assertAPIErrorCode(t, err, model.ErrCodeValidationFailed)
		})
	}
}

// TestRegister_DuplicateEmail はメールアドレス重複が拒否されることを検証する。
func TestRegister_DuplicateEmail(t *testing.T) {
	repo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			return &model.Account{ID: "existing"}, nil
		},
	}
	svc, _ := newTestService(repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Email: "taro@example.com", Username: "taro", Password: "password1",
	})
	assertAPIErrorCode(t, err, model.ErrCodeValidationFailed)
}

// --- Login ---

// TestLogin は正常系でセッションが生成され、lastLoginが更新されることを検証する。
func TestLogin(t *testing.T) {
	stored := &model.Account{
		ID:            "account-1",
		Email:         "taro@example.com",
		PasswordHash:  mustHash(t, "password1"),
		IsActive:      true,
		LoginAttempts: 3,
	}
	repo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			if email == "taro@example.com" {
				return stored, nil
			}
			return nil, nil
		},
	}
	svc, deps := newTestService(repo)

	var createdSession *model.Session
	deps.sessionRepo.createFn = func(ctx context.Context, session *model.Session) error {
		createdSession = session
		return nil
	}

	session, account, err := svc.Login(context.Background(), "Taro@Example.com", "password1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID == "" {
		t.Error("session ID should be generated")
	}
	if session.AccountID != "account-1" {
		t.Errorf("expected session for account-1, got %s", session.AccountID)
	}
	if !session.ExpiresAt.After(time.Now()) {
		t.Error("session should expire in the future")
	}
	if createdSession == nil {
		t.Error("session should be persisted")
	}
	if account.LastLogin == nil {
		t.Error("lastLogin should be set on login")
	}
	if account.LoginAttempts != 0 {
		t.Errorf("login attempts should reset, got %d", account.LoginAttempts)
	}
}

// TestLogin_WrongPassword はパスワード不一致で認証が失敗し、
// 試行回数が加算されることを検証する。
func TestLogin_WrongPassword(t *testing.T) {
	stored := &model.Account{
		ID:           "account-1",
		Email:        "taro@example.com",
		PasswordHash: mustHash(t, "password1"),
		IsActive:     true,
	}
	repo := &mockAccountRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.Account, error) {
			return stored, nil
		},
	}
	svc, _ := newTestService(repo)

	_, _, err := svc.Login(context.Background(), "taro@example.com", "wrong-password")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)
	if stored.LoginAttempts != 1 {
		t.Errorf("expected 1 login attempt, got %d", stored.LoginAttempts)
	}
}

// TestLogin_UnknownEmail は未登録メールアドレスでも同じエラーコードを返すことを検証する。
func TestLogin_UnknownEmail(t *testing.T) {
	svc, _ := newTestService(&mockAccountRepo{})

	_, _, err := svc.Login(context.Background(), "unknown@example.com", "password1")
	assertAPIErrorCode(t, err, model.ErrCodeInvalidCredentials)
}

// --- メール確認 ---

// TestVerifyEmail は正常系でフラグが立ち、トークンが消去され、
// 監査レコードが追記されることを検証する。
func TestVerifyEmail(t *testing.T) {
	token := "verification-token"
	expiry := time.Now().Add(time.Hour)
	stored := &model.Account{
		ID:                      "account-1",
		EmailVerificationToken:  &token,
		EmailVerificationExpiry: &expiry,
	}
	repo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Account, error) {
			return stored, nil
		},
	}
	svc, deps := newTestService(repo)

	if err := svc.VerifyEmail(context.Background(), "account-1", token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stored.IsEmailVerified {
		t.Error("account should be marked verified")
	}
	if stored.EmailVerificationToken != nil || stored.EmailVerificationExpiry != nil {
		t.Error("verification token should be cleared on success")
	}
	if len(deps.recorder.records) != 1 || deps.recorder.records[0].action != model.ActionEmailVerified {
		t.Errorf("expected 1 email_verified audit record, got %v", deps.recorder.records)
	}

	// トークン消去後の再利用は失敗する
	err := svc.VerifyEmail(context.Background(), "account-1", token)
	assertAPIErrorCode(t, err, model.ErrCodeInvalidToken)
}

// TestVerifyEmail_Expired は期限切れトークンが拒否されることを検証する。
func TestVerifyEmail_Expired(t *testing.T) {
	token := "verification-token"
	expiry := time.Now().Add(-time.Minute)
	repo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Account, error) {
			return &model.Account{
				ID:                      id,
				EmailVerificationToken:  &token,
				EmailVerificationExpiry: &expiry,
			}, nil
		},
	}
	svc, _ := newTestService(repo)

	err := svc.VerifyEmail(context.Background(), "account-1", token)
	assertAPIErrorCode(t, err, model.ErrCodeTokenExpired)
}

// TestSendVerificationEmail はトークンが保存されメールが送信されることを検証する。
func TestSendVerificationEmail(t *testing.T) {
	stored := &model.Account{ID: "account-1", Email: "taro@example.com"}
	repo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Account, error) {
			return stored, nil
		},
	}
	svc, deps := newTestService(repo)

	if err := svc.SendVerificationEmail(context.Background(), "account-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.EmailVerificationToken == nil {
		t.Fatal("verification token should be stored")
	}
	if len(deps.mailer.verificationSent) != 1 || deps.mailer.verificationSent[0] != "taro@example.com" {
		t.Errorf("expected verification mail to taro@example.com, got %v", deps.mailer.verificationSent)
	}
	if deps.mailer.lastToken != *stored.EmailVerificationToken {
		t.Error("sent token should match the stored token")
	}
}

// --- パスワードリセット ---

// TestRequestPasswordReset_UnknownEmail は未登録メールアドレスでも
// エラーにならず、メールも送信されないことを検証する（列挙攻撃対策）。
func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	svc, deps := newTestService(&mockAccountRepo{})

	if err := svc.RequestPasswordReset(context.Background(), "unknown@example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deps.mailer.resetSent) != 0 {
		t.Error("no mail should be sent for an unknown address")
	}
}

// TestResetPassword は正常系でパスワードが更新され、トークンと
// 全セッションが消去されることを検証する。
func TestResetPassword(t *testing.T) {
	token := "reset-token"
	expiry := time.Now().Add(time.Minute)
	oldHash := mustHash(t, "old-password")
	stored := &model.Account{
		ID:                  "account-1",
		PasswordHash:        oldHash,
		PasswordResetToken:  &token,
		PasswordResetExpiry: &expiry,
	}
	repo := &mockAccountRepo{
		findByResetTokenFn: func(ctx context.Context, got string) (*model.Account, error) {
			if got == token {
				return stored, nil
			}
			return nil, nil
		},
	}
	svc, deps := newTestService(repo)

	sessionsCleared := false
	deps.sessionRepo.deleteByAccountFn = func(ctx context.Context, accountID string) error {
		sessionsCleared = accountID == "account-1"
		return nil
	}

	if err := svc.ResetPassword(context.Background(), token, "new-password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.PasswordHash == oldHash {
		t.Error("password hash should change")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("new-password")); err != nil {
		t.Error("new password should verify")
	}
	if stored.PasswordResetToken != nil {
		t.Error("reset token should be cleared on success")
	}
	if !sessionsCleared {
		t.Error("all sessions should be invalidated")
	}
	if len(deps.recorder.records) != 1 || deps.recorder.records[0].action != model.ActionPasswordReset {
		t.Errorf("expected 1 password_reset audit record, got %v", deps.recorder.records)
	}
}

// TestResetPassword_Failures はトークン・パスワードの異常系を検証する。
func TestResetPassword_Failures(t *testing.T) {
	token := "reset-token"
	expired := time.Now().Add(-time.Minute)

	tests := []struct {
		name     string
		token    string
		password string
		account  *model.Account
		wantCode string
	}{
		{
			name:     "パスワード7文字",
			token:    token,
			password: "1234567",
			wantCode: model.ErrCodeValidationFailed,
		},
		{
			name:     "未知のトークン",
			token:    "no-such-token",
			password: "new-password",
			wantCode: model.ErrCodeInvalidToken,
		},
		{
			name:     "期限切れトークン",
			token:    token,
			password: "new-password",
			account: &model.Account{
				ID:                  "account-1",
				PasswordResetToken:  &token,
				PasswordResetExpiry: &expired,
			},
			wantCode: model.ErrCodeTokenExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockAccountRepo{
				findByResetTokenFn: func(ctx context.Context, got string) (*model.Account, error) {
					if tt.account != nil && got == token {
						return tt.account, nil
					}
					return nil, nil
				},
			}
			svc, _ := newTestService(repo)
			err := svc.ResetPassword(context.Background(), tt.token, tt.password)
			assertAPIErrorCode(t, err, tt.wantCode)
		})
	}
}

// --- エクスポート ---

// TestExportUserData はプロフィール・アイテム・フォルダ・監査レコードが
// 含まれ、機密フィールドが含まれないことを検証する。
func TestExportUserData(t *testing.T) {
	repo := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Account, error) {
			return &model.Account{
				ID:           "account-1",
				Email:        "taro@example.com",
				Username:     "taro",
				Role:         model.RoleUser,
				PasswordHash: "bcrypt-hash",
			}, nil
		},
	}
	tracker := &erasureTracker{}
	itemRepo := &trackedItemRepo{tracker: tracker, items: []*model.Item{{ID: "item-1"}}}
	folderRepo := &trackedFolderRepo{tracker: tracker, folders: []*model.Folder{{ID: "folder-1"}}}
	activityRepo := &trackedActivityRepo{tracker: tracker}

	svc := NewService(repo, &mockSessionRepo{}, itemRepo, folderRepo, activityRepo,
		&mockRecorder{}, &mockMailer{}, testLogger(), nil, 0)

	export, err := svc.ExportUserData(context.Background(), "account-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if export.Profile.Email != "taro@example.com" {
		t.Errorf("unexpected profile email: %s", export.Profile.Email)
	}
	if len(export.Items) != 1 || len(export.Folders) != 1 || len(export.Activities) != 1 {
		t.Errorf("export should contain items, folders and activities: %+v", export)
	}
	if activityRepo.listLimit != 1000 {
		t.Errorf("activities should be capped at 1000, got limit %d", activityRepo.listLimit)
	}
	if export.ExportedAt.IsZero() {
		t.Error("exportedAt should be set")
	}
}

// --- アカウント消去 ---

// TestDeleteAccount_RequiresConfirmation は確認リテラルなしの消去が
// 拒否されることを検証する。
func TestDeleteAccount_RequiresConfirmation(t *testing.T) {
	svc, _ := newTestService(&mockAccountRepo{})

	for _, confirmation := range []string{"", "delete", "Delete", "yes"} {
		err := svc.DeleteAccount(context.Background(), "account-1", confirmation)
		assertAPIErrorCode(t, err, model.ErrCodeValidationFailed)
	}
}

// TestDeleteAccount_Order は削除がアイテム → フォルダ → 監査レコード →
// セッション → アカウント本体の順に行われることを検証する。
func TestDeleteAccount_Order(t *testing.T) {
	tracker := &erasureTracker{}
	accountRepo := &mockAccountRepo{
		deleteFn: func(ctx context.Context, id string) error {
			tracker.order = append(tracker.order, "account")
			return nil
		},
	}
	sessionRepo := &trackedSessionRepo{tracker: tracker}

	svc := NewService(accountRepo, sessionRepo,
		&trackedItemRepo{tracker: tracker},
		&trackedFolderRepo{tracker: tracker},
		&trackedActivityRepo{tracker: tracker},
		&mockRecorder{}, &mockMailer{}, testLogger(), nil, 0)

	if err := svc.DeleteAccount(context.Background(), "account-1", "DELETE"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"items", "folders", "activities", "sessions", "account"}
	if len(tracker.order) != len(want) {
		t.Fatalf("expected %v, got %v", want, tracker.order)
	}
	for i := range want {
		if tracker.order[i] != want[i] {
			t.Errorf("erasure step %d: expected %s, got %s", i, want[i], tracker.order[i])
		}
	}
}
