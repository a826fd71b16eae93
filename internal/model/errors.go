// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed    = "VALIDATION_FAILED"
	ErrCodeInvalidURL          = "INVALID_URL"
	ErrCodeUnauthenticated     = "UNAUTHENTICATED"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeDuplicateFolderName = "DUPLICATE_FOLDER_NAME"
	ErrCodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
	ErrCodeItemNotFound        = "ITEM_NOT_FOUND"
	ErrCodeFolderNotFound      = "FOLDER_NOT_FOUND"
	ErrCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	ErrCodeInvalidToken        = "INVALID_TOKEN"
	ErrCodeTokenExpired        = "TOKEN_EXPIRED"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeAdminRequired       = "ADMIN_REQUIRED"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidURLError はリンクアイテムのURL形式エラーを生成する。
func NewInvalidURLError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  "無効なURL形式です。",
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まる絶対URL）を入力してください。",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
// リクエストにアカウントが紐付いていない場合に使用する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewForbiddenError は所有権違反エラーを生成する。
// 他のアカウントが所有するエンティティを操作しようとした場合に使用する。
func NewForbiddenError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  message,
		Category: "auth",
		Action:   "自分が所有するデータのみ操作できます。",
	}
}

// NewDuplicateFolderNameError はフォルダ名重複エラーを生成する。
func NewDuplicateFolderNameError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFolderName,
		Message:  fmt.Sprintf("同じ名前のフォルダが既に存在します: %s", name),
		Category: "validation",
		Action:   "別のフォルダ名を指定してください。",
	}
}

// NewRateLimitError はアカウント単位のレート制限超過エラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。しばらく待ってから再度お試しください。",
		Category: "system",
		Action:   "時間をおいてから再度お試しください。",
	}
}

// NewItemNotFoundError はアイテム未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定されたアイテムが見つかりません: %s", itemID),
		Category: "validation",
		Action:   "アイテムIDを確認してください。",
	}
}

// NewFolderNotFoundError はフォルダ未検出エラーを生成する。
func NewFolderNotFoundError(folderID string) *APIError {
	return &APIError{
		Code:     ErrCodeFolderNotFound,
		Message:  fmt.Sprintf("指定されたフォルダが見つかりません: %s", folderID),
		Category: "validation",
		Action:   "フォルダIDを確認してください。",
	}
}

// NewAccountNotFoundError はアカウント未検出エラーを生成する。
func NewAccountNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  "アカウントが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewInvalidTokenError はトークン不一致エラーを生成する。
// メール確認トークンまたはパスワードリセットトークンの検証失敗に使用する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "無効なトークンです。",
		Category: "validation",
		Action:   "トークンを確認するか、再度発行してください。",
	}
}

// NewTokenExpiredError はトークン期限切れエラーを生成する。
func NewTokenExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeTokenExpired,
		Message:  "トークンの有効期限が切れています。",
		Category: "validation",
		Action:   "トークンを再度発行してください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "ユーザー名またはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認してください。",
	}
}

// NewAdminRequiredError は管理者権限エラーを生成する。
func NewAdminRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAdminRequired,
		Message:  "管理者権限が必要です。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}
