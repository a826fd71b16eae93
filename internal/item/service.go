// Package item はアイテム管理のドメインロジックを提供する。
// 保存・削除の前段バリデーション、所有権検証、タグサニタイズ、
// レート制限、監査ログ記録を1つの書き込み経路として構成する。
package item

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/quickstore/internal/audit"
	"github.com/hitoshi/quickstore/internal/metrics"
	"github.com/hitoshi/quickstore/internal/model"
	"github.com/hitoshi/quickstore/internal/ratelimit"
	"github.com/hitoshi/quickstore/internal/repository"
	"github.com/hitoshi/quickstore/internal/security"
)

// バリデーション上限値
const (
	maxTitleLength   = 200
	maxContentLength = 10000
	maxTagLength     = 30
	maxTagCount      = 10
	maxSearchLimit   = 100
	defaultSearchLimit = 50
)

// RateChecker はアカウント単位の固定ウィンドウレート制限インターフェース。
// ratelimit.Limiterの部分集合として定義する。
type RateChecker interface {
	Check(accountID, action string, maxRequests int, window time.Duration) error
}

// SaveItemInput はアイテム保存リクエストの入力を表す。
type SaveItemInput struct {
	Type       model.ItemType
	Title      string
	Content    string
	FolderID   *string
	Tags       []string
	IsFavorite bool
}

// Service はアイテム管理のサービス層。
// すべての書き込みはバリデーション → 永続化 → 監査記録の順で処理される。
type Service struct {
	itemRepo  repository.ItemRepository
	limiter   RateChecker
	recorder  audit.Recorder
	sanitizer security.ContentSanitizerService
	metrics   metrics.Recorder
}

// NewService はServiceの新しいインスタンスを生成する。
// sanitizerとmetricsはnilを許容する。
func NewService(
	itemRepo repository.ItemRepository,
	limiter RateChecker,
	recorder audit.Recorder,
	sanitizer security.ContentSanitizerService,
	m metrics.Recorder,
) *Service {
	return &Service{
		itemRepo:  itemRepo,
		limiter:   limiter,
		recorder:  recorder,
		sanitizer: sanitizer,
		metrics:   m,
	}
}

// CreateItem は新規アイテムを検証して作成し、監査レコードを追記する。
// 所有者は認証済みアカウントに束縛され、以後変更されない。
func (s *Service) CreateItem(ctx context.Context, accountID string, in SaveItemInput) (*model.Item, error) {
	if accountID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	// レート制限フックはバリデーションとは独立に適用される
	if err := s.checkRate(accountID); err != nil {
		return nil, err
	}

	if err := s.validateInput(&in); err != nil {
		return nil, err
	}

	now := time.Now()
	item := &model.Item{
		ID:         uuid.New().String(),
		AccountID:  accountID,
		Type:       in.Type,
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		FolderID:   in.FolderID,
		Tags:       SanitizeTags(in.Tags),
		IsFavorite: in.IsFavorite,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordMutation("item", "created")
	}
	s.recorder.Record(ctx, accountID, model.ActionItemCreated, map[string]any{
		"itemId":    item.ID,
		"itemType":  string(item.Type),
		"itemTitle": item.Title,
	})

	return item, nil
}

// UpdateItem は既存アイテムを検証して更新し、監査レコードを追記する。
// 永続化済みアイテムの所有者が要求元と異なる場合はForbiddenを返す。
// 所有権比較のための読み取りは所有者フィルタを適用しない昇格読み取りを使用する。
func (s *Service) UpdateItem(ctx context.Context, accountID, itemID string, in SaveItemInput) (*model.Item, error) {
	if accountID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	if err := s.checkRate(accountID); err != nil {
		return nil, err
	}

	existing, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, model.NewItemNotFoundError(itemID)
	}
	if existing.AccountID != accountID {
		return nil, s.forbidden("自分のアイテムのみ更新できます。")
	}

	if err := s.validateInput(&in); err != nil {
		return nil, err
	}

	item := &model.Item{
		ID:         existing.ID,
		AccountID:  existing.AccountID, // 所有者は不変
		Type:       in.Type,
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		FolderID:   in.FolderID,
		Tags:       SanitizeTags(in.Tags),
		IsFavorite: in.IsFavorite,
		CreatedAt:  existing.CreatedAt, // 作成日時は不変
		UpdatedAt:  time.Now(),
	}

	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordMutation("item", "updated")
	}
	s.recorder.Record(ctx, accountID, model.ActionItemUpdated, map[string]any{
		"itemId": item.ID,
	})

	return item, nil
}

// DeleteItem はアイテムを削除し、監査レコードを追記する。
// 所有者以外からの削除はForbiddenを返す。
func (s *Service) DeleteItem(ctx context.Context, accountID, itemID string) error {
	if accountID == "" {
		return model.NewUnauthenticatedError()
	}

	existing, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	if existing == nil {
		return model.NewItemNotFoundError(itemID)
	}
	if existing.AccountID != accountID {
		return s.forbidden("自分のアイテムのみ削除できます。")
	}

	if err := s.itemRepo.DeleteByID(ctx, itemID); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordMutation("item", "deleted")
	}
	s.recorder.Record(ctx, accountID, model.ActionItemDeleted, map[string]any{
		"itemId": itemID,
	})

	return nil
}

// SearchInput はアイテム検索リクエストの入力を表す。
type SearchInput struct {
	Query      string
	Type       *model.ItemType
	FolderID   *string
	Tags       []string
	IsFavorite *bool
	Limit      int
	Skip       int
}

// SearchItems は検索条件に一致する自アカウントのアイテムをフォルダ名付きで返す。
// limitは最大100にクランプされ、0以下の場合はデフォルト50を使用する。
// 結果は作成日時降順。
func (s *Service) SearchItems(ctx context.Context, accountID string, in SearchInput) ([]model.ItemWithFolder, error) {
	if accountID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	limit := in.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	skip := in.Skip
	if skip < 0 {
		skip = 0
	}

	start := time.Now()
	results, err := s.itemRepo.Search(ctx, model.ItemSearchQuery{
		AccountID:  accountID,
		Query:      in.Query,
		Type:       in.Type,
		FolderID:   in.FolderID,
		Tags:       in.Tags,
		IsFavorite: in.IsFavorite,
		Limit:      limit,
		Skip:       skip,
	})
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.RecordSearchLatency(time.Since(start))
	}

	return results, nil
}

// validateInput はアイテム入力のフィールドバリデーションを行い、
// message/textアイテムの本文をサニタイズする。
func (s *Service) validateInput(in *SaveItemInput) error {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return s.validationFailed("タイトルは必須です。")
	}
	if len([]rune(in.Title)) > maxTitleLength {
		return s.validationFailed("タイトルは200文字以内で入力してください。")
	}

	if strings.TrimSpace(in.Content) == "" {
		return s.validationFailed("本文は必須です。")
	}
	if len([]rune(in.Content)) > maxContentLength {
		return s.validationFailed("本文は10000文字以内で入力してください。")
	}

	if !model.IsValidItemType(in.Type) {
		return s.validationFailed("無効なアイテム種別です。")
	}

	if in.Type == model.ItemTypeLink {
		if !isAbsoluteURL(in.Content) {
			if s.metrics != nil {
				s.metrics.RecordValidationFailure(model.ErrCodeInvalidURL)
			}
			return model.NewInvalidURLError()
		}
	}

	if s.sanitizer != nil && (in.Type == model.ItemTypeMessage || in.Type == model.ItemTypeText) {
		in.Content = s.sanitizer.Sanitize(in.Content)
	}

	return nil
}

// SanitizeTags はタグリストをサニタイズする。
// 各タグをトリムして小文字化し、空文字と30文字超を除外した上で
// 先頭から最大10件を残す（順序維持、重複排除なし）。
// タグが未指定の場合でも空のリストで上書きされる。
// 冪等: サニタイズ済みリストを再度サニタイズしても結果は変わらない。
func SanitizeTags(tags []string) []string {
	sanitized := make([]string, 0, len(tags))
	for _, tag := range tags {
		t := strings.ToLower(strings.TrimSpace(tag))
		if t == "" || len([]rune(t)) > maxTagLength {
			continue
		}
		sanitized = append(sanitized, t)
		if len(sanitized) == maxTagCount {
			break
		}
	}
	return sanitized
}

// isAbsoluteURL は文字列がホストを持つ絶対URLとしてパース可能かを返す。
func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}

// checkRate はアイテム保存のレート制限（60秒あたり20回/アカウント）を検査する。
func (s *Service) checkRate(accountID string) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Check(accountID, ratelimit.ItemSaveAction, ratelimit.ItemSaveMaxRequests, ratelimit.ItemSaveWindow)
	if err != nil {
		slog.Warn("アイテム保存のレート制限を超過しました",
			slog.String("account_id", accountID),
		)
		if s.metrics != nil {
			s.metrics.RecordRateLimitHit()
		}
		return err
	}
	return nil
}

// validationFailed はバリデーション失敗メトリクスを記録してValidationErrorを返す。
func (s *Service) validationFailed(message string) error {
	if s.metrics != nil {
		s.metrics.RecordValidationFailure(model.ErrCodeValidationFailed)
	}
	return model.NewValidationError(message)
}

// forbidden は所有権違反のForbiddenエラーを返す。
func (s *Service) forbidden(message string) error {
	if s.metrics != nil {
		s.metrics.RecordValidationFailure(model.ErrCodeForbidden)
	}
	return model.NewForbiddenError(message)
}
