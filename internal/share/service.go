// Package share はアイテム共有のドメインロジックを提供する。
package share

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/quickstore/internal/audit"
	"github.com/hitoshi/quickstore/internal/metrics"
	"github.com/hitoshi/quickstore/internal/model"
	"github.com/hitoshi/quickstore/internal/repository"
)

// ShareItemInput はアイテム共有リクエストの入力を表す。
type ShareItemInput struct {
	ItemID     string
	SharedWith string
	Permission model.Permission
}

// Service はアイテム共有のサービス層。
type Service struct {
	shareRepo   repository.ShareRepository
	itemRepo    repository.ItemRepository
	accountRepo repository.AccountRepository
	recorder    audit.Recorder
	metrics     metrics.Recorder
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilを許容する。
func NewService(
	shareRepo repository.ShareRepository,
	itemRepo repository.ItemRepository,
	accountRepo repository.AccountRepository,
	recorder audit.Recorder,
	m metrics.Recorder,
) *Service {
	return &Service{
		shareRepo:   shareRepo,
		itemRepo:    itemRepo,
		accountRepo: accountRepo,
		recorder:    recorder,
		metrics:     m,
	}
}

// ShareItem はアイテムを他アカウントに共有する。
// 共有元は対象アイテムの所有者でなければならない。
// 権限はread/writeのいずれかのみ許可される。
func (s *Service) ShareItem(ctx context.Context, accountID string, in ShareItemInput) (*model.Share, error) {
	if accountID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	if !model.IsValidPermission(in.Permission) {
		if s.metrics != nil {
			s.metrics.RecordValidationFailure(model.ErrCodeValidationFailed)
		}
		return nil, model.NewValidationError("権限はreadまたはwriteを指定してください。")
	}
	if in.SharedWith == "" {
		if s.metrics != nil {
			s.metrics.RecordValidationFailure(model.ErrCodeValidationFailed)
		}
		return nil, model.NewValidationError("共有先アカウントは必須です。")
	}

	item, err := s.itemRepo.FindByID(ctx, in.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(in.ItemID)
	}
	if item.AccountID != accountID {
		return nil, model.NewForbiddenError("自分のアイテムのみ共有できます。")
	}

	target, err := s.accountRepo.FindByID(ctx, in.SharedWith)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, model.NewAccountNotFoundError()
	}

	share := &model.Share{
		ID:         uuid.New().String(),
		ItemID:     in.ItemID,
		SharedBy:   accountID,
		SharedWith: in.SharedWith,
		Permission: in.Permission,
		CreatedAt:  time.Now(),
	}

	if err := s.shareRepo.Create(ctx, share); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordMutation("share", "created")
	}
	s.recorder.Record(ctx, accountID, model.ActionItemShared, map[string]any{
		"itemId":     in.ItemID,
		"sharedWith": in.SharedWith,
		"permission": string(in.Permission),
	})

	return share, nil
}

// ListShares はアイテムの共有一覧を返す。所有者のみ参照できる。
func (s *Service) ListShares(ctx context.Context, accountID, itemID string) ([]*model.Share, error) {
	if accountID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(itemID)
	}
	if item.AccountID != accountID {
		return nil, model.NewForbiddenError("自分のアイテムの共有のみ参照できます。")
	}

	return s.shareRepo.ListByItemID(ctx, itemID)
}
