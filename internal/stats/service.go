// Package stats は利用統計の集計ロジックを提供する。
package stats

import (
	"context"

	"github.com/hitoshi/quickstore/internal/model"
	"github.com/hitoshi/quickstore/internal/repository"
)

// UserStats はアカウント単位の利用統計を表す。
type UserStats struct {
	TotalItems   int            `json:"totalItems"`
	ItemsByType  map[string]int `json:"itemsByType"`
	Favorites    int            `json:"favorites"`
	TotalFolders int            `json:"totalFolders"`
}

// SystemStats はシステム全体の統計を表す。管理者のみ参照できる。
type SystemStats struct {
	TotalAccounts int `json:"totalAccounts"`
	TotalItems    int `json:"totalItems"`
	TotalFolders  int `json:"totalFolders"`
}

// Service は統計集計のサービス層。
type Service struct {
	accountRepo repository.AccountRepository
	itemRepo    repository.ItemRepository
	folderRepo  repository.FolderRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	accountRepo repository.AccountRepository,
	itemRepo repository.ItemRepository,
	folderRepo repository.FolderRepository,
) *Service {
	return &Service{
		accountRepo: accountRepo,
		itemRepo:    itemRepo,
		folderRepo:  folderRepo,
	}
}

// GetUserStats はアカウントのアイテム総数・種別内訳・お気に入り数・
// フォルダ数を集計して返す。
func (s *Service) GetUserStats(ctx context.Context, accountID string) (*UserStats, error) {
	if accountID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	total, err := s.itemRepo.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	byType := make(map[string]int, len(model.ValidItemTypes))
	for _, itemType := range model.ValidItemTypes {
		count, err := s.itemRepo.CountByAccountIDAndType(ctx, accountID, itemType)
		if err != nil {
			return nil, err
		}
		byType[string(itemType)] = count
	}

	favorites, err := s.itemRepo.CountFavoritesByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	folders, err := s.folderRepo.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &UserStats{
		TotalItems:   total,
		ItemsByType:  byType,
		Favorites:    favorites,
		TotalFolders: folders,
	}, nil
}

// GetSystemStats はシステム全体の件数を集計して返す。
// 管理者ロール以外からの呼び出しはAdminRequiredエラーを返す。
func (s *Service) GetSystemStats(ctx context.Context, accountID string) (*SystemStats, error) {
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
	if account.Role != model.RoleAdmin {
		return nil, model.NewAdminRequiredError()
	}

	accounts, err := s.accountRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.itemRepo.Count(ctx)
	if err != nil {
		return nil, err
	}
	folders, err := s.folderRepo.Count(ctx)
	if err != nil {
		return nil, err
	}

	return &SystemStats{
		TotalAccounts: accounts,
		TotalItems:    items,
		TotalFolders:  folders,
	}, nil
}
