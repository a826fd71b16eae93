// Package folder はフォルダ管理のドメインロジックを提供する。
package folder

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/quickstore/internal/audit"
	"github.com/hitoshi/quickstore/internal/metrics"
	"github.com/hitoshi/quickstore/internal/model"
	"github.com/hitoshi/quickstore/internal/repository"
)

const (
	maxNameLength        = 100
	maxDescriptionLength = 500
)

// SaveFolderInput はフォルダ保存リクエストの入力を表す。
type SaveFolderInput struct {
	Name        string
	Description string
	Color       string
}

// Service はフォルダ管理のサービス層。
type Service struct {
	folderRepo repository.FolderRepository
	recorder   audit.Recorder
	metrics    metrics.Recorder
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilを許容する。
func NewService(folderRepo repository.FolderRepository, recorder audit.Recorder, m metrics.Recorder) *Service {
	return &Service{
		folderRepo: folderRepo,
		recorder:   recorder,
		metrics:    m,
	}
}

// CreateFolder は新規フォルダを検証して作成し、監査レコードを追記する。
// 同一アカウント内の名前重複（トリム済み完全一致）はDuplicateFolderNameErrorを返す。
// 重複チェックと作成の間には競合ウィンドウが存在するため、
// 最終的な一意性はデータベースの一意インデックスが保証する。
func (s *Service) CreateFolder(ctx context.Context, accountID string, in SaveFolderInput) (*model.Folder, error) {
	if accountID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	name, err := s.validateInput(in)
	if err != nil {
		return nil, err
	}

	exists, err := s.folderRepo.ExistsByAccountIDAndName(ctx, accountID, name, "")
	if err != nil {
		return nil, err
	}
	if exists {
		if s.metrics != nil {
			s.metrics.RecordValidationFailure(model.ErrCodeDuplicateFolderName)
		}
		return nil, model.NewDuplicateFolderNameError(name)
	}

	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = model.DefaultFolderColor
	}

	now := time.Now()
	folder := &model.Folder{
		ID:          uuid.New().String(),
		AccountID:   accountID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Color:       color,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.folderRepo.Create(ctx, folder); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordMutation("folder", "created")
	}
	s.recorder.Record(ctx, accountID, model.ActionFolderCreated, map[string]any{
		"folderId":   folder.ID,
		"folderName": folder.Name,
	})

	return folder, nil
}

// UpdateFolder は既存フォルダを検証して更新する。
// 重複チェックでは自分自身のIDを除外する。
func (s *Service) UpdateFolder(ctx context.Context, accountID, folderID string, in SaveFolderInput) (*model.Folder, error) {
	if accountID == "" {
		return nil, model.NewUnauthenticatedError()
	}

	existing, err := s.folderRepo.FindByID(ctx, folderID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, model.NewFolderNotFoundError(folderID)
	}
	if existing.AccountID != accountID {
		return nil, model.NewForbiddenError("自分のフォルダのみ更新できます。")
	}

	name, err := s.validateInput(in)
	if err != nil {
		return nil, err
	}

	exists, err := s.folderRepo.ExistsByAccountIDAndName(ctx, accountID, name, folderID)
	if err != nil {
		return nil, err
	}
	if exists {
		if s.metrics != nil {
			s.metrics.RecordValidationFailure(model.ErrCodeDuplicateFolderName)
		}
		return nil, model.NewDuplicateFolderNameError(name)
	}

	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = existing.Color
	}

	folder := &model.Folder{
		ID:          existing.ID,
		AccountID:   existing.AccountID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Color:       color,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   time.Now(),
	}

	if err := s.folderRepo.Update(ctx, folder); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordMutation("folder", "updated")
	}

	return folder, nil
}

// DeleteFolder はフォルダを削除する。
// フォルダ内のアイテムは削除されず、folder_idが未分類（NULL）に戻る。
func (s *Service) DeleteFolder(ctx context.Context, accountID, folderID string) error {
	if accountID == "" {
		return model.NewUnauthenticatedError()
	}

	existing, err := s.folderRepo.FindByID(ctx, folderID)
	if err != nil {
		return err
	}
	if existing == nil {
		return model.NewFolderNotFoundError(folderID)
	}
	if existing.AccountID != accountID {
		return model.NewForbiddenError("自分のフォルダのみ削除できます。")
	}

	if err := s.folderRepo.DeleteByID(ctx, folderID); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.RecordMutation("folder", "deleted")
	}

	return nil
}

// ListFolders はアカウントの全フォルダを名前昇順で返す。
func (s *Service) ListFolders(ctx context.Context, accountID string) ([]*model.Folder, error) {
	if accountID == "" {
		return nil, model.NewUnauthenticatedError()
	}
	return s.folderRepo.ListByAccountID(ctx, accountID)
}

// validateInput はフォルダ入力を検証し、トリム済みの名前を返す。
// 永続化される名前は常にトリム済みの値になる。
func (s *Service) validateInput(in SaveFolderInput) (string, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return "", s.validationFailed("フォルダ名は必須です。")
	}
	if len([]rune(name)) > maxNameLength {
		return "", s.validationFailed("フォルダ名は100文字以内で入力してください。")
	}
	if len([]rune(in.Description)) > maxDescriptionLength {
		return "", s.validationFailed("説明は500文字以内で入力してください。")
	}
	return name, nil
}

func (s *Service) validationFailed(message string) error {
	if s.metrics != nil {
		s.metrics.RecordValidationFailure(model.ErrCodeValidationFailed)
	}
	return model.NewValidationError(message)
}
