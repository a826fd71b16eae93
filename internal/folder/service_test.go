package folder

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hitoshi/quickstore/internal/model"
	"github.com/hitoshi/quickstore/internal/repository"
)

// --- モック ---

type mockFolderRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.Folder, error)
	createFn   func(ctx context.Context, folder *model.Folder) error
	updateFn   func(ctx context.Context, folder *model.Folder) error
	deleteFn   func(ctx context.Context, id string) error
	existsFn   func(ctx context.Context, accountID, name, excludeID string) (bool, error)
}

func (m *mockFolderRepo) FindByID(ctx context.Context, id string) (*model.Folder, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockFolderRepo) Create(ctx context.Context, folder *model.Folder) error {
	if m.createFn != nil {
		return m.createFn(ctx, folder)
	}
	return nil
}
func (m *mockFolderRepo) Update(ctx context.Context, folder *model.Folder) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, folder)
	}
	return nil
}
func (m *mockFolderRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}
func (m *mockFolderRepo) DeleteByAccountID(ctx context.Context, accountID string) error { return nil }
func (m *mockFolderRepo) ListByAccountID(ctx context.Context, accountID string) ([]*model.Folder, error) {
	return nil, nil
}
func (m *mockFolderRepo) ExistsByAccountIDAndName(ctx context.Context, accountID, name, excludeID string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, accountID, name, excludeID)
	}
	return false, nil
}
func (m *mockFolderRepo) CountByAccountID(ctx context.Context, accountID string) (int, error) {
	return 0, nil
}
func (m *mockFolderRepo) Count(ctx context.Context) (int, error) { return 0, nil }

var _ repository.FolderRepository = (*mockFolderRepo)(nil)

type recordedAudit struct {
	accountID string
	action    string
	details   map[string]any
}

type mockRecorder struct {
	records []recordedAudit
}

func (m *mockRecorder) Record(ctx context.Context, accountID, action string, details map[string]any) {
	m.records = append(m.records, recordedAudit{accountID, action, details})
}

func newTestService(repo *mockFolderRepo) (*Service, *mockRecorder) {
	recorder := &mockRecorder{}
	return NewService(repo, recorder, nil), recorder
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

// --- テスト ---

// TestCreateFolder は正常系でトリム済みの名前とデフォルトカラーで作成され、
// 監査レコードが追記されることを検証する。
func TestCreateFolder(t *testing.T) {
	var created *model.Folder
	repo := &mockFolderRepo{
		createFn: func(ctx context.Context, folder *model.Folder) error {
			created = folder
			return nil
		},
	}
	svc, recorder := newTestService(repo)

	folder, err := svc.CreateFolder(context.Background(), "account-1", SaveFolderInput{
		Name: "  仕事  ",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if created == nil {
		t.Fatal("folder should be persisted")
	}
	if folder.Name != "仕事" {
		t.Errorf("name should be trimmed, got %q", folder.Name)
	}
	if folder.Color != model.DefaultFolderColor {
		t.Errorf("expected default color, got %q", folder.Color)
	}
	if folder.AccountID != "account-1" {
		t.Errorf("expected owner account-1, got %s", folder.AccountID)
	}

	if len(recorder.records) != 1 {
		t.Fatalf("expected 1 audit record, got %d", len(recorder.records))
	}
	rec := recorder.records[0]
	if rec.action != model.ActionFolderCreated {
		t.Errorf("expected action %s, got %s", model.ActionFolderCreated, rec.action)
	}
	if rec.details["folderName"] != "仕事" {
		t.Errorf("unexpected audit details: %v", rec.details)
	}
}

// TestCreateFolder_DuplicateName は同名フォルダの作成が拒否されることを検証する。
func TestCreateFolder_DuplicateName(t *testing.T) {
	repo := &mockFolderRepo{
		existsFn: func(ctx context.Context, accountID, name, excludeID string) (bool, error) {
			return name == "仕事", nil
		},
	}
	svc, recorder := newTestService(repo)

	// トリム後の名前で重複判定されること
	_, err := svc.CreateFolder(context.Background(), "account-1", SaveFolderInput{Name: " 仕事 "})
	assertAPIErrorCode(t, err, model.ErrCodeDuplicateFolderName)
	if len(recorder.records) != 0 {
		t.Error("failed create must not append an audit record")
	}
}

// TestCreateFolder_Validation は名前の境界値を検証する。
func TestCreateFolder_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input SaveFolderInput
	}{
		{"空の名前", SaveFolderInput{Name: "   "}},
		{"名前101文字", SaveFolderInput{Name: strings.Repeat("あ", 101)}},
		{"説明501文字", SaveFolderInput{Name: "ok", Description: strings.Repeat("a", 501)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(&mockFolderRepo{})
			_, err := svc.CreateFolder(context.Background(), "account-1", tt.input)
			assertAPIErrorCode(t, err, model.ErrCodeValidationFailed)
		})
	}
}

// TestUpdateFolder_ExcludesSelf は更新時の重複チェックで自分自身が除外されることを検証する。
func TestUpdateFolder_ExcludesSelf(t *testing.T) {
	gotExcludeID := ""
	repo := &mockFolderRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Folder, error) {
			return &model.Folder{ID: id, AccountID: "account-1", Color: "#000000"}, nil
		},
		existsFn: func(ctx context.Context, accountID, name, excludeID string) (bool, error) {
			gotExcludeID = excludeID
			return false, nil
		},
	}
	svc, _ := newTestService(repo)

	folder, err := svc.UpdateFolder(context.Background(), "account-1", "folder-1", SaveFolderInput{Name: "仕事"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotExcludeID != "folder-1" {
		t.Errorf("duplicate check should exclude the folder itself, got %q", gotExcludeID)
	}
	if folder.Color != "#000000" {
		t.Errorf("color should be kept when not specified, got %q", folder.Color)
	}
}

// TestUpdateFolder_Forbidden は他アカウントのフォルダ更新が拒否されることを検証する。
func TestUpdateFolder_Forbidden(t *testing.T) {
	repo := &mockFolderRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Folder, error) {
			return &model.Folder{ID: id, AccountID: "account-2"}, nil
		},
	}
	svc, _ := newTestService(repo)

	_, err := svc.UpdateFolder(context.Background(), "account-1", "folder-1", SaveFolderInput{Name: "仕事"})
	assertAPIErrorCode(t, err, model.ErrCodeForbidden)
}

// TestDeleteFolder は正常系の削除を検証する。
func TestDeleteFolder(t *testing.T) {
	deleted := ""
	repo := &mockFolderRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Folder, error) {
			return &model.Folder{ID: id, AccountID: "account-1"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	svc, _ := newTestService(repo)

	if err := svc.DeleteFolder(context.Background(), "account-1", "folder-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != "folder-1" {
		t.Errorf("expected folder-1 deleted, got %q", deleted)
	}
}

// TestDeleteFolder_NotFound は存在しないフォルダの削除がNotFoundになることを検証する。
func TestDeleteFolder_NotFound(t *testing.T) {
	svc, _ := newTestService(&mockFolderRepo{})

	err := svc.DeleteFolder(context.Background(), "account-1", "missing")
	assertAPIErrorCode(t, err, model.ErrCodeFolderNotFound)
}
