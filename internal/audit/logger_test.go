package audit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hitoshi/quickstore/internal/model"
)

// --- モック ---

type mockActivityRepo struct {
	createFn func(ctx context.Context, activity *model.Activity) error
	created  []*model.Activity
}

func (m *mockActivityRepo) Create(ctx context.Context, activity *model.Activity) error {
	if m.createFn != nil {
		return m.createFn(ctx, activity)
	}
	m.created = append(m.created, activity)
	return nil
}
func (m *mockActivityRepo) ListRecentByAccountID(ctx context.Context, accountID string, limit int) ([]*model.Activity, error) {
	return nil, nil
}
func (m *mockActivityRepo) ListSince(ctx context.Context, since time.Time, limit int) ([]*model.Activity, error) {
	return nil, nil
}
func (m *mockActivityRepo) DeleteByAccountID(ctx context.Context, accountID string) error {
	return nil
}
func (m *mockActivityRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type mockFailureCounter struct {
	failures int
}

func (m *mockFailureCounter) RecordAuditFailure() { m.failures++ }

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// --- テスト ---

// TestLogger_Record は監査レコードが正しいフィールドで追記されることを検証する。
func TestLogger_Record(t *testing.T) {
	repo := &mockActivityRepo{}
	l := NewLogger(repo, testLogger(), nil)

	ctx := ContextWithIPAddress(context.Background(), "203.0.113.10")
	l.Record(ctx, "account-1", model.ActionItemCreated, map[string]any{
		"itemId": "item-1",
	})

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(repo.created))
	}
	activity := repo.created[0]
	if activity.AccountID != "account-1" {
		t.Errorf("expected account-1, got %s", activity.AccountID)
	}
	if activity.Action != model.ActionItemCreated {
		t.Errorf("expected action %s, got %s", model.ActionItemCreated, activity.Action)
	}
	if activity.IPAddress != "203.0.113.10" {
		t.Errorf("expected IP 203.0.113.10, got %s", activity.IPAddress)
	}
	if activity.ID == "" {
		t.Error("activity ID should be generated")
	}
}

// TestLogger_Record_UnknownIP はIPアドレスが取得できない場合に
// "unknown" が記録されることを検証する。
func TestLogger_Record_UnknownIP(t *testing.T) {
	repo := &mockActivityRepo{}
	l := NewLogger(repo, testLogger(), nil)

	l.Record(context.Background(), "account-1", model.ActionItemUpdated, nil)

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 activity, got %d", len(repo.created))
	}
	if repo.created[0].IPAddress != "unknown" {
		t.Errorf("expected unknown IP, got %s", repo.created[0].IPAddress)
	}
}

// TestLogger_Record_FailureDoesNotPropagate は記録失敗が呼び出し元に
// 伝播せず、メトリクスのみ計上されることを検証する。
func TestLogger_Record_FailureDoesNotPropagate(t *testing.T) {
	repo := &mockActivityRepo{
		createFn: func(ctx context.Context, activity *model.Activity) error {
			return fmt.Errorf("db down")
		},
	}
	metrics := &mockFailureCounter{}
	l := NewLogger(repo, testLogger(), metrics)

	// Recordはエラーを返さない設計。パニックしないことを確認する。
	l.Record(context.Background(), "account-1", model.ActionItemDeleted, nil)

	if metrics.failures != 1 {
		t.Errorf("expected 1 audit failure recorded, got %d", metrics.failures)
	}
}
