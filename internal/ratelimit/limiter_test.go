package ratelimit

import (
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/quickstore/internal/model"
)

// newTestLimiter はクリーンアップゴルーチンを起動しないテスト用Limiterを生成する。
func newTestLimiter(now func() time.Time) *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		now:     now,
		stopCh:  make(chan struct{}),
	}
}

// TestLimiter_Check_AllowsUpToMax は上限までのリクエストが許可されることを検証する。
func TestLimiter_Check_AllowsUpToMax(t *testing.T) {
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiter(func() time.Time { return current })

	for i := 0; i < 20; i++ {
		if err := l.Check("account-1", "item_save", 20, time.Minute); err != nil {
			t.Fatalf("request %d should be allowed, got error: %v", i+1, err)
		}
	}
}

// TestLimiter_Check_RejectsOverMax は21回目のリクエストが拒否されることを検証する。
func TestLimiter_Check_RejectsOverMax(t *testing.T) {
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiter(func() time.Time { return current })

	for i := 0; i < 20; i++ {
		if err := l.Check("account-1", "item_save", 20, time.Minute); err != nil {
			t.Fatalf("request %d should be allowed, got error: %v", i+1, err)
		}
	}

	err := l.Check("account-1", "item_save", 20, time.Minute)
	if err == nil {
		t.Fatal("21st request should be rejected, got nil")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %T", err)
	}
	if apiErr.Code != model.ErrCodeRateLimitExceeded {
		t.Errorf("expected code %s, got %s", model.ErrCodeRateLimitExceeded, apiErr.Code)
	}
}

// TestLimiter_Check_ResetsAfterWindow はウィンドウ経過後にカウンタがリセットされ、
// 次のリクエストが許可されることを検証する。
func TestLimiter_Check_ResetsAfterWindow(t *testing.T) {
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiter(func() time.Time { return current })

	for i := 0; i < 20; i++ {
		if err := l.Check("account-1", "item_save", 20, time.Minute); err != nil {
			t.Fatalf("request %d should be allowed, got error: %v", i+1, err)
		}
	}
	if err := l.Check("account-1", "item_save", 20, time.Minute); err == nil {
		t.Fatal("21st request should be rejected")
	}

	// ウィンドウ経過後
	current = current.Add(61 * time.Second)
	if err := l.Check("account-1", "item_save", 20, time.Minute); err != nil {
		t.Fatalf("request after window reset should be allowed, got error: %v", err)
	}
}

// TestLimiter_Check_IsolatesAccounts はアカウント間でカウンタが干渉しないことを検証する。
func TestLimiter_Check_IsolatesAccounts(t *testing.T) {
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiter(func() time.Time { return current })

	for i := 0; i < 20; i++ {
		if err := l.Check("account-1", "item_save", 20, time.Minute); err != nil {
			t.Fatalf("account-1 request %d should be allowed: %v", i+1, err)
		}
	}
	if err := l.Check("account-1", "item_save", 20, time.Minute); err == nil {
		t.Fatal("account-1 should be rate limited")
	}

	if err := l.Check("account-2", "item_save", 20, time.Minute); err != nil {
		t.Fatalf("account-2 should not be affected by account-1's counter: %v", err)
	}
}

// TestLimiter_Check_IsolatesActions は同一アカウントでもアクションごとに
// カウンタが独立していることを検証する。
func TestLimiter_Check_IsolatesActions(t *testing.T) {
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiter(func() time.Time { return current })

	for i := 0; i < 20; i++ {
		if err := l.Check("account-1", "item_save", 20, time.Minute); err != nil {
			t.Fatalf("item_save request %d should be allowed: %v", i+1, err)
		}
	}
	if err := l.Check("account-1", "item_save", 20, time.Minute); err == nil {
		t.Fatal("item_save should be rate limited")
	}

	if err := l.Check("account-1", "other_action", 20, time.Minute); err != nil {
		t.Fatalf("other_action should have its own counter: %v", err)
	}
}

// TestLimiter_Cleanup は古いエントリがクリーンアップで削除されることを検証する。
func TestLimiter_Cleanup(t *testing.T) {
	current := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newTestLimiter(func() time.Time { return current })

	if err := l.Check("account-1", "item_save", 20, time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.EntryCount() != 1 {
		t.Fatalf("expected 1 entry, got %d", l.EntryCount())
	}

	// リセット時刻からinterval*2を超過した時点でクリーンアップ
	current = current.Add(time.Minute + 11*time.Minute)
	l.cleanup(5 * time.Minute)

	if l.EntryCount() != 0 {
		t.Errorf("expected 0 entries after cleanup, got %d", l.EntryCount())
	}
}
