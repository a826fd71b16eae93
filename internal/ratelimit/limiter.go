// Package ratelimit はアカウント単位の固定ウィンドウレート制限を提供する。
// プロセス内のメモリ上でカウンタを管理するため、プロセス再起動で全カウンタが
// リセットされる。複数プロセス構成では共有ストアが別途必要になる（既知の制約）。
package ratelimit

import (
	"sync"
	"time"

	"github.com/hitoshi/quickstore/internal/model"
)

// アイテム保存に適用するレート制限ポリシー: 60秒あたり20回/アカウント
const (
	ItemSaveAction      = "item_save"
	ItemSaveMaxRequests = 20
	ItemSaveWindow      = 60 * time.Second
)

// entry は(アカウントID, アクション)ごとのカウンタを保持する。
type entry struct {
	count           int
	windowResetTime time.Time
}

// Limiter は(アカウントID, アクション)をキーとする固定ウィンドウカウンタ。
// 異なるアカウント間のカウンタは互いに干渉しない。
// 同一キーに対する並行リクエストはmutexで直列化される。
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	now     func() time.Time // テストで時刻を差し替えるためのフック
	stopCh  chan struct{}
}

// NewLimiter は新しいLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewLimiter(cleanupInterval time.Duration) *Limiter {
	l := &Limiter{
		entries: make(map[string]*entry),
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go l.cleanupLoop(cleanupInterval)

	return l
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (l *Limiter) Stop() {
	close(l.stopCh)
}

// Check は(accountID, action)のカウンタを検査・更新する。
// 現在時刻がwindowResetTimeを過ぎていればカウンタを0にリセットし、
// リセット時刻をnow+windowに進める。カウンタがmaxRequests以上であれば
// RateLimitErrorを返す。それ以外はカウンタをインクリメントして許可する。
func (l *Limiter) Check(accountID, action string, maxRequests int, window time.Duration) error {
	key := accountID + "_" + action
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{count: 0, windowResetTime: now.Add(window)}
		l.entries[key] = e
	}

	if now.After(e.windowResetTime) {
		e.count = 0
		e.windowResetTime = now.Add(window)
	}

	if e.count >= maxRequests {
		return model.NewRateLimitError()
	}

	e.count++
	return nil
}

// EntryCount は現在管理されているカウンタのエントリ数を返す。
// テストおよびメトリクス用。
func (l *Limiter) EntryCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup(interval)
		case <-l.stopCh:
			return
		}
	}
}

// cleanup はウィンドウリセット時刻をintervalの2倍以上過ぎたエントリを削除する。
// 直近のウィンドウで再アクセスがあればCheckがエントリを再作成するため安全。
func (l *Limiter) cleanup(interval time.Duration) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, e := range l.entries {
		if now.Sub(e.windowResetTime) > interval*2 {
			delete(l.entries, key)
		}
	}
}
