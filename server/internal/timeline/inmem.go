package timeline

import (
	"context"
	"sync"
	"time"

	"bella/server/internal/model"
)

// InMemoryStore 是一个基于内存的历史存储实现。
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]model.HistoryEntry
	seq     map[string]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string][]model.HistoryEntry),
		seq:     make(map[string]int64),
	}
}

// Append 追加历史，并为该 session 分配单调递增 seq。
// 相同内容的重复输入也会各自占一条记录。
func (s *InMemoryStore) Append(_ context.Context, sessionID string, entry *model.HistoryEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[sessionID]++
	seq := s.seq[sessionID]

	entryCopy := *entry
	entryCopy.Seq = seq
	if entryCopy.CreatedAt.IsZero() {
		entryCopy.CreatedAt = time.Now()
	}
	s.entries[sessionID] = append(s.entries[sessionID], entryCopy)
	return seq, nil
}

// List 返回某个 session 的全部历史。
// 兼容性：返回切片副本，避免调用方修改内部数据。
func (s *InMemoryStore) List(_ context.Context, sessionID string) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.entries[sessionID]
	out := make([]model.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Recent 返回最近 n 条历史；n <= 0 时返回空。
func (s *InMemoryStore) Recent(_ context.Context, sessionID string, n int) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil, nil
	}
	entries := s.entries[sessionID]
	if len(entries) > n {
		entries = entries[len(entries)-n:]
	}
	out := make([]model.HistoryEntry, len(entries))
	copy(out, entries)
	return out, nil
}

// Drop 丢弃某个 session 的历史（会话结束时调用）。
func (s *InMemoryStore) Drop(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, sessionID)
	delete(s.seq, sessionID)
}
