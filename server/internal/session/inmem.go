package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"bella/server/internal/model"
	"bella/server/internal/store"
)

var ErrNotFound = errors.New("session not found")

// InMemoryStore 是一个基于内存的 Session 存储实现。
// 会话对象常驻内存；任务、提醒与角色状态在创建时从 records 恢复。
type InMemoryStore struct {
	mu        sync.RWMutex
	data      map[string]*Session
	records   store.Store
	baseImage string
}

func NewInMemoryStore(records store.Store, baseImage string) *InMemoryStore {
	return &InMemoryStore{
		data:      make(map[string]*Session),
		records:   records,
		baseImage: baseImage,
	}
}

// Create 创建新会话
func (s *InMemoryStore) Create(ctx context.Context) (*Session, error) {
	return s.GetOrCreate(ctx, uuid.NewString())
}

// Get 根据 SessionID 获取 Session。
func (s *InMemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return sess, nil
}

// GetOrCreate 获取或创建 Session。
func (s *InMemoryStore) GetOrCreate(ctx context.Context, id string) (*Session, error) {
	if sess, err := s.Get(ctx, id); err == nil {
		return sess, nil
	}

	sess := New(id, s.baseImage)
	s.hydrate(ctx, sess)

	s.mu.Lock()
	defer s.mu.Unlock()
	// 并发创建同一 ID 时以先写入者为准
	if existing, ok := s.data[id]; ok {
		return existing, nil
	}
	s.data[id] = sess
	return sess, nil
}

// Delete 删除 Session，持久化记录保留。
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[id]; !ok {
		return ErrNotFound
	}
	delete(s.data, id)
	return nil
}

func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// hydrate 恢复失败只记录日志，会话以初始状态继续
func (s *InMemoryStore) hydrate(ctx context.Context, sess *Session) {
	if s.records == nil {
		return
	}
	if err := s.records.SeedQuests(ctx, sess.ID, model.SeedQuests()); err != nil {
		log.Printf("[Session] seed quests for %s failed: %v", sess.ID, err)
		return
	}
	active, err := s.records.ActiveQuests(ctx, sess.ID)
	if err != nil {
		log.Printf("[Session] load quests for %s failed: %v", sess.ID, err)
		return
	}
	if active == nil {
		active = []model.Quest{}
	}
	completed, err := s.records.CompletedQuests(ctx, sess.ID)
	if err != nil {
		log.Printf("[Session] load completed quests for %s failed: %v", sess.ID, err)
	}
	reminders, err := s.records.PendingReminders(ctx, sess.ID)
	if err != nil {
		log.Printf("[Session] load reminders for %s failed: %v", sess.ID, err)
	}
	character, err := s.records.LoadCharacter(ctx, sess.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("[Session] load character for %s failed: %v", sess.ID, err)
	}
	sess.restore(active, completed, reminders, character)
}
