package store

import (
	"context"
	"sync"
	"time"

	"bella/server/internal/model"
)

// MemoryStore 进程内存储，重启即丢数据，用于测试与无盘部署。
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]model.ConversationRecord
	quests        map[string]map[int]model.Quest
	reminders     map[string][]model.Reminder
	characters    map[string]model.CharacterState
	nextConvID    int64
	nextRemindID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string][]model.ConversationRecord),
		quests:        make(map[string]map[int]model.Quest),
		reminders:     make(map[string][]model.Reminder),
		characters:    make(map[string]model.CharacterState),
	}
}

func (m *MemoryStore) SaveConversation(_ context.Context, rec *model.ConversationRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextConvID++
	cp := *rec
	cp.ID = m.nextConvID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.conversations[rec.SessionID] = append(m.conversations[rec.SessionID], cp)
	return cp.ID, nil
}

func (m *MemoryStore) RecentConversations(_ context.Context, sessionID string, limit int) ([]model.ConversationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := m.conversations[sessionID]
	out := make([]model.ConversationRecord, 0, len(rows))
	for i := len(rows) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, rows[i])
	}
	return out, nil
}

func (m *MemoryStore) SeedQuests(_ context.Context, sessionID string, quests []model.Quest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quests[sessionID] == nil {
		m.quests[sessionID] = make(map[int]model.Quest)
	}
	for _, q := range quests {
		if _, exists := m.quests[sessionID][q.ID]; !exists {
			m.quests[sessionID][q.ID] = q
		}
	}
	return nil
}

func (m *MemoryStore) ActiveQuests(_ context.Context, sessionID string) ([]model.Quest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Quest
	for _, q := range m.quests[sessionID] {
		if !q.Completed {
			out = append(out, q)
		}
	}
	sortQuests(out)
	return out, nil
}

func (m *MemoryStore) CompletedQuests(_ context.Context, sessionID string) ([]model.Quest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Quest
	for _, q := range m.quests[sessionID] {
		if q.Completed {
			out = append(out, q)
		}
	}
	sortQuests(out)
	return out, nil
}

func (m *MemoryStore) CompleteQuest(_ context.Context, sessionID string, questID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	q, ok := m.quests[sessionID][questID]
	if !ok {
		return ErrNotFound
	}
	q.Completed = true
	m.quests[sessionID][questID] = q
	return nil
}

func (m *MemoryStore) SaveReminder(_ context.Context, sessionID string, r model.Reminder) (model.Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRemindID++
	r.ID = m.nextRemindID
	m.reminders[sessionID] = append(m.reminders[sessionID], r)
	return r, nil
}

func (m *MemoryStore) PendingReminders(_ context.Context, sessionID string) ([]model.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Reminder
	for _, r := range m.reminders[sessionID] {
		if !r.Delivered {
			out = append(out, r)
		}
	}
	sortReminders(out)
	return out, nil
}

func (m *MemoryStore) MarkReminderDelivered(_ context.Context, sessionID string, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.reminders[sessionID] {
		if m.reminders[sessionID][i].ID == id {
			m.reminders[sessionID][i].Delivered = true
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryStore) SaveCharacter(_ context.Context, sessionID string, c model.CharacterState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.characters[sessionID] = c
	return nil
}

func (m *MemoryStore) LoadCharacter(_ context.Context, sessionID string) (*model.CharacterState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.characters[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) Close() error { return nil }
