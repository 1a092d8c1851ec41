package store

import (
	"context"
	"errors"
	"sort"

	"bella/server/internal/model"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// Store 是持久化记录存储，所有数据按 session 隔离。
type Store interface {
	// SaveConversation 写入一轮对话，返回记录 ID
	SaveConversation(ctx context.Context, rec *model.ConversationRecord) (int64, error)
	// RecentConversations 最近 limit 条对话，新的在前
	RecentConversations(ctx context.Context, sessionID string, limit int) ([]model.ConversationRecord, error)

	// SeedQuests 写入初始任务，已存在的任务保持原状
	SeedQuests(ctx context.Context, sessionID string, quests []model.Quest) error
	// ActiveQuests 未完成任务，按 ID 升序
	ActiveQuests(ctx context.Context, sessionID string) ([]model.Quest, error)
	// CompletedQuests 已完成任务，按 ID 升序
	CompletedQuests(ctx context.Context, sessionID string) ([]model.Quest, error)
	// CompleteQuest 标记任务完成
	CompleteQuest(ctx context.Context, sessionID string, questID int) error

	// SaveReminder 写入提醒并分配 ID
	SaveReminder(ctx context.Context, sessionID string, r model.Reminder) (model.Reminder, error)
	// PendingReminders 未展示过的提醒，按到期时间升序
	PendingReminders(ctx context.Context, sessionID string) ([]model.Reminder, error)
	// MarkReminderDelivered 标记提醒已展示
	MarkReminderDelivered(ctx context.Context, sessionID string, id int64) error

	// SaveCharacter 保存角色状态（覆盖）
	SaveCharacter(ctx context.Context, sessionID string, c model.CharacterState) error
	// LoadCharacter 读取角色状态，不存在时返回 ErrNotFound
	LoadCharacter(ctx context.Context, sessionID string) (*model.CharacterState, error)

	Close() error
}

func sortQuests(quests []model.Quest) {
	sort.Slice(quests, func(i, j int) bool { return quests[i].ID < quests[j].ID })
}

func sortReminders(reminders []model.Reminder) {
	sort.SliceStable(reminders, func(i, j int) bool {
		if reminders[i].DueAt.Equal(reminders[j].DueAt) {
			return reminders[i].ID < reminders[j].ID
		}
		return reminders[i].DueAt.Before(reminders[j].DueAt)
	})
}
