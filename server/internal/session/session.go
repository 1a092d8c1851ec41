package session

import (
	"math"
	"sync"
	"time"

	"bella/server/internal/affect"
	"bella/server/internal/model"
)

// Session 是一个会话的全部可变状态，由调用方创建并显式传入每个操作。
// turnMu 串行化同一会话的多轮对话；mu 保护状态字段，提交必须在一次加锁内完成。
type Session struct {
	ID        string
	CreatedAt time.Time

	turnMu sync.Mutex

	mu          sync.RWMutex
	affect      model.AffectState
	personality model.PersonalityProfile
	active      []model.Quest
	completed   []model.Quest
	reminders   []model.Reminder
	prompt      string
	imageURL    string
	voice       model.VoiceSettings
}

// New 创建带初始状态的会话
func New(id string, baseImage string) *Session {
	return &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		affect:      model.AffectState{Emotion: model.EmotionHappy},
		personality: model.DefaultPersonality(),
		active:      model.SeedQuests(),
		imageURL:    baseImage,
		voice:       model.VoiceSettings{Pitch: 1.0, Speed: 1.0},
	}
}

// LockTurn 开始一轮串行操作（对话或角色重塑）
func (s *Session) LockTurn() { s.turnMu.Lock() }

// UnlockTurn 结束本轮
func (s *Session) UnlockTurn() { s.turnMu.Unlock() }

func (s *Session) Affect() model.AffectState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.affect
}

func (s *Session) Personality() model.PersonalityProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.personality
}

func (s *Session) ImageURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.imageURL
}

// ActiveQuests 返回活跃任务副本
func (s *Session) ActiveQuests() []model.Quest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Quest, len(s.active))
	copy(out, s.active)
	return out
}

// Quest 在活跃集合中查找任务，已完成的任务视为不存在
func (s *Session) Quest(id int) (*model.Quest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.active {
		if q.ID == id {
			cp := q
			return &cp, true
		}
	}
	return nil, false
}

// CommitResult 是 ApplyOutcome 提交后的结果
type CommitResult struct {
	Affect model.AffectState
	Quests []model.Quest
	// Completed 非 nil 表示本次提交把任务从活跃集合移到了完成集合
	Completed *model.Quest
}

// ApplyOutcome 原子提交一轮对话的状态变化。
// 好感度只增不减；任务只会被移出活跃集合一次。
func (s *Session) ApplyOutcome(res affect.Result) CommitResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := res.State
	next.Affinity = math.Max(s.affect.Affinity, next.Affinity)
	s.affect = next

	var moved *model.Quest
	if res.CompletedQuest != nil {
		for i, q := range s.active {
			if q.ID != res.CompletedQuest.ID {
				continue
			}
			q.Completed = true
			s.active = append(s.active[:i:i], s.active[i+1:]...)
			s.completed = append(s.completed, q)
			cp := q
			moved = &cp
			break
		}
	}

	quests := make([]model.Quest, len(s.active))
	copy(quests, s.active)
	return CommitResult{Affect: s.affect, Quests: quests, Completed: moved}
}

// AddReminder 记录新提醒
func (s *Session) AddReminder(r model.Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = append(s.reminders, r)
}

// TakeDueReminders 取出已到期且未展示的提醒，并标记为已展示
func (s *Session) TakeDueReminders(now time.Time) []model.Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []model.Reminder
	for i := range s.reminders {
		r := &s.reminders[i]
		if r.Delivered || r.DueAt.After(now) {
			continue
		}
		r.Delivered = true
		due = append(due, *r)
	}
	return due
}

// PendingReminders 未展示的提醒（含未到期）
func (s *Session) PendingReminders() []model.Reminder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reminder
	for _, r := range s.reminders {
		if !r.Delivered {
			out = append(out, r)
		}
	}
	return out
}

// UpdateCharacter 替换人设与形象，返回新的角色快照
func (s *Session) UpdateCharacter(prompt string, personality model.PersonalityProfile, imageURL string) model.CharacterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompt = prompt
	s.personality = personality
	if imageURL != "" {
		s.imageURL = imageURL
	}
	return s.characterLocked()
}

// SetVoice 记录最近一次语音参数
func (s *Session) SetVoice(v model.VoiceSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voice = v
}

// Character 当前角色快照
func (s *Session) Character() model.CharacterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.characterLocked()
}

func (s *Session) characterLocked() model.CharacterState {
	return model.CharacterState{
		Prompt:      s.prompt,
		ImageURL:    s.imageURL,
		Personality: s.personality,
		Voice:       s.voice,
		UpdatedAt:   time.Now(),
	}
}

// restore 用持久化数据覆盖初始状态，只在会话对外可见前调用
func (s *Session) restore(active, completed []model.Quest, reminders []model.Reminder, c *model.CharacterState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active != nil {
		s.active = active
	}
	s.completed = completed
	s.reminders = reminders
	if c != nil {
		s.prompt = c.Prompt
		if c.ImageURL != "" {
			s.imageURL = c.ImageURL
		}
		s.personality = c.Personality
		if c.Voice.Pitch > 0 {
			s.voice = c.Voice
		}
	}
}

// Snapshot 只读快照
func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]model.Quest, len(s.active))
	copy(active, s.active)
	completed := make([]model.Quest, len(s.completed))
	copy(completed, s.completed)
	var reminders []model.Reminder
	for _, r := range s.reminders {
		if !r.Delivered {
			reminders = append(reminders, r)
		}
	}

	return model.SessionSnapshot{
		SessionID:   s.ID,
		Affect:      s.affect,
		Personality: s.personality,
		Quests:      active,
		Completed:   completed,
		Reminders:   reminders,
		ImageURL:    s.imageURL,
		Voice:       s.voice,
		CreatedAt:   s.CreatedAt,
	}
}
