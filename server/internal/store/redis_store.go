package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"bella/server/internal/model"
)

// RedisStore 以 JSON 值存放记录。
// Key 布局：
//
//	{prefix}:conv:{sid}        list，对话记录（RPUSH 追加）
//	{prefix}:quests:{sid}      hash，questID → Quest
//	{prefix}:reminders:{sid}   hash，reminderID → Reminder
//	{prefix}:character:{sid}   string，CharacterState
//	{prefix}:seq:conv / seq:reminder  全局自增 ID
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore 连接 Redis 并做一次 PING。
func NewRedisStore(addr, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisStoreWithClient(client, prefix), nil
}

// NewRedisStoreWithClient 复用已有客户端
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "bella"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(kind, sessionID string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, kind, sessionID)
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) SaveConversation(ctx context.Context, rec *model.ConversationRecord) (int64, error) {
	id, err := r.client.Incr(ctx, r.key("seq", "conv")).Result()
	if err != nil {
		return 0, err
	}
	cp := *rec
	cp.ID = id
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return 0, err
	}
	if err := r.client.RPush(ctx, r.key("conv", rec.SessionID), data).Err(); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *RedisStore) RecentConversations(ctx context.Context, sessionID string, limit int) ([]model.ConversationRecord, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := r.client.LRange(ctx, r.key("conv", sessionID), start, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.ConversationRecord, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var rec model.ConversationRecord
		if err := json.Unmarshal([]byte(raw[i]), &rec); err != nil {
			return nil, fmt.Errorf("decode conversation: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisStore) SeedQuests(ctx context.Context, sessionID string, quests []model.Quest) error {
	key := r.key("quests", sessionID)
	for _, q := range quests {
		data, err := json.Marshal(q)
		if err != nil {
			return err
		}
		if err := r.client.HSetNX(ctx, key, strconv.Itoa(q.ID), data).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *RedisStore) ActiveQuests(ctx context.Context, sessionID string) ([]model.Quest, error) {
	return r.quests(ctx, sessionID, false)
}

func (r *RedisStore) CompletedQuests(ctx context.Context, sessionID string) ([]model.Quest, error) {
	return r.quests(ctx, sessionID, true)
}

func (r *RedisStore) quests(ctx context.Context, sessionID string, completed bool) ([]model.Quest, error) {
	raw, err := r.client.HGetAll(ctx, r.key("quests", sessionID)).Result()
	if err != nil {
		return nil, err
	}
	var out []model.Quest
	for _, v := range raw {
		var q model.Quest
		if err := json.Unmarshal([]byte(v), &q); err != nil {
			return nil, fmt.Errorf("decode quest: %w", err)
		}
		if q.Completed == completed {
			out = append(out, q)
		}
	}
	sortQuests(out)
	return out, nil
}

func (r *RedisStore) CompleteQuest(ctx context.Context, sessionID string, questID int) error {
	key := r.key("quests", sessionID)
	field := strconv.Itoa(questID)
	raw, err := r.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var q model.Quest
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return fmt.Errorf("decode quest: %w", err)
	}
	q.Completed = true
	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, key, field, data).Err()
}

func (r *RedisStore) SaveReminder(ctx context.Context, sessionID string, rem model.Reminder) (model.Reminder, error) {
	id, err := r.client.Incr(ctx, r.key("seq", "reminder")).Result()
	if err != nil {
		return model.Reminder{}, err
	}
	rem.ID = id
	data, err := json.Marshal(rem)
	if err != nil {
		return model.Reminder{}, err
	}
	if err := r.client.HSet(ctx, r.key("reminders", sessionID), strconv.FormatInt(id, 10), data).Err(); err != nil {
		return model.Reminder{}, err
	}
	return rem, nil
}

func (r *RedisStore) PendingReminders(ctx context.Context, sessionID string) ([]model.Reminder, error) {
	raw, err := r.client.HGetAll(ctx, r.key("reminders", sessionID)).Result()
	if err != nil {
		return nil, err
	}
	var out []model.Reminder
	for _, v := range raw {
		var rem model.Reminder
		if err := json.Unmarshal([]byte(v), &rem); err != nil {
			return nil, fmt.Errorf("decode reminder: %w", err)
		}
		if !rem.Delivered {
			out = append(out, rem)
		}
	}
	sortReminders(out)
	return out, nil
}

func (r *RedisStore) MarkReminderDelivered(ctx context.Context, sessionID string, id int64) error {
	key := r.key("reminders", sessionID)
	field := strconv.FormatInt(id, 10)
	raw, err := r.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var rem model.Reminder
	if err := json.Unmarshal([]byte(raw), &rem); err != nil {
		return fmt.Errorf("decode reminder: %w", err)
	}
	rem.Delivered = true
	data, err := json.Marshal(rem)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, key, field, data).Err()
}

func (r *RedisStore) SaveCharacter(ctx context.Context, sessionID string, c model.CharacterState) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key("character", sessionID), data, 0).Err()
}

func (r *RedisStore) LoadCharacter(ctx context.Context, sessionID string) (*model.CharacterState, error) {
	raw, err := r.client.Get(ctx, r.key("character", sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var c model.CharacterState
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode character: %w", err)
	}
	return &c, nil
}
