package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"bella/server/internal/affect"
	"bella/server/internal/model"
	"bella/server/internal/store"
)

// TestApplyOutcomeMovesQuestOnce 验证任务只会从活跃集合移出一次。
// 场景：同一个完成结果提交两次，第二次不应再返回 Completed。
func TestApplyOutcomeMovesQuestOnce(t *testing.T) {
	sess := New("s1", "/base.png")
	quest, ok := sess.Quest(1)
	if !ok {
		t.Fatalf("expected seed quest")
	}

	res := affect.Apply(sess.Affect(), affect.Outcome{UserEmotion: "neutral", Mode: model.ModeChat, Quest: quest, PivotInput: "I love you"})
	first := sess.ApplyOutcome(res)
	if first.Completed == nil || first.Completed.ID != 1 {
		t.Fatalf("expected quest 1 completed, got %+v", first.Completed)
	}
	if len(first.Quests) != 0 {
		t.Fatalf("expected no active quests, got %+v", first.Quests)
	}

	second := sess.ApplyOutcome(res)
	if second.Completed != nil {
		t.Fatalf("quest completed twice")
	}
	if _, ok := sess.Quest(1); ok {
		t.Fatalf("completed quest must not be found in active set")
	}
	snap := sess.Snapshot()
	if len(snap.Completed) != 1 || !snap.Completed[0].Completed {
		t.Fatalf("expected quest in completed set, got %+v", snap.Completed)
	}
}

func TestApplyOutcomeNeverDecreasesAffinity(t *testing.T) {
	sess := New("s1", "")
	sess.ApplyOutcome(affect.Result{State: model.AffectState{Affinity: 10, Emotion: model.EmotionHappy}})
	got := sess.ApplyOutcome(affect.Result{State: model.AffectState{Affinity: 3, Emotion: model.EmotionCaring}})
	if got.Affect.Affinity != 10 || got.Affect.Emotion != model.EmotionCaring {
		t.Fatalf("unexpected affect: %+v", got.Affect)
	}
}

// TestSerializedTurns 验证持有 turn 锁的并发轮次不会丢失好感增量。
func TestSerializedTurns(t *testing.T) {
	sess := New("s1", "")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.LockTurn()
			defer sess.UnlockTurn()
			res := affect.Apply(sess.Affect(), affect.Outcome{UserEmotion: "neutral", Mode: model.ModeChat})
			sess.ApplyOutcome(res)
		}()
	}
	wg.Wait()
	if got := sess.Affect().Affinity; got != 50 {
		t.Fatalf("expected affinity 50, got %v", got)
	}
}

func TestTakeDueReminders(t *testing.T) {
	sess := New("s1", "")
	now := time.Now()
	sess.AddReminder(model.Reminder{ID: 1, Task: "past", DueAt: now.Add(-time.Minute)})
	sess.AddReminder(model.Reminder{ID: 2, Task: "future", DueAt: now.Add(time.Hour)})

	due := sess.TakeDueReminders(now)
	if len(due) != 1 || due[0].Task != "past" {
		t.Fatalf("unexpected due reminders: %+v", due)
	}
	if again := sess.TakeDueReminders(now); len(again) != 0 {
		t.Fatalf("reminder surfaced twice")
	}
	if pending := sess.PendingReminders(); len(pending) != 1 || pending[0].Task != "future" {
		t.Fatalf("unexpected pending: %+v", pending)
	}
}

func TestUpdateCharacterKeepsImageWhenEmpty(t *testing.T) {
	sess := New("s1", "/base.png")
	c := sess.UpdateCharacter("sassy", model.PersonalityProfile{Tsundere: 0.8}, "")
	if c.ImageURL != "/base.png" || c.Personality.Tsundere != 0.8 || c.Prompt != "sassy" {
		t.Fatalf("unexpected character: %+v", c)
	}
}

// TestInMemoryStoreHydrates 验证新会话从持久化存储恢复任务、提醒与角色。
func TestInMemoryStoreHydrates(t *testing.T) {
	ctx := context.Background()
	records := store.NewMemoryStore()
	records.SeedQuests(ctx, "fixed", model.SeedQuests())
	records.CompleteQuest(ctx, "fixed", 1)
	records.SaveReminder(ctx, "fixed", model.Reminder{Task: "tea", DueAt: time.Now()})
	records.SaveCharacter(ctx, "fixed", model.CharacterState{ImageURL: "/idol.png", Personality: model.PersonalityProfile{Flirty: 0.8}, Voice: model.VoiceSettings{Pitch: 1.2, Speed: 1}})

	sessions := NewInMemoryStore(records, "/base.png")
	sess, err := sessions.GetOrCreate(ctx, "fixed")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if len(sess.ActiveQuests()) != 0 {
		t.Fatalf("completed quest should not be active after restore")
	}
	if snap := sess.Snapshot(); len(snap.Completed) != 1 || snap.Completed[0].ID != 1 || !snap.Completed[0].Completed {
		t.Fatalf("completed quest not restored: %+v", snap.Completed)
	}
	if sess.ImageURL() != "/idol.png" || sess.Personality().Flirty != 0.8 {
		t.Fatalf("character not restored: %+v", sess.Character())
	}
	if len(sess.PendingReminders()) != 1 {
		t.Fatalf("reminder not restored")
	}

	same, _ := sessions.GetOrCreate(ctx, "fixed")
	if same != sess {
		t.Fatalf("expected the same session object")
	}
}

func TestInMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	sessions := NewInMemoryStore(store.NewMemoryStore(), "/base.png")

	a, err := sessions.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, _ := sessions.Create(ctx)
	if a.ID == b.ID || a.ID == "" {
		t.Fatalf("expected distinct ids, got %q %q", a.ID, b.ID)
	}
	if len(a.ActiveQuests()) != 1 {
		t.Fatalf("expected seed quest on new session")
	}
	if sessions.Count() != 2 {
		t.Fatalf("expected 2 sessions, got %d", sessions.Count())
	}

	if err := sessions.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := sessions.Get(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := sessions.Delete(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
