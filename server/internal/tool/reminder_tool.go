package tool

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bella/server/internal/model"
)

// ReminderToolName 提醒工具名称
const ReminderToolName = "set_reminder"

// ReminderDelay 提醒默认在一天后到期
const ReminderDelay = 24 * time.Hour

// remindPrefix 只有显式的提醒句式才触发，"that reminds me" 之类的闲聊不算
var remindPrefix = regexp.MustCompile(`(?i)\b(remind me to|set reminder for)\b`)

// ReminderSink 持久化提醒并返回带 ID 的记录
type ReminderSink interface {
	SaveReminder(ctx context.Context, sessionID string, r model.Reminder) (model.Reminder, error)
}

// ReminderTool 提醒工具
type ReminderTool struct {
	sink ReminderSink
	now  func() time.Time

	// 回调函数：提醒写入成功后通知会话
	onReminderCreated func(ctx context.Context, sessionID string, r model.Reminder)
}

// NewReminderTool 创建提醒工具
func NewReminderTool(sink ReminderSink, onReminderCreated func(context.Context, string, model.Reminder)) *ReminderTool {
	return &ReminderTool{sink: sink, now: time.Now, onReminderCreated: onReminderCreated}
}

// SetClock 替换时间来源
func (t *ReminderTool) SetClock(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// GetDefinition 返回工具定义
func (t *ReminderTool) GetDefinition() ToolDefinition {
	return ToolDefinition{
		Type:        "function",
		Name:        ReminderToolName,
		Description: "Create a reminder that becomes due in one day.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"session_id": map[string]interface{}{"type": "string"},
				"task":       map[string]interface{}{"type": "string", "description": "what to remind about"},
			},
			"required": []string{"session_id", "task"},
		},
	}
}

// Match "remind me to X" / "set reminder for X"
func (t *ReminderTool) Match(input string) (map[string]interface{}, bool) {
	if !remindPrefix.MatchString(input) {
		return nil, false
	}
	task := strings.TrimSpace(remindPrefix.ReplaceAllString(input, ""))
	if task == "" {
		return nil, false
	}
	return map[string]interface{}{"task": task}, true
}

// Execute 执行工具调用
func (t *ReminderTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return "", fmt.Errorf("missing or invalid session_id")
	}
	task, _ := args["task"].(string)
	task = strings.TrimSpace(task)
	if task == "" {
		return "", fmt.Errorf("missing or invalid task")
	}

	now := t.now()
	reminder := model.Reminder{Task: task, DueAt: now.Add(ReminderDelay), CreatedAt: now}
	if t.sink != nil {
		saved, err := t.sink.SaveReminder(ctx, sessionID, reminder)
		if err != nil {
			return "", fmt.Errorf("save reminder: %w", err)
		}
		reminder = saved
	}
	if t.onReminderCreated != nil {
		t.onReminderCreated(ctx, sessionID, reminder)
	}
	return fmt.Sprintf("Reminder: %q on %s! 🔔", task, FormatDay(reminder.DueAt)), nil
}

// FormatDay 形如 "Mar 3rd"
func FormatDay(t time.Time) string {
	day := t.Day()
	suffix := "th"
	if day%100 < 11 || day%100 > 13 {
		switch day % 10 {
		case 1:
			suffix = "st"
		case 2:
			suffix = "nd"
		case 3:
			suffix = "rd"
		}
	}
	return fmt.Sprintf("%s %d%s", t.Format("Jan"), day, suffix)
}
