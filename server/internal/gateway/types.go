package gateway

import (
	"time"

	"bella/server/internal/model"
)

// EventType 定义了旁路通道上的事件类型
type EventType string

const (
	// 服务端推送
	EventTypeUpdate          EventType = "update"           // 好感/情绪/任务列表变化
	EventTypeQuestComplete   EventType = "quest_complete"   // 任务完成
	EventTypeCharacterUpdate EventType = "character_update" // 形象更新
	EventTypeQuestUpdate     EventType = "quest_update"     // start_quest 的应答
	EventTypeError           EventType = "error"

	// 客户端请求
	EventTypeStartQuest EventType = "start_quest"
)

// ClientMessage 客户端发送给网关的消息（WebSocket文本帧）
type ClientMessage struct {
	Type     EventType `json:"type"`
	EventID  string    `json:"event_id,omitempty"`
	QuestID  int       `json:"quest_id,omitempty"`
	ClientTS time.Time `json:"client_ts,omitempty"`
}

// ServerMessage 网关发送给客户端的消息
type ServerMessage struct {
	Type     EventType `json:"type"`
	Seq      int64     `json:"seq,omitempty"` // 连接内序号
	Data     any       `json:"data,omitempty"`
	ServerTS time.Time `json:"server_ts"`
	Error    string    `json:"error,omitempty"`
}

// UpdatePayload 对应 update 事件
type UpdatePayload struct {
	Affinity float64       `json:"affinity"`
	Emotion  model.Emotion `json:"emotion"`
	Quests   []model.Quest `json:"quests"`
}

// QuestCompletePayload 对应 quest_complete 事件
type QuestCompletePayload struct {
	QuestID int    `json:"questId"`
	Reward  string `json:"reward"`
}

// CharacterUpdatePayload 对应 character_update 事件
type CharacterUpdatePayload struct {
	ImageURL string `json:"imageUrl"`
}

// QuestUpdatePayload 对应 quest_update 事件，Quest 为 nil 表示任务不存在或已完成
type QuestUpdatePayload struct {
	Quest *model.Quest `json:"quest"`
}
