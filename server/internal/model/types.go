package model

import "time"

// Mode 表示一轮对话所处的模式。
type Mode string

const (
	ModeChat Mode = "chat"
	ModeDate Mode = "date"
)

// Emotion 是伴侣自身的情绪标签（AffectState.Emotion 的取值）。
type Emotion string

const (
	EmotionHappy   Emotion = "happy"
	EmotionCaring  Emotion = "caring"
	EmotionPlayful Emotion = "playful"
)

// 用户侧情绪标签，来自前端的表情识别或手动选择，不做穷举校验。
const (
	UserEmotionNeutral = "neutral"
	UserEmotionHappy   = "happy"
	UserEmotionSad     = "sad"
	UserEmotionExcited = "excited"
)

// Language 是检测结果：Code 为 ISO 639-3，Tag 为翻译服务使用的 ISO 639-1。
type Language struct {
	Code string `json:"code"`
	Tag  string `json:"tag"`
}

// PivotLanguage 是提示词、情感打分与模型调用统一使用的中轴语言。
var PivotLanguage = Language{Code: "eng", Tag: "en"}

// IsPivot 判断是否为中轴语言。
func (l Language) IsPivot() bool {
	return l.Code == PivotLanguage.Code
}

// Turn 表示一次用户输入，构造后只读。
type Turn struct {
	UserInput        string
	DetectedLanguage Language
	UserEmotion      string
	Mode             Mode
	QuestID          *int
}

// Reply 是一轮对话生成的最终回复。
type Reply struct {
	Text                string `json:"text"`
	SourceProvider      string `json:"source_provider"`
	TranslatedBackTo    string `json:"translated_back_to"`
	VoiceReference      string `json:"voice_reference,omitempty"`
	TranslationDegraded bool   `json:"translation_degraded"`
}

// HistoryEntry 是会话历史中的一条记录，只追加、不回改。
type HistoryEntry struct {
	Seq       int64     `json:"seq"`
	Input     string    `json:"input"`
	Reply     string    `json:"reply"`
	Language  string    `json:"language"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// AffectState 是伴侣的好感度与情绪。
type AffectState struct {
	Affinity float64 `json:"affinity"`
	Emotion  Emotion `json:"emotion"`
}

// PersonalityProfile 人设权重，取值 0.0-1.0。
type PersonalityProfile struct {
	Flirty     float64 `json:"flirty"`
	Tsundere   float64 `json:"tsundere"`
	Supportive float64 `json:"supportive"`
}

// DefaultPersonality 初始人设。
func DefaultPersonality() PersonalityProfile {
	return PersonalityProfile{Flirty: 0.7, Tsundere: 0.3, Supportive: 1.0}
}

// Quest 是一个可完成的任务。Pattern 为完成判定用的正则（大小写不敏感）。
type Quest struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Reward      string `json:"reward"`
	Pattern     string `json:"pattern,omitempty"`
	Completed   bool   `json:"completed"`
}

// DefaultQuestPattern 是未显式配置 Pattern 时使用的完成判定。
const DefaultQuestPattern = "love|like"

// SeedQuests 初始化时写入的任务。
func SeedQuests() []Quest {
	return []Quest{
		{ID: 1, Name: "First Bond", Description: "Say 3 things you love.", Reward: "New pose", Pattern: DefaultQuestPattern},
	}
}

// Reminder 由提醒工具创建，到期后只展示一次。
type Reminder struct {
	ID        int64     `json:"id"`
	Task      string    `json:"task"`
	DueAt     time.Time `json:"due_at"`
	CreatedAt time.Time `json:"created_at"`
	Delivered bool      `json:"delivered"`
}

// VoiceSettings 语音参数。
type VoiceSettings struct {
	Pitch float64 `json:"pitch"`
	Speed float64 `json:"speed"`
}

// CharacterState 是角色形象的持久化快照。
type CharacterState struct {
	Prompt      string             `json:"prompt"`
	ImageURL    string             `json:"image_url"`
	Personality PersonalityProfile `json:"personality"`
	Voice       VoiceSettings      `json:"voice"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// ConversationRecord 是一轮对话的持久化记录。
type ConversationRecord struct {
	ID                  int64     `json:"id"`
	SessionID           string    `json:"session_id"`
	UserInput           string    `json:"user_input"`
	Reply               string    `json:"reply"`
	Provider            string    `json:"provider"`
	Sentiment           float64   `json:"sentiment"`
	UserEmotion         string    `json:"user_emotion"`
	Language            string    `json:"lang"`
	TranslationDegraded bool      `json:"translation_degraded"`
	CreatedAt           time.Time `json:"timestamp"`
}

// ChatRequest 是 /chat 的请求体。
type ChatRequest struct {
	Input       string `json:"input"`
	UserEmotion string `json:"userEmotion"`
	Mode        Mode   `json:"mode"`
	QuestID     *int   `json:"questId"`
}

// Normalize 补齐默认值。
func (r ChatRequest) Normalize() ChatRequest {
	if r.UserEmotion == "" {
		r.UserEmotion = UserEmotionNeutral
	}
	if r.Mode != ModeDate {
		r.Mode = ModeChat
	}
	return r
}

// ChatResponse 是 /chat 的响应体。
type ChatResponse struct {
	Reply               string   `json:"reply"`
	Provider            string   `json:"provider"`
	DetectedLang        string   `json:"detectedLang"`
	Affinity            float64  `json:"affinity"`
	Emotion             Emotion  `json:"emotion"`
	VoiceURL            string   `json:"voiceUrl,omitempty"`
	Quests              []Quest  `json:"quests"`
	Reminders           []string `json:"reminders,omitempty"`
	TranslationDegraded bool     `json:"translationDegraded"`
}

// CharacterRequest 是角色重塑请求。
type CharacterRequest struct {
	Prompt string `json:"prompt"`
}

// CharacterResponse 是角色重塑响应。
type CharacterResponse struct {
	ImageURL           string              `json:"imageUrl,omitempty"`
	UpdatedPersonality *PersonalityProfile `json:"updatedPersonality,omitempty"`
	Message            string              `json:"message"`
}

// ExportFormat 导出格式。
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportPDF  ExportFormat = "pdf"
)

// ExportRequest 导出请求。
type ExportRequest struct {
	Format ExportFormat `json:"format"`
}

// ExportResponse 导出响应，Data 为 base64。
type ExportResponse struct {
	Data   string       `json:"data"`
	Format ExportFormat `json:"format"`
}

// SessionSnapshot 是会话状态的只读快照。
type SessionSnapshot struct {
	SessionID   string             `json:"session_id"`
	Affect      AffectState        `json:"affect"`
	Personality PersonalityProfile `json:"personality"`
	Quests      []Quest            `json:"quests"`
	Completed   []Quest            `json:"completed_quests"`
	Reminders   []Reminder         `json:"reminders"`
	ImageURL    string             `json:"image_url"`
	Voice       VoiceSettings      `json:"voice"`
	CreatedAt   time.Time          `json:"created_at"`
}

// CreateSessionResponse 是创建会话的响应结构体。
type CreateSessionResponse struct {
	SessionID string          `json:"session_id"`
	State     SessionSnapshot `json:"state"`
}
