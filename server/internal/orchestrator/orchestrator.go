package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"bella/server/internal/affect"
	"bella/server/internal/character"
	"bella/server/internal/export"
	"bella/server/internal/gateway"
	"bella/server/internal/lang"
	"bella/server/internal/llm"
	"bella/server/internal/metrics"
	"bella/server/internal/model"
	"bella/server/internal/sentiment"
	"bella/server/internal/session"
	"bella/server/internal/social"
	"bella/server/internal/store"
	"bella/server/internal/timeline"
	"bella/server/internal/tool"
	"bella/server/internal/translate"
	"bella/server/internal/voice"
)

const (
	// FallbackReply 回退链耗尽时的固定回复
	FallbackReply = "Nya~ All APIs down! Check your provider keys and try again? 😿"
	// TranslationGlitchNote 回译失败时附加在回复末尾
	TranslationGlitchNote = "(Nya~ Translation glitch, but I love chatting in English too! 💕)"
	// EmptyCharacterPrompt 角色重塑缺少描述时的提示
	EmptyCharacterPrompt = "Need a vibe, love!"
)

var (
	// ErrInvalidInput 请求校验失败，发生在任何状态变化之前
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedEvent 旁路通道上不支持的客户端事件
	ErrUnsupportedEvent = errors.New("unsupported event type")
)

// Completer 是 Provider Gateway 的能力
type Completer interface {
	Complete(ctx context.Context, prompt string) (llm.Completion, error)
}

// Notifier 推送状态变化给旁路观察者
type Notifier interface {
	Publish(sessionID string, msg *gateway.ServerMessage)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, *gateway.ServerMessage) {}

// Deps 编排器依赖。Completer、Sessions 必填，其余缺省时使用离线实现。
type Deps struct {
	Detector   lang.Detector
	Translator translate.Translator
	Scorer     sentiment.Scorer
	Completer  Completer
	Voice      voice.Synthesizer
	Social     social.Source
	Images     character.ImageGenerator
	Records    store.Store
	Timeline   timeline.Store
	Sessions   session.Store
	Notifier   Notifier
	// ExtraTools 额外注册的工具（提醒工具总是注册）
	ExtraTools []tool.ToolExecutor

	HistoryWindow int
	ExportLimit   int
	Now           func() time.Time
}

// Orchestrator 把检测、翻译、打分、生成、状态更新、语音与持久化串成一轮对话。
//
// 契约：
// - 同一会话的轮次由 Session 的 turn 锁串行化。
// - 状态更新每轮恰好一次，在回复确定之后、语音合成之前。
// - 无论成功还是兜底，本轮都追加历史并尝试持久化。
type Orchestrator struct {
	detector   lang.Detector
	translator translate.Translator
	scorer     sentiment.Scorer
	completer  Completer
	voice      voice.Synthesizer
	social     social.Source
	images     character.ImageGenerator
	records    store.Store
	timeline   timeline.Store
	sessions   session.Store
	notifier   Notifier
	tools      *tool.ToolRegistry

	historyWindow int
	exportLimit   int
	now           func() time.Time
	logger        *log.Logger
}

func New(d Deps) *Orchestrator {
	o := &Orchestrator{
		detector:      d.Detector,
		translator:    d.Translator,
		scorer:        d.Scorer,
		completer:     d.Completer,
		voice:         d.Voice,
		social:        d.Social,
		images:        d.Images,
		records:       d.Records,
		timeline:      d.Timeline,
		sessions:      d.Sessions,
		notifier:      d.Notifier,
		historyWindow: d.HistoryWindow,
		exportLimit:   d.ExportLimit,
		now:           d.Now,
		logger:        log.Default(),
	}
	if o.detector == nil {
		o.detector = lang.Fixed(model.PivotLanguage)
	}
	if o.translator == nil {
		o.translator = translate.Identity{}
	}
	if o.scorer == nil {
		o.scorer = sentiment.AFINN{}
	}
	if o.records == nil {
		o.records = store.NewMemoryStore()
	}
	if o.timeline == nil {
		o.timeline = timeline.NewInMemoryStore()
	}
	if o.notifier == nil {
		o.notifier = nopNotifier{}
	}
	if o.exportLimit <= 0 {
		o.exportLimit = 50
	}
	if o.now == nil {
		o.now = time.Now
	}

	o.tools = tool.NewToolRegistry()
	reminders := tool.NewReminderTool(o.records, o.onReminderCreated)
	reminders.SetClock(o.now)
	o.tools.Register(reminders)
	for _, t := range d.ExtraTools {
		o.tools.Register(t)
	}
	return o
}

// Tools 已注册的工具定义
func (o *Orchestrator) Tools() []tool.ToolDefinition {
	return o.tools.GetAllDefinitions()
}

// RunTurn 执行一轮对话。只有请求校验失败会返回错误，其余失败都降级处理。
func (o *Orchestrator) RunTurn(ctx context.Context, sess *session.Session, req model.ChatRequest) (*model.ChatResponse, error) {
	if sess == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	req = req.Normalize()
	if strings.TrimSpace(req.Input) == "" {
		metrics.TurnsTotal.WithLabelValues("invalid").Inc()
		return nil, fmt.Errorf("%w: empty input", ErrInvalidInput)
	}

	sess.LockTurn()
	defer sess.UnlockTurn()

	start := time.Now()
	turn := model.Turn{
		UserInput:        req.Input,
		DetectedLanguage: o.detector.Detect(req.Input),
		UserEmotion:      req.UserEmotion,
		Mode:             req.Mode,
		QuestID:          req.QuestID,
	}
	localized := !turn.DetectedLanguage.IsPivot()

	// 1. 输入归一到中轴语言
	pivotInput := turn.UserInput
	degraded := false
	if localized {
		res := o.translator.Translate(ctx, turn.UserInput, model.PivotLanguage.Tag)
		pivotInput = res.Text
		if res.Degraded {
			degraded = true
			metrics.DegradedTotal.WithLabelValues("translation_in").Inc()
			o.logger.Printf("[Orchestrator] input translation %s→en failed, using original: %v", turn.DetectedLanguage.Code, res.Err)
		}
	}

	// 2. 打分与上下文
	score := o.scorer.Score(pivotInput)
	var quest *model.Quest
	if turn.QuestID != nil {
		quest, _ = sess.Quest(*turn.QuestID)
	}
	socialContext := ""
	if o.social != nil && o.social.Configured() {
		socialContext = o.social.Context(ctx)
		if socialContext == social.Unavailable {
			metrics.DegradedTotal.WithLabelValues("social").Inc()
		}
	}
	toolResult := o.runTools(ctx, sess, pivotInput)

	history, err := o.timeline.Recent(ctx, sess.ID, o.historyWindow)
	if err != nil {
		o.logger.Printf("[Orchestrator] load history for %s failed: %v", sess.ID, err)
	}
	prompt := BuildPrompt(PromptInput{
		History:     history,
		Input:       pivotInput,
		Sentiment:   score,
		UserEmotion: turn.UserEmotion,
		Personality: sess.Personality(),
		Mode:        turn.Mode,
		Quest:       quest,
		Social:      socialContext,
		ToolResult:  toolResult,
	})

	// 3. 生成；回退链耗尽时使用固定回复
	outcome := "ok"
	reply := model.Reply{TranslatedBackTo: turn.DetectedLanguage.Code}
	completion, err := o.completer.Complete(ctx, prompt)
	if err != nil {
		outcome = "fallback"
		o.logger.Printf("[Orchestrator] reply generation failed for %s: %v", sess.ID, err)
		reply.Text = FallbackReply
		reply.SourceProvider = llm.MockProviderName
	} else {
		reply.Text = completion.Text
		reply.SourceProvider = completion.Provider
	}

	// 4. 回译到用户语言
	if localized {
		res := o.translator.Translate(ctx, reply.Text, turn.DetectedLanguage.Tag)
		if res.Degraded {
			degraded = true
			if outcome != "fallback" {
				reply.Text = reply.Text + " " + TranslationGlitchNote
			}
			reply.TranslatedBackTo = model.PivotLanguage.Code
			metrics.DegradedTotal.WithLabelValues("translation_out").Inc()
			o.logger.Printf("[Orchestrator] reply translation en→%s failed: %v", turn.DetectedLanguage.Code, res.Err)
		} else {
			reply.Text = res.Text
		}
	}
	reply.TranslationDegraded = degraded

	// 5. 状态更新（恰好一次）；之后的步骤不再受请求取消影响
	persistCtx := context.WithoutCancel(ctx)
	result := affect.Apply(sess.Affect(), affect.Outcome{
		Sentiment:   score,
		UserEmotion: turn.UserEmotion,
		Mode:        turn.Mode,
		Quest:       quest,
		PivotInput:  pivotInput,
	})
	commit := sess.ApplyOutcome(result)
	if commit.Completed != nil {
		if err := o.records.CompleteQuest(persistCtx, sess.ID, commit.Completed.ID); err != nil {
			o.logger.Printf("[Orchestrator] persist quest completion failed: %v", err)
		}
		o.notifier.Publish(sess.ID, &gateway.ServerMessage{
			Type: gateway.EventTypeQuestComplete,
			Data: gateway.QuestCompletePayload{QuestID: commit.Completed.ID, Reward: commit.Completed.Reward},
		})
	}
	o.notifier.Publish(sess.ID, &gateway.ServerMessage{
		Type: gateway.EventTypeUpdate,
		Data: gateway.UpdatePayload{Affinity: commit.Affect.Affinity, Emotion: commit.Affect.Emotion, Quests: commit.Quests},
	})

	// 6. 语音
	if o.voice != nil {
		voiceEmotion := string(commit.Affect.Emotion)
		if turn.UserEmotion == model.UserEmotionExcited {
			voiceEmotion = model.UserEmotionExcited
		}
		vr := o.voice.Synthesize(persistCtx, reply.Text, voiceEmotion)
		if vr.Fallback && o.voice.Configured() {
			metrics.DegradedTotal.WithLabelValues("voice").Inc()
		}
		reply.VoiceReference = vr.AudioRef
		sess.SetVoice(model.VoiceSettings{Pitch: voice.PitchFor(voiceEmotion), Speed: 1.0})
		state := sess.Character()
		state.UpdatedAt = o.now()
		if err := o.records.SaveCharacter(persistCtx, sess.ID, state); err != nil {
			o.logger.Printf("[Orchestrator] persist voice settings failed: %v", err)
		}
	}

	// 7. 历史与持久化
	now := o.now()
	if _, err := o.timeline.Append(persistCtx, sess.ID, &model.HistoryEntry{
		Input:     turn.UserInput,
		Reply:     reply.Text,
		Language:  turn.DetectedLanguage.Code,
		Provider:  reply.SourceProvider,
		CreatedAt: now,
	}); err != nil {
		o.logger.Printf("[Orchestrator] append history failed: %v", err)
	}
	if _, err := o.records.SaveConversation(persistCtx, &model.ConversationRecord{
		SessionID:           sess.ID,
		UserInput:           turn.UserInput,
		Reply:               reply.Text,
		Provider:            reply.SourceProvider,
		Sentiment:           score,
		UserEmotion:         turn.UserEmotion,
		Language:            turn.DetectedLanguage.Code,
		TranslationDegraded: degraded,
		CreatedAt:           now,
	}); err != nil {
		metrics.DegradedTotal.WithLabelValues("persistence").Inc()
		o.logger.Printf("[Orchestrator] persist conversation failed: %v", err)
	}

	reminders := o.deliverReminders(persistCtx, sess, now)

	metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	metrics.TurnDuration.Observe(time.Since(start).Seconds())
	o.logger.Printf("[Orchestrator] turn done session=%s provider=%s lang=%s affinity=%.1f emotion=%s degraded=%t",
		sess.ID, reply.SourceProvider, turn.DetectedLanguage.Code, commit.Affect.Affinity, commit.Affect.Emotion, degraded)

	return &model.ChatResponse{
		Reply:               reply.Text,
		Provider:            reply.SourceProvider,
		DetectedLang:        turn.DetectedLanguage.Code,
		Affinity:            commit.Affect.Affinity,
		Emotion:             commit.Affect.Emotion,
		VoiceURL:            reply.VoiceReference,
		Quests:              commit.Quests,
		Reminders:           reminders,
		TranslationDegraded: degraded,
	}, nil
}

// runTools 输入触发工具时执行，结果作为提示词上下文；失败只记录日志
func (o *Orchestrator) runTools(ctx context.Context, sess *session.Session, input string) string {
	name, args, ok := o.tools.Route(input)
	if !ok {
		return ""
	}
	args["session_id"] = sess.ID
	out, err := o.tools.Invoke(withSession(ctx, sess), name, args)
	if err != nil {
		o.logger.Printf("[Orchestrator] tool %s failed: %v", name, err)
		return ""
	}
	return out
}

type sessionKey struct{}

// withSession 把本轮持有的会话交给工具回调
func withSession(ctx context.Context, sess *session.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

func (o *Orchestrator) onReminderCreated(ctx context.Context, sessionID string, r model.Reminder) {
	if sess, ok := ctx.Value(sessionKey{}).(*session.Session); ok && sess.ID == sessionID {
		sess.AddReminder(r)
		return
	}
	if o.sessions == nil {
		return
	}
	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		o.logger.Printf("[Orchestrator] reminder for unknown session %s", sessionID)
		return
	}
	sess.AddReminder(r)
}

func (o *Orchestrator) deliverReminders(ctx context.Context, sess *session.Session, now time.Time) []string {
	due := sess.TakeDueReminders(now)
	if len(due) == 0 {
		return nil
	}
	out := make([]string, 0, len(due))
	for _, r := range due {
		if err := o.records.MarkReminderDelivered(ctx, sess.ID, r.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			o.logger.Printf("[Orchestrator] mark reminder %d delivered failed: %v", r.ID, err)
		}
		out = append(out, r.Task)
	}
	return out
}

// UpdateCharacter 按描述重塑人设与形象。空描述不改变任何状态。
func (o *Orchestrator) UpdateCharacter(ctx context.Context, sess *session.Session, prompt string) (*model.CharacterResponse, error) {
	if sess == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return &model.CharacterResponse{Message: EmptyCharacterPrompt}, nil
	}

	sess.LockTurn()
	defer sess.UnlockTurn()

	personality := character.ParseTraits(prompt)
	imageURL := ""
	if o.images != nil {
		url, err := o.images.Generate(ctx, prompt)
		if err != nil {
			metrics.DegradedTotal.WithLabelValues("image").Inc()
		}
		imageURL = url
	}

	state := sess.UpdateCharacter(prompt, personality, imageURL)
	state.UpdatedAt = o.now()
	if err := o.records.SaveCharacter(context.WithoutCancel(ctx), sess.ID, state); err != nil {
		metrics.DegradedTotal.WithLabelValues("persistence").Inc()
		o.logger.Printf("[Orchestrator] persist character failed: %v", err)
	}
	o.notifier.Publish(sess.ID, &gateway.ServerMessage{
		Type: gateway.EventTypeCharacterUpdate,
		Data: gateway.CharacterUpdatePayload{ImageURL: state.ImageURL},
	})

	return &model.CharacterResponse{
		ImageURL:           state.ImageURL,
		UpdatedPersonality: &personality,
		Message:            fmt.Sprintf("I'm your %s now~ ✨", prompt),
	}, nil
}

// Proactive 主动搭话：提醒优先，其次任务，最后默认问候
func (o *Orchestrator) Proactive(sess *session.Session) string {
	if pending := sess.PendingReminders(); len(pending) > 0 {
		return fmt.Sprintf("Psst, reminder: %s! 😘", pending[0].Task)
	}
	if quests := sess.ActiveQuests(); len(quests) > 0 {
		return fmt.Sprintf("Quest time! %s Ready? 🌟", quests[0].Description)
	}
	return "Thinking of you~ What's up, darling? 💕"
}

// Export 导出最近的对话记录
func (o *Orchestrator) Export(ctx context.Context, sess *session.Session, format model.ExportFormat) (*model.ExportResponse, error) {
	if sess == nil {
		return nil, fmt.Errorf("%w: nil session", ErrInvalidInput)
	}
	if format == "" {
		format = model.ExportJSON
	}
	if format != model.ExportJSON && format != model.ExportPDF {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, export.ErrUnsupportedFormat)
	}
	rows, err := o.records.RecentConversations(ctx, sess.ID, o.exportLimit)
	if err != nil {
		return nil, fmt.Errorf("load conversations: %w", err)
	}
	data, err := export.Encode(format, rows)
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return &model.ExportResponse{Data: data, Format: format}, nil
}

// HandleClientMessage 处理旁路通道的客户端请求
func (o *Orchestrator) HandleClientMessage(ctx context.Context, sessionID string, msg *gateway.ClientMessage) (*gateway.ServerMessage, error) {
	switch msg.Type {
	case gateway.EventTypeStartQuest:
		if o.sessions == nil {
			return nil, session.ErrNotFound
		}
		sess, err := o.sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		quest, _ := sess.Quest(msg.QuestID)
		return &gateway.ServerMessage{
			Type: gateway.EventTypeQuestUpdate,
			Data: gateway.QuestUpdatePayload{Quest: quest},
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, msg.Type)
	}
}
